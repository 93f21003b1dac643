// Package exporter orchestrates one video export end to end: source
// materialization, audio mix, frame render loop, encode, mux and artifact
// placement, with staged progress reporting and cooperative cancellation.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Farooqbasha008/advideo/internal/artifact"
	"github.com/Farooqbasha008/advideo/internal/audio"
	"github.com/Farooqbasha008/advideo/internal/compositor"
	"github.com/Farooqbasha008/advideo/internal/encoder"
	"github.com/Farooqbasha008/advideo/internal/ffmpeg"
	"github.com/Farooqbasha008/advideo/internal/session"
	"github.com/Farooqbasha008/advideo/internal/timeline"
)

var (
	// ErrBusy is returned when an export is already running.
	ErrBusy = errors.New("an export is already in progress")

	// ErrEmptyTimeline is returned before any resource is acquired.
	ErrEmptyTimeline = errors.New("timeline has no items")
)

// Stage progress bands. Render interpolates linearly inside its band by
// frame index; every other stage reports its upper bound on completion.
const (
	progressInit     = 5
	progressPrepare  = 20
	progressRender   = 80
	progressFlush    = 85
	progressMux      = 95
	progressFinalize = 100
)

// Options selects the output of one export session.
type Options struct {
	Title      string
	Format     string
	Resolution string
	Quality    string
}

// Observer receives stage and percent updates.
type Observer func(stage string, percent int)

// Exporter runs at most one export session at a time.
type Exporter struct {
	mixer  *audio.Mixer
	runner *ffmpeg.Runner
	doctor *ffmpeg.Doctor
	store  *artifact.Store
	repo   session.Repository
	logger *slog.Logger

	// newEncoder and newCompositor are swappable for tests. The compositor
	// is built per session because the canvas size follows the requested
	// resolution.
	newEncoder    func(ctx context.Context, opts encoder.Options) encoder.Encoder
	newCompositor func(width, height int) *compositor.Compositor

	mu        sync.Mutex
	active    bool
	activeID  string
	canceled  atomic.Bool
	observers []Observer
	wg        sync.WaitGroup
}

func New(mixer *audio.Mixer, runner *ffmpeg.Runner, doctor *ffmpeg.Doctor, store *artifact.Store, repo session.Repository, logger *slog.Logger) *Exporter {
	e := &Exporter{
		mixer:  mixer,
		runner: runner,
		doctor: doctor,
		store:  store,
		repo:   repo,
		logger: logger,
	}
	e.newEncoder = func(ctx context.Context, opts encoder.Options) encoder.Encoder {
		var caps ffmpeg.Capabilities
		if e.doctor != nil {
			c, err := e.doctor.Get(ctx)
			if err != nil {
				logger.Warn("capability probe failed, selecting without hardware", "error", err)
			} else {
				caps = c
			}
		}
		return encoder.Select(e.runner, caps, opts, e.logger)
	}
	e.newCompositor = func(width, height int) *compositor.Compositor {
		var extractor compositor.FrameExtractor
		if runner != nil {
			extractor = runner
		}
		return compositor.New(width, height, extractor, logger)
	}
	return e
}

// Subscribe registers a progress observer for subsequent sessions.
func (e *Exporter) Subscribe(obs Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, obs)
}

// Cancel requests cancellation of the running session. The flag is checked
// between frames; in-flight subprocess work finishes its current step first.
func (e *Exporter) Cancel() {
	e.canceled.Store(true)
}

// Active reports whether a session is currently running and its id.
func (e *Exporter) Active() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeID, e.active
}

// Wait blocks until the running session, if any, has finished.
func (e *Exporter) Wait() {
	e.wg.Wait()
}

// Start validates the request, creates the session and runs the export in
// the background. The returned Export reflects the session at creation.
func (e *Exporter) Start(ctx context.Context, tl timeline.Timeline, opts Options) (*session.Export, error) {
	// Validation happens before any resource is acquired.
	if len(tl) == 0 {
		return nil, ErrEmptyTimeline
	}
	if err := tl.Validate(); err != nil {
		return nil, fmt.Errorf("invalid timeline: %w", err)
	}

	encOpts := encoder.Options{
		Format:     opts.Format,
		Resolution: opts.Resolution,
		Quality:    opts.Quality,
	}
	if err := encOpts.Normalize(); err != nil {
		return nil, err
	}
	if opts.Title == "" {
		opts.Title = "untitled"
	}

	e.mu.Lock()
	if e.active {
		e.mu.Unlock()
		return nil, ErrBusy
	}
	e.active = true
	e.mu.Unlock()

	now := time.Now().UTC()
	exp := &session.Export{
		ID:         session.NewID(),
		Title:      opts.Title,
		Status:     session.StatusRunning,
		Format:     encOpts.Format,
		Resolution: encOpts.Resolution,
		Quality:    encOpts.Quality,
		Stage:      session.StageInit,
		Progress:   0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.repo.CreateExport(ctx, exp); err != nil {
		e.mu.Lock()
		e.active = false
		e.mu.Unlock()
		return nil, fmt.Errorf("persist session: %w", err)
	}

	e.mu.Lock()
	e.activeID = exp.ID
	e.mu.Unlock()
	e.canceled.Store(false)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(context.WithoutCancel(ctx), tl, encOpts, exp)
		e.mu.Lock()
		e.active = false
		e.activeID = ""
		e.mu.Unlock()
	}()

	return exp, nil
}

func (e *Exporter) run(ctx context.Context, tl timeline.Timeline, encOpts encoder.Options, exp *session.Export) {
	log := e.logger.With("export_id", exp.ID)
	started := time.Now()

	artifactPath, err := e.export(ctx, tl, encOpts, exp, log)
	switch {
	case errors.Is(err, errCanceled):
		log.Info("export canceled", "duration_ms", time.Since(started).Milliseconds())
		e.repo.UpdateExportStatus(ctx, exp.ID, session.StatusCanceled, "canceled by user")
	case err != nil:
		log.Error("export failed", "error", err, "duration_ms", time.Since(started).Milliseconds())
		e.repo.UpdateExportStatus(ctx, exp.ID, session.StatusFailed, err.Error())
	default:
		log.Info("export complete",
			"artifact", artifactPath,
			"duration_ms", time.Since(started).Milliseconds(),
		)
		e.repo.SetExportArtifact(ctx, exp.ID, artifactPath)
		e.repo.UpdateExportProgress(ctx, exp.ID, session.StageFinalize, progressFinalize)
		e.repo.UpdateExportStatus(ctx, exp.ID, session.StatusComplete, "")
		e.notify(session.StageFinalize, progressFinalize)
	}
	e.store.CleanWorkDir(exp.ID)
}

var errCanceled = errors.New("export canceled")

func (e *Exporter) export(ctx context.Context, tl timeline.Timeline, encOpts encoder.Options, exp *session.Export, log *slog.Logger) (path string, err error) {
	// A canceled or failed session leaves no partial artifact behind.
	defer func() {
		if err != nil && encOpts.OutputPath != "" {
			os.Remove(encOpts.OutputPath)
		}
	}()

	// init: materialize every source locally so the rest of the pipeline
	// only touches files.
	e.progress(ctx, exp.ID, session.StageInit, progressInit)

	local := make(timeline.Timeline, len(tl))
	for i, item := range tl {
		path, err := e.store.Fetch(ctx, item.Source)
		if err != nil {
			return "", fmt.Errorf("materialize %s: %w", artifact.SanitizeURL(item.Source), err)
		}
		item.Source = path
		local[i] = item
	}
	if e.canceled.Load() {
		return "", errCanceled
	}

	workDir, err := e.store.WorkDir(exp.ID)
	if err != nil {
		return "", err
	}
	encOpts.WorkDir = workDir
	encOpts.OutputPath = e.store.ExportPath(exp.Title, encOpts.Format, time.Now())

	// prepare: mix audio, then bring up the encoder.
	totalDuration := local.TotalDuration()

	if e.mixer != nil && encOpts.Format != encoder.FormatGIF {
		if audioItems := local.AudioItems(); len(audioItems) > 0 {
			buf, err := e.mixer.Mix(ctx, audioItems, totalDuration)
			if err != nil {
				return "", fmt.Errorf("mix audio: %w", err)
			}
			if !buf.Silent() {
				wavPath := filepath.Join(workDir, "audio.wav")
				if err := buf.SaveWAV(wavPath); err != nil {
					return "", fmt.Errorf("write mixed audio: %w", err)
				}
				encOpts.AudioPath = wavPath
			}
		}
	}
	if e.canceled.Load() {
		return "", errCanceled
	}

	width, height := encOpts.Size()
	comp := e.newCompositor(width, height)

	enc := e.newEncoder(ctx, encOpts)
	defer enc.Close()

	if err := enc.Configure(ctx); err != nil {
		return "", fmt.Errorf("configure encoder: %w", err)
	}
	e.repo.SetExportEncoder(ctx, exp.ID, enc.Name())
	log.Info("export prepared",
		"encoder", enc.Name(),
		"frames", local.FrameCount(encoder.FPS),
		"duration_s", totalDuration,
		"audio", encOpts.AudioPath != "",
	)
	e.progress(ctx, exp.ID, session.StagePrepare, progressPrepare)

	// render: the frame loop. Progress is linear in frame index and
	// reported at most once per rendered second.
	totalFrames := local.FrameCount(encoder.FPS)
	for i := 0; i < totalFrames; i++ {
		if e.canceled.Load() {
			return "", errCanceled
		}

		t := float64(i) / encoder.FPS
		frame := comp.RenderFrame(ctx, local, t)
		err := enc.EncodeFrame(frame)
		frame.Release()
		if err != nil {
			return "", fmt.Errorf("encode frame %d: %w", i, err)
		}

		if i%encoder.FPS == 0 {
			pct := progressPrepare + int(math.Floor(float64(i)/float64(totalFrames)*(progressRender-progressPrepare)))
			e.progress(ctx, exp.ID, session.StageRender, pct)
		}
	}

	e.progress(ctx, exp.ID, session.StageRender, progressRender)
	if e.canceled.Load() {
		return "", errCanceled
	}

	// flush, then mux/finalize.
	if err := enc.Flush(ctx); err != nil {
		return "", fmt.Errorf("flush encoder: %w", err)
	}
	e.progress(ctx, exp.ID, session.StageFlush, progressFlush)
	if e.canceled.Load() {
		return "", errCanceled
	}

	artifactPath, err := enc.Finalize(ctx)
	if err != nil {
		return "", fmt.Errorf("finalize: %w", err)
	}
	e.progress(ctx, exp.ID, session.StageMux, progressMux)

	return artifactPath, nil
}

func (e *Exporter) progress(ctx context.Context, id, stage string, percent int) {
	e.repo.UpdateExportProgress(ctx, id, stage, percent)
	e.notify(stage, percent)
}

func (e *Exporter) notify(stage string, percent int) {
	e.mu.Lock()
	observers := make([]Observer, len(e.observers))
	copy(observers, e.observers)
	e.mu.Unlock()

	for _, obs := range observers {
		obs(stage, percent)
	}
}
