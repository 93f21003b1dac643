package exporter

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Farooqbasha008/advideo/internal/artifact"
	"github.com/Farooqbasha008/advideo/internal/compositor"
	"github.com/Farooqbasha008/advideo/internal/db"
	"github.com/Farooqbasha008/advideo/internal/encoder"
	"github.com/Farooqbasha008/advideo/internal/session"
	"github.com/Farooqbasha008/advideo/internal/timeline"
)

type fakeEncoder struct {
	opts       encoder.Options
	onFrame    func(n int)
	configErr  error
	frames     int
	lastPTS    int64
	flushed    bool
	finalized  bool
	closed     bool
	orderBroke bool
}

func (f *fakeEncoder) Configure(ctx context.Context) error {
	if f.configErr != nil {
		return f.configErr
	}
	// Simulate a partially written output from the first moment.
	return os.WriteFile(f.opts.OutputPath, []byte("partial"), 0o644)
}

func (f *fakeEncoder) EncodeFrame(frame *compositor.Frame) error {
	if frame.PTS <= f.lastPTS && f.frames > 0 {
		f.orderBroke = true
	}
	f.lastPTS = frame.PTS
	f.frames++
	if f.onFrame != nil {
		f.onFrame(f.frames)
	}
	return nil
}

func (f *fakeEncoder) Flush(ctx context.Context) error {
	f.flushed = true
	return nil
}

func (f *fakeEncoder) Finalize(ctx context.Context) (string, error) {
	f.finalized = true
	return f.opts.OutputPath, os.WriteFile(f.opts.OutputPath, []byte("final"), 0o644)
}

func (f *fakeEncoder) Close()       { f.closed = true }
func (f *fakeEncoder) Name() string { return "fake" }

type harness struct {
	exp  *Exporter
	repo session.Repository
	enc  *fakeEncoder
	dir  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	dir := t.TempDir()
	database, err := db.New(filepath.Join(dir, "test.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	repo := session.NewRepository(database.Conn())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := artifact.NewStore(filepath.Join(dir, "exports"), filepath.Join(dir, "bundles"), logger)
	if err != nil {
		t.Fatal(err)
	}

	h := &harness{repo: repo, dir: dir, enc: &fakeEncoder{}}
	h.exp = New(nil, nil, nil, store, repo, logger)
	h.exp.newEncoder = func(ctx context.Context, opts encoder.Options) encoder.Encoder {
		h.enc.opts = opts
		return h.enc
	}
	// Small canvas keeps the render loop cheap.
	h.exp.newCompositor = func(width, height int) *compositor.Compositor {
		return compositor.New(32, 18, nil, logger)
	}
	return h
}

// writeTestImage drops a small PNG the compositor can load from disk.
func writeTestImage(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	img.SetRGBA(0, 0, color.RGBA{255, 0, 0, 255})

	path := filepath.Join(dir, "card.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestStart_EmptyTimeline(t *testing.T) {
	h := newHarness(t)

	_, err := h.exp.Start(context.Background(), timeline.Timeline{}, Options{Title: "x"})
	if !errors.Is(err, ErrEmptyTimeline) {
		t.Fatalf("err = %v, want ErrEmptyTimeline", err)
	}

	// Validation failed before any session row was written.
	exports, err := h.repo.ListExports(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(exports) != 0 {
		t.Fatalf("got %d sessions, want 0", len(exports))
	}
}

func TestExport_Succeeds(t *testing.T) {
	h := newHarness(t)
	img := writeTestImage(t, h.dir)

	var mu sync.Mutex
	var stages []string
	h.exp.Subscribe(func(stage string, percent int) {
		mu.Lock()
		defer mu.Unlock()
		if len(stages) == 0 || stages[len(stages)-1] != stage {
			stages = append(stages, stage)
		}
		if percent < 0 || percent > 100 {
			t.Errorf("percent %d out of range", percent)
		}
	})

	tl := timeline.Timeline{
		{Kind: timeline.KindImage, Source: img, Start: 0, Duration: 0.2},
	}
	exp, err := h.exp.Start(context.Background(), tl, Options{Title: "Summer Sale Ad"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.exp.Wait()

	got, err := h.repo.GetExport(context.Background(), exp.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != session.StatusComplete {
		t.Fatalf("status = %s (%s), want complete", got.Status, got.Error)
	}
	if got.Progress != 100 || got.Stage != session.StageFinalize {
		t.Errorf("progress/stage = %d/%s, want 100/finalize", got.Progress, got.Stage)
	}
	if got.ArtifactPath == "" {
		t.Error("artifact path not recorded")
	}
	if filepath.Base(got.ArtifactPath)[:14] != "summer-sale-ad" {
		t.Errorf("artifact name %s not slugged from title", filepath.Base(got.ArtifactPath))
	}

	// ceil(0.2s * 30fps) frames, strictly increasing PTS, full lifecycle.
	if h.enc.frames != 6 {
		t.Errorf("frames = %d, want 6", h.enc.frames)
	}
	if h.enc.orderBroke {
		t.Error("frame PTS not strictly increasing")
	}
	if !h.enc.flushed || !h.enc.finalized || !h.enc.closed {
		t.Errorf("lifecycle = flush:%v finalize:%v close:%v", h.enc.flushed, h.enc.finalized, h.enc.closed)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{session.StageInit, session.StagePrepare, session.StageRender, session.StageFlush, session.StageMux, session.StageFinalize}
	if len(stages) != len(want) {
		t.Fatalf("stages = %v, want %v", stages, want)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Fatalf("stage[%d] = %s, want %s", i, stages[i], want[i])
		}
	}
}

func TestExport_SecondStartIsBusy(t *testing.T) {
	h := newHarness(t)
	img := writeTestImage(t, h.dir)

	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	h.enc.onFrame = func(n int) {
		once.Do(func() { close(started) })
		<-release
	}

	tl := timeline.Timeline{
		{Kind: timeline.KindImage, Source: img, Start: 0, Duration: 1},
	}
	if _, err := h.exp.Start(context.Background(), tl, Options{Title: "one"}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-started

	if _, err := h.exp.Start(context.Background(), tl, Options{Title: "two"}); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Start err = %v, want ErrBusy", err)
	}

	close(release)
	h.exp.Wait()

	// The slot frees up once the first session finishes.
	if _, err := h.exp.Start(context.Background(), tl, Options{Title: "three"}); err != nil {
		t.Fatalf("Start after completion: %v", err)
	}
	h.exp.Wait()
}

func TestExport_CancelRemovesPartialArtifact(t *testing.T) {
	h := newHarness(t)
	img := writeTestImage(t, h.dir)

	h.enc.onFrame = func(n int) {
		if n == 2 {
			h.exp.Cancel()
		}
	}

	tl := timeline.Timeline{
		{Kind: timeline.KindImage, Source: img, Start: 0, Duration: 2},
	}
	exp, err := h.exp.Start(context.Background(), tl, Options{Title: "canceled ad"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.exp.Wait()

	got, err := h.repo.GetExport(context.Background(), exp.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != session.StatusCanceled {
		t.Fatalf("status = %s, want canceled", got.Status)
	}
	if h.enc.frames >= 60 {
		t.Errorf("encoded %d frames after cancel, want early stop", h.enc.frames)
	}
	if !h.enc.closed {
		t.Error("encoder not closed on cancel")
	}
	if _, err := os.Stat(h.enc.opts.OutputPath); !os.IsNotExist(err) {
		t.Errorf("partial artifact %s still exists", h.enc.opts.OutputPath)
	}
}

func TestExport_EncoderConfigureFailure(t *testing.T) {
	h := newHarness(t)
	img := writeTestImage(t, h.dir)
	h.enc.configErr = errors.New("no encoder available")

	tl := timeline.Timeline{
		{Kind: timeline.KindImage, Source: img, Start: 0, Duration: 0.5},
	}
	exp, err := h.exp.Start(context.Background(), tl, Options{Title: "broken"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.exp.Wait()

	got, err := h.repo.GetExport(context.Background(), exp.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != session.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.Error == "" {
		t.Error("failure reason not recorded")
	}
}

func TestExport_InvalidOptions(t *testing.T) {
	h := newHarness(t)
	img := writeTestImage(t, h.dir)

	tl := timeline.Timeline{
		{Kind: timeline.KindImage, Source: img, Start: 0, Duration: 1},
	}
	if _, err := h.exp.Start(context.Background(), tl, Options{Title: "x", Format: "mov"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}

	if _, active := h.exp.Active(); active {
		t.Fatal("session should not be active")
	}
}

func TestExport_MissingSourceFailsInInit(t *testing.T) {
	h := newHarness(t)

	tl := timeline.Timeline{
		{Kind: timeline.KindImage, Source: "/nope/missing.png", Start: 0, Duration: 1},
	}
	exp, err := h.exp.Start(context.Background(), tl, Options{Title: "x"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	h.exp.Wait()

	got, err := h.repo.GetExport(context.Background(), exp.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != session.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if h.enc.frames != 0 {
		t.Errorf("encoded %d frames, want 0", h.enc.frames)
	}
}
