package bundle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Farooqbasha008/advideo/internal/artifact"
	"github.com/Farooqbasha008/advideo/internal/generation"
	"github.com/Farooqbasha008/advideo/internal/session"
)

// ErrBusy is returned when a bundle export is already running.
var ErrBusy = errors.New("a bundle export is already in progress")

// Observer receives slot status changes.
type Observer func(Event)

type slot struct {
	status    string
	url       string
	localPath string
	errMsg    string
	// attempted marks a slot that was generated or errored during this
	// run, as opposed to pre-seeded from a known URL.
	attempted bool
}

type sceneState struct {
	scene Scene
	slots map[string]*slot
	dir   string
}

// Exporter runs at most one bundle export at a time. Scenes are processed
// strictly sequentially; inside a scene the slot order is visual (video
// preferred over preview image), voiceover, music. Every failure is isolated
// to its slot.
type Exporter struct {
	store  *artifact.Store
	repo   session.Repository
	speech generation.Generator
	music  generation.Generator
	logger *slog.Logger

	mu        sync.Mutex
	active    bool
	activeID  string
	observers []Observer
	wg        sync.WaitGroup
}

func New(store *artifact.Store, repo session.Repository, speech, music generation.Generator, logger *slog.Logger) *Exporter {
	return &Exporter{
		store:  store,
		repo:   repo,
		speech: speech,
		music:  music,
		logger: logger,
	}
}

func (e *Exporter) Subscribe(obs Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, obs)
}

// Active reports whether a bundle run is in progress.
func (e *Exporter) Active() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeID, e.active
}

// Wait blocks until the running bundle, if any, has finished.
func (e *Exporter) Wait() {
	e.wg.Wait()
}

// Run validates the project, creates the bundle session and processes it in
// the background.
func (e *Exporter) Run(ctx context.Context, project Project) (*session.Bundle, error) {
	if err := project.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.active {
		e.mu.Unlock()
		return nil, ErrBusy
	}
	e.active = true
	e.mu.Unlock()

	now := time.Now().UTC()
	b := &session.Bundle{
		ID:         session.NewID(),
		ProjectID:  project.ID,
		Title:      project.Title,
		Status:     session.StatusRunning,
		SceneCount: len(project.Scenes),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.repo.CreateBundle(ctx, b); err != nil {
		e.mu.Lock()
		e.active = false
		e.mu.Unlock()
		return nil, fmt.Errorf("persist bundle: %w", err)
	}

	e.mu.Lock()
	e.activeID = b.ID
	e.mu.Unlock()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(context.WithoutCancel(ctx), project, b)
		e.mu.Lock()
		e.active = false
		e.activeID = ""
		e.mu.Unlock()
	}()

	return b, nil
}

func (e *Exporter) run(ctx context.Context, project Project, b *session.Bundle) {
	log := e.logger.With("bundle_id", b.ID, "project_id", project.ID)
	started := time.Now()

	scenes, err := e.seed(ctx, project, b)
	if err != nil {
		log.Error("bundle seeding failed", "error", err)
		e.repo.UpdateBundleStatus(ctx, b.ID, session.StatusFailed, err.Error())
		return
	}

	for i := range scenes {
		e.processScene(ctx, b, scenes, i, log)

		if zipPath, err := buildSceneZip(scenes[i]); err != nil {
			log.Warn("scene zip failed", "scene", i, "error", err)
		} else if zipPath != "" {
			log.Info("scene packaged", "scene", i, "zip", zipPath)
		}
	}

	if downloadable(scenes) {
		archive, err := e.buildProjectZip(project, b, scenes)
		if err != nil {
			log.Error("project archive failed", "error", err)
			e.repo.UpdateBundleStatus(ctx, b.ID, session.StatusFailed, err.Error())
			return
		}
		e.repo.SetBundleArchive(ctx, b.ID, archive)
	} else {
		log.Warn("bundle not downloadable, no archive built")
	}

	e.repo.UpdateBundleStatus(ctx, b.ID, session.StatusComplete, "")
	log.Info("bundle complete",
		"scenes", len(scenes),
		"duration_ms", time.Since(started).Milliseconds(),
	)
}

// seed creates every slot: completed when its URL is already known, pending
// otherwise. Every slot is persisted and published before any processing.
func (e *Exporter) seed(ctx context.Context, project Project, b *session.Bundle) ([]*sceneState, error) {
	scenes := make([]*sceneState, len(project.Scenes))
	for i, sc := range project.Scenes {
		dir, err := e.store.SceneDir(b.ID, i)
		if err != nil {
			return nil, err
		}

		urls := map[string]string{
			session.AssetPreview:   sc.PreviewURL,
			session.AssetVideo:     sc.VideoURL,
			session.AssetVoiceover: sc.VoiceoverURL,
			session.AssetMusic:     sc.MusicURL,
		}
		st := &sceneState{scene: sc, dir: dir, slots: make(map[string]*slot)}
		for _, typ := range session.AssetTypes {
			s := &slot{status: session.AssetPending, url: urls[typ]}
			if s.url != "" {
				s.status = session.AssetCompleted
			}
			st.slots[typ] = s
		}
		scenes[i] = st
	}

	for i := range scenes {
		for _, typ := range session.AssetTypes {
			e.publish(ctx, b, scenes, i, typ)
		}
	}
	return scenes, nil
}

func (e *Exporter) processScene(ctx context.Context, b *session.Bundle, scenes []*sceneState, idx int, log *slog.Logger) {
	st := scenes[idx]

	// Visual slots first, video before the preview image.
	if st.slots[session.AssetVideo].url != "" {
		e.resolveSlot(ctx, b, scenes, idx, session.AssetVideo, "visual.mp4", nil, log)
	}
	if st.slots[session.AssetPreview].url != "" {
		e.resolveSlot(ctx, b, scenes, idx, session.AssetPreview, "visual.jpg", nil, log)
	}

	var genVoice, genMusic func() (string, error)
	if e.speech != nil {
		genVoice = func() (string, error) {
			if st.scene.Script == "" {
				return "", nil
			}
			return e.speech.Generate(ctx, generation.Request{Prompt: st.scene.Script})
		}
	}
	if e.music != nil {
		genMusic = func() (string, error) {
			if st.scene.MusicPrompt == "" {
				return "", nil
			}
			return e.music.Generate(ctx, generation.Request{Prompt: st.scene.MusicPrompt})
		}
	}
	e.resolveSlot(ctx, b, scenes, idx, session.AssetVoiceover, "voiceover.mp3", genVoice, log)
	e.resolveSlot(ctx, b, scenes, idx, session.AssetMusic, "bgmusic.mp3", genMusic, log)
}

// resolveSlot materializes one slot: a known URL is fetched; otherwise the
// generator, when given, produces one first. A slot with no URL and nothing
// to generate from stays pending.
func (e *Exporter) resolveSlot(ctx context.Context, b *session.Bundle, scenes []*sceneState, idx int, typ, filename string, generate func() (string, error), log *slog.Logger) {
	st := scenes[idx]
	s := st.slots[typ]

	fail := func(what string, err error) {
		log.Warn("asset slot failed, run continues",
			"scene", idx, "asset", typ, "step", what, "error", err)
		s.status = session.AssetError
		s.errMsg = err.Error()
		s.attempted = true
		e.publish(ctx, b, scenes, idx, typ)
	}

	if s.url == "" {
		if generate == nil {
			return
		}
		s.status = session.AssetProcessing
		e.publish(ctx, b, scenes, idx, typ)

		url, err := generate()
		if err != nil {
			fail("generate", err)
			return
		}
		if url == "" {
			s.status = session.AssetPending
			e.publish(ctx, b, scenes, idx, typ)
			return
		}
		s.url = url
		s.attempted = true
	}

	local, err := e.store.Fetch(ctx, s.url)
	if err != nil {
		fail("fetch", err)
		return
	}

	dst := filepath.Join(st.dir, filename)
	if err := copyFile(local, dst); err != nil {
		fail("copy", err)
		return
	}

	s.localPath = dst
	s.status = session.AssetCompleted
	e.publish(ctx, b, scenes, idx, typ)
}

// publish persists one slot, notifies observers and refreshes the overall
// percentage, in that order, after every status change.
func (e *Exporter) publish(ctx context.Context, b *session.Bundle, scenes []*sceneState, idx int, typ string) {
	s := scenes[idx].slots[typ]

	if err := e.repo.UpsertSceneAsset(ctx, &session.SceneAsset{
		BundleID:   b.ID,
		SceneIndex: idx,
		Type:       typ,
		Status:     s.status,
		URL:        artifact.SanitizeURL(s.url),
		Error:      s.errMsg,
	}); err != nil {
		e.logger.Warn("failed to persist scene asset", "error", err)
	}

	e.notify(Event{SceneIndex: idx, AssetType: typ, Status: s.status})

	completed := 0
	for _, st := range scenes {
		for _, sl := range st.slots {
			if sl.status == session.AssetCompleted {
				completed++
			}
		}
	}
	percent := completed * 100 / (b.SceneCount * len(session.AssetTypes))
	if err := e.repo.UpdateBundleProgress(ctx, b.ID, percent); err != nil {
		e.logger.Warn("failed to persist bundle progress", "error", err)
	}
}

func (e *Exporter) notify(ev Event) {
	e.mu.Lock()
	observers := make([]Observer, len(e.observers))
	copy(observers, e.observers)
	e.mu.Unlock()

	for _, obs := range observers {
		obs(ev)
	}
}

// sceneDownloadable reports whether one scene's bundle is worth serving: at
// least one slot completed, and at least one slot actually attempted this
// run rather than every slot sitting pending or pre-seeded.
func sceneDownloadable(st *sceneState) bool {
	anyCompleted := false
	anyAttempted := false
	for _, s := range st.slots {
		if s.status == session.AssetCompleted {
			anyCompleted = true
		}
		if s.attempted {
			anyAttempted = true
		}
	}
	return anyCompleted && anyAttempted
}

// downloadable applies the same rule across the whole bundle.
func downloadable(scenes []*sceneState) bool {
	anyCompleted := false
	anyAttempted := false
	for _, st := range scenes {
		for _, s := range st.slots {
			if s.status == session.AssetCompleted {
				anyCompleted = true
			}
			if s.attempted {
				anyAttempted = true
			}
		}
	}
	return anyCompleted && anyAttempted
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
