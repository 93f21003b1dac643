package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Farooqbasha008/advideo/internal/api"
	"github.com/Farooqbasha008/advideo/internal/artifact"
	"github.com/Farooqbasha008/advideo/internal/audio"
	"github.com/Farooqbasha008/advideo/internal/bundle"
	"github.com/Farooqbasha008/advideo/internal/config"
	"github.com/Farooqbasha008/advideo/internal/db"
	"github.com/Farooqbasha008/advideo/internal/exporter"
	"github.com/Farooqbasha008/advideo/internal/ffmpeg"
	"github.com/Farooqbasha008/advideo/internal/generation"
	"github.com/Farooqbasha008/advideo/internal/logging"
	"github.com/Farooqbasha008/advideo/internal/session"
	"github.com/Farooqbasha008/advideo/internal/ui"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting advideo agent", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := session.NewRepository(database.Conn())

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                   ADVIDEO AGENT v%-8s                 ║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	store, err := artifact.NewStore(cfg.ExportsDir(), cfg.BundlesDir(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize artifact store: %w", err)
	}

	// ffmpeg is optional. Without it exports degrade to the in-process
	// encoder and timelines with video or audio items are rejected.
	var runner *ffmpeg.Runner
	var doctor *ffmpeg.Doctor
	var mixer *audio.Mixer

	bin, err := ffmpeg.Resolve(cfg.FFmpegPath(), cfg.FFprobePath())
	if err != nil {
		logger.Warn("ffmpeg unavailable, using in-process encoder", "error", err)
	} else {
		runner = ffmpeg.NewRunner(bin, logger)
		doctor = ffmpeg.NewDoctor(runner)
		mixer = audio.NewMixer(runner, logger)

		probeCtx, probeCancel := context.WithTimeout(context.Background(), 20*time.Second)
		if caps, err := doctor.Get(probeCtx); err != nil {
			logger.Warn("initial encoder probe failed", "error", err)
		} else {
			logger.Info("encoder capabilities detected",
				"hardware_h264", caps.HardwareH264,
				"libx264", caps.HasLibx264,
				"libvpx", caps.HasLibvpx,
			)
		}
		probeCancel()
	}

	exp := exporter.New(mixer, runner, doctor, store, repo, logger)

	speech, music := buildGenerators(cfg, logger)
	bundler := bundle.New(store, repo, speech, music, logger)

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Exporter:   exp,
		Bundler:    bundler,
		Repository: repo,
		Store:      store,
		Doctor:     doctor,
		Logger:     logger,
		StartTime:  startTime,
		Version:    config.Version,
	})

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			Exporter: exp,
			Bundler:  bundler,
			Logger:   logger,
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")

	exp.Cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	// Sessions persist their final status before the database closes.
	exp.Wait()
	bundler.Wait()

	logger.Info("shutdown complete")
	return nil
}

// buildGenerators wires the speech and music providers. A missing API key
// leaves the generator nil; the bundler then keeps those slots pending
// instead of failing the run.
func buildGenerators(cfg *config.EnvConfig, logger *slog.Logger) (generation.Generator, generation.Generator) {
	var speech, music generation.Generator

	if cfg.SpeechAPIKey() != "" {
		speech = generation.NewSpeechClient(cfg.SpeechBaseURL(), cfg.SpeechAPIKey(), cfg.SpeechTimeout(), logger)
	} else {
		logger.Warn("no speech API key configured, voiceover generation disabled")
		speech = nil
	}

	if cfg.MusicAPIKey() != "" {
		music = generation.NewMusicClient(cfg.MusicBaseURL(), cfg.MusicAPIKey(), cfg.MusicTimeout(), logger)
	} else {
		logger.Warn("no music API key configured, music generation disabled")
		music = nil
	}

	return speech, music
}

func ensureAuthToken(repo session.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, "auth_token")
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, "auth_token", token); err != nil {
		return "", err
	}

	return token, nil
}
