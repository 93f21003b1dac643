package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPort_Default(t *testing.T) {
	os.Unsetenv(EnvPort)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("default Port = %d, want %d", cfg.Port(), DefaultPort)
	}
}

func TestPort_FromEnv(t *testing.T) {
	os.Setenv(EnvPort, "9000")
	defer os.Unsetenv(EnvPort)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port())
	}
}

func TestPort_Invalid(t *testing.T) {
	for _, v := range []string{"abc", "0", "70000"} {
		os.Setenv(EnvPort, v)
		if _, err := New(); err == nil {
			t.Errorf("New() with port %q: expected error", v)
		}
	}
	os.Unsetenv(EnvPort)
}

func TestDataDir_DerivedPaths(t *testing.T) {
	os.Setenv(EnvDataDir, "/tmp/advideo-test")
	defer os.Unsetenv(EnvDataDir)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DBPath() != filepath.Join("/tmp/advideo-test", DBFilename) {
		t.Errorf("DBPath = %q", cfg.DBPath())
	}
	if cfg.ExportsDir() != "/tmp/advideo-test/exports" {
		t.Errorf("ExportsDir = %q", cfg.ExportsDir())
	}
	if cfg.BundlesDir() != "/tmp/advideo-test/bundles" {
		t.Errorf("BundlesDir = %q", cfg.BundlesDir())
	}
}

func TestHeadless_FromEnv(t *testing.T) {
	os.Unsetenv("ADVIDEO_HEADLESS")
	cfg, _ := New()
	if cfg.Headless() {
		t.Error("default Headless = true, want false")
	}

	os.Setenv("ADVIDEO_HEADLESS", "1")
	defer os.Unsetenv("ADVIDEO_HEADLESS")
	cfg, _ = New()
	if !cfg.Headless() {
		t.Error("Headless = false with ADVIDEO_HEADLESS=1")
	}
}

func TestProviderBaseURLs_Defaults(t *testing.T) {
	os.Unsetenv(EnvSpeechBaseURL)
	os.Unsetenv(EnvMusicBaseURL)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.SpeechBaseURL() != DefaultSpeechBaseURL {
		t.Errorf("SpeechBaseURL = %q", cfg.SpeechBaseURL())
	}
	if cfg.MusicBaseURL() != DefaultMusicBaseURL {
		t.Errorf("MusicBaseURL = %q", cfg.MusicBaseURL())
	}
	if cfg.SpeechTimeout() != 10*time.Minute {
		t.Errorf("SpeechTimeout = %v", cfg.SpeechTimeout())
	}
	if cfg.MusicTimeout() != 15*time.Minute {
		t.Errorf("MusicTimeout = %v", cfg.MusicTimeout())
	}
}
