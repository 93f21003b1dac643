// Package config provides configuration management for the advideo agent.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	// Default values
	DefaultPort     = 8765
	DefaultLogLevel = "info"
	DefaultDataDir  = ".advideo"

	// Environment variable names
	EnvPort     = "ADVIDEO_PORT"
	EnvLogLevel = "ADVIDEO_LOG_LEVEL"
	EnvDataDir  = "ADVIDEO_DATA_DIR"

	// Media tooling environment variable names
	EnvFFmpegPath  = "ADVIDEO_FFMPEG_PATH"
	EnvFFprobePath = "ADVIDEO_FFPROBE_PATH"

	// Generation provider environment variable names
	EnvSpeechAPIKey  = "ADVIDEO_SPEECH_API_KEY"
	EnvSpeechBaseURL = "ADVIDEO_SPEECH_BASE_URL"
	EnvMusicAPIKey   = "ADVIDEO_MUSIC_API_KEY"
	EnvMusicBaseURL  = "ADVIDEO_MUSIC_BASE_URL"

	// Database filename
	DBFilename = "advideo.db"

	// Generation defaults. Voiceover synthesis is usually quick; music
	// generation providers can queue for a long time before rendering.
	DefaultSpeechTimeout = 600 // seconds (10 minutes)
	DefaultMusicTimeout  = 900 // seconds (15 minutes)

	DefaultSpeechBaseURL = "https://api.elevenlabs.io"
	DefaultMusicBaseURL  = "https://api.aimlapi.com"
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	ExportsDir() string
	BundlesDir() string
	FFmpegPath() string
	FFprobePath() string
	SpeechAPIKey() string
	SpeechBaseURL() string
	MusicAPIKey() string
	MusicBaseURL() string
	SpeechTimeout() time.Duration
	MusicTimeout() time.Duration
	Headless() bool
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string
	headless bool

	ffmpegPath  string
	ffprobePath string

	speechAPIKey  string
	speechBaseURL string
	musicAPIKey   string
	musicBaseURL  string
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:     DefaultPort,
		logLevel: DefaultLogLevel,
		dataDir:  defaultDataDir(),
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	// Override log level from environment
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	// Override data directory from environment
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	if h := os.Getenv("ADVIDEO_HEADLESS"); h == "1" || h == "true" {
		cfg.headless = true
	}

	cfg.ffmpegPath = os.Getenv(EnvFFmpegPath)
	cfg.ffprobePath = os.Getenv(EnvFFprobePath)

	cfg.speechAPIKey = os.Getenv(EnvSpeechAPIKey)
	cfg.musicAPIKey = os.Getenv(EnvMusicAPIKey)
	cfg.speechBaseURL = os.Getenv(EnvSpeechBaseURL)
	cfg.musicBaseURL = os.Getenv(EnvMusicBaseURL)

	return cfg, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// ExportsDir returns the directory where finished video artifacts land
func (c *EnvConfig) ExportsDir() string {
	return filepath.Join(c.dataDir, "exports")
}

// BundlesDir returns the directory where per-scene bundle archives land
func (c *EnvConfig) BundlesDir() string {
	return filepath.Join(c.dataDir, "bundles")
}

func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

func (c *EnvConfig) FFprobePath() string {
	return c.ffprobePath
}

func (c *EnvConfig) SpeechAPIKey() string {
	return c.speechAPIKey
}

func (c *EnvConfig) SpeechBaseURL() string {
	if c.speechBaseURL != "" {
		return c.speechBaseURL
	}
	return DefaultSpeechBaseURL
}

func (c *EnvConfig) MusicAPIKey() string {
	return c.musicAPIKey
}

func (c *EnvConfig) MusicBaseURL() string {
	if c.musicBaseURL != "" {
		return c.musicBaseURL
	}
	return DefaultMusicBaseURL
}

func (c *EnvConfig) SpeechTimeout() time.Duration {
	return time.Duration(DefaultSpeechTimeout) * time.Second
}

func (c *EnvConfig) MusicTimeout() time.Duration {
	return time.Duration(DefaultMusicTimeout) * time.Second
}

func (c *EnvConfig) Headless() bool {
	return c.headless
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
