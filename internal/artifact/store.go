// Package artifact manages the files the pipelines produce and consume:
// finished exports, bundle archives, and a local cache of remote media
// sources. It also serves artifacts over HTTP with range support so the
// player can seek.
package artifact

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// Store roots all artifact paths under the agent data directory:
// exports/ for finished videos, bundles/<id>/ for asset bundles, and
// cache/ for fetched remote sources.
type Store struct {
	exportsDir string
	bundlesDir string
	cacheDir   string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewStore(exportsDir, bundlesDir string, logger *slog.Logger) (*Store, error) {
	cacheDir := filepath.Join(filepath.Dir(exportsDir), "cache")
	for _, dir := range []string{exportsDir, bundlesDir, cacheDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create artifact dir %s: %w", dir, err)
		}
	}
	return &Store{
		exportsDir: exportsDir,
		bundlesDir: bundlesDir,
		cacheDir:   cacheDir,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
	}, nil
}

// ExportPath builds the deterministic artifact path for one export:
// slug(title)-<timestamp>.<ext>.
func (s *Store) ExportPath(title, ext string, at time.Time) string {
	name := fmt.Sprintf("%s-%s.%s", Slug(title), at.UTC().Format("20060102T150405Z"), ext)
	return filepath.Join(s.exportsDir, name)
}

// SceneDir returns (and creates) the working directory for one scene of a
// bundle.
func (s *Store) SceneDir(bundleID string, sceneIndex int) (string, error) {
	dir := filepath.Join(s.bundlesDir, bundleID, fmt.Sprintf("scene-%d", sceneIndex+1))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create scene dir: %w", err)
	}
	return dir, nil
}

// BundleDir returns (and creates) the root directory of one bundle.
func (s *Store) BundleDir(bundleID string) (string, error) {
	dir := filepath.Join(s.bundlesDir, bundleID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create bundle dir: %w", err)
	}
	return dir, nil
}

// SceneArchivePath is where a scene's per-scene zip lands once built. The
// file may not exist yet; callers check.
func (s *Store) SceneArchivePath(bundleID string, sceneIndex int) string {
	return filepath.Join(s.bundlesDir, bundleID, fmt.Sprintf("scene-%d.zip", sceneIndex+1))
}

// BundleArchivePath is where the project-wide archive of a bundle lands,
// next to the bundle directory so the archive never nests inside itself.
func (s *Store) BundleArchivePath(bundleID string) string {
	return filepath.Join(s.bundlesDir, bundleID+".zip")
}

// WorkDir returns (and creates) a scratch directory for intermediate encode
// products of one export.
func (s *Store) WorkDir(exportID string) (string, error) {
	dir := filepath.Join(s.exportsDir, ".work", exportID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	return dir, nil
}

// CleanWorkDir removes the scratch directory of one export.
func (s *Store) CleanWorkDir(exportID string) {
	os.RemoveAll(filepath.Join(s.exportsDir, ".work", exportID))
}

// Fetch materializes a source as a local file. Local paths pass through
// untouched; http(s) URLs are downloaded into the cache once and reused.
func (s *Store) Fetch(ctx context.Context, source string) (string, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		if _, err := os.Stat(source); err != nil {
			return "", fmt.Errorf("source not found: %s", source)
		}
		return source, nil
	}

	cached := filepath.Join(s.cacheDir, cacheKey(source))
	if _, err := os.Stat(cached); err == nil {
		return cached, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return "", fmt.Errorf("create fetch request: %w", err)
	}

	s.logger.Info("fetching remote source", "url", SanitizeURL(source))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", SanitizeURL(source), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: HTTP %d", SanitizeURL(source), resp.StatusCode)
	}

	tmp := cached + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create cache file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("download %s: %w", SanitizeURL(source), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp, cached); err != nil {
		return "", fmt.Errorf("commit cache file: %w", err)
	}
	return cached, nil
}

// Slug reduces a title to a lowercase ASCII filename stem.
func Slug(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case unicode.IsSpace(r), r == '-', r == '_', r == '.':
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	out := strings.TrimSuffix(b.String(), "-")
	if out == "" {
		return "untitled"
	}
	if len(out) > 64 {
		out = out[:64]
	}
	return out
}

// SanitizeURL strips query parameters, which often carry signed tokens.
func SanitizeURL(u string) string {
	if idx := strings.Index(u, "?"); idx != -1 {
		return u[:idx]
	}
	return u
}

func cacheKey(url string) string {
	h := fnv.New64a()
	h.Write([]byte(url))
	ext := filepath.Ext(SanitizeURL(url))
	if len(ext) > 8 {
		ext = ""
	}
	return fmt.Sprintf("%016x%s", h.Sum64(), ext)
}
