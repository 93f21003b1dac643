package artifact

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	dataDir := t.TempDir()
	s, err := NewStore(filepath.Join(dataDir, "exports"), filepath.Join(dataDir, "bundles"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Summer Sale Ad", "summer-sale-ad"},
		{"  Weird -- Spacing  ", "weird-spacing"},
		{"Émoji 🎥 Title!", "moji-title"},
		{"", "untitled"},
		{"!!!", "untitled"},
	}
	for _, tc := range tests {
		if got := Slug(tc.in); got != tc.want {
			t.Errorf("Slug(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExportPath_Deterministic(t *testing.T) {
	s := testStore(t)
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	got := s.ExportPath("Summer Sale Ad", "mp4", at)
	if filepath.Base(got) != "summer-sale-ad-20260314T092653Z.mp4" {
		t.Fatalf("path = %s", got)
	}
}

func TestFetch_LocalPassthrough(t *testing.T) {
	s := testStore(t)

	local := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(local, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := s.Fetch(context.Background(), local)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got != local {
		t.Fatalf("got %s, want passthrough %s", got, local)
	}
}

func TestFetch_MissingLocal(t *testing.T) {
	s := testStore(t)
	if _, err := s.Fetch(context.Background(), "/nope/missing.mp4"); err == nil {
		t.Fatal("expected error")
	}
}

func TestFetch_RemoteCachesOnce(t *testing.T) {
	s := testStore(t)

	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte("remote-bytes"))
	}))
	defer srv.Close()

	url := srv.URL + "/asset.mp3?token=secret"

	p1, err := s.Fetch(context.Background(), url)
	if err != nil {
		t.Fatalf("first Fetch: %v", err)
	}
	p2, err := s.Fetch(context.Background(), url)
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}

	if p1 != p2 {
		t.Errorf("cache paths differ: %s vs %s", p1, p2)
	}
	if hits != 1 {
		t.Errorf("server hits = %d, want 1", hits)
	}

	data, err := os.ReadFile(p1)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "remote-bytes" {
		t.Errorf("cached content = %q", data)
	}
	if !strings.HasSuffix(p1, ".mp3") {
		t.Errorf("cache file %s should keep the extension", p1)
	}
}

func TestFetch_RemoteServerError(t *testing.T) {
	s := testStore(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := s.Fetch(context.Background(), srv.URL+"/missing.mp4"); err == nil {
		t.Fatal("expected error")
	}
}

func TestSanitizeURL(t *testing.T) {
	got := SanitizeURL("https://cdn.example.com/a.mp4?X-Signature=abc")
	if got != "https://cdn.example.com/a.mp4" {
		t.Errorf("got %s", got)
	}
}
