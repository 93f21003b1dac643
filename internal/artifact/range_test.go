package artifact

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		size    int64
		want    *Range
		wantErr error
	}{
		{name: "no header", header: "", size: 100, want: nil},
		{name: "full range", header: "bytes=0-99", size: 100, want: &Range{0, 99}},
		{name: "open end", header: "bytes=50-", size: 100, want: &Range{50, 99}},
		{name: "suffix", header: "bytes=-10", size: 100, want: &Range{90, 99}},
		{name: "end clamped", header: "bytes=0-1000", size: 100, want: &Range{0, 99}},
		{name: "multi takes first", header: "bytes=0-9,20-29", size: 100, want: &Range{0, 9}},
		{name: "start past size", header: "bytes=100-", size: 100, wantErr: ErrUnsatisfiable},
		{name: "inverted", header: "bytes=9-5", size: 100, wantErr: ErrUnsatisfiable},
		{name: "not bytes", header: "lines=0-5", size: 100, wantErr: ErrInvalidRange},
		{name: "garbage", header: "bytes=abc", size: 100, wantErr: ErrInvalidRange},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseRange(tc.header, tc.size)
			if tc.wantErr != nil {
				if err != tc.wantErr {
					t.Fatalf("err = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("err = %v", err)
			}
			if tc.want == nil {
				if got != nil {
					t.Fatalf("got %+v, want nil", got)
				}
				return
			}
			if got == nil || *got != *tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestServeFile_Range(t *testing.T) {
	dataDir := t.TempDir()
	s, err := NewStore(filepath.Join(dataDir, "exports"), filepath.Join(dataDir, "bundles"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dataDir, "out.mp4")
	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("GET", "/artifact", nil)
	req.Header.Set("Range", "bytes=2-5")
	rec := httptest.NewRecorder()

	if err := s.ServeFile(rec, req, path); err != nil {
		t.Fatalf("ServeFile: %v", err)
	}

	if rec.Code != 206 {
		t.Fatalf("status = %d, want 206", rec.Code)
	}
	if got := rec.Body.String(); got != "2345" {
		t.Fatalf("body = %q, want 2345", got)
	}
	if cr := rec.Header().Get("Content-Range"); cr != "bytes 2-5/10" {
		t.Fatalf("Content-Range = %s", cr)
	}
}

func TestServeFile_FullAndMissing(t *testing.T) {
	dataDir := t.TempDir()
	s, err := NewStore(filepath.Join(dataDir, "exports"), filepath.Join(dataDir, "bundles"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dataDir, "out.mp4")
	if err := os.WriteFile(path, []byte("abcdef"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	if err := s.ServeFile(rec, httptest.NewRequest("GET", "/artifact", nil), path); err != nil {
		t.Fatalf("ServeFile: %v", err)
	}
	if rec.Code != 200 || rec.Body.String() != "abcdef" {
		t.Fatalf("status=%d body=%q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	if err := s.ServeFile(rec, httptest.NewRequest("GET", "/artifact", nil), filepath.Join(dataDir, "missing.mp4")); err != nil {
		t.Fatalf("ServeFile missing: %v", err)
	}
	if rec.Code != 404 {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
