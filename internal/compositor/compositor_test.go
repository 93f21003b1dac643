package compositor

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"testing"

	"github.com/Farooqbasha008/advideo/internal/timeline"
)

type fakeExtractor struct {
	frames map[string]image.Image
	calls  int
}

func (e *fakeExtractor) ExtractFrame(_ context.Context, path string, _ float64) (image.Image, error) {
	e.calls++
	img, ok := e.frames[path]
	if !ok {
		return nil, fmt.Errorf("no frames for %s", path)
	}
	return img, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// solid builds a uniform image of the canvas size so fitting is exact.
func solid(w, h int, c color.RGBA) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestRenderFrame_EmptyTimelineIsBlack(t *testing.T) {
	c := New(64, 36, &fakeExtractor{}, discard())

	frame := c.RenderFrame(context.Background(), timeline.Timeline{}, 0)
	defer frame.Release()

	if frame.PTS != 0 {
		t.Fatalf("PTS = %d, want 0", frame.PTS)
	}
	r, g, b, a := frame.RGBA.At(32, 18).RGBA()
	if r != 0 || g != 0 || b != 0 || a != 0xffff {
		t.Fatalf("background pixel = %d,%d,%d,%d, want opaque black", r, g, b, a)
	}
}

func TestRenderFrame_PTSMicroseconds(t *testing.T) {
	c := New(16, 16, &fakeExtractor{}, discard())

	frame := c.RenderFrame(context.Background(), timeline.Timeline{}, 1.5)
	defer frame.Release()

	if frame.PTS != 1_500_000 {
		t.Fatalf("PTS = %d, want 1500000", frame.PTS)
	}
}

func TestRenderFrame_PainterOrder(t *testing.T) {
	red := color.RGBA{255, 0, 0, 255}
	blue := color.RGBA{0, 0, 255, 255}

	c := New(32, 32, &fakeExtractor{}, discard())
	c.RegisterImage("red.png", solid(32, 32, red))
	c.RegisterImage("blue.png", solid(32, 32, blue))

	tl := timeline.Timeline{
		{Kind: timeline.KindImage, Source: "red.png", Start: 0, Duration: 10},
		{Kind: timeline.KindImage, Source: "blue.png", Start: 0, Duration: 10},
	}

	frame := c.RenderFrame(context.Background(), tl, 5)
	defer frame.Release()

	// The later item in timeline order wins the overlap.
	got := frame.RGBA.RGBAAt(16, 16)
	if got != blue {
		t.Fatalf("overlap pixel = %v, want %v (later item paints over earlier)", got, blue)
	}
}

func TestRenderFrame_ItemOutsideIntervalNotDrawn(t *testing.T) {
	red := color.RGBA{255, 0, 0, 255}

	c := New(32, 32, &fakeExtractor{}, discard())
	c.RegisterImage("red.png", solid(32, 32, red))

	tl := timeline.Timeline{
		{Kind: timeline.KindImage, Source: "red.png", Start: 5, Duration: 2},
	}

	frame := c.RenderFrame(context.Background(), tl, 1)
	defer frame.Release()

	got := frame.RGBA.RGBAAt(16, 16)
	if got == red {
		t.Fatal("inactive item was drawn")
	}
}

func TestRenderFrame_FailedItemIsSkipped(t *testing.T) {
	red := color.RGBA{255, 0, 0, 255}

	ext := &fakeExtractor{frames: map[string]image.Image{}} // video always fails
	c := New(32, 32, ext, discard())
	c.RegisterImage("red.png", solid(32, 32, red))

	tl := timeline.Timeline{
		{Kind: timeline.KindImage, Source: "red.png", Start: 0, Duration: 10},
		{Kind: timeline.KindVideo, Source: "broken.mp4", Start: 0, Duration: 10},
	}

	frame := c.RenderFrame(context.Background(), tl, 3)
	defer frame.Release()

	// Frame still renders; the drawable item is present.
	got := frame.RGBA.RGBAAt(16, 16)
	if got != red {
		t.Fatalf("pixel = %v, want %v (failed item must not blank the frame)", got, red)
	}
}

func TestRenderFrame_VideoSampleCache(t *testing.T) {
	green := color.RGBA{0, 255, 0, 255}
	ext := &fakeExtractor{frames: map[string]image.Image{
		"clip.mp4": solid(32, 32, green),
	}}
	c := New(32, 32, ext, discard())

	tl := timeline.Timeline{
		{Kind: timeline.KindVideo, Source: "clip.mp4", Start: 0, Duration: 10},
	}

	// Two renders at the same timestamp hit the extractor once.
	f1 := c.RenderFrame(context.Background(), tl, 1)
	f1.Release()
	f2 := c.RenderFrame(context.Background(), tl, 1)
	f2.Release()

	if ext.calls != 1 {
		t.Fatalf("extractor calls = %d, want 1 (second render should reuse the sample)", ext.calls)
	}

	// A render one frame period later re-extracts.
	f3 := c.RenderFrame(context.Background(), tl, 1+1.0/30)
	f3.Release()
	if ext.calls != 2 {
		t.Fatalf("extractor calls = %d, want 2", ext.calls)
	}
}

func TestFitRect_Letterbox(t *testing.T) {
	tests := []struct {
		name string
		src  image.Rectangle
		want image.Rectangle
	}{
		{name: "exact", src: image.Rect(0, 0, 64, 36), want: image.Rect(0, 0, 64, 36)},
		{name: "wide source pillarboxes top/bottom", src: image.Rect(0, 0, 128, 36), want: image.Rect(0, 0, 64, 18).Add(image.Pt(0, 9))},
		{name: "tall source letterboxes sides", src: image.Rect(0, 0, 36, 36), want: image.Rect(0, 0, 36, 36).Add(image.Pt(14, 0))},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := fitRect(tc.src, 64, 36)
			if got != tc.want {
				t.Fatalf("fitRect(%v) = %v, want %v", tc.src, got, tc.want)
			}
		})
	}
}

func TestFrameRelease_Idempotent(t *testing.T) {
	c := New(8, 8, &fakeExtractor{}, discard())
	frame := c.RenderFrame(context.Background(), timeline.Timeline{}, 0)

	frame.Release()
	frame.Release() // must not panic

	if frame.RGBA != nil {
		t.Fatal("RGBA should be nil after release")
	}
}
