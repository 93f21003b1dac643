// Package compositor renders one visual frame per timestamp from the
// timeline. Active items are painted back-to-front in timeline order with
// opaque overwrite, so a later item occludes an earlier one wherever the
// fitted rectangles overlap.
package compositor

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"log/slog"

	xdraw "golang.org/x/image/draw"

	"github.com/Farooqbasha008/advideo/internal/timeline"
)

// FrameExtractor samples a single decoded video frame at an offset into the
// source. Satisfied by the ffmpeg runner.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, path string, offset float64) (image.Image, error)
}

var background = color.RGBA{0, 0, 0, 255}

// Compositor renders timeline items onto a fixed-resolution canvas.
type Compositor struct {
	width, height int
	extractor     FrameExtractor
	logger        *slog.Logger
	pool          *framePool

	images     map[string]image.Image // decoded still images, keyed by source
	lastSample map[string]videoSample // most recent extracted frame per video
}

type videoSample struct {
	offset float64
	img    image.Image
}

func New(width, height int, extractor FrameExtractor, logger *slog.Logger) *Compositor {
	return &Compositor{
		width:      width,
		height:     height,
		extractor:  extractor,
		logger:     logger,
		pool:       newFramePool(width, height),
		images:     make(map[string]image.Image),
		lastSample: make(map[string]videoSample),
	}
}

// RegisterImage caches a decoded still so repeated frames reuse it.
func (c *Compositor) RegisterImage(source string, img image.Image) {
	c.images[source] = img
}

// RenderFrame composites the visual state at time t. It always succeeds:
// with no active item the frame is opaque black, and an item that fails to
// draw is logged and skipped while the rest of the frame still renders.
// The returned frame must be released by the caller after encoding.
func (c *Compositor) RenderFrame(ctx context.Context, tl timeline.Timeline, t float64) *Frame {
	canvas := c.pool.get()
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{background}, image.Point{}, draw.Src)

	for i, item := range tl.VisualAt(t) {
		if err := c.drawItem(ctx, canvas, item, t-item.Start); err != nil {
			c.logger.Warn("item failed to draw, frame continues without it",
				"source", item.Source, "item_index", i, "t", t, "error", err)
		}
	}

	return &Frame{
		RGBA: canvas,
		PTS:  int64(t * 1_000_000),
		pool: c.pool,
	}
}

func (c *Compositor) drawItem(ctx context.Context, canvas *image.RGBA, item timeline.Item, rel float64) error {
	img, err := c.sample(ctx, item, rel)
	if err != nil {
		return err
	}

	// Letterbox fit: scale to the largest rect that preserves aspect ratio.
	dst := fitRect(img.Bounds(), c.width, c.height)
	xdraw.ApproxBiLinear.Scale(canvas, dst, img, img.Bounds(), xdraw.Src, nil)
	return nil
}

func (c *Compositor) sample(ctx context.Context, item timeline.Item, rel float64) (image.Image, error) {
	if item.Kind == timeline.KindImage {
		if img, ok := c.images[item.Source]; ok {
			return img, nil
		}
		img, err := loadImage(item.Source)
		if err != nil {
			return nil, err
		}
		c.images[item.Source] = img
		return img, nil
	}

	// Video: re-extract only when the wanted offset moved past the cached
	// sample by more than half a frame period.
	if s, ok := c.lastSample[item.Source]; ok && abs(s.offset-rel) < 1.0/60 {
		return s.img, nil
	}

	img, err := c.extractor.ExtractFrame(ctx, item.Source, rel)
	if err != nil {
		return nil, err
	}
	c.lastSample[item.Source] = videoSample{offset: rel, img: img}
	return img, nil
}

// fitRect computes the centered letterbox rectangle for src inside a
// width x height canvas.
func fitRect(src image.Rectangle, width, height int) image.Rectangle {
	sw, sh := src.Dx(), src.Dy()
	if sw == 0 || sh == 0 {
		return image.Rect(0, 0, width, height)
	}

	scale := float64(width) / float64(sw)
	if s := float64(height) / float64(sh); s < scale {
		scale = s
	}

	w := int(float64(sw) * scale)
	h := int(float64(sh) * scale)
	x := (width - w) / 2
	y := (height - h) / 2
	return image.Rect(x, y, x+w, y+h)
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
