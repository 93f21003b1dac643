package encoder

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"log/slog"
	"os"
	"strings"

	"github.com/icza/mjpeg"

	"github.com/Farooqbasha008/advideo/internal/compositor"
)

// FallbackEncoder produces output without ffmpeg: Motion JPEG in an AVI
// container, or an animated GIF when that format was requested. Audio is
// dropped since neither container path can carry the mixed track in process.
type FallbackEncoder struct {
	opts   Options
	logger *slog.Logger

	avi        mjpeg.AviWriter
	gifFrames  []*image.Paletted
	outPath    string
	lastPTS    int64
	frameCount int
	configured bool
	closed     bool
}

func NewFallback(opts Options, logger *slog.Logger) *FallbackEncoder {
	return &FallbackEncoder{
		opts:    opts,
		logger:  logger,
		lastPTS: -1,
	}
}

func (e *FallbackEncoder) Name() string {
	if e.opts.Format == FormatGIF {
		return "gif-inprocess"
	}
	return "mjpeg-inprocess"
}

func (e *FallbackEncoder) Configure(ctx context.Context) error {
	if e.configured {
		return fmt.Errorf("encoder already configured")
	}

	width, height := e.opts.Size()
	e.outPath = e.opts.OutputPath

	if e.opts.Format == FormatGIF {
		e.configured = true
		return nil
	}

	// An MP4 or WebM request degrades to MJPEG AVI; the artifact keeps a
	// truthful extension.
	if !strings.HasSuffix(e.outPath, ".avi") {
		e.outPath = strings.TrimSuffix(e.outPath, "."+e.opts.Format) + ".avi"
	}

	aw, err := mjpeg.New(e.outPath, int32(width), int32(height), FPS)
	if err != nil {
		return fmt.Errorf("create avi writer: %w", err)
	}
	e.avi = aw
	e.configured = true

	if e.opts.AudioPath != "" {
		e.logger.Warn("in-process encoder cannot mux audio, track dropped",
			"audio", e.opts.AudioPath,
		)
	}
	e.logger.Info("in-process encoder configured",
		"encoder", e.Name(),
		"output", e.outPath,
	)
	return nil
}

func (e *FallbackEncoder) EncodeFrame(frame *compositor.Frame) error {
	if !e.configured || e.closed {
		return fmt.Errorf("encoder not running")
	}
	if frame.PTS <= e.lastPTS {
		return fmt.Errorf("frame PTS %d not after previous %d", frame.PTS, e.lastPTS)
	}

	if e.opts.Format == FormatGIF {
		bounds := frame.RGBA.Bounds()
		pal := image.NewPaletted(bounds, defaultGIFPalette)
		draw.FloydSteinberg.Draw(pal, bounds, frame.RGBA, bounds.Min)
		e.gifFrames = append(e.gifFrames, pal)
	} else {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, frame.RGBA, &jpeg.Options{Quality: jpegQuality(e.opts.Quality)}); err != nil {
			return fmt.Errorf("encode jpeg frame %d: %w", e.frameCount, err)
		}
		if err := e.avi.AddFrame(buf.Bytes()); err != nil {
			return fmt.Errorf("add avi frame %d: %w", e.frameCount, err)
		}
	}

	e.lastPTS = frame.PTS
	e.frameCount++
	return nil
}

func (e *FallbackEncoder) Flush(ctx context.Context) error {
	if !e.configured || e.closed {
		return fmt.Errorf("encoder not running")
	}
	return nil
}

func (e *FallbackEncoder) Finalize(ctx context.Context) (string, error) {
	if !e.configured || e.closed {
		return "", fmt.Errorf("encoder not running")
	}

	if e.opts.Format == FormatGIF {
		if err := e.writeGIF(); err != nil {
			return "", err
		}
	} else {
		if err := e.avi.Close(); err != nil {
			return "", fmt.Errorf("close avi: %w", err)
		}
		e.avi = nil
	}

	e.closed = true
	e.logger.Info("in-process encode complete",
		"frames", e.frameCount,
		"output", e.outPath,
	)
	return e.outPath, nil
}

func (e *FallbackEncoder) Close() {
	if e.closed {
		return
	}
	e.closed = true
	if e.avi != nil {
		e.avi.Close()
		os.Remove(e.outPath)
	}
}

func (e *FallbackEncoder) writeGIF() error {
	if len(e.gifFrames) == 0 {
		return fmt.Errorf("no frames to write")
	}

	anim := &gif.GIF{LoopCount: 0}
	// GIF delays are in hundredths of a second; 30fps rounds to 3.
	delay := 100 / FPS
	for _, fr := range e.gifFrames {
		anim.Image = append(anim.Image, fr)
		anim.Delay = append(anim.Delay, delay)
	}

	f, err := os.Create(e.outPath)
	if err != nil {
		return fmt.Errorf("create gif: %w", err)
	}
	defer f.Close()

	if err := gif.EncodeAll(f, anim); err != nil {
		return fmt.Errorf("encode gif: %w", err)
	}
	return nil
}

func jpegQuality(quality string) int {
	switch quality {
	case QualityHigh:
		return 90
	case QualityDraft:
		return 60
	default:
		return 80
	}
}

// defaultGIFPalette is a 6x6x6 color cube plus a grayscale ramp, built once.
var defaultGIFPalette = buildGIFPalette()

func buildGIFPalette() color.Palette {
	pal := make(color.Palette, 0, 256)
	for r := 0; r < 6; r++ {
		for g := 0; g < 6; g++ {
			for b := 0; b < 6; b++ {
				pal = append(pal, color.RGBA{
					R: uint8(r * 51),
					G: uint8(g * 51),
					B: uint8(b * 51),
					A: 255,
				})
			}
		}
	}
	for i := 0; i < 40; i++ {
		v := uint8(i * 255 / 39)
		pal = append(pal, color.RGBA{R: v, G: v, B: v, A: 255})
	}
	return pal
}
