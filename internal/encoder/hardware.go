package encoder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/Farooqbasha008/advideo/internal/compositor"
	"github.com/Farooqbasha008/advideo/internal/ffmpeg"
)

// HardwareEncoder drives a platform H.264 encoder (VideoToolbox, NVENC,
// VAAPI or QSV) through ffmpeg. Raw RGBA frames are piped in presentation
// order; the Annex-B elementary stream coming back is split into chunks and
// buffered until Finalize concatenates them and hands the stream to a
// software mux pass together with the mixed audio.
type HardwareEncoder struct {
	runner      *ffmpeg.Runner
	opts        Options
	encoderName string
	logger      *slog.Logger

	proc    *ffmpeg.Proc
	parser  *annexBParser
	readErr error
	readWG  sync.WaitGroup

	lastPTS    int64
	frameCount int
	configured bool
	closed     bool
}

func NewHardware(runner *ffmpeg.Runner, encoderName string, opts Options, logger *slog.Logger) *HardwareEncoder {
	return &HardwareEncoder{
		runner:      runner,
		encoderName: encoderName,
		opts:        opts,
		logger:      logger,
		lastPTS:     -1,
	}
}

func (e *HardwareEncoder) Name() string {
	return e.encoderName
}

// Configure spawns the encode process. The keyframe cadence is pinned so
// every KeyframeInterval-th frame is an IDR.
func (e *HardwareEncoder) Configure(ctx context.Context) error {
	if e.configured {
		return fmt.Errorf("encoder already configured")
	}

	width, height := e.opts.Size()
	bitrate, err := Bitrate(width, height, e.opts.Quality)
	if err != nil {
		return err
	}

	proc, err := e.runner.Start(ctx,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", fmt.Sprintf("%d", FPS),
		"-i", "pipe:0",
		"-an",
		"-c:v", e.encoderName,
		"-b:v", fmt.Sprintf("%d", bitrate),
		"-g", fmt.Sprintf("%d", KeyframeInterval),
		"-force_key_frames", fmt.Sprintf("expr:eq(mod(n,%d),0)", KeyframeInterval),
		"-f", "h264",
		"pipe:1",
	)
	if err != nil {
		return fmt.Errorf("configure hardware encoder %s: %w", e.encoderName, err)
	}

	e.proc = proc
	e.parser = &annexBParser{}
	e.configured = true

	e.readWG.Add(1)
	go func() {
		defer e.readWG.Done()
		if _, err := io.Copy(e.parser, proc.Stdout); err != nil {
			e.readErr = err
		}
	}()

	e.logger.Info("hardware encoder configured",
		"encoder", e.encoderName,
		"resolution", fmt.Sprintf("%dx%d", width, height),
		"bitrate", bitrate,
	)
	return nil
}

// EncodeFrame submits one composited frame. Frames must arrive in strictly
// increasing presentation-timestamp order.
func (e *HardwareEncoder) EncodeFrame(frame *compositor.Frame) error {
	if !e.configured || e.closed {
		return fmt.Errorf("encoder not running")
	}
	if frame.PTS <= e.lastPTS {
		return fmt.Errorf("frame PTS %d not after previous %d", frame.PTS, e.lastPTS)
	}

	if _, err := e.proc.Stdin.Write(frame.RGBA.Pix); err != nil {
		return fmt.Errorf("submit frame %d: %w", e.frameCount, err)
	}

	e.lastPTS = frame.PTS
	e.frameCount++
	return nil
}

// Flush closes the frame input and drains the remaining encoder output into
// the chunk buffer.
func (e *HardwareEncoder) Flush(ctx context.Context) error {
	if !e.configured || e.closed {
		return fmt.Errorf("encoder not running")
	}

	if err := e.proc.Stdin.Close(); err != nil {
		return fmt.Errorf("close encoder input: %w", err)
	}
	if err := e.proc.Wait(); err != nil {
		return fmt.Errorf("hardware encode: %w", err)
	}
	e.readWG.Wait()
	if e.readErr != nil {
		return fmt.Errorf("read encoder output: %w", e.readErr)
	}
	e.parser.Finish()

	e.logger.Info("hardware encode flushed",
		"frames", e.frameCount,
		"chunks", len(e.parser.Chunks()),
	)
	return nil
}

// Chunks exposes the buffered encoder output in arrival order.
func (e *HardwareEncoder) Chunks() []Chunk {
	if e.parser == nil {
		return nil
	}
	return e.parser.Chunks()
}

// Finalize concatenates the elementary stream and muxes it with the mixed
// audio into the requested container.
func (e *HardwareEncoder) Finalize(ctx context.Context) (string, error) {
	chunks := e.Chunks()
	if len(chunks) == 0 {
		return "", fmt.Errorf("no encoded chunks to mux")
	}

	esPath := filepath.Join(e.opts.WorkDir, "video.h264")
	if err := os.WriteFile(esPath, ConcatChunks(chunks), 0o644); err != nil {
		return "", fmt.Errorf("write elementary stream: %w", err)
	}
	defer os.Remove(esPath)

	if err := muxElementaryStream(ctx, e.runner, esPath, e.opts); err != nil {
		return "", err
	}
	return e.opts.OutputPath, nil
}

// Close releases the encoder process. Safe on every exit path, including
// after Flush, and idempotent.
func (e *HardwareEncoder) Close() {
	if e.closed {
		return
	}
	e.closed = true
	if e.proc != nil {
		e.proc.Kill()
		e.readWG.Wait()
	}
}
