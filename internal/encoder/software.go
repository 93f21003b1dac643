package encoder

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Farooqbasha008/advideo/internal/compositor"
	"github.com/Farooqbasha008/advideo/internal/ffmpeg"
)

// SoftwareEncoder encodes and muxes in a single ffmpeg pass. Frames stream in
// as raw RGBA on stdin; the mixed audio, when present, is read from disk and
// encoded alongside, so Finalize has nothing left to do but report the path.
type SoftwareEncoder struct {
	runner *ffmpeg.Runner
	opts   Options
	logger *slog.Logger

	proc *ffmpeg.Proc

	lastPTS    int64
	frameCount int
	configured bool
	flushed    bool
	closed     bool
}

func NewSoftware(runner *ffmpeg.Runner, opts Options, logger *slog.Logger) *SoftwareEncoder {
	return &SoftwareEncoder{
		runner:  runner,
		opts:    opts,
		logger:  logger,
		lastPTS: -1,
	}
}

func (e *SoftwareEncoder) Name() string {
	switch e.opts.Format {
	case FormatWebM:
		return "libvpx-vp9"
	case FormatGIF:
		return "gif"
	default:
		return "libx264"
	}
}

func (e *SoftwareEncoder) Configure(ctx context.Context) error {
	if e.configured {
		return fmt.Errorf("encoder already configured")
	}

	width, height := e.opts.Size()
	bitrate, err := Bitrate(width, height, e.opts.Quality)
	if err != nil {
		return err
	}

	args := []string{
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", fmt.Sprintf("%d", FPS),
		"-i", "pipe:0",
	}

	hasAudio := e.opts.AudioPath != "" && e.opts.Format != FormatGIF
	if hasAudio {
		args = append(args, "-i", e.opts.AudioPath)
	}

	switch e.opts.Format {
	case FormatMP4:
		args = append(args,
			"-c:v", "libx264",
			"-preset", SpeedPreset(e.opts.Quality),
			"-b:v", fmt.Sprintf("%d", bitrate),
			"-g", fmt.Sprintf("%d", KeyframeInterval),
			"-pix_fmt", "yuv420p",
			"-movflags", "+faststart",
		)
		if hasAudio {
			args = append(args, "-c:a", "aac", "-b:a", fmt.Sprintf("%d", AudioBitrate))
		}
	case FormatWebM:
		args = append(args,
			"-c:v", "libvpx-vp9",
			"-b:v", fmt.Sprintf("%d", bitrate),
			"-g", fmt.Sprintf("%d", KeyframeInterval),
			"-pix_fmt", "yuv420p",
		)
		if hasAudio {
			args = append(args, "-c:a", "libopus", "-b:a", fmt.Sprintf("%d", AudioBitrate))
		}
	case FormatGIF:
		// Palette generation and use in one pass keeps the 256-color output
		// from banding.
		args = append(args,
			"-vf", "split[a][b];[a]palettegen[p];[b][p]paletteuse",
		)
	default:
		return fmt.Errorf("unsupported format %q", e.opts.Format)
	}

	if hasAudio {
		args = append(args, "-shortest")
	}
	args = append(args, "-y", e.opts.OutputPath)

	proc, err := e.runner.Start(ctx, args...)
	if err != nil {
		return fmt.Errorf("configure software encoder: %w", err)
	}
	e.proc = proc
	e.configured = true

	// The single-pass process writes straight to disk; drain stdout so the
	// pipe never blocks.
	go io.Copy(io.Discard, proc.Stdout)

	e.logger.Info("software encoder configured",
		"encoder", e.Name(),
		"resolution", fmt.Sprintf("%dx%d", width, height),
		"bitrate", bitrate,
		"audio", hasAudio,
	)
	return nil
}

func (e *SoftwareEncoder) EncodeFrame(frame *compositor.Frame) error {
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

func (e *SoftwareEncoder) Flush(ctx context.Context) error {
	if !e.configured || e.closed {
		return fmt.Errorf("encoder not running")
	}

	if err := e.proc.Stdin.Close(); err != nil {
		return fmt.Errorf("close encoder input: %w", err)
	}
	if err := e.proc.Wait(); err != nil {
		return fmt.Errorf("software encode: %w", err)
	}
	e.flushed = true

	e.logger.Info("software encode flushed", "frames", e.frameCount)
	return nil
}

func (e *SoftwareEncoder) Finalize(ctx context.Context) (string, error) {
	if !e.flushed {
		return "", fmt.Errorf("finalize before flush")
	}
	return e.opts.OutputPath, nil
}

func (e *SoftwareEncoder) Close() {
	if e.closed {
		return
	}
	e.closed = true
	if e.proc != nil && !e.flushed {
		e.proc.Kill()
	}
}

// muxElementaryStream wraps a raw H.264 stream and the mixed audio into the
// final container without re-encoding video.
func muxElementaryStream(ctx context.Context, runner *ffmpeg.Runner, esPath string, opts Options) error {
	args := []string{
		"-r", fmt.Sprintf("%d", FPS),
		"-i", esPath,
	}
	if opts.AudioPath != "" {
		args = append(args, "-i", opts.AudioPath)
	}
	args = append(args, "-c:v", "copy")
	if opts.AudioPath != "" {
		args = append(args,
			"-c:a", "aac",
			"-b:a", fmt.Sprintf("%d", AudioBitrate),
			"-shortest",
		)
	}
	args = append(args, "-movflags", "+faststart", "-y", opts.OutputPath)

	if _, err := runner.Output(ctx, args...); err != nil {
		return fmt.Errorf("mux: %w", err)
	}
	return nil
}
