// Package ffmpeg locates and drives the ffmpeg/ffprobe binaries used for
// decoding, encoding and muxing. It is the single subprocess layer shared by
// the compositor, the audio mixer and the encoder pipeline.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"time"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics
)

// Binaries holds resolved paths to the media tools. FFprobe may be empty if
// only ffmpeg was found; callers that need probing must check.
type Binaries struct {
	FFmpeg  string
	FFprobe string
}

// Resolve locates ffmpeg and ffprobe, preferring explicit configured paths
// over PATH lookup. An error is returned only when ffmpeg itself is missing;
// the caller decides whether to fall back to the in-process encoder.
func Resolve(ffmpegPath, ffprobePath string) (Binaries, error) {
	var b Binaries

	if ffmpegPath != "" {
		p, err := exec.LookPath(ffmpegPath)
		if err != nil {
			return b, fmt.Errorf("configured ffmpeg %q not found", ffmpegPath)
		}
		b.FFmpeg = p
	} else if p, err := exec.LookPath("ffmpeg"); err == nil {
		b.FFmpeg = p
	} else {
		return b, fmt.Errorf("ffmpeg not found on PATH")
	}

	if ffprobePath != "" {
		if p, err := exec.LookPath(ffprobePath); err == nil {
			b.FFprobe = p
		}
	} else if p, err := exec.LookPath("ffprobe"); err == nil {
		b.FFprobe = p
	}

	return b, nil
}

// Runner executes ffmpeg commands with bounded stderr capture.
type Runner struct {
	bin    Binaries
	logger *slog.Logger
}

func NewRunner(bin Binaries, logger *slog.Logger) *Runner {
	return &Runner{bin: bin, logger: logger}
}

func (r *Runner) Binaries() Binaries {
	return r.bin
}

// Output runs ffmpeg with the given args and returns its stdout. Stderr is
// captured with a bounded buffer and included in the error on failure.
func (r *Runner) Output(ctx context.Context, args ...string) ([]byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, r.bin.FFmpeg, args...)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &limitedWriter{w: &stderr, limit: maxStderrBytes}

	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		r.logger.Warn("ffmpeg command failed",
			"args", args,
			"duration_ms", elapsed.Milliseconds(),
			"stderr_tail", truncate(stderr.String(), 512),
		)
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, truncate(stderr.String(), 512))
	}

	r.logger.Debug("ffmpeg command succeeded",
		"duration_ms", elapsed.Milliseconds(),
		"stdout_bytes", stdout.Len(),
	)
	return stdout.Bytes(), nil
}

// Start launches ffmpeg with stdin and stdout wired to the returned pipes.
// The caller owns the process: it must close stdin and call Wait.
func (r *Runner) Start(ctx context.Context, args ...string) (*Proc, error) {
	cmd := exec.CommandContext(ctx, r.bin.FFmpeg, args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderr, limit: maxStderrBytes}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	r.logger.Debug("ffmpeg process started", "args", args)

	return &Proc{cmd: cmd, Stdin: stdin, Stdout: stdout, stderr: &stderr}, nil
}

// Proc is a running ffmpeg process with piped stdin/stdout.
type Proc struct {
	cmd    *exec.Cmd
	Stdin  io.WriteCloser
	Stdout io.ReadCloser
	stderr *bytes.Buffer
}

// Wait reaps the process, returning the stderr tail on failure.
func (p *Proc) Wait() error {
	if err := p.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, truncate(p.stderr.String(), 512))
	}
	return nil
}

// Kill terminates the process without waiting for a clean exit.
func (p *Proc) Kill() {
	p.Stdin.Close()
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	p.cmd.Wait()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		lw.w.Reset()
		lw.w.Write(b[len(b)-lw.limit:])
	}
	return n, nil
}
