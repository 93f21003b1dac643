package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Hardware H.264 encoders ffmpeg may expose, in preference order. Which one
// is present depends on the platform build (VideoToolbox on macOS, NVENC on
// NVIDIA, VAAPI on Linux, QSV on Intel).
var hardwareH264Encoders = []string{
	"h264_videotoolbox",
	"h264_nvenc",
	"h264_vaapi",
	"h264_qsv",
}

// Capabilities describes what the local ffmpeg build can do. Probed once and
// cached; the encode path is selected from this at session start.
type Capabilities struct {
	HardwareH264 string // encoder name, empty if none available
	HasLibx264   bool
	HasLibvpx    bool
	ProbedAt     time.Time
}

// HasHardware reports whether a hardware H.264 encode path exists.
func (c Capabilities) HasHardware() bool {
	return c.HardwareH264 != ""
}

// Doctor probes encoder capabilities lazily, guarding against concurrent
// initialization with a single in-flight probe.
type Doctor struct {
	runner *Runner

	mu     sync.Mutex
	cached *Capabilities
}

func NewDoctor(runner *Runner) *Doctor {
	return &Doctor{runner: runner}
}

// Get returns cached capabilities, probing on first use.
func (d *Doctor) Get(ctx context.Context) (Capabilities, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cached != nil {
		return *d.cached, nil
	}

	caps, err := d.probe(ctx)
	if err != nil {
		return Capabilities{}, err
	}
	d.cached = &caps
	return caps, nil
}

func (d *Doctor) probe(ctx context.Context) (Capabilities, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	out, err := d.runner.Output(ctx, "-hide_banner", "-encoders")
	if err != nil {
		return Capabilities{}, fmt.Errorf("encoder probe: %w", err)
	}

	caps := ParseEncoderList(out)
	caps.ProbedAt = time.Now()
	return caps, nil
}

// ParseEncoderList extracts capability flags from `ffmpeg -encoders` output.
// Each encoder line looks like " V....D h264_nvenc  NVIDIA NVENC H.264 encoder".
func ParseEncoderList(out []byte) Capabilities {
	var caps Capabilities
	available := make(map[string]bool)

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		// First column is the flags block, second the encoder name.
		if strings.HasPrefix(fields[0], "V") || strings.HasPrefix(fields[0], "A") {
			available[fields[1]] = true
		}
	}

	for _, name := range hardwareH264Encoders {
		if available[name] {
			caps.HardwareH264 = name
			break
		}
	}
	caps.HasLibx264 = available["libx264"]
	caps.HasLibvpx = available["libvpx-vp9"]
	return caps
}

// ProbeDuration returns the duration of a media file in seconds via ffprobe.
func (r *Runner) ProbeDuration(ctx context.Context, path string) (float64, error) {
	if r.bin.FFprobe == "" {
		return 0, fmt.Errorf("ffprobe not available")
	}

	cmd := exec.CommandContext(ctx, r.bin.FFprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	dur, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration: %w", err)
	}
	return dur, nil
}
