// Package encoder turns composited frames and mixed audio into one container
// file. Two strategies exist behind the Encoder interface: a hardware path
// that produces an H.264 elementary stream through a platform encoder and
// muxes it afterwards, and a software path that encodes and muxes in a
// single pass. When ffmpeg is missing entirely an in-process fallback
// produces MJPEG AVI or animated GIF.
package encoder

import (
	"fmt"
)

const (
	FormatMP4  = "mp4"
	FormatWebM = "webm"
	FormatGIF  = "gif"

	QualityHigh     = "high"
	QualityStandard = "standard"
	QualityDraft    = "draft"

	Resolution480p  = "480p"
	Resolution720p  = "720p"
	Resolution1080p = "1080p"

	// FPS is the fixed export frame rate.
	FPS = 30

	// KeyframeInterval forces a keyframe every N frames so the output seeks
	// cleanly.
	KeyframeInterval = 30

	// AudioBitrate is the fixed audio encode rate in bits per second.
	AudioBitrate = 128_000
)

// Options selects the output container, canvas size and rate/quality
// tradeoff for one export session.
type Options struct {
	Format     string
	Resolution string
	Quality    string

	OutputPath string // final artifact location
	AudioPath  string // mixed WAV, empty when the timeline has no audio
	WorkDir    string // scratch space for intermediate streams
}

// Normalize fills defaults and validates the preset names.
func (o *Options) Normalize() error {
	if o.Format == "" {
		o.Format = FormatMP4
	}
	if o.Resolution == "" {
		o.Resolution = Resolution720p
	}
	if o.Quality == "" {
		o.Quality = QualityStandard
	}

	switch o.Format {
	case FormatMP4, FormatWebM, FormatGIF:
	default:
		return fmt.Errorf("unsupported format %q", o.Format)
	}
	if _, _, err := ResolutionSize(o.Resolution); err != nil {
		return err
	}
	if _, err := qualityMultiplier(o.Quality); err != nil {
		return err
	}
	return nil
}

// ResolutionSize maps a resolution preset to pixel dimensions.
func ResolutionSize(preset string) (width, height int, err error) {
	switch preset {
	case Resolution480p:
		return 854, 480, nil
	case Resolution720p:
		return 1280, 720, nil
	case Resolution1080p:
		return 1920, 1080, nil
	default:
		return 0, 0, fmt.Errorf("unsupported resolution %q", preset)
	}
}

func qualityMultiplier(quality string) (float64, error) {
	switch quality {
	case QualityHigh:
		return 1.5, nil
	case QualityStandard:
		return 1.0, nil
	case QualityDraft:
		return 0.5, nil
	default:
		return 0, fmt.Errorf("unsupported quality %q", quality)
	}
}

// Bitrate computes the video bitrate in bits per second:
// width * height * 0.1 * quality multiplier, truncated.
func Bitrate(width, height int, quality string) (int, error) {
	mult, err := qualityMultiplier(quality)
	if err != nil {
		return 0, err
	}
	return int(float64(width) * float64(height) * 0.1 * mult), nil
}

// SpeedPreset maps quality to the software encoder's speed/fidelity knob.
func SpeedPreset(quality string) string {
	switch quality {
	case QualityHigh:
		return "slow"
	case QualityDraft:
		return "ultrafast"
	default:
		return "medium"
	}
}

// Size resolves the options' pixel dimensions.
func (o Options) Size() (int, int) {
	w, h, _ := ResolutionSize(o.Resolution)
	return w, h
}
