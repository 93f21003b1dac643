// Package audio renders the mixed project soundtrack offline. All
// audio-bearing timeline items are decoded to PCM and summed into one
// interleaved stereo buffer covering the full project duration.
package audio

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/Farooqbasha008/advideo/internal/timeline"
)

const (
	SampleRate = 44100
	Channels   = 2
	BitDepth   = 16
)

// Decoder turns a media source into raw interleaved int16 PCM. Satisfied by
// the ffmpeg runner in production and by fakes in tests.
type Decoder interface {
	DecodePCM(ctx context.Context, path string, sampleRate, channels int) ([]int16, error)
}

// Buffer is the mixed output: interleaved stereo int16 samples.
type Buffer struct {
	Samples []int16
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	return float64(len(b.Samples)) / float64(SampleRate*Channels)
}

// Silent reports whether every sample is zero.
func (b *Buffer) Silent() bool {
	for _, s := range b.Samples {
		if s != 0 {
			return false
		}
	}
	return true
}

// Mixer schedules decoded clips into a single output buffer.
type Mixer struct {
	decoder Decoder
	logger  *slog.Logger
}

func NewMixer(decoder Decoder, logger *slog.Logger) *Mixer {
	return &Mixer{decoder: decoder, logger: logger}
}

// Mix produces the full project soundtrack spanning [0, totalDuration).
// A clip that fails to decode is logged and contributes silence; the mix
// itself only fails on an invalid duration.
func (m *Mixer) Mix(ctx context.Context, items []timeline.Item, totalDuration float64) (*Buffer, error) {
	if totalDuration <= 0 {
		return nil, fmt.Errorf("total duration must be > 0, got %g", totalDuration)
	}

	frames := int(math.Round(totalDuration * SampleRate))
	out := make([]int16, frames*Channels)

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		samples, err := m.decoder.DecodePCM(ctx, item.Source, SampleRate, Channels)
		if err != nil {
			m.logger.Warn("audio clip failed to decode, mixing without it",
				"item_index", i, "source", item.Source, "error", err)
			continue
		}

		m.schedule(out, samples, item)
	}

	return &Buffer{Samples: out}, nil
}

// schedule adds a decoded clip into the output at its start offset, trimmed
// to the clip duration, with int16 clipping on overlap.
func (m *Mixer) schedule(out, clip []int16, item timeline.Item) {
	offset := int(math.Round(item.Start*SampleRate)) * Channels
	limit := int(math.Round(item.Duration*SampleRate)) * Channels
	if limit < len(clip) {
		clip = clip[:limit]
	}

	for i, s := range clip {
		pos := offset + i
		if pos >= len(out) {
			break
		}
		mixed := int32(out[pos]) + int32(s)
		if mixed > math.MaxInt16 {
			mixed = math.MaxInt16
		} else if mixed < math.MinInt16 {
			mixed = math.MinInt16
		}
		out[pos] = int16(mixed)
	}
}
