package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/Farooqbasha008/advideo/internal/timeline"
)

type fakeDecoder struct {
	clips map[string][]int16
}

func (d *fakeDecoder) DecodePCM(_ context.Context, path string, _, _ int) ([]int16, error) {
	clip, ok := d.clips[path]
	if !ok {
		return nil, fmt.Errorf("no such clip %s", path)
	}
	return clip, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// constantClip builds an interleaved stereo clip of the given duration with
// every sample set to value.
func constantClip(seconds float64, value int16) []int16 {
	n := int(math.Round(seconds*SampleRate)) * Channels
	clip := make([]int16, n)
	for i := range clip {
		clip[i] = value
	}
	return clip
}

func TestMix_BufferSpansFullDuration(t *testing.T) {
	m := NewMixer(&fakeDecoder{clips: map[string][]int16{}}, discard())

	buf, err := m.Mix(context.Background(), nil, 2.5)
	if err != nil {
		t.Fatalf("Mix() error = %v", err)
	}

	want := int(math.Round(2.5*SampleRate)) * Channels
	if len(buf.Samples) != want {
		t.Fatalf("buffer length = %d samples, want %d", len(buf.Samples), want)
	}
	if !buf.Silent() {
		t.Error("empty mix should be silent")
	}
}

func TestMix_OffsetScheduling(t *testing.T) {
	dec := &fakeDecoder{clips: map[string][]int16{
		"/clip.mp3": constantClip(1, 1000),
	}}
	m := NewMixer(dec, discard())

	items := []timeline.Item{
		{Kind: timeline.KindAudio, Source: "/clip.mp3", Start: 1, Duration: 1},
	}
	buf, err := m.Mix(context.Background(), items, 3)
	if err != nil {
		t.Fatalf("Mix() error = %v", err)
	}

	// Before the offset: silence. Inside the clip: the clip's value.
	before := buf.Samples[SampleRate*Channels/2]
	if before != 0 {
		t.Errorf("sample before clip start = %d, want 0", before)
	}
	during := buf.Samples[SampleRate*Channels+SampleRate*Channels/2]
	if during != 1000 {
		t.Errorf("sample inside clip = %d, want 1000", during)
	}
	after := buf.Samples[len(buf.Samples)-2]
	if after != 0 {
		t.Errorf("sample after clip end = %d, want 0", after)
	}
}

func TestMix_OverlappingClipsSumWithClipping(t *testing.T) {
	dec := &fakeDecoder{clips: map[string][]int16{
		"/a.mp3": constantClip(1, 20000),
		"/b.mp3": constantClip(1, 20000),
	}}
	m := NewMixer(dec, discard())

	items := []timeline.Item{
		{Kind: timeline.KindAudio, Source: "/a.mp3", Start: 0, Duration: 1},
		{Kind: timeline.KindAudio, Source: "/b.mp3", Start: 0, Duration: 1},
	}
	buf, err := m.Mix(context.Background(), items, 1)
	if err != nil {
		t.Fatalf("Mix() error = %v", err)
	}

	// 20000 + 20000 exceeds int16 range and must clip, not wrap.
	if got := buf.Samples[100]; got != math.MaxInt16 {
		t.Fatalf("overlapping sample = %d, want clipped %d", got, math.MaxInt16)
	}
}

func TestMix_FailedClipIsSilent(t *testing.T) {
	dec := &fakeDecoder{clips: map[string][]int16{
		"/ok.mp3": constantClip(1, 500),
	}}
	m := NewMixer(dec, discard())

	items := []timeline.Item{
		{Kind: timeline.KindAudio, Source: "/missing.mp3", Start: 0, Duration: 1},
		{Kind: timeline.KindAudio, Source: "/ok.mp3", Start: 0, Duration: 1},
	}
	buf, err := m.Mix(context.Background(), items, 1)
	if err != nil {
		t.Fatalf("Mix() error = %v, want nil (per-clip failures are isolated)", err)
	}

	if got := buf.Samples[0]; got != 500 {
		t.Fatalf("sample = %d, want 500 (only the good clip contributes)", got)
	}
}

func TestMix_ClipTrimmedToItemDuration(t *testing.T) {
	// Decoded clip is 2s but the item places only 1s of it.
	dec := &fakeDecoder{clips: map[string][]int16{
		"/long.mp3": constantClip(2, 700),
	}}
	m := NewMixer(dec, discard())

	items := []timeline.Item{
		{Kind: timeline.KindAudio, Source: "/long.mp3", Start: 0, Duration: 1},
	}
	buf, err := m.Mix(context.Background(), items, 2)
	if err != nil {
		t.Fatalf("Mix() error = %v", err)
	}

	tail := buf.Samples[SampleRate*Channels+100]
	if tail != 0 {
		t.Fatalf("sample past item duration = %d, want 0", tail)
	}
}

func TestMix_InvalidDuration(t *testing.T) {
	m := NewMixer(&fakeDecoder{}, discard())
	if _, err := m.Mix(context.Background(), nil, 0); err == nil {
		t.Fatal("expected error for zero duration")
	}
}

func TestWriteWAV_Header(t *testing.T) {
	buf := &Buffer{Samples: []int16{1, -1, 2, -2}}

	var out bytes.Buffer
	if err := buf.WriteWAV(&out); err != nil {
		t.Fatalf("WriteWAV() error = %v", err)
	}

	b := out.Bytes()
	if len(b) != 44+8 {
		t.Fatalf("wav length = %d, want 52", len(b))
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		t.Fatalf("bad RIFF header: %q %q", b[0:4], b[8:12])
	}
	if rate := binary.LittleEndian.Uint32(b[24:28]); rate != SampleRate {
		t.Errorf("sample rate = %d, want %d", rate, SampleRate)
	}
	if ch := binary.LittleEndian.Uint16(b[22:24]); ch != Channels {
		t.Errorf("channels = %d, want %d", ch, Channels)
	}
	if dataLen := binary.LittleEndian.Uint32(b[40:44]); dataLen != 8 {
		t.Errorf("data chunk length = %d, want 8", dataLen)
	}
}
