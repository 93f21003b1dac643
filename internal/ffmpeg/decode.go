package ffmpeg

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
)

// DecodePCM decodes any audio-bearing file to raw interleaved int16 PCM at
// the requested sample rate and channel count.
func (r *Runner) DecodePCM(ctx context.Context, path string, sampleRate, channels int) ([]int16, error) {
	out, err := r.Output(ctx,
		"-i", path,
		"-vn",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", fmt.Sprintf("%d", channels),
		"-loglevel", "error",
		"pipe:1",
	)
	if err != nil {
		return nil, fmt.Errorf("decode %s to pcm: %w", path, err)
	}

	// Ensure even byte count for int16 alignment
	if len(out)%2 != 0 {
		out = out[:len(out)-1]
	}

	samples := make([]int16, len(out)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(out[i*2 : i*2+2]))
	}
	return samples, nil
}

// ExtractFrame decodes the single video frame nearest to offset (seconds)
// and returns it as an image. The fast-seek form (-ss before -i) is accurate
// enough for 30fps compositing and avoids decoding the whole stream.
func (r *Runner) ExtractFrame(ctx context.Context, path string, offset float64) (image.Image, error) {
	out, err := r.Output(ctx,
		"-ss", fmt.Sprintf("%.4f", offset),
		"-i", path,
		"-frames:v", "1",
		"-f", "image2",
		"-c:v", "png",
		"-loglevel", "error",
		"pipe:1",
	)
	if err != nil {
		return nil, fmt.Errorf("extract frame at %.3fs from %s: %w", offset, path, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no frame at %.3fs in %s", offset, path)
	}

	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("decode extracted frame: %w", err)
	}
	return img, nil
}
