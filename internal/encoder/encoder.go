package encoder

import (
	"context"
	"log/slog"

	"github.com/Farooqbasha008/advideo/internal/compositor"
	"github.com/Farooqbasha008/advideo/internal/ffmpeg"
)

// Encoder is the contract every encode strategy implements. The lifecycle is
// strict: Configure, then EncodeFrame for every frame in presentation order,
// then Flush, then Finalize. Close must be safe to call at any point after
// Configure, including after a successful Finalize.
type Encoder interface {
	// Configure allocates the underlying encoder resources.
	Configure(ctx context.Context) error

	// EncodeFrame submits one frame. The frame's pixel data is consumed
	// synchronously; the caller releases the frame afterwards.
	EncodeFrame(frame *compositor.Frame) error

	// Flush drains everything still buffered inside the encoder.
	Flush(ctx context.Context) error

	// Finalize produces the container file and returns its path.
	Finalize(ctx context.Context) (string, error)

	// Close releases encoder resources. Idempotent.
	Close()

	// Name identifies the selected codec implementation for logging and
	// status reporting.
	Name() string
}

// Select picks the encode strategy for one export. Hardware H.264 is used
// only for MP4 output when a platform encoder probed available; WebM and GIF
// always take the software path. Without ffmpeg every format degrades to the
// in-process fallback.
func Select(runner *ffmpeg.Runner, caps ffmpeg.Capabilities, opts Options, logger *slog.Logger) Encoder {
	if runner == nil {
		logger.Warn("ffmpeg unavailable, using in-process encoder", "format", opts.Format)
		return NewFallback(opts, logger)
	}

	if opts.Format == FormatMP4 && caps.HasHardware() {
		return NewHardware(runner, caps.HardwareH264, opts, logger)
	}
	return NewSoftware(runner, opts, logger)
}
