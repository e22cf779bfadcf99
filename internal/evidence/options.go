package evidence

import (
	"io"
	"log/slog"
	"time"
)

// ToolName is recorded in every manifest.
const ToolName = "pdf-evidence"

// Options configure a Collector.
type Options struct {
	// OutputDir is the case folder. Empty means evidence_<unix seconds> in
	// the working directory.
	OutputDir string
	// MaxXref bounds the triage scan. Values below 1 use DefaultMaxXref.
	MaxXref int
	// ExtractEmbedded enables the attachment step.
	ExtractEmbedded bool
	// Msgpack additionally writes reports/<stem>_manifest.msgpack.
	Msgpack bool

	// OCR is the optional recognizer. Nil disables OCR.
	OCR        Recognizer
	OCRTimeout time.Duration

	Logger *slog.Logger
	// Progress is called after each page with the number of pages done.
	Progress func(done, total int)

	ToolVersion string
	// Now is the clock used for the default case folder name.
	Now func() time.Time
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		MaxXref:         DefaultMaxXref,
		ExtractEmbedded: true,
		OCRTimeout:      30 * time.Second,
	}
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}
