// Package ocr provides the optional text recognition capability used to
// enrich extracted images.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/a3tai/pdf-evidence/internal/evidence"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DefaultCommand is the tesseract executable looked up on PATH.
const DefaultCommand = "tesseract"

// ErrUnsupportedFormat is returned for image data that can neither be passed
// through nor decoded.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Config selects the OCR engine.
type Config struct {
	Enabled bool
	Command string
	Logger  *slog.Logger
}

// New returns the configured recognizer, or nil when OCR is disabled or the
// engine is not installed. A nil evidence.Recognizer disables enrichment.
func New(cfg Config) evidence.Recognizer {
	if !cfg.Enabled {
		return nil
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	t, err := NewTesseract(cfg.Command)
	if err != nil {
		log.Info("OCR unavailable, continuing without it", "command", cfg.Command, "err", err)
		return nil
	}
	log.Debug("OCR enabled", "engine", t.Path())
	return t
}

// Tesseract runs the tesseract CLI, feeding the image on stdin.
type Tesseract struct {
	path string
}

// NewTesseract resolves command on PATH.
func NewTesseract(command string) (*Tesseract, error) {
	if command == "" {
		command = DefaultCommand
	}
	path, err := exec.LookPath(command)
	if err != nil {
		return nil, fmt.Errorf("OCR engine not found: %w", err)
	}
	return &Tesseract{path: path}, nil
}

// Path returns the resolved executable.
func (t *Tesseract) Path() string {
	return t.path
}

// Recognize returns the text tesseract reads from data. ext is the format
// hint from the document ("png", "jpg", "tif", ...).
func (t *Tesseract) Recognize(ctx context.Context, data []byte, ext string) (string, error) {
	input, err := Normalize(data, ext)
	if err != nil {
		return "", err
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.path, "stdin", "stdout")
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("OCR interrupted: %w", ctxErr)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("OCR failed: %w: %s", err, msg)
		}
		return "", fmt.Errorf("OCR failed: %w", err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Normalize returns data in a form the engine reads. PNG, JPEG and PNM pass
// through unchanged; anything else Go can decode is re-encoded as PNG.
func Normalize(data []byte, ext string) ([]byte, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "png", "jpg", "jpeg", "pnm", "pbm", "pgm", "ppm":
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrUnsupportedFormat, ext, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("re-encode %q as png: %w", ext, err)
	}
	return buf.Bytes(), nil
}
