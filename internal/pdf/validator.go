package pdf

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// headerSearchWindow is how far into the file the %PDF- marker may start.
const headerSearchWindow = 1024

// Validator rejects files that cannot be PDF documents before they reach the
// parsers.
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a validator. A maxFileSize of 0 disables the size limit.
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{maxFileSize: maxFileSize}
}

// ValidateFile checks that path is a non-empty regular file within the size
// limit that carries a PDF header.
func (v *Validator) ValidateFile(path string) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return fmt.Errorf("cannot access file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("file is empty: %s", path)
	}
	if v.maxFileSize > 0 && info.Size() > v.maxFileSize {
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)", info.Size(), v.maxFileSize)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot open file: %w", err)
	}
	defer f.Close()

	head := make([]byte, headerSearchWindow)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return fmt.Errorf("cannot read file: %w", err)
	}
	if HeaderOffset(head[:n]) < 0 {
		return fmt.Errorf("missing %%PDF- header: %s", path)
	}
	return nil
}

// HeaderOffset returns the offset of the %PDF- marker in head, or -1.
func HeaderOffset(head []byte) int {
	return bytes.Index(head, []byte("%PDF-"))
}
