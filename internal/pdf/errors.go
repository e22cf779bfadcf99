package pdf

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Library names a PDF library the provider delegates to.
type Library string

const (
	LibraryPDFCPU     Library = "pdfcpu"
	LibraryLedongthuc Library = "ledongthuc"
)

// ProviderError wraps a failure of one of the underlying libraries.
type ProviderError struct {
	Library Library
	Op      string
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("PDF %s library error in %s: %v", e.Library, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

var (
	ErrDocumentClosed = errors.New("document is closed")
	ErrInvalidPage    = errors.New("invalid page number")
	ErrLocked         = errors.New("document requires a password")
)

// wrongPasswordMessage is the text of pdfcpu's error for a document whose
// user password is not empty.
const wrongPasswordMessage = "please provide the correct password"

// isPasswordError reports whether a library error means the document could
// not be decrypted without a password. Other encryption failures, such as a
// malformed encryption dictionary, are not.
func isPasswordError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, pdf.ErrInvalidPassword) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), wrongPasswordMessage)
}

// recoverError converts a library panic into an error.
func recoverError(op string, lib Library, err *error) {
	if r := recover(); r != nil {
		*err = &ProviderError{Library: lib, Op: op, Err: fmt.Errorf("panic: %v", r)}
	}
}
