package evidence

import (
	"errors"
	"fmt"
)

// Stage is a state of the evidence run state machine.
type Stage int

const (
	StageInit Stage = iota
	StageCopySource
	StageHash
	StageOpenDocument
	StageCheckEncryption
	StageTriage
	StagePageLoop
	StageAttachments
	StageFinalize
	StageDone
	StageFailed
)

// String returns the upper-case state name used in logs and error messages.
func (s Stage) String() string {
	switch s {
	case StageInit:
		return "INIT"
	case StageCopySource:
		return "COPY_SOURCE"
	case StageHash:
		return "HASH"
	case StageOpenDocument:
		return "OPEN_DOCUMENT"
	case StageCheckEncryption:
		return "CHECK_ENCRYPTION"
	case StageTriage:
		return "TRIAGE"
	case StagePageLoop:
		return "PAGE_LOOP"
	case StageAttachments:
		return "ATTACHMENTS"
	case StageFinalize:
		return "FINALIZE"
	case StageDone:
		return "DONE"
	case StageFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Run-aborting conditions. Every fatal error returned by Collector.Run wraps
// exactly one of these inside a *StageError.
var (
	ErrSourceNotFound = errors.New("source file not found")
	ErrCopyFailed     = errors.New("evidence copy could not be written")
	ErrHashFailed     = errors.New("evidence copy could not be hashed")
	ErrOpenFailed     = errors.New("document could not be opened")
	ErrEncrypted      = errors.New("encrypted PDF: document requires a password")
	ErrFinalizeFailed = errors.New("reports could not be written")
)

// ErrCaseFolderInUse is wrapped by ErrCopyFailed when the case folder already
// holds files from another run.
var ErrCaseFolderInUse = errors.New("case folder already in use")

// StageError reports which state of the run failed and why.
type StageError struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *StageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s failed for %s: %v", e.Stage, e.Path, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage extracts the failing stage from err, if it carries one.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return StageFailed, false
}

// ItemFailure is a recoverable failure of a single object, image or
// attachment. It is logged and the item is left out of the manifest.
type ItemFailure struct {
	Stage Stage
	Page  int
	Xref  int
	Name  string
	Err   error
}

func (f *ItemFailure) Error() string {
	switch {
	case f.Name != "":
		return fmt.Sprintf("%s: attachment %q: %v", f.Stage, f.Name, f.Err)
	case f.Page > 0 && f.Xref > 0:
		return fmt.Sprintf("%s: page %d object %d: %v", f.Stage, f.Page, f.Xref, f.Err)
	case f.Page > 0:
		return fmt.Sprintf("%s: page %d: %v", f.Stage, f.Page, f.Err)
	case f.Xref > 0:
		return fmt.Sprintf("%s: object %d: %v", f.Stage, f.Xref, f.Err)
	default:
		return fmt.Sprintf("%s: %v", f.Stage, f.Err)
	}
}

func (f *ItemFailure) Unwrap() error {
	return f.Err
}

// logAttrs returns the structured context used when the failure is logged.
func (f *ItemFailure) logAttrs() []any {
	attrs := []any{"stage", f.Stage.String()}
	if f.Page > 0 {
		attrs = append(attrs, "page", f.Page)
	}
	if f.Xref > 0 {
		attrs = append(attrs, "xref", f.Xref)
	}
	if f.Name != "" {
		attrs = append(attrs, "attachment", f.Name)
	}
	return append(attrs, "err", f.Err)
}
