package pdf

import (
	"fmt"
	"os"
	"sync"

	"github.com/a3tai/pdf-evidence/internal/evidence"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Document is an opened evidence copy. It implements evidence.Document and
// evidence.AttachmentSource.
type Document struct {
	path   string
	file   *os.File
	locked bool
	closed bool

	// ctx is the relaxed read of the whole object graph.
	ctx *model.Context

	// text serves page text and annotations; textErr explains a nil text.
	text    *pdf.Reader
	textErr error

	// The optimized context is built on first use by images and attachments.
	optOnce sync.Once
	optCtx  *model.Context
	optErr  error

	imgMu  sync.Mutex
	images pageImages
}

var (
	_ evidence.Document         = (*Document)(nil)
	_ evidence.AttachmentSource = (*Document)(nil)
)

// RequiresPassword reports whether the document could not be opened without
// a password.
func (d *Document) RequiresPassword() bool {
	return d.locked
}

// PageCount returns the number of pages, or 0 for a locked document.
func (d *Document) PageCount() int {
	if d.ctx == nil {
		return 0
	}
	return d.ctx.PageCount
}

func (d *Document) checkPage(op string, page int) error {
	if d.closed {
		return &ProviderError{Library: LibraryPDFCPU, Op: op, Err: ErrDocumentClosed}
	}
	if d.locked {
		return &ProviderError{Library: LibraryPDFCPU, Op: op, Err: ErrLocked}
	}
	if page < 1 || page > d.PageCount() {
		return &ProviderError{
			Library: LibraryPDFCPU,
			Op:      op,
			Err:     fmt.Errorf("%w %d (document has %d pages)", ErrInvalidPage, page, d.PageCount()),
		}
	}
	return nil
}

// Close releases the file handle. It is safe to call more than once.
func (d *Document) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.ctx = nil
	d.optCtx = nil
	d.text = nil
	return d.file.Close()
}
