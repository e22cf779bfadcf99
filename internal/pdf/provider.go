package pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/a3tai/pdf-evidence/internal/evidence"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Config contains provider options.
type Config struct {
	// MaxFileSize rejects larger documents. 0 means no limit.
	MaxFileSize int64
}

// Provider opens documents with pdfcpu for structure and ledongthuc/pdf for
// page text and annotations. It implements evidence.Opener.
type Provider struct {
	validator *Validator
}

// NewProvider creates a provider.
func NewProvider(cfg Config) *Provider {
	return &Provider{validator: NewValidator(cfg.MaxFileSize)}
}

// Providers lists the libraries behind the provider, for the manifest.
func (p *Provider) Providers() []string {
	return []string{string(LibraryPDFCPU), string(LibraryLedongthuc)}
}

// Open parses the document at path. An encrypted document that needs a
// password opens successfully in a locked state; RequiresPassword reports it.
func (p *Provider) Open(ctx context.Context, path string) (evidence.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.validator.ValidateFile(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	doc := &Document{path: path, file: f}

	lr, lerr := openLedongthuc(f, info.Size())
	if errors.Is(lerr, pdf.ErrInvalidPassword) {
		doc.locked = true
		return doc, nil
	}
	doc.text = lr
	doc.textErr = lerr

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}
	pctx, perr := readContext(f)
	if perr != nil {
		if isPasswordError(perr) {
			doc.locked = true
			return doc, nil
		}
		f.Close()
		return nil, perr
	}
	doc.ctx = pctx
	return doc, nil
}

func newConfiguration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// readContext reads the full cross-reference table and object graph.
func readContext(rs io.ReadSeeker) (ctx *model.Context, err error) {
	defer recoverError("read_context", LibraryPDFCPU, &err)

	ctx, err = api.ReadContext(rs, newConfiguration())
	if err != nil {
		return nil, &ProviderError{Library: LibraryPDFCPU, Op: "read_context", Err: err}
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, &ProviderError{
			Library: LibraryPDFCPU,
			Op:      "read_context",
			Err:     fmt.Errorf("failed to determine page count: %w", err),
		}
	}
	return ctx, nil
}

func openLedongthuc(f io.ReaderAt, size int64) (r *pdf.Reader, err error) {
	defer recoverError("open", LibraryLedongthuc, &err)

	r, err = pdf.NewReader(f, size)
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) {
			return nil, err
		}
		return nil, &ProviderError{Library: LibraryLedongthuc, Op: "open", Err: err}
	}
	return r, nil
}
