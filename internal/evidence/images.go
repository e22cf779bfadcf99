package evidence

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// ocrSnippetLimit bounds the OCR preview stored on an image record, in characters.
const ocrSnippetLimit = 1000

// ImageRecord is one image occurrence. File is set only on the first
// occurrence of a given content hash.
type ImageRecord struct {
	Page       int    `json:"page"`
	File       string `json:"file,omitempty"`
	Hash       string `json:"hash"`
	Size       int    `json:"size"`
	Xref       int    `json:"xref"`
	OCRSnippet string `json:"ocr_snippet,omitempty"`
}

// Duplicate reports whether this occurrence was recorded for provenance only.
func (r ImageRecord) Duplicate() bool {
	return r.File == ""
}

// SeenHashes is the run-wide set of image content hashes. It is safe for
// concurrent use.
type SeenHashes struct {
	mu     sync.Mutex
	hashes map[string]struct{}
}

// NewSeenHashes creates an empty set.
func NewSeenHashes() *SeenHashes {
	return &SeenHashes{hashes: make(map[string]struct{})}
}

// Claim inserts hash and reports whether the caller is the first to see it.
func (s *SeenHashes) Claim(hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hashes[hash]; ok {
		return false
	}
	s.hashes[hash] = struct{}{}
	return true
}

// Release undoes a Claim whose bytes could not be persisted, so a later
// occurrence can become the stored copy.
func (s *SeenHashes) Release(hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.hashes, hash)
}

// Len returns the number of distinct hashes.
func (s *SeenHashes) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hashes)
}

// imageExtractor handles the images of one run.
type imageExtractor struct {
	doc        Document
	folder     caseFolder
	seen       *SeenHashes
	ocr        Recognizer
	ocrTimeout time.Duration
	log        *slog.Logger
}

// extract processes one image occurrence on page.
func (x *imageExtractor) extract(ctx context.Context, page int, ref ImageRef) (ImageRecord, error) {
	data, err := x.imageBytes(page, ref)
	if err != nil {
		return ImageRecord{}, &ItemFailure{Stage: StagePageLoop, Page: page, Xref: ref.ObjectIndex, Err: err}
	}
	if len(data) == 0 {
		return ImageRecord{}, &ItemFailure{Stage: StagePageLoop, Page: page, Xref: ref.ObjectIndex, Err: fmt.Errorf("empty image data")}
	}

	rec := ImageRecord{
		Page: page,
		Hash: SHA256Hex(data),
		Size: len(data),
		Xref: ref.ObjectIndex,
	}

	if x.seen.Claim(rec.Hash) {
		rel := imagePath(page, ref)
		if err := x.folder.write(rel, data); err != nil {
			x.seen.Release(rec.Hash)
			return ImageRecord{}, &ItemFailure{Stage: StagePageLoop, Page: page, Xref: ref.ObjectIndex, Err: err}
		}
		rec.File = rel
	}

	rec.OCRSnippet = x.recognize(ctx, page, ref, data)
	return rec, nil
}

func (x *imageExtractor) imageBytes(page int, ref ImageRef) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("image decode panic: %v", r)
		}
	}()
	return x.doc.ImageBytes(page, ref)
}

// recognize runs OCR under the per-call timeout. Any failure yields "".
func (x *imageExtractor) recognize(ctx context.Context, page int, ref ImageRef, data []byte) string {
	if x.ocr == nil {
		return ""
	}
	if x.ocrTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, x.ocrTimeout)
		defer cancel()
	}

	text, err := x.ocr.Recognize(ctx, data, ref.Ext)
	if err != nil {
		x.log.Debug("ocr failed", "page", page, "xref", ref.ObjectIndex, "err", err)
		return ""
	}
	return truncateRunes(strings.TrimSpace(text), ocrSnippetLimit)
}

// imagePath names a stored image by page and source object index.
func imagePath(page int, ref ImageRef) string {
	ext := strings.TrimPrefix(strings.ToLower(ref.Ext), ".")
	if ext == "" {
		ext = "bin"
	}
	return fmt.Sprintf("%s/p%d_xref%d.%s", imagesDir, page, ref.ObjectIndex, ext)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
