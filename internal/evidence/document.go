package evidence

import "context"

// Opener opens a document for analysis. Implementations wrap a PDF library.
type Opener interface {
	Open(ctx context.Context, path string) (Document, error)
}

// ObjectStore exposes the bounded raw-object view used by triage.
type ObjectStore interface {
	// ObjectCount returns the highest addressable object index.
	ObjectCount() int
	// RawObject returns the decoded textual form of object i.
	RawObject(i int) (string, error)
}

// Document is the view of an opened document that an evidence run consumes.
// Pages are 1-indexed.
type Document interface {
	ObjectStore

	RequiresPassword() bool
	PageCount() int
	PageText(page int) (string, error)
	PageImages(page int) ([]ImageRef, error)
	ImageBytes(page int, ref ImageRef) ([]byte, error)
	PageLinks(page int) ([]LinkRef, error)
	Metadata() map[string]string
	Version() string
	Close() error
}

// AttachmentSource is implemented by documents that can enumerate embedded
// files. Documents without it simply have no attachments.
type AttachmentSource interface {
	Attachments() ([]AttachmentRef, error)
	Attachment(id string) ([]byte, error)
}

// AttachmentRef identifies one embedded file. ID is unique within the
// document; FileName is the declared name and may repeat or be empty.
type AttachmentRef struct {
	ID       string
	FileName string
}

// Name is the file name to write the payload under.
func (r AttachmentRef) Name() string {
	if r.FileName != "" {
		return r.FileName
	}
	return r.ID
}

// ImageRef identifies one image occurrence on a page.
type ImageRef struct {
	ObjectIndex int
	Ext         string
}

// LinkRef is a link or annotation record. URI is empty for annotations that
// do not carry one.
type LinkRef struct {
	Subtype string `json:"subtype"`
	URI     string `json:"uri,omitempty"`
}

// Recognizer is the optional OCR capability.
type Recognizer interface {
	Recognize(ctx context.Context, data []byte, ext string) (string, error)
}
