package evidence

import (
	"context"
	"fmt"
	"sync"
)

type fakeImage struct {
	ref  ImageRef
	data []byte
	err  error
}

type fakePage struct {
	text    string
	textErr error
	images  []fakeImage
	links   []LinkRef
}

// fakeDoc is an in-memory Document.
type fakeDoc struct {
	pages       []fakePage
	objects     map[int]string
	objErrs     map[int]error
	objectCount int
	encrypted   bool
	metadata    map[string]string
	version     string

	mu         sync.Mutex
	closed     bool
	rawQueried []int
}

func (d *fakeDoc) RequiresPassword() bool { return d.encrypted }
func (d *fakeDoc) PageCount() int         { return len(d.pages) }

func (d *fakeDoc) page(n int) (fakePage, error) {
	if n < 1 || n > len(d.pages) {
		return fakePage{}, fmt.Errorf("page %d out of range", n)
	}
	return d.pages[n-1], nil
}

func (d *fakeDoc) PageText(n int) (string, error) {
	p, err := d.page(n)
	if err != nil {
		return "", err
	}
	return p.text, p.textErr
}

func (d *fakeDoc) PageImages(n int) ([]ImageRef, error) {
	p, err := d.page(n)
	if err != nil {
		return nil, err
	}
	refs := make([]ImageRef, len(p.images))
	for i, img := range p.images {
		refs[i] = img.ref
	}
	return refs, nil
}

func (d *fakeDoc) ImageBytes(n int, ref ImageRef) ([]byte, error) {
	p, err := d.page(n)
	if err != nil {
		return nil, err
	}
	for _, img := range p.images {
		if img.ref == ref {
			return img.data, img.err
		}
	}
	return nil, fmt.Errorf("no image %d on page %d", ref.ObjectIndex, n)
}

func (d *fakeDoc) PageLinks(n int) ([]LinkRef, error) {
	p, err := d.page(n)
	if err != nil {
		return nil, err
	}
	return p.links, nil
}

func (d *fakeDoc) Metadata() map[string]string { return d.metadata }
func (d *fakeDoc) Version() string             { return d.version }

func (d *fakeDoc) ObjectCount() int {
	if d.objectCount > 0 {
		return d.objectCount
	}
	return len(d.objects)
}

func (d *fakeDoc) RawObject(i int) (string, error) {
	d.mu.Lock()
	d.rawQueried = append(d.rawQueried, i)
	d.mu.Unlock()
	if err, ok := d.objErrs[i]; ok {
		return "", err
	}
	if raw, ok := d.objects[i]; ok {
		return raw, nil
	}
	return fmt.Sprintf("%d 0 obj << /Type /Filler >> endobj", i), nil
}

func (d *fakeDoc) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// fakeAttachDoc adds attachment support. Payloads are keyed by ID.
type fakeAttachDoc struct {
	*fakeDoc
	refs     []AttachmentRef
	payloads map[string][]byte
	failing  map[string]error
	listErr  error
}

// namedRefs builds refs whose ID and FileName are both the given name.
func namedRefs(names ...string) []AttachmentRef {
	refs := make([]AttachmentRef, 0, len(names))
	for _, name := range names {
		refs = append(refs, AttachmentRef{ID: name, FileName: name})
	}
	return refs
}

func (d *fakeAttachDoc) Attachments() ([]AttachmentRef, error) {
	return d.refs, d.listErr
}

func (d *fakeAttachDoc) Attachment(id string) ([]byte, error) {
	if err, ok := d.failing[id]; ok {
		return nil, err
	}
	data, ok := d.payloads[id]
	if !ok {
		return nil, fmt.Errorf("no attachment %q", id)
	}
	return data, nil
}

type fakeOpener struct {
	doc    Document
	err    error
	opened []string
}

func (o *fakeOpener) Open(_ context.Context, path string) (Document, error) {
	o.opened = append(o.opened, path)
	if o.err != nil {
		return nil, o.err
	}
	return o.doc, nil
}

func (o *fakeOpener) Providers() []string { return []string{"fake"} }

type fakeOCR struct {
	text  string
	err   error
	calls int
}

func (f *fakeOCR) Recognize(ctx context.Context, _ []byte, _ string) (string, error) {
	f.calls++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.text, f.err
}
