package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/a3tai/pdf-evidence/internal/evidence"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// ObjectCount returns the highest object number in the cross-reference table.
func (d *Document) ObjectCount() int {
	if d.ctx == nil {
		return 0
	}
	highest := 0
	for objNr := range d.ctx.Table {
		if objNr > highest {
			highest = objNr
		}
	}
	return highest
}

// RawObject returns the PDF source form of object objNr. Stream objects yield
// their dictionary only. Free or absent entries read as null.
func (d *Document) RawObject(objNr int) (raw string, err error) {
	if d.ctx == nil {
		return "", &ProviderError{Library: LibraryPDFCPU, Op: "raw_object", Err: ErrLocked}
	}
	defer recoverError("raw_object", LibraryPDFCPU, &err)

	entry, ok := d.ctx.Table[objNr]
	if !ok || entry == nil || entry.Free {
		return "null", nil
	}

	gen := 0
	if entry.Generation != nil {
		gen = *entry.Generation
	}
	obj, err := d.ctx.Dereference(*types.NewIndirectRef(objNr, gen))
	if err != nil {
		return "", &ProviderError{Library: LibraryPDFCPU, Op: "raw_object", Err: fmt.Errorf("object %d: %w", objNr, err)}
	}
	return objectSource(obj), nil
}

func objectSource(obj types.Object) string {
	switch o := obj.(type) {
	case nil:
		return "null"
	case types.StreamDict:
		return o.Dict.PDFString() + "\nstream"
	case *types.StreamDict:
		return o.Dict.PDFString() + "\nstream"
	default:
		return o.PDFString()
	}
}

// Metadata returns the entries of the document information dictionary.
func (d *Document) Metadata() map[string]string {
	meta := map[string]string{}
	if d.ctx == nil || d.ctx.Info == nil {
		return meta
	}

	func() {
		defer func() { _ = recover() }()

		info, err := d.ctx.DereferenceDict(*d.ctx.Info)
		if err != nil || info == nil {
			return
		}
		for key, value := range info {
			if s, err := d.ctx.DereferenceStringOrHexLiteral(value, model.V10, nil); err == nil {
				meta[key] = s
				continue
			}
			if o, err := d.ctx.Dereference(value); err == nil && o != nil {
				meta[key] = o.String()
			}
		}
	}()
	return meta
}

// Version returns the header version, such as "1.7".
func (d *Document) Version() (v string) {
	if d.ctx == nil {
		return ""
	}
	defer func() {
		if recover() != nil {
			v = ""
		}
	}()
	return d.ctx.HeaderVersion.String()
}

// optimized returns the validated and optimized context that attachment
// extraction needs.
func (d *Document) optimized() (*model.Context, error) {
	d.optOnce.Do(func() {
		f, err := os.Open(d.path)
		if err != nil {
			d.optErr = err
			return
		}
		defer f.Close()

		d.optCtx, d.optErr = readOptimized(f)
	})
	return d.optCtx, d.optErr
}

func readOptimized(rs io.ReadSeeker) (ctx *model.Context, err error) {
	defer recoverError("optimize", LibraryPDFCPU, &err)

	ctx, err = api.ReadValidateAndOptimize(rs, newConfiguration())
	if err != nil {
		return nil, &ProviderError{Library: LibraryPDFCPU, Op: "optimize", Err: err}
	}
	return ctx, nil
}

// maxResourceDepth bounds the walk up the page tree and into nested forms.
const maxResourceDepth = 32

// pageImages caches the decoded images of the most recently listed page.
// An object that failed to decode has nil bytes and an entry in errs.
type pageImages struct {
	page  int
	bytes map[int][]byte
	errs  map[int]error
}

// PageImages lists the image XObjects page draws, including those drawn by
// its form XObjects, ordered by object number. Every object is reported
// under its own number even when another object holds the same bytes. Each
// image is decoded on its own: one that fails is still listed and ImageBytes
// reports its error.
func (d *Document) PageImages(page int) (refs []evidence.ImageRef, err error) {
	if err := d.checkPage("page_images", page); err != nil {
		return nil, err
	}
	defer recoverError("page_images", LibraryPDFCPU, &err)

	pageDict, _, _, err := d.ctx.PageDict(page, false)
	if err != nil {
		return nil, &ProviderError{Library: LibraryPDFCPU, Op: "page_images", Err: err}
	}
	if pageDict == nil {
		return nil, &ProviderError{Library: LibraryPDFCPU, Op: "page_images", Err: fmt.Errorf("page %d has no dictionary", page)}
	}

	found := map[int]imageXObject{}
	d.collectImages(d.pageResources(pageDict), found, map[int]bool{}, 0)

	objNrs := make([]int, 0, len(found))
	for objNr := range found {
		objNrs = append(objNrs, objNr)
	}
	sort.Ints(objNrs)

	cache := pageImages{page: page, bytes: map[int][]byte{}, errs: map[int]error{}}
	for _, objNr := range objNrs {
		data, ext, err := d.extractImage(objNr, found[objNr])
		if err != nil {
			cache.errs[objNr] = err
			data = nil
		}
		cache.bytes[objNr] = data
		refs = append(refs, evidence.ImageRef{ObjectIndex: objNr, Ext: ext})
	}

	d.imgMu.Lock()
	d.images = cache
	d.imgMu.Unlock()

	return refs, nil
}

// pageResources returns the resource dictionary of a page, inherited from
// the nearest ancestor when the page has none.
func (d *Document) pageResources(pageDict types.Dict) types.Dict {
	node := pageDict
	for i := 0; i < maxResourceDepth && node != nil; i++ {
		if obj, ok := node.Find("Resources"); ok {
			if res, err := d.ctx.DereferenceDict(obj); err == nil && res != nil {
				return res
			}
		}
		parent, ok := node.Find("Parent")
		if !ok {
			return nil
		}
		next, err := d.ctx.DereferenceDict(parent)
		if err != nil {
			return nil
		}
		node = next
	}
	return nil
}

// imageXObject is an image stream and the first resource name it was found
// under.
type imageXObject struct {
	name string
	sd   *types.StreamDict
}

// collectImages records every image XObject reachable from res, keyed by
// object number.
func (d *Document) collectImages(res types.Dict, found map[int]imageXObject, visited map[int]bool, depth int) {
	if res == nil || depth > maxResourceDepth {
		return
	}
	obj, ok := res.Find("XObject")
	if !ok {
		return
	}
	xobjects, err := d.ctx.DereferenceDict(obj)
	if err != nil || xobjects == nil {
		return
	}

	names := make([]string, 0, len(xobjects))
	for name := range xobjects {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ref, ok := xobjects[name].(types.IndirectRef)
		if !ok {
			continue
		}
		objNr := ref.ObjectNumber.Value()
		if visited[objNr] {
			continue
		}
		visited[objNr] = true

		sd := d.streamDict(ref)
		if sd == nil {
			continue
		}
		subtype := sd.Dict.NameEntry("Subtype")
		if subtype == nil {
			continue
		}
		switch *subtype {
		case "Image":
			found[objNr] = imageXObject{name: name, sd: sd}
		case "Form":
			if nested, ok := sd.Dict.Find("Resources"); ok {
				if nres, err := d.ctx.DereferenceDict(nested); err == nil {
					d.collectImages(nres, found, visited, depth+1)
				}
			}
		}
	}
}

func (d *Document) streamDict(ref types.IndirectRef) *types.StreamDict {
	obj, err := d.ctx.Dereference(ref)
	if err != nil {
		return nil
	}
	switch sd := obj.(type) {
	case types.StreamDict:
		return &sd
	case *types.StreamDict:
		return sd
	}
	return nil
}

// extractImage decodes a single image object into its exported file form.
func (d *Document) extractImage(objNr int, x imageXObject) (data []byte, ext string, err error) {
	defer recoverError("image_bytes", LibraryPDFCPU, &err)

	img, err := pdfcpu.ExtractImage(d.ctx, x.sd, false, x.name, objNr, false)
	if err != nil {
		return nil, "", fmt.Errorf("object %d: %w", objNr, err)
	}
	if img == nil || img.Reader == nil {
		return nil, "", fmt.Errorf("object %d: unsupported image encoding", objNr)
	}
	data, err = io.ReadAll(img.Reader)
	if err != nil {
		return nil, img.FileType, fmt.Errorf("object %d: %w", objNr, err)
	}
	return data, img.FileType, nil
}

// ImageBytes returns the bytes of an image listed by PageImages.
func (d *Document) ImageBytes(page int, ref evidence.ImageRef) ([]byte, error) {
	if err := d.checkPage("image_bytes", page); err != nil {
		return nil, err
	}

	d.imgMu.Lock()
	defer d.imgMu.Unlock()

	if d.images.page != page {
		return nil, &ProviderError{Library: LibraryPDFCPU, Op: "image_bytes", Err: fmt.Errorf("page %d images not loaded", page)}
	}
	data, ok := d.images.bytes[ref.ObjectIndex]
	if !ok {
		return nil, &ProviderError{Library: LibraryPDFCPU, Op: "image_bytes", Err: fmt.Errorf("no image object %d on page %d", ref.ObjectIndex, page)}
	}
	if data == nil {
		cause := d.images.errs[ref.ObjectIndex]
		var perr *ProviderError
		if errors.As(cause, &perr) {
			return nil, cause
		}
		if cause == nil {
			cause = fmt.Errorf("image object %d could not be decoded", ref.ObjectIndex)
		}
		return nil, &ProviderError{Library: LibraryPDFCPU, Op: "image_bytes", Err: cause}
	}
	return bytes.Clone(data), nil
}

// Attachments lists the embedded files in name tree order. ID is the name
// tree key, which is unique; FileName is the name the file declares.
func (d *Document) Attachments() (refs []evidence.AttachmentRef, err error) {
	if d.locked || d.closed {
		return nil, &ProviderError{Library: LibraryPDFCPU, Op: "attachments", Err: ErrLocked}
	}
	ctx, err := d.optimized()
	if err != nil {
		return nil, err
	}
	defer recoverError("attachments", LibraryPDFCPU, &err)

	list, err := ctx.ListAttachments()
	if err != nil {
		return nil, &ProviderError{Library: LibraryPDFCPU, Op: "attachments", Err: err}
	}
	for _, a := range list {
		refs = append(refs, evidence.AttachmentRef{ID: a.ID, FileName: strings.TrimSpace(a.FileName)})
	}
	return refs, nil
}

// Attachment returns the payload of the embedded file whose name tree key
// is id.
func (d *Document) Attachment(id string) (data []byte, err error) {
	if d.locked || d.closed {
		return nil, &ProviderError{Library: LibraryPDFCPU, Op: "attachment", Err: ErrLocked}
	}
	ctx, err := d.optimized()
	if err != nil {
		return nil, err
	}
	defer recoverError("attachment", LibraryPDFCPU, &err)

	list, err := ctx.ListAttachments()
	if err != nil {
		return nil, &ProviderError{Library: LibraryPDFCPU, Op: "attachment", Err: err}
	}
	for _, a := range list {
		if a.ID != id {
			continue
		}
		extracted, err := ctx.ExtractAttachment(a)
		if err != nil {
			return nil, &ProviderError{Library: LibraryPDFCPU, Op: "attachment", Err: err}
		}
		if extracted == nil || extracted.Reader == nil {
			return nil, &ProviderError{Library: LibraryPDFCPU, Op: "attachment", Err: fmt.Errorf("attachment %q has no content", id)}
		}
		return io.ReadAll(extracted.Reader)
	}
	return nil, &ProviderError{Library: LibraryPDFCPU, Op: "attachment", Err: fmt.Errorf("attachment %q not found", id)}
}
