package pdf

import (
	"fmt"
	"strings"

	"github.com/a3tai/pdf-evidence/internal/evidence"
	"github.com/ledongthuc/pdf"
)

// PageText extracts the plain text of page.
func (d *Document) PageText(page int) (text string, err error) {
	if err := d.checkPage("page_text", page); err != nil {
		return "", err
	}
	if d.text == nil {
		return "", d.textErr
	}
	defer recoverError("page_text", LibraryLedongthuc, &err)

	p := d.text.Page(page)
	if p.V.IsNull() {
		return "", &ProviderError{Library: LibraryLedongthuc, Op: "page_text", Err: fmt.Errorf("page %d not found", page)}
	}
	text, err = p.GetPlainText(nil)
	if err != nil {
		return "", &ProviderError{Library: LibraryLedongthuc, Op: "page_text", Err: err}
	}
	return text, nil
}

// PageLinks returns the link annotations of page and any other annotation
// whose action carries a URI.
func (d *Document) PageLinks(page int) (links []evidence.LinkRef, err error) {
	if err := d.checkPage("page_links", page); err != nil {
		return nil, err
	}
	if d.text == nil {
		return nil, d.textErr
	}
	defer recoverError("page_links", LibraryLedongthuc, &err)

	p := d.text.Page(page)
	if p.V.IsNull() {
		return nil, nil
	}
	annots := p.V.Key("Annots")
	if annots.Kind() != pdf.Array {
		return nil, nil
	}

	for i := 0; i < annots.Len(); i++ {
		if link, ok := linkFromAnnotation(annots.Index(i)); ok {
			links = append(links, link)
		}
	}
	return links, nil
}

func linkFromAnnotation(annot pdf.Value) (evidence.LinkRef, bool) {
	if annot.Kind() != pdf.Dict {
		return evidence.LinkRef{}, false
	}
	subtype := annot.Key("Subtype").Name()

	uri := ""
	action := annot.Key("A")
	if action.Kind() == pdf.Dict {
		uri = strings.TrimSpace(action.Key("URI").Text())
	}

	if subtype != "Link" && uri == "" {
		return evidence.LinkRef{}, false
	}
	if subtype == "" {
		subtype = "Annotation"
	}
	return evidence.LinkRef{Subtype: subtype, URI: uri}, true
}
