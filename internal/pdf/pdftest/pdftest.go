// Package pdftest builds small, well-formed PDF documents for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// SampleText is the text drawn on the page of Sample.
const SampleText = "Visit http://example.com/a now"

// SampleURI is the target of the link annotation in Sample.
const SampleURI = "http://example.com/a"

// SampleScriptObject is the object number of the JavaScript action in Sample.
const SampleScriptObject = 6

// Build assembles a PDF 1.4 file with a correct cross-reference table.
// objects[i] becomes object i+1; object 1 must be the catalog. trailerExtra
// is appended inside the trailer dictionary.
func Build(objects []string, trailerExtra string) []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, body := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objects)+1)
	b.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R%s >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, trailerExtra, xref)
	return b.Bytes()
}

// Sample is one page carrying SampleText, a link annotation to SampleURI, an
// information dictionary and a JavaScript open action.
func Sample() []byte {
	content := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", SampleText)
	stream := fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content)
	return Build([]string{
		"<< /Type /Catalog /Pages 2 0 R /OpenAction 6 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> /Annots [8 0 R] >>",
		stream,
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		`<< /Type /Action /S /JavaScript /JS (app.alert\(1\)) >>`,
		"<< /Author (Mallory) /Title (Quote) >>",
		"<< /Type /Annot /Subtype /Link /Rect [72 700 300 720] /A << /S /URI /URI (" + SampleURI + ") >> >>",
	}, " /Info 7 0 R")
}

// FirstImageObject is the object number of the first image in an
// ImageDocument. Image i is object FirstImageObject+i.
const FirstImageObject = 3

// Image is an image XObject for ImageDocument. Data is stored as given, so
// it must already be encoded with Filter when one is set.
type Image struct {
	Width, Height int
	Filter        string
	Data          []byte
}

// RGB is a width by height DeviceRGB image filled with one color.
func RGB(width, height int, r, g, b byte) Image {
	data := make([]byte, 0, width*height*3)
	for range width * height {
		data = append(data, r, g, b)
	}
	return Image{Width: width, Height: height, Data: data}
}

// ImageDocument places images on pages. pages[p] lists the indexes into
// images that page p+1 draws; an image may appear on several pages.
func ImageDocument(images []Image, pages [][]int) []byte {
	objects := []string{"<< /Type /Catalog /Pages 2 0 R >>", ""}

	for _, img := range images {
		filter := ""
		if img.Filter != "" {
			filter = " /Filter /" + img.Filter
		}
		objects = append(objects, fmt.Sprintf(
			"<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8%s /Length %d >>\nstream\n%s\nendstream",
			img.Width, img.Height, filter, len(img.Data), img.Data))
	}

	var kids []string
	for _, drawn := range pages {
		pageNr := len(objects) + 1
		kids = append(kids, fmt.Sprintf("%d 0 R", pageNr))

		var xobjects, content strings.Builder
		for _, i := range drawn {
			objNr := FirstImageObject + i
			fmt.Fprintf(&xobjects, " /Im%d %d 0 R", objNr, objNr)
			fmt.Fprintf(&content, "q 20 0 0 20 72 %d cm /Im%d Do Q\n", 72+30*i, objNr)
		}
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /XObject <<%s >> >> >>", pageNr+1, xobjects.String()),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()),
		)
	}
	objects[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages))
	return Build(objects, "")
}

// Attachment is an embedded file for AttachmentDocument. Key is its name
// tree key and FileName the name its file specification declares.
type Attachment struct {
	Key      string
	FileName string
	Data     []byte
}

// AttachmentDocument is a one-page document embedding files through the
// EmbeddedFiles name tree, in the order given. Keys must be sorted.
func AttachmentDocument(files []Attachment) []byte {
	var names strings.Builder
	objects := []string{
		"",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>",
	}
	for _, f := range files {
		specNr := len(objects) + 1
		fmt.Fprintf(&names, " (%s) %d 0 R", f.Key, specNr)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Filespec /F (%s) /UF (%s) /EF << /F %d 0 R >> >>", f.FileName, f.FileName, specNr+1),
			fmt.Sprintf("<< /Type /EmbeddedFile /Length %d >>\nstream\n%s\nendstream", len(f.Data), f.Data),
		)
	}
	objects[0] = fmt.Sprintf("<< /Type /Catalog /Pages 2 0 R /Names << /EmbeddedFiles << /Names [%s ] >> >> >>", names.String())
	return Build(objects, "")
}

// WriteFile writes data to name inside a fresh temporary directory and
// returns the path.
func WriteFile(t testing.TB, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}
