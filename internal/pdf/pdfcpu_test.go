package pdf

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/a3tai/pdf-evidence/internal/evidence"
	"github.com/a3tai/pdf-evidence/internal/pdf/pdftest"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openBytes(t *testing.T, name string, data []byte) *Document {
	t.Helper()
	path := pdftest.WriteFile(t, name, data)
	doc, err := NewProvider(Config{}).Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { doc.Close() })
	return doc.(*Document)
}

func objectIndexes(refs []evidence.ImageRef) []int {
	out := make([]int, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.ObjectIndex)
	}
	return out
}

func collect(t *testing.T, source string) (*evidence.Manifest, string, error) {
	t.Helper()
	opts := evidence.DefaultOptions()
	opts.OutputDir = filepath.Join(t.TempDir(), "case")
	m, err := evidence.NewCollector(NewProvider(Config{}), opts).Run(context.Background(), source)
	return m, opts.OutputDir, err
}

// identicalImages has two image objects with the same bytes: page 1 draws
// the first, page 2 draws both.
func identicalImages() []byte {
	red := pdftest.RGB(2, 2, 255, 0, 0)
	return pdftest.ImageDocument([]pdftest.Image{red, red}, [][]int{{0}, {0, 1}})
}

func TestDocument_PageImagesKeepsIdenticalObjectsApart(t *testing.T) {
	doc := openBytes(t, "images.pdf", identicalImages())
	first, second := pdftest.FirstImageObject, pdftest.FirstImageObject+1

	refs, err := doc.PageImages(1)
	require.NoError(t, err)
	assert.Equal(t, []int{first}, objectIndexes(refs))

	refs, err = doc.PageImages(2)
	require.NoError(t, err)
	require.Equal(t, []int{first, second}, objectIndexes(refs))

	a, err := doc.ImageBytes(2, refs[0])
	require.NoError(t, err)
	b, err := doc.ImageBytes(2, refs[1])
	require.NoError(t, err)
	assert.NotEmpty(t, a)
	assert.Equal(t, a, b)
}

func TestDocument_PageImagesIsolatesUndecodableImage(t *testing.T) {
	broken := pdftest.Image{Width: 2, Height: 2, Filter: "FlateDecode", Data: []byte("hello")}
	data := pdftest.ImageDocument([]pdftest.Image{pdftest.RGB(2, 2, 0, 0, 255), broken}, [][]int{{0, 1}})
	doc := openBytes(t, "broken.pdf", data)
	good, bad := pdftest.FirstImageObject, pdftest.FirstImageObject+1

	refs, err := doc.PageImages(1)
	require.NoError(t, err)
	require.Equal(t, []int{good, bad}, objectIndexes(refs))

	img, err := doc.ImageBytes(1, refs[0])
	require.NoError(t, err)
	assert.NotEmpty(t, img)

	_, err = doc.ImageBytes(1, refs[1])
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, LibraryPDFCPU, perr.Library)
}

func TestProvider_EvidenceRunRecordsEveryImageObject(t *testing.T) {
	source := pdftest.WriteFile(t, "images.pdf", identicalImages())
	first, second := pdftest.FirstImageObject, pdftest.FirstImageObject+1

	m, out, err := collect(t, source)
	require.NoError(t, err)

	type occurrence struct {
		Page, Xref int
		Written    bool
	}
	var got []occurrence
	for _, img := range m.Images {
		got = append(got, occurrence{Page: img.Page, Xref: img.Xref, Written: !img.Duplicate()})
	}
	assert.Equal(t, []occurrence{
		{Page: 1, Xref: first, Written: true},
		{Page: 2, Xref: first},
		{Page: 2, Xref: second},
	}, got)
	assert.Equal(t, 1, m.Summary.TotalImages)
	assert.Equal(t, 3, m.Summary.TotalImageOccurrences)

	_, err = os.Stat(filepath.Join(out, filepath.FromSlash(m.Images[0].File)))
	assert.NoError(t, err)
}

func TestProvider_EvidenceRunSkipsUndecodableImage(t *testing.T) {
	broken := pdftest.Image{Width: 2, Height: 2, Filter: "FlateDecode", Data: []byte("hello")}
	data := pdftest.ImageDocument([]pdftest.Image{pdftest.RGB(2, 2, 0, 0, 255), broken}, [][]int{{0, 1}})
	source := pdftest.WriteFile(t, "broken.pdf", data)

	m, _, err := collect(t, source)
	require.NoError(t, err)

	require.Len(t, m.Images, 1)
	assert.Equal(t, pdftest.FirstImageObject, m.Images[0].Xref)
	assert.Equal(t, 1, m.Images[0].Page)
}

func TestDocument_AttachmentsSharingAFileName(t *testing.T) {
	doc := openBytes(t, "attach.pdf", pdftest.AttachmentDocument([]pdftest.Attachment{
		{Key: "a-first", FileName: "payload.txt", Data: []byte("alpha")},
		{Key: "b-second", FileName: "payload.txt", Data: []byte("bravo")},
	}))

	refs, err := doc.Attachments()
	require.NoError(t, err)
	assert.ElementsMatch(t, []evidence.AttachmentRef{
		{ID: "a-first", FileName: "payload.txt"},
		{ID: "b-second", FileName: "payload.txt"},
	}, refs)

	data, err := doc.Attachment("a-first")
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(data))

	data, err = doc.Attachment("b-second")
	require.NoError(t, err)
	assert.Equal(t, "bravo", string(data))

	_, err = doc.Attachment("payload.txt")
	assert.Error(t, err)
}

func TestProvider_EvidenceRunWritesEveryAttachment(t *testing.T) {
	source := pdftest.WriteFile(t, "attach.pdf", pdftest.AttachmentDocument([]pdftest.Attachment{
		{Key: "a-first", FileName: "payload.txt", Data: []byte("alpha")},
		{Key: "b-second", FileName: "payload.txt", Data: []byte("bravo")},
	}))

	m, out, err := collect(t, source)
	require.NoError(t, err)

	var payloads []string
	for _, f := range m.ExtractedFiles {
		if f.Kind != evidence.KindAttachment {
			continue
		}
		data, err := os.ReadFile(filepath.Join(out, filepath.FromSlash(f.Path)))
		require.NoError(t, err)
		payloads = append(payloads, string(data))
	}
	assert.ElementsMatch(t, []string{"alpha", "bravo"}, payloads)
}

func TestDocument_AttachmentsAddedByPDFCPU(t *testing.T) {
	dir := t.TempDir()
	in := pdftest.WriteFile(t, "sample.pdf", pdftest.Sample())
	out := filepath.Join(dir, "attached.pdf")
	invoice := filepath.Join(dir, "invoice.exe")
	notes := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(invoice, []byte("MZ payload"), 0o644))
	require.NoError(t, os.WriteFile(notes, []byte("call me"), 0o644))
	require.NoError(t, api.AddAttachmentsFile(in, out, []string{invoice, notes}, false, nil))

	doc, err := NewProvider(Config{}).Open(context.Background(), out)
	require.NoError(t, err)
	defer doc.Close()
	src := doc.(*Document)

	refs, err := src.Attachments()
	require.NoError(t, err)
	got := map[string]string{}
	for _, ref := range refs {
		data, err := src.Attachment(ref.ID)
		require.NoError(t, err)
		got[ref.Name()] = string(data)
	}
	assert.Equal(t, map[string]string{"invoice.exe": "MZ payload", "notes.txt": "call me"}, got)
}

func TestProvider_EncryptedDocuments(t *testing.T) {
	tests := []struct {
		name string
		conf *model.Configuration
	}{
		{"AES-128", model.NewAESConfiguration("user-secret", "owner-secret", 128)},
		{"AES-256", model.NewAESConfiguration("user-secret", "owner-secret", 256)},
		{"RC4-128", model.NewRC4Configuration("user-secret", "owner-secret", 128)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := pdftest.WriteFile(t, "plain.pdf", pdftest.Sample())
			locked := filepath.Join(t.TempDir(), "locked.pdf")
			require.NoError(t, api.EncryptFile(in, locked, tt.conf))

			doc, err := NewProvider(Config{}).Open(context.Background(), locked)
			require.NoError(t, err)
			assert.True(t, doc.RequiresPassword())
			assert.Equal(t, 0, doc.PageCount())
			require.NoError(t, doc.Close())

			m, _, err := collect(t, locked)
			assert.Nil(t, m)
			require.ErrorIs(t, err, evidence.ErrEncrypted)
			stage, _ := evidence.FailedStage(err)
			assert.Equal(t, evidence.StageCheckEncryption, stage)
		})
	}
}
