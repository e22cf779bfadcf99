package evidence

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
)

// Page text previews in the narrative are cut at this many characters.
const textPreviewLimit = 20000

const truncatedMarker = "\n...(truncated)"

// RenderNarrative renders the human-readable report of m in reading order.
// It uses only data held by the manifest.
func RenderNarrative(m *Manifest) string {
	var b strings.Builder
	writeNarrative(&b, m)
	return b.String()
}

func writeNarrative(w io.Writer, m *Manifest) {
	fmt.Fprintf(w, "PDF Evidence Report\n")
	fmt.Fprintf(w, "===================\n\n")

	fmt.Fprintf(w, "Run ID:        %s\n", m.RunID)
	fmt.Fprintf(w, "Case folder:   %s\n", m.CaseFolder)
	fmt.Fprintf(w, "Source:        %s\n", m.SourcePath)
	fmt.Fprintf(w, "Evidence copy: %s\n", m.EvidencePath)
	fmt.Fprintf(w, "File size:     %s (%d bytes)\n", humanize.Bytes(uint64(max(m.FileSize, 0))), m.FileSize)
	fmt.Fprintf(w, "Created:       %s\n", m.CreatedTime)
	fmt.Fprintf(w, "Modified:      %s\n\n", m.ModifiedTime)

	fmt.Fprintf(w, "Hashes\n")
	fmt.Fprintf(w, "  MD5:    %s\n", m.Hashes.MD5)
	fmt.Fprintf(w, "  SHA1:   %s\n", m.Hashes.SHA1)
	fmt.Fprintf(w, "  SHA256: %s\n\n", m.Hashes.SHA256)

	fmt.Fprintf(w, "Document\n")
	fmt.Fprintf(w, "  Pages: %d\n", m.PageCount)
	if m.PDFVersion != "" {
		fmt.Fprintf(w, "  PDF header: %%PDF-%s\n", m.PDFVersion)
	}
	if len(m.Metadata) > 0 {
		fmt.Fprintf(w, "  Metadata:\n")
		keys := make([]string, 0, len(m.Metadata))
		for k := range m.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "    %s: %s\n", k, m.Metadata[k])
		}
	}
	fmt.Fprintln(w)

	writeTriage(w, m)

	for _, p := range m.Pages {
		writePage(w, m, p)
	}

	attachments := filesOfKind(m.ExtractedFiles, KindAttachment)
	if len(attachments) > 0 {
		fmt.Fprintf(w, "Embedded files\n")
		for _, f := range attachments {
			fmt.Fprintf(w, "  %s (%s, sha256 %s)\n", f.Path, humanize.Bytes(uint64(f.Size)), f.SHA256)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Summary\n")
	fmt.Fprintf(w, "  Unique images written: %d\n", m.Summary.TotalImages)
	fmt.Fprintf(w, "  Image occurrences:     %d\n", m.Summary.TotalImageOccurrences)
	fmt.Fprintf(w, "  Links:                 %d\n", m.Summary.TotalLinks)
	fmt.Fprintf(w, "  Text lines:            %d\n", m.Summary.TotalLines)
	fmt.Fprintf(w, "  Extracted files:       %d\n", m.Summary.ExtractedFiles)
	if len(m.Links) > 0 {
		fmt.Fprintf(w, "  All links:\n")
		for _, l := range m.Links {
			fmt.Fprintf(w, "    %s\n", l)
		}
	}
}

func writeTriage(w io.Writer, m *Manifest) {
	t := m.Triage
	fmt.Fprintf(w, "Triage\n")
	fmt.Fprintf(w, "  Objects scanned: 1..%d of %d\n", t.ScannedThrough, t.ObjectCount)
	if t.Bounded {
		fmt.Fprintf(w, "  Scan bounded at object %d: objects above the bound were NOT examined\n", t.MaxXref)
	}
	if t.Unreadable > 0 {
		fmt.Fprintf(w, "  Unreadable objects skipped: %d\n", t.Unreadable)
	}
	fmt.Fprintf(w, "  JavaScript objects:   %s\n", joinInts(m.Suspicious.JavaScript))
	fmt.Fprintf(w, "  EmbeddedFile objects: %s\n", joinInts(m.Suspicious.EmbeddedFile))
	for _, f := range filesOfKind(m.ExtractedFiles, KindObjectDump) {
		fmt.Fprintf(w, "  Dump: %s\n", f.Path)
	}
	fmt.Fprintln(w)
}

func writePage(w io.Writer, m *Manifest, p PageRecord) {
	fmt.Fprintf(w, "--- Page %d ---\n", p.PageNumber)

	text := strings.TrimSpace(p.Text)
	if text != "" {
		fmt.Fprintf(w, "Text preview (%d lines):\n", p.LineCount)
		fmt.Fprintf(w, "%s\n", previewText(text))
	} else {
		fmt.Fprintf(w, "Text preview: (no text)\n")
	}

	writeList(w, "URLs", p.URLs)
	writeList(w, "IPs", p.IPs)
	writeList(w, "Emails", p.Emails)

	var images []ImageRecord
	for _, img := range m.Images {
		if img.Page == p.PageNumber {
			images = append(images, img)
		}
	}
	if len(images) > 0 {
		fmt.Fprintf(w, "Images:\n")
		for _, img := range images {
			if img.Duplicate() {
				fmt.Fprintf(w, "  object %d: duplicate of sha256 %s (%s)\n", img.Xref, img.Hash, humanize.Bytes(uint64(img.Size)))
			} else {
				fmt.Fprintf(w, "  object %d: %s (sha256 %s, %s)\n", img.Xref, img.File, img.Hash, humanize.Bytes(uint64(img.Size)))
			}
			if img.OCRSnippet != "" {
				fmt.Fprintf(w, "    OCR: %s\n", strings.ReplaceAll(img.OCRSnippet, "\n", " "))
			}
		}
	}

	if len(p.Annotations) > 0 {
		fmt.Fprintf(w, "Links:\n")
		for _, a := range p.Annotations {
			if a.URI != "" {
				fmt.Fprintf(w, "  %s: %s\n", a.Subtype, a.URI)
			} else {
				fmt.Fprintf(w, "  %s\n", a.Subtype)
			}
		}
	}
	fmt.Fprintln(w)
}

func writeList(w io.Writer, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s: %s\n", label, strings.Join(items, ", "))
}

func previewText(text string) string {
	if len([]rune(text)) <= textPreviewLimit {
		return text
	}
	return truncateRunes(text, textPreviewLimit) + truncatedMarker
}

func joinInts(v []int) string {
	if len(v) == 0 {
		return "none"
	}
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}

func filesOfKind(files []ExtractedFile, kind string) []ExtractedFile {
	var out []ExtractedFile
	for _, f := range files {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}
