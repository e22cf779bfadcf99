package evidence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// EvidenceRun describes the source, its evidence copy and the document.
type EvidenceRun struct {
	RunID        string            `json:"run_id"`
	CaseFolder   string            `json:"case_folder"`
	SourcePath   string            `json:"source_path"`
	EvidencePath string            `json:"evidence_path"`
	FileSize     int64             `json:"file_size"`
	CreatedTime  string            `json:"created_time"`
	ModifiedTime string            `json:"modified_time"`
	Hashes       HashSet           `json:"hashes"`
	PageCount    int               `json:"page_count"`
	Metadata     map[string]string `json:"pdf_metadata"`
	PDFVersion   string            `json:"pdf_version,omitempty"`
}

// PageRecord holds the findings of one page.
type PageRecord struct {
	PageNumber  int       `json:"page_number"`
	URLs        []string  `json:"urls"`
	IPs         []string  `json:"ips"`
	Emails      []string  `json:"emails"`
	LineCount   int       `json:"line_count"`
	Annotations []LinkRef `json:"annotations,omitempty"`

	// Text is the page text, kept for the narrative report only.
	Text string `json:"-" msgpack:"-"`
}

// Summary holds aggregate counts.
type Summary struct {
	TotalImages           int `json:"total_images"`
	TotalImageOccurrences int `json:"total_image_occurrences"`
	TotalLinks            int `json:"total_links"`
	TotalLines            int `json:"total_lines"`
	ExtractedFiles        int `json:"extracted_files"`
}

// ToolInfo identifies the software that produced a manifest.
type ToolInfo struct {
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	GoVersion string   `json:"go_version"`
	Providers []string `json:"providers,omitempty"`
}

// Manifest is the complete record of one evidence run.
type Manifest struct {
	EvidenceRun

	Triage         TriageInfo        `json:"triage"`
	Suspicious     SuspiciousObjects `json:"suspicious"`
	Pages          []PageRecord      `json:"pages"`
	Images         []ImageRecord     `json:"images"`
	Links          []string          `json:"links"`
	ExtractedFiles []ExtractedFile   `json:"extracted_files"`
	Summary        Summary           `json:"summary"`
	Tool           ToolInfo          `json:"tool"`
}

func newManifest() *Manifest {
	return &Manifest{
		EvidenceRun:    EvidenceRun{Metadata: map[string]string{}},
		Suspicious:     SuspiciousObjects{JavaScript: []int{}, EmbeddedFile: []int{}},
		Pages:          []PageRecord{},
		Images:         []ImageRecord{},
		Links:          []string{},
		ExtractedFiles: []ExtractedFile{},
	}
}

// summarize recomputes the summary counts from the collected records.
func (m *Manifest) summarize() {
	s := Summary{
		TotalImageOccurrences: len(m.Images),
		TotalLinks:            len(m.Links),
		ExtractedFiles:        len(m.ExtractedFiles),
	}
	for _, img := range m.Images {
		if !img.Duplicate() {
			s.TotalImages++
		}
	}
	for _, p := range m.Pages {
		s.TotalLines += p.LineCount
	}
	m.Summary = s
}

// Stem is the evidence file name without its extension. Reports are named
// after it.
func (m *Manifest) Stem() string {
	base := filepath.Base(m.EvidencePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ReportFile returns the absolute path of the report with extension ext.
func (m *Manifest) ReportFile(ext string) string {
	return filepath.Join(m.CaseFolder, filepath.FromSlash(ReportPath(m.Stem(), ext)))
}

// WriteJSON writes the structured form as indented JSON.
func (m *Manifest) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return nil
}

// MarshalJSONReport returns the structured form as bytes.
func (m *Manifest) MarshalJSONReport() ([]byte, error) {
	var buf bytes.Buffer
	if err := m.WriteJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalMsgpack encodes the structured form as MessagePack using the JSON
// field names.
func (m *Manifest) MarshalMsgpack() ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.SetSortMapKeys(true)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeMsgpack reads a manifest produced by MarshalMsgpack.
func DecodeMsgpack(data []byte) (*Manifest, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}
