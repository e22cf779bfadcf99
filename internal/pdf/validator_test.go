package pdf

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/a3tai/pdf-evidence/internal/pdf/pdftest"
)

func TestValidator_ValidateFile(t *testing.T) {
	tempDir := t.TempDir()

	valid := filepath.Join(tempDir, "valid.pdf")
	if err := os.WriteFile(valid, pdftest.Sample(), 0o644); err != nil {
		t.Fatal(err)
	}
	prefixed := filepath.Join(tempDir, "prefixed.bin")
	if err := os.WriteFile(prefixed, append([]byte("junk before header\n"), pdftest.Sample()...), 0o644); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(tempDir, "empty.pdf")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	noHeader := filepath.Join(tempDir, "note.pdf")
	if err := os.WriteFile(noHeader, []byte("just some text"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		path        string
		maxFileSize int64
		errMsg      string
	}{
		{"valid document", valid, 0, ""},
		{"header after junk", prefixed, 0, ""},
		{"empty path", "", 0, "path cannot be empty"},
		{"missing file", filepath.Join(tempDir, "absent.pdf"), 0, "does not exist"},
		{"directory", tempDir, 0, "directory"},
		{"empty file", empty, 0, "empty"},
		{"no header", noHeader, 0, "header"},
		{"too large", valid, 10, "too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewValidator(tt.maxFileSize).ValidateFile(tt.path)
			if tt.errMsg == "" {
				if err != nil {
					t.Errorf("ValidateFile() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("ValidateFile() expected error containing %q", tt.errMsg)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("ValidateFile() error = %v, want it to contain %q", err, tt.errMsg)
			}
		})
	}
}

func TestHeaderOffset(t *testing.T) {
	if got := HeaderOffset([]byte("%PDF-1.7\n")); got != 0 {
		t.Errorf("HeaderOffset() = %d, want 0", got)
	}
	if got := HeaderOffset([]byte("abc%PDF-1.7")); got != 3 {
		t.Errorf("HeaderOffset() = %d, want 3", got)
	}
	if got := HeaderOffset([]byte("PDF")); got != -1 {
		t.Errorf("HeaderOffset() = %d, want -1", got)
	}
}
