package evidence

import (
	"fmt"
	"os"
	"path/filepath"
)

// Subdirectories of a case folder.
const (
	imagesDir      = "extracted_images"
	attachmentsDir = "embedded_files"
	objectDumpsDir = "suspicious_objects"
	reportsDir     = "reports"
)

// Kinds of extracted side artifacts.
const (
	KindObjectDump = "xref_dump"
	KindAttachment = "attachment"
)

// ExtractedFile records a persisted side artifact, relative to the case folder.
type ExtractedFile struct {
	Path   string `json:"path"`
	Kind   string `json:"kind"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// caseFolder writes artifacts below root. Subdirectories are created on first
// write so that a run failing early leaves nothing but the evidence copy.
type caseFolder struct {
	root string
}

func (c caseFolder) abs(rel string) string {
	return filepath.Join(c.root, filepath.FromSlash(rel))
}

func (c caseFolder) write(rel string, data []byte) error {
	full := c.abs(rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", rel, err)
	}
	return writeFileAtomic(full, data, 0o644)
}

// writeRecord writes data and describes it as an ExtractedFile.
func (c caseFolder) writeRecord(rel, kind string, data []byte) (ExtractedFile, error) {
	if err := c.write(rel, data); err != nil {
		return ExtractedFile{}, err
	}
	return ExtractedFile{
		Path:   rel,
		Kind:   kind,
		Size:   int64(len(data)),
		SHA256: SHA256Hex(data),
	}, nil
}

// writeFileAtomic writes through a temporary file in the target directory and
// renames it into place.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
