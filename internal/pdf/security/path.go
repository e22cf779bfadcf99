package security

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// fallbackName is used when an embedded name sanitizes to nothing.
const fallbackName = "unnamed"

// PathValidator confines output paths to a base directory. Names coming out of
// a document are attacker controlled and are never joined without it.
type PathValidator struct {
	baseDirectory string
}

// NewPathValidator creates a validator rooted at baseDirectory. The directory
// does not need to exist yet.
func NewPathValidator(baseDirectory string) (*PathValidator, error) {
	if baseDirectory == "" {
		return nil, fmt.Errorf("base directory cannot be empty")
	}
	abs, err := filepath.Abs(baseDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base directory: %w", err)
	}
	return &PathValidator{baseDirectory: filepath.Clean(abs)}, nil
}

// BaseDirectory returns the absolute, cleaned base directory.
func (v *PathValidator) BaseDirectory() string {
	return v.baseDirectory
}

// IsPathWithinDirectory reports whether p resolves inside the base directory.
func (v *PathValidator) IsPathWithinDirectory(p string) (bool, error) {
	absPath, err := filepath.Abs(p)
	if err != nil {
		return false, fmt.Errorf("failed to resolve path: %w", err)
	}
	rel, err := filepath.Rel(v.baseDirectory, filepath.Clean(absPath))
	if err != nil {
		return false, nil
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false, nil
	}
	return true, nil
}

// SanitizeName turns an embedded file name into a relative slash-separated
// path. Directory components are kept, but absolute prefixes, drive letters,
// parent references and control characters are removed.
func SanitizeName(name string) string {
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	name = strings.ReplaceAll(name, "\\", "/")
	if len(name) >= 2 && name[1] == ':' {
		name = name[2:]
	}

	var parts []string
	for _, part := range strings.Split(name, "/") {
		part = strings.TrimSpace(part)
		if part == "" || part == "." || part == ".." {
			continue
		}
		parts = append(parts, part)
	}
	if len(parts) == 0 {
		return fallbackName
	}
	return path.Join(parts...)
}

// Join sanitizes name and joins it below subdir of the base directory. It
// returns the slash-separated path relative to the base directory.
func (v *PathValidator) Join(subdir, name string) (string, error) {
	rel := path.Join(subdir, SanitizeName(name))
	full := filepath.Join(v.baseDirectory, filepath.FromSlash(rel))

	ok, err := v.IsPathWithinDirectory(full)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("path escapes base directory: %s", name)
	}
	return rel, nil
}
