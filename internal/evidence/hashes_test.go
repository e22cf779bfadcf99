package evidence

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashBytes_KnownVectors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  HashSet
	}{
		{
			name:  "empty",
			input: "",
			want: HashSet{
				MD5:    "d41d8cd98f00b204e9800998ecf8427e",
				SHA1:   "da39a3ee5e6b4b0d3255bfef95601890afd80709",
				SHA256: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
			},
		},
		{
			name:  "abc",
			input: "abc",
			want: HashSet{
				MD5:    "900150983cd24fb0d6963f7d28e17f72",
				SHA1:   "a9993e364706816aba3e25717850c26c9cd0d89d",
				SHA256: "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HashBytes([]byte(tt.input)))
		})
	}
}

func TestHashFile_MatchesInMemory(t *testing.T) {
	// Larger than several chunks and not a multiple of the chunk size.
	data := bytes.Repeat([]byte("evidence-"), 5000)
	path := filepath.Join(t.TempDir(), "blob.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, HashBytes(data), got)
	assert.Equal(t, SHA256Hex(data), got.SHA256)
}

func TestHashFile_Missing(t *testing.T) {
	_, err := HashFile(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestHashReader_PropagatesIOError(t *testing.T) {
	_, err := HashReader(failingReader{})
	assert.EqualError(t, err, "disk gone")
}
