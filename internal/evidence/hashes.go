package evidence

import (
	"bytes"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// hashChunkSize is the read size used when streaming input through the digests.
const hashChunkSize = 8192

// HashSet holds the hex digests computed over one byte stream.
type HashSet struct {
	MD5    string `json:"MD5"`
	SHA1   string `json:"SHA1"`
	SHA256 string `json:"SHA256"`
}

// HashReader computes MD5, SHA-1 and SHA-256 in a single pass over r.
func HashReader(r io.Reader) (HashSet, error) {
	md5h := md5.New()
	sha1h := sha1.New()
	sha256h := sha256.New()
	w := io.MultiWriter(md5h, sha1h, sha256h)

	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(w, struct{ io.Reader }{r}, buf); err != nil {
		return HashSet{}, err
	}

	return HashSet{
		MD5:    hex.EncodeToString(md5h.Sum(nil)),
		SHA1:   hex.EncodeToString(sha1h.Sum(nil)),
		SHA256: hex.EncodeToString(sha256h.Sum(nil)),
	}, nil
}

// HashFile streams the file at path through HashReader.
func HashFile(path string) (HashSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return HashSet{}, err
	}
	defer f.Close()

	sums, err := HashReader(f)
	if err != nil {
		return HashSet{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return sums, nil
}

// HashBytes hashes an in-memory buffer.
func HashBytes(data []byte) HashSet {
	// reading from a bytes.Reader cannot fail
	sums, _ := HashReader(bytes.NewReader(data))
	return sums
}

// SHA256Hex returns only the SHA-256 digest of data.
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
