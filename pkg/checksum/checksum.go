// Package checksum identifies chunk contents and derived cache entries with
// xxhash digests.
package checksum

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// separator ends every field written by Key.
const separator = 0x1f

// Sum returns the hex digest of everything read from r.
func Sum(r io.Reader) (string, error) {
	digest := xxhash.New()
	if _, err := io.Copy(digest, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}

// ChunkChecksum is the digest of a chunk file's bytes. Two scans of an
// unchanged chunk give the same value.
func ChunkChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open chunk %s: %w", path, err)
	}
	defer file.Close()

	sum, err := Sum(file)
	if err != nil {
		return "", fmt.Errorf("failed to hash chunk %s: %w", path, err)
	}
	return sum, nil
}

// Key hashes an ordered list of fields. Each field is terminated by a unit
// separator, so ("a;b") and ("a", "b") do not collide.
func Key(fields ...string) string {
	digest := xxhash.New()
	for _, field := range fields {
		digest.WriteString(field)
		digest.Write([]byte{separator})
	}
	return hex.EncodeToString(digest.Sum(nil))
}
