// Package hash provides xxHash64-based content identifiers and seeds.
package hash

import (
	"encoding/binary"
	"encoding/hex"
	"io"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// DefaultHexLen is the identifier length used for library entries and cache filenames.
const DefaultHexLen = 16

// ContentHash returns the hex xxHash64 of data truncated to hexLen characters.
// A hexLen outside (0, 16) returns the full digest.
func ContentHash(data []byte, hexLen int) string {
	return truncate(sum(xxhash.Sum64(data)), hexLen)
}

// ContentHashReader computes ContentHash while streaming from r.
func ContentHashReader(r io.Reader, hexLen int) (string, error) {
	h := xxhash.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return truncate(sum(h.Sum64()), hexLen), nil
}

// StringHash hashes a string, e.g. a URL, the same way as ContentHash.
func StringHash(s string, hexLen int) string {
	return truncate(sum(xxhash.Sum64String(s)), hexLen)
}

// ContentSeed derives a k-means seed from data, such as sampled pixels.
// Identical bytes always give the same seed.
func ContentSeed(data []byte) int64 {
	return int64(xxhash.Sum64(data)) // #nosec G115 - wraparound is fine for a seed
}

// PathSeed derives a k-means seed from a file path or URL.
// Local paths are made absolute first.
func PathSeed(path string) int64 {
	if !isURL(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	return int64(xxhash.Sum64String(path)) // #nosec G115 - wraparound is fine for a seed
}

func sum(v uint64) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return hex.EncodeToString(b[:])
}

func truncate(full string, hexLen int) string {
	if hexLen > 0 && hexLen < len(full) {
		return full[:hexLen]
	}
	return full
}

func isURL(path string) bool {
	return len(path) >= 7 && (path[:7] == "http://" || (len(path) >= 8 && path[:8] == "https://"))
}
