package track

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint digests content for change detection. Empty content maps to
// the empty string sentinel rather than the hash of zero bytes, so "could
// not read anything" compares distinctly from real content.
func Fingerprint(content string) string {
	if content == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
