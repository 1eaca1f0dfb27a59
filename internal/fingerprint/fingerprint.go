// Package fingerprint derives stable content hashes for uploaded documents.
// A fingerprint names the cache namespace of the document's vector index.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

// Fingerprint is the hex-encoded SHA-256 digest of a document's bytes.
type Fingerprint string

var validRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Sum returns the fingerprint of data.
func Sum(data []byte) Fingerprint {
	h := sha256.Sum256(data)
	return Fingerprint(hex.EncodeToString(h[:]))
}

// Valid reports whether fp looks like a digest produced by this package.
func (fp Fingerprint) Valid() bool {
	return validRe.MatchString(string(fp))
}

// Short returns the first 12 characters, for log lines.
func (fp Fingerprint) Short() string {
	if len(fp) <= 12 {
		return string(fp)
	}
	return string(fp[:12])
}

func (fp Fingerprint) String() string { return string(fp) }
