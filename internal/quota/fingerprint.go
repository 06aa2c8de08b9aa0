package quota

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Fingerprinter derives a one-way keyed hash of a client's network origin.
// Only the hash is persisted; the raw address is never stored.
type Fingerprinter struct {
	key []byte
}

// NewFingerprinter keys the hash with secret. An empty secret yields an
// unkeyed hash, which is still one-way but guessable for small address spaces.
func NewFingerprinter(secret string) *Fingerprinter {
	var key []byte
	if secret != "" {
		sum := blake2b.Sum256([]byte(secret))
		key = sum[:]
	}
	return &Fingerprinter{key: key}
}

// Fingerprint returns the hex-encoded hash of origin. Surrounding whitespace
// and letter case are ignored so "::FFFF:1.2.3.4" and "::ffff:1.2.3.4" match.
func (f *Fingerprinter) Fingerprint(origin string) string {
	h, err := blake2b.New256(f.key)
	if err != nil {
		// Only possible for keys longer than 64 bytes.
		panic(err)
	}
	h.Write([]byte(strings.ToLower(strings.TrimSpace(origin))))
	return hex.EncodeToString(h.Sum(nil))
}
