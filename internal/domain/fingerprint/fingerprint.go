// Package fingerprint computes the SHA-256 content fingerprint used for
// cache keys, idempotency keys, and result checksums. The canonical
// encoding is the only input; two values are fingerprint-equal iff their
// canonical encodings are byte-identical.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/Victor-armando18/pricing-engine/internal/domain/canonical"
)

// Fingerprint is a hex-encoded SHA-256 digest.
type Fingerprint string

// Of canonically encodes v and returns its fingerprint.
func Of(v any) (Fingerprint, error) {
	b, err := canonical.Encode(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return OfBytes(b), nil
}

// OfBytes fingerprints already-canonical bytes directly.
func OfBytes(b []byte) Fingerprint {
	sum := sha256.Sum256(b)
	return Fingerprint(hex.EncodeToString(sum[:]))
}

func (f Fingerprint) String() string { return string(f) }
