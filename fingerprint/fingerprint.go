// Package fingerprint maps text to fixed-length numeric vectors.
//
// The vectors produced by SHA256 are hash-derived pseudo-embeddings. They make
// identical text reproducibly comparable and nothing more: two sentences with
// the same meaning get unrelated vectors, so similarity between them is not a
// relevance signal. A trained embedding model can replace SHA256 by
// implementing Generator, as long as it keeps the Dims contract.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Dims is the length of every fingerprint.
const Dims = 384

type Generator interface {
	Fingerprint(text string) []float64
}

// SHA256 derives fingerprints from the hex SHA-256 digest of the text.
type SHA256 struct{}

func (SHA256) Fingerprint(text string) []float64 {
	return Of(text)
}

// Of returns the SHA-256 fingerprint of text. Component i is read from the
// two hex characters at offset (i*2) mod len(digest) and scaled from
// [0, 255] to [-1, 1].
func Of(text string) []float64 {
	sum := sha256.Sum256([]byte(text))
	digest := hex.EncodeToString(sum[:])

	res := make([]float64, Dims)
	for i := range res {
		off := (i * 2) % len(digest)
		b, _ := strconv.ParseUint(digest[off:off+2], 16, 8)
		res[i] = float64(b)/255*2 - 1
	}

	return res
}
