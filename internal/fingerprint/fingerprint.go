package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"hash/fnv"
	"io"
	"math/bits"
)

const (
	// shingleSize is the byte window hashed into simhash features. Eight
	// bytes keeps the feature space dense enough for short documents while
	// staying cheap to roll.
	shingleSize = 8

	simhashBits = 64
)

// Fingerprint is the pair of identities computed once per file: an exact
// cryptographic content hash and a similarity-preserving simhash signature.
type Fingerprint struct {
	SHA256    string
	SimHash   uint64
	SizeBytes int64
}

// Hasher computes a Fingerprint incrementally. It implements io.Writer so
// ingestion can tee the upload stream through it while the bytes are being
// persisted. Identical input bytes always produce an identical Fingerprint.
type Hasher struct {
	sha     hash.Hash
	size    int64
	window  [shingleSize]byte
	filled  int
	counts  [simhashBits]int64
}

// NewHasher returns a Hasher ready to consume file bytes.
func NewHasher() *Hasher {
	return &Hasher{sha: sha256.New()}
}

// Write consumes the next chunk of file bytes. It never fails.
func (h *Hasher) Write(p []byte) (int, error) {
	_, _ = h.sha.Write(p)
	h.size += int64(len(p))

	for _, b := range p {
		copy(h.window[:], h.window[1:])
		h.window[shingleSize-1] = b
		if h.filled < shingleSize {
			h.filled++
			if h.filled < shingleSize {
				continue
			}
		}
		h.addFeature(shingleHash(h.window))
	}

	return len(p), nil
}

// Fingerprint finalizes and returns the computed identities. The hasher may
// keep receiving writes afterwards, but callers fingerprint exactly once.
func (h *Hasher) Fingerprint() Fingerprint {
	return Fingerprint{
		SHA256:    hex.EncodeToString(h.sha.Sum(nil)),
		SimHash:   h.signature(),
		SizeBytes: h.size,
	}
}

// FromReader fingerprints an entire stream. Read failures are returned to
// the caller untouched; they abort only the upload being fingerprinted.
func FromReader(r io.Reader) (Fingerprint, error) {
	h := NewHasher()
	if _, err := io.Copy(h, r); err != nil {
		return Fingerprint{}, err
	}
	return h.Fingerprint(), nil
}

// HammingDistance counts differing signature bits. Smaller means more
// similar content.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

func (h *Hasher) addFeature(f uint64) {
	for i := 0; i < simhashBits; i++ {
		if f&(1<<uint(i)) != 0 {
			h.counts[i]++
		} else {
			h.counts[i]--
		}
	}
}

func (h *Hasher) signature() uint64 {
	var sig uint64
	for i := 0; i < simhashBits; i++ {
		if h.counts[i] > 0 {
			sig |= 1 << uint(i)
		}
	}
	return sig
}

func shingleHash(window [shingleSize]byte) uint64 {
	f := fnv.New64a()
	_, _ = f.Write(window[:])
	return f.Sum64()
}
