// Package simhash computes 64-bit near-duplicate fingerprints. Fingerprints
// are persisted as decimal strings, so the token hashing and bit-voting rules
// here are part of the storage format and must not change.
package simhash

import (
	"crypto/md5"
	"encoding/binary"
	"math/bits"
	"strconv"
	"strings"

	"horse.fit/clipper/internal/textnorm"
)

const fingerprintBits = 64

// FromText fingerprints free text. ok is false when the text yields no
// tokens; such items carry no fingerprint and never match anything.
func FromText(text string) (uint64, bool) {
	tokens := textnorm.Tokenize(text)
	if len(tokens) == 0 {
		return 0, false
	}
	return fromTokens(tokens), true
}

// fromTokens runs the classic bit-voting construction. Each token votes with
// the low 64 bits of its MD5 digest; repeated tokens vote repeatedly. A tied
// bit resolves to 1.
func fromTokens(tokens []string) uint64 {
	var vector [fingerprintBits]int
	for _, token := range tokens {
		sum := md5.Sum([]byte(token))
		low := binary.BigEndian.Uint64(sum[8:])
		for bit := 0; bit < fingerprintBits; bit++ {
			if low&(1<<uint(bit)) != 0 {
				vector[bit]++
			} else {
				vector[bit]--
			}
		}
	}

	var fingerprint uint64
	for bit := 0; bit < fingerprintBits; bit++ {
		if vector[bit] >= 0 {
			fingerprint |= 1 << uint(bit)
		}
	}
	return fingerprint
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// FormatFingerprint renders a fingerprint in the persisted decimal form.
func FormatFingerprint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// ParseFingerprint reads the persisted decimal form. Empty and malformed
// values are errors; callers rebuilding an index skip such rows.
func ParseFingerprint(s string) (uint64, error) {
	return strconv.ParseUint(strings.TrimSpace(s), 10, 64)
}
