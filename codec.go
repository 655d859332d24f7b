package minbpe

import (
	"strings"

	"golang.org/x/text/encoding/unicode"
)

// BytePermutation is a bijection on the 256 raw byte values, used to match
// tokenizers that store their byte tokens in shuffled order. A nil
// *BytePermutation is the identity.
type BytePermutation struct {
	forward [256]byte
	inverse [256]byte
}

// NewBytePermutation checks that forward is a bijection and derives its
// inverse.
func NewBytePermutation(forward [256]byte) (*BytePermutation, error) {
	perm := &BytePermutation{forward: forward}
	var seen [256]bool
	for b := 0; b < 256; b++ {
		target := forward[b]
		if seen[target] {
			return nil, configErrorf("byte permutation",
				"byte %d is the image of more than one byte", target)
		}
		seen[target] = true
		perm.inverse[target] = byte(b)
	}
	return perm, nil
}

func (perm *BytePermutation) Forward(b byte) byte {
	if perm == nil {
		return b
	}
	return perm.forward[b]
}

func (perm *BytePermutation) Inverse(b byte) byte {
	if perm == nil {
		return b
	}
	return perm.inverse[b]
}

// IsIdentity reports whether the permutation maps every byte to itself.
func (perm *BytePermutation) IsIdentity() bool {
	if perm == nil {
		return true
	}
	for b := 0; b < 256; b++ {
		if perm.forward[b] != byte(b) {
			return false
		}
	}
	return true
}

// textToTokens converts text to byte-level token ids, applying the
// permutation.
func textToTokens(text string, perm *BytePermutation) Tokens {
	ids := make(Tokens, len(text))
	for idx := 0; idx < len(text); idx++ {
		ids[idx] = Token(perm.Forward(text[idx]))
	}
	return ids
}

// decodeBytes interprets raw bytes as UTF-8. Invalid sequences are replaced
// with U+FFFD instead of failing; this is the only place decoding tolerates
// bad input.
func decodeBytes(raw []byte) string {
	decoded, err := unicode.UTF8.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "\uFFFD")
	}
	return string(decoded)
}
