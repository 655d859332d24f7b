package minbpe

// utf8Need scans the bytes of a single token and returns how many UTF-8
// continuation bytes it leaves pending at its end. A negative value means the
// token starts with continuation bytes that finish a rune begun by earlier
// tokens.
func utf8Need(raw []byte) int {
	need := 0
	minNeed := 0
	for _, c := range raw {
		if (c & 0b10000000) == 0 {
			need = 0
		} else if (c & 0b11000000) == 0b10000000 {
			need -= 1
		} else if (c & 0b11100000) == 0b11000000 {
			need = 1
		} else if (c & 0b11110000) == 0b11100000 {
			need = 2
		} else if (c & 0b11111000) == 0b11110000 {
			need = 3
		}
		if need < 0 {
			minNeed = need
		}
		if need == 0 {
			need = minNeed
		}
	}
	return need
}

// buildUnitrim computes utf8Need for every non-special token in vocab, in
// raw (unpermuted) byte space. Tokens that need nothing are left out.
func buildUnitrim(vocab *Vocabulary, perm *BytePermutation) map[Token]int {
	unitrim := make(map[Token]int)
	raw := make([]byte, 0, 16)
	for id, resolved := range vocab.tokens {
		if vocab.specials[id] {
			continue
		}
		raw = raw[:0]
		for _, b := range resolved {
			raw = append(raw, perm.Inverse(b))
		}
		if need := utf8Need(raw); need != 0 {
			unitrim[id] = need
		}
	}
	return unitrim
}

// TokensReady reports whether ids decode to complete UTF-8, which is what a
// streaming consumer checks before flushing generated tokens as text.
func (tokenizer *Tokenizer) TokensReady(ids Tokens) bool {
	unitrim := tokenizer.state.Load().unitrim
	good := 0
	need := 0
	for idx, id := range ids {
		// Unknown ids count as complete.
		req := unitrim[id]
		if !(need+req < 0) {
			need += req
		}
		if req == 0 {
			// Reset so that invalid UTF-8 does not stall forever.
			need = 0
		}
		if need == 0 {
			good = idx + 1
		}
	}
	return good == len(ids)
}

// TrimTokens drops trailing tokens until the rest decodes to complete UTF-8.
func (tokenizer *Tokenizer) TrimTokens(ids Tokens) Tokens {
	trimmed := ids
	for len(trimmed) > 0 && !tokenizer.TokensReady(trimmed) {
		trimmed = trimmed[:len(trimmed)-1]
	}
	return trimmed
}
