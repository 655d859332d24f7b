package minbpe

import (
	"github.com/wbrown/minbpe/types"
)

// RecoveryPolicy decides what RecoverMerges does with an entry whose merge
// cannot be reconstructed.
type RecoveryPolicy int

const (
	// AbortOnError fails the whole recovery on the first bad entry.
	AbortOnError RecoveryPolicy = iota
	// SkipInvalid leaves bad entries out and reports them in
	// Recovered.Skipped.
	SkipInvalid
)

// Recovered is the result of RecoverMerges.
type Recovered struct {
	Merges      *MergeTable
	Permutation *BytePermutation // nil when the byte ranks are the identity
	Skipped     []*RecoveryError
}

// Options returns tokenizer options that install the recovered merges and
// permutation.
func (recovered *Recovered) Options() []Option {
	return []Option{
		WithMergeTable(recovered.Merges),
		WithPermutation(recovered.Permutation),
	}
}

// RecoverMerges reconstructs an ordered merge table from a vocabulary that
// only records token bytes -> rank, where rank is also the merge order.
//
// The 256 single-byte tokens must be present with ranks 0-255; their ranks
// define the byte permutation. Every longer token is re-tokenized on its own
// using the global ranks, but only with merges ranked below the token
// itself. A valid rank table always leaves exactly two parts, which are the
// token's merge operands.
func RecoverMerges(
	ranks types.TokenMap,
	policy RecoveryPolicy,
) (*Recovered, error) {
	perm, err := recoverPermutation(ranks)
	if err != nil {
		return nil, err
	}
	recovered := &Recovered{Permutation: perm}
	if perm.IsIdentity() {
		recovered.Permutation = nil
	}

	rules := make([]Merge, 0, len(ranks))
	defined := make(map[Token]bool, len(ranks))
	isDefined := func(token Token) bool {
		return token.IsByte() || defined[token]
	}
	var lastRank Token
	for _, entry := range ranks.Ranks() {
		if len(entry.Bytes) == 1 {
			continue
		}
		var recoveryErr *RecoveryError
		pair, parts := recoverPair(ranks, entry)
		switch {
		case len(entry.Bytes) == 0:
			recoveryErr = &RecoveryError{Rank: entry.Rank,
				Reason: "empty token"}
		case entry.Rank.IsByte():
			recoveryErr = &RecoveryError{Token: []byte(entry.Bytes),
				Rank: entry.Rank, Reason: "multi-byte token ranked in " +
					"the byte range"}
		case len(rules) > 0 && entry.Rank == lastRank:
			recoveryErr = &RecoveryError{Token: []byte(entry.Bytes),
				Rank: entry.Rank, Reason: "rank is shared with another token"}
		case parts != 2:
			recoveryErr = &RecoveryError{Token: []byte(entry.Bytes),
				Rank: entry.Rank, Parts: parts,
				Reason: "not a product of a single pairwise merge"}
		case !isDefined(pair.Left) || !isDefined(pair.Right):
			recoveryErr = &RecoveryError{Token: []byte(entry.Bytes),
				Rank: entry.Rank, Reason: "merge operand was not recovered"}
		}
		if recoveryErr != nil {
			if policy != SkipInvalid {
				return nil, recoveryErr
			}
			recovered.Skipped = append(recovered.Skipped, recoveryErr)
			continue
		}
		rules = append(rules, Merge{Pair: pair, ID: entry.Rank})
		defined[entry.Rank] = true
		lastRank = entry.Rank
	}

	if recovered.Merges, err = NewMergeTable(rules); err != nil {
		return nil, err
	}
	return recovered, nil
}

// recoverPermutation reads the single-byte ranks, which must form a
// permutation of 0-255.
func recoverPermutation(ranks types.TokenMap) (*BytePermutation, error) {
	var forward [256]byte
	for b := 0; b < ByteTokens; b++ {
		token := []byte{byte(b)}
		rank, ok := ranks[string(token)]
		if !ok {
			return nil, &RecoveryError{Token: token,
				Reason: "single-byte token is missing"}
		}
		if !rank.IsByte() {
			return nil, &RecoveryError{Token: token, Rank: rank,
				Reason: "single-byte token ranked outside 0-255"}
		}
		forward[b] = byte(rank)
	}
	perm, err := NewBytePermutation(forward)
	if err != nil {
		return nil, &RecoveryError{Reason: "single-byte ranks are not a " +
			"permutation: " + err.Error()}
	}
	return perm, nil
}

// recoverPair re-runs BPE over the token's own bytes with merges ranked
// below the token, returning the ranks of the first two parts and the number
// of parts left.
func recoverPair(
	ranks types.TokenMap,
	entry types.RankedToken,
) (TokenPair, int) {
	parts := boundedBPE(ranks, entry.Bytes, entry.Rank)
	if len(parts) != 2 {
		return TokenPair{}, len(parts)
	}
	return TokenPair{ranks[parts[0]], ranks[parts[1]]}, 2
}

// boundedBPE splits token into bytes and repeatedly merges the adjacent pair
// with the lowest rank, leftmost first, as long as that rank is below
// maxRank.
func boundedBPE(ranks types.TokenMap, token string, maxRank Token) []string {
	parts := make([]string, len(token))
	for idx := 0; idx < len(token); idx++ {
		parts[idx] = token[idx : idx+1]
	}
	for len(parts) > 1 {
		minIdx := -1
		var minRank Token
		for idx := 0; idx+1 < len(parts); idx++ {
			rank, ok := ranks[parts[idx]+parts[idx+1]]
			if ok && (minIdx < 0 || rank < minRank) {
				minIdx, minRank = idx, rank
			}
		}
		if minIdx < 0 || minRank >= maxRank {
			break
		}
		merged := parts[minIdx] + parts[minIdx+1]
		parts = append(parts[:minIdx+1], parts[minIdx+2:]...)
		parts[minIdx] = merged
	}
	return parts
}
