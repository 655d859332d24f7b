package minbpe

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// PairCounts maps adjacent token pairs to their number of occurrences.
type PairCounts map[TokenPair]int

// CountPairs counts adjacent pairs within each sequence. Pairs never span two
// sequences, which is what keeps chunk boundaries merge-proof.
func CountPairs(seqs ...Tokens) PairCounts {
	counts := make(PairCounts)
	for _, seq := range seqs {
		counts.add(seq, 1)
	}
	return counts
}

// CountPairsParallel shards seqs over up to workers goroutines and sums the
// partial counts. The result is identical to CountPairs.
func CountPairsParallel(
	ctx context.Context,
	seqs []Tokens,
	workers int,
) (PairCounts, error) {
	return countWeighted(ctx, seqs, nil, workers)
}

// add counts the pairs of seq, each occurrence weighted by weight.
func (counts PairCounts) add(seq Tokens, weight int) {
	for idx := 0; idx+1 < len(seq); idx++ {
		counts[TokenPair{seq[idx], seq[idx+1]}] += weight
	}
}

func (counts PairCounts) merge(other PairCounts) {
	for pair, count := range other {
		counts[pair] += count
	}
}

// Max returns the most frequent pair. Ties go to the lexicographically
// smallest (Left, Right). ok is false when there are no pairs.
func (counts PairCounts) Max() (best TokenPair, count int, ok bool) {
	for pair, c := range counts {
		if !ok || c > count || (c == count && pair.Less(best)) {
			best, count, ok = pair, c, true
		}
	}
	return best, count, ok
}

// countWeighted counts pairs over seqs, where weights[i] (if weights is not
// nil) is the number of times seqs[i] occurs in the corpus.
func countWeighted(
	ctx context.Context,
	seqs []Tokens,
	weights []int,
	workers int,
) (PairCounts, error) {
	weightOf := func(idx int) int {
		if weights == nil {
			return 1
		}
		return weights[idx]
	}
	if workers <= 1 || len(seqs) < 2*workers {
		counts := make(PairCounts)
		for idx := range seqs {
			counts.add(seqs[idx], weightOf(idx))
		}
		return counts, nil
	}

	shardSz := (len(seqs) + workers - 1) / workers
	partials := make([]PairCounts, 0, workers)
	for begin := 0; begin < len(seqs); begin += shardSz {
		partials = append(partials, nil)
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(workers)
	for shard := range partials {
		shard := shard
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			begin := shard * shardSz
			end := begin + shardSz
			if end > len(seqs) {
				end = len(seqs)
			}
			partial := make(PairCounts)
			for idx := begin; idx < end; idx++ {
				partial.add(seqs[idx], weightOf(idx))
			}
			partials[shard] = partial
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	counts := partials[0]
	for _, partial := range partials[1:] {
		counts.merge(partial)
	}
	return counts, nil
}

// mergePair replaces every non-overlapping, left-to-right occurrence of pair
// in ids with id. A freshly written id is never re-examined in the same
// pass, so "aaa" merged on (a, a) becomes [id, a].
func mergePair(ids Tokens, pair TokenPair, id Token) Tokens {
	merged := make(Tokens, 0, len(ids))
	for idx := 0; idx < len(ids); {
		if idx+1 < len(ids) && ids[idx] == pair.Left &&
			ids[idx+1] == pair.Right {
			merged = append(merged, id)
			idx += 2
		} else {
			merged = append(merged, ids[idx])
			idx += 1
		}
	}
	return merged
}
