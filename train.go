package minbpe

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
)

// corpus is the training input split into chunks. Identical chunks are
// stored once with a weight, since they always merge identically.
type corpus struct {
	uniq    []Tokens
	weights []int
	order   []int // index into uniq for every chunk, in input order
}

func (tokenizer *Tokenizer) newCorpus(
	text string,
	perm *BytePermutation,
) (*corpus, error) {
	chunks, err := tokenizer.chunker(text)
	if err != nil {
		return nil, err
	}
	c := &corpus{order: make([]int, len(chunks))}
	seen := make(map[string]int, len(chunks))
	for idx, chunk := range chunks {
		uniqIdx, ok := seen[chunk]
		if !ok {
			uniqIdx = len(c.uniq)
			seen[chunk] = uniqIdx
			c.uniq = append(c.uniq, textToTokens(chunk, perm))
			c.weights = append(c.weights, 0)
		}
		c.weights[uniqIdx]++
		c.order[idx] = uniqIdx
	}
	return c, nil
}

// tokens concatenates the current ids of every chunk in input order.
func (c *corpus) tokens() Tokens {
	size := 0
	for _, uniqIdx := range c.order {
		size += len(c.uniq[uniqIdx])
	}
	tokens := make(Tokens, 0, size)
	for _, uniqIdx := range c.order {
		tokens = append(tokens, c.uniq[uniqIdx]...)
	}
	return tokens
}

// Train learns vocabSize-256 merges from text and returns the fully merged
// ids of text. A vocabSize below 256 is accepted and learns no merges.
// Training stops early, without error, once no adjacent pair is left.
//
// Training always starts from an empty merge table but keeps the
// tokenizer's byte permutation and special tokens; special-token ids move
// to follow the new merges.
func (tokenizer *Tokenizer) Train(text string, vocabSize int) (Tokens, error) {
	return tokenizer.TrainContext(context.Background(), text, vocabSize)
}

// TrainContext is Train with cancellation, checked between merge steps. A
// cancelled run returns the context's error and leaves the tokenizer
// unchanged.
func (tokenizer *Tokenizer) TrainContext(
	ctx context.Context,
	text string,
	vocabSize int,
) (Tokens, error) {
	if vocabSize < 0 {
		return nil, configErrorf("vocab size", "%d is negative", vocabSize)
	}
	numMerges := vocabSize - ByteTokens
	if numMerges < 0 {
		tokenizer.logger.Warn().
			Int("vocab_size", vocabSize).
			Msg("vocab size is below 256, no merges will be learned")
		numMerges = 0
	}

	perm := tokenizer.state.Load().perm
	c, err := tokenizer.newCorpus(text, perm)
	if err != nil {
		return nil, err
	}
	tokenizer.logger.Info().
		Str("text", humanize.Bytes(uint64(len(text)))).
		Str("chunks", humanize.Comma(int64(len(c.order)))).
		Str("unique_chunks", humanize.Comma(int64(len(c.uniq)))).
		Int("merges", numMerges).
		Msg("training started")

	start := time.Now()
	merges := emptyMergeTable()
	for i := 0; i < numMerges; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stats, err := countWeighted(ctx, c.uniq, c.weights,
			tokenizer.workers)
		if err != nil {
			return nil, err
		}
		pair, count, ok := stats.Max()
		if !ok {
			tokenizer.logger.Warn().
				Int("merges", i).
				Int("requested", numMerges).
				Msg("no pairs left to merge, stopping early")
			break
		}
		id := Token(ByteTokens + i)
		for idx := range c.uniq {
			c.uniq[idx] = mergePair(c.uniq[idx], pair, id)
		}
		merges.append(pair, id)
		tokenizer.logger.Debug().
			Uint32("left", uint32(pair.Left)).
			Uint32("right", uint32(pair.Right)).
			Uint32("id", uint32(id)).
			Str("count", humanize.Comma(int64(count))).
			Msg("merged pair")
	}

	published, err := tokenizer.newSnapshot(merges, perm)
	if err != nil {
		return nil, err
	}
	tokenizer.state.Store(published)

	encoded := c.tokens()
	tokenizer.logger.Info().
		Int("merges", merges.Len()).
		Str("tokens", humanize.Comma(int64(len(encoded)))).
		Float64("compression", compression(len(text), len(encoded))).
		Dur("elapsed", time.Since(start)).
		Msg("training finished")
	return encoded, nil
}

func compression(numBytes int, numTokens int) float64 {
	if numTokens == 0 {
		return 0
	}
	return float64(numBytes) / float64(numTokens)
}
