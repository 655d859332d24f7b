package minbpe

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
	"github.com/wbrown/minbpe/types"
)

const BPE_LRU_SZ = 65536

type Token = types.Token
type Tokens = types.Tokens
type TokenPair = types.TokenPair

const ByteTokens = types.ByteTokens

// Tokenizer is a byte-level BPE tokenizer. Without a split pattern it treats
// the whole input as one chunk (basic mode); with one, merges never cross
// chunk boundaries (regex mode).
//
// Encode and Decode only read an immutable snapshot, so they are safe to
// call concurrently, including while Train runs; Train publishes its result
// atomically when it completes.
type Tokenizer struct {
	chunker  ChunkFunc
	pattern  *SplitPattern
	literals []string
	logger   zerolog.Logger
	workers  int
	cacheSz  int
	state    atomic.Pointer[snapshot]
}

// snapshot is everything encode and decode depend on. It is never mutated
// after being published.
type snapshot struct {
	merges   *MergeTable
	vocab    *Vocabulary
	specials *SpecialTokens
	perm     *BytePermutation
	unitrim  map[Token]int
	cache    *lru.ARCCache
}

type Option func(*Tokenizer) error

// WithSplitPattern sets the regex that partitions input into chunks.
func WithSplitPattern(pattern string) Option {
	return func(tokenizer *Tokenizer) error {
		splitPattern, err := NewSplitPattern(pattern)
		if err != nil {
			return &ConfigError{Field: "split pattern", Reason: err.Error()}
		}
		tokenizer.pattern = splitPattern
		tokenizer.chunker = splitPattern.Split
		return nil
	}
}

// WithChunkFunc installs an arbitrary chunking strategy.
func WithChunkFunc(chunker ChunkFunc) Option {
	return func(tokenizer *Tokenizer) error {
		tokenizer.pattern = nil
		tokenizer.chunker = chunker
		return nil
	}
}

// WithSpecialTokens registers reserved literals. Their ids start right after
// the learned merges, in the order given.
func WithSpecialTokens(literals ...string) Option {
	return func(tokenizer *Tokenizer) error {
		tokenizer.literals = append([]string(nil), literals...)
		return nil
	}
}

// WithMergeTable supplies a pre-built merge table, such as one recovered from
// an external vocabulary.
func WithMergeTable(merges *MergeTable) Option {
	return func(tokenizer *Tokenizer) error {
		if merges == nil {
			return configErrorf("merge table", "nil table")
		}
		tokenizer.state.Load().merges = merges
		return nil
	}
}

// WithPermutation sets the byte permutation applied before merging.
func WithPermutation(perm *BytePermutation) Option {
	return func(tokenizer *Tokenizer) error {
		tokenizer.state.Load().perm = perm
		return nil
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(tokenizer *Tokenizer) error {
		tokenizer.logger = logger
		return nil
	}
}

// WithWorkers sets how many goroutines count pairs during training.
func WithWorkers(workers int) Option {
	return func(tokenizer *Tokenizer) error {
		if workers < 1 {
			return configErrorf("workers", "%d is less than 1", workers)
		}
		tokenizer.workers = workers
		return nil
	}
}

// WithCacheSize sets the number of chunk encodings kept in the ARC cache.
// Zero disables caching.
func WithCacheSize(size int) Option {
	return func(tokenizer *Tokenizer) error {
		if size < 0 {
			return configErrorf("cache size", "%d is negative", size)
		}
		tokenizer.cacheSz = size
		return nil
	}
}

// NewBasicTokenizer returns a tokenizer that never splits its input.
func NewBasicTokenizer(opts ...Option) (*Tokenizer, error) {
	return newTokenizer(WholeInput, opts)
}

// NewRegexTokenizer returns a tokenizer that splits its input with
// GPT4SplitPattern unless another pattern is given.
func NewRegexTokenizer(opts ...Option) (*Tokenizer, error) {
	return newTokenizer(nil, append([]Option{
		WithSplitPattern(GPT4SplitPattern)}, opts...))
}

func newTokenizer(chunker ChunkFunc, opts []Option) (*Tokenizer, error) {
	tokenizer := &Tokenizer{
		chunker: chunker,
		logger:  zerolog.Nop(),
		workers: 1,
		cacheSz: BPE_LRU_SZ,
	}
	// Options write the merge table and permutation into a draft snapshot
	// that is validated and published below.
	tokenizer.state.Store(&snapshot{merges: emptyMergeTable()})
	for _, opt := range opts {
		if err := opt(tokenizer); err != nil {
			return nil, err
		}
	}
	draft := tokenizer.state.Load()
	published, err := tokenizer.newSnapshot(draft.merges, draft.perm)
	if err != nil {
		return nil, err
	}
	tokenizer.state.Store(published)
	return tokenizer, nil
}

// newSnapshot assigns special-token ids after merges and rebuilds the
// vocabulary and chunk cache from scratch.
func (tokenizer *Tokenizer) newSnapshot(
	merges *MergeTable,
	perm *BytePermutation,
) (*snapshot, error) {
	specials, err := NewSpecialTokens(merges.NextID(), tokenizer.literals...)
	if err != nil {
		return nil, err
	}
	state := &snapshot{
		merges:   merges,
		vocab:    BuildVocabulary(merges, specials),
		specials: specials,
		perm:     perm,
	}
	state.unitrim = buildUnitrim(state.vocab, perm)
	if tokenizer.cacheSz > 0 {
		if state.cache, err = lru.NewARC(tokenizer.cacheSz); err != nil {
			return nil, err
		}
	}
	return state, nil
}

// Merges returns the current merge table.
func (tokenizer *Tokenizer) Merges() *MergeTable {
	return tokenizer.state.Load().merges
}

// Vocabulary returns the current vocabulary.
func (tokenizer *Tokenizer) Vocabulary() *Vocabulary {
	return tokenizer.state.Load().vocab
}

func (tokenizer *Tokenizer) SpecialTokens() *SpecialTokens {
	return tokenizer.state.Load().specials
}

func (tokenizer *Tokenizer) Permutation() *BytePermutation {
	return tokenizer.state.Load().perm
}

// Pattern returns the split pattern, or nil in basic mode.
func (tokenizer *Tokenizer) Pattern() *SplitPattern {
	return tokenizer.pattern
}

// Trained reports whether the tokenizer has any merges, learned or supplied.
func (tokenizer *Tokenizer) Trained() bool {
	return tokenizer.Merges().Len() > 0
}

// Encode converts text to token ids. Registered special tokens are matched
// first and emitted as their reserved ids; the remaining text is chunked,
// converted to (permuted) bytes and merged within each chunk.
func (tokenizer *Tokenizer) Encode(text string) (Tokens, error) {
	state := tokenizer.state.Load()
	encoded := make(Tokens, 0, len(text)/3+1)
	for _, segment := range state.specials.Split(text) {
		if segment.Special {
			encoded = append(encoded, segment.ID)
			continue
		}
		var err error
		if encoded, err = tokenizer.encodeOrdinary(state, segment.Text,
			encoded); err != nil {
			return nil, err
		}
	}
	return encoded, nil
}

// EncodeOrdinary encodes text ignoring special tokens; their literals are
// tokenized like any other text.
func (tokenizer *Tokenizer) EncodeOrdinary(text string) (Tokens, error) {
	return tokenizer.encodeOrdinary(tokenizer.state.Load(), text,
		make(Tokens, 0, len(text)/3+1))
}

func (tokenizer *Tokenizer) encodeOrdinary(
	state *snapshot,
	text string,
	encoded Tokens,
) (Tokens, error) {
	chunks, err := tokenizer.chunker(text)
	if err != nil {
		return nil, err
	}
	for _, chunk := range chunks {
		encoded = append(encoded, state.encodeChunk(chunk)...)
	}
	return encoded, nil
}

// encodeChunk merges a single chunk, consulting the ARC cache first.
func (state *snapshot) encodeChunk(chunk string) Tokens {
	if state.cache != nil {
		if lookup, ok := state.cache.Get(chunk); ok {
			return lookup.(Tokens)
		}
	}
	ids := state.applyMerges(textToTokens(chunk, state.perm))
	if state.cache != nil {
		state.cache.Add(chunk, ids)
	}
	return ids
}

// applyMerges applies the merge table to ids in table order. Instead of
// sweeping every rule, it repeatedly merges the present pair with the lowest
// merge id. This is equivalent: a rule's operands are always ids below its
// own, so merging can never create a pair with a lower id than the one just
// applied.
func (state *snapshot) applyMerges(ids Tokens) Tokens {
	if state.merges.Len() == 0 {
		return ids
	}
	for len(ids) >= 2 {
		var (
			best   TokenPair
			bestID Token
			found  bool
		)
		for idx := 0; idx+1 < len(ids); idx++ {
			pair := TokenPair{ids[idx], ids[idx+1]}
			if id, ok := state.merges.Lookup(pair); ok &&
				(!found || id < bestID) {
				best, bestID, found = pair, id, true
			}
		}
		if !found {
			break
		}
		ids = mergePair(ids, best, bestID)
	}
	return ids
}

// DecodeBytes resolves ids to their raw bytes, undoing the byte permutation
// for non-special tokens.
func (tokenizer *Tokenizer) DecodeBytes(ids Tokens) ([]byte, error) {
	state := tokenizer.state.Load()
	decoded := make([]byte, 0, len(ids)*4)
	for _, id := range ids {
		resolved, ok := state.vocab.Lookup(id)
		if !ok {
			return nil, &UnknownTokenIDError{ID: id}
		}
		if state.perm == nil || state.vocab.IsSpecial(id) {
			decoded = append(decoded, resolved...)
			continue
		}
		for _, b := range resolved {
			decoded = append(decoded, state.perm.Inverse(b))
		}
	}
	return decoded, nil
}

// Decode converts ids back to text. An unknown id is an error, but invalid
// UTF-8 is not: undecodable bytes come back as U+FFFD so that a partially
// corrupt sequence still yields text.
func (tokenizer *Tokenizer) Decode(ids Tokens) (string, error) {
	decoded, err := tokenizer.DecodeBytes(ids)
	if err != nil {
		return "", err
	}
	return decodeBytes(decoded), nil
}

// ExportRanks returns the byte tokens and merges as raw token bytes -> id,
// the form RecoverMerges imports. Special tokens are not included. Two merges
// that resolve to the same bytes cannot be represented and are an error.
func (tokenizer *Tokenizer) ExportRanks() (types.TokenMap, error) {
	state := tokenizer.state.Load()
	ranks := make(types.TokenMap, ByteTokens+state.merges.Len())
	export := func(id Token) error {
		resolved, _ := state.vocab.Lookup(id)
		raw := make([]byte, len(resolved))
		for idx, b := range resolved {
			raw[idx] = state.perm.Inverse(b)
		}
		if other, dup := ranks[string(raw)]; dup {
			return configErrorf("merge table", "tokens %d and %d both "+
				"resolve to %q", other, id, raw)
		}
		ranks[string(raw)] = id
		return nil
	}
	for b := 0; b < ByteTokens; b++ {
		if err := export(Token(b)); err != nil {
			return nil, err
		}
	}
	for _, rule := range state.merges.rules {
		if err := export(rule.ID); err != nil {
			return nil, err
		}
	}
	return ranks, nil
}
