package minbpe

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trainingText = `
Unfortunately, you will run into two issues:

It is not trivial to recover the raw merges from the GPT-4 tokenizer. You can easily recover what we call vocab here, and what they call and store under enc._mergeable_ranks. Feel free to copy paste the recover_merges function, which takes these ranks and returns the raw merges. Basically, under some conditions it is enough to only store the parent nodes (and their rank) and get rid of the precise details of which children merged up to any parent.
Second, the GPT-4 tokenizer for some reason permutes its raw bytes. It stores this permutation in the first 256 elements of the mergeable ranks, so you can recover this byte shuffle relatively simply. In both your encode and decode, you'll have to shuffle bytes around accordingly.
`

var roundTripTests = []string{
	"",
	"a",
	"hello world!!!? (안녕하세요!) lol123 😉",
	"The tokenizer permutes its raw bytes.\n\n  trailing spaces   ",
	"we'll go jump in a lake.",
	"1234567890 ,.;:!? \t\r\n",
	"<|endoftext|> is not special here",
}

func mustRegexTokenizer(t testing.TB, opts ...Option) *Tokenizer {
	tokenizer, err := NewRegexTokenizer(opts...)
	require.NoError(t, err)
	return tokenizer
}

func mustBasicTokenizer(t testing.TB, opts ...Option) *Tokenizer {
	tokenizer, err := NewBasicTokenizer(opts...)
	require.NoError(t, err)
	return tokenizer
}

func mustEncode(t testing.TB, tokenizer *Tokenizer, text string) Tokens {
	tokens, err := tokenizer.Encode(text)
	require.NoError(t, err)
	return tokens
}

func mustDecode(t testing.TB, tokenizer *Tokenizer, tokens Tokens) string {
	text, err := tokenizer.Decode(tokens)
	require.NoError(t, err)
	return text
}

func TestTokenizer_EmptyInput(t *testing.T) {
	for _, tokenizer := range []*Tokenizer{
		mustBasicTokenizer(t),
		mustRegexTokenizer(t, WithSpecialTokens("<end>")),
	} {
		assert.Empty(t, mustEncode(t, tokenizer, ""))
		assert.Equal(t, "", mustDecode(t, tokenizer, Tokens{}))
	}
}

func TestTokenizer_UntrainedIsByteLevel(t *testing.T) {
	tokenizer := mustBasicTokenizer(t)
	assert.False(t, tokenizer.Trained())
	text := "héllo"
	expected := make(Tokens, 0, len(text))
	for _, b := range []byte(text) {
		expected = append(expected, Token(b))
	}
	assert.Equal(t, expected, mustEncode(t, tokenizer, text))
	assert.Equal(t, text, mustDecode(t, tokenizer, expected))
}

func TestTokenizer_SuppliedMergeTable(t *testing.T) {
	merges := MustMergeTable([]Merge{{TokenPair{97, 98}, 256}})
	tokenizer := mustBasicTokenizer(t, WithMergeTable(merges))
	assert.True(t, tokenizer.Trained())
	assert.Equal(t, Tokens{256}, mustEncode(t, tokenizer, "ab"))
	assert.Equal(t, "ab", mustDecode(t, tokenizer, Tokens{256}))
	assert.Equal(t, Tokens{256, 256, 97}, mustEncode(t, tokenizer, "ababa"))
}

func TestTokenizer_MergesAppliedInTableOrder(t *testing.T) {
	// (b, c) is learned after (a, b), so "abc" must become [256, c].
	merges := MustMergeTable([]Merge{
		{TokenPair{97, 98}, 256},
		{TokenPair{98, 99}, 257},
		{TokenPair{256, 99}, 258},
	})
	tokenizer := mustBasicTokenizer(t, WithMergeTable(merges))
	assert.Equal(t, Tokens{258}, mustEncode(t, tokenizer, "abc"))
	assert.Equal(t, Tokens{97, 258}, mustEncode(t, tokenizer, "aabc"))
	assert.Equal(t, Tokens{257}, mustEncode(t, tokenizer, "bc"))
}

func TestTokenizer_SpecialTokenInjection(t *testing.T) {
	tokenizer := mustBasicTokenizer(t, WithSpecialTokens("<end>"))
	id, ok := tokenizer.SpecialTokens().ID("<end>")
	require.True(t, ok)
	assert.Equal(t, Token(256), id)

	tokens := mustEncode(t, tokenizer, "<end>x")
	assert.Equal(t, Tokens{256, Token('x')}, tokens)
	assert.Equal(t, "<end>x", mustDecode(t, tokenizer, tokens))

	ordinary, err := tokenizer.EncodeOrdinary("<end>")
	require.NoError(t, err)
	assert.Len(t, ordinary, len("<end>"))
}

func TestTokenizer_SpecialTokensFollowMerges(t *testing.T) {
	tokenizer := mustRegexTokenizer(t,
		WithSpecialTokens("<|endoftext|>", "<|pad|>"))
	_, err := tokenizer.Train(trainingText, 300)
	require.NoError(t, err)
	next := tokenizer.Merges().NextID()
	assert.Equal(t, Token(300), next)

	endOfText, _ := tokenizer.SpecialTokens().ID("<|endoftext|>")
	pad, _ := tokenizer.SpecialTokens().ID("<|pad|>")
	assert.Equal(t, next, endOfText)
	assert.Equal(t, next+1, pad)

	text := "the raw merges<|endoftext|><|pad|>"
	tokens := mustEncode(t, tokenizer, text)
	assert.Equal(t, Tokens{endOfText, pad}, tokens[len(tokens)-2:])
	assert.Equal(t, text, mustDecode(t, tokenizer, tokens))
}

func TestTokenizer_DuplicateSpecialToken(t *testing.T) {
	_, err := NewBasicTokenizer(WithSpecialTokens("<a>", "<b>", "<a>"))
	assert.ErrorIs(t, err, ErrConfig)
	var configErr *ConfigError
	require.True(t, errors.As(err, &configErr))
	assert.Contains(t, configErr.Reason, "<a>")
}

func TestTokenizer_RoundTrip(t *testing.T) {
	regex := mustRegexTokenizer(t, WithSpecialTokens("<|endoftext|>"))
	_, err := regex.Train(trainingText, 350)
	require.NoError(t, err)
	basic := mustBasicTokenizer(t)
	_, err = basic.Train(trainingText, 300)
	require.NoError(t, err)

	for _, tokenizer := range []*Tokenizer{regex, basic} {
		for _, text := range append(roundTripTests, trainingText) {
			tokens := mustEncode(t, tokenizer, text)
			assert.Equal(t, text, mustDecode(t, tokenizer, tokens))
		}
	}
}

func TestTokenizer_CompressesTrainingText(t *testing.T) {
	tokenizer := mustRegexTokenizer(t)
	trained, err := tokenizer.Train(trainingText, 400)
	require.NoError(t, err)
	assert.Less(t, len(trained), len(trainingText))
	assert.Equal(t, trained, mustEncode(t, tokenizer, trainingText))
}

func TestTokenizer_UnknownTokenID(t *testing.T) {
	tokenizer := mustBasicTokenizer(t, WithSpecialTokens("<end>"))
	_, err := tokenizer.Decode(Tokens{104, 105, 999})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTokenID)
	var unknown *UnknownTokenIDError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, Token(999), unknown.ID)

	// One past the last special token is unknown too.
	_, err = tokenizer.Decode(Tokens{257})
	assert.ErrorIs(t, err, ErrUnknownTokenID)
}

func TestTokenizer_InvalidUTF8IsReplaced(t *testing.T) {
	tokenizer := mustBasicTokenizer(t)
	text := mustDecode(t, tokenizer, Tokens{0xff})
	assert.Equal(t, "�", text)

	// A truncated three-byte sequence between valid text.
	text = mustDecode(t, tokenizer, Tokens{'h', 0xe2, 0x82, 'i'})
	assert.True(t, utf8.ValidString(text))
	assert.True(t, strings.HasPrefix(text, "h"))
	assert.True(t, strings.HasSuffix(text, "i"))
	assert.Contains(t, text, "�")

	raw, err := tokenizer.DecodeBytes(Tokens{'h', 0xe2, 0x82, 'i'})
	require.NoError(t, err)
	assert.Equal(t, []byte{'h', 0xe2, 0x82, 'i'}, raw)
}

func reversedBytes(t testing.TB) *BytePermutation {
	var forward [256]byte
	for b := 0; b < 256; b++ {
		forward[b] = byte(255 - b)
	}
	perm, err := NewBytePermutation(forward)
	require.NoError(t, err)
	return perm
}

func TestTokenizer_BytePermutation(t *testing.T) {
	perm := reversedBytes(t)
	tokenizer := mustBasicTokenizer(t, WithPermutation(perm),
		WithSpecialTokens("<end>"))
	assert.Equal(t, Tokens{255 - 'a'}, mustEncode(t, tokenizer, "a"))
	assert.Equal(t, "a", mustDecode(t, tokenizer, Tokens{255 - 'a'}))

	// Special tokens are never permuted.
	assert.Equal(t, "a<end>", mustDecode(t, tokenizer, Tokens{255 - 'a', 256}))

	_, err := tokenizer.Train(trainingText, 300)
	require.NoError(t, err)
	assert.Same(t, perm, tokenizer.Permutation())
	for _, text := range roundTripTests {
		assert.Equal(t, text, mustDecode(t, tokenizer,
			mustEncode(t, tokenizer, text)))
	}
}

func TestBytePermutation_RejectsNonBijection(t *testing.T) {
	var forward [256]byte
	for b := 0; b < 256; b++ {
		forward[b] = byte(b)
	}
	forward[1] = 0
	_, err := NewBytePermutation(forward)
	assert.ErrorIs(t, err, ErrConfig)

	var nilPerm *BytePermutation
	assert.True(t, nilPerm.IsIdentity())
	assert.Equal(t, byte(42), nilPerm.Forward(42))
	assert.Equal(t, byte(42), nilPerm.Inverse(42))
}

func TestTokenizer_OptionValidation(t *testing.T) {
	_, err := NewBasicTokenizer(WithWorkers(0))
	assert.ErrorIs(t, err, ErrConfig)
	_, err = NewBasicTokenizer(WithCacheSize(-1))
	assert.ErrorIs(t, err, ErrConfig)
	_, err = NewBasicTokenizer(WithMergeTable(nil))
	assert.ErrorIs(t, err, ErrConfig)
	_, err = NewRegexTokenizer(WithSplitPattern(`(unclosed`))
	assert.ErrorIs(t, err, ErrConfig)
}

func TestTokenizer_CacheDisabled(t *testing.T) {
	cached := mustRegexTokenizer(t)
	uncached := mustRegexTokenizer(t, WithCacheSize(0))
	_, err := cached.Train(trainingText, 300)
	require.NoError(t, err)
	_, err = uncached.Train(trainingText, 300)
	require.NoError(t, err)
	for _, text := range roundTripTests {
		assert.Equal(t, mustEncode(t, cached, text),
			mustEncode(t, uncached, text))
	}
}

func TestTokenizer_ConcurrentEncodeDuringTraining(t *testing.T) {
	tokenizer := mustRegexTokenizer(t)
	var wg sync.WaitGroup
	for worker := 0; worker < 4; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for iter := 0; iter < 50; iter++ {
				for _, text := range roundTripTests {
					tokens, err := tokenizer.Encode(text)
					if !assert.NoError(t, err) {
						return
					}
					decoded, err := tokenizer.Decode(tokens)
					if !assert.NoError(t, err) {
						return
					}
					assert.Equal(t, text, decoded)
				}
			}
		}()
	}
	_, err := tokenizer.Train(trainingText, 300)
	require.NoError(t, err)
	wg.Wait()
}

func TestTokenizer_InvalidUTF8BytesPreserved(t *testing.T) {
	basic := mustBasicTokenizer(t)
	regex := mustRegexTokenizer(t)
	_, err := regex.Train(trainingText, 300)
	require.NoError(t, err)
	for _, text := range []string{"a\xffb", "\xe2\x82 lol\xc3", "\xff\xfe"} {
		for _, tokenizer := range []*Tokenizer{basic, regex} {
			raw, err := tokenizer.DecodeBytes(mustEncode(t, tokenizer, text))
			require.NoError(t, err)
			assert.Equal(t, []byte(text), raw)
		}
	}
	assert.Equal(t, Tokens{'a', 0xff, 'b'}, mustEncode(t, basic, "a\xffb"))
	assert.Equal(t, Tokens{'a', 0xff, 'b'},
		mustEncode(t, mustRegexTokenizer(t), "a\xffb"))
}
