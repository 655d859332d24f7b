package minbpe

import (
	"fmt"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
)

// GPT4SplitPattern splits contractions, letter runs, digit runs of at most
// three, punctuation runs and whitespace the way cl100k_base does. regexp2
// has no possessive quantifiers, so the greedy forms are used.
const GPT4SplitPattern = `'(?i:[sdmt]|ll|ve|re)|[^\r\n\p{L}\p{N}]?\p{L}+|` +
	`\p{N}{1,3}| ?[^\s\p{L}\p{N}]+[\r\n]*|\s*[\r\n]|\s+(?!\S)|\s+`

// GPT2SplitPattern is the original GPT-2 pre-tokenizer.
const GPT2SplitPattern = `'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+|` +
	` ?[^\s\p{L}\p{N}]+|\s+(?!\S)|\s+`

const REGEX_ERROR = "minbpe: error compiling split pattern: %w"

// ChunkFunc partitions text into chunks that no merge may cross. The chunks
// must concatenate back to text.
type ChunkFunc func(text string) ([]string, error)

// WholeInput is the ChunkFunc of the basic tokenizer: the input is a single
// chunk.
func WholeInput(text string) ([]string, error) {
	if text == "" {
		return nil, nil
	}
	return []string{text}, nil
}

// SplitPattern is a regex pre-tokenizer.
type SplitPattern struct {
	source string
	re     *regexp2.Regexp
}

func NewSplitPattern(pattern string) (*SplitPattern, error) {
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf(REGEX_ERROR, err)
	}
	return &SplitPattern{source: pattern, re: re}, nil
}

func (pattern *SplitPattern) String() string {
	return pattern.source
}

// Split returns the matches of the pattern in order. Any text between
// matches that the pattern does not cover is returned as a chunk of its own,
// so no input is ever dropped.
func (pattern *SplitPattern) Split(text string) ([]string, error) {
	if text == "" {
		return nil, nil
	}
	// regexp2 matches over runes; offsets maps each rune index back to its
	// byte offset so chunks are sliced from text and invalid bytes survive.
	runes := make([]rune, 0, len(text))
	offsets := make([]int, 0, len(text)+1)
	for pos := 0; pos < len(text); {
		r, size := utf8.DecodeRuneInString(text[pos:])
		runes = append(runes, r)
		offsets = append(offsets, pos)
		pos += size
	}
	offsets = append(offsets, len(text))

	chunks := make([]string, 0, len(runes)/4+1)
	offset := 0
	m, err := pattern.re.FindRunesMatch(runes)
	for ; m != nil && err == nil; m, err = pattern.re.FindNextMatch(m) {
		if m.Index > offset {
			chunks = append(chunks, text[offsets[offset]:offsets[m.Index]])
			offset = m.Index
		}
		if m.Length == 0 {
			continue
		}
		end := m.Index + m.Length
		chunks = append(chunks, text[offsets[m.Index]:offsets[end]])
		offset = end
	}
	if err != nil {
		return nil, fmt.Errorf("minbpe: splitting text: %w", err)
	}
	if offset < len(runes) {
		chunks = append(chunks, text[offsets[offset]:])
	}
	return chunks, nil
}
