package minbpe

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type SplitTest struct {
	Input    string
	Expected []string
}

var GPT4SplitTests = []SplitTest{
	{"hello world123", []string{"hello", " world", "123"}},
	{"we'll go jump in a lake.",
		[]string{"we", "'ll", " go", " jump", " in", " a", " lake", "."}},
	{"WE'LL", []string{"WE", "'LL"}},
	{"1234567", []string{"123", "456", "7"}},
	{"multiple  encoded", []string{"multiple", " ", " encoded"}},
	{"hi\n\nthere", []string{"hi", "\n\n", "there"}},
	{"trailing   ", []string{"trailing", "   "}},
	{" 😉", []string{" 😉"}},
	{"", nil},
}

func TestSplitPattern_GPT4(t *testing.T) {
	pattern, err := NewSplitPattern(GPT4SplitPattern)
	require.NoError(t, err)
	assert.Equal(t, GPT4SplitPattern, pattern.String())
	for _, test := range GPT4SplitTests {
		chunks, err := pattern.Split(test.Input)
		require.NoError(t, err)
		assert.Equal(t, test.Expected, chunks, "input %q", test.Input)
	}
}

func TestSplitPattern_GPT2(t *testing.T) {
	pattern, err := NewSplitPattern(GPT2SplitPattern)
	require.NoError(t, err)
	chunks, err := pattern.Split("we'll go 12345")
	require.NoError(t, err)
	assert.Equal(t, []string{"we", "'ll", " go", " 12345"}, chunks)
}

func TestSplitPattern_KeepsUnmatchedText(t *testing.T) {
	pattern, err := NewSplitPattern(`\d+`)
	require.NoError(t, err)
	chunks, err := pattern.Split("ab12cd3")
	require.NoError(t, err)
	assert.Equal(t, []string{"ab", "12", "cd", "3"}, chunks)
}

func TestSplitPattern_Concatenates(t *testing.T) {
	pattern, err := NewSplitPattern(GPT4SplitPattern)
	require.NoError(t, err)
	for _, text := range append(roundTripTests, trainingText) {
		chunks, err := pattern.Split(text)
		require.NoError(t, err)
		assert.Equal(t, text, strings.Join(chunks, ""))
	}
}

func TestNewSplitPattern_Invalid(t *testing.T) {
	_, err := NewSplitPattern(`(unclosed`)
	assert.Error(t, err)
}

func TestWholeInput(t *testing.T) {
	chunks, err := WholeInput("a b c")
	require.NoError(t, err)
	assert.Equal(t, []string{"a b c"}, chunks)
	chunks, err = WholeInput("")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestSplitPattern_InvalidUTF8(t *testing.T) {
	pattern, err := NewSplitPattern(GPT4SplitPattern)
	require.NoError(t, err)
	chunks, err := pattern.Split("a\xffb \xe2\x82")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "\xffb", " \xe2\x82"}, chunks)
}
