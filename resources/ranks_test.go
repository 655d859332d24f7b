package resources

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wbrown/minbpe/types"
)

const rankFile = "IQ== 0\nIg== 1\n\nYWI= 2\r\nIGhlbGxv 3\n"

func TestParseRanks(t *testing.T) {
	ranks, err := ParseRanks([]byte(rankFile))
	require.NoError(t, err)
	assert.Equal(t, types.TokenMap{
		"!":      0,
		"\"":     1,
		"ab":     2,
		" hello": 3,
	}, ranks)
}

var badRankFiles = []string{
	"IQ==\n",
	"IQ== x\n",
	"not base64! 0\n",
	"IQ== 0\nIQ== 1\n",
	"IQ== 99999999999\n",
}

func TestParseRanks_Invalid(t *testing.T) {
	for _, bad := range badRankFiles {
		_, err := ParseRanks([]byte(bad))
		assert.Error(t, err, "input %q", bad)
	}
}

func TestWriteRanks(t *testing.T) {
	ranks, err := ParseRanks([]byte(rankFile))
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, WriteRanks(&buf, ranks))
	assert.Equal(t, strings.Replace(strings.Replace(rankFile, "\n\n", "\n",
		1), "\r", "", 1), buf.String())
}

func TestSaveAndLoadRankFile(t *testing.T) {
	ranks := types.TokenMap{"\x00": 0, "\xff": 1, "\x00\xff": 2}
	rankPath := filepath.Join(t.TempDir(), "test.tiktoken")
	require.NoError(t, SaveRankFile(rankPath, ranks))
	loaded, err := LoadRankFile(rankPath)
	require.NoError(t, err)
	assert.Equal(t, ranks, loaded)
}

func TestLoadRankFile_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadRankFile(filepath.Join(dir, "missing.tiktoken"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.tiktoken")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	_, err = LoadRankFile(empty)
	assert.Error(t, err)
}

func TestResolveRanks_Download(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				requests++
			}
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			http.ServeContent(w, r, "test.tiktoken", time.Time{},
				strings.NewReader(rankFile))
		}))
	defer server.Close()

	dir := t.TempDir()
	uri := server.URL + "/ranks/test.tiktoken"
	ranks, err := ResolveRanks(uri, dir, "secret")
	require.NoError(t, err)
	assert.Len(t, ranks, 4)
	assert.FileExists(t, filepath.Join(dir, "test.tiktoken"))

	// The second resolve finds the downloaded file and skips the GET.
	_, err = ResolveRanks(uri, dir, "secret")
	require.NoError(t, err)
	assert.Equal(t, 1, requests)
}

func TestResolveRanks_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()
	_, err := ResolveRanks(server.URL+"/missing.tiktoken", t.TempDir(), "")
	assert.Error(t, err)
}

func TestIsValidUrl(t *testing.T) {
	assert.True(t, isValidUrl("https://example.com/cl100k_base.tiktoken"))
	assert.False(t, isValidUrl("cl100k_base.tiktoken"))
	assert.False(t, isValidUrl("/tmp/cl100k_base.tiktoken"))
}
