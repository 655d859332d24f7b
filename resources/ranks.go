package resources

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"

	"github.com/wbrown/minbpe/types"
)

// ParseRanks reads a rank file in the tiktoken format: one token per line,
// its bytes base64 encoded, a space, then its rank. Blank lines are skipped.
func ParseRanks(data []byte) (types.TokenMap, error) {
	ranks := make(types.TokenMap, bytes.Count(data, []byte{'\n'})+1)
	lineNo := 0
	for len(data) > 0 {
		var line []byte
		if nl := bytes.IndexByte(data, '\n'); nl >= 0 {
			line, data = data[:nl], data[nl+1:]
		} else {
			line, data = data, nil
		}
		lineNo++
		line = bytes.TrimRight(line, "\r")
		if len(line) == 0 {
			continue
		}
		sep := bytes.IndexByte(line, ' ')
		if sep < 0 {
			return nil, fmt.Errorf("rank file line %d: missing rank", lineNo)
		}
		token, decodeErr := base64.StdEncoding.DecodeString(
			string(line[:sep]))
		if decodeErr != nil {
			return nil, fmt.Errorf("rank file line %d: %w", lineNo,
				decodeErr)
		}
		rank, rankErr := strconv.ParseUint(string(line[sep+1:]), 10, 32)
		if rankErr != nil {
			return nil, fmt.Errorf("rank file line %d: %w", lineNo,
				rankErr)
		}
		if _, dup := ranks[string(token)]; dup {
			return nil, fmt.Errorf("rank file line %d: token %q appears "+
				"twice", lineNo, token)
		}
		ranks[string(token)] = types.Token(rank)
	}
	return ranks, nil
}

// WriteRanks writes ranks in the tiktoken format, ordered by rank.
func WriteRanks(w io.Writer, ranks types.TokenMap) error {
	buf := bufio.NewWriter(w)
	for _, entry := range ranks.Ranks() {
		if _, err := fmt.Fprintf(buf, "%s %d\n",
			base64.StdEncoding.EncodeToString([]byte(entry.Bytes)),
			entry.Rank); err != nil {
			return err
		}
	}
	return buf.Flush()
}
