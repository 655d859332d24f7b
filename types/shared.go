package types

import "fmt"

// Token is a token id. Ids 0-255 are raw byte values, everything above is a
// learned merge or a special token.
type Token uint32
type Tokens []Token

// TokenMap maps a token's exact byte string to its id (or rank, for
// vocabularies imported from elsewhere).
type TokenMap map[string]Token

const (
	// ByteTokens is the number of ids reserved for raw bytes.
	ByteTokens = 256
	TokenSize  = 2
)

type TokenPair struct {
	Left  Token
	Right Token
}

// Less orders pairs lexicographically by (Left, Right).
func (pair TokenPair) Less(other TokenPair) bool {
	if pair.Left != other.Left {
		return pair.Left < other.Left
	}
	return pair.Right < other.Right
}

func (pair TokenPair) String() string {
	return fmt.Sprintf("(%d, %d)", pair.Left, pair.Right)
}

// IsByte reports whether the token is one of the 256 raw byte ids.
func (token Token) IsByte() bool {
	return token < ByteTokens
}
