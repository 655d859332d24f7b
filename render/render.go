// Package render draws token boundaries for terminal display.
package render

import (
	"fmt"
	"strings"

	"github.com/wbrown/minbpe/types"
)

const reset = "\x1b[0m"

// DecodeFunc decodes a token sequence to text.
type DecodeFunc func(types.Tokens) (string, error)

// background returns the 256-colour background escape for code.
func background(code int) string {
	return fmt.Sprintf("\x1b[48;5;%dm", code)
}

// Highlight decodes every token on its own and gives each distinct token id
// its own background colour, cycling through the 6x6x6 colour cube. The same
// id always gets the same colour within one call.
func Highlight(ids types.Tokens, decode DecodeFunc) (string, error) {
	colours := make(map[types.Token]string)
	next := 16
	var sb strings.Builder
	for _, id := range ids {
		colour, ok := colours[id]
		if !ok {
			colour = background(next)
			colours[id] = colour
			next = 16 + (next-15)%216
		}
		text, err := decode(types.Tokens{id})
		if err != nil {
			return "", err
		}
		sb.WriteString(colour)
		sb.WriteString(text)
		sb.WriteString(reset)
	}
	return sb.String(), nil
}

// Pieces decodes every token on its own and joins them with sep, the plain
// text form of Highlight.
func Pieces(ids types.Tokens, decode DecodeFunc, sep string) (string, error) {
	pieces := make([]string, 0, len(ids))
	for _, id := range ids {
		text, err := decode(types.Tokens{id})
		if err != nil {
			return "", err
		}
		pieces = append(pieces, text)
	}
	return strings.Join(pieces, sep), nil
}
