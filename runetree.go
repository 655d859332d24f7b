package minbpe

import (
	"strings"
	"unicode/utf8"
)

type RuneNode struct {
	rune      rune               // The rune this node represents.
	terminal  bool               // If this node ends a special token.
	id        Token              // The special token id, if terminal.
	childs    map[rune]*RuneNode // The child nodes.
	childsArr *[]*RuneNode       // The child nodes in an array, for precedence
}

func (node *RuneNode) child(r rune) *RuneNode {
	// The array exists while the node has at most 10 children, and is
	// faster to scan than the map.
	if node.childsArr != nil {
		for _, child := range *node.childsArr {
			if child.rune == r {
				return child
			}
		}
		return nil
	}
	return node.childs[r]
}

// longestMatch walks the tree along text and returns the id and byte length
// of the longest special token that text starts with.
func (root *RuneNode) longestMatch(text string) (Token, int, bool) {
	var (
		bestID  Token
		bestLen int
		found   bool
	)
	node := root
	for pos := 0; pos < len(text); {
		r, size := utf8.DecodeRuneInString(text[pos:])
		if r == utf8.RuneError && size == 1 {
			break
		}
		if node = node.child(r); node == nil {
			break
		}
		pos += size
		if node.terminal {
			bestID, bestLen, found = node.id, pos, true
		}
	}
	return bestID, bestLen, found
}

// Represent the tree as a string by traversing the tree, and using tree
// characters to represent the tree structure.
func (node *RuneNode) string(level int) string {
	if node == nil {
		return ""
	}
	s := string(node.rune)
	idx := 0
	if len(node.childs) == 1 {
		for r := range node.childs {
			s += node.childs[r].string(level)
		}
		return s
	}
	level += 1
	s += "\n"

	for _, child := range node.children() {
		childPrefix := strings.Repeat("| ", level-1)
		if idx == len(node.childs)-1 {
			childPrefix += "└─"
		} else {
			childPrefix += "├─"
		}
		s += childPrefix + child.string(level)
		idx += 1
	}
	return s
}

// children returns the child nodes in insertion order when known.
func (node *RuneNode) children() []*RuneNode {
	if node.childsArr != nil {
		return *node.childsArr
	}
	children := make([]*RuneNode, 0, len(node.childs))
	for _, child := range node.childs {
		children = append(children, child)
	}
	return children
}

func (node *RuneNode) String() string {
	return node.string(0)
}

func newRuneTree(literals []string, base Token) *RuneNode {
	runeTree := &RuneNode{
		childs: make(map[rune]*RuneNode, 0),
	}

	for literalIdx, k := range literals {
		keyRunes := []rune(k)
		keyLen := len(keyRunes)
		node := runeTree
		for i := 0; i < keyLen; i++ {
			r := keyRunes[i]
			childNode, ok := node.childs[r]
			if !ok {
				children := make([]*RuneNode, 0)
				childNode = &RuneNode{
					rune:      r,
					childs:    make(map[rune]*RuneNode, 0),
					childsArr: &children,
				}
				node.childs[r] = childNode
				if node.childsArr != nil {
					*node.childsArr = append(*node.childsArr, childNode)
				}
			}
			if len(node.childs) > 10 {
				// Past 10 children the map is faster than a scan.
				node.childsArr = nil
			}
			if i == keyLen-1 {
				childNode.terminal = true
				childNode.id = base + Token(literalIdx)
			}
			node = childNode
		}
	}
	return runeTree
}

// SpecialTokens is an ordered set of reserved literals. The i-th literal has
// id base+i, where base is the first id after the learned merges.
type SpecialTokens struct {
	literals []string
	ids      map[string]Token
	base     Token
	tree     *RuneNode
}

// NewSpecialTokens validates literals and assigns them ids starting at base.
// Literals must be non-empty and unique.
func NewSpecialTokens(base Token, literals ...string) (*SpecialTokens, error) {
	specials := &SpecialTokens{
		literals: make([]string, 0, len(literals)),
		ids:      make(map[string]Token, len(literals)),
		base:     base,
	}
	for idx, literal := range literals {
		if literal == "" {
			return nil, configErrorf("special tokens",
				"literal %d is empty", idx)
		}
		if _, dup := specials.ids[literal]; dup {
			return nil, configErrorf("special tokens",
				"literal %q is registered twice", literal)
		}
		specials.ids[literal] = base + Token(idx)
		specials.literals = append(specials.literals, literal)
	}
	specials.tree = newRuneTree(specials.literals, base)
	return specials, nil
}

func (specials *SpecialTokens) Len() int {
	if specials == nil {
		return 0
	}
	return len(specials.literals)
}

// Literals returns the literals in registration order.
func (specials *SpecialTokens) Literals() []string {
	if specials == nil {
		return nil
	}
	return append([]string(nil), specials.literals...)
}

func (specials *SpecialTokens) ID(literal string) (Token, bool) {
	if specials == nil {
		return 0, false
	}
	id, ok := specials.ids[literal]
	return id, ok
}

// Segment is a span of input text, either a special token or ordinary text.
type Segment struct {
	Text    string
	Special bool
	ID      Token
}

// Split scans text left to right. At each position the longest registered
// literal starting there is taken as a special token; everything else is
// collected into ordinary segments.
func (specials *SpecialTokens) Split(text string) []Segment {
	if text == "" {
		return nil
	}
	if specials.Len() == 0 {
		return []Segment{{Text: text}}
	}
	segments := make([]Segment, 0, 4)
	ordinaryStart := 0
	for pos := 0; pos < len(text); {
		id, length, ok := specials.tree.longestMatch(text[pos:])
		if !ok {
			_, size := utf8.DecodeRuneInString(text[pos:])
			pos += size
			continue
		}
		if pos > ordinaryStart {
			segments = append(segments,
				Segment{Text: text[ordinaryStart:pos]})
		}
		segments = append(segments,
			Segment{Text: text[pos : pos+length], Special: true, ID: id})
		pos += length
		ordinaryStart = pos
	}
	if ordinaryStart < len(text) {
		segments = append(segments, Segment{Text: text[ordinaryStart:]})
	}
	return segments
}
