package minbpe

import (
	"bytes"
)

// Merge is a single merge rule: Pair is replaced by ID.
type Merge struct {
	Pair TokenPair
	ID   Token
}

// MergeTable is the ordered list of merge rules together with a pair index.
// Rules are applied in the order they were learned, since later rules may
// use ids produced by earlier ones. A MergeTable is immutable once built.
type MergeTable struct {
	rules []Merge
	index map[TokenPair]Token
}

// NewMergeTable validates rules and builds a table from them. Every rule's
// id must be above 255, strictly increasing, greater than both operands, and
// its operands must be bytes or ids of earlier rules.
func NewMergeTable(rules []Merge) (*MergeTable, error) {
	table := &MergeTable{
		rules: make([]Merge, 0, len(rules)),
		index: make(map[TokenPair]Token, len(rules)),
	}
	defined := make(map[Token]bool, len(rules))
	isDefined := func(token Token) bool {
		return token.IsByte() || defined[token]
	}
	for idx, rule := range rules {
		switch {
		case rule.ID.IsByte():
			return nil, configErrorf("merge table",
				"rule %d: id %d is in the byte range", idx, rule.ID)
		case rule.ID <= rule.Pair.Left || rule.ID <= rule.Pair.Right:
			return nil, configErrorf("merge table",
				"rule %d: id %d is not above its operands %v", idx,
				rule.ID, rule.Pair)
		case idx > 0 && rule.ID <= rules[idx-1].ID:
			return nil, configErrorf("merge table",
				"rule %d: id %d does not follow id %d", idx, rule.ID,
				rules[idx-1].ID)
		case !isDefined(rule.Pair.Left) || !isDefined(rule.Pair.Right):
			return nil, configErrorf("merge table",
				"rule %d: operands %v are not defined by earlier rules",
				idx, rule.Pair)
		}
		if _, dup := table.index[rule.Pair]; dup {
			return nil, configErrorf("merge table",
				"rule %d: pair %v is merged twice", idx, rule.Pair)
		}
		table.append(rule.Pair, rule.ID)
		defined[rule.ID] = true
	}
	return table, nil
}

// MustMergeTable is NewMergeTable that panics on invalid rules.
func MustMergeTable(rules []Merge) *MergeTable {
	table, err := NewMergeTable(rules)
	if err != nil {
		panic(err)
	}
	return table
}

func emptyMergeTable() *MergeTable {
	return &MergeTable{index: make(map[TokenPair]Token)}
}

// append is only used while a table is being built.
func (table *MergeTable) append(pair TokenPair, id Token) {
	table.rules = append(table.rules, Merge{Pair: pair, ID: id})
	table.index[pair] = id
}

func (table *MergeTable) Len() int {
	return len(table.rules)
}

// Rules returns a copy of the rules in application order.
func (table *MergeTable) Rules() []Merge {
	rules := make([]Merge, len(table.rules))
	copy(rules, table.rules)
	return rules
}

// Lookup returns the id a pair merges into.
func (table *MergeTable) Lookup(pair TokenPair) (Token, bool) {
	id, ok := table.index[pair]
	return id, ok
}

// NextID is the first id after the learned merges, which is where special
// tokens start.
func (table *MergeTable) NextID() Token {
	if len(table.rules) == 0 {
		return ByteTokens
	}
	return table.rules[len(table.rules)-1].ID + 1
}

// Vocabulary resolves every token id to its byte string. Byte and merge
// entries are in the (possibly permuted) byte space the merges operate on;
// special entries are the literal's UTF-8 bytes.
type Vocabulary struct {
	tokens   map[Token][]byte
	specials map[Token]bool
}

// BuildVocabulary derives a fresh vocabulary from a merge table and a
// special-token set. It is always rebuilt as a whole, never patched.
func BuildVocabulary(
	merges *MergeTable,
	specials *SpecialTokens,
) *Vocabulary {
	size := ByteTokens + merges.Len() + specials.Len()
	vocab := &Vocabulary{
		tokens:   make(map[Token][]byte, size),
		specials: make(map[Token]bool, specials.Len()),
	}
	for b := 0; b < ByteTokens; b++ {
		vocab.tokens[Token(b)] = []byte{byte(b)}
	}
	for _, rule := range merges.rules {
		left := vocab.tokens[rule.Pair.Left]
		right := vocab.tokens[rule.Pair.Right]
		resolved := make([]byte, 0, len(left)+len(right))
		resolved = append(resolved, left...)
		vocab.tokens[rule.ID] = append(resolved, right...)
	}
	for _, special := range specials.Literals() {
		id, _ := specials.ID(special)
		vocab.tokens[id] = []byte(special)
		vocab.specials[id] = true
	}
	return vocab
}

// Lookup returns the bytes for id. The returned slice must not be modified.
func (vocab *Vocabulary) Lookup(id Token) ([]byte, bool) {
	resolved, ok := vocab.tokens[id]
	return resolved, ok
}

func (vocab *Vocabulary) IsSpecial(id Token) bool {
	return vocab.specials[id]
}

func (vocab *Vocabulary) Len() int {
	return len(vocab.tokens)
}

// Equal reports whether both vocabularies resolve the same ids to the same
// bytes.
func (vocab *Vocabulary) Equal(other *Vocabulary) bool {
	if len(vocab.tokens) != len(other.tokens) ||
		len(vocab.specials) != len(other.specials) {
		return false
	}
	for id, resolved := range vocab.tokens {
		if otherResolved, ok := other.tokens[id]; !ok ||
			!bytes.Equal(resolved, otherResolved) {
			return false
		}
		if vocab.specials[id] != other.specials[id] {
			return false
		}
	}
	return true
}
