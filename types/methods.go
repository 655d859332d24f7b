package types

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
)

// ToBin serializes tokens as little-endian integers, either 16 or 32 bits
// wide.
func (tokens *Tokens) ToBin(useUint32 bool) (*[]byte, error) {
	if useUint32 {
		return tokens.ToBinUint32()
	} else {
		return tokens.ToBinUint16()
	}
}

func (tokens *Tokens) ToBinUint16() (*[]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, len(*tokens)*TokenSize))
	for idx := range *tokens {
		bs := (*tokens)[idx]
		if bs > 65535 {
			return nil, fmt.Errorf("integer overflow: tried to write "+
				"token ID %d as unsigned 16-bit", bs)
		}
		if err := binary.Write(buf, binary.LittleEndian,
			uint16(bs)); err != nil {
			return nil, err
		}
	}
	byt := buf.Bytes()
	return &byt, nil
}

func (tokens *Tokens) ToBinUint32() (*[]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, len(*tokens)*4))
	if err := binary.Write(buf, binary.LittleEndian,
		asUint32(*tokens)); err != nil {
		return nil, err
	}
	byt := buf.Bytes()
	return &byt, nil
}

func asUint32(tokens Tokens) []uint32 {
	out := make([]uint32, len(tokens))
	for idx, token := range tokens {
		out[idx] = uint32(token)
	}
	return out
}

// TokensFromBin reads 16-bit little-endian tokens. A trailing odd byte is
// ignored.
func TokensFromBin(bin *[]byte) *Tokens {
	tokens := make(Tokens, 0, len(*bin)/2)
	buf := bytes.NewReader(*bin)
	for {
		var token uint16
		if err := binary.Read(buf, binary.LittleEndian, &token); err != nil {
			break
		}
		tokens = append(tokens, Token(token))
	}
	return &tokens
}

func TokensFromBin32(bin *[]byte) *Tokens {
	tokens := make(Tokens, 0, len(*bin)/4)
	buf := bytes.NewReader(*bin)
	for {
		var token uint32
		if err := binary.Read(buf, binary.LittleEndian, &token); err != nil {
			break
		}
		tokens = append(tokens, Token(token))
	}
	return &tokens
}

// Ranks returns the entries of the map ordered by token id.
func (tokenMap TokenMap) Ranks() []RankedToken {
	ranked := make([]RankedToken, 0, len(tokenMap))
	for token, rank := range tokenMap {
		ranked = append(ranked, RankedToken{Bytes: token, Rank: rank})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Rank != ranked[j].Rank {
			return ranked[i].Rank < ranked[j].Rank
		}
		return ranked[i].Bytes < ranked[j].Bytes
	})
	return ranked
}

type RankedToken struct {
	Bytes string
	Rank  Token
}
