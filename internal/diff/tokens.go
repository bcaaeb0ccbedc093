// internal/diff/tokens.go
package diff

import (
	"strings"
	"unicode/utf8"

	"github.com/clipperhouse/uax29/v2/words"
)

// tokenizer splits a text into tokens whose concatenation is the text
type tokenizer func(string) []string

func splitWords(s string) []string {
	var tokens []string
	iter := words.FromString(s)
	for iter.Next() {
		tokens = append(tokens, iter.Value())
	}
	return tokens
}

func splitLines(s string) []string {
	tokens := strings.SplitAfter(s, "\n")
	if n := len(tokens); n > 0 && tokens[n-1] == "" {
		tokens = tokens[:n-1]
	}
	return tokens
}

// tokenTable assigns each distinct token a rune so that token sequences can
// be diffed with the rune algorithm
type tokenTable struct {
	index  map[string]rune
	tokens []string
}

func newTokenTable() *tokenTable {
	return &tokenTable{index: make(map[string]rune)}
}

// codePoint maps a table position onto a valid, non-surrogate rune
func codePoint(i int) rune {
	r := rune(i)
	if r >= 0xD800 {
		r += 0x800
	}
	return r
}

func (t *tokenTable) encode(tokens []string) ([]rune, bool) {
	out := make([]rune, len(tokens))
	for i, tok := range tokens {
		r, ok := t.index[tok]
		if !ok {
			r = codePoint(len(t.tokens))
			if r > utf8.MaxRune {
				return nil, false
			}
			t.index[tok] = r
			t.tokens = append(t.tokens, tok)
		}
		out[i] = r
	}
	return out, true
}

func (t *tokenTable) token(r rune) string {
	i := int(r)
	if r >= 0xD800+0x800 {
		i -= 0x800
	}
	return t.tokens[i]
}

// diffTokens diffs two texts at token granularity. It reports false when the
// texts hold more distinct tokens than can be mapped to runes.
func diffTokens(oldText, newText string, split tokenizer) ([]Operation, bool) {
	table := newTokenTable()
	a, ok := table.encode(split(oldText))
	if !ok {
		return nil, false
	}
	b, ok := table.encode(split(newText))
	if !ok {
		return nil, false
	}

	var ops []Operation
	for _, op := range diffRunes(a, b) {
		var sb strings.Builder
		for _, r := range op.Text {
			sb.WriteString(table.token(r))
		}
		ops = append(ops, Operation{op.Op, sb.String()})
	}
	return compact(ops), true
}
