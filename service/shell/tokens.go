package shell

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

// Token codes
const (
	whitespaceCode = iota
	quotedCode
	wordCode
)

// Token definitions
var (
	whitespaceToken = parsly.NewToken(whitespaceCode, "Whitespace", matcher.NewWhiteSpace())
	quotedToken     = parsly.NewToken(quotedCode, "Quoted", &quotedMatcher{})
	wordToken       = parsly.NewToken(wordCode, "Word", &wordMatcher{})
)

// quotedMatcher matches a single- or double-quoted span including the quotes,
// honouring backslash escapes.
type quotedMatcher struct{}

func (m *quotedMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	if pos >= size {
		return 0
	}
	quote := input[pos]
	if quote != '\'' && quote != '"' {
		return 0
	}
	matched := 1
	for i := pos + 1; i < size; i++ {
		matched++
		if input[i] == '\\' && i+1 < size {
			matched++
			i++
			continue
		}
		if input[i] == quote {
			return matched
		}
	}
	// Unterminated quote; consume to end of input.
	return matched
}

// wordMatcher matches a bare token up to the next whitespace or quote.
type wordMatcher struct{}

func (m *wordMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	matched := 0
	for i := pos; i < size; i++ {
		c := input[i]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\'' || c == '"' {
			break
		}
		matched++
	}
	return matched
}
