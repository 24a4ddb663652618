package shell

import (
	"strings"

	"github.com/viant/parsly"
)

// Split tokenizes a command line into arguments, honouring single and double
// quotes so that quoted spans stay one argument. Adjacent quoted and bare
// fragments concatenate, as in a POSIX shell: --flag="a b" yields one token.
func Split(command string) []string {
	cursor := parsly.NewCursor("", []byte(command), 0)
	var args []string
	var fragment strings.Builder
	pending := false

	flush := func() {
		if pending {
			args = append(args, fragment.String())
			fragment.Reset()
			pending = false
		}
	}

	for cursor.Pos < cursor.InputSize {
		matched := cursor.MatchOne(whitespaceToken)
		if matched.Code == whitespaceToken.Code {
			flush()
			continue
		}
		matched = cursor.MatchAny(quotedToken, wordToken)
		switch matched.Code {
		case quotedToken.Code:
			fragment.WriteString(unquote(matched.Text(cursor)))
			pending = true
		case wordToken.Code:
			fragment.WriteString(matched.Text(cursor))
			pending = true
		default:
			// Unmatchable byte; take it verbatim.
			fragment.WriteByte(cursor.Input[cursor.Pos])
			cursor.Pos++
			pending = true
		}
	}
	flush()
	return args
}

// unquote strips the outer quotes and resolves backslash escapes.
func unquote(text string) string {
	if len(text) < 2 {
		return text
	}
	quote := text[0]
	body := text[1:]
	if body[len(body)-1] == quote {
		body = body[:len(body)-1]
	}
	if !strings.ContainsRune(body, '\\') {
		return body
	}
	var out strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			i++
			out.WriteByte(body[i])
			continue
		}
		out.WriteByte(body[i])
	}
	return out.String()
}
