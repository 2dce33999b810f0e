// Package peerquery filters and sorts getpeerinfo records with a small
// command language:
//
//	where <field> <op> <value> [and <field> <op> <value> ...]
//	sort <field> [asc|desc]
//	clear | clear where | clear sort
//
// Fields are dotted paths into the peer object. Operators are
// ==, !=, >, >=, <, <= and ~= (substring).
package peerquery

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokIdent tokenKind = iota // identifiers, keywords and dotted paths
	tokOp
	tokString
	tokNumber
)

type token struct {
	kind tokenKind
	text string // source text; for strings, the unquoted value
	pos  int    // byte offset of the first character
	end  int    // byte offset after the last character
	open bool   // unterminated string
}

// SyntaxError points at the byte offset where parsing failed.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("at %d: %s", e.Pos+1, e.Msg)
}

var operators = []string{"==", "!=", ">=", "<=", "~=", ">", "<"}

// lex splits input into tokens. With lenient set, an unterminated string
// becomes an open token instead of an error.
func lex(input string, lenient bool) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t':
			i++

		case c == '"' || c == '\'':
			start := i
			i++
			var b strings.Builder
			closed := false
			for i < len(input) {
				if input[i] == '\\' && i+1 < len(input) {
					b.WriteByte(input[i+1])
					i += 2
					continue
				}
				if input[i] == c {
					closed = true
					i++
					break
				}
				b.WriteByte(input[i])
				i++
			}
			if !closed && !lenient {
				return nil, &SyntaxError{Pos: start, Msg: "unterminated string"}
			}
			tokens = append(tokens, token{kind: tokString, text: b.String(), pos: start, end: i, open: !closed})

		case strings.ContainsRune("=!<>~", rune(c)):
			op := ""
			for _, candidate := range operators {
				if strings.HasPrefix(input[i:], candidate) {
					op = candidate
					break
				}
			}
			if op == "" {
				if lenient {
					tokens = append(tokens, token{kind: tokOp, text: input[i : i+1], pos: i, end: i + 1})
					i++
					continue
				}
				return nil, &SyntaxError{Pos: i, Msg: fmt.Sprintf("unknown operator %q", input[i:i+1])}
			}
			tokens = append(tokens, token{kind: tokOp, text: op, pos: i, end: i + len(op)})
			i += len(op)

		case c == '-' || c == '+' || (c >= '0' && c <= '9'):
			start := i
			i++
			for i < len(input) && (isDigit(input[i]) || input[i] == '.' || input[i] == 'e' || input[i] == 'E' || ((input[i] == '-' || input[i] == '+') && (input[i-1] == 'e' || input[i-1] == 'E'))) {
				i++
			}
			tokens = append(tokens, token{kind: tokNumber, text: input[start:i], pos: start, end: i})

		case isIdentStart(rune(c)):
			start := i
			for i < len(input) && (isIdentPart(rune(input[i])) || input[i] == '.') {
				i++
			}
			tokens = append(tokens, token{kind: tokIdent, text: input[start:i], pos: start, end: i})

		default:
			if lenient {
				i++
				continue
			}
			return nil, &SyntaxError{Pos: i, Msg: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	return tokens, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(r rune) bool {
	return r == '_' || (r < unicode.MaxASCII && unicode.IsLetter(r))
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9')
}
