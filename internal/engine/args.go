package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// BadArgumentError is a user-supplied argument that cannot be sent.
// Position is 1-based.
type BadArgumentError struct {
	Position int
	Token    string
	Reason   string
}

func (e *BadArgumentError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("argument %d: %s", e.Position, e.Reason)
	}
	return fmt.Sprintf("argument %d (%s): %s", e.Position, e.Token, e.Reason)
}

// SplitArgs splits comma-separated argument text into tokens. Commas inside
// strings, arrays and objects do not split. An empty token marks an
// omitted argument; blank input yields no tokens.
func SplitArgs(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var (
		tokens  []string
		current strings.Builder
		depth   []byte
		inStr   bool
		escaped bool
	)
	flush := func() {
		tokens = append(tokens, strings.TrimSpace(current.String()))
		current.Reset()
	}

	for _, r := range raw {
		if inStr {
			current.WriteRune(r)
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inStr = false
			}
			continue
		}

		switch r {
		case '"':
			inStr = true
		case '[', '{':
			depth = append(depth, byte(r))
		case ']', '}':
			open := byte('[')
			if r == '}' {
				open = '{'
			}
			if len(depth) == 0 || depth[len(depth)-1] != open {
				return nil, &BadArgumentError{Position: len(tokens) + 1, Token: strings.TrimSpace(current.String() + string(r)), Reason: "unbalanced " + string(r)}
			}
			depth = depth[:len(depth)-1]
		case ',':
			if len(depth) == 0 {
				flush()
				continue
			}
		}
		current.WriteRune(r)
	}

	switch {
	case inStr:
		return nil, &BadArgumentError{Position: len(tokens) + 1, Token: strings.TrimSpace(current.String()), Reason: "unterminated string"}
	case len(depth) > 0:
		return nil, &BadArgumentError{Position: len(tokens) + 1, Token: strings.TrimSpace(current.String()), Reason: "unclosed " + string(depth[len(depth)-1])}
	}
	flush()
	return tokens, nil
}

// ParseToken validates one token as a single JSON literal and returns it
// compacted. Type is preserved: 6 stays a number, "6" a string.
func ParseToken(position int, token string) (json.RawMessage, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, &BadArgumentError{Position: position, Reason: "empty argument"}
	}

	dec := json.NewDecoder(strings.NewReader(token))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &BadArgumentError{Position: position, Token: token, Reason: "not a JSON value (strings need double quotes)"}
	}
	if dec.More() {
		return nil, &BadArgumentError{Position: position, Token: token, Reason: "more than one value; separate arguments with commas"}
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(token)); err != nil {
		return nil, &BadArgumentError{Position: position, Token: token, Reason: err.Error()}
	}
	return json.RawMessage(buf.Bytes()), nil
}
