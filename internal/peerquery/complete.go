package peerquery

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Position classifies what the token under the cursor should be.
type Position int

const (
	PosNone Position = iota
	PosCommand
	PosClearTarget
	PosField
	PosOperator
	PosValue
	PosConjunction
	PosDirection
)

func (p Position) String() string {
	switch p {
	case PosCommand:
		return "command"
	case PosClearTarget:
		return "clear target"
	case PosField:
		return "field"
	case PosOperator:
		return "operator"
	case PosValue:
		return "value"
	case PosConjunction:
		return "and"
	case PosDirection:
		return "direction"
	default:
		return "none"
	}
}

const maxValuesPerField = 32

// Index is the set of field paths and sample values seen in a peer snapshot.
type Index struct {
	paths  []string
	values map[string][]string
}

// NewIndex walks every record. Paths stop at arrays and scalars.
func NewIndex(records []json.RawMessage) *Index {
	idx := &Index{values: make(map[string][]string)}
	seen := make(map[string]map[string]bool)

	var walk func(v gjson.Result, prefix string)
	walk = func(v gjson.Result, prefix string) {
		v.ForEach(func(key, val gjson.Result) bool {
			if !validIdent(key.Str) {
				return true
			}
			path := key.Str
			if prefix != "" {
				path = prefix + "." + key.Str
			}
			if val.IsObject() {
				walk(val, path)
				return true
			}
			vals, ok := seen[path]
			if !ok {
				vals = make(map[string]bool)
				seen[path] = vals
				idx.paths = append(idx.paths, path)
			}
			if val.IsArray() || len(vals) >= maxValuesPerField {
				return true
			}
			lit := literalText(val)
			if !vals[lit] {
				vals[lit] = true
				idx.values[path] = append(idx.values[path], lit)
			}
			return true
		})
	}

	for _, r := range records {
		walk(gjson.ParseBytes(r), "")
	}

	sort.Strings(idx.paths)
	for _, vals := range idx.values {
		sort.Strings(vals)
	}
	return idx
}

// Paths returns every known field path, sorted.
func (idx *Index) Paths() []string {
	if idx == nil {
		return nil
	}
	return idx.paths
}

// Values returns sample values of field as literal text, sorted.
func (idx *Index) Values(field string) []string {
	if idx == nil {
		return nil
	}
	return idx.values[field]
}

func literalText(v gjson.Result) string {
	if v.Type == gjson.String {
		return strconv.Quote(v.Str)
	}
	return Stringify(v)
}

func validIdent(s string) bool {
	if s == "" || !isIdentStart(rune(s[0])) {
		return false
	}
	for _, r := range s {
		if !isIdentPart(r) {
			return false
		}
	}
	return true
}

// Completion is the candidate list for the token spanning [Start, End).
type Completion struct {
	Position   Position
	Start      int
	End        int
	Candidates []string
}

var (
	commandWords   = []string{"where", "sort", "clear"}
	clearWords     = []string{"where", "sort"}
	directionWords = []string{"asc", "desc"}
	operatorWords  = []string{"==", "!=", ">", ">=", "<", "<=", "~="}
	andWords       = []string{"and"}
)

// Complete classifies the cursor position in input and lists candidates
// that extend the partial token under it.
func Complete(input string, cursor int, idx *Index) Completion {
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(input) {
		cursor = len(input)
	}

	tokens, _ := lex(input[:cursor], true)

	start := cursor
	if n := len(tokens); n > 0 && tokens[n-1].end == cursor {
		start = tokens[n-1].pos
		tokens = tokens[:n-1]
	}
	end := cursor
	for end < len(input) && input[end] != ' ' {
		end++
	}
	prefix := input[start:cursor]

	pos, field := classify(tokens)

	var pool []string
	switch pos {
	case PosCommand:
		pool = commandWords
	case PosClearTarget:
		pool = clearWords
	case PosField:
		pool = idx.Paths()
	case PosOperator:
		pool = operatorWords
	case PosValue:
		pool = idx.Values(field)
	case PosConjunction:
		pool = andWords
	case PosDirection:
		pool = directionWords
	}

	var candidates []string
	for _, c := range pool {
		if strings.HasPrefix(strings.ToLower(c), strings.ToLower(prefix)) {
			candidates = append(candidates, c)
		}
	}

	return Completion{Position: pos, Start: start, End: end, Candidates: candidates}
}

// classify looks at the completed tokens before the cursor. For value
// positions it also returns the predicate's field.
func classify(done []token) (Position, string) {
	if len(done) == 0 {
		return PosCommand, ""
	}
	switch strings.ToLower(done[0].text) {
	case "clear":
		if len(done) == 1 {
			return PosClearTarget, ""
		}
	case "sort":
		switch len(done) {
		case 1:
			return PosField, ""
		case 2:
			return PosDirection, ""
		}
	case "where":
		switch (len(done) - 1) % 4 {
		case 0:
			return PosField, ""
		case 1:
			return PosOperator, ""
		case 2:
			return PosValue, done[len(done)-2].text
		case 3:
			return PosConjunction, ""
		}
	}
	return PosNone, ""
}

// Completer cycles through candidates on repeated presses. Only the token
// under the cursor is replaced.
type Completer struct {
	active     bool
	start      int
	candidates []string
	i          int
	applied    string
	cursor     int
}

// Next returns input with the next candidate applied and the new cursor.
// ok is false when nothing can be completed.
func (c *Completer) Next(input string, cursor int, idx *Index) (string, int, bool) {
	if c.active && input == c.applied && cursor == c.cursor {
		prev := c.candidates[c.i]
		c.i = (c.i + 1) % len(c.candidates)
		return c.apply(input, c.start, c.start+len(prev))
	}

	comp := Complete(input, cursor, idx)
	if len(comp.Candidates) == 0 {
		c.Reset()
		return input, cursor, false
	}
	c.active = true
	c.start = comp.Start
	c.candidates = comp.Candidates
	c.i = 0
	return c.apply(input, comp.Start, comp.End)
}

func (c *Completer) apply(input string, start, end int) (string, int, bool) {
	cand := c.candidates[c.i]
	out := input[:start] + cand + input[end:]
	c.applied = out
	c.cursor = start + len(cand)
	return out, c.cursor, true
}

// Candidates returns the list being cycled and the index of the current one.
func (c *Completer) Candidates() ([]string, int) {
	if !c.active {
		return nil, -1
	}
	return c.candidates, c.i
}

// Reset forgets the cycle; call it on any edit other than completion.
func (c *Completer) Reset() {
	*c = Completer{}
}

// HelpText is shown by the query help popup.
const HelpText = `Peer query commands

  where <field> <op> <value> [and <field> <op> <value> ...]
  sort <field> [asc|desc]
  clear            reset filter and sort
  clear where      reset filter only
  clear sort       reset sort only

Operators
  ==  !=           exact match (numbers compare numerically)
  >  >=  <  <=     numeric when both sides are numbers, else text order
  ~=               substring match, case-sensitive

Fields are dotted paths into getpeerinfo, e.g. bytessent_per_msg.addrv2.
Arrays cannot be indexed; they compare as their JSON text.
A new where on a field replaces the previous condition on that field.
Missing fields sort first ascending and last descending.

Examples
  where version == 70016 and subver ~= "Satoshi"
  where inbound == false and connection_type == "outbound-full-relay"
  sort minping desc

Tab completes commands, fields, operators and values; press again to cycle.`
