package peerquery

import (
	"fmt"
	"strconv"
	"strings"
)

type Op int

const (
	OpEq Op = iota
	OpNe
	OpGt
	OpGe
	OpLt
	OpLe
	OpContains
)

var opText = map[Op]string{
	OpEq: "==", OpNe: "!=", OpGt: ">", OpGe: ">=", OpLt: "<", OpLe: "<=", OpContains: "~=",
}

func (o Op) String() string { return opText[o] }

func parseOp(s string) (Op, bool) {
	for op, text := range opText {
		if text == s {
			return op, true
		}
	}
	return 0, false
}

type LiteralKind int

const (
	LitString LiteralKind = iota
	LitNumber
	LitBool
	LitNull
)

// Literal is the right-hand side of a predicate. Text is its string form:
// the unquoted value for strings, the source text for numbers.
type Literal struct {
	Kind LiteralKind
	Text string
	Num  float64
}

func (l Literal) String() string {
	if l.Kind == LitString {
		return strconv.Quote(l.Text)
	}
	return l.Text
}

type Predicate struct {
	Field string
	Op    Op
	Value Literal
}

func (p Predicate) String() string {
	return fmt.Sprintf("%s %s %s", p.Field, p.Op, p.Value)
}

type SortSpec struct {
	Field string
	Desc  bool
}

func (s SortSpec) String() string {
	if s.Desc {
		return "sort " + s.Field + " desc"
	}
	return "sort " + s.Field + " asc"
}

type CommandKind int

const (
	CmdWhere CommandKind = iota
	CmdSort
	CmdClear
	CmdClearWhere
	CmdClearSort
)

// Command is one parsed line of input.
type Command struct {
	Kind       CommandKind
	Predicates []Predicate
	Sort       SortSpec
}

// Query is the active filter and sort. The zero value matches everything
// in node order.
type Query struct {
	Where []Predicate
	Sort  *SortSpec
}

// Apply folds cmd into q. A where command replaces predicates on the fields
// it names and appends the rest; sort replaces the sort key.
func (q *Query) Apply(cmd Command) {
	switch cmd.Kind {
	case CmdWhere:
		fields := make(map[string]bool, len(cmd.Predicates))
		for _, p := range cmd.Predicates {
			fields[p.Field] = true
		}
		kept := q.Where[:0:0]
		for _, p := range q.Where {
			if !fields[p.Field] {
				kept = append(kept, p)
			}
		}
		q.Where = append(kept, cmd.Predicates...)
	case CmdSort:
		s := cmd.Sort
		q.Sort = &s
	case CmdClear:
		q.Where = nil
		q.Sort = nil
	case CmdClearWhere:
		q.Where = nil
	case CmdClearSort:
		q.Sort = nil
	}
}

// Run parses input and applies it. On error q is unchanged.
func (q *Query) Run(input string) error {
	cmd, err := Parse(input)
	if err != nil {
		return err
	}
	q.Apply(cmd)
	return nil
}

func (q Query) Empty() bool { return len(q.Where) == 0 && q.Sort == nil }

// String renders the active query, e.g. `where version == 70016 | sort pingtime desc`.
func (q Query) String() string {
	var parts []string
	if len(q.Where) > 0 {
		preds := make([]string, len(q.Where))
		for i, p := range q.Where {
			preds[i] = p.String()
		}
		parts = append(parts, "where "+strings.Join(preds, " and "))
	}
	if q.Sort != nil {
		parts = append(parts, q.Sort.String())
	}
	return strings.Join(parts, " | ")
}

// Parse compiles one command.
func Parse(input string) (Command, error) {
	tokens, err := lex(input, false)
	if err != nil {
		return Command{}, err
	}
	p := &parser{tokens: tokens, input: input}
	return p.command()
}

type parser struct {
	tokens []token
	input  string
	i      int
}

func (p *parser) peek() (token, bool) {
	if p.i >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.i], true
}

func (p *parser) next() (token, bool) {
	t, ok := p.peek()
	if ok {
		p.i++
	}
	return t, ok
}

func (p *parser) errEnd(msg string) error {
	return &SyntaxError{Pos: len(p.input), Msg: msg}
}

func (p *parser) command() (Command, error) {
	t, ok := p.next()
	if !ok {
		return Command{}, p.errEnd("expected where, sort or clear")
	}
	if t.kind != tokIdent {
		return Command{}, &SyntaxError{Pos: t.pos, Msg: "expected where, sort or clear"}
	}

	var cmd Command
	var err error
	switch strings.ToLower(t.text) {
	case "where":
		cmd, err = p.where()
	case "sort":
		cmd, err = p.sort()
	case "clear":
		cmd, err = p.clear()
	default:
		return Command{}, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("unknown command %q", t.text)}
	}
	if err != nil {
		return Command{}, err
	}

	if extra, ok := p.peek(); ok {
		return Command{}, &SyntaxError{Pos: extra.pos, Msg: fmt.Sprintf("unexpected %q", extra.text)}
	}
	return cmd, nil
}

func (p *parser) where() (Command, error) {
	cmd := Command{Kind: CmdWhere}
	for {
		pred, err := p.predicate()
		if err != nil {
			return Command{}, err
		}
		cmd.Predicates = append(cmd.Predicates, pred)

		t, ok := p.peek()
		if !ok {
			return cmd, nil
		}
		if t.kind != tokIdent || !strings.EqualFold(t.text, "and") {
			return Command{}, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("expected and, got %q", t.text)}
		}
		p.i++
	}
}

func (p *parser) predicate() (Predicate, error) {
	field, err := p.field()
	if err != nil {
		return Predicate{}, err
	}

	t, ok := p.next()
	if !ok {
		return Predicate{}, p.errEnd("expected operator")
	}
	op, valid := parseOp(t.text)
	if t.kind != tokOp || !valid {
		return Predicate{}, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("expected operator, got %q", t.text)}
	}

	lit, err := p.literal()
	if err != nil {
		return Predicate{}, err
	}
	return Predicate{Field: field, Op: op, Value: lit}, nil
}

func (p *parser) field() (string, error) {
	t, ok := p.next()
	if !ok {
		return "", p.errEnd("expected field")
	}
	if t.kind != tokIdent {
		return "", &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("expected field, got %q", t.text)}
	}
	for _, seg := range strings.Split(t.text, ".") {
		if seg == "" {
			return "", &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("invalid field path %q", t.text)}
		}
	}
	return t.text, nil
}

func (p *parser) literal() (Literal, error) {
	t, ok := p.next()
	if !ok {
		return Literal{}, p.errEnd("expected value")
	}
	switch t.kind {
	case tokString:
		return Literal{Kind: LitString, Text: t.text}, nil
	case tokNumber:
		n, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return Literal{}, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("invalid number %q", t.text)}
		}
		return Literal{Kind: LitNumber, Text: t.text, Num: n}, nil
	case tokIdent:
		switch t.text {
		case "true", "false":
			return Literal{Kind: LitBool, Text: t.text}, nil
		case "null":
			return Literal{Kind: LitNull, Text: t.text}, nil
		}
		// Bare words are strings: where network == ipv4
		return Literal{Kind: LitString, Text: t.text}, nil
	default:
		return Literal{}, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("expected value, got %q", t.text)}
	}
}

func (p *parser) sort() (Command, error) {
	field, err := p.field()
	if err != nil {
		return Command{}, err
	}
	cmd := Command{Kind: CmdSort, Sort: SortSpec{Field: field}}

	t, ok := p.peek()
	if !ok {
		return cmd, nil
	}
	switch strings.ToLower(t.text) {
	case "asc":
	case "desc":
		cmd.Sort.Desc = true
	default:
		return Command{}, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("expected asc or desc, got %q", t.text)}
	}
	p.i++
	return cmd, nil
}

func (p *parser) clear() (Command, error) {
	t, ok := p.peek()
	if !ok {
		return Command{Kind: CmdClear}, nil
	}
	p.i++
	switch strings.ToLower(t.text) {
	case "where":
		return Command{Kind: CmdClearWhere}, nil
	case "sort":
		return Command{Kind: CmdClearSort}, nil
	default:
		return Command{}, &SyntaxError{Pos: t.pos, Msg: fmt.Sprintf("expected where or sort after clear, got %q", t.text)}
	}
}
