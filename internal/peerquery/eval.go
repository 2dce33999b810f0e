package peerquery

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Lookup resolves a dotted path through nested objects. Arrays are never
// indexed: a path that continues past an array does not resolve.
func Lookup(record json.RawMessage, path string) (gjson.Result, bool) {
	cur := gjson.ParseBytes(record)
	for _, seg := range strings.Split(path, ".") {
		if seg == "" || !cur.IsObject() {
			return gjson.Result{}, false
		}
		cur = cur.Get(gjson.Escape(seg))
		if !cur.Exists() {
			return gjson.Result{}, false
		}
	}
	return cur, true
}

// Stringify is the string form used for ==, != and ~=. Arrays and objects
// are compared as their compact JSON text.
func Stringify(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Null:
		return "null"
	case gjson.True:
		return "true"
	case gjson.False:
		return "false"
	case gjson.Number:
		return v.Raw
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, []byte(v.Raw)); err != nil {
			return v.Raw
		}
		return buf.String()
	}
}

// Match reports whether record satisfies p.
func (p Predicate) Match(record json.RawMessage) bool {
	v, ok := Lookup(record, p.Field)
	if !ok {
		switch p.Op {
		case OpEq:
			return p.Value.Kind == LitNull
		case OpNe:
			return p.Value.Kind != LitNull
		default:
			return false
		}
	}

	actual := Stringify(v)
	switch p.Op {
	case OpContains:
		return strings.Contains(actual, p.Value.Text)
	case OpEq:
		return equal(v, actual, p.Value)
	case OpNe:
		return !equal(v, actual, p.Value)
	}

	cmp := compareOrdered(actual, p.Value.Text)
	switch p.Op {
	case OpGt:
		return cmp > 0
	case OpGe:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	}
	return false
}

func equal(v gjson.Result, actual string, lit Literal) bool {
	if v.Type == gjson.Number && lit.Kind == LitNumber {
		return v.Float() == lit.Num
	}
	return actual == lit.Text
}

// compareOrdered compares numerically when both sides parse as numbers,
// otherwise lexicographically.
func compareOrdered(a, b string) int {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

// Matches reports whether record satisfies every predicate of q.
func (q Query) Matches(record json.RawMessage) bool {
	for _, p := range q.Where {
		if !p.Match(record) {
			return false
		}
	}
	return true
}

// Evaluate returns the indices of records that match q, in sort order.
func (q Query) Evaluate(records []json.RawMessage) []int {
	out := make([]int, 0, len(records))
	for i, r := range records {
		if q.Matches(r) {
			out = append(out, i)
		}
	}
	if q.Sort == nil {
		return out
	}

	field, desc := q.Sort.Field, q.Sort.Desc
	sort.SliceStable(out, func(i, j int) bool {
		c := compareRecords(records[out[i]], records[out[j]], field)
		if desc {
			return c > 0
		}
		return c < 0
	})
	return out
}

// compareRecords orders by field; a missing field is the minimum.
func compareRecords(a, b json.RawMessage, field string) int {
	va, okA := Lookup(a, field)
	vb, okB := Lookup(b, field)
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return -1
	case !okB:
		return 1
	}

	if va.Type == gjson.Number && vb.Type == gjson.Number {
		fa, fb := va.Float(), vb.Float()
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(Stringify(va), Stringify(vb))
}
