package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{``, nil},
		{`   `, nil},
		{`6`, []string{"6"}},
		{`"*", 6`, []string{`"*"`, "6"}},
		{`"a,b", [1, 2], {"k": "v,w"}`, []string{`"a,b"`, "[1, 2]", `{"k": "v,w"}`}},
		{`"esc \" , quote", true`, []string{`"esc \" , quote"`, "true"}},
		{`, 5`, []string{"", "5"}},
		{`1,,3`, []string{"1", "", "3"}},
		{`[[1,2],[3]], null`, []string{"[[1,2],[3]]", "null"}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := SplitArgs(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitArgs_Unbalanced(t *testing.T) {
	tests := []struct {
		in       string
		position int
	}{
		{`"abc`, 1},
		{`1, [2, 3`, 2},
		{`1, 2]`, 2},
		{`{"a": [1}`, 1},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := SplitArgs(tt.in)
			var badArg *BadArgumentError
			require.ErrorAs(t, err, &badArg)
			assert.Equal(t, tt.position, badArg.Position)
		})
	}
}

func TestParseToken_PreservesType(t *testing.T) {
	tests := []struct {
		token string
		want  any
	}{
		{`6`, float64(6)},
		{`"*"`, "*"},
		{`true`, true},
		{`null`, nil},
		{`[1, "a"]`, []any{float64(1), "a"}},
		{`{"rules": ["segwit"]}`, map[string]any{"rules": []any{"segwit"}}},
		{`"6"`, "6"},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			raw, err := ParseToken(1, tt.token)
			require.NoError(t, err)
			var got any
			require.NoError(t, json.Unmarshal(raw, &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseToken_RejectsNonJSON(t *testing.T) {
	for i, token := range []string{`abc`, `'single'`, `1 2`, `{"a":}`, `6]`, `tru`} {
		t.Run(token, func(t *testing.T) {
			_, err := ParseToken(i+1, token)
			var badArg *BadArgumentError
			require.ErrorAs(t, err, &badArg)
			assert.Equal(t, i+1, badArg.Position)
			assert.Equal(t, token, badArg.Token)
			assert.Contains(t, err.Error(), "argument")
		})
	}
}

func TestParseToken_Compacts(t *testing.T) {
	raw, err := ParseToken(1, `[ 1 ,  2 ]`)
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(raw))
}
