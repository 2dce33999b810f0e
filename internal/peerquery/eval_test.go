package peerquery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	peerA = `{"id":1,"addr":"10.0.0.1:8333","version":70016,"subver":"/Satoshi:27.0.0/","inbound":false,"minping":0.012,"servicesnames":["NETWORK","WITNESS"],"bytessent_per_msg":{"addrv2":300,"ping":64},"relaytxes":null}`
	peerB = `{"id":2,"addr":"10.0.0.2:8333","version":70015,"subver":"/btcd:0.24.0/","inbound":true,"minping":0.2,"servicesnames":["NETWORK"],"bytessent_per_msg":{"ping":32}}`
	peerC = `{"id":3,"addr":"[::1]:8333","version":70016,"subver":"/Satoshi:26.1.0/","inbound":true,"minping":"0.05","bytessent_per_msg":{"addrv2":1200}}`
)

func evaluate(t *testing.T, query string, docs ...string) []int {
	t.Helper()
	var q Query
	require.NoError(t, q.Run(query))
	return q.Evaluate(peers(t, docs...))
}

func TestEvaluate_RoundTrip(t *testing.T) {
	got := evaluate(t, `where version == 70016 and subver ~= "Satoshi"`, peerA, peerB)
	assert.Equal(t, []int{0}, got)
}

func TestEvaluate_Predicates(t *testing.T) {
	tests := []struct {
		query string
		want  []int
	}{
		{`where inbound == true`, []int{1, 2}},
		{`where inbound != true`, []int{0}},
		{`where version > 70015`, []int{0, 2}},
		{`where version <= 70015`, []int{1}},
		{`where minping < 0.1`, []int{0, 2}},
		{`where subver ~= "satoshi"`, []int{}},
		{`where addr ~= "[::1]"`, []int{2}},
		{`where servicesnames ~= "WITNESS"`, []int{0}},
		{`where servicesnames == ["NETWORK"]`, nil},
		{`where bytessent_per_msg.addrv2 >= 300`, []int{0, 2}},
		{`where bytessent_per_msg.addrv2 == null`, []int{1}},
		{`where bytessent_per_msg.addrv2 != null`, []int{0, 2}},
		{`where relaytxes == null`, []int{0, 1, 2}},
		{`where relaytxes != 1`, []int{0, 1, 2}},
		{`where nosuchfield > 0`, []int{}},
		{`where nosuchfield ~= ""`, []int{}},
		{`where servicesnames.0 == "NETWORK"`, []int{}},
		{`where subver > "/Satoshi:26"`, []int{0, 1, 2}},
		{`where subver < "/Satoshi:27"`, []int{2}},
		{`where version == 70016.0`, []int{0, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			if tt.want == nil {
				_, err := Parse(tt.query)
				assert.Error(t, err)
				return
			}
			assert.Equal(t, tt.want, evaluate(t, tt.query, peerA, peerB, peerC))
		})
	}
}

func TestEvaluate_SortNestedDescMissingLast(t *testing.T) {
	got := evaluate(t, `sort bytessent_per_msg.addrv2 desc`, peerA, peerB, peerC)
	assert.Equal(t, []int{2, 0, 1}, got)

	got = evaluate(t, `sort bytessent_per_msg.addrv2`, peerA, peerB, peerC)
	assert.Equal(t, []int{1, 0, 2}, got)
}

func TestEvaluate_SortStableAndMixed(t *testing.T) {
	got := evaluate(t, `sort version`, peerA, peerB, peerC)
	assert.Equal(t, []int{1, 0, 2}, got, "equal keys keep node order")

	got = evaluate(t, `sort subver desc`, peerA, peerB, peerC)
	assert.Equal(t, []int{1, 0, 2}, got, "byte order puts lowercase after uppercase")
}

func TestEvaluate_WhereThenSort(t *testing.T) {
	var q Query
	require.NoError(t, q.Run(`where inbound == true`))
	require.NoError(t, q.Run(`sort id desc`))
	assert.Equal(t, []int{2, 1}, q.Evaluate(peers(t, peerA, peerB, peerC)))
}

func TestEvaluate_EmptyQuery(t *testing.T) {
	var q Query
	assert.Equal(t, []int{0, 1}, q.Evaluate(peers(t, peerA, peerB)))
	assert.Empty(t, q.Evaluate(nil))
}

func TestLookup(t *testing.T) {
	rec := peers(t, peerA)[0]

	v, ok := Lookup(rec, "bytessent_per_msg.ping")
	require.True(t, ok)
	assert.Equal(t, "64", Stringify(v))

	v, ok = Lookup(rec, "servicesnames")
	require.True(t, ok)
	assert.Equal(t, `["NETWORK","WITNESS"]`, Stringify(v))

	_, ok = Lookup(rec, "servicesnames.0")
	assert.False(t, ok)
	_, ok = Lookup(rec, "subver.length")
	assert.False(t, ok)
}
