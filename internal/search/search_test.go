package search

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studiowebux/bitcoin-tui/internal/rpc"
)

func TestMain(m *testing.M) {
	log.Logger = zerolog.Nop()
	os.Exit(m.Run())
}

const (
	mempoolTx   = "aa00000000000000000000000000000000000000000000000000000000000001"
	confirmedTx = "bb00000000000000000000000000000000000000000000000000000000000002"
	blockHash   = "0000000000000000000200000000000000000000000000000000000000000000"
)

// fakeNode answers by method and first param; anything unknown is -5.
type fakeNode struct {
	replies map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeNode) Call(_ context.Context, _ rpc.Scope, method string, params []any) (json.RawMessage, error) {
	key := method
	if len(params) > 0 {
		key = fmt.Sprintf("%s %v", method, params[0])
	}
	f.calls = append(f.calls, key)
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	if r, ok := f.replies[key]; ok {
		return json.RawMessage(r), nil
	}
	if r, ok := f.replies[method]; ok {
		return json.RawMessage(r), nil
	}
	return nil, &rpc.Error{Code: rpc.CodeInvalidAddressOrKey, Message: "No such mempool or blockchain transaction"}
}

func (f *fakeNode) count(key string) int {
	n := 0
	for _, c := range f.calls {
		if c == key {
			n++
		}
	}
	return n
}

func newFakeNode() *fakeNode {
	return &fakeNode{
		replies: map[string]string{
			"getmempoolentry " + mempoolTx:   `{"vsize":141,"weight":561,"time":1700000000,"ancestorcount":1,"descendantcount":3,"fees":{"base":0.00000705,"modified":0.00000705}}`,
			"getrawtransaction " + mempoolTx: `{"txid":"` + mempoolTx + `","vsize":141}`,
			"getrawtransaction " + confirmedTx: `{"txid":"` + confirmedTx + `","vsize":200,"weight":800,"blockhash":"` + blockHash +
				`","confirmations":6,"blocktime":1700000000}`,
			"getblockheader " + blockHash: `{"hash":"` + blockHash + `","height":840000,"time":1700000000}`,
			"getblockcount":               `840005`,
		},
		errs: map[string]error{},
	}
}

func newTestSearcher(node *fakeNode) *Searcher {
	s := NewSearcher(node)
	s.now = func() time.Time { return time.Unix(1700003600, 0) }
	return s
}

func TestCandidates(t *testing.T) {
	assert.Nil(t, Candidates("   "))
	assert.Equal(t, []string{"abc"}, Candidates(" abc "))

	got := Candidates(mempoolTx)
	require.Len(t, got, 2)
	assert.Equal(t, mempoolTx, got[0])
	assert.True(t, strings.HasPrefix(got[1], "01"))
	assert.True(t, strings.HasSuffix(got[1], "aa"))

	palindrome := strings.Repeat("ab", 32)
	reversedPal, ok := reverseHex32(palindrome)
	require.True(t, ok)
	assert.Equal(t, strings.Repeat("ab", 32), reversedPal)
	assert.Len(t, Candidates(palindrome), 1)

	assert.Len(t, Candidates(strings.Repeat("zz", 32)), 1, "non-hex has no reversed form")
}

func TestSearch_Mempool(t *testing.T) {
	node := newFakeNode()
	res, err := newTestSearcher(node).Search(context.Background(), mempoolTx)
	require.NoError(t, err)

	assert.Equal(t, Mempool, res.Kind)
	assert.Equal(t, mempoolTx, res.TxID)
	assert.GreaterOrEqual(t, res.Fee, 0.0)
	assert.InDelta(t, 0.00000705, res.Fee, 1e-12)
	assert.InDelta(t, 5.0, res.FeeRate, 1e-9)
	assert.Equal(t, int64(141), res.VSize)
	assert.Equal(t, int64(1), res.AncestorCount)
	assert.Equal(t, int64(3), res.DescendantCount)
	assert.NotEmpty(t, res.Decoded)
}

func TestSearch_Confirmed(t *testing.T) {
	node := newFakeNode()
	s := newTestSearcher(node)

	res, err := s.Search(context.Background(), "  "+confirmedTx+"\n")
	require.NoError(t, err)

	assert.Equal(t, Confirmed, res.Kind)
	assert.Equal(t, int64(6), res.Confirmations)
	assert.GreaterOrEqual(t, res.Confirmations, int64(1))
	assert.Equal(t, int64(840000), res.BlockHeight)
	assert.Equal(t, blockHash, res.BlockHash)
	assert.Equal(t, time.Hour, res.Age)

	_, err = s.Search(context.Background(), confirmedTx)
	require.NoError(t, err)
	assert.Equal(t, 1, node.count("getblockheader "+blockHash), "header is cached")
}

func TestSearch_ReversedCandidate(t *testing.T) {
	node := newFakeNode()
	reversed, ok := reverseHex32(confirmedTx)
	require.True(t, ok)

	res, err := newTestSearcher(node).Search(context.Background(), reversed)
	require.NoError(t, err)
	assert.Equal(t, Confirmed, res.Kind)
	assert.Equal(t, confirmedTx, res.TxID)
	assert.Equal(t, reversed, res.Query)
}

func TestSearch_NotFound(t *testing.T) {
	node := newFakeNode()
	res, err := newTestSearcher(node).Search(context.Background(), strings.Repeat("cd", 32))
	require.NoError(t, err)
	assert.Equal(t, NotFound, res.Kind)
	assert.Equal(t, "not found", res.Kind.String())
}

func TestSearch_Errors(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		_, err := newTestSearcher(newFakeNode()).Search(context.Background(), "")
		assert.ErrorIs(t, err, ErrEmptyQuery)
	})

	t.Run("transport error is not NotFound", func(t *testing.T) {
		node := newFakeNode()
		node.errs["getmempoolentry "+confirmedTx] = &rpc.TransportError{Method: "getmempoolentry", Msg: "refused"}
		_, err := newTestSearcher(node).Search(context.Background(), confirmedTx)
		require.Error(t, err)
		assert.True(t, rpc.IsTransport(err))
	})

	t.Run("other rpc error", func(t *testing.T) {
		node := newFakeNode()
		node.errs["getmempoolentry xyz"] = &rpc.Error{Code: -8, Message: "parameter 1 must be hexadecimal string"}
		_, err := newTestSearcher(node).Search(context.Background(), "xyz")
		code, ok := rpc.CodeOf(err)
		require.True(t, ok)
		assert.Equal(t, -8, code)
	})
}

func TestSearch_MempoolEvictedBetweenLookups(t *testing.T) {
	node := newFakeNode()
	txid := strings.Repeat("ef", 32)
	node.replies["getrawtransaction "+txid] = `{"txid":"` + txid + `"}`

	res, err := newTestSearcher(node).Search(context.Background(), txid)
	require.NoError(t, err)
	assert.Equal(t, NotFound, res.Kind)
}
