package poller

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"testing"

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

func TestExtractPoolName(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want string
	}{
		{"slash tag", append([]byte{0x03, 0x40, 0xd1, 0x0c}, []byte("/Foundry USA Pool/\x00\x01")...), "Foundry USA Pool"},
		{"last tag wins", []byte("\x03/ViaBTC/\x01/Mined by abc/"), "Mined by abc"},
		{"non printable tag skipped", []byte("/ok/\x01/\x02bad/"), "ok"},
		{"longest printable run", []byte("\x03\x40\xd1Powered by Luxor Tech\x00ab"), "Powered by Luxor Tech"},
		{"too short", []byte("\x03\x40abc\x00"), ""},
		{"empty", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractPoolName(hex.EncodeToString(tt.raw)))
		})
	}

	assert.Equal(t, "", ExtractPoolName("zz"))
}

// chainNode serves a synthetic chain where block h has hash "hash-h" and a
// coinbase tagged "/Pool h/".
type chainNode struct {
	mu          sync.Mutex
	calls       map[string]int
	failing     map[string]bool
	failHeights map[int64]bool
	hashes      map[int64]string // replaced blocks
}

func newChainNode() *chainNode {
	return &chainNode{
		calls:       map[string]int{},
		failing:     map[string]bool{},
		failHeights: map[int64]bool{},
		hashes:      map[int64]string{},
	}
}

func (c *chainNode) Call(_ context.Context, _ rpc.Scope, method string, params []any) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[method]++
	if c.failing[method] {
		return nil, &rpc.TransportError{Method: method, Msg: "refused"}
	}

	switch method {
	case "getblockchaininfo":
		return json.RawMessage(`{"chain":"main","blocks":100,"bestblockhash":"hash-100","warnings":""}`), nil
	case "getnetworkinfo":
		return json.RawMessage(`{"version":270000,"subversion":"/Satoshi:27.0.0/","connections":10}`), nil
	case "getmempoolinfo":
		return json.RawMessage(`{"size":5,"bytes":1000}`), nil
	case "getpeerinfo":
		return json.RawMessage(`[{"id":0},{"id":1}]`), nil
	case "getnettotals":
		return json.RawMessage(`{"totalbytesrecv":10,"totalbytessent":20}`), nil
	case "getmininginfo":
		return json.RawMessage(`{"blocks":100,"networkhashps":6.5e20}`), nil
	case "getchaintips":
		return json.RawMessage(`[{"height":100,"hash":"hash-100","branchlen":0,"status":"active"}]`), nil
	case "getblockstats":
		h := params[0].(int64)
		if c.failHeights[h] {
			return nil, &rpc.Error{Code: -1, Message: "Block not available"}
		}
		hash, ok := c.hashes[h]
		if !ok {
			hash = fmt.Sprintf("hash-%d", h)
		}
		return json.RawMessage(fmt.Sprintf(`{"height":%d,"blockhash":%q,"txs":%d}`, h, hash, h*10)), nil
	case "getblock":
		return json.RawMessage(fmt.Sprintf(`{"hash":%q,"tx":["cb-%s"]}`, params[0], params[0])), nil
	case "getrawtransaction":
		hash := params[2].(string)
		tag := hex.EncodeToString([]byte("\x03/Pool " + hash[len("hash-"):] + "/"))
		return json.RawMessage(`{"vin":[{"coinbase":"` + tag + `"}]}`), nil
	}
	return nil, &rpc.Error{Code: rpc.CodeMethodNotFound, Message: "Method not found"}
}

func (c *chainNode) count(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

func (c *chainNode) set(fn func(c *chainNode)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c)
}

func TestCore(t *testing.T) {
	node := newChainNode()
	node.failing["getnettotals"] = true
	p := New(node, Options{RecentBlocks: 3, Rate: 1000})

	core := p.Core(context.Background())
	require.NoError(t, core.BlockchainErr)
	assert.Equal(t, "hash-100", core.Blockchain.BestBlockHash)
	assert.Len(t, core.Peers, 2)
	assert.Error(t, core.NetTotalsErr, "one failing call")
	assert.NoError(t, core.MempoolErr, "does not blank the others")
	assert.False(t, core.Failed())
	assert.Error(t, core.FirstErr())
}

func TestCore_AllFailed(t *testing.T) {
	node := newChainNode()
	for _, m := range []string{"getblockchaininfo", "getnetworkinfo", "getmempoolinfo", "getpeerinfo", "getnettotals"} {
		node.failing[m] = true
	}
	core := New(node, Options{Rate: 1000}).Core(context.Background())
	assert.True(t, core.Failed())
}

func TestSlow(t *testing.T) {
	node := newChainNode()
	slow := New(node, Options{Rate: 1000}).Slow(context.Background())
	require.NoError(t, slow.MiningErr)
	require.NoError(t, slow.TipsErr)
	require.Len(t, slow.Tips, 1)
	assert.Equal(t, "Pool 100", slow.Tips[0].Pool)
	assert.Equal(t, "active", slow.Tips[0].Status)
}

func heights(blocks []RecentBlock) []int64 {
	out := make([]int64, len(blocks))
	for i, b := range blocks {
		out[i] = b.Height
	}
	return out
}

func TestRecentBlocks_Incremental(t *testing.T) {
	node := newChainNode()
	p := New(node, Options{RecentBlocks: 3, Rate: 1000})
	ctx := context.Background()

	blocks, err := p.RecentBlocks(ctx, nil, 100, "hash-100")
	require.NoError(t, err)
	assert.Equal(t, []int64{98, 99, 100}, heights(blocks))
	assert.Equal(t, "Pool 99", blocks[1].Pool)
	assert.Equal(t, int64(990), blocks[1].Txs)
	assert.Equal(t, 3, node.count("getblockstats"))

	same, err := p.RecentBlocks(ctx, blocks, 100, "hash-100")
	require.NoError(t, err)
	assert.Equal(t, blocks, same)
	assert.Equal(t, 3, node.count("getblockstats"), "no refetch at same tip")

	blocks, err = p.RecentBlocks(ctx, blocks, 101, "hash-101")
	require.NoError(t, err)
	assert.Equal(t, []int64{99, 100, 101}, heights(blocks))
	assert.Equal(t, 4, node.count("getblockstats"), "only the new height")
	assert.Equal(t, 4, node.count("getblock"), "pool names of kept blocks are cached")

	blocks, err = p.RecentBlocks(ctx, blocks, 200, "hash-200")
	require.NoError(t, err)
	assert.Equal(t, []int64{198, 199, 200}, heights(blocks), "jump rebuilds the window")

	blocks, err = p.RecentBlocks(ctx, blocks, 150, "hash-150")
	require.NoError(t, err)
	assert.Equal(t, []int64{148, 149, 150}, heights(blocks), "reorg to a lower tip rebuilds")
}

func TestRecentBlocks_RefillsFailedHeight(t *testing.T) {
	node := newChainNode()
	node.failHeights[99] = true
	p := New(node, Options{RecentBlocks: 3, Rate: 1000})
	ctx := context.Background()

	blocks, err := p.RecentBlocks(ctx, nil, 100, "hash-100")
	require.NoError(t, err)
	assert.Equal(t, []int64{98, 100}, heights(blocks))
	assert.True(t, p.Stale(blocks, 100, "hash-100"), "window with a gap is stale")

	node.set(func(c *chainNode) { delete(c.failHeights, 99) })
	blocks, err = p.RecentBlocks(ctx, blocks, 100, "hash-100")
	require.NoError(t, err)
	assert.Equal(t, []int64{98, 99, 100}, heights(blocks))
	assert.Equal(t, 4, node.count("getblockstats"), "only the missing height is fetched")
	assert.False(t, p.Stale(blocks, 100, "hash-100"))
}

func TestRecentBlocks_SameHeightReorg(t *testing.T) {
	node := newChainNode()
	p := New(node, Options{RecentBlocks: 3, Rate: 1000})
	ctx := context.Background()

	blocks, err := p.RecentBlocks(ctx, nil, 100, "hash-100")
	require.NoError(t, err)

	node.set(func(c *chainNode) {
		c.hashes[99] = "hash-99b"
		c.hashes[100] = "hash-100b"
	})
	assert.True(t, p.Stale(blocks, 100, "hash-100b"))

	blocks, err = p.RecentBlocks(ctx, blocks, 100, "hash-100b")
	require.NoError(t, err)
	require.Equal(t, []int64{98, 99, 100}, heights(blocks))
	assert.Equal(t, "hash-99b", blocks[1].Hash)
	assert.Equal(t, "hash-100b", blocks[2].Hash)
	assert.Equal(t, "Pool 100b", blocks[2].Pool)
	assert.Equal(t, 6, node.count("getblockstats"), "window rebuilt")
}

func TestStale(t *testing.T) {
	p := New(newChainNode(), Options{RecentBlocks: 3, Rate: 1000})
	window := []RecentBlock{
		{BlockStats: rpc.BlockStats{Height: 98, Hash: "hash-98"}},
		{BlockStats: rpc.BlockStats{Height: 99, Hash: "hash-99"}},
		{BlockStats: rpc.BlockStats{Height: 100, Hash: "hash-100"}},
	}

	tests := []struct {
		name   string
		have   []RecentBlock
		height int64
		hash   string
		want   bool
	}{
		{"empty", nil, 100, "hash-100", true},
		{"current", window, 100, "hash-100", false},
		{"hash unknown", window, 100, "", false},
		{"tip moved", window, 101, "hash-101", true},
		{"tip replaced", window, 100, "hash-100b", true},
		{"gap", []RecentBlock{window[0], window[2]}, 100, "hash-100", true},
		{"short window", window[1:], 100, "hash-100", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Stale(tt.have, tt.height, tt.hash))
		})
	}
}

func TestRecentBlocks_NearGenesis(t *testing.T) {
	p := New(newChainNode(), Options{RecentBlocks: 5, Rate: 1000})
	blocks, err := p.RecentBlocks(context.Background(), nil, 1, "")
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1}, heights(blocks))
}

func TestRecentBlocks_Cancelled(t *testing.T) {
	p := New(newChainNode(), Options{RecentBlocks: 3, Rate: 1000})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.RecentBlocks(ctx, nil, 100, "hash-100")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSlowSchedule(t *testing.T) {
	var s SlowSchedule
	assert.True(t, s.Due(false), "first poll always refreshes")
	s.Refreshed()

	for i := 0; i < SlowRefreshPolls; i++ {
		assert.False(t, s.Due(false))
		s.Tick()
	}
	assert.True(t, s.Due(false))
	s.Refreshed()
	assert.True(t, s.Due(true), "tip change forces refresh")
}
