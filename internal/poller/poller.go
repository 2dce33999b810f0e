// Package poller fetches the dashboard's telemetry classes: core (every
// tick), slow (on tip change or every few ticks) and recent blocks.
package poller

import (
	"context"
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"
	"go.uber.org/ratelimit"
	"golang.org/x/sync/errgroup"

	"github.com/studiowebux/bitcoin-tui/internal/rpc"
)

// Class names one independently scheduled refresh.
type Class string

const (
	ClassCore   Class = "core"
	ClassSlow   Class = "slow"
	ClassBlocks Class = "blocks"
)

// SlowRefreshPolls is how many core polls may pass before the slow class
// is refreshed without a tip change.
const SlowRefreshPolls = 6

// Core is one core poll. Each field carries its own error so one failing
// call does not blank the others.
type Core struct {
	Blockchain    rpc.BlockchainInfo
	BlockchainErr error
	Network       rpc.NetworkInfo
	NetworkErr    error
	Mempool       rpc.MempoolInfo
	MempoolErr    error
	Peers         []json.RawMessage
	PeersErr      error
	NetTotals     rpc.NetTotals
	NetTotalsErr  error
	Elapsed       time.Duration
}

// Failed reports whether every call failed, i.e. the node is unreachable.
func (c Core) Failed() bool {
	return c.BlockchainErr != nil && c.NetworkErr != nil && c.MempoolErr != nil &&
		c.PeersErr != nil && c.NetTotalsErr != nil
}

// FirstErr returns the first per-field error, if any.
func (c Core) FirstErr() error {
	for _, err := range []error{c.BlockchainErr, c.NetworkErr, c.MempoolErr, c.PeersErr, c.NetTotalsErr} {
		if err != nil {
			return err
		}
	}
	return nil
}

// Tip is a chain tip annotated with the miner tag of its block.
type Tip struct {
	rpc.ChainTip
	Pool string
}

type Slow struct {
	Mining    rpc.MiningInfo
	MiningErr error
	Tips      []Tip
	TipsErr   error
}

// RecentBlock is getblockstats plus the miner tag.
type RecentBlock struct {
	rpc.BlockStats
	Pool string
}

type Options struct {
	RecentBlocks int // depth of the recent block window
	Rate         int // block backfill calls per second
}

type Poller struct {
	caller  rpc.Caller
	depth   int
	limiter ratelimit.Limiter
	pools   *lru.Cache
}

func New(caller rpc.Caller, opts Options) *Poller {
	if opts.RecentBlocks <= 0 {
		opts.RecentBlocks = 72
	}
	if opts.Rate <= 0 {
		opts.Rate = 50
	}
	pools, _ := lru.New(opts.RecentBlocks * 4)
	return &Poller{
		caller:  caller,
		depth:   opts.RecentBlocks,
		limiter: ratelimit.New(opts.Rate),
		pools:   pools,
	}
}

// Core fetches the five core calls concurrently.
func (p *Poller) Core(ctx context.Context) Core {
	start := time.Now()
	var out Core
	var g errgroup.Group

	g.Go(func() error {
		out.Blockchain, out.BlockchainErr = rpc.GetBlockchainInfo(ctx, p.caller)
		return nil
	})
	g.Go(func() error {
		out.Network, out.NetworkErr = rpc.GetNetworkInfo(ctx, p.caller)
		return nil
	})
	g.Go(func() error {
		out.Mempool, out.MempoolErr = rpc.GetMempoolInfo(ctx, p.caller)
		return nil
	})
	g.Go(func() error {
		out.Peers, out.PeersErr = rpc.GetPeerInfo(ctx, p.caller)
		return nil
	})
	g.Go(func() error {
		out.NetTotals, out.NetTotalsErr = rpc.GetNetTotals(ctx, p.caller)
		return nil
	})
	_ = g.Wait()

	out.Elapsed = time.Since(start)
	log.Debug().Dur("elapsed", out.Elapsed).Err(out.FirstErr()).Msg("core poll complete")
	return out
}

// Slow fetches mining info and chain tips; tips are tagged with pool names.
func (p *Poller) Slow(ctx context.Context) Slow {
	var out Slow
	var tips []rpc.ChainTip
	var g errgroup.Group

	g.Go(func() error {
		out.Mining, out.MiningErr = rpc.GetMiningInfo(ctx, p.caller)
		return nil
	})
	g.Go(func() error {
		tips, out.TipsErr = rpc.GetChainTips(ctx, p.caller)
		return nil
	})
	_ = g.Wait()

	for _, t := range tips {
		out.Tips = append(out.Tips, Tip{ChainTip: t, Pool: p.PoolName(ctx, t.Hash)})
	}
	return out
}

func (p *Poller) windowStart(tipHeight int64) int64 {
	return max(0, tipHeight-int64(p.depth)+1)
}

// Stale reports whether have is not the full window ending at the tip: a
// height is missing, the tip moved, or the block at the tip height was
// replaced. An empty tipHash skips the hash check.
func (p *Poller) Stale(have []RecentBlock, tipHeight int64, tipHash string) bool {
	n := len(have)
	if n == 0 {
		return true
	}
	last := have[n-1]
	if last.Height != tipHeight || (tipHash != "" && last.Hash != tipHash) {
		return true
	}
	start := p.windowStart(tipHeight)
	return have[0].Height != start || int64(n) != tipHeight-start+1
}

// RecentBlocks brings have up to the window ending at tipHeight. Heights
// already held are reused and only missing ones are fetched, so a height
// whose getblockstats failed is retried on the next call. When the tip
// moved below a held block or was replaced at a held height, every held
// block is dropped and the window is rebuilt. The result is ordered by
// height.
func (p *Poller) RecentBlocks(ctx context.Context, have []RecentBlock, tipHeight int64, tipHash string) ([]RecentBlock, error) {
	if !p.Stale(have, tipHeight, tipHash) {
		return have, nil
	}

	held := make(map[int64]RecentBlock, len(have))
	for _, b := range have {
		if b.Height > tipHeight || (b.Height == tipHeight && tipHash != "" && b.Hash != tipHash) {
			log.Debug().Int64("height", b.Height).Int64("tip", tipHeight).Msg("chain reorganised, rebuilding recent blocks")
			clear(held)
			break
		}
		held[b.Height] = b
	}

	var out []RecentBlock
	for h := p.windowStart(tipHeight); h <= tipHeight; h++ {
		if b, ok := held[h]; ok {
			out = append(out, b)
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p.limiter.Take()
		stats, err := rpc.GetBlockStats(ctx, p.caller, h)
		if err != nil {
			log.Debug().Err(err).Int64("height", h).Msg("getblockstats failed")
			continue
		}
		out = append(out, RecentBlock{BlockStats: stats, Pool: p.PoolName(ctx, stats.Hash)})
	}
	return out, nil
}

// PoolName returns the cached or freshly decoded miner tag of a block.
func (p *Poller) PoolName(ctx context.Context, blockHash string) string {
	if blockHash == "" {
		return ""
	}
	if v, ok := p.pools.Get(blockHash); ok {
		return v.(string)
	}

	block, err := rpc.GetBlock(ctx, p.caller, blockHash)
	if err != nil || len(block.Tx) == 0 {
		return ""
	}
	tx, err := rpc.GetRawTransaction(ctx, p.caller, block.Tx[0], blockHash)
	if err != nil || len(tx.Vin) == 0 {
		return ""
	}
	name := ExtractPoolName(tx.Vin[0].Coinbase)
	p.pools.Add(blockHash, name)
	return name
}

// Block fetches getblock <hash> 1 for the block detail popup.
func (p *Poller) Block(ctx context.Context, hash string) (json.RawMessage, error) {
	return p.caller.Call(ctx, rpc.General(), "getblock", []any{hash, 1})
}

// SlowSchedule decides when the slow class is due.
type SlowSchedule struct {
	sinceRefresh int
	primed       bool
}

// Due reports whether a slow refresh should follow this core poll.
func (s *SlowSchedule) Due(tipChanged bool) bool {
	return !s.primed || tipChanged || s.sinceRefresh >= SlowRefreshPolls
}

// Tick records one core poll that did not refresh the slow class.
func (s *SlowSchedule) Tick() { s.sinceRefresh++ }

// Refreshed records a completed slow refresh.
func (s *SlowSchedule) Refreshed() {
	s.primed = true
	s.sinceRefresh = 0
}
