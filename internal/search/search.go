// Package search looks a transaction up in the mempool, then in the chain.
package search

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"

	"github.com/studiowebux/bitcoin-tui/internal/rpc"
)

type Kind int

const (
	NotFound Kind = iota
	Mempool
	Confirmed
)

func (k Kind) String() string {
	switch k {
	case Mempool:
		return "mempool"
	case Confirmed:
		return "confirmed"
	default:
		return "not found"
	}
}

// Result is one finished search. Only the fields of its Kind are set.
type Result struct {
	Kind  Kind
	Query string
	TxID  string

	// Mempool
	Fee             float64 // BTC
	ModifiedFee     float64 // BTC
	FeeRate         float64 // sat/vB
	VSize           int64
	Weight          int64
	AncestorCount   int64
	DescendantCount int64
	Entered         time.Time

	// Confirmed
	Confirmations int64
	BlockHeight   int64
	BlockHash     string
	BlockTime     time.Time
	Age           time.Duration

	// Decoded is getrawtransaction verbose output when the node could
	// provide it.
	Decoded json.RawMessage
}

var ErrEmptyQuery = errors.New("enter a txid to search")

// Candidates returns the trimmed txid and, for 64 hex chars, its
// byte-reversed form.
func Candidates(query string) []string {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil
	}
	out := []string{trimmed}
	if reversed, ok := reverseHex32(trimmed); ok && reversed != trimmed {
		out = append(out, reversed)
	}
	return out
}

func reverseHex32(s string) (string, bool) {
	if len(s) != 64 {
		return "", false
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return "", false
	}
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return hex.EncodeToString(b), true
}

// Searcher caches block headers by hash; they never change.
type Searcher struct {
	caller  rpc.Caller
	headers *lru.Cache
	now     func() time.Time
}

func NewSearcher(caller rpc.Caller) *Searcher {
	headers, _ := lru.New(256)
	return &Searcher{caller: caller, headers: headers, now: time.Now}
}

// Search tries each candidate in the mempool and then the chain. A -5 reply
// means "not here"; any other error ends the search.
func (s *Searcher) Search(ctx context.Context, query string) (Result, error) {
	candidates := Candidates(query)
	if len(candidates) == 0 {
		return Result{}, ErrEmptyQuery
	}

	for _, txid := range candidates {
		res, found, err := s.inMempool(ctx, txid)
		if err != nil {
			return Result{}, err
		}
		if found {
			res.Query = query
			log.Debug().Str("txid", txid).Msg("found in mempool")
			return res, nil
		}

		res, found, err = s.inChain(ctx, txid)
		if err != nil {
			return Result{}, err
		}
		if found {
			res.Query = query
			log.Debug().Str("txid", txid).Int64("height", res.BlockHeight).Msg("found confirmed")
			return res, nil
		}
	}

	log.Debug().Str("query", query).Msg("tx not found")
	return Result{Kind: NotFound, Query: query}, nil
}

func (s *Searcher) inMempool(ctx context.Context, txid string) (Result, bool, error) {
	entry, err := rpc.GetMempoolEntry(ctx, s.caller, txid)
	if rpc.IsNotFound(err) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, err
	}

	res := Result{
		Kind:            Mempool,
		TxID:            txid,
		Fee:             entry.Fees.Base.Float(),
		ModifiedFee:     entry.Fees.Modified.Float(),
		VSize:           entry.VSize,
		Weight:          entry.Weight,
		AncestorCount:   entry.AncestorCount,
		DescendantCount: entry.DescendantCount,
	}
	if entry.Time > 0 {
		res.Entered = time.Unix(entry.Time, 0)
	}
	if entry.VSize > 0 {
		res.FeeRate = res.Fee * 1e8 / float64(entry.VSize)
	}
	if raw, err := s.caller.Call(ctx, rpc.General(), "getrawtransaction", []any{txid, true}); err == nil {
		res.Decoded = raw
	}
	return res, true, nil
}

func (s *Searcher) inChain(ctx context.Context, txid string) (Result, bool, error) {
	raw, err := s.caller.Call(ctx, rpc.General(), "getrawtransaction", []any{txid, true})
	if rpc.IsNotFound(err) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, err
	}

	var tx rpc.RawTransaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return Result{}, false, fmt.Errorf("failed to parse getrawtransaction: %w", err)
	}
	if tx.BlockHash == "" {
		// Left the mempool between the two lookups without being mined.
		return Result{}, false, nil
	}

	header, err := s.header(ctx, tx.BlockHash)
	if err != nil {
		return Result{}, false, err
	}
	tip, err := rpc.GetBlockCount(ctx, s.caller)
	if err != nil {
		return Result{}, false, err
	}

	blockTime := time.Unix(header.Time, 0)
	confirmations := tip - header.Height + 1
	if confirmations < 1 {
		confirmations = 1
	}
	return Result{
		Kind:          Confirmed,
		TxID:          txid,
		VSize:         tx.VSize,
		Weight:        tx.Weight,
		Confirmations: confirmations,
		BlockHeight:   header.Height,
		BlockHash:     tx.BlockHash,
		BlockTime:     blockTime,
		Age:           s.now().Sub(blockTime),
		Decoded:       raw,
	}, true, nil
}

func (s *Searcher) header(ctx context.Context, hash string) (rpc.BlockHeader, error) {
	if v, ok := s.headers.Get(hash); ok {
		return v.(rpc.BlockHeader), nil
	}
	header, err := rpc.GetBlockHeader(ctx, s.caller, hash)
	if err != nil {
		return rpc.BlockHeader{}, err
	}
	s.headers.Add(hash, header)
	return header, nil
}
