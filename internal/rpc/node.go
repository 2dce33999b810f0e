package rpc

import (
	"context"
	"encoding/json"
	"fmt"
)

// Fetch calls method and decodes the result into T.
func Fetch[T any](ctx context.Context, c Caller, scope Scope, method string, params ...any) (T, error) {
	var out T
	raw, err := c.Call(ctx, scope, method, params)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("failed to parse %s: %w", method, err)
	}
	return out, nil
}

func GetBlockchainInfo(ctx context.Context, c Caller) (BlockchainInfo, error) {
	return Fetch[BlockchainInfo](ctx, c, General(), "getblockchaininfo")
}

func GetNetworkInfo(ctx context.Context, c Caller) (NetworkInfo, error) {
	return Fetch[NetworkInfo](ctx, c, General(), "getnetworkinfo")
}

func GetMempoolInfo(ctx context.Context, c Caller) (MempoolInfo, error) {
	return Fetch[MempoolInfo](ctx, c, General(), "getmempoolinfo")
}

func GetMiningInfo(ctx context.Context, c Caller) (MiningInfo, error) {
	return Fetch[MiningInfo](ctx, c, General(), "getmininginfo")
}

func GetChainTips(ctx context.Context, c Caller) ([]ChainTip, error) {
	return Fetch[[]ChainTip](ctx, c, General(), "getchaintips")
}

func GetNetTotals(ctx context.Context, c Caller) (NetTotals, error) {
	return Fetch[NetTotals](ctx, c, General(), "getnettotals")
}

// GetPeerInfo returns each peer as its raw JSON object; the peer table and
// query engine read fields by path.
func GetPeerInfo(ctx context.Context, c Caller) ([]json.RawMessage, error) {
	return Fetch[[]json.RawMessage](ctx, c, General(), "getpeerinfo")
}

func GetBlockCount(ctx context.Context, c Caller) (int64, error) {
	return Fetch[int64](ctx, c, General(), "getblockcount")
}

func GetBlockStats(ctx context.Context, c Caller, height int64) (BlockStats, error) {
	return Fetch[BlockStats](ctx, c, General(), "getblockstats", height, RecentBlockStatFields)
}

func GetBlockHeader(ctx context.Context, c Caller, hash string) (BlockHeader, error) {
	return Fetch[BlockHeader](ctx, c, General(), "getblockheader", hash, true)
}

func GetBlock(ctx context.Context, c Caller, hash string) (Block, error) {
	return Fetch[Block](ctx, c, General(), "getblock", hash, 1)
}

func GetMempoolEntry(ctx context.Context, c Caller, txid string) (MempoolEntry, error) {
	return Fetch[MempoolEntry](ctx, c, General(), "getmempoolentry", txid)
}

// GetRawTransaction fetches a decoded transaction. blockHash may be empty;
// when set the node can find it without -txindex.
func GetRawTransaction(ctx context.Context, c Caller, txid, blockHash string) (RawTransaction, error) {
	if blockHash != "" {
		return Fetch[RawTransaction](ctx, c, General(), "getrawtransaction", txid, true, blockHash)
	}
	return Fetch[RawTransaction](ctx, c, General(), "getrawtransaction", txid, true)
}

func ListWallets(ctx context.Context, c Caller) ([]string, error) {
	return Fetch[[]string](ctx, c, General(), "listwallets")
}
