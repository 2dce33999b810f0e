package rpc

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// FlexFloat accepts a JSON number, a numeric string or null. Unparseable
// input decodes to zero instead of failing the whole snapshot.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*f = 0
			return nil
		}
		v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
		*f = FlexFloat(v)
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = FlexFloat(v)
	return nil
}

func (f FlexFloat) Float() float64 { return float64(f) }

// Warnings is a string on older nodes and a list from v28 on.
type Warnings []string

func (w *Warnings) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || string(data) == "null":
		*w = nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*w = nil
		} else {
			*w = Warnings{s}
		}
	default:
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			*w = nil
			return nil
		}
		*w = list
	}
	return nil
}

type BlockchainInfo struct {
	Chain                string    `json:"chain"`
	Blocks               int64     `json:"blocks"`
	Headers              int64     `json:"headers"`
	BestBlockHash        string    `json:"bestblockhash"`
	Difficulty           FlexFloat `json:"difficulty"`
	Time                 int64     `json:"time"`
	MedianTime           int64     `json:"mediantime"`
	VerificationProgress FlexFloat `json:"verificationprogress"`
	InitialBlockDownload bool      `json:"initialblockdownload"`
	SizeOnDisk           int64     `json:"size_on_disk"`
	Pruned               bool      `json:"pruned"`
	Warnings             Warnings  `json:"warnings"`
}

type NetworkInfo struct {
	Version         int64          `json:"version"`
	Subversion      string         `json:"subversion"`
	ProtocolVersion int64          `json:"protocolversion"`
	Connections     int64          `json:"connections"`
	ConnectionsIn   int64          `json:"connections_in"`
	ConnectionsOut  int64          `json:"connections_out"`
	NetworkActive   bool           `json:"networkactive"`
	RelayFee        FlexFloat      `json:"relayfee"`
	Networks        []NetworkEntry `json:"networks"`
	LocalServices   []string       `json:"localservicesnames"`
	LocalAddresses  []LocalAddress `json:"localaddresses"`
	Warnings        Warnings       `json:"warnings"`
}

type NetworkEntry struct {
	Name      string `json:"name"`
	Limited   bool   `json:"limited"`
	Reachable bool   `json:"reachable"`
	Proxy     string `json:"proxy"`
}

type LocalAddress struct {
	Address string `json:"address"`
	Port    int    `json:"port"`
	Score   int64  `json:"score"`
}

type MempoolInfo struct {
	Loaded           bool      `json:"loaded"`
	Size             int64     `json:"size"`
	Bytes            int64     `json:"bytes"`
	Usage            int64     `json:"usage"`
	TotalFee         FlexFloat `json:"total_fee"`
	MaxMempool       int64     `json:"maxmempool"`
	MempoolMinFee    FlexFloat `json:"mempoolminfee"`
	MinRelayTxFee    FlexFloat `json:"minrelaytxfee"`
	UnbroadcastCount int64     `json:"unbroadcastcount"`
}

type MiningInfo struct {
	Blocks        int64     `json:"blocks"`
	Difficulty    FlexFloat `json:"difficulty"`
	NetworkHashPS FlexFloat `json:"networkhashps"`
	PooledTx      int64     `json:"pooledtx"`
	Chain         string    `json:"chain"`
	Warnings      Warnings  `json:"warnings"`
}

type ChainTip struct {
	Height    int64  `json:"height"`
	Hash      string `json:"hash"`
	BranchLen int64  `json:"branchlen"`
	Status    string `json:"status"`
}

type NetTotals struct {
	TotalBytesRecv int64 `json:"totalbytesrecv"`
	TotalBytesSent int64 `json:"totalbytessent"`
	TimeMillis     int64 `json:"timemillis"`
}

// BlockStats carries the getblockstats fields requested by RecentBlockStatFields.
type BlockStats struct {
	Height      int64     `json:"height"`
	Hash        string    `json:"blockhash"`
	Txs         int64     `json:"txs"`
	TotalSize   int64     `json:"total_size"`
	TotalWeight int64     `json:"total_weight"`
	AvgFeeRate  FlexFloat `json:"avgfeerate"`
	Time        int64     `json:"time"`
}

// RecentBlockStatFields limits getblockstats to what the dashboard shows.
var RecentBlockStatFields = []string{"height", "blockhash", "txs", "total_size", "total_weight", "avgfeerate", "time"}

type MempoolEntry struct {
	VSize           int64       `json:"vsize"`
	Weight          int64       `json:"weight"`
	Time            int64       `json:"time"`
	Height          int64       `json:"height"`
	DescendantCount int64       `json:"descendantcount"`
	AncestorCount   int64       `json:"ancestorcount"`
	Fees            MempoolFees `json:"fees"`
	Depends         []string    `json:"depends"`
	SpentBy         []string    `json:"spentby"`
}

type MempoolFees struct {
	Base       FlexFloat `json:"base"`
	Modified   FlexFloat `json:"modified"`
	Ancestor   FlexFloat `json:"ancestor"`
	Descendant FlexFloat `json:"descendant"`
}

type RawTransaction struct {
	TxID          string     `json:"txid"`
	Hash          string     `json:"hash"`
	Size          int64      `json:"size"`
	VSize         int64      `json:"vsize"`
	Weight        int64      `json:"weight"`
	Version       int64      `json:"version"`
	LockTime      int64      `json:"locktime"`
	Vin           []TxInput  `json:"vin"`
	Vout          []TxOutput `json:"vout"`
	BlockHash     string     `json:"blockhash"`
	Confirmations int64      `json:"confirmations"`
	BlockTime     int64      `json:"blocktime"`
	Time          int64      `json:"time"`
}

type TxInput struct {
	TxID     string `json:"txid"`
	Vout     int64  `json:"vout"`
	Coinbase string `json:"coinbase"`
}

type TxOutput struct {
	Value FlexFloat `json:"value"`
	N     int64     `json:"n"`
}

type BlockHeader struct {
	Hash          string `json:"hash"`
	Height        int64  `json:"height"`
	Confirmations int64  `json:"confirmations"`
	Time          int64  `json:"time"`
	NTx           int64  `json:"nTx"`
	PreviousHash  string `json:"previousblockhash"`
}

// Block is getblock at verbosity 1.
type Block struct {
	BlockHeader
	Size   int64    `json:"size"`
	Weight int64    `json:"weight"`
	Tx     []string `json:"tx"`
}
