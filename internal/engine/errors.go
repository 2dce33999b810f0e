package engine

import (
	"errors"

	"github.com/studiowebux/bitcoin-tui/internal/rpc"
)

var (
	ErrNoWalletSelected = errors.New("no wallet selected")
	ErrBusy             = errors.New("a call is already in progress")
)

// ErrorKind is the user-facing classification of a failed call.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindConnection
	KindBadArgument
	KindNoWalletSelected
	KindRPC
	KindTimeout
	KindBusy
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindBadArgument:
		return "bad_argument"
	case KindNoWalletSelected:
		return "no_wallet"
	case KindRPC:
		return "rpc"
	case KindTimeout:
		return "timeout"
	case KindBusy:
		return "busy"
	default:
		return ""
	}
}

// Local reports kinds that are raised before any network call.
func (k ErrorKind) Local() bool {
	return k == KindBadArgument || k == KindNoWalletSelected || k == KindBusy
}

// Classify maps any error into an ErrorKind.
func Classify(err error) ErrorKind {
	var badArg *BadArgumentError
	var rpcErr *rpc.Error
	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &badArg):
		return KindBadArgument
	case errors.Is(err, ErrNoWalletSelected):
		return KindNoWalletSelected
	case errors.Is(err, ErrBusy):
		return KindBusy
	case errors.Is(err, rpc.ErrTimeout):
		return KindTimeout
	case errors.As(err, &rpcErr):
		return KindRPC
	default:
		return KindConnection
	}
}
