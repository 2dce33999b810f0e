package rpc

import (
	"errors"
	"fmt"
)

// Node error codes the rest of the program branches on.
const (
	CodeInvalidAddressOrKey = -5  // unknown txid, block or wallet
	CodeWarmingUp           = -28 // node still loading
	CodeMethodNotFound      = -32601
	CodeWalletNotFound      = -18
	CodeWalletNotSpecified  = -19
)

// ErrTimeout is returned when a request exceeds the client timeout.
var ErrTimeout = errors.New("rpc request timed out")

// Error is a JSON-RPC error object returned by the node.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// TransportError covers everything between us and a well-formed reply:
// connection refused, bad credentials, non-JSON bodies, cookie read failures.
type TransportError struct {
	Method string
	Msg    string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("RPC connection failed (%s): %s: %v", e.Method, e.Msg, e.Err)
	}
	return fmt.Sprintf("RPC connection failed (%s): %s", e.Method, e.Msg)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// CodeOf returns the node error code carried by err, if any.
func CodeOf(err error) (int, bool) {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Code, true
	}
	return 0, false
}

// IsNotFound reports a -5 reply (no such transaction/block/wallet).
func IsNotFound(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == CodeInvalidAddressOrKey
}

// IsWarmingUp reports a -28 reply.
func IsWarmingUp(err error) bool {
	code, ok := CodeOf(err)
	return ok && code == CodeWarmingUp
}

// IsTransport reports a connection-level failure, including timeouts.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te) || errors.Is(err, ErrTimeout)
}
