// Package engine turns catalog entries plus typed argument text into node
// calls and display-ready results.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/studiowebux/bitcoin-tui/internal/catalog"
	"github.com/studiowebux/bitcoin-tui/internal/journal"
	"github.com/studiowebux/bitcoin-tui/internal/rpc"
)

// CallRequest is what the argument form submits.
type CallRequest struct {
	Method  catalog.MethodDescriptor
	RawArgs string
	Wallet  string
}

// Prepared is a validated call ready for dispatch.
type Prepared struct {
	Method catalog.MethodDescriptor
	Scope  rpc.Scope
	Params []any
}

// NeedsForm reports whether selecting m must open the argument form before
// dispatch.
func NeedsForm(m catalog.MethodDescriptor) bool {
	return m.RequiredCount() > 0
}

// Prepare validates req without touching the network.
//
// Omitted optional arguments take their default when one exists. A gap left
// before a later argument is sent as null; trailing omissions are dropped.
func Prepare(req CallRequest) (Prepared, error) {
	m := req.Method

	scope := rpc.General()
	if m.Category == catalog.Wallet {
		if req.Wallet == "" {
			return Prepared{}, ErrNoWalletSelected
		}
		scope = rpc.Wallet(req.Wallet)
	}

	tokens, err := SplitArgs(req.RawArgs)
	if err != nil {
		return Prepared{}, err
	}
	if len(tokens) > len(m.Params) {
		return Prepared{}, &BadArgumentError{
			Position: len(m.Params) + 1,
			Token:    tokens[len(m.Params)],
			Reason:   fmt.Sprintf("%s takes at most %d argument(s)", m.Name, len(m.Params)),
		}
	}

	values := make([]json.RawMessage, len(m.Params))
	last := -1
	for i, p := range m.Params {
		if i < len(tokens) && tokens[i] != "" {
			v, err := ParseToken(i+1, tokens[i])
			if err != nil {
				return Prepared{}, err
			}
			values[i] = v
			last = i
			continue
		}
		switch {
		case p.Required:
			return Prepared{}, &BadArgumentError{Position: i + 1, Reason: fmt.Sprintf("required parameter %s is missing", p.Name)}
		case p.HasDefault():
			values[i] = json.RawMessage(p.Default)
			last = i
		}
	}

	params := make([]any, 0, last+1)
	for i := 0; i <= last; i++ {
		if values[i] == nil {
			params = append(params, nil)
			continue
		}
		params = append(params, values[i])
	}

	return Prepared{Method: m, Scope: scope, Params: params}, nil
}

// Result is the outcome of one dispatch. Exactly one of Value and Err is set.
type Result struct {
	Method  string
	Scope   rpc.Scope
	Value   json.RawMessage
	Elapsed time.Duration
	Err     error
	Kind    ErrorKind
	Code    int
}

func (r Result) Failed() bool { return r.Err != nil }

// Pretty returns the value indented for display.
func (r Result) Pretty() string {
	if r.Value == nil {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, r.Value, "", "  "); err != nil {
		return string(r.Value)
	}
	return buf.String()
}

// Message is the one-line failure text: verbatim code and message for node
// errors.
func (r Result) Message() string {
	if r.Err == nil {
		return ""
	}
	var rpcErr *rpc.Error
	if errors.As(r.Err, &rpcErr) {
		return fmt.Sprintf("error %d: %s", rpcErr.Code, rpcErr.Message)
	}
	return r.Err.Error()
}

// Recorder persists completed dispatches.
type Recorder interface {
	Save(journal.Entry) error
}

// Engine dispatches one user call at a time.
type Engine struct {
	caller   rpc.Caller
	recorder Recorder
	inflight atomic.Bool
}

// New creates an Engine. recorder may be nil.
func New(caller rpc.Caller, recorder Recorder) *Engine {
	return &Engine{caller: caller, recorder: recorder}
}

// Busy reports whether a call is in flight.
func (e *Engine) Busy() bool { return e.inflight.Load() }

// Execute validates and dispatches req. A second Execute while one is in
// flight fails with ErrBusy instead of queueing.
func (e *Engine) Execute(ctx context.Context, req CallRequest) Result {
	prepared, err := Prepare(req)
	if err != nil {
		return newFailure(req.Method.Name, rpc.General(), 0, err)
	}
	return e.Dispatch(ctx, prepared, req.RawArgs)
}

// Dispatch sends an already prepared call. rawArgs is only recorded.
func (e *Engine) Dispatch(ctx context.Context, p Prepared, rawArgs string) Result {
	if !e.inflight.CompareAndSwap(false, true) {
		return newFailure(p.Method.Name, p.Scope, 0, ErrBusy)
	}
	defer e.inflight.Store(false)

	start := time.Now()
	raw, err := e.caller.Call(ctx, p.Scope, p.Method.Name, p.Params)
	elapsed := time.Since(start)

	var res Result
	if err != nil {
		res = newFailure(p.Method.Name, p.Scope, elapsed, err)
	} else {
		res = Result{Method: p.Method.Name, Scope: p.Scope, Value: raw, Elapsed: elapsed}
	}

	e.record(p, rawArgs, res)
	return res
}

func (e *Engine) record(p Prepared, rawArgs string, res Result) {
	if e.recorder == nil {
		return
	}
	entry := journal.Entry{
		Timestamp:  time.Now(),
		Method:     p.Method.Name,
		Category:   p.Method.Category.String(),
		Wallet:     p.Scope.WalletName(),
		Args:       strings.TrimSpace(rawArgs),
		DurationMs: res.Elapsed.Milliseconds(),
	}
	if res.Failed() {
		entry.ErrorKind = res.Kind.String()
		entry.ErrorCode = res.Code
		entry.ErrorMessage = res.Message()
	}
	if err := e.recorder.Save(entry); err != nil {
		log.Warn().Err(err).Str("method", p.Method.Name).Msg("failed to journal call")
	}
}

// ListWallets backs the wallet selector.
func (e *Engine) ListWallets(ctx context.Context) ([]string, error) {
	return rpc.ListWallets(ctx, e.caller)
}

func newFailure(method string, scope rpc.Scope, elapsed time.Duration, err error) Result {
	code, _ := rpc.CodeOf(err)
	return Result{
		Method:  method,
		Scope:   scope,
		Elapsed: elapsed,
		Err:     err,
		Kind:    Classify(err),
		Code:    code,
	}
}
