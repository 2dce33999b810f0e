// Package rpc talks JSON-RPC 1.0 over HTTP to a Bitcoin Core node.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/studiowebux/bitcoin-tui/internal/metrics"
)

// Scope selects the node-level endpoint or a wallet endpoint.
type Scope struct {
	wallet string
}

// General is the node-level endpoint.
func General() Scope { return Scope{} }

// Wallet routes to /wallet/<name>.
func Wallet(name string) Scope { return Scope{wallet: name} }

// WalletName returns the wallet for wallet scopes, "" for General.
func (s Scope) WalletName() string { return s.wallet }

func (s Scope) String() string {
	if s.wallet == "" {
		return "general"
	}
	return "wallet:" + s.wallet
}

// Caller issues one JSON-RPC call and returns the raw result.
type Caller interface {
	Call(ctx context.Context, scope Scope, method string, params []any) (json.RawMessage, error)
}

// Config configures a Client.
type Config struct {
	URL        string // http://host:port
	User       string
	Password   string
	CookiePath string // read on every call when User is empty
	Timeout    time.Duration
}

// Client is safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *Error          `json:"error"`
}

// Call sends method with positional params to the endpoint chosen by scope.
func (c *Client) Call(ctx context.Context, scope Scope, method string, params []any) (json.RawMessage, error) {
	start := time.Now()
	result, err := c.call(ctx, scope, method, params)
	elapsed := time.Since(start)

	outcome := "ok"
	switch {
	case errors.Is(err, ErrTimeout):
		outcome = "timeout"
	case IsTransport(err):
		outcome = "transport"
	case err != nil:
		outcome = "rpc_error"
	}
	metrics.RecordRPCCall(method, outcome, elapsed)

	ev := log.Debug()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Str("method", method).Str("scope", scope.String()).Dur("elapsed", elapsed).Msg("rpc call")

	return result, err
}

func (c *Client) call(ctx context.Context, scope Scope, method string, params []any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}

	body, err := json.Marshal(request{JSONRPC: "1.0", ID: method, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(scope), bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Method: method, Msg: "failed to create request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	user, pass, err := c.credentials()
	if err != nil {
		return nil, &TransportError{Method: method, Msg: "no credentials", Err: err}
	}
	req.SetBasicAuth(user, pass)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, method, c.cfg.Timeout)
		}
		return nil, &TransportError{Method: method, Msg: "request failed", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, method, c.cfg.Timeout)
		}
		return nil, &TransportError{Method: method, Msg: "failed to read response", Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &TransportError{Method: method, Msg: fmt.Sprintf("HTTP %d: check rpcuser/rpcpassword or cookie file", resp.StatusCode)}
	}

	// The node reports RPC errors with HTTP 404/500 and a JSON body, so the
	// body is inspected before the status.
	var parsed response
	if err := json.Unmarshal(data, &parsed); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &TransportError{Method: method, Msg: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))}
		}
		return nil, &TransportError{Method: method, Msg: "invalid JSON response", Err: err}
	}

	if parsed.Error != nil {
		return nil, parsed.Error
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Method: method, Msg: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
	if len(parsed.Result) == 0 {
		return json.RawMessage("null"), nil
	}
	return parsed.Result, nil
}

func (c *Client) endpoint(scope Scope) string {
	base := strings.TrimRight(c.cfg.URL, "/")
	if scope.wallet == "" {
		return base
	}
	return base + "/wallet/" + url.PathEscape(scope.wallet)
}

// credentials prefers user/password and otherwise reads the cookie file,
// which the node rewrites on every restart.
func (c *Client) credentials() (string, string, error) {
	if c.cfg.User != "" {
		return c.cfg.User, c.cfg.Password, nil
	}
	if c.cfg.CookiePath == "" {
		return "", "", fmt.Errorf("no rpcuser or cookie file configured")
	}
	data, err := os.ReadFile(c.cfg.CookiePath)
	if err != nil {
		return "", "", fmt.Errorf("failed to read cookie file %s: %w", c.cfg.CookiePath, err)
	}
	user, pass, ok := strings.Cut(strings.TrimSpace(string(data)), ":")
	if !ok {
		return "", "", fmt.Errorf("malformed cookie file %s", c.cfg.CookiePath)
	}
	return user, pass, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
