// Package cli runs node calls and journal queries outside the TUI.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sahilm/fuzzy"
	"gopkg.in/yaml.v3"

	"github.com/studiowebux/bitcoin-tui/internal/catalog"
	"github.com/studiowebux/bitcoin-tui/internal/config"
	"github.com/studiowebux/bitcoin-tui/internal/engine"
	"github.com/studiowebux/bitcoin-tui/internal/filter"
	"github.com/studiowebux/bitcoin-tui/internal/rpc"
)

// Output formats accepted by --output.
const (
	OutputJSON = "json"
	OutputYAML = "yaml"
	OutputBody = "body"
	OutputText = "text"
)

// CallOptions contains options for a one-shot call
type CallOptions struct {
	Method       string
	Args         []string // one JSON literal per positional parameter
	Wallet       string
	OutputFormat string // json, yaml, body, text; empty picks text on a terminal
	Filter       string // JMESPath expression or $(shell command)
	SavePath     string

	// Stdin supplies comma-separated arguments when Args is empty, or answers
	// prompts when Interactive is set.
	Stdin       io.Reader
	Stdout      io.Writer
	Stderr      io.Writer
	Interactive bool
}

// Call validates and dispatches one method through the call engine and
// prints the result. A failed call returns an error after its output is
// written so the process can exit non-zero.
func Call(ctx context.Context, caller rpc.Caller, recorder engine.Recorder, opts CallOptions) error {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	method, ok := catalog.Default().Lookup(opts.Method)
	if !ok {
		return unknownMethodError(opts.Method)
	}

	rawArgs, err := collectArgs(method, opts)
	if err != nil {
		return err
	}

	wallet := opts.Wallet
	if method.Category == catalog.Wallet && wallet == "" && opts.Interactive {
		wallet, err = chooseWallet(ctx, caller)
		if err != nil {
			return err
		}
	}

	eng := engine.New(caller, recorder)
	res := eng.Execute(ctx, engine.CallRequest{Method: method, RawArgs: rawArgs, Wallet: wallet})
	if errors.Is(res.Err, engine.ErrNoWalletSelected) {
		return fmt.Errorf("%s is a wallet method: %w (use --wallet)", method.Name, res.Err)
	}

	body := ""
	if !res.Failed() {
		body = res.Pretty()
		if opts.Filter != "" {
			filtered, err := filter.Apply(ctx, res.Value, opts.Filter)
			if err != nil {
				fmt.Fprintf(opts.Stderr, "Warning: filter error: %v\n", err)
			} else {
				body = filtered
			}
		}
	}

	outputFormat := opts.OutputFormat
	if outputFormat == "" {
		if isTerminal(opts.Stdout) {
			outputFormat = OutputText
		} else {
			outputFormat = OutputBody
		}
	}

	output, err := formatOutput(res, body, outputFormat, isTerminal(opts.Stdout))
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	if opts.SavePath != "" {
		if err := os.WriteFile(opts.SavePath, []byte(output), config.FilePermissions); err != nil {
			return fmt.Errorf("failed to save result: %w", err)
		}
		fmt.Fprintf(opts.Stderr, "Result saved to %s\n", opts.SavePath)
	} else {
		fmt.Fprint(opts.Stdout, output)
	}

	if res.Failed() {
		return errors.New(res.Message())
	}
	return nil
}

// collectArgs builds the comma-separated argument text from positional
// arguments, piped stdin, or interactive prompts, in that order.
func collectArgs(method catalog.MethodDescriptor, opts CallOptions) (string, error) {
	if len(opts.Args) > 0 {
		return strings.Join(opts.Args, ","), nil
	}
	if opts.Stdin == nil {
		return "", nil
	}

	if !opts.Interactive {
		data, err := io.ReadAll(opts.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read arguments from stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if method.RequiredCount() == 0 {
		return "", nil
	}

	// Prompt up to the last required parameter; later ones keep their defaults.
	last := 0
	for i, p := range method.Params {
		if p.Required {
			last = i
		}
	}
	reader := bufio.NewReader(opts.Stdin)
	tokens := make([]string, 0, last+1)
	for _, p := range method.Params[:last+1] {
		value, err := promptForParam(reader, opts.Stderr, p)
		if err != nil {
			return "", fmt.Errorf("failed to read input for '%s': %w", p.Name, err)
		}
		tokens = append(tokens, value)
	}
	return strings.Join(tokens, ","), nil
}

// promptForParam prompts the user to enter a JSON value for a parameter
func promptForParam(reader *bufio.Reader, w io.Writer, p catalog.ParamSpec) (string, error) {
	if p.Required {
		fmt.Fprintf(w, "Enter %s (%s): ", p.Name, p.TypeHint)
	} else {
		fmt.Fprintf(w, "Enter %s (%s, empty to skip): ", p.Name, p.TypeHint)
	}
	value, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && value != "") {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func chooseWallet(ctx context.Context, caller rpc.Caller) (string, error) {
	wallets, err := rpc.ListWallets(ctx, caller)
	if err != nil {
		return "", fmt.Errorf("failed to list wallets: %w", err)
	}
	switch len(wallets) {
	case 0:
		return "", fmt.Errorf("no wallet is loaded on the node")
	case 1:
		return wallets[0], nil
	}
	return promptForWallet(wallets)
}

func unknownMethodError(name string) error {
	methods := catalog.Default().Methods()
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = m.Name
	}
	matches := fuzzy.Find(name, names)
	if len(matches) == 0 {
		return fmt.Errorf("unknown method %q", name)
	}
	var suggestions []string
	for _, match := range matches[:min(3, len(matches))] {
		suggestions = append(suggestions, match.Str)
	}
	return fmt.Errorf("unknown method %q (did you mean %s?)", name, strings.Join(suggestions, ", "))
}

// isInteractive checks if stdin is a terminal (not piped)
func isInteractive() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// StdinPiped reports whether stdin carries data from a pipe or file.
func StdinPiped() bool {
	return !isInteractive()
}

// IsInteractive reports whether prompts can be shown.
func IsInteractive() bool {
	return isInteractive() && isTerminal(os.Stdout)
}

// isTerminal checks if w is a character device.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}

type callOutput struct {
	Method    string     `json:"method" yaml:"method"`
	Wallet    string     `json:"wallet,omitempty" yaml:"wallet,omitempty"`
	ElapsedMs int64      `json:"elapsed_ms" yaml:"elapsed_ms"`
	Result    any        `json:"result,omitempty" yaml:"result,omitempty"`
	Error     *callError `json:"error,omitempty" yaml:"error,omitempty"`
}

type callError struct {
	Kind    string `json:"kind" yaml:"kind"`
	Code    int    `json:"code,omitempty" yaml:"code,omitempty"`
	Message string `json:"message" yaml:"message"`
}

func newCallOutput(res engine.Result) callOutput {
	out := callOutput{
		Method:    res.Method,
		Wallet:    res.Scope.WalletName(),
		ElapsedMs: res.Elapsed.Milliseconds(),
	}
	if res.Failed() {
		out.Error = &callError{Kind: res.Kind.String(), Code: res.Code, Message: res.Err.Error()}
		var rpcErr *rpc.Error
		if errors.As(res.Err, &rpcErr) {
			out.Error.Message = rpcErr.Message
		}
	}
	return out
}

// formatOutput formats the result based on the output format
func formatOutput(res engine.Result, body, format string, color bool) (string, error) {
	switch format {
	case OutputJSON:
		out := newCallOutput(res)
		if !res.Failed() {
			if json.Valid([]byte(body)) {
				out.Result = json.RawMessage(body)
			} else {
				out.Result = body
			}
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil

	case OutputYAML:
		out := newCallOutput(res)
		if !res.Failed() {
			// JSON is valid YAML, so this keeps numbers and nesting.
			var v any
			if err := yaml.Unmarshal([]byte(body), &v); err != nil {
				v = body
			}
			out.Result = v
		}
		data, err := yaml.Marshal(out)
		if err != nil {
			return "", err
		}
		return string(data), nil

	case OutputBody:
		if res.Failed() {
			return "", nil
		}
		return unquote(body) + "\n", nil

	case OutputText:
		var sb strings.Builder
		scope := "general"
		if w := res.Scope.WalletName(); w != "" {
			scope = "wallet " + w
		}
		status := "ok"
		statusColor := colorGreen
		if res.Failed() {
			status = "failed (" + res.Kind.String() + ")"
			statusColor = colorRed
		}
		line := fmt.Sprintf("%s [%s] %s in %s", res.Method, scope, status, res.Elapsed.Round(time.Millisecond))
		if color {
			line = statusColor + line + colorReset
		}
		sb.WriteString(line + "\n")
		if !res.Failed() && body != "" {
			sb.WriteString("\n")
			sb.WriteString(unquote(body))
			sb.WriteString("\n")
		}
		return sb.String(), nil

	default:
		return "", fmt.Errorf("unknown output format %q (want json, yaml, body or text)", format)
	}
}

// unquote prints JSON string results bare, the way bitcoin-cli does.
func unquote(body string) string {
	if strings.HasPrefix(body, `"`) {
		var s string
		if err := json.Unmarshal([]byte(body), &s); err == nil {
			return s
		}
	}
	return body
}

// ANSI color codes
const (
	colorReset = "\x1b[0m"
	colorRed   = "\x1b[31m"
	colorGreen = "\x1b[32m"
)
