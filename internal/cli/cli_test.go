package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/studiowebux/bitcoin-tui/internal/catalog"
	"github.com/studiowebux/bitcoin-tui/internal/engine"
	"github.com/studiowebux/bitcoin-tui/internal/journal"
	"github.com/studiowebux/bitcoin-tui/internal/keybinds"
	"github.com/studiowebux/bitcoin-tui/internal/rpc"
)

func TestMain(m *testing.M) {
	log.Logger = zerolog.Nop()
	os.Exit(m.Run())
}

type recordedCall struct {
	scope  rpc.Scope
	method string
	params []any
}

type stubNode struct {
	replies map[string]string
	errs    map[string]error
	calls   []recordedCall
}

func newStubNode() *stubNode {
	return &stubNode{
		replies: map[string]string{
			"getblockcount":     `100`,
			"getblockhash":      `"00000000000000000002a7c4c1e48d76c5a37902165a270156b7a8d72728a054"`,
			"getblockchaininfo": `{"chain":"main","blocks":100,"headers":100}`,
			"getbalances":       `{"mine":{"trusted":1.5}}`,
			"listwallets":       `["solo"]`,
		},
		errs: map[string]error{},
	}
}

func (n *stubNode) Call(_ context.Context, scope rpc.Scope, method string, params []any) (json.RawMessage, error) {
	n.calls = append(n.calls, recordedCall{scope: scope, method: method, params: params})
	if err, ok := n.errs[method]; ok {
		return nil, err
	}
	reply, ok := n.replies[method]
	if !ok {
		return nil, &rpc.Error{Code: rpc.CodeMethodNotFound, Message: "Method not found"}
	}
	return json.RawMessage(reply), nil
}

func (n *stubNode) callsTo(method string) []recordedCall {
	var out []recordedCall
	for _, c := range n.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

type sliceRecorder struct {
	entries []journal.Entry
}

func (r *sliceRecorder) Save(e journal.Entry) error {
	r.entries = append(r.entries, e)
	return nil
}

func runCall(t *testing.T, node *stubNode, opts CallOptions) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	opts.Stdout = &stdout
	opts.Stderr = &stderr
	err := Call(context.Background(), node, nil, opts)
	return stdout.String(), stderr.String(), err
}

func TestCall_BodyOutputPrintsStringsBare(t *testing.T) {
	node := newStubNode()

	out, _, err := runCall(t, node, CallOptions{Method: "getblockhash", Args: []string{"840000"}})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if out != "00000000000000000002a7c4c1e48d76c5a37902165a270156b7a8d72728a054\n" {
		t.Errorf("stdout = %q", out)
	}

	calls := node.callsTo("getblockhash")
	if len(calls) != 1 || len(calls[0].params) != 1 {
		t.Fatalf("calls = %+v", calls)
	}
	if raw, ok := calls[0].params[0].(json.RawMessage); !ok || string(raw) != "840000" {
		t.Errorf("param = %#v", calls[0].params[0])
	}
}

func TestCall_OutputFormats(t *testing.T) {
	tests := []struct {
		format string
		want   []string
	}{
		{OutputJSON, []string{`"method": "getblockcount"`, `"result": 100`}},
		{OutputYAML, []string{"method: getblockcount", "result: 100"}},
		{OutputText, []string{"getblockcount [general] ok in", "\n100\n"}},
		{OutputBody, []string{"100\n"}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out, _, err := runCall(t, newStubNode(), CallOptions{Method: "getblockcount", OutputFormat: tt.format})
			if err != nil {
				t.Fatalf("Call: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestCall_UnknownOutputFormat(t *testing.T) {
	_, _, err := runCall(t, newStubNode(), CallOptions{Method: "getblockcount", OutputFormat: "xml"})
	if err == nil || !strings.Contains(err.Error(), "unknown output format") {
		t.Errorf("err = %v", err)
	}
}

func TestCall_Filter(t *testing.T) {
	out, _, err := runCall(t, newStubNode(), CallOptions{Method: "getblockchaininfo", Filter: "chain"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if out != "main\n" {
		t.Errorf("stdout = %q", out)
	}
}

func TestCall_InvalidFilterWarnsAndPrintsResult(t *testing.T) {
	out, stderr, err := runCall(t, newStubNode(), CallOptions{Method: "getblockchaininfo", Filter: "[[["})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !strings.Contains(stderr, "Warning: filter error") {
		t.Errorf("stderr = %q", stderr)
	}
	if !strings.Contains(out, `"headers": 100`) {
		t.Errorf("stdout = %q", out)
	}
}

func TestCall_NodeErrorFailsWithVerbatimMessage(t *testing.T) {
	node := newStubNode()
	node.errs["getblockhash"] = &rpc.Error{Code: -8, Message: "Block height out of range"}

	out, _, err := runCall(t, node, CallOptions{Method: "getblockhash", Args: []string{"99999999"}, OutputFormat: OutputJSON})
	if err == nil {
		t.Fatal("expected an error")
	}
	if err.Error() != "error -8: Block height out of range" {
		t.Errorf("err = %q", err)
	}
	for _, want := range []string{`"kind": "rpc"`, `"code": -8`, `"message": "Block height out of range"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCall_BadArgumentNeverReachesNode(t *testing.T) {
	node := newStubNode()

	_, _, err := runCall(t, node, CallOptions{Method: "getblockhash", Args: []string{"tip"}})
	if err == nil || !strings.Contains(err.Error(), "argument 1") {
		t.Errorf("err = %v", err)
	}
	if len(node.calls) != 0 {
		t.Errorf("calls = %+v", node.calls)
	}
}

func TestCall_WalletMethodRequiresWallet(t *testing.T) {
	node := newStubNode()

	_, _, err := runCall(t, node, CallOptions{Method: "getbalances"})
	if err == nil || !strings.Contains(err.Error(), "--wallet") {
		t.Errorf("err = %v", err)
	}
	if len(node.calls) != 0 {
		t.Errorf("calls = %+v", node.calls)
	}
}

func TestCall_WalletScope(t *testing.T) {
	node := newStubNode()

	if _, _, err := runCall(t, node, CallOptions{Method: "getbalances", Wallet: "alice"}); err != nil {
		t.Fatalf("Call: %v", err)
	}
	calls := node.callsTo("getbalances")
	if len(calls) != 1 || calls[0].scope.WalletName() != "alice" {
		t.Errorf("calls = %+v", calls)
	}
}

func TestCall_InteractiveSingleWalletSelected(t *testing.T) {
	node := newStubNode()

	if _, _, err := runCall(t, node, CallOptions{Method: "getbalances", Interactive: true}); err != nil {
		t.Fatalf("Call: %v", err)
	}
	calls := node.callsTo("getbalances")
	if len(calls) != 1 || calls[0].scope.WalletName() != "solo" {
		t.Errorf("calls = %+v", calls)
	}
}

func TestCall_InteractiveNoWalletLoaded(t *testing.T) {
	node := newStubNode()
	node.replies["listwallets"] = `[]`

	_, _, err := runCall(t, node, CallOptions{Method: "getbalances", Interactive: true})
	if err == nil || !strings.Contains(err.Error(), "no wallet is loaded") {
		t.Errorf("err = %v", err)
	}
}

func TestCall_ArgumentsFromStdin(t *testing.T) {
	node := newStubNode()

	_, _, err := runCall(t, node, CallOptions{Method: "getblockhash", Stdin: strings.NewReader("840000\n")})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	calls := node.callsTo("getblockhash")
	if len(calls) != 1 || string(calls[0].params[0].(json.RawMessage)) != "840000" {
		t.Errorf("calls = %+v", calls)
	}
}

func TestCall_PromptsForRequiredParameters(t *testing.T) {
	node := newStubNode()

	_, stderr, err := runCall(t, node, CallOptions{
		Method:      "getblockhash",
		Stdin:       strings.NewReader("840000\n"),
		Interactive: true,
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !strings.Contains(stderr, "Enter height (number): ") {
		t.Errorf("stderr = %q", stderr)
	}
	if len(node.callsTo("getblockhash")) != 1 {
		t.Error("call not sent")
	}
}

func TestCall_UnknownMethodSuggests(t *testing.T) {
	_, _, err := runCall(t, newStubNode(), CallOptions{Method: "getblockcont"})
	if err == nil || !strings.Contains(err.Error(), "getblockcount") {
		t.Errorf("err = %v", err)
	}
}

func TestCall_SaveToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "count.json")

	out, stderr, err := runCall(t, newStubNode(), CallOptions{Method: "getblockcount", OutputFormat: OutputBody, SavePath: path})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if out != "" {
		t.Errorf("stdout = %q, want nothing when saving", out)
	}
	if !strings.Contains(stderr, "Result saved to") {
		t.Errorf("stderr = %q", stderr)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "100\n" {
		t.Errorf("file = %q", data)
	}
}

func TestCall_Journaled(t *testing.T) {
	rec := &sliceRecorder{}
	var stdout bytes.Buffer

	err := Call(context.Background(), newStubNode(), rec, CallOptions{
		Method: "getblockhash",
		Args:   []string{"7"},
		Stdout: &stdout,
		Stderr: &stdout,
	})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(rec.entries) != 1 {
		t.Fatalf("entries = %d", len(rec.entries))
	}
	if rec.entries[0].Method != "getblockhash" || rec.entries[0].Args != "7" {
		t.Errorf("entry = %+v", rec.entries[0])
	}
}

func TestFormatOutput_TextFailure(t *testing.T) {
	res := engine.Result{Method: "getblock", Err: &rpc.Error{Code: -5, Message: "Block not found"}, Kind: engine.KindRPC, Code: -5}

	out, err := formatOutput(res, "", OutputText, true)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, colorRed) || !strings.Contains(out, "failed (rpc)") {
		t.Errorf("output = %q", out)
	}

	out, _ = formatOutput(res, "", OutputBody, false)
	if out != "" {
		t.Errorf("body output on failure = %q", out)
	}
}

func TestPrintMethods(t *testing.T) {
	cat := catalog.Default()

	t.Run("help for one method", func(t *testing.T) {
		var buf bytes.Buffer
		if err := PrintMethods(&buf, cat, MethodsOptions{Name: "getblockhash"}); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(buf.String(), "Parameters:") || !strings.Contains(buf.String(), "height") {
			t.Errorf("help = %q", buf.String())
		}
	})

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		if err := PrintMethods(&buf, cat, MethodsOptions{}); err != nil {
			t.Fatal(err)
		}
		for _, want := range []string{"METHOD", "getblockcount", "getbalances"} {
			if !strings.Contains(buf.String(), want) {
				t.Errorf("table missing %q", want)
			}
		}
	})

	t.Run("category as json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := PrintMethods(&buf, cat, MethodsOptions{Category: "wallet", OutputFormat: OutputJSON}); err != nil {
			t.Fatal(err)
		}
		var out []methodOutput
		if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
			t.Fatal(err)
		}
		if len(out) != len(cat.ByCategory(catalog.Wallet)) {
			t.Errorf("got %d wallet methods", len(out))
		}
		for _, m := range out {
			if m.Category != "wallet" {
				t.Errorf("%s has category %s", m.Name, m.Category)
			}
		}
	})

	t.Run("unknown category", func(t *testing.T) {
		if err := PrintMethods(&bytes.Buffer{}, cat, MethodsOptions{Category: "mining"}); err == nil {
			t.Error("expected an error")
		}
	})
}

type stubJournal struct {
	entries []journal.Entry
	query   journal.Query
}

func (j *stubJournal) Load(q journal.Query) ([]journal.Entry, error) {
	j.query = q
	return j.entries, nil
}

func TestPrintHistory(t *testing.T) {
	j := &stubJournal{entries: []journal.Entry{
		{Method: "getblockhash", Category: "general", Args: "840000", DurationMs: 3},
		{Method: "getbalances", Category: "wallet", Wallet: "alice", ErrorKind: "rpc", ErrorCode: -18, ErrorMessage: "error -18: Requested wallet does not exist"},
	}}

	var buf bytes.Buffer
	if err := PrintHistory(&buf, j, HistoryOptions{Method: "getblockhash", Limit: 5}); err != nil {
		t.Fatal(err)
	}
	if j.query.Method != "getblockhash" || j.query.Limit != 5 {
		t.Errorf("query = %+v", j.query)
	}
	for _, want := range []string{"840000", "3ms", "alice", "Requested wallet does not exist"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("history missing %q:\n%s", want, buf.String())
		}
	}

	buf.Reset()
	if err := PrintHistory(&buf, j, HistoryOptions{OutputFormat: OutputYAML}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "method: getbalances") {
		t.Errorf("yaml = %s", buf.String())
	}

	buf.Reset()
	if err := PrintHistory(&buf, &stubJournal{}, HistoryOptions{}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No calls recorded") {
		t.Errorf("empty history = %q", buf.String())
	}
}

type stubStats struct {
	category string
	stats    []journal.MethodStats
}

func (s *stubStats) Stats(category string) ([]journal.MethodStats, error) {
	s.category = category
	return s.stats, nil
}

func TestPrintStats(t *testing.T) {
	j := &stubStats{stats: []journal.MethodStats{{
		Method:        "getblockhash",
		Category:      "general",
		TotalCalls:    4,
		ErrorCount:    1,
		AvgDurationMs: 5,
		MinDurationMs: 2,
		MaxDurationMs: 9,
		ErrorKinds:    map[string]int{"timeout": 1},
	}}}

	var buf bytes.Buffer
	if err := PrintStats(&buf, j, "general", ""); err != nil {
		t.Fatal(err)
	}
	if j.category != "general" {
		t.Errorf("category = %q", j.category)
	}
	for _, want := range []string{"getblockhash", "75%", "5ms", "2-9ms", "timeout:1"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("stats missing %q:\n%s", want, buf.String())
		}
	}

	if err := PrintStats(&bytes.Buffer{}, j, "mining", ""); err == nil {
		t.Error("expected an error for an unknown category")
	}
}

func TestPrintKeybinds(t *testing.T) {
	reg := keybinds.NewDefaultRegistry()

	var buf bytes.Buffer
	if err := PrintKeybinds(&buf, reg, "peers", OutputJSON); err != nil {
		t.Fatal(err)
	}
	var out []bindingOutput
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	found := false
	for _, b := range out {
		if b.Context != "peers" {
			t.Errorf("binding from context %q listed under peers", b.Context)
		}
		if b.Key == "x" && b.Action == string(keybinds.ActionClearQuery) {
			found = true
		}
	}
	if !found {
		t.Errorf("x -> clear_query missing: %+v", out)
	}

	buf.Reset()
	if err := PrintKeybinds(&buf, reg, "", ""); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"CONTEXT", "ctrl+c", "tabbar"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("table missing %q", want)
		}
	}

	if err := PrintKeybinds(&bytes.Buffer{}, reg, "sidebar", ""); err == nil {
		t.Error("expected an error for an unknown context")
	}
}

func TestFormatKinds(t *testing.T) {
	got := formatKinds(map[string]int{"timeout": 1, "rpc": 3})
	if got != "rpc:3 timeout:1" {
		t.Errorf("formatKinds() = %q", got)
	}
}

func TestWalletSelector(t *testing.T) {
	m := newWalletSelector([]string{"alice", "bob"})

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	next, _ = next.Update(tea.KeyMsg{Type: tea.KeyEnter})
	result := next.(selectorModel)
	if !result.chosen || result.choice != "bob" {
		t.Errorf("choice = %q chosen = %v", result.choice, result.chosen)
	}

	next, _ = newWalletSelector([]string{"alice"}).Update(tea.KeyMsg{Type: tea.KeyEsc})
	if next.(selectorModel).chosen {
		t.Error("esc must cancel the selection")
	}
}
