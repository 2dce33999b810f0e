package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gopkg.in/yaml.v3"

	"github.com/studiowebux/bitcoin-tui/internal/catalog"
	"github.com/studiowebux/bitcoin-tui/internal/journal"
	"github.com/studiowebux/bitcoin-tui/internal/keybinds"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// MethodsOptions selects what `methods` prints.
type MethodsOptions struct {
	Name         string // print one method's help
	Category     string // general or wallet; empty lists both
	OutputFormat string // text, json or yaml
}

type methodOutput struct {
	Name     string        `json:"name" yaml:"name"`
	Category string        `json:"category" yaml:"category"`
	Group    string        `json:"group" yaml:"group"`
	Summary  string        `json:"summary" yaml:"summary"`
	Params   []paramOutput `json:"params,omitempty" yaml:"params,omitempty"`
}

type paramOutput struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	Required bool   `json:"required" yaml:"required"`
	Default  string `json:"default,omitempty" yaml:"default,omitempty"`
}

func newMethodOutput(m catalog.MethodDescriptor) methodOutput {
	out := methodOutput{Name: m.Name, Category: m.Category.String(), Group: m.Group, Summary: m.Summary}
	for _, p := range m.Params {
		out.Params = append(out.Params, paramOutput{Name: p.Name, Type: p.TypeHint, Required: p.Required, Default: p.Default})
	}
	return out
}

// PrintMethods lists the catalog or prints help for one method.
func PrintMethods(w io.Writer, cat *catalog.Catalog, opts MethodsOptions) error {
	var methods []catalog.MethodDescriptor
	switch {
	case opts.Name != "":
		m, ok := cat.Lookup(opts.Name)
		if !ok {
			return unknownMethodError(opts.Name)
		}
		if opts.OutputFormat == "" || opts.OutputFormat == OutputText {
			_, err := fmt.Fprint(w, m.Help())
			return err
		}
		methods = []catalog.MethodDescriptor{m}
	case opts.Category != "":
		c, err := catalog.ParseCategory(opts.Category)
		if err != nil {
			return err
		}
		methods = cat.ByCategory(c)
	default:
		methods = cat.Methods()
	}

	switch opts.OutputFormat {
	case OutputJSON, OutputYAML:
		out := make([]methodOutput, len(methods))
		for i, m := range methods {
			out[i] = newMethodOutput(m)
		}
		return encode(w, opts.OutputFormat, out)

	case "", OutputText:
		rows := make([][]string, len(methods))
		for i, m := range methods {
			rows[i] = []string{m.Name, m.Category.String(), m.Group, m.Usage()}
		}
		_, err := fmt.Fprintln(w, renderTable([]string{"METHOD", "CATEGORY", "GROUP", "USAGE"}, rows))
		return err

	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", opts.OutputFormat)
	}
}

// HistoryOptions selects which journal entries `history` prints.
type HistoryOptions struct {
	Method       string
	Limit        int
	OutputFormat string // text, json or yaml
}

// HistoryLoader is the read side of the call journal.
type HistoryLoader interface {
	Load(q journal.Query) ([]journal.Entry, error)
}

type historyOutput struct {
	Timestamp  string `json:"timestamp" yaml:"timestamp"`
	Method     string `json:"method" yaml:"method"`
	Wallet     string `json:"wallet,omitempty" yaml:"wallet,omitempty"`
	Args       string `json:"args,omitempty" yaml:"args,omitempty"`
	DurationMs int64  `json:"duration_ms" yaml:"duration_ms"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// PrintHistory prints journal entries newest first.
func PrintHistory(w io.Writer, j HistoryLoader, opts HistoryOptions) error {
	entries, err := j.Load(journal.Query{Method: opts.Method, Limit: opts.Limit})
	if err != nil {
		return err
	}

	switch opts.OutputFormat {
	case OutputJSON, OutputYAML:
		out := make([]historyOutput, len(entries))
		for i, e := range entries {
			out[i] = historyOutput{
				Timestamp:  e.Timestamp.Format("2006-01-02 15:04:05"),
				Method:     e.Method,
				Wallet:     e.Wallet,
				Args:       e.Args,
				DurationMs: e.DurationMs,
				Error:      e.ErrorMessage,
			}
		}
		return encode(w, opts.OutputFormat, out)

	case "", OutputText:
		if len(entries) == 0 {
			_, err := fmt.Fprintln(w, "No calls recorded.")
			return err
		}
		rows := make([][]string, len(entries))
		for i, e := range entries {
			status := "ok"
			if e.Failed() {
				status = e.ErrorMessage
			}
			rows[i] = []string{
				e.Timestamp.Format("2006-01-02 15:04:05"),
				e.Method,
				e.Wallet,
				truncate(e.Args, 40),
				strconv.FormatInt(e.DurationMs, 10) + "ms",
				truncate(status, 60),
			}
		}
		_, err := fmt.Fprintln(w, renderTable([]string{"TIME", "METHOD", "WALLET", "ARGS", "DURATION", "STATUS"}, rows))
		return err

	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", opts.OutputFormat)
	}
}

// StatsLoader is the aggregate side of the call journal.
type StatsLoader interface {
	Stats(category string) ([]journal.MethodStats, error)
}

type statsOutput struct {
	Method        string         `json:"method" yaml:"method"`
	Category      string         `json:"category" yaml:"category"`
	Calls         int            `json:"calls" yaml:"calls"`
	Errors        int            `json:"errors" yaml:"errors"`
	AvgDurationMs float64        `json:"avg_duration_ms" yaml:"avg_duration_ms"`
	MinDurationMs int64          `json:"min_duration_ms" yaml:"min_duration_ms"`
	MaxDurationMs int64          `json:"max_duration_ms" yaml:"max_duration_ms"`
	LastCalled    string         `json:"last_called" yaml:"last_called"`
	ErrorKinds    map[string]int `json:"error_kinds,omitempty" yaml:"error_kinds,omitempty"`
}

// PrintStats prints per-method call aggregates from the journal.
func PrintStats(w io.Writer, j StatsLoader, category, outputFormat string) error {
	if category != "" {
		if _, err := catalog.ParseCategory(category); err != nil {
			return err
		}
	}
	stats, err := j.Stats(category)
	if err != nil {
		return err
	}

	switch outputFormat {
	case OutputJSON, OutputYAML:
		out := make([]statsOutput, len(stats))
		for i, s := range stats {
			out[i] = statsOutput{
				Method:        s.Method,
				Category:      s.Category,
				Calls:         s.TotalCalls,
				Errors:        s.ErrorCount,
				AvgDurationMs: s.AvgDurationMs,
				MinDurationMs: s.MinDurationMs,
				MaxDurationMs: s.MaxDurationMs,
				LastCalled:    s.LastCalled.Format("2006-01-02 15:04:05"),
				ErrorKinds:    s.ErrorKinds,
			}
		}
		return encode(w, outputFormat, out)

	case "", OutputText:
		if len(stats) == 0 {
			_, err := fmt.Fprintln(w, "No calls recorded.")
			return err
		}
		rows := make([][]string, len(stats))
		for i, s := range stats {
			rows[i] = []string{
				s.Method,
				strconv.Itoa(s.TotalCalls),
				fmt.Sprintf("%.0f%%", s.SuccessRate()*100),
				fmt.Sprintf("%.0fms", s.AvgDurationMs),
				fmt.Sprintf("%d-%dms", s.MinDurationMs, s.MaxDurationMs),
				formatKinds(s.ErrorKinds),
				s.LastCalled.Format("2006-01-02 15:04:05"),
			}
		}
		_, err := fmt.Fprintln(w, renderTable([]string{"METHOD", "CALLS", "OK", "AVG", "RANGE", "ERRORS", "LAST"}, rows))
		return err

	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", outputFormat)
	}
}

type bindingOutput struct {
	Context string `json:"context" yaml:"context"`
	Key     string `json:"key" yaml:"key"`
	Action  string `json:"action" yaml:"action"`
}

// PrintKeybinds prints the active bindings of one context, or of all of them.
func PrintKeybinds(w io.Writer, reg *keybinds.Registry, context, outputFormat string) error {
	contexts := keybinds.Contexts
	if context != "" {
		c, ok := keybinds.ParseContext(context)
		if !ok {
			return fmt.Errorf("unknown context %q", context)
		}
		contexts = []keybinds.Context{c}
	}

	var out []bindingOutput
	for _, c := range contexts {
		for _, b := range reg.ListBindings(c) {
			// Global bindings are listed once, under their own context.
			if b.Context != c {
				continue
			}
			out = append(out, bindingOutput{Context: string(b.Context), Key: b.Key, Action: string(b.Action)})
		}
	}

	switch outputFormat {
	case OutputJSON, OutputYAML:
		return encode(w, outputFormat, out)

	case "", OutputText:
		rows := make([][]string, len(out))
		for i, b := range out {
			rows[i] = []string{b.Context, b.Key, b.Action}
		}
		_, err := fmt.Fprintln(w, renderTable([]string{"CONTEXT", "KEY", "ACTION"}, rows))
		return err

	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", outputFormat)
	}
}

// formatKinds renders {"rpc":2,"timeout":1} as "rpc:2 timeout:1".
func formatKinds(kinds map[string]int) string {
	names := make([]string, 0, len(kinds))
	for k := range kinds {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = fmt.Sprintf("%s:%d", k, kinds[k])
	}
	return strings.Join(parts, " ")
}

func renderTable(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		BorderHeader(true).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.String()
}

func encode(w io.Writer, format string, v any) error {
	if format == OutputYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n-3]) + "..."
}
