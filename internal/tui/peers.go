package tui

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/studiowebux/bitcoin-tui/internal/format"
	"github.com/studiowebux/bitcoin-tui/internal/keybinds"
	"github.com/studiowebux/bitcoin-tui/internal/peerquery"
)

// peersState is the peer table with its query.
type peersState struct {
	records []json.RawMessage
	index   *peerquery.Index
	order   []int // records matching the query, in display order
	cursor  int

	query     peerquery.Query
	queryErr  string
	prompt    bool
	input     textinput.Model
	completer peerquery.Completer
}

func newPeersState() peersState {
	return peersState{input: newTextInput("where inbound == true")}
}

// refresh replaces the peer set and re-runs the query.
func (p *peersState) refresh(records []json.RawMessage) {
	p.records = records
	p.index = peerquery.NewIndex(records)
	p.evaluate()
}

func (p *peersState) evaluate() {
	p.order = p.query.Evaluate(p.records)
	if p.cursor >= len(p.order) {
		p.cursor = max(0, len(p.order)-1)
	}
}

func (p *peersState) selected() (json.RawMessage, bool) {
	if p.cursor < 0 || p.cursor >= len(p.order) {
		return nil, false
	}
	return p.records[p.order[p.cursor]], true
}

// run applies one command. A syntax error leaves the query unchanged.
func (p *peersState) run(input string) error {
	if err := p.query.Run(input); err != nil {
		p.queryErr = err.Error()
		return err
	}
	p.queryErr = ""
	p.evaluate()
	return nil
}

func (p *peersState) openPrompt() tea.Cmd {
	p.prompt = true
	p.completer.Reset()
	p.input.SetValue("")
	return p.input.Focus()
}

func (p *peersState) closePrompt() {
	p.prompt = false
	p.completer.Reset()
	p.input.Blur()
}

// complete applies the next completion at the cursor.
// complete applies the next completion. The text input counts its cursor in
// runes while the completer works on byte offsets.
func (p *peersState) complete() {
	value := p.input.Value()
	out, cursor, ok := p.completer.Next(value, byteOffset(value, p.input.Position()), p.index)
	if !ok {
		return
	}
	p.input.SetValue(out)
	p.input.SetCursor(runeOffset(out, cursor))
}

func byteOffset(s string, runes int) int {
	for i := range s {
		if runes <= 0 {
			return i
		}
		runes--
	}
	return len(s)
}

func runeOffset(s string, bytes int) int {
	return utf8.RuneCountInString(s[:min(max(bytes, 0), len(s))])
}

func (m *Model) handlePeersAction(action keybinds.Action) tea.Cmd {
	p := &m.peers

	switch action {
	case keybinds.ActionOpenDetail:
		rec, ok := p.selected()
		if !ok {
			return nil
		}
		m.openViewer(PopupPeerDetail, peerTitle(rec), highlightJSON(prettyJSON(rec)))

	case keybinds.ActionOpenQuery:
		return p.openPrompt()

	case keybinds.ActionQueryHelp:
		m.openViewer(PopupQueryHelp, "Peer query help", peerquery.HelpText)

	case keybinds.ActionClearQuery:
		p.query = peerquery.Query{}
		p.queryErr = ""
		p.evaluate()
		return m.setStatusMessage("peer query cleared")

	default:
		p.cursor = moveCursor(p.cursor, len(p.order), action, m.contentHeight())
	}
	return nil
}

func (m *Model) handlePeerPromptKeys(msg tea.KeyMsg) tea.Cmd {
	p := &m.peers
	action, _ := m.keybinds.Match(keybinds.ContextTextInput, msg.String())

	switch action {
	case keybinds.ActionTextCancel:
		m.leaveContent()
		return nil

	case keybinds.ActionTextComplete:
		p.complete()
		return nil

	case keybinds.ActionTextSubmit:
		value := strings.TrimSpace(p.input.Value())
		if value == "" {
			p.closePrompt()
			return nil
		}
		if err := p.run(value); err != nil {
			return m.setErrorMessage("query: " + err.Error())
		}
		p.closePrompt()
		return m.setStatusMessage(fmt.Sprintf("%d of %d peers", len(p.order), len(p.records)))

	case keybinds.ActionTextPaste:
		if text, err := clipboard.ReadAll(); err == nil {
			p.input.SetValue(p.input.Value() + text)
			p.input.CursorEnd()
		}
		p.completer.Reset()
		return nil
	}

	p.completer.Reset()
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return cmd
}

func peerTitle(rec json.RawMessage) string {
	id, _ := peerquery.Lookup(rec, "id")
	addr, _ := peerquery.Lookup(rec, "addr")
	return fmt.Sprintf("Peer %s %s", id.String(), addr.String())
}

// peerColumns are the table columns; value renders one cell.
var peerColumns = []struct {
	title string
	width int
	value func(rec json.RawMessage) string
}{
	{"ID", 5, field("id")},
	{"Address", 28, field("addr")},
	{"Net", 6, field("network")},
	{"Dir", 4, func(rec json.RawMessage) string {
		if v, ok := peerquery.Lookup(rec, "inbound"); ok && v.Bool() {
			return "in"
		}
		return "out"
	}},
	{"Type", 14, field("connection_type")},
	{"Client", 24, field("subver")},
	{"Ping", 8, func(rec json.RawMessage) string {
		v, ok := peerquery.Lookup(rec, "pingtime")
		if !ok {
			return "-"
		}
		return fmt.Sprintf("%.0fms", v.Float()*1000)
	}},
	{"Recv", 10, bytesField("bytesrecv")},
	{"Sent", 10, bytesField("bytessent")},
	{"Height", 9, field("synced_blocks")},
}

func field(path string) func(json.RawMessage) string {
	return func(rec json.RawMessage) string {
		v, ok := peerquery.Lookup(rec, path)
		if !ok {
			return "-"
		}
		return peerquery.Stringify(v)
	}
}

func bytesField(path string) func(json.RawMessage) string {
	return func(rec json.RawMessage) string {
		v, ok := peerquery.Lookup(rec, path)
		if !ok {
			return "-"
		}
		return format.Bytes(v.Int())
	}
}

func (m Model) renderPeers(width, height int) string {
	p := m.peers

	var header strings.Builder
	header.WriteString(styleTitle.Render(fmt.Sprintf("Peers %d/%d", len(p.order), len(p.records))))
	if m.core.PeersErr != nil {
		header.WriteString("  " + styleError.Render("getpeerinfo: "+m.core.PeersErr.Error()))
	}
	if !p.query.Empty() {
		header.WriteString("  " + styleSubtle.Render("query: ") + p.query.String())
	}

	var footer string
	switch {
	case p.prompt:
		footer = styleTitle.Render(": ") + p.input.View()
		if cands, i := p.completer.Candidates(); len(cands) > 0 {
			footer += "\n" + renderCandidates(cands, i, width)
		}
	case p.queryErr != "":
		footer = styleError.Render("query: " + p.queryErr)
	}

	tableHeight := height - 2
	if footer != "" {
		tableHeight -= lipgloss.Height(footer)
	}

	cols := make([]table.Column, len(peerColumns))
	for i, c := range peerColumns {
		cols[i] = table.Column{Title: c.title, Width: c.width}
	}
	rows := make([]table.Row, 0, len(p.order))
	for _, idx := range p.order {
		rec := p.records[idx]
		row := make(table.Row, len(peerColumns))
		for i, c := range peerColumns {
			row[i] = c.value(rec)
		}
		rows = append(rows, row)
	}

	styles := table.DefaultStyles()
	styles.Header = styles.Header.Foreground(colorCyan).Bold(true)
	styles.Selected = styleSelected
	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithHeight(max(3, tableHeight)),
		table.WithWidth(width),
		table.WithFocused(m.focus == FocusContent),
		table.WithStyles(styles),
	)
	t.SetCursor(p.cursor)

	out := header.String() + "\n" + t.View()
	if footer != "" {
		out += "\n" + footer
	}
	return out
}

func renderCandidates(cands []string, current, width int) string {
	var parts []string
	used := 0
	for i, c := range cands {
		if used+len(c)+1 > width && i > current {
			parts = append(parts, styleSubtle.Render("…"))
			break
		}
		if i == current {
			parts = append(parts, styleSelected.Render(c))
		} else {
			parts = append(parts, styleSubtle.Render(c))
		}
		used += len(c) + 1
	}
	return strings.Join(parts, " ")
}
