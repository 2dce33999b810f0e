package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"
	"github.com/sahilm/fuzzy"

	"github.com/studiowebux/bitcoin-tui/internal/catalog"
	"github.com/studiowebux/bitcoin-tui/internal/engine"
	"github.com/studiowebux/bitcoin-tui/internal/filter"
	"github.com/studiowebux/bitcoin-tui/internal/format"
	"github.com/studiowebux/bitcoin-tui/internal/keybinds"
)

type browserPane int

const (
	paneMethods browserPane = iota
	paneDetail
)

// browserInput is the text input currently owned by a method browser.
type browserInput int

const (
	inputNone browserInput = iota
	inputMethodSearch
	inputArgs
	inputDetailSearch
	inputFilter
)

// browserState is the method list and detail pane shared by the RPC and
// Wallet tabs.
type browserState struct {
	methods []catalog.MethodDescriptor
	visible []int // indices into methods, in display order
	cursor  int   // index into visible

	pane  browserPane
	input browserInput
	text  textinput.Model

	// Arguments last submitted, per method.
	args map[string]string

	pendingMethod string
	result        *engine.Result
	formErr       string
	filterExpr    string
	filtered      string
	filterErr     string
	recall        []string // saved filter expressions, newest first
	recallIdx     int

	detail   viewport.Model
	lines    []string // plain detail text, searched by query
	query    string
	matches  []int
	matchIdx int
}

func newBrowserState(methods []catalog.MethodDescriptor) *browserState {
	b := &browserState{
		methods: methods,
		text:    newTextInput(""),
		args:    make(map[string]string),
		detail:  viewport.New(80, 20),
	}
	b.showAll()
	return b
}

func newTextInput(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = placeholder
	ti.CharLimit = 4096
	return ti
}

func (b *browserState) showAll() {
	b.visible = make([]int, len(b.methods))
	for i := range b.methods {
		b.visible[i] = i
	}
}

// selected returns the method under the cursor.
func (b *browserState) selected() (catalog.MethodDescriptor, bool) {
	if b.cursor < 0 || b.cursor >= len(b.visible) {
		return catalog.MethodDescriptor{}, false
	}
	return b.methods[b.visible[b.cursor]], true
}

// applySearch fuzzy-filters the list, best match first.
func (b *browserState) applySearch(pattern string) {
	if strings.TrimSpace(pattern) == "" {
		b.showAll()
		b.cursor = 0
		return
	}
	names := make([]string, len(b.methods))
	for i, m := range b.methods {
		names[i] = m.Name
	}
	matches := fuzzy.Find(pattern, names)
	b.visible = b.visible[:0]
	for _, match := range matches {
		b.visible = append(b.visible, match.Index)
	}
	b.cursor = 0
}

// selectMethod restores the full list with the cursor on name.
func (b *browserState) selectMethod(name string) bool {
	b.showAll()
	for i, m := range b.methods {
		if m.Name == name {
			b.cursor = i
			return true
		}
	}
	return false
}

func (b *browserState) moveCursor(action keybinds.Action, page int) {
	prev := b.cursor
	b.cursor = moveCursor(b.cursor, len(b.visible), action, page)
	if b.cursor != prev {
		b.detail.GotoTop()
		b.clearSearch()
	}
}

func (b *browserState) focusInput(kind browserInput, value, placeholder string) tea.Cmd {
	b.input = kind
	b.text.Placeholder = placeholder
	b.text.SetValue(value)
	b.text.CursorEnd()
	return b.text.Focus()
}

// cancelInput closes the text input without side effects. A method search
// keeps the highlighted method selected.
func (b *browserState) cancelInput() {
	if b.input == inputMethodSearch {
		if m, ok := b.selected(); ok {
			b.selectMethod(m.Name)
		} else {
			b.showAll()
			b.cursor = 0
		}
	}
	b.input = inputNone
	b.text.Blur()
}

// openArgs opens the argument form for the selected method.
func (b *browserState) openArgs(prefill string) tea.Cmd {
	m, ok := b.selected()
	if !ok {
		return nil
	}
	b.pane = paneDetail
	b.formErr = ""
	if prefill == "" {
		prefill = b.args[m.Name]
	}
	return b.focusInput(inputArgs, prefill, m.Usage())
}

func (b *browserState) beginCall(method string) {
	b.pendingMethod = method
	b.result = nil
	b.formErr = ""
	b.filterExpr = ""
	b.filtered = ""
	b.filterErr = ""
	b.clearSearch()
}

func (b *browserState) setResult(res engine.Result) {
	b.pendingMethod = ""
	b.result = &res
	b.detail.GotoTop()
}

// resultText is what the result pane shows and what gets copied.
func (b *browserState) resultText() string {
	if b.result == nil {
		return ""
	}
	if b.result.Failed() {
		return b.result.Message()
	}
	if b.filterExpr != "" && b.filterErr == "" {
		return b.filtered
	}
	return b.result.Pretty()
}

func (b *browserState) clearSearch() {
	b.query = ""
	b.matches = nil
	b.matchIdx = 0
}

// searchDetail finds the lines containing query, case-insensitively.
func (b *browserState) searchDetail(query string) {
	b.clearSearch()
	b.query = query
	if query == "" {
		return
	}
	needle := strings.ToLower(query)
	for i, line := range b.lines {
		if strings.Contains(strings.ToLower(line), needle) {
			b.matches = append(b.matches, i)
		}
	}
	b.jumpToMatch()
}

func (b *browserState) cycleMatch(delta int) {
	if len(b.matches) == 0 {
		return
	}
	n := len(b.matches)
	b.matchIdx = ((b.matchIdx+delta)%n + n) % n
	b.jumpToMatch()
}

func (b *browserState) jumpToMatch() {
	if len(b.matches) == 0 {
		return
	}
	line := b.matches[b.matchIdx]
	b.detail.SetYOffset(max(0, line-b.detail.Height/2))
}

// handleBrowserAction runs a bound action in the RPC or Wallet tab.
func (m *Model) handleBrowserAction(tab Tab, action keybinds.Action) tea.Cmd {
	b := m.browser(tab)

	switch action {
	case keybinds.ActionSwitchPane:
		if b.pane == paneMethods {
			b.pane = paneDetail
		} else {
			b.pane = paneMethods
		}

	case keybinds.ActionNavigateUp, keybinds.ActionNavigateDown, keybinds.ActionPageUp,
		keybinds.ActionPageDown, keybinds.ActionGoToTop, keybinds.ActionGoToBottom:
		if b.pane == paneMethods {
			b.moveCursor(action, m.contentHeight())
		} else {
			scrollViewport(&b.detail, action)
		}

	case keybinds.ActionExecute:
		return m.executeSelected(tab)

	case keybinds.ActionEditArgs:
		method, ok := b.selected()
		if !ok {
			return nil
		}
		if !method.HasParams() {
			return m.setStatusMessage(method.Name + " takes no parameters")
		}
		return b.openArgs("")

	case keybinds.ActionMethodSearch:
		b.pane = paneMethods
		return b.focusInput(inputMethodSearch, "", "search methods")

	case keybinds.ActionDetailSearch:
		return b.focusInput(inputDetailSearch, b.query, "search result")

	case keybinds.ActionSearchNext:
		b.cycleMatch(1)

	case keybinds.ActionSearchPrev:
		b.cycleMatch(-1)

	case keybinds.ActionFilterResult:
		if b.result == nil || b.result.Failed() {
			return m.setErrorMessage("no result to filter")
		}
		m.loadRecall(b)
		return b.focusInput(inputFilter, b.filterExpr, "JMESPath expression, empty to reset")

	case keybinds.ActionCopy:
		return m.copyToClipboard(b.resultText(), "result copied")

	case keybinds.ActionOpenWallets:
		return m.openWalletPopup()

	case keybinds.ActionOpenHistory:
		return m.openHistoryPopup()
	}
	return nil
}

// executeSelected dispatches at once when nothing is required, otherwise
// opens the argument form.
func (m *Model) executeSelected(tab Tab) tea.Cmd {
	b := m.browser(tab)
	method, ok := b.selected()
	if !ok {
		return nil
	}
	if engine.NeedsForm(method) {
		return b.openArgs("")
	}
	return m.submitCall(tab, "")
}

// submitCall validates locally and dispatches. Local failures stay in the
// form and never reach the network.
func (m *Model) submitCall(tab Tab, rawArgs string) tea.Cmd {
	b := m.browser(tab)
	method, ok := b.selected()
	if !ok {
		return nil
	}

	prepared, err := engine.Prepare(engine.CallRequest{Method: method, RawArgs: rawArgs, Wallet: m.wallet})
	if err != nil {
		b.formErr = err.Error()
		if errors.Is(err, engine.ErrNoWalletSelected) {
			b.formErr += ": press w to choose one"
		}
		b.pane = paneDetail
		return m.setErrorMessage(b.formErr)
	}

	b.args[method.Name] = rawArgs
	b.pane = paneDetail
	return m.dispatchCall(tab, prepared, rawArgs)
}

func (m *Model) handleBrowserInputKeys(tab Tab, msg tea.KeyMsg) tea.Cmd {
	b := m.browser(tab)
	action, _ := m.keybinds.Match(keybinds.ContextTextInput, msg.String())

	switch action {
	case keybinds.ActionTextCancel:
		m.leaveContent()
		return nil

	case keybinds.ActionTextSubmit:
		value := b.text.Value()
		kind := b.input
		b.input = inputNone
		b.text.Blur()
		switch kind {
		case inputMethodSearch:
			if method, ok := b.selected(); ok {
				b.selectMethod(method.Name)
			} else {
				b.showAll()
			}
		case inputArgs:
			return m.submitCall(tab, value)
		case inputDetailSearch:
			b.searchDetail(value)
			if b.query != "" && len(b.matches) == 0 {
				return m.setStatusMessage(fmt.Sprintf("no match for %q", b.query))
			}
		case inputFilter:
			return m.runFilter(tab, value)
		}
		return nil

	case keybinds.ActionTextPaste:
		if text, err := clipboard.ReadAll(); err == nil {
			b.text.SetValue(b.text.Value() + text)
			b.text.CursorEnd()
		}
		return nil
	}

	if b.input == inputFilter {
		switch msg.String() {
		case "up":
			b.recallFilter(1)
			return nil
		case "down":
			b.recallFilter(-1)
			return nil
		}
	}

	// Navigation keys still move the list while searching methods.
	if b.input == inputMethodSearch {
		switch msg.String() {
		case "up", "down":
			act := keybinds.ActionNavigateDown
			if msg.String() == "up" {
				act = keybinds.ActionNavigateUp
			}
			b.moveCursor(act, 1)
			return nil
		}
	}

	var cmd tea.Cmd
	b.text, cmd = b.text.Update(msg)
	if b.input == inputMethodSearch {
		b.applySearch(b.text.Value())
	}
	return cmd
}

func (m *Model) runFilter(tab Tab, expr string) tea.Cmd {
	b := m.browser(tab)
	expr = strings.TrimSpace(expr)
	if expr == "" {
		b.filterExpr = ""
		b.filtered = ""
		b.filterErr = ""
		return m.setStatusMessage("filter cleared")
	}
	if b.result == nil || b.result.Failed() {
		return nil
	}
	body := []byte(b.result.Value)
	ctx := m.ctx
	return func() tea.Msg {
		out, err := filter.Apply(ctx, body, expr)
		return filterMsg{tab: tab, expr: expr, output: out, err: err}
	}
}

func (m *Model) handleFilter(msg filterMsg) tea.Cmd {
	b := m.browser(msg.tab)
	b.filterExpr = msg.expr
	b.detail.GotoTop()
	if msg.err != nil {
		b.filterErr = msg.err.Error()
		b.filtered = ""
		return m.setErrorMessage("filter: " + msg.err.Error())
	}
	b.filterErr = ""
	b.filtered = msg.output
	if m.journal != nil {
		if _, err := m.journal.SaveFilter(msg.expr); err != nil {
			log.Warn().Err(err).Str("expression", msg.expr).Msg("failed to save filter")
		}
	}
	return nil
}

// loadRecall reads the saved filters for up/down recall in the filter input.
func (m *Model) loadRecall(b *browserState) {
	b.recall = nil
	b.recallIdx = -1
	if m.journal == nil {
		return
	}
	filters, err := m.journal.Filters(20)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load saved filters")
		return
	}
	b.recall = filters
}

// recallFilter steps through saved filters; up goes back in time.
func (b *browserState) recallFilter(delta int) {
	if len(b.recall) == 0 {
		return
	}
	b.recallIdx = max(-1, min(b.recallIdx+delta, len(b.recall)-1))
	if b.recallIdx < 0 {
		b.text.SetValue(b.filterExpr)
	} else {
		b.text.SetValue(b.recall[b.recallIdx])
	}
	b.text.CursorEnd()
}

// detailLines builds the plain detail pane text and the line where the
// result begins.
func (m *Model) detailLines(tab Tab) ([]string, int) {
	b := m.browser(tab)
	method, ok := b.selected()
	if !ok {
		return []string{"no methods"}, -1
	}

	var lines []string
	if method.Category == catalog.Wallet {
		wallet := m.wallet
		if wallet == "" {
			wallet = "none selected (press w)"
		}
		lines = append(lines, "Wallet: "+wallet, "")
	}

	lines = append(lines, method.Name, "")
	lines = append(lines, strings.Split(strings.TrimRight(method.Summary, "\n"), "\n")...)
	lines = append(lines, "", "Usage: "+method.Usage())

	if method.HasParams() {
		lines = append(lines, "", "Parameters:")
		for i, p := range method.Params {
			req := "optional"
			if p.Required {
				req = "required"
			}
			line := fmt.Sprintf("  %d. %s (%s, %s)", i+1, p.Name, p.TypeHint, req)
			if p.HasDefault() {
				line += " default=" + p.Default
			}
			lines = append(lines, line)
			if p.Description != "" {
				lines = append(lines, "     "+p.Description)
			}
		}
	}

	if args, ok := b.args[method.Name]; ok && args != "" {
		lines = append(lines, "", "Args: "+args)
	}
	if b.formErr != "" {
		lines = append(lines, "", "Error: "+b.formErr)
	}

	if b.pendingMethod != "" {
		lines = append(lines, "", "Calling "+b.pendingMethod+"...")
		return lines, -1
	}
	if b.result == nil || b.result.Method != method.Name {
		return lines, -1
	}

	res := b.result
	lines = append(lines, "")
	if res.Failed() {
		lines = append(lines, fmt.Sprintf("Failed after %s [%s]", format.Elapsed(res.Elapsed), res.Kind))
	} else {
		header := fmt.Sprintf("Result in %s (%s)", format.Elapsed(res.Elapsed), res.Scope)
		if b.filterExpr != "" {
			header += " | filter: " + b.filterExpr
		}
		lines = append(lines, header)
	}
	if b.filterErr != "" {
		lines = append(lines, "Filter error: "+b.filterErr)
	}
	start := len(lines)
	lines = append(lines, strings.Split(b.resultText(), "\n")...)
	return lines, start
}

// renderDetail styles the detail text: match lines are highlighted while a
// search is active, otherwise the result is syntax highlighted.
func (m *Model) renderDetail(tab Tab, lines []string, resultStart int) string {
	b := m.browser(tab)

	if b.query != "" {
		current := -1
		if len(b.matches) > 0 {
			current = b.matches[b.matchIdx]
		}
		out := make([]string, len(lines))
		matchSet := make(map[int]bool, len(b.matches))
		for _, i := range b.matches {
			matchSet[i] = true
		}
		for i, line := range lines {
			switch {
			case i == current:
				out[i] = styleSelected.Render(line)
			case matchSet[i]:
				out[i] = styleWarning.Render(line)
			default:
				out[i] = line
			}
		}
		return strings.Join(out, "\n")
	}

	head := lines
	if resultStart >= 0 {
		head = lines[:resultStart]
	}
	var sb strings.Builder
	for i, line := range head {
		switch {
		case i == 0 && strings.HasPrefix(line, "Wallet: "):
			sb.WriteString(styleSubtle.Render("Wallet: ") + styleTitle.Render(strings.TrimPrefix(line, "Wallet: ")))
		case strings.HasPrefix(line, "Error: "), strings.HasPrefix(line, "Failed "), strings.HasPrefix(line, "Filter error: "):
			sb.WriteString(styleError.Render(line))
		case strings.HasPrefix(line, "Calling "):
			sb.WriteString(m.spinner.View() + " " + styleWarning.Render(line))
		case strings.HasPrefix(line, "Result in "):
			sb.WriteString(styleSuccess.Render(line))
		case strings.HasPrefix(line, "Usage: "), strings.HasPrefix(line, "Parameters:"):
			sb.WriteString(styleHeading.Render(line))
		default:
			sb.WriteString(line)
		}
		if i < len(head)-1 {
			sb.WriteByte('\n')
		}
	}

	if resultStart >= 0 {
		body := strings.Join(lines[resultStart:], "\n")
		if b.result != nil && b.result.Failed() {
			body = styleError.Render(body)
		} else {
			body = highlightJSON(body)
		}
		sb.WriteByte('\n')
		sb.WriteString(body)
	}
	return sb.String()
}

// syncBrowser refreshes the detail viewport after any state change.
func (m *Model) syncBrowser(tab Tab, width, height int) {
	b := m.browser(tab)
	lines, start := m.detailLines(tab)
	b.lines = lines
	b.detail.Width = width
	b.detail.Height = height
	b.detail.SetContent(m.renderDetail(tab, lines, start))
}
