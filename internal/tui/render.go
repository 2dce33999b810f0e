package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/studiowebux/bitcoin-tui/internal/format"
	"github.com/studiowebux/bitcoin-tui/internal/keybinds"
)

// Adaptive color definitions for light/dark terminal support
var (
	colorGreen  = lipgloss.AdaptiveColor{Light: "#006400", Dark: "#00ff00"}
	colorRed    = lipgloss.AdaptiveColor{Light: "#8b0000", Dark: "#ff0000"}
	colorYellow = lipgloss.AdaptiveColor{Light: "#b8860b", Dark: "#ffff00"}
	colorBlue   = lipgloss.AdaptiveColor{Light: "#00008b", Dark: "#5f87ff"}
	colorGray   = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#888888"}
	colorCyan   = lipgloss.AdaptiveColor{Light: "#008b8b", Dark: "#00ffff"}
	colorOrange = lipgloss.AdaptiveColor{Light: "#c05000", Dark: "#f7931a"}
)

// Style definitions
var (
	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorCyan)

	styleHeading = lipgloss.NewStyle().
			Bold(true)

	styleSelected = lipgloss.NewStyle().
			Background(lipgloss.AdaptiveColor{Light: "#d3d3d3", Dark: "#3a3a3a"}).
			Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#ffffff"})

	styleSuccess = lipgloss.NewStyle().
			Foreground(colorGreen)

	styleError = lipgloss.NewStyle().
			Foreground(colorRed)

	styleWarning = lipgloss.NewStyle().
			Foreground(colorYellow)

	styleSubtle = lipgloss.NewStyle().
			Foreground(colorGray)

	styleBrand = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorOrange)

	styleTabActive = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#ffffff", Dark: "#000000"}).
			Background(colorOrange).
			Padding(0, 1)

	styleTab = lipgloss.NewStyle().
			Foreground(colorGray).
			Padding(0, 1)
)

// Layout margins around the content box and modals
const (
	chromeHeight      = 4 // tab bar, two border lines, footer
	chromeWidth       = 4 // two border columns and padding
	methodListWidth   = 30
	ModalWidthMargin  = 8
	ModalHeightMargin = 4
)

func (m *Model) contentHeight() int { return max(1, m.height-chromeHeight) }
func (m *Model) contentWidth() int  { return max(10, m.width-chromeWidth) }

// syncViews pushes state into the viewports after every update.
func (m *Model) syncViews() {
	if m.width == 0 {
		return
	}
	w, h := m.contentWidth(), m.contentHeight()
	detailW := max(10, w-methodListWidth-3)

	for _, tab := range []Tab{TabRPC, TabWallet} {
		b := m.browser(tab)
		detailH := h
		if b.input == inputArgs || b.input == inputDetailSearch || b.input == inputFilter || len(b.matches) > 0 {
			detailH -= 2
		}
		m.syncBrowser(tab, detailW, max(1, detailH))
	}

	m.tx.view.Width = w
	m.tx.view.Height = h
	m.tx.view.SetContent(m.txLines())

	m.popupView.Width = max(10, m.width-ModalWidthMargin-4)
	m.popupView.Height = max(3, m.height-ModalHeightMargin-6)
	m.popupView.SetContent(m.popupText)
}

// renderMain renders the tab bar, the active tab and the footer.
func (m Model) renderMain() string {
	w, h := m.contentWidth(), m.contentHeight()

	var content string
	switch m.activeTab {
	case TabDashboard:
		content = m.renderDashboard(w, h)
	case TabPeers:
		content = m.renderPeers(w, h)
	case TabRPC, TabWallet:
		content = m.renderBrowser(m.activeTab, w, h)
	case TabTransactions:
		content = m.renderTransactions(w, h)
	case TabZmq:
		content = m.renderZmq(w, h)
	}

	border := colorGray
	if m.focus == FocusContent {
		border = colorGreen
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 1).
		Width(m.width - 2).
		Height(h).
		MaxHeight(h + 2).
		Render(content)

	return lipgloss.JoinVertical(lipgloss.Left, m.renderTabBar(), box, m.renderFooter())
}

func (m Model) renderTabBar() string {
	parts := []string{styleBrand.Render("₿ bitcoin-tui") + " "}
	for i, tab := range m.tabs {
		label := fmt.Sprintf("%d %s", i+1, tab)
		if tab == m.activeTab {
			parts = append(parts, styleTabActive.Render(label))
		} else {
			parts = append(parts, styleTab.Render(label))
		}
	}

	right := styleSubtle.Render(m.endpoint)
	switch {
	case !m.polled:
		right = styleWarning.Render("connecting ") + right
	case m.core.Failed():
		right = styleError.Render("offline ") + right
	default:
		chain := m.core.Blockchain.Chain
		right = styleSuccess.Render(chain) + " " + right + styleSubtle.Render(" "+format.Elapsed(m.core.Elapsed))
	}

	left := lipgloss.JoinHorizontal(lipgloss.Top, parts...)
	gap := max(1, m.width-lipgloss.Width(left)-lipgloss.Width(right))
	return left + strings.Repeat(" ", gap) + right
}

type hint struct {
	action keybinds.Action
	label  string
}

var (
	tabBarHints = []hint{
		{keybinds.ActionNextTab, "tabs"}, {keybinds.ActionEnterContent, "open"},
		{keybinds.ActionOpenTxSearch, "search tx"}, {keybinds.ActionRefresh, "refresh"},
		{keybinds.ActionQuit, "quit"},
	}
	peersHints = []hint{
		{keybinds.ActionOpenQuery, "query"}, {keybinds.ActionQueryHelp, "help"},
		{keybinds.ActionClearQuery, "clear"}, {keybinds.ActionOpenDetail, "detail"},
		{keybinds.ActionBack, "back"},
	}
	methodsHints = []hint{
		{keybinds.ActionExecute, "call"}, {keybinds.ActionEditArgs, "args"},
		{keybinds.ActionMethodSearch, "find"}, {keybinds.ActionSwitchPane, "pane"},
		{keybinds.ActionOpenWallets, "wallet"}, {keybinds.ActionOpenHistory, "history"},
		{keybinds.ActionBack, "back"},
	}
	detailHints = []hint{
		{keybinds.ActionDetailSearch, "search"}, {keybinds.ActionSearchNext, "next"},
		{keybinds.ActionFilterResult, "jmespath"}, {keybinds.ActionCopy, "copy"},
		{keybinds.ActionSwitchPane, "pane"}, {keybinds.ActionBack, "back"},
	}
	txHints = []hint{
		{keybinds.ActionOpenTxSearch, "search"}, {keybinds.ActionCopy, "copy txid"},
		{keybinds.ActionBack, "back"},
	}
	zmqHints = []hint{
		{keybinds.ActionOpenDetail, "open"}, {keybinds.ActionCopy, "copy hash"},
		{keybinds.ActionBack, "back"},
	}
	dashboardHints = []hint{
		{keybinds.ActionNavigateDown, "scroll"}, {keybinds.ActionBack, "back"},
	}
	textInputHints = []hint{
		{keybinds.ActionTextSubmit, "submit"}, {keybinds.ActionTextComplete, "complete"},
		{keybinds.ActionTextCancel, "cancel"},
	}
)

func (m Model) footerHints() (keybinds.Context, []hint) {
	if m.focus == FocusTabBar {
		return keybinds.ContextTabBar, tabBarHints
	}
	if m.inputActive() {
		if m.activeTab == TabPeers {
			return keybinds.ContextTextInput, textInputHints
		}
		return keybinds.ContextTextInput, []hint{textInputHints[0], textInputHints[2]}
	}
	switch ctx := m.contentContext(); ctx {
	case keybinds.ContextPeers:
		return ctx, peersHints
	case keybinds.ContextMethods:
		return ctx, methodsHints
	case keybinds.ContextDetail:
		return ctx, detailHints
	case keybinds.ContextTransactions:
		return ctx, txHints
	case keybinds.ContextZmq:
		return ctx, zmqHints
	default:
		return ctx, dashboardHints
	}
}

// renderFooter shows key hints, then the error or status message.
func (m Model) renderFooter() string {
	ctx, hints := m.footerHints()
	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		keys := m.keybinds.GetBinding(ctx, h.action)
		if len(keys) == 0 {
			continue
		}
		parts = append(parts, styleTitle.Render(keys[0])+" "+h.label)
	}
	left := strings.Join(parts, styleSubtle.Render(" | "))

	var right string
	switch {
	case m.errorMsg != "":
		right = styleError.Render(m.errorMsg)
	case m.statusMsg != "":
		right = styleSuccess.Render(m.statusMsg)
	}
	gap := max(1, m.width-lipgloss.Width(left)-lipgloss.Width(right))
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) renderBrowser(tab Tab, width, height int) string {
	b := m.browser(tab)

	title := fmt.Sprintf("Methods (%d)", len(b.visible))
	if b.pane == paneMethods && m.focus == FocusContent {
		title = styleTitle.Render(title)
	} else {
		title = styleHeading.Render(title)
	}

	rows := height - 1
	var search string
	if b.input == inputMethodSearch {
		search = styleTitle.Render("/ ") + b.text.View()
		rows--
	}
	rows = max(1, rows)

	start := 0
	if b.cursor >= rows {
		start = b.cursor - rows + 1
	}
	end := min(len(b.visible), start+rows)
	lines := []string{title}
	for i := start; i < end; i++ {
		method := b.methods[b.visible[i]]
		name := truncate(method.Name, methodListWidth-2)
		if i == b.cursor {
			lines = append(lines, styleSelected.Render("> "+name))
		} else {
			lines = append(lines, "  "+name)
		}
	}
	if search != "" {
		for len(lines) < height-1 {
			lines = append(lines, "")
		}
		lines = append(lines, search)
	}
	list := lipgloss.NewStyle().Width(methodListWidth).Render(strings.Join(lines, "\n"))

	detail := b.detail.View()
	var prompt string
	switch b.input {
	case inputArgs:
		prompt = styleTitle.Render("args> ") + b.text.View()
	case inputDetailSearch:
		prompt = styleTitle.Render("/ ") + b.text.View()
	case inputFilter:
		prompt = styleTitle.Render("jmespath> ") + b.text.View()
	default:
		if len(b.matches) > 0 {
			prompt = styleSubtle.Render(fmt.Sprintf("match %d/%d for %q (n/N)", b.matchIdx+1, len(b.matches), b.query))
		}
	}
	if prompt != "" {
		detail += "\n\n" + prompt
	}

	sepColor := colorGray
	if b.pane == paneDetail && m.focus == FocusContent {
		sepColor = colorGreen
	}
	detailBox := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(sepColor).
		PaddingLeft(1).
		Render(detail)

	return lipgloss.JoinHorizontal(lipgloss.Top, list, detailBox)
}

// modal centers a bordered box on the screen
func (m Model) modal(title, body, footer string) string {
	content := styleTitle.Render(title) + "\n\n" + body
	if footer != "" {
		content += "\n\n" + styleSubtle.Render(footer)
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBlue).
		Width(m.width-ModalWidthMargin).
		MaxHeight(m.height).
		Padding(1, 2).
		Render(content)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func (m Model) renderViewerPopup() string {
	return m.modal(m.popupTitle, m.popupView.View(), "↑/↓ j/k scroll | c copy | esc close")
}

func (m Model) renderSearchPopup() string {
	body := "TxID: " + m.popupInput.View()
	return m.modal("Search transaction", body, "enter search | esc cancel")
}

func (m Model) renderWalletPopup() string {
	var body string
	switch {
	case m.walletsBusy:
		body = styleWarning.Render("Loading wallets...")
	case m.walletsErr != nil:
		body = styleError.Render(m.walletsErr.Error())
	case len(m.walletList) == 0:
		body = styleSubtle.Render("No wallets loaded. Use loadwallet or createwallet from the RPC tab.")
	default:
		lines := make([]string, len(m.walletList))
		for i, w := range m.walletList {
			label := w
			if label == "" {
				label = `"" (default wallet)`
			}
			if w == m.wallet {
				label += styleSubtle.Render(" (current)")
			}
			if i == m.walletCursor {
				lines[i] = styleSelected.Render("> " + label)
			} else {
				lines[i] = "  " + label
			}
		}
		body = strings.Join(lines, "\n")
	}
	return m.modal("Select wallet", body, "enter select | esc cancel")
}

func (m Model) renderHistoryPopup() string {
	var body string
	switch {
	case m.historyErr != nil:
		body = styleError.Render(m.historyErr.Error())
	case len(m.history) == 0:
		body = styleSubtle.Render("No calls recorded yet.")
	default:
		rows := max(1, m.height-ModalHeightMargin-8)
		start := 0
		if m.historyIdx >= rows {
			start = m.historyIdx - rows + 1
		}
		end := min(len(m.history), start+rows)
		lines := make([]string, 0, end-start)
		for i := start; i < end; i++ {
			e := m.history[i]
			outcome := styleSuccess.Render("ok")
			if e.Failed() {
				outcome = styleError.Render(e.ErrorKind)
			}
			scope := ""
			if e.Wallet != "" {
				scope = styleSubtle.Render(" [" + e.Wallet + "]")
			}
			line := fmt.Sprintf("%s  %-24s%s %s  %s  %dms",
				e.Timestamp.Format("01-02 15:04:05"), e.Method, scope,
				truncate(e.Args, 40), outcome, e.DurationMs)
			if i == m.historyIdx {
				line = styleSelected.Render(line)
			}
			lines = append(lines, line)
		}
		body = strings.Join(lines, "\n")
	}
	return m.modal("Call history", body, "enter re-run with args | esc close")
}

// scrollViewport applies a navigation action to a viewport.
func scrollViewport(v *viewport.Model, action keybinds.Action) {
	switch action {
	case keybinds.ActionNavigateDown:
		v.LineDown(1)
	case keybinds.ActionNavigateUp:
		v.LineUp(1)
	case keybinds.ActionPageDown:
		v.LineDown(max(1, v.Height-1))
	case keybinds.ActionPageUp:
		v.LineUp(max(1, v.Height-1))
	case keybinds.ActionGoToTop:
		v.GotoTop()
	case keybinds.ActionGoToBottom:
		v.GotoBottom()
	}
}

// prettyJSON indents raw JSON; anything unparsable is returned as is.
func prettyJSON(raw []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// highlightJSON colors JSON for the terminal. On failure the plain text
// is returned.
func highlightJSON(s string) string {
	if s == "" {
		return s
	}
	var buf bytes.Buffer
	if err := quick.Highlight(&buf, s, "json", "terminal256", "monokai"); err != nil {
		return s
	}
	return strings.TrimRight(buf.String(), "\n")
}

func truncate(s string, n int) string {
	if n <= 1 || lipgloss.Width(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) > n-1 {
		r = r[:n-1]
	}
	return string(r) + "…"
}
