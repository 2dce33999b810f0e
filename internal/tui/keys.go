package tui

import (
	"fmt"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/studiowebux/bitcoin-tui/internal/catalog"
	"github.com/studiowebux/bitcoin-tui/internal/keybinds"
)

// handleKeyPress routes a key by level: popup, then tab bar, then content.
func (m *Model) handleKeyPress(msg tea.KeyMsg) tea.Cmd {
	if action, ok := m.keybinds.Match(keybinds.ContextGlobal, msg.String()); ok && action == keybinds.ActionQuitForce {
		m.Cleanup()
		return tea.Quit
	}

	if m.popup != PopupNone {
		return m.handlePopupKeys(msg)
	}
	if m.focus == FocusTabBar {
		return m.handleTabBarKeys(msg)
	}
	return m.handleContentKeys(msg)
}

func (m *Model) handleTabBarKeys(msg tea.KeyMsg) tea.Cmd {
	action, ok := m.keybinds.Match(keybinds.ContextTabBar, msg.String())
	if !ok {
		return nil
	}

	switch action {
	case keybinds.ActionQuit:
		m.Cleanup()
		return tea.Quit

	case keybinds.ActionNextTab:
		m.switchTab(1)

	case keybinds.ActionPrevTab:
		m.switchTab(-1)

	case keybinds.ActionSelectTab1, keybinds.ActionSelectTab2, keybinds.ActionSelectTab3,
		keybinds.ActionSelectTab4, keybinds.ActionSelectTab5, keybinds.ActionSelectTab6:
		n := int(action[len(action)-1] - '1')
		if n < len(m.tabs) {
			m.activeTab = m.tabs[n]
		}

	case keybinds.ActionEnterContent:
		m.focus = FocusContent

	case keybinds.ActionOpenTxSearch:
		return m.openSearchPopup()

	case keybinds.ActionRefresh:
		cmd := m.pollCore()
		if cmd == nil {
			return m.setStatusMessage("refresh already in progress")
		}
		return tea.Batch(cmd, m.setStatusMessage("refreshing..."))
	}
	return nil
}

func (m *Model) switchTab(delta int) {
	i := m.tabIndex(m.activeTab)
	n := len(m.tabs)
	m.activeTab = m.tabs[((i+delta)%n+n)%n]
}

// handleContentKeys routes to the active tab. Escape always returns to the
// tab bar in one step; keys the tab does not bind are ignored, so tab
// switching never leaks into content.
func (m *Model) handleContentKeys(msg tea.KeyMsg) tea.Cmd {
	if m.inputActive() {
		return m.handleInputKeys(msg)
	}

	ctx := m.contentContext()
	action, complete, partial := m.keybinds.MatchMultiKey(ctx, msg.String())
	if partial || !complete {
		return nil
	}
	if action == keybinds.ActionBack {
		m.leaveContent()
		return nil
	}

	switch m.activeTab {
	case TabDashboard:
		m.handleDashboardAction(action)
	case TabPeers:
		return m.handlePeersAction(action)
	case TabRPC, TabWallet:
		return m.handleBrowserAction(m.activeTab, action)
	case TabTransactions:
		return m.handleTransactionsAction(action)
	case TabZmq:
		return m.handleZmqAction(action)
	}
	return nil
}

func (m *Model) contentContext() keybinds.Context {
	switch m.activeTab {
	case TabPeers:
		return keybinds.ContextPeers
	case TabRPC, TabWallet:
		if m.browser(m.activeTab).pane == paneDetail {
			return keybinds.ContextDetail
		}
		return keybinds.ContextMethods
	case TabTransactions:
		return keybinds.ContextTransactions
	case TabZmq:
		return keybinds.ContextZmq
	default:
		return keybinds.ContextDashboard
	}
}

// leaveContent unwinds every nested state of the active tab.
func (m *Model) leaveContent() {
	m.focus = FocusTabBar
	m.keybinds.ClearMultiKeyState(m.contentContext())
	switch m.activeTab {
	case TabPeers:
		m.peers.closePrompt()
	case TabRPC, TabWallet:
		b := m.browser(m.activeTab)
		b.cancelInput()
		b.pane = paneMethods
	}
}

// inputActive reports whether a text input inside the content owns keys.
func (m *Model) inputActive() bool {
	switch m.activeTab {
	case TabPeers:
		return m.peers.prompt
	case TabRPC, TabWallet:
		return m.browser(m.activeTab).input != inputNone
	}
	return false
}

func (m *Model) handleInputKeys(msg tea.KeyMsg) tea.Cmd {
	switch m.activeTab {
	case TabPeers:
		return m.handlePeerPromptKeys(msg)
	case TabRPC, TabWallet:
		return m.handleBrowserInputKeys(m.activeTab, msg)
	}
	return nil
}

func (m *Model) handleDashboardAction(action keybinds.Action) {
	switch action {
	case keybinds.ActionNavigateDown:
		m.dashOffset++
	case keybinds.ActionNavigateUp:
		if m.dashOffset > 0 {
			m.dashOffset--
		}
	case keybinds.ActionGoToTop:
		m.dashOffset = 0
	case keybinds.ActionPageDown:
		m.dashOffset += m.contentHeight() / 2
	case keybinds.ActionPageUp:
		m.dashOffset = max(0, m.dashOffset-m.contentHeight()/2)
	}
}

// handlePopupKeys gives the open popup exclusive input.
func (m *Model) handlePopupKeys(msg tea.KeyMsg) tea.Cmd {
	switch m.popup {
	case PopupSearch:
		return m.handleSearchPopupKeys(msg)
	case PopupWallets:
		return m.handleWalletPopupKeys(msg)
	case PopupHistory:
		return m.handleHistoryPopupKeys(msg)
	default:
		return m.handleViewerKeys(msg)
	}
}

func (m *Model) closePopup() {
	m.popup = PopupNone
	m.popupInput.Blur()
	m.keybinds.ClearMultiKeyState(keybinds.ContextModal)
	m.keybinds.ClearMultiKeyState(keybinds.ContextViewer)
}

func (m *Model) openSearchPopup() tea.Cmd {
	m.popup = PopupSearch
	m.popupInput.SetValue("")
	return m.popupInput.Focus()
}

func (m *Model) handleSearchPopupKeys(msg tea.KeyMsg) tea.Cmd {
	action, _ := m.keybinds.Match(keybinds.ContextTextInput, msg.String())
	switch action {
	case keybinds.ActionTextCancel:
		m.closePopup()
		return nil

	case keybinds.ActionTextSubmit:
		query := m.popupInput.Value()
		m.closePopup()
		return m.startSearch(query)

	case keybinds.ActionTextPaste:
		if text, err := clipboard.ReadAll(); err == nil {
			m.popupInput.SetValue(m.popupInput.Value() + text)
			m.popupInput.CursorEnd()
		}
		return nil
	}

	var cmd tea.Cmd
	m.popupInput, cmd = m.popupInput.Update(msg)
	return cmd
}

func (m *Model) openWalletPopup() tea.Cmd {
	m.popup = PopupWallets
	m.walletList = nil
	return m.fetchWallets()
}

func (m *Model) handleWalletPopupKeys(msg tea.KeyMsg) tea.Cmd {
	action, ok, _ := m.keybinds.MatchMultiKey(keybinds.ContextModal, msg.String())
	if !ok {
		return nil
	}

	switch action {
	case keybinds.ActionCloseModal:
		m.closePopup()
	case keybinds.ActionConfirm:
		if m.walletCursor >= len(m.walletList) {
			return nil
		}
		m.wallet = m.walletList[m.walletCursor]
		m.closePopup()
		return m.setStatusMessage(fmt.Sprintf("wallet %q selected", m.wallet))
	default:
		m.walletCursor = moveCursor(m.walletCursor, len(m.walletList), action, m.contentHeight())
	}
	return nil
}

func (m *Model) openHistoryPopup() tea.Cmd {
	if m.journal == nil {
		return m.setErrorMessage("call journal is disabled (start with --journal)")
	}
	m.popup = PopupHistory
	m.history = nil
	m.historyErr = nil
	return m.loadHistory()
}

// handleHistoryPopupKeys re-selects a journaled call and pre-fills its
// arguments.
func (m *Model) handleHistoryPopupKeys(msg tea.KeyMsg) tea.Cmd {
	action, ok, _ := m.keybinds.MatchMultiKey(keybinds.ContextModal, msg.String())
	if !ok {
		return nil
	}

	switch action {
	case keybinds.ActionCloseModal:
		m.closePopup()
	case keybinds.ActionConfirm:
		if m.historyIdx >= len(m.history) {
			return nil
		}
		e := m.history[m.historyIdx]
		m.closePopup()

		tab := TabRPC
		if e.Category == catalog.Wallet.String() {
			tab = TabWallet
			if e.Wallet != "" {
				m.wallet = e.Wallet
			}
		}
		b := m.browser(tab)
		if !b.selectMethod(e.Method) {
			return m.setErrorMessage(fmt.Sprintf("%s is not in the method list", e.Method))
		}
		m.activeTab = tab
		m.focus = FocusContent
		return b.openArgs(e.Args)
	default:
		m.historyIdx = moveCursor(m.historyIdx, len(m.history), action, m.contentHeight())
	}
	return nil
}

func (m *Model) openViewer(p Popup, title, text string) {
	m.popup = p
	m.popupTitle = title
	m.popupText = text
	m.popupView.GotoTop()
}

// handleViewerKeys scrolls the read-only popups.
func (m *Model) handleViewerKeys(msg tea.KeyMsg) tea.Cmd {
	action, ok, _ := m.keybinds.MatchMultiKey(keybinds.ContextViewer, msg.String())
	if !ok {
		return nil
	}

	switch action {
	case keybinds.ActionCloseModal:
		m.closePopup()
	case keybinds.ActionCopy:
		return m.copyToClipboard(m.popupCopyText(), "copied")
	default:
		scrollViewport(&m.popupView, action)
	}
	return nil
}

func (m *Model) popupCopyText() string {
	switch m.popup {
	case PopupPeerDetail:
		if rec, ok := m.peers.selected(); ok {
			return prettyJSON(rec)
		}
	case PopupBlock:
		return m.blockHash
	}
	return ""
}

func (m *Model) copyToClipboard(text, what string) tea.Cmd {
	if text == "" {
		return m.setErrorMessage("nothing to copy")
	}
	if err := clipboard.WriteAll(text); err != nil {
		return m.setErrorMessage(fmt.Sprintf("clipboard: %v", err))
	}
	return m.setStatusMessage(what + " to clipboard")
}

// moveCursor applies a list navigation action. Empty lists stay at 0.
func moveCursor(cursor, n int, action keybinds.Action, page int) int {
	if n == 0 {
		return 0
	}
	if page < 1 {
		page = 1
	}
	switch action {
	case keybinds.ActionNavigateUp:
		cursor--
	case keybinds.ActionNavigateDown:
		cursor++
	case keybinds.ActionPageUp:
		cursor -= page
	case keybinds.ActionPageDown:
		cursor += page
	case keybinds.ActionGoToTop:
		cursor = 0
	case keybinds.ActionGoToBottom:
		cursor = n - 1
	}
	return max(0, min(cursor, n-1))
}
