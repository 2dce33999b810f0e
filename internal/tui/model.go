package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/studiowebux/bitcoin-tui/internal/catalog"
	"github.com/studiowebux/bitcoin-tui/internal/engine"
	"github.com/studiowebux/bitcoin-tui/internal/journal"
	"github.com/studiowebux/bitcoin-tui/internal/keybinds"
	"github.com/studiowebux/bitcoin-tui/internal/poller"
	"github.com/studiowebux/bitcoin-tui/internal/rpc"
	"github.com/studiowebux/bitcoin-tui/internal/search"
	"github.com/studiowebux/bitcoin-tui/internal/zmq"
)

// Tab is one top-level panel.
type Tab int

const (
	TabDashboard Tab = iota
	TabPeers
	TabRPC
	TabWallet
	TabTransactions
	TabZmq
)

var tabNames = map[Tab]string{
	TabDashboard:    "Dashboard",
	TabPeers:        "Peers",
	TabRPC:          "RPC",
	TabWallet:       "Wallet",
	TabTransactions: "Transactions",
	TabZmq:          "ZMQ",
}

func (t Tab) String() string { return tabNames[t] }

// Focus is the navigation tier receiving input.
type Focus int

const (
	FocusTabBar Focus = iota
	FocusContent
)

// Popup is a modal that owns input until dismissed.
type Popup int

const (
	PopupNone Popup = iota
	PopupWallets
	PopupHistory
	PopupPeerDetail
	PopupQueryHelp
	PopupSearch
	PopupBlock
)

// History is the part of the call journal the TUI reads and writes.
type History interface {
	engine.Recorder
	Load(q journal.Query) ([]journal.Entry, error)
	SaveFilter(expression string) (bool, error)
	Filters(limit int) ([]string, error)
}

// EventSource is a started push-notification subscriber.
type EventSource interface {
	Addr() string
	Events() <-chan zmq.Event
	Err() error
}

// Options wires the model to the node. Caller and Catalog are required.
type Options struct {
	Caller       rpc.Caller
	Catalog      *catalog.Catalog
	Journal      History     // nil disables the history popup
	Events       EventSource // nil hides the ZMQ tab
	Keybinds     *keybinds.Registry
	Interval     time.Duration
	RecentBlocks int
	BackfillRate int // getblockstats calls per second
	ZMQBuffer    int
	Endpoint     string // shown in the header
}

// Model is the single mutable root of the application. Every mutation
// happens inside Update.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	caller   rpc.Caller
	engine   *engine.Engine
	poller   *poller.Poller
	searcher *search.Searcher
	journal  History
	events   EventSource
	keybinds *keybinds.Registry
	interval time.Duration
	endpoint string
	now      func() time.Time

	// Navigation
	tabs      []Tab
	activeTab Tab
	focus     Focus
	popup     Popup

	// Telemetry
	core        poller.Core
	slow        poller.Slow
	blocks      []poller.RecentBlock
	blocksErr   error
	polled      bool
	lastPoll    time.Time
	tipHeight   int64
	tipHash     string
	slowPending bool
	schedule    poller.SlowSchedule
	inflight    map[poller.Class]bool
	pollSeq     map[poller.Class]uint64
	dashOffset  int

	// Per-tab substates
	peers   peersState
	rpcTab  *browserState
	walletB *browserState
	tx      txState
	zmq     zmqState

	// User calls
	wallet  string
	calling bool
	callTab Tab
	callSeq uint64
	spinner spinner.Model

	// Popups
	popupInput   textinput.Model
	popupView    viewport.Model
	popupTitle   string
	popupText    string
	walletList   []string
	walletCursor int
	walletsBusy  bool
	walletsErr   error
	history      []journal.Entry
	historyIdx   int
	historyErr   error
	blockHash    string

	// UI state
	width         int
	height        int
	statusMsg     string
	errorMsg      string // Truncated error for footer
	fullStatusMsg string
	fullErrorMsg  string
	quitting      bool
}

// New creates the model. ctx bounds every poll; cancelling it (or quitting)
// abandons in-flight telemetry requests.
func New(ctx context.Context, opts Options) Model {
	ctx, cancel := context.WithCancel(ctx)

	if opts.Keybinds == nil {
		opts.Keybinds = keybinds.NewDefaultRegistry()
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.ZMQBuffer <= 0 {
		opts.ZMQBuffer = 256
	}

	// A nil *journal.Manager must not become a non-nil Recorder.
	var recorder engine.Recorder
	if opts.Journal != nil {
		recorder = opts.Journal
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styleWarning

	m := Model{
		ctx:        ctx,
		cancel:     cancel,
		caller:     opts.Caller,
		engine:     engine.New(opts.Caller, recorder),
		poller:     poller.New(opts.Caller, poller.Options{RecentBlocks: opts.RecentBlocks, Rate: opts.BackfillRate}),
		searcher:   search.NewSearcher(opts.Caller),
		journal:    opts.Journal,
		events:     opts.Events,
		keybinds:   opts.Keybinds,
		interval:   opts.Interval,
		endpoint:   opts.Endpoint,
		now:        time.Now,
		tabs:       []Tab{TabDashboard, TabPeers, TabRPC, TabWallet, TabTransactions},
		activeTab:  TabDashboard,
		focus:      FocusTabBar,
		inflight:   make(map[poller.Class]bool),
		pollSeq:    make(map[poller.Class]uint64),
		peers:      newPeersState(),
		rpcTab:     newBrowserState(opts.Catalog.ByCategory(catalog.General)),
		walletB:    newBrowserState(opts.Catalog.ByCategory(catalog.Wallet)),
		spinner:    sp,
		popupInput: newTextInput("txid"),
		popupView:  viewport.New(80, 20),
		zmq:        newZmqState(opts.ZMQBuffer),
	}
	if opts.Events != nil {
		m.tabs = append(m.tabs, TabZmq)
		m.zmq.enabled = true
		m.zmq.connected = true
	}
	return m
}

// Init starts the first poll, the tick and the push listener.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.pollCore(), m.tick(), m.waitForEvent())
}

// Cleanup cancels pending polls. In-flight user calls run to completion on
// their own context.
func (m *Model) Cleanup() {
	m.quitting = true
	m.cancel()
}

// Update applies exactly one event.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmd = m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		cmd = m.handleTick()

	case coreMsg:
		cmd = m.handleCore(msg)

	case slowMsg:
		m.handleSlow(msg)

	case blocksMsg:
		m.handleBlocks(msg)

	case zmqEventMsg:
		cmd = m.handleZmqEvent(msg)

	case zmqClosedMsg:
		cmd = m.handleZmqClosed()

	case callResultMsg:
		cmd = m.handleCallResult(msg)

	case walletsMsg:
		m.handleWallets(msg)

	case searchMsg:
		m.handleSearch(msg)

	case blockMsg:
		m.handleBlock(msg)

	case historyMsg:
		m.handleHistory(msg)

	case filterMsg:
		cmd = m.handleFilter(msg)

	case spinner.TickMsg:
		if m.calling {
			m.spinner, cmd = m.spinner.Update(msg)
		}

	case clearStatusMsg:
		m.statusMsg = ""
		m.fullStatusMsg = ""

	case clearErrorMsg:
		m.errorMsg = ""
		m.fullErrorMsg = ""

	case errorMsg:
		cmd = m.setErrorMessage(string(msg))
	}

	m.syncViews()
	return m, cmd
}

// View renders the current state. It never mutates the model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Initializing..."
	}

	switch m.popup {
	case PopupWallets:
		return m.renderWalletPopup()
	case PopupHistory:
		return m.renderHistoryPopup()
	case PopupPeerDetail, PopupQueryHelp, PopupBlock:
		return m.renderViewerPopup()
	case PopupSearch:
		return m.renderSearchPopup()
	}
	return m.renderMain()
}

// ActiveTab returns the visible tab.
func (m *Model) ActiveTab() Tab { return m.activeTab }

// Focus returns the navigation tier receiving input.
func (m *Model) Focus() Focus { return m.focus }

// Popup returns the open modal, if any.
func (m *Model) Popup() Popup { return m.popup }

// statusTimeout is how long footer messages stay visible.
const statusTimeout = 6 * time.Second

func truncateMessage(msg string) string {
	if len(msg) > 100 {
		return msg[:97] + "..."
	}
	return msg
}

func (m *Model) setStatusMessage(msg string) tea.Cmd {
	m.fullStatusMsg = msg
	m.statusMsg = truncateMessage(msg)
	return tea.Tick(statusTimeout, func(time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}

func (m *Model) setErrorMessage(msg string) tea.Cmd {
	m.fullErrorMsg = msg
	m.errorMsg = truncateMessage(msg)
	return tea.Tick(statusTimeout, func(time.Time) tea.Msg {
		return clearErrorMsg{}
	})
}

func (m *Model) browser(t Tab) *browserState {
	if t == TabWallet {
		return m.walletB
	}
	return m.rpcTab
}

func (m *Model) tabIndex(t Tab) int {
	for i, tab := range m.tabs {
		if tab == t {
			return i
		}
	}
	return -1
}

// Run starts the program on the alternate screen.
func Run(ctx context.Context, opts Options) error {
	m := New(ctx, opts)
	defer m.Cleanup()

	p := tea.NewProgram(&m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
