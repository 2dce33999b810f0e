package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/studiowebux/bitcoin-tui/internal/engine"
	"github.com/studiowebux/bitcoin-tui/internal/format"
	"github.com/studiowebux/bitcoin-tui/internal/journal"
	"github.com/studiowebux/bitcoin-tui/internal/metrics"
	"github.com/studiowebux/bitcoin-tui/internal/poller"
	"github.com/studiowebux/bitcoin-tui/internal/search"
	"github.com/studiowebux/bitcoin-tui/internal/zmq"
)

// Message types. Every asynchronous result re-enters Update as one of these.
type (
	tickMsg time.Time

	coreMsg struct {
		seq  uint64
		core poller.Core
	}

	slowMsg struct {
		seq  uint64
		slow poller.Slow
	}

	blocksMsg struct {
		seq    uint64
		blocks []poller.RecentBlock
		err    error
	}

	zmqEventMsg  zmq.Event
	zmqClosedMsg struct{}

	callResultMsg struct {
		seq    uint64
		tab    Tab
		result engine.Result
	}

	walletsMsg struct {
		wallets []string
		err     error
	}

	searchMsg struct {
		seq    uint64
		result search.Result
		err    error
	}

	blockMsg struct {
		hash string
		raw  json.RawMessage
		err  error
	}

	historyMsg struct {
		entries []journal.Entry
		err     error
	}

	filterMsg struct {
		tab    Tab
		expr   string
		output string
		err    error
	}

	clearStatusMsg struct{}
	clearErrorMsg  struct{}
	errorMsg       string
)

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// handleTick re-arms the timer and starts a core poll unless one is pending.
func (m *Model) handleTick() tea.Cmd {
	if m.quitting {
		return nil
	}
	return tea.Batch(m.tick(), m.pollCore())
}

// begin marks class in flight and returns its request id. ok is false when
// a request of that class is still pending; the tick is dropped, not queued.
func (m *Model) begin(class poller.Class) (uint64, bool) {
	if m.inflight[class] {
		metrics.RecordPollSkip(string(class))
		log.Debug().Str("class", string(class)).Msg("poll skipped, previous still in flight")
		return 0, false
	}
	m.inflight[class] = true
	m.pollSeq[class]++
	return m.pollSeq[class], true
}

// finish clears the in-flight flag. It reports false for a stale reply.
func (m *Model) finish(class poller.Class, seq uint64) bool {
	if m.quitting || seq != m.pollSeq[class] {
		return false
	}
	m.inflight[class] = false
	return true
}

func (m *Model) pollCore() tea.Cmd {
	seq, ok := m.begin(poller.ClassCore)
	if !ok {
		return nil
	}
	ctx, p := m.ctx, m.poller
	return func() tea.Msg {
		return coreMsg{seq: seq, core: p.Core(ctx)}
	}
}

func (m *Model) pollSlow() tea.Cmd {
	seq, ok := m.begin(poller.ClassSlow)
	if !ok {
		return nil
	}
	ctx, p := m.ctx, m.poller
	return func() tea.Msg {
		return slowMsg{seq: seq, slow: p.Slow(ctx)}
	}
}

func (m *Model) pollBlocks(tip int64, tipHash string) tea.Cmd {
	seq, ok := m.begin(poller.ClassBlocks)
	if !ok {
		return nil
	}
	ctx, p := m.ctx, m.poller
	have := append([]poller.RecentBlock(nil), m.blocks...)
	return func() tea.Msg {
		blocks, err := p.RecentBlocks(ctx, have, tip, tipHash)
		return blocksMsg{seq: seq, blocks: blocks, err: err}
	}
}

// handleCore folds a core poll into state and schedules the dependent classes.
func (m *Model) handleCore(msg coreMsg) tea.Cmd {
	if !m.finish(poller.ClassCore, msg.seq) {
		return nil
	}

	c := msg.core
	m.polled = true
	m.lastPoll = m.now()

	// Keep the last good value of each field; errors are shown alongside.
	prev := m.core
	m.core = c
	if c.BlockchainErr != nil {
		m.core.Blockchain = prev.Blockchain
	}
	if c.NetworkErr != nil {
		m.core.Network = prev.Network
	}
	if c.MempoolErr != nil {
		m.core.Mempool = prev.Mempool
	}
	if c.NetTotalsErr != nil {
		m.core.NetTotals = prev.NetTotals
	}
	if c.PeersErr == nil {
		m.peers.refresh(c.Peers)
	} else {
		m.core.Peers = prev.Peers
	}

	var cmds []tea.Cmd
	if c.Failed() {
		cmds = append(cmds, m.setErrorMessage(fmt.Sprintf("node unreachable: %v", c.FirstErr())))
	}

	if c.BlockchainErr == nil {
		tip, hash := c.Blockchain.Blocks, c.Blockchain.BestBlockHash
		if tip != m.tipHeight || hash != m.tipHash {
			// Stays set until a slow poll actually starts.
			m.slowPending = true
		}
		m.tipHeight, m.tipHash = tip, hash
		if m.schedule.Due(m.slowPending) {
			if cmd := m.pollSlow(); cmd != nil {
				m.slowPending = false
				cmds = append(cmds, cmd)
			}
		} else {
			m.schedule.Tick()
		}
		// Derived from state, so a backfill skipped while another was in
		// flight is issued on a later poll.
		if m.poller.Stale(m.blocks, tip, hash) {
			cmds = append(cmds, m.pollBlocks(tip, hash))
		}
	}
	return tea.Batch(cmds...)
}

func (m *Model) handleSlow(msg slowMsg) {
	if !m.finish(poller.ClassSlow, msg.seq) {
		return
	}
	prev := m.slow
	m.slow = msg.slow
	if msg.slow.MiningErr != nil {
		m.slow.Mining = prev.Mining
	}
	if msg.slow.TipsErr != nil {
		m.slow.Tips = prev.Tips
	}
	m.schedule.Refreshed()
}

func (m *Model) handleBlocks(msg blocksMsg) {
	if !m.finish(poller.ClassBlocks, msg.seq) {
		return
	}
	m.blocksErr = msg.err
	if msg.err == nil {
		m.blocks = msg.blocks
	}
}

// waitForEvent blocks on the subscriber channel and delivers one event.
func (m *Model) waitForEvent() tea.Cmd {
	if m.events == nil {
		return nil
	}
	ch := m.events.Events()
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return zmqClosedMsg{}
		}
		return zmqEventMsg(ev)
	}
}

func (m *Model) handleZmqEvent(msg zmqEventMsg) tea.Cmd {
	m.zmq.push(zmq.Event(msg))
	return m.waitForEvent()
}

// handleZmqClosed disables the live indicator. The rest of the program keeps
// running on polls.
func (m *Model) handleZmqClosed() tea.Cmd {
	m.zmq.connected = false
	if m.quitting {
		return nil
	}
	m.zmq.err = m.events.Err()
	if m.zmq.err == nil {
		return m.setErrorMessage("ZMQ subscriber stopped")
	}
	return m.setErrorMessage(fmt.Sprintf("ZMQ disconnected: %v", m.zmq.err))
}

// dispatchCall sends a prepared user call. Only one user call runs at a
// time; a second one is rejected as busy.
func (m *Model) dispatchCall(tab Tab, p engine.Prepared, rawArgs string) tea.Cmd {
	if m.calling {
		return m.setErrorMessage(fmt.Sprintf("busy: %s is still running", m.browser(m.callTab).pendingMethod))
	}
	m.calling = true
	m.callTab = tab
	m.callSeq++
	seq := m.callSeq

	b := m.browser(tab)
	b.beginCall(p.Method.Name)

	// Wallet actions are not abandoned on quit.
	ctx := context.WithoutCancel(m.ctx)
	eng := m.engine
	log.Debug().Str("method", p.Method.Name).Str("scope", p.Scope.String()).Msg("dispatching call")
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		return callResultMsg{seq: seq, tab: tab, result: eng.Dispatch(ctx, p, rawArgs)}
	})
}

func (m *Model) handleCallResult(msg callResultMsg) tea.Cmd {
	if msg.seq != m.callSeq {
		return nil
	}
	m.calling = false

	res := msg.result
	m.browser(msg.tab).setResult(res)
	if res.Failed() {
		log.Debug().Str("method", res.Method).Str("kind", res.Kind.String()).Int("code", res.Code).Msg("call failed")
		return m.setErrorMessage(fmt.Sprintf("%s: %s", res.Method, res.Message()))
	}
	log.Debug().Str("method", res.Method).Dur("elapsed", res.Elapsed).Msg("call complete")
	return m.setStatusMessage(fmt.Sprintf("%s completed in %s", res.Method, format.Elapsed(res.Elapsed)))
}

func (m *Model) fetchWallets() tea.Cmd {
	m.walletsBusy = true
	m.walletsErr = nil
	ctx, eng := m.ctx, m.engine
	return func() tea.Msg {
		wallets, err := eng.ListWallets(ctx)
		return walletsMsg{wallets: wallets, err: err}
	}
}

func (m *Model) handleWallets(msg walletsMsg) {
	m.walletsBusy = false
	m.walletsErr = msg.err
	m.walletList = msg.wallets
	m.walletCursor = 0
	for i, w := range msg.wallets {
		if w == m.wallet {
			m.walletCursor = i
		}
	}
}

// startSearch replaces any active search. A reply to an older search is
// dropped by its sequence number.
func (m *Model) startSearch(query string) tea.Cmd {
	m.activeTab = TabTransactions
	m.tx.seq++
	m.tx.query = query
	m.tx.searching = true
	m.tx.result = nil
	m.tx.err = nil
	m.tx.view.GotoTop()

	seq := m.tx.seq
	ctx, s := m.ctx, m.searcher
	return func() tea.Msg {
		res, err := s.Search(ctx, query)
		return searchMsg{seq: seq, result: res, err: err}
	}
}

func (m *Model) handleSearch(msg searchMsg) {
	if msg.seq != m.tx.seq {
		return
	}
	m.tx.searching = false
	if msg.err != nil {
		m.tx.err = msg.err
		return
	}
	res := msg.result
	m.tx.result = &res
}

func (m *Model) fetchBlock(hash string) tea.Cmd {
	m.blockHash = hash
	m.popupTitle = "Block " + shortHash(hash)
	m.popupText = "Loading..."
	ctx, p := m.ctx, m.poller
	return func() tea.Msg {
		raw, err := p.Block(ctx, hash)
		return blockMsg{hash: hash, raw: raw, err: err}
	}
}

func (m *Model) handleBlock(msg blockMsg) {
	if msg.hash != m.blockHash || m.popup != PopupBlock {
		return
	}
	if msg.err != nil {
		m.popupText = styleError.Render(msg.err.Error())
		return
	}
	m.popupText = highlightJSON(prettyJSON(msg.raw))
	m.popupView.GotoTop()
}

func (m *Model) loadHistory() tea.Cmd {
	j := m.journal
	return func() tea.Msg {
		entries, err := j.Load(journal.Query{Limit: 200})
		return historyMsg{entries: entries, err: err}
	}
}

func (m *Model) handleHistory(msg historyMsg) {
	m.history = msg.entries
	m.historyErr = msg.err
	m.historyIdx = 0
}

func shortHash(h string) string {
	if len(h) <= 16 {
		return h
	}
	return h[:8] + "…" + h[len(h)-8:]
}
