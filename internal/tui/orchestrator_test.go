package tui

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/studiowebux/bitcoin-tui/internal/poller"
	"github.com/studiowebux/bitcoin-tui/internal/search"
	"github.com/studiowebux/bitcoin-tui/internal/zmq"
)

func TestPoll_SkippedWhileInFlight(t *testing.T) {
	m, _ := CreateTestModel(t)

	first := m.pollCore()
	if first == nil {
		t.Fatal("first poll should start")
	}
	if second := m.pollCore(); second != nil {
		t.Error("second poll must be skipped while the first is in flight")
	}
	AssertModelField(t, "pollSeq", m.pollSeq[poller.ClassCore], uint64(1))

	// The tick still re-arms the timer without starting a poll.
	if cmd := m.handleTick(); cmd == nil {
		t.Error("tick should re-arm")
	}
	AssertModelField(t, "pollSeq after tick", m.pollSeq[poller.ClassCore], uint64(1))

	drain(t, m, first)
	AssertModelField(t, "inflight", m.inflight[poller.ClassCore], false)
	AssertModelField(t, "polled", m.polled, true)

	if next := m.pollCore(); next == nil {
		t.Error("poll should start again once the previous one finished")
	}
}

func TestPoll_StaleReplyIgnored(t *testing.T) {
	m, _ := CreateTestModel(t)

	cmd := m.pollCore()
	msg := cmd().(coreMsg)

	m.Update(coreMsg{seq: msg.seq - 1, core: msg.core})
	AssertModelField(t, "polled after stale", m.polled, false)
	AssertModelField(t, "inflight after stale", m.inflight[poller.ClassCore], true)

	m.Update(msg)
	AssertModelField(t, "polled", m.polled, true)
	AssertModelField(t, "chain", m.core.Blockchain.Chain, "main")
}

func TestPoll_CoreSchedulesSlowAndBlocks(t *testing.T) {
	m, node := CreateTestModel(t)

	drain(t, m, m.pollCore())

	AssertModelField(t, "tipHeight", m.tipHeight, int64(100))
	AssertModelField(t, "getmininginfo", len(node.callsTo("getmininginfo")), 1)
	AssertModelField(t, "getchaintips", len(node.callsTo("getchaintips")), 1)
	AssertModelField(t, "getblockstats", len(node.callsTo("getblockstats")), 3)
	AssertModelField(t, "blocks", len(m.blocks), 3)
	for _, class := range []poller.Class{poller.ClassCore, poller.ClassSlow, poller.ClassBlocks} {
		AssertModelField(t, "inflight "+string(class), m.inflight[class], false)
	}

	// Same tip: neither the slow class nor the block window is refreshed.
	drain(t, m, m.pollCore())
	AssertModelField(t, "getmininginfo again", len(node.callsTo("getmininginfo")), 1)
	AssertModelField(t, "getblockstats again", len(node.callsTo("getblockstats")), 3)

	// New tip: both refresh, and only the new height is fetched.
	node.replies["getblockchaininfo"] = strings.Replace(node.replies["getblockchaininfo"], `"blocks":100`, `"blocks":101`, 1)
	drain(t, m, m.pollCore())
	AssertModelField(t, "getmininginfo on new tip", len(node.callsTo("getmininginfo")), 2)
	AssertModelField(t, "getblockstats on new tip", len(node.callsTo("getblockstats")), 4)
}

func setTip(node *fakeNode, height int64) {
	node.mu.Lock()
	defer node.mu.Unlock()
	node.replies["getblockchaininfo"] = fmt.Sprintf(`{"chain":"main","blocks":%d,"headers":%d,"warnings":""}`, height, height)
}

func lastBlockHeight(m *Model) int64 {
	if len(m.blocks) == 0 {
		return -1
	}
	return m.blocks[len(m.blocks)-1].Height
}

func TestPoll_TipChangeDuringBackfillCatchesUp(t *testing.T) {
	m, node := CreateTestModel(t)
	drain(t, m, m.pollCore())
	AssertModelField(t, "last block", lastBlockHeight(m), int64(100))

	// A backfill to 101 is still running when the tip moves to 102.
	setTip(node, 101)
	backfill := m.pollBlocks(101, "")
	if backfill == nil {
		t.Fatal("backfill should start")
	}
	setTip(node, 102)
	drain(t, m, m.pollCore())
	AssertModelField(t, "tipHeight", m.tipHeight, int64(102))
	AssertModelField(t, "blocks in flight", m.inflight[poller.ClassBlocks], true)

	drain(t, m, backfill)
	AssertModelField(t, "last block after backfill", lastBlockHeight(m), int64(101))

	// The next poll sees the same tip but the window is still behind it.
	drain(t, m, m.pollCore())
	AssertModelField(t, "last block", lastBlockHeight(m), int64(102))
	AssertModelField(t, "window size", len(m.blocks), 3)

	calls := len(node.callsTo("getblockstats"))
	drain(t, m, m.pollCore())
	AssertModelField(t, "no refetch once current", len(node.callsTo("getblockstats")), calls)
}

func TestPoll_TipChangeDuringSlowPollIsKept(t *testing.T) {
	m, node := CreateTestModel(t)
	drain(t, m, m.pollCore())
	AssertModelField(t, "getmininginfo", len(node.callsTo("getmininginfo")), 1)

	slow := m.pollSlow()
	if slow == nil {
		t.Fatal("slow poll should start")
	}
	setTip(node, 101)
	drain(t, m, m.pollCore())
	AssertModelField(t, "slowPending", m.slowPending, true)

	drain(t, m, slow)
	AssertModelField(t, "getmininginfo after in-flight poll", len(node.callsTo("getmininginfo")), 2)

	// Same tip, but the refresh owed to the tip change still runs.
	drain(t, m, m.pollCore())
	AssertModelField(t, "getmininginfo on next poll", len(node.callsTo("getmininginfo")), 3)
	AssertModelField(t, "slowPending cleared", m.slowPending, false)

	drain(t, m, m.pollCore())
	AssertModelField(t, "getmininginfo settles", len(node.callsTo("getmininginfo")), 3)
}

func TestPoll_SlowRefreshesAfterQuietPolls(t *testing.T) {
	m, node := CreateTestModel(t)

	// One priming poll, SlowRefreshPolls quiet ones, then the due one.
	for i := 0; i < poller.SlowRefreshPolls+2; i++ {
		drain(t, m, m.pollCore())
	}
	AssertModelField(t, "getmininginfo", len(node.callsTo("getmininginfo")), 2)
}

func TestPoll_PartialFailureKeepsLastGoodValue(t *testing.T) {
	m, node := CreateTestModel(t)
	drain(t, m, m.pollCore())

	node.errs["getmempoolinfo"] = errors.New("connection reset")
	drain(t, m, m.pollCore())

	if m.core.MempoolErr == nil {
		t.Fatal("mempool error not recorded")
	}
	AssertModelField(t, "mempool size kept", m.core.Mempool.Size, int64(3))
	AssertModelField(t, "errorMsg", m.errorMsg, "")
	if !strings.Contains(m.View(), "connection reset") {
		t.Error("dashboard should show the per-panel error")
	}
}

func TestPoll_NodeUnreachable(t *testing.T) {
	m, node := CreateTestModel(t)
	drain(t, m, m.pollCore())

	for _, method := range []string{"getblockchaininfo", "getnetworkinfo", "getmempoolinfo", "getpeerinfo", "getnettotals"} {
		node.errs[method] = errors.New("connection refused")
	}
	drain(t, m, m.pollCore())

	if !strings.HasPrefix(m.errorMsg, "node unreachable") {
		t.Errorf("errorMsg = %q", m.errorMsg)
	}
	AssertModelField(t, "chain kept", m.core.Blockchain.Chain, "main")
	AssertModelField(t, "peers kept", len(m.peers.records), 2)
}

func TestPoll_QuitDropsReplies(t *testing.T) {
	m, _ := CreateTestModel(t)

	cmd := m.pollCore()
	m.Cleanup()
	m.Update(cmd())

	AssertModelField(t, "polled", m.polled, false)
	if m.handleTick() != nil {
		t.Error("no tick after quit")
	}
}

func TestPeers_QueryFiltersTable(t *testing.T) {
	m, _ := CreateTestModel(t)
	drain(t, m, m.pollCore())
	AssertModelField(t, "all peers", len(m.peers.order), 2)

	press(t, m, "2", "enter", ":", "where inbound == true", "enter")

	AssertModelField(t, "prompt closed", m.peers.prompt, false)
	AssertModelField(t, "focus", m.Focus(), FocusContent)
	AssertModelField(t, "matching", len(m.peers.order), 1)

	rec, ok := m.peers.selected()
	if !ok || !strings.Contains(string(rec), "10.0.0.1") {
		t.Errorf("selected = %s", rec)
	}

	// The query survives a refresh.
	drain(t, m, m.pollCore())
	AssertModelField(t, "matching after refresh", len(m.peers.order), 1)

	press(t, m, "x")
	AssertModelField(t, "cleared", len(m.peers.order), 2)
}

func TestPeers_SyntaxErrorKeepsPromptOpen(t *testing.T) {
	m, _ := CreateTestModel(t)
	drain(t, m, m.pollCore())

	press(t, m, "2", "enter", ":", "where ==", "enter")

	AssertModelField(t, "prompt", m.peers.prompt, true)
	if m.peers.queryErr == "" {
		t.Error("expected a query error")
	}
	AssertModelField(t, "unfiltered", len(m.peers.order), 2)
}

func TestPeers_TabCompletesField(t *testing.T) {
	m, _ := CreateTestModel(t)
	drain(t, m, m.pollCore())

	press(t, m, "2", "enter", ":", "where inb", "tab")

	AssertModelField(t, "completed", m.peers.input.Value(), "where inbound")
	AssertModelField(t, "activeTab", m.ActiveTab(), TabPeers)
}

func TestPeers_TabCompletesAfterMultibyteText(t *testing.T) {
	m, _ := CreateTestModel(t)
	drain(t, m, m.pollCore())

	press(t, m, "2", "enter", ":", `where subver ~= "Sätoshi" and inb`, "tab")

	want := `where subver ~= "Sätoshi" and inbound`
	AssertModelField(t, "completed", m.peers.input.Value(), want)
	AssertModelField(t, "cursor", m.peers.input.Position(), utf8.RuneCountInString(want))
}

func TestCursorOffsets(t *testing.T) {
	s := "aé€b"
	tests := []struct {
		runes, bytes int
	}{
		{0, 0},
		{1, 1},
		{2, 3},
		{3, 6},
		{4, 7},
	}
	for _, tt := range tests {
		AssertModelField(t, fmt.Sprintf("byteOffset(%d)", tt.runes), byteOffset(s, tt.runes), tt.bytes)
		AssertModelField(t, fmt.Sprintf("runeOffset(%d)", tt.bytes), runeOffset(s, tt.bytes), tt.runes)
	}
	AssertModelField(t, "byteOffset past end", byteOffset(s, 10), len(s))
	AssertModelField(t, "runeOffset past end", runeOffset(s, 99), 4)
}

func TestPeers_DetailPopup(t *testing.T) {
	m, _ := CreateTestModel(t)
	drain(t, m, m.pollCore())

	press(t, m, "2", "enter", "down", "enter")
	AssertModelField(t, "popup", m.Popup(), PopupPeerDetail)
	if !strings.Contains(m.popupTitle, "10.0.0.2") {
		t.Errorf("popupTitle = %q", m.popupTitle)
	}

	press(t, m, "esc")
	AssertModelField(t, "popup", m.Popup(), PopupNone)
	AssertModelField(t, "focus", m.Focus(), FocusContent)
}

func zmqEvent(kind zmq.Kind, n int) zmq.Event {
	return zmq.Event{Kind: kind, Hash: fmt.Sprintf("%064x", n), Received: time.Unix(1700000000, 0)}
}

func TestZmq_BufferBounded(t *testing.T) {
	ev := &fakeEvents{ch: make(chan zmq.Event)}
	m, _ := CreateTestModel(t, withEvents(ev, 3))

	for i := 0; i < 5; i++ {
		m.Update(zmqEventMsg(zmqEvent(zmq.HashTx, i)))
	}

	AssertModelField(t, "len", m.zmq.ring.Len(), 3)
	newest := m.zmq.ring.Newest()
	AssertModelField(t, "newest", newest[0].Hash, fmt.Sprintf("%064x", 4))
	AssertModelField(t, "oldest kept", newest[2].Hash, fmt.Sprintf("%064x", 2))
}

func TestZmq_CursorStaysOnEvent(t *testing.T) {
	ev := &fakeEvents{ch: make(chan zmq.Event)}
	m, _ := CreateTestModel(t, withEvents(ev, 10))

	for i := 0; i < 3; i++ {
		m.Update(zmqEventMsg(zmqEvent(zmq.HashTx, i)))
	}
	m.zmq.cursor = 1
	before, _ := m.zmq.selected()

	m.Update(zmqEventMsg(zmqEvent(zmq.HashBlock, 9)))
	after, _ := m.zmq.selected()
	AssertModelField(t, "same event", after.Hash, before.Hash)
}

func TestZmq_EnterOnTxSearches(t *testing.T) {
	ev := &fakeEvents{ch: make(chan zmq.Event)}
	m, node := CreateTestModel(t, withEvents(ev, 10))
	m.Update(zmqEventMsg(zmqEvent(zmq.HashTx, 7)))

	press(t, m, "6", "enter", "enter")

	AssertModelField(t, "activeTab", m.ActiveTab(), TabTransactions)
	AssertModelField(t, "focus", m.Focus(), FocusContent)
	if m.tx.result == nil {
		t.Fatal("search not completed")
	}
	AssertModelField(t, "kind", m.tx.result.Kind, search.Mempool)
	calls := node.callsTo("getmempoolentry")
	if len(calls) == 0 || calls[0].Params[0] != fmt.Sprintf("%064x", 7) {
		t.Errorf("getmempoolentry calls = %v", calls)
	}
}

func TestZmq_EnterOnBlockOpensPopup(t *testing.T) {
	ev := &fakeEvents{ch: make(chan zmq.Event)}
	m, node := CreateTestModel(t, withEvents(ev, 10))
	m.Update(zmqEventMsg(zmqEvent(zmq.HashBlock, 1)))

	press(t, m, "6", "enter", "enter")

	AssertModelField(t, "popup", m.Popup(), PopupBlock)
	AssertModelField(t, "activeTab", m.ActiveTab(), TabZmq)
	AssertModelField(t, "getblock", len(node.callsTo("getblock")), 1)
	if !strings.Contains(m.popupText, "height") {
		t.Errorf("popupText = %q", m.popupText)
	}
}

func TestZmq_ClosedDisablesLiveIndicator(t *testing.T) {
	ev := &fakeEvents{ch: make(chan zmq.Event), err: errors.New("dial tcp: connection refused")}
	m, _ := CreateTestModel(t, withEvents(ev, 10))

	_, cmd := m.Update(zmqClosedMsg{})
	if cmd == nil {
		t.Error("expected an error message command")
	}
	AssertModelField(t, "connected", m.zmq.connected, false)
	if !strings.Contains(m.errorMsg, "connection refused") {
		t.Errorf("errorMsg = %q", m.errorMsg)
	}

	// Polling keeps working.
	drain(t, m, m.pollCore())
	AssertModelField(t, "polled", m.polled, true)
}

func TestWaitForEvent_ClosedChannel(t *testing.T) {
	ev := &fakeEvents{ch: make(chan zmq.Event, 1)}
	m, _ := CreateTestModel(t, withEvents(ev, 10))

	ev.ch <- zmqEvent(zmq.HashTx, 1)
	close(ev.ch)

	wait := m.waitForEvent()
	if _, ok := wait().(zmqEventMsg); !ok {
		t.Fatal("expected an event")
	}
	if _, ok := wait().(zmqClosedMsg); !ok {
		t.Fatal("expected the closed message")
	}
}
