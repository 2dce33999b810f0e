package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/studiowebux/bitcoin-tui/internal/format"
	"github.com/studiowebux/bitcoin-tui/internal/keybinds"
	"github.com/studiowebux/bitcoin-tui/internal/zmq"
)

// zmqState is the bounded push-event log, newest first on screen.
type zmqState struct {
	enabled   bool
	connected bool
	err       error
	ring      *zmq.Ring
	cursor    int // index into Newest()
}

func newZmqState(capacity int) zmqState {
	return zmqState{ring: zmq.NewRing(capacity)}
}

// push appends an event. A cursor on the newest event follows new ones;
// one further down stays on the same event.
func (z *zmqState) push(ev zmq.Event) {
	z.ring.Push(ev)
	if z.cursor > 0 {
		z.cursor++
	}
	z.cursor = min(z.cursor, max(0, z.ring.Len()-1))
}

func (z *zmqState) selected() (zmq.Event, bool) {
	events := z.ring.Newest()
	if z.cursor < 0 || z.cursor >= len(events) {
		return zmq.Event{}, false
	}
	return events[z.cursor], true
}

// handleZmqAction jumps from an event to its detail: a transaction opens
// the Transactions tab with a search, a block opens the block popup.
func (m *Model) handleZmqAction(action keybinds.Action) tea.Cmd {
	switch action {
	case keybinds.ActionOpenDetail:
		ev, ok := m.zmq.selected()
		if !ok {
			return nil
		}
		if ev.Kind == zmq.HashBlock {
			m.openViewer(PopupBlock, "", "")
			return m.fetchBlock(ev.Hash)
		}
		cmd := m.startSearch(ev.Hash)
		m.focus = FocusContent
		return cmd

	case keybinds.ActionCopy:
		ev, ok := m.zmq.selected()
		if !ok {
			return m.setErrorMessage("nothing to copy")
		}
		return m.copyToClipboard(ev.Hash, "hash copied")

	default:
		m.zmq.cursor = moveCursor(m.zmq.cursor, m.zmq.ring.Len(), action, m.contentHeight())
	}
	return nil
}

func (m Model) renderZmq(width, height int) string {
	z := m.zmq
	tx, blocks := z.ring.Counts()

	status := styleSuccess.Render("● live")
	if !z.connected {
		status = styleError.Render("● disconnected")
		if z.err != nil {
			status += " " + styleSubtle.Render(z.err.Error())
		}
	}
	addr := ""
	if m.events != nil {
		addr = m.events.Addr()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s %s  %s  %s\n",
		styleTitle.Render("ZMQ"), status, styleSubtle.Render(addr),
		styleSubtle.Render(fmt.Sprintf("hashtx %d  hashblock %d  buffer %d/%d", tx, blocks, z.ring.Len(), z.ring.Cap()))))

	events := z.ring.Newest()
	if len(events) == 0 {
		sb.WriteString(styleSubtle.Render("waiting for events..."))
		return sb.String()
	}

	rows := max(1, height-1)
	start := 0
	if z.cursor >= rows {
		start = z.cursor - rows + 1
	}
	end := min(len(events), start+rows)
	now := m.now()
	for i := start; i < end; i++ {
		ev := events[i]
		kind := styleSubtle.Render(fmt.Sprintf("%-9s", ev.Kind))
		if ev.Kind == zmq.HashBlock {
			kind = styleWarning.Render(fmt.Sprintf("%-9s", ev.Kind))
		}
		seq := ""
		if ev.HasSeq {
			seq = fmt.Sprintf("#%d", ev.Seq)
		}
		line := fmt.Sprintf("%-8s %s %s %s", format.RelativeTime(ev.Received.Unix(), now), kind, ev.Hash, styleSubtle.Render(seq))
		if i == z.cursor && m.focus == FocusContent {
			line = styleSelected.Render(line)
		}
		sb.WriteString(line)
		if i < end-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
