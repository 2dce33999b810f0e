package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/studiowebux/bitcoin-tui/internal/format"
	"github.com/studiowebux/bitcoin-tui/internal/poller"
	"github.com/studiowebux/bitcoin-tui/internal/version"
)

const unavailable = "unavailable"

// panel renders a titled block of label/value rows.
func panel(title string, width int, rows [][2]string, errText string) string {
	var sb strings.Builder
	sb.WriteString(styleTitle.Render(title))
	if errText != "" {
		sb.WriteString("\n" + styleError.Render(truncate(errText, width)))
	}
	for _, r := range rows {
		sb.WriteString("\n" + styleSubtle.Render(fmt.Sprintf("%-14s", r[0])) + r[1])
	}
	return lipgloss.NewStyle().Width(width).Render(sb.String())
}

func errText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// orUnavailable hides values that were never fetched successfully.
func orUnavailable(ok bool, v string) string {
	if !ok {
		return styleSubtle.Render(unavailable)
	}
	return v
}

func (m Model) blockchainPanel(width int) string {
	c := m.core
	bc := c.Blockchain
	ok := bc.Chain != ""

	progress := bc.VerificationProgress.Float()
	sync := fmt.Sprintf("%s %s", progressBar(progress, 20), format.Percent(progress))
	ibd := styleSuccess.Render("no")
	if bc.InitialBlockDownload {
		ibd = styleWarning.Render("yes")
	}

	rows := [][2]string{
		{"Chain", orUnavailable(ok, bc.Chain)},
		{"Blocks", orUnavailable(ok, format.Number(bc.Blocks))},
		{"Headers", orUnavailable(ok, format.Number(bc.Headers))},
		{"Sync", orUnavailable(ok, sync)},
		{"IBD", orUnavailable(ok, ibd)},
		{"Difficulty", orUnavailable(ok, format.Difficulty(bc.Difficulty.Float()))},
		{"Size on disk", orUnavailable(ok, format.Bytes(bc.SizeOnDisk))},
	}
	if ok && bc.Time > 0 {
		rows = append(rows, [2]string{"Last block", format.RelativeTime(bc.Time, m.now())})
	}
	if bc.Pruned {
		rows = append(rows, [2]string{"Pruned", "yes"})
	}
	return panel("Blockchain", width, rows, errText(c.BlockchainErr))
}

func (m Model) mempoolPanel(width int) string {
	mp := m.core.Mempool
	ok := mp.Loaded || mp.Size > 0

	usage := fmt.Sprintf("%s / %s", format.Bytes(mp.Usage), format.Bytes(mp.MaxMempool))
	if mp.MaxMempool > 0 {
		usage += " " + progressBar(float64(mp.Usage)/float64(mp.MaxMempool), 10)
	}
	rows := [][2]string{
		{"Transactions", orUnavailable(ok, format.Number(mp.Size))},
		{"Size", orUnavailable(ok, format.Bytes(mp.Bytes))},
		{"Memory", orUnavailable(ok, usage)},
		{"Total fees", orUnavailable(ok, format.BTC(mp.TotalFee.Float()))},
		{"Min fee", orUnavailable(ok, format.SatPerVB(mp.MempoolMinFee.Float()))},
		{"Min relay", orUnavailable(ok, format.SatPerVB(mp.MinRelayTxFee.Float()))},
	}
	return panel("Mempool", width, rows, errText(m.core.MempoolErr))
}

func (m Model) networkPanel(width int) string {
	n := m.core.Network
	ok := n.Version > 0
	t := m.core.NetTotals

	active := styleSuccess.Render("active")
	if !n.NetworkActive {
		active = styleError.Render("disabled")
	}
	rows := [][2]string{
		{"Client", orUnavailable(ok, n.Subversion)},
		{"Version", orUnavailable(ok, nodeVersion(n.Version))},
		{"Protocol", orUnavailable(ok, fmt.Sprintf("%d", n.ProtocolVersion))},
		{"Connections", orUnavailable(ok, fmt.Sprintf("%d (%d in / %d out)", n.Connections, n.ConnectionsIn, n.ConnectionsOut))},
		{"Network", orUnavailable(ok, active)},
		{"Relay fee", orUnavailable(ok, format.SatPerVB(n.RelayFee.Float()))},
		{"Received", orUnavailable(m.core.NetTotalsErr == nil && t.TimeMillis > 0, format.Bytes(t.TotalBytesRecv))},
		{"Sent", orUnavailable(m.core.NetTotalsErr == nil && t.TimeMillis > 0, format.Bytes(t.TotalBytesSent))},
	}
	var reachable []string
	for _, net := range n.Networks {
		if net.Reachable {
			reachable = append(reachable, net.Name)
		}
	}
	if len(reachable) > 0 {
		rows = append(rows, [2]string{"Reachable", strings.Join(reachable, ", ")})
	}
	return panel("Network", width, rows, errText(m.core.NetworkErr))
}

func nodeVersion(n int64) string {
	v := version.FromNode(n)
	if !version.Supported(n) {
		return v + " " + styleWarning.Render("(untested, need "+version.MinSupported+"+)")
	}
	return v
}

func (m Model) miningPanel(width int) string {
	s := m.slow
	ok := s.Mining.Chain != "" || s.Mining.Blocks > 0

	rows := [][2]string{
		{"Hashrate", orUnavailable(ok, format.Hashrate(s.Mining.NetworkHashPS.Float()))},
		{"Difficulty", orUnavailable(ok, format.Difficulty(s.Mining.Difficulty.Float()))},
	}
	for i, tip := range s.Tips {
		if i >= 4 {
			rows = append(rows, [2]string{"", styleSubtle.Render(fmt.Sprintf("+%d more tips", len(s.Tips)-i))})
			break
		}
		label := fmt.Sprintf("Tip %d", tip.Height)
		value := tip.Status
		if tip.BranchLen > 0 {
			value += fmt.Sprintf(" (branch %d)", tip.BranchLen)
		}
		if tip.Pool != "" {
			value += " " + styleSubtle.Render(tip.Pool)
		}
		rows = append(rows, [2]string{label, value})
	}
	err := s.MiningErr
	if err == nil {
		err = s.TipsErr
	}
	return panel("Mining", width, rows, errText(err))
}

// recentBlocksPanel draws one bar per block, scaled by transaction count.
func (m Model) recentBlocksPanel(width, rows int) string {
	blocks := m.blocks
	var sb strings.Builder
	sb.WriteString(styleTitle.Render(fmt.Sprintf("Recent blocks (%d)", len(blocks))))
	if m.blocksErr != nil {
		sb.WriteString("  " + styleError.Render(m.blocksErr.Error()))
	}
	if len(blocks) == 0 {
		sb.WriteString("\n" + styleSubtle.Render("loading..."))
		return sb.String()
	}

	shown := blocks
	if rows > 0 && len(shown) > rows {
		shown = shown[len(shown)-rows:]
	}

	var maxTxs int64 = 1
	for _, b := range shown {
		maxTxs = max(maxTxs, b.Txs)
	}

	const labelWidth = 40
	barWidth := max(5, width-labelWidth)
	now := m.now()
	for i := len(shown) - 1; i >= 0; i-- {
		b := shown[i]
		sb.WriteString("\n" + blockRow(b, maxTxs, barWidth, now.Unix()))
	}
	return sb.String()
}

func blockRow(b poller.RecentBlock, maxTxs int64, barWidth int, now int64) string {
	pool := b.Pool
	if pool == "" {
		pool = "unknown"
	}
	n := int(float64(b.Txs) / float64(maxTxs) * float64(barWidth))
	bar := styleWarning.Render(strings.Repeat("█", max(1, n)))
	age := ""
	if b.Time > 0 {
		age = format.Duration(now - b.Time)
	}
	return fmt.Sprintf("%-8s %-16s %6s %s %s",
		format.Number(b.Height), truncate(pool, 16), age, bar, styleSubtle.Render(format.Number(b.Txs)+" tx"))
}

func progressBar(f float64, width int) string {
	f = max(0, min(1, f))
	filled := int(f * float64(width))
	return styleSuccess.Render(strings.Repeat("█", filled)) + styleSubtle.Render(strings.Repeat("░", width-filled))
}

// renderDashboard lays out the panels in two columns above the block bars.
func (m Model) renderDashboard(width, height int) string {
	if !m.polled {
		return styleSubtle.Render("Waiting for the first poll...")
	}

	col := max(20, (width-2)/2)
	left := lipgloss.JoinVertical(lipgloss.Left, m.blockchainPanel(col), "", m.mempoolPanel(col))
	right := lipgloss.JoinVertical(lipgloss.Left, m.networkPanel(col), "", m.miningPanel(col))
	top := lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)

	var warnings []string
	warnings = append(warnings, m.core.Blockchain.Warnings...)
	warnings = append(warnings, m.core.Network.Warnings...)
	var warn string
	if len(warnings) > 0 {
		warn = "\n" + styleWarning.Render("⚠ "+strings.Join(dedupe(warnings), " | "))
	}

	blockRows := max(3, height-lipgloss.Height(top)-3)
	out := top + warn + "\n\n" + m.recentBlocksPanel(width, blockRows)

	lines := strings.Split(out, "\n")
	offset := min(m.dashOffset, max(0, len(lines)-1))
	return strings.Join(lines[offset:], "\n")
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
