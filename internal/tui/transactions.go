package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/studiowebux/bitcoin-tui/internal/format"
	"github.com/studiowebux/bitcoin-tui/internal/keybinds"
	"github.com/studiowebux/bitcoin-tui/internal/search"
)

// txState holds the single active transaction search.
type txState struct {
	query     string
	seq       uint64
	searching bool
	result    *search.Result
	err       error
	view      viewport.Model
}

func (m *Model) handleTransactionsAction(action keybinds.Action) tea.Cmd {
	switch action {
	case keybinds.ActionOpenTxSearch:
		return m.openSearchPopup()
	case keybinds.ActionCopy:
		if m.tx.result == nil || m.tx.result.Kind == search.NotFound {
			return m.setErrorMessage("nothing to copy")
		}
		return m.copyToClipboard(m.tx.result.TxID, "txid copied")
	default:
		scrollViewport(&m.tx.view, action)
	}
	return nil
}

// txLines renders the search outcome as aligned label/value rows.
func (m *Model) txLines() string {
	tx := m.tx
	if tx.query == "" {
		return styleSubtle.Render("Press / to search a txid in the mempool and the chain.")
	}

	var sb strings.Builder
	sb.WriteString(styleSubtle.Render("Query: ") + tx.query + "\n\n")

	switch {
	case tx.searching:
		sb.WriteString(styleWarning.Render("Searching..."))
		return sb.String()
	case tx.err != nil:
		sb.WriteString(styleError.Render(tx.err.Error()))
		return sb.String()
	case tx.result == nil:
		return sb.String()
	}

	r := tx.result
	row := func(label, value string) {
		sb.WriteString(styleSubtle.Render(fmt.Sprintf("%-16s", label)) + value + "\n")
	}

	switch r.Kind {
	case search.NotFound:
		sb.WriteString(styleWarning.Render("Not found in the mempool or the chain."))
		sb.WriteString("\n" + styleSubtle.Render("Confirmed lookups need -txindex unless the wallet knows the transaction."))
		return sb.String()

	case search.Mempool:
		row("Status", styleWarning.Render("in mempool"))
		row("TxID", r.TxID)
		row("Fee", format.BTC(r.Fee))
		if r.ModifiedFee != r.Fee {
			row("Modified fee", format.BTC(r.ModifiedFee))
		}
		row("Fee rate", fmt.Sprintf("%.2f sat/vB", r.FeeRate))
		row("Size", fmt.Sprintf("%s vB (%s)", format.Number(r.VSize), format.Weight(r.Weight)))
		row("Ancestors", format.Number(r.AncestorCount))
		row("Descendants", format.Number(r.DescendantCount))
		if !r.Entered.IsZero() {
			row("First seen", format.RelativeTime(r.Entered.Unix(), m.now()))
		}

	case search.Confirmed:
		row("Status", styleSuccess.Render("confirmed"))
		row("TxID", r.TxID)
		row("Confirmations", format.Number(r.Confirmations))
		row("Block height", format.Number(r.BlockHeight))
		row("Block hash", r.BlockHash)
		if !r.BlockTime.IsZero() {
			row("Block age", format.Duration(int64(r.Age.Seconds()))+" ago")
		}
	}

	if len(r.Decoded) > 0 {
		sb.WriteString("\n" + styleHeading.Render("Decoded") + "\n")
		sb.WriteString(highlightJSON(prettyJSON(r.Decoded)))
	}
	return sb.String()
}

func (m Model) renderTransactions(width, height int) string {
	m.tx.view.Width = width
	m.tx.view.Height = height
	return m.tx.view.View()
}
