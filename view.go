package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/reflow/wordwrap"
	"github.com/nbd-wtf/go-nostr"
)

// updateLayout resizes the viewport and markdown renderer to the window.
func (m *model) updateLayout() {
	contentWidth := m.width - 2
	if contentWidth < 20 {
		contentWidth = 20
	}
	m.viewport.Width = contentWidth
	m.input.Width = contentWidth - 4

	headerHeight := lipgloss.Height(m.viewHeader())
	statusHeight := lipgloss.Height(m.viewStatusBar())
	contentHeight := m.height - headerHeight - statusHeight - 3
	if contentHeight < 1 {
		contentHeight = 1
	}
	m.viewport.Height = contentHeight

	m.mdRender = newMarkdownRenderer(contentWidth, m.mdStyle)
	if m.event != nil {
		m.updateViewport()
	}
}

// updateViewport renders the target event content into the viewport.
// Long-form articles are markdown; everything else is word-wrapped plain text.
func (m *model) updateViewport() {
	if m.event == nil {
		m.viewport.SetContent("")
		return
	}

	var content string
	if m.event.Kind == nostr.KindArticle {
		content = renderMarkdown(m.mdRender, m.event.Content)
	} else {
		content = wordwrap.String(m.event.Content, m.viewport.Width)
	}

	// Trim leading/trailing blank lines from glamour output. Strip ANSI
	// first since styled indentation counts as visible width.
	lines := strings.Split(content, "\n")
	for len(lines) > 0 && strings.TrimSpace(ansi.Strip(lines[0])) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(ansi.Strip(lines[len(lines)-1])) == "" {
		lines = lines[:len(lines)-1]
	}

	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.viewport.GotoTop()
}

func (m *model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	if m.qrOverlay != "" {
		hint := helpStyle.Render("press any key to close")
		overlay := lipgloss.JoinVertical(lipgloss.Center, m.qrOverlay, hint)
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, overlay)
	}

	header := m.viewHeader()
	statusBar := m.viewStatusBar()

	var body string
	switch m.state {
	case stateInput:
		body = m.viewInput("Zap a nostr event", "enter: fetch • ctrl+c: quit")
	case stateLoading:
		body = statsStyle.Render(m.spin.View() + " fetching event…")
	case stateArticle:
		body = m.viewArticle()
	case stateAmount:
		body = m.viewInput("Amount (sats)", "enter: next • esc: back")
	case stateComment:
		body = m.viewInput("Comment (optional)", "enter: prepare zap • esc: back")
	case statePreparing:
		body = statsStyle.Render(m.spin.View() + " resolving recipients and fetching invoices…")
	case stateInvoices:
		body = m.viewInvoices()
	}

	inner := lipgloss.JoinVertical(lipgloss.Left, header, body)
	contentHeight := m.height - lipgloss.Height(statusBar)
	main := lipgloss.NewStyle().Height(contentHeight).MaxHeight(contentHeight).Render(inner)

	return lipgloss.JoinVertical(lipgloss.Left, main, statusBar)
}

func (m *model) viewHeader() string {
	title := "voltage"
	if m.event != nil {
		if t := firstTagValue(m.event.Tags, "title"); t != "" {
			title = t
		} else {
			title = "event " + shortPK(m.event.ID)
		}
	}
	return headerStyle.Render("⚡ " + title)
}

func (m *model) viewInput(label, help string) string {
	return lipgloss.JoinVertical(lipgloss.Left,
		statsStyle.Render(label),
		"  "+m.input.View(),
		"",
		helpStyle.Render(help),
	)
}

func (m *model) viewArticle() string {
	author := shortPK(m.target.PubKey)
	if name := m.authorMeta.BestName(); name != "" {
		author = name
	}
	authorLine := "  " + authorStyle.Render("by "+author)
	if m.authorMeta.Lud16 != "" {
		authorLine += statsStyle.Render("(" + m.authorMeta.Lud16 + ")")
	}

	statsLine := statsStyle.Render(" …loading zaps")
	if m.statsLoaded {
		statsLine = statsStyle.Render(fmt.Sprintf(" ⚡ %d zaps · %d sats", m.stats.Count, m.stats.TotalMsat/1000))
	}

	parts := []string{authorLine, statsLine, m.viewport.View()}

	if m.showHistory {
		parts = append(parts, m.viewHistory())
	}

	parts = append(parts, helpStyle.Render("z: zap • h: history • ↑/↓: scroll • esc: new target • ctrl+c: quit"))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *model) viewHistory() string {
	if len(m.history) == 0 {
		return statsStyle.Render("no zap history yet")
	}
	var rows []string
	rows = append(rows, statsStyle.Render("RECENT ZAPS"))
	for _, e := range m.history {
		rows = append(rows, invoiceRowStyle.Render(fmt.Sprintf("%s  %6d sats  %-6s  %s",
			e.Time.Format("2006-01-02 15:04"), e.AmountSats, e.Via, shortPK(e.Recipient))))
	}
	return strings.Join(rows, "\n")
}

func (m *model) viewInvoices() string {
	var rows []string

	if m.splitIgnored {
		rows = append(rows, noticeStyle.Render("note: the event requested a split, but its zap tags were unusable"))
	} else if len(m.invoices) > 1 {
		rows = append(rows, statsStyle.Render(fmt.Sprintf("split between %d recipients", len(m.invoices))))
	}

	for i, inv := range m.invoices {
		icon := "○"
		detail := ""
		switch {
		case inv.Paying:
			icon = m.spin.View()
			detail = "paying…"
		case inv.Paid:
			icon = paidStyle.Render("✓")
			detail = paidStyle.Render(inv.PaidVia)
		case inv.Err != "":
			icon = errStyle.Render("✗")
			detail = errStyle.Render(inv.Err)
		case inv.Invoice != "":
			detail = "ready"
		}

		weight := ""
		if inv.Weight > 0 {
			weight = fmt.Sprintf(" (%d%%)", inv.Weight)
		}
		row := fmt.Sprintf("%s %-20s %7d sats%s  %s", icon, m.resolveName(inv), inv.AmountSats, weight, detail)
		if i == m.selected {
			rows = append(rows, invoiceSelectedStyle.Render(row))
		} else {
			rows = append(rows, invoiceRowStyle.Render(row))
		}
	}

	rows = append(rows, "", helpStyle.Render("enter: pay • m: show QR • ↑/↓: select • esc: back"))
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m *model) connectedRelayCount() int {
	count := 0
	m.pool.Relays.Range(func(_ string, relay *nostr.Relay) bool {
		if relay.IsConnected() {
			count++
		}
		return true
	})
	return count
}

func (m *model) viewStatusBar() string {
	connected := m.connectedRelayCount()
	total := len(m.relays)
	left := statusConnectedStyle.Render(fmt.Sprintf("● %d/%d relays", connected, total))
	if m.statusMsg != "" {
		left += "  " + m.statusMsg
	}
	right := m.keys.NPub

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 0 {
		gap = 0
	}

	return statusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}
