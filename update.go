package main

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)

	case targetLoadedMsg:
		if m.state != stateLoading {
			return m, nil // flow was reset while the fetch was in flight
		}
		m.event = msg.event
		m.target = targetFromEvent(msg.event)
		m.state = stateArticle
		m.updateViewport()
		return m, tea.Batch(
			fetchProfileCmd(m.pool, m.relays, m.target.PubKey),
			fetchZapStatsCmd(m.pool, m.relays, m.target),
		)

	case profileResolvedMsg:
		if msg.PubKey == m.target.PubKey {
			m.authorMeta = msg.Meta
		}
		return m, nil

	case zapStatsMsg:
		if m.event == nil {
			return m, nil
		}
		m.stats = msg
		m.statsLoaded = true
		return m, nil

	case zapPreparedMsg:
		if m.state != statePreparing {
			return m, nil
		}
		m.invoices = msg.prepared.Invoices
		m.splitIgnored = msg.prepared.SplitIgnored
		m.selected = 0
		m.state = stateInvoices
		if m.splitIgnored {
			m.statusMsg = "split tags unusable, zapping the author with the full amount"
		}
		return m, nil

	case payResultMsg:
		return m.handlePayResult(msg)

	case nostrErrMsg:
		log.Printf("error: %v", msg.err)
		m.statusMsg = msg.err.Error()
		if m.state == stateLoading {
			m.state = stateInput
		}
		return m, nil
	}

	return m, nil
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	// Any key dismisses the QR overlay.
	if m.qrOverlay != "" {
		m.qrOverlay = ""
		return m, nil
	}

	switch m.state {
	case stateInput:
		switch msg.Type {
		case tea.KeyEnter:
			cmd := m.startTargetFetch(m.input.Value())
			return m, cmd
		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}

	case stateArticle:
		switch msg.String() {
		case "z":
			m.state = stateAmount
			m.input.SetValue(strconv.FormatInt(m.cfg.DefaultAmount, 10))
			m.input.Placeholder = "amount in sats"
			m.input.CursorEnd()
			return m, nil
		case "h":
			m.showHistory = !m.showHistory
			if m.showHistory {
				entries, err := loadZapHistory(m.cfg.HistoryFile, 20)
				if err != nil {
					m.statusMsg = err.Error()
				}
				m.history = entries
			}
			return m, nil
		case "esc", "q":
			m.state = stateInput
			m.resetFlow()
			m.input.SetValue("")
			m.input.Placeholder = "note1…, nevent1…, naddr1… or hex event id"
			return m, nil
		default:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case stateAmount:
		switch msg.Type {
		case tea.KeyEnter:
			sats, err := strconv.ParseInt(strings.TrimSpace(m.input.Value()), 10, 64)
			if err != nil || sats < 1 {
				m.statusMsg = "amount must be a positive number of sats"
				return m, nil
			}
			m.amountSats = sats
			m.statusMsg = ""
			m.state = stateComment
			m.input.SetValue(m.cfg.Comment)
			m.input.Placeholder = "optional comment"
			m.input.CursorEnd()
			return m, nil
		case tea.KeyEsc:
			m.state = stateArticle
			return m, nil
		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}

	case stateComment:
		switch msg.Type {
		case tea.KeyEnter:
			m.comment = strings.TrimSpace(m.input.Value())
			m.state = statePreparing
			z := newZapper(m.pool, m.relays, m.keys)
			return m, tea.Batch(m.spin.Tick, prepareZapCmd(z, m.target, m.event, m.amountSats, m.comment))
		case tea.KeyEsc:
			m.state = stateAmount
			m.input.SetValue(strconv.FormatInt(m.amountSats, 10))
			m.input.CursorEnd()
			return m, nil
		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}

	case stateInvoices:
		switch msg.String() {
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
			return m, nil
		case "down", "j":
			if m.selected < len(m.invoices)-1 {
				m.selected++
			}
			return m, nil
		case "enter":
			if !m.payableSelected() {
				return m, nil
			}
			inv := m.selectedInvoice()
			inv.Paying = true
			inv.Err = ""
			m.statusMsg = ""
			return m, tea.Batch(m.spin.Tick, payEntryCmd(m.cfg, m.selected, inv.Invoice))
		case "m":
			// Show the raw invoice QR without going through the channels.
			if inv := m.selectedInvoice(); inv != nil && inv.Invoice != "" {
				m.qrOverlay = renderQR(
					fmt.Sprintf("%d sats to %s", inv.AmountSats, m.resolveName(*inv)),
					"lightning:"+strings.ToUpper(inv.Invoice),
				)
			}
			return m, nil
		case "esc", "q":
			m.state = stateArticle
			return m, nil
		}
		return m, nil
	}

	return m, nil
}

// handlePayResult applies a settled dispatch outcome to exactly one entry.
// Results arriving after a flow reset are discarded.
func (m *model) handlePayResult(msg payResultMsg) (tea.Model, tea.Cmd) {
	if msg.Index < 0 || msg.Index >= len(m.invoices) {
		log.Printf("pay: discarding stale result for entry %d", msg.Index)
		return m, nil
	}
	inv := &m.invoices[msg.Index]
	inv.Paying = false

	outcome := msg.Outcome
	if outcome.Manual {
		// Terminal handoff: present the invoice for an external wallet.
		inv.Paid = true
		inv.PaidVia = "manual"
		inv.Err = ""
		m.qrOverlay = renderQR(
			fmt.Sprintf("%d sats to %s, pay with an external wallet", inv.AmountSats, m.resolveName(*inv)),
			"lightning:"+strings.ToUpper(inv.Invoice),
		)
		if len(outcome.Errors) > 0 {
			m.statusMsg = strings.Join(outcome.Errors, "; ")
		}
	} else {
		inv.Paid = true
		inv.PaidVia = outcome.Via
		inv.Err = ""
		m.statusMsg = fmt.Sprintf("paid %d sats via %s", inv.AmountSats, outcome.Via)
	}

	eventID := m.target.ID
	if m.target.Addressable() {
		eventID = m.target.Address()
	}
	appendZapHistory(m.cfg.HistoryFile, ZapHistoryEntry{
		Time:       time.Now(),
		Recipient:  inv.Recipient,
		AmountSats: inv.AmountSats,
		Via:        inv.PaidVia,
		EventID:    eventID,
		Comment:    m.comment,
	})

	return m, nil
}
