package main

import (
	"context"
	"fmt"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// paymentChannel is one way of settling a BOLT11 invoice.
type paymentChannel interface {
	name() string
	payInvoice(ctx context.Context, invoice string) error
}

// payOutcome is the settled result of one dispatch: either a channel paid
// the invoice, or every channel failed and the invoice is handed off for
// manual payment. Manual handoff is a terminal success, not a failure.
type payOutcome struct {
	Via    string
	Manual bool
	Errors []string // per-channel failures, in attempt order
}

type payResultMsg struct {
	Index   int
	Outcome payOutcome
}

const payTimeout = 60 * time.Second

// dispatchPayment tries each channel in order. A channel failure is logged
// and falls through to the next; exhaustion ends in the manual handoff.
func dispatchPayment(ctx context.Context, channels []paymentChannel, invoice string) payOutcome {
	var outcome payOutcome
	for _, ch := range channels {
		chCtx, cancel := context.WithTimeout(ctx, payTimeout)
		err := ch.payInvoice(chCtx, invoice)
		cancel()
		if err == nil {
			log.Printf("pay: paid via %s", ch.name())
			outcome.Via = ch.name()
			return outcome
		}
		log.Printf("pay: %s failed: %v", ch.name(), err)
		outcome.Errors = append(outcome.Errors, fmt.Sprintf("%s: %v", ch.name(), err))
	}
	outcome.Via = "manual"
	outcome.Manual = true
	return outcome
}

// buildPaymentChannels assembles the fallback order from the current config:
// NWC wallet first, then a configured LND node. Called at dispatch time, not
// cached, since wallet connectivity can change between prepare and pay.
func buildPaymentChannels(cfg Config) []paymentChannel {
	var channels []paymentChannel
	if cfg.WalletConnect != "" {
		session, err := parseWalletConnectURI(cfg.WalletConnect)
		if err != nil {
			log.Printf("pay: unusable wallet_connect uri: %v", err)
		} else {
			channels = append(channels, session)
		}
	}
	if cfg.Lnd.RestURL != "" {
		channels = append(channels, lndNode{
			baseURL:     cfg.Lnd.RestURL,
			macaroonHex: cfg.Lnd.MacaroonHex,
		})
	}
	return channels
}

// payEntryCmd dispatches payment for one split entry inside a tea.Cmd.
func payEntryCmd(cfg Config, index int, invoice string) tea.Cmd {
	return func() tea.Msg {
		channels := buildPaymentChannels(cfg)
		outcome := dispatchPayment(context.Background(), channels, invoice)
		return payResultMsg{Index: index, Outcome: outcome}
	}
}
