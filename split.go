package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nbd-wtf/go-nostr"
)

// SplitRecipient is one parsed "zap" tag of the target event:
// ["zap", <pubkey>, <relay hint>, <weight>].
type SplitRecipient struct {
	PubKey string
	Weight int
	Relays []string
}

// SplitInvoice tracks the per-recipient state of a zap flow. Entries are
// created with their allocation and populated asynchronously as endpoint and
// invoice resolution completes; payment mutates only Paying/Paid/PaidVia/Err.
type SplitInvoice struct {
	Recipient  string
	Name       string // resolved display name, may stay empty
	Weight     int
	Relays     []string
	AmountSats int64
	Endpoint   string
	ZapRequest *nostr.Event
	Invoice    string
	Paying     bool
	Paid       bool
	PaidVia    string
	Err        string
}

// preparedZap is the settled result of a prepare invocation: a complete,
// stable invoice list delivered once, plus whether a requested split was
// ignored because its tags were unusable.
type preparedZap struct {
	Invoices     []SplitInvoice
	SplitIgnored bool
}

type zapPreparedMsg struct{ prepared preparedZap }

// parseSplitRecipients extracts valid split recipients from the event's zap
// tags. Tags with an empty or malformed pubkey, or a weight outside [0,100],
// are rejected rather than silently defaulted.
func parseSplitRecipients(tags nostr.Tags) []SplitRecipient {
	var recipients []SplitRecipient
	for _, tag := range tags {
		if len(tag) < 2 || tag[0] != "zap" {
			continue
		}
		if !isHex64(tag[1]) {
			log.Printf("split: rejecting zap tag with bad pubkey %q", tag[1])
			continue
		}
		r := SplitRecipient{PubKey: tag[1]}
		if len(tag) >= 3 && tag[2] != "" {
			r.Relays = []string{tag[2]}
		}
		if len(tag) >= 4 && tag[3] != "" {
			w, err := strconv.Atoi(tag[3])
			if err != nil || w < 0 || w > 100 {
				log.Printf("split: rejecting zap tag with bad weight %q", tag[3])
				continue
			}
			r.Weight = w
		}
		recipients = append(recipients, r)
	}
	return recipients
}

// splitAllocation distributes total sats across weights using floor division.
// The remainder goes entirely to the first maximum-weight entry, so the
// allocations always sum to exactly total. Zero and negative weights get 0.
func splitAllocation(total int64, weights []int) []int64 {
	allocs := make([]int64, len(weights))

	var totalWeight int64
	for _, w := range weights {
		if w > 0 {
			totalWeight += int64(w)
		}
	}
	if totalWeight <= 0 {
		return allocs
	}

	var sum int64
	maxIdx := 0
	for i, w := range weights {
		if w > 0 {
			allocs[i] = total * int64(w) / totalWeight
			sum += allocs[i]
		}
		if w > weights[maxIdx] {
			maxIdx = i
		}
	}
	allocs[maxIdx] += total - sum
	return allocs
}

// zapper runs the zap pipeline. The resolution steps are struct fields so
// tests can stub network access; newZapper wires the real implementations.
type zapper struct {
	pool   *nostr.SimplePool
	relays []string
	keys   Keys

	resolveProfile  func(ctx context.Context, relays []string, pubkey string) (ProfileMetadata, error)
	resolveEndpoint func(ctx context.Context, meta ProfileMetadata) (string, error)
	requestInvoice  func(ctx context.Context, callback string, amountMsat int64, zapRequestJSON []byte) (string, error)
}

func newZapper(pool *nostr.SimplePool, relays []string, keys Keys) *zapper {
	z := &zapper{pool: pool, relays: relays, keys: keys}
	z.resolveProfile = func(ctx context.Context, relays []string, pubkey string) (ProfileMetadata, error) {
		return fetchProfile(ctx, pool, relays, pubkey)
	}
	z.resolveEndpoint = getZapEndpoint
	z.requestInvoice = fetchInvoice
	return z
}

// prepare computes the split allocation for the target event and resolves
// one invoice per recipient concurrently. A target with fewer than two
// effective zap tags, or a zero total weight, falls back to a single
// full-amount zap to the event author.
func (z *zapper) prepare(ctx context.Context, target ZapTarget, evt *nostr.Event, amountSats int64, comment string) preparedZap {
	if amountSats < 1 {
		amountSats = 1
	}

	recipients := parseSplitRecipients(evt.Tags)
	var totalWeight int
	for _, r := range recipients {
		totalWeight += r.Weight
	}

	zapTagCount := 0
	for _, tag := range evt.Tags {
		if len(tag) >= 2 && tag[0] == "zap" {
			zapTagCount++
		}
	}

	splitRequested := zapTagCount >= 2
	splitUsable := len(recipients) >= 2 && totalWeight > 0

	var invoices []SplitInvoice
	if splitRequested && splitUsable {
		weights := make([]int, len(recipients))
		for i, r := range recipients {
			weights[i] = r.Weight
		}
		allocs := splitAllocation(amountSats, weights)
		for i, r := range recipients {
			// Weight-0 entries contribute nothing and get no invoice.
			if r.Weight <= 0 {
				continue
			}
			invoices = append(invoices, SplitInvoice{
				Recipient:  r.PubKey,
				Weight:     r.Weight,
				Relays:     r.Relays,
				AmountSats: allocs[i],
			})
		}
	} else {
		invoices = []SplitInvoice{{
			Recipient:  evt.PubKey,
			AmountSats: amountSats,
		}}
	}

	// The original full split tag set is mirrored into every request.
	var splitTags nostr.Tags
	for _, tag := range evt.Tags {
		if len(tag) >= 2 && tag[0] == "zap" {
			splitTags = append(splitTags, tag)
		}
	}

	// Resolve every entry concurrently; one recipient's failure populates
	// only that entry's error. The list is returned after all settle.
	var wg sync.WaitGroup
	for i := range invoices {
		wg.Add(1)
		go func(inv *SplitInvoice) {
			defer wg.Done()
			z.prepareOne(ctx, inv, target, splitTags, comment)
		}(&invoices[i])
	}
	wg.Wait()

	return preparedZap{
		Invoices:     invoices,
		SplitIgnored: splitRequested && !splitUsable,
	}
}

// prepareOne resolves a single entry: profile, zap endpoint, signed request,
// invoice. Each step's failure terminates the entry with an error string.
func (z *zapper) prepareOne(ctx context.Context, inv *SplitInvoice, target ZapTarget, splitTags nostr.Tags, comment string) {
	if inv.AmountSats <= 0 {
		inv.Err = "amount rounds to zero sats"
		return
	}

	meta, err := z.resolveProfile(ctx, append(z.relays, inv.Relays...), inv.Recipient)
	if err != nil {
		inv.Err = err.Error()
		return
	}
	inv.Name = meta.BestName()

	endpoint, err := z.resolveEndpoint(ctx, meta)
	if err != nil {
		inv.Err = err.Error()
		return
	}
	inv.Endpoint = endpoint

	amountMsat := inv.AmountSats * 1000
	req := makeZapRequest(target, inv.Recipient, amountMsat, z.relays, comment, splitTags)
	if err := signZapRequest(&req, z.keys); err != nil {
		inv.Err = err.Error()
		return
	}
	inv.ZapRequest = &req

	reqJSON, err := json.Marshal(req)
	if err != nil {
		inv.Err = fmt.Sprintf("marshal zap request: %v", err)
		return
	}

	invoice, err := z.requestInvoice(ctx, endpoint, amountMsat, reqJSON)
	if err != nil {
		inv.Err = err.Error()
		return
	}
	inv.Invoice = invoice

	log.Printf("prepare: %d sats -> %s via %s", inv.AmountSats, shortPK(inv.Recipient), endpoint)
}

// prepareZapCmd runs the prepare flow inside a tea.Cmd.
func prepareZapCmd(z *zapper, target ZapTarget, evt *nostr.Event, amountSats int64, comment string) tea.Cmd {
	return func() tea.Msg {
		prepared := z.prepare(context.Background(), target, evt, amountSats, comment)
		return zapPreparedMsg{prepared: prepared}
	}
}
