package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"
)

// Keys holds the user's nostr key pair.
type Keys struct {
	SK   string
	PK   string
	NPub string
}

var errNoSigner = errors.New("no signer available")

const queryTimeout = 10 * time.Second

// Bubbletea message types for async nostr results.
type targetLoadedMsg struct{ event *nostr.Event }
type profileResolvedMsg struct {
	PubKey string
	Meta   ProfileMetadata
}
type zapStatsMsg struct {
	Count     int
	TotalMsat int64
}
type nostrErrMsg struct{ err error }

func (e nostrErrMsg) Error() string { return e.err.Error() }

// loadKeys reads the private key from the environment or the configured key
// file and derives the public key. An nsec-encoded key is accepted in both.
func loadKeys(cfg Config) (Keys, error) {
	raw := os.Getenv("NOSTR_PRIVATE_KEY")
	if raw == "" && cfg.PrivateKeyFile != "" {
		data, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return Keys{}, fmt.Errorf("read key file: %w", err)
		}
		raw = strings.TrimSpace(string(data))
	}
	if raw == "" {
		return Keys{}, fmt.Errorf("no private key: set NOSTR_PRIVATE_KEY or private_key_file")
	}

	sk := raw
	if strings.HasPrefix(raw, "nsec") {
		prefix, val, err := nip19.Decode(raw)
		if err != nil {
			return Keys{}, fmt.Errorf("failed to decode nsec: %w", err)
		}
		if prefix != "nsec" {
			return Keys{}, fmt.Errorf("expected nsec prefix, got %s", prefix)
		}
		sk = val.(string)
	}

	pk, err := nostr.GetPublicKey(sk)
	if err != nil {
		return Keys{}, fmt.Errorf("failed to derive public key: %w", err)
	}

	npub, err := nip19.EncodePublicKey(pk)
	if err != nil {
		return Keys{}, fmt.Errorf("failed to encode npub: %w", err)
	}

	return Keys{SK: sk, PK: pk, NPub: npub}, nil
}

// ProfileMetadata is the parsed content of a kind-0 event. Lud06/Lud16 carry
// the recipient's Lightning payment info (LNURL / lightning address).
type ProfileMetadata struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	About       string `json:"about"`
	Picture     string `json:"picture"`
	Lud06       string `json:"lud06"`
	Lud16       string `json:"lud16"`
}

// BestName returns the display name, falling back to name.
func (p ProfileMetadata) BestName() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Name
}

// parseProfileContent parses kind-0 event content into typed metadata.
func parseProfileContent(content string) (ProfileMetadata, error) {
	var meta ProfileMetadata
	if err := json.Unmarshal([]byte(content), &meta); err != nil {
		return meta, fmt.Errorf("parse profile: %w", err)
	}
	return meta, nil
}

// fetchProfile fetches and parses the kind-0 profile of a pubkey.
func fetchProfile(ctx context.Context, pool *nostr.SimplePool, relays []string, pubkey string) (ProfileMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	re := pool.QuerySingle(ctx, relays, nostr.Filter{
		Kinds:   []int{0},
		Authors: []string{pubkey},
	})
	if re == nil {
		return ProfileMetadata{}, fmt.Errorf("profile not found for %s", shortPK(pubkey))
	}
	return parseProfileContent(re.Content)
}

// fetchTargetEvent fetches the event referenced by a parsed target input.
func fetchTargetEvent(ctx context.Context, pool *nostr.SimplePool, relays []string, ref targetRef) (*nostr.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	re := pool.QuerySingle(ctx, append(relays, ref.Relays...), ref.filter())
	if re == nil {
		return nil, fmt.Errorf("event not found")
	}
	return re.Event, nil
}

// fetchTargetCmd loads the target event inside a tea.Cmd.
func fetchTargetCmd(pool *nostr.SimplePool, relays []string, ref targetRef) tea.Cmd {
	return func() tea.Msg {
		evt, err := fetchTargetEvent(context.Background(), pool, relays, ref)
		if err != nil {
			return nostrErrMsg{err}
		}
		log.Printf("fetchTarget: loaded kind %d event %s", evt.Kind, shortPK(evt.ID))
		return targetLoadedMsg{event: evt}
	}
}

// fetchProfileCmd resolves a kind-0 profile inside a tea.Cmd. Resolution
// failures only cost a display name, so they degrade to empty metadata.
func fetchProfileCmd(pool *nostr.SimplePool, relays []string, pubkey string) tea.Cmd {
	return func() tea.Msg {
		meta, err := fetchProfile(context.Background(), pool, relays, pubkey)
		if err != nil {
			log.Printf("fetchProfile: %v", err)
			return profileResolvedMsg{PubKey: pubkey, Meta: ProfileMetadata{}}
		}
		return profileResolvedMsg{PubKey: pubkey, Meta: meta}
	}
}

// fetchZapStatsCmd aggregates kind-9735 zap receipts for the target into a
// count and millisat total. Receipts are external read-only data; malformed
// ones are skipped.
func fetchZapStatsCmd(pool *nostr.SimplePool, relays []string, target ZapTarget) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		filter := nostr.Filter{
			Kinds: []int{kindZapReceipt},
			Limit: 500,
		}
		if target.Addressable() {
			filter.Tags = nostr.TagMap{"a": []string{target.Address()}}
		} else {
			filter.Tags = nostr.TagMap{"e": []string{target.ID}}
		}

		seen := make(map[string]bool)
		var count int
		var total int64
		for re := range pool.SubscribeMany(ctx, relays, filter) {
			if seen[re.ID] {
				continue
			}
			seen[re.ID] = true
			msat, err := receiptAmountMsat(re.Event)
			if err != nil {
				log.Printf("zapStats: skipping receipt %s: %v", shortPK(re.ID), err)
				continue
			}
			count++
			total += msat
		}

		log.Printf("zapStats: %d receipts, %d msat", count, total)
		return zapStatsMsg{Count: count, TotalMsat: total}
	}
}

// shortPK returns the first 8 characters of a public key for display.
func shortPK(pk string) string {
	if len(pk) > 8 {
		return pk[:8]
	}
	return pk
}
