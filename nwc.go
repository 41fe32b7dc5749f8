package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip04"
)

// NIP-47 (Nostr Wallet Connect) event kinds.
const (
	kindNWCRequest  = 23194
	kindNWCResponse = 23195
)

// nwcSession is a parsed nostr+walletconnect:// pairing. The secret is the
// client-side key used to sign requests and derive the shared nip04 secret.
type nwcSession struct {
	WalletPubKey string
	RelayURL     string
	Secret       string
}

// parseWalletConnectURI parses a NIP-47 pairing URI:
// nostr+walletconnect://<wallet pubkey>?relay=<url>&secret=<hex>
func parseWalletConnectURI(uri string) (*nwcSession, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parse wallet connect uri: %w", err)
	}
	if u.Scheme != "nostr+walletconnect" && u.Scheme != "nostrwalletconnect" {
		return nil, fmt.Errorf("unexpected scheme %q", u.Scheme)
	}

	pubkey := u.Host
	if pubkey == "" {
		// Some wallets emit the URI without the // authority part.
		pubkey, _, _ = strings.Cut(u.Opaque, "?")
	}
	if !isHex64(pubkey) {
		return nil, fmt.Errorf("invalid wallet pubkey %q", pubkey)
	}

	q := u.Query()
	relay := q.Get("relay")
	if relay == "" {
		return nil, fmt.Errorf("missing relay parameter")
	}
	secret := q.Get("secret")
	if !isHex64(secret) {
		return nil, fmt.Errorf("missing or invalid secret parameter")
	}

	return &nwcSession{
		WalletPubKey: strings.ToLower(pubkey),
		RelayURL:     relay,
		Secret:       strings.ToLower(secret),
	}, nil
}

func (s *nwcSession) name() string { return "nwc" }

// payInvoice sends a NIP-47 pay_invoice request over the session relay and
// waits for the wallet's response to this request event.
func (s *nwcSession) payInvoice(ctx context.Context, invoice string) error {
	relay, err := nostr.RelayConnect(ctx, s.RelayURL)
	if err != nil {
		return fmt.Errorf("connect wallet relay: %w", err)
	}
	defer relay.Close()

	shared, err := nip04.ComputeSharedSecret(s.WalletPubKey, s.Secret)
	if err != nil {
		return fmt.Errorf("compute shared secret: %w", err)
	}

	reqJSON, err := json.Marshal(struct {
		Method string `json:"method"`
		Params struct {
			Invoice string `json:"invoice"`
		} `json:"params"`
	}{
		Method: "pay_invoice",
		Params: struct {
			Invoice string `json:"invoice"`
		}{Invoice: invoice},
	})
	if err != nil {
		return err
	}

	content, err := nip04.Encrypt(string(reqJSON), shared)
	if err != nil {
		return fmt.Errorf("encrypt request: %w", err)
	}

	evt := nostr.Event{
		Kind:      kindNWCRequest,
		CreatedAt: nostr.Now(),
		Tags:      nostr.Tags{{"p", s.WalletPubKey}},
		Content:   content,
	}
	if err := evt.Sign(s.Secret); err != nil {
		return fmt.Errorf("sign request: %w", err)
	}

	// Subscribe before publishing so a fast wallet response is not missed.
	sub, err := relay.Subscribe(ctx, nostr.Filters{{
		Kinds:   []int{kindNWCResponse},
		Authors: []string{s.WalletPubKey},
		Tags:    nostr.TagMap{"e": []string{evt.ID}},
	}})
	if err != nil {
		return fmt.Errorf("subscribe responses: %w", err)
	}
	defer sub.Unsub()

	if err := relay.Publish(ctx, evt); err != nil {
		return fmt.Errorf("publish request: %w", err)
	}

	select {
	case resp, ok := <-sub.Events:
		if !ok {
			return fmt.Errorf("wallet relay closed subscription")
		}
		return parseNWCResponse(resp.Content, shared)
	case <-ctx.Done():
		return fmt.Errorf("wallet response: %w", ctx.Err())
	}
}

// parseNWCResponse decrypts and checks a kind-23195 response payload.
func parseNWCResponse(content string, shared []byte) error {
	plain, err := nip04.Decrypt(content, shared)
	if err != nil {
		return fmt.Errorf("decrypt response: %w", err)
	}

	var resp struct {
		ResultType string `json:"result_type"`
		Error      *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
		Result *struct {
			Preimage string `json:"preimage"`
		} `json:"result"`
	}
	if err := json.Unmarshal([]byte(plain), &resp); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != nil {
		return fmt.Errorf("wallet error %s: %s", resp.Error.Code, resp.Error.Message)
	}
	if resp.Result == nil {
		return fmt.Errorf("wallet returned neither result nor error")
	}
	return nil
}
