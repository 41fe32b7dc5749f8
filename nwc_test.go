package main

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip04"
)

const (
	walletPK  = "eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"
	nwcSecret = "ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"
)

func TestParseWalletConnectURI(t *testing.T) {
	tests := []struct {
		name string
		uri  string
	}{
		{"with authority", "nostr+walletconnect://" + walletPK + "?relay=wss%3A%2F%2Frelay.wallet.example&secret=" + nwcSecret},
		{"opaque form", "nostr+walletconnect:" + walletPK + "?relay=wss%3A%2F%2Frelay.wallet.example&secret=" + nwcSecret},
		{"legacy scheme", "nostrwalletconnect://" + walletPK + "?relay=wss%3A%2F%2Frelay.wallet.example&secret=" + nwcSecret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := parseWalletConnectURI(tt.uri)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if s.WalletPubKey != walletPK {
				t.Errorf("pubkey = %q", s.WalletPubKey)
			}
			if s.RelayURL != "wss://relay.wallet.example" {
				t.Errorf("relay = %q", s.RelayURL)
			}
			if s.Secret != nwcSecret {
				t.Errorf("secret = %q", s.Secret)
			}
		})
	}
}

func TestParseWalletConnectURIRejects(t *testing.T) {
	tests := []struct {
		name string
		uri  string
	}{
		{"wrong scheme", "https://" + walletPK + "?relay=wss://r&secret=" + nwcSecret},
		{"bad pubkey", "nostr+walletconnect://nothex?relay=wss://r&secret=" + nwcSecret},
		{"missing relay", "nostr+walletconnect://" + walletPK + "?secret=" + nwcSecret},
		{"missing secret", "nostr+walletconnect://" + walletPK + "?relay=wss://r"},
		{"short secret", "nostr+walletconnect://" + walletPK + "?relay=wss://r&secret=abcd"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseWalletConnectURI(tt.uri); err == nil {
				t.Errorf("parse(%q) should fail", tt.uri)
			}
		})
	}
}

func nwcShared(t *testing.T) (clientSK string, walletSK string, shared []byte) {
	t.Helper()
	clientSK = nostr.GeneratePrivateKey()
	walletSK = nostr.GeneratePrivateKey()
	wpk, err := nostr.GetPublicKey(walletSK)
	if err != nil {
		t.Fatal(err)
	}
	shared, err = nip04.ComputeSharedSecret(wpk, clientSK)
	if err != nil {
		t.Fatal(err)
	}
	return clientSK, walletSK, shared
}

func encryptResponse(t *testing.T, shared []byte, payload string) string {
	t.Helper()
	content, err := nip04.Encrypt(payload, shared)
	if err != nil {
		t.Fatal(err)
	}
	return content
}

func TestParseNWCResponse(t *testing.T) {
	_, _, shared := nwcShared(t)

	tests := []struct {
		name    string
		payload string
		wantSub string
	}{
		{"success", `{"result_type":"pay_invoice","result":{"preimage":"00ff"}}`, ""},
		{"wallet error", `{"result_type":"pay_invoice","error":{"code":"INSUFFICIENT_BALANCE","message":"not enough funds"}}`, "not enough funds"},
		{"neither", `{"result_type":"pay_invoice"}`, "neither result nor error"},
		{"invalid json", `{{{`, "parse response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseNWCResponse(encryptResponse(t, shared, tt.payload), shared)
			if tt.wantSub == "" {
				if err != nil {
					t.Errorf("err = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("err = %v, want substring %q", err, tt.wantSub)
			}
		})
	}

	t.Run("undecryptable content", func(t *testing.T) {
		if err := parseNWCResponse("not?even?nip04", shared); err == nil {
			t.Error("should fail to decrypt garbage")
		}
	})
}

func TestNWCRequestShape(t *testing.T) {
	// The wire request must be a signed kind-23194 event whose encrypted
	// content decrypts to a pay_invoice call.
	clientSK, walletSK, shared := nwcShared(t)
	wpk, _ := nostr.GetPublicKey(walletSK)

	reqJSON, _ := json.Marshal(map[string]any{
		"method": "pay_invoice",
		"params": map[string]string{"invoice": "lnbc-test"},
	})
	content, err := nip04.Encrypt(string(reqJSON), shared)
	if err != nil {
		t.Fatal(err)
	}

	evt := nostr.Event{
		Kind:      kindNWCRequest,
		CreatedAt: nostr.Now(),
		Tags:      nostr.Tags{{"p", wpk}},
		Content:   content,
	}
	if err := evt.Sign(clientSK); err != nil {
		t.Fatal(err)
	}

	// The wallet side decrypts with its own key and the client pubkey.
	cpk, _ := nostr.GetPublicKey(clientSK)
	walletShared, err := nip04.ComputeSharedSecret(cpk, walletSK)
	if err != nil {
		t.Fatal(err)
	}
	plain, err := nip04.Decrypt(evt.Content, walletShared)
	if err != nil {
		t.Fatalf("wallet decrypt: %v", err)
	}

	var call struct {
		Method string `json:"method"`
		Params struct {
			Invoice string `json:"invoice"`
		} `json:"params"`
	}
	if err := json.Unmarshal([]byte(plain), &call); err != nil {
		t.Fatal(err)
	}
	if call.Method != "pay_invoice" || call.Params.Invoice != "lnbc-test" {
		t.Errorf("decrypted call = %+v", call)
	}
}
