package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/nbd-wtf/go-nostr"
	decodepay "github.com/nbd-wtf/ln-decodepay"
)

func TestLightningAddressURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"satoshi@example.com", "https://example.com/.well-known/lnurlp/satoshi", false},
		{"a@b.co", "https://b.co/.well-known/lnurlp/a", false},
		{"nodomain@", "", true},
		{"@noname.com", "", true},
		{"notanaddress", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := lightningAddressURL(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("lightningAddressURL(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("lightningAddressURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// encodeLNURL bech32-encodes a URL the way LUD-06 wallets do.
func encodeLNURL(t *testing.T, rawURL string) string {
	t.Helper()
	converted, err := bech32.ConvertBits([]byte(rawURL), 8, 5, true)
	if err != nil {
		t.Fatalf("convert bits: %v", err)
	}
	lnurl, err := bech32.Encode("lnurl", converted)
	if err != nil {
		t.Fatalf("encode lnurl: %v", err)
	}
	return lnurl
}

func TestDecodeLNURL(t *testing.T) {
	const rawURL = "https://example.com/.well-known/lnurlp/satoshi"
	lnurl := encodeLNURL(t, rawURL)

	got, err := decodeLNURL(strings.ToUpper(lnurl))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != rawURL {
		t.Errorf("decoded %q, want %q", got, rawURL)
	}

	if _, err := decodeLNURL("lnbc1invoice"); err == nil {
		t.Error("non-lnurl bech32 should fail")
	}
	if _, err := decodeLNURL("not bech32 at all"); err == nil {
		t.Error("garbage should fail")
	}
}

func TestDiscoveryURL(t *testing.T) {
	lud06 := encodeLNURL(t, "https://lud06.example/pay")

	tests := []struct {
		name string
		meta ProfileMetadata
		want string
		err  error
	}{
		{"lud16 preferred", ProfileMetadata{Lud16: "a@b.com", Lud06: lud06}, "https://b.com/.well-known/lnurlp/a", nil},
		{"lud06 fallback", ProfileMetadata{Lud06: lud06}, "https://lud06.example/pay", nil},
		{"neither", ProfileMetadata{Name: "noaddr"}, "", errNoLightningAddress},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := discoveryURL(tt.meta)
			if err != tt.err {
				t.Fatalf("err = %v, want %v", err, tt.err)
			}
			if got != tt.want {
				t.Errorf("url = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetZapEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		params  payParams
		wantErr error
	}{
		{"zap capable", payParams{Callback: "https://pay.example/cb", Tag: "payRequest", AllowsNostr: true, NostrPubkey: alicePK}, nil},
		{"no nostr support", payParams{Callback: "https://pay.example/cb", Tag: "payRequest"}, errNoZapEndpoint},
		{"bad nostr pubkey", payParams{Callback: "https://pay.example/cb", Tag: "payRequest", AllowsNostr: true, NostrPubkey: "short"}, errNoZapEndpoint},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(tt.params)
			}))
			defer srv.Close()

			meta := ProfileMetadata{Lud06: encodeLNURL(t, srv.URL+"/lnurlp/test")}
			got, err := getZapEndpoint(context.Background(), meta)
			if err != tt.wantErr {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && got != tt.params.Callback {
				t.Errorf("callback = %q", got)
			}
		})
	}
}

func TestGetZapEndpointNoAddressSkipsNetwork(t *testing.T) {
	// No lightning address means no HTTP request at all.
	_, err := getZapEndpoint(context.Background(), ProfileMetadata{Name: "cashonly"})
	if err != errNoLightningAddress {
		t.Errorf("err = %v, want errNoLightningAddress", err)
	}
}

func TestFetchPayParamsErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantSub string
	}{
		{"lnurl error status", 200, `{"status":"ERROR","reason":"user not found"}`, "user not found"},
		{"wrong tag", 200, `{"tag":"withdrawRequest","callback":"x"}`, "unexpected lnurl tag"},
		{"http error with reason", 404, `{"status":"ERROR","reason":"no such user"}`, "no such user"},
		{"http error bare", 500, `boom`, "HTTP 500"},
		{"invalid json", 200, `{{{`, "parse lnurl params"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := fetchPayParams(context.Background(), srv.URL)
			if err == nil || !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("err = %v, want substring %q", err, tt.wantSub)
			}
		})
	}
}

func TestFetchInvoice(t *testing.T) {
	origDecode := decodeInvoice
	decodeInvoice = func(bolt11 string) (decodepay.Bolt11, error) {
		switch bolt11 {
		case "lnbc-21":
			return decodepay.Bolt11{MSatoshi: 21000}, nil
		case "lnbc-wrong":
			return decodepay.Bolt11{MSatoshi: 999}, nil
		}
		return decodepay.Bolt11{}, fmt.Errorf("undecodable")
	}
	defer func() { decodeInvoice = origDecode }()

	keys := testKeys(t)
	req := makeZapRequest(ZapTarget{ID: eventID, Kind: 1}, alicePK, 21000, nil, "gm", nil)
	if err := signZapRequest(&req, keys); err != nil {
		t.Fatal(err)
	}
	reqJSON, _ := json.Marshal(req)

	t.Run("success", func(t *testing.T) {
		var gotAmount, gotNostr string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAmount = r.URL.Query().Get("amount")
			gotNostr = r.URL.Query().Get("nostr")
			fmt.Fprint(w, `{"pr":"lnbc-21"}`)
		}))
		defer srv.Close()

		pr, err := fetchInvoice(context.Background(), srv.URL+"/cb", 21000, reqJSON)
		if err != nil {
			t.Fatalf("fetch: %v", err)
		}
		if pr != "lnbc-21" {
			t.Errorf("pr = %q", pr)
		}
		if gotAmount != "21000" {
			t.Errorf("amount param = %q", gotAmount)
		}
		var sent nostr.Event
		if err := json.Unmarshal([]byte(gotNostr), &sent); err != nil {
			t.Fatalf("nostr param not valid JSON: %v", err)
		}
		if sent.Kind != kindZapRequest || sent.Sig == "" {
			t.Errorf("nostr param should be the signed zap request, got kind=%d sig=%q", sent.Kind, sent.Sig)
		}
	})

	t.Run("callback with existing query params", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("user") != "satoshi" {
				t.Error("existing query param lost")
			}
			fmt.Fprint(w, `{"pr":"lnbc-21"}`)
		}))
		defer srv.Close()

		if _, err := fetchInvoice(context.Background(), srv.URL+"/cb?user=satoshi", 21000, reqJSON); err != nil {
			t.Fatalf("fetch: %v", err)
		}
	})

	t.Run("error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"status":"ERROR","reason":"amount too small"}`)
		}))
		defer srv.Close()

		_, err := fetchInvoice(context.Background(), srv.URL, 21000, reqJSON)
		if err == nil || !strings.Contains(err.Error(), "amount too small") {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("empty pr", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{}`)
		}))
		defer srv.Close()

		if _, err := fetchInvoice(context.Background(), srv.URL, 21000, reqJSON); err != errNoInvoice {
			t.Errorf("err = %v, want errNoInvoice", err)
		}
	})

	t.Run("amount mismatch rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"pr":"lnbc-wrong"}`)
		}))
		defer srv.Close()

		_, err := fetchInvoice(context.Background(), srv.URL, 21000, reqJSON)
		if err == nil || !strings.Contains(err.Error(), "does not match") {
			t.Errorf("err = %v", err)
		}
	})
}
