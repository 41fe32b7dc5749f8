package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil/bech32"
	decodepay "github.com/nbd-wtf/ln-decodepay"
)

// Precondition errors: these abort a zap flow before any payment is attempted.
var (
	errNoLightningAddress = errors.New("lightning address not found in profile")
	errNoZapEndpoint      = errors.New("lnurl endpoint does not support zaps")
	errNoInvoice          = errors.New("no invoice returned")
)

const lnurlTimeout = 15 * time.Second

// decodeInvoice decodes a BOLT11 invoice. Package variable so tests can
// substitute fabricated invoices.
var decodeInvoice = decodepay.Decodepay

// payParams is the LNURL-pay discovery response (LUD-06).
type payParams struct {
	Callback    string `json:"callback"`
	MinSendable int64  `json:"minSendable"`
	MaxSendable int64  `json:"maxSendable"`
	Tag         string `json:"tag"`
	AllowsNostr bool   `json:"allowsNostr"`
	NostrPubkey string `json:"nostrPubkey"`
	Status      string `json:"status"`
	Reason      string `json:"reason"`
}

// lightningAddressURL converts a LUD-16 lightning address (name@domain)
// into its LNURL-pay discovery URL.
func lightningAddressURL(lud16 string) (string, error) {
	name, domain, ok := strings.Cut(lud16, "@")
	if !ok || name == "" || domain == "" {
		return "", fmt.Errorf("invalid lightning address %q", lud16)
	}
	return "https://" + domain + "/.well-known/lnurlp/" + name, nil
}

// decodeLNURL decodes a bech32 LUD-06 lnurl string into its URL.
func decodeLNURL(lnurl string) (string, error) {
	hrp, data, err := bech32.DecodeNoLimit(strings.ToLower(lnurl))
	if err != nil {
		return "", fmt.Errorf("decode lnurl: %w", err)
	}
	if hrp != "lnurl" {
		return "", fmt.Errorf("expected lnurl prefix, got %q", hrp)
	}
	converted, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", fmt.Errorf("convert lnurl bits: %w", err)
	}
	return string(converted), nil
}

// discoveryURL picks the LNURL-pay discovery URL from profile metadata,
// preferring the lightning address (lud16) over the raw lnurl (lud06).
// Returns errNoLightningAddress without any network access when neither
// field is usable.
func discoveryURL(meta ProfileMetadata) (string, error) {
	if meta.Lud16 != "" {
		return lightningAddressURL(meta.Lud16)
	}
	if meta.Lud06 != "" {
		return decodeLNURL(meta.Lud06)
	}
	return "", errNoLightningAddress
}

// getZapEndpoint resolves a profile's metadata to an LNURL-pay callback URL
// that accepts zap requests. The endpoint must advertise allowsNostr with a
// valid nostr pubkey (NIP-57), otherwise errNoZapEndpoint is returned.
func getZapEndpoint(ctx context.Context, meta ProfileMetadata) (string, error) {
	disco, err := discoveryURL(meta)
	if err != nil {
		return "", err
	}

	params, err := fetchPayParams(ctx, disco)
	if err != nil {
		return "", err
	}
	if !params.AllowsNostr || !isHex64(params.NostrPubkey) {
		return "", errNoZapEndpoint
	}
	if params.Callback == "" {
		return "", fmt.Errorf("lnurl endpoint returned no callback")
	}
	return params.Callback, nil
}

// fetchPayParams performs the LNURL-pay discovery GET.
func fetchPayParams(ctx context.Context, disco string) (payParams, error) {
	var params payParams

	body, err := lnurlGet(ctx, disco)
	if err != nil {
		return params, err
	}
	if err := json.Unmarshal(body, &params); err != nil {
		return params, fmt.Errorf("parse lnurl params: %w", err)
	}
	if params.Status == "ERROR" {
		return params, fmt.Errorf("lnurl error: %s", params.Reason)
	}
	if params.Tag != "" && params.Tag != "payRequest" {
		return params, fmt.Errorf("unexpected lnurl tag %q", params.Tag)
	}
	return params, nil
}

// fetchInvoice requests a BOLT11 invoice from the zap endpoint callback.
// The signed zap request travels URL-encoded in the nostr query parameter.
// The returned invoice is decoded and its amount checked against the
// requested millisats. No automatic retry on failure.
func fetchInvoice(ctx context.Context, callback string, amountMsat int64, zapRequestJSON []byte) (string, error) {
	u, err := url.Parse(callback)
	if err != nil {
		return "", fmt.Errorf("parse callback: %w", err)
	}
	q := u.Query()
	q.Set("amount", strconv.FormatInt(amountMsat, 10))
	q.Set("nostr", string(zapRequestJSON))
	u.RawQuery = q.Encode()

	body, err := lnurlGet(ctx, u.String())
	if err != nil {
		return "", err
	}

	var resp struct {
		PR     string `json:"pr"`
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parse invoice response: %w", err)
	}
	if resp.Status == "ERROR" {
		return "", fmt.Errorf("lnurl error: %s", resp.Reason)
	}
	if resp.PR == "" {
		return "", errNoInvoice
	}

	bolt, err := decodeInvoice(resp.PR)
	if err != nil {
		return "", fmt.Errorf("decode invoice: %w", err)
	}
	if bolt.MSatoshi != amountMsat {
		return "", fmt.Errorf("invoice amount %d msat does not match requested %d msat", bolt.MSatoshi, amountMsat)
	}

	return resp.PR, nil
}

// lnurlGet performs a bounded HTTP GET and returns the body. A non-2xx
// status surfaces the server-provided reason when the body carries one.
func lnurlGet(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, lnurlTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, err
	}

	client := &http.Client{Timeout: lnurlTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var lnerr struct {
			Reason string `json:"reason"`
		}
		if json.Unmarshal(body, &lnerr) == nil && lnerr.Reason != "" {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, lnerr.Reason)
		}
		log.Printf("lnurl: HTTP %d from %s", resp.StatusCode, rawURL)
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	return body, nil
}
