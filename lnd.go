package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// lndNode pays invoices through a local LND node's REST API.
type lndNode struct {
	baseURL     string
	macaroonHex string
}

func (n lndNode) name() string { return "lnd" }

// payInvoice POSTs the invoice to /v1/channels/transactions. LND reports
// routing failures as payment_error inside a 200 response, so both the
// status code and the body are checked.
func (n lndNode) payInvoice(ctx context.Context, invoice string) error {
	body, err := json.Marshal(struct {
		PaymentRequest string `json:"payment_request"`
	}{PaymentRequest: invoice})
	if err != nil {
		return err
	}

	payURL := strings.TrimRight(n.baseURL, "/") + "/v1/channels/transactions"
	req, err := http.NewRequestWithContext(ctx, "POST", payURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.macaroonHex != "" {
		req.Header.Set("Grpc-Metadata-macaroon", n.macaroonHex)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var lndErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &lndErr) == nil && lndErr.Message != "" {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, lndErr.Message)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		PaymentError string `json:"payment_error"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if result.PaymentError != "" {
		return fmt.Errorf("payment failed: %s", result.PaymentError)
	}
	return nil
}
