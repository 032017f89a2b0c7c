// Package payment integrates the PayPal REST API (v1 payments) as the
// booking engine's payment gateway. The client authenticates with the
// OAuth2 client-credentials flow and exposes just the two calls the
// booking flow needs: creating an approval payment and executing it
// after the payer approves.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Gateway abstracts the payment provider so handlers can be tested
// against a fake. Amounts are integer cents.
type Gateway interface {
	// CreatePayment registers a payment for the given booking and
	// amount and returns the approval URL the payer must visit
	// together with the gateway's payment ID.
	CreatePayment(ctx context.Context, bookingID uint64, amountCents int64, description string) (approvalURL, paymentID string, err error)
	// ExecutePayment finalizes an approved payment. It returns the
	// gateway's raw response for ledger snapshotting.
	ExecutePayment(ctx context.Context, paymentID, payerID string, amountCents int64) (map[string]any, error)
}

const (
	sandboxBaseURL = "https://api-m.sandbox.paypal.com"
	liveBaseURL    = "https://api-m.paypal.com"
)

// PayPalClient implements Gateway over the PayPal REST API. Access
// tokens are cached until shortly before expiry.
type PayPalClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	returnURL    string
	cancelURL    string
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewPayPalClient builds a client for the given mode ("sandbox" or
// "live"). returnURL and cancelURL are the redirect targets PayPal
// sends the payer back to after approval or cancellation.
func NewPayPalClient(mode, clientID, clientSecret, returnURL, cancelURL string) *PayPalClient {
	base := sandboxBaseURL
	if strings.EqualFold(mode, "live") {
		base = liveBaseURL
	}
	return &PayPalClient{
		baseURL:      base,
		clientID:     clientID,
		clientSecret: clientSecret,
		returnURL:    returnURL,
		cancelURL:    cancelURL,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
	}
}

// token returns a valid OAuth2 access token, requesting a fresh one
// when the cached token is missing or about to expire.
func (p *PayPalClient) token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.accessToken != "" && time.Now().Before(p.tokenExpiry) {
		return p.accessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(p.clientID, p.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("paypal token request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("paypal token request: status %d: %s", resp.StatusCode, body)
	}
	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("paypal token decode: %w", err)
	}
	p.accessToken = tok.AccessToken
	// renew a minute early so in-flight calls never carry a stale token
	p.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn-60) * time.Second)
	return p.accessToken, nil
}

// centsToAmount formats integer cents as PayPal's decimal string.
func centsToAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

// CreatePayment creates a PayPal payment with intent "sale" and
// returns the approval_url link plus the payment ID.
func (p *PayPalClient) CreatePayment(ctx context.Context, bookingID uint64, amountCents int64, description string) (string, string, error) {
	payload := map[string]any{
		"intent": "sale",
		"payer":  map[string]any{"payment_method": "paypal"},
		"redirect_urls": map[string]any{
			"return_url": fmt.Sprintf("%s?bookingId=%d", p.returnURL, bookingID),
			"cancel_url": p.cancelURL,
		},
		"transactions": []map[string]any{{
			"amount": map[string]any{
				"total":    centsToAmount(amountCents),
				"currency": "USD",
			},
			"description": description,
		}},
	}
	var out struct {
		ID    string `json:"id"`
		Links []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if err := p.post(ctx, "/v1/payments/payment", payload, &out); err != nil {
		return "", "", err
	}
	for _, l := range out.Links {
		if l.Rel == "approval_url" {
			return l.Href, out.ID, nil
		}
	}
	return "", "", fmt.Errorf("paypal create payment: no approval_url in response")
}

// ExecutePayment executes an approved payment. The full decoded
// response body is returned so callers can snapshot it into the
// transaction ledger.
func (p *PayPalClient) ExecutePayment(ctx context.Context, paymentID, payerID string, amountCents int64) (map[string]any, error) {
	payload := map[string]any{
		"payer_id": payerID,
		"transactions": []map[string]any{{
			"amount": map[string]any{
				"total":    centsToAmount(amountCents),
				"currency": "USD",
			},
		}},
	}
	var out map[string]any
	if err := p.post(ctx, "/v1/payments/payment/"+url.PathEscape(paymentID)+"/execute", payload, &out); err != nil {
		return nil, err
	}
	if state, _ := out["state"].(string); state != "approved" {
		return out, fmt.Errorf("paypal execute payment: state %q", state)
	}
	return out, nil
}

func (p *PayPalClient) post(ctx context.Context, path string, payload, out any) error {
	tok, err := p.token(ctx)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("paypal %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("paypal %s: status %d: %s", path, resp.StatusCode, raw)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("paypal %s: decode: %w", path, err)
		}
	}
	return nil
}
