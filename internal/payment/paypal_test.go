package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakePayPal(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	tokenCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		tokenCalls++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-123",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/v1/payments/payment", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		ru := body["redirect_urls"].(map[string]any)["return_url"].(string)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "PAY-42",
			"links": []map[string]string{
				{"href": "https://paypal.test/self", "rel": "self"},
				{"href": "https://paypal.test/approve?return=" + ru, "rel": "approval_url"},
			},
		})
	})
	mux.HandleFunc("/v1/payments/payment/PAY-42/execute", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "PAY-42", "state": "approved"})
	})
	mux.HandleFunc("/v1/payments/payment/PAY-FAIL/execute", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "PAY-FAIL", "state": "failed"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &tokenCalls
}

func newTestClient(srv *httptest.Server) *PayPalClient {
	c := NewPayPalClient("sandbox", "client-id", "client-secret",
		"https://api.example.com/v1/payments/paypal/execute",
		"https://api.example.com/v1/payments/paypal/cancel")
	c.baseURL = srv.URL
	return c
}

func TestCentsToAmount(t *testing.T) {
	assert.Equal(t, "25.00", centsToAmount(2500))
	assert.Equal(t, "0.05", centsToAmount(5))
	assert.Equal(t, "12.34", centsToAmount(1234))
}

func TestCreatePayment(t *testing.T) {
	srv, _ := newFakePayPal(t)
	c := newTestClient(srv)

	approvalURL, paymentID, err := c.CreatePayment(context.Background(), 42, 2500, "Movie ticket booking #42")
	require.NoError(t, err)
	assert.Equal(t, "PAY-42", paymentID)
	assert.True(t, strings.HasPrefix(approvalURL, "https://paypal.test/approve"))
	// the booking ID rides along on the return URL
	assert.Contains(t, approvalURL, "bookingId=42")
}

func TestExecutePaymentApproved(t *testing.T) {
	srv, _ := newFakePayPal(t)
	c := newTestClient(srv)

	resp, err := c.ExecutePayment(context.Background(), "PAY-42", "PAYER-9", 2500)
	require.NoError(t, err)
	assert.Equal(t, "approved", resp["state"])
}

func TestExecutePaymentNotApproved(t *testing.T) {
	srv, _ := newFakePayPal(t)
	c := newTestClient(srv)

	resp, err := c.ExecutePayment(context.Background(), "PAY-FAIL", "PAYER-9", 2500)
	require.Error(t, err)
	// the response still comes back for ledger snapshotting
	assert.Equal(t, "failed", resp["state"])
}

func TestTokenIsCachedAcrossCalls(t *testing.T) {
	srv, tokenCalls := newFakePayPal(t)
	c := newTestClient(srv)

	_, _, err := c.CreatePayment(context.Background(), 1, 1000, "first")
	require.NoError(t, err)
	_, _, err = c.CreatePayment(context.Background(), 2, 1000, "second")
	require.NoError(t, err)
	assert.Equal(t, 1, *tokenCalls)
}
