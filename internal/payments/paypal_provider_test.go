package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	domain "github.com/loziogigio/vinc-pim-sub016/internal/domain"
)

func newTestPayPalProvider(t *testing.T, handler http.Handler) (*PayPalProvider, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewPayPalProvider(PayPalProviderConfig{
		ClientID:  "client-id",
		Secret:    "client-secret",
		WebhookID: "wh-1",
		BaseURL:   server.URL,
		Client:    resty.New(),
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return provider, server
}

func paypalTokenResponse(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": "token-abc",
		"expires_in":   3600,
	})
}

func TestPayPalChargeCreatesCaptureOrder(t *testing.T) {
	var orderBody paypalOrderRequest
	var requestID string

	mux := http.NewServeMux()
	mux.HandleFunc(paypalTokenPath, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		paypalTokenResponse(w)
	})
	mux.HandleFunc(paypalOrdersPath, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token-abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		requestID = r.Header.Get("PayPal-Request-Id")
		if err := json.NewDecoder(r.Body).Decode(&orderBody); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(paypalOrderResponse{ID: "PAY-1", Status: "COMPLETED"})
	})

	provider, _ := newTestPayPalProvider(t, mux)

	result, err := provider.Charge(context.Background(), ChargeRequest{
		TransactionID:  "txn-1",
		OrderID:        "ord-1",
		Amount:         decimal.RequireFromString("153.40"),
		Currency:       "eur",
		IdempotencyKey: "charge:ord-1:key",
	})
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if result.ProviderPaymentID != "PAY-1" {
		t.Fatalf("unexpected payment id %q", result.ProviderPaymentID)
	}
	if result.Status != domain.TransactionStatusCaptured {
		t.Fatalf("unexpected status %q", result.Status)
	}

	if requestID != "charge:ord-1:key" {
		t.Fatalf("unexpected request id %q", requestID)
	}
	if orderBody.Intent != "CAPTURE" {
		t.Fatalf("unexpected intent %q", orderBody.Intent)
	}
	if len(orderBody.PurchaseUnits) != 1 {
		t.Fatalf("unexpected purchase units %v", orderBody.PurchaseUnits)
	}
	unit := orderBody.PurchaseUnits[0]
	if unit.Amount.Value != "153.40" || unit.Amount.CurrencyCode != "EUR" {
		t.Fatalf("unexpected amount %+v", unit.Amount)
	}
	if unit.CustomID != "txn-1" || unit.ReferenceID != "ord-1" {
		t.Fatalf("unexpected references %+v", unit)
	}
}

func TestPayPalVerifyWebhook(t *testing.T) {
	payload := []byte(`{"id":"WH-1","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"CAP-1","supplementary_data":{"related_ids":{"order_id":"PAY-1"}}}}`)

	var verifyBody paypalVerifyRequest
	verificationStatus := "SUCCESS"

	mux := http.NewServeMux()
	mux.HandleFunc(paypalTokenPath, func(w http.ResponseWriter, _ *http.Request) {
		paypalTokenResponse(w)
	})
	mux.HandleFunc(paypalVerifyPath, func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&verifyBody); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(paypalVerifyResponse{VerificationStatus: verificationStatus})
	})

	provider, _ := newTestPayPalProvider(t, mux)

	headers := http.Header{}
	headers.Set(paypalTransmissionID, "tid-1")
	headers.Set(paypalTransmissionSig, "sig-1")
	headers.Set(paypalTransmissionTime, "2026-09-01T10:00:00Z")
	headers.Set(paypalCertURL, "https://api.paypal.com/cert")
	headers.Set(paypalAuthAlgo, "SHA256withRSA")

	event, err := provider.VerifyWebhook(context.Background(), payload, headers)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if event.ID != "WH-1" || event.Reference != "PAY-1" {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.Status != domain.TransactionStatusCompleted {
		t.Fatalf("unexpected status %q", event.Status)
	}
	if verifyBody.WebhookID != "wh-1" || verifyBody.TransmissionID != "tid-1" {
		t.Fatalf("unexpected verify request %+v", verifyBody)
	}

	verificationStatus = "FAILURE"
	if _, err := provider.VerifyWebhook(context.Background(), payload, headers); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature on failed verification, got %v", err)
	}

	if _, err := provider.VerifyWebhook(context.Background(), payload, http.Header{}); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature on missing headers, got %v", err)
	}
}

func TestPayPalEventStatusMapping(t *testing.T) {
	cases := []struct {
		eventType string
		want      domain.TransactionStatus
		ok        bool
	}{
		{"CHECKOUT.ORDER.APPROVED", domain.TransactionStatusAuthorized, true},
		{"PAYMENT.CAPTURE.PENDING", domain.TransactionStatusProcessing, true},
		{"PAYMENT.CAPTURE.COMPLETED", domain.TransactionStatusCompleted, true},
		{"PAYMENT.CAPTURE.DENIED", domain.TransactionStatusFailed, true},
		{"PAYMENT.CAPTURE.REFUNDED", domain.TransactionStatusRefunded, true},
		{"CUSTOMER.DISPUTE.CREATED", "", false},
	}
	for _, tc := range cases {
		got, ok := paypalEventStatus(tc.eventType)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("paypalEventStatus(%q) = %q, %v; want %q, %v", tc.eventType, got, ok, tc.want, tc.ok)
		}
	}
}

func TestPayPalCapabilitiesExcludeMOTO(t *testing.T) {
	provider := &PayPalProvider{}
	caps := provider.Capabilities()
	if caps.MOTO {
		t.Fatal("paypal must not advertise MOTO")
	}
	if !caps.Refunds {
		t.Fatal("paypal should advertise refunds")
	}
}
