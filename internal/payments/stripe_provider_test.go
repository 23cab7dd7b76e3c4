package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	domain "github.com/loziogigio/vinc-pim-sub016/internal/domain"
)

type stubIntentAPI struct {
	newFunc func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	getFunc func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

func (s *stubIntentAPI) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return s.newFunc(params)
}

func (s *stubIntentAPI) Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if s.getFunc == nil {
		return nil, errors.New("unexpected Get")
	}
	return s.getFunc(id, params)
}

type stubRefundAPI struct {
	newFunc func(params *stripe.RefundParams) (*stripe.Refund, error)
}

func (s *stubRefundAPI) New(params *stripe.RefundParams) (*stripe.Refund, error) {
	return s.newFunc(params)
}

func newTestStripeProvider(t *testing.T, intents stripePaymentIntentAPI, refunds stripeRefundAPI, secret string) *StripeProvider {
	t.Helper()
	if intents == nil {
		intents = &stubIntentAPI{newFunc: func(*stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
			return nil, errors.New("unexpected New")
		}}
	}
	if refunds == nil {
		refunds = &stubRefundAPI{newFunc: func(*stripe.RefundParams) (*stripe.Refund, error) {
			return nil, errors.New("unexpected New")
		}}
	}
	provider, err := NewStripeProvider(StripeProviderConfig{
		WebhookSecret: secret,
		Clients:       &stripeClients{intents: intents, refunds: refunds},
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return provider
}

func TestStripeChargeMOTO(t *testing.T) {
	var captured *stripe.PaymentIntentParams
	intents := &stubIntentAPI{newFunc: func(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
		captured = params
		return &stripe.PaymentIntent{ID: "pi_123", Status: stripe.PaymentIntentStatusSucceeded}, nil
	}}
	provider := newTestStripeProvider(t, intents, nil, "")

	result, err := provider.Charge(context.Background(), ChargeRequest{
		TransactionID:  "txn-1",
		OrderID:        "ord-1",
		Amount:         decimal.RequireFromString("153.40"),
		Currency:       "EUR",
		PaymentType:    domain.PaymentTypeMOTO,
		IdempotencyKey: "charge:ord-1:key",
	})
	if err != nil {
		t.Fatalf("charge: %v", err)
	}
	if result.ProviderPaymentID != "pi_123" {
		t.Fatalf("unexpected payment id %q", result.ProviderPaymentID)
	}
	if result.Status != domain.TransactionStatusCaptured {
		t.Fatalf("unexpected status %q", result.Status)
	}

	if captured == nil {
		t.Fatal("expected intent params to be captured")
	}
	if got := *captured.Amount; got != 15340 {
		t.Fatalf("unexpected amount %d", got)
	}
	if got := *captured.Currency; got != "eur" {
		t.Fatalf("unexpected currency %q", got)
	}
	if captured.PaymentMethodOptions == nil || captured.PaymentMethodOptions.Card == nil || !*captured.PaymentMethodOptions.Card.MOTO {
		t.Fatal("expected MOTO flag on card options")
	}
	if captured.Metadata["transactionId"] != "txn-1" || captured.Metadata["orderId"] != "ord-1" {
		t.Fatalf("unexpected metadata %v", captured.Metadata)
	}
}

func TestStripeRefundPartialAmount(t *testing.T) {
	var captured *stripe.RefundParams
	refunds := &stubRefundAPI{newFunc: func(params *stripe.RefundParams) (*stripe.Refund, error) {
		captured = params
		return &stripe.Refund{ID: "re_1"}, nil
	}}
	provider := newTestStripeProvider(t, nil, refunds, "")

	amount := decimal.RequireFromString("50.00")
	result, err := provider.Refund(context.Background(), RefundRequest{
		ProviderPaymentID: "pi_123",
		Amount:            &amount,
		Reason:            "requested_by_customer",
	})
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if result.Status != domain.TransactionStatusRefunded {
		t.Fatalf("unexpected status %q", result.Status)
	}
	if got := *captured.PaymentIntent; got != "pi_123" {
		t.Fatalf("unexpected payment intent %q", got)
	}
	if got := *captured.Amount; got != 5000 {
		t.Fatalf("unexpected amount %d", got)
	}
	if got := *captured.Reason; got != string(stripe.RefundReasonRequestedByCustomer) {
		t.Fatalf("unexpected reason %q", got)
	}
}

func TestStripeVerifyWebhookSignedPayload(t *testing.T) {
	const secret = "whsec_test"
	provider := newTestStripeProvider(t, nil, nil, secret)

	payload := []byte(`{"id":"evt_1","api_version":"2024-04-10","type":"payment_intent.succeeded","data":{"object":{"id":"pi_123"}}}`)
	now := time.Now()
	signature := webhook.ComputeSignature(now, payload, secret)
	headers := http.Header{}
	headers.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%x", now.Unix(), signature))

	event, err := provider.VerifyWebhook(context.Background(), payload, headers)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if event.ID != "evt_1" || event.Reference != "pi_123" {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.Status != domain.TransactionStatusCompleted {
		t.Fatalf("unexpected status %q", event.Status)
	}
}

func TestStripeVerifyWebhookRejectsBadSignature(t *testing.T) {
	provider := newTestStripeProvider(t, nil, nil, "whsec_test")
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)

	if _, err := provider.VerifyWebhook(context.Background(), payload, http.Header{}); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for missing header, got %v", err)
	}

	headers := http.Header{}
	headers.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=deadbeef", time.Now().Unix()))
	if _, err := provider.VerifyWebhook(context.Background(), payload, headers); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for bad signature, got %v", err)
	}
}

func TestStripeCanonicalEventMapping(t *testing.T) {
	cases := []struct {
		name       string
		eventType  string
		object     map[string]any
		wantRef    string
		wantStatus domain.TransactionStatus
		wantErr    error
	}{
		{
			name:       "succeeded",
			eventType:  "payment_intent.succeeded",
			object:     map[string]any{"id": "pi_1"},
			wantRef:    "pi_1",
			wantStatus: domain.TransactionStatusCompleted,
		},
		{
			name:       "processing",
			eventType:  "payment_intent.processing",
			object:     map[string]any{"id": "pi_1"},
			wantRef:    "pi_1",
			wantStatus: domain.TransactionStatusProcessing,
		},
		{
			name:       "authorized",
			eventType:  "payment_intent.amount_capturable_updated",
			object:     map[string]any{"id": "pi_1"},
			wantRef:    "pi_1",
			wantStatus: domain.TransactionStatusAuthorized,
		},
		{
			name:       "failed",
			eventType:  "payment_intent.payment_failed",
			object:     map[string]any{"id": "pi_1"},
			wantRef:    "pi_1",
			wantStatus: domain.TransactionStatusFailed,
		},
		{
			name:       "canceled",
			eventType:  "payment_intent.canceled",
			object:     map[string]any{"id": "pi_1"},
			wantRef:    "pi_1",
			wantStatus: domain.TransactionStatusCancelled,
		},
		{
			name:      "full refund keys by payment intent",
			eventType: "charge.refunded",
			object: map[string]any{
				"id":              "ch_1",
				"payment_intent":  "pi_1",
				"amount":          float64(15340),
				"amount_refunded": float64(15340),
			},
			wantRef:    "pi_1",
			wantStatus: domain.TransactionStatusRefunded,
		},
		{
			name:      "partial refund",
			eventType: "charge.refunded",
			object: map[string]any{
				"id":              "ch_1",
				"payment_intent":  "pi_1",
				"amount":          float64(15340),
				"amount_refunded": float64(5000),
			},
			wantRef:    "pi_1",
			wantStatus: domain.TransactionStatusPartialRefund,
		},
		{
			name:      "unsupported type",
			eventType: "customer.created",
			object:    map[string]any{"id": "cus_1"},
			wantErr:   ErrEventUnsupported,
		},
		{
			name:      "missing reference",
			eventType: "payment_intent.succeeded",
			object:    map[string]any{},
			wantErr:   ErrMalformedEvent,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event := stripe.Event{
				ID:   "evt_1",
				Type: stripe.EventType(tc.eventType),
				Data: &stripe.EventData{Object: tc.object},
			}
			canonical, err := stripeCanonicalEvent(event)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("canonical event: %v", err)
			}
			if canonical.Reference != tc.wantRef {
				t.Fatalf("reference = %q, want %q", canonical.Reference, tc.wantRef)
			}
			if canonical.Status != tc.wantStatus {
				t.Fatalf("status = %q, want %q", canonical.Status, tc.wantStatus)
			}
		})
	}
}
