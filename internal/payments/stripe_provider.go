package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"

	domain "github.com/loziogigio/vinc-pim-sub016/internal/domain"
)

const stripeSignatureHeader = "Stripe-Signature"

// StripeLogger defines the logging contract for Stripe adapter operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeRefundAPI interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

type stripeClients struct {
	intents stripePaymentIntentAPI
	refunds stripeRefundAPI
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey        string
	WebhookSecret string
	AccountID     string
	Backends      *stripe.Backends
	Logger        StripeLogger
	Clock         func() time.Time
	Clients       *stripeClients
}

// StripeProvider implements the Provider contract using Stripe APIs.
type StripeProvider struct {
	api           stripeClients
	webhookSecret string
	account       string
	clock         func() time.Time
	logger        StripeLogger
}

// NewStripeProvider constructs a Stripe adapter from the given configuration.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Clients == nil {
		return nil, errors.New("stripe: api key is required")
	}

	var clients stripeClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{
			intents: sc.PaymentIntents,
			refunds: sc.Refunds,
		}
	}
	if clients.intents == nil || clients.refunds == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeProvider{
		api:           clients,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		account:       strings.TrimSpace(cfg.AccountID),
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Name implements Provider.
func (p *StripeProvider) Name() string { return "stripe" }

// Capabilities implements Provider. Stripe supports card-not-present (MOTO)
// and off-session recurring charges.
func (p *StripeProvider) Capabilities() Capabilities {
	return Capabilities{MOTO: true, Refunds: true, Recurring: true}
}

// Charge creates and confirms a Stripe PaymentIntent for the request.
func (p *StripeProvider) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if p == nil {
		return ChargeResult{}, errors.New("stripe: provider is nil")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(MinorUnits(req.Amount)),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		Confirm:  stripe.Bool(true),
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if p.account != "" {
		params.SetStripeAccount(p.account)
	}

	switch req.PaymentType {
	case domain.PaymentTypeMOTO:
		params.PaymentMethodOptions = &stripe.PaymentIntentPaymentMethodOptionsParams{
			Card: &stripe.PaymentIntentPaymentMethodOptionsCardParams{
				MOTO: stripe.Bool(true),
			},
		}
	case domain.PaymentTypeRecurring:
		params.OffSession = stripe.Bool(true)
	}

	metadata := make(map[string]string, len(req.Metadata)+2)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	metadata["transactionId"] = req.TransactionID
	metadata["orderId"] = req.OrderID
	params.Metadata = metadata

	intent, err := p.api.intents.New(params)
	if err != nil {
		return ChargeResult{}, fmt.Errorf("stripe: create payment intent: %w", err)
	}

	p.logger(ctx, "payments.stripe.intent.created", map[string]any{
		"paymentIntent": intent.ID,
		"status":        intent.Status,
		"transaction":   req.TransactionID,
	})

	return ChargeResult{
		ProviderPaymentID: intent.ID,
		Status:            stripeIntentStatus(intent.Status),
	}, nil
}

// Refund creates a refund against the PaymentIntent.
func (p *StripeProvider) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	if p == nil {
		return RefundResult{}, errors.New("stripe: provider is nil")
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.ProviderPaymentID),
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if p.account != "" {
		params.SetStripeAccount(p.account)
	}
	if req.Amount != nil {
		params.Amount = stripe.Int64(MinorUnits(*req.Amount))
	}
	if reason := mapStripeRefundReason(req.Reason); reason != "" {
		params.Reason = stripe.String(reason)
	}

	if _, err := p.api.refunds.New(params); err != nil {
		return RefundResult{}, fmt.Errorf("stripe: refund payment intent: %w", err)
	}

	p.logger(ctx, "payments.stripe.intent.refunded", map[string]any{
		"paymentIntent": req.ProviderPaymentID,
	})
	return RefundResult{Status: domain.TransactionStatusRefunded}, nil
}

// VerifyWebhook checks the Stripe-Signature header against the payload and
// maps the event to its canonical form. Signature verification happens before
// any payload inspection.
func (p *StripeProvider) VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) (Event, error) {
	if p == nil {
		return Event{}, errors.New("stripe: provider is nil")
	}
	if p.webhookSecret == "" {
		return Event{}, errors.New("stripe: webhook secret not configured")
	}

	signature := strings.TrimSpace(headers.Get(stripeSignatureHeader))
	if signature == "" {
		return Event{}, fmt.Errorf("%w: missing %s header", ErrInvalidSignature, stripeSignatureHeader)
	}

	event, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	canonical, err := stripeCanonicalEvent(event)
	if err != nil {
		return Event{}, err
	}

	p.logger(ctx, "payments.stripe.webhook.verified", map[string]any{
		"eventId":   canonical.ID,
		"eventType": event.Type,
		"status":    canonical.Status,
	})
	return canonical, nil
}

func stripeCanonicalEvent(event stripe.Event) (Event, error) {
	object := event.Data.Object
	if object == nil {
		return Event{}, fmt.Errorf("%w: event %s has no payload object", ErrMalformedEvent, event.ID)
	}

	var status domain.TransactionStatus
	reference, _ := object["id"].(string)

	switch event.Type {
	case "payment_intent.succeeded":
		status = domain.TransactionStatusCompleted
	case "payment_intent.processing":
		status = domain.TransactionStatusProcessing
	case "payment_intent.amount_capturable_updated":
		status = domain.TransactionStatusAuthorized
	case "payment_intent.payment_failed":
		status = domain.TransactionStatusFailed
	case "payment_intent.canceled":
		status = domain.TransactionStatusCancelled
	case "charge.refunded":
		// Refund events reference the charge; the transaction is keyed by
		// the payment intent.
		if intent, ok := object["payment_intent"].(string); ok && intent != "" {
			reference = intent
		}
		status = domain.TransactionStatusRefunded
		amount, hasAmount := numberField(object, "amount")
		refunded, hasRefunded := numberField(object, "amount_refunded")
		if hasAmount && hasRefunded && refunded < amount {
			status = domain.TransactionStatusPartialRefund
		}
	default:
		return Event{}, fmt.Errorf("%w: %s", ErrEventUnsupported, event.Type)
	}

	if reference == "" {
		return Event{}, fmt.Errorf("%w: event %s has no reference", ErrMalformedEvent, event.ID)
	}

	return Event{
		ID:        event.ID,
		Reference: reference,
		Status:    status,
	}, nil
}

func stripeIntentStatus(status stripe.PaymentIntentStatus) domain.TransactionStatus {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return domain.TransactionStatusCaptured
	case stripe.PaymentIntentStatusRequiresCapture:
		return domain.TransactionStatusAuthorized
	case stripe.PaymentIntentStatusCanceled:
		return domain.TransactionStatusCancelled
	default:
		return domain.TransactionStatusProcessing
	}
}

func mapStripeRefundReason(reason string) string {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case string(stripe.RefundReasonDuplicate):
		return string(stripe.RefundReasonDuplicate)
	case string(stripe.RefundReasonFraudulent):
		return string(stripe.RefundReasonFraudulent)
	case string(stripe.RefundReasonRequestedByCustomer):
		return string(stripe.RefundReasonRequestedByCustomer)
	default:
		return ""
	}
}

func numberField(object map[string]any, key string) (float64, bool) {
	switch v := object[key].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	}
	return 0, false
}
