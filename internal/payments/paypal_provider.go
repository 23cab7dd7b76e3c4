package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	domain "github.com/loziogigio/vinc-pim-sub016/internal/domain"
)

const (
	paypalDefaultBaseURL = "https://api-m.paypal.com"
	paypalTokenPath      = "/v1/oauth2/token"
	paypalOrdersPath     = "/v2/checkout/orders"
	paypalVerifyPath     = "/v1/notifications/verify-webhook-signature"

	paypalTransmissionID   = "Paypal-Transmission-Id"
	paypalTransmissionTime = "Paypal-Transmission-Time"
	paypalTransmissionSig  = "Paypal-Transmission-Sig"
	paypalCertURL          = "Paypal-Cert-Url"
	paypalAuthAlgo         = "Paypal-Auth-Algo"
)

// PayPalLogger defines the logging contract for PayPal adapter operations.
type PayPalLogger func(ctx context.Context, event string, fields map[string]any)

// PayPalProviderConfig configures the PayPalProvider.
type PayPalProviderConfig struct {
	ClientID  string
	Secret    string
	WebhookID string
	BaseURL   string
	Logger    PayPalLogger
	Clock     func() time.Time
	Client    *resty.Client
	// HTTPLogger receives the resty client's own transport-level logging.
	HTTPLogger resty.Logger
}

// PayPalProvider implements the Provider contract against the PayPal REST
// APIs. Webhook authenticity is checked through PayPal's verification
// endpoint rather than a local signature scheme.
type PayPalProvider struct {
	http      *resty.Client
	clientID  string
	secret    string
	webhookID string
	clock     func() time.Time
	logger    PayPalLogger

	tokenMu     sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewPayPalProvider constructs a PayPal adapter from the given configuration.
func NewPayPalProvider(cfg PayPalProviderConfig) (*PayPalProvider, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	secret := strings.TrimSpace(cfg.Secret)
	if clientID == "" || secret == "" {
		return nil, errors.New("paypal: client id and secret are required")
	}

	httpClient := cfg.Client
	if httpClient == nil {
		httpClient = resty.New().
			SetTimeout(30 * time.Second).
			SetRetryCount(2).
			SetRetryWaitTime(500 * time.Millisecond)
	}
	if cfg.HTTPLogger != nil {
		httpClient.SetLogger(cfg.HTTPLogger)
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = paypalDefaultBaseURL
	}
	httpClient.SetBaseURL(strings.TrimRight(baseURL, "/"))

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &PayPalProvider{
		http:      httpClient,
		clientID:  clientID,
		secret:    secret,
		webhookID: strings.TrimSpace(cfg.WebhookID),
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Name implements Provider.
func (p *PayPalProvider) Name() string { return "paypal" }

// Capabilities implements Provider. PayPal charges always involve payer
// interaction, so MOTO-style card-not-present entry is not supported.
func (p *PayPalProvider) Capabilities() Capabilities {
	return Capabilities{MOTO: false, Refunds: true, Recurring: false}
}

type paypalAmount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalPurchaseUnit struct {
	ReferenceID string       `json:"reference_id,omitempty"`
	CustomID    string       `json:"custom_id,omitempty"`
	Amount      paypalAmount `json:"amount"`
}

type paypalOrderRequest struct {
	Intent        string               `json:"intent"`
	PurchaseUnits []paypalPurchaseUnit `json:"purchase_units"`
}

type paypalOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Charge creates a capture-intent order. PayPal completes the capture after
// payer approval, reported back through webhooks.
func (p *PayPalProvider) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if p == nil {
		return ChargeResult{}, errors.New("paypal: provider is nil")
	}

	token, err := p.token(ctx)
	if err != nil {
		return ChargeResult{}, err
	}

	body := paypalOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []paypalPurchaseUnit{{
			ReferenceID: req.OrderID,
			CustomID:    req.TransactionID,
			Amount: paypalAmount{
				CurrencyCode: strings.ToUpper(req.Currency),
				Value:        req.Amount.StringFixed(2),
			},
		}},
	}

	var created paypalOrderResponse
	request := p.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&created)
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		request.SetHeader("PayPal-Request-Id", key)
	}

	resp, err := request.Post(paypalOrdersPath)
	if err != nil {
		return ChargeResult{}, fmt.Errorf("paypal: create order: %w", err)
	}
	if resp.IsError() {
		return ChargeResult{}, fmt.Errorf("paypal: create order: status %d", resp.StatusCode())
	}

	p.logger(ctx, "payments.paypal.order.created", map[string]any{
		"paypalOrder": created.ID,
		"status":      created.Status,
		"transaction": req.TransactionID,
	})

	return ChargeResult{
		ProviderPaymentID: created.ID,
		Status:            paypalOrderStatus(created.Status),
	}, nil
}

// Refund refunds a captured payment.
func (p *PayPalProvider) Refund(ctx context.Context, req RefundRequest) (RefundResult, error) {
	if p == nil {
		return RefundResult{}, errors.New("paypal: provider is nil")
	}

	token, err := p.token(ctx)
	if err != nil {
		return RefundResult{}, err
	}

	body := map[string]any{}
	if req.Amount != nil {
		body["amount"] = paypalAmount{Value: req.Amount.StringFixed(2)}
	}
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		body["note_to_payer"] = reason
	}

	request := p.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		request.SetHeader("PayPal-Request-Id", key)
	}

	resp, err := request.Post(fmt.Sprintf("/v2/payments/captures/%s/refund", req.ProviderPaymentID))
	if err != nil {
		return RefundResult{}, fmt.Errorf("paypal: refund capture: %w", err)
	}
	if resp.IsError() {
		return RefundResult{}, fmt.Errorf("paypal: refund capture: status %d", resp.StatusCode())
	}

	p.logger(ctx, "payments.paypal.capture.refunded", map[string]any{
		"capture": req.ProviderPaymentID,
	})
	return RefundResult{Status: domain.TransactionStatusRefunded}, nil
}

type paypalWebhookEnvelope struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID               string `json:"id"`
		SupplementaryRef struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
	} `json:"resource"`
}

type paypalVerifyRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type paypalVerifyResponse struct {
	VerificationStatus string `json:"verification_status"`
}

// VerifyWebhook authenticates the notification through PayPal's verification
// API using the transmission headers, then maps it to a canonical event.
func (p *PayPalProvider) VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) (Event, error) {
	if p == nil {
		return Event{}, errors.New("paypal: provider is nil")
	}
	if p.webhookID == "" {
		return Event{}, errors.New("paypal: webhook id not configured")
	}

	verify := paypalVerifyRequest{
		AuthAlgo:         headers.Get(paypalAuthAlgo),
		CertURL:          headers.Get(paypalCertURL),
		TransmissionID:   headers.Get(paypalTransmissionID),
		TransmissionSig:  headers.Get(paypalTransmissionSig),
		TransmissionTime: headers.Get(paypalTransmissionTime),
		WebhookID:        p.webhookID,
		WebhookEvent:     json.RawMessage(payload),
	}
	if verify.TransmissionID == "" || verify.TransmissionSig == "" {
		return Event{}, fmt.Errorf("%w: missing transmission headers", ErrInvalidSignature)
	}

	token, err := p.token(ctx)
	if err != nil {
		return Event{}, err
	}

	var result paypalVerifyResponse
	resp, err := p.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetBody(verify).
		SetResult(&result).
		Post(paypalVerifyPath)
	if err != nil {
		return Event{}, fmt.Errorf("paypal: verify webhook: %w", err)
	}
	if resp.IsError() || !strings.EqualFold(result.VerificationStatus, "SUCCESS") {
		return Event{}, fmt.Errorf("%w: verification status %q", ErrInvalidSignature, result.VerificationStatus)
	}

	var envelope paypalWebhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	status, ok := paypalEventStatus(envelope.EventType)
	if !ok {
		return Event{}, fmt.Errorf("%w: %s", ErrEventUnsupported, envelope.EventType)
	}

	reference := envelope.Resource.SupplementaryRef.RelatedIDs.OrderID
	if reference == "" {
		reference = envelope.Resource.ID
	}
	if envelope.ID == "" || reference == "" {
		return Event{}, fmt.Errorf("%w: incomplete event envelope", ErrMalformedEvent)
	}

	p.logger(ctx, "payments.paypal.webhook.verified", map[string]any{
		"eventId":   envelope.ID,
		"eventType": envelope.EventType,
		"status":    status,
	})

	return Event{
		ID:        envelope.ID,
		Reference: reference,
		Status:    status,
	}, nil
}

func (p *PayPalProvider) token(ctx context.Context) (string, error) {
	p.tokenMu.Lock()
	defer p.tokenMu.Unlock()

	if p.accessToken != "" && p.clock().Before(p.tokenExpiry) {
		return p.accessToken, nil
	}

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	resp, err := p.http.R().
		SetContext(ctx).
		SetBasicAuth(p.clientID, p.secret).
		SetFormData(map[string]string{"grant_type": "client_credentials"}).
		SetResult(&result).
		Post(paypalTokenPath)
	if err != nil {
		return "", fmt.Errorf("paypal: oauth token: %w", err)
	}
	if resp.IsError() || result.AccessToken == "" {
		return "", fmt.Errorf("paypal: oauth token: status %d", resp.StatusCode())
	}

	p.accessToken = result.AccessToken
	// Refresh a minute ahead of expiry to avoid racing the deadline.
	p.tokenExpiry = p.clock().Add(time.Duration(result.ExpiresIn-60) * time.Second)
	return p.accessToken, nil
}

func paypalOrderStatus(status string) domain.TransactionStatus {
	switch strings.ToUpper(status) {
	case "COMPLETED":
		return domain.TransactionStatusCaptured
	case "APPROVED":
		return domain.TransactionStatusAuthorized
	default:
		return domain.TransactionStatusProcessing
	}
}

func paypalEventStatus(eventType string) (domain.TransactionStatus, bool) {
	switch strings.ToUpper(strings.TrimSpace(eventType)) {
	case "CHECKOUT.ORDER.APPROVED":
		return domain.TransactionStatusAuthorized, true
	case "PAYMENT.CAPTURE.PENDING":
		return domain.TransactionStatusProcessing, true
	case "PAYMENT.CAPTURE.COMPLETED":
		return domain.TransactionStatusCompleted, true
	case "PAYMENT.CAPTURE.DENIED":
		return domain.TransactionStatusFailed, true
	case "PAYMENT.CAPTURE.REFUNDED":
		return domain.TransactionStatusRefunded, true
	}
	return "", false
}
