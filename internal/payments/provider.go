package payments

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	domain "github.com/loziogigio/vinc-pim-sub016/internal/domain"
)

var (
	// ErrInvalidSignature is returned when a webhook payload fails the
	// provider's authenticity check.
	ErrInvalidSignature = errors.New("payments: invalid webhook signature")
	// ErrMalformedEvent is returned when an authentic payload cannot be
	// parsed into a canonical event.
	ErrMalformedEvent = errors.New("payments: malformed webhook event")
	// ErrEventUnsupported is returned for authentic events the adapter does
	// not track. Receivers acknowledge them without applying anything.
	ErrEventUnsupported = errors.New("payments: unsupported webhook event")
)

// Capabilities advertises which operations a provider supports. Callers must
// check the relevant flag before dispatching.
type Capabilities struct {
	MOTO      bool
	Refunds   bool
	Recurring bool
}

// ChargeRequest carries the data needed to submit a charge to a provider.
type ChargeRequest struct {
	TransactionID  string
	OrderID        string
	Amount         decimal.Decimal
	Currency       string
	PaymentType    domain.PaymentType
	IdempotencyKey string
	Metadata       map[string]string
}

// ChargeResult is the provider's immediate response to a charge submission.
// The terminal outcome usually arrives later via webhook.
type ChargeResult struct {
	ProviderPaymentID string
	Status            domain.TransactionStatus
}

// RefundRequest asks the provider to refund a prior charge, optionally for a
// partial amount.
type RefundRequest struct {
	ProviderPaymentID string
	Amount            *decimal.Decimal
	Reason            string
	IdempotencyKey    string
}

// RefundResult reports the provider's immediate refund response.
type RefundResult struct {
	Status domain.TransactionStatus
}

// Event is the canonical, provider-agnostic form of a webhook notification.
type Event struct {
	ID        string
	Reference string
	Status    domain.TransactionStatus
}

// Provider is the contract every payment gateway adapter satisfies.
type Provider interface {
	Name() string
	Capabilities() Capabilities
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
	Refund(ctx context.Context, req RefundRequest) (RefundResult, error)
	// VerifyWebhook authenticates the raw payload against the provider's
	// signature headers before any parsing, then maps it to a canonical
	// event. It must return ErrInvalidSignature on authenticity failure.
	VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) (Event, error)
}

// Registry maps provider names to adapters. It is populated once at startup
// and injected wherever providers are resolved; it is not safe for
// registration under request load.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds the adapter under its normalised name. Re-registering the
// same name overwrites the previous adapter.
func (r *Registry) Register(provider Provider) error {
	if r == nil {
		return errors.New("payments: registry is nil")
	}
	if provider == nil {
		return errors.New("payments: provider is nil")
	}
	name := normaliseProviderName(provider.Name())
	if name == "" {
		return errors.New("payments: provider name is required")
	}
	r.providers[name] = provider
	return nil
}

// Lookup resolves an adapter by name. A missing provider is a caller input
// error, not a failure; the boolean reports whether it was found.
func (r *Registry) Lookup(name string) (Provider, bool) {
	if r == nil {
		return nil, false
	}
	provider, ok := r.providers[normaliseProviderName(name)]
	return provider, ok
}

// Names lists the registered provider names.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

func normaliseProviderName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// MinorUnits converts a 2-decimal amount to integer minor units (cents).
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Round(2).Mul(decimal.NewFromInt(100)).IntPart()
}
