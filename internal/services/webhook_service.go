package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	domain "github.com/loziogigio/vinc-pim-sub016/internal/domain"
	"github.com/loziogigio/vinc-pim-sub016/internal/payments"
	"github.com/loziogigio/vinc-pim-sub016/internal/repositories"
	"github.com/shopspring/decimal"
)

const eventPaymentCompleted = "payment.completed"

var (
	// ErrWebhookInvalidInput indicates a malformed delivery.
	ErrWebhookInvalidInput = errors.New("webhooks: invalid input")
	// ErrWebhookProviderUnknown indicates no adapter is registered for the provider.
	ErrWebhookProviderUnknown = errors.New("webhooks: unknown provider")
	// ErrWebhookSignature indicates the payload failed signature verification.
	ErrWebhookSignature = errors.New("webhooks: invalid signature")
	// ErrWebhookConflict indicates a concurrent write while applying the event.
	ErrWebhookConflict = errors.New("webhooks: conflict")
	// ErrWebhookUnavailable indicates a dependency is temporarily unreachable.
	ErrWebhookUnavailable = errors.New("webhooks: unavailable")
)

// WebhookServiceDeps wires the dependencies required by the webhook service.
type WebhookServiceDeps struct {
	Transactions          repositories.TransactionRepository
	Events                repositories.WebhookEventRepository
	Settings              repositories.SettingsRepository
	Providers             *payments.Registry
	Publisher             OrderEventPublisher
	Clock                 func() time.Time
	Logger                func(ctx context.Context, event string, fields map[string]any)
	DefaultCommissionRate decimal.Decimal
}

type webhookService struct {
	transactions repositories.TransactionRepository
	events       repositories.WebhookEventRepository
	settings     repositories.SettingsRepository
	providers    *payments.Registry
	publisher    OrderEventPublisher
	now          func() time.Time
	logger       func(ctx context.Context, event string, fields map[string]any)
	defaultRate  decimal.Decimal
}

// NewWebhookService constructs a WebhookService validating required dependencies.
func NewWebhookService(deps WebhookServiceDeps) (WebhookService, error) {
	if deps.Transactions == nil {
		return nil, errors.New("webhook service: transaction repository is required")
	}
	if deps.Events == nil {
		return nil, errors.New("webhook service: webhook event repository is required")
	}
	if deps.Settings == nil {
		return nil, errors.New("webhook service: settings repository is required")
	}
	if deps.Providers == nil {
		return nil, errors.New("webhook service: provider registry is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &webhookService{
		transactions: deps.Transactions,
		events:       deps.Events,
		settings:     deps.Settings,
		providers:    deps.Providers,
		publisher:    deps.Publisher,
		now: func() time.Time {
			return clock().UTC()
		},
		logger:      logger,
		defaultRate: deps.DefaultCommissionRate,
	}, nil
}

// Process authenticates and applies one webhook delivery. Business-level
// mismatches (duplicates, unknown references, impossible transitions) are
// acknowledged as success so providers stop redelivering; only malformed
// input and signature failures surface as errors.
func (s *webhookService) Process(ctx context.Context, tenantID, providerName string, payload []byte, headers http.Header) (WebhookResult, error) {
	if strings.TrimSpace(tenantID) == "" {
		return WebhookResult{}, fmt.Errorf("%w: tenant id is required", ErrWebhookInvalidInput)
	}
	if len(payload) == 0 {
		return WebhookResult{}, fmt.Errorf("%w: payload is empty", ErrWebhookInvalidInput)
	}

	provider, ok := s.providers.Lookup(providerName)
	if !ok {
		return WebhookResult{}, fmt.Errorf("%w: %s", ErrWebhookProviderUnknown, providerName)
	}

	// Signature verification runs before any payload interpretation.
	event, err := provider.VerifyWebhook(ctx, payload, headers)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrInvalidSignature):
			return WebhookResult{}, fmt.Errorf("%w: %v", ErrWebhookSignature, err)
		case errors.Is(err, payments.ErrEventUnsupported):
			// Authentic but untracked event types are acknowledged so the
			// provider does not retry them forever.
			s.logger(ctx, "webhook.event_ignored", map[string]any{
				"provider": provider.Name(),
			})
			return WebhookResult{Applied: false}, nil
		default:
			return WebhookResult{}, fmt.Errorf("%w: %v", ErrWebhookInvalidInput, err)
		}
	}

	seen, err := s.events.Seen(ctx, tenantID, provider.Name(), event.ID)
	if err != nil {
		return WebhookResult{}, s.mapRepositoryError(err)
	}
	if seen {
		return WebhookResult{EventID: event.ID, Duplicate: true}, nil
	}

	txn, err := s.transactions.FindByProviderPaymentID(ctx, tenantID, event.Reference)
	if err != nil {
		mapped := s.mapRepositoryError(err)
		if errors.Is(mapped, ErrPaymentNotFound) {
			s.logger(ctx, "webhook.unmatched", map[string]any{
				"provider":  provider.Name(),
				"event_id":  event.ID,
				"reference": event.Reference,
			})
			if _, err := s.events.Record(ctx, tenantID, provider.Name(), event.ID, s.now()); err != nil {
				return WebhookResult{}, s.mapRepositoryError(err)
			}
			return WebhookResult{EventID: event.ID, Unmatched: true}, nil
		}
		return WebhookResult{}, mapped
	}

	rate, err := s.tenantCommissionRate(ctx, tenantID)
	if err != nil {
		return WebhookResult{}, err
	}

	now := s.now()
	var completed bool
	updated, err := s.transactions.Mutate(ctx, tenantID, txn.ID, func(txn *domain.Transaction) error {
		if txn.Status == event.Status {
			return nil
		}
		if !domain.CanTransitionTransaction(txn.Status, event.Status) {
			s.logger(ctx, "webhook.transition_skipped", map[string]any{
				"transaction_id": txn.ID,
				"from":           string(txn.Status),
				"to":             string(event.Status),
			})
			return nil
		}
		txn.Status = event.Status
		txn.UpdatedAt = now
		if event.Status == domain.TransactionStatusCompleted {
			txn.CompletedAt = &now
			if !txn.HasCommission() {
				split := domain.CalculateCommission(txn.GrossAmount, rate)
				txn.CommissionRate = &split.Rate
				txn.CommissionAmount = &split.Commission
				txn.NetAmount = &split.Net
			}
			completed = true
		}
		return nil
	})
	if err != nil {
		return WebhookResult{}, s.mapRepositoryError(err)
	}

	if completed {
		s.notifyCompleted(ctx, updated)
	}

	// The ledger entry lands after the mutation commits. If the write fails
	// the provider redelivers; the mutation above is a no-op on replay, so
	// the effect is still applied once.
	if _, err := s.events.Record(ctx, tenantID, provider.Name(), event.ID, s.now()); err != nil {
		return WebhookResult{}, s.mapRepositoryError(err)
	}
	return WebhookResult{EventID: event.ID, Applied: true}, nil
}

// tenantCommissionRate resolves the tenant override, falling back to the
// platform default.
func (s *webhookService) tenantCommissionRate(ctx context.Context, tenantID string) (decimal.Decimal, error) {
	settings, err := s.settings.CommerceSettings(ctx, tenantID)
	if err != nil {
		return decimal.Zero, s.mapRepositoryError(err)
	}
	if settings.CommissionRate != nil {
		return *settings.CommissionRate, nil
	}
	return s.defaultRate, nil
}

func (s *webhookService) notifyCompleted(ctx context.Context, txn domain.Transaction) {
	if s.publisher == nil {
		return
	}

	message := OrderEventMessage{
		TenantID:   txn.TenantID,
		OrderID:    txn.OrderID,
		Event:      eventPaymentCompleted,
		Status:     string(txn.Status),
		OccurredAt: s.now(),
	}

	publishCtx := context.WithoutCancel(ctx)
	go func() {
		if _, err := s.publisher.PublishOrderEvent(publishCtx, message); err != nil {
			s.logger(publishCtx, "webhook.event_publish_failed", map[string]any{
				"order_id":       txn.OrderID,
				"transaction_id": txn.ID,
				"error":          err.Error(),
			})
		}
	}()
}

func (s *webhookService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrPaymentNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrWebhookConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrWebhookUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrWebhookUnavailable, err)
}
