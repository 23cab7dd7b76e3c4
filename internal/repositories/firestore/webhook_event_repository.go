package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/loziogigio/vinc-pim-sub016/internal/platform/firestore"
)

type webhookEventDocument struct {
	Provider   string    `firestore:"provider"`
	EventID    string    `firestore:"eventId"`
	ReceivedAt time.Time `firestore:"receivedAt"`
}

// WebhookEventRepository keeps the per-tenant ledger of processed webhook
// deliveries so redeliveries are acknowledged without side effects.
type WebhookEventRepository struct {
	provider *pfirestore.Provider
}

// NewWebhookEventRepository constructs a Firestore-backed webhook event ledger.
func NewWebhookEventRepository(provider *pfirestore.Provider) (*WebhookEventRepository, error) {
	if provider == nil {
		return nil, errors.New("webhook event repository requires firestore provider")
	}
	return &WebhookEventRepository{provider: provider}, nil
}

// Seen reports whether the event ledger already holds the provider event.
func (r *WebhookEventRepository) Seen(ctx context.Context, tenantID, provider, eventID string) (bool, error) {
	if r == nil || r.provider == nil {
		return false, errors.New("webhook event repository not initialised")
	}
	if strings.TrimSpace(provider) == "" || strings.TrimSpace(eventID) == "" {
		return false, errors.New("webhook event repository: provider and event id are required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return false, pfirestore.WrapError("webhookEvents.client", err)
	}

	docID := fmt.Sprintf("%s_%s", provider, eventID)
	_, err = client.Collection(tenantPath(tenantID, webhookEventsCollection)).Doc(docID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, pfirestore.WrapError("webhookEvents.seen", err)
	}
	return true, nil
}

// Record marks the event as applied. Returns false when the same provider
// event was already recorded for the tenant.
func (r *WebhookEventRepository) Record(ctx context.Context, tenantID, provider, eventID string, receivedAt time.Time) (bool, error) {
	if r == nil || r.provider == nil {
		return false, errors.New("webhook event repository not initialised")
	}
	if strings.TrimSpace(provider) == "" || strings.TrimSpace(eventID) == "" {
		return false, errors.New("webhook event repository: provider and event id are required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return false, pfirestore.WrapError("webhookEvents.client", err)
	}

	docID := fmt.Sprintf("%s_%s", provider, eventID)
	ref := client.Collection(tenantPath(tenantID, webhookEventsCollection)).Doc(docID)
	if _, err := ref.Create(ctx, webhookEventDocument{
		Provider:   provider,
		EventID:    eventID,
		ReceivedAt: receivedAt,
	}); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return false, nil
		}
		return false, pfirestore.WrapError("webhookEvents.record", err)
	}
	return true, nil
}
