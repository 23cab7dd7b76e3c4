package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/loziogigio/vinc-pim-sub016/internal/domain"
	pfirestore "github.com/loziogigio/vinc-pim-sub016/internal/platform/firestore"
)

// SettingsRepository persists per-tenant commerce settings as a single
// well-known document under the tenant subtree.
type SettingsRepository struct {
	provider *pfirestore.Provider
	clock    func() time.Time
}

// NewSettingsRepository constructs a Firestore-backed settings repository.
func NewSettingsRepository(provider *pfirestore.Provider) (*SettingsRepository, error) {
	if provider == nil {
		return nil, errors.New("settings repository requires firestore provider")
	}
	return &SettingsRepository{provider: provider, clock: time.Now}, nil
}

// CommerceSettings loads the tenant overrides. A tenant without a settings
// document falls back to platform defaults, so a missing document is not an
// error.
func (r *SettingsRepository) CommerceSettings(ctx context.Context, tenantID string) (domain.CommerceSettings, error) {
	if r == nil || r.provider == nil {
		return domain.CommerceSettings{}, errors.New("settings repository not initialised")
	}
	if strings.TrimSpace(tenantID) == "" {
		return domain.CommerceSettings{}, errors.New("settings repository: tenant id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.CommerceSettings{}, pfirestore.WrapError("settings.client", err)
	}

	snapshot, err := client.Collection(tenantPath(tenantID, settingsCollection)).Doc(commerceSettingsDocID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return domain.CommerceSettings{TenantID: tenantID}, nil
		}
		return domain.CommerceSettings{}, pfirestore.WrapError("settings.get", err)
	}

	var doc commerceSettingsDocument
	if err := snapshot.DataTo(&doc); err != nil {
		return domain.CommerceSettings{}, pfirestore.WrapError("settings.decode", err)
	}
	return decodeCommerceSettings(tenantID, doc)
}

// SaveCommerceSettings replaces the tenant overrides.
func (r *SettingsRepository) SaveCommerceSettings(ctx context.Context, settings domain.CommerceSettings) error {
	if r == nil || r.provider == nil {
		return errors.New("settings repository not initialised")
	}
	if strings.TrimSpace(settings.TenantID) == "" {
		return errors.New("settings repository: tenant id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return pfirestore.WrapError("settings.client", err)
	}

	ref := client.Collection(tenantPath(settings.TenantID, settingsCollection)).Doc(commerceSettingsDocID)
	if _, err := ref.Set(ctx, encodeCommerceSettings(settings, r.clock().UTC())); err != nil {
		return pfirestore.WrapError("settings.save", err)
	}
	return nil
}
