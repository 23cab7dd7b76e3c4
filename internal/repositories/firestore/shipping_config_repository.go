package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/loziogigio/vinc-pim-sub016/internal/domain"
	pfirestore "github.com/loziogigio/vinc-pim-sub016/internal/platform/firestore"
)

// ShippingConfigRepository persists the per-tenant shipping price book. The
// tenant identifier doubles as the document identifier, so the collection
// lives at the top level instead of under the tenant subtree.
type ShippingConfigRepository struct {
	base  *pfirestore.BaseRepository[shippingConfigDocument]
	clock func() time.Time
}

// NewShippingConfigRepository constructs a Firestore-backed shipping config repository.
func NewShippingConfigRepository(provider *pfirestore.Provider) (*ShippingConfigRepository, error) {
	if provider == nil {
		return nil, errors.New("shipping config repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[shippingConfigDocument](provider, shippingConfigsCollection, nil, nil)
	return &ShippingConfigRepository{base: base, clock: time.Now}, nil
}

// Get loads the tenant's shipping configuration.
func (r *ShippingConfigRepository) Get(ctx context.Context, tenantID string) (domain.ShippingConfig, error) {
	if r == nil || r.base == nil {
		return domain.ShippingConfig{}, errors.New("shipping config repository not initialised")
	}
	if strings.TrimSpace(tenantID) == "" {
		return domain.ShippingConfig{}, errors.New("shipping config repository: tenant id is required")
	}

	doc, err := r.base.Get(ctx, tenantID)
	if err != nil {
		return domain.ShippingConfig{}, err
	}
	return decodeShippingConfig(tenantID, doc.Data)
}

// Save replaces the tenant's shipping configuration.
func (r *ShippingConfigRepository) Save(ctx context.Context, cfg domain.ShippingConfig) error {
	if r == nil || r.base == nil {
		return errors.New("shipping config repository not initialised")
	}
	if strings.TrimSpace(cfg.TenantID) == "" {
		return errors.New("shipping config repository: tenant id is required")
	}

	_, err := r.base.Set(ctx, cfg.TenantID, encodeShippingConfig(cfg, r.clock().UTC()))
	return err
}
