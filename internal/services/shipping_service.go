package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/loziogigio/vinc-pim-sub016/internal/domain"
	"github.com/loziogigio/vinc-pim-sub016/internal/repositories"
)

var (
	// ErrShippingInvalidInput indicates the caller supplied malformed input.
	ErrShippingInvalidInput = errors.New("shipping: invalid input")
	// ErrShippingNotConfigured indicates the tenant has no shipping configuration.
	ErrShippingNotConfigured = errors.New("shipping: not configured")
	// ErrShippingUnknownMethod indicates the requested method is not available for the order's destination.
	ErrShippingUnknownMethod = errors.New("shipping: unknown method")
	// ErrShippingForbidden indicates the actor's role does not permit the operation.
	ErrShippingForbidden = errors.New("shipping: forbidden")
	// ErrShippingConflict indicates a concurrent write on the order being priced.
	ErrShippingConflict = errors.New("shipping: conflict")
	// ErrShippingUnavailable indicates the shipping store is temporarily unreachable.
	ErrShippingUnavailable = errors.New("shipping: unavailable")
)

// ShippingServiceDeps wires the dependencies required by the shipping service.
type ShippingServiceDeps struct {
	Orders  repositories.OrderRepository
	Configs repositories.ShippingConfigRepository
	Clock   func() time.Time
}

type shippingService struct {
	orders  repositories.OrderRepository
	configs repositories.ShippingConfigRepository
	now     func() time.Time
}

// NewShippingService constructs a ShippingService validating required dependencies.
func NewShippingService(deps ShippingServiceDeps) (ShippingService, error) {
	if deps.Orders == nil {
		return nil, errors.New("shipping service: order repository is required")
	}
	if deps.Configs == nil {
		return nil, errors.New("shipping service: shipping config repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &shippingService{
		orders:  deps.Orders,
		configs: deps.Configs,
		now: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// Options prices every enabled delivery method serving the order's
// destination against its current net subtotal.
func (s *shippingService) Options(ctx context.Context, actor Actor, orderID string) (ShippingQuote, error) {
	if err := requireActor(actor); err != nil {
		return ShippingQuote{}, fmt.Errorf("%w: actor identity is required", ErrShippingInvalidInput)
	}
	if strings.TrimSpace(orderID) == "" {
		return ShippingQuote{}, fmt.Errorf("%w: order id is required", ErrShippingInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, actor.TenantID, orderID)
	if err != nil {
		return ShippingQuote{}, s.mapRepositoryError(err)
	}
	if strings.TrimSpace(order.ShippingCountry) == "" {
		return ShippingQuote{}, fmt.Errorf("%w: order has no shipping country", ErrShippingInvalidInput)
	}

	cfg, err := s.configs.Get(ctx, actor.TenantID)
	if err != nil {
		return ShippingQuote{}, s.mapConfigError(err)
	}

	zone, options := domain.AvailableShippingOptions(cfg, order.ShippingCountry, order.SubtotalNet)
	return ShippingQuote{Zone: zone, Options: options}, nil
}

// ApplyMethod stamps the chosen method and its freshly computed cost on a
// draft order, recomputing the order total.
func (s *shippingService) ApplyMethod(ctx context.Context, actor Actor, orderID, methodID string) (domain.Order, error) {
	if err := requireActor(actor); err != nil {
		return domain.Order{}, fmt.Errorf("%w: actor identity is required", ErrShippingInvalidInput)
	}
	methodID = strings.TrimSpace(methodID)
	if methodID == "" {
		return domain.Order{}, fmt.Errorf("%w: method id is required", ErrShippingInvalidInput)
	}

	snapshot, err := s.orders.FindByID(ctx, actor.TenantID, orderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}
	if snapshot.Status != domain.OrderStatusDraft {
		return domain.Order{}, fmt.Errorf("%w: shipping can only be applied to draft orders, status is %s", ErrOrderInvalidState, snapshot.Status)
	}

	cfg, err := s.configs.Get(ctx, actor.TenantID)
	if err != nil {
		return domain.Order{}, s.mapConfigError(err)
	}

	now := s.now()
	order, err := s.orders.Mutate(ctx, actor.TenantID, orderID, domain.OrderStatusDraft, func(order *domain.Order) error {
		zone := domain.FindZoneForCountry(cfg, order.ShippingCountry)
		if zone == nil {
			return fmt.Errorf("%w: no zone serves %s", ErrShippingUnknownMethod, order.ShippingCountry)
		}
		var method *domain.ShippingMethod
		for i := range zone.Methods {
			if zone.Methods[i].ID == methodID && zone.Methods[i].Enabled {
				method = &zone.Methods[i]
				break
			}
		}
		if method == nil {
			return fmt.Errorf("%w: %s", ErrShippingUnknownMethod, methodID)
		}

		// Cost is always derived from the order's current subtotal, never a
		// previously quoted value.
		order.ShippingMethod = method.ID
		order.ShippingCost = domain.ComputeMethodCost(*method, order.SubtotalNet)
		order.RecomputeTotals()
		order.UpdatedBy = actor.UserID
		order.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}
	return order, nil
}

// Config returns the tenant's shipping price book.
func (s *shippingService) Config(ctx context.Context, actor Actor) (domain.ShippingConfig, error) {
	if err := requireActor(actor); err != nil {
		return domain.ShippingConfig{}, fmt.Errorf("%w: actor identity is required", ErrShippingInvalidInput)
	}
	cfg, err := s.configs.Get(ctx, actor.TenantID)
	if err != nil {
		return domain.ShippingConfig{}, s.mapConfigError(err)
	}
	return cfg, nil
}

// SaveConfig replaces the tenant's shipping price book. Admin only.
func (s *shippingService) SaveConfig(ctx context.Context, actor Actor, cfg domain.ShippingConfig) error {
	if err := requireActor(actor); err != nil {
		return fmt.Errorf("%w: actor identity is required", ErrShippingInvalidInput)
	}
	if actor.Role != domain.RoleAdmin {
		return fmt.Errorf("%w: role %s cannot edit shipping configuration", ErrShippingForbidden, actor.Role)
	}
	if len(cfg.Zones) == 0 {
		return fmt.Errorf("%w: at least one zone is required", ErrShippingInvalidInput)
	}
	for _, zone := range cfg.Zones {
		if strings.TrimSpace(zone.Name) == "" {
			return fmt.Errorf("%w: zone name is required", ErrShippingInvalidInput)
		}
		if len(zone.Countries) == 0 {
			return fmt.Errorf("%w: zone %s has no countries", ErrShippingInvalidInput, zone.Name)
		}
		for _, method := range zone.Methods {
			if strings.TrimSpace(method.ID) == "" {
				return fmt.Errorf("%w: zone %s has a method without an id", ErrShippingInvalidInput, zone.Name)
			}
			if len(method.Tiers) == 0 {
				return fmt.Errorf("%w: method %s has no tiers", ErrShippingInvalidInput, method.ID)
			}
		}
	}

	cfg.TenantID = actor.TenantID
	if err := s.configs.Save(ctx, cfg); err != nil {
		return s.mapConfigError(err)
	}
	return nil
}

func (s *shippingService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrShippingInvalidInput) || errors.Is(err, ErrShippingUnknownMethod) || errors.Is(err, ErrOrderInvalidState) {
		return err
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrShippingConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrShippingUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrShippingUnavailable, err)
}

func (s *shippingService) mapConfigError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrShippingNotConfigured, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrShippingUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrShippingUnavailable, err)
}
