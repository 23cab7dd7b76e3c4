package repositories

import (
	"context"
	"time"

	domain "github.com/loziogigio/vinc-pim-sub016/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderRepository persists orders under their tenant scope.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, tenantID, orderID string) (domain.Order, error)
	List(ctx context.Context, tenantID string, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	// Mutate re-reads the order inside a transaction, verifies its status
	// still matches expectedStatus, applies fn, and writes the result. A
	// status drift between snapshot and re-read surfaces as a conflict.
	Mutate(ctx context.Context, tenantID, orderID string, expectedStatus domain.OrderStatus, fn func(*domain.Order) error) (domain.Order, error)
}

// OrderListFilter narrows order listings. PageToken carries the encoded
// cursor produced by a previous page.
type OrderListFilter struct {
	Status     domain.OrderStatus
	CustomerID string
	CreatedBy  string
	Limit      int
	PageToken  string
}

// TransactionRepository persists payment transactions and their idempotency index.
type TransactionRepository interface {
	// CreateWithKey transactionally creates the transaction together with
	// its idempotency-key index entry. When the key already exists the
	// stored transaction is returned with created=false.
	CreateWithKey(ctx context.Context, txn domain.Transaction) (domain.Transaction, bool, error)
	FindByID(ctx context.Context, tenantID, transactionID string) (domain.Transaction, error)
	FindByIdempotencyKey(ctx context.Context, tenantID, key string) (domain.Transaction, error)
	FindByProviderPaymentID(ctx context.Context, tenantID, providerPaymentID string) (domain.Transaction, error)
	ListByOrder(ctx context.Context, tenantID, orderID string) ([]domain.Transaction, error)
	Mutate(ctx context.Context, tenantID, transactionID string, fn func(*domain.Transaction) error) (domain.Transaction, error)
}

// ShippingConfigRepository stores per-tenant shipping zone configuration.
type ShippingConfigRepository interface {
	Get(ctx context.Context, tenantID string) (domain.ShippingConfig, error)
	Save(ctx context.Context, cfg domain.ShippingConfig) error
}

// WebhookEventRepository is the ledger of applied webhook events. The ledger
// entry is written only after the event's side effects have committed, so a
// recorded event is always a fully applied one.
type WebhookEventRepository interface {
	// Seen reports whether the event was already recorded for the tenant.
	Seen(ctx context.Context, tenantID, provider, eventID string) (bool, error)
	// Record creates the ledger entry for the event. It returns false when
	// the event was recorded before, signalling a concurrent delivery.
	Record(ctx context.Context, tenantID, provider, eventID string, receivedAt time.Time) (bool, error)
}

// SettingsRepository reads tenant commerce settings.
type SettingsRepository interface {
	CommerceSettings(ctx context.Context, tenantID string) (domain.CommerceSettings, error)
	SaveCommerceSettings(ctx context.Context, settings domain.CommerceSettings) error
}

// CounterRepository issues monotonically increasing per-tenant sequence values.
type CounterRepository interface {
	Next(ctx context.Context, tenantID, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, tenantID, counterID string, cfg CounterConfig) error
}

// CounterConfig carries optional counter settings.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}

// HealthRepository aggregates dependency probes for readiness reporting.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
