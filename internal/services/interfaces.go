package services

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/loziogigio/vinc-pim-sub016/internal/domain"
)

// Actor identifies the authenticated caller of a service operation. Every
// lookup it triggers is scoped to the actor's tenant.
type Actor struct {
	TenantID string
	UserID   string
	Role     domain.Role
}

// OrderLineInput carries one line item supplied by the caller. Line totals
// are always recomputed server side.
type OrderLineInput struct {
	SKU       string
	Name      string
	Quantity  int64
	UnitPrice decimal.Decimal
	VATRate   decimal.Decimal
}

// CreateOrderCommand opens a new draft order.
type CreateOrderCommand struct {
	CustomerID        string
	Currency          string
	ShippingAddressID string
	ShippingCountry   string
	Lines             []OrderLineInput
}

// QuotationCommand converts a draft into a time-bounded quotation.
type QuotationCommand struct {
	DaysValid int
	Notes     string
}

// ShipmentCommand carries the fulfilment details for the shipped transition.
type ShipmentCommand struct {
	Carrier           string
	TrackingNumber    string
	TrackingURL       string
	EstimatedDelivery *time.Time
	DeliveryNotes     string
}

// OrderListQuery narrows order listings.
type OrderListQuery struct {
	Status     domain.OrderStatus
	CustomerID string
	Limit      int
	PageToken  string
}

// OrderService drives the order lifecycle state machine.
type OrderService interface {
	Create(ctx context.Context, actor Actor, cmd CreateOrderCommand) (domain.Order, error)
	Get(ctx context.Context, actor Actor, orderID string) (domain.Order, error)
	List(ctx context.Context, actor Actor, query OrderListQuery) (domain.CursorPage[domain.Order], error)
	UpdateLines(ctx context.Context, actor Actor, orderID string, lines []OrderLineInput) (domain.Order, error)
	Submit(ctx context.Context, actor Actor, orderID string) (domain.Order, error)
	ConvertToQuotation(ctx context.Context, actor Actor, orderID string, cmd QuotationCommand) (domain.Order, error)
	Confirm(ctx context.Context, actor Actor, orderID string) (domain.Order, error)
	Ship(ctx context.Context, actor Actor, orderID string, cmd ShipmentCommand) (domain.Order, error)
	Deliver(ctx context.Context, actor Actor, orderID string) (domain.Order, error)
	Cancel(ctx context.Context, actor Actor, orderID, reason string) (domain.Order, error)
}

// ShippingQuote is the priced set of delivery options for an order.
type ShippingQuote struct {
	Zone    string
	Options []domain.ShippingOption
}

// ShippingService prices orders against the tenant's shipping configuration.
type ShippingService interface {
	Options(ctx context.Context, actor Actor, orderID string) (ShippingQuote, error)
	ApplyMethod(ctx context.Context, actor Actor, orderID, methodID string) (domain.Order, error)
	Config(ctx context.Context, actor Actor) (domain.ShippingConfig, error)
	SaveConfig(ctx context.Context, actor Actor, cfg domain.ShippingConfig) error
}

// ChargeCommand submits a payment attempt for an order.
type ChargeCommand struct {
	OrderID        string
	ProviderName   string
	Amount         decimal.Decimal
	Currency       string
	PaymentType    domain.PaymentType
	IdempotencyKey string
	Metadata       map[string]string
}

// RefundCommand reverses a settled charge, optionally partially.
type RefundCommand struct {
	Amount *decimal.Decimal
	Reason string
}

// PaymentService submits charges and refunds through registered providers.
type PaymentService interface {
	Charge(ctx context.Context, actor Actor, cmd ChargeCommand) (domain.Transaction, error)
	Refund(ctx context.Context, actor Actor, transactionID string, cmd RefundCommand) (domain.Transaction, error)
	GetTransaction(ctx context.Context, actor Actor, transactionID string) (domain.Transaction, error)
	ListByOrder(ctx context.Context, actor Actor, orderID string) ([]domain.Transaction, error)
}

// WebhookResult reports the outcome of processing one webhook delivery.
type WebhookResult struct {
	EventID   string
	Applied   bool
	Duplicate bool
	Unmatched bool
}

// WebhookService reconciles asynchronous provider notifications into
// transaction state.
type WebhookService interface {
	Process(ctx context.Context, tenantID, providerName string, payload []byte, headers http.Header) (WebhookResult, error)
}

// SystemService aggregates dependency health for readiness reporting.
type SystemService interface {
	Health(ctx context.Context) (domain.SystemHealthReport, error)
}

// OrderEventMessage is the payload published for order and payment
// lifecycle notifications.
type OrderEventMessage struct {
	TenantID   string    `json:"tenantId"`
	OrderID    string    `json:"orderId"`
	Event      string    `json:"event"`
	Status     string    `json:"status"`
	ActorID    string    `json:"actorId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// OrderEventPublisher delivers lifecycle notifications. Publishing is
// fire-and-forget from the caller's perspective; failures are logged and
// never block a transition.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, message OrderEventMessage) (string, error)
}
