package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Role identifies the actor category performing an operation. Authentication
// itself happens upstream; the platform only hands us the resolved role.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleSales     Role = "sales"
	RoleWarehouse Role = "warehouse"
)

// ParseRole normalises and validates a role string.
func ParseRole(value string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleSales:
		return RoleSales, true
	case RoleWarehouse:
		return RoleWarehouse, true
	}
	return "", false
}

// OrderStatus enumerates the lifecycle states of an order or quotation.
type OrderStatus string

const (
	OrderStatusDraft     OrderStatus = "draft"
	OrderStatusQuotation OrderStatus = "quotation"
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusExpired   OrderStatus = "expired"
)

// IsTerminal reports whether no further transition may leave the status.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusExpired:
		return true
	}
	return false
}

// OrderLine is a single priced line on an order. Monetary fields are net of
// VAT except TotalVAT; all values carry two decimal places.
type OrderLine struct {
	SKU       string
	Name      string
	Quantity  int64
	UnitPrice decimal.Decimal
	VATRate   decimal.Decimal
	TotalNet  decimal.Decimal
	TotalVAT  decimal.Decimal
}

// Quotation holds the negotiable pre-order details attached to an order in
// the quotation state.
type Quotation struct {
	Number     string
	ValidUntil time.Time
	Notes      string
}

// OrderFulfillment captures shipment tracking details set at the
// confirmed -> shipped transition.
type OrderFulfillment struct {
	Carrier           string
	TrackingNumber    string
	TrackingURL       string
	EstimatedDelivery *time.Time
	DeliveryNotes     string
}

// Order is the root aggregate for a commercial transaction. Orders are never
// physically deleted; cancellation is a status.
type Order struct {
	ID                string
	TenantID          string
	OrderNumber       string
	Status            OrderStatus
	CustomerID        string
	ShippingAddressID string
	ShippingCountry   string
	Lines             []OrderLine
	SubtotalNet       decimal.Decimal
	TotalVAT          decimal.Decimal
	ShippingMethod    string
	ShippingCost      decimal.Decimal
	OrderTotal        decimal.Decimal
	Currency          string
	Quotation         *Quotation
	Fulfillment       OrderFulfillment
	CancelReason      string
	CreatedBy         string
	UpdatedBy         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ConfirmedAt       *time.Time
	ShippedAt         *time.Time
	DeliveredAt       *time.Time
	CancelledAt       *time.Time
}

// RecomputeTotals rebuilds line totals and the order-level sums from the
// current lines and shipping cost. Every derived value is rounded to two
// decimals before it contributes to the next sum so ledger arithmetic stays
// exact.
func (o *Order) RecomputeTotals() {
	subtotal := decimal.Zero
	vat := decimal.Zero
	for i := range o.Lines {
		line := &o.Lines[i]
		line.TotalNet = Round2(line.UnitPrice.Mul(decimal.NewFromInt(line.Quantity)))
		line.TotalVAT = Round2(line.TotalNet.Mul(line.VATRate))
		subtotal = subtotal.Add(line.TotalNet)
		vat = vat.Add(line.TotalVAT)
	}
	o.SubtotalNet = Round2(subtotal)
	o.TotalVAT = Round2(vat)
	o.OrderTotal = Round2(o.SubtotalNet.Add(o.TotalVAT).Add(o.ShippingCost))
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusDraft:     {OrderStatusQuotation, OrderStatusPending, OrderStatusCancelled},
	OrderStatusQuotation: {OrderStatusPending, OrderStatusConfirmed, OrderStatusCancelled, OrderStatusExpired},
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:   {OrderStatusDelivered},
}

// CanTransitionOrder reports whether the order state machine permits moving
// from current to target.
func CanTransitionOrder(current, target OrderStatus) bool {
	for _, next := range orderTransitions[current] {
		if next == target {
			return true
		}
	}
	return false
}

// TransactionStatus enumerates payment attempt states.
type TransactionStatus string

const (
	TransactionStatusPending       TransactionStatus = "pending"
	TransactionStatusProcessing    TransactionStatus = "processing"
	TransactionStatusAuthorized    TransactionStatus = "authorized"
	TransactionStatusCaptured      TransactionStatus = "captured"
	TransactionStatusCompleted     TransactionStatus = "completed"
	TransactionStatusFailed        TransactionStatus = "failed"
	TransactionStatusCancelled     TransactionStatus = "cancelled"
	TransactionStatusRefunded      TransactionStatus = "refunded"
	TransactionStatusPartialRefund TransactionStatus = "partial_refund"
)

var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending:       {TransactionStatusProcessing, TransactionStatusAuthorized, TransactionStatusCaptured, TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled},
	TransactionStatusProcessing:    {TransactionStatusAuthorized, TransactionStatusCaptured, TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled},
	TransactionStatusAuthorized:    {TransactionStatusCaptured, TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled},
	TransactionStatusCaptured:      {TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusRefunded, TransactionStatusPartialRefund},
	TransactionStatusCompleted:     {TransactionStatusRefunded, TransactionStatusPartialRefund},
	TransactionStatusPartialRefund: {TransactionStatusRefunded, TransactionStatusPartialRefund},
}

// CanTransitionTransaction reports whether the payment state machine permits
// moving from current to target.
func CanTransitionTransaction(current, target TransactionStatus) bool {
	for _, next := range transactionTransitions[current] {
		if next == target {
			return true
		}
	}
	return false
}

// PaymentType distinguishes how a charge was initiated.
type PaymentType string

const (
	PaymentTypeCard      PaymentType = "card"
	PaymentTypeMOTO      PaymentType = "moto"
	PaymentTypeRecurring PaymentType = "recurring"
)

// Transaction records one payment attempt against an order. Transactions are
// never deleted; terminal outcomes stay on the ledger.
type Transaction struct {
	ID                string
	TenantID          string
	OrderID           string
	IdempotencyKey    string
	ProviderName      string
	ProviderPaymentID string
	Status            TransactionStatus
	GrossAmount       decimal.Decimal
	Currency          string
	CommissionRate    *decimal.Decimal
	CommissionAmount  *decimal.Decimal
	NetAmount         *decimal.Decimal
	PaymentType       PaymentType
	FailureReason     string
	Metadata          map[string]string
	CreatedAt         time.Time
	UpdatedAt         time.Time
	CompletedAt       *time.Time
}

// HasCommission reports whether the commission split was already applied.
func (t Transaction) HasCommission() bool {
	return t.CommissionRate != nil && t.CommissionAmount != nil && t.NetAmount != nil
}

// Round2 rounds to two decimal places, half away from zero.
func Round2(value decimal.Decimal) decimal.Decimal {
	return value.Round(2)
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}
