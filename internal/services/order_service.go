package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/loziogigio/vinc-pim-sub016/internal/domain"
	"github.com/loziogigio/vinc-pim-sub016/internal/repositories"
)

const (
	orderIDPrefix            = "ord_"
	orderNumberCounter       = "orders"
	quotationNumberCounter   = "quotations"
	defaultQuotationValidity = 30

	eventOrderCreated       = "order.created"
	eventOrderStatusChanged = "order.status.changed"
)

var (
	// ErrOrderInvalidInput indicates the caller supplied malformed or missing input.
	ErrOrderInvalidInput = errors.New("orders: invalid input")
	// ErrOrderNotFound indicates the order does not exist within the tenant.
	ErrOrderNotFound = errors.New("orders: not found")
	// ErrOrderForbidden indicates the actor's role does not permit the transition.
	ErrOrderForbidden = errors.New("orders: forbidden")
	// ErrOrderInvalidState indicates the transition is not allowed from the current status.
	ErrOrderInvalidState = errors.New("orders: invalid state")
	// ErrOrderConflict indicates a concurrent mutation won the race.
	ErrOrderConflict = errors.New("orders: conflict")
	// ErrOrderUnavailable indicates the order store is temporarily unreachable.
	ErrOrderUnavailable = errors.New("orders: unavailable")
)

// transitionKey identifies one edge of the order state machine.
type transitionKey struct {
	from domain.OrderStatus
	to   domain.OrderStatus
}

// transitionPolicy is the single source of role gating for order transitions.
// Each edge lists the roles allowed to drive it; the role check runs before
// any order read so an unauthorised actor never learns the current status.
var transitionPolicy = map[transitionKey][]domain.Role{
	{domain.OrderStatusDraft, domain.OrderStatusPending}:       {domain.RoleAdmin, domain.RoleSales},
	{domain.OrderStatusDraft, domain.OrderStatusQuotation}:     {domain.RoleAdmin, domain.RoleSales},
	{domain.OrderStatusQuotation, domain.OrderStatusPending}:   {domain.RoleAdmin, domain.RoleSales},
	{domain.OrderStatusPending, domain.OrderStatusConfirmed}:   {domain.RoleAdmin, domain.RoleSales},
	{domain.OrderStatusQuotation, domain.OrderStatusConfirmed}: {domain.RoleAdmin, domain.RoleSales},
	{domain.OrderStatusConfirmed, domain.OrderStatusShipped}:   {domain.RoleAdmin, domain.RoleWarehouse},
	{domain.OrderStatusShipped, domain.OrderStatusDelivered}:   {domain.RoleAdmin, domain.RoleWarehouse},
	{domain.OrderStatusDraft, domain.OrderStatusCancelled}:     {domain.RoleAdmin, domain.RoleSales},
	{domain.OrderStatusQuotation, domain.OrderStatusCancelled}: {domain.RoleAdmin, domain.RoleSales},
	{domain.OrderStatusPending, domain.OrderStatusCancelled}:   {domain.RoleAdmin, domain.RoleSales},
	{domain.OrderStatusConfirmed, domain.OrderStatusCancelled}: {domain.RoleAdmin},
}

func transitionAllowed(from, to domain.OrderStatus, role domain.Role) bool {
	for _, allowed := range transitionPolicy[transitionKey{from, to}] {
		if allowed == role {
			return true
		}
	}
	return false
}

// roleMayReach reports whether the role can drive any edge arriving at the
// target status. Used for the pre-read role check.
func roleMayReach(to domain.OrderStatus, role domain.Role) bool {
	for key, roles := range transitionPolicy {
		if key.to != to {
			continue
		}
		for _, allowed := range roles {
			if allowed == role {
				return true
			}
		}
	}
	return false
}

// OrderServiceDeps wires the dependencies required by the order service.
type OrderServiceDeps struct {
	Orders                repositories.OrderRepository
	Counters              repositories.CounterRepository
	Publisher             OrderEventPublisher
	Clock                 func() time.Time
	Logger                func(ctx context.Context, event string, fields map[string]any)
	IDGenerator           func() string
	QuotationValidityDays int
}

type orderService struct {
	orders        repositories.OrderRepository
	counters      repositories.CounterRepository
	publisher     OrderEventPublisher
	now           func() time.Time
	logger        func(ctx context.Context, event string, fields map[string]any)
	newID         func() string
	quotationDays int
}

// NewOrderService constructs an OrderService validating required dependencies.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	newID := deps.IDGenerator
	if newID == nil {
		newID = func() string { return orderIDPrefix + ulid.Make().String() }
	}
	days := deps.QuotationValidityDays
	if days <= 0 {
		days = defaultQuotationValidity
	}

	return &orderService{
		orders:    deps.Orders,
		counters:  deps.Counters,
		publisher: deps.Publisher,
		now: func() time.Time {
			return clock().UTC()
		},
		logger:        logger,
		newID:         newID,
		quotationDays: days,
	}, nil
}

// Create opens a new draft order for the actor's tenant.
func (s *orderService) Create(ctx context.Context, actor Actor, cmd CreateOrderCommand) (domain.Order, error) {
	if err := requireActor(actor); err != nil {
		return domain.Order{}, err
	}
	if actor.Role != domain.RoleAdmin && actor.Role != domain.RoleSales {
		return domain.Order{}, fmt.Errorf("%w: role %s cannot create orders", ErrOrderForbidden, actor.Role)
	}
	if strings.TrimSpace(cmd.CustomerID) == "" {
		return domain.Order{}, fmt.Errorf("%w: customer id is required", ErrOrderInvalidInput)
	}
	currency := strings.ToUpper(strings.TrimSpace(cmd.Currency))
	if len(currency) != 3 {
		return domain.Order{}, fmt.Errorf("%w: currency must be a 3-letter code", ErrOrderInvalidInput)
	}

	lines, err := buildOrderLines(cmd.Lines)
	if err != nil {
		return domain.Order{}, err
	}

	now := s.now()
	order := domain.Order{
		ID:                s.newID(),
		TenantID:          actor.TenantID,
		Status:            domain.OrderStatusDraft,
		CustomerID:        strings.TrimSpace(cmd.CustomerID),
		ShippingAddressID: strings.TrimSpace(cmd.ShippingAddressID),
		ShippingCountry:   strings.ToUpper(strings.TrimSpace(cmd.ShippingCountry)),
		Lines:             lines,
		Currency:          currency,
		CreatedBy:         actor.UserID,
		UpdatedBy:         actor.UserID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	order.RecomputeTotals()

	if err := s.orders.Insert(ctx, order); err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	s.notify(ctx, order, actor, eventOrderCreated)
	return order, nil
}

// Get loads an order, applying lazy quotation expiry when the validity
// window has passed.
func (s *orderService) Get(ctx context.Context, actor Actor, orderID string) (domain.Order, error) {
	if err := requireActor(actor); err != nil {
		return domain.Order{}, err
	}
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, actor.TenantID, orderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}
	return s.expireIfStale(ctx, order), nil
}

// List returns tenant orders. Sales actors only see orders they created.
func (s *orderService) List(ctx context.Context, actor Actor, query OrderListQuery) (domain.CursorPage[domain.Order], error) {
	if err := requireActor(actor); err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	filter := repositories.OrderListFilter{
		Status:     query.Status,
		CustomerID: strings.TrimSpace(query.CustomerID),
		Limit:      query.Limit,
		PageToken:  strings.TrimSpace(query.PageToken),
	}
	if actor.Role == domain.RoleSales {
		filter.CreatedBy = actor.UserID
	}

	page, err := s.orders.List(ctx, actor.TenantID, filter)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, s.mapRepositoryError(err)
	}
	for i := range page.Items {
		page.Items[i] = s.expireIfStale(ctx, page.Items[i])
	}
	return page, nil
}

// UpdateLines replaces the line items of a draft order and recomputes totals.
func (s *orderService) UpdateLines(ctx context.Context, actor Actor, orderID string, lines []OrderLineInput) (domain.Order, error) {
	if err := requireActor(actor); err != nil {
		return domain.Order{}, err
	}
	if actor.Role != domain.RoleAdmin && actor.Role != domain.RoleSales {
		return domain.Order{}, fmt.Errorf("%w: role %s cannot edit orders", ErrOrderForbidden, actor.Role)
	}

	built, err := buildOrderLines(lines)
	if err != nil {
		return domain.Order{}, err
	}
	if len(built) == 0 {
		return domain.Order{}, fmt.Errorf("%w: at least one line is required", ErrOrderInvalidInput)
	}

	now := s.now()
	order, err := s.orders.Mutate(ctx, actor.TenantID, orderID, domain.OrderStatusDraft, func(order *domain.Order) error {
		order.Lines = built
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

// Submit moves a draft with at least one priced line into pending.
func (s *orderService) Submit(ctx context.Context, actor Actor, orderID string) (domain.Order, error) {
	return s.transition(ctx, actor, orderID, domain.OrderStatusPending, func(order *domain.Order, now time.Time) error {
		if len(order.Lines) == 0 {
			return fmt.Errorf("%w: order has no lines", ErrOrderInvalidInput)
		}
		if !order.OrderTotal.IsPositive() {
			return fmt.Errorf("%w: order total must be positive", ErrOrderInvalidInput)
		}
		return nil
	})
}

// ConvertToQuotation turns a draft into a quotation with an issued number
// and a validity window.
func (s *orderService) ConvertToQuotation(ctx context.Context, actor Actor, orderID string, cmd QuotationCommand) (domain.Order, error) {
	if err := requireActor(actor); err != nil {
		return domain.Order{}, err
	}
	if !roleMayReach(domain.OrderStatusQuotation, actor.Role) {
		return domain.Order{}, fmt.Errorf("%w: role %s cannot issue quotations", ErrOrderForbidden, actor.Role)
	}
	if cmd.DaysValid < 0 {
		return domain.Order{}, fmt.Errorf("%w: daysValid must not be negative", ErrOrderInvalidInput)
	}

	days := cmd.DaysValid
	if days == 0 {
		days = s.quotationDays
	}

	// The sequence is issued before the transactional write; a failed write
	// leaves a gap, never a duplicate.
	seq, err := s.counters.Next(ctx, actor.TenantID, quotationNumberCounter, 0)
	if err != nil {
		return domain.Order{}, s.mapCounterError(err)
	}

	now := s.now()
	number := fmt.Sprintf("QT-%d-%06d", now.Year(), seq)

	order, err := s.orders.Mutate(ctx, actor.TenantID, orderID, domain.OrderStatusDraft, func(order *domain.Order) error {
		if !transitionAllowed(order.Status, domain.OrderStatusQuotation, actor.Role) {
			return fmt.Errorf("%w: %s -> %s", ErrOrderInvalidState, order.Status, domain.OrderStatusQuotation)
		}
		order.Status = domain.OrderStatusQuotation
		order.Quotation = &domain.Quotation{
			Number:     number,
			ValidUntil: now.AddDate(0, 0, days),
			Notes:      strings.TrimSpace(cmd.Notes),
		}
		order.UpdatedBy = actor.UserID
		order.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	s.notify(ctx, order, actor, eventOrderStatusChanged)
	return order, nil
}

// Confirm promotes a pending order or live quotation, issuing the order
// number exactly once and freezing totals.
func (s *orderService) Confirm(ctx context.Context, actor Actor, orderID string) (domain.Order, error) {
	if err := requireActor(actor); err != nil {
		return domain.Order{}, err
	}
	if !roleMayReach(domain.OrderStatusConfirmed, actor.Role) {
		return domain.Order{}, fmt.Errorf("%w: role %s cannot confirm orders", ErrOrderForbidden, actor.Role)
	}

	snapshot, err := s.orders.FindByID(ctx, actor.TenantID, orderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}
	snapshot = s.expireIfStale(ctx, snapshot)
	if !transitionAllowed(snapshot.Status, domain.OrderStatusConfirmed, actor.Role) {
		return domain.Order{}, fmt.Errorf("%w: %s -> %s", ErrOrderInvalidState, snapshot.Status, domain.OrderStatusConfirmed)
	}

	seq, err := s.counters.Next(ctx, actor.TenantID, orderNumberCounter, 0)
	if err != nil {
		return domain.Order{}, s.mapCounterError(err)
	}

	now := s.now()
	number := fmt.Sprintf("SO-%d-%06d", now.Year(), seq)

	order, err := s.orders.Mutate(ctx, actor.TenantID, orderID, snapshot.Status, func(order *domain.Order) error {
		if !transitionAllowed(order.Status, domain.OrderStatusConfirmed, actor.Role) {
			return fmt.Errorf("%w: %s -> %s", ErrOrderInvalidState, order.Status, domain.OrderStatusConfirmed)
		}
		order.Status = domain.OrderStatusConfirmed
		if order.OrderNumber == "" {
			order.OrderNumber = number
		}
		order.ConfirmedAt = &now
		order.UpdatedBy = actor.UserID
		order.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	s.notify(ctx, order, actor, eventOrderStatusChanged)
	return order, nil
}

// Ship records the carrier payload and moves a confirmed order to shipped.
func (s *orderService) Ship(ctx context.Context, actor Actor, orderID string, cmd ShipmentCommand) (domain.Order, error) {
	if strings.TrimSpace(cmd.Carrier) == "" {
		return domain.Order{}, fmt.Errorf("%w: carrier is required", ErrOrderInvalidInput)
	}
	return s.transition(ctx, actor, orderID, domain.OrderStatusShipped, func(order *domain.Order, now time.Time) error {
		order.Fulfillment = domain.OrderFulfillment{
			Carrier:           strings.TrimSpace(cmd.Carrier),
			TrackingNumber:    strings.TrimSpace(cmd.TrackingNumber),
			TrackingURL:       strings.TrimSpace(cmd.TrackingURL),
			EstimatedDelivery: cmd.EstimatedDelivery,
			DeliveryNotes:     strings.TrimSpace(cmd.DeliveryNotes),
		}
		order.ShippedAt = &now
		return nil
	})
}

// Deliver closes out a shipped order.
func (s *orderService) Deliver(ctx context.Context, actor Actor, orderID string) (domain.Order, error) {
	return s.transition(ctx, actor, orderID, domain.OrderStatusDelivered, func(order *domain.Order, now time.Time) error {
		order.DeliveredAt = &now
		return nil
	})
}

// Cancel terminates an order. Sales actors may only cancel their own
// pre-confirmation orders; admins may cancel anything not yet shipped.
func (s *orderService) Cancel(ctx context.Context, actor Actor, orderID, reason string) (domain.Order, error) {
	if err := requireActor(actor); err != nil {
		return domain.Order{}, err
	}
	if !roleMayReach(domain.OrderStatusCancelled, actor.Role) {
		return domain.Order{}, fmt.Errorf("%w: role %s cannot cancel orders", ErrOrderForbidden, actor.Role)
	}

	snapshot, err := s.orders.FindByID(ctx, actor.TenantID, orderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}
	snapshot = s.expireIfStale(ctx, snapshot)
	if !transitionAllowed(snapshot.Status, domain.OrderStatusCancelled, actor.Role) {
		if actor.Role == domain.RoleSales && snapshot.Status == domain.OrderStatusConfirmed {
			return domain.Order{}, fmt.Errorf("%w: sales cannot cancel confirmed orders", ErrOrderForbidden)
		}
		return domain.Order{}, fmt.Errorf("%w: %s -> %s", ErrOrderInvalidState, snapshot.Status, domain.OrderStatusCancelled)
	}
	if actor.Role == domain.RoleSales && snapshot.CreatedBy != actor.UserID {
		return domain.Order{}, fmt.Errorf("%w: sales may only cancel their own orders", ErrOrderForbidden)
	}

	now := s.now()
	order, err := s.orders.Mutate(ctx, actor.TenantID, orderID, snapshot.Status, func(order *domain.Order) error {
		if actor.Role == domain.RoleSales && order.CreatedBy != actor.UserID {
			return fmt.Errorf("%w: sales may only cancel their own orders", ErrOrderForbidden)
		}
		order.Status = domain.OrderStatusCancelled
		order.CancelReason = strings.TrimSpace(reason)
		order.CancelledAt = &now
		order.UpdatedBy = actor.UserID
		order.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	s.notify(ctx, order, actor, eventOrderStatusChanged)
	return order, nil
}

// transition runs the shared read -> role gate -> transactional write path
// for single-edge transitions.
func (s *orderService) transition(ctx context.Context, actor Actor, orderID string, target domain.OrderStatus, apply func(order *domain.Order, now time.Time) error) (domain.Order, error) {
	if err := requireActor(actor); err != nil {
		return domain.Order{}, err
	}
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	if !roleMayReach(target, actor.Role) {
		return domain.Order{}, fmt.Errorf("%w: role %s cannot move orders to %s", ErrOrderForbidden, actor.Role, target)
	}

	snapshot, err := s.orders.FindByID(ctx, actor.TenantID, orderID)
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}
	snapshot = s.expireIfStale(ctx, snapshot)
	if !transitionAllowed(snapshot.Status, target, actor.Role) {
		return domain.Order{}, fmt.Errorf("%w: %s -> %s", ErrOrderInvalidState, snapshot.Status, target)
	}

	now := s.now()
	order, err := s.orders.Mutate(ctx, actor.TenantID, orderID, snapshot.Status, func(order *domain.Order) error {
		order.Status = target
		if err := apply(order, now); err != nil {
			return err
		}
		order.RecomputeTotals()
		order.UpdatedBy = actor.UserID
		order.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.Order{}, s.mapRepositoryError(err)
	}

	s.notify(ctx, order, actor, eventOrderStatusChanged)
	return order, nil
}

// expireIfStale applies lazy quotation expiry. The expiry write races other
// writers deliberately; a lost race means someone else already moved the
// order, so the fresh read wins either way.
func (s *orderService) expireIfStale(ctx context.Context, order domain.Order) domain.Order {
	if order.Status != domain.OrderStatusQuotation || order.Quotation == nil {
		return order
	}
	if order.Quotation.ValidUntil.IsZero() || !order.Quotation.ValidUntil.Before(s.now()) {
		return order
	}

	now := s.now()
	expired, err := s.orders.Mutate(ctx, order.TenantID, order.ID, domain.OrderStatusQuotation, func(o *domain.Order) error {
		o.Status = domain.OrderStatusExpired
		o.UpdatedAt = now
		return nil
	})
	if err != nil {
		s.logger(ctx, "order.quotation_expiry_failed", map[string]any{
			"order_id": order.ID,
			"error":    err.Error(),
		})
		if fresh, ferr := s.orders.FindByID(ctx, order.TenantID, order.ID); ferr == nil {
			return fresh
		}
		return order
	}
	return expired
}

// notify publishes the lifecycle event without blocking the caller.
func (s *orderService) notify(ctx context.Context, order domain.Order, actor Actor, event string) {
	if s.publisher == nil {
		return
	}

	message := OrderEventMessage{
		TenantID:   order.TenantID,
		OrderID:    order.ID,
		Event:      event,
		Status:     string(order.Status),
		ActorID:    actor.UserID,
		OccurredAt: s.now(),
	}

	publishCtx := context.WithoutCancel(ctx)
	go func() {
		if _, err := s.publisher.PublishOrderEvent(publishCtx, message); err != nil {
			s.logger(publishCtx, "order.event_publish_failed", map[string]any{
				"order_id": order.ID,
				"event":    event,
				"error":    err.Error(),
			})
		}
	}()
}

func (s *orderService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrOrderInvalidInput) || errors.Is(err, ErrOrderInvalidState) || errors.Is(err, ErrOrderForbidden) {
		return err
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
}

func (s *orderService) mapCounterError(err error) error {
	if err == nil {
		return nil
	}
	var counterErr *repositories.CounterError
	if errors.As(err, &counterErr) && counterErr.Code == repositories.CounterErrorInvalidInput {
		return fmt.Errorf("%w: %v", ErrOrderInvalidInput, err)
	}
	return fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
}

func requireActor(actor Actor) error {
	if strings.TrimSpace(actor.TenantID) == "" || strings.TrimSpace(actor.UserID) == "" {
		return fmt.Errorf("%w: actor identity is required", ErrOrderInvalidInput)
	}
	return nil
}

func buildOrderLines(inputs []OrderLineInput) ([]domain.OrderLine, error) {
	lines := make([]domain.OrderLine, 0, len(inputs))
	for i, input := range inputs {
		sku := strings.TrimSpace(input.SKU)
		if sku == "" {
			return nil, fmt.Errorf("%w: line %d is missing a sku", ErrOrderInvalidInput, i)
		}
		if input.Quantity <= 0 {
			return nil, fmt.Errorf("%w: line %s quantity must be positive", ErrOrderInvalidInput, sku)
		}
		if input.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: line %s unit price must not be negative", ErrOrderInvalidInput, sku)
		}
		if input.VATRate.IsNegative() {
			return nil, fmt.Errorf("%w: line %s vat rate must not be negative", ErrOrderInvalidInput, sku)
		}
		lines = append(lines, domain.OrderLine{
			SKU:       sku,
			Name:      strings.TrimSpace(input.Name),
			Quantity:  input.Quantity,
			UnitPrice: input.UnitPrice,
			VATRate:   input.VATRate,
		})
	}
	return lines, nil
}
