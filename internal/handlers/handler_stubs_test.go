package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/loziogigio/vinc-pim-sub016/internal/domain"
	"github.com/loziogigio/vinc-pim-sub016/internal/platform/auth"
	"github.com/loziogigio/vinc-pim-sub016/internal/services"
)

type stubOrderService struct {
	createFn      func(context.Context, services.Actor, services.CreateOrderCommand) (domain.Order, error)
	getFn         func(context.Context, services.Actor, string) (domain.Order, error)
	listFn        func(context.Context, services.Actor, services.OrderListQuery) (domain.CursorPage[domain.Order], error)
	updateLinesFn func(context.Context, services.Actor, string, []services.OrderLineInput) (domain.Order, error)
	submitFn      func(context.Context, services.Actor, string) (domain.Order, error)
	quoteFn       func(context.Context, services.Actor, string, services.QuotationCommand) (domain.Order, error)
	confirmFn     func(context.Context, services.Actor, string) (domain.Order, error)
	shipFn        func(context.Context, services.Actor, string, services.ShipmentCommand) (domain.Order, error)
	deliverFn     func(context.Context, services.Actor, string) (domain.Order, error)
	cancelFn      func(context.Context, services.Actor, string, string) (domain.Order, error)
}

func (s *stubOrderService) Create(ctx context.Context, actor services.Actor, cmd services.CreateOrderCommand) (domain.Order, error) {
	if s.createFn != nil {
		return s.createFn(ctx, actor, cmd)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) Get(ctx context.Context, actor services.Actor, orderID string) (domain.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, actor, orderID)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) List(ctx context.Context, actor services.Actor, query services.OrderListQuery) (domain.CursorPage[domain.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, actor, query)
	}
	return domain.CursorPage[domain.Order]{}, nil
}

func (s *stubOrderService) UpdateLines(ctx context.Context, actor services.Actor, orderID string, lines []services.OrderLineInput) (domain.Order, error) {
	if s.updateLinesFn != nil {
		return s.updateLinesFn(ctx, actor, orderID, lines)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) Submit(ctx context.Context, actor services.Actor, orderID string) (domain.Order, error) {
	if s.submitFn != nil {
		return s.submitFn(ctx, actor, orderID)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) ConvertToQuotation(ctx context.Context, actor services.Actor, orderID string, cmd services.QuotationCommand) (domain.Order, error) {
	if s.quoteFn != nil {
		return s.quoteFn(ctx, actor, orderID, cmd)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) Confirm(ctx context.Context, actor services.Actor, orderID string) (domain.Order, error) {
	if s.confirmFn != nil {
		return s.confirmFn(ctx, actor, orderID)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) Ship(ctx context.Context, actor services.Actor, orderID string, cmd services.ShipmentCommand) (domain.Order, error) {
	if s.shipFn != nil {
		return s.shipFn(ctx, actor, orderID, cmd)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) Deliver(ctx context.Context, actor services.Actor, orderID string) (domain.Order, error) {
	if s.deliverFn != nil {
		return s.deliverFn(ctx, actor, orderID)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderService) Cancel(ctx context.Context, actor services.Actor, orderID string, reason string) (domain.Order, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, actor, orderID, reason)
	}
	return domain.Order{}, errors.New("not implemented")
}

type stubPaymentService struct {
	chargeFn func(context.Context, services.Actor, services.ChargeCommand) (domain.Transaction, error)
	refundFn func(context.Context, services.Actor, string, services.RefundCommand) (domain.Transaction, error)
	getFn    func(context.Context, services.Actor, string) (domain.Transaction, error)
	listFn   func(context.Context, services.Actor, string) ([]domain.Transaction, error)
}

func (s *stubPaymentService) Charge(ctx context.Context, actor services.Actor, cmd services.ChargeCommand) (domain.Transaction, error) {
	if s.chargeFn != nil {
		return s.chargeFn(ctx, actor, cmd)
	}
	return domain.Transaction{}, errors.New("not implemented")
}

func (s *stubPaymentService) Refund(ctx context.Context, actor services.Actor, transactionID string, cmd services.RefundCommand) (domain.Transaction, error) {
	if s.refundFn != nil {
		return s.refundFn(ctx, actor, transactionID, cmd)
	}
	return domain.Transaction{}, errors.New("not implemented")
}

func (s *stubPaymentService) GetTransaction(ctx context.Context, actor services.Actor, transactionID string) (domain.Transaction, error) {
	if s.getFn != nil {
		return s.getFn(ctx, actor, transactionID)
	}
	return domain.Transaction{}, errors.New("not implemented")
}

func (s *stubPaymentService) ListByOrder(ctx context.Context, actor services.Actor, orderID string) ([]domain.Transaction, error) {
	if s.listFn != nil {
		return s.listFn(ctx, actor, orderID)
	}
	return nil, nil
}

type stubShippingService struct {
	optionsFn func(context.Context, services.Actor, string) (services.ShippingQuote, error)
	applyFn   func(context.Context, services.Actor, string, string) (domain.Order, error)
	configFn  func(context.Context, services.Actor) (domain.ShippingConfig, error)
	saveFn    func(context.Context, services.Actor, domain.ShippingConfig) error
}

func (s *stubShippingService) Options(ctx context.Context, actor services.Actor, orderID string) (services.ShippingQuote, error) {
	if s.optionsFn != nil {
		return s.optionsFn(ctx, actor, orderID)
	}
	return services.ShippingQuote{}, errors.New("not implemented")
}

func (s *stubShippingService) ApplyMethod(ctx context.Context, actor services.Actor, orderID, methodID string) (domain.Order, error) {
	if s.applyFn != nil {
		return s.applyFn(ctx, actor, orderID, methodID)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubShippingService) Config(ctx context.Context, actor services.Actor) (domain.ShippingConfig, error) {
	if s.configFn != nil {
		return s.configFn(ctx, actor)
	}
	return domain.ShippingConfig{}, errors.New("not implemented")
}

func (s *stubShippingService) SaveConfig(ctx context.Context, actor services.Actor, cfg domain.ShippingConfig) error {
	if s.saveFn != nil {
		return s.saveFn(ctx, actor, cfg)
	}
	return errors.New("not implemented")
}

type stubWebhookService struct {
	processFn func(context.Context, string, string, []byte, http.Header) (services.WebhookResult, error)
}

func (s *stubWebhookService) Process(ctx context.Context, tenantID, providerName string, payload []byte, headers http.Header) (services.WebhookResult, error) {
	if s.processFn != nil {
		return s.processFn(ctx, tenantID, providerName, payload, headers)
	}
	return services.WebhookResult{}, errors.New("not implemented")
}

type stubSystemService struct {
	report domain.SystemHealthReport
	err    error
}

func (s *stubSystemService) Health(context.Context) (domain.SystemHealthReport, error) {
	return s.report, s.err
}

func withTestIdentity(req *http.Request, role domain.Role) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{
		TenantID: "acme",
		UserID:   "user-1",
		Role:     role,
	}))
}

func sampleOrder() domain.Order {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	order := domain.Order{
		ID:              "ord_01",
		TenantID:        "acme",
		Status:          domain.OrderStatusDraft,
		CustomerID:      "cust-9",
		ShippingCountry: "IT",
		Currency:        "EUR",
		Lines: []domain.OrderLine{
			{
				SKU:       "SKU-1",
				Name:      "Widget",
				Quantity:  2,
				UnitPrice: decimal.RequireFromString("10.00"),
				VATRate:   decimal.RequireFromString("0.22"),
			},
		},
		CreatedBy: "user-1",
		UpdatedBy: "user-1",
		CreatedAt: now,
		UpdatedAt: now,
	}
	order.RecomputeTotals()
	return order
}

func performRequest(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}
