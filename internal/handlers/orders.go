package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/loziogigio/vinc-pim-sub016/internal/domain"
	"github.com/loziogigio/vinc-pim-sub016/internal/platform/auth"
	"github.com/loziogigio/vinc-pim-sub016/internal/platform/httpx"
	"github.com/loziogigio/vinc-pim-sub016/internal/platform/pagination"
	"github.com/loziogigio/vinc-pim-sub016/internal/services"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
	maxOrderBodySize     = 64 * 1024
)

type orderLineRequest struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Quantity  int64  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	VATRate   string `json:"vat_rate"`
}

type createOrderRequest struct {
	CustomerID        string             `json:"customer_id"`
	Currency          string             `json:"currency"`
	ShippingAddressID string             `json:"shipping_address_id"`
	ShippingCountry   string             `json:"shipping_country"`
	Lines             []orderLineRequest `json:"lines"`
}

type updateLinesRequest struct {
	Lines []orderLineRequest `json:"lines"`
}

type quotationRequest struct {
	DaysValid int    `json:"days_valid"`
	Notes     string `json:"notes"`
}

type shipmentRequest struct {
	Carrier           string     `json:"carrier"`
	TrackingNumber    string     `json:"tracking_number"`
	TrackingURL       string     `json:"tracking_url"`
	EstimatedDelivery *time.Time `json:"estimated_delivery"`
	DeliveryNotes     string     `json:"delivery_notes"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type orderListResponse struct {
	Orders        []orderView `json:"orders"`
	NextPageToken string      `json:"next_page_token,omitempty"`
}

// OrderHandlers exposes the order lifecycle endpoints.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Put("/{orderID}/lines", h.updateLines)
	r.Post("/{orderID}:submit", h.submitOrder)
	r.Post("/{orderID}:quote", h.quoteOrder)
	r.Post("/{orderID}:confirm", h.confirmOrder)
	r.Post("/{orderID}:ship", h.shipOrder)
	r.Post("/{orderID}:deliver", h.deliverOrder)
	r.Post("/{orderID}:cancel", h.cancelOrder)
}

// actorFromContext converts the gateway identity into a service actor.
func actorFromContext(ctx context.Context) (services.Actor, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return services.Actor{}, false
	}
	return services.Actor{
		TenantID: identity.TenantID,
		UserID:   identity.UserID,
		Role:     identity.Role,
	}, true
}

func requireActorOrError(w http.ResponseWriter, r *http.Request) (services.Actor, bool) {
	actor, ok := actorFromContext(r.Context())
	if !ok {
		httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return services.Actor{}, false
	}
	return actor, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxOrderBodySize))
	if err := decoder.Decode(target); err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return false
	}
	return true
}

func parseOrderLines(w http.ResponseWriter, r *http.Request, inputs []orderLineRequest) ([]services.OrderLineInput, bool) {
	lines := make([]services.OrderLineInput, 0, len(inputs))
	for _, input := range inputs {
		unitPrice, err := decimal.NewFromString(strings.TrimSpace(input.UnitPrice))
		if err != nil {
			httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "unit_price must be a decimal string", http.StatusBadRequest))
			return nil, false
		}
		vatRate := decimal.Zero
		if strings.TrimSpace(input.VATRate) != "" {
			vatRate, err = decimal.NewFromString(strings.TrimSpace(input.VATRate))
			if err != nil {
				httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "vat_rate must be a decimal string", http.StatusBadRequest))
				return nil, false
			}
		}
		lines = append(lines, services.OrderLineInput{
			SKU:       input.SKU,
			Name:      input.Name,
			Quantity:  input.Quantity,
			UnitPrice: unitPrice,
			VATRate:   vatRate,
		})
	}
	return lines, true
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActorOrError(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	lines, ok := parseOrderLines(w, r, req.Lines)
	if !ok {
		return
	}

	order, err := h.orders.Create(r.Context(), actor, services.CreateOrderCommand{
		CustomerID:        req.CustomerID,
		Currency:          req.Currency,
		ShippingAddressID: req.ShippingAddressID,
		ShippingCountry:   req.ShippingCountry,
		Lines:             lines,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, newOrderView(order))
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActorOrError(w, r)
	if !ok {
		return
	}

	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize: defaultOrderPageSize,
		MaxPageSize:     maxOrderPageSize,
	})
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "invalid pagination parameters", http.StatusBadRequest))
		return
	}

	query := r.URL.Query()
	listQuery := services.OrderListQuery{
		CustomerID: strings.TrimSpace(query.Get("customer_id")),
		Limit:      params.PageSize,
		PageToken:  params.PageToken,
	}
	if raw := strings.TrimSpace(query.Get("status")); raw != "" {
		listQuery.Status = domain.OrderStatus(raw)
	}

	page, err := h.orders.List(r.Context(), actor, listQuery)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	views := make([]orderView, 0, len(page.Items))
	for _, order := range page.Items {
		views = append(views, newOrderView(order))
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{
		Orders:        views,
		NextPageToken: page.NextPageToken,
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActorOrError(w, r)
	if !ok {
		return
	}

	order, err := h.orders.Get(r.Context(), actor, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newOrderView(order))
}

func (h *OrderHandlers) updateLines(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActorOrError(w, r)
	if !ok {
		return
	}

	var req updateLinesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	lines, ok := parseOrderLines(w, r, req.Lines)
	if !ok {
		return
	}

	order, err := h.orders.UpdateLines(r.Context(), actor, chi.URLParam(r, "orderID"), lines)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newOrderView(order))
}

func (h *OrderHandlers) submitOrder(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, func(ctx context.Context, actor services.Actor, orderID string) (domain.Order, error) {
		return h.orders.Submit(ctx, actor, orderID)
	})
}

func (h *OrderHandlers) quoteOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActorOrError(w, r)
	if !ok {
		return
	}

	var req quotationRequest
	if r.ContentLength != 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}

	order, err := h.orders.ConvertToQuotation(r.Context(), actor, chi.URLParam(r, "orderID"), services.QuotationCommand{
		DaysValid: req.DaysValid,
		Notes:     req.Notes,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newOrderView(order))
}

func (h *OrderHandlers) confirmOrder(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, func(ctx context.Context, actor services.Actor, orderID string) (domain.Order, error) {
		return h.orders.Confirm(ctx, actor, orderID)
	})
}

func (h *OrderHandlers) shipOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActorOrError(w, r)
	if !ok {
		return
	}

	var req shipmentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	order, err := h.orders.Ship(r.Context(), actor, chi.URLParam(r, "orderID"), services.ShipmentCommand{
		Carrier:           req.Carrier,
		TrackingNumber:    req.TrackingNumber,
		TrackingURL:       req.TrackingURL,
		EstimatedDelivery: req.EstimatedDelivery,
		DeliveryNotes:     req.DeliveryNotes,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newOrderView(order))
}

func (h *OrderHandlers) deliverOrder(w http.ResponseWriter, r *http.Request) {
	h.runTransition(w, r, func(ctx context.Context, actor services.Actor, orderID string) (domain.Order, error) {
		return h.orders.Deliver(ctx, actor, orderID)
	})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActorOrError(w, r)
	if !ok {
		return
	}

	var req cancelOrderRequest
	if r.ContentLength != 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}

	order, err := h.orders.Cancel(r.Context(), actor, chi.URLParam(r, "orderID"), req.Reason)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newOrderView(order))
}

func (h *OrderHandlers) runTransition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, actor services.Actor, orderID string) (domain.Order, error)) {
	actor, ok := requireActorOrError(w, r)
	if !ok {
		return
	}

	order, err := fn(r.Context(), actor, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newOrderView(order))
}
