package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/loziogigio/vinc-pim-sub016/internal/domain"
	"github.com/loziogigio/vinc-pim-sub016/internal/services"
)

func newShippingRouters(service services.ShippingService) chi.Router {
	handler := NewShippingHandlers(service)
	router := chi.NewRouter()
	router.Route("/orders", handler.OrderRoutes)
	router.Route("/shipping-config", handler.ConfigRoutes)
	return router
}

func TestShippingHandlersListOptions(t *testing.T) {
	service := &stubShippingService{
		optionsFn: func(_ context.Context, _ services.Actor, orderID string) (services.ShippingQuote, error) {
			if orderID != "ord_01" {
				t.Fatalf("expected ord_01, got %s", orderID)
			}
			return services.ShippingQuote{
				Zone: "domestic",
				Options: []domain.ShippingOption{
					{MethodID: "standard", Label: "Standard", Carrier: "BRT", Cost: decimal.RequireFromString("7.50")},
					{MethodID: "express", Label: "Express", Carrier: "DHL", Cost: decimal.Zero, IsFree: true},
				},
			}, nil
		},
	}
	router := newShippingRouters(service)

	req := httptest.NewRequest(http.MethodGet, "/orders/ord_01/shipping-options", nil)
	req = withTestIdentity(req, domain.RoleSales)

	rr := performRequest(router, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Zone    string               `json:"zone"`
		Options []shippingOptionView `json:"options"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Zone != "domestic" || len(resp.Options) != 2 {
		t.Fatalf("unexpected quote: %#v", resp)
	}
	if resp.Options[0].Cost != "7.50" || resp.Options[1].IsFree != true {
		t.Fatalf("unexpected options: %#v", resp.Options)
	}
}

func TestShippingHandlersApplyMethod(t *testing.T) {
	var capturedMethod string
	service := &stubShippingService{
		applyFn: func(_ context.Context, _ services.Actor, _ string, methodID string) (domain.Order, error) {
			capturedMethod = methodID
			order := sampleOrder()
			order.ShippingMethod = methodID
			order.ShippingCost = decimal.RequireFromString("7.50")
			order.RecomputeTotals()
			return order, nil
		},
	}
	router := newShippingRouters(service)

	req := httptest.NewRequest(http.MethodPost, "/orders/ord_01:apply-shipping", strings.NewReader(`{"method_id": "standard"}`))
	req = withTestIdentity(req, domain.RoleSales)

	rr := performRequest(router, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if capturedMethod != "standard" {
		t.Fatalf("expected standard, got %s", capturedMethod)
	}

	var resp orderView
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.ShippingCost != "7.50" || resp.OrderTotal != "31.90" {
		t.Fatalf("unexpected totals: %#v", resp)
	}
}

func TestShippingHandlersApplyMethodRequiresMethodID(t *testing.T) {
	router := newShippingRouters(&stubShippingService{})

	req := httptest.NewRequest(http.MethodPost, "/orders/ord_01:apply-shipping", strings.NewReader(`{"method_id": "  "}`))
	req = withTestIdentity(req, domain.RoleSales)

	rr := performRequest(router, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestShippingHandlersApplyMethodNotConfigured(t *testing.T) {
	service := &stubShippingService{
		applyFn: func(context.Context, services.Actor, string, string) (domain.Order, error) {
			return domain.Order{}, services.ErrShippingNotConfigured
		},
	}
	router := newShippingRouters(service)

	req := httptest.NewRequest(http.MethodPost, "/orders/ord_01:apply-shipping", strings.NewReader(`{"method_id": "standard"}`))
	req = withTestIdentity(req, domain.RoleSales)

	rr := performRequest(router, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}

func TestShippingHandlersSaveConfig(t *testing.T) {
	var captured domain.ShippingConfig
	service := &stubShippingService{
		saveFn: func(_ context.Context, _ services.Actor, cfg domain.ShippingConfig) error {
			captured = cfg
			return nil
		},
	}
	router := newShippingRouters(service)

	body := `{
		"zones": [
			{
				"name": "domestic",
				"countries": ["IT"],
				"methods": [
					{
						"id": "standard",
						"label": "Standard",
						"carrier": "BRT",
						"enabled": true,
						"tiers": [
							{"min_subtotal": "0.00", "rate": "7.50"},
							{"min_subtotal": "50.00", "rate": "0.00"}
						]
					}
				]
			}
		]
	}`
	req := httptest.NewRequest(http.MethodPut, "/shipping-config/", strings.NewReader(body))
	req = withTestIdentity(req, domain.RoleAdmin)

	rr := performRequest(router, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(captured.Zones) != 1 || captured.Zones[0].Name != "domestic" {
		t.Fatalf("unexpected config: %#v", captured)
	}
	method := captured.Zones[0].Methods[0]
	if len(method.Tiers) != 2 || !method.Tiers[1].MinSubtotal.Equal(decimal.RequireFromString("50.00")) {
		t.Fatalf("unexpected tiers: %#v", method.Tiers)
	}
}

func TestShippingHandlersSaveConfigBadTier(t *testing.T) {
	router := newShippingRouters(&stubShippingService{})

	body := `{"zones": [{"name": "domestic", "countries": ["IT"], "methods": [{"id": "standard", "tiers": [{"min_subtotal": "zero", "rate": "7.50"}]}]}]}`
	req := httptest.NewRequest(http.MethodPut, "/shipping-config/", strings.NewReader(body))
	req = withTestIdentity(req, domain.RoleAdmin)

	rr := performRequest(router, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}
