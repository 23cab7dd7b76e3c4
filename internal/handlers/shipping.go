package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/loziogigio/vinc-pim-sub016/internal/domain"
	"github.com/loziogigio/vinc-pim-sub016/internal/platform/httpx"
	"github.com/loziogigio/vinc-pim-sub016/internal/services"
)

type shippingTierRequest struct {
	MinSubtotal string `json:"min_subtotal"`
	Rate        string `json:"rate"`
}

type shippingMethodRequest struct {
	ID      string                `json:"id"`
	Label   string                `json:"label"`
	Carrier string                `json:"carrier"`
	Enabled bool                  `json:"enabled"`
	Tiers   []shippingTierRequest `json:"tiers"`
}

type shippingZoneRequest struct {
	Name      string                  `json:"name"`
	Countries []string                `json:"countries"`
	Methods   []shippingMethodRequest `json:"methods"`
}

type shippingConfigRequest struct {
	Zones []shippingZoneRequest `json:"zones"`
}

type applyShippingRequest struct {
	MethodID string `json:"method_id"`
}

// ShippingHandlers exposes shipping pricing and configuration endpoints.
type ShippingHandlers struct {
	shipping services.ShippingService
}

// NewShippingHandlers constructs a new ShippingHandlers instance.
func NewShippingHandlers(shipping services.ShippingService) *ShippingHandlers {
	return &ShippingHandlers{shipping: shipping}
}

// OrderRoutes registers the order-scoped shipping endpoints.
func (h *ShippingHandlers) OrderRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{orderID}/shipping-options", h.listOptions)
	r.Post("/{orderID}:apply-shipping", h.applyMethod)
}

// ConfigRoutes registers the tenant shipping configuration endpoints.
func (h *ShippingHandlers) ConfigRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.getConfig)
	r.Put("/", h.saveConfig)
}

func (h *ShippingHandlers) listOptions(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActorOrError(w, r)
	if !ok {
		return
	}

	quote, err := h.shipping.Options(r.Context(), actor, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"zone":    quote.Zone,
		"options": newShippingOptionViews(quote.Options),
	})
}

func (h *ShippingHandlers) applyMethod(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActorOrError(w, r)
	if !ok {
		return
	}

	var req applyShippingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.MethodID) == "" {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "method_id is required", http.StatusBadRequest))
		return
	}

	order, err := h.shipping.ApplyMethod(r.Context(), actor, chi.URLParam(r, "orderID"), req.MethodID)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newOrderView(order))
}

func (h *ShippingHandlers) getConfig(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActorOrError(w, r)
	if !ok {
		return
	}

	cfg, err := h.shipping.Config(r.Context(), actor)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newShippingConfigView(cfg))
}

func (h *ShippingHandlers) saveConfig(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActorOrError(w, r)
	if !ok {
		return
	}

	var req shippingConfigRequest
	if !decodeBody(w, r, &req) {
		return
	}
	cfg, ok := parseShippingConfig(w, r, req)
	if !ok {
		return
	}

	if err := h.shipping.SaveConfig(r.Context(), actor, cfg); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newShippingConfigView(cfg))
}

func parseShippingConfig(w http.ResponseWriter, r *http.Request, req shippingConfigRequest) (domain.ShippingConfig, bool) {
	cfg := domain.ShippingConfig{Zones: make([]domain.ShippingZone, 0, len(req.Zones))}
	for _, zone := range req.Zones {
		methods := make([]domain.ShippingMethod, 0, len(zone.Methods))
		for _, method := range zone.Methods {
			tiers := make([]domain.ShippingTier, 0, len(method.Tiers))
			for _, tier := range method.Tiers {
				minSubtotal, err := decimal.NewFromString(strings.TrimSpace(tier.MinSubtotal))
				if err != nil {
					httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "min_subtotal must be a decimal string", http.StatusBadRequest))
					return domain.ShippingConfig{}, false
				}
				rate, err := decimal.NewFromString(strings.TrimSpace(tier.Rate))
				if err != nil {
					httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "rate must be a decimal string", http.StatusBadRequest))
					return domain.ShippingConfig{}, false
				}
				tiers = append(tiers, domain.ShippingTier{MinSubtotal: minSubtotal, Rate: rate})
			}
			methods = append(methods, domain.ShippingMethod{
				ID:      method.ID,
				Label:   method.Label,
				Carrier: method.Carrier,
				Enabled: method.Enabled,
				Tiers:   tiers,
			})
		}
		cfg.Zones = append(cfg.Zones, domain.ShippingZone{
			Name:      zone.Name,
			Countries: zone.Countries,
			Methods:   methods,
		})
	}
	return cfg, true
}
