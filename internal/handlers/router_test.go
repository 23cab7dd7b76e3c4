package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/loziogigio/vinc-pim-sub016/internal/domain"
)

func TestNewRouter_DefaultMounts(t *testing.T) {
	healthHandlers := NewHealthHandlers(
		WithHealthSystemService(&stubSystemService{
			report: domain.SystemHealthReport{
				Status: domain.HealthStatusOK,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusOK},
				},
			},
		}),
	)

	router := NewRouter(WithHealthHandlers(healthHandlers))

	t.Run("healthz", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rr := performRequest(router, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
			t.Fatalf("expected content-type application/json, got %s", ct)
		}
	})

	t.Run("readyz", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		rr := performRequest(router, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("unregistered group reports not implemented", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
		rr := performRequest(router, req)

		if rr.Code != http.StatusNotImplemented {
			t.Fatalf("expected status 501, got %d", rr.Code)
		}
	})

	t.Run("unknown route envelope", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/nowhere", nil)
		rr := performRequest(router, req)

		if rr.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", rr.Code)
		}
		var body map[string]any
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}
		if body["error"] != errorNotFoundCode {
			t.Fatalf("expected %s code, got %v", errorNotFoundCode, body["error"])
		}
	})
}

func TestNewRouter_WebhooksSkipAPIMiddleware(t *testing.T) {
	guard := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}

	router := NewRouter(
		WithAPIMiddlewares(guard),
		WithOrderRoutes(func(r chi.Router) {
			r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
		}),
		WithWebhookRoutes(func(r chi.Router) {
			r.Post("/{tenantID}/{provider}", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
		}),
	)

	ordersReq := httptest.NewRequest(http.MethodGet, "/api/v1/orders/", nil)
	ordersRR := performRequest(router, ordersReq)
	if ordersRR.Code != http.StatusUnauthorized {
		t.Fatalf("expected guarded orders group, got %d", ordersRR.Code)
	}

	webhookReq := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/acme/stripe", nil)
	webhookRR := performRequest(router, webhookReq)
	if webhookRR.Code != http.StatusOK {
		t.Fatalf("expected webhook group to bypass api middleware, got %d", webhookRR.Code)
	}
}
