package handlers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/loziogigio/vinc-pim-sub016/internal/platform/httpx"
	"github.com/loziogigio/vinc-pim-sub016/internal/services"
)

const maxWebhookBodySize = 512 * 1024

// WebhookHandlers receives asynchronous payment provider notifications.
// The endpoints are unauthenticated; each delivery is verified against
// the provider's signing secret before it touches any state.
type WebhookHandlers struct {
	webhooks services.WebhookService
}

// NewWebhookHandlers constructs a new WebhookHandlers instance.
func NewWebhookHandlers(webhooks services.WebhookService) *WebhookHandlers {
	return &WebhookHandlers{webhooks: webhooks}
}

// Routes registers the provider callback endpoints.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/{tenantID}/{provider}", h.receive)
}

func (h *WebhookHandlers) receive(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	provider := chi.URLParam(r, "provider")

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodySize))
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "unable to read webhook payload", http.StatusBadRequest))
		return
	}

	result, err := h.webhooks.Process(r.Context(), tenantID, provider, payload, r.Header)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"received": true,
		"event_id": result.EventID,
	})
}
