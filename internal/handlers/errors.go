package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/loziogigio/vinc-pim-sub016/internal/platform/httpx"
	"github.com/loziogigio/vinc-pim-sub016/internal/services"
)

// writeServiceError translates service sentinel errors into the canonical
// JSON error envelope.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput),
		errors.Is(err, services.ErrShippingInvalidInput),
		errors.Is(err, services.ErrPaymentInvalidInput),
		errors.Is(err, services.ErrWebhookInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrWebhookSignature):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusUnauthorized))
	case errors.Is(err, services.ErrOrderForbidden),
		errors.Is(err, services.ErrShippingForbidden),
		errors.Is(err, services.ErrPaymentForbidden):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", err.Error(), http.StatusForbidden))
	case errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrPaymentNotFound),
		errors.Is(err, services.ErrShippingNotConfigured):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidState),
		errors.Is(err, services.ErrPaymentInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_state", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict),
		errors.Is(err, services.ErrPaymentConflict),
		errors.Is(err, services.ErrShippingConflict),
		errors.Is(err, services.ErrWebhookConflict):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrPaymentProviderUnavailable),
		errors.Is(err, services.ErrWebhookProviderUnknown):
		httpx.WriteError(ctx, w, httpx.NewError("provider_unavailable", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrPaymentCapability):
		httpx.WriteError(ctx, w, httpx.NewError("capability_unsupported", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrPaymentDeclined):
		httpx.WriteError(ctx, w, httpx.NewError("payment_declined", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrShippingUnknownMethod):
		httpx.WriteError(ctx, w, httpx.NewError("unknown_shipping_method", err.Error(), http.StatusUnprocessableEntity))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "an internal error occurred", http.StatusInternalServerError))
	}
}
