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

type chargeRequest struct {
	OrderID        string            `json:"order_id"`
	Provider       string            `json:"provider"`
	Amount         string            `json:"amount"`
	Currency       string            `json:"currency"`
	PaymentType    string            `json:"payment_type"`
	IdempotencyKey string            `json:"idempotency_key"`
	Metadata       map[string]string `json:"metadata"`
}

type refundRequest struct {
	Amount string `json:"amount"`
	Reason string `json:"reason"`
}

// PaymentHandlers exposes charge, refund and transaction lookup endpoints.
type PaymentHandlers struct {
	payments services.PaymentService
}

// NewPaymentHandlers constructs a new PaymentHandlers instance.
func NewPaymentHandlers(payments services.PaymentService) *PaymentHandlers {
	return &PaymentHandlers{payments: payments}
}

// Routes registers the /payments endpoints.
func (h *PaymentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.charge)
	r.Get("/{transactionID}", h.getTransaction)
	r.Post("/{transactionID}:refund", h.refund)
}

// OrderRoutes registers the order-scoped transaction listing.
func (h *PaymentHandlers) OrderRoutes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{orderID}/transactions", h.listByOrder)
}

func (h *PaymentHandlers) charge(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActorOrError(w, r)
	if !ok {
		return
	}

	var req chargeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "amount must be a decimal string", http.StatusBadRequest))
		return
	}

	txn, err := h.payments.Charge(r.Context(), actor, services.ChargeCommand{
		OrderID:        req.OrderID,
		ProviderName:   req.Provider,
		Amount:         amount,
		Currency:       req.Currency,
		PaymentType:    domain.PaymentType(req.PaymentType),
		IdempotencyKey: req.IdempotencyKey,
		Metadata:       req.Metadata,
	})
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, newTransactionView(txn))
}

func (h *PaymentHandlers) refund(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActorOrError(w, r)
	if !ok {
		return
	}

	var req refundRequest
	if r.ContentLength != 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}

	cmd := services.RefundCommand{Reason: req.Reason}
	if strings.TrimSpace(req.Amount) != "" {
		amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
		if err != nil {
			httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", "amount must be a decimal string", http.StatusBadRequest))
			return
		}
		cmd.Amount = &amount
	}

	txn, err := h.payments.Refund(r.Context(), actor, chi.URLParam(r, "transactionID"), cmd)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newTransactionView(txn))
}

func (h *PaymentHandlers) getTransaction(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActorOrError(w, r)
	if !ok {
		return
	}

	txn, err := h.payments.GetTransaction(r.Context(), actor, chi.URLParam(r, "transactionID"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newTransactionView(txn))
}

func (h *PaymentHandlers) listByOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActorOrError(w, r)
	if !ok {
		return
	}

	txns, err := h.payments.ListByOrder(r.Context(), actor, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	views := make([]transactionView, 0, len(txns))
	for _, txn := range txns {
		views = append(views, newTransactionView(txn))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"transactions": views})
}
