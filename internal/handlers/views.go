package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	domain "github.com/loziogigio/vinc-pim-sub016/internal/domain"
)

// Money and dates are serialised as fixed 2-decimal strings and RFC3339
// timestamps respectively, regardless of the client's number handling.

type orderLineView struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Quantity  int64  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	VATRate   string `json:"vat_rate"`
	TotalNet  string `json:"total_net"`
	TotalVAT  string `json:"total_vat"`
}

type quotationView struct {
	Number     string `json:"number"`
	ValidUntil string `json:"valid_until"`
	Notes      string `json:"notes,omitempty"`
}

type fulfillmentView struct {
	Carrier           string `json:"carrier,omitempty"`
	TrackingNumber    string `json:"tracking_number,omitempty"`
	TrackingURL       string `json:"tracking_url,omitempty"`
	EstimatedDelivery string `json:"estimated_delivery,omitempty"`
	DeliveryNotes     string `json:"delivery_notes,omitempty"`
}

type orderView struct {
	ID                string           `json:"id"`
	OrderNumber       string           `json:"order_number,omitempty"`
	Status            string           `json:"status"`
	CustomerID        string           `json:"customer_id"`
	ShippingAddressID string           `json:"shipping_address_id,omitempty"`
	ShippingCountry   string           `json:"shipping_country,omitempty"`
	Lines             []orderLineView  `json:"lines"`
	SubtotalNet       string           `json:"subtotal_net"`
	TotalVAT          string           `json:"total_vat"`
	ShippingMethod    string           `json:"shipping_method,omitempty"`
	ShippingCost      string           `json:"shipping_cost"`
	OrderTotal        string           `json:"order_total"`
	Currency          string           `json:"currency"`
	Quotation         *quotationView   `json:"quotation,omitempty"`
	Fulfillment       *fulfillmentView `json:"fulfillment,omitempty"`
	CancelReason      string           `json:"cancel_reason,omitempty"`
	CreatedBy         string           `json:"created_by"`
	CreatedAt         string           `json:"created_at"`
	UpdatedAt         string           `json:"updated_at"`
	ConfirmedAt       string           `json:"confirmed_at,omitempty"`
	ShippedAt         string           `json:"shipped_at,omitempty"`
	DeliveredAt       string           `json:"delivered_at,omitempty"`
	CancelledAt       string           `json:"cancelled_at,omitempty"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func newOrderView(order domain.Order) orderView {
	view := orderView{
		ID:                order.ID,
		OrderNumber:       order.OrderNumber,
		Status:            string(order.Status),
		CustomerID:        order.CustomerID,
		ShippingAddressID: order.ShippingAddressID,
		ShippingCountry:   order.ShippingCountry,
		Lines:             make([]orderLineView, 0, len(order.Lines)),
		SubtotalNet:       order.SubtotalNet.StringFixed(2),
		TotalVAT:          order.TotalVAT.StringFixed(2),
		ShippingMethod:    order.ShippingMethod,
		ShippingCost:      order.ShippingCost.StringFixed(2),
		OrderTotal:        order.OrderTotal.StringFixed(2),
		Currency:          order.Currency,
		CancelReason:      order.CancelReason,
		CreatedBy:         order.CreatedBy,
		CreatedAt:         formatTime(order.CreatedAt),
		UpdatedAt:         formatTime(order.UpdatedAt),
		ConfirmedAt:       formatTimePtr(order.ConfirmedAt),
		ShippedAt:         formatTimePtr(order.ShippedAt),
		DeliveredAt:       formatTimePtr(order.DeliveredAt),
		CancelledAt:       formatTimePtr(order.CancelledAt),
	}
	for _, line := range order.Lines {
		view.Lines = append(view.Lines, orderLineView{
			SKU:       line.SKU,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice.StringFixed(2),
			VATRate:   line.VATRate.String(),
			TotalNet:  line.TotalNet.StringFixed(2),
			TotalVAT:  line.TotalVAT.StringFixed(2),
		})
	}
	if order.Quotation != nil {
		view.Quotation = &quotationView{
			Number:     order.Quotation.Number,
			ValidUntil: formatTime(order.Quotation.ValidUntil),
			Notes:      order.Quotation.Notes,
		}
	}
	if order.Fulfillment.Carrier != "" || order.Fulfillment.TrackingNumber != "" {
		view.Fulfillment = &fulfillmentView{
			Carrier:           order.Fulfillment.Carrier,
			TrackingNumber:    order.Fulfillment.TrackingNumber,
			TrackingURL:       order.Fulfillment.TrackingURL,
			EstimatedDelivery: formatTimePtr(order.Fulfillment.EstimatedDelivery),
			DeliveryNotes:     order.Fulfillment.DeliveryNotes,
		}
	}
	return view
}

type transactionView struct {
	ID                string            `json:"id"`
	OrderID           string            `json:"order_id"`
	ProviderName      string            `json:"provider_name"`
	ProviderPaymentID string            `json:"provider_payment_id,omitempty"`
	Status            string            `json:"status"`
	GrossAmount       string            `json:"gross_amount"`
	Currency          string            `json:"currency"`
	CommissionRate    string            `json:"commission_rate,omitempty"`
	CommissionAmount  string            `json:"commission_amount,omitempty"`
	NetAmount         string            `json:"net_amount,omitempty"`
	PaymentType       string            `json:"payment_type"`
	FailureReason     string            `json:"failure_reason,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	CreatedAt         string            `json:"created_at"`
	UpdatedAt         string            `json:"updated_at"`
	CompletedAt       string            `json:"completed_at,omitempty"`
}

func newTransactionView(txn domain.Transaction) transactionView {
	view := transactionView{
		ID:                txn.ID,
		OrderID:           txn.OrderID,
		ProviderName:      txn.ProviderName,
		ProviderPaymentID: txn.ProviderPaymentID,
		Status:            string(txn.Status),
		GrossAmount:       txn.GrossAmount.StringFixed(2),
		Currency:          txn.Currency,
		PaymentType:       string(txn.PaymentType),
		FailureReason:     txn.FailureReason,
		Metadata:          txn.Metadata,
		CreatedAt:         formatTime(txn.CreatedAt),
		UpdatedAt:         formatTime(txn.UpdatedAt),
		CompletedAt:       formatTimePtr(txn.CompletedAt),
	}
	if txn.CommissionRate != nil {
		view.CommissionRate = txn.CommissionRate.String()
	}
	if txn.CommissionAmount != nil {
		view.CommissionAmount = txn.CommissionAmount.StringFixed(2)
	}
	if txn.NetAmount != nil {
		view.NetAmount = txn.NetAmount.StringFixed(2)
	}
	return view
}

type shippingOptionView struct {
	MethodID string `json:"method_id"`
	Label    string `json:"label"`
	Carrier  string `json:"carrier,omitempty"`
	Cost     string `json:"cost"`
	IsFree   bool   `json:"is_free"`
}

func newShippingOptionViews(options []domain.ShippingOption) []shippingOptionView {
	views := make([]shippingOptionView, 0, len(options))
	for _, option := range options {
		views = append(views, shippingOptionView{
			MethodID: option.MethodID,
			Label:    option.Label,
			Carrier:  option.Carrier,
			Cost:     option.Cost.StringFixed(2),
			IsFree:   option.IsFree,
		})
	}
	return views
}

type shippingTierView struct {
	MinSubtotal string `json:"min_subtotal"`
	Rate        string `json:"rate"`
}

type shippingMethodView struct {
	ID      string             `json:"id"`
	Label   string             `json:"label"`
	Carrier string             `json:"carrier,omitempty"`
	Enabled bool               `json:"enabled"`
	Tiers   []shippingTierView `json:"tiers"`
}

type shippingZoneView struct {
	Name      string               `json:"name"`
	Countries []string             `json:"countries"`
	Methods   []shippingMethodView `json:"methods"`
}

type shippingConfigView struct {
	TenantID string             `json:"tenant_id,omitempty"`
	Zones    []shippingZoneView `json:"zones"`
}

func newShippingConfigView(cfg domain.ShippingConfig) shippingConfigView {
	view := shippingConfigView{TenantID: cfg.TenantID, Zones: make([]shippingZoneView, 0, len(cfg.Zones))}
	for _, zone := range cfg.Zones {
		methods := make([]shippingMethodView, 0, len(zone.Methods))
		for _, method := range zone.Methods {
			tiers := make([]shippingTierView, 0, len(method.Tiers))
			for _, tier := range method.Tiers {
				tiers = append(tiers, shippingTierView{
					MinSubtotal: tier.MinSubtotal.StringFixed(2),
					Rate:        tier.Rate.StringFixed(2),
				})
			}
			methods = append(methods, shippingMethodView{
				ID:      method.ID,
				Label:   method.Label,
				Carrier: method.Carrier,
				Enabled: method.Enabled,
				Tiers:   tiers,
			})
		}
		view.Zones = append(view.Zones, shippingZoneView{
			Name:      zone.Name,
			Countries: zone.Countries,
			Methods:   methods,
		})
	}
	return view
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
