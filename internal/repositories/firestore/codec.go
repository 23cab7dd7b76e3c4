package firestore

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/loziogigio/vinc-pim-sub016/internal/domain"
)

// Monetary values persist as fixed two-decimal strings so documents stay
// exact regardless of the reader's float handling.

func encodeAmount(value decimal.Decimal) string {
	return value.StringFixed(2)
}

func encodeAmountPtr(value *decimal.Decimal) string {
	if value == nil {
		return ""
	}
	return value.StringFixed(2)
}

func encodeRate(value decimal.Decimal) string {
	return value.String()
}

func decodeAmount(field, raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode %s %q: %w", field, raw, err)
	}
	return value, nil
}

func decodeAmountPtr(field, raw string) (*decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	value, err := decodeAmount(field, raw)
	if err != nil {
		return nil, err
	}
	return &value, nil
}

type orderLineDocument struct {
	SKU       string `firestore:"sku"`
	Name      string `firestore:"name"`
	Quantity  int64  `firestore:"quantity"`
	UnitPrice string `firestore:"unitPrice"`
	VATRate   string `firestore:"vatRate"`
	TotalNet  string `firestore:"totalNet"`
	TotalVAT  string `firestore:"totalVat"`
}

type quotationDocument struct {
	Number     string    `firestore:"number"`
	ValidUntil time.Time `firestore:"validUntil"`
	Notes      string    `firestore:"notes,omitempty"`
}

type fulfillmentDocument struct {
	Carrier           string     `firestore:"carrier,omitempty"`
	TrackingNumber    string     `firestore:"trackingNumber,omitempty"`
	TrackingURL       string     `firestore:"trackingUrl,omitempty"`
	EstimatedDelivery *time.Time `firestore:"estimatedDelivery,omitempty"`
	DeliveryNotes     string     `firestore:"deliveryNotes,omitempty"`
}

type orderDocument struct {
	TenantID          string              `firestore:"tenantId"`
	OrderNumber       string              `firestore:"orderNumber,omitempty"`
	Status            string              `firestore:"status"`
	CustomerID        string              `firestore:"customerId"`
	ShippingAddressID string              `firestore:"shippingAddressId,omitempty"`
	ShippingCountry   string              `firestore:"shippingCountry,omitempty"`
	Lines             []orderLineDocument `firestore:"lines"`
	SubtotalNet       string              `firestore:"subtotalNet"`
	TotalVAT          string              `firestore:"totalVat"`
	ShippingMethod    string              `firestore:"shippingMethod,omitempty"`
	ShippingCost      string              `firestore:"shippingCost"`
	OrderTotal        string              `firestore:"orderTotal"`
	Currency          string              `firestore:"currency"`
	Quotation         *quotationDocument  `firestore:"quotation,omitempty"`
	Fulfillment       fulfillmentDocument `firestore:"fulfillment,omitempty"`
	CancelReason      string              `firestore:"cancelReason,omitempty"`
	CreatedBy         string              `firestore:"createdBy"`
	UpdatedBy         string              `firestore:"updatedBy,omitempty"`
	CreatedAt         time.Time           `firestore:"createdAt"`
	UpdatedAt         time.Time           `firestore:"updatedAt"`
	ConfirmedAt       *time.Time          `firestore:"confirmedAt,omitempty"`
	ShippedAt         *time.Time          `firestore:"shippedAt,omitempty"`
	DeliveredAt       *time.Time          `firestore:"deliveredAt,omitempty"`
	CancelledAt       *time.Time          `firestore:"cancelledAt,omitempty"`
}

func encodeOrder(order domain.Order) orderDocument {
	doc := orderDocument{
		TenantID:          order.TenantID,
		OrderNumber:       order.OrderNumber,
		Status:            string(order.Status),
		CustomerID:        order.CustomerID,
		ShippingAddressID: order.ShippingAddressID,
		ShippingCountry:   order.ShippingCountry,
		Lines:             make([]orderLineDocument, 0, len(order.Lines)),
		SubtotalNet:       encodeAmount(order.SubtotalNet),
		TotalVAT:          encodeAmount(order.TotalVAT),
		ShippingMethod:    order.ShippingMethod,
		ShippingCost:      encodeAmount(order.ShippingCost),
		OrderTotal:        encodeAmount(order.OrderTotal),
		Currency:          order.Currency,
		CancelReason:      order.CancelReason,
		CreatedBy:         order.CreatedBy,
		UpdatedBy:         order.UpdatedBy,
		CreatedAt:         order.CreatedAt,
		UpdatedAt:         order.UpdatedAt,
		ConfirmedAt:       order.ConfirmedAt,
		ShippedAt:         order.ShippedAt,
		DeliveredAt:       order.DeliveredAt,
		CancelledAt:       order.CancelledAt,
		Fulfillment: fulfillmentDocument{
			Carrier:           order.Fulfillment.Carrier,
			TrackingNumber:    order.Fulfillment.TrackingNumber,
			TrackingURL:       order.Fulfillment.TrackingURL,
			EstimatedDelivery: order.Fulfillment.EstimatedDelivery,
			DeliveryNotes:     order.Fulfillment.DeliveryNotes,
		},
	}
	for _, line := range order.Lines {
		doc.Lines = append(doc.Lines, orderLineDocument{
			SKU:       line.SKU,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: encodeAmount(line.UnitPrice),
			VATRate:   encodeRate(line.VATRate),
			TotalNet:  encodeAmount(line.TotalNet),
			TotalVAT:  encodeAmount(line.TotalVAT),
		})
	}
	if order.Quotation != nil {
		doc.Quotation = &quotationDocument{
			Number:     order.Quotation.Number,
			ValidUntil: order.Quotation.ValidUntil,
			Notes:      order.Quotation.Notes,
		}
	}
	return doc
}

func decodeOrder(id string, doc orderDocument) (domain.Order, error) {
	order := domain.Order{
		ID:                id,
		TenantID:          doc.TenantID,
		OrderNumber:       doc.OrderNumber,
		Status:            domain.OrderStatus(doc.Status),
		CustomerID:        doc.CustomerID,
		ShippingAddressID: doc.ShippingAddressID,
		ShippingCountry:   doc.ShippingCountry,
		ShippingMethod:    doc.ShippingMethod,
		Currency:          doc.Currency,
		CancelReason:      doc.CancelReason,
		CreatedBy:         doc.CreatedBy,
		UpdatedBy:         doc.UpdatedBy,
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
		ConfirmedAt:       doc.ConfirmedAt,
		ShippedAt:         doc.ShippedAt,
		DeliveredAt:       doc.DeliveredAt,
		CancelledAt:       doc.CancelledAt,
		Fulfillment: domain.OrderFulfillment{
			Carrier:           doc.Fulfillment.Carrier,
			TrackingNumber:    doc.Fulfillment.TrackingNumber,
			TrackingURL:       doc.Fulfillment.TrackingURL,
			EstimatedDelivery: doc.Fulfillment.EstimatedDelivery,
			DeliveryNotes:     doc.Fulfillment.DeliveryNotes,
		},
	}

	var err error
	if order.SubtotalNet, err = decodeAmount("subtotalNet", doc.SubtotalNet); err != nil {
		return domain.Order{}, err
	}
	if order.TotalVAT, err = decodeAmount("totalVat", doc.TotalVAT); err != nil {
		return domain.Order{}, err
	}
	if order.ShippingCost, err = decodeAmount("shippingCost", doc.ShippingCost); err != nil {
		return domain.Order{}, err
	}
	if order.OrderTotal, err = decodeAmount("orderTotal", doc.OrderTotal); err != nil {
		return domain.Order{}, err
	}

	order.Lines = make([]domain.OrderLine, 0, len(doc.Lines))
	for _, line := range doc.Lines {
		decoded := domain.OrderLine{
			SKU:      line.SKU,
			Name:     line.Name,
			Quantity: line.Quantity,
		}
		if decoded.UnitPrice, err = decodeAmount("unitPrice", line.UnitPrice); err != nil {
			return domain.Order{}, err
		}
		if decoded.VATRate, err = decodeAmount("vatRate", line.VATRate); err != nil {
			return domain.Order{}, err
		}
		if decoded.TotalNet, err = decodeAmount("totalNet", line.TotalNet); err != nil {
			return domain.Order{}, err
		}
		if decoded.TotalVAT, err = decodeAmount("totalVat", line.TotalVAT); err != nil {
			return domain.Order{}, err
		}
		order.Lines = append(order.Lines, decoded)
	}

	if doc.Quotation != nil {
		order.Quotation = &domain.Quotation{
			Number:     doc.Quotation.Number,
			ValidUntil: doc.Quotation.ValidUntil,
			Notes:      doc.Quotation.Notes,
		}
	}

	return order, nil
}

type transactionDocument struct {
	TenantID          string            `firestore:"tenantId"`
	OrderID           string            `firestore:"orderId"`
	IdempotencyKey    string            `firestore:"idempotencyKey"`
	ProviderName      string            `firestore:"providerName"`
	ProviderPaymentID string            `firestore:"providerPaymentId,omitempty"`
	Status            string            `firestore:"status"`
	GrossAmount       string            `firestore:"grossAmount"`
	Currency          string            `firestore:"currency"`
	CommissionRate    string            `firestore:"commissionRate,omitempty"`
	CommissionAmount  string            `firestore:"commissionAmount,omitempty"`
	NetAmount         string            `firestore:"netAmount,omitempty"`
	PaymentType       string            `firestore:"paymentType"`
	FailureReason     string            `firestore:"failureReason,omitempty"`
	Metadata          map[string]string `firestore:"metadata,omitempty"`
	CreatedAt         time.Time         `firestore:"createdAt"`
	UpdatedAt         time.Time         `firestore:"updatedAt"`
	CompletedAt       *time.Time        `firestore:"completedAt,omitempty"`
}

func encodeTransaction(txn domain.Transaction) transactionDocument {
	doc := transactionDocument{
		TenantID:          txn.TenantID,
		OrderID:           txn.OrderID,
		IdempotencyKey:    txn.IdempotencyKey,
		ProviderName:      txn.ProviderName,
		ProviderPaymentID: txn.ProviderPaymentID,
		Status:            string(txn.Status),
		GrossAmount:       encodeAmount(txn.GrossAmount),
		Currency:          txn.Currency,
		CommissionAmount:  encodeAmountPtr(txn.CommissionAmount),
		NetAmount:         encodeAmountPtr(txn.NetAmount),
		PaymentType:       string(txn.PaymentType),
		FailureReason:     txn.FailureReason,
		Metadata:          txn.Metadata,
		CreatedAt:         txn.CreatedAt,
		UpdatedAt:         txn.UpdatedAt,
		CompletedAt:       txn.CompletedAt,
	}
	if txn.CommissionRate != nil {
		doc.CommissionRate = txn.CommissionRate.String()
	}
	return doc
}

func decodeTransaction(id string, doc transactionDocument) (domain.Transaction, error) {
	txn := domain.Transaction{
		ID:                id,
		TenantID:          doc.TenantID,
		OrderID:           doc.OrderID,
		IdempotencyKey:    doc.IdempotencyKey,
		ProviderName:      doc.ProviderName,
		ProviderPaymentID: doc.ProviderPaymentID,
		Status:            domain.TransactionStatus(doc.Status),
		Currency:          doc.Currency,
		PaymentType:       domain.PaymentType(doc.PaymentType),
		FailureReason:     doc.FailureReason,
		Metadata:          doc.Metadata,
		CreatedAt:         doc.CreatedAt,
		UpdatedAt:         doc.UpdatedAt,
		CompletedAt:       doc.CompletedAt,
	}

	var err error
	if txn.GrossAmount, err = decodeAmount("grossAmount", doc.GrossAmount); err != nil {
		return domain.Transaction{}, err
	}
	if txn.CommissionRate, err = decodeAmountPtr("commissionRate", doc.CommissionRate); err != nil {
		return domain.Transaction{}, err
	}
	if txn.CommissionAmount, err = decodeAmountPtr("commissionAmount", doc.CommissionAmount); err != nil {
		return domain.Transaction{}, err
	}
	if txn.NetAmount, err = decodeAmountPtr("netAmount", doc.NetAmount); err != nil {
		return domain.Transaction{}, err
	}

	return txn, nil
}

type shippingTierDocument struct {
	MinSubtotal string `firestore:"minSubtotal"`
	Rate        string `firestore:"rate"`
}

type shippingMethodDocument struct {
	ID      string                 `firestore:"id"`
	Label   string                 `firestore:"label"`
	Carrier string                 `firestore:"carrier,omitempty"`
	Enabled bool                   `firestore:"enabled"`
	Tiers   []shippingTierDocument `firestore:"tiers"`
}

type shippingZoneDocument struct {
	Name      string                   `firestore:"name"`
	Countries []string                 `firestore:"countries"`
	Methods   []shippingMethodDocument `firestore:"methods"`
}

type shippingConfigDocument struct {
	TenantID  string                 `firestore:"tenantId"`
	Zones     []shippingZoneDocument `firestore:"zones"`
	UpdatedAt time.Time              `firestore:"updatedAt"`
}

func encodeShippingConfig(cfg domain.ShippingConfig, now time.Time) shippingConfigDocument {
	doc := shippingConfigDocument{
		TenantID:  cfg.TenantID,
		Zones:     make([]shippingZoneDocument, 0, len(cfg.Zones)),
		UpdatedAt: now,
	}
	for _, zone := range cfg.Zones {
		zoneDoc := shippingZoneDocument{
			Name:      zone.Name,
			Countries: zone.Countries,
			Methods:   make([]shippingMethodDocument, 0, len(zone.Methods)),
		}
		for _, method := range zone.Methods {
			methodDoc := shippingMethodDocument{
				ID:      method.ID,
				Label:   method.Label,
				Carrier: method.Carrier,
				Enabled: method.Enabled,
				Tiers:   make([]shippingTierDocument, 0, len(method.Tiers)),
			}
			for _, tier := range method.Tiers {
				methodDoc.Tiers = append(methodDoc.Tiers, shippingTierDocument{
					MinSubtotal: encodeAmount(tier.MinSubtotal),
					Rate:        encodeAmount(tier.Rate),
				})
			}
			zoneDoc.Methods = append(zoneDoc.Methods, methodDoc)
		}
		doc.Zones = append(doc.Zones, zoneDoc)
	}
	return doc
}

func decodeShippingConfig(tenantID string, doc shippingConfigDocument) (domain.ShippingConfig, error) {
	cfg := domain.ShippingConfig{
		TenantID: tenantID,
		Zones:    make([]domain.ShippingZone, 0, len(doc.Zones)),
	}
	for _, zoneDoc := range doc.Zones {
		zone := domain.ShippingZone{
			Name:      zoneDoc.Name,
			Countries: zoneDoc.Countries,
			Methods:   make([]domain.ShippingMethod, 0, len(zoneDoc.Methods)),
		}
		for _, methodDoc := range zoneDoc.Methods {
			method := domain.ShippingMethod{
				ID:      methodDoc.ID,
				Label:   methodDoc.Label,
				Carrier: methodDoc.Carrier,
				Enabled: methodDoc.Enabled,
				Tiers:   make([]domain.ShippingTier, 0, len(methodDoc.Tiers)),
			}
			for _, tierDoc := range methodDoc.Tiers {
				minSubtotal, err := decodeAmount("minSubtotal", tierDoc.MinSubtotal)
				if err != nil {
					return domain.ShippingConfig{}, err
				}
				rate, err := decodeAmount("rate", tierDoc.Rate)
				if err != nil {
					return domain.ShippingConfig{}, err
				}
				method.Tiers = append(method.Tiers, domain.ShippingTier{
					MinSubtotal: minSubtotal,
					Rate:        rate,
				})
			}
			zone.Methods = append(zone.Methods, method)
		}
		cfg.Zones = append(cfg.Zones, zone)
	}
	return cfg, nil
}

type commerceSettingsDocument struct {
	CommissionRate string    `firestore:"commissionRate,omitempty"`
	Currency       string    `firestore:"currency,omitempty"`
	UpdatedAt      time.Time `firestore:"updatedAt"`
}

func encodeCommerceSettings(settings domain.CommerceSettings, now time.Time) commerceSettingsDocument {
	doc := commerceSettingsDocument{
		Currency:  settings.Currency,
		UpdatedAt: now,
	}
	if settings.CommissionRate != nil {
		doc.CommissionRate = settings.CommissionRate.String()
	}
	return doc
}

func decodeCommerceSettings(tenantID string, doc commerceSettingsDocument) (domain.CommerceSettings, error) {
	settings := domain.CommerceSettings{
		TenantID: tenantID,
		Currency: doc.Currency,
	}
	rate, err := decodeAmountPtr("commissionRate", doc.CommissionRate)
	if err != nil {
		return domain.CommerceSettings{}, err
	}
	settings.CommissionRate = rate
	return settings, nil
}
