package domain

import "github.com/shopspring/decimal"

// CommerceSettings carries per-tenant commerce overrides. Absent fields fall
// back to platform defaults.
type CommerceSettings struct {
	TenantID       string
	CommissionRate *decimal.Decimal
	Currency       string
}
