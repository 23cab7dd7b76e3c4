package domain

import "github.com/shopspring/decimal"

// CommissionSplit is the platform/merchant breakdown of a completed payment.
type CommissionSplit struct {
	Rate       decimal.Decimal
	Commission decimal.Decimal
	Net        decimal.Decimal
}

// CalculateCommission splits a gross amount by the given rate. The commission
// is rounded to two decimals half-up and the net is derived from the rounded
// commission, so commission + net always reproduces the gross exactly.
func CalculateCommission(gross, rate decimal.Decimal) CommissionSplit {
	commission := Round2(gross.Mul(rate))
	return CommissionSplit{
		Rate:       rate,
		Commission: commission,
		Net:        Round2(gross.Sub(commission)),
	}
}
