package domain

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ZoneWildcard matches any country not covered by an explicit zone entry.
const ZoneWildcard = "*"

// ShippingTier prices a method for subtotals at or above MinSubtotal. Tiers
// are evaluated highest threshold first.
type ShippingTier struct {
	MinSubtotal decimal.Decimal
	Rate        decimal.Decimal
}

// ShippingMethod groups the tiers for one delivery option within a zone.
type ShippingMethod struct {
	ID      string
	Label   string
	Carrier string
	Enabled bool
	Tiers   []ShippingTier
}

// ShippingZone is a named group of country codes sharing the same methods.
type ShippingZone struct {
	Name      string
	Countries []string
	Methods   []ShippingMethod
}

// ShippingConfig is the per-tenant shipping price book.
type ShippingConfig struct {
	TenantID string
	Zones    []ShippingZone
}

// ShippingOption is a priced, selectable delivery method for an order.
type ShippingOption struct {
	MethodID string
	Label    string
	Carrier  string
	Cost     decimal.Decimal
	IsFree   bool
}

// FindZoneForCountry resolves the zone serving the given country code. The
// first zone listing the code wins; a zone listing the wildcard entry acts as
// catch-all. Returns nil when no zone applies.
func FindZoneForCountry(config ShippingConfig, countryCode string) *ShippingZone {
	code := strings.ToUpper(strings.TrimSpace(countryCode))
	if code == "" {
		return nil
	}
	var wildcard *ShippingZone
	for i := range config.Zones {
		zone := &config.Zones[i]
		for _, country := range zone.Countries {
			trimmed := strings.TrimSpace(country)
			if trimmed == ZoneWildcard && wildcard == nil {
				wildcard = zone
				continue
			}
			if strings.EqualFold(trimmed, code) {
				return zone
			}
		}
	}
	return wildcard
}

// ComputeMethodCost returns the rate of the highest tier whose threshold the
// subtotal meets or exceeds. Subtotals below every threshold fall back to the
// lowest tier's rate; a method always has a price.
func ComputeMethodCost(method ShippingMethod, subtotalNet decimal.Decimal) decimal.Decimal {
	if len(method.Tiers) == 0 {
		return decimal.Zero
	}

	tiers := make([]ShippingTier, len(method.Tiers))
	copy(tiers, method.Tiers)
	sort.SliceStable(tiers, func(i, j int) bool {
		return tiers[i].MinSubtotal.GreaterThan(tiers[j].MinSubtotal)
	})

	for _, tier := range tiers {
		if tier.MinSubtotal.LessThanOrEqual(subtotalNet) {
			return Round2(tier.Rate)
		}
	}
	return Round2(tiers[len(tiers)-1].Rate)
}

// AvailableShippingOptions resolves the zone for the country and prices every
// enabled method in it against the subtotal. An unmatched country yields no
// options.
func AvailableShippingOptions(config ShippingConfig, countryCode string, subtotalNet decimal.Decimal) (string, []ShippingOption) {
	zone := FindZoneForCountry(config, countryCode)
	if zone == nil {
		return "", nil
	}

	options := make([]ShippingOption, 0, len(zone.Methods))
	for _, method := range zone.Methods {
		if !method.Enabled {
			continue
		}
		cost := ComputeMethodCost(method, subtotalNet)
		options = append(options, ShippingOption{
			MethodID: method.ID,
			Label:    method.Label,
			Carrier:  method.Carrier,
			Cost:     cost,
			IsFree:   cost.IsZero(),
		})
	}
	return zone.Name, options
}
