package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(value string) decimal.Decimal {
	d, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return d
}

func testConfig() ShippingConfig {
	return ShippingConfig{
		TenantID: "tenant-1",
		Zones: []ShippingZone{
			{
				Name:      "Italy",
				Countries: []string{"IT"},
				Methods: []ShippingMethod{
					{
						ID:      "standard",
						Label:   "Standard",
						Carrier: "BRT",
						Enabled: true,
						Tiers: []ShippingTier{
							{MinSubtotal: dec("100"), Rate: dec("7")},
							{MinSubtotal: dec("0"), Rate: dec("17")},
						},
					},
					{
						ID:      "express",
						Label:   "Express",
						Enabled: false,
						Tiers:   []ShippingTier{{MinSubtotal: dec("0"), Rate: dec("25")}},
					},
				},
			},
			{
				Name:      "Rest of world",
				Countries: []string{"*"},
				Methods: []ShippingMethod{
					{
						ID:      "intl",
						Label:   "International",
						Enabled: true,
						Tiers: []ShippingTier{
							{MinSubtotal: dec("250"), Rate: dec("0")},
							{MinSubtotal: dec("0"), Rate: dec("35")},
						},
					},
				},
			},
		},
	}
}

func TestFindZoneForCountry(t *testing.T) {
	config := testConfig()

	zone := FindZoneForCountry(config, "it")
	if zone == nil || zone.Name != "Italy" {
		t.Fatalf("expected Italy zone for lowercase it, got %+v", zone)
	}

	zone = FindZoneForCountry(config, "DE")
	if zone == nil || zone.Name != "Rest of world" {
		t.Fatalf("expected wildcard zone for DE, got %+v", zone)
	}

	if zone := FindZoneForCountry(ShippingConfig{}, "IT"); zone != nil {
		t.Fatalf("expected nil zone for empty config, got %+v", zone)
	}

	if zone := FindZoneForCountry(config, ""); zone != nil {
		t.Fatalf("expected nil zone for empty country, got %+v", zone)
	}
}

func TestComputeMethodCostTierSelection(t *testing.T) {
	method := testConfig().Zones[0].Methods[0]

	if cost := ComputeMethodCost(method, dec("120")); !cost.Equal(dec("7")) {
		t.Fatalf("subtotal 120: expected cost 7, got %s", cost)
	}
	if cost := ComputeMethodCost(method, dec("100")); !cost.Equal(dec("7")) {
		t.Fatalf("subtotal 100 meets threshold: expected cost 7, got %s", cost)
	}
	if cost := ComputeMethodCost(method, dec("80")); !cost.Equal(dec("17")) {
		t.Fatalf("subtotal 80: expected fallback cost 17, got %s", cost)
	}
}

func TestComputeMethodCostFallbackBelowAllTiers(t *testing.T) {
	method := ShippingMethod{
		ID:      "minimum",
		Enabled: true,
		Tiers: []ShippingTier{
			{MinSubtotal: dec("50"), Rate: dec("5")},
			{MinSubtotal: dec("20"), Rate: dec("9")},
		},
	}

	if cost := ComputeMethodCost(method, dec("10")); !cost.Equal(dec("9")) {
		t.Fatalf("expected lowest-tier fallback rate 9, got %s", cost)
	}
}

func TestComputeMethodCostMonotonicNonIncreasing(t *testing.T) {
	method := testConfig().Zones[1].Methods[0]

	previous := ComputeMethodCost(method, dec("0"))
	for subtotal := int64(1); subtotal <= 500; subtotal += 7 {
		cost := ComputeMethodCost(method, decimal.NewFromInt(subtotal))
		if cost.GreaterThan(previous) {
			t.Fatalf("cost increased from %s to %s at subtotal %d", previous, cost, subtotal)
		}
		previous = cost
	}
}

func TestAvailableShippingOptions(t *testing.T) {
	config := testConfig()

	zoneName, options := AvailableShippingOptions(config, "IT", dec("120"))
	if zoneName != "Italy" {
		t.Fatalf("expected zone Italy, got %s", zoneName)
	}
	if len(options) != 1 {
		t.Fatalf("disabled methods must be excluded, got %d options", len(options))
	}
	if options[0].MethodID != "standard" || !options[0].Cost.Equal(dec("7")) {
		t.Fatalf("unexpected option %+v", options[0])
	}
	if options[0].IsFree {
		t.Fatalf("cost 7 must not be flagged free")
	}

	_, options = AvailableShippingOptions(config, "US", dec("300"))
	if len(options) != 1 || !options[0].IsFree {
		t.Fatalf("expected free international shipping above threshold, got %+v", options)
	}

	zoneName, options = AvailableShippingOptions(ShippingConfig{}, "IT", dec("50"))
	if zoneName != "" || options != nil {
		t.Fatalf("expected no options without zones, got %s %+v", zoneName, options)
	}
}
