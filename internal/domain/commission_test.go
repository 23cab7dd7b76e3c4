package domain

import "testing"

func TestCalculateCommissionRoundsHalfUp(t *testing.T) {
	split := CalculateCommission(dec("100.05"), dec("0.025"))

	// 100.05 * 0.025 = 2.50125 -> 2.50
	if !split.Commission.Equal(dec("2.50")) {
		t.Fatalf("expected commission 2.50, got %s", split.Commission)
	}
	if !split.Net.Equal(dec("97.55")) {
		t.Fatalf("expected net 97.55, got %s", split.Net)
	}

	split = CalculateCommission(dec("10"), dec("0.125"))
	// 10 * 0.125 = 1.25 exactly
	if !split.Commission.Equal(dec("1.25")) || !split.Net.Equal(dec("8.75")) {
		t.Fatalf("unexpected split %s / %s", split.Commission, split.Net)
	}
}

func TestCalculateCommissionRoundTrip(t *testing.T) {
	grosses := []string{"0", "0.01", "1", "19.99", "120.50", "999.37", "10000000"}
	rates := []string{"0", "0.01", "0.02", "0.0333", "0.15", "0.5", "1"}

	for _, g := range grosses {
		for _, r := range rates {
			gross := dec(g)
			split := CalculateCommission(gross, dec(r))
			if !split.Commission.Add(split.Net).Equal(Round2(gross)) {
				t.Fatalf("gross %s rate %s: commission %s + net %s != gross", g, r, split.Commission, split.Net)
			}
		}
	}
}

func TestRecomputeTotals(t *testing.T) {
	order := Order{
		ShippingCost: dec("7"),
		Lines: []OrderLine{
			{SKU: "A", Quantity: 3, UnitPrice: dec("19.99"), VATRate: dec("0.22")},
			{SKU: "B", Quantity: 1, UnitPrice: dec("60.03"), VATRate: dec("0.22")},
		},
	}

	order.RecomputeTotals()

	if !order.Lines[0].TotalNet.Equal(dec("59.97")) {
		t.Fatalf("expected line net 59.97, got %s", order.Lines[0].TotalNet)
	}
	if !order.SubtotalNet.Equal(dec("120.00")) {
		t.Fatalf("expected subtotal 120.00, got %s", order.SubtotalNet)
	}
	// 59.97*0.22=13.1934 -> 13.19, 60.03*0.22=13.2066 -> 13.21
	if !order.TotalVAT.Equal(dec("26.40")) {
		t.Fatalf("expected vat 26.40, got %s", order.TotalVAT)
	}
	if !order.OrderTotal.Equal(dec("153.40")) {
		t.Fatalf("expected total 153.40, got %s", order.OrderTotal)
	}
}

func TestOrderTransitionTable(t *testing.T) {
	allowed := []struct{ from, to OrderStatus }{
		{OrderStatusDraft, OrderStatusPending},
		{OrderStatusDraft, OrderStatusQuotation},
		{OrderStatusQuotation, OrderStatusPending},
		{OrderStatusQuotation, OrderStatusConfirmed},
		{OrderStatusPending, OrderStatusConfirmed},
		{OrderStatusConfirmed, OrderStatusShipped},
		{OrderStatusShipped, OrderStatusDelivered},
		{OrderStatusConfirmed, OrderStatusCancelled},
	}
	for _, tc := range allowed {
		if !CanTransitionOrder(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to OrderStatus }{
		{OrderStatusShipped, OrderStatusCancelled},
		{OrderStatusDelivered, OrderStatusCancelled},
		{OrderStatusDraft, OrderStatusConfirmed},
		{OrderStatusConfirmed, OrderStatusDelivered},
		{OrderStatusCancelled, OrderStatusPending},
	}
	for _, tc := range denied {
		if CanTransitionOrder(tc.from, tc.to) {
			t.Fatalf("expected %s -> %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestTransactionTransitionTable(t *testing.T) {
	if !CanTransitionTransaction(TransactionStatusPending, TransactionStatusCaptured) {
		t.Fatalf("pending -> captured must be allowed")
	}
	if !CanTransitionTransaction(TransactionStatusCaptured, TransactionStatusCompleted) {
		t.Fatalf("captured -> completed must be allowed")
	}
	if CanTransitionTransaction(TransactionStatusCompleted, TransactionStatusPending) {
		t.Fatalf("completed -> pending must be rejected")
	}
	if CanTransitionTransaction(TransactionStatusRefunded, TransactionStatusCompleted) {
		t.Fatalf("refunded is terminal")
	}
}
