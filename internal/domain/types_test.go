package domain

import "testing"

func TestCanTransitionOrder(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusDraft, OrderStatusQuotation, true},
		{OrderStatusDraft, OrderStatusPending, true},
		{OrderStatusDraft, OrderStatusConfirmed, false},
		{OrderStatusQuotation, OrderStatusExpired, true},
		{OrderStatusQuotation, OrderStatusConfirmed, true},
		{OrderStatusPending, OrderStatusConfirmed, true},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusConfirmed, OrderStatusShipped, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusCancelled, OrderStatusDraft, false},
		{OrderStatusExpired, OrderStatusPending, false},
	}
	for _, tc := range cases {
		if got := CanTransitionOrder(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransitionOrder(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestOrderStatusIsTerminal(t *testing.T) {
	terminal := []OrderStatus{OrderStatusDelivered, OrderStatusCancelled, OrderStatusExpired}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	open := []OrderStatus{OrderStatusDraft, OrderStatusQuotation, OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped}
	for _, s := range open {
		if s.IsTerminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}

func TestCanTransitionTransaction(t *testing.T) {
	cases := []struct {
		from, to TransactionStatus
		want     bool
	}{
		{TransactionStatusPending, TransactionStatusProcessing, true},
		{TransactionStatusPending, TransactionStatusRefunded, false},
		{TransactionStatusProcessing, TransactionStatusCompleted, true},
		{TransactionStatusAuthorized, TransactionStatusCaptured, true},
		{TransactionStatusCaptured, TransactionStatusPartialRefund, true},
		{TransactionStatusCompleted, TransactionStatusRefunded, true},
		{TransactionStatusPartialRefund, TransactionStatusPartialRefund, true},
		{TransactionStatusPartialRefund, TransactionStatusRefunded, true},
		{TransactionStatusFailed, TransactionStatusPending, false},
		{TransactionStatusRefunded, TransactionStatusCompleted, false},
	}
	for _, tc := range cases {
		if got := CanTransitionTransaction(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransitionTransaction(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestParseRole(t *testing.T) {
	for _, valid := range []string{"admin", "sales", "warehouse"} {
		role, ok := ParseRole(valid)
		if !ok || string(role) != valid {
			t.Errorf("ParseRole(%q) = %q, %v", valid, role, ok)
		}
	}
	if _, ok := ParseRole("superuser"); ok {
		t.Error("expected unknown role to be rejected")
	}
}
