package suggest

import "testing"

func TestFindAcceptsWithinThreshold(t *testing.T) {
	got, ok := Find("Orderr", []string{"Order", "Invoice", "Payment"})
	if !ok || got != "Order" {
		t.Fatalf("got %q, %v", got, ok)
	}
}

func TestFindRejectsBeyondThreshold(t *testing.T) {
	_, ok := Find("Zzzzzzzz", []string{"Order", "Invoice", "Payment"})
	if ok {
		t.Fatal("expected no suggestion")
	}
}

func TestFindIsCaseInsensitive(t *testing.T) {
	got, ok := Find("order", []string{"Order"})
	if !ok || got != "Order" {
		t.Fatalf("got %q, %v", got, ok)
	}
}

func TestFindExactMatch(t *testing.T) {
	got, ok := Find("Order", []string{"Invoice", "Order"})
	if !ok || got != "Order" {
		t.Fatalf("got %q, %v", got, ok)
	}
}

func TestFindNoCandidates(t *testing.T) {
	_, ok := Find("Order", nil)
	if ok {
		t.Fatal("expected no suggestion with no candidates")
	}
}
