package report

import "testing"

func TestDiagnosticStringWithoutSuggestion(t *testing.T) {
	d := New("spec.allium", 4, 9, "unknown reference 'foo'")
	want := "spec.allium:4:9: unknown reference 'foo'"
	if got := d.String(); got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestDiagnosticStringWithSuggestion(t *testing.T) {
	d := NewWithSuggestion("spec.allium", 4, 9, "unknown reference 'Orderr'", "Order")
	want := "spec.allium:4:9: unknown reference 'Orderr' (did you mean 'Order'?)"
	if got := d.String(); got != want {
		t.Errorf("got %q want %q", got, want)
	}
}
