package report

import "encoding/json"

// FormatJSON returns diagnostics as indented JSON for tool
// integration. An empty list renders as an empty array, not null.
func FormatJSON(diags []Diagnostic) ([]byte, error) {
	if diags == nil {
		diags = []Diagnostic{}
	}
	return json.MarshalIndent(diags, "", "  ")
}
