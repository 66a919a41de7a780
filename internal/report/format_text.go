package report

import "strings"

// FormatText renders diagnostics one per line in the canonical wire
// format, the default output of the CLI.
func FormatText(diags []Diagnostic) string {
	lines := make([]string, len(diags))
	for i, d := range diags {
		lines[i] = d.String()
	}
	return strings.Join(lines, "\n")
}
