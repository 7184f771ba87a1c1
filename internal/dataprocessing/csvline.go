package dataprocessing

import "strings"

// ParseLine tokenizes one CSV line into trimmed fields. A double quote
// toggles quoted mode, so commas inside quotes do not split; the quotes
// themselves are dropped. Any input yields some field slice; there are no
// error conditions, and trailing content after the last comma becomes the
// final field even when empty.
func ParseLine(line string) []string {
	var (
		fields   []string
		current  strings.Builder
		inQuotes bool
	)

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			fields = append(fields, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	fields = append(fields, strings.TrimSpace(current.String()))

	return fields
}
