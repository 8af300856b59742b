package repository

import "strings"

// prefixColumns qualifies every column in a comma-separated list with the
// given table alias, e.g. prefixColumns("l", "id, cost") == "l.id, l.cost".
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, alias+"."+trimmed)
	}
	return strings.Join(out, ", ")
}
