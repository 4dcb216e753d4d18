package persistence

import (
	"strings"
)

// ValidateSortOrder normalizes a caller-supplied direction to ASC or DESC.
// Anything else yields defaultDir, itself normalized with DESC as the last
// resort, so the result is always safe to splice into ORDER BY.
func ValidateSortOrder(orderDir, defaultDir string) string {
	switch strings.ToUpper(strings.TrimSpace(orderDir)) {
	case "ASC":
		return "ASC"
	case "DESC":
		return "DESC"
	}
	if strings.EqualFold(strings.TrimSpace(defaultDir), "asc") {
		return "ASC"
	}
	return "DESC"
}
