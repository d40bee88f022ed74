package inspection

import "strings"

// NormalizeID reduces an external inspection identifier to its leading
// numeric run, stripping non-numeric suffixes introduced by synthetic ID
// construction upstream (for example "2609982-1" becomes "2609982").
// Identifiers without a leading digit pass through trimmed.
func NormalizeID(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	end := 0
	for end < len(trimmed) && trimmed[end] >= '0' && trimmed[end] <= '9' {
		end++
	}
	if end == 0 {
		return trimmed
	}
	return trimmed[:end]
}
