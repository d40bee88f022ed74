package summary

import (
	"fmt"
	"strings"

	"dinesafe/internal/ports"
)

// templateSummary builds the deterministic fallback sentence served when
// the external generator fails. It uses only fields already present in the
// summary context, so it can never fail itself.
func templateSummary(sc ports.SummaryContext) string {
	var b strings.Builder

	name := sc.Name
	if name == "" {
		name = "This establishment"
	}

	fmt.Fprintf(&b, "%s holds a safety score of %d out of 100.", name, sc.Score)

	if sc.LatestInspectionDate != "" {
		fmt.Fprintf(&b, " Its most recent inspection on %s", sc.LatestInspectionDate)
		if sc.LatestInspectionType != "" {
			fmt.Fprintf(&b, " (%s)", strings.ToLower(sc.LatestInspectionType))
		}
		result := sc.LatestResult
		if result == "" {
			result = "an unrecorded result"
		}
		fmt.Fprintf(&b, " resulted in %s", result)
		if sc.ViolationCount > 0 {
			fmt.Fprintf(&b, " with %d violation%s", sc.ViolationCount, plural(sc.ViolationCount))
			if sc.CriticalCount > 0 {
				fmt.Fprintf(&b, ", %d of them critical", sc.CriticalCount)
			}
		}
		b.WriteString(".")
	}

	return b.String()
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
