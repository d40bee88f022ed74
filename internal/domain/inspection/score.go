package inspection

import (
	"math"
	"strings"
)

// Outcome is the score-relevant slice of one inspection.
type Outcome struct {
	Result         string
	ViolationCount int
	CriticalCount  int
}

// IsPass reports whether a result is an exact pass. Conditional passes and
// fails do not count.
func IsPass(result string) bool {
	return strings.EqualFold(strings.TrimSpace(result), "pass")
}

// ComputeScore derives the 0-100 safety score from an establishment's full
// inspection history. Pure and idempotent: the same history always yields
// the same score, which the summary cache relies on for its snapshot
// comparison.
//
//	base = 80 + passRatio*15 - violations - 3*criticals, clamped to [0, 100]
func ComputeScore(history []Outcome) int {
	if len(history) == 0 {
		return 80
	}

	passCount := 0
	violations := 0
	criticals := 0
	for _, o := range history {
		if IsPass(o.Result) {
			passCount++
		}
		violations += o.ViolationCount
		criticals += o.CriticalCount
	}

	base := 80.0
	base += float64(passCount) / float64(len(history)) * 15.0
	base -= float64(violations)
	base -= float64(criticals) * 3.0

	score := int(math.Round(base))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// PassStreak counts consecutive exact passes from the most recent inspection
// backwards. History must be ordered most recent first.
func PassStreak(history []Outcome) int {
	streak := 0
	for _, o := range history {
		if !IsPass(o.Result) {
			break
		}
		streak++
	}
	return streak
}
