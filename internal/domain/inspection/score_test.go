package inspection

import "testing"

func TestComputeScoreAllClean(t *testing.T) {
	history := []Outcome{
		{Result: "Pass"},
		{Result: "Pass"},
	}
	// 80 + 15*1.0 = 95
	if got := ComputeScore(history); got != 95 {
		t.Fatalf("ComputeScore() = %d", got)
	}
}

func TestComputeScoreMixedHistory(t *testing.T) {
	history := []Outcome{
		{Result: "Pass", ViolationCount: 2, CriticalCount: 1},
		{Result: "Fail", ViolationCount: 4, CriticalCount: 2},
	}
	// 80 + 15*0.5 - 6 - 9 = 72.5 -> 73
	if got := ComputeScore(history); got != 73 {
		t.Fatalf("ComputeScore() = %d", got)
	}
}

func TestComputeScoreConditionalPassDoesNotCount(t *testing.T) {
	history := []Outcome{{Result: "Pass w/ Conditions"}}
	// 80 + 0 = 80
	if got := ComputeScore(history); got != 80 {
		t.Fatalf("ComputeScore() = %d", got)
	}
}

func TestComputeScoreClampsToZero(t *testing.T) {
	history := []Outcome{
		{Result: "Fail", ViolationCount: 40, CriticalCount: 20},
	}
	if got := ComputeScore(history); got != 0 {
		t.Fatalf("ComputeScore() = %d", got)
	}
}

func TestComputeScoreIsIdempotent(t *testing.T) {
	history := []Outcome{
		{Result: "Pass", ViolationCount: 1},
		{Result: "Pass w/ Conditions", ViolationCount: 3, CriticalCount: 1},
		{Result: "Fail", ViolationCount: 5, CriticalCount: 2},
	}
	first := ComputeScore(history)
	second := ComputeScore(history)
	if first != second {
		t.Fatalf("ComputeScore() not idempotent: %d vs %d", first, second)
	}
	if first < 0 || first > 100 {
		t.Fatalf("ComputeScore() out of bounds: %d", first)
	}
}

func TestComputeScoreEmptyHistory(t *testing.T) {
	if got := ComputeScore(nil); got != 80 {
		t.Fatalf("ComputeScore(nil) = %d", got)
	}
}

func TestPassStreak(t *testing.T) {
	history := []Outcome{
		{Result: "Pass"},
		{Result: "PASS"},
		{Result: "Fail"},
		{Result: "Pass"},
	}
	if got := PassStreak(history); got != 2 {
		t.Fatalf("PassStreak() = %d", got)
	}
	if got := PassStreak([]Outcome{{Result: "Fail"}}); got != 0 {
		t.Fatalf("PassStreak(fail first) = %d", got)
	}
}
