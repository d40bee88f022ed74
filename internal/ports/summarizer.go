package ports

import "context"

// SummaryInspection is one line of recent history handed to the generator.
type SummaryInspection struct {
	Date           string
	Type           string
	Result         string
	ViolationCount int
	CriticalCount  int
}

// SummaryContext is the structured input for summary generation.
type SummaryContext struct {
	LicenseNo            string
	Name                 string
	FacilityType         string
	RiskTier             int
	Score                int
	LatestResult         string
	LatestInspectionDate string
	LatestInspectionType string
	ViolationCount       int
	CriticalCount        int
	RecentInspections    []SummaryInspection
}

// SummaryGenerator turns a structured inspection context into prose. It is
// an external collaborator and may fail; callers must degrade to a template
// fallback instead of surfacing the error.
type SummaryGenerator interface {
	Generate(ctx context.Context, sc SummaryContext) (string, error)
}
