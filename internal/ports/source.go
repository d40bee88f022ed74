package ports

import (
	"context"
	"time"
)

// SourceRecord is one raw inspection row as published by the external
// source. One establishment appears once per inspection.
type SourceRecord struct {
	InspectionID   string
	LicenseNo      string
	DBAName        string
	AKAName        string
	FacilityType   string
	RiskTier       int
	Address        string
	City           string
	State          string
	Zip            string
	Latitude       *float64
	Longitude      *float64
	InspectionDate string
	InspectionType string
	Result         string
	ViolationsRaw  string
}

// InspectionSource provides paginated read access to the external dataset,
// filtered to inspections on or after since.
type InspectionSource interface {
	FetchPage(ctx context.Context, since time.Time, offset int, limit int) ([]SourceRecord, error)
}
