package ports

import (
	"context"
	"errors"
)

var ErrEstablishmentNotFound = errors.New("establishment not found")

// Establishment is a food-service location keyed by its license number.
// Timestamps and dates are RFC 3339 / ISO date strings, matching storage.
type Establishment struct {
	LicenseNo            string
	Name                 string
	AKAName              *string
	FacilityType         string
	RiskTier             int
	Address              string
	City                 string
	State                string
	Zip                  string
	Latitude             *float64
	Longitude            *float64
	Score                int
	PassStreak           int
	LatestResult         string
	LatestInspectionDate string

	SummaryText           *string
	SummaryGeneratedAt    *string
	SummaryResultSnapshot *string
	SummaryScoreSnapshot  *int

	CreatedAt string
	UpdatedAt string
}

type Inspection struct {
	InspectionID   uint64
	ExternalID     string
	LicenseNo      string
	Date           string
	Type           string
	Result         string
	ViolationsRaw  string
	ViolationCount int
	CriticalCount  int
	CreatedAt      string
}

type Violation struct {
	InspectionID uint64
	Code         string
	Description  string
	Comment      string
	IsCritical   bool
}

// SummarySnapshot is written atomically with its summary text so a reader
// never observes a summary paired with a mismatched snapshot.
type SummarySnapshot struct {
	Text        string
	GeneratedAt string
	Result      string
	Score       int
}

// InspectionRowRef is the minimal row view the duplicate reconciler needs.
type InspectionRowRef struct {
	InspectionID uint64
	ExternalID   string
	CreatedAt    string
}

type StoreRepository interface {
	UpsertEstablishment(ctx context.Context, est Establishment) error
	GetEstablishment(ctx context.Context, licenseNo string) (Establishment, error)

	// UpsertInspection writes one inspection keyed by its normalized
	// external identifier and returns the surrogate row id.
	UpsertInspection(ctx context.Context, insp Inspection) (uint64, error)
	// UpsertViolations inserts violations keyed by (inspection, code);
	// duplicate inserts are ignored, not errors.
	UpsertViolations(ctx context.Context, violations []Violation) error

	// ListInspections returns an establishment's inspections most recent
	// first.
	ListInspections(ctx context.Context, licenseNo string) ([]Inspection, error)
	ListViolationsForInspections(ctx context.Context, inspectionIDs []uint64) ([]Violation, error)

	// MaxInspectionDate returns the newest stored inspection date, or ""
	// when the store is empty.
	MaxInspectionDate(ctx context.Context) (string, error)

	UpdateSummary(ctx context.Context, licenseNo string, snap SummarySnapshot) error

	ListInspectionRowRefs(ctx context.Context) ([]InspectionRowRef, error)
	DeleteViolationsForInspection(ctx context.Context, inspectionID uint64) error
	DeleteInspectionRow(ctx context.Context, inspectionID uint64) error
}
