package summary

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"dinesafe/internal/bootstrap/config"
	"dinesafe/internal/bootstrap/logging"
	"dinesafe/internal/domain/inspection"
	"dinesafe/internal/errs"
	"dinesafe/internal/ports"
)

const dateLayout = "2006-01-02"

// Service decides whether an establishment's cached prose summary is still
// valid and regenerates it when not. Theme extraction runs on every read
// and is never cached; only the prose summary is.
type Service struct {
	repo ports.StoreRepository
	gen  ports.SummaryGenerator
	cfg  config.SummaryConfig

	// now is swappable for tests.
	now func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(repo ports.StoreRepository, gen ports.SummaryGenerator, cfg config.Config) *Service {
	return &Service{
		repo:  repo,
		gen:   gen,
		cfg:   cfg.Summary,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

// Result is the summary read response handed to the presentation layer.
type Result struct {
	Summary     string   `json:"summary"`
	Themes      []string `json:"themes"`
	GeneratedAt string   `json:"generated_at"`
	Cached      bool     `json:"cached"`
}

// GetSummary serves the establishment's summary, regenerating on a miss or
// on any stale-cache condition. Generator failures never reach the caller;
// a deterministic template sentence stands in instead.
func (s *Service) GetSummary(ctx context.Context, licenseNo string) (Result, error) {
	if ctx == nil {
		return Result{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Result{}, errs.Wrap(err, "check context")
	}
	if licenseNo == "" {
		return Result{}, errors.New("license number is required")
	}

	// Serialize read-validate-regenerate per establishment. A redundant
	// regeneration would be harmless, this just avoids paying for it.
	lock := s.lockFor(licenseNo)
	lock.Lock()
	defer lock.Unlock()

	est, err := s.repo.GetEstablishment(ctx, licenseNo)
	if err != nil {
		return Result{}, err
	}

	recent, err := s.repo.ListInspections(ctx, licenseNo)
	if err != nil {
		return Result{}, errs.Wrap(err, "load inspections")
	}
	if limit := s.cfg.RecentInspections; limit > 0 && len(recent) > limit {
		recent = recent[:limit]
	}

	now := s.now().UTC()
	result := Result{Cached: true}

	if valid, reason := s.cacheValid(est, now); valid {
		result.Summary = *est.SummaryText
		result.GeneratedAt = *est.SummaryGeneratedAt
	} else {
		logging.Info(ctx, "summary cache miss",
			slog.String("component", "usecase.summary"),
			slog.String("license_no", licenseNo),
			slog.String("reason", reason),
		)

		text := s.generate(ctx, est, recent)
		snap := ports.SummarySnapshot{
			Text:        text,
			GeneratedAt: now.Format(time.RFC3339Nano),
			Result:      est.LatestResult,
			Score:       est.Score,
		}
		if err := s.repo.UpdateSummary(ctx, licenseNo, snap); err != nil {
			return Result{}, errs.Wrap(err, "persist summary")
		}

		result.Summary = text
		result.GeneratedAt = snap.GeneratedAt
		result.Cached = false
	}

	themes, err := s.themes(ctx, recent)
	if err != nil {
		return Result{}, err
	}
	result.Themes = themes

	return result, nil
}

// cacheValid is the conjunction of three independent checks; all must hold
// for the stored summary to be served.
func (s *Service) cacheValid(est ports.Establishment, now time.Time) (bool, string) {
	if est.SummaryText == nil || *est.SummaryText == "" || est.SummaryGeneratedAt == nil {
		return false, "absent"
	}

	generatedAt, err := time.Parse(time.RFC3339Nano, *est.SummaryGeneratedAt)
	if err != nil {
		return false, "unparseable generation time"
	}

	// Freshness.
	if now.Sub(generatedAt) >= s.cfg.TTL() {
		return false, "expired"
	}

	// No newer inspection: either a later inspection date or a changed
	// latest result means the underlying facts moved.
	if est.LatestInspectionDate != "" {
		latest, err := time.Parse(dateLayout, est.LatestInspectionDate)
		if err == nil && latest.After(generatedAt) {
			return false, "newer inspection"
		}
	}
	if est.SummaryResultSnapshot == nil || *est.SummaryResultSnapshot != est.LatestResult {
		return false, "result changed"
	}

	// Score consistency. A nil snapshot (cache entries written before the
	// field existed) always forces regeneration.
	if est.SummaryScoreSnapshot == nil || *est.SummaryScoreSnapshot != est.Score {
		return false, "score changed"
	}

	return true, ""
}

func (s *Service) generate(ctx context.Context, est ports.Establishment, recent []ports.Inspection) string {
	sc := buildContext(est, recent)

	if s.gen != nil {
		text, err := s.gen.Generate(ctx, sc)
		if err == nil && text != "" {
			return text
		}
		logging.Warn(ctx, "summary generator failed, using template fallback",
			slog.String("component", "usecase.summary"),
			slog.String("license_no", est.LicenseNo),
			slog.Any("err", errs.Loggable(err)),
		)
	}

	return templateSummary(sc)
}

func (s *Service) themes(ctx context.Context, recent []ports.Inspection) ([]string, error) {
	ids := make([]uint64, 0, len(recent))
	raw := make([]string, 0, len(recent))
	for _, insp := range recent {
		ids = append(ids, insp.InspectionID)
		if insp.ViolationsRaw != "" {
			raw = append(raw, insp.ViolationsRaw)
		}
	}

	stored, err := s.repo.ListViolationsForInspections(ctx, ids)
	if err != nil {
		return nil, errs.Wrap(err, "load violations")
	}

	violations := make([]inspection.Violation, 0, len(stored))
	for _, v := range stored {
		violations = append(violations, inspection.Violation{
			Code:        v.Code,
			Description: v.Description,
			Comment:     v.Comment,
			IsCritical:  v.IsCritical,
		})
	}

	return inspection.ExtractThemes(violations, raw, s.cfg.MaxThemes), nil
}

func buildContext(est ports.Establishment, recent []ports.Inspection) ports.SummaryContext {
	sc := ports.SummaryContext{
		LicenseNo:            est.LicenseNo,
		Name:                 est.Name,
		FacilityType:         est.FacilityType,
		RiskTier:             est.RiskTier,
		Score:                est.Score,
		LatestResult:         est.LatestResult,
		LatestInspectionDate: est.LatestInspectionDate,
	}

	if len(recent) > 0 {
		sc.LatestInspectionType = recent[0].Type
		sc.ViolationCount = recent[0].ViolationCount
		sc.CriticalCount = recent[0].CriticalCount
	}

	for _, insp := range recent {
		sc.RecentInspections = append(sc.RecentInspections, ports.SummaryInspection{
			Date:           insp.Date,
			Type:           insp.Type,
			Result:         insp.Result,
			ViolationCount: insp.ViolationCount,
			CriticalCount:  insp.CriticalCount,
		})
	}

	return sc
}

func (s *Service) lockFor(licenseNo string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[licenseNo]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[licenseNo] = lock
	}
	return lock
}
