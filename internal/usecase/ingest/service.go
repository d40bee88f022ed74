package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"dinesafe/internal/bootstrap/config"
	"dinesafe/internal/bootstrap/logging"
	"dinesafe/internal/domain/inspection"
	"dinesafe/internal/errs"
	"dinesafe/internal/ports"
)

const dateLayout = "2006-01-02"

// Service is the sync engine: it paginates the external source, groups raw
// records per establishment, resolves missing coordinates, derives the
// score, and performs idempotent upserts. Running it twice over the same
// window leaves the store unchanged after the second run.
type Service struct {
	repo     ports.StoreRepository
	uow      ports.UnitOfWork
	source   ports.InspectionSource
	provider ports.GeocodeProvider
	kv       ports.Cache
	srcCfg   config.SourceConfig
	geoCfg   config.GeocoderConfig
}

func NewService(
	repo ports.StoreRepository,
	uow ports.UnitOfWork,
	source ports.InspectionSource,
	provider ports.GeocodeProvider,
	kv ports.Cache,
	cfg config.Config,
) *Service {
	return &Service{
		repo:     repo,
		uow:      uow,
		source:   source,
		provider: provider,
		kv:       kv,
		srcCfg:   cfg.Source,
		geoCfg:   cfg.Geocoder,
	}
}

type RunInput struct {
	// Full rebuilds from the fixed lookback window instead of the stored
	// watermark.
	Full     bool
	PageSize int
	MaxPages int
}

type RunStats struct {
	RunID                 string
	Since                 string
	Pages                 int
	RecordsFetched        int
	Establishments        int
	EstablishmentsSkipped int
	InspectionsWritten    int
	ViolationsWritten     int
	GeocodeHits           int
	GeocodeMisses         int
	RecordErrors          int
}

// Run executes one sync. Per-record and per-page failures are logged and
// skipped; only fetching nothing at all or store-wide failures surface as
// errors.
func (s *Service) Run(ctx context.Context, in RunInput) (RunStats, error) {
	if ctx == nil {
		return RunStats{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return RunStats{}, errs.Wrap(err, "check context")
	}
	if s.uow == nil {
		return RunStats{}, errors.New("unit of work is required")
	}

	stats := RunStats{RunID: uuid.NewString()}
	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.ingest"),
		slog.String("run_id", stats.RunID),
	)

	since, err := s.watermark(logCtx, in.Full)
	if err != nil {
		return stats, errs.Wrap(err, "determine watermark")
	}
	stats.Since = since.Format(dateLayout)
	logging.Info(logCtx, "sync started",
		slog.String("since", stats.Since),
		slog.Bool("full", in.Full),
	)

	records, err := s.fetchAll(logCtx, since, in, &stats)
	if err != nil {
		return stats, err
	}

	geocoder := NewGeocoder(s.provider, s.kv, s.geoCfg)

	for _, batch := range groupByLicense(records) {
		if err := ctx.Err(); err != nil {
			return stats, errs.Wrap(err, "check context")
		}

		// Coordinates resolve before the transaction opens; the external
		// geocoder must never run under a store lock.
		latitude, longitude := s.batchCoordinates(logCtx, geocoder, batch)
		if latitude == nil || longitude == nil {
			// Not persisted as a negative result; the next incremental run
			// retries this establishment.
			stats.EstablishmentsSkipped++
			continue
		}

		// Each establishment's writes commit together: its inspections,
		// violations, and the derived establishment row land atomically or
		// not at all.
		err := s.uow.WithTx(logCtx, func(txCtx context.Context) error {
			return s.processBatch(txCtx, batch, latitude, longitude, &stats)
		})
		if err != nil {
			// One bad establishment must not block the rest of the batch.
			stats.RecordErrors++
			logging.Warn(logCtx, "establishment skipped after error",
				slog.String("license_no", batch.licenseNo),
				slog.Any("err", errs.Loggable(err)),
			)
		}
	}

	stats.GeocodeHits = geocoder.Hits()
	stats.GeocodeMisses = geocoder.Misses()

	logging.Info(logCtx, "sync finished",
		slog.Int("pages", stats.Pages),
		slog.Int("records", stats.RecordsFetched),
		slog.Int("establishments", stats.Establishments),
		slog.Int("skipped", stats.EstablishmentsSkipped),
		slog.Int("inspections", stats.InspectionsWritten),
		slog.Int("violations", stats.ViolationsWritten),
		slog.Int("geocode_hits", stats.GeocodeHits),
		slog.Int("geocode_misses", stats.GeocodeMisses),
		slog.Int("record_errors", stats.RecordErrors),
	)

	return stats, nil
}

// watermark picks the fetch window start: the newest stored inspection date
// minus a safety margin for late-arriving records, or the fixed lookback
// window on a full rebuild (and on an empty store).
func (s *Service) watermark(ctx context.Context, full bool) (time.Time, error) {
	now := time.Now().UTC()

	if !full {
		maxDate, err := s.repo.MaxInspectionDate(ctx)
		if err != nil {
			return time.Time{}, err
		}
		if maxDate != "" {
			parsed, err := time.Parse(dateLayout, maxDate)
			if err != nil {
				return time.Time{}, errs.Wrapf(err, "parse stored max inspection date %q", maxDate)
			}
			return parsed.AddDate(0, 0, -s.srcCfg.WatermarkMarginDays), nil
		}
	}

	return now.AddDate(0, -s.srcCfg.LookbackMonths, 0), nil
}

func (s *Service) fetchAll(ctx context.Context, since time.Time, in RunInput, stats *RunStats) ([]ports.SourceRecord, error) {
	pageSize := in.PageSize
	if pageSize <= 0 {
		pageSize = s.srcCfg.PageSize
	}
	maxPages := in.MaxPages
	if maxPages <= 0 {
		maxPages = s.srcCfg.MaxPages
	}
	pause := s.srcCfg.PagePause()

	var all []ports.SourceRecord
	for page := 0; page < maxPages; page++ {
		records, err := s.source.FetchPage(ctx, since, page*pageSize, pageSize)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, errs.Wrap(ctxErr, "check context")
			}
			// Skip the failed page, keep the run alive.
			stats.RecordErrors++
			logging.Warn(ctx, "source page skipped after fetch error",
				slog.Int("page", page),
				slog.Any("err", errs.Loggable(err)),
			)
			continue
		}

		stats.Pages++
		stats.RecordsFetched += len(records)
		all = append(all, records...)

		if len(records) < pageSize {
			break
		}
		if pause > 0 && page < maxPages-1 {
			select {
			case <-time.After(pause):
			case <-ctx.Done():
				return nil, errs.Wrap(ctx.Err(), "wait between pages")
			}
		}
	}

	return all, nil
}

type establishmentBatch struct {
	licenseNo string
	records   []ports.SourceRecord
}

// groupByLicense buckets raw records per establishment, ordered by license
// number so runs process deterministically. Records without a license
// number cannot be keyed and are dropped.
func groupByLicense(records []ports.SourceRecord) []establishmentBatch {
	byLicense := make(map[string][]ports.SourceRecord)
	for _, rec := range records {
		if rec.LicenseNo == "" {
			continue
		}
		byLicense[rec.LicenseNo] = append(byLicense[rec.LicenseNo], rec)
	}

	licenses := make([]string, 0, len(byLicense))
	for license := range byLicense {
		licenses = append(licenses, license)
	}
	sort.Strings(licenses)

	batches := make([]establishmentBatch, 0, len(licenses))
	for _, license := range licenses {
		batches = append(batches, establishmentBatch{
			licenseNo: license,
			records:   byLicense[license],
		})
	}
	return batches
}

// batchCoordinates finds the establishment's coordinates: preferably from
// the source records themselves, otherwise from the geocoder. Returns nils
// when neither yields a position.
func (s *Service) batchCoordinates(ctx context.Context, geocoder *Geocoder, batch establishmentBatch) (*float64, *float64) {
	base := newestRecord(batch.records)
	if base.Latitude != nil && base.Longitude != nil {
		return base.Latitude, base.Longitude
	}
	for _, rec := range batch.records {
		if rec.Latitude != nil && rec.Longitude != nil {
			return rec.Latitude, rec.Longitude
		}
	}

	coords, err := geocoder.Resolve(ctx, base.Address, base.City, base.State, base.Zip)
	if err != nil {
		logging.Warn(ctx, "geocode failed",
			slog.String("license_no", batch.licenseNo),
			slog.Any("err", errs.Loggable(err)),
		)
	}
	if coords == nil {
		return nil, nil
	}
	return &coords.Latitude, &coords.Longitude
}

func (s *Service) processBatch(ctx context.Context, batch establishmentBatch, latitude, longitude *float64, stats *RunStats) error {
	base := newestRecord(batch.records)

	now := time.Now().UTC().Format(time.RFC3339Nano)

	for _, rec := range batch.records {
		externalID := inspection.NormalizeID(rec.InspectionID)
		if externalID == "" {
			stats.RecordErrors++
			continue
		}

		violations := inspection.ParseViolations(rec.ViolationsRaw)
		criticalCount := 0
		for _, v := range violations {
			if v.IsCritical {
				criticalCount++
			}
		}

		inspectionID, err := s.repo.UpsertInspection(ctx, ports.Inspection{
			ExternalID:     externalID,
			LicenseNo:      batch.licenseNo,
			Date:           rec.InspectionDate,
			Type:           rec.InspectionType,
			Result:         rec.Result,
			ViolationsRaw:  rec.ViolationsRaw,
			ViolationCount: len(violations),
			CriticalCount:  criticalCount,
			CreatedAt:      now,
		})
		if err != nil {
			stats.RecordErrors++
			logging.Warn(ctx, "inspection upsert failed",
				slog.String("external_id", externalID),
				slog.Any("err", errs.Loggable(err)),
			)
			continue
		}
		stats.InspectionsWritten++

		if len(violations) > 0 {
			rows := make([]ports.Violation, 0, len(violations))
			for _, v := range violations {
				rows = append(rows, ports.Violation{
					InspectionID: inspectionID,
					Code:         v.Code,
					Description:  v.Description,
					Comment:      v.Comment,
					IsCritical:   v.IsCritical,
				})
			}
			if err := s.repo.UpsertViolations(ctx, rows); err != nil {
				stats.RecordErrors++
				logging.Warn(ctx, "violation insert failed",
					slog.String("external_id", externalID),
					slog.Any("err", errs.Loggable(err)),
				)
				continue
			}
			stats.ViolationsWritten += len(rows)
		}
	}

	// Derive score and latest-inspection mirror from the full stored
	// history, not just this batch, so incremental runs stay consistent.
	history, err := s.repo.ListInspections(ctx, batch.licenseNo)
	if err != nil {
		return errs.Wrap(err, "load inspection history")
	}
	if len(history) == 0 {
		stats.EstablishmentsSkipped++
		return nil
	}

	outcomes := make([]inspection.Outcome, 0, len(history))
	for _, insp := range history {
		outcomes = append(outcomes, inspection.Outcome{
			Result:         insp.Result,
			ViolationCount: insp.ViolationCount,
			CriticalCount:  insp.CriticalCount,
		})
	}

	var akaName *string
	if base.AKAName != "" {
		aka := base.AKAName
		akaName = &aka
	}

	if err := s.repo.UpsertEstablishment(ctx, ports.Establishment{
		LicenseNo:            batch.licenseNo,
		Name:                 base.DBAName,
		AKAName:              akaName,
		FacilityType:         base.FacilityType,
		RiskTier:             base.RiskTier,
		Address:              base.Address,
		City:                 base.City,
		State:                base.State,
		Zip:                  base.Zip,
		Latitude:             latitude,
		Longitude:            longitude,
		Score:                inspection.ComputeScore(outcomes),
		PassStreak:           inspection.PassStreak(outcomes),
		LatestResult:         history[0].Result,
		LatestInspectionDate: history[0].Date,
		CreatedAt:            now,
		UpdatedAt:            now,
	}); err != nil {
		return errs.Wrap(err, "upsert establishment")
	}

	stats.Establishments++
	return nil
}

func newestRecord(records []ports.SourceRecord) ports.SourceRecord {
	newest := records[0]
	for _, rec := range records[1:] {
		if rec.InspectionDate > newest.InspectionDate {
			newest = rec
		}
	}
	return newest
}
