package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dinesafe/internal/errs"
	"dinesafe/internal/infrastructure/persistence/sqlite/model"
	"dinesafe/internal/ports"
)

type StoreRepository struct {
	db *gorm.DB
}

var _ ports.StoreRepository = (*StoreRepository)(nil)

func NewStoreRepository(db *gorm.DB) *StoreRepository {
	return &StoreRepository{db: db}
}

func (r *StoreRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (r *StoreRepository) UpsertEstablishment(ctx context.Context, est ports.Establishment) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.Establishment{
		LicenseNo:             est.LicenseNo,
		Name:                  est.Name,
		AKAName:               est.AKAName,
		FacilityType:          est.FacilityType,
		RiskTier:              est.RiskTier,
		Address:               est.Address,
		City:                  est.City,
		State:                 est.State,
		Zip:                   est.Zip,
		Latitude:              est.Latitude,
		Longitude:             est.Longitude,
		Score:                 est.Score,
		PassStreak:            est.PassStreak,
		LatestResult:          est.LatestResult,
		LatestInspectionDate:  est.LatestInspectionDate,
		SummaryText:           est.SummaryText,
		SummaryGeneratedAt:    est.SummaryGeneratedAt,
		SummaryResultSnapshot: est.SummaryResultSnapshot,
		SummaryScoreSnapshot:  est.SummaryScoreSnapshot,
		CreatedAt:             est.CreatedAt,
		UpdatedAt:             est.UpdatedAt,
	}

	// Cache columns are deliberately excluded from the conflict update so a
	// re-sync never clobbers an existing summary snapshot.
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "license_no"}},
		DoUpdates: clause.Assignments(map[string]any{
			"name":                   row.Name,
			"aka_name":               row.AKAName,
			"facility_type":          row.FacilityType,
			"risk_tier":              row.RiskTier,
			"address":                row.Address,
			"city":                   row.City,
			"state":                  row.State,
			"zip":                    row.Zip,
			"latitude":               row.Latitude,
			"longitude":              row.Longitude,
			"score":                  row.Score,
			"pass_streak":            row.PassStreak,
			"latest_result":          row.LatestResult,
			"latest_inspection_date": row.LatestInspectionDate,
			"updated_at":             row.UpdatedAt,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert establishment")
	}
	return nil
}

func (r *StoreRepository) GetEstablishment(ctx context.Context, licenseNo string) (ports.Establishment, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Establishment{}, err
	}

	var row model.Establishment
	if err := db.Where("license_no = ?", licenseNo).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Establishment{}, ports.ErrEstablishmentNotFound
		}
		return ports.Establishment{}, errs.Wrap(err, "query establishment")
	}
	return mapEstablishment(row), nil
}

func (r *StoreRepository) UpsertInspection(ctx context.Context, insp ports.Inspection) (uint64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	row := model.Inspection{
		ExternalID:     insp.ExternalID,
		LicenseNo:      insp.LicenseNo,
		InspectionDate: insp.Date,
		InspectionType: insp.Type,
		Result:         insp.Result,
		ViolationsRaw:  insp.ViolationsRaw,
		ViolationCount: insp.ViolationCount,
		CriticalCount:  insp.CriticalCount,
		CreatedAt:      insp.CreatedAt,
	}

	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "external_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"license_no":      row.LicenseNo,
			"inspection_date": row.InspectionDate,
			"inspection_type": row.InspectionType,
			"result":          row.Result,
			"violations_raw":  row.ViolationsRaw,
			"violation_count": row.ViolationCount,
			"critical_count":  row.CriticalCount,
		}),
	}).Create(&row).Error; err != nil {
		return 0, errs.Wrap(err, "upsert inspection")
	}

	// On conflict gorm does not backfill the surrogate id, so read it back.
	var stored model.Inspection
	if err := db.Select("inspection_id").Where("external_id = ?", insp.ExternalID).Take(&stored).Error; err != nil {
		return 0, errs.Wrap(err, "read back inspection id")
	}
	return stored.InspectionID, nil
}

func (r *StoreRepository) UpsertViolations(ctx context.Context, violations []ports.Violation) error {
	if len(violations) == 0 {
		return nil
	}

	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	rows := make([]model.Violation, 0, len(violations))
	for _, v := range violations {
		rows = append(rows, model.Violation{
			InspectionID: v.InspectionID,
			Code:         v.Code,
			Description:  v.Description,
			Comment:      v.Comment,
			IsCritical:   v.IsCritical,
		})
	}

	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error; err != nil {
		return errs.Wrap(err, "insert violations")
	}
	return nil
}

func (r *StoreRepository) ListInspections(ctx context.Context, licenseNo string) ([]ports.Inspection, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Inspection
	if err := db.
		Where("license_no = ?", licenseNo).
		Order("inspection_date desc, inspection_id desc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query inspections")
	}

	items := make([]ports.Inspection, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapInspection(row))
	}
	return items, nil
}

func (r *StoreRepository) ListViolationsForInspections(ctx context.Context, inspectionIDs []uint64) ([]ports.Violation, error) {
	if len(inspectionIDs) == 0 {
		return nil, nil
	}

	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Violation
	if err := db.
		Where("inspection_id IN ?", inspectionIDs).
		Order("inspection_id desc, code asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query violations")
	}

	items := make([]ports.Violation, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.Violation{
			InspectionID: row.InspectionID,
			Code:         row.Code,
			Description:  row.Description,
			Comment:      row.Comment,
			IsCritical:   row.IsCritical,
		})
	}
	return items, nil
}

func (r *StoreRepository) MaxInspectionDate(ctx context.Context) (string, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return "", err
	}

	var max sql.NullString
	if err := db.Model(&model.Inspection{}).
		Select("max(inspection_date)").
		Scan(&max).Error; err != nil {
		return "", errs.Wrap(err, "query max inspection date")
	}
	if !max.Valid {
		return "", nil
	}
	return max.String, nil
}

func (r *StoreRepository) UpdateSummary(ctx context.Context, licenseNo string, snap ports.SummarySnapshot) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	// One UPDATE keeps summary text and snapshot atomic.
	result := db.Model(&model.Establishment{}).
		Where("license_no = ?", licenseNo).
		Updates(map[string]any{
			"summary_text":            snap.Text,
			"summary_generated_at":    snap.GeneratedAt,
			"summary_result_snapshot": snap.Result,
			"summary_score_snapshot":  snap.Score,
		})
	if result.Error != nil {
		return errs.Wrap(result.Error, "update summary")
	}
	if result.RowsAffected == 0 {
		return ports.ErrEstablishmentNotFound
	}
	return nil
}

func (r *StoreRepository) ListInspectionRowRefs(ctx context.Context) ([]ports.InspectionRowRef, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Inspection
	if err := db.
		Select("inspection_id", "external_id", "created_at").
		Order("inspection_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query inspection row refs")
	}

	refs := make([]ports.InspectionRowRef, 0, len(rows))
	for _, row := range rows {
		refs = append(refs, ports.InspectionRowRef{
			InspectionID: row.InspectionID,
			ExternalID:   row.ExternalID,
			CreatedAt:    row.CreatedAt,
		})
	}
	return refs, nil
}

func (r *StoreRepository) DeleteViolationsForInspection(ctx context.Context, inspectionID uint64) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Where("inspection_id = ?", inspectionID).Delete(&model.Violation{}).Error; err != nil {
		return errs.Wrap(err, "delete violations for inspection")
	}
	return nil
}

func (r *StoreRepository) DeleteInspectionRow(ctx context.Context, inspectionID uint64) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Where("inspection_id = ?", inspectionID).Delete(&model.Inspection{}).Error; err != nil {
		return errs.Wrap(err, "delete inspection row")
	}
	return nil
}

func mapEstablishment(row model.Establishment) ports.Establishment {
	return ports.Establishment{
		LicenseNo:             row.LicenseNo,
		Name:                  row.Name,
		AKAName:               row.AKAName,
		FacilityType:          row.FacilityType,
		RiskTier:              row.RiskTier,
		Address:               row.Address,
		City:                  row.City,
		State:                 row.State,
		Zip:                   row.Zip,
		Latitude:              row.Latitude,
		Longitude:             row.Longitude,
		Score:                 row.Score,
		PassStreak:            row.PassStreak,
		LatestResult:          row.LatestResult,
		LatestInspectionDate:  row.LatestInspectionDate,
		SummaryText:           row.SummaryText,
		SummaryGeneratedAt:    row.SummaryGeneratedAt,
		SummaryResultSnapshot: row.SummaryResultSnapshot,
		SummaryScoreSnapshot:  row.SummaryScoreSnapshot,
		CreatedAt:             row.CreatedAt,
		UpdatedAt:             row.UpdatedAt,
	}
}

func mapInspection(row model.Inspection) ports.Inspection {
	return ports.Inspection{
		InspectionID:   row.InspectionID,
		ExternalID:     row.ExternalID,
		LicenseNo:      row.LicenseNo,
		Date:           row.InspectionDate,
		Type:           row.InspectionType,
		Result:         row.Result,
		ViolationsRaw:  row.ViolationsRaw,
		ViolationCount: row.ViolationCount,
		CriticalCount:  row.CriticalCount,
		CreatedAt:      row.CreatedAt,
	}
}
