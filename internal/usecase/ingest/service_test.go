package ingest

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"dinesafe/internal/bootstrap/config"
	"dinesafe/internal/infrastructure/persistence/sqlite/model"
	"dinesafe/internal/infrastructure/persistence/sqlite/repository"
	"dinesafe/internal/infrastructure/persistence/sqlite/uow"
	"dinesafe/internal/ports"
)

type fakeSource struct {
	mu      sync.Mutex
	records []ports.SourceRecord
	sinces  []time.Time
}

func (s *fakeSource) FetchPage(_ context.Context, since time.Time, offset, limit int) ([]ports.SourceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinces = append(s.sinces, since)
	if offset >= len(s.records) {
		return nil, nil
	}
	end := offset + limit
	if end > len(s.records) {
		end = len(s.records)
	}
	return s.records[offset:end], nil
}

func (s *fakeSource) lastSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sinces[len(s.sinces)-1]
}

func setupIngestService(t *testing.T, source ports.InspectionSource, provider ports.GeocodeProvider) (*Service, *repository.StoreRepository, *gorm.DB) {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "dinesafe.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	if err := db.AutoMigrate(&model.Establishment{}, &model.Inspection{}, &model.Violation{}, &model.KVEntry{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	repo := repository.NewStoreRepository(db)
	cfg := config.Config{
		Source: config.SourceConfig{
			PageSize:            100,
			MaxPages:            5,
			WatermarkMarginDays: 7,
			LookbackMonths:      36,
		},
	}
	return NewService(repo, uow.NewUnitOfWork(db), source, provider, newMemCache(), cfg), repo, db
}

func sampleRecords() []ports.SourceRecord {
	return []ports.SourceRecord{
		{
			InspectionID:   "2609982",
			LicenseNo:      "112233",
			DBAName:        "The Golden Spoon",
			FacilityType:   "Restaurant",
			RiskTier:       1,
			Address:        "123 W Adams St",
			City:           "Chicago",
			State:          "IL",
			Zip:            "60604",
			InspectionDate: "2026-01-15",
			InspectionType: "Canvass",
			Result:         "Pass",
		},
		{
			InspectionID:   "2609990",
			LicenseNo:      "112233",
			DBAName:        "The Golden Spoon",
			FacilityType:   "Restaurant",
			RiskTier:       1,
			Address:        "123 W Adams St",
			City:           "Chicago",
			State:          "IL",
			Zip:            "60604",
			InspectionDate: "2025-10-02",
			InspectionType: "Canvass",
			Result:         "Fail",
			ViolationsRaw:  "7. Hot holding temperature - Comments: chicken at 125F | 38. Insects and rodents - Comments: droppings on floor",
		},
	}
}

func TestRunIsIdempotent(t *testing.T) {
	source := &fakeSource{records: sampleRecords()}
	provider := &fakeProvider{coords: &ports.Coordinates{Latitude: 41.88, Longitude: -87.63}}
	svc, repo, db := setupIngestService(t, source, provider)
	ctx := context.Background()

	first, err := svc.Run(ctx, RunInput{Full: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if first.InspectionsWritten != 2 || first.Establishments != 1 || first.ViolationsWritten != 2 {
		t.Fatalf("first run stats = %+v", first)
	}

	second, err := svc.Run(ctx, RunInput{Full: true})
	if err != nil {
		t.Fatalf("Run(again) error = %v", err)
	}
	if second.RecordErrors != 0 {
		t.Fatalf("second run stats = %+v", second)
	}

	var inspections, violations, establishments int64
	if err := db.Model(&model.Inspection{}).Count(&inspections).Error; err != nil {
		t.Fatalf("count inspections: %v", err)
	}
	if err := db.Model(&model.Violation{}).Count(&violations).Error; err != nil {
		t.Fatalf("count violations: %v", err)
	}
	if err := db.Model(&model.Establishment{}).Count(&establishments).Error; err != nil {
		t.Fatalf("count establishments: %v", err)
	}
	if inspections != 2 || violations != 2 || establishments != 1 {
		t.Fatalf("row counts after double run = %d/%d/%d", inspections, violations, establishments)
	}

	est, err := repo.GetEstablishment(ctx, "112233")
	if err != nil {
		t.Fatalf("GetEstablishment() error = %v", err)
	}
	// 80 + 15*0.5 - 2 - 3 = 82.5 -> 83
	if est.Score != 83 {
		t.Fatalf("Score = %d", est.Score)
	}
	if est.LatestResult != "Pass" || est.LatestInspectionDate != "2026-01-15" {
		t.Fatalf("latest mirror = %q %q", est.LatestResult, est.LatestInspectionDate)
	}
	if est.Latitude == nil || *est.Latitude != 41.88 {
		t.Fatalf("Latitude = %v", est.Latitude)
	}
}

func TestRunSkipsEstablishmentWhenGeocodeMisses(t *testing.T) {
	source := &fakeSource{records: sampleRecords()}
	provider := &fakeProvider{} // always a miss
	svc, repo, db := setupIngestService(t, source, provider)
	ctx := context.Background()

	stats, err := svc.Run(ctx, RunInput{Full: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.EstablishmentsSkipped != 1 || stats.Establishments != 0 {
		t.Fatalf("stats = %+v", stats)
	}

	if _, err := repo.GetEstablishment(ctx, "112233"); err != ports.ErrEstablishmentNotFound {
		t.Fatalf("GetEstablishment() error = %v", err)
	}

	// Coordinates resolve before any store write, so an unresolvable
	// establishment leaves no rows at all behind.
	var inspections int64
	if err := db.Model(&model.Inspection{}).Count(&inspections).Error; err != nil {
		t.Fatalf("count inspections: %v", err)
	}
	if inspections != 0 {
		t.Fatalf("inspection count = %d", inspections)
	}
}

func TestRunUsesSourceCoordinatesWithoutGeocoding(t *testing.T) {
	lat, lng := 41.9, -87.7
	records := sampleRecords()
	records[0].Latitude = &lat
	records[0].Longitude = &lng

	source := &fakeSource{records: records}
	provider := &fakeProvider{}
	svc, repo, _ := setupIngestService(t, source, provider)
	ctx := context.Background()

	if _, err := svc.Run(ctx, RunInput{Full: true}); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if provider.callCount() != 0 {
		t.Fatalf("provider called %d times", provider.callCount())
	}

	est, err := repo.GetEstablishment(ctx, "112233")
	if err != nil {
		t.Fatalf("GetEstablishment() error = %v", err)
	}
	if est.Latitude == nil || *est.Latitude != lat {
		t.Fatalf("Latitude = %v", est.Latitude)
	}
}

func TestRunIncrementalWatermark(t *testing.T) {
	source := &fakeSource{records: sampleRecords()}
	provider := &fakeProvider{coords: &ports.Coordinates{Latitude: 41.88, Longitude: -87.63}}
	svc, _, _ := setupIngestService(t, source, provider)
	ctx := context.Background()

	if _, err := svc.Run(ctx, RunInput{Full: true}); err != nil {
		t.Fatalf("Run(full) error = %v", err)
	}

	stats, err := svc.Run(ctx, RunInput{})
	if err != nil {
		t.Fatalf("Run(incremental) error = %v", err)
	}

	// Newest stored inspection is 2026-01-15; minus the 7-day margin.
	want := "2026-01-08"
	if stats.Since != want {
		t.Fatalf("Since = %q, want %q", stats.Since, want)
	}
	if got := source.lastSince().Format("2006-01-02"); got != want {
		t.Fatalf("source since = %q, want %q", got, want)
	}
}

func TestRunDropsRecordsWithoutLicense(t *testing.T) {
	records := sampleRecords()
	records[0].LicenseNo = ""

	source := &fakeSource{records: records}
	provider := &fakeProvider{coords: &ports.Coordinates{Latitude: 41.88, Longitude: -87.63}}
	svc, _, db := setupIngestService(t, source, provider)

	stats, err := svc.Run(context.Background(), RunInput{Full: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if stats.InspectionsWritten != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	var count int64
	if err := db.Model(&model.Inspection{}).Count(&count).Error; err != nil {
		t.Fatalf("count inspections: %v", err)
	}
	if count != 1 {
		t.Fatalf("inspection count = %d", count)
	}
}

func TestGroupByLicenseIsDeterministic(t *testing.T) {
	records := []ports.SourceRecord{
		{LicenseNo: "300", InspectionID: "3"},
		{LicenseNo: "100", InspectionID: "1"},
		{LicenseNo: "200", InspectionID: "2"},
		{LicenseNo: "100", InspectionID: "4"},
	}

	batches := groupByLicense(records)
	if len(batches) != 3 {
		t.Fatalf("groupByLicense() len = %d", len(batches))
	}
	if batches[0].licenseNo != "100" || batches[2].licenseNo != "300" {
		t.Fatalf("groupByLicense() order = %s, %s, %s",
			batches[0].licenseNo, batches[1].licenseNo, batches[2].licenseNo)
	}
	if len(batches[0].records) != 2 {
		t.Fatalf("license 100 records = %d", len(batches[0].records))
	}
}
