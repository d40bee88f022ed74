package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"dinesafe/internal/bootstrap/logging"
	"dinesafe/internal/errs"
	"dinesafe/internal/ports"
)

// Service is the offline repair pass enforcing one inspection row per
// normalized external identifier. Stores created before the unique index on
// external_id can hold duplicate clusters; this job keeps the earliest row
// of each cluster and removes the rest.
type Service struct {
	repo ports.StoreRepository
	uow  ports.UnitOfWork
}

func NewService(repo ports.StoreRepository, uow ports.UnitOfWork) *Service {
	return &Service{repo: repo, uow: uow}
}

type RunInput struct {
	// Execute performs the deletions. The default is a dry run that only
	// reports what would be removed.
	Execute bool
}

// ClusterReport describes one duplicate cluster: the surviving row and the
// rows removed (or slated for removal in a dry run).
type ClusterReport struct {
	ExternalID string
	KeptID     uint64
	DeletedIDs []uint64
}

type Report struct {
	Executed    bool
	RowsScanned int
	Clusters    []ClusterReport
	Errors      []string
}

func (s *Service) Run(ctx context.Context, in RunInput) (Report, error) {
	if ctx == nil {
		return Report{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return Report{}, errs.Wrap(err, "check context")
	}
	if s.repo == nil {
		return Report{}, errors.New("store repository is required")
	}
	if s.uow == nil {
		return Report{}, errors.New("unit of work is required")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.reconcile"))

	refs, err := s.repo.ListInspectionRowRefs(ctx)
	if err != nil {
		return Report{}, errs.Wrap(err, "list inspection rows")
	}

	report := Report{Executed: in.Execute, RowsScanned: len(refs)}

	byExternalID := make(map[string][]ports.InspectionRowRef)
	for _, ref := range refs {
		byExternalID[ref.ExternalID] = append(byExternalID[ref.ExternalID], ref)
	}

	externalIDs := make([]string, 0, len(byExternalID))
	for externalID, cluster := range byExternalID {
		if len(cluster) > 1 {
			externalIDs = append(externalIDs, externalID)
		}
	}
	sort.Strings(externalIDs)

	for _, externalID := range externalIDs {
		cluster := byExternalID[externalID]
		// Earliest creation wins; the row id breaks ties.
		sort.Slice(cluster, func(i, j int) bool {
			if cluster[i].CreatedAt != cluster[j].CreatedAt {
				return cluster[i].CreatedAt < cluster[j].CreatedAt
			}
			return cluster[i].InspectionID < cluster[j].InspectionID
		})

		entry := ClusterReport{
			ExternalID: externalID,
			KeptID:     cluster[0].InspectionID,
		}

		for _, dup := range cluster[1:] {
			if in.Execute {
				if err := s.deleteDuplicate(ctx, dup.InspectionID); err != nil {
					// Keep repairing the remaining clusters.
					report.Errors = append(report.Errors,
						fmt.Sprintf("inspection row %d (%s): %v", dup.InspectionID, externalID, err))
					continue
				}
			}
			entry.DeletedIDs = append(entry.DeletedIDs, dup.InspectionID)
		}

		report.Clusters = append(report.Clusters, entry)
	}

	logging.Info(logCtx, "reconcile finished",
		slog.Bool("executed", report.Executed),
		slog.Int("rows_scanned", report.RowsScanned),
		slog.Int("duplicate_clusters", len(report.Clusters)),
		slog.Int("errors", len(report.Errors)),
	)

	return report, nil
}

// deleteDuplicate removes a duplicate inspection row and its violations in
// one transaction, so a failure never leaves orphaned violations behind.
func (s *Service) deleteDuplicate(ctx context.Context, inspectionID uint64) error {
	return s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.DeleteViolationsForInspection(txCtx, inspectionID); err != nil {
			return errs.Wrap(err, "delete violations")
		}
		if err := s.repo.DeleteInspectionRow(txCtx, inspectionID); err != nil {
			return errs.Wrap(err, "delete inspection")
		}
		return nil
	})
}
