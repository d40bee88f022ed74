package bootstrap

import (
	"context"
	"errors"
	"log/slog"

	"gorm.io/gorm"

	"dinesafe/internal/bootstrap/config"
	"dinesafe/internal/bootstrap/logging"
	"dinesafe/internal/errs"
	"dinesafe/internal/infrastructure/persistence/sqlite/model"
)

// App bundles the loaded config and the open database handle for commands.
// Construction and teardown happen in the fx module.
type App struct {
	Config config.Config
	DB     *gorm.DB
}

func (a *App) InitSchema(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.app"))
	logging.Info(logCtx, "start schema migration")

	if err := a.DB.WithContext(ctx).AutoMigrate(
		&model.Establishment{},
		&model.Inspection{},
		&model.Violation{},
		&model.KVEntry{},
	); err != nil {
		return errs.Wrap(err, "auto migrate schema")
	}

	logging.Info(logCtx, "schema migration completed")
	return nil
}
