package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"dinesafe/internal/bootstrap/config"
	"dinesafe/internal/bootstrap/database"
	"dinesafe/internal/bootstrap/logging"
	cacheinfra "dinesafe/internal/infrastructure/cache"
	"dinesafe/internal/infrastructure/geocode"
	sqliterepo "dinesafe/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "dinesafe/internal/infrastructure/persistence/sqlite/uow"
	"dinesafe/internal/infrastructure/source"
	"dinesafe/internal/infrastructure/summarize"
	"dinesafe/internal/ports"
	"dinesafe/internal/usecase/ingest"
	"dinesafe/internal/usecase/reconcile"
	"dinesafe/internal/usecase/summary"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(
		fx.Annotate(
			sqliterepo.NewStoreRepository,
			fx.As(new(ports.StoreRepository)),
		),
	),
	fx.Provide(
		fx.Annotate(
			sqliteuow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewSQLiteCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(
		fx.Annotate(
			provideSource,
			fx.As(new(ports.InspectionSource)),
		),
	),
	fx.Provide(
		fx.Annotate(
			provideGeocodeProvider,
			fx.As(new(ports.GeocodeProvider)),
		),
	),
	fx.Provide(
		fx.Annotate(
			provideSummaryGenerator,
			fx.As(new(ports.SummaryGenerator)),
		),
	),
	fx.Provide(ingest.NewService),
	fx.Provide(reconcile.NewService),
	fx.Provide(summary.NewService),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideSource(cfg config.Config) *source.SocrataClient {
	return source.NewSocrataClient(cfg.Source)
}

func provideGeocodeProvider(cfg config.Config) *geocode.NominatimProvider {
	return geocode.NewNominatimProvider(cfg.Geocoder)
}

func provideSummaryGenerator(cfg config.Config) *summarize.OpenAIGenerator {
	return summarize.NewOpenAIGenerator(cfg.Summary)
}
