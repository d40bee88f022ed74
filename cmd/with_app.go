package cmd

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"dinesafe/internal/bootstrap"
	"dinesafe/internal/bootstrap/logging"
	"dinesafe/internal/errs"
	"dinesafe/internal/usecase/ingest"
	"dinesafe/internal/usecase/reconcile"
	"dinesafe/internal/usecase/summary"
)

// services bundles everything a command may need from the fx container.
type services struct {
	App       *bootstrap.App
	Ingest    *ingest.Service
	Reconcile *reconcile.Service
	Summary   *summary.Service
}

func withApp(run func(cmd *cobra.Command, s *services) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := logging.WithAttrs(
			cmd.Context(),
			slog.String("command", cmd.CommandPath()),
			slog.String("config_file", cfgFile),
		)

		var s services
		fxApp := fx.New(
			bootstrap.Module,
			fx.Provide(func() context.Context { return ctx }),
			fx.Provide(
				fx.Annotate(
					func() string { return cfgFile },
					fx.ResultTags(`name:"configFile"`),
				),
			),
			fx.Populate(&s.App, &s.Ingest, &s.Reconcile, &s.Summary),
		)

		startCtx, cancelStart := context.WithTimeout(ctx, 10*time.Second)
		defer cancelStart()
		if err := fxApp.Start(startCtx); err != nil {
			logging.Error(ctx, "bootstrap application failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "start fx application")
		}

		defer func() {
			stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelStop()
			if err := fxApp.Stop(stopCtx); err != nil {
				logging.Error(ctx, "fx application stop failed", slog.Any("err", errs.Loggable(err)))
			}
		}()

		if err := run(cmd, &s); err != nil {
			return errs.Wrap(err, "run command")
		}
		return nil
	}
}
