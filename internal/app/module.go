package app

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/lottery-web/internal/admin"
	"github.com/elskow/lottery-web/internal/auth"
	"github.com/elskow/lottery-web/internal/database"
	"github.com/elskow/lottery-web/internal/lottery"
	"github.com/elskow/lottery-web/internal/migration"
	"github.com/elskow/lottery-web/internal/securitylog"
	"github.com/elskow/lottery-web/internal/server"
)

// Module combines all application modules
func Module() fx.Option {
	return fx.Options(
		fx.Provide(newLogger),
		fx.Provide(server.LoadConfig),

		securitylog.Module(),
		database.Module(),
		migration.Module(),

		auth.NewModule(),
		lottery.Module(),
		admin.Module(),

		fx.Provide(server.NewServer),
		fx.Invoke(registerHooks),
	)
}

func newLogger() (*zap.Logger, error) {
	return server.NewLogger(os.Getenv("APP_ENV"))
}

func registerHooks(
	lifecycle fx.Lifecycle,
	srv *server.Server,
	log *zap.Logger,
) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return srv.Start()
		},
		OnStop: func(ctx context.Context) error {
			log.Info("shutting down server...")
			return srv.Stop(ctx)
		},
	})
}
