package admin

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/elskow/lottery-web/internal/auth"
	"github.com/elskow/lottery-web/internal/config"
	"github.com/elskow/lottery-web/internal/lottery"
	"github.com/elskow/lottery-web/internal/securitylog"
)

func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(
					config *config.AppConfig,
					users *auth.Service,
					store *lottery.Store,
					engine *lottery.Engine,
					metrics *lottery.MetricsCollector,
					security *securitylog.Log,
					middleware *auth.AuthMiddleware,
					log *zap.Logger,
				) *Handler {
					return NewHandler(users, store, engine, metrics, security, middleware, log, config.SecurityLog.TailSize)
				},
			),
		),
	)
}
