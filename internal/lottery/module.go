package lottery

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/elskow/lottery-web/internal/auth"
	"github.com/elskow/lottery-web/internal/config"
	"github.com/elskow/lottery-web/internal/cryptobox"
	"github.com/elskow/lottery-web/internal/securitylog"
)

func Module() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(db *gorm.DB) Repository {
					return NewRepository(db)
				},
			),
			fx.Annotate(
				func(svc *auth.Service) KeySource {
					return cryptobox.NewKeyRing(svc)
				},
			),
			fx.Annotate(
				func(
					config *config.AppConfig,
					repo Repository,
					keys KeySource,
					security *securitylog.Log,
					log *zap.Logger,
				) *Store {
					return NewStore(repo, keys, security, log, config.Lottery.MaxNumber)
				},
			),
			NewMetricsCollector,
			fx.Annotate(
				func(store *Store, svc *auth.Service, metrics *MetricsCollector, log *zap.Logger) *Engine {
					return NewEngine(store, svc, metrics, log)
				},
			),
			NewHandler,
		),
	)
}
