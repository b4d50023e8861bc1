package auth

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/elskow/lottery-web/internal/config"
	"github.com/elskow/lottery-web/internal/securitylog"
)

// NewModule returns the auth module options
func NewModule() fx.Option {
	return fx.Options(
		fx.Provide(
			fx.Annotate(
				func(db *gorm.DB) Repository {
					return NewRepository(db)
				},
			),
			newSessionStore,
			fx.Annotate(
				func(config *config.AppConfig, store SessionStore) *Guard {
					return NewGuard(store, config.Auth.MaxLoginAttempts)
				},
			),
			fx.Annotate(
				func(
					config *config.AppConfig,
					log *zap.Logger,
					repo Repository,
					guard *Guard,
					security *securitylog.Log,
				) *Service {
					return NewService(&config.Auth, log, repo, guard, security)
				},
			),
			fx.Annotate(
				func(config *config.AppConfig, svc *Service, security *securitylog.Log, log *zap.Logger) *AuthMiddleware {
					return NewAuthMiddleware(&config.Auth, svc, security, log)
				},
			),
			NewHandler,
		),
		fx.Invoke(registerHooks),
	)
}

func newSessionStore(lifecycle fx.Lifecycle, config *config.AppConfig, log *zap.Logger) (SessionStore, error) {
	switch config.Auth.SessionStore {
	case "memory":
		log.Warn("login attempt counters kept in memory; do not run more than one instance")
		store := NewMemorySessionStore(config.Auth.SessionTTL)
		registerSweeper(lifecycle, store, config.Auth.SessionTTL, log)
		return store, nil
	case "", "redis":
	default:
		return nil, fmt.Errorf("unknown session store %q", config.Auth.SessionStore)
	}

	client, err := NewRedisClient(context.Background(), &config.Redis)
	if err != nil {
		return nil, err
	}
	lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("Closing Redis connection")
			return client.Close()
		},
	})
	return NewRedisSessionStore(client, config.Auth.SessionTTL), nil
}

func registerHooks(
	lifecycle fx.Lifecycle,
	config *config.AppConfig,
	svc *Service,
) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return svc.EnsureAdmin(ctx, config.Auth.Admin)
		},
	})
}

func registerSweeper(lifecycle fx.Lifecycle, store *MemorySessionStore, interval time.Duration, log *zap.Logger) {
	if interval <= 0 {
		return
	}

	done := make(chan struct{})
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						if n := store.Sweep(); n > 0 {
							log.Debug("swept expired login attempt counters", zap.Int("removed", n))
						}
					case <-done:
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(done)
			return nil
		},
	})
}
