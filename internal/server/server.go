package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/elskow/lottery-web/internal/admin"
	"github.com/elskow/lottery-web/internal/auth"
	"github.com/elskow/lottery-web/internal/config"
	"github.com/elskow/lottery-web/internal/lottery"
	"github.com/elskow/lottery-web/internal/securitylog"
)

// Server runs the HTTP application and a gRPC listener that only carries the
// standard health service.
type Server struct {
	config     *config.AppConfig
	log        *zap.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	health     *health.Server

	httpAddr net.Addr
	grpcAddr net.Addr
}

type Params struct {
	fx.In

	Config         *config.AppConfig
	Logger         *zap.Logger
	Security       *securitylog.Log
	AuthMiddleware *auth.AuthMiddleware
	AuthHandler    *auth.Handler
	LotteryHandler *lottery.Handler
	AdminHandler   *admin.Handler
}

func NewServer(p Params) (*Server, error) {
	if os.Getenv("APP_ENV") == EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	router, err := newRouter(
		&p.Config.Server,
		p.Logger,
		p.Security,
		[]gin.HandlerFunc{p.AuthMiddleware.Session(), p.AuthMiddleware.Authenticate()},
		p.AuthHandler,
		p.LotteryHandler,
		p.AdminHandler,
	)
	if err != nil {
		return nil, err
	}
	return newServer(p.Config, p.Logger, router), nil
}

func newServer(cfg *config.AppConfig, log *zap.Logger, handler http.Handler) *Server {
	opts := []grpc.ServerOption{}
	if cfg.GRPC.MaxReceiveMessageSize > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(cfg.GRPC.MaxReceiveMessageSize))
	}
	if cfg.GRPC.MaxSendMessageSize > 0 {
		opts = append(opts, grpc.MaxSendMsgSize(cfg.GRPC.MaxSendMessageSize))
	}
	grpcServer := grpc.NewServer(opts...)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(grpcServer, hs)

	if cfg.GRPC.EnableReflection {
		reflection.Register(grpcServer)
	}

	return &Server{
		config: cfg,
		log:    log,
		httpServer: &http.Server{
			Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
			Handler:      handler,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		grpcServer: grpcServer,
		health:     hs,
	}
}

// Start binds both listeners and serves in the background. Bind errors are
// returned; serve errors after that are logged.
func (s *Server) Start() error {
	httpLis, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	grpcLis, err := net.Listen("tcp", net.JoinHostPort(s.config.Server.Host, s.config.GRPC.Port))
	if err != nil {
		_ = httpLis.Close()
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.httpAddr = httpLis.Addr()
	s.grpcAddr = grpcLis.Addr()

	s.log.Info("Starting servers",
		zap.Stringer("http_address", s.httpAddr),
		zap.Stringer("grpc_address", s.grpcAddr),
		zap.Object("config", serverConfigToField(s.config)),
	)

	go func() {
		if err := s.httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server stopped", zap.Error(err))
		}
	}()
	go func() {
		if err := s.grpcServer.Serve(grpcLis); err != nil {
			s.log.Error("gRPC server stopped", zap.Error(err))
		}
	}()

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return nil
}

func serverConfigToField(config *config.AppConfig) zapcore.ObjectMarshaler {
	return zapcore.ObjectMarshalerFunc(func(enc zapcore.ObjectEncoder) error {
		enc.AddString("environment", os.Getenv("APP_ENV"))
		enc.AddDuration("read_timeout", config.Server.ReadTimeout)
		enc.AddDuration("write_timeout", config.Server.WriteTimeout)
		enc.AddBool("reflection_enabled", config.GRPC.EnableReflection)
		enc.AddString("session_store", config.Auth.SessionStore)
		return nil
	})
}

func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("shutting down servers")
	s.health.Shutdown()

	err := s.httpServer.Shutdown(ctx)
	s.grpcServer.GracefulStop()
	return err
}
