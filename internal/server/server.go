package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/turntally/internal/api"
	"github.com/victornm/turntally/internal/catalog"
	"github.com/victornm/turntally/internal/event"
	"github.com/victornm/turntally/internal/leaderboard"
	"github.com/victornm/turntally/internal/metrics"
	"github.com/victornm/turntally/internal/session"
	"github.com/victornm/turntally/internal/stats"
	"github.com/victornm/turntally/internal/telemetry"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Log struct {
		Level  string
		Format string
	}

	Store struct {
		Driver string
		DSN    string
	}

	Redis struct {
		Addrs  []string
		Pass   string
		Prefix string
	}

	Leaderboard struct {
		PublishInterval time.Duration
	}

	Session struct {
		TickInterval time.Duration
	}
}

// DefaultConfig is what an empty config file yields.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.GRPC.Port = 9090
	c.Log.Level = "info"
	c.Log.Format = "text"
	c.Store.Driver = DriverSQLite
	c.Store.DSN = "turntally.db"
	c.Redis.Prefix = "turntally"
	c.Leaderboard.PublishInterval = 200 * time.Millisecond
	c.Session.TickInterval = time.Second
	return c
}

type Server struct {
	c Config

	eb    *event.Bus
	infra *Infra

	service struct {
		metrics     *metrics.Service
		catalog     *catalog.Service
		session     *session.Service
		stats       *stats.Service
		leaderboard *leaderboard.Service
	}

	api    *api.API
	health *health.Server
	http   *http.Server
	grpc   *grpc.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	infra, err := Connect(context.Background(), c)
	if err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}
	s.infra = infra

	s.eb = event.NewBus()

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initService() {
	s.service.metrics = metrics.NewService()

	s.service.catalog = catalog.NewService(catalog.Config{
		Store: s.infra.Store,
	})

	s.service.session = session.NewService(session.Config{
		Store:        s.infra.Store,
		EventBus:     s.eb,
		TickInterval: s.c.Session.TickInterval,
		Metrics:      s.service.metrics,
	})

	s.service.stats = stats.NewService(stats.Config{
		Store: s.infra.Store,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		Store:           s.infra.Store,
		EventBus:        s.eb,
		Redis:           s.infra.Redis,
		Prefix:          s.c.Redis.Prefix,
		PublishInterval: s.c.Leaderboard.PublishInterval,
		Metrics:         s.service.metrics,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(metrics.NewHandler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())
	e.GET("/healthz", s.healthz)

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor())
	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)

	s.api = api.New(api.Config{
		Router:       e,
		EventBus:     s.eb,
		Catalog:      s.service.catalog,
		Session:      s.service.session,
		Stats:        s.service.stats,
		Leaderboard:  s.service.leaderboard,
		Redis:        s.infra.Redis,
		PubsubPrefix: s.c.Redis.Prefix,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) healthz(c *gin.Context) {
	if err := s.infra.Store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Start() {
	ctx := context.Background()

	if err := s.service.session.Restore(ctx); err != nil {
		slog.ErrorContext(ctx, "server: restore session failed", "error", err)
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		return
	}

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()
	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.api.Close()
	s.service.session.Stop()
	s.service.leaderboard.Stop()
	s.eb.Stop()
	s.infra.Close()

	slog.InfoContext(ctx, "server: shutdown completed")
}
