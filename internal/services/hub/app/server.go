// Package app composes the hub process: storage, domain services, the REST
// and WebSocket API, and the internal gRPC health endpoint.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/automatehub/automatehub/internal/platform/events"
	platformgrpc "github.com/automatehub/automatehub/internal/platform/grpc"
	"github.com/automatehub/automatehub/internal/platform/id"
	"github.com/automatehub/automatehub/internal/platform/timeouts"
	"github.com/automatehub/automatehub/internal/services/hub/api/realtime"
	"github.com/automatehub/automatehub/internal/services/hub/api/rest"
	"github.com/automatehub/automatehub/internal/services/hub/auth"
	"github.com/automatehub/automatehub/internal/services/hub/domain/payment"
	"github.com/automatehub/automatehub/internal/services/hub/payments/fake"
	"github.com/automatehub/automatehub/internal/services/hub/payments/stripe"
	"github.com/automatehub/automatehub/internal/services/hub/storage/sqlite"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// HealthService is the gRPC health service name reported by the hub.
const HealthService = "automatehub.hub"

// Config defines the inputs of the hub process.
type Config struct {
	HTTPAddr string
	GRPCAddr string
	DBPath   string

	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration

	AllowedOrigins []string

	StripeSecretKey     string
	StripeWebhookSecret string
	FeeBPS              int64
	DefaultCurrency     string
	BcryptCost          int

	KafkaBrokers     []string
	KafkaTopicPrefix string

	Realtime        realtime.Config
	ShutdownTimeout time.Duration
	Logger          *zap.Logger
}

// Server hosts the hub HTTP and gRPC health listeners.
type Server struct {
	logger          *zap.Logger
	store           *sqlite.Store
	hub             *realtime.Hub
	health          *platformgrpc.HealthServer
	httpServer      *http.Server
	shutdownTimeout time.Duration
	closers         []func() error
}

// NewServer opens storage and wires every component. Close releases what it
// opened.
func NewServer(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = timeouts.Shutdown
	}

	issuer, err := auth.NewIssuer(auth.IssuerConfig{
		Secret: cfg.JWTSecret,
		Issuer: cfg.JWTIssuer,
		TTL:    cfg.TokenTTL,
		NewID:  id.NewID,
	})
	if err != nil {
		return nil, fmt.Errorf("build token issuer: %w", err)
	}

	store, err := OpenStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	s := &Server{
		logger:          logger,
		store:           store,
		shutdownTimeout: cfg.ShutdownTimeout,
		closers:         []func() error{store.Close},
	}

	processor, err := newProcessor(cfg, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	publisher, err := s.newPublisher(cfg, logger)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	services := NewServices(store, processor, publisher, logger, ServiceOptions{
		BcryptCost:      cfg.BcryptCost,
		FeeBPS:          cfg.FeeBPS,
		DefaultCurrency: cfg.DefaultCurrency,
	})

	realtimeCfg := cfg.Realtime
	if len(realtimeCfg.AllowedOrigins) == 0 {
		realtimeCfg.AllowedOrigins = cfg.AllowedOrigins
	}
	s.hub = realtime.NewHub(services.Conversations, auth.NewMiddleware(issuer, services.Accounts, logger), logger.Named("realtime"), realtimeCfg)
	services.Conversations.AddListener(s.hub)
	services.Notifications.SetPusher(s.hub)

	s.health = platformgrpc.NewHealthServer(logger.Named("health"), HealthService)
	s.httpServer = &http.Server{
		Handler: rest.NewRouter(rest.Config{
			Logger:         logger.Named("rest"),
			Issuer:         issuer,
			AllowedOrigins: cfg.AllowedOrigins,
			Realtime:       s.hub,
			Ready:          store.Ping,
		}, services),
		ReadHeaderTimeout: timeouts.ReadHeader,
	}
	return s, nil
}

// OpenStore opens the SQLite store at path, creating its directory.
func OpenStore(path string) (*sqlite.Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("database path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}

// newProcessor uses Stripe when a secret key is configured and an in-process
// processor otherwise, for local development.
func newProcessor(cfg Config, logger *zap.Logger) (payment.Processor, error) {
	if strings.TrimSpace(cfg.StripeSecretKey) != "" {
		processor, err := stripe.New(stripe.Config{SecretKey: cfg.StripeSecretKey, WebhookSecret: cfg.StripeWebhookSecret})
		if err != nil {
			return nil, fmt.Errorf("build stripe processor: %w", err)
		}
		return processor, nil
	}
	logger.Warn("stripe secret key not set, using the local payment processor")
	secret := cfg.StripeWebhookSecret
	if secret == "" {
		secret = cfg.JWTSecret
	}
	return fake.New(secret), nil
}

func (s *Server) newPublisher(cfg Config, logger *zap.Logger) (events.Publisher, error) {
	if len(cfg.KafkaBrokers) == 0 {
		return events.NewLogPublisher(logger.Named("events")), nil
	}
	kafka, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopicPrefix, logger.Named("events"))
	if err != nil {
		return nil, fmt.Errorf("build kafka publisher: %w", err)
	}
	s.closers = append(s.closers, kafka.Close)
	return events.Bounded{Publisher: kafka, Timeout: timeouts.Publish}, nil
}

// Handler returns the HTTP handler serving the API and the WebSocket endpoint.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Serve runs both listeners until ctx ends or one of them fails.
func (s *Server) Serve(ctx context.Context, httpListener, grpcListener net.Listener) error {
	if httpListener == nil || grpcListener == nil {
		return errors.New("http and grpc listeners are required")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.health.Serve(gctx, grpcListener)
	})
	g.Go(func() error {
		serveErr := make(chan error, 1)
		go func() {
			serveErr <- s.httpServer.Serve(httpListener)
		}()
		s.logger.Info("http listening", zap.String("addr", httpListener.Addr().String()))
		s.health.SetServing(true)

		select {
		case <-gctx.Done():
			s.health.SetServing(false)
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
			defer cancel()
			// Hijacked WebSocket connections are not tracked by Shutdown.
			s.hub.Close()
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown http server: %w", err)
			}
			<-serveErr
			return nil
		case err := <-serveErr:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("serve http: %w", err)
		}
	})
	return g.Wait()
}

// ListenAndServe binds the configured addresses and serves until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, httpAddr, grpcAddr string) error {
	var lc net.ListenConfig
	httpListener, err := lc.Listen(ctx, "tcp", httpAddr)
	if err != nil {
		return fmt.Errorf("listen http on %s: %w", httpAddr, err)
	}
	grpcListener, err := lc.Listen(ctx, "tcp", grpcAddr)
	if err != nil {
		_ = httpListener.Close()
		return fmt.Errorf("listen grpc on %s: %w", grpcAddr, err)
	}
	return s.Serve(ctx, httpListener, grpcListener)
}

// Close releases storage and the event publisher.
func (s *Server) Close() error {
	if s == nil {
		return nil
	}
	if s.hub != nil {
		s.hub.Close()
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Run builds the hub and serves it until ctx ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := NewServer(cfg)
	if err != nil {
		return fmt.Errorf("init hub server: %w", err)
	}
	defer func() {
		if err := server.Close(); err != nil {
			server.logger.Warn("close hub server", zap.Error(err))
		}
	}()
	return server.ListenAndServe(ctx, cfg.HTTPAddr, cfg.GRPCAddr)
}
