package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	goredis "github.com/go-redis/redis/v8"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/heartmarshall/labsim/internal/adapter/postgres"
	"github.com/heartmarshall/labsim/internal/adapter/redis"
	"github.com/heartmarshall/labsim/internal/adapter/sqlite"
	"github.com/heartmarshall/labsim/internal/auth"
	"github.com/heartmarshall/labsim/internal/blob"
	"github.com/heartmarshall/labsim/internal/config"
	"github.com/heartmarshall/labsim/internal/docstore"
	"github.com/heartmarshall/labsim/internal/metrics"
	"github.com/heartmarshall/labsim/internal/qrcode"
	"github.com/heartmarshall/labsim/internal/service/laboratory"
	"github.com/heartmarshall/labsim/internal/service/mission"
	"github.com/heartmarshall/labsim/internal/service/profile"
	"github.com/heartmarshall/labsim/internal/service/sample"
	"github.com/heartmarshall/labsim/internal/service/scan"
	"github.com/heartmarshall/labsim/internal/transport/middleware"
	"github.com/heartmarshall/labsim/internal/transport/rest"
)

// Run is the application entry point. It loads configuration, wires the
// services and serves HTTP until ctx is cancelled.
func Run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := NewLogger(cfg.Log)
	logger.Info("starting application",
		slog.String("version", BuildVersion()),
		slog.String("log_level", cfg.Log.Level),
		slog.String("store", effectiveDriver(cfg)),
		slog.Bool("emulator", cfg.Emulator),
	)

	clock := clockwork.NewRealClock()

	infra, err := OpenInfra(ctx, cfg, logger, clock)
	if err != nil {
		return err
	}
	defer infra.Close()

	svc := NewServices(cfg, infra, logger, clock)
	m := metrics.New()

	limiter := middleware.NewRateLimiter(clock, cfg.RateLimit.CleanupInterval)
	defer limiter.Stop()

	var blobs *rest.BlobHandler
	if infra.Blobs.Driver() == blob.DriverMemory {
		blobs = rest.NewBlobHandler(infra.Blobs, logger)
	}

	handler := rest.NewRouter(rest.RouterDeps{
		Health:      rest.NewHealthHandler(infra.Pingers(), BuildVersion(), clock),
		Profiles:    rest.NewProfileHandler(svc.Profiles, m, logger),
		Labs:        rest.NewLaboratoryHandler(svc.Labs, m, rest.OriginChecker(cfg.CORS), logger),
		Samples:     rest.NewSampleHandler(svc.Samples, svc.Labs, logger),
		Missions:    rest.NewMissionHandler(svc.Missions, svc.Labs, logger),
		Scans:       rest.NewScanHandler(scan.NewService(logger, infra.Store, svc.QR, m, clock), logger),
		Blobs:       blobs,
		Metrics:     m.Handler(),
		Observer:    m,
		Tokens:      svc.Tokens,
		RateLimiter: limiter,
		CORS:        cfg.CORS,
		Limits:      cfg.RateLimit,
		Log:         logger,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", slog.Duration("timeout", cfg.Server.ShutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("stopped")
	return nil
}

// Infra holds the opened backing services.
type Infra struct {
	Store *docstore.Store
	Blobs blob.Store

	redis   *goredis.Client
	closers []func() error
	log     *slog.Logger
}

// OpenInfra opens the document store, its change feed and blob storage as
// selected by cfg. The emulator flag forces the in-process variants.
func OpenInfra(ctx context.Context, cfg *config.Config, logger *slog.Logger, clock clockwork.Clock) (*Infra, error) {
	in := &Infra{log: logger}
	ok := false
	defer func() {
		if !ok {
			in.Close()
		}
	}()

	backend, err := in.openBackend(ctx, cfg, clock)
	if err != nil {
		return nil, err
	}
	feed, err := in.openFeed(ctx, cfg)
	if err != nil {
		backend.Close() //nolint:errcheck
		return nil, err
	}
	in.Store = docstore.New(backend,
		docstore.WithClock(clock),
		docstore.WithFeed(feed),
		docstore.WithLogger(logger),
	)
	// Closing the store closes backend and feed; pools and clients close after.
	in.closers = append([]func() error{in.Store.Close}, in.closers...)

	blobCfg := cfg.Blob
	if cfg.Emulator {
		blobCfg.Driver = string(blob.DriverMemory)
	}
	if blobCfg.PublicBaseURL == "" && blob.Driver(blobCfg.Driver) != blob.DriverS3 {
		blobCfg.PublicBaseURL = "/blobs"
	}
	in.Blobs, err = blob.Open(ctx, blobCfg)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	ok = true
	return in, nil
}

func effectiveDriver(cfg *config.Config) string {
	if cfg.Emulator {
		return config.StoreMemory
	}
	return cfg.Store.Driver
}

func (in *Infra) openBackend(ctx context.Context, cfg *config.Config, clock clockwork.Clock) (docstore.Backend, error) {
	switch effectiveDriver(cfg) {
	case config.StoreMemory:
		return docstore.NewMemory(), nil
	case config.StoreSQLite:
		st, err := sqlite.Open(ctx, cfg.SQLite.Path, clock)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return st, nil
	case config.StorePostgres:
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		in.closers = append(in.closers, func() error { pool.Close(); return nil })
		return postgres.NewDocumentRepo(pool), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func (in *Infra) openFeed(ctx context.Context, cfg *config.Config) (docstore.Feed, error) {
	if cfg.Emulator || !strings.EqualFold(cfg.Store.Feed, "redis") {
		return docstore.NewHub(), nil
	}
	client, err := redis.NewClient(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	in.redis = client
	in.closers = append(in.closers, client.Close)
	return redis.NewFeed(client, cfg.Redis.Channel, in.log), nil
}

// Pingers lists the components reported by the health endpoints.
func (in *Infra) Pingers() map[string]rest.Pinger {
	out := map[string]rest.Pinger{"store": in.Store}
	if in.redis != nil {
		client := in.redis
		out["feed"] = rest.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}
	return out
}

// Close releases everything in reverse dependency order.
func (in *Infra) Close() {
	for _, c := range in.closers {
		if err := c(); err != nil {
			in.log.Warn("close failed", slog.String("error", err.Error()))
		}
	}
	in.closers = nil
}

// Services are the domain services built over Infra.
type Services struct {
	Profiles *profile.Service
	Labs     *laboratory.Service
	Samples  *sample.Service
	Missions *mission.Service
	QR       *qrcode.Validator
	Tokens   *auth.JWTManager
}

// NewServices wires the domain services.
func NewServices(cfg *config.Config, in *Infra, logger *slog.Logger, clock clockwork.Clock) *Services {
	profiles := profile.NewService(logger, in.Store, cfg.Game.StartingBudget)
	labs := laboratory.NewService(logger, in.Store, profiles, clock)
	qr := qrcode.NewValidator(clock, cfg.Game.QRMaxAge)
	return &Services{
		Profiles: profiles,
		Labs:     labs,
		Samples:  sample.NewService(logger, in.Store, in.Blobs, labs, qr, profiles, clock),
		Missions: mission.NewService(logger, in.Store, labs, profiles, clock),
		QR:       qr,
		Tokens:   auth.NewJWTManager(cfg.Auth.IdentitySecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL, clock),
	}
}
