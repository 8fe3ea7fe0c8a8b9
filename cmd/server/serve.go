package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	_ "github.com/go-sql-driver/mysql"

	"github.com/rl1809/storefront/internal/adapter/catalog"
	"github.com/rl1809/storefront/internal/adapter/handler"
	"github.com/rl1809/storefront/internal/adapter/identity"
	"github.com/rl1809/storefront/internal/adapter/payment"
	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/config"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/persist"
	"github.com/rl1809/storefront/internal/core/service"
	"github.com/rl1809/storefront/internal/port"
	"github.com/rl1809/storefront/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP and gRPC servers and the settlement workers",
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup(c)
			if err != nil {
				return err
			}
			return serve(c.Context, cfg, logger)
		},
	}
}

func setup(c *cli.Context) (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(c.StringSlice("env-file")...)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

// backends holds whatever external connections the configuration asks for.
type backends struct {
	db    *sqlx.DB
	redis *redis.Client
}

func (b *backends) mysql(ctx context.Context, cfg config.Config) (*sqlx.DB, error) {
	if b.db != nil {
		return b.db, nil
	}
	db, err := sqlx.ConnectContext(ctx, "mysql", cfg.MySQLDSN)
	if err != nil {
		return nil, errors.Wrap(err, "connect mysql")
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	b.db = db
	return db, nil
}

func (b *backends) close() {
	if b.redis != nil {
		b.redis.Close()
	}
	if b.db != nil {
		b.db.Close()
	}
}

func (b *backends) keyValueStore(ctx context.Context, cfg config.Config) (port.KeyValueStore, error) {
	switch cfg.Store {
	case config.StoreRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis url")
		}
		opts.PoolSize = 100
		b.redis = redis.NewClient(opts)
		adapter := storage.NewRedisAdapter(b.redis, cfg.CartTTL)
		if err := adapter.Ping(ctx); err != nil {
			return nil, errors.Wrap(err, "ping redis")
		}
		return adapter, nil
	case config.StoreMySQL:
		db, err := b.mysql(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return storage.NewMySQLAdapter(db), nil
	default:
		return storage.NewMemoryAdapter(cfg.CartTTL), nil
	}
}

func (b *backends) catalogRepository(ctx context.Context, cfg config.Config) (port.CatalogRepository, error) {
	if cfg.Catalog != config.CatalogMySQL {
		return catalog.Seed{}, nil
	}
	db, err := b.mysql(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return storage.NewMySQLAdapter(db), nil
}

func identityProvider(ctx context.Context, cfg config.Config) (port.IdentityProvider, error) {
	if cfg.Identity == config.IdentityOIDC {
		return identity.NewOIDCProvider(ctx, identity.OIDCConfig{
			IssuerURL:    cfg.OIDCIssuer,
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			RedirectURL:  cfg.BaseURL + "/auth/callback",
		})
	}
	return identity.NewStaticProvider(domain.User{
		ID:    cfg.StaticUserID,
		Email: cfg.StaticUserEmail,
		Name:  cfg.StaticUserName,
	}, "/auth/callback"), nil
}

func serve(parent context.Context, cfg config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.WithError(err).Warn("flush traces")
		}
	}()

	var b backends
	defer b.close()

	kv, err := b.keyValueStore(ctx, cfg)
	if err != nil {
		return err
	}
	logger.WithField("store", cfg.Store).Info("cart store ready")

	repo, err := b.catalogRepository(ctx, cfg)
	if err != nil {
		return err
	}
	catalogService, err := service.NewCatalogService(ctx, repo, cfg.PageSize, decimal.NewFromInt(cfg.PriceCeiling))
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"source":   cfg.Catalog,
		"products": len(catalogService.Products()),
	}).Info("catalog loaded")

	carts := service.NewCarts(persist.New[[]domain.CartItem](kv, logger))
	payments := payment.NewSimulator(cfg.PaymentDelay, logger)
	checkout := service.NewCheckoutService(payments, cfg.QueueSize, logger)

	idp, err := identityProvider(ctx, cfg)
	if err != nil {
		return err
	}
	sessions, err := identity.NewSessions(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return err
	}

	httpHandler := handler.NewHTTPHandler(catalogService, carts, checkout, idp, sessions, handler.HTTPConfig{
		BaseURL:       cfg.BaseURL,
		SecureCookies: cfg.SecureCookies,
		CheckoutRate:  rate.Limit(cfg.CheckoutRate),
		CheckoutBurst: cfg.CheckoutBurst,
	}, logger)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpHandler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		handler.UnaryRecoverer(logger),
		handler.UnaryLogger(logger),
	))
	handler.RegisterCatalogServer(grpcServer, handler.NewGRPCHandler(catalogService))
	healthServer := health.NewServer()
	healthServer.SetServingStatus(handler.CatalogServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", cfg.GRPCAddr)
	}

	var workers errgroup.Group
	for i := 0; i < cfg.Workers; i++ {
		id := i
		workers.Go(func() error {
			checkout.Work(id)
			return nil
		})
	}
	logger.WithField("workers", cfg.Workers).Info("settlement workers started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", cfg.GRPCAddr).Info("gRPC server listening")
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		logger.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		janitor{
			carts:    carts,
			catalog:  catalogService,
			http:     httpHandler,
			kv:       kv,
			idle:     cfg.SessionIdle,
			interval: cfg.SweepInterval,
			logger:   logger,
		}.run(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("HTTP shutdown")
		}
		logger.Info("HTTP server stopped")

		healthServer.Shutdown()
		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")
		return nil
	})

	err = g.Wait()

	// Queued settlements still run to completion.
	checkout.Close()
	_ = workers.Wait()
	logger.Info("workers stopped")

	return err
}
