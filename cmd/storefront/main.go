package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/circuitbreaker"
	"github.com/fjod/go_cart/storefront/internal/config"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/fjod/go_cart/storefront/internal/poller"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"github.com/fjod/go_cart/storefront/internal/validation"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	if err := run(cfg, log); err != nil {
		log.Fatal("storefront stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, cleanup, err := openRepository(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	store := cart.NewStore(ctx, cfg.OwnerID, repo, log, cart.WithSaveTimeout(cfg.BackendTimeout))

	backendClient := backend.NewClient(backend.Config{
		BaseURL: cfg.BackendBaseURL,
		Timeout: cfg.BackendTimeout,
		Breaker: circuitbreaker.Options{
			MaxFailures: uint32(cfg.BreakerMaxFailures),
			OpenTimeout: cfg.BreakerOpenTimeout,
		},
	}, log)
	validator := validation.NewClient(backendClient, cfg.ValidationTimeout, log)
	workflow := checkout.NewWorkflow(store, validator, backendClient, log)

	if cfg.PollerEnabled() {
		p := poller.NewPoller(cfg.OwnerID, store, poller.Config{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaOrderTopic,
			GroupID: cfg.KafkaGroupID,
		}, log)
		defer p.Close()
		go p.Run(ctx)
		log.Info("order poller started", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaOrderTopic))
	}

	router := h.NewRouter(
		h.NewCartHandler(store, backendClient, cfg.BackendTimeout, log),
		h.NewCheckoutHandler(workflow, cfg.BackendTimeout+cfg.ValidationTimeout),
		log,
		cfg.MaxRequestBodySize,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("storefront starting", zap.String("port", cfg.HTTPPort), zap.String("owner_id", cfg.OwnerID))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down storefront")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	if err := store.Close(shutdownCtx); err != nil {
		log.Error("cart not fully persisted on shutdown", zap.Error(err))
	}

	log.Info("storefront exited")
	return nil
}

// openRepository builds the cart repository for the configured backend and
// returns a cleanup that releases its connections.
func openRepository(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.CartRepository, func(), error) {
	switch cfg.Backend {
	case config.BackendMemory:
		log.Warn("using in-memory cart repository, the cart will not survive restarts")
		return repository.NewMemoryRepository(), func() {}, nil

	case config.BackendRedis:
		client, err := connectRedis(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		log.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
		return repository.NewRedisRepository(client, cfg.Namespace, cfg.OwnerID), func() { _ = client.Close() }, nil

	case config.BackendMongo:
		db, err := repository.ConnectMongoDB(ctx, repository.MongoOptions{
			URI:                    cfg.MongoURI,
			Database:               cfg.MongoDBName,
			ConnectTimeout:         cfg.MongoConnectTimeout,
			ServerSelectionTimeout: cfg.MongoServerSelectionTimeout,
			MaxPoolSize:            uint64(cfg.MongoMaxPoolSize),
		})
		if err != nil {
			return nil, nil, err
		}
		mongoRepo := repository.NewMongoRepository(db, cfg.OwnerID)
		if err := mongoRepo.CreateIndexes(ctx); err != nil {
			_ = db.Client().Disconnect(context.Background())
			return nil, nil, err
		}
		log.Info("connected to mongodb", zap.String("database", cfg.MongoDBName))

		disconnect := func() { _ = db.Client().Disconnect(context.Background()) }

		client, err := connectRedis(ctx, cfg)
		if err != nil {
			log.Warn("redis unavailable, reading carts from mongodb without cache", zap.Error(err))
			return mongoRepo, disconnect, nil
		}
		repo := repository.NewCachedRepository(mongoRepo, cache.NewRedisCache(client, cfg.Namespace), cfg.OwnerID, log)
		return repo, func() {
			_ = client.Close()
			disconnect()
		}, nil
	}
	return nil, nil, fmt.Errorf("unknown cart backend %q", cfg.Backend)
}

func connectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}
