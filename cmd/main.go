package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/assetcache"
	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/config"
	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/connectivity"
	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/httpapi"
	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/logging"
	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/mockapi"
	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/outbox"
	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/remote"
	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/repository"
	"github.com/ziyanfeng/mws-restaurant-stage-3/internal/worker"
	"github.com/ziyanfeng/mws-restaurant-stage-3/service"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	mockAPI := flag.Bool("mock-api", false, "also serve the bundled mock restaurant API")
	installOnly := flag.Bool("install-assets", false, "install and activate the asset cache, then exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}
	if *mockAPI {
		cfg.MockAPI.Enabled = true
	}

	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("could not set up logging: %v", err)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MockAPI.Enabled {
		startMockAPI(ctx, cfg, logger)
	}

	// 1. local store and outbox
	store := setupStore(ctx, cfg)
	defer store.Close()

	slot, closeSlot := setupOutbox(ctx, cfg)
	defer closeSlot()

	// 2. remote API, connectivity and the sync client
	api := remote.NewClient(cfg.API.BaseURL, cfg.API.Timeout.Std())
	monitor := connectivity.NewMonitor(connectivity.Offline, logger)
	probe := worker.NewConnectivityProbe(api, monitor, cfg.Connectivity.ProbeInterval.Std(), logger)
	probe.ProcessProbe(ctx)

	client := service.NewSyncClient(
		repository.NewRestaurantRepository(store),
		repository.NewReviewRepository(store),
		api,
		slot,
		monitor,
		logger,
	)
	if err := client.Start(ctx); err != nil {
		logger.Error("could not check pending writes", "error", err)
	}
	go probe.Run(ctx)

	// 3. page-facing server: cached assets first, then the API and static files
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	assets := setupAssets(cfg, e, logger)
	e.Use(assets.Middleware())
	httpapi.New(client, logger).Register(e)
	if cfg.Assets.StaticDir != "" {
		e.Static("/", cfg.Assets.StaticDir)
	}

	if _, err := assets.Install(ctx); err != nil {
		logger.Error("asset install interrupted", "error", err)
	}
	if err := assets.Activate(ctx); err != nil {
		logger.Error("asset activation failed", "error", err)
	}
	if *installOnly {
		return
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		e.Shutdown(shutdownCtx)
	}()

	logger.Info("server starting", "addr", cfg.Listen, "api", cfg.API.BaseURL)
	if err := e.Start(cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
	}

	client.Wait()
	logger.Info("server stopped", "stats", client.Stats())
}

// setupStore opens the local store, creating its directory if needed.
func setupStore(ctx context.Context, cfg *config.Config) *repository.Store {
	if dir := filepath.Dir(cfg.Store.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("could not create store dir: %v", err)
		}
	}
	store, err := repository.Open(ctx, cfg.Store.Path)
	if err != nil {
		log.Fatalf("could not open store: %v", err)
	}
	return store
}

func setupOutbox(ctx context.Context, cfg *config.Config) (outbox.Slot, func()) {
	if cfg.Outbox.Backend != config.OutboxRedis {
		return outbox.NewFileSlot(cfg.Outbox.Path), func() {}
	}

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Outbox.RedisAddr},
		Password: cfg.Outbox.RedisPassword,
		DB:       cfg.Outbox.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("could not connect to redis: %v", err)
	}
	return outbox.NewRedisSlot(rdb, cfg.Outbox.Key), func() { rdb.Close() }
}

// setupAssets installs from the configured origin, or from this server's own
// handlers when there is none.
func setupAssets(cfg *config.Config, e *echo.Echo, logger *slog.Logger) *assetcache.Cache {
	var fetcher assetcache.Fetcher = &assetcache.HandlerFetcher{Handler: e}
	if cfg.Assets.Origin != "" {
		fetcher = assetcache.NewHTTPFetcher(cfg.Assets.Origin, cfg.API.Timeout.Std())
	}

	manifest := cfg.Assets.Manifest
	if len(manifest) == 0 {
		manifest = assetcache.DefaultManifest
	}

	c := assetcache.New(cfg.Assets.Version, manifest, assetcache.NewStorage(cfg.Assets.Dir), fetcher, logger)
	c.Discover = cfg.Assets.Discover
	c.Concurrency = cfg.Assets.Concurrency
	return c
}

func startMockAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger) {
	db, err := mockapi.Open(cfg.MockAPI.DBPath)
	if err != nil {
		log.Fatalf("could not open mock API database: %v", err)
	}
	srv := mockapi.New(db, logger)
	if err := srv.Seed(ctx); err != nil {
		log.Fatalf("could not seed mock API: %v", err)
	}

	go func() {
		if err := srv.Start(ctx, cfg.MockAPI.Listen); err != nil {
			logger.Error("mock API server failed", "error", err)
		}
	}()
}
