package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"pollkeeper/internal/cache"
	"pollkeeper/internal/client/indexer"
	"pollkeeper/internal/client/ledger"
	"pollkeeper/internal/config"
	cronrunner "pollkeeper/internal/cron"
	"pollkeeper/internal/db"
	"pollkeeper/internal/funding"
	"pollkeeper/internal/handler"
	"pollkeeper/internal/logger"
	"pollkeeper/internal/observability"
	"pollkeeper/internal/reconcile"
	gormrepository "pollkeeper/internal/repository/gorm"
	"pollkeeper/internal/service"

	_ "pollkeeper/docs"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfgPath := os.Getenv("PK_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("PK_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log, cfg.App.Env)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB, logger)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	tokens, err := cfg.TokenRegistry()
	if err != nil {
		logger.Fatal("token registry invalid", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	indexerHTTP := &http.Client{Timeout: cfg.Indexer.Timeout}
	indexerClient := indexer.NewClient(indexerHTTP, cfg.Indexer.Endpoints, tokens, cfg.Indexer.PageSize, logger)

	endpoints := make([]ledger.Endpoint, 0, len(cfg.Ledger.Chains))
	for _, c := range cfg.Ledger.Chains {
		endpoints = append(endpoints, ledger.Endpoint{Chain: c.Name, RPCURL: c.RPCURL, PollContract: c.PollContract})
	}
	dialCtx, cancelDial := context.WithTimeout(ctx, cfg.Ledger.DialTimeout)
	ledgerPool, err := ledger.Dial(dialCtx, tokens, cfg.Ledger.ReadConcurrency, logger, endpoints)
	cancelDial()
	if err != nil {
		logger.Fatal("ledger dial failed", zap.Error(err))
	}
	defer ledgerPool.Close()

	var (
		resultCache cache.Store
		cachePinger handler.Pinger
	)
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		rs := cache.NewRedisStore(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rs.Close()
		if err := rs.Ping(ctx); err != nil {
			logger.Warn("redis ping failed", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		resultCache, cachePinger = rs, rs
	} else {
		resultCache = cache.NewMemoryStore()
	}

	metrics := observability.NewMetrics("pollkeeper", prometheus.DefaultRegisterer)
	store := gormrepository.New(dbConn.Gorm)
	settingsSvc := &service.SystemSettingsService{Repo: store}
	if err := settingsSvc.EnsureDefaultSwitches(ctx); err != nil {
		logger.Warn("init default system switches failed", zap.Error(err))
	}

	reconciler := &reconcile.Reconciler{
		Indexer:      indexerClient,
		Ledger:       ledgerPool,
		Logger:       logger,
		LedgerWindow: cfg.Reconcile.LedgerWindow,
		IndexerLimit: cfg.Reconcile.IndexerLimit,
	}
	syncSvc := &service.PollSyncService{
		Reconciler: reconciler,
		Repo:       store,
		Cache:      resultCache,
		CacheTTL:   cfg.Redis.TTL,
		Settings:   settingsSvc,
		Metrics:    metrics,
		Logger:     logger,
		Tracked:    cfg.TrackedCreators,
	}

	watcher := &reconcile.Watcher{
		Indexer:      indexerClient,
		Logger:       logger,
		InitialDelay: cfg.Convergence.InitialDelay,
		Interval:     cfg.Convergence.Interval,
		MaxAttempts:  cfg.Convergence.MaxAttempts,
	}
	defer watcher.Close()
	hub := service.NewEventHub()
	convergenceSvc := &service.ConvergenceService{
		Watcher:  watcher,
		Repo:     store,
		Sync:     syncSvc,
		Hub:      hub,
		Settings: settingsSvc,
		Metrics:  metrics,
		Logger:   logger,
		BaseCtx:  ctx,
	}

	spenders := map[string]string{}
	for _, c := range cfg.Ledger.Chains {
		if addr, ok := ledgerPool.Spender(c.Name); ok {
			spenders[strings.ToLower(strings.TrimSpace(c.Name))] = addr
		}
	}
	orchestrator := &funding.Orchestrator{
		Tokens:     tokens,
		Balances:   ledgerPool,
		Allowances: ledgerPool,
		Spenders:   spenders,
		GasReserve: cfg.Funding.GasReserve,
		Logger:     logger,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(handler.CORS())
	engine.Use(handler.RequireBearer(cfg.Server.AuthToken))
	engine.Use(handler.AccessLog(logger, metrics))

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm, Cache: cachePinger}
	healthHandler.Register(engine)
	handler.RegisterDocs(engine)
	pollsHandler := &handler.PollsHandler{Sync: syncSvc, Logger: logger}
	pollsHandler.Register(engine)
	votesHandler := &handler.VotesHandler{Sync: syncSvc}
	votesHandler.Register(engine)
	fundingHandler := &handler.FundingHandler{Orchestrator: orchestrator, Sync: syncSvc, Logger: logger}
	fundingHandler.Register(engine)
	convergenceHandler := &handler.ConvergenceHandler{Service: convergenceSvc, Hub: hub, Settings: settingsSvc, Logger: logger}
	convergenceHandler.Register(engine)
	settingsHandler := &handler.SettingsHandler{Repo: store, Settings: settingsSvc}
	settingsHandler.Register(engine)

	engine.GET("/metrics", gin.WrapH(observability.Handler()))
	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled && len(cfg.TrackedCreators) > 0 {
		if _, err := cronRunner.Add("tracked_sync", cfg.Cron.TrackedSync, syncSvc.RunTracked); err != nil {
			logger.Warn("cron register tracked sync failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
