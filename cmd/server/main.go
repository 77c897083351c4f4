package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"polyradar/internal/client/gamma"
	"polyradar/internal/config"
	"polyradar/internal/copytrade"
	cronrunner "polyradar/internal/cron"
	"polyradar/internal/db"
	"polyradar/internal/handler"
	"polyradar/internal/logger"
	"polyradar/internal/notify"
	"polyradar/internal/paper"
	gormrepository "polyradar/internal/repository/gorm"
)

func main() {
	cfgPath := os.Getenv("PR_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("PR_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
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

	repo := gormrepository.New(dbConn.Gorm)

	gammaHTTP := &http.Client{Timeout: cfg.Gamma.Timeout}
	gammaClient := gamma.NewClient(gammaHTTP, cfg.Gamma.BaseURL)
	telegram := notify.NewTelegram(logger, cfg.Notify)

	store := paper.NewStore(repo, logger, cfg.Paper)
	executor := paper.NewExecutor(store, logger, telegram, cfg.Paper)
	orchestrator := &copytrade.Orchestrator{
		Store:    store,
		Executor: executor,
		Repo:     repo,
		Logger:   logger,
		Notifier: telegram,
		Config:   cfg.CopyTrade,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{DB: dbConn.Gorm}
	healthHandler.Register(engine)
	profileHandler := &handler.ProfileHandler{Store: store}
	profileHandler.Register(engine)
	copyHandler := &handler.CopyHandler{Store: store}
	copyHandler.Register(engine)
	orderHandler := &handler.OrderHandler{Store: store, Executor: executor, Prices: gammaClient}
	orderHandler.Register(engine)
	reportHandler := &handler.ReportHandler{Store: store, Repo: repo}
	reportHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Cron.Enabled {
		cronRunner := cronrunner.New(logger, ctx)
		recorder := &copytrade.PortfolioRecorder{
			Store:  store,
			Repo:   repo,
			Prices: gammaClient,
			Logger: logger,
		}
		_, err = cronRunner.Add(cfg.Cron.PortfolioSnapshot, func(ctx context.Context) {
			if err := recorder.RunOnce(ctx); err != nil {
				logger.Warn("portfolio snapshot failed", zap.Error(err))
			}
		})
		if err != nil {
			logger.Warn("cron register portfolio snapshot failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	if cfg.CopyTrade.Enabled {
		monitor := &copytrade.PositionMonitor{
			Store:    store,
			Executor: executor,
			Prices:   gammaClient,
			Logger:   logger,
		}
		go func() {
			if err := monitor.Run(ctx, cfg.CopyTrade.StopLossInterval); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("position monitor stopped", zap.Error(err))
			}
		}()
	}

	if cfg.Feed.Enabled {
		watcher := &copytrade.Watcher{
			Orchestrator: orchestrator,
			Repo:         repo,
			Logger:       logger,
			Config:       cfg.Feed,
		}
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("activity watcher stopped", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 2)

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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
