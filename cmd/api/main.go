package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	v1 "zenchatty/cmd/api/router/v1"
	"zenchatty/internal/infrastructure/config"
	"zenchatty/internal/infrastructure/logging"
	"zenchatty/internal/infrastructure/realtime"
	"zenchatty/internal/pkg/chat/application/task"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to the database on startup
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	st, err := openStores(connectCtx, cfg, logger)
	cancel()
	if err != nil {
		return err
	}
	defer st.Close()

	ledgerCache := openLedgerCache(cfg, logger)
	defer ledgerCache.Close()

	client, srv, err := openQueue(cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	router := realtime.NewRouter(logger)
	defer router.Close()

	a := buildApp(cfg, st, ledgerCache, client, router, logger)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	consumerDone := make(chan struct{})
	if cfg.ConsumerEnabled {
		task.RegisterDeliverMessageTask(srv, a.deliver, logger)
		go func() {
			defer close(consumerDone)
			if err := srv.Run(workerCtx); err != nil {
				logger.Error("queue consumer stopped", zap.Error(err))
			}
		}()
	} else {
		close(consumerDone)
	}
	go a.reconciler.Run(workerCtx, cfg.Cache.ReconcileInterval)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(logging.GinLogger(logger), logging.GinRecovery(logger))
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "OK",
		})
	})
	v1.RegisterRoutes(r, a.useCases, router, logger)

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr),
			zap.String("store", cfg.StoreBackend), zap.String("queue", cfg.QueueBackend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}
	logger.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	// stop accepting sends first, then let the consumer drain what was queued
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if cfg.ConsumerEnabled {
		if err := srv.Stop(shutdownCtx); err != nil {
			logger.Warn("queue drain incomplete", zap.Error(err))
		}
	}
	stopWorkers()
	select {
	case <-consumerDone:
	case <-shutdownCtx.Done():
	}
	return nil
}
