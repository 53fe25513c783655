package server

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/labstack/echo/v4"

	"github.com/jam2205/TradingView-Screener/internal/domain/models"
	"github.com/jam2205/TradingView-Screener/internal/domain/repository"
	"github.com/jam2205/TradingView-Screener/internal/handler/api"
	mid "github.com/jam2205/TradingView-Screener/internal/middleware"
	"github.com/jam2205/TradingView-Screener/internal/usecase"
	"github.com/jam2205/TradingView-Screener/pkg/config"
	xhttp "github.com/jam2205/TradingView-Screener/pkg/http"
	pkgkafka "github.com/jam2205/TradingView-Screener/pkg/kafka"
	applogger "github.com/jam2205/TradingView-Screener/pkg/logger"
	pkgqueue "github.com/jam2205/TradingView-Screener/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	logger     *applogger.Logger
	collector  *usecase.Collector
	pipeline   *mid.PublishPipeline
	store      repository.SnapshotStore
	handler    *api.ScannerEchoHandler
	hub        *api.LiveFeedHub
	consumer   *pkgkafka.Consumer
	archiver   *usecase.SnapshotArchiver
	jobs       *pkgqueue.RedisQueue
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	collector *usecase.Collector,
	pipeline *mid.PublishPipeline,
	store repository.SnapshotStore,
	handler *api.ScannerEchoHandler,
	hub *api.LiveFeedHub,
	consumer *pkgkafka.Consumer,
	archiver *usecase.SnapshotArchiver,
	jobs *pkgqueue.RedisQueue,
) *App {
	return &App{
		cfg:       cfg,
		logger:    logger,
		collector: collector,
		pipeline:  pipeline,
		store:     store,
		handler:   handler,
		hub:       hub,
		consumer:  consumer,
		archiver:  archiver,
		jobs:      jobs,
	}
}

// routeGroup lets a single Echo server host several handlers.
type routeGroup []xhttp.Handler

func (g routeGroup) RegisterRoutes(e *echo.Echo) {
	for _, h := range g {
		h.RegisterRoutes(e)
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(routeGroup{a.handler, a.hub},
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	a.pipeline.Start(ctx)

	if a.jobs != nil {
		if err := a.jobs.Start(); err != nil {
			a.logger.Error("job queue start error", applogger.Error(err))
			return err
		}
		a.logger.Info("job queue started", applogger.Int("workers", a.cfg.Queue.Workers))
	}

	if a.consumer != nil && a.archiver != nil {
		a.consumer.RegisterHandler(a.archiver)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.logger.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.logger.Info("snapshot archiver started", applogger.String("topic", a.archiver.Topic()))
	}

	var wg sync.WaitGroup
	for _, rc := range a.cfg.Collector.Runs {
		spec := runSpec(rc)
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := a.collector.Run(ctx, spec)
			if err != nil && ctx.Err() == nil {
				a.logger.Error("collection run failed",
					applogger.String("dataset", spec.Dataset),
					applogger.Error(err),
				)
				return
			}
			if report != nil {
				a.logger.Info("collection run finished",
					applogger.String("dataset", spec.Dataset),
					applogger.Int("ticks", report.Ticks),
					applogger.Int("succeeded", report.Succeeded),
					applogger.Int("failed", report.Failed),
				)
			}
		}()
	}
	if n := len(a.cfg.Collector.Runs); n > 0 {
		a.logger.Info("collection runs started", applogger.Int("runs", n))
	}

	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}
	a.logger.Info("http server listening", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	cancel()
	wg.Wait()
	return a.shutdown()
}

// runSpec translates a configured run into the collector's input.
func runSpec(rc config.RunConfig) usecase.RunSpec {
	q := &models.Query{
		Market:  rc.Market,
		Columns: rc.Columns,
		Tickers: rc.Tickers,
		Limit:   rc.Limit,
	}
	if rc.SortBy != "" {
		q.Sort = &models.Sort{By: rc.SortBy}
	}
	return usecase.RunSpec{
		Query:         q,
		Dataset:       rc.Dataset,
		Interval:      rc.Interval,
		MaxIterations: rc.MaxIterations,
		OnError:       usecase.ErrorPolicy(rc.OnError),
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown() error {
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.jobs != nil {
		if err := a.jobs.Stop(shutdownCtx); err != nil {
			a.logger.Warn("job queue stop error", applogger.Error(err))
		}
	}

	// Drains buffered snapshots and closes the fanout targets, the live
	// feed hub and the Kafka producer included.
	if err := a.pipeline.Close(); err != nil {
		a.logger.Warn("publish pipeline close error", applogger.Error(err))
	}

	if err := a.store.Close(); err != nil {
		a.logger.Warn("snapshot store close error", applogger.Error(err))
	}

	a.logger.RemoveCollector()

	a.logger.Info("shutdown complete")
	return nil
}
