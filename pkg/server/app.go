package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	mid "TradeGate/internal/middleware"
	"TradeGate/internal/usecase"
	"TradeGate/pkg/config"
	xhttp "TradeGate/pkg/http"
	pkgkafka "TradeGate/pkg/kafka"
	applogger "TradeGate/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	logger      *applogger.Logger
	collector   *usecase.TickCollector
	consumer    *pkgkafka.Consumer
	pipeline    *mid.AuditPipeline
	dispatcher  *usecase.Dispatcher
	httpHandler xhttp.Handler
	httpServer  *xhttp.Server
}

// New creates a new App instance. The collector and consumer are optional.
func New(
	cfg *config.Config,
	logger *applogger.Logger,
	collector *usecase.TickCollector,
	consumer *pkgkafka.Consumer,
	pipeline *mid.AuditPipeline,
	dispatcher *usecase.Dispatcher,
	httpHandler xhttp.Handler,
) *App {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &App{
		cfg:         cfg,
		logger:      logger.Component("app"),
		collector:   collector,
		consumer:    consumer,
		pipeline:    pipeline,
		dispatcher:  dispatcher,
		httpHandler: httpHandler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.pipeline.Start(ctx)

	if a.collector != nil {
		if err := a.collector.Start(ctx); err != nil {
			a.logger.Error("collector start error", applogger.Error(err))
			return err
		}
		a.logger.Info("collector started", applogger.Strings("symbols", a.cfg.Stream.Symbols))
	}

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			a.logger.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
	}

	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}
	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithHost(a.cfg.Server.Host),
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(a.cfg.Server.CORSOrigins),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithServerLogger(a.logger),
	)
	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown stops intake first, then drains workers and the audit pipeline.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.collector != nil {
		if err := a.collector.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("collector stop error", applogger.Error(err))
		}
	}

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if err := a.dispatcher.Close(shutdownCtx); err != nil {
		a.logger.Warn("dispatcher close error", applogger.Error(err))
	}

	if err := a.pipeline.Stop(shutdownCtx); err != nil {
		a.logger.Warn("audit pipeline stop error", applogger.Error(err))
	}

	a.logger.Info("shutdown complete")
	return nil
}
