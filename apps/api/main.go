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

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-rentals/apps/internal/engine"
	platformlogging "github.com/zenGate-Global/palmyra-rentals/platform/go/logging"
)

type config struct {
	engine.Config

	Port              string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat         string        `env:"LOG_FORMAT" envDefault:"json"`
	CORSOrigins       []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","` // empty allows any origin
	LateSweepInterval time.Duration `env:"LATE_SWEEP_INTERVAL" envDefault:"1h"`    // 0 disables the background sweep
}

func main() {
	ctx := context.Background()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "rentals-api",
		Level:     cfg.LogLevel,
		Encoding:  cfg.LogFormat,
	})
	if err != nil {
		log.Fatalf("init zap logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	eng, err := engine.Open(ctx, cfg.Config, logger)
	if err != nil {
		logger.Fatal("init engine", zap.Error(err))
	}
	defer eng.Close()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(eng, routerConfig{RequestTimeout: cfg.RequestTimeout, CORSOrigins: cfg.CORSOrigins}, logger),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	if cfg.LateSweepInterval > 0 {
		go runSweeps(sweepCtx, eng, cfg.LateSweepInterval, logger.Named("sweep"))
	}

	go func() {
		logger.Info("starting api server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
