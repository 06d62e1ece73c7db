// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iudd/soradeno/internal/config"
	"github.com/iudd/soradeno/internal/infra/bitable"
	"github.com/iudd/soradeno/internal/infra/generate"
	"github.com/iudd/soradeno/internal/infra/logging"
	"github.com/iudd/soradeno/internal/infra/metrics"
	"github.com/iudd/soradeno/internal/infra/web"
	"github.com/iudd/soradeno/internal/usecase"
)

func main() {
	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Record store ----
	store := bitable.NewClient(cfg.Store, cfg.Generate.DefaultModel, logger)
	if !store.Configured() {
		logger.Warn().Msg("record store not fully configured; task endpoints will return 503")
	}

	// ---- Generator ----
	gen := generate.NewClient(cfg.Generate, logger)

	// ---- Use case ----
	uc := usecase.NewGenerationUseCase(store, gen, cfg.Batch.Delay, logger)

	// ---- HTTP server ----
	srv := web.NewServer(uc, cfg.Server.StaticDir, cfg.Batch.Limit, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router(),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
}
