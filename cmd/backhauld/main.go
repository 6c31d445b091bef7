package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cwarner/backhaul/internal/api"
	"github.com/cwarner/backhaul/internal/appkey"
	"github.com/cwarner/backhaul/internal/artifact"
	"github.com/cwarner/backhaul/internal/config"
	"github.com/cwarner/backhaul/internal/dockerstat"
	"github.com/cwarner/backhaul/internal/executor"
	"github.com/cwarner/backhaul/internal/logging"
	"github.com/cwarner/backhaul/internal/orchestrator"
	"github.com/cwarner/backhaul/internal/registry"
	"github.com/cwarner/backhaul/internal/transport"
	"github.com/cwarner/backhaul/internal/vault"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	for _, dir := range []string{cfg.DataDir, cfg.ArtifactsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatal().Err(err).Str("dir", dir).Msg("failed to create directory")
		}
	}

	v, err := vault.Open(cfg.DataDir, cfg.VaultPassphrase, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open secret vault")
	}

	reg, err := registry.New(cfg.DataDir, v, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load host registry")
	}

	store := artifact.NewStore(cfg.ArtifactsDir, logger)
	dialer := transport.NewDialer(cfg.ConnectTimeout, logger)
	orch := orchestrator.New(reg, v, orchestrator.NewSSHDialer(dialer), cfg, logger)
	runner := executor.New(cfg.ScriptsDir, logger)
	docker := dockerstat.New(cfg.InstanceFilter, logger)
	keys := appkey.NewManager(cfg.DataDir, logger)

	srv := api.NewServer(logger, cfg, api.Deps{
		Registry:     reg,
		Store:        store,
		Orchestrator: orch,
		Runner:       runner,
		Docker:       docker,
		AppKeys:      keys,
	})

	httpServer := &http.Server{
		Addr:        cfg.HTTPListenAddr,
		Handler:     srv,
		ReadTimeout: 15 * time.Second,
		// No write timeout: backup and restore endpoints stream progress
		// for as long as the operation runs.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting backhaul API server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
}
