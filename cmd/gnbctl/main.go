// Package main implements the gnbctl entry point: the operator-facing
// control service for an OpenAirInterface gNB.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/gnb-control/gnbctl/internal/api"
	"github.com/gnb-control/gnbctl/internal/audit"
	"github.com/gnb-control/gnbctl/internal/auth"
	"github.com/gnb-control/gnbctl/internal/conf"
	"github.com/gnb-control/gnbctl/internal/config"
	"github.com/gnb-control/gnbctl/internal/docs"
	"github.com/gnb-control/gnbctl/internal/metrics"
	"github.com/gnb-control/gnbctl/internal/procctl"
	"github.com/gnb-control/gnbctl/internal/restart"
	"github.com/gnb-control/gnbctl/internal/runlog"
)

var (
	configPath = kingpin.Flag("config", "Path to the gnbctl YAML configuration file.").
			Default("").OverrideDefaultFromEnvar("GNBCTL_CONFIG").String()
	listenAddr = kingpin.Flag("web.listen-address", "Address to listen on, overriding the configuration file.").
			Default("").String()
)

func main() {
	kingpin.Version(api.Version)
	kingpin.HelpFlag.Short('h')
	kingpin.Parse()

	log.Printf("Starting gnbctl v%s", api.Version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}
	log.Printf("Configuration loaded: managing %s against %s", cfg.GNB.ExecutablePath, cfg.GNB.ConfPath)

	auditLogger := audit.NewLogger(cfg.Audit.Path, "gnbctl")
	defer func() {
		if err := auditLogger.Close(); err != nil {
			log.Printf("Error closing action log: %v", err)
		}
	}()

	executor := &procctl.ShellExecutor{Sudo: cfg.GNB.UseSudo}
	controller := procctl.New(executor, procctl.Options{
		ExecutablePath:  cfg.GNB.ExecutablePath,
		Pattern:         cfg.GNB.Pattern,
		ConfPath:        cfg.GNB.ConfPath,
		LogDir:          cfg.GNB.LogDir,
		ExtraArgs:       cfg.GNB.ExtraArgs,
		PollInterval:    cfg.Process.PollInterval.Std(),
		GracefulTimeout: cfg.Process.GracefulTimeout.Std(),
		ForcedTimeout:   cfg.Process.ForcedTimeout.Std(),
		SettleDelay:     cfg.Process.SettleDelay.Std(),
	})

	mutator := conf.NewMutator(cfg.GNB.ConfPath)
	reader := conf.NewReader(cfg.GNB.ConfPath)
	orchestrator := restart.New(mutator, controller, log.Default())
	logStore := runlog.NewStore(cfg.GNB.LogDir, cfg.GNB.Pattern)
	library := docs.NewLibrary(cfg.Docs.Dir)
	instruments := metrics.New()

	var verifier *auth.Verifier
	if !cfg.Auth.Disabled {
		verifier, err = auth.NewVerifier(cfg.Auth.JWTSecret)
		if err != nil {
			log.Fatalf("Failed to initialize token verifier: %v", err)
		}
	} else {
		log.Printf("WARNING: authentication is disabled")
	}
	authMW := auth.NewMiddleware(verifier, cfg.Auth.Disabled)

	server := api.NewServer(api.Options{
		Orchestrator: orchestrator,
		Reader:       reader,
		Logs:         logStore,
		Docs:         library,
		Audit:        auditLogger,
		Metrics:      instruments,
		Auth:         authMW,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
		IdleTimeout:  2 * cfg.Server.ReadTimeout.Std(),
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Server.ListenAddr); err != nil {
			serverErr <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()
	log.Printf("Health endpoint: http://%s/api/v1/health", cfg.Server.ListenAddr)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		log.Printf("Received signal %v, initiating graceful shutdown", sig)
	case err := <-serverErr:
		log.Printf("Server error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		log.Printf("Error stopping HTTP server: %v", err)
	}
	log.Printf("gnbctl stopped")
}
