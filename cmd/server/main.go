// Hivekeeper - Honeypot Sensor Telemetry Collector
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hivekeeper

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tomtom215/hivekeeper/internal/api"
	"github.com/tomtom215/hivekeeper/internal/collector"
	"github.com/tomtom215/hivekeeper/internal/config"
	"github.com/tomtom215/hivekeeper/internal/logging"
	"github.com/tomtom215/hivekeeper/internal/supervisor"
	"github.com/tomtom215/hivekeeper/internal/supervisor/services"
)

func main() {
	issueToken := flag.String("issue-token", "", "print an admin API token for this subject and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of a token printed by -issue-token")
	flag.Parse()

	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warn().Err(err).Msg("Ignoring unreadable .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		Caller:       cfg.Logging.Caller,
		Timestamp:    true,
		RejectBurst:  cfg.Logging.RejectBurst,
		RejectPeriod: cfg.Logging.RejectPeriod,
	})

	if *issueToken != "" {
		if err := printToken(cfg.API, *issueToken, *tokenTTL); err != nil {
			logging.Fatal().Err(err).Msg("Failed to issue token")
		}
		return
	}

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Hivekeeper stopped with an error")
	}
	logging.Info().Msg("Hivekeeper stopped")
}

func printToken(cfg config.APIConfig, subject string, ttl time.Duration) error {
	jwtManager, err := api.NewJWTManager(cfg.JWTSecret)
	if err != nil {
		return err
	}
	token, err := jwtManager.GenerateToken(subject, ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, token)
	return err
}

func run(cfg *config.Config) error {
	logging.Info().
		Bool("udp", cfg.Collector.UDPEnabled).
		Bool("tcp", cfg.Collector.TCPEnabled).
		Bool("tls", cfg.Collector.TLSEnabled()).
		Str("alerts_mode", cfg.Alerts.Mode).
		Str("db_path", cfg.Database.Path).
		Msg("Starting Hivekeeper")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger("supervisor"), supervisor.TreeConfig{
		FailureThreshold: cfg.Supervisor.FailureThreshold,
		FailureDecay:     cfg.Supervisor.FailureDecay,
		FailureBackoff:   cfg.Supervisor.FailureBackoff,
		ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	core, err := initCore(ctx, cfg, tree)
	if err != nil {
		return err
	}
	defer core.Close()

	alerts, err := initAlerting(cfg.Alerts, core.registry, tree)
	if err != nil {
		return err
	}
	defer alerts.Close()

	lookups, err := initCollector(cfg.Collector, core, alerts.dispatcher, tree)
	if err != nil {
		return err
	}

	if cfg.API.Enabled {
		if err := initAPI(cfg, core, lookups, tree); err != nil {
			return err
		}
	} else {
		logging.Warn().Msg("Admin API disabled; plugins, rules and deployments cannot be changed at runtime")
	}

	err = tree.Serve(ctx)
	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, u := range report {
			logging.Warn().Str("service", u.Name).Msg("Service did not stop within the shutdown timeout")
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func initAPI(cfg *config.Config, core *core, lookups *collector.CachedDeployments, tree *supervisor.SupervisorTree) error {
	jwtManager, err := api.NewJWTManager(cfg.API.JWTSecret)
	if err != nil {
		return fmt.Errorf("admin API: %w", err)
	}

	handler := api.NewHandler(api.HandlerDeps{
		Plugins:        core.registry,
		Rules:          core.rules,
		Store:          core.db,
		Tables:         core.schema,
		Collector:      cfg.Collector,
		Lookups:        lookupInvalidator(lookups),
		MaxUploadBytes: cfg.API.MaxUploadBytes,
	})
	router := api.NewRouter(handler, jwtManager, api.RouterConfig{
		RateLimitRequests: cfg.API.RateLimitRequests,
		RateLimitWindow:   cfg.API.RateLimitWindow,
	})

	server := &http.Server{
		Handler:           router.SetupChi(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.API.Addr, cfg.API.ShutdownTimeout))
	return nil
}

// lookupInvalidator avoids handing the API a typed nil when the cache is off.
func lookupInvalidator(c *collector.CachedDeployments) api.Invalidator {
	if c == nil {
		return nil
	}
	return c
}
