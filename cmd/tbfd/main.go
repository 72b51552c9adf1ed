// SPDX-License-Identifier: MIT

// Command tbfd serves the tbf document API.
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

	"golang.org/x/sync/errgroup"

	"github.com/Typecraft/tbf/internal/api"
	"github.com/Typecraft/tbf/internal/cache"
	"github.com/Typecraft/tbf/internal/config"
	"github.com/Typecraft/tbf/internal/log"
	"github.com/Typecraft/tbf/internal/metrics"
	"github.com/Typecraft/tbf/internal/store"
	"github.com/Typecraft/tbf/internal/telemetry"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("tbfd %s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "tbfd:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: "tbfd",
		Version: version,
	})
	logger := log.WithComponent("daemon")

	logger.Info().
		Str("event", "daemon.starting").
		Str("version", version).
		Str("listen", cfg.Listen).
		Str("store", cfg.Store.Backend).
		Msg("starting tbfd")

	holder := config.NewHolder(cfg, loader, configPath)
	if configPath != "" {
		// Watcher is best-effort: startup should not fail without it.
		if err := holder.Watch(ctx); err != nil {
			logger.Warn().Err(err).
				Str("event", "config.watcher_start_failed").
				Msg("failed to start config watcher")
		}
	}

	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "tbfd",
		ServiceVersion: version,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	st, err := store.Open(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn().Err(err).Msg("store close failed")
		}
	}()

	if metas, err := st.List(ctx); err == nil {
		metrics.RecordDocumentCount(len(metas))
	}

	c, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn().Err(err).Msg("cache close failed")
		}
	}()

	srv := api.New(holder, st, c)
	httpSrv := &http.Server{
		Addr:         cfg.Listen,
		Handler:      srv.Routes(),
		ReadTimeout:  cfg.API.ReadTimeout.Std(),
		WriteTimeout: cfg.API.WriteTimeout.Std(),
	}

	g, ctx := errgroup.WithContext(ctx)

	// SIGHUP trigger for manual config reload.
	g.Go(func() error {
		hupChan := make(chan os.Signal, 1)
		signal.Notify(hupChan, syscall.SIGHUP)
		defer signal.Stop(hupChan)

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-hupChan:
				logger.Info().
					Str("event", "config.reload_signal").
					Msg("received SIGHUP, reloading config")
				if err := holder.Reload(context.Background()); err != nil {
					logger.Warn().Err(err).
						Str("event", "config.reload_failed").
						Msg("config reload failed")
				}
			}
		}
	})

	g.Go(func() error {
		logger.Info().
			Str("event", "daemon.listening").
			Str("addr", cfg.Listen).
			Msg("HTTP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		grace := cfg.API.ShutdownGrace.Std()
		if grace <= 0 {
			grace = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
		defer cancel()

		logger.Info().
			Str("event", "daemon.stopping").
			Dur("grace", grace).
			Msg("shutting down")
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info().Str("event", "daemon.stopped").Msg("tbfd stopped")
	return nil
}
