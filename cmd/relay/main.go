package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/relaylabs/chatrelay/internal/config"
	"github.com/relaylabs/chatrelay/internal/database"
	"github.com/relaylabs/chatrelay/internal/dispatcher"
	"github.com/relaylabs/chatrelay/internal/gateway"
	"github.com/relaylabs/chatrelay/internal/persister"
	"github.com/relaylabs/chatrelay/internal/registry"
	"github.com/relaylabs/chatrelay/internal/responder"
	"github.com/relaylabs/chatrelay/internal/server"
	"github.com/relaylabs/chatrelay/internal/store"
	"github.com/relaylabs/chatrelay/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/relay.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded", "error", err)
	}

	logger.Info("starting relay",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	st := store.New(pool, logger)
	if err := st.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}
	if err := st.SeedUserIfNeeded(ctx, cfg.Seed.UserName); err != nil {
		logger.Error("failed to seed user", "error", err)
		os.Exit(1)
	}

	reg := registry.New(cfg.Sessions.MaxPerUser, logger)
	gw := gateway.New(gateway.Config{
		MaxPerWindow:  cfg.RateLimit.MaxPerWindow,
		Window:        cfg.RateLimit.Window,
		QueueCapacity: cfg.Queue.Capacity,
	}, logger)

	pers := persister.New(persister.Config{
		BatchSize: cfg.Persister.BatchSize,
		IdleDelay: cfg.Persister.IdleDelay,
	}, gw.Queue(), st, logger)
	if err := pers.Start(ctx); err != nil {
		logger.Error("failed to start persister", "error", err)
		os.Exit(1)
	}

	disp := dispatcher.New(reg, gw, st, responder.NewCanned(), logger)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.New(st, st, reg, disp, logger).Router(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("relay listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
	}

	// Live websocket sessions are hijacked conns the HTTP shutdown cannot
	// see; close them so their receive loops exit.
	reg.CloseAll(registry.CloseNormal, "server shutting down")

	// Release any producers blocked on the queue, then flush it.
	gw.Close()
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := pers.Stop(stopCtx); err != nil {
		logger.Error("persister shutdown error", "error", err)
	}

	stats := pers.Stats()
	logger.Info("relay stopped",
		"batches", stats.Batches,
		"persisted", stats.Persisted,
		"lost", stats.Lost,
	)
}
