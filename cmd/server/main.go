package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kokoro-board/kokoro-board/api"
	"github.com/kokoro-board/kokoro-board/api/validator"
	"github.com/kokoro-board/kokoro-board/config"
	"github.com/kokoro-board/kokoro-board/postgres"
	"github.com/kokoro-board/kokoro-board/reaper"
	"github.com/kokoro-board/kokoro-board/redis"
)

func main() {
	initSchema := flag.Bool("init", false, "create the database schema and seed emotion tags before serving")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(context.Background(), logger, *initSchema); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Server exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, initSchema bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	pg, err := postgres.Connect(ctx, cfg.PostgresDSN, loc)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}

	if initSchema {
		if err := pg.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		if err := pg.SeedEmotionTags(ctx, api.DefaultEmotionTags); err != nil {
			return fmt.Errorf("seed emotion tags: %w", err)
		}
		logger.Info("Schema ready", "tags", len(api.DefaultEmotionTags))
	}

	cache, err := redis.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	a := &api.API{
		Logger:       logger,
		DB:           pg,
		Cache:        cache,
		Val:          validator.New(),
		Loc:          loc,
		TrustedProxy: cfg.TrustedProxy,
	}
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: a,
	}
	rp := &reaper.Reaper{
		Logger:   logger,
		Store:    pg,
		Cache:    cache,
		Interval: cfg.SweepInterval,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return rp.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
