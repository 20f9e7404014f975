package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"go.opentelemetry.io/otel"

	"rotateio-server/internal/bot"
)

func main() {
	cfg, err := LoadConfig(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log, closeLog, err := NewLogger(cfg.Log, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("server stopped")
		closeLog()
		os.Exit(1)
	}
}

func run(cfg Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := OpenDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	mp, err := NewMeterProvider(cfg.Metrics, os.Stdout)
	if err != nil {
		return err
	}
	otel.SetMeterProvider(mp)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mp.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("metrics shutdown")
		}
	}()
	metrics, err := NewMetrics(mp)
	if err != nil {
		return err
	}
	recorder := NewRecorder(db, log)
	defer recorder.Stop()

	registry := NewRegistry(ctx, MatchConfig{
		Mode:       bot.FFA,
		Tick:       cfg.Tick,
		Duration:   cfg.MatchDuration,
		Bots:       cfg.Bots,
		Difficulty: cfg.Difficulty,
	}, log, metrics, recorder)
	defer registry.StopAll()

	auth := NewAuth(db, cfg.AuthSecret, log)
	auth.SetAllocatorKey(cfg.AllocatorKey)
	hub := NewHub(registry, auth, db, metrics, log)
	go hub.Run(ctx)

	server := &http.Server{Addr: cfg.Addr, Handler: SetupRoutes(hub, cfg.ClientDir, cfg.PublicURL)}
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("client", cfg.ClientDir).Msg("server starting")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
