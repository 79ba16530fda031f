package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Cypherspark/webhook-gateway/internal/config"
	"github.com/Cypherspark/webhook-gateway/internal/db"
	httpapi "github.com/Cypherspark/webhook-gateway/internal/http"
	"github.com/Cypherspark/webhook-gateway/internal/metrics"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

func main() {
	cfg := config.Load()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	if cfg.WebhookSecret == "" {
		log.Warn().Msg("WEBHOOK_SECRET not set; all webhook deliveries will be rejected")
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(rootCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	defer pool.Close()

	if err := db.InitSchema(rootCtx, pool); err != nil {
		log.Fatal().Err(err).Msg("init schema")
	}

	// ---- Pool stats exporter ----
	stop := make(chan struct{})
	defer close(stop)
	go metrics.NewPGXPoolStats(pool).Start(10*time.Second, stop)

	// ---- HTTP server ----
	srv := httpapi.NewServer(pool, cfg.WebhookSecret, log).
		WithThrottle(cfg.IngestRPS, cfg.IngestBurst)
	server := &http.Server{
		Addr:         cfg.Host + ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	// ---- Graceful shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	cancel()
	_ = server.Shutdown(shutdownCtx)
}
