// cmd/clubd/main.go
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"clubledger/internal/club"
	"clubledger/internal/config"
	"clubledger/internal/store"
	"clubledger/internal/telemetry"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	shutdownTracing, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up tracing")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		shutdownTracing(shutdownCtx)
	}()

	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}

	svc := club.NewService(st, log.Logger)
	defer svc.Close()

	if cfg.AutoInitialize {
		if err := svc.Initialize(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to initialize ledger")
		}
	}

	handler := club.NewHandler(svc, log.Logger, club.HandlerConfig{
		RateLimit:  rate.Limit(cfg.RateLimit),
		RateBurst:  cfg.RateBurst,
		SecretHash: cfg.AdminSecretHash,
		SecretSalt: cfg.AdminSecretSalt,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler.Routes(),
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("clubledger started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shut down")
	}
	log.Info().Msg("server exited gracefully")
}

// openStore picks the storage backend: PostgreSQL when a database URL is
// configured, the in-memory store otherwise.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("no database configured, using in-memory store")
		return store.NewMemoryStore(), nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	ps := store.NewPostgresStore(db)
	if err := ps.InitSchema(ctx); err != nil {
		ps.Close()
		return nil, err
	}
	return ps, nil
}
