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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/familypark/playzone/go/internal/dbconfig"
	"github.com/familypark/playzone/go/internal/directory"
	"github.com/familypark/playzone/go/internal/display"
	"github.com/familypark/playzone/go/internal/feed"
	"github.com/familypark/playzone/go/internal/session"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("no .env file found, using environment")
	}
	setupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbCfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, dbCfg.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create connection pool")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}

	var subscriber feed.Subscriber
	nc, err := nats.Connect(getEnv("NATS_URL", nats.DefaultURL),
		nats.Name("displayd"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		log.Warn().Err(err).Msg("NATS unavailable, screens poll only")
	} else {
		defer nc.Close()
		subscriber = nc
	}

	hub := display.NewHub(display.DefaultHubConfig())
	displayServer := display.NewServer(
		session.NewRepository(pool),
		directory.NewRepository(pool),
		hub,
		subscriber,
		clockwork.NewRealClock(),
	)
	go displayServer.Start(ctx)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", getEnv("PORT", "8081")),
		Handler: displayServer.Handler(),
	}
	go func() {
		log.Info().Str("addr", server.Addr).Msg("display server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

func setupLogging() {
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if getEnv("LOG_FORMAT", "console") == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
