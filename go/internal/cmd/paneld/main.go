package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/familypark/playzone/go/internal/dbconfig"
	"github.com/familypark/playzone/go/internal/directory"
	"github.com/familypark/playzone/go/internal/feed"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("no .env file found, using environment")
	}
	setupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	dbCfg := dbconfig.NewConfigFromEnv()
	pool, err := setupDatabase(ctx, dbCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	nc := connectNATS()
	if nc != nil {
		defer nc.Close()
		relay, err := feed.NewRelay(nc, feed.DefaultRelayConfig(dbCfg.DSN()))
		if err != nil {
			log.Error().Err(err).Msg("failed to start change feed relay, polling only")
		} else {
			go func() {
				if err := relay.Start(ctx); err != nil && ctx.Err() == nil {
					log.Error().Err(err).Msg("change feed relay stopped")
				}
			}()
		}
	}

	localCode := getEnv("LOCAL_CODE", "")
	if localCode == "" {
		log.Fatal().Msg("LOCAL_CODE environment variable is required")
	}
	local, err := directory.NewRepository(pool).GetLocalByCode(ctx, localCode)
	if err != nil {
		log.Fatal().Err(err).Str("local_code", localCode).Msg("failed to resolve local")
	}

	services, err := setupServices(ctx, pool, nc, cfg, local)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire services")
	}
	go services.Run(ctx)

	server := setupServer(services)
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Str("local", local.Code).
			Int("zones", len(services.Panels)).
			Msg("panel server listening")
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

// connectNATS is best-effort: without NATS the controllers fall back to
// polling alone, which still bounds staleness.
func connectNATS() *nats.Conn {
	nc, err := nats.Connect(getEnv("NATS_URL", nats.DefaultURL),
		nats.Name("paneld"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		log.Warn().Err(err).Msg("NATS unavailable, change feed disabled")
		return nil
	}
	return nc
}
