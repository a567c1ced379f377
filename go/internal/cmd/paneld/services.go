package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/familypark/playzone/go/clients/whatsapp_client"
	"github.com/familypark/playzone/go/internal/directory"
	"github.com/familypark/playzone/go/internal/dispatch"
	"github.com/familypark/playzone/go/internal/feed"
	"github.com/familypark/playzone/go/internal/models"
	"github.com/familypark/playzone/go/internal/panel"
	"github.com/familypark/playzone/go/internal/session"
)

// Services bundles everything the HTTP layer reaches for. Panels is keyed by
// zone code; each entry owns the reconciliation loop for one zone.
type Services struct {
	Directory *directory.Service
	Panels    map[string]*panel.Controller
	Local     *models.Local

	subscriptions []*feed.Subscription
}

// setupServices wires the dependency chain for one venue:
// store → repositories → dispatcher → panel controller per zone.
func setupServices(ctx context.Context, pool *pgxpool.Pool, nc *nats.Conn, cfg *Config, local *models.Local) (*Services, error) {
	sessionRepo := session.NewRepository(pool)
	dirRepo := directory.NewRepository(pool)

	gateway := whatsapp_client.NewWhatsAppClient(
		getEnv("WHATSAPP_TOKEN", ""),
		getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
	)

	zoneCodes, err := dirRepo.ListZoneCodes(ctx, local.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones for local %s: %w", local.Code, err)
	}

	services := &Services{
		Directory: directory.NewService(dirRepo),
		Panels:    make(map[string]*panel.Controller, len(zoneCodes)),
		Local:     local,
	}

	clock := clockwork.NewRealClock()
	for _, zoneCode := range zoneCodes {
		var events <-chan feed.ChangeEvent
		if nc != nil {
			sub, err := feed.Subscribe(nc, local.ID, zoneCode)
			if err != nil {
				log.Warn().Err(err).
					Str("zone_code", zoneCode).
					Msg("change feed unavailable, polling only")
			} else {
				events = sub.Events
				services.subscriptions = append(services.subscriptions, sub)
			}
		}

		dispatcher := dispatch.NewDispatcher(gateway, sessionRepo, cfg.zoneLabel(zoneCode))
		services.Panels[zoneCode] = panel.NewController(
			sessionRepo, dispatcher, events,
			local.ID, zoneCode, cfg.Durations.Offered, clock,
		)
	}

	return services, nil
}

// Run starts every zone's panel loop and blocks until the context is
// cancelled.
func (s *Services) Run(ctx context.Context) {
	for zoneCode, controller := range s.Panels {
		go func(zoneCode string, controller *panel.Controller) {
			if err := controller.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Str("zone_code", zoneCode).Msg("panel loop stopped")
			}
		}(zoneCode, controller)
	}
	<-ctx.Done()
	s.close()
}

func (s *Services) close() {
	for _, sub := range s.subscriptions {
		if err := sub.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close change feed subscription")
		}
	}
}
