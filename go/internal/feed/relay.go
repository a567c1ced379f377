package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// RelayConfig holds the Postgres LISTEN/NOTIFY relay settings.
type RelayConfig struct {
	DatabaseURL   string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel string        // Channel name to LISTEN on
	PingInterval  time.Duration // How often to check the listener connection
}

// DefaultRelayConfig returns the relay defaults.
func DefaultRelayConfig(databaseURL string) RelayConfig {
	return RelayConfig{
		DatabaseURL:   databaseURL,
		NotifyChannel: "sessions_events",
		PingInterval:  90 * time.Second,
	}
}

// Relay forwards session change notifications from Postgres to NATS so that
// panel and display controllers can react without polling. Delivery is
// best-effort; consumers mask missed events with their fallback poll.
type Relay struct {
	listener *pq.Listener
	nc       *nats.Conn
	cfg      RelayConfig
}

// NewRelay opens a LISTEN connection on the configured notify channel.
func NewRelay(nc *nats.Conn, cfg RelayConfig) (*Relay, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for session notifications")

	return &Relay{
		listener: l,
		nc:       nc,
		cfg:      cfg,
	}, nil
}

// Start consumes notifications until the context is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	log.Info().
		Str("channel", r.cfg.NotifyChannel).
		Dur("ping_interval", r.cfg.PingInterval).
		Msg("feed relay started")

	pingTicker := time.NewTicker(r.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("feed relay shutting down")
			return r.Stop()
		case note := <-r.listener.Notify:
			if note == nil {
				// nil notification means the connection was lost and
				// re-established; consumers reconcile via fallback poll
				continue
			}
			if err := r.handleNotification(note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle notification")
			}
		case <-pingTicker.C:
			if err := r.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

// Stop closes the LISTEN connection.
func (r *Relay) Stop() error {
	return r.listener.Close()
}

// handleNotification parses a trigger payload and republishes it on the
// zone-scoped NATS subject.
func (r *Relay) handleNotification(extra string) error {
	var event ChangeEvent
	if err := json.Unmarshal([]byte(extra), &event); err != nil {
		return fmt.Errorf("invalid notification payload: %w", err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	subject := Subject(event.LocalID, event.ZoneCode)
	if err := r.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Str("event_type", event.EventType).
		Str("session_id", event.SessionID.String()).
		Msg("relayed session change")
	return nil
}
