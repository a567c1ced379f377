package feed

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// Subscription is a cancellable stream of change events for one zone.
// Events is closed after Close returns; a slow consumer drops events rather
// than blocking the NATS callback, which is acceptable because every event
// is only a reload trigger.
type Subscription struct {
	Events <-chan ChangeEvent

	events chan ChangeEvent
	sub    *nats.Subscription
}

// NATS connection surface the subscriber needs; *nats.Conn satisfies it.
type Subscriber interface {
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// Subscribe opens a change-event stream scoped to (localID, zoneCode).
func Subscribe(nc Subscriber, localID uuid.UUID, zoneCode string) (*Subscription, error) {
	events := make(chan ChangeEvent, 16)
	s := &Subscription{
		Events: events,
		events: events,
	}

	subject := Subject(localID, zoneCode)
	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		var event ChangeEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.Error().Err(err).Str("subject", subject).Msg("invalid change event")
			return
		}
		select {
		case events <- event:
		default:
			log.Warn().Str("subject", subject).Msg("change event channel full, dropping event")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	s.sub = sub
	log.Info().Str("subject", subject).Msg("subscribed to session changes")
	return s, nil
}

// Close tears the subscription down and closes the event channel.
func (s *Subscription) Close() error {
	if err := s.sub.Unsubscribe(); err != nil {
		return fmt.Errorf("failed to unsubscribe: %w", err)
	}
	close(s.events)
	return nil
}
