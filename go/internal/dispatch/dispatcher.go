package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/familypark/playzone/go/internal/countdown"
	"github.com/familypark/playzone/go/internal/models"
	"github.com/familypark/playzone/go/internal/session"
)

// Gateway defines what the dispatcher needs from the messaging side.
type Gateway interface {
	SendStartTurn(ctx context.Context, phone, childName, zoneName string, minutes int) error
	SendWarning(ctx context.Context, phone, childName, zoneName string) error
	SendEndTurn(ctx context.Context, phone, childName, zoneName string) error
}

// Store defines what the dispatcher needs from the session store. The flag
// updates are conditional: a false return means another writer already
// claimed the transition.
type Store interface {
	GetContact(ctx context.Context, id uuid.UUID) (*session.Contact, error)
	MarkWarned(ctx context.Context, id uuid.UUID) (bool, error)
	FinishExpired(ctx context.Context, id uuid.UUID, endTime time.Time) (bool, error)
	FinishManual(ctx context.Context, id uuid.UUID, endTime time.Time) (bool, error)
}

// Dispatcher decides, once per session per tick, whether a guardian message
// is due and guarantees each message kind goes out at most once per session.
// It runs on the operator panel only; displays never send.
//
// Checks, manual finishes and guard pruning are serialized by an internal
// mutex: the tick loop and the panel's request handlers share one Dispatcher.
type Dispatcher struct {
	gateway  Gateway
	store    Store
	zoneName string

	mu sync.Mutex
	// Local sent-guards covering the gap between a successful gateway call
	// and the store confirming the flag. Keyed by session ID.
	warned map[uuid.UUID]bool
	ended  map[uuid.UUID]bool
}

// NewDispatcher creates a dispatcher for one zone.
func NewDispatcher(gateway Gateway, store Store, zoneName string) *Dispatcher {
	return &Dispatcher{
		gateway:  gateway,
		store:    store,
		zoneName: zoneName,
		warned:   make(map[uuid.UUID]bool),
		ended:    make(map[uuid.UUID]bool),
	}
}

// CheckSession runs the warning and end-of-turn checks for one session at
// now. It returns true when it persisted a transition, signalling the caller
// to reload its session set.
//
// Gateway failures leave the flags untouched so the send is retried on the
// next tick: at-least-once for both message kinds, never fatal.
func (d *Dispatcher) CheckSession(ctx context.Context, s *models.Session, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch countdown.Classify(s, now, nil) {
	case countdown.StateWarningDue:
		if s.WarnedThreeMin || d.warned[s.ID] {
			return false
		}
		if err := d.gateway.SendWarning(ctx, s.GuardianPhone, s.ChildName, d.zoneName); err != nil {
			log.Error().Err(err).
				Str("session_id", s.ID.String()).
				Msg("failed to send warning, will retry next tick")
			return false
		}
		d.warned[s.ID] = true

		claimed, err := d.store.MarkWarned(ctx, s.ID)
		if err != nil {
			log.Error().Err(err).
				Str("session_id", s.ID.String()).
				Msg("failed to persist warning flag")
			return false
		}
		if !claimed {
			log.Warn().
				Str("session_id", s.ID.String()).
				Msg("warning flag already set by another writer")
		}
		log.Info().
			Str("session_id", s.ID.String()).
			Str("child", s.ChildName).
			Msg("three-minute warning sent")
		return true

	case countdown.StateExpiredPendingClose:
		if s.SentGameOver || d.ended[s.ID] {
			return false
		}
		if err := d.gateway.SendEndTurn(ctx, s.GuardianPhone, s.ChildName, d.zoneName); err != nil {
			log.Error().Err(err).
				Str("session_id", s.ID.String()).
				Msg("failed to send end-of-turn, will retry next tick")
			return false
		}
		d.ended[s.ID] = true

		claimed, err := d.store.FinishExpired(ctx, s.ID, now)
		if err != nil {
			log.Error().Err(err).
				Str("session_id", s.ID.String()).
				Msg("failed to persist session finish")
			return false
		}
		if !claimed {
			log.Warn().
				Str("session_id", s.ID.String()).
				Msg("session already finished by another writer")
		}
		log.Info().
			Str("session_id", s.ID.String()).
			Str("child", s.ChildName).
			Msg("end-of-turn sent, session finished")
		return true
	}

	return false
}

// NotifyStart sends the start-of-turn message for a freshly created session.
// Best-effort: the session already exists and is correct regardless of the
// message outcome, so failures are logged and not retried.
func (d *Dispatcher) NotifyStart(ctx context.Context, s *models.Session) {
	err := d.gateway.SendStartTurn(ctx, s.GuardianPhone, s.ChildName, d.zoneName, s.DurationMinutes)
	if err != nil {
		log.Error().Err(err).
			Str("session_id", s.ID.String()).
			Msg("failed to send start-of-turn message")
		return
	}
	log.Info().
		Str("session_id", s.ID.String()).
		Str("child", s.ChildName).
		Msg("start-of-turn sent")
}

// FinishNow closes a session on explicit operator action, before its time is
// up. Contact data is loaded fresh from the store rather than trusting the
// caller's possibly stale copy.
func (d *Dispatcher) FinishNow(ctx context.Context, id uuid.UUID, now time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	contact, err := d.store.GetContact(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load session contact: %w", err)
	}

	finished, err := d.store.FinishManual(ctx, id, now)
	if err != nil {
		return fmt.Errorf("failed to finish session: %w", err)
	}
	if !finished {
		log.Warn().Str("session_id", id.String()).Msg("session was not active, skipping end-of-turn")
		return nil
	}
	d.ended[id] = true

	if err := d.gateway.SendEndTurn(ctx, contact.GuardianPhone, contact.ChildName, d.zoneName); err != nil {
		log.Error().Err(err).
			Str("session_id", id.String()).
			Msg("failed to send end-of-turn after manual finish")
	}
	return nil
}

// Forget drops the local sent-guards for a session that left the active set,
// keeping the guard maps from growing without bound.
func (d *Dispatcher) Forget(id uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.warned, id)
	delete(d.ended, id)
}
