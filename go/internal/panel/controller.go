package panel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/familypark/playzone/go/internal/dispatch"
	"github.com/familypark/playzone/go/internal/feed"
	"github.com/familypark/playzone/go/internal/models"
	"github.com/familypark/playzone/go/internal/phone"
	"github.com/familypark/playzone/go/internal/reconcile"
	"github.com/familypark/playzone/go/internal/session"
)

var (
	// ErrMissingFields means a required form field was left empty.
	ErrMissingFields = errors.New("panel: child name, identifier and guardian phone are required")
	// ErrInvalidDuration means the requested duration is not an offered preset.
	ErrInvalidDuration = errors.New("panel: duration is not one of the offered presets")
)

// Store defines what the panel controller needs from the session store.
type Store interface {
	CreateSession(ctx context.Context, req session.CreateSessionRequest) (*models.Session, error)
	ListActive(ctx context.Context, localID uuid.UUID, zoneCode string) ([]models.Session, error)
	ListFinished(ctx context.Context, localID uuid.UUID, zoneCode string) ([]models.Session, error)
	DeleteFinished(ctx context.Context, localID uuid.UUID, zoneCode string) (int64, error)
}

// StartTurnRequest is the operator's new-turn form.
type StartTurnRequest struct {
	ChildName       string    `json:"child_name"`
	ChildIdentifier string    `json:"child_identifier"`
	GuardianPhone   string    `json:"guardian_phone"`
	OperatorID      uuid.UUID `json:"operator_id"`
	DurationMinutes int       `json:"duration_minutes"`
}

// Controller orchestrates one operator panel: it is the authoritative writer
// for its zone's sessions and the only place guardian messages originate.
type Controller struct {
	store      Store
	dispatcher *dispatch.Dispatcher
	reconciler *reconcile.Reconciler
	clock      clockwork.Clock

	localID   uuid.UUID
	zoneCode  string
	durations []int
}

// NewController wires a panel controller for one zone. events may be nil
// when the change feed is unavailable; the fallback poll still bounds
// staleness.
func NewController(store Store, dispatcher *dispatch.Dispatcher, events <-chan feed.ChangeEvent,
	localID uuid.UUID, zoneCode string, durations []int, clock clockwork.Clock) *Controller {

	c := &Controller{
		store:      store,
		dispatcher: dispatcher,
		clock:      clock,
		localID:    localID,
		zoneCode:   zoneCode,
		durations:  durations,
	}

	c.reconciler = reconcile.NewReconciler(
		func(ctx context.Context, now time.Time) ([]models.Session, error) {
			return store.ListActive(ctx, localID, zoneCode)
		},
		events,
		reconcile.DefaultConfig(),
		reconcile.WithClock(clock),
		reconcile.WithTick(c.checkSessions),
		reconcile.WithOnRemoved(dispatcher.Forget),
	)

	return c
}

// Run drives the panel's reconciliation loop until the context is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	log.Info().
		Str("local_id", c.localID.String()).
		Str("zone_code", c.zoneCode).
		Msg("panel controller started")
	return c.reconciler.Run(ctx)
}

// checkSessions runs the dispatcher over every session once per tick.
func (c *Controller) checkSessions(ctx context.Context, sessions []models.Session, now time.Time) bool {
	changed := false
	for i := range sessions {
		if c.dispatcher.CheckSession(ctx, &sessions[i], now) {
			changed = true
		}
	}
	return changed
}

// StartTurn validates the form, creates the session and fires the
// start-of-turn message. The message is sent after the insert has already
// succeeded and does not block the caller; its failure is non-fatal.
func (c *Controller) StartTurn(ctx context.Context, req StartTurnRequest) (*models.Session, error) {
	if req.ChildName == "" || req.ChildIdentifier == "" || req.GuardianPhone == "" || req.OperatorID == uuid.Nil {
		return nil, ErrMissingFields
	}
	if !c.validDuration(req.DurationMinutes) {
		return nil, ErrInvalidDuration
	}

	normalized, err := phone.Normalize(req.GuardianPhone)
	if err != nil {
		return nil, fmt.Errorf("invalid guardian phone: %w", err)
	}

	s, err := c.store.CreateSession(ctx, session.CreateSessionRequest{
		ChildName:       req.ChildName,
		ChildIdentifier: req.ChildIdentifier,
		GuardianPhone:   normalized,
		ZoneCode:        c.zoneCode,
		LocalID:         c.localID,
		OperatorID:      req.OperatorID,
		DurationMinutes: req.DurationMinutes,
		StartTime:       c.clock.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start turn: %w", err)
	}

	go c.dispatcher.NotifyStart(context.WithoutCancel(ctx), s)

	c.reconciler.Reload(ctx)
	return s, nil
}

// Finish closes a session on explicit operator action, before its countdown
// has necessarily reached zero.
func (c *Controller) Finish(ctx context.Context, id uuid.UUID) error {
	if err := c.dispatcher.FinishNow(ctx, id, c.clock.Now()); err != nil {
		return err
	}
	c.reconciler.Reload(ctx)
	return nil
}

// ActiveSessions returns the live list, oldest first.
func (c *Controller) ActiveSessions() []models.Session {
	return c.reconciler.Snapshot()
}

// FinishedSessions loads the finalized list on demand, most recent first.
func (c *Controller) FinishedSessions(ctx context.Context) ([]models.Session, error) {
	return c.store.ListFinished(ctx, c.localID, c.zoneCode)
}

// ClearFinished bulk-deletes the zone's finished sessions once their report
// has been exported.
func (c *Controller) ClearFinished(ctx context.Context) (int64, error) {
	n, err := c.store.DeleteFinished(ctx, c.localID, c.zoneCode)
	if err != nil {
		return 0, err
	}
	log.Info().
		Int64("deleted", n).
		Str("zone_code", c.zoneCode).
		Msg("cleared finished sessions")
	c.reconciler.Reload(ctx)
	return n, nil
}

func (c *Controller) validDuration(minutes int) bool {
	for _, d := range c.durations {
		if minutes == d {
			return true
		}
	}
	return false
}
