package display

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/familypark/playzone/go/internal/countdown"
	"github.com/familypark/playzone/go/internal/feed"
	"github.com/familypark/playzone/go/internal/models"
	"github.com/familypark/playzone/go/internal/reconcile"
)

// Store defines what the display needs from the session store. The cutoff
// keeps finished sessions loadable while their card is still blinking.
type Store interface {
	ListVisible(ctx context.Context, localID uuid.UUID, zoneCode string, cutoff time.Time) ([]models.Session, error)
}

// Controller renders one zone for its screens: it keeps the visible session
// set fresh and pushes a frame through the hub every tick. Displays never
// write sessions and never send messages.
type Controller struct {
	hub        *Hub
	reconciler *reconcile.Reconciler
	clock      clockwork.Clock

	localID  uuid.UUID
	zoneCode string
}

// NewController wires a display controller for one zone. events may be nil;
// the fallback poll then bounds staleness on its own.
func NewController(store Store, hub *Hub, events <-chan feed.ChangeEvent,
	localID uuid.UUID, zoneCode string, clock clockwork.Clock) *Controller {

	c := &Controller{
		hub:      hub,
		clock:    clock,
		localID:  localID,
		zoneCode: zoneCode,
	}

	c.reconciler = reconcile.NewReconciler(
		func(ctx context.Context, now time.Time) ([]models.Session, error) {
			return store.ListVisible(ctx, localID, zoneCode, now.Add(-countdown.FinishedGrace))
		},
		events,
		reconcile.DefaultConfig(),
		reconcile.WithClock(clock),
		reconcile.WithTick(c.pushFrame),
	)

	return c
}

// Run drives the zone's render loop until the context is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	return c.reconciler.Run(ctx)
}

// Frame renders the current card set without broadcasting it, for a screen
// that just connected and should not wait out the first tick.
func (c *Controller) Frame() *Frame {
	now := c.clock.Now()
	return &Frame{
		ZoneCode:    c.zoneCode,
		GeneratedAt: now,
		Cards:       BuildCards(c.reconciler.Snapshot(), now, c.reconciler.LocalZero),
	}
}

// pushFrame broadcasts a fresh frame. It never persists anything, so it
// never requests a reload.
func (c *Controller) pushFrame(ctx context.Context, sessions []models.Session, now time.Time) bool {
	frame := &Frame{
		ZoneCode:    c.zoneCode,
		GeneratedAt: now,
		Cards:       BuildCards(sessions, now, c.reconciler.LocalZero),
	}
	c.hub.Broadcast(c.localID, c.zoneCode, frame)
	return false
}
