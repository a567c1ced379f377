package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/familypark/playzone/go/internal/countdown"
	"github.com/familypark/playzone/go/internal/feed"
	"github.com/familypark/playzone/go/internal/models"
)

// Loader fetches the controller's filtered session set from the store.
// now lets window-based filters (the display's 30-second grace) compute
// their cutoff against the injected clock.
type Loader func(ctx context.Context, now time.Time) ([]models.Session, error)

// TickFunc runs once per clock tick over the current session set. Returning
// true requests an immediate reload, which completes before the next tick
// classifies anything.
type TickFunc func(ctx context.Context, sessions []models.Session, now time.Time) bool

// Config holds the reconciliation loop intervals.
type Config struct {
	TickInterval     time.Duration
	FallbackInterval time.Duration
}

// DefaultConfig returns the loop defaults: a 1-second tick and a 2.5-second
// fallback poll masking missed change notifications.
func DefaultConfig() Config {
	return Config{
		TickInterval:     time.Second,
		FallbackInterval: 2500 * time.Millisecond,
	}
}

// Reconciler keeps a local copy of one zone's session set in sync with the
// store. Reloads are always full reloads of the filtered set; per-zone sets
// are small and this avoids incremental-merge bugs.
//
// It also tracks the instant each session's countdown first hit zero, so a
// session stays classifiable as recently finished while the store has not
// yet confirmed its end time.
type Reconciler struct {
	load      Loader
	events    <-chan feed.ChangeEvent
	clock     clockwork.Clock
	cfg       Config
	onTick    TickFunc
	onRemoved func(uuid.UUID)

	mu        sync.RWMutex
	sessions  []models.Session
	known     map[uuid.UUID]bool
	localZero map[uuid.UUID]time.Time
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithTick installs a per-tick callback (the panel's dispatcher checks).
func WithTick(fn TickFunc) Option {
	return func(r *Reconciler) { r.onTick = fn }
}

// WithOnRemoved installs a callback fired when a session leaves the set.
func WithOnRemoved(fn func(uuid.UUID)) Option {
	return func(r *Reconciler) { r.onRemoved = fn }
}

// WithClock swaps the clock; tests use a fake.
func WithClock(clock clockwork.Clock) Option {
	return func(r *Reconciler) { r.clock = clock }
}

// NewReconciler creates a reconciliation loop over the given loader and
// change-event stream. events may be nil when no feed is available; the
// fallback poll then bounds staleness on its own.
func NewReconciler(load Loader, events <-chan feed.ChangeEvent, cfg Config, opts ...Option) *Reconciler {
	r := &Reconciler{
		load:      load,
		events:    events,
		clock:     clockwork.NewRealClock(),
		cfg:       cfg,
		known:     make(map[uuid.UUID]bool),
		localZero: make(map[uuid.UUID]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run drives the loop until the context is cancelled. Tickers are acquired
// here and released on every exit path.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := r.clock.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()
	fallback := r.clock.NewTicker(r.cfg.FallbackInterval)
	defer fallback.Stop()

	// Populate before the first tick.
	r.Reload(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("reconciler shutting down")
			return ctx.Err()
		case <-ticker.Chan():
			r.Tick(ctx)
		case event, ok := <-r.events:
			if !ok {
				r.events = nil
				continue
			}
			log.Debug().
				Str("event_type", event.EventType).
				Str("session_id", event.SessionID.String()).
				Msg("change event, reloading")
			r.Reload(ctx)
		case <-fallback.Chan():
			r.Reload(ctx)
		}
	}
}

// Tick advances local state one step: track zero crossings, run the
// per-tick callback, and reload if it persisted anything.
func (r *Reconciler) Tick(ctx context.Context) {
	now := r.clock.Now()
	r.trackZeroCrossings(now)

	if r.onTick == nil {
		return
	}
	if r.onTick(ctx, r.Snapshot(), now) {
		r.Reload(ctx)
	}
}

// Reload replaces the local session set with a fresh load. On failure the
// previous set is kept; the next tick or poll retries naturally.
func (r *Reconciler) Reload(ctx context.Context) {
	sessions, err := r.load(ctx, r.clock.Now())
	if err != nil {
		log.Error().Err(err).Msg("failed to reload sessions")
		return
	}

	r.mu.Lock()
	r.sessions = sessions
	r.mu.Unlock()

	r.pruneDeparted(sessions)
}

// Snapshot returns a copy of the current session set, ordered as loaded.
func (r *Reconciler) Snapshot() []models.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Session, len(r.sessions))
	copy(out, r.sessions)
	return out
}

// LocalZero returns the locally observed zero-crossing instant for a
// session, if one has been tracked.
func (r *Reconciler) LocalZero(id uuid.UUID) *time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.localZero[id]; ok {
		return &t
	}
	return nil
}

// trackZeroCrossings records the first instant each active session's
// remaining time hits zero. The instant survives until the store confirms
// the finish and the row leaves the set, so the display never flickers
// between expired and finished.
func (r *Reconciler) trackZeroCrossings(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.sessions {
		s := &r.sessions[i]
		remaining := countdown.RemainingSeconds(s, now)
		if _, ok := r.localZero[s.ID]; !ok && remaining == 0 && s.Status == models.SessionStatusActive {
			r.localZero[s.ID] = now
		}
		if remaining > 0 {
			delete(r.localZero, s.ID)
		}
	}
}

// pruneDeparted clears zero-crossing state and notifies the removal hook
// for sessions no longer present after a reload.
func (r *Reconciler) pruneDeparted(current []models.Session) {
	present := make(map[uuid.UUID]bool, len(current))
	for i := range current {
		present[current[i].ID] = true
	}

	r.mu.Lock()
	var departed []uuid.UUID
	for id := range r.known {
		if !present[id] {
			delete(r.localZero, id)
			departed = append(departed, id)
		}
	}
	r.known = present
	r.mu.Unlock()

	if r.onRemoved != nil {
		for _, id := range departed {
			r.onRemoved(id)
		}
	}
}
