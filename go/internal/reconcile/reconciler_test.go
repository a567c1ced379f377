package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/familypark/playzone/go/internal/models"
)

// memoryStore is a loader backed by a mutable in-memory row set.
type memoryStore struct {
	mu      sync.Mutex
	rows    []models.Session
	loads   int
	failing bool
}

func (m *memoryStore) load(ctx context.Context, now time.Time) ([]models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.failing {
		return nil, errors.New("store unavailable")
	}
	out := make([]models.Session, len(m.rows))
	copy(out, m.rows)
	return out, nil
}

func (m *memoryStore) set(rows []models.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = rows
}

func (m *memoryStore) setFailing(failing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing = failing
}

func newSession(start time.Time, minutes int) models.Session {
	return models.Session{
		ID:              uuid.New(),
		ChildName:       "Ana",
		ZoneCode:        "TRAMP",
		DurationMinutes: minutes,
		StartTime:       start,
		Status:          models.SessionStatusActive,
	}
}

func TestReloadKeepsPreviousSetOnFailure(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := &memoryStore{}
	store.set([]models.Session{newSession(clock.Now(), 20)})

	r := NewReconciler(store.load, nil, DefaultConfig(), WithClock(clock))
	r.Reload(context.Background())
	if len(r.Snapshot()) != 1 {
		t.Fatalf("snapshot = %d sessions, want 1", len(r.Snapshot()))
	}

	store.setFailing(true)
	r.Reload(context.Background())
	if len(r.Snapshot()) != 1 {
		t.Fatalf("failed reload dropped sessions, snapshot = %d", len(r.Snapshot()))
	}
}

func TestZeroCrossingTracked(t *testing.T) {
	clock := clockwork.NewFakeClock()
	start := clock.Now()
	s := newSession(start, 20)
	store := &memoryStore{}
	store.set([]models.Session{s})

	r := NewReconciler(store.load, nil, DefaultConfig(), WithClock(clock))
	r.Reload(context.Background())

	r.Tick(context.Background())
	if r.LocalZero(s.ID) != nil {
		t.Fatal("zero crossing recorded before the countdown hit zero")
	}

	clock.Advance(20 * time.Minute)
	r.Tick(context.Background())
	zero := r.LocalZero(s.ID)
	if zero == nil {
		t.Fatal("zero crossing not recorded at expiry")
	}
	if !zero.Equal(start.Add(20 * time.Minute)) {
		t.Fatalf("zero crossing at %v, want %v", zero, start.Add(20*time.Minute))
	}

	// The instant survives later ticks unchanged.
	clock.Advance(10 * time.Second)
	r.Tick(context.Background())
	if got := r.LocalZero(s.ID); got == nil || !got.Equal(*zero) {
		t.Fatalf("zero crossing drifted: got %v, want %v", got, zero)
	}
}

func TestOnTickTransitionForcesReload(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := &memoryStore{}
	store.set([]models.Session{newSession(clock.Now(), 20)})

	ticks := 0
	r := NewReconciler(store.load, nil, DefaultConfig(), WithClock(clock),
		WithTick(func(ctx context.Context, sessions []models.Session, now time.Time) bool {
			ticks++
			return ticks == 1 // first tick persisted something
		}))
	r.Reload(context.Background())

	before := store.loads
	r.Tick(context.Background())
	if store.loads != before+1 {
		t.Fatalf("transition tick did not reload: loads = %d, want %d", store.loads, before+1)
	}

	before = store.loads
	r.Tick(context.Background())
	if store.loads != before {
		t.Fatalf("quiet tick reloaded: loads = %d, want %d", store.loads, before)
	}
}

func TestDepartedSessionsPruned(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := newSession(clock.Now(), 20)
	store := &memoryStore{}
	store.set([]models.Session{s})

	var removed []uuid.UUID
	r := NewReconciler(store.load, nil, DefaultConfig(), WithClock(clock),
		WithOnRemoved(func(id uuid.UUID) { removed = append(removed, id) }))
	r.Reload(context.Background())

	clock.Advance(20 * time.Minute)
	r.Tick(context.Background())
	if r.LocalZero(s.ID) == nil {
		t.Fatal("expected zero crossing before departure")
	}

	store.set(nil)
	r.Reload(context.Background())

	if r.LocalZero(s.ID) != nil {
		t.Fatal("zero crossing kept for departed session")
	}
	if len(removed) != 1 || removed[0] != s.ID {
		t.Fatalf("removal hook got %v, want [%s]", removed, s.ID)
	}
}
