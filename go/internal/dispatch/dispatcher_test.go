package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/familypark/playzone/go/internal/models"
	"github.com/familypark/playzone/go/internal/session"
)

type fakeGateway struct {
	startCalls   int
	warningCalls int
	endCalls     int
	failNext     error
}

func (g *fakeGateway) SendStartTurn(ctx context.Context, phone, childName, zoneName string, minutes int) error {
	g.startCalls++
	return g.take()
}

func (g *fakeGateway) SendWarning(ctx context.Context, phone, childName, zoneName string) error {
	g.warningCalls++
	return g.take()
}

func (g *fakeGateway) SendEndTurn(ctx context.Context, phone, childName, zoneName string) error {
	g.endCalls++
	return g.take()
}

func (g *fakeGateway) take() error {
	err := g.failNext
	g.failNext = nil
	return err
}

type fakeStore struct {
	contact       session.Contact
	markWarned    int
	finishExpired int
	finishManual  int
	warnedSet     bool
	finishedSet   bool
	failMark      error
}

func (s *fakeStore) GetContact(ctx context.Context, id uuid.UUID) (*session.Contact, error) {
	c := s.contact
	return &c, nil
}

func (s *fakeStore) MarkWarned(ctx context.Context, id uuid.UUID) (bool, error) {
	if s.failMark != nil {
		err := s.failMark
		s.failMark = nil
		return false, err
	}
	s.markWarned++
	claimed := !s.warnedSet
	s.warnedSet = true
	return claimed, nil
}

func (s *fakeStore) FinishExpired(ctx context.Context, id uuid.UUID, endTime time.Time) (bool, error) {
	s.finishExpired++
	claimed := !s.finishedSet
	s.finishedSet = true
	return claimed, nil
}

func (s *fakeStore) FinishManual(ctx context.Context, id uuid.UUID, endTime time.Time) (bool, error) {
	s.finishManual++
	claimed := !s.finishedSet
	s.finishedSet = true
	return claimed, nil
}

func testSession(start time.Time, minutes int) *models.Session {
	return &models.Session{
		ID:              uuid.New(),
		ChildName:       "Ana",
		GuardianPhone:   "56912345678",
		ZoneCode:        "TRAMP",
		DurationMinutes: minutes,
		StartTime:       start,
		Status:          models.SessionStatusActive,
	}
}

func TestWarningSentExactlyOnce(t *testing.T) {
	start := time.Date(2025, 3, 1, 16, 0, 0, 0, time.UTC)
	gw := &fakeGateway{}
	store := &fakeStore{}
	d := NewDispatcher(gw, store, "Trampoline Zone")

	s := testSession(start, 20)
	now := start.Add(17 * time.Minute)

	// Repeated ticks with no externally forced state change.
	for i := 0; i < 50; i++ {
		d.CheckSession(context.Background(), s, now.Add(time.Duration(i)*time.Second))
	}

	if gw.warningCalls != 1 {
		t.Errorf("warning sent %d times, want 1", gw.warningCalls)
	}
	if store.markWarned != 1 {
		t.Errorf("warning flag persisted %d times, want 1", store.markWarned)
	}
}

func TestWarningRetriedAfterGatewayFailure(t *testing.T) {
	start := time.Date(2025, 3, 1, 16, 0, 0, 0, time.UTC)
	gw := &fakeGateway{failNext: errors.New("gateway down")}
	store := &fakeStore{}
	d := NewDispatcher(gw, store, "Trampoline Zone")

	s := testSession(start, 20)
	now := start.Add(17 * time.Minute)

	if changed := d.CheckSession(context.Background(), s, now); changed {
		t.Fatal("failed send must not report a transition")
	}
	if store.markWarned != 0 {
		t.Fatal("flag must not be set after a failed send")
	}

	// Next tick retries and succeeds.
	if changed := d.CheckSession(context.Background(), s, now.Add(time.Second)); !changed {
		t.Fatal("successful retry must report a transition")
	}
	if gw.warningCalls != 2 {
		t.Errorf("warning attempted %d times, want 2", gw.warningCalls)
	}
	if store.markWarned != 1 {
		t.Errorf("flag persisted %d times, want 1", store.markWarned)
	}
}

func TestEndOfTurnSentExactlyOnce(t *testing.T) {
	start := time.Date(2025, 3, 1, 16, 0, 0, 0, time.UTC)
	gw := &fakeGateway{}
	store := &fakeStore{}
	d := NewDispatcher(gw, store, "Trampoline Zone")

	s := testSession(start, 20)
	s.WarnedThreeMin = true
	now := start.Add(20 * time.Minute)

	for i := 0; i < 50; i++ {
		d.CheckSession(context.Background(), s, now.Add(time.Duration(i)*time.Second))
	}

	if gw.endCalls != 1 {
		t.Errorf("end-of-turn sent %d times, want 1", gw.endCalls)
	}
	if store.finishExpired != 1 {
		t.Errorf("finish persisted %d times, want 1", store.finishExpired)
	}
}

func TestStoreFlagsSuppressResend(t *testing.T) {
	start := time.Date(2025, 3, 1, 16, 0, 0, 0, time.UTC)
	gw := &fakeGateway{}
	store := &fakeStore{}
	// Fresh dispatcher, as if the panel had been restarted.
	d := NewDispatcher(gw, store, "Trampoline Zone")

	s := testSession(start, 20)
	s.WarnedThreeMin = true
	s.SentGameOver = true
	s.Status = models.SessionStatusFinished

	d.CheckSession(context.Background(), s, start.Add(20*time.Minute))

	if gw.warningCalls != 0 || gw.endCalls != 0 {
		t.Errorf("messages sent for already-flagged session: warning=%d end=%d",
			gw.warningCalls, gw.endCalls)
	}
}

func TestFinishNowSendsEndOfTurn(t *testing.T) {
	gw := &fakeGateway{}
	store := &fakeStore{contact: session.Contact{ChildName: "Ana", GuardianPhone: "56912345678"}}
	d := NewDispatcher(gw, store, "Trampoline Zone")

	id := uuid.New()
	now := time.Date(2025, 3, 1, 16, 10, 0, 0, time.UTC)

	if err := d.FinishNow(context.Background(), id, now); err != nil {
		t.Fatalf("FinishNow returned error: %v", err)
	}
	if store.finishManual != 1 {
		t.Errorf("manual finish persisted %d times, want 1", store.finishManual)
	}
	if gw.endCalls != 1 {
		t.Errorf("end-of-turn sent %d times, want 1", gw.endCalls)
	}

	// A second finish on the same session is a no-op.
	if err := d.FinishNow(context.Background(), id, now.Add(time.Second)); err != nil {
		t.Fatalf("second FinishNow returned error: %v", err)
	}
	if gw.endCalls != 1 {
		t.Errorf("end-of-turn re-sent after no-op finish, got %d calls", gw.endCalls)
	}
}

func TestNotifyStartFailureIsNonFatal(t *testing.T) {
	start := time.Date(2025, 3, 1, 16, 0, 0, 0, time.UTC)
	gw := &fakeGateway{failNext: errors.New("gateway down")}
	store := &fakeStore{}
	d := NewDispatcher(gw, store, "Trampoline Zone")

	s := testSession(start, 20)
	d.NotifyStart(context.Background(), s)

	if gw.startCalls != 1 {
		t.Errorf("start-of-turn attempted %d times, want 1", gw.startCalls)
	}
	// No retry on the next check: start-of-turn is best-effort.
	d.CheckSession(context.Background(), s, start.Add(time.Minute))
	if gw.startCalls != 1 {
		t.Errorf("start-of-turn retried, got %d calls", gw.startCalls)
	}
}
