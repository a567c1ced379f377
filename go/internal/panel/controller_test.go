package panel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/familypark/playzone/go/internal/dispatch"
	"github.com/familypark/playzone/go/internal/models"
	"github.com/familypark/playzone/go/internal/session"
)

type fakeStore struct {
	mu       sync.Mutex
	sessions []models.Session
	deleted  int64
}

func (f *fakeStore) CreateSession(ctx context.Context, req session.CreateSessionRequest) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := models.Session{
		ID:              uuid.New(),
		ChildName:       req.ChildName,
		ChildIdentifier: req.ChildIdentifier,
		GuardianPhone:   req.GuardianPhone,
		ZoneCode:        req.ZoneCode,
		LocalID:         req.LocalID,
		OperatorID:      req.OperatorID,
		DurationMinutes: req.DurationMinutes,
		StartTime:       req.StartTime,
		Status:          models.SessionStatusActive,
	}
	f.sessions = append(f.sessions, s)
	return &s, nil
}

func (f *fakeStore) ListActive(ctx context.Context, localID uuid.UUID, zoneCode string) ([]models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Session
	for _, s := range f.sessions {
		if s.Status == models.SessionStatusActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) ListFinished(ctx context.Context, localID uuid.UUID, zoneCode string) ([]models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Session
	for _, s := range f.sessions {
		if s.Status == models.SessionStatusFinished {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteFinished(ctx context.Context, localID uuid.UUID, zoneCode string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []models.Session
	var n int64
	for _, s := range f.sessions {
		if s.Status == models.SessionStatusFinished {
			n++
			continue
		}
		kept = append(kept, s)
	}
	f.sessions = kept
	f.deleted += n
	return n, nil
}

// Dispatcher-side store methods so the same fake backs both interfaces.

func (f *fakeStore) GetContact(ctx context.Context, id uuid.UUID) (*session.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.ID == id {
			return &session.Contact{ChildName: s.ChildName, GuardianPhone: s.GuardianPhone}, nil
		}
	}
	return &session.Contact{}, nil
}

func (f *fakeStore) MarkWarned(ctx context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.sessions {
		if f.sessions[i].ID == id && !f.sessions[i].WarnedThreeMin {
			f.sessions[i].WarnedThreeMin = true
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) FinishExpired(ctx context.Context, id uuid.UUID, endTime time.Time) (bool, error) {
	return f.finish(id, endTime)
}

func (f *fakeStore) FinishManual(ctx context.Context, id uuid.UUID, endTime time.Time) (bool, error) {
	return f.finish(id, endTime)
}

func (f *fakeStore) finish(id uuid.UUID, endTime time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.sessions {
		if f.sessions[i].ID == id && f.sessions[i].Status == models.SessionStatusActive {
			t := endTime
			f.sessions[i].Status = models.SessionStatusFinished
			f.sessions[i].EndTime = &t
			f.sessions[i].SentGameOver = true
			return true, nil
		}
	}
	return false, nil
}

type quietGateway struct{}

func (quietGateway) SendStartTurn(ctx context.Context, phone, childName, zoneName string, minutes int) error {
	return nil
}
func (quietGateway) SendWarning(ctx context.Context, phone, childName, zoneName string) error {
	return nil
}
func (quietGateway) SendEndTurn(ctx context.Context, phone, childName, zoneName string) error {
	return nil
}

func newTestController(store *fakeStore) *Controller {
	d := dispatch.NewDispatcher(quietGateway{}, store, "Trampoline Zone")
	return NewController(store, d, nil, uuid.New(), "TRAMP", []int{10, 20, 30}, clockwork.NewFakeClock())
}

func TestStartTurnValidation(t *testing.T) {
	c := newTestController(&fakeStore{})
	operatorID := uuid.New()

	tests := []struct {
		name    string
		req     StartTurnRequest
		wantErr error
	}{
		{
			name:    "missing child name",
			req:     StartTurnRequest{ChildIdentifier: "12345678-5", GuardianPhone: "912345678", OperatorID: operatorID, DurationMinutes: 20},
			wantErr: ErrMissingFields,
		},
		{
			name:    "missing phone",
			req:     StartTurnRequest{ChildName: "Ana", ChildIdentifier: "12345678-5", OperatorID: operatorID, DurationMinutes: 20},
			wantErr: ErrMissingFields,
		},
		{
			name:    "missing operator",
			req:     StartTurnRequest{ChildName: "Ana", ChildIdentifier: "12345678-5", GuardianPhone: "912345678", DurationMinutes: 20},
			wantErr: ErrMissingFields,
		},
		{
			name:    "duration off the preset list",
			req:     StartTurnRequest{ChildName: "Ana", ChildIdentifier: "12345678-5", GuardianPhone: "912345678", OperatorID: operatorID, DurationMinutes: 25},
			wantErr: ErrInvalidDuration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.StartTurn(context.Background(), tt.req)
			if err != tt.wantErr {
				t.Errorf("StartTurn error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestStartTurnNormalizesPhone(t *testing.T) {
	store := &fakeStore{}
	c := newTestController(store)

	s, err := c.StartTurn(context.Background(), StartTurnRequest{
		ChildName:       "Ana",
		ChildIdentifier: "12345678-5",
		GuardianPhone:   "+56 9 1234 5678",
		OperatorID:      uuid.New(),
		DurationMinutes: 20,
	})
	if err != nil {
		t.Fatalf("StartTurn returned error: %v", err)
	}
	if s.GuardianPhone != "56912345678" {
		t.Errorf("stored phone = %q, want %q", s.GuardianPhone, "56912345678")
	}
	if s.Status != models.SessionStatusActive {
		t.Errorf("new session status = %q, want %q", s.Status, models.SessionStatusActive)
	}
}

func TestStartTurnRejectsBadPhone(t *testing.T) {
	c := newTestController(&fakeStore{})

	_, err := c.StartTurn(context.Background(), StartTurnRequest{
		ChildName:       "Ana",
		ChildIdentifier: "12345678-5",
		GuardianPhone:   "812345678", // landline, not a mobile
		OperatorID:      uuid.New(),
		DurationMinutes: 20,
	})
	if err == nil {
		t.Fatal("expected error for non-mobile phone")
	}
}

func TestFinishClosesSession(t *testing.T) {
	store := &fakeStore{}
	c := newTestController(store)

	s, err := c.StartTurn(context.Background(), StartTurnRequest{
		ChildName:       "Ana",
		ChildIdentifier: "12345678-5",
		GuardianPhone:   "912345678",
		OperatorID:      uuid.New(),
		DurationMinutes: 20,
	})
	if err != nil {
		t.Fatalf("StartTurn returned error: %v", err)
	}

	if err := c.Finish(context.Background(), s.ID); err != nil {
		t.Fatalf("Finish returned error: %v", err)
	}

	finished, err := c.FinishedSessions(context.Background())
	if err != nil {
		t.Fatalf("FinishedSessions returned error: %v", err)
	}
	if len(finished) != 1 {
		t.Fatalf("finished list has %d sessions, want 1", len(finished))
	}
	if finished[0].EndTime == nil {
		t.Error("finished session has no end time")
	}
	if len(c.ActiveSessions()) != 0 {
		t.Errorf("active list has %d sessions after finish, want 0", len(c.ActiveSessions()))
	}
}

func TestClearFinished(t *testing.T) {
	store := &fakeStore{}
	c := newTestController(store)

	for _, name := range []string{"Ana", "Benja"} {
		s, err := c.StartTurn(context.Background(), StartTurnRequest{
			ChildName:       name,
			ChildIdentifier: "12345678-5",
			GuardianPhone:   "912345678",
			OperatorID:      uuid.New(),
			DurationMinutes: 10,
		})
		if err != nil {
			t.Fatalf("StartTurn returned error: %v", err)
		}
		if err := c.Finish(context.Background(), s.ID); err != nil {
			t.Fatalf("Finish returned error: %v", err)
		}
	}

	n, err := c.ClearFinished(context.Background())
	if err != nil {
		t.Fatalf("ClearFinished returned error: %v", err)
	}
	if n != 2 {
		t.Errorf("cleared %d sessions, want 2", n)
	}

	finished, err := c.FinishedSessions(context.Background())
	if err != nil {
		t.Fatalf("FinishedSessions returned error: %v", err)
	}
	if len(finished) != 0 {
		t.Errorf("finished list has %d sessions after clear, want 0", len(finished))
	}
}
