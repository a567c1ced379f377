package session

import (
	"time"

	"github.com/google/uuid"
)

// CreateSessionRequest represents a request to start a new play session.
type CreateSessionRequest struct {
	ChildName       string    `json:"child_name"`
	ChildIdentifier string    `json:"child_identifier"`
	GuardianPhone   string    `json:"guardian_phone"`
	ZoneCode        string    `json:"zone_code"`
	LocalID         uuid.UUID `json:"local_id"`
	OperatorID      uuid.UUID `json:"operator_id"`
	DurationMinutes int       `json:"duration_minutes"`
	StartTime       time.Time `json:"start_time"`
}

// Contact is the fresh guardian contact info loaded right before a manual
// finish, so a stale local copy is never used as a message destination.
type Contact struct {
	ChildName     string `json:"child_name"`
	GuardianPhone string `json:"guardian_phone"`
}
