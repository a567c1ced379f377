package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus defines the lifecycle status of a play session.
type SessionStatus string

const (
	SessionStatusActive   SessionStatus = "active"
	SessionStatusFinished SessionStatus = "finished"
)

// Session represents one child's timed play turn in a zone.
type Session struct {
	ID              uuid.UUID     `json:"id"`
	ChildName       string        `json:"child_name"`
	ChildIdentifier string        `json:"child_identifier"`
	GuardianPhone   string        `json:"guardian_phone"`
	ZoneCode        string        `json:"zone_code"`
	LocalID         uuid.UUID     `json:"local_id"`
	OperatorID      uuid.UUID     `json:"operator_id"`
	DurationMinutes int           `json:"duration_minutes"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         *time.Time    `json:"end_time,omitempty"`
	Status          SessionStatus `json:"status"`
	WarnedThreeMin  bool          `json:"warned_3min"`
	SentGameOver    bool          `json:"sent_game_over"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}
