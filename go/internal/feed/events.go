package feed

import (
	"fmt"

	"github.com/google/uuid"
)

// Event types mirrored from the store's row-level changes.
const (
	EventInsert = "INSERT"
	EventUpdate = "UPDATE"
	EventDelete = "DELETE"
)

// ChangeEvent announces that a session row changed. Consumers treat it as a
// reload trigger for their filtered set rather than patching state from it;
// per-zone session sets are small enough that a full reload is the simpler,
// merge-bug-free option.
type ChangeEvent struct {
	EventType string    `json:"event_type"`
	SessionID uuid.UUID `json:"session_id"`
	LocalID   uuid.UUID `json:"local_id"`
	ZoneCode  string    `json:"zone_code"`
}

// Subject returns the NATS subject session changes for one zone are
// published on.
func Subject(localID uuid.UUID, zoneCode string) string {
	return fmt.Sprintf("sessions.%s.%s", localID, zoneCode)
}
