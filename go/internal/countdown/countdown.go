package countdown

import (
	"fmt"
	"time"

	"github.com/familypark/playzone/go/internal/models"
)

// WarningWindow is the tail of a session during which the one-time
// reminder message is due.
const WarningWindow = 180 * time.Second

// FinishedGrace is how long a finished session stays visible on displays.
const FinishedGrace = 30 * time.Second

// PlayedClockUnknown is rendered while a session has no end time yet.
const PlayedClockUnknown = "--:--"

// State classifies a session at a given instant.
type State string

const (
	StateActive              State = "ACTIVE"
	StateWarningDue          State = "WARNING_DUE"
	StateExpiredPendingClose State = "EXPIRED_PENDING_CLOSE"
	StateFinishedRecent      State = "FINISHED_RECENT"
	StateFinishedExpired     State = "FINISHED_EXPIRED"
)

// RemainingSeconds returns the whole seconds left on a session's clock at now,
// clamped at zero. A finished session always reports zero.
func RemainingSeconds(s *models.Session, now time.Time) int {
	if s.Status == models.SessionStatusFinished {
		return 0
	}
	total := s.DurationMinutes * 60
	elapsed := int(now.Sub(s.StartTime) / time.Second)
	if remaining := total - elapsed; remaining > 0 {
		return remaining
	}
	return 0
}

// FormatClock renders seconds as "MM:SS". Minutes are not capped at 59, so
// 3661 renders as "61:01".
func FormatClock(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// PlayedClock renders the elapsed play time between start and end, or the
// unknown sentinel while the session has no end time.
func PlayedClock(start time.Time, end *time.Time) string {
	if end == nil {
		return PlayedClockUnknown
	}
	return FormatClock(int(end.Sub(start) / time.Second))
}

// Classify derives the display/notification state for a session at now.
//
// localZero is the locally observed instant the countdown first hit zero; it
// stands in for EndTime while the store has not yet confirmed the finish, so
// displays do not flicker between expired and finished. Pass nil when no zero
// crossing has been tracked.
//
// Flag state (warned/sent) is deliberately not consulted here; that is the
// dispatcher's concern.
func Classify(s *models.Session, now time.Time, localZero *time.Time) State {
	if s.Status == models.SessionStatusFinished {
		finishedAt := localZero
		if s.EndTime != nil {
			finishedAt = s.EndTime
		}
		if finishedAt == nil || now.Sub(*finishedAt) <= FinishedGrace {
			return StateFinishedRecent
		}
		return StateFinishedExpired
	}

	remaining := time.Duration(RemainingSeconds(s, now)) * time.Second
	switch {
	case remaining == 0:
		// An expired row the writer never closed still ages out of the
		// display once its observed zero crossing leaves the grace window.
		if localZero != nil && now.Sub(*localZero) > FinishedGrace {
			return StateFinishedExpired
		}
		return StateExpiredPendingClose
	case remaining <= WarningWindow:
		return StateWarningDue
	default:
		return StateActive
	}
}
