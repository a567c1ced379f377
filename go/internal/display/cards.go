package display

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/familypark/playzone/go/internal/countdown"
	"github.com/familypark/playzone/go/internal/models"
)

// FinishedText replaces the countdown clock on a finished card.
const FinishedText = "TIEMPO FINALIZADO"

// Card is one child's entry on the TV screen.
type Card struct {
	SessionID        uuid.UUID `json:"session_id"`
	ChildName        string    `json:"child_name"`
	ClockText        string    `json:"clock_text"`
	RemainingSeconds int       `json:"remaining_seconds"`
	Finished         bool      `json:"finished"`
	Blinking         bool      `json:"blinking"`
	Warning          bool      `json:"warning"`
	HalfTime         bool      `json:"half_time"`
}

// Frame is one full screen refresh for a zone. Frames always carry the
// complete card set; clients replace, never merge.
type Frame struct {
	ZoneCode    string    `json:"zone_code"`
	GeneratedAt time.Time `json:"generated_at"`
	Cards       []Card    `json:"cards"`
}

// BuildCards renders the visible card set for a session list at now,
// ordered by ascending remaining time so the children closest to leaving
// head the screen. localZero supplies the locally observed zero-crossing
// instant for sessions the store has not yet confirmed as finished; it may
// be nil.
func BuildCards(sessions []models.Session, now time.Time, localZero func(uuid.UUID) *time.Time) []Card {
	cards := make([]Card, 0, len(sessions))

	for i := range sessions {
		s := &sessions[i]
		var zero *time.Time
		if localZero != nil {
			zero = localZero(s.ID)
		}

		switch countdown.Classify(s, now, zero) {
		case countdown.StateFinishedExpired:
			continue

		case countdown.StateFinishedRecent, countdown.StateExpiredPendingClose:
			cards = append(cards, Card{
				SessionID: s.ID,
				ChildName: s.ChildName,
				ClockText: FinishedText,
				Finished:  true,
				Blinking:  true,
			})

		case countdown.StateWarningDue:
			remaining := countdown.RemainingSeconds(s, now)
			cards = append(cards, Card{
				SessionID:        s.ID,
				ChildName:        s.ChildName,
				ClockText:        countdown.FormatClock(remaining),
				RemainingSeconds: remaining,
				Warning:          true,
				HalfTime:         pastHalfTime(s, remaining),
			})

		default:
			remaining := countdown.RemainingSeconds(s, now)
			cards = append(cards, Card{
				SessionID:        s.ID,
				ChildName:        s.ChildName,
				ClockText:        countdown.FormatClock(remaining),
				RemainingSeconds: remaining,
				HalfTime:         pastHalfTime(s, remaining),
			})
		}
	}

	sort.SliceStable(cards, func(i, j int) bool {
		return cards[i].RemainingSeconds < cards[j].RemainingSeconds
	})
	return cards
}

// pastHalfTime reports whether a running session has burned through half its
// turn. Purely a styling hint for the screen.
func pastHalfTime(s *models.Session, remaining int) bool {
	return remaining > 0 && remaining <= s.DurationMinutes*60/2
}
