package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/familypark/playzone/go/internal/models"
)

const sessionColumns = `id, child_name, child_identifier, guardian_phone, zone_code, local_id,
	operator_id, duration_minutes, start_time, end_time, status, warned_3min, sent_game_over,
	created_at, updated_at`

// Repository implements session data access operations on Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new sessions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
	}
}

// CreateSession inserts a new active session and returns the stored row.
func (r *Repository) CreateSession(ctx context.Context, req CreateSessionRequest) (*models.Session, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO sessions (child_name, child_identifier, guardian_phone, zone_code, local_id,
			operator_id, duration_minutes, start_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'active')
		RETURNING `+sessionColumns,
		req.ChildName, req.ChildIdentifier, req.GuardianPhone, req.ZoneCode, req.LocalID,
		req.OperatorID, req.DurationMinutes, req.StartTime,
	)

	s, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return s, nil
}

// GetSession retrieves a session by ID.
func (r *Repository) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)

	s, err := scanSession(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// GetContact loads the guardian contact fields for one session.
func (r *Repository) GetContact(ctx context.Context, id uuid.UUID) (*Contact, error) {
	var c Contact
	err := r.pool.QueryRow(ctx,
		`SELECT child_name, guardian_phone FROM sessions WHERE id = $1`, id,
	).Scan(&c.ChildName, &c.GuardianPhone)
	if err != nil {
		return nil, fmt.Errorf("failed to get session contact: %w", err)
	}
	return &c, nil
}

// ListActive returns the active sessions for one zone, oldest first.
func (r *Repository) ListActive(ctx context.Context, localID uuid.UUID, zoneCode string) ([]models.Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE local_id = $1 AND zone_code = $2 AND status = 'active'
		ORDER BY start_time ASC`,
		localID, zoneCode,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

// ListFinished returns the finished sessions for one zone, most recent first.
func (r *Repository) ListFinished(ctx context.Context, localID uuid.UUID, zoneCode string) ([]models.Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE local_id = $1 AND zone_code = $2 AND status = 'finished'
		ORDER BY end_time DESC`,
		localID, zoneCode,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list finished sessions: %w", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

// ListVisible returns the sessions a display should show: every active
// session plus finished sessions whose end time is at or after cutoff.
func (r *Repository) ListVisible(ctx context.Context, localID uuid.UUID, zoneCode string, cutoff time.Time) ([]models.Session, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM sessions
		WHERE local_id = $1 AND zone_code = $2
		  AND (status = 'active' OR (status = 'finished' AND end_time >= $3))
		ORDER BY start_time ASC`,
		localID, zoneCode, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list visible sessions: %w", err)
	}
	defer rows.Close()

	return collectSessions(rows)
}

// MarkWarned flips warned_3min to true, but only if it is still false.
// Returns false when another writer already claimed the warning.
func (r *Repository) MarkWarned(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sessions
		SET warned_3min = TRUE, updated_at = now()
		WHERE id = $1 AND warned_3min = FALSE`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark session warned: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// FinishExpired closes a session that ran out of time: status, end time and
// the game-over flag change in a single conditional update. Returns false
// when the session was already closed by another writer.
func (r *Repository) FinishExpired(ctx context.Context, id uuid.UUID, endTime time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sessions
		SET status = 'finished', end_time = $2, sent_game_over = TRUE, updated_at = now()
		WHERE id = $1 AND status = 'active' AND sent_game_over = FALSE`,
		id, endTime,
	)
	if err != nil {
		return false, fmt.Errorf("failed to finish expired session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// FinishManual closes a session on explicit operator action, regardless of
// remaining time. Returns false when the session was not active anymore.
func (r *Repository) FinishManual(ctx context.Context, id uuid.UUID, endTime time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sessions
		SET status = 'finished', end_time = $2, updated_at = now()
		WHERE id = $1 AND status = 'active'`,
		id, endTime,
	)
	if err != nil {
		return false, fmt.Errorf("failed to finish session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteFinished bulk-deletes the finished sessions of one zone. Used by the
// report/cleanup flow after the finished list has been exported.
func (r *Repository) DeleteFinished(ctx context.Context, localID uuid.UUID, zoneCode string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM sessions
		WHERE local_id = $1 AND zone_code = $2 AND status = 'finished'`,
		localID, zoneCode,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete finished sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func collectSessions(rows pgx.Rows) ([]models.Session, error) {
	var sessions []models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}
	return sessions, nil
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var s models.Session
	err := row.Scan(
		&s.ID, &s.ChildName, &s.ChildIdentifier, &s.GuardianPhone, &s.ZoneCode, &s.LocalID,
		&s.OperatorID, &s.DurationMinutes, &s.StartTime, &s.EndTime, &s.Status, &s.WarnedThreeMin,
		&s.SentGameOver, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
