package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/familypark/playzone/go/internal/models"
)

var (
	// ErrLocalNotFound means the local code does not match any venue.
	ErrLocalNotFound = errors.New("directory: local code not found")
	// ErrOperatorNotFound means the operator code is unknown or belongs to
	// a different local.
	ErrOperatorNotFound = errors.New("directory: operator code not found for local")
	// ErrOperatorInactive means the operator exists but is disabled.
	ErrOperatorInactive = errors.New("directory: operator is inactive")
)

// Repository implements read-only directory lookups (locals, operators,
// zones). Nothing here is mutated by the session core.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new directory repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
	}
}

// GetLocalByCode looks up a venue by its short code.
func (r *Repository) GetLocalByCode(ctx context.Context, code string) (*models.Local, error) {
	var l models.Local
	err := r.pool.QueryRow(ctx,
		`SELECT id, code, name, zone_type FROM locals WHERE code = $1`,
		strings.ToUpper(strings.TrimSpace(code)),
	).Scan(&l.ID, &l.Code, &l.Name, &l.ZoneType)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLocalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get local by code: %w", err)
	}
	return &l, nil
}

// GetOperator looks up an operator by login code scoped to one local.
func (r *Repository) GetOperator(ctx context.Context, loginCode string, localID uuid.UUID) (*models.Operator, error) {
	var op models.Operator
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, login_code, local_id, active
		 FROM operators WHERE login_code = $1 AND local_id = $2`,
		strings.ToUpper(strings.TrimSpace(loginCode)), localID,
	).Scan(&op.ID, &op.Name, &op.LoginCode, &op.LocalID, &op.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOperatorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operator: %w", err)
	}
	return &op, nil
}

// ListZoneCodes returns the zone codes configured for one local.
func (r *Repository) ListZoneCodes(ctx context.Context, localID uuid.UUID) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT zone_code FROM local_zones WHERE local_id = $1 ORDER BY zone_code`,
		localID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list zone codes: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan zone code: %w", err)
		}
		codes = append(codes, code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read zone codes: %w", err)
	}
	return codes, nil
}
