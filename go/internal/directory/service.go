package directory

import (
	"context"
	"errors"

	"github.com/familypark/playzone/go/internal/models"
)

// ErrMissingCode means one of the two login codes was left empty.
var ErrMissingCode = errors.New("directory: both local and operator codes are required")

// LoginResult is the identity a successful login yields.
type LoginResult struct {
	Operator models.Operator `json:"operator"`
	Local    models.Local    `json:"local"`
}

// Service validates operator logins against the directory.
type Service struct {
	repo *Repository
}

// NewService creates a new directory service.
func NewService(repo *Repository) *Service {
	return &Service{
		repo: repo,
	}
}

// Login resolves a (local code, operator code) pair. The operator must exist
// under that local and be active; any other shape is rejected with one of the
// package's sentinel errors, which callers surface as form errors.
func (s *Service) Login(ctx context.Context, localCode, operatorCode string) (*LoginResult, error) {
	if localCode == "" || operatorCode == "" {
		return nil, ErrMissingCode
	}

	local, err := s.repo.GetLocalByCode(ctx, localCode)
	if err != nil {
		return nil, err
	}

	op, err := s.repo.GetOperator(ctx, operatorCode, local.ID)
	if err != nil {
		return nil, err
	}
	if !op.Active {
		return nil, ErrOperatorInactive
	}

	return &LoginResult{
		Operator: *op,
		Local:    *local,
	}, nil
}
