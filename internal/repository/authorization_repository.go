package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/persistence"
)

const authorizationColumns = `id, tenant_id, purpose, status, decided_at, expires_at, created_at, updated_at`

// AuthorizationRepository persists model authorizations.
type AuthorizationRepository interface {
	Create(ctx context.Context, s *persistence.Session, a *domain.ModelAuthorization) error
	Get(ctx context.Context, s *persistence.Session, id uuid.UUID) (*domain.ModelAuthorization, error)
	Update(ctx context.Context, s *persistence.Session, a *domain.ModelAuthorization) error
	// ListByPurpose returns the tenant's authorizations for purpose, newest first.
	ListByPurpose(ctx context.Context, s *persistence.Session, purpose string) ([]domain.ModelAuthorization, error)
}

type authorizationRepository struct{}

func NewAuthorizationRepository() AuthorizationRepository {
	return &authorizationRepository{}
}

func (r *authorizationRepository) Create(ctx context.Context, s *persistence.Session, a *domain.ModelAuthorization) error {
	tenantID, err := tenantOf(s)
	if err != nil {
		return err
	}
	query := `
        INSERT INTO model_authorizations (tenant_id, purpose, status, expires_at)
        VALUES ($1,$2,$3,$4)
        RETURNING ` + authorizationColumns
	out, err := persistence.Optional[domain.ModelAuthorization](ctx, s, query, tenantID, a.Purpose, a.Status, a.ExpiresAt)
	if err != nil {
		return err
	}
	*a = *out
	return nil
}

func (r *authorizationRepository) Get(ctx context.Context, s *persistence.Session, id uuid.UUID) (*domain.ModelAuthorization, error) {
	query := `SELECT ` + authorizationColumns + ` FROM model_authorizations WHERE id=$1`
	a, err := persistence.Optional[domain.ModelAuthorization](ctx, s, query, id)
	return found(a, err, "model authorization", id)
}

func (r *authorizationRepository) Update(ctx context.Context, s *persistence.Session, a *domain.ModelAuthorization) error {
	const query = `UPDATE model_authorizations SET status=$1, decided_at=$2, expires_at=$3, updated_at=$4 WHERE id=$5`
	n, err := persistence.Exec(ctx, s, query, a.Status, a.DecidedAt, a.ExpiresAt, a.UpdatedAt, a.ID)
	return affected(n, err, "model authorization", a.ID)
}

func (r *authorizationRepository) ListByPurpose(ctx context.Context, s *persistence.Session, purpose string) ([]domain.ModelAuthorization, error) {
	query := `SELECT ` + authorizationColumns + ` FROM model_authorizations WHERE purpose=$1 ORDER BY created_at DESC`
	return persistence.All[domain.ModelAuthorization](ctx, s, query, purpose)
}
