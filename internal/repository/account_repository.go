package repository

import (
	"context"
	"strings"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/persistence"
)

const accountColumns = `id, tenant_id, email, password_hash, role, is_active, created_at, updated_at`

// AccountRepository looks up logins. Lookups by email run on an admin session because
// the tenant is not known until the account is found.
type AccountRepository interface {
	Create(ctx context.Context, s *persistence.Session, a *domain.Account) error
	FindByEmail(ctx context.Context, s *persistence.Session, email string) (*domain.Account, error)
}

type accountRepository struct{}

func NewAccountRepository() AccountRepository {
	return &accountRepository{}
}

func (r *accountRepository) Create(ctx context.Context, s *persistence.Session, a *domain.Account) error {
	tenantID, err := tenantOf(s)
	if err != nil {
		return err
	}
	query := `
        INSERT INTO accounts (tenant_id, email, password_hash, role, is_active)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING ` + accountColumns
	out, err := persistence.Optional[domain.Account](ctx, s, query,
		tenantID, strings.ToLower(a.Email), a.PasswordHash, a.Role, a.IsActive)
	if err != nil {
		return err
	}
	*a = *out
	return nil
}

func (r *accountRepository) FindByEmail(ctx context.Context, s *persistence.Session, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(email)=lower($1)`
	return persistence.Optional[domain.Account](ctx, s, query, email)
}
