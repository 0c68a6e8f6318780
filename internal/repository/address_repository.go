package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/persistence"
)

const addressColumns = `id, tenant_id, contact_id, label, street, street2, city, state, zip, notes, is_primary,
        created_at, updated_at`

// AddressRepository persists addresses. Addresses are hard-deleted.
type AddressRepository interface {
	Create(ctx context.Context, s *persistence.Session, a *domain.Address) error
	Get(ctx context.Context, s *persistence.Session, id uuid.UUID) (*domain.Address, error)
	Update(ctx context.Context, s *persistence.Session, a *domain.Address) error
	Delete(ctx context.Context, s *persistence.Session, id uuid.UUID) error
	ListByContact(ctx context.Context, s *persistence.Session, contactID uuid.UUID) ([]domain.Address, error)
	// ClearPrimary unsets is_primary on every address of the contact except keep.
	ClearPrimary(ctx context.Context, s *persistence.Session, contactID, keep uuid.UUID) error
}

type addressRepository struct{}

func NewAddressRepository() AddressRepository {
	return &addressRepository{}
}

func (r *addressRepository) Create(ctx context.Context, s *persistence.Session, a *domain.Address) error {
	tenantID, err := tenantOf(s)
	if err != nil {
		return err
	}
	query := `
        INSERT INTO addresses (tenant_id, contact_id, label, street, street2, city, state, zip, notes, is_primary)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING ` + addressColumns
	out, err := persistence.Optional[domain.Address](ctx, s, query,
		tenantID,
		a.ContactID,
		a.Label,
		a.Street,
		a.Street2,
		a.City,
		a.State,
		a.Zip,
		a.Notes,
		a.IsPrimary,
	)
	if err != nil {
		return err
	}
	*a = *out
	return nil
}

func (r *addressRepository) Get(ctx context.Context, s *persistence.Session, id uuid.UUID) (*domain.Address, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE id=$1`
	a, err := persistence.Optional[domain.Address](ctx, s, query, id)
	return found(a, err, "address", id)
}

func (r *addressRepository) Update(ctx context.Context, s *persistence.Session, a *domain.Address) error {
	const query = `
        UPDATE addresses SET label=$1, street=$2, street2=$3, city=$4, state=$5, zip=$6, notes=$7, is_primary=$8,
            updated_at=$9
        WHERE id=$10`
	n, err := persistence.Exec(ctx, s, query,
		a.Label,
		a.Street,
		a.Street2,
		a.City,
		a.State,
		a.Zip,
		a.Notes,
		a.IsPrimary,
		a.UpdatedAt,
		a.ID,
	)
	return affected(n, err, "address", a.ID)
}

func (r *addressRepository) Delete(ctx context.Context, s *persistence.Session, id uuid.UUID) error {
	n, err := persistence.Exec(ctx, s, `DELETE FROM addresses WHERE id=$1`, id)
	return affected(n, err, "address", id)
}

func (r *addressRepository) ListByContact(ctx context.Context, s *persistence.Session, contactID uuid.UUID) ([]domain.Address, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE contact_id=$1 ORDER BY is_primary DESC, created_at`
	return persistence.All[domain.Address](ctx, s, query, contactID)
}

func (r *addressRepository) ClearPrimary(ctx context.Context, s *persistence.Session, contactID, keep uuid.UUID) error {
	const query = `UPDATE addresses SET is_primary=FALSE WHERE contact_id=$1 AND id<>$2 AND is_primary`
	_, err := persistence.Exec(ctx, s, query, contactID, keep)
	return err
}
