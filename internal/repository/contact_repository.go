package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/persistence"
)

const contactColumns = `id, tenant_id, first_name, last_name, business_name, email, phone, notes,
        preferred_contact_method, created_at, updated_at, deleted_at`

// ContactFilter narrows contact listings.
type ContactFilter struct {
	Search string
	Limit  int
	Offset int
}

// ContactRepository persists contacts. Deleted contacts are invisible to Get and List.
type ContactRepository interface {
	Create(ctx context.Context, s *persistence.Session, c *domain.Contact) error
	Get(ctx context.Context, s *persistence.Session, id uuid.UUID) (*domain.Contact, error)
	Update(ctx context.Context, s *persistence.Session, c *domain.Contact) error
	SoftDelete(ctx context.Context, s *persistence.Session, id uuid.UUID, at time.Time) error
	List(ctx context.Context, s *persistence.Session, filter ContactFilter) ([]domain.Contact, error)
}

type contactRepository struct{}

// NewContactRepository builds the postgres contact repository.
func NewContactRepository() ContactRepository {
	return &contactRepository{}
}

func (r *contactRepository) Create(ctx context.Context, s *persistence.Session, c *domain.Contact) error {
	tenantID, err := tenantOf(s)
	if err != nil {
		return err
	}
	query := `
        INSERT INTO contacts (tenant_id, first_name, last_name, business_name, email, phone, notes, preferred_contact_method)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING ` + contactColumns
	out, err := persistence.Optional[domain.Contact](ctx, s, query,
		tenantID,
		c.FirstName,
		c.LastName,
		c.BusinessName,
		c.Email,
		c.Phone,
		c.Notes,
		c.PreferredContactMethod,
	)
	if err != nil {
		return err
	}
	*c = *out
	return nil
}

func (r *contactRepository) Get(ctx context.Context, s *persistence.Session, id uuid.UUID) (*domain.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id=$1 AND deleted_at IS NULL`
	c, err := persistence.Optional[domain.Contact](ctx, s, query, id)
	return found(c, err, "contact", id)
}

func (r *contactRepository) Update(ctx context.Context, s *persistence.Session, c *domain.Contact) error {
	const query = `
        UPDATE contacts SET first_name=$1, last_name=$2, business_name=$3, email=$4, phone=$5, notes=$6,
            preferred_contact_method=$7, updated_at=$8
        WHERE id=$9 AND deleted_at IS NULL`
	n, err := persistence.Exec(ctx, s, query,
		c.FirstName,
		c.LastName,
		c.BusinessName,
		c.Email,
		c.Phone,
		c.Notes,
		c.PreferredContactMethod,
		c.UpdatedAt,
		c.ID,
	)
	return affected(n, err, "contact", c.ID)
}

func (r *contactRepository) SoftDelete(ctx context.Context, s *persistence.Session, id uuid.UUID, at time.Time) error {
	const query = `UPDATE contacts SET deleted_at=$1, updated_at=$1 WHERE id=$2 AND deleted_at IS NULL`
	n, err := persistence.Exec(ctx, s, query, at, id)
	return affected(n, err, "contact", id)
}

func (r *contactRepository) List(ctx context.Context, s *persistence.Session, filter ContactFilter) ([]domain.Contact, error) {
	w := &where{}
	w.raw("deleted_at IS NULL")
	w.search(filter.Search, "first_name", "last_name", "business_name", "email", "phone")

	query := fmt.Sprintf(`SELECT %s FROM contacts WHERE %s ORDER BY last_name NULLS LAST, first_name, business_name LIMIT %d OFFSET %d`,
		contactColumns, w, ClampLimit(filter.Limit), max(filter.Offset, 0))
	return persistence.All[domain.Contact](ctx, s, query, w.args...)
}
