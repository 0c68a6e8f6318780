package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/persistence"
)

const leadColumns = `id, tenant_id, status, raw_notes, name, phone, email, address, service_interest, lead_source,
        urgency, converted_at, converted_contact_id, created_at, updated_at, deleted_at`

type LeadFilter struct {
	Statuses []domain.LeadStatus
	Search   string
	Limit    int
	Offset   int
}

type LeadRepository interface {
	Create(ctx context.Context, s *persistence.Session, l *domain.Lead) error
	Get(ctx context.Context, s *persistence.Session, id uuid.UUID) (*domain.Lead, error)
	Update(ctx context.Context, s *persistence.Session, l *domain.Lead) error
	SoftDelete(ctx context.Context, s *persistence.Session, id uuid.UUID, at time.Time) error
	List(ctx context.Context, s *persistence.Session, filter LeadFilter) ([]domain.Lead, error)
}

type leadRepository struct{}

func NewLeadRepository() LeadRepository {
	return &leadRepository{}
}

func (r *leadRepository) Create(ctx context.Context, s *persistence.Session, l *domain.Lead) error {
	tenantID, err := tenantOf(s)
	if err != nil {
		return err
	}
	query := `
        INSERT INTO leads (tenant_id, status, raw_notes, name, phone, email, address, service_interest, lead_source, urgency)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING ` + leadColumns
	out, err := persistence.Optional[domain.Lead](ctx, s, query,
		tenantID,
		l.Status,
		l.RawNotes,
		l.Name,
		l.Phone,
		l.Email,
		l.Address,
		l.ServiceInterest,
		l.LeadSource,
		l.Urgency,
	)
	if err != nil {
		return err
	}
	*l = *out
	return nil
}

func (r *leadRepository) Get(ctx context.Context, s *persistence.Session, id uuid.UUID) (*domain.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id=$1 AND deleted_at IS NULL`
	l, err := persistence.Optional[domain.Lead](ctx, s, query, id)
	return found(l, err, "lead", id)
}

func (r *leadRepository) Update(ctx context.Context, s *persistence.Session, l *domain.Lead) error {
	const query = `
        UPDATE leads SET status=$1, raw_notes=$2, name=$3, phone=$4, email=$5, address=$6, service_interest=$7,
            lead_source=$8, urgency=$9, converted_at=$10, converted_contact_id=$11, updated_at=$12
        WHERE id=$13 AND deleted_at IS NULL`
	n, err := persistence.Exec(ctx, s, query,
		l.Status,
		l.RawNotes,
		l.Name,
		l.Phone,
		l.Email,
		l.Address,
		l.ServiceInterest,
		l.LeadSource,
		l.Urgency,
		l.ConvertedAt,
		l.ConvertedContactID,
		l.UpdatedAt,
		l.ID,
	)
	return affected(n, err, "lead", l.ID)
}

func (r *leadRepository) SoftDelete(ctx context.Context, s *persistence.Session, id uuid.UUID, at time.Time) error {
	const query = `UPDATE leads SET deleted_at=$1, updated_at=$1 WHERE id=$2 AND deleted_at IS NULL`
	n, err := persistence.Exec(ctx, s, query, at, id)
	return affected(n, err, "lead", id)
}

func (r *leadRepository) List(ctx context.Context, s *persistence.Session, filter LeadFilter) ([]domain.Lead, error) {
	w := &where{}
	w.raw("deleted_at IS NULL")
	addIn(w, "status", filter.Statuses)
	w.search(filter.Search, "name", "email", "phone", "raw_notes")

	query := fmt.Sprintf(`SELECT %s FROM leads WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		leadColumns, w, ClampLimit(filter.Limit), max(filter.Offset, 0))
	return persistence.All[domain.Lead](ctx, s, query, w.args...)
}
