package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/persistence"
)

const lineItemColumns = `id, tenant_id, ticket_id, service_id, description, quantity, unit_price_cents,
        total_price_cents, duration_minutes, created_at, updated_at, deleted_at`

type LineItemRepository interface {
	Create(ctx context.Context, s *persistence.Session, li *domain.LineItem) error
	Get(ctx context.Context, s *persistence.Session, id uuid.UUID) (*domain.LineItem, error)
	Update(ctx context.Context, s *persistence.Session, li *domain.LineItem) error
	SoftDelete(ctx context.Context, s *persistence.Session, id uuid.UUID, at time.Time) error
	ListByTicket(ctx context.Context, s *persistence.Session, ticketID uuid.UUID) ([]domain.LineItem, error)
}

type lineItemRepository struct{}

func NewLineItemRepository() LineItemRepository {
	return &lineItemRepository{}
}

func (r *lineItemRepository) Create(ctx context.Context, s *persistence.Session, li *domain.LineItem) error {
	tenantID, err := tenantOf(s)
	if err != nil {
		return err
	}
	query := `
        INSERT INTO line_items (tenant_id, ticket_id, service_id, description, quantity, unit_price_cents,
            total_price_cents, duration_minutes)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING ` + lineItemColumns
	out, err := persistence.Optional[domain.LineItem](ctx, s, query,
		tenantID,
		li.TicketID,
		li.ServiceID,
		li.Description,
		li.Quantity,
		li.UnitPriceCents,
		li.TotalPriceCents,
		li.DurationMinutes,
	)
	if err != nil {
		return err
	}
	*li = *out
	return nil
}

func (r *lineItemRepository) Get(ctx context.Context, s *persistence.Session, id uuid.UUID) (*domain.LineItem, error) {
	query := `SELECT ` + lineItemColumns + ` FROM line_items WHERE id=$1 AND deleted_at IS NULL`
	li, err := persistence.Optional[domain.LineItem](ctx, s, query, id)
	return found(li, err, "line item", id)
}

func (r *lineItemRepository) Update(ctx context.Context, s *persistence.Session, li *domain.LineItem) error {
	const query = `
        UPDATE line_items SET description=$1, quantity=$2, unit_price_cents=$3, total_price_cents=$4,
            duration_minutes=$5, updated_at=$6
        WHERE id=$7 AND deleted_at IS NULL`
	n, err := persistence.Exec(ctx, s, query,
		li.Description,
		li.Quantity,
		li.UnitPriceCents,
		li.TotalPriceCents,
		li.DurationMinutes,
		li.UpdatedAt,
		li.ID,
	)
	return affected(n, err, "line item", li.ID)
}

func (r *lineItemRepository) SoftDelete(ctx context.Context, s *persistence.Session, id uuid.UUID, at time.Time) error {
	const query = `UPDATE line_items SET deleted_at=$1, updated_at=$1 WHERE id=$2 AND deleted_at IS NULL`
	n, err := persistence.Exec(ctx, s, query, at, id)
	return affected(n, err, "line item", id)
}

func (r *lineItemRepository) ListByTicket(ctx context.Context, s *persistence.Session, ticketID uuid.UUID) ([]domain.LineItem, error) {
	query := `SELECT ` + lineItemColumns + ` FROM line_items WHERE ticket_id=$1 AND deleted_at IS NULL ORDER BY created_at`
	return persistence.All[domain.LineItem](ctx, s, query, ticketID)
}
