package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/persistence"
)

const ticketColumns = `id, tenant_id, contact_id, address_id, status, scheduled_at, scheduled_duration_minutes,
        clock_in_at, clock_out_at, actual_duration_minutes, notes, is_price_estimated, closed_at,
        created_at, updated_at, deleted_at`

// TicketFilter captures ticket search parameters.
type TicketFilter struct {
	ContactID     *uuid.UUID
	Statuses      []domain.TicketStatus
	ScheduledFrom *time.Time
	ScheduledTo   *time.Time
	Search        string
	Limit         int
	Offset        int
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, s *persistence.Session, ticket *domain.Ticket) error
	Get(ctx context.Context, s *persistence.Session, id uuid.UUID) (*domain.Ticket, error)
	Update(ctx context.Context, s *persistence.Session, ticket *domain.Ticket) error
	SoftDelete(ctx context.Context, s *persistence.Session, id uuid.UUID, at time.Time) error
	List(ctx context.Context, s *persistence.Session, filter TicketFilter) ([]domain.Ticket, error)
	// CountByAddress counts tickets pointing at addressID, soft-deleted ones included.
	CountByAddress(ctx context.Context, s *persistence.Session, addressID uuid.UUID) (int64, error)
}

type ticketRepository struct{}

// NewTicketRepository instantiates repository.
func NewTicketRepository() TicketRepository {
	return &ticketRepository{}
}

func (r *ticketRepository) Create(ctx context.Context, s *persistence.Session, ticket *domain.Ticket) error {
	tenantID, err := tenantOf(s)
	if err != nil {
		return err
	}
	query := `
        INSERT INTO tickets (tenant_id, contact_id, address_id, status, scheduled_at, scheduled_duration_minutes,
            notes, is_price_estimated)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING ` + ticketColumns
	out, err := persistence.Optional[domain.Ticket](ctx, s, query,
		tenantID,
		ticket.ContactID,
		ticket.AddressID,
		ticket.Status,
		ticket.ScheduledAt,
		ticket.ScheduledDurationMinutes,
		ticket.Notes,
		ticket.IsPriceEstimated,
	)
	if err != nil {
		return err
	}
	*ticket = *out
	return nil
}

func (r *ticketRepository) Get(ctx context.Context, s *persistence.Session, id uuid.UUID) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 AND deleted_at IS NULL`
	t, err := persistence.Optional[domain.Ticket](ctx, s, query, id)
	return found(t, err, "ticket", id)
}

func (r *ticketRepository) Update(ctx context.Context, s *persistence.Session, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET address_id=$1, status=$2, scheduled_at=$3, scheduled_duration_minutes=$4,
            clock_in_at=$5, clock_out_at=$6, actual_duration_minutes=$7, notes=$8, is_price_estimated=$9,
            closed_at=$10, updated_at=$11
        WHERE id=$12 AND deleted_at IS NULL`
	n, err := persistence.Exec(ctx, s, query,
		ticket.AddressID,
		ticket.Status,
		ticket.ScheduledAt,
		ticket.ScheduledDurationMinutes,
		ticket.ClockInAt,
		ticket.ClockOutAt,
		ticket.ActualDurationMinutes,
		ticket.Notes,
		ticket.IsPriceEstimated,
		ticket.ClosedAt,
		ticket.UpdatedAt,
		ticket.ID,
	)
	return affected(n, err, "ticket", ticket.ID)
}

func (r *ticketRepository) SoftDelete(ctx context.Context, s *persistence.Session, id uuid.UUID, at time.Time) error {
	const query = `UPDATE tickets SET deleted_at=$1, updated_at=$1 WHERE id=$2 AND deleted_at IS NULL`
	n, err := persistence.Exec(ctx, s, query, at, id)
	return affected(n, err, "ticket", id)
}

func (r *ticketRepository) List(ctx context.Context, s *persistence.Session, filter TicketFilter) ([]domain.Ticket, error) {
	w := &where{}
	w.raw("deleted_at IS NULL")
	if filter.ContactID != nil {
		w.add("contact_id=$%d", *filter.ContactID)
	}
	addIn(w, "status", filter.Statuses)
	if filter.ScheduledFrom != nil {
		w.add("scheduled_at >= $%d", *filter.ScheduledFrom)
	}
	if filter.ScheduledTo != nil {
		w.add("scheduled_at < $%d", *filter.ScheduledTo)
	}
	w.search(filter.Search, "notes")

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY scheduled_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, w, ClampLimit(filter.Limit), max(filter.Offset, 0))
	return persistence.All[domain.Ticket](ctx, s, query, w.args...)
}

func (r *ticketRepository) CountByAddress(ctx context.Context, s *persistence.Session, addressID uuid.UUID) (int64, error) {
	return persistence.Scalar[int64](ctx, s, `SELECT COUNT(*) FROM tickets WHERE address_id=$1`, addressID)
}
