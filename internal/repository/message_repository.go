package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/persistence"
)

const messageColumns = `id, tenant_id, contact_id, ticket_id, message_type, template_name, subject, body,
        scheduled_for, status, attempts, last_error, sent_at, created_at, updated_at`

type MessageFilter struct {
	ContactID *uuid.UUID
	TicketID  *uuid.UUID
	Statuses  []domain.MessageStatus
	DueBefore *time.Time
	Search    string
	Limit     int
	Offset    int
}

type MessageRepository interface {
	Create(ctx context.Context, s *persistence.Session, m *domain.ScheduledMessage) error
	Get(ctx context.Context, s *persistence.Session, id uuid.UUID) (*domain.ScheduledMessage, error)
	Update(ctx context.Context, s *persistence.Session, m *domain.ScheduledMessage) error
	List(ctx context.Context, s *persistence.Session, filter MessageFilter) ([]domain.ScheduledMessage, error)
}

type messageRepository struct{}

func NewMessageRepository() MessageRepository {
	return &messageRepository{}
}

func (r *messageRepository) Create(ctx context.Context, s *persistence.Session, m *domain.ScheduledMessage) error {
	tenantID, err := tenantOf(s)
	if err != nil {
		return err
	}
	query := `
        INSERT INTO scheduled_messages (tenant_id, contact_id, ticket_id, message_type, template_name, subject, body,
            scheduled_for, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING ` + messageColumns
	out, err := persistence.Optional[domain.ScheduledMessage](ctx, s, query,
		tenantID,
		m.ContactID,
		m.TicketID,
		m.MessageType,
		m.TemplateName,
		m.Subject,
		m.Body,
		m.ScheduledFor,
		m.Status,
	)
	if err != nil {
		return err
	}
	*m = *out
	return nil
}

func (r *messageRepository) Get(ctx context.Context, s *persistence.Session, id uuid.UUID) (*domain.ScheduledMessage, error) {
	query := `SELECT ` + messageColumns + ` FROM scheduled_messages WHERE id=$1`
	m, err := persistence.Optional[domain.ScheduledMessage](ctx, s, query, id)
	return found(m, err, "scheduled message", id)
}

func (r *messageRepository) Update(ctx context.Context, s *persistence.Session, m *domain.ScheduledMessage) error {
	const query = `
        UPDATE scheduled_messages SET status=$1, scheduled_for=$2, attempts=$3, last_error=$4, sent_at=$5,
            subject=$6, body=$7, updated_at=$8
        WHERE id=$9`
	n, err := persistence.Exec(ctx, s, query,
		m.Status,
		m.ScheduledFor,
		m.Attempts,
		m.LastError,
		m.SentAt,
		m.Subject,
		m.Body,
		m.UpdatedAt,
		m.ID,
	)
	return affected(n, err, "scheduled message", m.ID)
}

func (r *messageRepository) List(ctx context.Context, s *persistence.Session, filter MessageFilter) ([]domain.ScheduledMessage, error) {
	w := &where{}
	if filter.ContactID != nil {
		w.add("contact_id=$%d", *filter.ContactID)
	}
	if filter.TicketID != nil {
		w.add("ticket_id=$%d", *filter.TicketID)
	}
	addIn(w, "status", filter.Statuses)
	if filter.DueBefore != nil {
		w.add("scheduled_for <= $%d", *filter.DueBefore)
	}
	w.search(filter.Search, "subject", "body", "template_name")

	query := fmt.Sprintf(`SELECT %s FROM scheduled_messages WHERE %s ORDER BY scheduled_for LIMIT %d OFFSET %d`,
		messageColumns, w, ClampLimit(filter.Limit), max(filter.Offset, 0))
	return persistence.All[domain.ScheduledMessage](ctx, s, query, w.args...)
}
