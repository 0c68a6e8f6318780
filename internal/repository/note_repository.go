package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/persistence"
)

const noteColumns = `id, tenant_id, contact_id, ticket_id, content, processed_at, created_at, updated_at, deleted_at`

type NoteFilter struct {
	ContactID       *uuid.UUID
	TicketID        *uuid.UUID
	UnprocessedOnly bool
	Limit           int
}

type NoteRepository interface {
	Create(ctx context.Context, s *persistence.Session, n *domain.Note) error
	Get(ctx context.Context, s *persistence.Session, id uuid.UUID) (*domain.Note, error)
	MarkProcessed(ctx context.Context, s *persistence.Session, id uuid.UUID, at time.Time) error
	SoftDelete(ctx context.Context, s *persistence.Session, id uuid.UUID, at time.Time) error
	List(ctx context.Context, s *persistence.Session, filter NoteFilter) ([]domain.Note, error)
}

type noteRepository struct{}

func NewNoteRepository() NoteRepository {
	return &noteRepository{}
}

func (r *noteRepository) Create(ctx context.Context, s *persistence.Session, n *domain.Note) error {
	tenantID, err := tenantOf(s)
	if err != nil {
		return err
	}
	query := `
        INSERT INTO notes (tenant_id, contact_id, ticket_id, content)
        VALUES ($1,$2,$3,$4)
        RETURNING ` + noteColumns
	out, err := persistence.Optional[domain.Note](ctx, s, query, tenantID, n.ContactID, n.TicketID, n.Content)
	if err != nil {
		return err
	}
	*n = *out
	return nil
}

func (r *noteRepository) Get(ctx context.Context, s *persistence.Session, id uuid.UUID) (*domain.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE id=$1 AND deleted_at IS NULL`
	n, err := persistence.Optional[domain.Note](ctx, s, query, id)
	return found(n, err, "note", id)
}

func (r *noteRepository) MarkProcessed(ctx context.Context, s *persistence.Session, id uuid.UUID, at time.Time) error {
	const query = `UPDATE notes SET processed_at=$1, updated_at=$1 WHERE id=$2 AND deleted_at IS NULL`
	n, err := persistence.Exec(ctx, s, query, at, id)
	return affected(n, err, "note", id)
}

func (r *noteRepository) SoftDelete(ctx context.Context, s *persistence.Session, id uuid.UUID, at time.Time) error {
	const query = `UPDATE notes SET deleted_at=$1, updated_at=$1 WHERE id=$2 AND deleted_at IS NULL`
	n, err := persistence.Exec(ctx, s, query, at, id)
	return affected(n, err, "note", id)
}

func (r *noteRepository) List(ctx context.Context, s *persistence.Session, filter NoteFilter) ([]domain.Note, error) {
	w := &where{}
	w.raw("deleted_at IS NULL")
	if filter.ContactID != nil {
		w.add("contact_id=$%d", *filter.ContactID)
	}
	if filter.TicketID != nil {
		w.add("ticket_id=$%d", *filter.TicketID)
	}
	if filter.UnprocessedOnly {
		w.raw("processed_at IS NULL")
	}

	query := fmt.Sprintf(`SELECT %s FROM notes WHERE %s ORDER BY created_at DESC LIMIT %d`,
		noteColumns, w, ClampLimit(filter.Limit))
	return persistence.All[domain.Note](ctx, s, query, w.args...)
}
