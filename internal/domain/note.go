package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/pkg/util"
)

// Note is free text attached to exactly one contact or ticket.
type Note struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	TenantID    uuid.UUID  `db:"tenant_id" json:"tenant_id"`
	ContactID   *uuid.UUID `db:"contact_id" json:"contact_id"`
	TicketID    *uuid.UUID `db:"ticket_id" json:"ticket_id"`
	Content     string     `db:"content" json:"content"`
	ProcessedAt *time.Time `db:"processed_at" json:"processed_at"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt   *time.Time `db:"deleted_at" json:"deleted_at"`
}

type NoteCreate struct {
	ContactID *uuid.UUID `json:"contact_id"`
	TicketID  *uuid.UUID `json:"ticket_id"`
	Content   string     `json:"content" validate:"required,max=50000"`
}

func (in NoteCreate) Validate() error {
	if err := Validate(in); err != nil {
		return err
	}
	if (in.ContactID == nil) == (in.TicketID == nil) {
		return util.NewValidationError("note must belong to exactly one of contact_id or ticket_id", nil)
	}
	return nil
}
