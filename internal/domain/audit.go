package domain

import (
	"time"

	"github.com/google/uuid"
)

type AuditAction string

const (
	AuditCreate AuditAction = "create"
	AuditUpdate AuditAction = "update"
	AuditDelete AuditAction = "delete"
)

// Valid reports whether a is one of the three recorded actions.
func (a AuditAction) Valid() bool {
	switch a {
	case AuditCreate, AuditUpdate, AuditDelete:
		return true
	}
	return false
}

// Entity type names used in audit entries.
const (
	EntityContact            = "contact"
	EntityAddress            = "address"
	EntityService            = "service"
	EntityTicket             = "ticket"
	EntityLineItem           = "line_item"
	EntityInvoice            = "invoice"
	EntityNote               = "note"
	EntityAttribute          = "attribute"
	EntityScheduledMessage   = "scheduled_message"
	EntityLead               = "lead"
	EntityModelAuthorization = "model_authorization"
)

// AuditEntry is an append-only change record.
type AuditEntry struct {
	ID         uuid.UUID      `db:"id" json:"id"`
	TenantID   uuid.UUID      `db:"tenant_id" json:"tenant_id"`
	ActorID    *uuid.UUID     `db:"actor_id" json:"actor_id"`
	EntityType string         `db:"entity_type" json:"entity_type"`
	EntityID   uuid.UUID      `db:"entity_id" json:"entity_id"`
	Action     AuditAction    `db:"action" json:"action"`
	Changes    map[string]any `db:"changes" json:"changes"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}
