package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/domain"
)

// Kind identifies an event variant.
type Kind string

const (
	KindTicketCreated   Kind = "ticket.created"
	KindTicketClockedIn Kind = "ticket.clocked_in"
	KindTicketCompleted Kind = "ticket.completed"
	KindTicketCancelled Kind = "ticket.cancelled"
	KindInvoiceSent     Kind = "invoice.sent"
	KindInvoicePaid     Kind = "invoice.paid"
	KindContactCreated  Kind = "contact.created"
	KindNoteCreated     Kind = "note.created"
	KindLeadConverted   Kind = "lead.converted"
)

// Event is one of the variants declared in this file. The set is closed.
type Event interface {
	Kind() Kind
	Metadata() Meta
	sealed()
}

// Meta is carried by every event.
type Meta struct {
	ID         uuid.UUID `json:"id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	ActorID    uuid.UUID `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewMeta stamps a fresh event id.
func NewMeta(tenantID, actorID uuid.UUID, at time.Time) Meta {
	return Meta{ID: uuid.New(), TenantID: tenantID, ActorID: actorID, OccurredAt: at}
}

func (m Meta) Metadata() Meta { return m }
func (Meta) sealed()          {}

type TicketCreated struct {
	Meta
	Ticket domain.Ticket `json:"ticket"`
}

type TicketClockedIn struct {
	Meta
	Ticket domain.Ticket `json:"ticket"`
}

// TicketCompleted carries what the technician confirmed at close-out.
type TicketCompleted struct {
	Meta
	Ticket         domain.Ticket       `json:"ticket"`
	Notes          string              `json:"notes"`
	Attributes     map[string]any      `json:"attributes"`
	FollowUp       domain.FollowUpPlan `json:"follow_up"`
	FollowUpMonths int                 `json:"follow_up_months"`
}

type TicketCancelled struct {
	Meta
	Ticket domain.Ticket `json:"ticket"`
	Reason string        `json:"reason,omitempty"`
}

type InvoiceSent struct {
	Meta
	Invoice domain.Invoice `json:"invoice"`
}

type InvoicePaid struct {
	Meta
	Invoice     domain.Invoice `json:"invoice"`
	AmountCents int64          `json:"amount_cents"`
}

type ContactCreated struct {
	Meta
	Contact domain.Contact `json:"contact"`
}

type NoteCreated struct {
	Meta
	Note domain.Note `json:"note"`
}

type LeadConverted struct {
	Meta
	Lead      domain.Lead `json:"lead"`
	ContactID uuid.UUID   `json:"contact_id"`
}

func (TicketCreated) Kind() Kind   { return KindTicketCreated }
func (TicketClockedIn) Kind() Kind { return KindTicketClockedIn }
func (TicketCompleted) Kind() Kind { return KindTicketCompleted }
func (TicketCancelled) Kind() Kind { return KindTicketCancelled }
func (InvoiceSent) Kind() Kind     { return KindInvoiceSent }
func (InvoicePaid) Kind() Kind     { return KindInvoicePaid }
func (ContactCreated) Kind() Kind  { return KindContactCreated }
func (NoteCreated) Kind() Kind     { return KindNoteCreated }
func (LeadConverted) Kind() Kind   { return KindLeadConverted }
