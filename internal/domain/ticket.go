package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/statemachine"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusScheduled  TicketStatus = "scheduled"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusCompleted  TicketStatus = "completed"
	TicketStatusCancelled  TicketStatus = "cancelled"
)

// TicketLifecycle is the ticket transition table. Completion must pass through in_progress.
var TicketLifecycle = statemachine.New("ticket", map[TicketStatus][]TicketStatus{
	TicketStatusScheduled:  {TicketStatusInProgress, TicketStatusCancelled},
	TicketStatusInProgress: {TicketStatusCompleted, TicketStatusCancelled},
	TicketStatusCompleted:  {},
	TicketStatusCancelled:  {},
})

// Ticket is one appointment / job.
type Ticket struct {
	ID                       uuid.UUID    `db:"id" json:"id"`
	TenantID                 uuid.UUID    `db:"tenant_id" json:"tenant_id"`
	ContactID                uuid.UUID    `db:"contact_id" json:"contact_id"`
	AddressID                uuid.UUID    `db:"address_id" json:"address_id"`
	Status                   TicketStatus `db:"status" json:"status"`
	ScheduledAt              time.Time    `db:"scheduled_at" json:"scheduled_at"`
	ScheduledDurationMinutes *int         `db:"scheduled_duration_minutes" json:"scheduled_duration_minutes"`
	ClockInAt                *time.Time   `db:"clock_in_at" json:"clock_in_at"`
	ClockOutAt               *time.Time   `db:"clock_out_at" json:"clock_out_at"`
	ActualDurationMinutes    *int         `db:"actual_duration_minutes" json:"actual_duration_minutes"`
	Notes                    *string      `db:"notes" json:"notes"`
	IsPriceEstimated         bool         `db:"is_price_estimated" json:"is_price_estimated"`
	ClosedAt                 *time.Time   `db:"closed_at" json:"closed_at"`
	CreatedAt                time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time    `db:"updated_at" json:"updated_at"`
	DeletedAt                *time.Time   `db:"deleted_at" json:"deleted_at"`
}

// IsClosed reports whether the ticket has been closed and is immutable.
func (t Ticket) IsClosed() bool {
	return t.ClosedAt != nil
}

type TicketCreate struct {
	ContactID                uuid.UUID `json:"contact_id" validate:"required"`
	AddressID                uuid.UUID `json:"address_id" validate:"required"`
	ScheduledAt              time.Time `json:"scheduled_at" validate:"required"`
	ScheduledDurationMinutes *int      `json:"scheduled_duration_minutes" validate:"omitempty,gte=1"`
	IsPriceEstimated         bool      `json:"is_price_estimated"`
	Notes                    *string   `json:"notes" validate:"omitempty,max=50000"`
}

type TicketUpdate struct {
	AddressID                *uuid.UUID `json:"address_id"`
	ScheduledAt              *time.Time `json:"scheduled_at"`
	ScheduledDurationMinutes *int       `json:"scheduled_duration_minutes" validate:"omitempty,gte=1"`
	IsPriceEstimated         *bool      `json:"is_price_estimated"`
	Notes                    *string    `json:"notes" validate:"omitempty,max=50000"`
}

func (in TicketUpdate) Apply(t *Ticket) {
	if in.AddressID != nil {
		t.AddressID = *in.AddressID
	}
	if in.ScheduledAt != nil {
		t.ScheduledAt = *in.ScheduledAt
	}
	if in.IsPriceEstimated != nil {
		t.IsPriceEstimated = *in.IsPriceEstimated
	}
	setIf(&t.ScheduledDurationMinutes, in.ScheduledDurationMinutes)
	setIf(&t.Notes, in.Notes)
}

// FollowUpPlan is what happens after a ticket completes.
type FollowUpPlan string

const (
	FollowUpNone     FollowUpPlan = "none"
	FollowUpReachOut FollowUpPlan = "reach_out"
)

// CloseOutInput is phase one of close-out: human confirmed duration and notes.
type CloseOutInput struct {
	DurationMinutes int    `json:"duration_minutes" validate:"gte=0,lte=10080"`
	Notes           string `json:"notes" validate:"max=50000"`
}

// CloseOutDraft is returned by phase one for human review.
type CloseOutDraft struct {
	Ticket            *Ticket        `json:"ticket"`
	Suggested         map[string]any `json:"suggested_attributes"`
	ExtractionSkipped bool           `json:"extraction_skipped"`
	SkipReason        string         `json:"skip_reason,omitempty"`
}

// FinalizeInput is phase two of close-out: reviewed attributes and follow-up.
type FinalizeInput struct {
	Attributes     map[string]any `json:"attributes" validate:"omitempty,dive,keys,min=1,max=100,endkeys"`
	FollowUp       FollowUpPlan   `json:"follow_up" validate:"omitempty,oneof=none reach_out"`
	FollowUpMonths int            `json:"follow_up_months" validate:"gte=0,lte=60"`
}
