package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/statemachine"
)

type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusCancelled MessageStatus = "cancelled"
	MessageStatusFailed    MessageStatus = "failed"
)

// MessageLifecycle lets a failed message return to pending; the retry bound is enforced
// by MaxDeliveryAttempts.
var MessageLifecycle = statemachine.New("scheduled_message", map[MessageStatus][]MessageStatus{
	MessageStatusPending:   {MessageStatusSent, MessageStatusCancelled, MessageStatusFailed},
	MessageStatusFailed:    {MessageStatusPending},
	MessageStatusSent:      {},
	MessageStatusCancelled: {},
})

const (
	MaxDeliveryAttempts = 3
	retryBaseDelay      = 5 * time.Minute
)

const (
	MessageTypeServiceReminder = "service_reminder"
	MessageTypeReceipt         = "receipt"
	MessageTypeCustom          = "custom"
)

type ScheduledMessage struct {
	ID           uuid.UUID     `db:"id" json:"id"`
	TenantID     uuid.UUID     `db:"tenant_id" json:"tenant_id"`
	ContactID    uuid.UUID     `db:"contact_id" json:"contact_id"`
	TicketID     *uuid.UUID    `db:"ticket_id" json:"ticket_id"`
	MessageType  string        `db:"message_type" json:"message_type"`
	TemplateName *string       `db:"template_name" json:"template_name"`
	Subject      *string       `db:"subject" json:"subject"`
	Body         *string       `db:"body" json:"body"`
	ScheduledFor time.Time     `db:"scheduled_for" json:"scheduled_for"`
	Status       MessageStatus `db:"status" json:"status"`
	Attempts     int           `db:"attempts" json:"attempts"`
	LastError    *string       `db:"last_error" json:"last_error"`
	SentAt       *time.Time    `db:"sent_at" json:"sent_at"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updated_at"`
}

// CanRetry reports whether another delivery attempt is allowed.
func (m ScheduledMessage) CanRetry() bool {
	return m.Attempts < MaxDeliveryAttempts
}

// RetryBackoff returns the delay before the next attempt: 5m, 10m, 20m...
func RetryBackoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	return retryBaseDelay << (attempts - 1)
}

type MessageSchedule struct {
	ContactID    uuid.UUID  `json:"contact_id" validate:"required"`
	TicketID     *uuid.UUID `json:"ticket_id"`
	MessageType  string     `json:"message_type" validate:"required,oneof=service_reminder receipt custom"`
	TemplateName *string    `json:"template_name" validate:"omitempty,max=100"`
	Subject      *string    `json:"subject" validate:"omitempty,max=500"`
	Body         *string    `json:"body" validate:"omitempty,max=50000"`
	ScheduledFor time.Time  `json:"scheduled_for" validate:"required"`
}
