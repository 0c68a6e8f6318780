package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/field-service/internal/statemachine"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "draft"
	InvoiceStatusSent    InvoiceStatus = "sent"
	InvoiceStatusPartial InvoiceStatus = "partial"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusVoid    InvoiceStatus = "void"
)

// InvoiceLifecycle allows repeated partial payments before paid.
var InvoiceLifecycle = statemachine.New("invoice", map[InvoiceStatus][]InvoiceStatus{
	InvoiceStatusDraft:   {InvoiceStatusSent, InvoiceStatusVoid},
	InvoiceStatusSent:    {InvoiceStatusPartial, InvoiceStatusPaid, InvoiceStatusVoid},
	InvoiceStatusPartial: {InvoiceStatusPartial, InvoiceStatusPaid, InvoiceStatusVoid},
	InvoiceStatusPaid:    {},
	InvoiceStatusVoid:    {},
})

type Invoice struct {
	ID               uuid.UUID     `db:"id" json:"id"`
	TenantID         uuid.UUID     `db:"tenant_id" json:"tenant_id"`
	ContactID        uuid.UUID     `db:"contact_id" json:"contact_id"`
	TicketID         *uuid.UUID    `db:"ticket_id" json:"ticket_id"`
	InvoiceNumber    string        `db:"invoice_number" json:"invoice_number"`
	Status           InvoiceStatus `db:"status" json:"status"`
	SubtotalCents    int64         `db:"subtotal_cents" json:"subtotal_cents"`
	TaxRateBps       int           `db:"tax_rate_bps" json:"tax_rate_bps"`
	TaxAmountCents   int64         `db:"tax_amount_cents" json:"tax_amount_cents"`
	TotalAmountCents int64         `db:"total_amount_cents" json:"total_amount_cents"`
	AmountPaidCents  int64         `db:"amount_paid_cents" json:"amount_paid_cents"`
	IssuedAt         *time.Time    `db:"issued_at" json:"issued_at"`
	DueAt            *time.Time    `db:"due_at" json:"due_at"`
	SentAt           *time.Time    `db:"sent_at" json:"sent_at"`
	PaidAt           *time.Time    `db:"paid_at" json:"paid_at"`
	VoidedAt         *time.Time    `db:"voided_at" json:"voided_at"`
	Notes            *string       `db:"notes" json:"notes"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
	DeletedAt        *time.Time    `db:"deleted_at" json:"deleted_at"`
}

// BalanceCents is what remains to be paid.
func (i Invoice) BalanceCents() int64 {
	return i.TotalAmountCents - i.AmountPaidCents
}

// InvoiceFromTicket builds an invoice from a ticket's line items.
type InvoiceFromTicket struct {
	TicketID   uuid.UUID  `json:"ticket_id" validate:"required"`
	TaxRateBps int        `json:"tax_rate_bps" validate:"gte=0,lte=10000"`
	DueAt      *time.Time `json:"due_at"`
	Notes      *string    `json:"notes" validate:"omitempty,max=10000"`
}

// StandaloneInvoice is an invoice with no ticket behind it.
type StandaloneInvoice struct {
	ContactID     uuid.UUID  `json:"contact_id" validate:"required"`
	SubtotalCents int64      `json:"subtotal_cents" validate:"gte=0"`
	TaxRateBps    int        `json:"tax_rate_bps" validate:"gte=0,lte=10000"`
	DueAt         *time.Time `json:"due_at"`
	Notes         *string    `json:"notes" validate:"omitempty,max=10000"`
}

type PaymentInput struct {
	InvoiceID   uuid.UUID `json:"invoice_id" validate:"required"`
	AmountCents int64     `json:"amount_cents" validate:"gt=0"`
}

// ComputeTax returns floor(subtotal * bps / 10000).
func ComputeTax(subtotalCents int64, bps int) int64 {
	return decimal.NewFromInt(subtotalCents).
		Mul(decimal.NewFromInt(int64(bps))).
		Div(decimal.NewFromInt(10000)).
		Floor().
		IntPart()
}

// FormatInvoiceNumber renders INV-YYYYMMDD-NNNN.
func FormatInvoiceNumber(day time.Time, seq int64) string {
	return fmt.Sprintf("INV-%s-%04d", day.UTC().Format("20060102"), seq)
}
