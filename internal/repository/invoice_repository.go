package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/persistence"
)

const invoiceColumns = `id, tenant_id, contact_id, ticket_id, invoice_number, status, subtotal_cents, tax_rate_bps,
        tax_amount_cents, total_amount_cents, amount_paid_cents, issued_at, due_at, sent_at, paid_at, voided_at,
        notes, created_at, updated_at, deleted_at`

type InvoiceFilter struct {
	ContactID *uuid.UUID
	TicketID  *uuid.UUID
	Statuses  []domain.InvoiceStatus
	Search    string
	Limit     int
	Offset    int
}

type InvoiceRepository interface {
	Create(ctx context.Context, s *persistence.Session, inv *domain.Invoice) error
	Get(ctx context.Context, s *persistence.Session, id uuid.UUID) (*domain.Invoice, error)
	Update(ctx context.Context, s *persistence.Session, inv *domain.Invoice) error
	List(ctx context.Context, s *persistence.Session, filter InvoiceFilter) ([]domain.Invoice, error)
	// MaxSequence returns the highest NNNN used with the INV-YYYYMMDD- prefix, or 0.
	MaxSequence(ctx context.Context, s *persistence.Session, prefix string) (int64, error)
	// LockSequence serializes number allocation for prefix until the transaction ends.
	LockSequence(ctx context.Context, s *persistence.Session, prefix string) error
}

type invoiceRepository struct{}

func NewInvoiceRepository() InvoiceRepository {
	return &invoiceRepository{}
}

func (r *invoiceRepository) Create(ctx context.Context, s *persistence.Session, inv *domain.Invoice) error {
	tenantID, err := tenantOf(s)
	if err != nil {
		return err
	}
	query := `
        INSERT INTO invoices (tenant_id, contact_id, ticket_id, invoice_number, status, subtotal_cents, tax_rate_bps,
            tax_amount_cents, total_amount_cents, amount_paid_cents, issued_at, due_at, notes)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING ` + invoiceColumns
	out, err := persistence.Optional[domain.Invoice](ctx, s, query,
		tenantID,
		inv.ContactID,
		inv.TicketID,
		inv.InvoiceNumber,
		inv.Status,
		inv.SubtotalCents,
		inv.TaxRateBps,
		inv.TaxAmountCents,
		inv.TotalAmountCents,
		inv.AmountPaidCents,
		inv.IssuedAt,
		inv.DueAt,
		inv.Notes,
	)
	if err != nil {
		return err
	}
	*inv = *out
	return nil
}

func (r *invoiceRepository) Get(ctx context.Context, s *persistence.Session, id uuid.UUID) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id=$1 AND deleted_at IS NULL`
	inv, err := persistence.Optional[domain.Invoice](ctx, s, query, id)
	return found(inv, err, "invoice", id)
}

func (r *invoiceRepository) Update(ctx context.Context, s *persistence.Session, inv *domain.Invoice) error {
	const query = `
        UPDATE invoices SET status=$1, subtotal_cents=$2, tax_rate_bps=$3, tax_amount_cents=$4, total_amount_cents=$5,
            amount_paid_cents=$6, due_at=$7, sent_at=$8, paid_at=$9, voided_at=$10, notes=$11, updated_at=$12
        WHERE id=$13 AND deleted_at IS NULL`
	n, err := persistence.Exec(ctx, s, query,
		inv.Status,
		inv.SubtotalCents,
		inv.TaxRateBps,
		inv.TaxAmountCents,
		inv.TotalAmountCents,
		inv.AmountPaidCents,
		inv.DueAt,
		inv.SentAt,
		inv.PaidAt,
		inv.VoidedAt,
		inv.Notes,
		inv.UpdatedAt,
		inv.ID,
	)
	return affected(n, err, "invoice", inv.ID)
}

func (r *invoiceRepository) List(ctx context.Context, s *persistence.Session, filter InvoiceFilter) ([]domain.Invoice, error) {
	w := &where{}
	w.raw("deleted_at IS NULL")
	if filter.ContactID != nil {
		w.add("contact_id=$%d", *filter.ContactID)
	}
	if filter.TicketID != nil {
		w.add("ticket_id=$%d", *filter.TicketID)
	}
	addIn(w, "status", filter.Statuses)
	w.search(filter.Search, "invoice_number", "notes")

	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		invoiceColumns, w, ClampLimit(filter.Limit), max(filter.Offset, 0))
	return persistence.All[domain.Invoice](ctx, s, query, w.args...)
}

func (r *invoiceRepository) MaxSequence(ctx context.Context, s *persistence.Session, prefix string) (int64, error) {
	const query = `
        SELECT COALESCE(MAX(CAST(SUBSTRING(invoice_number FROM LENGTH($1) + 1) AS BIGINT)), 0)
        FROM invoices WHERE invoice_number LIKE $1 || '%'`
	return persistence.Scalar[int64](ctx, s, query, prefix)
}

func (r *invoiceRepository) LockSequence(ctx context.Context, s *persistence.Session, prefix string) error {
	_, err := persistence.Exec(ctx, s, `SELECT pg_advisory_xact_lock(hashtext($1))`, s.TenantID().String()+prefix)
	return err
}
