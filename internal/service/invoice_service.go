package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/persistence"
	"github.com/spec-kit/field-service/internal/repository"
	"github.com/spec-kit/field-service/pkg/util"
)

// InvoiceService issues invoices and records payments.
type InvoiceService struct {
	base
	contacts  repository.ContactRepository
	tickets   repository.TicketRepository
	lineItems repository.LineItemRepository
	invoices  repository.InvoiceRepository
	numberer  repository.InvoiceNumberer
}

func NewInvoiceService(deps Dependencies) *InvoiceService {
	numberer := deps.Numberer
	if numberer == nil {
		numberer = repository.NewSQLInvoiceNumberer(deps.Invoices)
	}
	return &InvoiceService{
		base:      newBase(deps),
		contacts:  deps.Contacts,
		tickets:   deps.Tickets,
		lineItems: deps.LineItems,
		invoices:  deps.Invoices,
		numberer:  numberer,
	}
}

// CreateFromTicket drafts an invoice whose subtotal is the sum of the ticket's line items.
// A ticket holds at most one invoice that is not void.
func (s *InvoiceService) CreateFromTicket(ctx context.Context, in domain.InvoiceFromTicket) (*domain.Invoice, error) {
	if err := domain.Validate(in); err != nil {
		return nil, err
	}
	var out *domain.Invoice
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		ticket, err := s.tickets.Get(ctx, sess, in.TicketID)
		if err != nil {
			return err
		}
		existing, err := s.invoices.List(ctx, sess, repository.InvoiceFilter{
			TicketID: &ticket.ID,
			Statuses: []domain.InvoiceStatus{domain.InvoiceStatusDraft, domain.InvoiceStatusSent, domain.InvoiceStatusPartial, domain.InvoiceStatusPaid},
			Limit:    1,
		})
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return util.NewConflict("ticket already has an invoice", map[string]any{
				"ticket_id":  ticket.ID.String(),
				"invoice_id": existing[0].ID.String(),
			})
		}
		items, err := s.lineItems.ListByTicket(ctx, sess, ticket.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return util.NewValidationError("ticket has no line items to invoice", map[string]any{"ticket_id": ticket.ID.String()})
		}
		var subtotal int64
		for _, li := range items {
			subtotal += li.TotalPriceCents
		}
		ticketID := ticket.ID
		out, err = s.issue(ctx, sess, &domain.Invoice{
			ContactID:     ticket.ContactID,
			TicketID:      &ticketID,
			SubtotalCents: subtotal,
			TaxRateBps:    in.TaxRateBps,
			DueAt:         in.DueAt,
			Notes:         in.Notes,
		})
		return err
	})
	return out, err
}

// CreateStandalone drafts an invoice with no ticket.
func (s *InvoiceService) CreateStandalone(ctx context.Context, in domain.StandaloneInvoice) (*domain.Invoice, error) {
	if err := domain.Validate(in); err != nil {
		return nil, err
	}
	var out *domain.Invoice
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		if _, err := s.contacts.Get(ctx, sess, in.ContactID); err != nil {
			return err
		}
		var err error
		out, err = s.issue(ctx, sess, &domain.Invoice{
			ContactID:     in.ContactID,
			SubtotalCents: in.SubtotalCents,
			TaxRateBps:    in.TaxRateBps,
			DueAt:         in.DueAt,
			Notes:         in.Notes,
		})
		return err
	})
	return out, err
}

func (s *InvoiceService) issue(ctx context.Context, sess *persistence.Session, inv *domain.Invoice) (*domain.Invoice, error) {
	now := s.clock()
	number, err := s.numberer.Next(ctx, sess, now)
	if err != nil {
		return nil, err
	}
	inv.InvoiceNumber = number
	inv.Status = domain.InvoiceStatusDraft
	inv.TaxAmountCents = domain.ComputeTax(inv.SubtotalCents, inv.TaxRateBps)
	inv.TotalAmountCents = inv.SubtotalCents + inv.TaxAmountCents
	inv.IssuedAt = &now
	if err := s.invoices.Create(ctx, sess, inv); err != nil {
		return nil, err
	}
	if err := s.audit.Created(ctx, sess, domain.EntityInvoice, inv.ID, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// Send marks a draft invoice as sent.
func (s *InvoiceService) Send(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	inv, err := s.transition(ctx, id, func(inv *domain.Invoice) error {
		if err := domain.InvoiceLifecycle.Validate(inv.Status, domain.InvoiceStatusSent); err != nil {
			return err
		}
		now := s.clock()
		inv.Status = domain.InvoiceStatusSent
		inv.SentAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.InvoiceSent{Meta: s.meta(ctx), Invoice: *inv})
	return inv, nil
}

// RecordPayment applies a payment. The invoice becomes paid when nothing remains,
// partial otherwise. Overpayment is rejected.
func (s *InvoiceService) RecordPayment(ctx context.Context, in domain.PaymentInput) (*domain.Invoice, error) {
	if err := domain.Validate(in); err != nil {
		return nil, err
	}
	inv, err := s.transition(ctx, in.InvoiceID, func(inv *domain.Invoice) error {
		if in.AmountCents > inv.BalanceCents() && !domain.InvoiceLifecycle.IsTerminal(inv.Status) {
			return util.NewValidationError("payment exceeds balance", map[string]any{
				"balance_cents": inv.BalanceCents(),
				"amount_cents":  in.AmountCents,
			})
		}
		next := domain.InvoiceStatusPartial
		if inv.AmountPaidCents+in.AmountCents >= inv.TotalAmountCents {
			next = domain.InvoiceStatusPaid
		}
		if err := domain.InvoiceLifecycle.Validate(inv.Status, next); err != nil {
			return err
		}
		inv.AmountPaidCents += in.AmountCents
		inv.Status = next
		if next == domain.InvoiceStatusPaid {
			now := s.clock()
			inv.PaidAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.InvoicePaid{Meta: s.meta(ctx), Invoice: *inv, AmountCents: in.AmountCents})
	return inv, nil
}

// Void cancels an unpaid invoice.
func (s *InvoiceService) Void(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	return s.transition(ctx, id, func(inv *domain.Invoice) error {
		if err := domain.InvoiceLifecycle.Validate(inv.Status, domain.InvoiceStatusVoid); err != nil {
			return err
		}
		now := s.clock()
		inv.Status = domain.InvoiceStatusVoid
		inv.VoidedAt = &now
		return nil
	})
}

func (s *InvoiceService) Get(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	var out *domain.Invoice
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		var err error
		out, err = s.invoices.Get(ctx, sess, id)
		return err
	})
	return out, err
}

func (s *InvoiceService) List(ctx context.Context, filter repository.InvoiceFilter) ([]domain.Invoice, error) {
	var out []domain.Invoice
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		var err error
		out, err = s.invoices.List(ctx, sess, filter)
		return err
	})
	return out, err
}

func (s *InvoiceService) transition(ctx context.Context, id uuid.UUID, fn func(*domain.Invoice) error) (*domain.Invoice, error) {
	var out *domain.Invoice
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		current, err := s.invoices.Get(ctx, sess, id)
		if err != nil {
			return err
		}
		before := *current
		if err := fn(current); err != nil {
			return err
		}
		current.UpdatedAt = s.clock()
		if err := s.invoices.Update(ctx, sess, current); err != nil {
			return err
		}
		out = current
		return s.audit.Updated(ctx, sess, domain.EntityInvoice, id, before, current)
	})
	return out, err
}
