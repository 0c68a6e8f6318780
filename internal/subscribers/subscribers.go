// Package subscribers wires the side effects of domain events. Handlers run after the
// publishing mutation committed, each in its own unit of work.
package subscribers

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/service"
	"github.com/spec-kit/field-service/internal/tenant"
)

const (
	templateServiceReminder = "service_reminder"
	templateReceipt         = "payment_receipt"
)

// Dependencies for the handlers. Extractor defaults to service.NoopExtractor.
type Dependencies struct {
	Attributes     *service.AttributeService
	Authorizations *service.AuthorizationService
	Messages       service.MessageScheduler
	Extractor      service.Extractor
	Logger         *zap.Logger
}

type handlers struct {
	deps Dependencies
}

// Register subscribes every handler on d.
func Register(d *events.Dispatcher, deps Dependencies) {
	if deps.Extractor == nil {
		deps.Extractor = service.NoopExtractor{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	h := &handlers{deps: deps}
	events.Subscribe(d, "attributes.persist_confirmed", h.persistConfirmed)
	events.Subscribe(d, "messages.schedule_follow_up", h.scheduleFollowUp)
	events.Subscribe(d, "messages.cancel_for_ticket", h.cancelForTicket)
	events.Subscribe(d, "messages.schedule_receipt", h.scheduleReceipt)
	events.Subscribe(d, "attributes.extract_from_note", h.extractFromNote)
}

// scoped binds the event's tenant and actor so handler writes are attributed to the
// caller that triggered them.
func scoped(ctx context.Context, meta events.Meta) context.Context {
	return tenant.WithIdentity(ctx, tenant.Identity{TenantID: meta.TenantID, ActorID: meta.ActorID})
}

func (h *handlers) persistConfirmed(ctx context.Context, e events.TicketCompleted) error {
	return h.deps.Attributes.PersistConfirmed(scoped(ctx, e.Meta), e.Ticket, e.Notes, e.Attributes)
}

func (h *handlers) scheduleFollowUp(ctx context.Context, e events.TicketCompleted) error {
	if e.FollowUp != domain.FollowUpReachOut || e.FollowUpMonths < 1 {
		return nil
	}
	ticketID := e.Ticket.ID
	template := templateServiceReminder
	_, err := h.deps.Messages.Schedule(scoped(ctx, e.Meta), domain.MessageSchedule{
		ContactID:    e.Ticket.ContactID,
		TicketID:     &ticketID,
		MessageType:  domain.MessageTypeServiceReminder,
		TemplateName: &template,
		ScheduledFor: e.OccurredAt.AddDate(0, e.FollowUpMonths, 0),
	})
	return err
}

func (h *handlers) cancelForTicket(ctx context.Context, e events.TicketCancelled) error {
	reason := "ticket cancelled"
	if e.Reason != "" {
		reason += ": " + e.Reason
	}
	n, err := h.deps.Messages.CancelPendingForTicket(scoped(ctx, e.Meta), e.Ticket.ID, reason)
	if err != nil {
		return err
	}
	if n > 0 {
		h.deps.Logger.Info("pending messages cancelled",
			zap.String("ticket_id", e.Ticket.ID.String()),
			zap.Int("count", n))
	}
	return nil
}

func (h *handlers) scheduleReceipt(ctx context.Context, e events.InvoicePaid) error {
	template := templateReceipt
	subject := fmt.Sprintf("Receipt for invoice %s", e.Invoice.InvoiceNumber)
	body := fmt.Sprintf("We received your payment of $%s. Remaining balance: $%s.",
		cents(e.AmountCents), cents(e.Invoice.BalanceCents()))
	_, err := h.deps.Messages.Schedule(scoped(ctx, e.Meta), domain.MessageSchedule{
		ContactID:    e.Invoice.ContactID,
		TicketID:     e.Invoice.TicketID,
		MessageType:  domain.MessageTypeReceipt,
		TemplateName: &template,
		Subject:      &subject,
		Body:         &body,
		ScheduledFor: e.OccurredAt,
	})
	return err
}

func (h *handlers) extractFromNote(ctx context.Context, e events.NoteCreated) error {
	if e.Note.ContactID == nil {
		return nil
	}
	ctx = scoped(ctx, e.Meta)
	allowed, err := h.deps.Authorizations.IsActive(ctx, domain.PurposeNoteExtraction)
	if err != nil || !allowed {
		return err
	}

	started := time.Now()
	attrs, err := h.deps.Extractor.Extract(ctx, e.Note.Content)
	if err != nil {
		return fmt.Errorf("extract note %s: %w", e.Note.ID, err)
	}
	stored, err := h.deps.Attributes.StoreExtracted(ctx, e.Note.ID, attrs)
	if err != nil {
		return err
	}
	h.deps.Logger.Info("note attributes extracted",
		zap.String("note_id", e.Note.ID.String()),
		zap.Int("suggested", len(attrs)),
		zap.Int("stored", stored),
		zap.Duration("took", time.Since(started)))
	return nil
}

func cents(v int64) string {
	return decimal.New(v, -2).StringFixed(2)
}
