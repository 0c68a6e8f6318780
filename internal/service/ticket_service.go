package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/persistence"
	"github.com/spec-kit/field-service/internal/repository"
	"github.com/spec-kit/field-service/pkg/util"
)

// TicketService owns the ticket lifecycle including the two phase close-out.
type TicketService struct {
	base
	contacts       repository.ContactRepository
	addresses      repository.AddressRepository
	tickets        repository.TicketRepository
	authorizations repository.AuthorizationRepository
	extractor      Extractor
}

func NewTicketService(deps Dependencies) *TicketService {
	extractor := deps.Extractor
	if extractor == nil {
		extractor = NoopExtractor{}
	}
	return &TicketService{
		base:           newBase(deps),
		contacts:       deps.Contacts,
		addresses:      deps.Addresses,
		tickets:        deps.Tickets,
		authorizations: deps.Authorizations,
		extractor:      extractor,
	}
}

// Create schedules a ticket at one of the contact's addresses.
func (s *TicketService) Create(ctx context.Context, in domain.TicketCreate) (*domain.Ticket, error) {
	if err := domain.Validate(in); err != nil {
		return nil, err
	}
	ticket := &domain.Ticket{
		ContactID:                in.ContactID,
		AddressID:                in.AddressID,
		Status:                   domain.TicketStatusScheduled,
		ScheduledAt:              in.ScheduledAt.UTC(),
		ScheduledDurationMinutes: in.ScheduledDurationMinutes,
		IsPriceEstimated:         in.IsPriceEstimated,
		Notes:                    in.Notes,
	}
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		if _, err := s.contacts.Get(ctx, sess, in.ContactID); err != nil {
			return err
		}
		if err := s.checkAddress(ctx, sess, in.ContactID, in.AddressID); err != nil {
			return err
		}
		if err := s.tickets.Create(ctx, sess, ticket); err != nil {
			return err
		}
		return s.audit.Created(ctx, sess, domain.EntityTicket, ticket.ID, ticket)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TicketCreated{Meta: s.meta(ctx), Ticket: *ticket})
	return ticket, nil
}

func (s *TicketService) Get(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	var out *domain.Ticket
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		var err error
		out, err = s.tickets.Get(ctx, sess, id)
		return err
	})
	return out, err
}

// Update patches scheduling fields. Closed tickets are immutable.
func (s *TicketService) Update(ctx context.Context, id uuid.UUID, in domain.TicketUpdate) (*domain.Ticket, error) {
	if err := domain.Validate(in); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(ctx context.Context, sess *persistence.Session, t *domain.Ticket) error {
		if in.AddressID != nil && *in.AddressID != t.AddressID {
			if err := s.checkAddress(ctx, sess, t.ContactID, *in.AddressID); err != nil {
				return err
			}
		}
		in.Apply(t)
		t.ScheduledAt = t.ScheduledAt.UTC()
		return nil
	})
}

// ClockIn starts work on a scheduled ticket.
func (s *TicketService) ClockIn(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	ticket, err := s.mutate(ctx, id, func(_ context.Context, _ *persistence.Session, t *domain.Ticket) error {
		if err := domain.TicketLifecycle.Validate(t.Status, domain.TicketStatusInProgress); err != nil {
			return err
		}
		now := s.clock()
		t.Status = domain.TicketStatusInProgress
		t.ClockInAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TicketClockedIn{Meta: s.meta(ctx), Ticket: *ticket})
	return ticket, nil
}

// ClockOut stamps the end of work and the measured duration. The ticket stays
// in_progress until close-out.
func (s *TicketService) ClockOut(ctx context.Context, id uuid.UUID) (*domain.Ticket, error) {
	return s.mutate(ctx, id, func(_ context.Context, _ *persistence.Session, t *domain.Ticket) error {
		if t.Status != domain.TicketStatusInProgress || t.ClockInAt == nil {
			return util.NewInvalidTransition(domain.TicketLifecycle.Entity(), string(t.Status), string(t.Status), "clock out requires a clocked in ticket")
		}
		now := s.clock()
		t.ClockOutAt = &now
		t.ActualDurationMinutes = ptrTo(minutesBetween(*t.ClockInAt, now))
		return nil
	})
}

// Cancel moves a scheduled or in progress ticket to cancelled and closes it.
func (s *TicketService) Cancel(ctx context.Context, id uuid.UUID, reason string) (*domain.Ticket, error) {
	ticket, err := s.mutate(ctx, id, func(_ context.Context, _ *persistence.Session, t *domain.Ticket) error {
		if err := domain.TicketLifecycle.Validate(t.Status, domain.TicketStatusCancelled); err != nil {
			return err
		}
		now := s.clock()
		t.Status = domain.TicketStatusCancelled
		t.ClosedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.TicketCancelled{Meta: s.meta(ctx), Ticket: *ticket, Reason: strings.TrimSpace(reason)})
	return ticket, nil
}

// Delete soft-deletes an open ticket.
func (s *TicketService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		current, err := s.tickets.Get(ctx, sess, id)
		if err != nil {
			return err
		}
		if err := ensureOpen(current); err != nil {
			return err
		}
		if err := s.tickets.SoftDelete(ctx, sess, id, s.clock()); err != nil {
			return err
		}
		return s.audit.Deleted(ctx, sess, domain.EntityTicket, id, current)
	})
}

// ListForContact returns the contact's tickets, latest scheduled first.
func (s *TicketService) ListForContact(ctx context.Context, contactID uuid.UUID, limit int) ([]domain.Ticket, error) {
	return s.List(ctx, repository.TicketFilter{ContactID: &contactID, Limit: limit})
}

// ListByDateRange returns tickets scheduled in [from, to).
func (s *TicketService) ListByDateRange(ctx context.Context, from, to time.Time, statuses []domain.TicketStatus) ([]domain.Ticket, error) {
	if !to.After(from) {
		return nil, util.NewValidationError("date range end must be after start", nil)
	}
	return s.List(ctx, repository.TicketFilter{ScheduledFrom: &from, ScheduledTo: &to, Statuses: statuses, Limit: repository.MaxLimit})
}

func (s *TicketService) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	var out []domain.Ticket
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		var err error
		out, err = s.tickets.List(ctx, sess, filter)
		return err
	})
	return out, err
}

// InitiateCloseOut stores the confirmed duration and notes, then asks the extractor for
// attribute suggestions once the session is released.
func (s *TicketService) InitiateCloseOut(ctx context.Context, id uuid.UUID, in domain.CloseOutInput) (*domain.CloseOutDraft, error) {
	if err := domain.Validate(in); err != nil {
		return nil, err
	}
	var allowed bool
	ticket, err := s.mutate(ctx, id, func(ctx context.Context, sess *persistence.Session, t *domain.Ticket) error {
		if t.Status != domain.TicketStatusInProgress {
			return util.NewInvalidTransition(domain.TicketLifecycle.Entity(), string(t.Status), string(domain.TicketStatusCompleted), "close-out requires an in_progress ticket")
		}
		t.ActualDurationMinutes = ptrTo(in.DurationMinutes)
		if notes := strings.TrimSpace(in.Notes); notes != "" {
			t.Notes = &notes
		}
		var err error
		allowed, err = authorized(ctx, sess, s.authorizations, domain.PurposeNoteExtraction, s.clock())
		return err
	})
	if err != nil {
		return nil, err
	}

	draft := &domain.CloseOutDraft{Ticket: ticket, Suggested: map[string]any{}}
	switch {
	case !allowed:
		draft.ExtractionSkipped, draft.SkipReason = true, "no active model authorization"
	case strings.TrimSpace(in.Notes) == "":
		draft.ExtractionSkipped, draft.SkipReason = true, "no notes to extract from"
	default:
		suggested, err := s.extractor.Extract(ctx, in.Notes)
		if err != nil {
			s.logger.Warn("attribute extraction failed", zap.String("ticket_id", id.String()), zap.Error(err))
			draft.ExtractionSkipped, draft.SkipReason = true, "extraction unavailable"
			break
		}
		draft.Suggested = suggested
	}
	return draft, nil
}

// FinalizeCloseOut completes the ticket and publishes the confirmed attributes and
// follow-up plan.
func (s *TicketService) FinalizeCloseOut(ctx context.Context, id uuid.UUID, in domain.FinalizeInput) (*domain.Ticket, error) {
	if err := domain.Validate(in); err != nil {
		return nil, err
	}
	if in.FollowUp == "" {
		in.FollowUp = domain.FollowUpNone
	}
	if in.FollowUp == domain.FollowUpReachOut && in.FollowUpMonths < 1 {
		return nil, util.NewValidationError("follow_up_months must be at least 1 for reach_out", nil)
	}
	ticket, err := s.mutate(ctx, id, func(_ context.Context, _ *persistence.Session, t *domain.Ticket) error {
		if err := domain.TicketLifecycle.Validate(t.Status, domain.TicketStatusCompleted); err != nil {
			return err
		}
		now := s.clock()
		t.Status = domain.TicketStatusCompleted
		t.ClosedAt = &now
		if t.ClockOutAt == nil {
			t.ClockOutAt = &now
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	notes := ""
	if ticket.Notes != nil {
		notes = *ticket.Notes
	}
	s.publish(ctx, events.TicketCompleted{
		Meta:           s.meta(ctx),
		Ticket:         *ticket,
		Notes:          notes,
		Attributes:     in.Attributes,
		FollowUp:       in.FollowUp,
		FollowUpMonths: in.FollowUpMonths,
	})
	return ticket, nil
}

// mutate loads an open ticket, applies fn and persists the result with its audit diff.
func (s *TicketService) mutate(ctx context.Context, id uuid.UUID, fn func(context.Context, *persistence.Session, *domain.Ticket) error) (*domain.Ticket, error) {
	var out *domain.Ticket
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		current, err := s.tickets.Get(ctx, sess, id)
		if err != nil {
			return err
		}
		if err := ensureOpen(current); err != nil {
			return err
		}
		before := *current
		if err := fn(ctx, sess, current); err != nil {
			return err
		}
		current.UpdatedAt = s.clock()
		if err := s.tickets.Update(ctx, sess, current); err != nil {
			return err
		}
		out = current
		return s.audit.Updated(ctx, sess, domain.EntityTicket, id, before, current)
	})
	return out, err
}

func (s *TicketService) checkAddress(ctx context.Context, sess *persistence.Session, contactID, addressID uuid.UUID) error {
	addr, err := s.addresses.Get(ctx, sess, addressID)
	if err != nil {
		return err
	}
	if addr.ContactID != contactID {
		return util.NewValidationError("address does not belong to contact", map[string]any{
			"address_id": addressID.String(),
			"contact_id": contactID.String(),
		})
	}
	return nil
}

// ensureOpen rejects any change to a closed ticket.
func ensureOpen(t *domain.Ticket) error {
	if t.IsClosed() {
		return util.NewImmutable(domain.EntityTicket, t.ID.String(), "ticket is closed")
	}
	return nil
}

func minutesBetween(from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	return int(to.Sub(from).Round(time.Minute) / time.Minute)
}
