package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/persistence"
	"github.com/spec-kit/field-service/internal/repository"
	"github.com/spec-kit/field-service/pkg/util"
)

// LineItemService manages charges on tickets. Items of a closed ticket cannot change.
type LineItemService struct {
	base
	tickets   repository.TicketRepository
	catalog   repository.CatalogRepository
	lineItems repository.LineItemRepository
}

func NewLineItemService(deps Dependencies) *LineItemService {
	return &LineItemService{
		base:      newBase(deps),
		tickets:   deps.Tickets,
		catalog:   deps.Catalog,
		lineItems: deps.LineItems,
	}
}

// Add prices and stores a line item on an open ticket.
func (s *LineItemService) Add(ctx context.Context, in domain.LineItemCreate) (*domain.LineItem, error) {
	if err := domain.Validate(in); err != nil {
		return nil, err
	}
	var out *domain.LineItem
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		if _, err := s.openTicket(ctx, sess, in.TicketID); err != nil {
			return err
		}
		var svc *domain.CatalogItem
		if in.ServiceID != nil {
			var err error
			if svc, err = s.catalog.Get(ctx, sess, *in.ServiceID); err != nil {
				return err
			}
		}
		unit, total, err := domain.ResolvePrice(in, svc)
		if err != nil {
			return err
		}
		item := &domain.LineItem{
			TicketID:        in.TicketID,
			ServiceID:       in.ServiceID,
			Description:     in.Description,
			Quantity:        in.Qty(),
			UnitPriceCents:  unit,
			TotalPriceCents: total,
			DurationMinutes: in.DurationMinutes,
		}
		if item.Description == nil && svc != nil {
			item.Description = ptrTo(svc.Name)
		}
		if err := s.lineItems.Create(ctx, sess, item); err != nil {
			return err
		}
		out = item
		return s.audit.Created(ctx, sess, domain.EntityLineItem, item.ID, item)
	})
	return out, err
}

func (s *LineItemService) Update(ctx context.Context, id uuid.UUID, in domain.LineItemUpdate) (*domain.LineItem, error) {
	if err := domain.Validate(in); err != nil {
		return nil, err
	}
	if in.Quantity != nil && !in.Quantity.IsPositive() {
		return nil, util.NewValidationError("quantity must be positive", nil)
	}
	var out *domain.LineItem
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		current, err := s.lineItems.Get(ctx, sess, id)
		if err != nil {
			return err
		}
		if _, err := s.openTicket(ctx, sess, current.TicketID); err != nil {
			return err
		}
		before := *current
		in.Apply(current)
		current.UpdatedAt = s.clock()
		if err := s.lineItems.Update(ctx, sess, current); err != nil {
			return err
		}
		out = current
		return s.audit.Updated(ctx, sess, domain.EntityLineItem, id, before, current)
	})
	return out, err
}

func (s *LineItemService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		current, err := s.lineItems.Get(ctx, sess, id)
		if err != nil {
			return err
		}
		if _, err := s.openTicket(ctx, sess, current.TicketID); err != nil {
			return err
		}
		if err := s.lineItems.SoftDelete(ctx, sess, id, s.clock()); err != nil {
			return err
		}
		return s.audit.Deleted(ctx, sess, domain.EntityLineItem, id, current)
	})
}

func (s *LineItemService) ListForTicket(ctx context.Context, ticketID uuid.UUID) ([]domain.LineItem, error) {
	var out []domain.LineItem
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		var err error
		out, err = s.lineItems.ListByTicket(ctx, sess, ticketID)
		return err
	})
	return out, err
}

func (s *LineItemService) openTicket(ctx context.Context, sess *persistence.Session, id uuid.UUID) (*domain.Ticket, error) {
	t, err := s.tickets.Get(ctx, sess, id)
	if err != nil {
		return nil, err
	}
	if t.IsClosed() {
		return nil, util.NewImmutable(domain.EntityTicket, t.ID.String(), "line items of a closed ticket cannot change")
	}
	return t, nil
}
