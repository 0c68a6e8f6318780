package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/persistence"
	"github.com/spec-kit/field-service/internal/repository"
	"github.com/spec-kit/field-service/pkg/util"
)

// AddressService manages service locations. A contact has at most one primary address.
type AddressService struct {
	base
	contacts  repository.ContactRepository
	addresses repository.AddressRepository
	tickets   repository.TicketRepository
}

func NewAddressService(deps Dependencies) *AddressService {
	return &AddressService{base: newBase(deps), contacts: deps.Contacts, addresses: deps.Addresses, tickets: deps.Tickets}
}

func (s *AddressService) Create(ctx context.Context, in domain.AddressCreate) (*domain.Address, error) {
	if err := domain.Validate(in); err != nil {
		return nil, err
	}
	addr := &domain.Address{
		ContactID: in.ContactID,
		Label:     in.Label,
		Street:    in.Street,
		Street2:   in.Street2,
		City:      in.City,
		State:     in.State,
		Zip:       in.Zip,
		Notes:     in.Notes,
		IsPrimary: in.IsPrimary,
	}
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		if _, err := s.contacts.Get(ctx, sess, in.ContactID); err != nil {
			return err
		}
		if err := s.addresses.Create(ctx, sess, addr); err != nil {
			return err
		}
		if addr.IsPrimary {
			if err := s.addresses.ClearPrimary(ctx, sess, addr.ContactID, addr.ID); err != nil {
				return err
			}
		}
		return s.audit.Created(ctx, sess, domain.EntityAddress, addr.ID, addr)
	})
	if err != nil {
		return nil, err
	}
	return addr, nil
}

func (s *AddressService) Get(ctx context.Context, id uuid.UUID) (*domain.Address, error) {
	var out *domain.Address
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		var err error
		out, err = s.addresses.Get(ctx, sess, id)
		return err
	})
	return out, err
}

func (s *AddressService) Update(ctx context.Context, id uuid.UUID, in domain.AddressUpdate) (*domain.Address, error) {
	if err := domain.Validate(in); err != nil {
		return nil, err
	}
	var out *domain.Address
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		current, err := s.addresses.Get(ctx, sess, id)
		if err != nil {
			return err
		}
		before := *current
		in.Apply(current)
		current.UpdatedAt = s.clock()
		if err := s.addresses.Update(ctx, sess, current); err != nil {
			return err
		}
		if current.IsPrimary && !before.IsPrimary {
			if err := s.addresses.ClearPrimary(ctx, sess, current.ContactID, current.ID); err != nil {
				return err
			}
		}
		out = current
		return s.audit.Updated(ctx, sess, domain.EntityAddress, id, before, current)
	})
	return out, err
}

// Delete removes the address row. Addresses still referenced by a ticket stay.
func (s *AddressService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		current, err := s.addresses.Get(ctx, sess, id)
		if err != nil {
			return err
		}
		refs, err := s.tickets.CountByAddress(ctx, sess, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return util.NewConflict("address is referenced by tickets", map[string]any{"id": id.String(), "tickets": refs})
		}
		if err := s.addresses.Delete(ctx, sess, id); err != nil {
			return err
		}
		return s.audit.Deleted(ctx, sess, domain.EntityAddress, id, current)
	})
}

// ListForContact returns the contact's addresses, primary first.
func (s *AddressService) ListForContact(ctx context.Context, contactID uuid.UUID) ([]domain.Address, error) {
	var out []domain.Address
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		var err error
		out, err = s.addresses.ListByContact(ctx, sess, contactID)
		return err
	})
	return out, err
}
