package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/persistence"
	"github.com/spec-kit/field-service/internal/repository"
)

// ContactService manages customer records.
type ContactService struct {
	base
	contacts repository.ContactRepository
}

func NewContactService(deps Dependencies) *ContactService {
	return &ContactService{base: newBase(deps), contacts: deps.Contacts}
}

// Create stores a contact and announces it.
func (s *ContactService) Create(ctx context.Context, in domain.ContactCreate) (*domain.Contact, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	contact := &domain.Contact{
		FirstName:              in.FirstName,
		LastName:               in.LastName,
		BusinessName:           in.BusinessName,
		Email:                  in.Email,
		Phone:                  in.Phone,
		Notes:                  in.Notes,
		PreferredContactMethod: in.PreferredContactMethod,
	}
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		if err := s.contacts.Create(ctx, sess, contact); err != nil {
			return err
		}
		return s.audit.Created(ctx, sess, domain.EntityContact, contact.ID, contact)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.ContactCreated{Meta: s.meta(ctx), Contact: *contact})
	return contact, nil
}

func (s *ContactService) Get(ctx context.Context, id uuid.UUID) (*domain.Contact, error) {
	var out *domain.Contact
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		var err error
		out, err = s.contacts.Get(ctx, sess, id)
		return err
	})
	return out, err
}

// Update patches a contact and records the field diff.
func (s *ContactService) Update(ctx context.Context, id uuid.UUID, in domain.ContactUpdate) (*domain.Contact, error) {
	if err := domain.Validate(in); err != nil {
		return nil, err
	}
	var out *domain.Contact
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		current, err := s.contacts.Get(ctx, sess, id)
		if err != nil {
			return err
		}
		before := *current
		in.Apply(current)
		current.UpdatedAt = s.clock()
		if err := s.contacts.Update(ctx, sess, current); err != nil {
			return err
		}
		out = current
		return s.audit.Updated(ctx, sess, domain.EntityContact, id, before, current)
	})
	return out, err
}

// Delete soft-deletes a contact.
func (s *ContactService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		current, err := s.contacts.Get(ctx, sess, id)
		if err != nil {
			return err
		}
		if err := s.contacts.SoftDelete(ctx, sess, id, s.clock()); err != nil {
			return err
		}
		return s.audit.Deleted(ctx, sess, domain.EntityContact, id, current)
	})
}

// List returns contacts matching filter. Search matches names, email and phone.
func (s *ContactService) List(ctx context.Context, filter repository.ContactFilter) ([]domain.Contact, error) {
	var out []domain.Contact
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		var err error
		out, err = s.contacts.List(ctx, sess, filter)
		return err
	})
	return out, err
}
