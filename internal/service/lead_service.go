package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/persistence"
	"github.com/spec-kit/field-service/internal/repository"
	"github.com/spec-kit/field-service/pkg/util"
)

// LeadService manages inquiries until they are converted to contacts or archived.
type LeadService struct {
	base
	leads    repository.LeadRepository
	contacts repository.ContactRepository
}

func NewLeadService(deps Dependencies) *LeadService {
	return &LeadService{base: newBase(deps), leads: deps.Leads, contacts: deps.Contacts}
}

func (s *LeadService) Create(ctx context.Context, in domain.LeadCreate) (*domain.Lead, error) {
	if err := domain.Validate(in); err != nil {
		return nil, err
	}
	lead := &domain.Lead{
		Status:          domain.LeadStatusNew,
		RawNotes:        in.RawNotes,
		Name:            in.Name,
		Phone:           in.Phone,
		Email:           in.Email,
		Address:         in.Address,
		ServiceInterest: in.ServiceInterest,
		LeadSource:      in.LeadSource,
		Urgency:         in.Urgency,
	}
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		if err := s.leads.Create(ctx, sess, lead); err != nil {
			return err
		}
		return s.audit.Created(ctx, sess, domain.EntityLead, lead.ID, lead)
	})
	if err != nil {
		return nil, err
	}
	return lead, nil
}

func (s *LeadService) Get(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	var out *domain.Lead
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		var err error
		out, err = s.leads.Get(ctx, sess, id)
		return err
	})
	return out, err
}

// Update patches an open lead. Converted and archived leads are immutable.
func (s *LeadService) Update(ctx context.Context, id uuid.UUID, in domain.LeadUpdate) (*domain.Lead, error) {
	if err := domain.Validate(in); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(_ context.Context, _ *persistence.Session, l *domain.Lead) error {
		if domain.LeadLifecycle.IsTerminal(l.Status) {
			return util.NewImmutable(domain.EntityLead, l.ID.String(), "lead is "+string(l.Status))
		}
		in.Apply(l)
		return nil
	})
}

// Transition moves a lead along its lifecycle. Conversion goes through Convert.
func (s *LeadService) Transition(ctx context.Context, id uuid.UUID, to domain.LeadStatus) (*domain.Lead, error) {
	if to == domain.LeadStatusConverted {
		return nil, util.NewValidationError("use convert to turn a lead into a contact", nil)
	}
	return s.mutate(ctx, id, func(_ context.Context, _ *persistence.Session, l *domain.Lead) error {
		if err := domain.LeadLifecycle.Validate(l.Status, to); err != nil {
			return err
		}
		l.Status = to
		return nil
	})
}

// Convert creates a contact from the lead and links the two. override, when given,
// replaces the contact fields derived from the lead.
func (s *LeadService) Convert(ctx context.Context, id uuid.UUID, override *domain.ContactCreate) (*domain.Lead, *domain.Contact, error) {
	var contact *domain.Contact
	lead, err := s.mutate(ctx, id, func(ctx context.Context, sess *persistence.Session, l *domain.Lead) error {
		if err := domain.LeadLifecycle.Validate(l.Status, domain.LeadStatusConverted); err != nil {
			return err
		}
		in := contactFromLead(*l)
		if override != nil {
			in = *override
		}
		if err := in.Validate(); err != nil {
			return err
		}
		contact = &domain.Contact{
			FirstName:              in.FirstName,
			LastName:               in.LastName,
			BusinessName:           in.BusinessName,
			Email:                  in.Email,
			Phone:                  in.Phone,
			Notes:                  in.Notes,
			PreferredContactMethod: in.PreferredContactMethod,
		}
		if err := s.contacts.Create(ctx, sess, contact); err != nil {
			return err
		}
		if err := s.audit.Created(ctx, sess, domain.EntityContact, contact.ID, contact); err != nil {
			return err
		}
		now := s.clock()
		l.Status = domain.LeadStatusConverted
		l.ConvertedAt = &now
		l.ConvertedContactID = &contact.ID
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	s.publish(ctx, events.ContactCreated{Meta: s.meta(ctx), Contact: *contact})
	s.publish(ctx, events.LeadConverted{Meta: s.meta(ctx), Lead: *lead, ContactID: contact.ID})
	return lead, contact, nil
}

// Delete soft-deletes an open lead. Converted and archived leads are kept.
func (s *LeadService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		current, err := s.leads.Get(ctx, sess, id)
		if err != nil {
			return err
		}
		if domain.LeadLifecycle.IsTerminal(current.Status) {
			return util.NewImmutable(domain.EntityLead, current.ID.String(), "lead is "+string(current.Status))
		}
		if err := s.leads.SoftDelete(ctx, sess, id, s.clock()); err != nil {
			return err
		}
		return s.audit.Deleted(ctx, sess, domain.EntityLead, id, current)
	})
}

func (s *LeadService) List(ctx context.Context, filter repository.LeadFilter) ([]domain.Lead, error) {
	var out []domain.Lead
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		var err error
		out, err = s.leads.List(ctx, sess, filter)
		return err
	})
	return out, err
}

func (s *LeadService) mutate(ctx context.Context, id uuid.UUID, fn func(context.Context, *persistence.Session, *domain.Lead) error) (*domain.Lead, error) {
	var out *domain.Lead
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		current, err := s.leads.Get(ctx, sess, id)
		if err != nil {
			return err
		}
		before := *current
		if err := fn(ctx, sess, current); err != nil {
			return err
		}
		current.UpdatedAt = s.clock()
		if err := s.leads.Update(ctx, sess, current); err != nil {
			return err
		}
		out = current
		return s.audit.Updated(ctx, sess, domain.EntityLead, id, before, current)
	})
	return out, err
}

// contactFromLead splits the lead name on the first space and carries the raw notes.
func contactFromLead(l domain.Lead) domain.ContactCreate {
	in := domain.ContactCreate{Email: l.Email, Phone: l.Phone}
	if l.Name != nil {
		first, last, _ := strings.Cut(strings.TrimSpace(*l.Name), " ")
		if first != "" {
			in.FirstName = ptrTo(first)
		}
		if last = strings.TrimSpace(last); last != "" {
			in.LastName = ptrTo(last)
		}
	}
	if notes := strings.TrimSpace(l.RawNotes); notes != "" {
		in.Notes = ptrTo(notes)
	}
	return in
}
