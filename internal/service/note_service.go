package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/internal/persistence"
	"github.com/spec-kit/field-service/internal/repository"
)

// NoteService manages free text notes on contacts and tickets.
type NoteService struct {
	base
	contacts repository.ContactRepository
	tickets  repository.TicketRepository
	notes    repository.NoteRepository
}

func NewNoteService(deps Dependencies) *NoteService {
	return &NoteService{base: newBase(deps), contacts: deps.Contacts, tickets: deps.Tickets, notes: deps.Notes}
}

// Create stores a note on its parent and announces it.
func (s *NoteService) Create(ctx context.Context, in domain.NoteCreate) (*domain.Note, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	note := &domain.Note{ContactID: in.ContactID, TicketID: in.TicketID, Content: in.Content}
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		var err error
		if in.ContactID != nil {
			_, err = s.contacts.Get(ctx, sess, *in.ContactID)
		} else {
			_, err = s.tickets.Get(ctx, sess, *in.TicketID)
		}
		if err != nil {
			return err
		}
		if err := s.notes.Create(ctx, sess, note); err != nil {
			return err
		}
		return s.audit.Created(ctx, sess, domain.EntityNote, note.ID, note)
	})
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.NoteCreated{Meta: s.meta(ctx), Note: *note})
	return note, nil
}

func (s *NoteService) Get(ctx context.Context, id uuid.UUID) (*domain.Note, error) {
	var out *domain.Note
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		var err error
		out, err = s.notes.Get(ctx, sess, id)
		return err
	})
	return out, err
}

func (s *NoteService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		current, err := s.notes.Get(ctx, sess, id)
		if err != nil {
			return err
		}
		if err := s.notes.SoftDelete(ctx, sess, id, s.clock()); err != nil {
			return err
		}
		return s.audit.Deleted(ctx, sess, domain.EntityNote, id, current)
	})
}

// MarkProcessed stamps processed_at once attributes have been taken from the note.
func (s *NoteService) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		return markProcessed(ctx, sess, s.base, s.notes, id)
	})
}

// ListUnprocessed returns notes not yet run through extraction.
func (s *NoteService) ListUnprocessed(ctx context.Context, limit int) ([]domain.Note, error) {
	return s.List(ctx, repository.NoteFilter{UnprocessedOnly: true, Limit: limit})
}

func (s *NoteService) List(ctx context.Context, filter repository.NoteFilter) ([]domain.Note, error) {
	var out []domain.Note
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		var err error
		out, err = s.notes.List(ctx, sess, filter)
		return err
	})
	return out, err
}

func markProcessed(ctx context.Context, sess *persistence.Session, b base, notes repository.NoteRepository, id uuid.UUID) error {
	current, err := notes.Get(ctx, sess, id)
	if err != nil {
		return err
	}
	if current.ProcessedAt != nil {
		return nil
	}
	before := *current
	now := b.clock()
	if err := notes.MarkProcessed(ctx, sess, id, now); err != nil {
		return err
	}
	current.ProcessedAt = &now
	current.UpdatedAt = now
	return b.audit.Updated(ctx, sess, domain.EntityNote, id, before, current)
}
