package service

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/persistence"
	"github.com/spec-kit/field-service/internal/repository"
	"github.com/spec-kit/field-service/pkg/util"
)

// AttributeService manages keyed facts about contacts. Writing an existing key updates
// it in place.
type AttributeService struct {
	base
	contacts   repository.ContactRepository
	notes      repository.NoteRepository
	attributes repository.AttributeRepository
}

func NewAttributeService(deps Dependencies) *AttributeService {
	return &AttributeService{
		base:       newBase(deps),
		contacts:   deps.Contacts,
		notes:      deps.Notes,
		attributes: deps.Attributes,
	}
}

// Upsert creates the attribute or updates the existing one with the same key.
func (s *AttributeService) Upsert(ctx context.Context, in domain.AttributeUpsert) (*domain.Attribute, error) {
	in.Key = strings.TrimSpace(in.Key)
	if err := domain.Validate(in); err != nil {
		return nil, err
	}
	var out *domain.Attribute
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		if _, err := s.contacts.Get(ctx, sess, in.ContactID); err != nil {
			return err
		}
		var err error
		out, err = s.upsert(ctx, sess, in)
		return err
	})
	return out, err
}

func (s *AttributeService) Get(ctx context.Context, id uuid.UUID) (*domain.Attribute, error) {
	var out *domain.Attribute
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		var err error
		out, err = s.attributes.Get(ctx, sess, id)
		return err
	})
	return out, err
}

func (s *AttributeService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		current, err := s.attributes.Get(ctx, sess, id)
		if err != nil {
			return err
		}
		if err := s.attributes.Delete(ctx, sess, id); err != nil {
			return err
		}
		return s.audit.Deleted(ctx, sess, domain.EntityAttribute, id, current)
	})
}

func (s *AttributeService) ListForContact(ctx context.Context, contactID uuid.UUID) ([]domain.Attribute, error) {
	var out []domain.Attribute
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		var err error
		out, err = s.attributes.ListByContact(ctx, sess, contactID)
		return err
	})
	return out, err
}

// PersistConfirmed stores what a technician confirmed at close-out: a ticket note from the
// close-out notes, each attribute as confirmed with the note as provenance, and the note
// marked processed. All of it commits or none of it does.
func (s *AttributeService) PersistConfirmed(ctx context.Context, ticket domain.Ticket, notes string, attrs map[string]any) error {
	notes = strings.TrimSpace(notes)
	if notes == "" && len(attrs) == 0 {
		return nil
	}
	return s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		var noteID *uuid.UUID
		if notes != "" {
			ticketID := ticket.ID
			note := &domain.Note{TicketID: &ticketID, Content: notes}
			if err := s.notes.Create(ctx, sess, note); err != nil {
				return err
			}
			if err := s.audit.Created(ctx, sess, domain.EntityNote, note.ID, note); err != nil {
				return err
			}
			noteID = &note.ID
		}
		for _, key := range sortedKeys(attrs) {
			_, err := s.upsert(ctx, sess, domain.AttributeUpsert{
				ContactID:    ticket.ContactID,
				Key:          key,
				Value:        attrs[key],
				SourceType:   domain.SourceConfirmed,
				SourceNoteID: noteID,
			})
			if err != nil {
				return err
			}
		}
		if noteID == nil {
			return nil
		}
		return markProcessed(ctx, sess, s.base, s.notes, *noteID)
	})
}

// StoreExtracted records model suggestions taken from a contact note with the extracted
// confidence. Keys a person already set are left alone. The note is marked processed.
func (s *AttributeService) StoreExtracted(ctx context.Context, noteID uuid.UUID, attrs map[string]any) (int, error) {
	stored := 0
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		note, err := s.notes.Get(ctx, sess, noteID)
		if err != nil {
			return err
		}
		if note.ContactID == nil {
			return util.NewValidationError("extraction requires a contact note", map[string]any{"note_id": noteID.String()})
		}
		for _, key := range sortedKeys(attrs) {
			existing, err := s.attributes.FindByKey(ctx, sess, *note.ContactID, key)
			if err != nil {
				return err
			}
			if existing != nil && existing.SourceType != domain.SourceExtracted {
				continue
			}
			_, err = s.upsert(ctx, sess, domain.AttributeUpsert{
				ContactID:    *note.ContactID,
				Key:          key,
				Value:        attrs[key],
				SourceType:   domain.SourceExtracted,
				SourceNoteID: &note.ID,
				Confidence:   decimal.NewNullDecimal(domain.ExtractedConfidence),
			})
			if err != nil {
				return err
			}
			stored++
		}
		return markProcessed(ctx, sess, s.base, s.notes, note.ID)
	})
	return stored, err
}

func (s *AttributeService) upsert(ctx context.Context, sess *persistence.Session, in domain.AttributeUpsert) (*domain.Attribute, error) {
	if err := domain.Validate(in); err != nil {
		return nil, err
	}
	existing, err := s.attributes.FindByKey(ctx, sess, in.ContactID, in.Key)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		attr := &domain.Attribute{
			ContactID:    in.ContactID,
			Key:          in.Key,
			Value:        in.Value,
			SourceType:   in.Source(),
			SourceNoteID: in.SourceNoteID,
			Confidence:   in.Confidence,
		}
		if err := s.attributes.Create(ctx, sess, attr); err != nil {
			return nil, err
		}
		return attr, s.audit.Created(ctx, sess, domain.EntityAttribute, attr.ID, attr)
	}

	before := *existing
	existing.Value = in.Value
	existing.SourceType = in.Source()
	existing.SourceNoteID = in.SourceNoteID
	existing.Confidence = in.Confidence
	existing.UpdatedAt = s.clock()
	if err := s.attributes.Update(ctx, sess, existing); err != nil {
		return nil, err
	}
	return existing, s.audit.Updated(ctx, sess, domain.EntityAttribute, existing.ID, before, existing)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
