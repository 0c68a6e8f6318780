package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/persistence"
	"github.com/spec-kit/field-service/pkg/util"
)

const attributeColumns = `id, tenant_id, contact_id, key, value, source_type, source_note_id, confidence,
        created_at, updated_at`

// AttributeRepository persists contact attributes. Keys are unique per contact.
type AttributeRepository interface {
	Create(ctx context.Context, s *persistence.Session, a *domain.Attribute) error
	Get(ctx context.Context, s *persistence.Session, id uuid.UUID) (*domain.Attribute, error)
	// FindByKey returns nil when the contact has no attribute with key.
	FindByKey(ctx context.Context, s *persistence.Session, contactID uuid.UUID, key string) (*domain.Attribute, error)
	Update(ctx context.Context, s *persistence.Session, a *domain.Attribute) error
	Delete(ctx context.Context, s *persistence.Session, id uuid.UUID) error
	ListByContact(ctx context.Context, s *persistence.Session, contactID uuid.UUID) ([]domain.Attribute, error)
}

type attributeRepository struct{}

func NewAttributeRepository() AttributeRepository {
	return &attributeRepository{}
}

// jsonValue encodes v so the jsonb codec never mistakes a Go string for raw JSON text.
func jsonValue(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, util.NewValidationError("attribute value is not json encodable", map[string]any{"error": err.Error()})
	}
	return raw, nil
}

func (r *attributeRepository) Create(ctx context.Context, s *persistence.Session, a *domain.Attribute) error {
	tenantID, err := tenantOf(s)
	if err != nil {
		return err
	}
	value, err := jsonValue(a.Value)
	if err != nil {
		return err
	}
	query := `
        INSERT INTO attributes (tenant_id, contact_id, key, value, source_type, source_note_id, confidence)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING ` + attributeColumns
	out, err := persistence.Optional[domain.Attribute](ctx, s, query,
		tenantID,
		a.ContactID,
		a.Key,
		value,
		a.SourceType,
		a.SourceNoteID,
		a.Confidence,
	)
	if err != nil {
		return err
	}
	*a = *out
	return nil
}

func (r *attributeRepository) Get(ctx context.Context, s *persistence.Session, id uuid.UUID) (*domain.Attribute, error) {
	query := `SELECT ` + attributeColumns + ` FROM attributes WHERE id=$1`
	a, err := persistence.Optional[domain.Attribute](ctx, s, query, id)
	return found(a, err, "attribute", id)
}

func (r *attributeRepository) FindByKey(ctx context.Context, s *persistence.Session, contactID uuid.UUID, key string) (*domain.Attribute, error) {
	query := `SELECT ` + attributeColumns + ` FROM attributes WHERE contact_id=$1 AND key=$2`
	return persistence.Optional[domain.Attribute](ctx, s, query, contactID, key)
}

func (r *attributeRepository) Update(ctx context.Context, s *persistence.Session, a *domain.Attribute) error {
	value, err := jsonValue(a.Value)
	if err != nil {
		return err
	}
	const query = `
        UPDATE attributes SET value=$1, source_type=$2, source_note_id=$3, confidence=$4, updated_at=$5
        WHERE id=$6`
	n, err := persistence.Exec(ctx, s, query, value, a.SourceType, a.SourceNoteID, a.Confidence, a.UpdatedAt, a.ID)
	return affected(n, err, "attribute", a.ID)
}

func (r *attributeRepository) Delete(ctx context.Context, s *persistence.Session, id uuid.UUID) error {
	n, err := persistence.Exec(ctx, s, `DELETE FROM attributes WHERE id=$1`, id)
	return affected(n, err, "attribute", id)
}

func (r *attributeRepository) ListByContact(ctx context.Context, s *persistence.Session, contactID uuid.UUID) ([]domain.Attribute, error) {
	query := fmt.Sprintf(`SELECT %s FROM attributes WHERE contact_id=$1 ORDER BY key`, attributeColumns)
	return persistence.All[domain.Attribute](ctx, s, query, contactID)
}
