package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AttributeSource string

const (
	SourceManual    AttributeSource = "manual"
	SourceConfirmed AttributeSource = "confirmed"
	SourceExtracted AttributeSource = "extracted"
)

// ExtractedConfidence is the confidence recorded for model extracted attributes.
var ExtractedConfidence = decimal.RequireFromString("0.80")

// Attribute is a keyed fact about a contact. One row per (tenant, contact, key).
type Attribute struct {
	ID           uuid.UUID           `db:"id" json:"id"`
	TenantID     uuid.UUID           `db:"tenant_id" json:"tenant_id"`
	ContactID    uuid.UUID           `db:"contact_id" json:"contact_id"`
	Key          string              `db:"key" json:"key"`
	Value        any                 `db:"value" json:"value"`
	SourceType   AttributeSource     `db:"source_type" json:"source_type"`
	SourceNoteID *uuid.UUID          `db:"source_note_id" json:"source_note_id"`
	Confidence   decimal.NullDecimal `db:"confidence" json:"confidence"`
	CreatedAt    time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time           `db:"updated_at" json:"updated_at"`
}

type AttributeUpsert struct {
	ContactID    uuid.UUID           `json:"contact_id" validate:"required"`
	Key          string              `json:"key" validate:"required,max=100"`
	Value        any                 `json:"value" validate:"required"`
	SourceType   AttributeSource     `json:"source_type" validate:"omitempty,oneof=manual confirmed extracted"`
	SourceNoteID *uuid.UUID          `json:"source_note_id"`
	Confidence   decimal.NullDecimal `json:"confidence"`
}

// Source defaults to manual.
func (in AttributeUpsert) Source() AttributeSource {
	if in.SourceType == "" {
		return SourceManual
	}
	return in.SourceType
}
