package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/statemachine"
)

type AuthorizationStatus string

const (
	AuthorizationPending  AuthorizationStatus = "pending"
	AuthorizationApproved AuthorizationStatus = "approved"
	AuthorizationDenied   AuthorizationStatus = "denied"
	AuthorizationExpired  AuthorizationStatus = "expired"
	AuthorizationRevoked  AuthorizationStatus = "revoked"
)

var AuthorizationLifecycle = statemachine.New("model_authorization", map[AuthorizationStatus][]AuthorizationStatus{
	AuthorizationPending:  {AuthorizationApproved, AuthorizationDenied, AuthorizationExpired},
	AuthorizationApproved: {AuthorizationRevoked, AuthorizationExpired},
	AuthorizationDenied:   {},
	AuthorizationExpired:  {},
	AuthorizationRevoked:  {},
})

// PurposeNoteExtraction gates sending note text to the extraction model.
const PurposeNoteExtraction = "note_extraction"

// ModelAuthorization records a tenant's consent for a model to process its data.
type ModelAuthorization struct {
	ID        uuid.UUID           `db:"id" json:"id"`
	TenantID  uuid.UUID           `db:"tenant_id" json:"tenant_id"`
	Purpose   string              `db:"purpose" json:"purpose"`
	Status    AuthorizationStatus `db:"status" json:"status"`
	DecidedAt *time.Time          `db:"decided_at" json:"decided_at"`
	ExpiresAt *time.Time          `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt time.Time           `db:"updated_at" json:"updated_at"`
}

// Active reports whether the authorization is approved and not past its expiry at now.
func (a ModelAuthorization) Active(now time.Time) bool {
	if a.Status != AuthorizationApproved {
		return false
	}
	return a.ExpiresAt == nil || now.Before(*a.ExpiresAt)
}

type AuthorizationRequest struct {
	Purpose   string     `json:"purpose" validate:"required,oneof=note_extraction"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type AuthorizationDecision struct {
	ID     uuid.UUID           `json:"id" validate:"required"`
	Status AuthorizationStatus `json:"status" validate:"required,oneof=approved denied expired revoked"`
}
