package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/pkg/util"
)

// Contact is a customer record. Soft-deleted.
type Contact struct {
	ID                     uuid.UUID  `db:"id" json:"id"`
	TenantID               uuid.UUID  `db:"tenant_id" json:"tenant_id"`
	FirstName              *string    `db:"first_name" json:"first_name"`
	LastName               *string    `db:"last_name" json:"last_name"`
	BusinessName           *string    `db:"business_name" json:"business_name"`
	Email                  *string    `db:"email" json:"email"`
	Phone                  *string    `db:"phone" json:"phone"`
	Notes                  *string    `db:"notes" json:"notes"`
	PreferredContactMethod *string    `db:"preferred_contact_method" json:"preferred_contact_method"`
	CreatedAt              time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt              *time.Time `db:"deleted_at" json:"deleted_at"`
}

// DisplayName prefers the business name, then the personal name.
func (c Contact) DisplayName() string {
	if c.BusinessName != nil && *c.BusinessName != "" {
		return *c.BusinessName
	}
	parts := make([]string, 0, 2)
	for _, p := range []*string{c.FirstName, c.LastName} {
		if p != nil && *p != "" {
			parts = append(parts, *p)
		}
	}
	if len(parts) == 0 {
		return "Unnamed Contact"
	}
	return strings.Join(parts, " ")
}

// ContactCreate is the input for a new contact.
type ContactCreate struct {
	FirstName              *string `json:"first_name" validate:"omitempty,max=255"`
	LastName               *string `json:"last_name" validate:"omitempty,max=255"`
	BusinessName           *string `json:"business_name" validate:"omitempty,max=255"`
	Email                  *string `json:"email" validate:"omitempty,email"`
	Phone                  *string `json:"phone" validate:"omitempty,max=50"`
	Notes                  *string `json:"notes" validate:"omitempty,max=10000"`
	PreferredContactMethod *string `json:"preferred_contact_method" validate:"omitempty,oneof=email phone text"`
}

// Validate enforces field rules and requires at least one name.
func (in ContactCreate) Validate() error {
	if err := Validate(in); err != nil {
		return err
	}
	if isBlank(in.FirstName) && isBlank(in.LastName) && isBlank(in.BusinessName) {
		return util.NewValidationError("one of first_name, last_name or business_name is required", nil)
	}
	return nil
}

// ContactUpdate patches a contact. Nil fields are left untouched.
type ContactUpdate struct {
	FirstName              *string `json:"first_name" validate:"omitempty,max=255"`
	LastName               *string `json:"last_name" validate:"omitempty,max=255"`
	BusinessName           *string `json:"business_name" validate:"omitempty,max=255"`
	Email                  *string `json:"email" validate:"omitempty,email"`
	Phone                  *string `json:"phone" validate:"omitempty,max=50"`
	Notes                  *string `json:"notes" validate:"omitempty,max=10000"`
	PreferredContactMethod *string `json:"preferred_contact_method" validate:"omitempty,oneof=email phone text"`
}

// Apply copies the set fields onto c.
func (in ContactUpdate) Apply(c *Contact) {
	setIf(&c.FirstName, in.FirstName)
	setIf(&c.LastName, in.LastName)
	setIf(&c.BusinessName, in.BusinessName)
	setIf(&c.Email, in.Email)
	setIf(&c.Phone, in.Phone)
	setIf(&c.Notes, in.Notes)
	setIf(&c.PreferredContactMethod, in.PreferredContactMethod)
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func setIf[T any](dst **T, src *T) {
	if src != nil {
		v := *src
		*dst = &v
	}
}
