package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Address is a service location owned by one contact. Hard-deleted.
type Address struct {
	ID        uuid.UUID `db:"id" json:"id"`
	TenantID  uuid.UUID `db:"tenant_id" json:"tenant_id"`
	ContactID uuid.UUID `db:"contact_id" json:"contact_id"`
	Label     *string   `db:"label" json:"label"`
	Street    string    `db:"street" json:"street"`
	Street2   *string   `db:"street2" json:"street2"`
	City      string    `db:"city" json:"city"`
	State     string    `db:"state" json:"state"`
	Zip       string    `db:"zip" json:"zip"`
	Notes     *string   `db:"notes" json:"notes"`
	IsPrimary bool      `db:"is_primary" json:"is_primary"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// OneLine renders the address on a single line.
func (a Address) OneLine() string {
	parts := []string{a.Street}
	if a.Street2 != nil && *a.Street2 != "" {
		parts = append(parts, *a.Street2)
	}
	parts = append(parts, a.City+", "+a.State+" "+a.Zip)
	return strings.Join(parts, ", ")
}

type AddressCreate struct {
	ContactID uuid.UUID `json:"contact_id" validate:"required"`
	Label     *string   `json:"label" validate:"omitempty,max=100"`
	Street    string    `json:"street" validate:"required,max=255"`
	Street2   *string   `json:"street2" validate:"omitempty,max=255"`
	City      string    `json:"city" validate:"required,max=100"`
	State     string    `json:"state" validate:"required,max=50"`
	Zip       string    `json:"zip" validate:"required,max=20"`
	Notes     *string   `json:"notes"`
	IsPrimary bool      `json:"is_primary"`
}

type AddressUpdate struct {
	Label     *string `json:"label" validate:"omitempty,max=100"`
	Street    *string `json:"street" validate:"omitempty,min=1,max=255"`
	Street2   *string `json:"street2" validate:"omitempty,max=255"`
	City      *string `json:"city" validate:"omitempty,min=1,max=100"`
	State     *string `json:"state" validate:"omitempty,min=1,max=50"`
	Zip       *string `json:"zip" validate:"omitempty,min=1,max=20"`
	Notes     *string `json:"notes"`
	IsPrimary *bool   `json:"is_primary"`
}

func (in AddressUpdate) Apply(a *Address) {
	setIf(&a.Label, in.Label)
	setIf(&a.Street2, in.Street2)
	setIf(&a.Notes, in.Notes)
	if in.Street != nil {
		a.Street = *in.Street
	}
	if in.City != nil {
		a.City = *in.City
	}
	if in.State != nil {
		a.State = *in.State
	}
	if in.Zip != nil {
		a.Zip = *in.Zip
	}
	if in.IsPrimary != nil {
		a.IsPrimary = *in.IsPrimary
	}
}
