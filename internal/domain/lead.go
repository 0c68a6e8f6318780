package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/statemachine"
)

type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusConverted LeadStatus = "converted"
	LeadStatusArchived  LeadStatus = "archived"
)

var LeadLifecycle = statemachine.New("lead", map[LeadStatus][]LeadStatus{
	LeadStatusNew:       {LeadStatusContacted, LeadStatusQualified, LeadStatusConverted, LeadStatusArchived},
	LeadStatusContacted: {LeadStatusQualified, LeadStatusConverted, LeadStatusArchived},
	LeadStatusQualified: {LeadStatusConverted, LeadStatusArchived},
	LeadStatusConverted: {},
	LeadStatusArchived:  {},
})

// Lead is an unqualified inquiry that may become a contact.
type Lead struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	TenantID           uuid.UUID  `db:"tenant_id" json:"tenant_id"`
	Status             LeadStatus `db:"status" json:"status"`
	RawNotes           string     `db:"raw_notes" json:"raw_notes"`
	Name               *string    `db:"name" json:"name"`
	Phone              *string    `db:"phone" json:"phone"`
	Email              *string    `db:"email" json:"email"`
	Address            *string    `db:"address" json:"address"`
	ServiceInterest    *string    `db:"service_interest" json:"service_interest"`
	LeadSource         *string    `db:"lead_source" json:"lead_source"`
	Urgency            *string    `db:"urgency" json:"urgency"`
	ConvertedAt        *time.Time `db:"converted_at" json:"converted_at"`
	ConvertedContactID *uuid.UUID `db:"converted_contact_id" json:"converted_contact_id"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt          *time.Time `db:"deleted_at" json:"deleted_at"`
}

type LeadCreate struct {
	RawNotes        string  `json:"raw_notes" validate:"required,max=50000"`
	Name            *string `json:"name" validate:"omitempty,max=255"`
	Phone           *string `json:"phone" validate:"omitempty,max=50"`
	Email           *string `json:"email" validate:"omitempty,email"`
	Address         *string `json:"address" validate:"omitempty,max=1000"`
	ServiceInterest *string `json:"service_interest" validate:"omitempty,max=255"`
	LeadSource      *string `json:"lead_source" validate:"omitempty,max=100"`
	Urgency         *string `json:"urgency" validate:"omitempty,oneof=low normal high emergency"`
}

type LeadUpdate struct {
	RawNotes        *string `json:"raw_notes" validate:"omitempty,max=50000"`
	Name            *string `json:"name" validate:"omitempty,max=255"`
	Phone           *string `json:"phone" validate:"omitempty,max=50"`
	Email           *string `json:"email" validate:"omitempty,email"`
	Address         *string `json:"address" validate:"omitempty,max=1000"`
	ServiceInterest *string `json:"service_interest" validate:"omitempty,max=255"`
	LeadSource      *string `json:"lead_source" validate:"omitempty,max=100"`
	Urgency         *string `json:"urgency" validate:"omitempty,oneof=low normal high emergency"`
}

func (in LeadUpdate) Apply(l *Lead) {
	if in.RawNotes != nil {
		l.RawNotes = *in.RawNotes
	}
	setIf(&l.Name, in.Name)
	setIf(&l.Phone, in.Phone)
	setIf(&l.Email, in.Email)
	setIf(&l.Address, in.Address)
	setIf(&l.ServiceInterest, in.ServiceInterest)
	setIf(&l.LeadSource, in.LeadSource)
	setIf(&l.Urgency, in.Urgency)
}
