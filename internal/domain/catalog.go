package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/pkg/util"
)

// PricingType selects how a catalog item is priced on a line item.
type PricingType string

const (
	PricingFixed    PricingType = "fixed"
	PricingFlexible PricingType = "flexible"
	PricingPerUnit  PricingType = "per_unit"
)

// CatalogItem is a service offered by the tenant. Stored in the services table. Soft-deleted.
type CatalogItem struct {
	ID                uuid.UUID   `db:"id" json:"id"`
	TenantID          uuid.UUID   `db:"tenant_id" json:"tenant_id"`
	Name              string      `db:"name" json:"name"`
	Description       *string     `db:"description" json:"description"`
	PricingType       PricingType `db:"pricing_type" json:"pricing_type"`
	DefaultPriceCents *int64      `db:"default_price_cents" json:"default_price_cents"`
	UnitPriceCents    *int64      `db:"unit_price_cents" json:"unit_price_cents"`
	UnitLabel         *string     `db:"unit_label" json:"unit_label"`
	IsActive          bool        `db:"is_active" json:"is_active"`
	DisplayOrder      int         `db:"display_order" json:"display_order"`
	CreatedAt         time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time   `db:"updated_at" json:"updated_at"`
	DeletedAt         *time.Time  `db:"deleted_at" json:"deleted_at"`
}

type CatalogItemCreate struct {
	Name              string      `json:"name" validate:"required,max=255"`
	Description       *string     `json:"description" validate:"omitempty,max=1000"`
	PricingType       PricingType `json:"pricing_type" validate:"required,oneof=fixed flexible per_unit"`
	DefaultPriceCents *int64      `json:"default_price_cents" validate:"omitempty,gte=0"`
	UnitPriceCents    *int64      `json:"unit_price_cents" validate:"omitempty,gte=0"`
	UnitLabel         *string     `json:"unit_label" validate:"omitempty,max=50"`
	IsActive          *bool       `json:"is_active"`
	DisplayOrder      int         `json:"display_order"`
}

// Validate checks tags and that the prices required by the pricing type are present.
func (in CatalogItemCreate) Validate() error {
	if err := Validate(in); err != nil {
		return err
	}
	return checkPricing(in.PricingType, in.DefaultPriceCents, in.UnitPriceCents)
}

type CatalogItemUpdate struct {
	Name              *string      `json:"name" validate:"omitempty,min=1,max=255"`
	Description       *string      `json:"description" validate:"omitempty,max=1000"`
	PricingType       *PricingType `json:"pricing_type" validate:"omitempty,oneof=fixed flexible per_unit"`
	DefaultPriceCents *int64       `json:"default_price_cents" validate:"omitempty,gte=0"`
	UnitPriceCents    *int64       `json:"unit_price_cents" validate:"omitempty,gte=0"`
	UnitLabel         *string      `json:"unit_label" validate:"omitempty,max=50"`
	IsActive          *bool        `json:"is_active"`
	DisplayOrder      *int         `json:"display_order"`
}

// Apply patches item and re-checks the pricing invariant on the result.
func (in CatalogItemUpdate) Apply(item *CatalogItem) error {
	if in.Name != nil {
		item.Name = *in.Name
	}
	if in.PricingType != nil {
		item.PricingType = *in.PricingType
	}
	if in.IsActive != nil {
		item.IsActive = *in.IsActive
	}
	if in.DisplayOrder != nil {
		item.DisplayOrder = *in.DisplayOrder
	}
	setIf(&item.Description, in.Description)
	setIf(&item.DefaultPriceCents, in.DefaultPriceCents)
	setIf(&item.UnitPriceCents, in.UnitPriceCents)
	setIf(&item.UnitLabel, in.UnitLabel)
	return checkPricing(item.PricingType, item.DefaultPriceCents, item.UnitPriceCents)
}

func checkPricing(pt PricingType, defaultPrice, unitPrice *int64) error {
	switch {
	case pt == PricingFixed && defaultPrice == nil:
		return util.NewValidationError("fixed pricing requires default_price_cents", nil)
	case pt == PricingPerUnit && unitPrice == nil:
		return util.NewValidationError("per_unit pricing requires unit_price_cents", nil)
	}
	return nil
}
