package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/spec-kit/field-service/pkg/util"
)

// LineItem is a charge on a ticket.
type LineItem struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	TenantID        uuid.UUID       `db:"tenant_id" json:"tenant_id"`
	TicketID        uuid.UUID       `db:"ticket_id" json:"ticket_id"`
	ServiceID       *uuid.UUID      `db:"service_id" json:"service_id"`
	Description     *string         `db:"description" json:"description"`
	Quantity        decimal.Decimal `db:"quantity" json:"quantity"`
	UnitPriceCents  *int64          `db:"unit_price_cents" json:"unit_price_cents"`
	TotalPriceCents int64           `db:"total_price_cents" json:"total_price_cents"`
	DurationMinutes *int            `db:"duration_minutes" json:"duration_minutes"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
	DeletedAt       *time.Time      `db:"deleted_at" json:"deleted_at"`
}

type LineItemCreate struct {
	TicketID        uuid.UUID        `json:"ticket_id" validate:"required"`
	ServiceID       *uuid.UUID       `json:"service_id"`
	Description     *string          `json:"description" validate:"omitempty,max=1000"`
	Quantity        *decimal.Decimal `json:"quantity"`
	UnitPriceCents  *int64           `json:"unit_price_cents" validate:"omitempty,gte=0"`
	TotalPriceCents *int64           `json:"total_price_cents" validate:"omitempty,gte=0"`
	DurationMinutes *int             `json:"duration_minutes" validate:"omitempty,gte=0"`
}

// Qty returns the requested quantity, defaulting to one.
func (in LineItemCreate) Qty() decimal.Decimal {
	if in.Quantity == nil {
		return decimal.NewFromInt(1)
	}
	return *in.Quantity
}

type LineItemUpdate struct {
	Description     *string          `json:"description" validate:"omitempty,max=1000"`
	Quantity        *decimal.Decimal `json:"quantity"`
	UnitPriceCents  *int64           `json:"unit_price_cents" validate:"omitempty,gte=0"`
	TotalPriceCents *int64           `json:"total_price_cents" validate:"omitempty,gte=0"`
	DurationMinutes *int             `json:"duration_minutes" validate:"omitempty,gte=0"`
}

// Apply patches li. A changed quantity or unit price recomputes the total unless an
// explicit total is given.
func (in LineItemUpdate) Apply(li *LineItem) {
	setIf(&li.Description, in.Description)
	setIf(&li.DurationMinutes, in.DurationMinutes)
	setIf(&li.UnitPriceCents, in.UnitPriceCents)
	if in.Quantity != nil {
		li.Quantity = *in.Quantity
	}
	switch {
	case in.TotalPriceCents != nil:
		li.TotalPriceCents = *in.TotalPriceCents
	case (in.Quantity != nil || in.UnitPriceCents != nil) && li.UnitPriceCents != nil:
		li.TotalPriceCents = MultiplyCents(li.Quantity, *li.UnitPriceCents)
	}
}

// ResolvePrice computes unit and total cents for a new line item. The order is explicit
// total, quantity times explicit unit price, the service default price, then quantity
// times the service unit price. svc may be nil.
func ResolvePrice(in LineItemCreate, svc *CatalogItem) (unit *int64, total int64, err error) {
	qty := in.Qty()
	if qty.IsNegative() || qty.IsZero() {
		return nil, 0, util.NewValidationError("quantity must be positive", nil)
	}
	if in.TotalPriceCents != nil {
		return in.UnitPriceCents, *in.TotalPriceCents, nil
	}
	if in.UnitPriceCents != nil {
		return in.UnitPriceCents, MultiplyCents(qty, *in.UnitPriceCents), nil
	}
	if svc == nil {
		return nil, 0, util.NewValidationError("price is required without a service", nil)
	}
	switch svc.PricingType {
	case PricingFixed:
		if svc.DefaultPriceCents != nil {
			return svc.DefaultPriceCents, *svc.DefaultPriceCents, nil
		}
	case PricingPerUnit:
		if svc.UnitPriceCents != nil {
			return svc.UnitPriceCents, MultiplyCents(qty, *svc.UnitPriceCents), nil
		}
	case PricingFlexible:
		return nil, 0, util.NewValidationError("flexible service requires an explicit price", map[string]any{"service_id": svc.ID.String()})
	}
	return nil, 0, util.NewValidationError("service has no price configured", map[string]any{"service_id": svc.ID.String()})
}

// MultiplyCents returns qty * cents rounded half away from zero to whole cents.
func MultiplyCents(qty decimal.Decimal, cents int64) int64 {
	return qty.Mul(decimal.NewFromInt(cents)).Round(0).IntPart()
}
