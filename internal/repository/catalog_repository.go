package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/persistence"
)

const catalogColumns = `id, tenant_id, name, description, pricing_type, default_price_cents, unit_price_cents,
        unit_label, is_active, display_order, created_at, updated_at, deleted_at`

type CatalogFilter struct {
	ActiveOnly bool
	Search     string
	Limit      int
	Offset     int
}

// CatalogRepository persists service catalog items in the services table.
type CatalogRepository interface {
	Create(ctx context.Context, s *persistence.Session, item *domain.CatalogItem) error
	Get(ctx context.Context, s *persistence.Session, id uuid.UUID) (*domain.CatalogItem, error)
	Update(ctx context.Context, s *persistence.Session, item *domain.CatalogItem) error
	SoftDelete(ctx context.Context, s *persistence.Session, id uuid.UUID, at time.Time) error
	List(ctx context.Context, s *persistence.Session, filter CatalogFilter) ([]domain.CatalogItem, error)
}

type catalogRepository struct{}

func NewCatalogRepository() CatalogRepository {
	return &catalogRepository{}
}

func (r *catalogRepository) Create(ctx context.Context, s *persistence.Session, item *domain.CatalogItem) error {
	tenantID, err := tenantOf(s)
	if err != nil {
		return err
	}
	query := `
        INSERT INTO services (tenant_id, name, description, pricing_type, default_price_cents, unit_price_cents,
            unit_label, is_active, display_order)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING ` + catalogColumns
	out, err := persistence.Optional[domain.CatalogItem](ctx, s, query,
		tenantID,
		item.Name,
		item.Description,
		item.PricingType,
		item.DefaultPriceCents,
		item.UnitPriceCents,
		item.UnitLabel,
		item.IsActive,
		item.DisplayOrder,
	)
	if err != nil {
		return err
	}
	*item = *out
	return nil
}

func (r *catalogRepository) Get(ctx context.Context, s *persistence.Session, id uuid.UUID) (*domain.CatalogItem, error) {
	query := `SELECT ` + catalogColumns + ` FROM services WHERE id=$1 AND deleted_at IS NULL`
	item, err := persistence.Optional[domain.CatalogItem](ctx, s, query, id)
	return found(item, err, "service", id)
}

func (r *catalogRepository) Update(ctx context.Context, s *persistence.Session, item *domain.CatalogItem) error {
	const query = `
        UPDATE services SET name=$1, description=$2, pricing_type=$3, default_price_cents=$4, unit_price_cents=$5,
            unit_label=$6, is_active=$7, display_order=$8, updated_at=$9
        WHERE id=$10 AND deleted_at IS NULL`
	n, err := persistence.Exec(ctx, s, query,
		item.Name,
		item.Description,
		item.PricingType,
		item.DefaultPriceCents,
		item.UnitPriceCents,
		item.UnitLabel,
		item.IsActive,
		item.DisplayOrder,
		item.UpdatedAt,
		item.ID,
	)
	return affected(n, err, "service", item.ID)
}

func (r *catalogRepository) SoftDelete(ctx context.Context, s *persistence.Session, id uuid.UUID, at time.Time) error {
	const query = `UPDATE services SET deleted_at=$1, updated_at=$1 WHERE id=$2 AND deleted_at IS NULL`
	n, err := persistence.Exec(ctx, s, query, at, id)
	return affected(n, err, "service", id)
}

func (r *catalogRepository) List(ctx context.Context, s *persistence.Session, filter CatalogFilter) ([]domain.CatalogItem, error) {
	w := &where{}
	w.raw("deleted_at IS NULL")
	if filter.ActiveOnly {
		w.raw("is_active")
	}
	w.search(filter.Search, "name", "description")

	query := fmt.Sprintf(`SELECT %s FROM services WHERE %s ORDER BY display_order, name LIMIT %d OFFSET %d`,
		catalogColumns, w, ClampLimit(filter.Limit), max(filter.Offset, 0))
	return persistence.All[domain.CatalogItem](ctx, s, query, w.args...)
}
