package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/persistence"
	"github.com/spec-kit/field-service/internal/repository"
)

// CatalogService manages the services a tenant offers.
type CatalogService struct {
	base
	catalog repository.CatalogRepository
}

func NewCatalogService(deps Dependencies) *CatalogService {
	return &CatalogService{base: newBase(deps), catalog: deps.Catalog}
}

func (s *CatalogService) Create(ctx context.Context, in domain.CatalogItemCreate) (*domain.CatalogItem, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	item := &domain.CatalogItem{
		Name:              in.Name,
		Description:       in.Description,
		PricingType:       in.PricingType,
		DefaultPriceCents: in.DefaultPriceCents,
		UnitPriceCents:    in.UnitPriceCents,
		UnitLabel:         in.UnitLabel,
		IsActive:          in.IsActive == nil || *in.IsActive,
		DisplayOrder:      in.DisplayOrder,
	}
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		if err := s.catalog.Create(ctx, sess, item); err != nil {
			return err
		}
		return s.audit.Created(ctx, sess, domain.EntityService, item.ID, item)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *CatalogService) Get(ctx context.Context, id uuid.UUID) (*domain.CatalogItem, error) {
	var out *domain.CatalogItem
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		var err error
		out, err = s.catalog.Get(ctx, sess, id)
		return err
	})
	return out, err
}

func (s *CatalogService) Update(ctx context.Context, id uuid.UUID, in domain.CatalogItemUpdate) (*domain.CatalogItem, error) {
	if err := domain.Validate(in); err != nil {
		return nil, err
	}
	var out *domain.CatalogItem
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		current, err := s.catalog.Get(ctx, sess, id)
		if err != nil {
			return err
		}
		before := *current
		if err := in.Apply(current); err != nil {
			return err
		}
		current.UpdatedAt = s.clock()
		if err := s.catalog.Update(ctx, sess, current); err != nil {
			return err
		}
		out = current
		return s.audit.Updated(ctx, sess, domain.EntityService, id, before, current)
	})
	return out, err
}

// Delete soft-deletes the item. Line items that reference it keep their prices.
func (s *CatalogService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		current, err := s.catalog.Get(ctx, sess, id)
		if err != nil {
			return err
		}
		if err := s.catalog.SoftDelete(ctx, sess, id, s.clock()); err != nil {
			return err
		}
		return s.audit.Deleted(ctx, sess, domain.EntityService, id, current)
	})
}

func (s *CatalogService) List(ctx context.Context, filter repository.CatalogFilter) ([]domain.CatalogItem, error) {
	var out []domain.CatalogItem
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		var err error
		out, err = s.catalog.List(ctx, sess, filter)
		return err
	})
	return out, err
}
