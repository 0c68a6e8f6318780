package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/persistence"
	"github.com/spec-kit/field-service/internal/repository"
	"github.com/spec-kit/field-service/pkg/util"
)

// AuthorizationService tracks a tenant's consent for model processing.
type AuthorizationService struct {
	base
	authorizations repository.AuthorizationRepository
}

func NewAuthorizationService(deps Dependencies) *AuthorizationService {
	return &AuthorizationService{base: newBase(deps), authorizations: deps.Authorizations}
}

// Request opens a pending authorization for purpose.
func (s *AuthorizationService) Request(ctx context.Context, in domain.AuthorizationRequest) (*domain.ModelAuthorization, error) {
	if err := domain.Validate(in); err != nil {
		return nil, err
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(s.clock()) {
		return nil, util.NewValidationError("expires_at must be in the future", nil)
	}
	auth := &domain.ModelAuthorization{
		Purpose:   in.Purpose,
		Status:    domain.AuthorizationPending,
		ExpiresAt: in.ExpiresAt,
	}
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		if err := s.authorizations.Create(ctx, sess, auth); err != nil {
			return err
		}
		return s.audit.Created(ctx, sess, domain.EntityModelAuthorization, auth.ID, auth)
	})
	if err != nil {
		return nil, err
	}
	return auth, nil
}

// Decide moves an authorization to approved, denied, expired or revoked.
func (s *AuthorizationService) Decide(ctx context.Context, in domain.AuthorizationDecision) (*domain.ModelAuthorization, error) {
	if err := domain.Validate(in); err != nil {
		return nil, err
	}
	var out *domain.ModelAuthorization
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		current, err := s.authorizations.Get(ctx, sess, in.ID)
		if err != nil {
			return err
		}
		if err := domain.AuthorizationLifecycle.Validate(current.Status, in.Status); err != nil {
			return err
		}
		before := *current
		now := s.clock()
		current.Status = in.Status
		current.DecidedAt = &now
		current.UpdatedAt = now
		if err := s.authorizations.Update(ctx, sess, current); err != nil {
			return err
		}
		out = current
		return s.audit.Updated(ctx, sess, domain.EntityModelAuthorization, current.ID, before, current)
	})
	return out, err
}

// IsActive reports whether the tenant holds an approved, unexpired authorization for
// purpose.
func (s *AuthorizationService) IsActive(ctx context.Context, purpose string) (bool, error) {
	var active bool
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		var err error
		active, err = authorized(ctx, sess, s.authorizations, purpose, s.clock())
		return err
	})
	return active, err
}

func (s *AuthorizationService) Get(ctx context.Context, id uuid.UUID) (*domain.ModelAuthorization, error) {
	var out *domain.ModelAuthorization
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		var err error
		out, err = s.authorizations.Get(ctx, sess, id)
		return err
	})
	return out, err
}

// List returns the authorizations for purpose, newest first.
func (s *AuthorizationService) List(ctx context.Context, purpose string) ([]domain.ModelAuthorization, error) {
	var out []domain.ModelAuthorization
	err := s.tx(ctx, func(ctx context.Context, sess *persistence.Session) error {
		var err error
		out, err = s.authorizations.ListByPurpose(ctx, sess, purpose)
		return err
	})
	return out, err
}

func authorized(ctx context.Context, sess *persistence.Session, repo repository.AuthorizationRepository, purpose string, now time.Time) (bool, error) {
	if repo == nil {
		return false, nil
	}
	list, err := repo.ListByPurpose(ctx, sess, purpose)
	if err != nil {
		return false, err
	}
	for _, a := range list {
		if a.Active(now) {
			return true, nil
		}
	}
	return false, nil
}
