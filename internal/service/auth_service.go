package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/field-service/internal/auth"
	"github.com/spec-kit/field-service/internal/config"
	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/persistence"
	"github.com/spec-kit/field-service/internal/repository"
	"github.com/spec-kit/field-service/internal/tenant"
	"github.com/spec-kit/field-service/pkg/util"
)

// AccountCreate is the input for a new login.
type AccountCreate struct {
	Email    string      `json:"email" validate:"required,email"`
	Password string      `json:"password" validate:"required,min=8,max=72"`
	Role     domain.Role `json:"role" validate:"required,oneof=owner technician"`
}

// AuthService coordinates account registration and login.
type AuthService struct {
	base
	admin      persistence.AdminSessions
	accounts   repository.AccountRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps Dependencies) *AuthService {
	return &AuthService{
		base:       newBase(deps),
		admin:      deps.Admin,
		accounts:   deps.Accounts,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		bcryptCost: cfg.BcryptCost,
	}
}

// Register creates an account in the caller's tenant.
func (s *AuthService) Register(ctx context.Context, in AccountCreate) (*domain.Account, error) {
	id, err := tenant.Require(ctx)
	if err != nil {
		return nil, err
	}
	return s.register(ctx, id.TenantID, in)
}

// Bootstrap creates the first owner of tenantID unless the email is already taken.
func (s *AuthService) Bootstrap(ctx context.Context, tenantID uuid.UUID, email, password string) (*domain.Account, error) {
	existing, err := s.findByEmail(ctx, email)
	if err != nil || existing != nil {
		return existing, err
	}
	return s.register(ctx, tenantID, AccountCreate{Email: email, Password: password, Role: domain.RoleOwner})
}

func (s *AuthService) register(ctx context.Context, tenantID uuid.UUID, in AccountCreate) (*domain.Account, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := domain.Validate(in); err != nil {
		return nil, err
	}
	existing, err := s.findByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, util.NewConflict("email already registered", nil)
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, util.NewInternalError(err)
	}
	account := &domain.Account{Email: in.Email, PasswordHash: hash, Role: in.Role, IsActive: true}
	err = s.sessions.WithTenantSession(ctx, tenantID, func(ctx context.Context, sess *persistence.Session) error {
		return s.accounts.Create(ctx, sess, account)
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Login authenticates an account by email and issues a token bound to its tenant.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.Account, string, time.Time, error) {
	account, err := s.findByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if account == nil || !account.IsActive {
		return nil, "", time.Time{}, util.NewUnauthorized("invalid credentials")
	}
	if err := auth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, util.NewUnauthorized("invalid credentials")
	}
	token, exp, err := s.tokenMgr.GenerateToken(account)
	if err != nil {
		return nil, "", time.Time{}, util.NewInternalError(err)
	}
	return account, token, exp, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// findByEmail looks across tenants; the email is what identifies the tenant at login.
func (s *AuthService) findByEmail(ctx context.Context, email string) (*domain.Account, error) {
	if s.admin == nil {
		return nil, util.NewInternalError(errNoAdminSessions)
	}
	var out *domain.Account
	err := s.admin.WithAdminSession(ctx, func(ctx context.Context, sess *persistence.Session) error {
		var err error
		out, err = s.accounts.FindByEmail(ctx, sess, email)
		return err
	})
	return out, err
}
