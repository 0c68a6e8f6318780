package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/field-service/internal/api/dispatch"
	"github.com/spec-kit/field-service/internal/api/http/handlers"
	"github.com/spec-kit/field-service/internal/audit"
	"github.com/spec-kit/field-service/internal/auth"
	"github.com/spec-kit/field-service/internal/config"
	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/observability"
	"github.com/spec-kit/field-service/internal/persistence"
	"github.com/spec-kit/field-service/internal/repository/memory"
	"github.com/spec-kit/field-service/internal/service"
)

type testServer struct {
	t        *testing.T
	app      *fiber.App
	auth     *service.AuthService
	tenantID uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	st := memory.NewStore(nil)
	repos := memory.NewRepositories(st)
	trail := audit.NewTrail(repos.Audit, st)
	deps := service.Dependencies{
		Sessions:       st,
		Admin:          st,
		Audit:          trail,
		Contacts:       repos.Contacts,
		Addresses:      repos.Addresses,
		Catalog:        repos.Catalog,
		Tickets:        repos.Tickets,
		LineItems:      repos.LineItems,
		Invoices:       repos.Invoices,
		Notes:          repos.Notes,
		Attributes:     repos.Attributes,
		Messages:       repos.Messages,
		Leads:          repos.Leads,
		Authorizations: repos.Authorizations,
		Accounts:       repos.Accounts,
	}
	svc := dispatch.Services{
		Contacts:       service.NewContactService(deps),
		Addresses:      service.NewAddressService(deps),
		Catalog:        service.NewCatalogService(deps),
		Tickets:        service.NewTicketService(deps),
		LineItems:      service.NewLineItemService(deps),
		Invoices:       service.NewInvoiceService(deps),
		Notes:          service.NewNoteService(deps),
		Attributes:     service.NewAttributeService(deps),
		Messages:       service.NewMessageService(deps),
		Leads:          service.NewLeadService(deps),
		Authorizations: service.NewAuthorizationService(deps),
		Audit:          trail,
	}
	authService := service.NewAuthService(config.AuthConfig{
		JWTSecret: "test-secret", AccessTokenTTLMinutes: 5, BcryptCost: bcrypt.MinCost,
	}, deps)
	metrics := observability.NewMetrics()

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("field-service", "test", &persistence.Postgres{}, &persistence.Redis{}, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Data:           handlers.NewDataHandler(dispatch.NewReader(svc)),
		Actions:        handlers.NewActionsHandler(dispatch.NewWriter(svc)),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager()),
	})

	s := &testServer{t: t, app: app, auth: authService, tenantID: uuid.New()}
	_, err := authService.Bootstrap(context.Background(), s.tenantID, "owner@example.com", "correct-horse")
	require.NoError(t, err)
	return s
}

func (s *testServer) do(method, path, token string, body any) (int, map[string]any) {
	s.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	if len(raw) > 0 {
		require.NoError(s.t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (s *testServer) login(email, password string) string {
	s.t.Helper()
	status, body := s.do(fiber.MethodPost, "/auth/login", "", map[string]any{"email": email, "password": password})
	require.Equal(s.t, fiber.StatusOK, status, body)
	return body["data"].(map[string]any)["token"].(string)
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = s.do(fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "disabled", body["dependencies"].(map[string]any)["postgres"])
}

func TestAPI_RequiresToken(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(fiber.MethodGet, "/api/data?type=contacts", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, body = s.do(fiber.MethodGet, "/api/data?type=contacts", "not-a-jwt", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))
}

func TestLogin_WrongPassword(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(fiber.MethodPost, "/auth/login", "", map[string]any{"email": "owner@example.com", "password": "nope-nope"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))
}

func TestActionsAndData_RoundTrip(t *testing.T) {
	s := newTestServer(t)
	token := s.login("owner@example.com", "correct-horse")

	status, body := s.do(fiber.MethodPost, "/api/actions", token, map[string]any{
		"domain": "contact", "action": "create", "data": map[string]any{"first_name": "Jane"},
	})
	require.Equal(t, fiber.StatusOK, status, body)
	id := body["data"].(map[string]any)["id"].(string)

	status, body = s.do(fiber.MethodGet, "/api/data?type=contacts&id="+id+"&include=addresses", token, nil)
	require.Equal(t, fiber.StatusOK, status, body)
	assert.Equal(t, "Jane", body["data"].(map[string]any)["first_name"])

	status, body = s.do(fiber.MethodGet, "/api/data?type=contacts&limit=501", token, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
}

func TestActions_UnknownPairIsValidation(t *testing.T) {
	s := newTestServer(t)
	token := s.login("owner@example.com", "correct-horse")

	status, body := s.do(fiber.MethodPost, "/api/actions", token, map[string]any{
		"domain": "ticket", "action": "explode", "data": map[string]any{},
	})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
}

func TestActions_NotFoundEnvelope(t *testing.T) {
	s := newTestServer(t)
	token := s.login("owner@example.com", "correct-horse")

	status, body := s.do(fiber.MethodPost, "/api/actions", token, map[string]any{
		"domain": "ticket", "action": "clock_in", "data": map[string]any{"id": uuid.New()},
	})
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestAccounts_OwnerOnly(t *testing.T) {
	s := newTestServer(t)
	owner := s.login("owner@example.com", "correct-horse")

	status, body := s.do(fiber.MethodPost, "/api/accounts", owner, map[string]any{
		"email": "tech@example.com", "password": "wrench-time", "role": domain.RoleTechnician,
	})
	require.Equal(t, fiber.StatusCreated, status, body)
	assert.Equal(t, s.tenantID.String(), body["data"].(map[string]any)["tenant_id"])

	tech := s.login("tech@example.com", "wrench-time")
	status, body = s.do(fiber.MethodPost, "/api/accounts", tech, map[string]any{
		"email": "other@example.com", "password": "wrench-time", "role": domain.RoleOwner,
	})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	status, _ = s.do(fiber.MethodGet, "/api/data?type=contacts", tech, nil)
	assert.Equal(t, fiber.StatusOK, status)
}
