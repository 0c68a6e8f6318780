package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Sessions opens units of work bound to a single tenant. Services depend on this.
type Sessions interface {
	WithTenantSession(ctx context.Context, tenantID uuid.UUID, fn func(ctx context.Context, s *Session) error) error
}

// AdminSessions opens units of work that bypass row level security. Only the audit
// reader, the login lookup and the delivery worker are handed one.
type AdminSessions interface {
	WithAdminSession(ctx context.Context, fn func(ctx context.Context, s *Session) error) error
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var errSessionClosed = errors.New("session used outside its unit of work")

// Session is a tenant bound transaction. It is valid only inside the callback that
// received it.
type Session struct {
	q        querier
	tenantID uuid.UUID
	admin    bool
	closed   bool
}

// DetachedSession returns a session with no database handle. In-memory repositories use
// it to carry the tenant scope; the query helpers reject it.
func DetachedSession(tenantID uuid.UUID, admin bool) *Session {
	return &Session{tenantID: tenantID, admin: admin}
}

// TenantID is the tenant the session is bound to. It is uuid.Nil for admin sessions.
func (s *Session) TenantID() uuid.UUID {
	return s.tenantID
}

// IsAdmin reports whether row level security is bypassed.
func (s *Session) IsAdmin() bool {
	return s.admin
}

// Close marks the session unusable. Stores call it when the unit of work ends.
func (s *Session) Close() {
	s.closed = true
}

func (s *Session) querier() (querier, error) {
	if s == nil || s.closed {
		return nil, errSessionClosed
	}
	if s.q == nil {
		return nil, errors.New("session has no database handle")
	}
	return s.q, nil
}
