package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/field-service/pkg/util"
)

const (
	settingTenant = "app.current_tenant"
	settingBypass = "app.bypass_rls"

	cleanupTimeout = 5 * time.Second
)

type dbConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	// Release returns the connection to the pool.
	Release()
	// Discard closes the physical connection instead of returning it.
	Discard(ctx context.Context)
}

type connSource interface {
	Acquire(ctx context.Context) (dbConn, error)
}

type pgxSource struct {
	pool *pgxpool.Pool
}

func (s pgxSource) Acquire(ctx context.Context) (dbConn, error) {
	c, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return pgxConn{c}, nil
}

type pgxConn struct {
	*pgxpool.Conn
}

func (c pgxConn) Discard(ctx context.Context) {
	_ = c.Conn.Conn().Close(ctx)
	// a closed connection is destroyed by the pool on release
	c.Conn.Release()
}

// Store hands out tenant scoped and admin units of work over the pgx pool. It is the
// only path to the pool after startup.
type Store struct {
	src    connSource
	logger *zap.Logger
}

// NewStore wraps an open pool.
func NewStore(pg *Postgres, logger *zap.Logger) *Store {
	return &Store{src: pgxSource{pool: pg.Pool}, logger: logger}
}

// WithTenantSession binds tenantID to a pooled connection, runs fn in a transaction and
// unbinds the connection before it goes back to the pool, on every exit path.
func (s *Store) WithTenantSession(ctx context.Context, tenantID uuid.UUID, fn func(ctx context.Context, sess *Session) error) error {
	if tenantID == uuid.Nil {
		return util.NewValidationError("no tenant bound to request", map[string]any{"reason": "MISSING_TENANT"})
	}
	return s.run(ctx, settingTenant, tenantID.String(), &Session{tenantID: tenantID}, fn)
}

// WithAdminSession is WithTenantSession with row level security bypassed.
func (s *Store) WithAdminSession(ctx context.Context, fn func(ctx context.Context, sess *Session) error) error {
	return s.run(ctx, settingBypass, "on", &Session{admin: true}, fn)
}

func (s *Store) run(ctx context.Context, setting, value string, sess *Session, fn func(context.Context, *Session) error) (err error) {
	conn, err := s.src.Acquire(ctx)
	if err != nil {
		return util.NewInfrastructure("acquire connection", err)
	}
	defer s.unbind(ctx, conn, setting)

	if _, err := conn.Exec(ctx, "SELECT set_config($1, $2, false)", setting, value); err != nil {
		return util.NewInfrastructure("bind session", err)
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return util.NewInfrastructure("begin", err)
	}

	committed := false
	defer func() {
		sess.Close()
		if committed {
			return
		}
		cleanupCtx, cancel := cleanupContext(ctx)
		defer cancel()
		if rbErr := tx.Rollback(cleanupCtx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Warn("rollback failed", zap.Error(rbErr))
		}
	}()

	sess.q = tx
	if err := fn(ctx, sess); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return util.NewInfrastructure("commit", err)
	}
	committed = true
	return nil
}

// unbind resets the session setting. A connection that cannot be reset is closed so a
// stale binding never reaches another request.
func (s *Store) unbind(ctx context.Context, conn dbConn, setting string) {
	cleanupCtx, cancel := cleanupContext(ctx)
	defer cancel()
	if _, err := conn.Exec(cleanupCtx, "RESET "+setting); err != nil {
		s.logger.Error("session reset failed; discarding connection",
			zap.String("setting", setting),
			zap.Error(err),
		)
		conn.Discard(cleanupCtx)
		return
	}
	conn.Release()
}

// cleanupContext survives cancellation of the request so cleanup statements still run.
func cleanupContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
}
