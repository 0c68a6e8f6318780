package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/field-service/pkg/util"
)

type fakeTx struct {
	pgx.Tx
	conn *fakeConn
}

func (t *fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	t.conn.log = append(t.conn.log, "tx:"+sql)
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (t *fakeTx) Commit(context.Context) error {
	t.conn.log = append(t.conn.log, "COMMIT")
	return t.conn.commitErr
}

func (t *fakeTx) Rollback(context.Context) error {
	t.conn.log = append(t.conn.log, "ROLLBACK")
	return nil
}

type fakeConn struct {
	log       []string
	resetErr  error
	commitErr error
	released  bool
	discarded bool
}

func (c *fakeConn) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if len(args) > 0 {
		c.log = append(c.log, "SET "+args[0].(string)+"="+args[1].(string))
		return pgconn.NewCommandTag("SELECT 1"), nil
	}
	c.log = append(c.log, sql)
	if c.resetErr != nil {
		return pgconn.CommandTag{}, c.resetErr
	}
	return pgconn.NewCommandTag("RESET"), nil
}

func (c *fakeConn) Begin(context.Context) (pgx.Tx, error) {
	c.log = append(c.log, "BEGIN")
	return &fakeTx{conn: c}, nil
}

func (c *fakeConn) Release()                { c.released = true }
func (c *fakeConn) Discard(context.Context) { c.discarded = true }

type fakeSource struct {
	conn       *fakeConn
	acquireErr error
}

func (s *fakeSource) Acquire(context.Context) (dbConn, error) {
	if s.acquireErr != nil {
		return nil, s.acquireErr
	}
	return s.conn, nil
}

func newFakeStore() (*Store, *fakeConn) {
	conn := &fakeConn{}
	return &Store{src: &fakeSource{conn: conn}, logger: zap.NewNop()}, conn
}

func TestWithTenantSession_SuccessIsSymmetric(t *testing.T) {
	store, conn := newFakeStore()
	tenantID := uuid.New()

	err := store.WithTenantSession(context.Background(), tenantID, func(ctx context.Context, s *Session) error {
		assert.Equal(t, tenantID, s.TenantID())
		_, err := Exec(ctx, s, "UPDATE contacts SET notes = $1", "x")
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, []string{
		"SET app.current_tenant=" + tenantID.String(),
		"BEGIN",
		"tx:UPDATE contacts SET notes = $1",
		"COMMIT",
		"RESET app.current_tenant",
	}, conn.log)
	assert.True(t, conn.released)
	assert.False(t, conn.discarded)
}

func TestWithTenantSession_ErrorRollsBackAndResets(t *testing.T) {
	store, conn := newFakeStore()
	boom := util.NewValidationError("bad", nil)

	err := store.WithTenantSession(context.Background(), uuid.New(), func(context.Context, *Session) error {
		return boom
	})

	assert.Equal(t, boom, err)
	assert.Equal(t, []string{"ROLLBACK", "RESET app.current_tenant"}, conn.log[2:])
	assert.True(t, conn.released)
}

func TestWithTenantSession_PanicIsReraisedAfterCleanup(t *testing.T) {
	store, conn := newFakeStore()

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = store.WithTenantSession(context.Background(), uuid.New(), func(context.Context, *Session) error {
			panic("kaboom")
		})
	})
	assert.Equal(t, []string{"ROLLBACK", "RESET app.current_tenant"}, conn.log[2:])
	assert.True(t, conn.released)
}

func TestWithTenantSession_ResetFailureDiscardsConnection(t *testing.T) {
	store, conn := newFakeStore()
	conn.resetErr = errors.New("conn busy")

	err := store.WithTenantSession(context.Background(), uuid.New(), func(context.Context, *Session) error {
		return nil
	})

	require.NoError(t, err, "a committed mutation stands")
	assert.True(t, conn.discarded)
	assert.False(t, conn.released)
}

func TestWithTenantSession_CommitFailureIsInfrastructure(t *testing.T) {
	store, conn := newFakeStore()
	conn.commitErr = errors.New("connection reset by peer")

	err := store.WithTenantSession(context.Background(), uuid.New(), func(context.Context, *Session) error {
		return nil
	})

	assert.True(t, errors.Is(err, util.ErrInfrastructure))
	assert.Equal(t, "RESET app.current_tenant", conn.log[len(conn.log)-1])
}

func TestWithTenantSession_RequiresTenant(t *testing.T) {
	store, conn := newFakeStore()

	err := store.WithTenantSession(context.Background(), uuid.Nil, func(context.Context, *Session) error {
		t.Fatal("fn must not run")
		return nil
	})

	assert.True(t, errors.Is(err, util.ErrValidation))
	assert.Empty(t, conn.log)
}

func TestWithTenantSession_AcquireFailure(t *testing.T) {
	store := &Store{src: &fakeSource{acquireErr: errors.New("too many clients")}, logger: zap.NewNop()}

	err := store.WithTenantSession(context.Background(), uuid.New(), func(context.Context, *Session) error {
		return nil
	})

	de := util.ToDomainError(err)
	assert.Equal(t, util.CodeInfrastructure, de.Code)
	assert.NotContains(t, de.Message, "too many clients")
}

func TestWithAdminSession_BindsBypass(t *testing.T) {
	store, conn := newFakeStore()

	err := store.WithAdminSession(context.Background(), func(_ context.Context, s *Session) error {
		assert.True(t, s.IsAdmin())
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "SET app.bypass_rls=on", conn.log[0])
	assert.Equal(t, "RESET app.bypass_rls", conn.log[len(conn.log)-1])
}

func TestSession_UnusableAfterUnitOfWork(t *testing.T) {
	store, _ := newFakeStore()
	var leaked *Session

	require.NoError(t, store.WithTenantSession(context.Background(), uuid.New(), func(_ context.Context, s *Session) error {
		leaked = s
		return nil
	}))

	_, err := Exec(context.Background(), leaked, "DELETE FROM contacts")
	assert.True(t, errors.Is(err, util.ErrInfrastructure))
}

func TestTranslate_ConstraintViolations(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "attributes_contact_key"}
	assert.Equal(t, util.CodeConflict, util.CodeOf(translate("exec", unique)))

	fk := &pgconn.PgError{Code: "23503"}
	assert.True(t, errors.Is(translate("exec", fk), util.ErrNotFound))

	blocked := &pgconn.PgError{
		Code:           "23503",
		Message:        `update or delete on table "addresses" violates foreign key constraint "tickets_address_id_fkey" on table "tickets"`,
		ConstraintName: "tickets_address_id_fkey",
	}
	assert.True(t, errors.Is(translate("exec", blocked), util.ErrConflict))

	assert.True(t, errors.Is(translate("exec", errors.New("eof")), util.ErrInfrastructure))
}
