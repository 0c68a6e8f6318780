package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/persistence"
	"github.com/spec-kit/field-service/internal/repository/memory"
	"github.com/spec-kit/field-service/internal/tenant"
	"github.com/spec-kit/field-service/pkg/util"
)

func strPtr(s string) *string { return &s }

func TestDiff_ExcludesUpdatedAtAndExtras(t *testing.T) {
	before := map[string]any{"first_name": "Jane", "phone": nil, "updated_at": "t1", "notes": "a"}
	after := map[string]any{"first_name": "Janet", "phone": "555", "updated_at": "t2", "notes": "b"}

	changes := Diff(before, after, "notes")

	assert.Equal(t, map[string]any{
		"first_name": map[string]any{"old": "Jane", "new": "Janet"},
		"phone":      map[string]any{"old": nil, "new": "555"},
	}, changes)
	assert.Empty(t, Diff(before, before))
}

func TestSnapshot_UsesJSONNames(t *testing.T) {
	snap, err := Snapshot(domain.Contact{FirstName: strPtr("Jane")})
	require.NoError(t, err)
	assert.Equal(t, "Jane", snap["first_name"])
	assert.Contains(t, snap, "deleted_at")
}

func TestRecord_RejectsMalformed(t *testing.T) {
	st := memory.NewStore(nil)
	trail := NewTrail(memory.NewRepositories(st).Audit, st)

	err := st.WithTenantSession(context.Background(), uuid.New(), func(ctx context.Context, s *persistence.Session) error {
		assert.True(t, errors.Is(trail.Record(ctx, s, "contact", uuid.New(), "upsert", map[string]any{}), util.ErrValidation))
		assert.True(t, errors.Is(trail.Record(ctx, s, "contact", uuid.New(), domain.AuditCreate, map[string]any{"snapshot": 1}), util.ErrValidation))
		assert.True(t, errors.Is(trail.Record(ctx, s, "contact", uuid.New(), domain.AuditUpdate,
			map[string]any{"name": "x"}), util.ErrValidation))
		return nil
	})
	require.NoError(t, err)
}

func TestTrail_RecordsActorAndReadsNewestFirst(t *testing.T) {
	st := memory.NewStore(nil)
	trail := NewTrail(memory.NewRepositories(st).Audit, st)
	tenantID, actorID, otherTenant := uuid.New(), uuid.New(), uuid.New()
	entityID := uuid.New()
	ctx := tenant.WithIdentity(context.Background(), tenant.Identity{TenantID: tenantID, ActorID: actorID})

	before := domain.Contact{ID: entityID, FirstName: strPtr("Jane")}
	after := before
	after.Phone = strPtr("555-0100")

	require.NoError(t, st.WithTenantSession(ctx, tenantID, func(ctx context.Context, s *persistence.Session) error {
		require.NoError(t, trail.Created(ctx, s, domain.EntityContact, entityID, before))
		require.NoError(t, trail.Updated(ctx, s, domain.EntityContact, entityID, before, after))
		// no-op update writes nothing
		return trail.Updated(ctx, s, domain.EntityContact, entityID, after, after)
	}))
	require.NoError(t, st.WithTenantSession(ctx, otherTenant, func(ctx context.Context, s *persistence.Session) error {
		return trail.Created(ctx, s, domain.EntityContact, entityID, before)
	}))

	history, err := trail.History(context.Background(), tenantID, domain.EntityContact, entityID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.AuditUpdate, history[0].Action)
	assert.Equal(t, domain.AuditCreate, history[1].Action)
	assert.Equal(t, actorID, *history[0].ActorID)
	assert.Equal(t, map[string]any{"old": nil, "new": "555-0100"}, history[0].Changes["phone"])

	activity, err := trail.ActorActivity(context.Background(), tenantID, actorID, 1)
	require.NoError(t, err)
	require.Len(t, activity, 1)
	assert.Equal(t, domain.AuditUpdate, activity[0].Action)
}
