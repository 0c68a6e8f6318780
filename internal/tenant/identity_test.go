package tenant

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/field-service/pkg/util"
)

func TestWithIdentity_RoundTrip(t *testing.T) {
	id := Identity{TenantID: uuid.New(), ActorID: uuid.New()}
	ctx := WithIdentity(context.Background(), id)

	got, err := Require(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestRequire_MissingTenant(t *testing.T) {
	_, err := Require(context.Background())
	assert.True(t, errors.Is(err, util.ErrValidation))

	ctx := WithIdentity(context.Background(), Identity{ActorID: uuid.New()})
	_, ok := FromContext(ctx)
	assert.False(t, ok, "nil tenant id must not count as bound")
}
