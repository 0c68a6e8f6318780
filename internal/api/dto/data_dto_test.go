package dto

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/field-service/internal/api/dispatch"
	"github.com/spec-kit/field-service/pkg/util"
)

func TestReadRequestFromQuery(t *testing.T) {
	id := uuid.New()
	req, err := ReadRequestFromQuery(map[string]string{
		"type":       "tickets",
		"id":         id.String(),
		"include":    "line_items, notes,",
		"limit":      "25",
		"status":     "scheduled",
		"contact_id": "abc",
	})
	require.NoError(t, err)

	assert.Equal(t, dispatch.ReadTickets, req.Type)
	require.NotNil(t, req.ID)
	assert.Equal(t, id, *req.ID)
	assert.Equal(t, []string{"line_items", "notes"}, req.Includes)
	assert.Equal(t, 25, req.Limit)
	assert.Equal(t, map[string]string{"status": "scheduled", "contact_id": "abc"}, req.Filters)
}

func TestReadRequestFromQuery_Rejects(t *testing.T) {
	for _, q := range []map[string]string{
		{},
		{"type": "contacts", "id": "42"},
		{"type": "contacts", "limit": "ten"},
		{"type": "contacts", "offset": "-"},
	} {
		_, err := ReadRequestFromQuery(q)
		assert.ErrorIs(t, err, util.ErrValidation, "%v", q)
	}
}
