package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/repository"
)

func TestAttributes_UpsertUpdatesExistingKey(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx()
	jane := h.contact(ctx, "Jane", nil)

	first, err := h.attrs.Upsert(ctx, domain.AttributeUpsert{ContactID: jane.ID, Key: "gate_code", Value: "1234"})
	require.NoError(t, err)
	second, err := h.attrs.Upsert(ctx, domain.AttributeUpsert{ContactID: jane.ID, Key: "gate_code", Value: "9999"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	list, err := h.attrs.ListForContact(ctx, jane.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "9999", list[0].Value)
	assert.Equal(t, domain.SourceManual, list[0].SourceType)

	entries := h.history(ctx, domain.EntityAttribute, first.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.AuditUpdate, entries[0].Action)
}

func TestAttributes_PersistConfirmedLinksNote(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx()
	jane := h.contact(ctx, "Jane", nil)
	ticket := h.openTicket(ctx, jane.ID)

	err := h.attrs.PersistConfirmed(ctx, *ticket, "Friendly dog", map[string]any{"pet": "dog", "pet_name": "Rex"})
	require.NoError(t, err)

	list, err := h.attrs.ListForContact(ctx, jane.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, a := range list {
		assert.Equal(t, domain.SourceConfirmed, a.SourceType)
		require.NotNil(t, a.SourceNoteID)
	}
	notes, err := h.notes.List(ctx, repository.NoteFilter{TicketID: &ticket.ID})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.NotNil(t, notes[0].ProcessedAt)
	assert.Equal(t, notes[0].ID, *list[0].SourceNoteID)
}

func TestAttributes_StoreExtractedKeepsHumanValues(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx()
	jane := h.contact(ctx, "Jane", nil)
	_, err := h.attrs.Upsert(ctx, domain.AttributeUpsert{ContactID: jane.ID, Key: "pet", Value: "cat"})
	require.NoError(t, err)
	note, err := h.notes.Create(ctx, domain.NoteCreate{ContactID: &jane.ID, Content: "Has a dog and a pool"})
	require.NoError(t, err)

	stored, err := h.attrs.StoreExtracted(ctx, note.ID, map[string]any{"pet": "dog", "pool": true})
	require.NoError(t, err)
	assert.Equal(t, 1, stored)

	list, err := h.attrs.ListForContact(ctx, jane.ID)
	require.NoError(t, err)
	byKey := map[string]domain.Attribute{}
	for _, a := range list {
		byKey[a.Key] = a
	}
	assert.Equal(t, "cat", byKey["pet"].Value)
	assert.Equal(t, domain.SourceExtracted, byKey["pool"].SourceType)
	assert.True(t, byKey["pool"].Confidence.Decimal.Equal(domain.ExtractedConfidence))

	unprocessed, err := h.notes.ListUnprocessed(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, unprocessed)
}
