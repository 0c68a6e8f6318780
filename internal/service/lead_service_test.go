package service

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/pkg/util"
)

func TestLeads_ConvertCreatesContact(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx()
	lead, err := h.leads.Create(ctx, domain.LeadCreate{
		RawNotes: "Wants lawn service", Name: strPtr("Jane Q Public"), Email: strPtr("jane@example.com"),
	})
	require.NoError(t, err)
	_, err = h.leads.Transition(ctx, lead.ID, domain.LeadStatusQualified)
	require.NoError(t, err)

	converted, contact, err := h.leads.Convert(ctx, lead.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.LeadStatusConverted, converted.Status)
	assert.Equal(t, contact.ID, *converted.ConvertedContactID)
	assert.Equal(t, "Jane", *contact.FirstName)
	assert.Equal(t, "Q Public", *contact.LastName)
	assert.Equal(t, []events.Kind{events.KindContactCreated, events.KindLeadConverted}, h.published.kinds())

	_, err = h.leads.Update(ctx, lead.ID, domain.LeadUpdate{Phone: strPtr("555")})
	assert.True(t, errors.Is(err, util.ErrImmutable))
	_, _, err = h.leads.Convert(ctx, lead.ID, nil)
	assert.True(t, errors.Is(err, util.ErrInvalidTransition))
}

func TestLeads_ConvertWithoutNameRollsBack(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx()
	lead, err := h.leads.Create(ctx, domain.LeadCreate{RawNotes: "Called about gutters"})
	require.NoError(t, err)

	_, _, err = h.leads.Convert(ctx, lead.ID, nil)
	assert.True(t, errors.Is(err, util.ErrValidation))

	stored, err := h.leads.Get(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LeadStatusNew, stored.Status)
}

func TestLeads_TransitionRejectsConverted(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx()
	lead, err := h.leads.Create(ctx, domain.LeadCreate{RawNotes: "x"})
	require.NoError(t, err)

	_, err = h.leads.Transition(ctx, lead.ID, domain.LeadStatusConverted)

	assert.True(t, errors.Is(err, util.ErrValidation))
}

func TestLeads_DeleteRejectsTerminal(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx()
	converted, err := h.leads.Create(ctx, domain.LeadCreate{RawNotes: "Roof leak", Name: strPtr("Jane Public")})
	require.NoError(t, err)
	_, _, err = h.leads.Convert(ctx, converted.ID, nil)
	require.NoError(t, err)
	archived, err := h.leads.Create(ctx, domain.LeadCreate{RawNotes: "Spam"})
	require.NoError(t, err)
	_, err = h.leads.Transition(ctx, archived.ID, domain.LeadStatusArchived)
	require.NoError(t, err)
	open, err := h.leads.Create(ctx, domain.LeadCreate{RawNotes: "Gutters"})
	require.NoError(t, err)

	assert.True(t, errors.Is(h.leads.Delete(ctx, converted.ID), util.ErrImmutable))
	assert.True(t, errors.Is(h.leads.Delete(ctx, archived.ID), util.ErrImmutable))
	require.NoError(t, h.leads.Delete(ctx, open.ID))

	_, err = h.leads.Get(ctx, converted.ID)
	assert.NoError(t, err)
	_, err = h.leads.Get(ctx, open.ID)
	assert.True(t, errors.Is(err, util.ErrNotFound))
}
