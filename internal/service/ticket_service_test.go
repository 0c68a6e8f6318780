package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/events"
	"github.com/spec-kit/field-service/pkg/util"
)

func TestServices_RequireTenant(t *testing.T) {
	h := newHarness(t)

	_, err := h.contacts.Create(context.Background(), domain.ContactCreate{FirstName: strPtr("Jane")})

	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrValidation))
	assert.Equal(t, "MISSING_TENANT", util.ToDomainError(err).Details["reason"])
}

func TestContacts_TenantIsolation(t *testing.T) {
	h := newHarness(t)
	ctxA, ctxB := tenantCtx(), tenantCtx()
	jane := h.contact(ctxA, "Jane", nil)

	_, err := h.contacts.Get(ctxB, jane.ID)
	assert.True(t, errors.Is(err, util.ErrNotFound))

	listed, err := h.contacts.List(ctxB, repositoryContactSearch("Jane"))
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestContacts_UpdateRecordsDiff(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx()
	jane := h.contact(ctx, "Jane", nil)

	_, err := h.contacts.Update(ctx, jane.ID, domain.ContactUpdate{Phone: strPtr("555-0100")})
	require.NoError(t, err)

	entries := h.history(ctx, domain.EntityContact, jane.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.AuditUpdate, entries[0].Action)
	assert.Equal(t, map[string]any{"phone": map[string]any{"old": nil, "new": "555-0100"}}, entries[0].Changes)
	assert.Equal(t, domain.AuditCreate, entries[1].Action)
	assert.Equal(t, []events.Kind{events.KindContactCreated}, h.published.kinds())
}

func TestTickets_ScheduledCannotComplete(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx()
	ticket := h.openTicket(ctx, h.contact(ctx, "Jane", nil).ID)

	_, err := h.tickets.FinalizeCloseOut(ctx, ticket.ID, domain.FinalizeInput{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrInvalidTransition))
	de := util.ToDomainError(err)
	assert.Equal(t, "scheduled", de.Details["from"])
	assert.Equal(t, "completed", de.Details["to"])
}

func TestTickets_AddressMustBelongToContact(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx()
	jane := h.contact(ctx, "Jane", nil)
	other := h.openTicket(ctx, h.contact(ctx, "Bob", nil).ID)

	_, err := h.tickets.Create(ctx, domain.TicketCreate{ContactID: jane.ID, AddressID: other.AddressID, ScheduledAt: h.clock.Now()})

	assert.True(t, errors.Is(err, util.ErrValidation))
}

func TestTickets_ClockInAndOut(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx()
	ticket := h.openTicket(ctx, h.contact(ctx, "Jane", nil).ID)

	_, err := h.tickets.ClockOut(ctx, ticket.ID)
	assert.True(t, errors.Is(err, util.ErrInvalidTransition))

	ticket, err = h.tickets.ClockIn(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, ticket.Status)

	h.clock.Advance(95 * time.Minute)
	ticket, err = h.tickets.ClockOut(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, ticket.ActualDurationMinutes)
	assert.Equal(t, 95, *ticket.ActualDurationMinutes)
	assert.Equal(t, domain.TicketStatusInProgress, ticket.Status)
	assert.Contains(t, h.published.kinds(), events.KindTicketClockedIn)
}

func TestTickets_CancelClosesTicket(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx()
	ticket := h.openTicket(ctx, h.contact(ctx, "Jane", nil).ID)

	cancelled, err := h.tickets.Cancel(ctx, ticket.ID, "customer rescheduled")
	require.NoError(t, err)
	assert.True(t, cancelled.IsClosed())

	_, err = h.tickets.Update(ctx, ticket.ID, domain.TicketUpdate{Notes: strPtr("late")})
	assert.True(t, errors.Is(err, util.ErrImmutable))

	last := h.published.events[len(h.published.events)-1].(events.TicketCancelled)
	assert.Equal(t, "customer rescheduled", last.Reason)
}

func TestAddresses_DeleteKeepsTicketAddresses(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx()
	contact := h.contact(ctx, "Jane", nil)
	ticket := h.openTicket(ctx, contact.ID)
	_, err := h.tickets.Cancel(ctx, ticket.ID, "customer rescheduled")
	require.NoError(t, err)

	err = h.addresses.Delete(ctx, ticket.AddressID)
	assert.True(t, errors.Is(err, util.ErrConflict))
	_, err = h.addresses.Get(ctx, ticket.AddressID)
	require.NoError(t, err)

	spare, err := h.addresses.Create(ctx, domain.AddressCreate{
		ContactID: contact.ID, Street: "2 Side St", City: "Springfield", State: "IL", Zip: "62701",
	})
	require.NoError(t, err)
	require.NoError(t, h.addresses.Delete(ctx, spare.ID))
}

func TestCloseOut_SkipsExtractionWithoutAuthorization(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx()
	ticket := h.openTicket(ctx, h.contact(ctx, "Jane", nil).ID)
	_, err := h.tickets.ClockIn(ctx, ticket.ID)
	require.NoError(t, err)

	draft, err := h.tickets.InitiateCloseOut(ctx, ticket.ID, domain.CloseOutInput{DurationMinutes: 45, Notes: "Dog named Rex"})

	require.NoError(t, err)
	assert.True(t, draft.ExtractionSkipped)
	assert.Empty(t, draft.Suggested)
	assert.Zero(t, h.extractor.calls)
	assert.Equal(t, 45, *draft.Ticket.ActualDurationMinutes)
	assert.Equal(t, "Dog named Rex", *draft.Ticket.Notes)
}

func TestCloseOut_ExtractsWhenAuthorized(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx()
	ticket := h.openTicket(ctx, h.contact(ctx, "Jane", nil).ID)
	_, err := h.tickets.ClockIn(ctx, ticket.ID)
	require.NoError(t, err)
	approve(t, h, ctx)
	h.extractor.out = map[string]any{"pet": "dog"}

	draft, err := h.tickets.InitiateCloseOut(ctx, ticket.ID, domain.CloseOutInput{DurationMinutes: 30, Notes: "Dog named Rex"})

	require.NoError(t, err)
	assert.False(t, draft.ExtractionSkipped)
	assert.Equal(t, map[string]any{"pet": "dog"}, draft.Suggested)
	assert.Equal(t, 1, h.extractor.calls)
}

func TestCloseOut_ExtractorFailureKeepsDraft(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx()
	ticket := h.openTicket(ctx, h.contact(ctx, "Jane", nil).ID)
	_, err := h.tickets.ClockIn(ctx, ticket.ID)
	require.NoError(t, err)
	approve(t, h, ctx)
	h.extractor.err = errors.New("upstream 503")

	draft, err := h.tickets.InitiateCloseOut(ctx, ticket.ID, domain.CloseOutInput{DurationMinutes: 30, Notes: "Dog"})

	require.NoError(t, err)
	assert.True(t, draft.ExtractionSkipped)
	stored, err := h.tickets.Get(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, *stored.ActualDurationMinutes)
}

func TestFinalizeCloseOut_PublishesAndLocksLineItems(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx()
	ticket := h.openTicket(ctx, h.contact(ctx, "Jane", nil).ID)
	item, err := h.lineItems.Add(ctx, domain.LineItemCreate{TicketID: ticket.ID, Description: strPtr("Visit"), TotalPriceCents: ptrTo(int64(7500))})
	require.NoError(t, err)
	_, err = h.tickets.ClockIn(ctx, ticket.ID)
	require.NoError(t, err)

	closed, err := h.tickets.FinalizeCloseOut(ctx, ticket.ID, domain.FinalizeInput{
		Attributes: map[string]any{"pet": "dog"}, FollowUp: domain.FollowUpReachOut, FollowUpMonths: 6,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusCompleted, closed.Status)
	assert.NotNil(t, closed.ClosedAt)
	assert.NotNil(t, closed.ClockOutAt)

	completed := h.published.events[len(h.published.events)-1].(events.TicketCompleted)
	assert.Equal(t, 6, completed.FollowUpMonths)
	assert.Equal(t, "dog", completed.Attributes["pet"])

	before := h.auditCount(ctx)
	_, err = h.lineItems.Add(ctx, domain.LineItemCreate{TicketID: ticket.ID, TotalPriceCents: ptrTo(int64(100))})
	assert.True(t, errors.Is(err, util.ErrImmutable))
	_, err = h.lineItems.Update(ctx, item.ID, domain.LineItemUpdate{TotalPriceCents: ptrTo(int64(1))})
	assert.True(t, errors.Is(err, util.ErrImmutable))
	assert.True(t, errors.Is(h.lineItems.Delete(ctx, item.ID), util.ErrImmutable))
	assert.Equal(t, before, h.auditCount(ctx))
}

func TestFinalizeCloseOut_ReachOutNeedsMonths(t *testing.T) {
	h := newHarness(t)

	_, err := h.tickets.FinalizeCloseOut(tenantCtx(), uuid.New(), domain.FinalizeInput{FollowUp: domain.FollowUpReachOut})

	assert.True(t, errors.Is(err, util.ErrValidation))
}

func TestLineItems_ResolveServicePrice(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx()
	ticket := h.openTicket(ctx, h.contact(ctx, "Jane", nil).ID)
	mulch, err := h.catalog.Create(ctx, domain.CatalogItemCreate{
		Name: "Mulch", PricingType: domain.PricingPerUnit, UnitPriceCents: ptrTo(int64(450)), UnitLabel: strPtr("bag"),
	})
	require.NoError(t, err)

	qty := decimal.RequireFromString("2.5")
	item, err := h.lineItems.Add(ctx, domain.LineItemCreate{TicketID: ticket.ID, ServiceID: &mulch.ID, Quantity: &qty})

	require.NoError(t, err)
	assert.Equal(t, int64(1125), item.TotalPriceCents)
	assert.Equal(t, "Mulch", *item.Description)
}

func approve(t *testing.T, h *harness, ctx context.Context) {
	t.Helper()
	req, err := h.authz.Request(ctx, domain.AuthorizationRequest{Purpose: domain.PurposeNoteExtraction})
	require.NoError(t, err)
	_, err = h.authz.Decide(ctx, domain.AuthorizationDecision{ID: req.ID, Status: domain.AuthorizationApproved})
	require.NoError(t, err)
}
