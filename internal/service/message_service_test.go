package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/pkg/util"
)

type stubSender struct {
	err  error
	sent []Delivery
}

func (s *stubSender) Send(_ context.Context, d Delivery) error {
	s.sent = append(s.sent, d)
	return s.err
}

func (h *harness) schedule(ctx context.Context, contactID uuid.UUID, ticketID *uuid.UUID) *domain.ScheduledMessage {
	h.t.Helper()
	msg, err := h.messages.Schedule(ctx, domain.MessageSchedule{
		ContactID: contactID, TicketID: ticketID, MessageType: domain.MessageTypeCustom, ScheduledFor: h.clock.Now(),
	})
	require.NoError(h.t, err)
	return msg
}

func TestMessages_DeliverSuccess(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx()
	msg := h.schedule(ctx, h.contact(ctx, "Jane", strPtr("jane@example.com")).ID, nil)
	sender := &stubSender{}

	outcome, err := h.messages.Deliver(ctx, msg.ID, sender)

	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, outcome)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "jane@example.com", *sender.sent[0].Contact.Email)
	stored, err := h.messages.Get(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MessageStatusSent, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
}

func TestMessages_MissingEmailCancelsWithReason(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx()
	msg := h.schedule(ctx, h.contact(ctx, "Jane", nil).ID, nil)
	sender := &stubSender{}

	outcome, err := h.messages.Deliver(ctx, msg.ID, sender)

	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, outcome)
	assert.Empty(t, sender.sent)
	entries := h.history(ctx, domain.EntityScheduledMessage, msg.ID)
	require.NotEmpty(t, entries)
	assert.Equal(t, map[string]any{"old": nil, "new": "contact has no email address"}, entries[0].Changes["last_error"])
}

func TestMessages_RetryBoundedAtThreeAttempts(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx()
	msg := h.schedule(ctx, h.contact(ctx, "Jane", strPtr("jane@example.com")).ID, nil)
	sender := &stubSender{err: errors.New("smtp timeout")}

	wantDelays := []time.Duration{5 * time.Minute, 10 * time.Minute}
	for i, delay := range wantDelays {
		outcome, err := h.messages.Deliver(ctx, msg.ID, sender)
		require.NoError(t, err)
		assert.Equal(t, OutcomeRetrying, outcome, "attempt %d", i+1)

		stored, err := h.messages.Get(ctx, msg.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.MessageStatusPending, stored.Status)
		assert.Equal(t, h.clock.Now().Add(delay), stored.ScheduledFor)
		entries := h.history(ctx, domain.EntityScheduledMessage, msg.ID)
		require.Len(t, entries, i+2, "one update per attempt")
		assert.Contains(t, entries[0].Changes, "attempts")
		assert.Contains(t, entries[0].Changes, "last_error")
		assert.Contains(t, entries[0].Changes, "scheduled_for")
		assert.NotContains(t, entries[0].Changes, "status")

		skipped, err := h.messages.Deliver(ctx, msg.ID, sender)
		require.NoError(t, err)
		assert.Equal(t, OutcomeSkipped, skipped, "not yet due")
		h.clock.Advance(delay)
	}

	outcome, err := h.messages.Deliver(ctx, msg.ID, sender)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)

	stored, err := h.messages.Get(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MessageStatusFailed, stored.Status)
	assert.Equal(t, 3, stored.Attempts)
	assert.Equal(t, "smtp timeout", *stored.LastError)

	_, err = h.messages.Retry(ctx, msg.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, util.ErrInvalidTransition))
	assert.Equal(t, "retry limit reached", util.ToDomainError(err).Details["reason"])
	assert.Len(t, sender.sent, 3)
}

func TestMessages_CancelPendingForTicket(t *testing.T) {
	h := newHarness(t)
	ctx := tenantCtx()
	jane := h.contact(ctx, "Jane", strPtr("jane@example.com"))
	ticket := h.openTicket(ctx, jane.ID)
	first := h.schedule(ctx, jane.ID, &ticket.ID)
	h.schedule(ctx, jane.ID, &ticket.ID)
	unrelated := h.schedule(ctx, jane.ID, nil)
	_, err := h.messages.MarkSent(ctx, first.ID)
	require.NoError(t, err)

	n, err := h.messages.CancelPendingForTicket(ctx, ticket.ID, "ticket cancelled")

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	stored, err := h.messages.Get(ctx, unrelated.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.MessageStatusPending, stored.Status)
}

func TestMessages_ListDueSpansTenants(t *testing.T) {
	h := newHarness(t)
	ctxA, ctxB := tenantCtx(), tenantCtx()
	h.schedule(ctxA, h.contact(ctxA, "Ann", nil).ID, nil)
	h.schedule(ctxB, h.contact(ctxB, "Ben", nil).ID, nil)

	due, err := h.messages.ListDue(context.Background(), h.clock.Now(), 10)

	require.NoError(t, err)
	assert.Len(t, due, 2)
}
