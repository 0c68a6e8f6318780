package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/observability"
)

func TestDispatcher_HandlerFaultIsolation(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	metrics := observability.NewMetrics()
	d := NewDispatcher(zap.New(core), metrics)

	var calls []string
	Subscribe(d, "first", func(_ context.Context, e TicketCancelled) error {
		calls = append(calls, "first")
		return errors.New("template missing")
	})
	Subscribe(d, "second", func(_ context.Context, e TicketCancelled) error {
		calls = append(calls, "second")
		panic("nil map")
	})
	Subscribe(d, "third", func(_ context.Context, e TicketCancelled) error {
		calls = append(calls, "third")
		return nil
	})
	Subscribe(d, "unrelated", func(_ context.Context, e TicketCompleted) error {
		calls = append(calls, "unrelated")
		return nil
	})

	tenantID := uuid.New()
	event := TicketCancelled{Meta: NewMeta(tenantID, uuid.New(), time.Now()), Ticket: domain.Ticket{ID: uuid.New()}}
	assert.NotPanics(t, func() { d.Publish(context.Background(), event) })

	assert.Equal(t, []string{"first", "second", "third"}, calls)

	failures := logs.FilterMessage("event handler failed").All()
	require.Len(t, failures, 2)
	fields := failures[1].ContextMap()
	assert.Equal(t, "second", fields["handler"])
	assert.Equal(t, string(KindTicketCancelled), fields["event_kind"])
	assert.Equal(t, event.ID.String(), fields["event_id"])
	assert.Equal(t, tenantID.String(), fields["tenant_id"])
	assert.Contains(t, fields["error"], "panic: nil map")

	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.Events[string(KindTicketCancelled)])
	assert.Equal(t, int64(1), snap.HandlerFailures[string(KindTicketCancelled)+"|second"])
}

func TestDispatcher_NoHandlersIsFine(t *testing.T) {
	d := NewDispatcher(zap.NewNop(), nil)
	assert.NotPanics(t, func() {
		d.Publish(context.Background(), LeadConverted{Meta: NewMeta(uuid.New(), uuid.Nil, time.Now())})
	})
}
