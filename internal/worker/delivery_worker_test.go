package worker

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

	"github.com/spec-kit/field-service/internal/audit"
	"github.com/spec-kit/field-service/internal/domain"
	"github.com/spec-kit/field-service/internal/observability"
	"github.com/spec-kit/field-service/internal/repository/memory"
	"github.com/spec-kit/field-service/internal/service"
	"github.com/spec-kit/field-service/internal/tenant"
)

type failingSender struct{ calls int }

func (f *failingSender) Send(context.Context, service.Delivery) error {
	f.calls++
	return errors.New("mailbox unavailable")
}

type fixture struct {
	now      time.Time
	contacts *service.ContactService
	messages *service.MessageService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	st := memory.NewStore(clock)
	repos := memory.NewRepositories(st)
	deps := service.Dependencies{
		Sessions: st,
		Admin:    st,
		Audit:    audit.NewTrail(repos.Audit, st),
		Now:      clock,
		Contacts: repos.Contacts,
		Messages: repos.Messages,
	}
	return &fixture{now: now, contacts: service.NewContactService(deps), messages: service.NewMessageService(deps)}
}

func (f *fixture) queue(t *testing.T, email *string, at time.Time) *domain.ScheduledMessage {
	t.Helper()
	ctx := tenant.WithIdentity(context.Background(), tenant.Identity{TenantID: uuid.New(), ActorID: uuid.New()})
	first := "Jane"
	c, err := f.contacts.Create(ctx, domain.ContactCreate{FirstName: &first, Email: email})
	require.NoError(t, err)
	m, err := f.messages.Schedule(ctx, domain.MessageSchedule{ContactID: c.ID, MessageType: domain.MessageTypeServiceReminder, ScheduledFor: at})
	require.NoError(t, err)
	return m
}

func TestRunOnce_DeliversAcrossTenants(t *testing.T) {
	f := newFixture(t)
	email := "jane@example.com"
	f.queue(t, &email, f.now.Add(-time.Minute))
	f.queue(t, &email, f.now)
	f.queue(t, &email, f.now.Add(time.Hour))
	f.queue(t, nil, f.now)

	core, logs := observer.New(zapcore.DebugLevel)
	metrics := observability.NewMetrics()
	w := NewDeliveryWorker(f.messages, NewLogSender("noreply@example.com", zap.New(core)), zap.New(core), metrics, DeliveryOptions{
		Now: func() time.Time { return f.now },
	})

	n, err := w.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, logs.FilterMessage("email sent").Len())
	snap := metrics.Snapshot()
	assert.Equal(t, int64(2), snap.Deliveries[service.OutcomeSent])
	assert.Equal(t, int64(1), snap.Deliveries[service.OutcomeCancelled])

	n, err = w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRunOnce_FailureSchedulesRetry(t *testing.T) {
	f := newFixture(t)
	email := "jane@example.com"
	f.queue(t, &email, f.now)
	sender := &failingSender{}
	metrics := observability.NewMetrics()
	w := NewDeliveryWorker(f.messages, sender, zap.NewNop(), metrics, DeliveryOptions{Now: func() time.Time { return f.now }})

	_, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	n, err := w.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Zero(t, n, "retry is not due yet")
	assert.Equal(t, 1, sender.calls)
	assert.Equal(t, int64(1), metrics.Snapshot().Deliveries[service.OutcomeRetrying])
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	w := NewDeliveryWorker(f.messages, &failingSender{}, zap.NewNop(), nil, DeliveryOptions{Interval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
