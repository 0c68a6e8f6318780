package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/api/actions", "POST", 200, time.Millisecond)
	m.RecordRequest("/api/actions", "POST", 200, time.Millisecond)
	m.RecordError("/api/actions", "POST", "IMMUTABLE_ENTITY")
	m.RecordEvent("ticket.completed")
	m.RecordHandlerFailure("ticket.completed", "follow_up")
	m.RecordDelivery("sent")

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Requests["/api/actions|POST|200"])
	assert.Equal(t, int64(1), snap.Errors["/api/actions|POST|IMMUTABLE_ENTITY"])
	assert.Equal(t, int64(1), snap.Events["ticket.completed"])
	assert.Equal(t, int64(1), snap.HandlerFailures["ticket.completed|follow_up"])
	assert.Equal(t, int64(1), snap.Deliveries["sent"])
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordEvent("x")
		m.RecordHandlerFailure("x", "y")
		m.RecordRequest("/", "GET", 200, 0)
	})
	assert.Equal(t, Snapshot{}, m.Snapshot())
}
