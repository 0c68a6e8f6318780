package observability

import (
	"maps"
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters. A nil *Metrics records nothing.
type Metrics struct {
	mu              sync.Mutex
	requestCount    map[string]int64
	errorCount      map[string]int64
	eventCount      map[string]int64
	handlerFailures map[string]int64
	deliveries      map[string]int64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Requests        map[string]int64 `json:"requests"`
	Errors          map[string]int64 `json:"errors"`
	Events          map[string]int64 `json:"events"`
	HandlerFailures map[string]int64 `json:"handler_failures"`
	Deliveries      map[string]int64 `json:"deliveries"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:    make(map[string]int64),
		errorCount:      make(map[string]int64),
		eventCount:      make(map[string]int64),
		handlerFailures: make(map[string]int64),
		deliveries:      make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.inc(m.errorCount, path+"|"+method+"|"+code)
}

// RecordEvent counts a published event.
func (m *Metrics) RecordEvent(kind string) {
	if m == nil {
		return
	}
	m.inc(m.eventCount, kind)
}

// RecordHandlerFailure counts a handler that returned an error or panicked.
func (m *Metrics) RecordHandlerFailure(kind, handler string) {
	if m == nil {
		return
	}
	m.inc(m.handlerFailures, kind+"|"+handler)
}

// RecordDelivery counts a scheduled message delivery outcome.
func (m *Metrics) RecordDelivery(outcome string) {
	if m == nil {
		return
	}
	m.inc(m.deliveries, outcome)
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Requests:        maps.Clone(m.requestCount),
		Errors:          maps.Clone(m.errorCount),
		Events:          maps.Clone(m.eventCount),
		HandlerFailures: maps.Clone(m.handlerFailures),
		Deliveries:      maps.Clone(m.deliveries),
	}
}

func (m *Metrics) inc(counter map[string]int64, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counter[key]++
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
