package observability

import (
	"sort"
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu               sync.Mutex
	requestCount     map[string]int64
	errorCount       map[string]int64
	transitionCount  map[string]int64
	deliveryFailures map[string]int64
}

// Snapshot is a copy of the counters suitable for JSON output.
type Snapshot struct {
	Requests         map[string]int64 `json:"http_requests"`
	Errors           map[string]int64 `json:"http_errors"`
	Transitions      map[string]int64 `json:"transitions"`
	DeliveryFailures map[string]int64 `json:"delivery_failures"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:     make(map[string]int64),
		errorCount:       make(map[string]int64),
		transitionCount:  make(map[string]int64),
		deliveryFailures: make(map[string]int64),
	}
}

// RecordRequest increments counters for ops HTTP requests.
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
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordTransition counts a committed ticket status change.
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitionCount[from+"->"+to]++
}

// RecordDeliveryFailure counts a best-effort chat operation that failed.
func (m *Metrics) RecordDeliveryFailure(op string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveryFailures[op]++
}

// Transitions returns how many times from->to was committed.
func (m *Metrics) Transitions(from, to string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionCount[from+"->"+to]
}

// DeliveryFailures returns the failure count for op.
func (m *Metrics) DeliveryFailures(op string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deliveryFailures[op]
}

// Snapshot copies every counter.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Requests:         copyCounts(m.requestCount),
		Errors:           copyCounts(m.errorCount),
		Transitions:      copyCounts(m.transitionCount),
		DeliveryFailures: copyCounts(m.deliveryFailures),
	}
}

// Keys lists the transition keys in sorted order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s.Transitions))
	for k := range s.Transitions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyCounts(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
