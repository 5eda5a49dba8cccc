package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/spec-kit/payroll-sync/internal/domain"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	syncCount    map[string]int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		syncCount:    make(map[string]int64),
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
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordSync accumulates the outcome of one ingestion call.
func (m *Metrics) RecordSync(result *domain.SyncResult) {
	if m == nil || result == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncCount["batches"]++
	if result.Rejected {
		m.syncCount["batches_rejected"]++
	}
	m.syncCount["records"] += int64(result.Total)
	m.syncCount["created"] += int64(result.Created)
	m.syncCount["updated"] += int64(result.Updated)
	m.syncCount["record_errors"] += int64(len(result.Errors))
}

// Snapshot copies every counter.
func (m *Metrics) Snapshot() map[string]map[string]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]map[string]int64{
		"requests": copyCounts(m.requestCount),
		"errors":   copyCounts(m.errorCount),
		"sync":     copyCounts(m.syncCount),
	}
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
