package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters for HTTP traffic and the ticket
// domain. Counters are cheap enough to keep per-process; a scrape endpoint
// reads them via Snapshot.
type Metrics struct {
	mu                sync.Mutex
	requestCount      map[string]int64
	errorCount        map[string]int64
	transitionCount   map[string]int64
	slaBreachCount    map[string]int64
	slaAtRiskCount    map[string]int64
	automationMatches int64
	automationErrors  int64
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:    make(map[string]int64),
		errorCount:      make(map[string]int64),
		transitionCount: make(map[string]int64),
		slaBreachCount:  make(map[string]int64),
		slaAtRiskCount:  make(map[string]int64),
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

// RecordTransition counts applied status transitions per edge.
func (m *Metrics) RecordTransition(from, to string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitionCount[from+">"+to]++
}

// RecordSlaBreach counts breached windows per kind.
func (m *Metrics) RecordSlaBreach(kind string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slaBreachCount[kind]++
}

// RecordSlaAtRisk counts at-risk signals per kind.
func (m *Metrics) RecordSlaAtRisk(kind string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slaAtRiskCount[kind]++
}

// RecordAutomationMatch counts rule matches.
func (m *Metrics) RecordAutomationMatch() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.automationMatches++
}

// RecordAutomationError counts failed automation actions.
func (m *Metrics) RecordAutomationError() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.automationErrors++
}

// Snapshot returns a copy of all counters for reporting.
func (m *Metrics) Snapshot() map[string]any {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return map[string]any{
		"requests":           copyCounts(m.requestCount),
		"errors":             copyCounts(m.errorCount),
		"transitions":        copyCounts(m.transitionCount),
		"sla_breaches":       copyCounts(m.slaBreachCount),
		"sla_at_risk":        copyCounts(m.slaAtRiskCount),
		"automation_matches": m.automationMatches,
		"automation_errors":  m.automationErrors,
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
