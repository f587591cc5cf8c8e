package monitoring

import (
	"encoding/json"
	"sync"
	"time"
)

// Counter names a pipeline counter
type Counter string

const (
	ProfilesProcessed  Counter = "profiles_processed"
	ProfileErrors      Counter = "profile_errors"
	SourcesDiscovered  Counter = "sources_discovered"
	DiscoveryErrors    Counter = "discovery_errors"
	ScrapesTotal       Counter = "scrapes_total"
	ScrapeErrors       Counter = "scrape_errors"
	ContentNew         Counter = "content_new"
	ContentDuplicate   Counter = "content_duplicate"
	AnalysesTotal      Counter = "analyses_total"
	AnalysisErrors     Counter = "analysis_errors"
	AlertsRaised       Counter = "alerts_raised"
	NotificationsSent  Counter = "notifications_sent"
	NotificationErrors Counter = "notification_errors"
	TasksDeadLettered  Counter = "tasks_dead_lettered"
)

// Metrics holds pipeline counters; a nil *Metrics discards everything
type Metrics struct {
	mu                sync.RWMutex
	counters          map[Counter]int
	cycles            int
	lastCycle         time.Time
	lastCycleDuration time.Duration
}

// Snapshot is the JSON view of Metrics
type Snapshot struct {
	Cycles            int             `json:"cycles"`
	LastCycle         time.Time       `json:"last_cycle"`
	LastCycleDuration string          `json:"last_cycle_duration"`
	Counters          map[Counter]int `json:"counters"`
}

// NewMetrics creates an empty metrics registry
func NewMetrics() *Metrics {
	return &Metrics{counters: make(map[Counter]int)}
}

// Add increments a counter by n
func (m *Metrics) Add(counter Counter, n int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[counter] += n
}

// Inc increments a counter by one
func (m *Metrics) Inc(counter Counter) {
	m.Add(counter, 1)
}

// Get returns the current value of a counter
func (m *Metrics) Get(counter Counter) int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[counter]
}

// RecordCycle stores the outcome of a scheduler cycle
func (m *Metrics) RecordCycle(started time.Time, duration time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles++
	m.lastCycle = started
	m.lastCycleDuration = duration
}

// Snapshot copies the current values
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{Counters: map[Counter]int{}}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	counters := make(map[Counter]int, len(m.counters))
	for k, v := range m.counters {
		counters[k] = v
	}
	return Snapshot{
		Cycles:            m.cycles,
		LastCycle:         m.lastCycle,
		LastCycleDuration: m.lastCycleDuration.String(),
		Counters:          counters,
	}
}

// GetMetrics returns current metrics as JSON
func (m *Metrics) GetMetrics() string {
	data, _ := json.MarshalIndent(m.Snapshot(), "", "  ")
	return string(data)
}
