package lottery

import (
	"sort"
	"sync"
	"time"
)

const (
	RoundRunning   = "running"
	RoundResolved  = "resolved"
	RoundNoEntries = "no_entries"
	RoundFailed    = "failed"
)

type RoundMetrics struct {
	Round     int           `json:"round"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time,omitempty"`
	Duration  time.Duration `json:"duration"`
	Status    string        `json:"status"`
	Entries   int           `json:"entries"`
	Winners   int           `json:"winners"`
	Failed    int           `json:"failed"`
}

// MetricsCollector keeps the last resolution attempt of every round in
// memory. It is reset on restart.
type MetricsCollector struct {
	metrics map[int]*RoundMetrics
	now     func() time.Time
	mu      sync.RWMutex
}

func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics: make(map[int]*RoundMetrics),
		now:     time.Now,
	}
}

func (mc *MetricsCollector) StartRound(round int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.metrics[round] = &RoundMetrics{
		Round:     round,
		StartTime: mc.now(),
		Status:    RoundRunning,
	}
}

func (mc *MetricsCollector) EndRound(round int, status string, report *RoundReport) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	m, exists := mc.metrics[round]
	if !exists {
		return
	}
	m.EndTime = mc.now()
	m.Duration = m.EndTime.Sub(m.StartTime)
	m.Status = status
	if report != nil {
		m.Entries = report.Entries
		m.Winners = len(report.Winners)
		m.Failed = report.Failed
	}
}

func (mc *MetricsCollector) Get(round int) (RoundMetrics, bool) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	m, exists := mc.metrics[round]
	if !exists {
		return RoundMetrics{}, false
	}
	return *m, true
}

// All returns every recorded round, oldest first.
func (mc *MetricsCollector) All() []RoundMetrics {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	out := make([]RoundMetrics, 0, len(mc.metrics))
	for _, m := range mc.metrics {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Round < out[j].Round })
	return out
}
