package client

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"
)

type (
	// Monitor keeps remote call stats of all the Dashboard actors.
	Monitor struct {
		sync.Mutex
		calls  map[string]*callStat
		period time.Duration
		logger *slog.Logger
		stopCh chan struct{}
	}

	callStat struct {
		calls    int
		failures int
		dur      *movingaverage.MovingAverage
	}

	// CallStats is a point-in-time copy of a single remote method stats.
	CallStats struct {
		Calls    int
		Failures int
		// Moving average call duration
		AvgDurMs float64
	}
)

// CallServed updates the remote method stats.
func (m *Monitor) CallServed(method string, dur time.Duration, err error) {
	m.Lock()
	defer m.Unlock()

	stat, found := m.calls[method]
	if !found {
		stat = &callStat{dur: movingaverage.New(5)}
		m.calls[method] = stat
	}

	stat.calls++
	if err != nil {
		stat.failures++
	}
	stat.dur.Add(float64(dur/time.Microsecond) / 1000.0)
}

// Stats returns stats per remote method.
func (m *Monitor) Stats() map[string]CallStats {
	m.Lock()
	defer m.Unlock()

	out := make(map[string]CallStats, len(m.calls))
	for method, stat := range m.calls {
		out[method] = CallStats{
			Calls:    stat.calls,
			Failures: stat.failures,
			AvgDurMs: stat.dur.Avg(),
		}
	}

	return out
}

// Start starts the Monitor worker.
func (m *Monitor) Start() {
	m.Lock()
	defer m.Unlock()

	if m.stopCh != nil {
		return
	}

	m.stopCh = make(chan struct{})
	go m.worker(m.stopCh)
}

// Stop stops the Monitor worker.
func (m *Monitor) Stop() {
	m.Lock()
	defer m.Unlock()

	if m.stopCh == nil {
		return
	}

	close(m.stopCh)
	m.stopCh = nil
}

// worker does the actual job.
func (m *Monitor) worker(stopCh chan struct{}) {
	ticker := time.NewTicker(m.period)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			// Stop the monitor
			return
		case <-ticker.C:
			// Print the report
			stats := m.Stats()

			methods := make([]string, 0, len(stats))
			for method := range stats {
				methods = append(methods, method)
			}
			sort.Strings(methods)

			for _, method := range methods {
				s := stats[method]
				m.logger.Debug("monitor", "method", method, "calls", s.Calls, "failures", s.Failures, "avg_dur_ms", s.AvgDurMs)
			}
		}
	}
}

// NewMonitor creates a new Monitor object.
func NewMonitor(period time.Duration, logger *slog.Logger) *Monitor {
	if period <= 0 {
		period = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Monitor{
		calls:  make(map[string]*callStat),
		period: period,
		logger: logger.With("component", "Monitor"),
	}
}
