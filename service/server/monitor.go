package server

import (
	"log/slog"
	"sync"
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"
)

// Monitor keeps GovernanceService stats.
type Monitor struct {
	sync.Mutex
	opsHandled    int
	readsHandled  int
	writesHandled int
	rejected      int
	readReqDur    *movingaverage.MovingAverage
	writeReqDur   *movingaverage.MovingAverage
	period        time.Duration
	logger        *slog.Logger
	stopCh        chan struct{}
}

// MonitorReport is a point-in-time copy of the Monitor counters.
type MonitorReport struct {
	OpsHandled    int
	ReadsHandled  int
	WritesHandled int
	Rejected      int
	ReadDurMs     float64
	WriteDurMs    float64
}

// OpsHandled increments the storage operations applied metric.
func (m *Monitor) OpsHandled(count int) {
	m.Lock()
	defer m.Unlock()

	m.opsHandled += count
}

// ReadServed updates the read request handling duration metric.
func (m *Monitor) ReadServed(dur time.Duration) {
	m.Lock()
	defer m.Unlock()

	m.readReqDur.Add(float64(dur/time.Microsecond) / 1000.0)
	m.readsHandled++
}

// WriteServed updates the update request handling duration metric.
func (m *Monitor) WriteServed(dur time.Duration) {
	m.Lock()
	defer m.Unlock()

	m.writeReqDur.Add(float64(dur/time.Microsecond) / 1000.0)
	m.writesHandled++
}

// RequestRejected increments the rejected (invalid / unauthenticated) requests metric.
func (m *Monitor) RequestRejected() {
	m.Lock()
	defer m.Unlock()

	m.rejected++
}

// Report returns the current counters.
func (m *Monitor) Report() MonitorReport {
	m.Lock()
	defer m.Unlock()

	return m.report()
}

func (m *Monitor) report() MonitorReport {
	return MonitorReport{
		OpsHandled:    m.opsHandled,
		ReadsHandled:  m.readsHandled,
		WritesHandled: m.writesHandled,
		Rejected:      m.rejected,
		ReadDurMs:     m.readReqDur.Avg(),
		WriteDurMs:    m.writeReqDur.Avg(),
	}
}

// Start starts the Monitor worker.
func (m *Monitor) Start() {
	if m.stopCh != nil {
		return
	}

	m.stopCh = make(chan struct{})
	go m.worker(m.stopCh)
}

// Stop stops the Monitor worker.
func (m *Monitor) Stop() {
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

	perSec := func(v int) float64 {
		return float64(v) / (float64(m.period) / float64(time.Second))
	}

	for {
		select {
		case <-stopCh:
			// Stop the monitor
			return
		case <-ticker.C:
			// Print the report
			m.Lock()

			r := m.report()
			m.logger.Info("monitor",
				"ops_per_sec", perSec(r.OpsHandled),
				"reads_per_sec", perSec(r.ReadsHandled),
				"writes_per_sec", perSec(r.WritesHandled),
				"rejected", r.Rejected,
				"read_dur_ms", r.ReadDurMs,
				"write_dur_ms", r.WriteDurMs,
			)
			m.opsHandled, m.readsHandled, m.writesHandled, m.rejected = 0, 0, 0, 0

			m.Unlock()
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
		readReqDur:  movingaverage.New(5),
		writeReqDur: movingaverage.New(5),
		period:      period,
		logger:      logger.With("component", "Monitor"),
	}
}
