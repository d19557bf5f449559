package pluggable

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// healthMonitor periodically sweeps the active modules that implement
// HealthChecker. A failing check is reported to the recovery controller
// with the module's id, feeding the same bounded-retry path as any other
// runtime error.
type healthMonitor struct {
	orch     *Orchestrator
	cron     *cron.Cron
	entry    cron.EntryID
	schedule string
	timeout  time.Duration
}

func newHealthMonitor(orch *Orchestrator, schedule string, timeout time.Duration) (*healthMonitor, error) {
	m := &healthMonitor{
		orch:     orch,
		cron:     cron.New(),
		schedule: schedule,
		timeout:  timeout,
	}
	entry, err := m.cron.AddFunc(schedule, m.sweep)
	if err != nil {
		return nil, fmt.Errorf("invalid health sweep schedule %q: %w", schedule, err)
	}
	m.entry = entry
	return m, nil
}

// Start begins the periodic sweep.
func (m *healthMonitor) Start() {
	m.cron.Start()
	m.orch.logger.Debug("Health sweep started", "schedule", m.schedule)
}

// Stop halts the sweep, waiting for an in-flight run to finish.
func (m *healthMonitor) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
}

// sweep probes every active HealthChecker module once.
func (m *healthMonitor) sweep() {
	for _, reg := range m.orch.GetModules() {
		if reg.Status != StatusActive || reg.Instance == nil {
			continue
		}
		checker, ok := reg.Instance.(HealthChecker)
		if !ok {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		err := m.orch.guard(reg.ID, "healthCheck", func() error {
			return checker.HealthCheck(ctx)
		})
		cancel()

		if err != nil {
			m.orch.logger.Warn("Health check failed", "module", reg.ID, "error", err)
			m.orch.recovery.ReportError(reg.ID, err)
		}
	}
}
