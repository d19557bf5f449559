package pluggable

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthSweepReportsFailingModule(t *testing.T) {
	orch := newTestOrchestrator(t, WithMaxRetryAttempts(0))
	healthy := &stubModule{}
	failing := &stubModule{healthErr: errors.New("unreachable")}
	mustRegister(t, orch, healthy, testConfig("healthy"))
	mustRegister(t, orch, failing, testConfig("failing"))
	require.NoError(t, orch.Activate(context.Background(), "healthy"))
	require.NoError(t, orch.Activate(context.Background(), "failing"))

	monitor, err := newHealthMonitor(orch, "@every 1h", 100*time.Millisecond)
	require.NoError(t, err)
	monitor.sweep()

	status, _ := orch.GetModuleStatus("healthy")
	assert.Equal(t, StatusActive, status)
	status, _ = orch.GetModuleStatus("failing")
	assert.Equal(t, StatusError, status)
}

func TestHealthSweepSkipsInactiveModules(t *testing.T) {
	orch := newTestOrchestrator(t, WithMaxRetryAttempts(0))
	loaded := &stubModule{healthErr: errors.New("would fail")}
	mustRegister(t, orch, loaded, testConfig("loaded-only"))
	require.NoError(t, orch.Load(context.Background(), "loaded-only"))

	monitor, err := newHealthMonitor(orch, "@every 1h", 100*time.Millisecond)
	require.NoError(t, err)
	monitor.sweep()

	status, _ := orch.GetModuleStatus("loaded-only")
	assert.Equal(t, StatusLoaded, status, "inactive modules are not probed")
}

func TestHealthSweepGuardsPanics(t *testing.T) {
	orch := newTestOrchestrator(t, WithMaxRetryAttempts(0))
	factory := ModuleFactoryFunc(func(context.Context, ModuleConfig) (Module, error) {
		return &panicHealthModule{}, nil
	})
	require.NoError(t, orch.Register("panicky", factory, testConfig("panicky")))
	require.NoError(t, orch.Activate(context.Background(), "panicky"))

	monitor, err := newHealthMonitor(orch, "@every 1h", 100*time.Millisecond)
	require.NoError(t, err)
	monitor.sweep()

	status, _ := orch.GetModuleStatus("panicky")
	assert.Equal(t, StatusError, status)

	reg, _ := orch.GetModule("panicky")
	assert.ErrorIs(t, reg.Err, ErrModulePanic)
}

type panicHealthModule struct{ stubModule }

func (m *panicHealthModule) HealthCheck(context.Context) error { panic("probe exploded") }

func TestWithHealthSweepRejectsBadSchedule(t *testing.T) {
	_, err := New(NewStdCoreAPI(nil), WithHealthSweep("not a schedule", time.Second))
	assert.Error(t, err)
}

func TestWithHealthSweepRunsPeriodically(t *testing.T) {
	orch := newTestOrchestrator(t, WithMaxRetryAttempts(0), WithHealthSweep("@every 100ms", time.Second))
	failing := &stubModule{healthErr: errors.New("unreachable")}
	mustRegister(t, orch, failing, testConfig("failing"))
	require.NoError(t, orch.Activate(context.Background(), "failing"))

	require.Eventually(t, func() bool {
		status, _ := orch.GetModuleStatus("failing")
		return status == StatusError
	}, 3*time.Second, 20*time.Millisecond)
}
