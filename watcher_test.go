package pluggable

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsModuleOnFileChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o600))

	orch := newTestOrchestrator(t, WithHotReload(true))

	var creations atomic.Int64
	factory := ModuleFactoryFunc(func(context.Context, ModuleConfig) (Module, error) {
		creations.Add(1)
		return &stubModule{}, nil
	})
	cfg := testConfig("charts")
	cfg.WatchPath = path
	require.NoError(t, orch.Register("charts", factory, cfg))
	require.NoError(t, orch.Activate(context.Background(), "charts"))
	require.EqualValues(t, 1, creations.Load())

	require.NoError(t, os.WriteFile(path, []byte("version: 2\n"), 0o600))

	require.Eventually(t, func() bool {
		return creations.Load() >= 2
	}, 3*time.Second, 20*time.Millisecond, "write triggers a reload after the debounce window")

	require.Eventually(t, func() bool {
		status, _ := orch.GetModuleStatus("charts")
		return status == StatusActive
	}, 3*time.Second, 20*time.Millisecond, "active module comes back active")
}

func TestWatcherNotStartedWithoutHotReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o600))

	orch := newTestOrchestrator(t)

	var creations atomic.Int64
	factory := ModuleFactoryFunc(func(context.Context, ModuleConfig) (Module, error) {
		creations.Add(1)
		return &stubModule{}, nil
	})
	cfg := testConfig("charts")
	cfg.WatchPath = path
	require.NoError(t, orch.Register("charts", factory, cfg))
	require.NoError(t, orch.Load(context.Background(), "charts"))

	require.NoError(t, os.WriteFile(path, []byte("version: 2\n"), 0o600))
	time.Sleep(2 * debounceWindow)

	assert.EqualValues(t, 1, creations.Load())
}

func TestWatcherStopsOnUnload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "charts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o600))

	orch := newTestOrchestrator(t, WithHotReload(true))

	var creations atomic.Int64
	factory := ModuleFactoryFunc(func(context.Context, ModuleConfig) (Module, error) {
		creations.Add(1)
		return &stubModule{}, nil
	})
	cfg := testConfig("charts")
	cfg.WatchPath = path
	require.NoError(t, orch.Register("charts", factory, cfg))
	require.NoError(t, orch.Load(context.Background(), "charts"))
	require.NoError(t, orch.Unload(context.Background(), "charts", false))

	require.NoError(t, os.WriteFile(path, []byte("version: 2\n"), 0o600))
	time.Sleep(2 * debounceWindow)

	assert.EqualValues(t, 1, creations.Load(), "no reload fires after unload")
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watched")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	orch := newTestOrchestrator(t)
	w, err := newModuleWatcher(orch, "charts", path)
	require.NoError(t, err)

	w.Stop()
	w.Stop()
}

func TestWatcherMissingPath(t *testing.T) {
	orch := newTestOrchestrator(t)
	_, err := newModuleWatcher(orch, "charts", filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}
