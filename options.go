package pluggable

import "time"

// orchestratorOptions collects the construction-time configuration surface.
type orchestratorOptions struct {
	logger            Logger
	coreVersion       string
	enableHotReload   bool
	maxRetryAttempts  int
	dependencyTimeout time.Duration
	healthSchedule    string
	healthTimeout     time.Duration
	retryBase         time.Duration
}

// Option configures the orchestrator at construction time.
type Option func(*orchestratorOptions)

// WithLogger sets the structured logger. Defaults to a slog adapter.
func WithLogger(logger Logger) Option {
	return func(o *orchestratorOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCoreVersion overrides the core version modules are checked against.
func WithCoreVersion(version string) Option {
	return func(o *orchestratorOptions) {
		if version != "" {
			o.coreVersion = version
		}
	}
}

// WithHotReload enables hot reload: re-registering an existing module id
// reloads it in place, and modules with a WatchPath get a file watcher that
// triggers reload on change.
func WithHotReload(enabled bool) Option {
	return func(o *orchestratorOptions) {
		o.enableHotReload = enabled
	}
}

// WithMaxRetryAttempts bounds the recovery controller's reload retries for
// a failing module. Zero disables retries. Default is 3.
func WithMaxRetryAttempts(attempts int) Option {
	return func(o *orchestratorOptions) {
		if attempts >= 0 {
			o.maxRetryAttempts = attempts
		}
	}
}

// WithDependencyTimeout caps how long a single dependency load may take.
// Zero leaves dependency loads unbounded.
func WithDependencyTimeout(timeout time.Duration) Option {
	return func(o *orchestratorOptions) {
		if timeout >= 0 {
			o.dependencyTimeout = timeout
		}
	}
}

// WithHealthSweep schedules a periodic health check over active modules
// using a cron expression (e.g. "@every 30s"). Empty disables the sweep.
func WithHealthSweep(schedule string, checkTimeout time.Duration) Option {
	return func(o *orchestratorOptions) {
		o.healthSchedule = schedule
		if checkTimeout > 0 {
			o.healthTimeout = checkTimeout
		}
	}
}

// withRetryBase shortens the recovery backoff base. Test hook.
func withRetryBase(base time.Duration) Option {
	return func(o *orchestratorOptions) {
		if base > 0 {
			o.retryBase = base
		}
	}
}

func defaultOptions() orchestratorOptions {
	return orchestratorOptions{
		logger:           NewSlogLogger(nil),
		coreVersion:      CoreVersion,
		maxRetryAttempts: 3,
		healthTimeout:    5 * time.Second,
		retryBase:        time.Second,
	}
}
