package pluggable

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// Orchestrator owns the module registry and dependency graph and drives
// every module through the lifecycle state machine. It implements Subject,
// announcing each transition as a CloudEvent, and ErrorReporter via its
// recovery controller.
//
// Orchestrators carry no global state; independent instances coexist
// freely, which is what tests rely on.
type Orchestrator struct {
	opts    orchestratorOptions
	logger  Logger
	api     CoreAPI
	checker *VersionChecker
	graph   *DependencyGraph

	recovery *RecoveryController
	health   *healthMonitor

	mu              sync.RWMutex
	registry        map[string]*moduleRecord
	activationOrder []string
	watchers        map[string]*moduleWatcher

	observerMu sync.RWMutex
	observers  map[string]*observerRegistration
}

// observerRegistration holds a registered observer and its type filter.
type observerRegistration struct {
	observer     Observer
	eventTypes   map[string]bool
	registeredAt time.Time
}

// New creates an orchestrator around the supplied CoreAPI bundle.
func New(api CoreAPI, opts ...Option) (*Orchestrator, error) {
	if api == nil {
		return nil, ErrNilCoreAPI
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	checker, err := NewVersionChecker(options.coreVersion)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		opts:      options,
		logger:    options.logger,
		api:       api,
		checker:   checker,
		graph:     NewDependencyGraph(),
		registry:  make(map[string]*moduleRecord),
		watchers:  make(map[string]*moduleWatcher),
		observers: make(map[string]*observerRegistration),
	}
	o.recovery = newRecoveryController(o, options.maxRetryAttempts, options.retryBase)

	if std, ok := api.(*StdCoreAPI); ok && std.Reporter() == nil {
		std.SetReporter(o.recovery)
	}

	if options.healthSchedule != "" {
		o.health, err = newHealthMonitor(o, options.healthSchedule, options.healthTimeout)
		if err != nil {
			return nil, err
		}
		o.health.Start()
	}

	return o, nil
}

// Close stops the health sweep and every hot-reload watcher. Registered
// modules are left in their current state.
func (o *Orchestrator) Close() error {
	if o.health != nil {
		o.health.Stop()
	}
	o.recovery.Stop()
	o.mu.Lock()
	watchers := make([]*moduleWatcher, 0, len(o.watchers))
	for _, w := range o.watchers {
		watchers = append(watchers, w)
	}
	o.watchers = make(map[string]*moduleWatcher)
	o.mu.Unlock()
	for _, w := range watchers {
		w.Stop()
	}
	return nil
}

// Reporter exposes the recovery controller, for hosts composing a custom
// CoreAPI that still wants deterministic error attribution.
func (o *Orchestrator) Reporter() ErrorReporter { return o.recovery }

// Load drives id from unloaded to loaded. Loading an already-loaded (or
// further advanced) module is a safe no-op. Before instantiating anything,
// the dependency graph is checked for cycles rooted at id; declared
// dependencies are then loaded first, concurrently, each under the
// configured dependency timeout.
func (o *Orchestrator) Load(ctx context.Context, id string) error {
	rec, err := o.record(id)
	if err != nil {
		return err
	}

	switch status, recErr := o.statusAndErr(rec); status {
	case StatusLoading, StatusLoaded, StatusActivating, StatusActive, StatusDeactivating:
		return nil
	case StatusError:
		return fmt.Errorf("%w: %s: %v", ErrModuleInErrorState, id, recErr)
	case StatusUnloaded:
	}

	o.mu.RLock()
	enabled := rec.Config.Enabled
	o.mu.RUnlock()
	if !enabled {
		return fmt.Errorf("%w: %s", ErrModuleDisabled, id)
	}

	if err := o.graph.DetectCycle(id); err != nil {
		o.failModule(ctx, rec, err)
		return err
	}

	if err := o.loadDependencies(ctx, rec); err != nil {
		o.failModule(ctx, rec, err)
		return err
	}

	return o.loadOne(ctx, rec)
}

// loadDependencies checks and concurrently loads every declared dependency
// of rec, returning the first failure.
func (o *Orchestrator) loadDependencies(ctx context.Context, rec *moduleRecord) error {
	deps := o.graph.Dependencies(rec.ID)
	for _, dep := range deps {
		drec, err := o.record(dep)
		if err != nil {
			return fmt.Errorf("%w: %s depends on %s", ErrDependencyNotRegistered, rec.ID, dep)
		}
		if status, _ := o.statusAndErr(drec); status == StatusError {
			return fmt.Errorf("%w: %s depends on %s", ErrDependencyInErrorState, rec.ID, dep)
		}
	}

	var wg sync.WaitGroup
	errCh := make(chan error, len(deps))
	for _, dep := range deps {
		wg.Add(1)
		go func(dep string) {
			defer wg.Done()
			depCtx := ctx
			if o.opts.dependencyTimeout > 0 {
				var cancel context.CancelFunc
				depCtx, cancel = context.WithTimeout(ctx, o.opts.dependencyTimeout)
				defer cancel()
			}
			if err := o.Load(depCtx, dep); err != nil {
				errCh <- fmt.Errorf("loading dependency %s: %w", dep, err)
			}
		}(dep)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

// loadOne performs the single-module unloaded -> loaded transition under
// the record's operation lock.
func (o *Orchestrator) loadOne(ctx context.Context, rec *moduleRecord) error {
	rec.opMu.Lock()
	defer rec.opMu.Unlock()

	o.mu.Lock()
	if rec.Status != StatusUnloaded {
		status, recErr := rec.Status, rec.Err
		o.mu.Unlock()
		if status == StatusError {
			return fmt.Errorf("%w: %s: %v", ErrModuleInErrorState, rec.ID, recErr)
		}
		return nil
	}
	rec.Status = StatusLoading
	factory, cfg := rec.Factory, rec.Config
	o.mu.Unlock()

	start := time.Now()
	var instance Module
	err := o.guard(rec.ID, "create", func() error {
		var createErr error
		instance, createErr = factory.Create(ctx, cfg)
		return createErr
	})
	if err == nil && instance == nil {
		err = fmt.Errorf("%w: %s", ErrFactoryReturnedNil, rec.ID)
	}
	if err == nil {
		err = o.guard(rec.ID, "initialize", func() error {
			return instance.Initialize(ctx, o.api)
		})
	}
	if err != nil {
		wrapped := &ActivationError{ModuleID: rec.ID, Op: "load", Err: err}
		o.failModule(ctx, rec, wrapped)
		return wrapped
	}

	o.mu.Lock()
	rec.Instance = instance
	rec.Status = StatusLoaded
	rec.Err = nil
	rec.LoadTime = time.Since(start)
	o.mu.Unlock()

	o.startWatcher(rec.ID, cfg)
	o.logger.Info("Loaded module", "module", rec.ID, "duration", time.Since(start))
	o.emitEvent(ctx, EventTypeModuleLoaded, ModuleEvent{ModuleID: rec.ID, Status: StatusLoaded})
	return nil
}

// Activate drives id and everything it depends on to active, in
// topological order: every dependency is activated before its dependent
// and no module is visited twice. Activating an already-active module is a
// safe no-op.
func (o *Orchestrator) Activate(ctx context.Context, id string) error {
	rec, err := o.record(id)
	if err != nil {
		return err
	}
	if status, _ := o.statusAndErr(rec); status == StatusActive {
		return nil
	}

	if err := o.graph.DetectCycle(id); err != nil {
		o.failModule(ctx, rec, err)
		return err
	}

	for _, nodeID := range o.graph.ActivationOrder(id) {
		nodeRec, err := o.record(nodeID)
		if err != nil {
			failure := fmt.Errorf("%w: %s depends on %s", ErrDependencyNotRegistered, id, nodeID)
			o.failModule(ctx, rec, failure)
			return failure
		}
		if status, _ := o.statusAndErr(nodeRec); status == StatusActive {
			continue
		}
		if err := o.Load(ctx, nodeID); err != nil {
			return err
		}
		if err := o.activateOne(ctx, nodeRec); err != nil {
			return err
		}
	}
	return nil
}

// activateOne performs the single-module loaded -> active transition and
// forwards the module's declared capabilities to the host.
func (o *Orchestrator) activateOne(ctx context.Context, rec *moduleRecord) error {
	rec.opMu.Lock()
	defer rec.opMu.Unlock()

	o.mu.Lock()
	if rec.Status == StatusActive {
		o.mu.Unlock()
		return nil
	}
	if rec.Status != StatusLoaded {
		status, recErr := rec.Status, rec.Err
		o.mu.Unlock()
		if status == StatusError {
			return fmt.Errorf("%w: %s: %v", ErrModuleInErrorState, rec.ID, recErr)
		}
		return fmt.Errorf("%w: cannot activate %s from status %s", ErrActivationFailed, rec.ID, status)
	}
	rec.Status = StatusActivating
	instance := rec.Instance
	o.mu.Unlock()

	start := time.Now()
	if err := o.guard(rec.ID, "activate", func() error { return instance.Activate(ctx) }); err != nil {
		wrapped := &ActivationError{ModuleID: rec.ID, Op: "activate", Err: err}
		o.failModule(ctx, rec, wrapped)
		return wrapped
	}

	o.mu.Lock()
	rec.Status = StatusActive
	rec.ActivationTime = time.Since(start)
	if !slices.Contains(o.activationOrder, rec.ID) {
		o.activationOrder = append(o.activationOrder, rec.ID)
	}
	o.mu.Unlock()

	if err := o.forwardCapabilities(ctx, rec.ID, instance); err != nil {
		wrapped := &ActivationError{ModuleID: rec.ID, Op: "activate", Err: err}
		o.failModule(ctx, rec, wrapped)
		return wrapped
	}

	o.logger.Info("Activated module", "module", rec.ID)
	o.emitEvent(ctx, EventTypeModuleActivated, ModuleEvent{ModuleID: rec.ID, Status: StatusActive})
	return nil
}

// forwardCapabilities pushes the module's declared routes into the host
// router and announces the remaining feature contributions as events.
func (o *Orchestrator) forwardCapabilities(ctx context.Context, id string, instance Module) error {
	if provider, ok := instance.(RouteProvider); ok {
		routes := provider.Routes()
		if len(routes) > 0 {
			if err := o.api.Router().AddRoutes(id, routes); err != nil {
				return fmt.Errorf("registering routes for %s: %w", id, err)
			}
			infos := make([]RouteInfo, len(routes))
			for i, r := range routes {
				infos[i] = RouteInfo{Method: r.Method, Path: r.Path}
			}
			o.emitEvent(ctx, EventTypeRoutesRegistered, RoutesRegisteredEvent{ModuleID: id, Routes: infos})
		}
	}
	if provider, ok := instance.(MenuProvider); ok {
		if items := provider.MenuItems(); len(items) > 0 {
			o.emitEvent(ctx, EventTypeMenuItemsRegistered, MenuItemsRegisteredEvent{ModuleID: id, Items: items})
		}
	}
	if provider, ok := instance.(ToolbarProvider); ok {
		if items := provider.ToolbarItems(); len(items) > 0 {
			o.emitEvent(ctx, EventTypeToolbarItemsRegistered, ToolbarItemsRegisteredEvent{ModuleID: id, Items: items})
		}
	}
	if provider, ok := instance.(CommandProvider); ok {
		commands := provider.Commands()
		if len(commands) > 0 {
			infos := make([]CommandInfo, len(commands))
			for i, c := range commands {
				infos[i] = CommandInfo{ID: c.ID, Title: c.Title}
			}
			o.emitEvent(ctx, EventTypeCommandsRegistered, CommandsRegisteredEvent{ModuleID: id, Commands: infos})
		}
	}
	if provider, ok := instance.(SettingsProvider); ok {
		schema := provider.SettingsSchema()
		if schema.ModuleID == "" {
			schema.ModuleID = id
		}
		if len(schema.Fields) > 0 {
			o.emitEvent(ctx, EventTypeRegisterSettings, SettingsRegisteredEvent{ModuleID: id, Schema: schema})
		}
	}
	return nil
}

// Deactivate drives id from active back to loaded. A module with active
// dependents refuses to deactivate unless force is set, in which case the
// dependents are deactivated first, recursively. Deactivating a module
// that is not active is a safe no-op.
func (o *Orchestrator) Deactivate(ctx context.Context, id string, force bool) error {
	rec, err := o.record(id)
	if err != nil {
		return err
	}
	if status, _ := o.statusAndErr(rec); status != StatusActive {
		return nil
	}

	dependents := o.activeDependents(id)
	if len(dependents) > 0 {
		if !force {
			return &ActiveDependentsError{ModuleID: id, Dependents: dependents}
		}
		for _, dep := range dependents {
			if err := o.Deactivate(ctx, dep, true); err != nil {
				return err
			}
		}
	}

	return o.deactivateOne(ctx, rec)
}

// deactivateOne performs the single-module active -> loaded transition and
// withdraws the module's routes from the host.
func (o *Orchestrator) deactivateOne(ctx context.Context, rec *moduleRecord) error {
	rec.opMu.Lock()
	defer rec.opMu.Unlock()

	o.mu.Lock()
	if rec.Status != StatusActive {
		o.mu.Unlock()
		return nil
	}
	rec.Status = StatusDeactivating
	instance := rec.Instance
	o.mu.Unlock()

	if err := o.guard(rec.ID, "deactivate", func() error { return instance.Deactivate(ctx) }); err != nil {
		wrapped := &ActivationError{ModuleID: rec.ID, Op: "deactivate", Err: err}
		o.failModule(ctx, rec, wrapped)
		return wrapped
	}

	o.mu.Lock()
	rec.Status = StatusLoaded
	if i := slices.Index(o.activationOrder, rec.ID); i >= 0 {
		o.activationOrder = slices.Delete(o.activationOrder, i, i+1)
	}
	o.mu.Unlock()

	if err := o.api.Router().RemoveRoutes(rec.ID); err != nil {
		o.logger.Error("Failed to remove routes", "module", rec.ID, "error", err)
	}

	o.logger.Info("Deactivated module", "module", rec.ID)
	o.emitEvent(ctx, EventTypeModuleDeactivated, ModuleEvent{ModuleID: rec.ID, Status: StatusLoaded})
	return nil
}

// Unload tears id down to unloaded: deactivates first when active
// (honoring the same dependent check as Deactivate), stops any hot-reload
// watcher, destroys the instance and clears the stored error. Destroy
// failures are logged, not fatal. Unloading an unloaded module is a safe
// no-op.
func (o *Orchestrator) Unload(ctx context.Context, id string, force bool) error {
	rec, err := o.record(id)
	if err != nil {
		return err
	}

	if status, _ := o.statusAndErr(rec); status == StatusActive {
		if err := o.Deactivate(ctx, id, force); err != nil {
			return err
		}
	}

	o.stopWatcher(id)

	rec.opMu.Lock()
	defer rec.opMu.Unlock()

	o.mu.Lock()
	if rec.Status == StatusUnloaded {
		o.mu.Unlock()
		return nil
	}
	instance := rec.Instance
	o.mu.Unlock()

	if instance != nil {
		if err := o.guard(rec.ID, "destroy", func() error { return instance.Destroy(ctx) }); err != nil {
			o.logger.Error("Module destroy failed", "module", rec.ID, "error", err)
		}
	}

	o.mu.Lock()
	rec.Instance = nil
	rec.Err = nil
	rec.Status = StatusUnloaded
	if i := slices.Index(o.activationOrder, rec.ID); i >= 0 {
		o.activationOrder = slices.Delete(o.activationOrder, i, i+1)
	}
	o.mu.Unlock()

	o.logger.Info("Unloaded module", "module", rec.ID)
	o.emitEvent(ctx, EventTypeModuleUnloaded, ModuleEvent{ModuleID: rec.ID, Status: StatusUnloaded})
	return nil
}

// Reload unloads then loads id, re-activating only if the module was
// active beforehand, making hot reload idempotent with respect to
// externally observed activation state.
func (o *Orchestrator) Reload(ctx context.Context, id string) error {
	rec, err := o.record(id)
	if err != nil {
		return err
	}
	status, _ := o.statusAndErr(rec)
	wasActive := status == StatusActive

	if err := o.Unload(ctx, id, true); err != nil {
		return err
	}
	if err := o.Load(ctx, id); err != nil {
		return err
	}
	if wasActive {
		if err := o.Activate(ctx, id); err != nil {
			return err
		}
	}

	newStatus := StatusLoaded
	if wasActive {
		newStatus = StatusActive
	}
	o.logger.Info("Reloaded module", "module", id, "reactivated", wasActive)
	o.emitEvent(ctx, EventTypeModuleReloaded, ModuleEvent{ModuleID: id, Status: newStatus})
	return nil
}

// Remove force-unloads id and deletes it from the registry and from both
// directions of the dependency graph, pruning it out of every other
// module's edge sets.
func (o *Orchestrator) Remove(ctx context.Context, id string) error {
	if err := o.Unload(ctx, id, true); err != nil {
		return err
	}

	o.mu.Lock()
	delete(o.registry, id)
	o.mu.Unlock()
	o.graph.RemoveModule(id)

	o.logger.Info("Removed module", "module", id)
	o.emitEvent(ctx, EventTypeModuleRemoved, ModuleEvent{ModuleID: id, Status: StatusUnloaded})
	return nil
}

// DeactivateAll deactivates every active module in reverse activation
// order, so dependents always go down before their dependencies. Errors
// are collected and the sweep continues; the last error is returned.
func (o *Orchestrator) DeactivateAll(ctx context.Context) error {
	o.mu.RLock()
	order := slices.Clone(o.activationOrder)
	o.mu.RUnlock()
	slices.Reverse(order)

	var lastErr error
	for _, id := range order {
		if err := o.Deactivate(ctx, id, false); err != nil {
			o.logger.Error("Error deactivating module", "module", id, "error", err)
			lastErr = err
		}
	}
	return lastErr
}

// ActivationHistory returns the ids of currently active modules in the
// order they were activated.
func (o *Orchestrator) ActivationHistory() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return slices.Clone(o.activationOrder)
}

// Graph exposes the dependency graph for read-only impact analysis.
func (o *Orchestrator) Graph() *DependencyGraph { return o.graph }

// activeDependents returns the currently active modules that list id as a
// dependency, via the reverse graph.
func (o *Orchestrator) activeDependents(id string) []string {
	dependents := o.graph.Dependents(id)
	o.mu.RLock()
	defer o.mu.RUnlock()

	var active []string
	for _, dep := range dependents {
		if rec, exists := o.registry[dep]; exists && rec.Status == StatusActive {
			active = append(active, dep)
		}
	}
	return active
}

// failModule records err on the registration, transitions the module to
// the error state and announces it. Explicit caller operations surface the
// error themselves; only runtime errors reported through the recovery
// controller get retried.
func (o *Orchestrator) failModule(ctx context.Context, rec *moduleRecord, err error) {
	o.mu.Lock()
	rec.Status = StatusError
	rec.Err = err
	rec.ErrorCount++
	if i := slices.Index(o.activationOrder, rec.ID); i >= 0 {
		o.activationOrder = slices.Delete(o.activationOrder, i, i+1)
	}
	o.mu.Unlock()

	o.logger.Error("Module failed", "module", rec.ID, "error", err)
	o.emitEvent(ctx, EventTypeModuleError, ModuleErrorEvent{ModuleID: rec.ID, Error: err.Error()})
}

// guard wraps a call into module code, converting panics into errors
// attributed to the module. Deterministic attribution replaces any
// guessing from stack traces.
func (o *Orchestrator) guard(moduleID, op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s during %s: %v", ErrModulePanic, moduleID, op, r)
		}
	}()
	return fn()
}

// record looks up the registry entry for id.
func (o *Orchestrator) record(id string) (*moduleRecord, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	rec, exists := o.registry[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, id)
	}
	return rec, nil
}

func (o *Orchestrator) statusAndErr(rec *moduleRecord) (ModuleStatus, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return rec.Status, rec.Err
}

// RegisterObserver adds an observer, optionally filtered by event types.
// An empty filter receives all events.
func (o *Orchestrator) RegisterObserver(observer Observer, eventTypes ...string) error {
	o.observerMu.Lock()
	defer o.observerMu.Unlock()

	filter := make(map[string]bool, len(eventTypes))
	for _, t := range eventTypes {
		filter[t] = true
	}
	o.observers[observer.ObserverID()] = &observerRegistration{
		observer:     observer,
		eventTypes:   filter,
		registeredAt: time.Now(),
	}
	o.logger.Debug("Observer registered", "observerID", observer.ObserverID(), "eventTypes", eventTypes)
	return nil
}

// UnregisterObserver removes an observer. Idempotent.
func (o *Orchestrator) UnregisterObserver(observer Observer) error {
	o.observerMu.Lock()
	defer o.observerMu.Unlock()
	delete(o.observers, observer.ObserverID())
	return nil
}

// NotifyObservers delivers the event to every interested observer.
// Delivery is synchronous so tests and hosts observe a consistent order;
// observer errors and panics are logged, never propagated.
func (o *Orchestrator) NotifyObservers(ctx context.Context, event cloudevents.Event) error {
	if event.Time().IsZero() {
		event.SetTime(time.Now())
	}
	if err := ValidateCloudEvent(event); err != nil {
		o.logger.Error("Invalid CloudEvent", "eventType", event.Type(), "error", err)
		return err
	}

	o.observerMu.RLock()
	registrations := make([]*observerRegistration, 0, len(o.observers))
	for _, reg := range o.observers {
		registrations = append(registrations, reg)
	}
	o.observerMu.RUnlock()

	for _, reg := range registrations {
		if len(reg.eventTypes) > 0 && !reg.eventTypes[event.Type()] {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					o.logger.Error("Observer panicked", "observerID", reg.observer.ObserverID(), "event", event.Type(), "panic", r)
				}
			}()
			if err := reg.observer.OnEvent(ctx, event); err != nil {
				o.logger.Error("Observer error", "observerID", reg.observer.ObserverID(), "event", event.Type(), "error", err)
			}
		}()
	}
	return nil
}

// GetObservers returns information about currently registered observers.
func (o *Orchestrator) GetObservers() []ObserverInfo {
	o.observerMu.RLock()
	defer o.observerMu.RUnlock()

	infos := make([]ObserverInfo, 0, len(o.observers))
	for id, reg := range o.observers {
		types := make([]string, 0, len(reg.eventTypes))
		for t := range reg.eventTypes {
			types = append(types, t)
		}
		slices.Sort(types)
		infos = append(infos, ObserverInfo{ID: id, EventTypes: types, RegisteredAt: reg.registeredAt})
	}
	slices.SortFunc(infos, func(a, b ObserverInfo) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})
	return infos
}

// emitEvent builds and delivers a CloudEvent carrying the typed payload.
func (o *Orchestrator) emitEvent(ctx context.Context, eventType string, payload any) {
	event := NewCloudEvent(eventType, eventSource, payload)
	if err := o.NotifyObservers(ctx, event); err != nil {
		o.logger.Debug("Failed to notify observers", "eventType", eventType, "error", err)
	}
}

// startWatcher begins watching the module's WatchPath when hot reload is
// enabled, triggering a reload on change.
func (o *Orchestrator) startWatcher(id string, cfg ModuleConfig) {
	if !o.opts.enableHotReload || cfg.WatchPath == "" {
		return
	}

	w, err := newModuleWatcher(o, id, cfg.WatchPath)
	if err != nil {
		o.logger.Error("Failed to start hot-reload watcher", "module", id, "path", cfg.WatchPath, "error", err)
		return
	}

	o.mu.Lock()
	if prev, exists := o.watchers[id]; exists {
		defer prev.Stop()
	}
	o.watchers[id] = w
	o.mu.Unlock()

	o.logger.Debug("Started hot-reload watcher", "module", id, "path", cfg.WatchPath)
}

// stopWatcher stops and forgets the module's watcher, if any.
func (o *Orchestrator) stopWatcher(id string) {
	o.mu.Lock()
	w, exists := o.watchers[id]
	delete(o.watchers, id)
	o.mu.Unlock()
	if exists {
		w.Stop()
	}
}
