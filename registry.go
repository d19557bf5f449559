package pluggable

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// moduleRecord is the registry's internal record: the registration data
// plus the per-module mutex serializing lifecycle transitions.
type moduleRecord struct {
	ModuleRegistration

	// opMu serializes single-module transitions (loadOne, activateOne,
	// deactivateOne, unload). It is never held across recursion into other
	// modules, which keeps lock ordering acyclic for any dependency DAG.
	opMu sync.Mutex
}

// Register validates the config and inserts a new registration in unloaded
// status, extending the dependency graph with the module's declared edges.
//
// Registering an id that already exists fails with ErrAlreadyRegistered,
// unless hot reload is enabled, in which case the registration is replaced
// and the module is reloaded in place.
func (o *Orchestrator) Register(id string, factory ModuleFactory, config ModuleConfig) error {
	if factory == nil {
		return fmt.Errorf("%w: %s", ErrNilFactory, id)
	}
	if config.ID == "" {
		config.ID = id
	}
	if err := o.validateConfig(id, config); err != nil {
		return err
	}

	o.mu.Lock()
	if _, exists := o.registry[id]; exists {
		o.mu.Unlock()
		if !o.opts.enableHotReload {
			return fmt.Errorf("%w: %s", ErrAlreadyRegistered, id)
		}
		return o.hotSwap(id, factory, config)
	}

	if err := o.checkVersionCompatibilityLocked(config); err != nil {
		o.mu.Unlock()
		return err
	}

	o.registry[id] = &moduleRecord{
		ModuleRegistration: ModuleRegistration{
			ID:           id,
			Factory:      factory,
			Config:       config,
			Status:       StatusUnloaded,
			RegisteredAt: time.Now(),
		},
	}
	o.graph.AddModule(id, config.Dependencies)
	o.mu.Unlock()

	o.logger.Debug("Registered module", "module", id, "version", config.Version)
	o.emitEvent(context.Background(), EventTypeModuleRegistered, ModuleRegisteredEvent{
		ModuleID: id,
		Config:   config,
	})
	return nil
}

// hotSwap replaces an existing registration's factory and config, then
// reloads the module so the new code and settings take effect. Observed
// activation state is preserved by Reload.
func (o *Orchestrator) hotSwap(id string, factory ModuleFactory, config ModuleConfig) error {
	o.mu.Lock()
	rec, exists := o.registry[id]
	if !exists {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrModuleNotFound, id)
	}
	if err := o.checkVersionCompatibilityLocked(config); err != nil {
		o.mu.Unlock()
		return err
	}
	rec.Factory = factory
	rec.Config = config
	o.graph.RemoveModule(id)
	o.graph.AddModule(id, config.Dependencies)
	o.mu.Unlock()

	o.logger.Info("Hot-reloading module on re-registration", "module", id, "version", config.Version)
	return o.Reload(context.Background(), id)
}

// validateConfig enforces the ModuleConfig invariants, failing with a
// ConfigValidationError naming the offending field.
func (o *Orchestrator) validateConfig(id string, config ModuleConfig) error {
	if config.ID == "" || id == "" {
		return &ConfigValidationError{Field: "id", Reason: "must be non-empty"}
	}
	if config.ID != id {
		return &ConfigValidationError{Field: "id", Reason: fmt.Sprintf("config id %q does not match registration id %q", config.ID, id)}
	}
	if config.Name == "" {
		return &ConfigValidationError{Field: "name", Reason: "must be non-empty"}
	}
	if config.Version == "" {
		return &ConfigValidationError{Field: "version", Reason: "must be non-empty"}
	}
	if err := o.checker.ValidateVersion(config.Version); err != nil {
		return &ConfigValidationError{Field: "version", Reason: err.Error()}
	}
	for i, dc := range config.DependencyConstraints {
		if dc.Module == "" {
			return &ConfigValidationError{Field: fmt.Sprintf("dependencyConstraints[%d].module", i), Reason: "must be non-empty"}
		}
		if err := o.checker.ValidateConstraint(dc.Constraint); err != nil {
			return &ConfigValidationError{Field: fmt.Sprintf("dependencyConstraints[%d].constraint", i), Reason: err.Error()}
		}
	}
	if config.MinCoreVersion != "" {
		if err := o.checker.ValidateVersion(config.MinCoreVersion); err != nil {
			return &ConfigValidationError{Field: "minCoreVersion", Reason: err.Error()}
		}
	}
	if config.MaxCoreVersion != "" {
		if err := o.checker.ValidateVersion(config.MaxCoreVersion); err != nil {
			return &ConfigValidationError{Field: "maxCoreVersion", Reason: err.Error()}
		}
	}
	if config.MinCoreVersion != "" && config.MaxCoreVersion != "" {
		cmp, err := o.checker.CompareVersions(config.MinCoreVersion, config.MaxCoreVersion)
		if err == nil && cmp > 0 {
			return &ConfigValidationError{Field: "minCoreVersion", Reason: "exceeds maxCoreVersion"}
		}
	}
	return nil
}

// CheckVersionCompatibility enforces the config's core-version bounds
// against the orchestrator's version and each dependency constraint against
// the currently registered version of that dependency. Optional constraints
// on absent dependencies are skipped, not failed.
func (o *Orchestrator) CheckVersionCompatibility(config ModuleConfig) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.checkVersionCompatibilityLocked(config)
}

func (o *Orchestrator) checkVersionCompatibilityLocked(config ModuleConfig) error {
	if err := o.checker.CheckCoreBounds(config.ID, config.MinCoreVersion, config.MaxCoreVersion); err != nil {
		return err
	}
	for _, dc := range config.DependencyConstraints {
		dep, exists := o.registry[dc.Module]
		if !exists {
			if dc.Optional {
				continue
			}
			return &VersionIncompatibilityError{
				ModuleID:   config.ID,
				Dependency: dc.Module,
				Required:   dc.Constraint,
				Actual:     "unregistered",
			}
		}
		ok, err := o.checker.CheckConstraint(dep.Config.Version, dc.Constraint)
		if err != nil {
			return err
		}
		if !ok {
			return &VersionIncompatibilityError{
				ModuleID:   config.ID,
				Dependency: dc.Module,
				Required:   dc.Constraint,
				Actual:     dep.Config.Version,
			}
		}
	}
	return nil
}

// GetDependencyConflicts scans all registrations for violated dependency
// constraints. Read-only; never mutates state.
func (o *Orchestrator) GetDependencyConflicts() []DependencyConflict {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var conflicts []DependencyConflict
	for _, id := range o.sortedIDsLocked() {
		rec := o.registry[id]
		for _, dc := range rec.Config.DependencyConstraints {
			dep, exists := o.registry[dc.Module]
			if !exists {
				if dc.Optional {
					continue
				}
				conflicts = append(conflicts, DependencyConflict{
					ModuleID:   id,
					Dependency: dc.Module,
					Constraint: dc.Constraint,
					Actual:     "unregistered",
					Optional:   dc.Optional,
				})
				continue
			}
			ok, err := o.checker.CheckConstraint(dep.Config.Version, dc.Constraint)
			if err != nil || !ok {
				conflicts = append(conflicts, DependencyConflict{
					ModuleID:   id,
					Dependency: dc.Module,
					Constraint: dc.Constraint,
					Actual:     dep.Config.Version,
					Optional:   dc.Optional,
				})
			}
		}
	}
	return conflicts
}

// GetUpgradeSuggestions groups the current conflicts by dependency and
// recommends, per dependency, the set of constraints an upgrade would have
// to satisfy. Read-only; never mutates state.
func (o *Orchestrator) GetUpgradeSuggestions() []UpgradeSuggestion {
	conflicts := o.GetDependencyConflicts()
	if len(conflicts) == 0 {
		return nil
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	byDependency := make(map[string][]DependencyConflict)
	for _, c := range conflicts {
		byDependency[c.Dependency] = append(byDependency[c.Dependency], c)
	}

	deps := make([]string, 0, len(byDependency))
	for dep := range byDependency {
		deps = append(deps, dep)
	}
	sort.Strings(deps)

	suggestions := make([]UpgradeSuggestion, 0, len(deps))
	for _, dep := range deps {
		current := "unregistered"
		if rec, exists := o.registry[dep]; exists {
			current = rec.Config.Version
		}
		s := UpgradeSuggestion{ModuleID: dep, CurrentVersion: current}
		for _, c := range byDependency[dep] {
			s.Constraints = append(s.Constraints, c.Constraint)
			s.RequiredBy = append(s.RequiredBy, c.ModuleID)
		}
		suggestions = append(suggestions, s)
	}
	return suggestions
}

// DependencyTree is the recursive dependency view for a module. Nodes
// already seen on the path are included without children, so trees stay
// finite even over a cyclic graph.
type DependencyTree struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Status       ModuleStatus      `json:"status"`
	Registered   bool              `json:"registered"`
	Dependencies []*DependencyTree `json:"dependencies"`
}

// GetDependencyTree resolves the full dependency tree rooted at id.
func (o *Orchestrator) GetDependencyTree(id string) (*DependencyTree, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if _, exists := o.registry[id]; !exists {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, id)
	}

	var build func(node string, seen map[string]bool) *DependencyTree
	build = func(node string, seen map[string]bool) *DependencyTree {
		tree := &DependencyTree{ID: node}
		if rec, exists := o.registry[node]; exists {
			tree.Name = rec.Config.Name
			tree.Version = rec.Config.Version
			tree.Status = rec.Status
			tree.Registered = true
		}
		if seen[node] {
			return tree
		}
		seen[node] = true
		for _, dep := range o.graph.Dependencies(node) {
			tree.Dependencies = append(tree.Dependencies, build(dep, seen))
		}
		seen[node] = false
		return tree
	}

	return build(id, make(map[string]bool)), nil
}

// GetModuleStatus returns the current lifecycle status of id.
func (o *Orchestrator) GetModuleStatus(id string) (ModuleStatus, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	rec, exists := o.registry[id]
	if !exists {
		return StatusUnloaded, fmt.Errorf("%w: %s", ErrModuleNotFound, id)
	}
	return rec.Status, nil
}

// GetModule returns a snapshot of the registration record for id.
func (o *Orchestrator) GetModule(id string) (ModuleRegistration, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	rec, exists := o.registry[id]
	if !exists {
		return ModuleRegistration{}, fmt.Errorf("%w: %s", ErrModuleNotFound, id)
	}
	return rec.ModuleRegistration, nil
}

// GetModules returns snapshots of every registration, sorted by id.
func (o *Orchestrator) GetModules() []ModuleRegistration {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]ModuleRegistration, 0, len(o.registry))
	for _, id := range o.sortedIDsLocked() {
		out = append(out, o.registry[id].ModuleRegistration)
	}
	return out
}

func (o *Orchestrator) sortedIDsLocked() []string {
	ids := make([]string, 0, len(o.registry))
	for id := range o.registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
