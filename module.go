// Package pluggable provides a lifecycle orchestrator for pluggable feature
// modules. It registers module factories and configs, resolves declared
// inter-module dependencies, drives each module through a lifecycle state
// machine (load, activate, deactivate, unload, reload, remove), rejects
// circular dependencies, recovers from runtime failures with bounded
// exponential-backoff retries, and supports hot reload and batch operations.
//
// The orchestrator never renders anything and has no knowledge of storage
// formats or wire protocols. Host-facing concerns (routing, notifications,
// persistence) are reached only through the CoreAPI bundle injected at
// construction time, and all lifecycle transitions are announced as
// CloudEvents through the Observer pattern.
//
// Basic usage:
//
//	orch, err := pluggable.New(api, pluggable.WithLogger(logger))
//	if err != nil {
//		log.Fatal(err)
//	}
//	_ = orch.Register("charts", factory, pluggable.ModuleConfig{
//		ID:      "charts",
//		Name:    "Chart Widgets",
//		Version: "1.0.0",
//		Enabled: true,
//	})
//	if err := orch.Activate(ctx, "charts"); err != nil {
//		log.Fatal(err)
//	}
package pluggable

import (
	"context"
	"net/http"
	"time"
)

// Module is the capability surface a registered unit must implement.
// The four lifecycle hooks are mandatory; feature capabilities are optional
// interfaces (RouteProvider, MenuProvider, CommandProvider, ...) that the
// orchestrator discovers with type assertions, the same way hosts probe for
// optional behavior elsewhere in the ecosystem.
type Module interface {
	// Initialize prepares the module for activation. It is called exactly
	// once per load, after every declared dependency has reached the loaded
	// state. The CoreAPI handle is valid for the lifetime of the instance.
	Initialize(ctx context.Context, api CoreAPI) error

	// Activate starts the module's runtime behavior. It is called only on a
	// loaded module, after all of its dependencies are active.
	Activate(ctx context.Context) error

	// Deactivate stops the module's runtime behavior. It is called only on
	// an active module, after all of its active dependents were deactivated.
	Deactivate(ctx context.Context) error

	// Destroy releases resources before the instance is discarded during
	// unload. Destroy failures are logged, not fatal.
	Destroy(ctx context.Context) error
}

// HealthChecker is an optional capability; modules implementing it are
// probed by the periodic health sweep while active. A non-nil error reports
// the module to the recovery controller.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// RouteProvider is an optional capability; declared routes are forwarded to
// CoreAPI's router on activation and removed on deactivation.
type RouteProvider interface {
	Routes() []Route
}

// MenuProvider is an optional capability announcing menu contributions.
type MenuProvider interface {
	MenuItems() []MenuItem
}

// ToolbarProvider is an optional capability announcing toolbar contributions.
type ToolbarProvider interface {
	ToolbarItems() []ToolbarItem
}

// CommandProvider is an optional capability announcing invokable commands.
type CommandProvider interface {
	Commands() []Command
}

// SettingsProvider is an optional capability announcing a settings schema
// the host can render and persist.
type SettingsProvider interface {
	SettingsSchema() SettingsSchema
}

// ModuleFactory creates module instances from their configuration.
// Create may block; the orchestrator passes a context that carries the
// dependency timeout when one is configured.
type ModuleFactory interface {
	Create(ctx context.Context, config ModuleConfig) (Module, error)
}

// ModuleFactoryFunc adapts a plain function to the ModuleFactory interface.
type ModuleFactoryFunc func(ctx context.Context, config ModuleConfig) (Module, error)

func (f ModuleFactoryFunc) Create(ctx context.Context, config ModuleConfig) (Module, error) {
	return f(ctx, config)
}

// DependencyConstraint pins a dependency to a semver range.
type DependencyConstraint struct {
	// Module is the id of the dependency the constraint applies to.
	Module string `json:"module" yaml:"module" toml:"module"`

	// Constraint is a semver range expression, e.g. "^1.0.0" or ">=2.1.0 <3".
	Constraint string `json:"constraint" yaml:"constraint" toml:"constraint"`

	// Optional constraints are skipped, not failed, when the dependency
	// is not registered.
	Optional bool `json:"optional" yaml:"optional" toml:"optional"`
}

// ModuleConfig is the immutable-by-convention descriptor supplied at
// registration. ID must be non-empty and unique across the registry;
// Version must parse as valid semver.
type ModuleConfig struct {
	ID                    string                 `json:"id" yaml:"id" toml:"id"`
	Name                  string                 `json:"name" yaml:"name" toml:"name"`
	Version               string                 `json:"version" yaml:"version" toml:"version"`
	Dependencies          []string               `json:"dependencies,omitempty" yaml:"dependencies" toml:"dependencies"`
	DependencyConstraints []DependencyConstraint `json:"dependencyConstraints,omitempty" yaml:"dependencyConstraints" toml:"dependencyConstraints"`
	MinCoreVersion        string                 `json:"minCoreVersion,omitempty" yaml:"minCoreVersion" toml:"minCoreVersion"`
	MaxCoreVersion        string                 `json:"maxCoreVersion,omitempty" yaml:"maxCoreVersion" toml:"maxCoreVersion"`
	Enabled               bool                   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Settings              Settings               `json:"settings,omitempty" yaml:"-" toml:"-"`

	// WatchPath, when non-empty and hot reload is enabled, is watched for
	// writes; a change triggers a reload of this module.
	WatchPath string `json:"watchPath,omitempty" yaml:"watchPath" toml:"watchPath"`
}

// ModuleRegistration is the mutable record owned exclusively by the
// registry. Instance is populated by load and cleared by unload; the record
// itself is deleted only by remove.
type ModuleRegistration struct {
	ID             string
	Factory        ModuleFactory
	Config         ModuleConfig
	Status         ModuleStatus
	Instance       Module
	Err            error
	RegisteredAt   time.Time
	LoadTime       time.Duration
	ActivationTime time.Duration
	ErrorCount     int
}

// Route is a host route contributed by a module.
type Route struct {
	Method  string           `json:"method"`
	Path    string           `json:"path"`
	Handler http.HandlerFunc `json:"-"`
}

// MenuItem is a menu contribution forwarded to the host on activation.
type MenuItem struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Icon    string `json:"icon,omitempty"`
	Command string `json:"command,omitempty"`
	Order   int    `json:"order,omitempty"`
}

// ToolbarItem is a toolbar contribution forwarded to the host on activation.
type ToolbarItem struct {
	ID      string `json:"id"`
	Icon    string `json:"icon,omitempty"`
	Tooltip string `json:"tooltip,omitempty"`
	Command string `json:"command,omitempty"`
	Order   int    `json:"order,omitempty"`
}

// Command is an invokable action contributed by a module.
type Command struct {
	ID      string                                                   `json:"id"`
	Title   string                                                   `json:"title"`
	Handler func(ctx context.Context, args map[string]string) error `json:"-"`
}

// SettingsSchema describes the settings surface a module exposes to the host.
type SettingsSchema struct {
	ModuleID string          `json:"moduleId"`
	Fields   []SettingsField `json:"fields"`
}

// SettingsField is a single entry in a settings schema.
type SettingsField struct {
	Key     string       `json:"key"`
	Label   string       `json:"label"`
	Type    string       `json:"type"`
	Default SettingValue `json:"default,omitempty"`
}
