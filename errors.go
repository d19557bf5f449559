package pluggable

import (
	"errors"
	"fmt"
	"strings"
)

// Orchestrator errors. Structured error types further down carry the data
// the matching sentinel cannot (cycle paths, dependent lists, version
// pairs); errors.Is works against the sentinels either way.
var (
	// Registration errors
	ErrConfigValidation    = errors.New("invalid module config")
	ErrAlreadyRegistered   = errors.New("module already registered")
	ErrVersionIncompatible = errors.New("version incompatibility")
	ErrNilFactory          = errors.New("module factory is nil")

	// Lifecycle errors
	ErrModuleNotFound          = errors.New("module not found")
	ErrCircularDependency      = errors.New("circular dependency detected")
	ErrDependencyNotRegistered = errors.New("module depends on unregistered module")
	ErrDependencyInErrorState  = errors.New("dependency is in error state")
	ErrModuleInErrorState      = errors.New("module is in error state")
	ErrActivationFailed        = errors.New("module activation failed")
	ErrActiveDependents        = errors.New("module has active dependents")
	ErrModulePanic             = errors.New("module panicked")
	ErrModuleDisabled          = errors.New("module is disabled")
	ErrFactoryReturnedNil      = errors.New("factory returned nil module")

	// Batch errors
	ErrUnknownBatchOperation = errors.New("unknown batch operation")

	// Construction errors
	ErrNilCoreAPI = errors.New("core API is nil")

	// Settings errors
	ErrSettingValueUnsupported = errors.New("unsupported setting value type")
	ErrSettingWrongKind        = errors.New("setting value has wrong kind")

	// Manifest errors
	ErrUnsupportedManifestFormat = errors.New("unsupported manifest format")
)

// ConfigValidationError reports a ModuleConfig that failed validation,
// naming the offending field.
type ConfigValidationError struct {
	Field  string
	Reason string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("invalid module config: field %q: %s", e.Field, e.Reason)
}

func (e *ConfigValidationError) Unwrap() error { return ErrConfigValidation }

// CircularDependencyError carries the full cycle as an ordered list of
// module ids, starting and ending with the same id.
type CircularDependencyError struct {
	Cycle []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Cycle, " -> "))
}

func (e *CircularDependencyError) Unwrap() error { return ErrCircularDependency }

// VersionIncompatibilityError reports a failed version check, including
// both the required range and the actual version encountered.
type VersionIncompatibilityError struct {
	ModuleID   string
	Dependency string // empty for core-version violations
	Required   string
	Actual     string
}

func (e *VersionIncompatibilityError) Error() string {
	subject := "core version"
	if e.Dependency != "" {
		subject = fmt.Sprintf("dependency %q", e.Dependency)
	}
	return fmt.Sprintf("version incompatibility: module %q requires %s %s, actual %s",
		e.ModuleID, subject, e.Required, e.Actual)
}

func (e *VersionIncompatibilityError) Unwrap() error { return ErrVersionIncompatible }

// ActiveDependentsError blocks deactivation of a module that other active
// modules still depend on, naming them.
type ActiveDependentsError struct {
	ModuleID   string
	Dependents []string
}

func (e *ActiveDependentsError) Error() string {
	return fmt.Sprintf("module %q has active dependents: %s",
		e.ModuleID, strings.Join(e.Dependents, ", "))
}

func (e *ActiveDependentsError) Unwrap() error { return ErrActiveDependents }

// ActivationError wraps an underlying module failure raised during a
// lifecycle hook, preserving the wrapped cause for errors.Is/As.
type ActivationError struct {
	ModuleID string
	Op       string
	Err      error
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("module %q failed during %s: %v", e.ModuleID, e.Op, e.Err)
}

func (e *ActivationError) Unwrap() error { return e.Err }

func (e *ActivationError) Is(target error) bool { return target == ErrActivationFailed }
