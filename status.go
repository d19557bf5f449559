package pluggable

import "encoding/json"

// ModuleStatus represents the lifecycle state of a registered module.
// Exactly one status is held per registration at any time; transitions
// are driven exclusively by the orchestrator's lifecycle operations.
type ModuleStatus int

const (
	// StatusUnloaded is the initial state after registration and the state
	// after a successful unload. No instance exists.
	StatusUnloaded ModuleStatus = iota

	// StatusLoading is the transient state while dependencies are being
	// loaded and the module instance is being constructed and initialized.
	StatusLoading

	// StatusLoaded means the instance exists and Initialize succeeded,
	// but the module is not yet active.
	StatusLoaded

	// StatusActivating is the transient state while Activate is running.
	StatusActivating

	// StatusActive means the module is fully activated and its declared
	// routes, menu items and commands have been forwarded to the host.
	StatusActive

	// StatusDeactivating is the transient state while Deactivate is running.
	StatusDeactivating

	// StatusError means a lifecycle operation or a runtime error reported
	// through the recovery controller has failed the module. The error is
	// recorded on the registration.
	StatusError
)

var statusNames = map[ModuleStatus]string{
	StatusUnloaded:     "unloaded",
	StatusLoading:      "loading",
	StatusLoaded:       "loaded",
	StatusActivating:   "activating",
	StatusActive:       "active",
	StatusDeactivating: "deactivating",
	StatusError:        "error",
}

func (s ModuleStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON renders the status as its lowercase name so event payloads
// stay readable for external subscribers.
func (s ModuleStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String()) //nolint:wrapcheck
}
