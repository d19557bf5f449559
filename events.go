package pluggable

import (
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// CloudEvent is an alias for the CloudEvents Event type for convenience.
type CloudEvent = cloudevents.Event

// Event types emitted by the orchestrator. The colon form is the outbound
// contract hosts subscribe against; it is carried verbatim as the
// CloudEvents type attribute.
const (
	// Lifecycle events
	EventTypeModuleRegistered  = "module:registered"
	EventTypeModuleLoaded      = "module:loaded"
	EventTypeModuleActivated   = "module:activated"
	EventTypeModuleDeactivated = "module:deactivated"
	EventTypeModuleUnloaded    = "module:unloaded"
	EventTypeModuleReloaded    = "module:reloaded"
	EventTypeModuleRemoved     = "module:removed"

	// Error and recovery events
	EventTypeModuleError          = "module:error"
	EventTypeModuleRecoveryFailed = "module:recovery-failed"

	// Feature-registration events
	EventTypeRoutesRegistered       = "module:routes-registered"
	EventTypeMenuItemsRegistered    = "module:menu-items-registered"
	EventTypeToolbarItemsRegistered = "module:toolbar-items-registered"
	EventTypeCommandsRegistered     = "module:commands-registered"
	EventTypeRegisterSettings       = "module:register-settings"
)

// eventSource is the CloudEvents source attribute for orchestrator events.
const eventSource = "pluggable/orchestrator"

// ModuleEvent is the payload for plain lifecycle events.
type ModuleEvent struct {
	ModuleID string       `json:"moduleId"`
	Status   ModuleStatus `json:"status"`
}

// ModuleRegisteredEvent is the payload for module:registered.
type ModuleRegisteredEvent struct {
	ModuleID string       `json:"moduleId"`
	Config   ModuleConfig `json:"config"`
}

// ModuleErrorEvent is the payload for module:error and
// module:recovery-failed. ModuleID is empty when a runtime error could not
// be attributed to any module.
type ModuleErrorEvent struct {
	ModuleID string `json:"moduleId"`
	Error    string `json:"error"`
	Attempt  int    `json:"attempt,omitempty"`
}

// RouteInfo is the serializable projection of a contributed route.
type RouteInfo struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// RoutesRegisteredEvent is the payload for module:routes-registered.
type RoutesRegisteredEvent struct {
	ModuleID string      `json:"moduleId"`
	Routes   []RouteInfo `json:"routes"`
}

// MenuItemsRegisteredEvent is the payload for module:menu-items-registered.
type MenuItemsRegisteredEvent struct {
	ModuleID string     `json:"moduleId"`
	Items    []MenuItem `json:"items"`
}

// ToolbarItemsRegisteredEvent is the payload for
// module:toolbar-items-registered.
type ToolbarItemsRegisteredEvent struct {
	ModuleID string        `json:"moduleId"`
	Items    []ToolbarItem `json:"items"`
}

// CommandInfo is the serializable projection of a contributed command.
type CommandInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// CommandsRegisteredEvent is the payload for module:commands-registered.
type CommandsRegisteredEvent struct {
	ModuleID string        `json:"moduleId"`
	Commands []CommandInfo `json:"commands"`
}

// SettingsRegisteredEvent is the payload for module:register-settings.
type SettingsRegisteredEvent struct {
	ModuleID string         `json:"moduleId"`
	Schema   SettingsSchema `json:"schema"`
}

// NewCloudEvent creates a properly formatted CloudEvent carrying one of the
// typed payloads above.
func NewCloudEvent(eventType, source string, data any) cloudevents.Event {
	event := cloudevents.NewEvent()
	event.SetID(generateEventID())
	event.SetSource(source)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)
	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}
	return event
}

// generateEventID returns a UUIDv7 so event ids carry time-ordered
// uniqueness, falling back to v4 if v7 generation fails.
func generateEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// ValidateCloudEvent validates an event against the CloudEvents
// specification before it is handed to observers.
func ValidateCloudEvent(event cloudevents.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("CloudEvent validation failed: %w", err)
	}
	return nil
}
