package pluggable

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Router is the host routing surface module routes are forwarded into.
type Router interface {
	// AddRoutes mounts the routes contributed by moduleID.
	AddRoutes(moduleID string, routes []Route) error

	// RemoveRoutes unmounts everything contributed by moduleID.
	// Idempotent for unknown module ids.
	RemoveRoutes(moduleID string) error
}

// Notifications is the host's user-facing notification surface.
type Notifications interface {
	Success(msg string)
	Error(msg string)
}

// Storage is a generic key/value surface modules may persist through.
type Storage interface {
	Get(ctx context.Context, key string) (SettingValue, error)
	Set(ctx context.Context, key string, value SettingValue) error
}

// ErrorReporter lets module-spawned goroutines report runtime errors with
// their module id attached, so attribution is deterministic instead of
// guessed from stack traces.
type ErrorReporter interface {
	ReportError(moduleID string, err error)
}

// CoreAPI is the externally supplied capability bundle the orchestrator
// forwards module contributions into. The orchestrator itself only calls
// Router and Notifications directly; Storage and Reporter are passed
// through to modules at Initialize time.
type CoreAPI interface {
	Router() Router
	Notifications() Notifications
	Storage() Storage
	Reporter() ErrorReporter
}

// StdCoreAPI is a ready-made CoreAPI for hosts that do not bring their
// own: a chi-backed router, logger-backed notifications and an in-memory
// store. The orchestrator injects itself as the error reporter at
// construction.
type StdCoreAPI struct {
	router        *ChiRouter
	notifications Notifications
	storage       Storage
	reporter      ErrorReporter
}

// NewStdCoreAPI builds the default bundle. logger may be nil.
func NewStdCoreAPI(logger Logger) *StdCoreAPI {
	if logger == nil {
		logger = NewSlogLogger(nil)
	}
	return &StdCoreAPI{
		router:        NewChiRouter(),
		notifications: &logNotifications{logger: logger},
		storage:       NewMemoryStorage(),
	}
}

func (a *StdCoreAPI) Router() Router               { return a.router }
func (a *StdCoreAPI) Notifications() Notifications { return a.notifications }
func (a *StdCoreAPI) Storage() Storage             { return a.storage }
func (a *StdCoreAPI) Reporter() ErrorReporter      { return a.reporter }

// SetReporter wires the recovery controller in. Called by New; hosts only
// need it when composing a custom orchestrator setup.
func (a *StdCoreAPI) SetReporter(r ErrorReporter) { a.reporter = r }

// Handler exposes the live router for mounting into the host's HTTP server.
func (a *StdCoreAPI) Handler() http.Handler { return a.router }

// ChiRouter implements Router on top of chi. chi has no route removal, so
// the full route table is retained per module and the mux is rebuilt when
// a module's routes are removed.
type ChiRouter struct {
	mu     sync.RWMutex
	mux    *chi.Mux
	routes map[string][]Route
}

// NewChiRouter creates an empty router.
func NewChiRouter() *ChiRouter {
	return &ChiRouter{
		mux:    chi.NewRouter(),
		routes: make(map[string][]Route),
	}
}

// AddRoutes mounts the module's routes on the live mux. The whole slice is
// validated before anything is mounted, so a rejected slice leaves no route
// behind that the table could not withdraw later.
func (r *ChiRouter) AddRoutes(moduleID string, routes []Route) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, route := range routes {
		if route.Path == "" || route.Handler == nil {
			return &ConfigValidationError{Field: "routes", Reason: fmt.Sprintf("module %q declares a route without path or handler", moduleID)}
		}
	}
	for _, route := range routes {
		method := route.Method
		if method == "" {
			method = http.MethodGet
		}
		r.mux.Method(method, route.Path, route.Handler)
	}
	r.routes[moduleID] = append(r.routes[moduleID], routes...)
	return nil
}

// RemoveRoutes drops the module's routes and rebuilds the mux from the
// remaining table.
func (r *ChiRouter) RemoveRoutes(moduleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.routes[moduleID]; !ok {
		return nil
	}
	delete(r.routes, moduleID)

	mux := chi.NewRouter()
	ids := make([]string, 0, len(r.routes))
	for id := range r.routes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		for _, route := range r.routes[id] {
			method := route.Method
			if method == "" {
				method = http.MethodGet
			}
			mux.Method(method, route.Path, route.Handler)
		}
	}
	r.mux = mux
	return nil
}

// ServeHTTP delegates to the current mux.
func (r *ChiRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	mux := r.mux
	r.mu.RUnlock()
	mux.ServeHTTP(w, req)
}

// logNotifications routes notifications into the structured logger.
type logNotifications struct {
	logger Logger
}

func (n *logNotifications) Success(msg string) { n.logger.Info("Notification", "kind", "success", "message", msg) }
func (n *logNotifications) Error(msg string)   { n.logger.Error("Notification", "kind", "error", "message", msg) }

// MemoryStorage is a concurrency-safe in-memory Storage implementation.
type MemoryStorage struct {
	mu   sync.RWMutex
	data map[string]SettingValue
}

// NewMemoryStorage creates an empty store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{data: make(map[string]SettingValue)}
}

// Get returns the stored value for key, or the nil setting value when the
// key is absent.
func (s *MemoryStorage) Get(_ context.Context, key string) (SettingValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[key], nil
}

// Set stores value under key.
func (s *MemoryStorage) Set(_ context.Context, key string, value SettingValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}
