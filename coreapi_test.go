package pluggable

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertRouteStatus(t *testing.T, handler http.Handler, path string, want int) {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	assert.Equal(t, want, rec.Code, "GET %s", path)
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestChiRouterAddAndRemove(t *testing.T) {
	router := NewChiRouter()
	require.NoError(t, router.AddRoutes("charts", []Route{
		{Method: http.MethodGet, Path: "/charts", Handler: okHandler},
		{Path: "/charts/latest", Handler: okHandler}, // method defaults to GET
	}))
	require.NoError(t, router.AddRoutes("notes", []Route{
		{Method: http.MethodGet, Path: "/notes", Handler: okHandler},
	}))

	assertRouteStatus(t, router, "/charts", http.StatusOK)
	assertRouteStatus(t, router, "/charts/latest", http.StatusOK)
	assertRouteStatus(t, router, "/notes", http.StatusOK)

	require.NoError(t, router.RemoveRoutes("charts"))

	assertRouteStatus(t, router, "/charts", http.StatusNotFound)
	assertRouteStatus(t, router, "/charts/latest", http.StatusNotFound)
	assertRouteStatus(t, router, "/notes", http.StatusOK)
}

func TestChiRouterRemoveUnknownModule(t *testing.T) {
	router := NewChiRouter()
	assert.NoError(t, router.RemoveRoutes("ghost"))
}

func TestChiRouterRejectsInvalidRoute(t *testing.T) {
	router := NewChiRouter()

	err := router.AddRoutes("bad", []Route{{Method: http.MethodGet, Path: "/ok"}})
	assert.ErrorIs(t, err, ErrConfigValidation)

	err = router.AddRoutes("bad", []Route{{Method: http.MethodGet, Handler: okHandler}})
	assert.ErrorIs(t, err, ErrConfigValidation)
}

func TestChiRouterRejectedSliceMountsNothing(t *testing.T) {
	router := NewChiRouter()

	err := router.AddRoutes("charts", []Route{
		{Method: http.MethodGet, Path: "/good", Handler: okHandler},
		{Method: http.MethodGet, Path: "/bad"}, // no handler
	})
	assert.ErrorIs(t, err, ErrConfigValidation)

	// The valid route earlier in the slice must not have been mounted.
	assertRouteStatus(t, router, "/good", http.StatusNotFound)
	assert.NoError(t, router.RemoveRoutes("charts"))
}

func TestMemoryStorage(t *testing.T) {
	store := NewMemoryStorage()
	ctx := context.Background()

	missing, err := store.Get(ctx, "absent")
	require.NoError(t, err)
	assert.True(t, missing.IsNil())

	require.NoError(t, store.Set(ctx, "limit", MustSettingValue(10)))
	got, err := store.Get(ctx, "limit")
	require.NoError(t, err)
	n, err := got.Int()
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
}

func TestStdCoreAPIBundle(t *testing.T) {
	api := NewStdCoreAPI(nil)
	assert.NotNil(t, api.Router())
	assert.NotNil(t, api.Notifications())
	assert.NotNil(t, api.Storage())
	assert.Nil(t, api.Reporter())

	orch, err := New(api)
	require.NoError(t, err)
	t.Cleanup(func() { _ = orch.Close() })

	assert.NotNil(t, api.Reporter(), "orchestrator wires itself in as the reporter")
}

func TestNewRejectsNilCoreAPI(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilCoreAPI)
}
