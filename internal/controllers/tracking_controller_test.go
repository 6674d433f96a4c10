package controllers

import (
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus_tracker/internal/middleware"
	"bus_tracker/internal/models"
	"bus_tracker/internal/tracking"
	"bus_tracker/internal/tracking/trackingtest"
)

type trackingEnv struct {
	router  *gin.Engine
	buses   *trackingtest.Buses
	history *trackingtest.History
}

func newTrackingEnv(t *testing.T) *trackingEnv {
	t.Helper()
	routeID := uint(7)
	bus := models.Bus{
		RegistrationNumber: "KA-01-1234",
		Number:             "12",
		SeatingCapacity:    40,
		RouteID:            &routeID,
		CurrentLocation:    models.DefaultLocation,
		Status:             models.StatusOnTime,
		AlertType:          models.AlertNormal,
	}
	bus.ID = 1
	spare := models.Bus{RegistrationNumber: "KA-01-9999", Number: "99", SeatingCapacity: 40}
	spare.ID = 2

	env := &trackingEnv{
		buses:   trackingtest.NewBuses(bus, spare),
		history: trackingtest.NewHistory(),
	}
	now := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)
	tracker := tracking.NewTracker(env.buses, trackingtest.NewRoutes(campusRoute()), env.history,
		tracking.WithClock(func() time.Time {
			now = now.Add(time.Minute)
			return now
		}))
	tc := NewTrackingController(tracker, time.UTC)
	auth := middleware.NewAuth(testSecret)

	r := gin.New()
	api := r.Group("/", auth.RequireAuth())
	buses := api.Group("/buses/:id", middleware.RequireBusAccess())
	buses.POST("/location", tc.UpdateLocation)
	buses.GET("/location-history", tc.GetLocationHistory)
	api.GET("/buses/:id/status", tc.GetBusStatus)
	api.GET("/routes/:id/waypoints", tc.GetWaypoints)
	api.POST("/admin/buses/:id/reset", middleware.RequireRole(middleware.RoleAdmin), tc.ResetBus)
	env.router = r
	return env
}

func locationBody(location, direction, status string, count int) map[string]any {
	return map[string]any{
		"current_location": location,
		"route_direction":  direction,
		"status":           status,
		"attendance_data":  map[string]any{"count": count},
	}
}

func TestUpdateLocation_AppliesAndRecordsHistory(t *testing.T) {
	env := newTrackingEnv(t)

	w := doJSON(t, env.router, http.MethodPost, "/buses/1/location", conductorOf(t, 1),
		locationBody("Library", "departure", "on-time", 12))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "Hostel", body["next_stop"])
	assert.Equal(t, true, body["history_recorded"])
	assert.Equal(t, false, body["capacity_exceeded"])
	bus := body["bus"].(map[string]any)
	assert.Equal(t, "Library", bus["current_location"])
	assert.EqualValues(t, 2, bus["version"])
	assert.Equal(t, 1, env.history.Len())
}

func TestUpdateLocation_CapacityWarning(t *testing.T) {
	env := newTrackingEnv(t)

	w := doJSON(t, env.router, http.MethodPost, "/buses/1/location", conductorOf(t, 1),
		locationBody("Hostel", "departure", "delayed", 55))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, true, body["capacity_exceeded"])
	assert.NotEmpty(t, body["warnings"])
	assert.Equal(t, "Depot", body["next_stop"])
}

func TestUpdateLocation_Rejections(t *testing.T) {
	admin := func(t *testing.T) string { return token(t, middleware.RoleAdmin, nil) }

	tests := []struct {
		name   string
		path   string
		tok    func(t *testing.T) string
		body   map[string]any
		status int
	}{
		{
			name:   "unknown direction",
			path:   "/buses/1/location",
			tok:    func(t *testing.T) string { return conductorOf(t, 1) },
			body:   locationBody("Library", "sideways", "on-time", 1),
			status: http.StatusBadRequest,
		},
		{
			name:   "maintenance via update",
			path:   "/buses/1/location",
			tok:    func(t *testing.T) string { return conductorOf(t, 1) },
			body:   locationBody("Library", "departure", "maintenance", 1),
			status: http.StatusBadRequest,
		},
		{
			name:   "negative count",
			path:   "/buses/1/location",
			tok:    func(t *testing.T) string { return conductorOf(t, 1) },
			body:   locationBody("Library", "departure", "on-time", -1),
			status: http.StatusBadRequest,
		},
		{
			name:   "conductor of another bus",
			path:   "/buses/1/location",
			tok:    func(t *testing.T) string { return conductorOf(t, 2) },
			body:   locationBody("Library", "departure", "on-time", 1),
			status: http.StatusForbidden,
		},
		{
			name:   "viewer",
			path:   "/buses/1/location",
			tok:    func(t *testing.T) string { return token(t, middleware.RoleViewer, nil) },
			body:   locationBody("Library", "departure", "on-time", 1),
			status: http.StatusForbidden,
		},
		{
			name:   "missing bus",
			path:   "/buses/99/location",
			tok:    admin,
			body:   locationBody("Library", "departure", "on-time", 1),
			status: http.StatusNotFound,
		},
		{
			name:   "no route assigned",
			path:   "/buses/2/location",
			tok:    admin,
			body:   locationBody("Library", "departure", "on-time", 1),
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "stale version",
			path:   "/buses/1/location",
			tok:    admin,
			body: func() map[string]any {
				b := locationBody("Library", "departure", "on-time", 1)
				b["version"] = 5
				return b
			}(),
			status: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTrackingEnv(t)
			w := doJSON(t, env.router, http.MethodPost, tt.path, tt.tok(t), tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Zero(t, env.history.Len())
		})
	}
}

func TestUpdateLocation_RequiresToken(t *testing.T) {
	env := newTrackingEnv(t)
	w := doJSON(t, env.router, http.MethodPost, "/buses/1/location", "",
		locationBody("Library", "departure", "on-time", 1))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetLocationHistory_Pages(t *testing.T) {
	env := newTrackingEnv(t)
	tok := conductorOf(t, 1)
	for _, stop := range []string{"Gate", "Library", "Hostel"} {
		w := doJSON(t, env.router, http.MethodPost, "/buses/1/location", tok,
			locationBody(stop, "departure", "on-time", 5))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w := doJSON(t, env.router, http.MethodGet, "/buses/1/location-history?limit=2", tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode(t, w)
	records := first["records"].([]any)
	require.Len(t, records, 2)
	assert.Equal(t, "Hostel", records[0].(map[string]any)["location"])
	cursor, _ := first["next_cursor"].(string)
	require.NotEmpty(t, cursor)

	w = doJSON(t, env.router, http.MethodGet, "/buses/1/location-history?limit=2&before="+cursor, tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	second := decode(t, w)
	records = second["records"].([]any)
	require.Len(t, records, 1)
	assert.Equal(t, "Gate", records[0].(map[string]any)["location"])
	assert.Empty(t, second["next_cursor"])
}

func TestGetLocationHistory_BadFilters(t *testing.T) {
	env := newTrackingEnv(t)
	tok := conductorOf(t, 1)
	for _, q := range []string{"date=02-03-2026", "limit=abc", "from=yesterday", "before=nope", "direction=sideways"} {
		w := doJSON(t, env.router, http.MethodGet, "/buses/1/location-history?"+q, tok, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestGetLocationHistory_DateFilter(t *testing.T) {
	env := newTrackingEnv(t)
	tok := conductorOf(t, 1)
	w := doJSON(t, env.router, http.MethodPost, "/buses/1/location", tok,
		locationBody("Gate", "departure", "on-time", 5))
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, env.router, http.MethodGet, "/buses/1/location-history?date=2026-03-02", tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode(t, w)["records"], 1)

	w = doJSON(t, env.router, http.MethodGet, "/buses/1/location-history?date=2026-03-03", tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, decode(t, w)["records"])
}

func TestGetWaypoints(t *testing.T) {
	env := newTrackingEnv(t)
	w := doJSON(t, env.router, http.MethodGet, "/routes/7/waypoints", token(t, middleware.RoleViewer, nil), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, []any{"Gate", "Library", "Hostel", "Depot"}, body["departure"])
	assert.Equal(t, []any{"Depot", "Hostel", "Library", "Gate"}, body["return"])

	w = doJSON(t, env.router, http.MethodGet, "/routes/8/waypoints", token(t, middleware.RoleViewer, nil), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = doJSON(t, env.router, http.MethodGet, "/routes/x/waypoints", token(t, middleware.RoleViewer, nil), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResetBus(t *testing.T) {
	env := newTrackingEnv(t)

	w := doJSON(t, env.router, http.MethodPost, "/admin/buses/1/reset", conductorOf(t, 1), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, env.router, http.MethodPost, "/admin/buses/1/reset", token(t, middleware.RoleAdmin, nil), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	bus := decode(t, w)["bus"].(map[string]any)
	assert.Equal(t, "maintenance", bus["status"])
	assert.Equal(t, models.DefaultLocation, bus["current_location"])

	w = doJSON(t, env.router, http.MethodGet, "/buses/1/status", token(t, middleware.RoleViewer, nil), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "maintenance", decode(t, w)["bus"].(map[string]any)["status"])
}
