package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCollector(t *testing.T) {
	mc := NewMetricsCollector()
	mc.Record(http.MethodGet, "/events/{eventId}", http.StatusOK, 10*time.Millisecond)
	mc.Record(http.MethodGet, "/events/{eventId}", http.StatusNotFound, 30*time.Millisecond)
	mc.Record(http.MethodPost, "/checkin", http.StatusOK, 50*time.Millisecond)

	s := mc.Summary()
	assert.Equal(t, int64(3), s.TotalRequests)
	assert.Equal(t, int64(1), s.TotalErrors)
	assert.InDelta(t, 1.0/3.0, s.ErrorRate, 0.0001)
	assert.Equal(t, 2, s.RouteCount)

	routes := mc.SlowestRoutes(0)
	require.Len(t, routes, 2)
	assert.Equal(t, "/checkin", routes[0].Path)
	get := routes[1]
	assert.Equal(t, int64(2), get.Count)
	assert.Equal(t, int64(1), get.ErrorCount)
	assert.Equal(t, 20*time.Millisecond, get.AvgTime)
	assert.Equal(t, 10*time.Millisecond, get.MinTime)
	assert.Equal(t, 30*time.Millisecond, get.MaxTime)

	assert.Len(t, mc.SlowestRoutes(1), 1)
}

func TestMetricsMiddleware(t *testing.T) {
	mc := NewMetricsCollector()
	r := mux.NewRouter()
	r.Use(mc.Middleware)
	r.HandleFunc("/events/{eventId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {})

	for _, path := range []string{"/events/a", "/events/b", "/health"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if path != "/health" {
			assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))
		}
	}

	routes := mc.SlowestRoutes(0)
	require.Len(t, routes, 1)
	assert.Equal(t, "/events/{eventId}", routes[0].Path)
	assert.Equal(t, int64(2), routes[0].Count)
	assert.Equal(t, int64(2), routes[0].ErrorCount)
}

func TestTimeoutMiddleware(t *testing.T) {
	var deadline time.Time
	h := TimeoutMiddleware(time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, _ = r.Context().Deadline()
		<-r.Context().Done()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}
