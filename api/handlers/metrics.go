package handlers

import (
	"net/http"
	"strconv"

	"github.com/linesmerrill/event-checkin-api/api"
)

type routeMetrics struct {
	api.RouteMetrics
	AvgTime int64 `json:"avgTime"`
	MinTime int64 `json:"minTime"`
	MaxTime int64 `json:"maxTime"`
}

type metricsResponse struct {
	Summary api.Summary    `json:"summary"`
	Routes  []routeMetrics `json:"routes"`
}

// MetricsHandler handles metrics dashboard requests
type MetricsHandler struct {
	Collector *api.MetricsCollector
}

// MetricsSummaryHandler returns the request counters and the slowest routes. Times are
// in milliseconds.
func (m MetricsHandler) MetricsSummaryHandler(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if parsed, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && parsed > 0 {
		limit = parsed
	}

	resp := metricsResponse{Summary: m.Collector.Summary(), Routes: []routeMetrics{}}
	for _, route := range m.Collector.SlowestRoutes(limit) {
		resp.Routes = append(resp.Routes, routeMetrics{
			RouteMetrics: route,
			AvgTime:      route.AvgTime.Milliseconds(),
			MinTime:      route.MinTime.Milliseconds(),
			MaxTime:      route.MaxTime.Milliseconds(),
		})
	}
	respond(w, http.StatusOK, resp)
}
