package api

import (
	"sort"
	"sync"
	"time"
)

// RouteMetrics aggregates metrics for a specific route
type RouteMetrics struct {
	Method      string        `json:"method"`
	Path        string        `json:"path"`
	Count       int64         `json:"count"`
	ErrorCount  int64         `json:"errorCount"`
	TotalTime   time.Duration `json:"-"`
	AvgTime     time.Duration `json:"-"`
	MinTime     time.Duration `json:"-"`
	MaxTime     time.Duration `json:"-"`
	LastRequest time.Time     `json:"lastRequest"`
}

// Summary is the overall view of the requests seen since the collector started
type Summary struct {
	Since         time.Time `json:"since"`
	TotalRequests int64     `json:"totalRequests"`
	TotalErrors   int64     `json:"totalErrors"`
	ErrorRate     float64   `json:"errorRate"`
	RouteCount    int       `json:"routeCount"`
}

// MetricsCollector collects and aggregates request metrics per route
type MetricsCollector struct {
	mu            sync.RWMutex
	start         time.Time
	routeMetrics  map[string]*RouteMetrics
	totalRequests int64
	totalErrors   int64
}

// NewMetricsCollector returns an empty collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		start:        time.Now(),
		routeMetrics: make(map[string]*RouteMetrics),
	}
}

// Record adds one finished request to the route's aggregate
func (mc *MetricsCollector) Record(method, path string, status int, d time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	key := method + " " + path
	m, ok := mc.routeMetrics[key]
	if !ok {
		m = &RouteMetrics{Method: method, Path: path, MinTime: d}
		mc.routeMetrics[key] = m
	}
	m.Count++
	m.TotalTime += d
	m.AvgTime = m.TotalTime / time.Duration(m.Count)
	m.LastRequest = time.Now()
	if d < m.MinTime {
		m.MinTime = d
	}
	if d > m.MaxTime {
		m.MaxTime = d
	}

	mc.totalRequests++
	if status >= 400 {
		m.ErrorCount++
		mc.totalErrors++
	}
}

// Summary returns overall counters
func (mc *MetricsCollector) Summary() Summary {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	s := Summary{
		Since:         mc.start,
		TotalRequests: mc.totalRequests,
		TotalErrors:   mc.totalErrors,
		RouteCount:    len(mc.routeMetrics),
	}
	if mc.totalRequests > 0 {
		s.ErrorRate = float64(mc.totalErrors) / float64(mc.totalRequests)
	}
	return s
}

// SlowestRoutes returns copies of the route metrics ordered by average time, slowest first
func (mc *MetricsCollector) SlowestRoutes(limit int) []RouteMetrics {
	mc.mu.RLock()
	routes := make([]RouteMetrics, 0, len(mc.routeMetrics))
	for _, m := range mc.routeMetrics {
		routes = append(routes, *m)
	}
	mc.mu.RUnlock()

	sort.Slice(routes, func(i, j int) bool {
		if routes[i].AvgTime == routes[j].AvgTime {
			return routes[i].Method+routes[i].Path < routes[j].Method+routes[j].Path
		}
		return routes[i].AvgTime > routes[j].AvgTime
	})
	if limit > 0 && limit < len(routes) {
		routes = routes[:limit]
	}
	return routes
}
