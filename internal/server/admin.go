package server

import (
	"net/http"
	"runtime"
	"time"

	"go.uber.org/zap"

	"portfolio/internal/cache"
	redisc "portfolio/internal/cache/redis"
)

type dashboardReport struct {
	UptimeSeconds  int64          `json:"uptimeSeconds"`
	HeapAllocBytes uint64         `json:"heapAllocBytes"`
	SysBytes       uint64         `json:"sysBytes"`
	Goroutines     int            `json:"goroutines"`
	MemoryCache    cache.Stats    `json:"memoryCache"`
	RedisCache     redisc.Stats   `json:"redisCache"`
	LogCounters    map[string]int `json:"logCounters"`
}

type latencyReport struct {
	OK        bool   `json:"ok"`
	LatencyMS int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

type metricsReport struct {
	Database latencyReport `json:"database"`
	Redis    latencyReport `json:"redis"`
}

// handleDashboard reports process memory, uptime, and both cache tiers'
// statistics.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	report := dashboardReport{
		UptimeSeconds:  int64(time.Since(s.started).Seconds()),
		HeapAllocBytes: mem.HeapAlloc,
		SysBytes:       mem.Sys,
		Goroutines:     runtime.NumGoroutine(),
		MemoryCache:    s.cache.Mem.Stats(),
		RedisCache:     redisc.Stats{Connected: false},
		LogCounters:    s.log.Counters(),
	}
	if s.cache.Redis != nil {
		report.RedisCache = s.cache.Redis.Stats(r.Context())
	}
	writeJSON(w, http.StatusOK, report)
}

// handleMetrics reports round-trip latency to the database and the Redis
// tier.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	report := metricsReport{
		Redis: latencyReport{OK: false, Error: "not connected"},
	}

	if d, err := s.db.Ping(r.Context()); err != nil {
		report.Database = latencyReport{OK: false, LatencyMS: d.Milliseconds(), Error: err.Error()}
	} else {
		report.Database = latencyReport{OK: true, LatencyMS: d.Milliseconds()}
	}

	if s.cache.Redis != nil && s.cache.Redis.Connected() {
		if d, err := s.cache.Redis.Ping(r.Context()); err != nil {
			report.Redis = latencyReport{OK: false, LatencyMS: d.Milliseconds(), Error: err.Error()}
		} else {
			report.Redis = latencyReport{OK: true, LatencyMS: d.Milliseconds()}
		}
	}
	writeJSON(w, http.StatusOK, report)
}

type cacheClearRequest struct {
	Type string `json:"type"`
}

// handleCacheClear empties the requested tier(s). An unknown type is a 400
// and neither tier is touched.
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	var req cacheClearRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.cache.Clear(r.Context(), req.Type); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.log.Security("cache cleared by operator", zap.String("type", req.Type))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "cleared": req.Type})
}
