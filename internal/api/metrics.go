package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemStatus is the /status response.
type SystemStatus struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeStatus   `json:"runtime"`
	WebSocket     WSStatus        `json:"websocket"`
	MQTT          MQTTStatus      `json:"mqtt"`
	Locos         LocoStatus      `json:"locos"`
	Database      *DatabaseStatus `json:"database,omitempty"`
}

// RuntimeStatus contains Go runtime statistics.
type RuntimeStatus struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSStatus contains WebSocket statistics.
type WSStatus struct {
	ConnectedClients  int `json:"connected_clients"`
	ThrottleListeners int `json:"throttle_listeners"`
}

// MQTTStatus contains MQTT client state.
type MQTTStatus struct {
	Enabled   bool `json:"enabled"`
	Connected bool `json:"connected"`
}

// LocoStatus contains registry statistics.
type LocoStatus struct {
	Count  int  `json:"count"`
	Loaded bool `json:"loaded"`
}

// DatabaseStatus contains database connection pool statistics.
type DatabaseStatus struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleStatus returns a JSON summary of the running instance. Prometheus
// scrapes /metrics; this endpoint is for humans and dashboards.
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	status := SystemStatus{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeStatus{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSStatus{
			ConnectedClients:  s.hub.ClientCount(),
			ThrottleListeners: s.throttles.ListenerCount(),
		},
		MQTT: MQTTStatus{
			Enabled:   s.mqtt != nil,
			Connected: s.mqtt.IsConnected(),
		},
		Locos: LocoStatus{
			Count:  s.registry.Len(),
			Loaded: s.throttles.Loaded(),
		},
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		status.Database = &DatabaseStatus{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, status)
}
