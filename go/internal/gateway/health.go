package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// HealthStatus is the hub's view of its own dependencies
type HealthStatus struct {
	Healthy        bool      `json:"healthy"`
	SyncCounter    int64     `json:"syncCounter"`
	Connections    int       `json:"connections"`
	PunchesEmitted uint64    `json:"punchesEmitted"`
	LastPunchTime  time.Time `json:"lastPunchTime"`
	NATSEnabled    bool      `json:"natsEnabled"`
	NATSConnected  bool      `json:"natsConnected"`
	MQTTEnabled    bool      `json:"mqttEnabled"`
	MQTTConnected  bool      `json:"mqttConnected"`
	Errors         []string  `json:"errors"`
}

// HealthChecker reports hub health
type HealthChecker interface {
	Check(ctx context.Context) HealthStatus
}

// Check reports whether the optional NATS mirror and MQTT source are connected.
// A hub running without them is healthy.
func (s *Service) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy:     true,
		SyncCounter: s.counter.Current(),
		Errors:      []string{},
	}

	for _, cm := range s.listeners() {
		status.Connections += cm.GetConnectionStats().TotalConnections
	}

	s.publishMu.Lock()
	status.PunchesEmitted = s.punchesEmitted
	status.LastPunchTime = s.lastPunchAt
	s.publishMu.Unlock()

	if s.natsMirror != nil {
		status.NATSEnabled = true
		status.NATSConnected = s.natsMirror.Connected()
		if !status.NATSConnected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	if s.mqttSource != nil {
		status.MQTTEnabled = true
		status.MQTTConnected = s.mqttSource.Connected()
		if !status.MQTTConnected {
			status.Healthy = false
			status.Errors = append(status.Errors, "MQTT disconnected")
		}
	}

	if err := ctx.Err(); err != nil {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("health check aborted: %v", err))
	}

	return status
}

// HealthHandler serves the status of checker as JSON, with 503 when unhealthy
func HealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := checker.Check(ctx)
		code := http.StatusOK
		if !status.Healthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, status)
	}
}

// MetricsHandler serves the status of checker in the Prometheus text format
func MetricsHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := checker.Check(r.Context())
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprint(w, exportMetrics(status))
	}
}

func exportMetrics(status HealthStatus) string {
	var lastPunch int64
	if !status.LastPunchTime.IsZero() {
		lastPunch = status.LastPunchTime.Unix()
	}

	return fmt.Sprintf(`# HELP punchdeck_healthy Whether the hub is healthy
# TYPE punchdeck_healthy gauge
punchdeck_healthy %d

# HELP punchdeck_punches_total Total number of punches broadcast
# TYPE punchdeck_punches_total counter
punchdeck_punches_total %d

# HELP punchdeck_sync_counter Current sync counter value
# TYPE punchdeck_sync_counter gauge
punchdeck_sync_counter %d

# HELP punchdeck_connections Open WebSocket connections across listeners
# TYPE punchdeck_connections gauge
punchdeck_connections %d

# HELP punchdeck_nats_connected Whether the NATS mirror is connected
# TYPE punchdeck_nats_connected gauge
punchdeck_nats_connected %d

# HELP punchdeck_mqtt_connected Whether the MQTT source is connected
# TYPE punchdeck_mqtt_connected gauge
punchdeck_mqtt_connected %d

# HELP punchdeck_last_punch_timestamp Unix timestamp of the last punch
# TYPE punchdeck_last_punch_timestamp gauge
punchdeck_last_punch_timestamp %d
`,
		boolGauge(status.Healthy),
		status.PunchesEmitted,
		status.SyncCounter,
		status.Connections,
		boolGauge(status.NATSConnected),
		boolGauge(status.MQTTConnected),
		lastPunch,
	)
}

func boolGauge(v bool) int {
	if v {
		return 1
	}
	return 0
}
