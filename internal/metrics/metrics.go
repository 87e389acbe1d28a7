package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/wrapupbridge/internal/types"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Frame bridge metrics
	FrameConnectionsTotal    int64
	FrameDisconnectionsTotal int64
	FrameMessagesTotal       int64
	FrameErrorsTotal         int64
	activeFrames             int64
	commands                 map[string]map[types.WrapupOutcome]int64 // func -> outcome -> count

	// Wrap-up metrics
	wrapupOutcomes       map[types.WrapupOutcome]int64
	pendingWrapups       int
	LifecycleEventsTotal int64

	// Desktop platform metrics
	desktopRequests   map[string]map[bool]int64 // op -> ok -> count
	DesktopReconnects int64
	desktopConnected  bool
	initialized       bool

	// HTTP metrics
	httpRequestsTotal    map[string]map[int]int64 // endpoint -> status -> count
	httpRequestDurations map[string][]float64     // endpoint -> durations

	// Timing
	startTime time.Time
}

// Global metrics instance
var instance *Metrics
var once sync.Once

// Get returns the singleton metrics instance
func Get() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			commands:             make(map[string]map[types.WrapupOutcome]int64),
			wrapupOutcomes:       make(map[types.WrapupOutcome]int64),
			desktopRequests:      make(map[string]map[bool]int64),
			httpRequestsTotal:    make(map[string]map[int]int64),
			httpRequestDurations: make(map[string][]float64),
			startTime:            time.Now(),
		}
	})
	return instance
}

// RecordFrameConnect increments frame connection counters
func (m *Metrics) RecordFrameConnect() {
	m.mu.Lock()
	m.FrameConnectionsTotal++
	m.activeFrames++
	m.mu.Unlock()
}

// RecordFrameDisconnect increments the frame disconnection counter
func (m *Metrics) RecordFrameDisconnect() {
	m.mu.Lock()
	m.FrameDisconnectionsTotal++
	m.activeFrames--
	m.mu.Unlock()
}

// RecordFrameMessage increments the frame message counter
func (m *Metrics) RecordFrameMessage() {
	m.mu.Lock()
	m.FrameMessagesTotal++
	m.mu.Unlock()
}

// RecordFrameError increments the frame error counter
func (m *Metrics) RecordFrameError() {
	m.mu.Lock()
	m.FrameErrorsTotal++
	m.mu.Unlock()
}

// RecordCommand counts a dispatched frame command by name and outcome
func (m *Metrics) RecordCommand(name string, outcome types.WrapupOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.commands[name] == nil {
		m.commands[name] = make(map[types.WrapupOutcome]int64)
	}
	m.commands[name][outcome]++
}

// RecordWrapupOutcome counts a resolved wrap-up intent
func (m *Metrics) RecordWrapupOutcome(outcome types.WrapupOutcome) {
	m.mu.Lock()
	m.wrapupOutcomes[outcome]++
	m.mu.Unlock()
}

// WrapupOutcomeCount returns how often an outcome was recorded
func (m *Metrics) WrapupOutcomeCount(outcome types.WrapupOutcome) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.wrapupOutcomes[outcome]
}

// SetPendingWrapups updates the pending wrap-up gauge
func (m *Metrics) SetPendingWrapups(n int) {
	m.mu.Lock()
	m.pendingWrapups = n
	m.mu.Unlock()
}

// RecordLifecycleEvent increments the lifecycle event counter
func (m *Metrics) RecordLifecycleEvent() {
	m.mu.Lock()
	m.LifecycleEventsTotal++
	m.mu.Unlock()
}

// RecordDesktopRequest counts a platform request by operation and result
func (m *Metrics) RecordDesktopRequest(op string, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.desktopRequests[op] == nil {
		m.desktopRequests[op] = make(map[bool]int64)
	}
	m.desktopRequests[op][ok]++
}

// RecordDesktopReconnect increments the platform reconnect counter
func (m *Metrics) RecordDesktopReconnect() {
	m.mu.Lock()
	m.DesktopReconnects++
	m.mu.Unlock()
}

// SetDesktopConnected updates the platform connection gauge
func (m *Metrics) SetDesktopConnected(connected bool) {
	m.mu.Lock()
	m.desktopConnected = connected
	m.mu.Unlock()
}

// SetInitialized updates the widget initialization gauge
func (m *Metrics) SetInitialized(initialized bool) {
	m.mu.Lock()
	m.initialized = initialized
	m.mu.Unlock()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpRequestsTotal[endpoint] == nil {
		m.httpRequestsTotal[endpoint] = make(map[int]int64)
	}
	m.httpRequestsTotal[endpoint][statusCode]++

	// Keep last 100 durations for percentile calculation
	if len(m.httpRequestDurations[endpoint]) >= 100 {
		m.httpRequestDurations[endpoint] = m.httpRequestDurations[endpoint][1:]
	}
	m.httpRequestDurations[endpoint] = append(m.httpRequestDurations[endpoint], duration.Seconds())
}

// GetActiveFrames returns current frame connections
func (m *Metrics) GetActiveFrames() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeFrames
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		write := func(name string, value interface{}, labels ...string) {
			labelStr := ""
			if len(labels) > 0 {
				labelStr = "{"
				for i := 0; i < len(labels); i += 2 {
					if i > 0 {
						labelStr += ","
					}
					labelStr += labels[i] + "=\"" + labels[i+1] + "\""
				}
				labelStr += "}"
			}

			switch v := value.(type) {
			case int:
				w.Write([]byte(name + labelStr + " " + strconv.Itoa(v) + "\n"))
			case int64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatInt(v, 10) + "\n"))
			case float64:
				w.Write([]byte(name + labelStr + " " + strconv.FormatFloat(v, 'f', 6, 64) + "\n"))
			case bool:
				if v {
					w.Write([]byte(name + labelStr + " 1\n"))
				} else {
					w.Write([]byte(name + labelStr + " 0\n"))
				}
			}
		}

		write("wrapupbridge_uptime_seconds", time.Since(m.startTime).Seconds())
		write("wrapupbridge_initialized", m.initialized)

		// Frame bridge
		write("wrapupbridge_frame_connections_total", m.FrameConnectionsTotal)
		write("wrapupbridge_frame_disconnections_total", m.FrameDisconnectionsTotal)
		write("wrapupbridge_frame_active_connections", m.activeFrames)
		write("wrapupbridge_frame_messages_total", m.FrameMessagesTotal)
		write("wrapupbridge_frame_errors_total", m.FrameErrorsTotal)
		for name, outcomes := range m.commands {
			for outcome, count := range outcomes {
				write("wrapupbridge_commands_total", count, "func", name, "outcome", string(outcome))
			}
		}

		// Wrap-up coordination
		write("wrapupbridge_pending_wrapups", m.pendingWrapups)
		write("wrapupbridge_lifecycle_events_total", m.LifecycleEventsTotal)
		for outcome, count := range m.wrapupOutcomes {
			write("wrapupbridge_wrapup_outcomes_total", count, "outcome", string(outcome))
		}

		// Desktop platform
		write("wrapupbridge_desktop_connected", m.desktopConnected)
		write("wrapupbridge_desktop_reconnects_total", m.DesktopReconnects)
		for op, results := range m.desktopRequests {
			for ok, count := range results {
				write("wrapupbridge_desktop_requests_total", count, "op", op, "ok", strconv.FormatBool(ok))
			}
		}

		// HTTP
		for endpoint, statusCodes := range m.httpRequestsTotal {
			for status, count := range statusCodes {
				write("wrapupbridge_http_requests_total", count, "endpoint", endpoint, "status", strconv.Itoa(status))
			}
		}
	}
}
