package event

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dennisdiepolder/monti/wrapupbridge/internal/types"
	"github.com/rs/zerolog"
)

// Sink accepts lifecycle transitions for ordered delivery to listeners
type Sink interface {
	Deliver(change types.InteractionStateChange)
}

// Receiver accepts interaction lifecycle events pushed by the platform over
// HTTP and feeds them into the same listener path as WebSocket events
type Receiver struct {
	sink           Sink
	logger         zerolog.Logger
	eventsReceived int64
	eventsRejected int64
	lastReceived   time.Time
	mu             sync.RWMutex
}

// NewReceiver creates a new event receiver
func NewReceiver(sink Sink, logger zerolog.Logger) *Receiver {
	return &Receiver{
		sink:   sink,
		logger: logger.With().Str("component", "event_receiver").Logger(),
	}
}

// HandleEvent receives one interaction state event
// POST /internal/interaction-event
func (r *Receiver) HandleEvent(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var event types.InteractionStateEvent
	if err := json.NewDecoder(req.Body).Decode(&event); err != nil {
		r.logger.Error().Err(err).Msg("failed to decode event")
		atomic.AddInt64(&r.eventsRejected, 1)
		http.Error(w, "invalid event", http.StatusBadRequest)
		return
	}
	if event.InteractionID == "" || event.State == "" {
		atomic.AddInt64(&r.eventsRejected, 1)
		http.Error(w, "interactionId and state are required", http.StatusBadRequest)
		return
	}

	r.sink.Deliver(types.InteractionStateChange{
		InteractionID: event.InteractionID,
		State:         event.State,
	})

	count := atomic.AddInt64(&r.eventsReceived, 1)
	r.mu.Lock()
	r.lastReceived = time.Now()
	r.mu.Unlock()

	r.logger.Debug().
		Str("interaction_id", string(event.InteractionID)).
		Str("state", string(event.State)).
		Int64("total_received", count).
		Msg("interaction event received")

	w.WriteHeader(http.StatusAccepted)
}

// GetStats returns receiver statistics
// GET /internal/event/stats
func (r *Receiver) GetStats(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	lastReceived := r.lastReceived
	r.mu.RUnlock()

	stats := map[string]interface{}{
		"events_received": atomic.LoadInt64(&r.eventsReceived),
		"events_rejected": atomic.LoadInt64(&r.eventsRejected),
		"last_received":   lastReceived,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
