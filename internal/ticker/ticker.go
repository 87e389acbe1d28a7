package ticker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dennisdiepolder/monti/wrapupbridge/internal/types"
	"github.com/rs/zerolog"
)

// Broadcaster fans a message out to every connected frame
type Broadcaster interface {
	Broadcast(message []byte)
	ClientCount() int
}

// StatusSource reports the widget status sent to frames
type StatusSource interface {
	Status() types.FrameStatus
}

// Ticker periodically re-sends the widget status so frames that missed a
// transition converge
type Ticker struct {
	hub      Broadcaster
	source   StatusSource
	interval time.Duration
	logger   zerolog.Logger
}

// NewTicker creates a new Ticker
func NewTicker(hub Broadcaster, source StatusSource, interval time.Duration, logger zerolog.Logger) *Ticker {
	return &Ticker{
		hub:      hub,
		source:   source,
		interval: interval,
		logger:   logger.With().Str("component", "status_ticker").Logger(),
	}
}

// Start begins broadcasting status updates
func (t *Ticker) Start(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Info().Dur("interval", t.interval).Msg("ticker started")

	for {
		select {
		case <-ctx.Done():
			t.logger.Info().Msg("ticker stopped")
			return

		case <-ticker.C:
			// nobody to tell
			if t.hub.ClientCount() == 0 {
				continue
			}

			status := t.source.Status()
			data, err := json.Marshal(status)
			if err != nil {
				t.logger.Error().Err(err).Msg("failed to marshal status message")
				continue
			}

			t.hub.Broadcast(data)
			t.logger.Debug().
				Bool("initialized", status.Initialized).
				Int("clients", t.hub.ClientCount()).
				Msg("broadcasted status update")
		}
	}
}
