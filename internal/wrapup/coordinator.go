package wrapup

import (
	"context"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/wrapupbridge/internal/metrics"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/types"
	"github.com/rs/zerolog"
)

// Directory resolves the agent's current interaction and the wrap-up codes
// configured on the platform
type Directory interface {
	ActiveInteractionID(ctx context.Context) (types.InteractionID, error)
	LookupWrapupCode(id types.WrapupCodeID) (types.WrapupCode, bool)
}

// Bus accepts call-control commands for interactions
type Bus interface {
	EndInteraction(ctx context.Context, id types.InteractionID) (types.EndResult, error)
	ApplyWrapup(ctx context.Context, id types.InteractionID, codeID, reason string) error
}

// RecordStore is the subset of storage.Store needed by Coordinator
type RecordStore interface {
	SaveWrapupRecord(record types.WrapupRecord) error
}

// Coordinator ends interactions and applies wrap-up codes once the platform
// moves the interaction into Wrapup
type Coordinator struct {
	dir     Directory
	bus     Bus
	pending *PendingTable
	store   RecordStore
	agentID string
	logger  zerolog.Logger
	now     func() time.Time

	// generation is bumped by Reset; an end request that returns into a newer
	// generation is ignored
	mu         sync.Mutex
	generation uint64
}

// NewCoordinator creates a new Coordinator for a single agent
func NewCoordinator(dir Directory, bus Bus, agentID string, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		dir:     dir,
		bus:     bus,
		pending: NewPendingTable(),
		agentID: agentID,
		logger:  logger.With().Str("component", "wrapup").Logger(),
		now:     time.Now,
	}
}

// SetStore sets the persistence store for wrap-up records
func (c *Coordinator) SetStore(store RecordStore) {
	c.store = store
}

// EndCall ends the agent's active interaction. When code is non-empty the
// wrap-up is applied right away if the platform already reports Wrapup, and
// queued until the Wrapup transition otherwise.
func (c *Coordinator) EndCall(ctx context.Context, code types.WrapupCodeID) types.WrapupOutcome {
	id, err := c.dir.ActiveInteractionID(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to resolve active interaction")
		return types.OutcomeSkipped
	}
	if id == "" {
		c.logger.Warn().Str("wrapup_code", string(code)).Msg("no active interaction to end")
		return types.OutcomeSkipped
	}

	logger := c.logger.With().Str("interaction_id", string(id)).Logger()
	gen := c.currentGeneration()

	result, err := c.bus.EndInteraction(ctx, id)

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		logger.Warn().Str("wrapup_code", string(code)).Msg("end request returned after reset, ignoring result")
		return types.OutcomeAbandoned
	}

	if err != nil {
		prev, ok := c.pending.Take(id)
		c.mu.Unlock()
		if ok {
			logger.Debug().Str("wrapup_code", string(prev)).Msg("dropped pending wrap-up after failed end request")
		}
		logger.Error().Err(err).Str("wrapup_code", string(code)).Msg("failed to end interaction")
		c.finish(id, code, "", types.OutcomeEndFailed, err)
		return types.OutcomeEndFailed
	}

	if code == "" {
		c.mu.Unlock()
		logger.Info().Str("state", string(result.State)).Msg("interaction ended without wrap-up code")
		return types.OutcomeEnded
	}

	// The Wrapup transition already happened, its event may have been
	// delivered before this response.
	if result.State.IsWrapup() {
		c.pending.Take(id)
		c.mu.Unlock()
		metrics.Get().SetPendingWrapups(c.pending.Len())
		return c.apply(ctx, logger, id, code)
	}

	prev, replaced := c.pending.Put(id, code)
	c.mu.Unlock()
	if replaced {
		logger.Debug().
			Str("previous_code", string(prev)).
			Str("wrapup_code", string(code)).
			Msg("replaced pending wrap-up")
	}
	metrics.Get().SetPendingWrapups(c.pending.Len())

	logger.Info().
		Str("wrapup_code", string(code)).
		Str("state", string(result.State)).
		Msg("wrap-up queued until interaction reaches Wrapup")
	return types.OutcomePending
}

// HandleStateChange resolves or discards the pending wrap-up for the
// interaction. Events for one interaction must be delivered in order.
func (c *Coordinator) HandleStateChange(ctx context.Context, change types.InteractionStateChange) types.WrapupOutcome {
	logger := c.logger.With().
		Str("interaction_id", string(change.InteractionID)).
		Str("state", string(change.State)).
		Logger()

	switch {
	case change.State.IsWrapup():
		code, ok := c.pending.Take(change.InteractionID)
		if !ok {
			logger.Debug().Msg("no pending wrap-up for interaction")
			return ""
		}
		metrics.Get().SetPendingWrapups(c.pending.Len())
		return c.apply(ctx, logger, change.InteractionID, code)

	case change.State.IsTerminal():
		code, ok := c.pending.Take(change.InteractionID)
		if !ok {
			return ""
		}
		metrics.Get().SetPendingWrapups(c.pending.Len())
		logger.Warn().
			Str("wrapup_code", string(code)).
			Msg("interaction finished without reaching Wrapup, discarding pending wrap-up")
		c.finish(change.InteractionID, code, "", types.OutcomeDiscarded, nil)
		return types.OutcomeDiscarded
	}

	return ""
}

// apply looks up the code details and sends the wrap-up to the platform.
// The caller has already removed any pending entry; there is no retry.
func (c *Coordinator) apply(ctx context.Context, logger zerolog.Logger, id types.InteractionID, code types.WrapupCodeID) types.WrapupOutcome {
	details, ok := c.dir.LookupWrapupCode(code)
	if !ok {
		logger.Error().Str("wrapup_code", string(code)).Msg("wrap-up code not found")
		c.finish(id, code, "", types.OutcomeLookupMiss, nil)
		return types.OutcomeLookupMiss
	}

	codeID := details.ID.String()
	reason := details.Name

	if err := c.bus.ApplyWrapup(ctx, id, codeID, reason); err != nil {
		logger.Error().Err(err).
			Str("wrapup_code", codeID).
			Str("reason", reason).
			Msg("failed to apply wrap-up")
		c.finish(id, code, reason, types.OutcomeApplyFailed, err)
		return types.OutcomeApplyFailed
	}

	logger.Info().
		Str("wrapup_code", codeID).
		Str("reason", reason).
		Msg("wrap-up applied")
	c.finish(id, code, reason, types.OutcomeApplied, nil)
	return types.OutcomeApplied
}

// finish records metrics and persists the outcome asynchronously
func (c *Coordinator) finish(id types.InteractionID, code types.WrapupCodeID, reason string, outcome types.WrapupOutcome, cause error) {
	metrics.Get().RecordWrapupOutcome(outcome)

	if c.store == nil {
		return
	}

	now := c.now().UTC()
	record := types.WrapupRecord{
		DateKey:       now.Format("2006-01-02"),
		RecordID:      now.Format(time.RFC3339Nano) + "#" + string(id),
		AgentID:       c.agentID,
		InteractionID: id,
		WrapupCodeID:  code,
		Reason:        reason,
		Outcome:       outcome,
		Timestamp:     now.Format(time.RFC3339),
	}
	if cause != nil {
		record.Error = cause.Error()
	}

	go func() {
		if err := c.store.SaveWrapupRecord(record); err != nil {
			c.logger.Error().Err(err).Str("interaction_id", string(id)).Msg("failed to save wrap-up record")
		}
	}()
}

func (c *Coordinator) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Pending returns a copy of the pending wrap-up table
func (c *Coordinator) Pending() map[types.InteractionID]types.WrapupCodeID {
	return c.pending.Snapshot()
}

// PendingFor returns the pending code for an interaction
func (c *Coordinator) PendingFor(id types.InteractionID) (types.WrapupCodeID, bool) {
	return c.pending.Get(id)
}

// Reset abandons every pending wrap-up. In-flight requests are not cancelled;
// their results are ignored when they return.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.generation++
	n := c.pending.Clear()
	c.mu.Unlock()

	metrics.Get().SetPendingWrapups(0)
	if n > 0 {
		c.logger.Info().Int("abandoned", n).Msg("pending wrap-ups cleared")
	}
}
