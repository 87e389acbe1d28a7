package widget

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/wrapupbridge/internal/desktop"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/directory"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/metrics"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/types"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/wrapup"
	"github.com/rs/zerolog"
)

var ErrDetached = errors.New("widget: detached")

// Platform is everything the widget needs from the desktop platform
type Platform interface {
	wrapup.Directory
	wrapup.Bus
	SetPresence(ctx context.Context, presence types.Presence, auxCode types.AuxCode) error
	WaitSession(ctx context.Context) error
	WaitIdleCodes(ctx context.Context) ([]types.IdleCode, error)
	Subscribe(l desktop.Listener) (unsubscribe func())
	IsConnected() bool
}

// Options configures a Widget
type Options struct {
	AgentID          string
	IdleCodesTimeout time.Duration
}

// Status is a point-in-time view of the widget
type Status struct {
	AgentID        string                                     `json:"agentId"`
	Initialized    bool                                       `json:"initialized"`
	Detached       bool                                       `json:"detached"`
	Connected      bool                                       `json:"connected"`
	DefaultAuxCode types.AuxCode                              `json:"defaultAuxCode"`
	Pending        map[types.InteractionID]types.WrapupCodeID `json:"pending"`
}

// Widget is the headless agent-desktop widget. It gates frame commands on
// initialization and forwards lifecycle events to the wrap-up coordinator.
type Widget struct {
	platform         Platform
	coord            *wrapup.Coordinator
	agentID          string
	idleCodesTimeout time.Duration
	commands         map[string]command
	logger           zerolog.Logger

	mu             sync.RWMutex
	initialized    bool
	detached       bool
	defaultAuxCode types.AuxCode
	unsubscribe    func()
	detachHooks    []func()
}

// New creates a widget for one agent
func New(platform Platform, opts Options, logger zerolog.Logger) *Widget {
	if opts.IdleCodesTimeout <= 0 {
		opts.IdleCodesTimeout = 60 * time.Second
	}
	w := &Widget{
		platform:         platform,
		coord:            wrapup.NewCoordinator(platform, platform, opts.AgentID, logger),
		agentID:          opts.AgentID,
		idleCodesTimeout: opts.IdleCodesTimeout,
		defaultAuxCode:   types.NoDefaultAuxCode,
		logger:           logger.With().Str("component", "widget").Str("agent_id", opts.AgentID).Logger(),
	}
	w.commands = w.commandTable()
	return w
}

// SetStore sets the persistence store for wrap-up outcomes
func (w *Widget) SetStore(store wrapup.RecordStore) {
	w.coord.SetStore(store)
}

// OnDetach registers a function run by Detach
func (w *Widget) OnDetach(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.detachHooks = append(w.detachHooks, fn)
}

// Initialize waits for the platform session, registers the lifecycle
// listener and waits for the idle code list. Commands are accepted only
// after it returns nil. Failures are logged and leave the widget
// uninitialized; there is no retry.
func (w *Widget) Initialize(ctx context.Context) error {
	if err := w.initialize(ctx); err != nil {
		w.logger.Error().Err(err).Msg("widget initialization failed")
		return err
	}
	return nil
}

func (w *Widget) initialize(ctx context.Context) error {
	w.mu.RLock()
	detached := w.detached
	w.mu.RUnlock()
	if detached {
		return ErrDetached
	}

	ctx, cancel := context.WithTimeout(ctx, w.idleCodesTimeout)
	defer cancel()

	if err := w.platform.WaitSession(ctx); err != nil {
		return fmt.Errorf("session bootstrap: %w", err)
	}

	w.mu.Lock()
	if w.unsubscribe == nil {
		w.unsubscribe = w.platform.Subscribe(w.HandleStateChange)
	}
	w.mu.Unlock()

	codes, err := w.platform.WaitIdleCodes(ctx)
	if err != nil {
		return fmt.Errorf("waiting for idle codes: %w", err)
	}

	aux := directory.DefaultAuxCode(codes)

	w.mu.Lock()
	if w.detached {
		w.mu.Unlock()
		return ErrDetached
	}
	w.defaultAuxCode = aux
	w.initialized = true
	w.mu.Unlock()

	metrics.Get().SetInitialized(true)
	w.logger.Info().
		Int("idle_codes", len(codes)).
		Str("default_aux_code", string(aux)).
		Msg("widget initialized")
	return nil
}

// Initialized reports whether commands are accepted
func (w *Widget) Initialized() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.initialized
}

// DefaultAuxCode returns the idle code used by setIdle
func (w *Widget) DefaultAuxCode() types.AuxCode {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.defaultAuxCode
}

// HandleStateChange forwards a lifecycle transition to the coordinator
func (w *Widget) HandleStateChange(ctx context.Context, change types.InteractionStateChange) {
	w.mu.RLock()
	detached := w.detached
	w.mu.RUnlock()
	if detached {
		return
	}
	w.coord.HandleStateChange(ctx, change)
}

// Detach unregisters the lifecycle listener, clears pending wrap-ups and
// runs the detach hooks. Requests already in flight are not cancelled.
func (w *Widget) Detach() {
	w.mu.Lock()
	if w.detached {
		w.mu.Unlock()
		return
	}
	w.detached = true
	w.initialized = false
	unsubscribe := w.unsubscribe
	w.unsubscribe = nil
	hooks := w.detachHooks
	w.detachHooks = nil
	w.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	w.coord.Reset()
	for _, fn := range hooks {
		fn()
	}

	metrics.Get().SetInitialized(false)
	w.logger.Info().Msg("widget detached")
}

// Status returns the current widget status
func (w *Widget) Status() Status {
	w.mu.RLock()
	s := Status{
		AgentID:        w.agentID,
		Initialized:    w.initialized,
		Detached:       w.detached,
		DefaultAuxCode: w.defaultAuxCode,
	}
	w.mu.RUnlock()

	s.Connected = w.platform.IsConnected()
	s.Pending = w.coord.Pending()
	return s
}
