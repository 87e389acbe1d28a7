package desktop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/directory"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/metrics"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/types"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var (
	ErrNotConnected  = errors.New("desktop: not connected")
	ErrClosed        = errors.New("desktop: client closed")
	ErrRequestFailed = errors.New("desktop: request failed")
)

const (
	// Write timeout
	writeTimeout = 10 * time.Second

	// Reconnect backoff
	initialReconnectDelay = 1 * time.Second
	maxReconnectDelay     = 30 * time.Second

	// Lifecycle events buffered between the reader and the listeners
	eventBufferSize = 256
)

// Listener receives interaction lifecycle transitions in the order the
// platform emitted them
type Listener func(ctx context.Context, change types.InteractionStateChange)

// Options configures a Client
type Options struct {
	URL            string
	AgentID        string
	RequestTimeout time.Duration
}

// Client maintains the agent's connection to the desktop platform. It
// implements the interaction directory and the lifecycle bus.
type Client struct {
	url            string
	agentID        string
	requestTimeout time.Duration
	dir            *directory.Cache
	logger         zerolog.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool
	sessionID string

	// sessionReady is closed once the platform bound the agent session
	sessionReady chan struct{}
	sessionOnce  sync.Once

	writeMu sync.Mutex

	inflightMu sync.Mutex
	inflight   map[string]chan types.DesktopResponse // requestID -> response

	listenersMu  sync.RWMutex
	listeners    map[int]Listener
	nextListener int

	events chan types.InteractionStateChange
	done   chan struct{}
}

// NewClient creates a new platform client. Code lists pushed by the platform
// are stored in dir.
func NewClient(opts Options, dir *directory.Cache, logger zerolog.Logger) *Client {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	return &Client{
		url:            opts.URL,
		agentID:        opts.AgentID,
		requestTimeout: opts.RequestTimeout,
		dir:            dir,
		logger:         logger.With().Str("component", "desktop").Str("agent_id", opts.AgentID).Logger(),
		sessionReady:   make(chan struct{}),
		inflight:       make(map[string]chan types.DesktopResponse),
		listeners:      make(map[int]Listener),
		events:         make(chan types.InteractionStateChange, eventBufferSize),
		done:           make(chan struct{}),
	}
}

// Run connects to the platform and keeps the connection alive until ctx is
// done or Close is called
func (c *Client) Run(ctx context.Context) error {
	go c.dispatchEvents(ctx)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialReconnectDelay
	b.MaxInterval = maxReconnectDelay
	b.MaxElapsedTime = 0
	retry := backoff.WithContext(b, ctx)

	for {
		if c.isClosed() {
			return ErrClosed
		}
		if ctx.Err() != nil {
			c.Close()
			return nil
		}

		conn, err := c.connect(ctx)
		if err != nil {
			delay := retry.NextBackOff()
			if delay == backoff.Stop {
				c.Close()
				return nil
			}
			c.logger.Debug().Err(err).Dur("retry_in", delay).Msg("connection failed, retrying")
			metrics.Get().RecordDesktopReconnect()

			select {
			case <-ctx.Done():
				c.Close()
				return nil
			case <-c.done:
				return ErrClosed
			case <-time.After(delay):
			}
			continue
		}

		// Reset backoff on successful connection
		retry.Reset()

		if err := c.sendHello(conn); err != nil {
			c.logger.Warn().Err(err).Msg("failed to send hello")
		}

		c.readLoop(conn)
		c.disconnect(conn)
	}
}

// connect establishes the WebSocket connection
func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	metrics.Get().SetDesktopConnected(true)
	c.logger.Info().Str("url", c.url).Msg("connected to desktop platform")
	return conn, nil
}

// disconnect drops the connection and fails every in-flight request
func (c *Client) disconnect(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
		c.connected = false
	}
	c.mu.Unlock()
	conn.Close()

	c.inflightMu.Lock()
	for id, ch := range c.inflight {
		close(ch)
		delete(c.inflight, id)
	}
	c.inflightMu.Unlock()

	metrics.Get().SetDesktopConnected(false)
	c.logger.Warn().Msg("desktop platform connection lost")
}

// Close permanently closes the client and prevents reconnects
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connected = false
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// IsConnected returns whether the connection is established
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// SessionID returns the session id assigned by the platform
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// WaitSession blocks until the platform has bound the agent session
func (c *Client) WaitSession(ctx context.Context) error {
	select {
	case <-c.sessionReady:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readLoop reads platform messages until the connection fails
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug().Err(err).Msg("desktop read error")
			}
			return
		}
		c.handleIncoming(message)
	}
}

// handleIncoming processes messages from the platform
func (c *Client) handleIncoming(message []byte) {
	var msgType struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(message, &msgType); err != nil {
		c.logger.Debug().Err(err).Msg("failed to parse message type")
		return
	}

	switch msgType.Type {
	case "session":
		var s types.DesktopSession
		if err := json.Unmarshal(message, &s); err != nil {
			c.logger.Debug().Err(err).Msg("failed to parse session message")
			return
		}
		c.mu.Lock()
		c.sessionID = s.SessionID
		c.mu.Unlock()
		c.sessionOnce.Do(func() { close(c.sessionReady) })
		c.logger.Info().Str("session_id", s.SessionID).Msg("desktop session established")

	case "response":
		var resp types.DesktopResponse
		if err := json.Unmarshal(message, &resp); err != nil {
			c.logger.Debug().Err(err).Msg("failed to parse response message")
			return
		}
		c.inflightMu.Lock()
		ch, ok := c.inflight[resp.RequestID]
		if ok {
			delete(c.inflight, resp.RequestID)
		}
		c.inflightMu.Unlock()
		if !ok {
			c.logger.Debug().Str("request_id", resp.RequestID).Msg("response for unknown request")
			return
		}
		ch <- resp

	case "idle_codes":
		var u types.IdleCodesUpdate
		if err := json.Unmarshal(message, &u); err != nil {
			c.logger.Debug().Err(err).Msg("failed to parse idle_codes message")
			return
		}
		c.dir.SetIdleCodes(u.Codes)
		c.logger.Debug().Int("count", len(u.Codes)).Msg("idle codes updated")

	case "wrapup_codes":
		var u types.WrapupCodesUpdate
		if err := json.Unmarshal(message, &u); err != nil {
			c.logger.Debug().Err(err).Msg("failed to parse wrapup_codes message")
			return
		}
		c.dir.SetWrapupCodes(u.Codes)
		c.logger.Debug().Int("count", len(u.Codes)).Msg("wrap-up codes updated")

	case "interaction_state":
		var ev types.InteractionStateEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			c.logger.Debug().Err(err).Msg("failed to parse interaction_state message")
			return
		}
		c.Deliver(types.InteractionStateChange{InteractionID: ev.InteractionID, State: ev.State})

	default:
		c.logger.Debug().Str("type", msgType.Type).Msg("unknown message type")
	}
}

// Deliver queues a lifecycle transition for the listeners. Transitions are
// handed to listeners one at a time, in the order they were delivered.
func (c *Client) Deliver(change types.InteractionStateChange) {
	select {
	case c.events <- change:
		return
	default:
	}

	c.logger.Warn().Str("interaction_id", string(change.InteractionID)).Msg("event buffer full, waiting for listeners")
	select {
	case c.events <- change:
	case <-c.done:
	}
}

// dispatchEvents runs listeners off the read loop so that a listener may
// itself wait for platform responses
func (c *Client) dispatchEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case change := <-c.events:
			metrics.Get().RecordLifecycleEvent()
			for _, l := range c.snapshotListeners() {
				l(ctx, change)
			}
		}
	}
}

// Subscribe registers a lifecycle listener and returns a function that
// removes it
func (c *Client) Subscribe(l Listener) (unsubscribe func()) {
	c.listenersMu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = l
	c.listenersMu.Unlock()

	return func() {
		c.listenersMu.Lock()
		delete(c.listeners, id)
		c.listenersMu.Unlock()
	}
}

func (c *Client) snapshotListeners() []Listener {
	c.listenersMu.RLock()
	defer c.listenersMu.RUnlock()

	ids := make([]int, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	out := make([]Listener, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.listeners[id])
	}
	return out
}

// sendHello binds the connection to the agent
func (c *Client) sendHello(conn *websocket.Conn) error {
	data, err := json.Marshal(types.DesktopHello{Type: "hello", AgentID: c.agentID})
	if err != nil {
		return err
	}
	return c.write(conn, data)
}

// write writes a message to the WebSocket
func (c *Client) write(conn *websocket.Conn, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// request sends req and waits for the correlated response, bounded by the
// request timeout
func (c *Client) request(ctx context.Context, req types.DesktopRequest) (types.DesktopResponse, error) {
	c.mu.Lock()
	conn := c.conn
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return types.DesktopResponse{}, ErrClosed
	}
	if conn == nil {
		metrics.Get().RecordDesktopRequest(req.Op, false)
		return types.DesktopResponse{}, ErrNotConnected
	}

	req.Type = "request"
	req.RequestID = uuid.NewString()
	req.AgentID = c.agentID

	data, err := json.Marshal(req)
	if err != nil {
		return types.DesktopResponse{}, fmt.Errorf("failed to marshal %s request: %w", req.Op, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	ch := make(chan types.DesktopResponse, 1)
	c.inflightMu.Lock()
	c.inflight[req.RequestID] = ch
	c.inflightMu.Unlock()
	defer func() {
		c.inflightMu.Lock()
		delete(c.inflight, req.RequestID)
		c.inflightMu.Unlock()
	}()

	if err := c.write(conn, data); err != nil {
		metrics.Get().RecordDesktopRequest(req.Op, false)
		return types.DesktopResponse{}, fmt.Errorf("failed to send %s request: %w", req.Op, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			metrics.Get().RecordDesktopRequest(req.Op, false)
			return types.DesktopResponse{}, ErrNotConnected
		}
		metrics.Get().RecordDesktopRequest(req.Op, resp.OK)
		if !resp.OK {
			return resp, fmt.Errorf("%w: %s: %s", ErrRequestFailed, req.Op, resp.Error)
		}
		return resp, nil
	case <-ctx.Done():
		metrics.Get().RecordDesktopRequest(req.Op, false)
		return types.DesktopResponse{}, fmt.Errorf("%s request: %w", req.Op, ctx.Err())
	}
}

// ActiveInteractionID returns the agent's current interaction, or an empty
// id when there is none
func (c *Client) ActiveInteractionID(ctx context.Context) (types.InteractionID, error) {
	resp, err := c.request(ctx, types.DesktopRequest{Op: types.OpActiveInteraction})
	if err != nil {
		return "", err
	}
	return resp.InteractionID, nil
}

// EndInteraction asks the platform to end the interaction and returns the
// state the interaction is in afterwards
func (c *Client) EndInteraction(ctx context.Context, id types.InteractionID) (types.EndResult, error) {
	resp, err := c.request(ctx, types.DesktopRequest{Op: types.OpEndInteraction, InteractionID: id})
	if err != nil {
		return types.EndResult{}, err
	}
	return types.EndResult{InteractionID: id, State: resp.State}, nil
}

// ApplyWrapup applies a wrap-up code to the interaction
func (c *Client) ApplyWrapup(ctx context.Context, id types.InteractionID, codeID, reason string) error {
	_, err := c.request(ctx, types.DesktopRequest{
		Op:            types.OpApplyWrapup,
		InteractionID: id,
		CodeID:        codeID,
		Reason:        reason,
	})
	return err
}

// SetPresence changes the agent's presence. auxCode is only sent for Idle.
func (c *Client) SetPresence(ctx context.Context, presence types.Presence, auxCode types.AuxCode) error {
	req := types.DesktopRequest{Op: types.OpSetPresence, Presence: presence}
	if presence == types.PresenceIdle {
		req.AuxCode = auxCode
	}
	_, err := c.request(ctx, req)
	return err
}

// LookupWrapupCode finds a wrap-up code in the list last pushed by the platform
func (c *Client) LookupWrapupCode(id types.WrapupCodeID) (types.WrapupCode, bool) {
	return c.dir.LookupWrapupCode(id)
}

// WaitIdleCodes waits until the platform has pushed a non-empty idle code list
func (c *Client) WaitIdleCodes(ctx context.Context) ([]types.IdleCode, error) {
	return c.dir.WaitIdleCodes(ctx)
}
