package frame

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dennisdiepolder/monti/wrapupbridge/internal/auth"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/config"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/metrics"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/types"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Client is a middleman between an embedded frame's websocket connection
// and the dispatcher
type Client struct {
	// Unique client ID
	id string

	// The hub this client belongs to
	hub *Hub

	// The websocket connection
	conn *websocket.Conn

	// Buffered channel of outbound messages
	send chan []byte

	// Receives decoded frame commands
	dispatcher Dispatcher

	config *config.Config
	logger zerolog.Logger
	claims *auth.Claims
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, dispatcher Dispatcher, cfg *config.Config, logger zerolog.Logger, claims *auth.Claims) *Client {
	clientID := uuid.New().String()
	l := logger.With().Str("client_id", clientID)
	if claims != nil {
		l = l.Str("user", claims.Email)
	}
	return &Client{
		id:         clientID,
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, 256),
		dispatcher: dispatcher,
		config:     cfg,
		logger:     l.Logger(),
		claims:     claims,
	}
}

// readPump decodes frame commands and hands them to the dispatcher. Commands
// from one frame are handled one at a time, in arrival order.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error().Err(err).Msg("websocket read error")
			}
			break
		}
		c.handleMessage(message)
	}
}

// handleMessage dispatches one frame message and acknowledges it
func (c *Client) handleMessage(message []byte) {
	metrics.Get().RecordFrameMessage()

	var msg types.FrameMessage
	if err := json.Unmarshal(message, &msg); err != nil || msg.Func == "" {
		metrics.Get().RecordFrameError()
		c.logger.Warn().Str("message", string(message)).Msg("ignoring malformed frame message")
		return
	}

	c.logger.Debug().Str("func", msg.Func).Msg("received frame command")

	// Requests are bounded by the desktop client's own timeout and outlive
	// the frame connection.
	outcome := c.dispatcher.Dispatch(context.Background(), msg)

	ack, err := json.Marshal(types.FrameAck{Type: "ack", Func: msg.Func, Outcome: string(outcome)})
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to marshal ack")
		return
	}
	c.reply(ack)
}

// reply queues a message for this frame only
func (c *Client) reply(data []byte) {
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()

	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
		c.logger.Warn().Msg("frame send buffer full, dropping ack")
	}
}

// writePump pumps messages to the websocket connection
//
// A goroutine running writePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start starts the client's read and write pumps
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
