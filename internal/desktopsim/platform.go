package desktopsim

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dennisdiepolder/monti/wrapupbridge/internal/types"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var (
	errUnknownInteraction = errors.New("unknown interaction")
	errNotActive          = errors.New("interaction is not active")
	errNotInWrapup        = errors.New("interaction is not in wrap-up")
	errUnknownCode        = errors.New("unknown wrap-up code")
)

// Interaction is a simulated customer contact
type Interaction struct {
	ID         types.InteractionID  `json:"id"`
	AgentID    string               `json:"agentId"`
	State      types.LifecycleState `json:"state"`
	WrapupCode string               `json:"wrapupCode,omitempty"`
	Reason     string               `json:"reason,omitempty"`
	CreatedAt  time.Time            `json:"createdAt"`
	UpdatedAt  time.Time            `json:"updatedAt"`
}

// AgentPresence is the last presence an agent set
type AgentPresence struct {
	AgentID   string         `json:"agentId"`
	Presence  types.Presence `json:"presence"`
	AuxCode   types.AuxCode  `json:"auxCode,omitempty"`
	Connected bool           `json:"connected"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Behavior controls how the simulated platform reacts to requests
type Behavior struct {
	// WrapupOnEnd moves an ended interaction straight into Wrapup and reports
	// it in the end response. Otherwise the response reports the interaction
	// as still active and the Wrapup transition follows after WrapupDelay.
	WrapupOnEnd bool `json:"wrapupOnEnd"`
	// EndState, when set, replaces Wrapup as the state the interaction moves
	// to after an end request (e.g. "Ended" for contacts without wrap-up)
	EndState    types.LifecycleState `json:"endState,omitempty"`
	WrapupDelay time.Duration        `json:"wrapupDelay"`
	FailEnd     bool                 `json:"failEnd"`
	FailApply   bool                 `json:"failApply"`
}

// Platform is an in-memory desktop platform serving the agent WebSocket
// protocol
type Platform struct {
	mu           sync.RWMutex
	interactions map[types.InteractionID]*Interaction
	presence     map[string]*AgentPresence
	sessions     map[string]*session // agentID -> session
	idleCodes    []types.IdleCode
	wrapupCodes  []types.WrapupCode
	behavior     Behavior
	upgrader     websocket.Upgrader
	logger       zerolog.Logger
}

type session struct {
	id      string
	agentID string
	conn    *websocket.Conn
	writeMu *sync.Mutex // shared by every session bound on conn
}

func (s *session) send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// NewPlatform creates a simulated platform with the given code lists
func NewPlatform(idleCodes []types.IdleCode, wrapupCodes []types.WrapupCode, logger zerolog.Logger) *Platform {
	return &Platform{
		interactions: make(map[types.InteractionID]*Interaction),
		presence:     make(map[string]*AgentPresence),
		sessions:     make(map[string]*session),
		idleCodes:    idleCodes,
		wrapupCodes:  wrapupCodes,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger.With().Str("component", "desktopsim").Logger(),
	}
}

// DefaultIdleCodes returns a small idle code list with one default entry
func DefaultIdleCodes() []types.IdleCode {
	return []types.IdleCode{
		{ID: "10", Name: "Break"},
		{ID: "20", Name: "Lunch", IsDefault: true},
		{ID: "30", Name: "Training"},
	}
}

// DefaultWrapupCodes returns a small wrap-up code list
func DefaultWrapupCodes() []types.WrapupCode {
	return []types.WrapupCode{
		{ID: "100", Name: "Resolved"},
		{ID: "200", Name: "Escalated"},
		{ID: "300", Name: "Callback requested"},
	}
}

// SetBehavior replaces the platform behavior
func (p *Platform) SetBehavior(b Behavior) {
	p.mu.Lock()
	p.behavior = b
	p.mu.Unlock()
}

// Behavior returns the current platform behavior
func (p *Platform) Behavior() Behavior {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.behavior
}

// ServeHTTP upgrades the request and serves one agent connection
func (p *Platform) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := p.upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to upgrade connection")
		return
	}

	var s *session
	writeMu := &sync.Mutex{}
	defer func() {
		conn.Close()
		if s != nil {
			p.dropSession(s)
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msgType struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &msgType); err != nil {
			p.logger.Debug().Err(err).Msg("failed to parse message type")
			continue
		}

		switch msgType.Type {
		case "hello":
			var hello types.DesktopHello
			if err := json.Unmarshal(message, &hello); err != nil || hello.AgentID == "" {
				p.logger.Debug().Msg("invalid hello")
				continue
			}
			if s != nil {
				// repeated hello on the same connection rebinds it
				p.dropSession(s)
			}
			s = &session{id: uuid.NewString(), agentID: hello.AgentID, conn: conn, writeMu: writeMu}
			p.bindSession(s)

		case "request":
			if s == nil {
				p.logger.Debug().Msg("request before hello")
				continue
			}
			var req types.DesktopRequest
			if err := json.Unmarshal(message, &req); err != nil {
				p.logger.Debug().Err(err).Msg("failed to parse request")
				continue
			}
			p.handleRequest(s, req)

		default:
			p.logger.Debug().Str("type", msgType.Type).Msg("unknown message type")
		}
	}
}

func (p *Platform) bindSession(s *session) {
	p.mu.Lock()
	if old, ok := p.sessions[s.agentID]; ok && old.conn != s.conn {
		old.conn.Close()
	}
	p.sessions[s.agentID] = s
	pres := p.agentPresenceLocked(s.agentID)
	pres.Connected = true
	idle := append([]types.IdleCode(nil), p.idleCodes...)
	wrapup := append([]types.WrapupCode(nil), p.wrapupCodes...)
	p.mu.Unlock()

	p.logger.Info().Str("agent_id", s.agentID).Str("session_id", s.id).Msg("agent session bound")

	s.send(types.DesktopSession{Type: "session", AgentID: s.agentID, SessionID: s.id})
	s.send(types.WrapupCodesUpdate{Type: "wrapup_codes", Codes: wrapup})
	if len(idle) > 0 {
		s.send(types.IdleCodesUpdate{Type: "idle_codes", Codes: idle})
	}
}

func (p *Platform) dropSession(s *session) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cur, ok := p.sessions[s.agentID]; ok && cur == s {
		delete(p.sessions, s.agentID)
		p.agentPresenceLocked(s.agentID).Connected = false
	}
}

func (p *Platform) agentPresenceLocked(agentID string) *AgentPresence {
	pres, ok := p.presence[agentID]
	if !ok {
		pres = &AgentPresence{AgentID: agentID, Presence: types.PresenceAvailable, UpdatedAt: time.Now()}
		p.presence[agentID] = pres
	}
	return pres
}

func (p *Platform) handleRequest(s *session, req types.DesktopRequest) {
	resp := types.DesktopResponse{Type: "response", RequestID: req.RequestID, OK: true}
	var after func()

	switch req.Op {
	case types.OpActiveInteraction:
		resp.InteractionID = p.activeInteraction(s.agentID)

	case types.OpEndInteraction:
		state, next, err := p.endInteraction(req.InteractionID)
		if err != nil {
			resp.OK = false
			resp.Error = err.Error()
			break
		}
		resp.InteractionID = req.InteractionID
		resp.State = state
		after = next

	case types.OpApplyWrapup:
		if err := p.applyWrapup(req.InteractionID, req.CodeID, req.Reason); err != nil {
			resp.OK = false
			resp.Error = err.Error()
			break
		}
		resp.InteractionID = req.InteractionID
		resp.State = types.StateClosed
		after = func() { p.emit(req.InteractionID, types.StateClosed) }

	case types.OpSetPresence:
		p.mu.Lock()
		pres := p.agentPresenceLocked(s.agentID)
		pres.Presence = req.Presence
		pres.AuxCode = req.AuxCode
		pres.UpdatedAt = time.Now()
		p.mu.Unlock()
		p.logger.Info().
			Str("agent_id", s.agentID).
			Str("presence", string(req.Presence)).
			Str("aux_code", string(req.AuxCode)).
			Msg("presence changed")

	default:
		resp.OK = false
		resp.Error = "unknown op: " + req.Op
	}

	if err := s.send(resp); err != nil {
		p.logger.Debug().Err(err).Msg("failed to send response")
		return
	}
	if after != nil {
		after()
	}
}

func (p *Platform) activeInteraction(agentID string) types.InteractionID {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var latest *Interaction
	for _, in := range p.interactions {
		if in.AgentID != agentID || !strings.EqualFold(string(in.State), string(types.StateActive)) {
			continue
		}
		if latest == nil || in.CreatedAt.After(latest.CreatedAt) {
			latest = in
		}
	}
	if latest == nil {
		return ""
	}
	return latest.ID
}

// endInteraction returns the state reported in the end response and the
// transition to emit once the response is on the wire
func (p *Platform) endInteraction(id types.InteractionID) (types.LifecycleState, func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	b := p.behavior
	if b.FailEnd {
		return "", nil, errors.New("end rejected by platform")
	}

	in, ok := p.interactions[id]
	if !ok {
		return "", nil, errUnknownInteraction
	}
	if !strings.EqualFold(string(in.State), string(types.StateActive)) {
		return "", nil, errNotActive
	}

	target := types.StateWrapup
	if b.EndState != "" {
		target = b.EndState
	}

	if b.WrapupOnEnd {
		in.State = target
		in.UpdatedAt = time.Now()
		return target, func() { p.emit(id, target) }, nil
	}

	delay := b.WrapupDelay
	return in.State, func() {
		go func() {
			if delay > 0 {
				time.Sleep(delay)
			}
			if err := p.SetState(id, target); err != nil {
				p.logger.Debug().Err(err).Msg("delayed transition skipped")
			}
		}()
	}, nil
}

func (p *Platform) applyWrapup(id types.InteractionID, codeID, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.behavior.FailApply {
		return errors.New("wrap-up rejected by platform")
	}

	in, ok := p.interactions[id]
	if !ok {
		return errUnknownInteraction
	}
	if !in.State.IsWrapup() {
		return errNotInWrapup
	}

	known := false
	for _, code := range p.wrapupCodes {
		if code.ID.String() == codeID {
			known = true
			break
		}
	}
	if !known {
		return errUnknownCode
	}

	in.WrapupCode = codeID
	in.Reason = reason
	in.State = types.StateClosed
	in.UpdatedAt = time.Now()
	return nil
}

// emit pushes a lifecycle event to the interaction's agent
func (p *Platform) emit(id types.InteractionID, state types.LifecycleState) {
	p.mu.RLock()
	in, ok := p.interactions[id]
	var s *session
	if ok {
		s = p.sessions[in.AgentID]
	}
	p.mu.RUnlock()

	if s == nil {
		return
	}
	ev := types.InteractionStateEvent{
		Type:          "interaction_state",
		InteractionID: id,
		State:         state,
		Timestamp:     time.Now().UTC(),
	}
	if err := s.send(ev); err != nil {
		p.logger.Debug().Err(err).Msg("failed to send interaction event")
	}
}

// CreateInteraction starts an active interaction for the agent. An empty id
// gets a generated one.
func (p *Platform) CreateInteraction(agentID string, id types.InteractionID) *Interaction {
	if id == "" {
		id = types.InteractionID(uuid.NewString())
	}
	now := time.Now()
	in := &Interaction{
		ID:        id,
		AgentID:   agentID,
		State:     types.StateActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	p.mu.Lock()
	p.interactions[id] = in
	p.mu.Unlock()

	p.emit(id, types.StateActive)
	cp := *in
	return &cp
}

// SetState forces an interaction into state and emits the transition
func (p *Platform) SetState(id types.InteractionID, state types.LifecycleState) error {
	p.mu.Lock()
	in, ok := p.interactions[id]
	if !ok {
		p.mu.Unlock()
		return errUnknownInteraction
	}
	in.State = state
	in.UpdatedAt = time.Now()
	p.mu.Unlock()

	p.emit(id, state)
	return nil
}

// Interaction returns a copy of the interaction
func (p *Platform) Interaction(id types.InteractionID) (Interaction, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	in, ok := p.interactions[id]
	if !ok {
		return Interaction{}, false
	}
	return *in, true
}

// Interactions returns every interaction, oldest first
func (p *Platform) Interactions() []Interaction {
	p.mu.RLock()
	out := make([]Interaction, 0, len(p.interactions))
	for _, in := range p.interactions {
		out = append(out, *in)
	}
	p.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Presence returns the agent's last presence
func (p *Platform) Presence(agentID string) (AgentPresence, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	pres, ok := p.presence[agentID]
	if !ok {
		return AgentPresence{}, false
	}
	return *pres, true
}

// Agents returns the presence of every agent seen so far
func (p *Platform) Agents() []AgentPresence {
	p.mu.RLock()
	out := make([]AgentPresence, 0, len(p.presence))
	for _, pres := range p.presence {
		out = append(out, *pres)
	}
	p.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].AgentID < out[j].AgentID })
	return out
}

// SetCodes replaces the code lists and pushes them to connected agents.
// A nil list is left unchanged.
func (p *Platform) SetCodes(idle []types.IdleCode, wrapup []types.WrapupCode) {
	p.mu.Lock()
	if idle != nil {
		p.idleCodes = idle
	}
	if wrapup != nil {
		p.wrapupCodes = wrapup
	}
	sessions := make([]*session, 0, len(p.sessions))
	for _, s := range p.sessions {
		sessions = append(sessions, s)
	}
	p.mu.Unlock()

	for _, s := range sessions {
		if idle != nil {
			s.send(types.IdleCodesUpdate{Type: "idle_codes", Codes: idle})
		}
		if wrapup != nil {
			s.send(types.WrapupCodesUpdate{Type: "wrapup_codes", Codes: wrapup})
		}
	}
}

// Codes returns the current code lists
func (p *Platform) Codes() ([]types.IdleCode, []types.WrapupCode) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]types.IdleCode(nil), p.idleCodes...), append([]types.WrapupCode(nil), p.wrapupCodes...)
}
