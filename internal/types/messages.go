package types

import (
	"encoding/json"
	"time"
)

// FrameMessage is sent by the embedded frame to request a state change
type FrameMessage struct {
	Func    string          `json:"func"`
	Message json.RawMessage `json:"message,omitempty"`
}

// FrameAck is sent back to the frame after a command was handled
type FrameAck struct {
	Type    string `json:"type"` // "ack"
	Func    string `json:"func"`
	Outcome string `json:"outcome"`
}

// FrameStatus tells a frame whether the widget accepts commands
type FrameStatus struct {
	Type        string `json:"type"` // "status"
	AgentID     string `json:"agentId"`
	Initialized bool   `json:"initialized"`
}

// Desktop platform operations carried in a DesktopRequest
const (
	OpActiveInteraction = "active_interaction"
	OpEndInteraction    = "end_interaction"
	OpApplyWrapup       = "apply_wrapup"
	OpSetPresence       = "set_presence"
)

// DesktopHello is sent by the bridge when the platform connection opens
type DesktopHello struct {
	Type    string `json:"type"` // "hello"
	AgentID string `json:"agentId"`
}

// DesktopSession is sent by the platform once the agent session is bound
type DesktopSession struct {
	Type      string `json:"type"` // "session"
	AgentID   string `json:"agentId"`
	SessionID string `json:"sessionId"`
}

// DesktopRequest is a correlated request from the bridge to the platform
type DesktopRequest struct {
	Type          string        `json:"type"` // "request"
	RequestID     string        `json:"requestId"`
	Op            string        `json:"op"`
	AgentID       string        `json:"agentId,omitempty"`
	InteractionID InteractionID `json:"interactionId,omitempty"`
	CodeID        string        `json:"codeId,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Presence      Presence      `json:"presence,omitempty"`
	AuxCode       AuxCode       `json:"auxCode,omitempty"`
}

// DesktopResponse answers a DesktopRequest with the same RequestID
type DesktopResponse struct {
	Type          string         `json:"type"` // "response"
	RequestID     string         `json:"requestId"`
	OK            bool           `json:"ok"`
	Error         string         `json:"error,omitempty"`
	InteractionID InteractionID  `json:"interactionId,omitempty"`
	State         LifecycleState `json:"state,omitempty"`
}

// IdleCodesUpdate is pushed by the platform when the idle code list is known
type IdleCodesUpdate struct {
	Type  string     `json:"type"` // "idle_codes"
	Codes []IdleCode `json:"codes"`
}

// WrapupCodesUpdate is pushed by the platform when the wrap-up code list changes
type WrapupCodesUpdate struct {
	Type  string       `json:"type"` // "wrapup_codes"
	Codes []WrapupCode `json:"codes"`
}

// InteractionStateEvent is pushed by the platform on every lifecycle transition
type InteractionStateEvent struct {
	Type          string         `json:"type"` // "interaction_state"
	InteractionID InteractionID  `json:"interactionId"`
	State         LifecycleState `json:"state"`
	Timestamp     time.Time      `json:"timestamp"`
}
