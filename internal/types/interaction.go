package types

import "strings"

// InteractionID identifies a single customer contact tracked by the platform
type InteractionID string

// WrapupCodeID identifies a wrap-up code in the platform's code list
type WrapupCodeID string

// AuxCode identifies an idle ("aux") reason code
type AuxCode string

// NoDefaultAuxCode is used when no idle code is flagged as default
const NoDefaultAuxCode AuxCode = "0"

// LifecycleState is the platform-defined stage of an interaction
type LifecycleState string

const (
	StateActive LifecycleState = "active"
	StateWrapup LifecycleState = "Wrapup"
	StateClosed LifecycleState = "Closed"
	StateEnded  LifecycleState = "Ended"
)

// IsWrapup reports whether the state is the wrap-up stage.
// Platforms are inconsistent about casing ("Wrapup", "wrapUp"), so the
// comparison ignores case.
func (s LifecycleState) IsWrapup() bool {
	return strings.EqualFold(string(s), string(StateWrapup))
}

// IsTerminal reports whether the interaction is finished (Closed or Ended)
func (s LifecycleState) IsTerminal() bool {
	return strings.EqualFold(string(s), string(StateClosed)) ||
		strings.EqualFold(string(s), string(StateEnded))
}

// Presence represents the agent's routing presence on the platform
type Presence string

const (
	PresenceAvailable Presence = "Available"
	PresenceIdle      Presence = "Idle"
)

// InteractionStateChange is a lifecycle transition emitted by the platform
type InteractionStateChange struct {
	InteractionID InteractionID  `json:"interactionId"`
	State         LifecycleState `json:"state"`
}

// EndResult is the platform's immediate response to an end request
type EndResult struct {
	InteractionID InteractionID  `json:"interactionId"`
	State         LifecycleState `json:"state"`
}
