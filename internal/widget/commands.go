package widget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/dennisdiepolder/monti/wrapupbridge/internal/metrics"
	"github.com/dennisdiepolder/monti/wrapupbridge/internal/types"
)

// Frame command names
const (
	CmdSetAvailable        = "setAvailable"
	CmdSetIdle             = "setIdle"
	CmdEndCall             = "endCall"
	CmdEndTask             = "endTask"
	CmdEndCallAndAvailable = "endCallAndAvailable"
	CmdEndCallAndIdle      = "endCallAndIdle"
)

type command func(ctx context.Context, payload json.RawMessage) types.WrapupOutcome

func (w *Widget) commandTable() map[string]command {
	return map[string]command{
		CmdSetAvailable: func(ctx context.Context, _ json.RawMessage) types.WrapupOutcome {
			return w.setPresence(ctx, types.PresenceAvailable)
		},
		CmdSetIdle: func(ctx context.Context, _ json.RawMessage) types.WrapupOutcome {
			return w.setPresence(ctx, types.PresenceIdle)
		},
		CmdEndCall:             w.endCall,
		CmdEndTask:             w.endCall,
		CmdEndCallAndAvailable: w.endCallThen(types.PresenceAvailable),
		CmdEndCallAndIdle:      w.endCallThen(types.PresenceIdle),
	}
}

// Commands returns the recognized command names
func (w *Widget) Commands() []string {
	return []string{
		CmdSetAvailable,
		CmdSetIdle,
		CmdEndCall,
		CmdEndTask,
		CmdEndCallAndAvailable,
		CmdEndCallAndIdle,
	}
}

// Dispatch runs a frame command. Unknown commands and commands received
// before initialization are rejected without touching the platform.
func (w *Widget) Dispatch(ctx context.Context, msg types.FrameMessage) types.WrapupOutcome {
	logger := w.logger.With().Str("func", msg.Func).Logger()

	cmd, ok := w.commands[msg.Func]
	if !ok {
		logger.Warn().Msg("unknown command rejected")
		metrics.Get().RecordCommand(msg.Func, types.OutcomeRejected)
		return types.OutcomeRejected
	}

	if !w.Initialized() {
		logger.Warn().Msg("command rejected, widget not initialized")
		metrics.Get().RecordCommand(msg.Func, types.OutcomeRejected)
		return types.OutcomeRejected
	}

	outcome := cmd(ctx, msg.Message)
	metrics.Get().RecordCommand(msg.Func, outcome)
	logger.Debug().Str("outcome", string(outcome)).Msg("command handled")
	return outcome
}

func (w *Widget) setPresence(ctx context.Context, presence types.Presence) types.WrapupOutcome {
	var aux types.AuxCode
	if presence == types.PresenceIdle {
		aux = w.DefaultAuxCode()
	}

	if err := w.platform.SetPresence(ctx, presence, aux); err != nil {
		w.logger.Error().Err(err).
			Str("presence", string(presence)).
			Str("aux_code", string(aux)).
			Msg("failed to set presence")
		return types.OutcomeFailed
	}

	w.logger.Info().
		Str("presence", string(presence)).
		Str("aux_code", string(aux)).
		Msg("presence set")
	return types.OutcomeOK
}

func (w *Widget) endCall(ctx context.Context, payload json.RawMessage) types.WrapupOutcome {
	code, err := wrapupCodeFromPayload(payload)
	if err != nil {
		w.logger.Warn().Err(err).Msg("invalid wrap-up code payload")
		return types.OutcomeRejected
	}
	return w.coord.EndCall(ctx, code)
}

// endCallThen ends the call and changes presence whatever the end outcome,
// unless the widget was detached while the end request was in flight
func (w *Widget) endCallThen(presence types.Presence) command {
	return func(ctx context.Context, payload json.RawMessage) types.WrapupOutcome {
		outcome := w.endCall(ctx, payload)
		if outcome == types.OutcomeRejected || outcome == types.OutcomeAbandoned {
			return outcome
		}
		w.setPresence(ctx, presence)
		return outcome
	}
}

// wrapupCodeFromPayload accepts a bare code id (string or number) or an
// object with a wrapupCode field. An empty payload means no code.
func wrapupCodeFromPayload(payload json.RawMessage) (types.WrapupCodeID, error) {
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return "", nil
	}

	if payload[0] == '{' {
		var obj struct {
			WrapupCode types.FlexString `json:"wrapupCode"`
		}
		if err := json.Unmarshal(payload, &obj); err != nil {
			return "", fmt.Errorf("decode wrap-up payload: %w", err)
		}
		return types.WrapupCodeID(obj.WrapupCode), nil
	}

	var code types.FlexString
	if err := json.Unmarshal(payload, &code); err != nil {
		return "", fmt.Errorf("decode wrap-up code: %w", err)
	}
	return types.WrapupCodeID(code), nil
}
