package types

// WrapupOutcome describes how a wrap-up intent was resolved
type WrapupOutcome string

const (
	OutcomeSkipped     WrapupOutcome = "skipped"      // no active interaction
	OutcomeEnded       WrapupOutcome = "ended"        // ended without a wrap-up code
	OutcomePending     WrapupOutcome = "pending"      // waiting for the Wrapup transition
	OutcomeApplied     WrapupOutcome = "applied"      // wrap-up accepted by the platform
	OutcomeApplyFailed WrapupOutcome = "apply_failed" // platform rejected the wrap-up
	OutcomeLookupMiss  WrapupOutcome = "lookup_miss"  // code id not in the wrap-up code list
	OutcomeDiscarded   WrapupOutcome = "discarded"    // interaction closed without Wrapup
	OutcomeEndFailed   WrapupOutcome = "end_failed"   // end request failed
	OutcomeAbandoned   WrapupOutcome = "abandoned"    // widget torn down while the end request was in flight
	OutcomeRejected    WrapupOutcome = "rejected"     // command refused (not initialized, unknown)
	OutcomeOK          WrapupOutcome = "ok"           // presence change accepted
	OutcomeFailed      WrapupOutcome = "failed"       // presence change failed
)

// WrapupRecord is the audit entry persisted for every resolved wrap-up intent
type WrapupRecord struct {
	DateKey       string        `json:"dateKey" dynamodbav:"DateKey"`   // YYYY-MM-DD (partition key)
	RecordID      string        `json:"recordId" dynamodbav:"RecordID"` // sort key
	AgentID       string        `json:"agentId" dynamodbav:"AgentID"`
	InteractionID InteractionID `json:"interactionId" dynamodbav:"InteractionID"`
	WrapupCodeID  WrapupCodeID  `json:"wrapupCodeId" dynamodbav:"WrapupCodeID"`
	Reason        string        `json:"reason,omitempty" dynamodbav:"Reason"`
	Outcome       WrapupOutcome `json:"outcome" dynamodbav:"Outcome"`
	Error         string        `json:"error,omitempty" dynamodbav:"Error"`
	Timestamp     string        `json:"timestamp" dynamodbav:"Timestamp"` // RFC3339
}
