package domain

import "time"

// Event types emitted by the gate and enrollment flows.
const (
	TypeGateDecision     = "gate_decision"
	TypeChallengePassed  = "challenge_passed"
	TypeChallengeFailed  = "challenge_failed"
	TypeEnrollConfirmed  = "enroll_confirmed"
	TypeEnrollReset      = "enroll_reset"
	TypeApprovalResolved = "approval_resolved"
)

// AccessEvent is one access-control event. JSON tags fix the wire shape used
// on the Kafka topic; the worker parses the same shape when pushing to Loki.
type AccessEvent struct {
	UserID    string    `json:"userId,omitempty"`
	SessionID string    `json:"sessionId,omitempty"`
	IP        string    `json:"ip,omitempty"`
	EventType string    `json:"eventType"`
	Source    string    `json:"source,omitempty"`
	Metadata  []byte    `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
