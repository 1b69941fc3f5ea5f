package models

import "time"

// AuditKind classifies audit records.
type AuditKind string

const (
	AuditDecision     AuditKind = "sizing_decision"
	AuditGate         AuditKind = "gate_evaluation"
	AuditScalp        AuditKind = "scalp_event"
	AuditPolicyUpdate AuditKind = "policy_update"
	AuditSnapshot     AuditKind = "snapshot"
	AuditRollback     AuditKind = "rollback"
	AuditFreeze       AuditKind = "freeze"
)

// AuditRecord is a timestamped record destined for the persistence store.
type AuditRecord struct {
	ID        string                 `json:"id"`
	Kind      AuditKind              `json:"kind"`
	Symbol    string                 `json:"symbol,omitempty"`
	Regime    string                 `json:"regime,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
}
