package models

import "time"

type ActionKind = string

const (
	ActionCreatePost     ActionKind = "create_post"
	ActionCreateComment  ActionKind = "create_comment"
	ActionCreateReaction ActionKind = "create_reaction"
	ActionCreateShare    ActionKind = "create_share"
)

type ActionOutcome = string

const (
	OutcomeApplied  ActionOutcome = "applied"
	OutcomeRejected ActionOutcome = "rejected"
	OutcomeFailed   ActionOutcome = "failed"
)

// AgentActionRecord is one line of the append-only audit trail. Records are
// never mutated after write; re-running a cycle with an identical proposal
// in the same timestamp bucket lands on the same record id.
type AgentActionRecord struct {
	ID         string         `json:"id"`
	AgentID    string         `json:"agent_id"`
	CycleID    string         `json:"cycle_id"`
	Kind       ActionKind     `json:"kind"`
	Payload    map[string]any `json:"payload"`
	Outcome    ActionOutcome  `json:"outcome"`
	Reason     string         `json:"reason,omitempty"`
	EntityID   string         `json:"entity_id,omitempty"`
	ProposedAt time.Time      `json:"proposed_at"`
}
