package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventDecisionStatus     = "decision.status"
	EventEvaluationRecorded = "evaluation.recorded"
	EventDecisionFinalized  = "decision.finalized"
)

// DecisionStatusEvent is broadcast when a decision node changes state.
type DecisionStatusEvent struct {
	ProposalID string   `json:"proposal_id"`
	NodeID     string   `json:"node_id"`
	State      string   `json:"state"`
	Resonance  *float64 `json:"resonance,omitempty"`
}

// EvaluationRecordedEvent is broadcast when an agent evaluation lands,
// including skips.
type EvaluationRecordedEvent struct {
	ProposalID string  `json:"proposal_id"`
	AgentID    string  `json:"agent_id"`
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
	Round      int     `json:"round"`
	Skipped    bool    `json:"skipped,omitempty"`
}

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
