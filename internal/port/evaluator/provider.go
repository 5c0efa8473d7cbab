// Package evaluator defines the evaluation-provider port: the opaque,
// potentially slow, potentially failing black box that produces an agent's
// scored evaluation of a proposal.
package evaluator

import (
	"context"
	"time"

	"github.com/concordat/concord/internal/domain/proposal"
)

// Request carries everything a provider may use to evaluate a proposal on
// behalf of one agent. PartialResonance and PriorEvidence are populated by
// the sequential, handoff, and group-session patterns; a provider is free to
// ignore them.
type Request struct {
	Proposal         proposal.Proposal `json:"proposal"`
	AgentID          string            `json:"agent_id"`
	Capabilities     []string          `json:"capabilities,omitempty"`
	Round            int               `json:"round"`
	PartialResonance float64           `json:"partial_resonance"`
	PriorEvidence    []string          `json:"prior_evidence,omitempty"`
	Deadline         time.Time         `json:"deadline"`
}

// Result is a provider's verdict. Evidence is an ordered list of citation
// strings backing the score.
type Result struct {
	Score      float64  `json:"score"`
	Confidence float64  `json:"confidence"`
	Evidence   []string `json:"evidence,omitempty"`
}

// Provider is the port interface for requesting evaluations. The engine
// treats any error as equivalent to a timeout for quorum purposes.
type Provider interface {
	// Name returns the unique identifier for this provider (e.g. "remote").
	Name() string

	// Evaluate produces one agent's evaluation of a proposal before the
	// request deadline.
	Evaluate(ctx context.Context, req Request) (*Result, error)
}
