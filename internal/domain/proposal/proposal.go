// Package proposal defines the Proposal domain entity.
package proposal

import (
	"encoding/json"
	"errors"
	"time"
)

// Complexity and urgency levels a submitter may declare. The dynamic
// orchestration pattern uses them to pick a dispatch strategy.
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"
)

// ValidLevel reports whether s is an accepted complexity/urgency level.
// Empty is accepted and treated as medium.
func ValidLevel(s string) bool {
	switch s {
	case "", LevelLow, LevelMedium, LevelHigh:
		return true
	}
	return false
}

// Proposal is an immutable submission to be decided under a covenant.
// Superseding changes never mutate a proposal; they create a new one
// referencing the prior via PriorProposalID.
type Proposal struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Context         json.RawMessage `json:"context,omitempty"`
	Complexity      string          `json:"complexity,omitempty"`
	Urgency         string          `json:"urgency,omitempty"`
	CovenantID      string          `json:"covenant_id"`
	PriorProposalID string          `json:"prior_proposal_id,omitempty"`
	LiveNodeID      string          `json:"live_node_id,omitempty"`
	Pattern         string          `json:"pattern,omitempty"`
	SubmittedAt     time.Time       `json:"submitted_at"`
}

// SubmitRequest holds the fields needed to submit a proposal.
type SubmitRequest struct {
	Title      string          `json:"title"`
	Context    json.RawMessage `json:"context,omitempty"`
	CovenantID string          `json:"covenant_id"`
	Complexity string          `json:"complexity,omitempty"`
	Urgency    string          `json:"urgency,omitempty"`
	Pattern    string          `json:"pattern,omitempty"` // orchestration pattern; empty = configured default
}

// Validate checks that a SubmitRequest is well-formed.
func (r *SubmitRequest) Validate() error {
	if r.Title == "" {
		return errors.New("title is required")
	}
	if r.CovenantID == "" {
		return errors.New("covenant_id is required")
	}
	if !ValidLevel(r.Complexity) {
		return errors.New("complexity must be one of: low, medium, high")
	}
	if !ValidLevel(r.Urgency) {
		return errors.New("urgency must be one of: low, medium, high")
	}
	return nil
}
