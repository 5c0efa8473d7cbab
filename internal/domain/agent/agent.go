// Package agent defines the evaluator Agent domain entity.
package agent

import (
	"errors"
	"sort"
	"time"
)

// Status represents the current availability of an agent.
type Status string

const (
	StatusAvailable   Status = "available"
	StatusBusy        Status = "busy"
	StatusUnavailable Status = "unavailable"
)

// ValidStatus reports whether s is a known agent status.
func ValidStatus(s string) bool {
	switch Status(s) {
	case StatusAvailable, StatusBusy, StatusUnavailable:
		return true
	}
	return false
}

// Agent represents a registered domain-expert evaluator. Weight and
// capabilities describe how much its evaluations count and which veto
// rules apply to it. Historical evaluations freeze the weight in effect
// at evaluation time, so weight updates never rewrite history.
type Agent struct {
	ID           string    `json:"id"`
	DisplayName  string    `json:"display_name"`
	Weight       float64   `json:"weight"`
	Capabilities []string  `json:"capabilities"`
	Status       Status    `json:"status"`
	Version      int       `json:"version"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HasCapability reports whether the agent advertises the given capability.
func (a *Agent) HasCapability(capability string) bool {
	for _, c := range a.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// HasAnyCapability reports whether the agent advertises any of the given capabilities.
func (a *Agent) HasAnyCapability(capabilities []string) bool {
	for _, c := range capabilities {
		if a.HasCapability(c) {
			return true
		}
	}
	return false
}

// RegisterRequest holds the fields needed to register a new agent.
type RegisterRequest struct {
	DisplayName  string   `json:"display_name"`
	Weight       float64  `json:"weight"`
	Capabilities []string `json:"capabilities"`
}

// Validate checks that a RegisterRequest is well-formed.
func (r *RegisterRequest) Validate() error {
	if r.DisplayName == "" {
		return errors.New("display_name is required")
	}
	if r.Weight <= 0 {
		return errors.New("weight must be positive")
	}
	seen := make(map[string]bool, len(r.Capabilities))
	for _, c := range r.Capabilities {
		if c == "" {
			return errors.New("capability must not be empty")
		}
		if seen[c] {
			return errors.New("duplicate capability: " + c)
		}
		seen[c] = true
	}
	return nil
}

// SortByID orders agents ascending by ID. Evaluation dispatch and score
// summation both rely on this order for reproducibility.
func SortByID(agents []Agent) {
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
}

// Eligible filters agents down to those that are available and, when
// capability is non-empty, advertise it. The result is sorted ascending
// by ID for deterministic dispatch order.
func Eligible(agents []Agent, capability string) []Agent {
	var out []Agent
	for i := range agents {
		if agents[i].Status != StatusAvailable {
			continue
		}
		if capability != "" && !agents[i].HasCapability(capability) {
			continue
		}
		out = append(out, agents[i])
	}
	SortByID(out)
	return out
}
