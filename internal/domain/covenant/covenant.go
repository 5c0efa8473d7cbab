// Package covenant defines the versioned decision policy object.
package covenant

import (
	"errors"
	"time"
)

// Covenant is the policy a proposal is decided under: quorum, resonance
// threshold, review band, veto capabilities, and per-evaluation timeout.
// Covenants are immutable; policy changes create a new version and a new ID,
// so historical decisions can always be replayed against the covenant that
// governed them.
type Covenant struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	ResonanceThreshold float64       `json:"resonance_threshold"`
	ReviewMargin       float64       `json:"review_margin"`
	VetoCapabilities   []string      `json:"veto_capabilities"`
	MinQuorum          int           `json:"min_quorum"`
	EvaluationTimeout  time.Duration `json:"evaluation_timeout"`
	Version            int           `json:"version"`
	CreatedAt          time.Time     `json:"created_at"`
}

// IsVetoCapability reports whether the capability carries veto power
// under this covenant.
func (c *Covenant) IsVetoCapability(capability string) bool {
	for _, v := range c.VetoCapabilities {
		if v == capability {
			return true
		}
	}
	return false
}

// HasVetoPower reports whether any of the given capabilities carries veto
// power under this covenant.
func (c *Covenant) HasVetoPower(capabilities []string) bool {
	for _, cap := range capabilities {
		if c.IsVetoCapability(cap) {
			return true
		}
	}
	return false
}

// CreateRequest holds the fields needed to create a new covenant version.
type CreateRequest struct {
	Name               string        `json:"name"`
	ResonanceThreshold float64       `json:"resonance_threshold"`
	ReviewMargin       float64       `json:"review_margin"`
	VetoCapabilities   []string      `json:"veto_capabilities"`
	MinQuorum          int           `json:"min_quorum"`
	EvaluationTimeout  time.Duration `json:"evaluation_timeout"`
}

// Validate checks that a CreateRequest describes a usable policy.
func (r *CreateRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if r.ResonanceThreshold < 0 || r.ResonanceThreshold > 1 {
		return errors.New("resonance_threshold must be in [0, 1]")
	}
	if r.ReviewMargin < 0 || r.ReviewMargin > r.ResonanceThreshold {
		return errors.New("review_margin must be in [0, resonance_threshold]")
	}
	if r.MinQuorum < 1 {
		return errors.New("min_quorum must be at least 1")
	}
	if r.EvaluationTimeout <= 0 {
		return errors.New("evaluation_timeout must be positive")
	}
	for _, v := range r.VetoCapabilities {
		if v == "" {
			return errors.New("veto capability must not be empty")
		}
	}
	return nil
}
