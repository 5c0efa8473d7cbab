// Package staticeval implements the evaluator port with a fixed verdict.
// It exists for local development and smoke testing: every agent returns
// the configured score at full confidence.
package staticeval

import (
	"context"
	"fmt"
	"strconv"

	"github.com/concordat/concord/internal/port/evaluator"
)

const providerName = "static"

// Provider returns a fixed score for every evaluation request.
type Provider struct {
	score      float64
	confidence float64
}

// New creates a static provider with the given verdict.
func New(score, confidence float64) (*Provider, error) {
	if score < 0 || score > 1 {
		return nil, fmt.Errorf("staticeval: score %.3f out of range", score)
	}
	if confidence < 0 || confidence > 1 {
		return nil, fmt.Errorf("staticeval: confidence %.3f out of range", confidence)
	}
	return &Provider{score: score, confidence: confidence}, nil
}

func (p *Provider) Name() string { return providerName }

func (p *Provider) Evaluate(_ context.Context, req evaluator.Request) (*evaluator.Result, error) {
	return &evaluator.Result{
		Score:      p.score,
		Confidence: p.confidence,
		Evidence:   []string{"static verdict for agent " + req.AgentID},
	}, nil
}

func init() {
	evaluator.Register(providerName, func(config map[string]string) (evaluator.Provider, error) {
		score, confidence := 0.75, 1.0
		if v := config["score"]; v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("staticeval: parse score: %w", err)
			}
			score = f
		}
		if v := config["confidence"]; v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("staticeval: parse confidence: %w", err)
			}
			confidence = f
		}
		return New(score, confidence)
	})
}
