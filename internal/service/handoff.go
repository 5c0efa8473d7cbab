package service

import (
	"context"
	"math"

	"github.com/concordat/concord/internal/domain/agent"
	"github.com/concordat/concord/internal/domain/consensus"
	"github.com/concordat/concord/internal/domain/evaluation"
)

// handoffStrategy chains evaluations agent to agent. After each hop a routing
// function picks the next agent: the one whose capability set adds the most
// coverage the chain has not seen yet, ties broken by ascending ID. Every hop
// receives the full evidence trail and the running partial resonance.
//
// The chain ends when quorum is met and the resonance has stabilized (or no
// remaining agent adds capability coverage), when agents run out, or at
// maxHops.
type handoffStrategy struct {
	c       *Coordinator
	maxHops int
	epsilon float64
}

func (s *handoffStrategy) Name() string { return "handoff" }

func (s *handoffStrategy) Run(ctx context.Context, rc *runContext) error {
	remaining := append([]agent.Agent(nil), rc.agents...)
	covered := make(map[string]bool)

	var recorded []evaluation.Evaluation
	var evidence []string
	var usable int
	partial := 0.0

	for hop := 0; len(remaining) > 0 && (s.maxHops <= 0 || hop < s.maxHops); hop++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		next, gain := pickNext(remaining, covered)
		if usable >= rc.covenant.MinQuorum && gain == 0 {
			return nil
		}

		ev, err := s.c.evaluateAgent(ctx, rc, remaining[next], 1, partial, evidence)
		if err != nil {
			return err
		}
		for _, capability := range remaining[next].Capabilities {
			covered[capability] = true
		}
		remaining = append(remaining[:next], remaining[next+1:]...)

		recorded = append(recorded, ev)
		if !ev.Skipped {
			usable++
			evidence = append(evidence, ev.Evidence...)
		}

		prev := partial
		partial = consensus.PartialResonance(recorded)
		if usable >= rc.covenant.MinQuorum && math.Abs(partial-prev) < s.epsilon {
			return nil
		}
	}
	return nil
}

// pickNext returns the index of the agent adding the most uncovered
// capabilities, ties broken by ascending ID, plus how many it adds.
func pickNext(candidates []agent.Agent, covered map[string]bool) (idx, gain int) {
	idx, gain = 0, -1
	for i := range candidates {
		g := 0
		for _, capability := range candidates[i].Capabilities {
			if !covered[capability] {
				g++
			}
		}
		if g > gain || (g == gain && candidates[i].ID < candidates[idx].ID) {
			idx, gain = i, g
		}
	}
	return idx, gain
}
