package service

import (
	"context"
	"log/slog"
	"sort"

	"github.com/concordat/concord/internal/domain/agent"
	"github.com/concordat/concord/internal/domain/proposal"
)

// dynamicStrategy picks a dispatch pattern from the proposal's declared
// complexity and urgency:
//
//	urgency high                -> concurrent (fastest wall clock)
//	complexity high             -> group_session (deliberation pays off)
//	complexity low, urgency low -> sequential over the top-weight subset
//	otherwise                   -> handoff
type dynamicStrategy struct {
	c      *Coordinator
	subset int
}

func (s *dynamicStrategy) Name() string { return "dynamic" }

func (s *dynamicStrategy) Run(ctx context.Context, rc *runContext) error {
	chosen := s.choose(rc)
	slog.Info("dynamic pattern selected",
		"proposal_id", rc.proposal.ID,
		"pattern", chosen.Name(),
		"complexity", rc.proposal.Complexity,
		"urgency", rc.proposal.Urgency)
	return chosen.Run(ctx, rc)
}

func (s *dynamicStrategy) choose(rc *runContext) Strategy {
	switch {
	case rc.proposal.Urgency == proposal.LevelHigh:
		return s.c.strategies["concurrent"]
	case rc.proposal.Complexity == proposal.LevelHigh:
		return s.c.strategies["group_session"]
	case rc.proposal.Complexity == proposal.LevelLow && rc.proposal.Urgency == proposal.LevelLow:
		rc.agents = topByWeight(rc.agents, s.subset)
		return s.c.strategies["sequential"]
	default:
		return s.c.strategies["handoff"]
	}
}

// topByWeight keeps the n heaviest agents, ties broken by ascending ID, and
// returns them in ascending ID order for deterministic dispatch.
func topByWeight(agents []agent.Agent, n int) []agent.Agent {
	if n <= 0 || n >= len(agents) {
		return agents
	}
	sorted := append([]agent.Agent(nil), agents...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Weight != sorted[j].Weight {
			return sorted[i].Weight > sorted[j].Weight
		}
		return sorted[i].ID < sorted[j].ID
	})
	sorted = sorted[:n]
	agent.SortByID(sorted)
	return sorted
}
