package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/concordat/concord/internal/adapter/otel"
	"github.com/concordat/concord/internal/adapter/ws"
	"github.com/concordat/concord/internal/config"
	"github.com/concordat/concord/internal/domain/agent"
	"github.com/concordat/concord/internal/domain/covenant"
	"github.com/concordat/concord/internal/domain/evaluation"
	dledger "github.com/concordat/concord/internal/domain/ledger"
	"github.com/concordat/concord/internal/domain/proposal"
	"github.com/concordat/concord/internal/port/broadcast"
	"github.com/concordat/concord/internal/port/database"
	"github.com/concordat/concord/internal/port/evaluator"
	"github.com/concordat/concord/internal/port/messagequeue"
	"github.com/concordat/concord/internal/resilience"
)

// runContext carries one dispatch run's inputs to a strategy.
type runContext struct {
	proposal proposal.Proposal
	covenant covenant.Covenant
	agents   []agent.Agent // eligible, ascending by ID
}

// Strategy is one orchestration pattern: it decides which agents evaluate,
// in what order, and with what shared context. Strategies record evaluations
// through the coordinator and never touch decision state; the coordinator
// scores once the strategy returns.
type Strategy interface {
	Name() string
	Run(ctx context.Context, rc *runContext) error
}

// Coordinator dispatches evaluations for submitted proposals. One dispatch
// run is active per proposal; superseding a proposal cancels its run.
type Coordinator struct {
	store     database.Store
	ledger    *LedgerService
	decisions *DecisionService
	provider  evaluator.Provider
	breaker   *resilience.Breaker
	hub       broadcast.Broadcaster
	queue     messagequeue.Queue
	metrics   *otel.Metrics
	cfg       config.Orchestrator

	strategies map[string]Strategy

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewCoordinator creates a Coordinator with all five patterns registered.
func NewCoordinator(
	store database.Store,
	ledger *LedgerService,
	decisions *DecisionService,
	provider evaluator.Provider,
	breaker *resilience.Breaker,
	hub broadcast.Broadcaster,
	queue messagequeue.Queue,
	metrics *otel.Metrics,
	cfg config.Orchestrator,
) *Coordinator {
	c := &Coordinator{
		store:     store,
		ledger:    ledger,
		decisions: decisions,
		provider:  provider,
		breaker:   breaker,
		hub:       hub,
		queue:     queue,
		metrics:   metrics,
		cfg:       cfg,
		cancels:   make(map[string]context.CancelFunc),
	}
	c.strategies = map[string]Strategy{
		"sequential":    &sequentialStrategy{c: c},
		"concurrent":    &concurrentStrategy{c: c, poolSize: cfg.WorkerPoolSize},
		"handoff":       &handoffStrategy{c: c, maxHops: cfg.HandoffMaxHops, epsilon: cfg.StableEpsilon},
		"group_session": &groupSessionStrategy{c: c, maxRounds: cfg.GroupMaxRounds, epsilon: cfg.StableEpsilon},
	}
	c.strategies["dynamic"] = &dynamicStrategy{c: c, subset: cfg.DynamicSubset}
	return c
}

// ValidPattern reports whether name is a registered orchestration pattern.
func (c *Coordinator) ValidPattern(name string) bool {
	_, ok := c.strategies[name]
	return ok
}

// Run executes one full dispatch-and-score cycle for a proposal. It is
// called on its own goroutine by ProposalService.Submit; errors end up in
// the log and the decision state, not a caller.
func (c *Coordinator) Run(ctx context.Context, p proposal.Proposal, cov covenant.Covenant, pattern string) {
	if pattern == "" {
		pattern = c.cfg.DefaultPattern
	}
	strategy, ok := c.strategies[pattern]
	if !ok {
		slog.Error("unknown orchestration pattern", "proposal_id", p.ID, "pattern", pattern)
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	c.register(p.ID, cancel)
	defer c.unregister(p.ID)

	start := time.Now()

	if _, err := c.decisions.BeginScoring(ctx, p.ID); err != nil {
		slog.Error("begin scoring", "proposal_id", p.ID, "error", err)
		return
	}

	agents, err := c.eligibleAgents(ctx)
	if err != nil {
		slog.Error("list agents for dispatch", "proposal_id", p.ID, "error", err)
		return
	}

	rc := &runContext{proposal: p, covenant: cov, agents: agents}

	slog.Info("dispatch started",
		"proposal_id", p.ID, "pattern", strategy.Name(), "agents", len(agents))

	if err := strategy.Run(ctx, rc); err != nil {
		if ctx.Err() != nil {
			slog.Info("dispatch cancelled", "proposal_id", p.ID)
			return
		}
		slog.Error("dispatch run", "proposal_id", p.ID, "pattern", strategy.Name(), "error", err)
	}

	if ctx.Err() != nil {
		return
	}

	if _, err := c.decisions.ApplyScore(ctx, p.ID); err != nil {
		// Quorum failures already moved the node to awaiting_review.
		slog.Warn("apply score", "proposal_id", p.ID, "error", err)
	}

	if c.metrics != nil {
		c.metrics.ScoringDuration.Record(ctx, time.Since(start).Seconds())
	}
}

// Cancel aborts a proposal's in-flight dispatch, if any.
func (c *Coordinator) Cancel(proposalID string) {
	c.mu.Lock()
	cancel, ok := c.cancels[proposalID]
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

func (c *Coordinator) register(proposalID string, cancel context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancels[proposalID] = cancel
}

func (c *Coordinator) unregister(proposalID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cancels, proposalID)
}

// eligibleAgents returns available agents in ascending ID order.
func (c *Coordinator) eligibleAgents(ctx context.Context) ([]agent.Agent, error) {
	all, err := c.store.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	return agent.Eligible(all, ""), nil
}

// evaluateAgent asks the provider for one agent's verdict and records the
// result. Provider failures of any kind (error, timeout, open breaker)
// become a skipped evaluation: audit evidence that never counts toward
// quorum. The returned evaluation is always recorded.
func (c *Coordinator) evaluateAgent(
	ctx context.Context,
	rc *runContext,
	ag agent.Agent,
	round int,
	partial float64,
	priorEvidence []string,
) (evaluation.Evaluation, error) {
	evalCtx, cancel := context.WithTimeout(ctx, rc.covenant.EvaluationTimeout)
	defer cancel()
	deadline, _ := evalCtx.Deadline()

	req := evaluator.Request{
		Proposal:         rc.proposal,
		AgentID:          ag.ID,
		Capabilities:     ag.Capabilities,
		Round:            round,
		PartialResonance: partial,
		PriorEvidence:    priorEvidence,
		Deadline:         deadline,
	}

	var result *evaluator.Result
	err := c.breaker.Execute(func() error {
		r, err := c.provider.Evaluate(evalCtx, req)
		if err != nil {
			return err
		}
		result = r
		return nil
	})

	var ev evaluation.Evaluation
	if err != nil {
		ev = evaluation.NewSkipped(rc.proposal.ID, ag, err.Error(), round)
		if c.metrics != nil {
			c.metrics.EvaluationsSkipped.Add(ctx, 1)
		}
		slog.Warn("evaluation skipped",
			"proposal_id", rc.proposal.ID, "agent_id", ag.ID, "round", round, "reason", err)
	} else {
		ev = evaluation.New(rc.proposal.ID, ag, result.Score, result.Confidence, result.Evidence, round)
		if verr := ev.Validate(); verr != nil {
			ev = evaluation.NewSkipped(rc.proposal.ID, ag, "invalid verdict: "+verr.Error(), round)
		}
	}

	if err := c.recordEvaluation(ctx, &ev); err != nil {
		return ev, err
	}
	return ev, nil
}

// recordEvaluation persists the live evaluation record, appends the audit
// entry, and fans out the recorded event.
func (c *Coordinator) recordEvaluation(ctx context.Context, ev *evaluation.Evaluation) error {
	if err := c.store.UpsertEvaluation(ctx, ev); err != nil {
		return fmt.Errorf("record evaluation for agent %s: %w", ev.AgentID, err)
	}

	if _, err := c.ledger.Append(ctx, ev.ProposalID, dledger.KindEvaluation, dledger.EvaluationPayload{
		EvaluationID: ev.ID,
		AgentID:      ev.AgentID,
		Score:        ev.Score,
		Confidence:   ev.Confidence,
		Weight:       ev.Weight,
		Evidence:     ev.Evidence,
		Round:        ev.Round,
		Skipped:      ev.Skipped,
		SkipReason:   ev.SkipReason,
	}); err != nil {
		return err
	}

	if c.metrics != nil {
		c.metrics.EvaluationsRecorded.Add(ctx, 1)
		c.metrics.LedgerAppends.Add(ctx, 1)
	}

	if c.queue != nil {
		if data, err := json.Marshal(ev); err == nil {
			if perr := c.queue.Publish(ctx, messagequeue.SubjectEvaluationRecorded, data); perr != nil {
				slog.Error("publish evaluation event", "proposal_id", ev.ProposalID, "error", perr)
			}
		}
	}

	if c.hub != nil {
		c.hub.BroadcastEvent(ctx, ws.EventEvaluationRecorded, ws.EvaluationRecordedEvent{
			ProposalID: ev.ProposalID,
			AgentID:    ev.AgentID,
			Score:      ev.Score,
			Confidence: ev.Confidence,
			Round:      ev.Round,
			Skipped:    ev.Skipped,
		})
	}

	return nil
}
