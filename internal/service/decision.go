package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/concordat/concord/internal/adapter/otel"
	"github.com/concordat/concord/internal/adapter/ws"
	"github.com/concordat/concord/internal/domain"
	"github.com/concordat/concord/internal/domain/consensus"
	"github.com/concordat/concord/internal/domain/decision"
	"github.com/concordat/concord/internal/domain/evaluation"
	dledger "github.com/concordat/concord/internal/domain/ledger"
	"github.com/concordat/concord/internal/port/broadcast"
	"github.com/concordat/concord/internal/port/cache"
	"github.com/concordat/concord/internal/port/database"
	"github.com/concordat/concord/internal/port/messagequeue"
	"github.com/concordat/concord/internal/port/notifier"
)

// DecisionService is the sole writer of decision-node state. Every state
// change flows through it so each transition lands in the audit ledger
// exactly once, in order, before anything external observes it.
type DecisionService struct {
	store       database.Store
	ledger      *LedgerService
	cache       cache.Cache
	hub         broadcast.Broadcaster
	queue       messagequeue.Queue
	notify      *NotificationService
	metrics     *otel.Metrics
	snapshotTTL time.Duration
}

// NewDecisionService creates a new DecisionService. cache, hub, queue,
// notify, and metrics may be nil; the corresponding side effects are skipped.
func NewDecisionService(
	store database.Store,
	ledger *LedgerService,
	c cache.Cache,
	hub broadcast.Broadcaster,
	queue messagequeue.Queue,
	notify *NotificationService,
	metrics *otel.Metrics,
	snapshotTTL time.Duration,
) *DecisionService {
	return &DecisionService{
		store:       store,
		ledger:      ledger,
		cache:       c,
		hub:         hub,
		queue:       queue,
		notify:      notify,
		metrics:     metrics,
		snapshotTTL: snapshotTTL,
	}
}

func snapshotKey(proposalID string) string { return "decision:" + proposalID }

// liveNode returns the proposal's live decision node, or nil when no node
// has been created yet.
func (s *DecisionService) liveNode(ctx context.Context, proposalID string) (*decision.Node, error) {
	p, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p.LiveNodeID == "" {
		return nil, nil
	}
	return s.store.GetNode(ctx, p.LiveNodeID)
}

// BeginScoring moves a proposal's live node into scoring. A proposal with no
// node yet gets a fresh root node. A node already scoring is returned as-is.
// From awaiting_review a child node is created rather than mutating the
// reviewed one, preserving the branch for audit. Terminal states return
// domain.ErrInvalidState.
func (s *DecisionService) BeginScoring(ctx context.Context, proposalID string) (*decision.Node, error) {
	node, err := s.liveNode(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	if node == nil {
		node = &decision.Node{ProposalID: proposalID, State: decision.StateOpen}
		if err := s.store.CreateNode(ctx, node); err != nil {
			return nil, err
		}
		if err := s.store.SetLiveNode(ctx, proposalID, node.ID); err != nil {
			return nil, err
		}
	}

	switch node.State {
	case decision.StateScoring:
		return node, nil

	case decision.StateOpen:
		if err := s.transition(ctx, node, decision.StateScoring, nil, dledger.TransitionPayload{
			NodeID: node.ID,
			From:   string(decision.StateOpen),
			To:     string(decision.StateScoring),
			Reason: "evaluation dispatch started",
		}); err != nil {
			return nil, err
		}
		return node, nil

	case decision.StateAwaitingReview:
		child := &decision.Node{
			ProposalID:   proposalID,
			State:        decision.StateScoring,
			ParentNodeID: node.ID,
		}
		if err := s.store.CreateNode(ctx, child); err != nil {
			return nil, err
		}
		if err := s.store.SetLiveNode(ctx, proposalID, child.ID); err != nil {
			return nil, err
		}
		if _, err := s.ledger.Append(ctx, proposalID, dledger.KindTransition, dledger.TransitionPayload{
			NodeID: child.ID,
			From:   string(decision.StateAwaitingReview),
			To:     string(decision.StateScoring),
			Reason: "rescore from review: new child node " + child.ID,
		}); err != nil {
			return nil, err
		}
		s.invalidate(ctx, proposalID)
		s.broadcastStatus(ctx, proposalID, child)
		return child, nil

	default:
		return nil, fmt.Errorf("begin scoring for proposal %s in state %s: %w",
			proposalID, node.State, domain.ErrInvalidState)
	}
}

// ApplyScore runs the consensus scorer over the proposal's live evaluations
// and applies the verdict to the live node. Insufficient quorum is not an
// error here: the node parks in awaiting_review for a human.
//
// Exactly one transition entry lands in the ledger per invocation (plus a
// veto entry when a hard veto fired).
func (s *DecisionService) ApplyScore(ctx context.Context, proposalID string) (*consensus.Result, error) {
	node, err := s.liveNode(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if node == nil || node.State != decision.StateScoring {
		state := decision.State("none")
		if node != nil {
			state = node.State
		}
		return nil, fmt.Errorf("apply score for proposal %s in state %s: %w",
			proposalID, state, domain.ErrInvalidState)
	}

	p, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	cov, err := s.store.GetCovenant(ctx, p.CovenantID)
	if err != nil {
		return nil, err
	}
	evals, err := s.store.ListEvaluations(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	res, err := consensus.Score(evals, *cov)
	if err != nil {
		if !errors.Is(err, domain.ErrInsufficientQuorum) {
			return nil, err
		}
		// Quorum failed: park for human review, never silently approve or reject.
		if terr := s.transition(ctx, node, decision.StateAwaitingReview, nil, dledger.TransitionPayload{
			NodeID: node.ID,
			From:   string(decision.StateScoring),
			To:     string(decision.StateAwaitingReview),
			Reason: err.Error(),
		}); terr != nil {
			return nil, terr
		}
		slog.Warn("quorum not met, awaiting review", "proposal_id", proposalID, "error", err)
		return nil, err
	}

	if res.Vetoed {
		if _, err := s.ledger.Append(ctx, proposalID, dledger.KindVeto, dledger.VetoPayload{
			AgentID: res.VetoAgentID,
			Score:   vetoScore(evals, res.VetoAgentID),
		}); err != nil {
			return nil, err
		}
	}

	to := decision.StateFor(res.Outcome)
	resonance := res.Resonance
	if err := s.transition(ctx, node, to, &resonance, dledger.TransitionPayload{
		NodeID:       node.ID,
		From:         string(decision.StateScoring),
		To:           string(to),
		Resonance:    res.Resonance,
		Vetoed:       res.Vetoed,
		VetoAgentID:  res.VetoAgentID,
		Contributing: res.Contributing,
		Reason:       res.Reason,
	}); err != nil {
		return nil, err
	}

	slog.Info("proposal scored",
		"proposal_id", proposalID,
		"node_id", node.ID,
		"resonance", res.Resonance,
		"outcome", res.Outcome,
		"vetoed", res.Vetoed,
	)

	if to.IsTerminal() {
		s.finalize(ctx, proposalID, string(res.Outcome), res.Resonance)
	}
	return res, nil
}

// Override applies a human reviewer's verdict to a node awaiting review.
// Any other state returns domain.ErrInvalidState with no side effect; a
// repeated override therefore fails cleanly instead of double-finalizing.
func (s *DecisionService) Override(ctx context.Context, proposalID, verdict, justification, reviewerID string) (*decision.Node, error) {
	var to decision.State
	switch verdict {
	case "approved":
		to = decision.StateApproved
	case "rejected":
		to = decision.StateRejected
	default:
		return nil, fmt.Errorf("override verdict must be approved or rejected, got %q", verdict)
	}
	if justification == "" {
		return nil, fmt.Errorf("override justification is required")
	}

	node, err := s.liveNode(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if node == nil || node.State != decision.StateAwaitingReview {
		state := decision.State("none")
		if node != nil {
			state = node.State
		}
		return nil, fmt.Errorf("override for proposal %s in state %s: %w",
			proposalID, state, domain.ErrInvalidState)
	}

	if _, err := s.ledger.Append(ctx, proposalID, dledger.KindOverride, dledger.OverridePayload{
		NodeID:        node.ID,
		Decision:      verdict,
		Justification: justification,
		ReviewerID:    reviewerID,
	}); err != nil {
		return nil, err
	}

	if err := s.transition(ctx, node, to, nil, dledger.TransitionPayload{
		NodeID: node.ID,
		From:   string(decision.StateAwaitingReview),
		To:     string(to),
		Reason: "human override by " + reviewerID,
	}); err != nil {
		return nil, err
	}

	slog.Info("decision overridden",
		"proposal_id", proposalID, "node_id", node.ID,
		"verdict", verdict, "reviewer_id", reviewerID)

	var resonance float64
	if node.Resonance != nil {
		resonance = *node.Resonance
	}
	s.finalize(ctx, proposalID, verdict, resonance)
	return node, nil
}

// Supersede retires a proposal's live node from any non-terminal state,
// typically because a revised proposal replaces it.
func (s *DecisionService) Supersede(ctx context.Context, proposalID, reason string) (*decision.Node, error) {
	node, err := s.liveNode(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if node == nil || node.State.IsTerminal() {
		state := decision.State("none")
		if node != nil {
			state = node.State
		}
		return nil, fmt.Errorf("supersede proposal %s in state %s: %w",
			proposalID, state, domain.ErrInvalidState)
	}

	if reason == "" {
		reason = "superseded by a newer proposal"
	}
	if err := s.transition(ctx, node, decision.StateSuperseded, nil, dledger.TransitionPayload{
		NodeID: node.ID,
		From:   string(node.State),
		To:     string(decision.StateSuperseded),
		Reason: reason,
	}); err != nil {
		return nil, err
	}

	slog.Info("decision superseded", "proposal_id", proposalID, "node_id", node.ID)
	s.finalize(ctx, proposalID, string(decision.StateSuperseded), 0)
	return node, nil
}

// GetDecision returns the read model for a proposal: live node, lineage, and
// audit bounds. Snapshots are cached briefly; every write invalidates.
func (s *DecisionService) GetDecision(ctx context.Context, proposalID string) (*decision.Snapshot, error) {
	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, snapshotKey(proposalID)); err == nil && ok {
			var snap decision.Snapshot
			if err := json.Unmarshal(data, &snap); err == nil {
				return &snap, nil
			}
		}
	}

	node, err := s.liveNode(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, fmt.Errorf("decision for proposal %s: %w", proposalID, domain.ErrNotFound)
	}

	nodes, err := s.store.ListNodes(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	first, last, count, err := s.ledger.Bounds(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	snap := &decision.Snapshot{
		ProposalID: proposalID,
		Node:       *node,
		Resonance:  node.Resonance,
		History:    decision.Lineage(nodes, node.ID),
		Audit: decision.AuditSummary{
			Entries:       count,
			FirstSequence: first,
			LastSequence:  last,
		},
	}

	if s.cache != nil {
		if data, err := json.Marshal(snap); err == nil {
			_ = s.cache.Set(ctx, snapshotKey(proposalID), data, s.snapshotTTL)
		}
	}
	return snap, nil
}

// transition validates and applies a state change, appends its ledger entry,
// and fans out the status event. The ledger entry lands before the state
// write: a terminal state must never exist without the entry recording it,
// so a ledger outage aborts the transition with the node unchanged.
func (s *DecisionService) transition(ctx context.Context, node *decision.Node, to decision.State, resonance *float64, payload dledger.TransitionPayload) error {
	if !decision.CanTransition(node.State, to) {
		return fmt.Errorf("transition %s -> %s: %w", node.State, to, domain.ErrInvalidState)
	}

	if _, err := s.ledger.Append(ctx, node.ProposalID, dledger.KindTransition, payload); err != nil {
		return err
	}

	if err := s.store.UpdateNodeState(ctx, node.ID, to, resonance); err != nil {
		return err
	}
	node.State = to
	if resonance != nil {
		node.Resonance = resonance
	}

	s.invalidate(ctx, node.ProposalID)
	s.broadcastStatus(ctx, node.ProposalID, node)
	return nil
}

// finalize emits the DecisionFinalized event on every terminal transition.
// Delivery is at-least-once: a publish failure is logged and the decision
// stands; consumers dedupe by (proposal_id, outcome).
func (s *DecisionService) finalize(ctx context.Context, proposalID, outcome string, resonance float64) {
	first, last, _, err := s.ledger.Bounds(ctx, proposalID)
	if err != nil {
		slog.Error("read audit bounds for finalized event", "proposal_id", proposalID, "error", err)
	}

	event := decision.FinalizedEvent{
		ProposalID:      proposalID,
		Outcome:         outcome,
		Resonance:       resonance,
		AuditRangeStart: first,
		AuditRangeEnd:   last,
	}

	if s.queue != nil {
		data, err := json.Marshal(event)
		if err == nil {
			if err := s.queue.Publish(ctx, messagequeue.SubjectDecisionFinalized, data); err != nil {
				slog.Error("publish finalized event", "proposal_id", proposalID, "error", err)
			}
		}
	}

	if s.hub != nil {
		s.hub.BroadcastEvent(ctx, ws.EventDecisionFinalized, event)
	}

	if s.notify != nil {
		level := "info"
		switch outcome {
		case "approved":
			level = "success"
		case "rejected":
			level = "warning"
		}
		s.notify.Notify(ctx, notifier.Notification{
			Title:   fmt.Sprintf("Decision %s", outcome),
			Message: fmt.Sprintf("Proposal %s finalized as %s (resonance %.4f)", proposalID, outcome, resonance),
			Level:   level,
			Source:  "decision." + outcome,
		})
	}

	if s.metrics != nil {
		s.metrics.DecisionsFinalized.Add(ctx, 1)
	}
}

func (s *DecisionService) invalidate(ctx context.Context, proposalID string) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, snapshotKey(proposalID))
	}
}

// vetoScore looks up the vetoing agent's recorded score for the veto entry.
func vetoScore(evals []evaluation.Evaluation, agentID string) float64 {
	for i := range evals {
		if evals[i].AgentID == agentID {
			return evals[i].Score
		}
	}
	return 0
}

func (s *DecisionService) broadcastStatus(ctx context.Context, proposalID string, node *decision.Node) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastEvent(ctx, ws.EventDecisionStatus, ws.DecisionStatusEvent{
		ProposalID: proposalID,
		NodeID:     node.ID,
		State:      string(node.State),
		Resonance:  node.Resonance,
	})
}
