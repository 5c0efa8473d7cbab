package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/concordat/concord/internal/adapter/otel"
	"github.com/concordat/concord/internal/domain"
	"github.com/concordat/concord/internal/domain/agent"
	"github.com/concordat/concord/internal/domain/decision"
	"github.com/concordat/concord/internal/domain/proposal"
	"github.com/concordat/concord/internal/port/database"
)

// ProposalService handles proposal submission and the supersede flow.
type ProposalService struct {
	store       database.Store
	decisions   *DecisionService
	coordinator *Coordinator
	metrics     *otel.Metrics
}

// NewProposalService creates a new ProposalService.
func NewProposalService(store database.Store, decisions *DecisionService, coordinator *Coordinator, metrics *otel.Metrics) *ProposalService {
	return &ProposalService{
		store:       store,
		decisions:   decisions,
		coordinator: coordinator,
		metrics:     metrics,
	}
}

// Submit validates the request, checks the covenant's quorum is achievable
// against the current registry, persists the proposal, and dispatches
// evaluation asynchronously. An impossible quorum fails here with
// domain.ErrConfiguration, before any evaluation is requested.
func (s *ProposalService) Submit(ctx context.Context, req proposal.SubmitRequest) (*proposal.Proposal, error) {
	return s.submit(ctx, req, "")
}

// Resubmit supersedes an earlier proposal's decision and submits a revised
// proposal linked to it. The old proposal's ledger is left intact; the new
// proposal starts its own chain.
func (s *ProposalService) Resubmit(ctx context.Context, priorProposalID string, req proposal.SubmitRequest) (*proposal.Proposal, error) {
	if _, err := s.store.GetProposal(ctx, priorProposalID); err != nil {
		return nil, err
	}

	s.coordinator.Cancel(priorProposalID)
	if _, err := s.decisions.Supersede(ctx, priorProposalID, "superseded by revised proposal"); err != nil {
		return nil, err
	}

	return s.submit(ctx, req, priorProposalID)
}

func (s *ProposalService) submit(ctx context.Context, req proposal.SubmitRequest, priorID string) (*proposal.Proposal, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("submit proposal: %w", err)
	}
	if req.Pattern != "" && !s.coordinator.ValidPattern(req.Pattern) {
		return nil, fmt.Errorf("submit proposal: unknown pattern %q", req.Pattern)
	}

	cov, err := s.store.GetCovenant(ctx, req.CovenantID)
	if err != nil {
		return nil, err
	}

	// Quorum feasibility gate: if the registry cannot possibly satisfy the
	// covenant, fail now rather than strand the proposal in review.
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	eligible := agent.Eligible(agents, "")
	if len(eligible) < cov.MinQuorum {
		return nil, fmt.Errorf("covenant %s requires quorum %d but only %d agents are available: %w",
			cov.ID, cov.MinQuorum, len(eligible), domain.ErrConfiguration)
	}

	p := &proposal.Proposal{
		Title:           req.Title,
		Context:         req.Context,
		Complexity:      req.Complexity,
		Urgency:         req.Urgency,
		CovenantID:      cov.ID,
		PriorProposalID: priorID,
		Pattern:         req.Pattern,
	}
	if err := s.store.CreateProposal(ctx, p); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ProposalsSubmitted.Add(ctx, 1)
	}
	slog.Info("proposal submitted",
		"proposal_id", p.ID, "covenant_id", cov.ID,
		"pattern", req.Pattern, "prior_proposal_id", priorID)

	// Dispatch runs detached from the request: the submitter gets an ID back
	// immediately and follows progress over the WebSocket feed.
	go s.coordinator.Run(context.WithoutCancel(ctx), *p, *cov, req.Pattern)

	return p, nil
}

// Rescore re-dispatches evaluation for a proposal parked in review, branching
// a child decision node off the reviewed one. Any other state returns
// domain.ErrInvalidState.
func (s *ProposalService) Rescore(ctx context.Context, proposalID string) error {
	p, err := s.store.GetProposal(ctx, proposalID)
	if err != nil {
		return err
	}
	cov, err := s.store.GetCovenant(ctx, p.CovenantID)
	if err != nil {
		return err
	}

	snap, err := s.decisions.GetDecision(ctx, proposalID)
	if err != nil {
		return err
	}
	if snap.Node.State != decision.StateAwaitingReview {
		return fmt.Errorf("rescore proposal %s in state %s: %w",
			proposalID, snap.Node.State, domain.ErrInvalidState)
	}

	slog.Info("proposal rescore requested", "proposal_id", proposalID, "pattern", p.Pattern)
	go s.coordinator.Run(context.WithoutCancel(ctx), *p, *cov, p.Pattern)
	return nil
}

// Get returns a proposal by ID.
func (s *ProposalService) Get(ctx context.Context, id string) (*proposal.Proposal, error) {
	return s.store.GetProposal(ctx, id)
}
