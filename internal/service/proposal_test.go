package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/concordat/concord/internal/domain"
	"github.com/concordat/concord/internal/domain/covenant"
	"github.com/concordat/concord/internal/domain/decision"
	"github.com/concordat/concord/internal/domain/proposal"
	"github.com/concordat/concord/internal/resilience"
)

func newProposalEnv(provider *mockProvider) (*testEnv, *ProposalService) {
	env := newTestEnv()
	c := NewCoordinator(
		env.store,
		env.ledger,
		env.decisions,
		provider,
		resilience.NewBreaker(100, time.Second),
		env.hub,
		env.queue,
		nil,
		testOrchestratorConfig(),
	)
	return env, NewProposalService(env.store, env.decisions, c, nil)
}

// waitForState polls until the proposal's live node reaches want.
func waitForState(t *testing.T, env *testEnv, proposalID string, want decision.State) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := env.decisions.GetDecision(context.Background(), proposalID)
		if err == nil && snap.Node.State == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("proposal %s never reached state %s", proposalID, want)
}

func TestSubmitDispatchesAndFinalizes(t *testing.T) {
	provider := newMockProvider()
	env, svc := newProposalEnv(provider)

	for _, id := range []string{"a1", "a2", "a3"} {
		env.seedAgent(t, id, 1)
		provider.set(id, 0.9, 1)
	}
	cov := standardCovenant()
	if err := env.store.CreateCovenant(context.Background(), &cov); err != nil {
		t.Fatal(err)
	}

	p, err := svc.Submit(context.Background(), proposal.SubmitRequest{
		Title:      "adopt proposal pipeline",
		CovenantID: cov.ID,
		Pattern:    "concurrent",
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.ID == "" {
		t.Fatal("submitted proposal has no ID")
	}

	waitForState(t, env, p.ID, decision.StateApproved)
}

func TestSubmitRejectsImpossibleQuorum(t *testing.T) {
	provider := newMockProvider()
	env, svc := newProposalEnv(provider)

	env.seedAgent(t, "a1", 1)
	env.seedAgent(t, "a2", 1)
	cov := standardCovenant() // quorum of three
	if err := env.store.CreateCovenant(context.Background(), &cov); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Submit(context.Background(), proposal.SubmitRequest{
		Title:      "doomed",
		CovenantID: cov.ID,
	})
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("error = %v, want ErrConfiguration", err)
	}
	if provider.calls != 0 {
		t.Errorf("provider calls = %d, want 0 for a rejected submission", provider.calls)
	}
}

func TestSubmitValidatesRequest(t *testing.T) {
	provider := newMockProvider()
	env, svc := newProposalEnv(provider)
	ctx := context.Background()

	cov := standardCovenant()
	if err := env.store.CreateCovenant(ctx, &cov); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Submit(ctx, proposal.SubmitRequest{CovenantID: cov.ID}); err == nil {
		t.Error("expected error for missing title")
	}
	if _, err := svc.Submit(ctx, proposal.SubmitRequest{
		Title: "x", CovenantID: cov.ID, Pattern: "roundrobin",
	}); err == nil {
		t.Error("expected error for unknown pattern")
	}
	if _, err := svc.Submit(ctx, proposal.SubmitRequest{
		Title: "x", CovenantID: "missing",
	}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound for unknown covenant", err)
	}
}

func TestResubmitSupersedesPriorDecision(t *testing.T) {
	provider := newMockProvider()
	env, svc := newProposalEnv(provider)
	ctx := context.Background()

	// A prior proposal parked in review under a strict covenant.
	prior := env.seedProposal(t, standardCovenant())
	parkForReview(t, env, prior)

	// The revision runs under a covenant one agent can satisfy.
	env.seedAgent(t, "a1", 1)
	provider.set("a1", 0.95, 1)
	relaxed := covenant.Covenant{
		Name:               "relaxed",
		ResonanceThreshold: 0.85,
		ReviewMargin:       0.1,
		MinQuorum:          1,
		EvaluationTimeout:  30 * time.Second,
	}
	if err := env.store.CreateCovenant(ctx, &relaxed); err != nil {
		t.Fatal(err)
	}

	revised, err := svc.Resubmit(ctx, prior.ID, proposal.SubmitRequest{
		Title:      "ship it, take two",
		CovenantID: relaxed.ID,
		Pattern:    "sequential",
	})
	if err != nil {
		t.Fatal(err)
	}
	if revised.PriorProposalID != prior.ID {
		t.Errorf("prior link = %q, want %q", revised.PriorProposalID, prior.ID)
	}

	priorSnap, err := env.decisions.GetDecision(ctx, prior.ID)
	if err != nil {
		t.Fatal(err)
	}
	if priorSnap.Node.State != decision.StateSuperseded {
		t.Errorf("prior state = %s, want superseded", priorSnap.Node.State)
	}

	waitForState(t, env, revised.ID, decision.StateApproved)
}

func TestRescoreBranchesFromReview(t *testing.T) {
	provider := newMockProvider()
	env, svc := newProposalEnv(provider)
	ctx := context.Background()

	cov := standardCovenant()
	cov.MinQuorum = 1
	p := env.seedProposal(t, cov)
	parkForReview(t, env, p)

	env.seedAgent(t, "a1", 1)
	provider.set("a1", 0.95, 1)

	if err := svc.Rescore(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	waitForState(t, env, p.ID, decision.StateApproved)

	snap, err := env.decisions.GetDecision(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.History) != 2 {
		t.Errorf("lineage length = %d, want reviewed parent plus child", len(snap.History))
	}

	// Terminal now; a second rescore must refuse.
	if err := svc.Rescore(ctx, p.ID); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("rescore after approval = %v, want ErrInvalidState", err)
	}
}

func TestRescoreReusesSubmittedPattern(t *testing.T) {
	provider := newMockProvider()
	env, svc := newProposalEnv(provider)
	ctx := context.Background()

	cov := standardCovenant()
	cov.MinQuorum = 1
	if err := env.store.CreateCovenant(ctx, &cov); err != nil {
		t.Fatal(err)
	}
	p := &proposal.Proposal{Title: "retry me", CovenantID: cov.ID, Pattern: "group_session"}
	if err := env.store.CreateProposal(ctx, p); err != nil {
		t.Fatal(err)
	}
	parkForReview(t, env, p)

	env.seedAgent(t, "a1", 1)
	provider.set("a1", 0.95, 1)

	if err := svc.Rescore(ctx, p.ID); err != nil {
		t.Fatal(err)
	}
	waitForState(t, env, p.ID, decision.StateApproved)

	// Group session re-evaluates until stable: two rounds, not the one call
	// the configured default pattern would make.
	provider.mu.Lock()
	calls := provider.calls
	provider.mu.Unlock()
	if calls != 2 {
		t.Errorf("provider calls = %d, want 2 group-session rounds", calls)
	}
	evals, err := env.store.ListEvaluations(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(evals) != 1 || evals[0].Round != 2 {
		t.Errorf("live evaluation round = %+v, want round 2", evals)
	}
}

func TestResubmitUnknownPrior(t *testing.T) {
	_, svc := newProposalEnv(newMockProvider())
	_, err := svc.Resubmit(context.Background(), "missing", proposal.SubmitRequest{
		Title: "x", CovenantID: "c1",
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}
