// Package database defines the persistence port for the decision engine.
// The engine requires point lookups by ID and ordinary CRUD; the append-only
// audit ledger has its own port.
package database

import (
	"context"

	"github.com/concordat/concord/internal/domain/agent"
	"github.com/concordat/concord/internal/domain/covenant"
	"github.com/concordat/concord/internal/domain/decision"
	"github.com/concordat/concord/internal/domain/evaluation"
	"github.com/concordat/concord/internal/domain/proposal"
)

// Store is the port interface for all engine state except the audit ledger.
type Store interface {
	// Agents
	CreateAgent(ctx context.Context, a *agent.Agent) error
	GetAgent(ctx context.Context, id string) (*agent.Agent, error)
	ListAgents(ctx context.Context) ([]agent.Agent, error)
	UpdateAgentWeight(ctx context.Context, id string, weight float64) error
	UpdateAgentStatus(ctx context.Context, id string, status agent.Status) error
	DeleteAgent(ctx context.Context, id string) error

	// Covenants (immutable; versions are new rows)
	CreateCovenant(ctx context.Context, c *covenant.Covenant) error
	GetCovenant(ctx context.Context, id string) (*covenant.Covenant, error)

	// Proposals (immutable once submitted)
	CreateProposal(ctx context.Context, p *proposal.Proposal) error
	GetProposal(ctx context.Context, id string) (*proposal.Proposal, error)
	SetLiveNode(ctx context.Context, proposalID, nodeID string) error

	// Evaluations: exactly one live record per (proposal, agent).
	// UpsertEvaluation replaces the live record; history lives in the ledger.
	UpsertEvaluation(ctx context.Context, e *evaluation.Evaluation) error
	ListEvaluations(ctx context.Context, proposalID string) ([]evaluation.Evaluation, error)

	// Decision nodes (arena: flat rows, DAG via parent_node_id)
	CreateNode(ctx context.Context, n *decision.Node) error
	GetNode(ctx context.Context, id string) (*decision.Node, error)
	ListNodes(ctx context.Context, proposalID string) ([]decision.Node, error)
	UpdateNodeState(ctx context.Context, nodeID string, state decision.State, resonance *float64) error
}
