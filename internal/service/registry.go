package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/concordat/concord/internal/domain/agent"
	"github.com/concordat/concord/internal/domain/covenant"
	"github.com/concordat/concord/internal/port/database"
)

// RegistryService manages the agent registry and covenant versions.
//
// Weight and capability data recorded here is frozen into evaluations at
// evaluation time, so registry updates affect future scoring only.
type RegistryService struct {
	store database.Store
}

// NewRegistryService creates a new RegistryService.
func NewRegistryService(store database.Store) *RegistryService {
	return &RegistryService{store: store}
}

// RegisterAgent validates and persists a new agent. New agents start available.
func (s *RegistryService) RegisterAgent(ctx context.Context, req agent.RegisterRequest) (*agent.Agent, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("register agent: %w", err)
	}

	a := &agent.Agent{
		DisplayName:  req.DisplayName,
		Weight:       req.Weight,
		Capabilities: req.Capabilities,
		Status:       agent.StatusAvailable,
	}
	if err := s.store.CreateAgent(ctx, a); err != nil {
		return nil, err
	}

	slog.Info("agent registered", "agent_id", a.ID, "weight", a.Weight, "capabilities", a.Capabilities)
	return a, nil
}

// GetAgent returns an agent by ID.
func (s *RegistryService) GetAgent(ctx context.Context, id string) (*agent.Agent, error) {
	return s.store.GetAgent(ctx, id)
}

// ListAgents returns all registered agents, ascending by ID.
func (s *RegistryService) ListAgents(ctx context.Context) ([]agent.Agent, error) {
	return s.store.ListAgents(ctx)
}

// EligibleFor returns available agents advertising the capability, ascending
// by ID. An empty capability matches every available agent.
func (s *RegistryService) EligibleFor(ctx context.Context, capability string) ([]agent.Agent, error) {
	all, err := s.store.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	return agent.Eligible(all, capability), nil
}

// UpdateAgentWeight changes an agent's weight for future evaluations.
func (s *RegistryService) UpdateAgentWeight(ctx context.Context, id string, weight float64) error {
	if weight <= 0 {
		return fmt.Errorf("update agent weight: weight must be positive")
	}
	if err := s.store.UpdateAgentWeight(ctx, id, weight); err != nil {
		return err
	}
	slog.Info("agent weight updated", "agent_id", id, "weight", weight)
	return nil
}

// UpdateAgentStatus changes an agent's availability.
func (s *RegistryService) UpdateAgentStatus(ctx context.Context, id string, status string) error {
	if !agent.ValidStatus(status) {
		return fmt.Errorf("update agent status: unknown status %q", status)
	}
	if err := s.store.UpdateAgentStatus(ctx, id, agent.Status(status)); err != nil {
		return err
	}
	slog.Info("agent status updated", "agent_id", id, "status", status)
	return nil
}

// DeleteAgent removes an agent from the registry. Evaluations it already
// submitted keep their frozen weight and capabilities.
func (s *RegistryService) DeleteAgent(ctx context.Context, id string) error {
	return s.store.DeleteAgent(ctx, id)
}

// CreateCovenant validates and persists a new covenant version.
func (s *RegistryService) CreateCovenant(ctx context.Context, req covenant.CreateRequest) (*covenant.Covenant, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("create covenant: %w", err)
	}

	c := &covenant.Covenant{
		Name:               req.Name,
		ResonanceThreshold: req.ResonanceThreshold,
		ReviewMargin:       req.ReviewMargin,
		VetoCapabilities:   req.VetoCapabilities,
		MinQuorum:          req.MinQuorum,
		EvaluationTimeout:  req.EvaluationTimeout,
	}
	if err := s.store.CreateCovenant(ctx, c); err != nil {
		return nil, err
	}

	slog.Info("covenant created", "covenant_id", c.ID, "name", c.Name,
		"threshold", c.ResonanceThreshold, "min_quorum", c.MinQuorum)
	return c, nil
}

// GetCovenant returns a covenant by ID.
func (s *RegistryService) GetCovenant(ctx context.Context, id string) (*covenant.Covenant, error) {
	return s.store.GetCovenant(ctx, id)
}
