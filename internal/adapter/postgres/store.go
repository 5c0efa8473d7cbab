package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/concordat/concord/internal/domain"
	"github.com/concordat/concord/internal/domain/agent"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// pgTextArray converts a string slice to a pgx-compatible text array.
// nil slices become empty arrays to avoid SQL NULL.
func pgTextArray(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// nullIfEmpty returns nil for empty strings (for nullable UUID columns).
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// strOrEmpty dereferences a nullable text scan target.
func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// --- Agents ---

func (s *Store) CreateAgent(ctx context.Context, a *agent.Agent) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	if a.Version == 0 {
		a.Version = 1
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO agents (display_name, weight, capabilities, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		a.DisplayName, a.Weight, pgTextArray(a.Capabilities), a.Status, a.Version, a.CreatedAt, a.UpdatedAt,
	)
	if err := row.Scan(&a.ID); err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	return nil
}

func (s *Store) GetAgent(ctx context.Context, id string) (*agent.Agent, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, display_name, weight, capabilities, status, version, created_at, updated_at
		FROM agents WHERE id = $1`, id)

	var a agent.Agent
	err := row.Scan(&a.ID, &a.DisplayName, &a.Weight, &a.Capabilities, &a.Status, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get agent %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return &a, nil
}

func (s *Store) ListAgents(ctx context.Context) ([]agent.Agent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, display_name, weight, capabilities, status, version, created_at, updated_at
		FROM agents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	var agents []agent.Agent
	for rows.Next() {
		var a agent.Agent
		if err := rows.Scan(&a.ID, &a.DisplayName, &a.Weight, &a.Capabilities, &a.Status, &a.Version, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, a)
	}
	return agents, rows.Err()
}

func (s *Store) UpdateAgentWeight(ctx context.Context, id string, weight float64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE agents SET weight = $2, version = version + 1, updated_at = now()
		WHERE id = $1`, id, weight)
	if err != nil {
		return fmt.Errorf("update agent weight: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update agent weight %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) UpdateAgentStatus(ctx context.Context, id string, status agent.Status) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE agents SET status = $2, version = version + 1, updated_at = now()
		WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("update agent status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update agent status %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteAgent(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM agents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete agent %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete agent %s: %w", id, domain.ErrNotFound)
	}
	return nil
}
