package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/concordat/concord/internal/domain"
	"github.com/concordat/concord/internal/domain/decision"
)

func (s *Store) CreateNode(ctx context.Context, n *decision.Node) error {
	now := time.Now().UTC()
	n.CreatedAt = now
	n.UpdatedAt = now
	if n.Version == 0 {
		n.Version = 1
	}
	if n.State == "" {
		n.State = decision.StateOpen
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO decision_nodes (proposal_id, state, resonance, parent_node_id, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		n.ProposalID, n.State, n.Resonance, nullIfEmpty(n.ParentNodeID), n.Version, n.CreatedAt, n.UpdatedAt,
	)
	if err := row.Scan(&n.ID); err != nil {
		return fmt.Errorf("create node: %w", err)
	}
	return nil
}

func (s *Store) GetNode(ctx context.Context, id string) (*decision.Node, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, proposal_id, state, resonance, parent_node_id, version, created_at, updated_at
		FROM decision_nodes WHERE id = $1`, id)

	n, err := scanNode(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get node %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get node: %w", err)
	}
	return n, nil
}

func (s *Store) ListNodes(ctx context.Context, proposalID string) ([]decision.Node, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, proposal_id, state, resonance, parent_node_id, version, created_at, updated_at
		FROM decision_nodes WHERE proposal_id = $1 ORDER BY created_at`, proposalID)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	var nodes []decision.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, *n)
	}
	return nodes, rows.Err()
}

func (s *Store) UpdateNodeState(ctx context.Context, nodeID string, state decision.State, resonance *float64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE decision_nodes SET state = $2, resonance = COALESCE($3, resonance), version = version + 1, updated_at = now()
		WHERE id = $1`, nodeID, state, resonance)
	if err != nil {
		return fmt.Errorf("update node state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update node state %s: %w", nodeID, domain.ErrNotFound)
	}
	return nil
}

// scannable abstracts pgx.Row and pgx.Rows for shared scan helpers.
type scannable interface {
	Scan(dest ...any) error
}

func scanNode(row scannable) (*decision.Node, error) {
	var n decision.Node
	var parent *string
	err := row.Scan(&n.ID, &n.ProposalID, &n.State, &n.Resonance, &parent, &n.Version, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	n.ParentNodeID = strOrEmpty(parent)
	return &n, nil
}
