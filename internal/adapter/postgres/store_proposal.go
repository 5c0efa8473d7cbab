package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/concordat/concord/internal/domain"
	"github.com/concordat/concord/internal/domain/proposal"
)

func (s *Store) CreateProposal(ctx context.Context, p *proposal.Proposal) error {
	if p.SubmittedAt.IsZero() {
		p.SubmittedAt = time.Now().UTC()
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO proposals (title, context, complexity, urgency, covenant_id, prior_proposal_id, live_node_id, pattern, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		p.Title, p.Context, p.Complexity, p.Urgency, p.CovenantID,
		nullIfEmpty(p.PriorProposalID), nullIfEmpty(p.LiveNodeID), p.Pattern, p.SubmittedAt,
	)
	if err := row.Scan(&p.ID); err != nil {
		return fmt.Errorf("create proposal: %w", err)
	}
	return nil
}

func (s *Store) GetProposal(ctx context.Context, id string) (*proposal.Proposal, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, title, context, complexity, urgency, covenant_id, prior_proposal_id, live_node_id, pattern, submitted_at
		FROM proposals WHERE id = $1`, id)

	var p proposal.Proposal
	var prior, live *string
	err := row.Scan(&p.ID, &p.Title, &p.Context, &p.Complexity, &p.Urgency, &p.CovenantID, &prior, &live, &p.Pattern, &p.SubmittedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get proposal %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get proposal: %w", err)
	}
	p.PriorProposalID = strOrEmpty(prior)
	p.LiveNodeID = strOrEmpty(live)
	return &p, nil
}

func (s *Store) SetLiveNode(ctx context.Context, proposalID, nodeID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE proposals SET live_node_id = $2 WHERE id = $1`, proposalID, nodeID)
	if err != nil {
		return fmt.Errorf("set live node: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set live node for proposal %s: %w", proposalID, domain.ErrNotFound)
	}
	return nil
}
