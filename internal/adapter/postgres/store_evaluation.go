package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/concordat/concord/internal/domain/evaluation"
)

func (s *Store) UpsertEvaluation(ctx context.Context, e *evaluation.Evaluation) error {
	if e.SubmittedAt.IsZero() {
		e.SubmittedAt = time.Now().UTC()
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO evaluations (proposal_id, agent_id, score, confidence, weight, capabilities, evidence, round, skipped, skip_reason, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (proposal_id, agent_id) DO UPDATE SET
			score = EXCLUDED.score,
			confidence = EXCLUDED.confidence,
			weight = EXCLUDED.weight,
			capabilities = EXCLUDED.capabilities,
			evidence = EXCLUDED.evidence,
			round = EXCLUDED.round,
			skipped = EXCLUDED.skipped,
			skip_reason = EXCLUDED.skip_reason,
			submitted_at = EXCLUDED.submitted_at
		RETURNING id`,
		e.ProposalID, e.AgentID, e.Score, e.Confidence, e.Weight,
		pgTextArray(e.Capabilities), pgTextArray(e.Evidence), e.Round,
		e.Skipped, e.SkipReason, e.SubmittedAt,
	)
	if err := row.Scan(&e.ID); err != nil {
		return fmt.Errorf("upsert evaluation: %w", err)
	}
	return nil
}

func (s *Store) ListEvaluations(ctx context.Context, proposalID string) ([]evaluation.Evaluation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, proposal_id, agent_id, score, confidence, weight, capabilities, evidence, round, skipped, skip_reason, submitted_at
		FROM evaluations WHERE proposal_id = $1 ORDER BY agent_id`, proposalID)
	if err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	defer rows.Close()

	var evals []evaluation.Evaluation
	for rows.Next() {
		var e evaluation.Evaluation
		if err := rows.Scan(&e.ID, &e.ProposalID, &e.AgentID, &e.Score, &e.Confidence, &e.Weight,
			&e.Capabilities, &e.Evidence, &e.Round, &e.Skipped, &e.SkipReason, &e.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		evals = append(evals, e)
	}
	return evals, rows.Err()
}
