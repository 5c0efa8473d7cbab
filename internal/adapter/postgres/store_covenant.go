package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/concordat/concord/internal/domain"
	"github.com/concordat/concord/internal/domain/covenant"
)

func (s *Store) CreateCovenant(ctx context.Context, c *covenant.Covenant) error {
	c.CreatedAt = time.Now().UTC()
	if c.Version == 0 {
		c.Version = 1
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO covenants (name, resonance_threshold, review_margin, veto_capabilities, min_quorum, evaluation_timeout_ns, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		c.Name, c.ResonanceThreshold, c.ReviewMargin, pgTextArray(c.VetoCapabilities),
		c.MinQuorum, int64(c.EvaluationTimeout), c.Version, c.CreatedAt,
	)
	if err := row.Scan(&c.ID); err != nil {
		return fmt.Errorf("create covenant: %w", err)
	}
	return nil
}

func (s *Store) GetCovenant(ctx context.Context, id string) (*covenant.Covenant, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, resonance_threshold, review_margin, veto_capabilities, min_quorum, evaluation_timeout_ns, version, created_at
		FROM covenants WHERE id = $1`, id)

	var c covenant.Covenant
	var timeoutNS int64
	err := row.Scan(&c.ID, &c.Name, &c.ResonanceThreshold, &c.ReviewMargin, &c.VetoCapabilities,
		&c.MinQuorum, &timeoutNS, &c.Version, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get covenant %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get covenant: %w", err)
	}
	c.EvaluationTimeout = time.Duration(timeoutNS)
	return &c, nil
}
