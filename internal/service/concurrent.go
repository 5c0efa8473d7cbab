package service

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/concordat/concord/internal/domain/evaluation"
)

// concurrentStrategy evaluates all eligible agents in parallel, bounded by
// a worker pool. No agent sees another's verdict; the scorer's fixed
// summation order makes the result independent of completion order.
//
// The strategy returns once MinQuorum usable verdicts are in, or when the
// covenant's evaluation timeout elapses, whichever comes first. Outstanding
// workers keep running and their evaluations are still recorded as late
// arrivals, but a node finalized in the meantime is never reopened.
type concurrentStrategy struct {
	c        *Coordinator
	poolSize int
}

func (s *concurrentStrategy) Name() string { return "concurrent" }

func (s *concurrentStrategy) Run(ctx context.Context, rc *runContext) error {
	sem := semaphore.NewWeighted(int64(s.poolSize))
	done := make(chan evaluation.Evaluation, len(rc.agents))

	for _, ag := range rc.agents {
		go func() {
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)
			// Skips are recorded inside evaluateAgent; a store error here
			// only costs this one agent's evaluation.
			ev, _ := s.c.evaluateAgent(ctx, rc, ag, 1, 0, nil)
			done <- ev
		}()
	}

	timeout := time.After(rc.covenant.EvaluationTimeout)
	var usable int
	for received := 0; received < len(rc.agents); received++ {
		select {
		case ev := <-done:
			if ev.Usable() {
				usable++
			}
			if usable >= rc.covenant.MinQuorum {
				return nil
			}
		case <-timeout:
			// Proceed to scoring with whatever arrived.
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}
