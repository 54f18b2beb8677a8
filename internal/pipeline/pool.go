package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"videojobs/internal/domain"
	"videojobs/internal/infra"
)

const defaultPollInterval = 2 * time.Second

// Pool runs a fixed number of workers that claim queued jobs one at a time.
type Pool struct {
	ledger       *Ledger
	orchestrator *Orchestrator
	size         int
	pollInterval time.Duration
	logger       infra.Logger
}

// NewPool builds a worker pool.
func NewPool(ledger *Ledger, orchestrator *Orchestrator, size int, pollInterval time.Duration, logger infra.Logger) *Pool {
	if size < 1 {
		size = 1
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Pool{
		ledger:       ledger,
		orchestrator: orchestrator,
		size:         size,
		pollInterval: pollInterval,
		logger:       logger,
	}
}

// Run blocks until ctx is cancelled.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.Info().Int("workers", p.size).Dur("poll_interval", p.pollInterval).Msg("worker: pool started")
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.size; i++ {
		id := i
		g.Go(func() error { return p.work(gctx, id) })
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (p *Pool) work(ctx context.Context, id int) error {
	log := p.logger.With().Int("worker", id).Logger()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		processed, err := p.RunOnce(ctx)
		if err != nil {
			log.Error().Err(err).Msg("worker: failed to claim job")
		}
		if processed {
			continue
		}
		if err := sleepContext(ctx, p.pollInterval); err != nil {
			return err
		}
	}
}

// RunOnce claims and processes a single job. It reports false when the queue
// was empty.
func (p *Pool) RunOnce(ctx context.Context) (bool, error) {
	job, err := p.ledger.Claim(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("claim job: %w", err)
	}
	if err := p.orchestrator.Process(ctx, job); err != nil {
		p.logger.Warn().Err(err).Str("job_id", job.ID).Msg("worker: job failed")
	}
	return true, nil
}
