// Package jobs runs background maintenance for the vault server.
package jobs

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"github.com/dmitrijs2005/redactvault/internal/logging"
	"github.com/dmitrijs2005/redactvault/internal/server/artifacts"
	"github.com/dmitrijs2005/redactvault/internal/server/repositories/vault"
)

// Sweeper deletes entries past their retention period together with their
// redacted artifacts. Swept doc_ids remain retired in the repository.
type Sweeper struct {
	repo      vault.Repository
	artifacts artifacts.Store
	logger    logging.Logger
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

func NewSweeper(repo vault.Repository, store artifacts.Store, logger logging.Logger, interval time.Duration, batchSize int) *Sweeper {
	if batchSize < 1 {
		batchSize = 100
	}
	return &Sweeper{
		repo:      repo,
		artifacts: store,
		logger:    logger.With("module", "sweeper"),
		interval:  interval,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Run sweeps once per interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				s.logger.Error(ctx, "sweep failed", "removed", n, "error", err.Error())
			} else if n > 0 {
				s.logger.Info(ctx, "expired documents removed", "removed", n)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// Sweep removes every expired entry in batches and returns how many were
// removed. Artifact deletion failures are reported but do not stop the sweep.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	before := s.now()
	removed := 0
	var errs error

	for {
		keys, err := s.repo.DeleteExpired(ctx, before, s.batchSize)
		if err != nil {
			return removed, multierr.Append(errs, err)
		}
		removed += len(keys)

		for _, key := range keys {
			if key == "" {
				continue
			}
			errs = multierr.Append(errs, s.artifacts.Delete(ctx, key))
		}

		if len(keys) < s.batchSize {
			return removed, errs
		}
		if err := ctx.Err(); err != nil {
			return removed, multierr.Append(errs, err)
		}
	}
}
