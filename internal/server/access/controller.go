package access

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/redactvault/internal/logging"
	"github.com/dmitrijs2005/redactvault/internal/server/models"
	"github.com/dmitrijs2005/redactvault/internal/server/repositories/vault"
)

// AttemptsStore is the part of the vault store the controller needs.
type AttemptsStore interface {
	UpdateAttempts(ctx context.Context, docID string, fn vault.AttemptsFunc) (*models.AttemptState, error)
}

// Decision is the controller's verdict. RetryAfter is set only when an
// attempt is refused and is rounded up to whole minutes. FailedAttempts is
// the counter after the attempt was claimed.
type Decision struct {
	Allowed        bool
	RetryAfter     time.Duration
	FailedAttempts int
}

type Controller struct {
	store  AttemptsStore
	policy Policy
	logger logging.Logger
	now    func() time.Time
}

type Option func(*Controller)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

func NewController(store AttemptsStore, policy Policy, logger logging.Logger, opts ...Option) *Controller {
	c := &Controller{
		store:  store,
		policy: policy,
		logger: logger.With("module", "audit"),
		now:    time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// errLocked aborts the attempts update when the document is locked.
var errLocked = errors.New("document locked")

// Begin claims an unlock attempt before the password is evaluated. In a
// single update it refuses a locked document, or counts the attempt as a
// failure and locks the document once the threshold is reached. A correct
// password must be followed by RecordSuccess, which clears the count.
// Concurrent callers can therefore never evaluate more guesses than the
// policy allows.
func (c *Controller) Begin(ctx context.Context, docID string) (Decision, error) {
	now := c.now()
	var locked *models.AttemptState
	s, err := c.store.UpdateAttempts(ctx, docID, func(s *models.AttemptState) error {
		locked = nil
		if s.Locked(now) {
			locked = s
			return errLocked
		}
		s.FailedAttempts++
		if lock := c.policy.LockoutFor(s.FailedAttempts); lock > 0 {
			until := now.Add(lock)
			s.LockedUntil = &until
		}
		return nil
	})
	if errors.Is(err, errLocked) {
		d := Decision{RetryAfter: coarse(locked.LockedUntil.Sub(now)), FailedAttempts: locked.FailedAttempts}
		c.logger.Warn(ctx, "unlock refused, document locked", "doc_id", docID,
			"failed_attempts", locked.FailedAttempts, "retry_after", d.RetryAfter.String())
		return d, nil
	}
	if err != nil {
		return Decision{}, err
	}
	return Decision{Allowed: true, FailedAttempts: s.FailedAttempts}, nil
}

// RecordFailure writes the audit record for a wrong password on an attempt
// claimed with Begin. The attempt is already counted.
func (c *Controller) RecordFailure(ctx context.Context, docID string, d Decision) {
	c.logger.Warn(ctx, "unlock failed", "doc_id", docID,
		"failed_attempts", d.FailedAttempts, "locked", c.policy.LockoutFor(d.FailedAttempts) > 0)
}

// RecordSuccess clears the failure counter and any lock.
func (c *Controller) RecordSuccess(ctx context.Context, docID string) error {
	_, err := c.store.UpdateAttempts(ctx, docID, func(s *models.AttemptState) error {
		s.FailedAttempts = 0
		s.LockedUntil = nil
		return nil
	})
	if err != nil {
		return err
	}
	c.logger.Info(ctx, "unlock succeeded", "doc_id", docID)
	return nil
}
