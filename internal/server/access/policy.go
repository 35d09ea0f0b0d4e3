// Package access rate-limits unlock attempts per document with a failure
// counter and an exponentially growing lockout.
package access

import (
	"errors"
	"time"
)

var ErrInvalidPolicy = errors.New("invalid lockout policy")

// Policy configures the lockout. Once FailedAttempts reaches Threshold each
// further failure locks the document for BaseLockout doubled per extra
// failure, capped at MaxLockout.
type Policy struct {
	Threshold   int
	BaseLockout time.Duration
	MaxLockout  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{Threshold: 5, BaseLockout: time.Minute, MaxLockout: time.Hour}
}

func (p Policy) Validate() error {
	if p.Threshold < 1 || p.BaseLockout <= 0 || p.MaxLockout < p.BaseLockout {
		return ErrInvalidPolicy
	}
	return nil
}

// LockoutFor returns how long a document stays locked after failed
// consecutive failures. Below the threshold it is zero.
func (p Policy) LockoutFor(failed int) time.Duration {
	n := failed - p.Threshold
	if n < 0 {
		return 0
	}
	if n >= 30 {
		return p.MaxLockout
	}
	d := p.BaseLockout << n
	if d <= 0 || d > p.MaxLockout {
		return p.MaxLockout
	}
	return d
}

// coarse rounds d up to whole minutes so callers cannot time the lock precisely.
func coarse(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return ((d + time.Minute - 1) / time.Minute) * time.Minute
}
