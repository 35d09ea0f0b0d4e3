// Package kdfpool bounds how many memory-hard key derivations run at once.
package kdfpool

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"

	"github.com/dmitrijs2005/redactvault/internal/cryptox"
)

// DeriveFunc matches cryptox.DeriveKey.
type DeriveFunc func(password, salt []byte, p cryptox.KdfParams) ([]byte, error)

type Pool struct {
	sem    *semaphore.Weighted
	derive DeriveFunc
}

// New returns a pool running at most workers derivations concurrently.
// workers <= 0 means GOMAXPROCS.
func New(workers int) *Pool {
	return NewWithDerive(workers, cryptox.DeriveKey)
}

// NewWithDerive is New with a custom derivation function.
func NewWithDerive(workers int, derive DeriveFunc) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{sem: semaphore.NewWeighted(int64(workers)), derive: derive}
}

// Derive waits for a free slot, honouring ctx, then derives the key. Once
// started a derivation runs to completion.
func (p *Pool) Derive(ctx context.Context, password, salt []byte, params cryptox.KdfParams) ([]byte, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)
	return p.derive(password, salt, params)
}
