// Package vault persists vault entries and their attempt bookkeeping.
package vault

import (
	"context"
	"time"

	"github.com/dmitrijs2005/redactvault/internal/server/models"
)

// AttemptsFunc mutates an attempt state in place. Returning an error aborts
// the update and leaves the stored state untouched.
type AttemptsFunc func(state *models.AttemptState) error

type Repository interface {
	// Put stores a new entry. It fails with common.ErrorAlreadyExists if the
	// doc_id is or ever was in use.
	Put(ctx context.Context, entry *models.VaultEntry) error
	// Get returns the entry or common.ErrorNotFound.
	Get(ctx context.Context, docID string) (*models.VaultEntry, error)
	Attempts(ctx context.Context, docID string) (*models.AttemptState, error)
	// UpdateAttempts runs fn on the current state and stores the result.
	// Concurrent updates of one doc_id are serialised.
	UpdateAttempts(ctx context.Context, docID string, fn AttemptsFunc) (*models.AttemptState, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.DocumentInfo, error)
	// DeleteExpired removes up to limit entries whose expiry is at or before
	// `before` and returns their artifact keys. Removed doc_ids stay retired.
	DeleteExpired(ctx context.Context, before time.Time, limit int) ([]string, error)
}
