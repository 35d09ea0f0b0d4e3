package vault

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/redactvault/internal/common"
	"github.com/dmitrijs2005/redactvault/internal/server/models"
)

type memoryRecord struct {
	mu    sync.Mutex
	entry models.VaultEntry
}

// MemoryRepository keeps entries in process memory. Attempt updates take a
// per-entry mutex; the map lock is held only for lookups.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]*memoryRecord
	retired map[string]struct{}
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		entries: make(map[string]*memoryRecord),
		retired: make(map[string]struct{}),
	}
}

func (r *MemoryRepository) Put(ctx context.Context, e *models.VaultEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[e.DocID]; ok {
		return common.ErrorAlreadyExists
	}
	if _, ok := r.retired[e.DocID]; ok {
		return common.ErrorAlreadyExists
	}
	r.entries[e.DocID] = &memoryRecord{entry: cloneEntry(e)}
	return nil
}

func (r *MemoryRepository) record(docID string) (*memoryRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.entries[docID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return rec, nil
}

func (r *MemoryRepository) Get(ctx context.Context, docID string) (*models.VaultEntry, error) {
	rec, err := r.record(docID)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	e := cloneEntry(&rec.entry)
	return &e, nil
}

func (r *MemoryRepository) Attempts(ctx context.Context, docID string) (*models.AttemptState, error) {
	rec, err := r.record(docID)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	return cloneAttempts(rec.entry.Attempts()), nil
}

func (r *MemoryRepository) UpdateAttempts(ctx context.Context, docID string, fn AttemptsFunc) (*models.AttemptState, error) {
	rec, err := r.record(docID)
	if err != nil {
		return nil, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	s := cloneAttempts(rec.entry.Attempts())
	if err := fn(s); err != nil {
		return nil, err
	}
	rec.entry.FailedAttempts = s.FailedAttempts
	rec.entry.LockedUntil = s.LockedUntil
	return cloneAttempts(s), nil
}

func (r *MemoryRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.DocumentInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*models.DocumentInfo
	for _, rec := range r.entries {
		e := &rec.entry
		if e.OwnerID == nil || *e.OwnerID != ownerID {
			continue
		}
		result = append(result, &models.DocumentInfo{
			DocID:     e.DocID,
			Filename:  e.Filename,
			CreatedAt: e.CreatedAt,
			ExpiresAt: e.ExpiresAt,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *MemoryRepository) DeleteExpired(ctx context.Context, before time.Time, limit int) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var keys []string
	for id, rec := range r.entries {
		if len(keys) >= limit {
			break
		}
		if !rec.entry.Expired(before) {
			continue
		}
		keys = append(keys, rec.entry.ArtifactKey)
		delete(r.entries, id)
		r.retired[id] = struct{}{}
	}
	return keys, nil
}

func cloneEntry(e *models.VaultEntry) models.VaultEntry {
	c := *e
	c.Ciphertext = append([]byte(nil), e.Ciphertext...)
	c.Salt = append([]byte(nil), e.Salt...)
	c.Nonce = append([]byte(nil), e.Nonce...)
	c.OwnerID = clonePtr(e.OwnerID)
	c.ExpiresAt = clonePtr(e.ExpiresAt)
	c.LockedUntil = clonePtr(e.LockedUntil)
	return c
}

func cloneAttempts(s *models.AttemptState) *models.AttemptState {
	c := *s
	c.LockedUntil = clonePtr(s.LockedUntil)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
