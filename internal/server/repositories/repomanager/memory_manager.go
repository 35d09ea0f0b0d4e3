package repomanager

import (
	"context"

	"github.com/dmitrijs2005/redactvault/internal/server/repositories/vault"
)

// MemoryRepositoryManager keeps the vault in process memory. Everything is
// lost on restart.
type MemoryRepositoryManager struct {
	repo *vault.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{repo: vault.NewMemoryRepository()}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context) error { return nil }

func (m *MemoryRepositoryManager) Vault() vault.Repository { return m.repo }

func (m *MemoryRepositoryManager) Close() error { return nil }
