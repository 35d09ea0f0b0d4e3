// Package repomanager builds the vault repository for the configured backend
// and owns its lifecycle (schema setup, connection close).
package repomanager

import (
	"context"

	"github.com/dmitrijs2005/redactvault/internal/server/repositories/vault"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Vault() vault.Repository
	Close() error
}
