package vault

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/redactvault/internal/common"
	"github.com/dmitrijs2005/redactvault/internal/dbx"
	"github.com/dmitrijs2005/redactvault/internal/server/models"
)

// PostgresRepository stores entries in the vault_entries table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository constructs a repository bound to db.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Put inserts the entry as a single row, so ciphertext, salt, nonce and KDF
// parameters become visible together or not at all.
func (r *PostgresRepository) Put(ctx context.Context, e *models.VaultEntry) error {
	params, err := json.Marshal(e.KdfParams)
	if err != nil {
		return fmt.Errorf("failed to encode kdf params: %w", err)
	}

	query := `
		INSERT INTO vault_entries (doc_id, owner_id, filename, ciphertext, cipher, salt, nonce, kdf_params, artifact_key, created_at, expires_at)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		WHERE NOT EXISTS (SELECT 1 FROM retired_doc_ids WHERE doc_id = $1)
	`
	res, err := r.db.ExecContext(ctx, query,
		e.DocID, e.OwnerID, e.Filename, e.Ciphertext, e.Cipher, e.Salt, e.Nonce, string(params),
		e.ArtifactKey, e.CreatedAt, e.ExpiresAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorAlreadyExists
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, docID string) (*models.VaultEntry, error) {
	query := `
		SELECT doc_id, owner_id, filename, ciphertext, cipher, salt, nonce, kdf_params, artifact_key,
			created_at, expires_at, failed_attempts, locked_until
		FROM vault_entries WHERE doc_id = $1
	`
	var (
		e      models.VaultEntry
		params []byte
	)
	err := r.db.QueryRowContext(ctx, query, docID).Scan(
		&e.DocID, &e.OwnerID, &e.Filename, &e.Ciphertext, &e.Cipher, &e.Salt, &e.Nonce, &params,
		&e.ArtifactKey, &e.CreatedAt, &e.ExpiresAt, &e.FailedAttempts, &e.LockedUntil,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select entry: %w", err)
	}
	if err := json.Unmarshal(params, &e.KdfParams); err != nil {
		return nil, fmt.Errorf("failed to decode kdf params: %w", err)
	}
	return &e, nil
}

func (r *PostgresRepository) Attempts(ctx context.Context, docID string) (*models.AttemptState, error) {
	return selectAttempts(ctx, r.db, docID, false)
}

// UpdateAttempts locks the row with SELECT ... FOR UPDATE for the duration
// of fn, so two concurrent failures both count.
func (r *PostgresRepository) UpdateAttempts(ctx context.Context, docID string, fn AttemptsFunc) (*models.AttemptState, error) {
	var state *models.AttemptState
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		s, err := selectAttempts(ctx, tx, docID, true)
		if err != nil {
			return err
		}
		if err := fn(s); err != nil {
			return err
		}
		query := `UPDATE vault_entries SET failed_attempts = $2, locked_until = $3 WHERE doc_id = $1`
		if _, err := tx.ExecContext(ctx, query, docID, s.FailedAttempts, s.LockedUntil); err != nil {
			return fmt.Errorf("failed to update attempts: %w", err)
		}
		state = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return state, nil
}

func selectAttempts(ctx context.Context, db dbx.DBTX, docID string, forUpdate bool) (*models.AttemptState, error) {
	query := `SELECT failed_attempts, locked_until FROM vault_entries WHERE doc_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	s := models.AttemptState{DocID: docID}
	err := db.QueryRowContext(ctx, query, docID).Scan(&s.FailedAttempts, &s.LockedUntil)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to select attempts: %w", err)
	}
	return &s, nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.DocumentInfo, error) {
	query := `
		SELECT doc_id, filename, created_at, expires_at FROM vault_entries
		WHERE owner_id = $1 ORDER BY created_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to select entries: %w", err)
	}
	defer rows.Close()

	var result []*models.DocumentInfo
	for rows.Next() {
		var item models.DocumentInfo
		if err := rows.Scan(&item.DocID, &item.Filename, &item.CreatedAt, &item.ExpiresAt); err != nil {
			return nil, err
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// DeleteExpired deletes a batch and records the doc_ids as retired in the
// same statement.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, before time.Time, limit int) ([]string, error) {
	query := `
		WITH expired AS (
			DELETE FROM vault_entries WHERE doc_id IN (
				SELECT doc_id FROM vault_entries WHERE expires_at <= $1
				ORDER BY expires_at LIMIT $2 FOR UPDATE SKIP LOCKED
			) RETURNING doc_id, artifact_key
		), retired AS (
			INSERT INTO retired_doc_ids (doc_id) SELECT doc_id FROM expired ON CONFLICT DO NOTHING
		)
		SELECT artifact_key FROM expired
	`
	rows, err := r.db.QueryContext(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to delete expired entries: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
