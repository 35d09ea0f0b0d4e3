package vault

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/redactvault/internal/common"
	"github.com/dmitrijs2005/redactvault/internal/cryptox"
	"github.com/dmitrijs2005/redactvault/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

func sampleEntry() *models.VaultEntry {
	return &models.VaultEntry{
		DocID:       "6f1c2c1e-8d7a-4b7e-9a40-2f5b8f0d7a11",
		Filename:    "report.pdf",
		Ciphertext:  []byte("ct"),
		Cipher:      cryptox.CipherAES256GCM,
		Salt:        []byte("salt-salt-salt-salt"),
		Nonce:       []byte("nonce-nonce-"),
		KdfParams:   cryptox.DefaultKdfParams(),
		ArtifactKey: "artifacts/2025/01/01/x",
		CreatedAt:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestPut_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	e := sampleEntry()
	mock.ExpectExec(`INSERT INTO vault_entries .* WHERE NOT EXISTS \(SELECT 1 FROM retired_doc_ids`).
		WithArgs(e.DocID, sqlmock.AnyArg(), e.Filename, e.Ciphertext, e.Cipher, e.Salt, e.Nonce,
			sqlmock.AnyArg(), e.ArtifactKey, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Put(context.Background(), e))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPut_UniqueViolation(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO vault_entries`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Put(context.Background(), sampleEntry())
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestPut_RetiredDocID(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO vault_entries`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Put(context.Background(), sampleEntry())
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestPut_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO vault_entries`).WillReturnError(errors.New("boom"))

	err := repo.Put(context.Background(), sampleEntry())
	require.Error(t, err)
	assert.NotErrorIs(t, err, common.ErrorAlreadyExists)
}

func TestGet_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	e := sampleEntry()
	rows := sqlmock.NewRows([]string{
		"doc_id", "owner_id", "filename", "ciphertext", "cipher", "salt", "nonce", "kdf_params",
		"artifact_key", "created_at", "expires_at", "failed_attempts", "locked_until",
	}).AddRow(e.DocID, "u1", e.Filename, e.Ciphertext, e.Cipher, e.Salt, e.Nonce,
		[]byte(`{"algorithm":"argon2id","iterations":3,"memory_kib":65536,"parallelism":4,"key_len":32}`),
		e.ArtifactKey, e.CreatedAt, nil, 2, nil)

	mock.ExpectQuery(`SELECT doc_id, owner_id, .* FROM vault_entries WHERE doc_id = \$1`).
		WithArgs(e.DocID).
		WillReturnRows(rows)

	got, err := repo.Get(context.Background(), e.DocID)
	require.NoError(t, err)
	assert.Equal(t, e.DocID, got.DocID)
	require.NotNil(t, got.OwnerID)
	assert.Equal(t, "u1", *got.OwnerID)
	assert.Equal(t, cryptox.DefaultKdfParams(), got.KdfParams)
	assert.Equal(t, 2, got.FailedAttempts)
	assert.Nil(t, got.ExpiresAt)
	assert.Nil(t, got.LockedUntil)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGet_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT doc_id`).WithArgs("x").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), "x")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestAttempts(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	until := time.Date(2025, 1, 1, 0, 5, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT failed_attempts, locked_until FROM vault_entries WHERE doc_id = \$1$`).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"failed_attempts", "locked_until"}).AddRow(5, until))

	s, err := repo.Attempts(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, 5, s.FailedAttempts)
	require.NotNil(t, s.LockedUntil)
	assert.True(t, until.Equal(*s.LockedUntil))
}

func TestUpdateAttempts_Commit(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT failed_attempts, locked_until FROM vault_entries WHERE doc_id = \$1 FOR UPDATE`).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"failed_attempts", "locked_until"}).AddRow(2, nil))
	mock.ExpectExec(`UPDATE vault_entries SET failed_attempts = \$2, locked_until = \$3 WHERE doc_id = \$1`).
		WithArgs("d1", 3, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	s, err := repo.UpdateAttempts(context.Background(), "d1", func(s *models.AttemptState) error {
		s.FailedAttempts++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, s.FailedAttempts)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAttempts_FnErrorRollsBack(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"failed_attempts", "locked_until"}).AddRow(0, nil))
	mock.ExpectRollback()

	boom := errors.New("boom")
	_, err := repo.UpdateAttempts(context.Background(), "d1", func(*models.AttemptState) error { return boom })
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAttempts_NotFound(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WithArgs("d1").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.UpdateAttempts(context.Background(), "d1", func(*models.AttemptState) error { return nil })
	assert.ErrorIs(t, err, common.ErrorNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByOwner(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT doc_id, filename, created_at, expires_at FROM vault_entries\s+WHERE owner_id = \$1`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"doc_id", "filename", "created_at", "expires_at"}).
			AddRow("d1", "a.pdf", created, nil).
			AddRow("d2", "b.pdf", created, created.Add(time.Hour)))

	items, err := repo.ListByOwner(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "d1", items[0].DocID)
	assert.Nil(t, items[0].ExpiresAt)
	require.NotNil(t, items[1].ExpiresAt)
}

func TestDeleteExpired(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`WITH expired AS \(\s+DELETE FROM vault_entries .* INSERT INTO retired_doc_ids .* SELECT artifact_key FROM expired`).
		WithArgs(now, 10).
		WillReturnRows(sqlmock.NewRows([]string{"artifact_key"}).AddRow("k1").AddRow("k2"))

	keys, err := repo.DeleteExpired(context.Background(), now, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "k2"}, keys)
	require.NoError(t, mock.ExpectationsWereMet())
}
