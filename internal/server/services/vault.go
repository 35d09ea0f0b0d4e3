// Package services contains server-side business logic. VaultService seals
// uploaded originals under a password, serves password-free previews, and
// unlocks originals behind the access controller.
package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/dmitrijs2005/redactvault/internal/common"
	"github.com/dmitrijs2005/redactvault/internal/cryptox"
	"github.com/dmitrijs2005/redactvault/internal/logging"
	"github.com/dmitrijs2005/redactvault/internal/server/access"
	"github.com/dmitrijs2005/redactvault/internal/server/artifacts"
	"github.com/dmitrijs2005/redactvault/internal/server/config"
	"github.com/dmitrijs2005/redactvault/internal/server/kdfpool"
	"github.com/dmitrijs2005/redactvault/internal/server/models"
	"github.com/dmitrijs2005/redactvault/internal/server/repositories/vault"
)

const maxFilenameLen = 255

// UploadRequest is what the redaction producer hands over. Original and
// Password never leave the service unencrypted.
type UploadRequest struct {
	Original    []byte
	Password    []byte
	Redacted    []byte
	OwnerID     *string
	Filename    string
	ContentType string
}

type UploadResult struct {
	DocID       string
	ArtifactRef string
	ShareURL    string
}

// VaultService errors are limited to common.ErrDenied, common.ErrorNotFound,
// *common.LockedError, common.ErrTryAgain and common.ErrInvalidInput.
type VaultService struct {
	repo      vault.Repository
	artifacts artifacts.Store
	access    *access.Controller
	kdf       *kdfpool.Pool
	config    *config.Config
	logger    logging.Logger
	now       func() time.Time
}

func NewVaultService(repo vault.Repository, store artifacts.Store, ac *access.Controller,
	pool *kdfpool.Pool, cfg *config.Config, logger logging.Logger) *VaultService {
	return &VaultService{
		repo:      repo,
		artifacts: store,
		access:    ac,
		kdf:       pool,
		config:    cfg,
		logger:    logger.With("module", "vault"),
		now:       time.Now,
	}
}

// associatedData binds a ciphertext to its document and algorithms, so
// ciphertexts cannot be swapped between entries.
func associatedData(docID, cipher string, p cryptox.KdfParams) []byte {
	return []byte("redactvault:v1|" + docID + "|" + cipher + "|" + p.Algorithm)
}

// ShareURL returns the public link for docID.
func (s *VaultService) ShareURL(docID string) string {
	return strings.TrimRight(s.config.BaseURL, "/") + common.ShareRoutePrefix + docID
}

func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" {
		return ""
	}
	if len(name) > maxFilenameLen {
		name = name[:maxFilenameLen]
	}
	return name
}

func (s *VaultService) validateUpload(req *UploadRequest) error {
	switch {
	case len(req.Password) == 0:
		return fmt.Errorf("%w: password is required", common.ErrInvalidInput)
	case len(req.Password) > s.config.MaxPasswordLen:
		return fmt.Errorf("%w: password longer than %d bytes", common.ErrInvalidInput, s.config.MaxPasswordLen)
	case len(req.Original) == 0:
		return fmt.Errorf("%w: original document is empty", common.ErrInvalidInput)
	case len(req.Redacted) == 0:
		return fmt.Errorf("%w: redacted artifact is empty", common.ErrInvalidInput)
	case len(req.Original) > s.config.MaxDocumentSize || len(req.Redacted) > s.config.MaxDocumentSize:
		return fmt.Errorf("%w: document larger than %d bytes", common.ErrInvalidInput, s.config.MaxDocumentSize)
	}
	return nil
}

// Upload seals the original under the password and stores it with the
// redacted artifact. Nothing is persisted unless everything is: the artifact
// is removed again if the entry cannot be written. Once sealing is done the
// remaining writes ignore caller cancellation.
func (s *VaultService) Upload(ctx context.Context, req *UploadRequest) (*UploadResult, error) {
	if err := s.validateUpload(req); err != nil {
		return nil, err
	}

	docID := uuid.NewString()
	params := s.config.Kdf
	alg := s.config.Cipher

	salt, err := cryptox.NewSalt()
	if err != nil {
		return nil, s.internal(ctx, "salt generation failed", docID, err)
	}
	nonce, err := cryptox.NewNonce(alg)
	if err != nil {
		return nil, s.internal(ctx, "nonce generation failed", docID, err)
	}

	key, err := s.kdf.Derive(ctx, req.Password, salt, params)
	if err != nil {
		return nil, s.internal(ctx, "key derivation failed", docID, err)
	}
	defer cryptox.Wipe(key)

	ciphertext, err := cryptox.Seal(alg, key, nonce, req.Original, associatedData(docID, alg, params))
	if err != nil {
		return nil, s.internal(ctx, "sealing failed", docID, err)
	}

	commit := context.WithoutCancel(ctx)
	now := s.now().UTC()
	artifactKey := artifacts.NewKey(now)

	if err := s.artifacts.Put(commit, artifactKey, req.Redacted, req.ContentType); err != nil {
		return nil, s.internal(ctx, "artifact upload failed", docID, err)
	}

	entry := &models.VaultEntry{
		DocID:       docID,
		OwnerID:     req.OwnerID,
		Filename:    sanitizeFilename(req.Filename),
		Ciphertext:  ciphertext,
		Cipher:      alg,
		Salt:        salt,
		Nonce:       nonce,
		KdfParams:   params,
		ArtifactKey: artifactKey,
		CreatedAt:   now,
	}
	if s.config.RetentionPeriod > 0 {
		expires := now.Add(s.config.RetentionPeriod)
		entry.ExpiresAt = &expires
	}

	if err := s.repo.Put(commit, entry); err != nil {
		if delErr := s.artifacts.Delete(commit, artifactKey); delErr != nil {
			err = multierr.Append(err, delErr)
		}
		return nil, s.internal(ctx, "entry write failed", docID, err)
	}

	ref, err := s.artifacts.Ref(commit, artifactKey)
	if err != nil {
		s.logger.Warn(ctx, "artifact reference unavailable", "doc_id", docID, "error", err.Error())
	}

	s.logger.Info(ctx, "document sealed", "doc_id", docID, "cipher", alg, "kdf", params.Algorithm)

	return &UploadResult{DocID: docID, ArtifactRef: ref, ShareURL: s.ShareURL(docID)}, nil
}

// internal logs err and returns the only detail callers get for it.
func (s *VaultService) internal(ctx context.Context, msg, docID string, err error) error {
	s.logger.Error(ctx, msg, "doc_id", docID, "error", err.Error())
	return common.ErrTryAgain
}

// lookup fetches a live entry. Malformed, unknown and expired ids all come
// back as common.ErrorNotFound.
func (s *VaultService) lookup(ctx context.Context, docID string) (*models.VaultEntry, error) {
	if _, err := uuid.Parse(docID); err != nil {
		return nil, common.ErrorNotFound
	}
	entry, err := s.repo.Get(ctx, docID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, s.internal(ctx, "entry lookup failed", docID, err)
	}
	if entry.Expired(s.now()) {
		return nil, common.ErrorNotFound
	}
	return entry, nil
}

// GetPreview returns the password-free view of a document.
func (s *VaultService) GetPreview(ctx context.Context, docID string) (*models.Preview, error) {
	entry, err := s.lookup(ctx, docID)
	if err != nil {
		return nil, err
	}
	ref, err := s.artifacts.Ref(ctx, entry.ArtifactKey)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, s.internal(ctx, "artifact reference failed", docID, err)
	}
	return &models.Preview{
		DocID:       entry.DocID,
		Filename:    entry.Filename,
		ArtifactRef: ref,
		ShareURL:    s.ShareURL(entry.DocID),
		CreatedAt:   entry.CreatedAt,
	}, nil
}

// FetchArtifact returns the redacted artifact bytes.
func (s *VaultService) FetchArtifact(ctx context.Context, docID string) ([]byte, error) {
	entry, err := s.lookup(ctx, docID)
	if err != nil {
		return nil, err
	}
	data, err := s.artifacts.Get(ctx, entry.ArtifactKey)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, s.internal(ctx, "artifact download failed", docID, err)
	}
	return data, nil
}

// Unlock returns the original bytes if password is right and the document
// is not locked. The attempt is claimed and counted before any key
// derivation, so a locked document is refused without one and concurrent
// guesses cannot outrun the lockout. A store fault while claiming fails
// closed with common.ErrTryAgain.
func (s *VaultService) Unlock(ctx context.Context, docID string, password []byte) ([]byte, error) {
	entry, err := s.lookup(ctx, docID)
	if err != nil {
		return nil, err
	}

	decision, err := s.access.Begin(context.WithoutCancel(ctx), docID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, s.internal(ctx, "attempt claim failed", docID, err)
	}
	if !decision.Allowed {
		return nil, &common.LockedError{RetryAfter: decision.RetryAfter}
	}

	if len(password) == 0 || len(password) > s.config.MaxPasswordLen {
		return nil, s.deny(ctx, docID, decision)
	}

	key, err := s.kdf.Derive(ctx, password, entry.Salt, entry.KdfParams)
	if err != nil {
		return nil, s.internal(ctx, "key derivation failed", docID, err)
	}
	defer cryptox.Wipe(key)

	plaintext, err := cryptox.Open(entry.Cipher, key, entry.Nonce, entry.Ciphertext,
		associatedData(entry.DocID, entry.Cipher, entry.KdfParams))
	if err != nil {
		if errors.Is(err, cryptox.ErrIntegrity) {
			return nil, s.deny(ctx, docID, decision)
		}
		return nil, s.internal(ctx, "opening failed", docID, err)
	}

	if err := s.access.RecordSuccess(context.WithoutCancel(ctx), docID); err != nil {
		s.logger.Warn(ctx, "failed to reset attempts", "doc_id", docID, "error", err.Error())
	}
	return plaintext, nil
}

// deny audits a wrong password on a claimed attempt and returns
// common.ErrDenied.
func (s *VaultService) deny(ctx context.Context, docID string, d access.Decision) error {
	s.access.RecordFailure(ctx, docID, d)
	return common.ErrDenied
}

// ListDocuments lists the live documents uploaded by ownerID. Anonymous
// callers own nothing.
func (s *VaultService) ListDocuments(ctx context.Context, ownerID string) ([]*models.DocumentInfo, error) {
	if ownerID == "" {
		return nil, nil
	}
	items, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, s.internal(ctx, "listing failed", "", err)
	}
	now := s.now()
	result := items[:0]
	for _, it := range items {
		if it.ExpiresAt != nil && !now.Before(*it.ExpiresAt) {
			continue
		}
		result = append(result, it)
	}
	return result, nil
}
