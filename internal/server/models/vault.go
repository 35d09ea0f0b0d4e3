// Package models defines server-side data models persisted by the vault store.
package models

import (
	"time"

	"github.com/dmitrijs2005/redactvault/internal/cryptox"
)

// VaultEntry is one protected document. Ciphertext, salt, nonce and KDF
// parameters are written together and are immutable after creation; only the
// attempt bookkeeping changes.
type VaultEntry struct {
	DocID string
	// OwnerID is nil for anonymous uploads.
	OwnerID  *string
	Filename string

	Ciphertext []byte
	Cipher     string
	Salt       []byte
	Nonce      []byte
	KdfParams  cryptox.KdfParams

	// ArtifactKey locates the redacted artifact in the artifact store.
	ArtifactKey string

	CreatedAt time.Time
	ExpiresAt *time.Time

	FailedAttempts int
	LockedUntil    *time.Time
}

// Expired reports whether e has passed its retention deadline at now.
func (e *VaultEntry) Expired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

// Attempts returns the entry's current attempt bookkeeping.
func (e *VaultEntry) Attempts() *AttemptState {
	return &AttemptState{DocID: e.DocID, FailedAttempts: e.FailedAttempts, LockedUntil: e.LockedUntil}
}

// AttemptState is the mutable part of an entry.
type AttemptState struct {
	DocID          string
	FailedAttempts int
	LockedUntil    *time.Time
}

// Locked reports whether the state forbids attempts at now.
func (s *AttemptState) Locked(now time.Time) bool {
	return s.LockedUntil != nil && now.Before(*s.LockedUntil)
}

// Preview is the password-free view of an entry.
type Preview struct {
	DocID       string
	Filename    string
	ArtifactRef string
	ShareURL    string
	CreatedAt   time.Time
}

// DocumentInfo is a listing row; it never carries ciphertext.
type DocumentInfo struct {
	DocID     string
	Filename  string
	CreatedAt time.Time
	ExpiresAt *time.Time
}
