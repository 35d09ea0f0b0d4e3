// Package api defines the redactvault.v1.VaultService wire contract shared by
// the gRPC server and its clients: message types, the JSON codec they travel
// in, the service descriptor and a typed client.
package api

import "time"

type UploadRequest struct {
	Original    []byte `json:"original"`
	Password    []byte `json:"password"`
	Redacted    []byte `json:"redacted"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

type UploadResponse struct {
	DocID       string `json:"doc_id"`
	ArtifactRef string `json:"artifact_ref,omitempty"`
	ShareURL    string `json:"share_url"`
}

type GetPreviewRequest struct {
	DocID string `json:"doc_id"`
}

type GetPreviewResponse struct {
	DocID       string    `json:"doc_id"`
	Filename    string    `json:"filename,omitempty"`
	ArtifactRef string    `json:"artifact_ref"`
	ShareURL    string    `json:"share_url"`
	CreatedAt   time.Time `json:"created_at"`
}

type FetchArtifactRequest struct {
	DocID string `json:"doc_id"`
}

type FetchArtifactResponse struct {
	Data []byte `json:"data"`
}

type UnlockRequest struct {
	DocID    string `json:"doc_id"`
	Password []byte `json:"password"`
}

type UnlockResponse struct {
	Original []byte `json:"original"`
}

type ListDocumentsRequest struct{}

type Document struct {
	DocID     string     `json:"doc_id"`
	Filename  string     `json:"filename,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type ListDocumentsResponse struct {
	Documents []Document `json:"documents"`
}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}
