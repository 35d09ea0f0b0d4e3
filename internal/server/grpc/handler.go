package grpc

import (
	"context"

	"github.com/dmitrijs2005/redactvault/internal/api"
	"github.com/dmitrijs2005/redactvault/internal/cryptox"
	"github.com/dmitrijs2005/redactvault/internal/server/services"
)

func (s *GRPCServer) Upload(ctx context.Context, req *api.UploadRequest) (*api.UploadResponse, error) {
	defer cryptox.Wipe(req.Password)

	in := &services.UploadRequest{
		Original:    req.Original,
		Password:    req.Password,
		Redacted:    req.Redacted,
		Filename:    req.Filename,
		ContentType: req.ContentType,
	}
	if userID, ok := userIDFromContext(ctx); ok {
		in.OwnerID = &userID
	}

	res, err := s.vault.Upload(ctx, in)
	if err != nil {
		return nil, toStatus(err)
	}

	return &api.UploadResponse{DocID: res.DocID, ArtifactRef: res.ArtifactRef, ShareURL: res.ShareURL}, nil
}

func (s *GRPCServer) GetPreview(ctx context.Context, req *api.GetPreviewRequest) (*api.GetPreviewResponse, error) {
	p, err := s.vault.GetPreview(ctx, req.DocID)
	if err != nil {
		return nil, toStatus(err)
	}

	return &api.GetPreviewResponse{
		DocID:       p.DocID,
		Filename:    p.Filename,
		ArtifactRef: p.ArtifactRef,
		ShareURL:    p.ShareURL,
		CreatedAt:   p.CreatedAt,
	}, nil
}

func (s *GRPCServer) FetchArtifact(ctx context.Context, req *api.FetchArtifactRequest) (*api.FetchArtifactResponse, error) {
	data, err := s.vault.FetchArtifact(ctx, req.DocID)
	if err != nil {
		return nil, toStatus(err)
	}

	return &api.FetchArtifactResponse{Data: data}, nil
}

func (s *GRPCServer) Unlock(ctx context.Context, req *api.UnlockRequest) (*api.UnlockResponse, error) {
	defer cryptox.Wipe(req.Password)

	original, err := s.vault.Unlock(ctx, req.DocID, req.Password)
	if err != nil {
		return nil, toStatus(err)
	}

	return &api.UnlockResponse{Original: original}, nil
}

func (s *GRPCServer) ListDocuments(ctx context.Context, req *api.ListDocumentsRequest) (*api.ListDocumentsResponse, error) {
	userID, _ := userIDFromContext(ctx)

	items, err := s.vault.ListDocuments(ctx, userID)
	if err != nil {
		return nil, toStatus(err)
	}

	resp := &api.ListDocumentsResponse{Documents: make([]api.Document, 0, len(items))}
	for _, it := range items {
		resp.Documents = append(resp.Documents, api.Document{
			DocID:     it.DocID,
			Filename:  it.Filename,
			CreatedAt: it.CreatedAt,
			ExpiresAt: it.ExpiresAt,
		})
	}
	return resp, nil
}

func (s *GRPCServer) Ping(ctx context.Context, req *api.PingRequest) (*api.PingResponse, error) {
	return &api.PingResponse{Status: "OK"}, nil
}
