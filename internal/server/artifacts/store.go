// Package artifacts stores the redacted artifacts. They carry no secrets, so
// the store hands out plain references (presigned URLs) to them.
package artifacts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get returns common.ErrorNotFound for unknown keys.
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// Ref returns a reference a client can fetch the artifact with.
	Ref(ctx context.Context, key string) (string, error)
}

// NewKey returns a random object key under a date prefix. Keys never depend
// on filenames or content.
func NewKey(now time.Time) string {
	return fmt.Sprintf("artifacts/%04d/%02d/%02d/%v", now.Year(), now.Month(), now.Day(), uuid.New())
}
