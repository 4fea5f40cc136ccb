package catalog

import (
	"context"
	"fmt"

	"github.com/bixapp/bix/internal/models"
)

// UploadLister lists the newest limit user-uploaded videos, oldest first.
type UploadLister interface {
	List(ctx context.Context, limit int) ([]models.VideoRecord, error)
}

// Library combines the seed catalog with uploaded videos.
type Library struct {
	seed    *Catalog
	uploads UploadLister
	limit   int
}

// NewLibrary returns a Library. uploads may be nil, in which case only the
// seed records are served.
func NewLibrary(seed *Catalog, uploads UploadLister, limit int) *Library {
	if seed == nil {
		seed = New(nil)
	}
	if limit <= 0 {
		limit = 500
	}
	return &Library{seed: seed, uploads: uploads, limit: limit}
}

// Snapshot returns the current catalog: seed records first, then uploads.
func (l *Library) Snapshot(ctx context.Context) (*Catalog, error) {
	if l.uploads == nil {
		return l.seed, nil
	}
	uploaded, err := l.uploads.List(ctx, l.limit)
	if err != nil {
		return nil, fmt.Errorf("list uploaded videos: %w", err)
	}
	return l.seed.With(uploaded...), nil
}
