package repositories

import (
	"context"

	"github.com/bixapp/bix/internal/models"
)

// VideoRepository persists uploaded video records.
type VideoRepository interface {
	Create(ctx context.Context, video models.VideoRecord) error
	List(ctx context.Context, limit int) ([]models.VideoRecord, error)
}
