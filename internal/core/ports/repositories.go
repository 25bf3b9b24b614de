package ports

import (
	"context"

	"github.com/samirrijal/trailexport/internal/core/domain"
)

// TrailRepository persists the trail catalog.
type TrailRepository interface {
	Upsert(ctx context.Context, trail *domain.Trail) error
	GetByID(ctx context.Context, id string) (*domain.Trail, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Trail, error)
	List(ctx context.Context, limit, offset int) ([]domain.Trail, error)
	Count(ctx context.Context) (int, error)
}

// ExportLogRepository keeps the history of delivered artifacts.
type ExportLogRepository interface {
	Record(ctx context.Context, event *domain.ExportEvent) error
	Recent(ctx context.Context, limit int) ([]domain.ExportEvent, error)
}
