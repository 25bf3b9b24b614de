package usecases

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/samirrijal/trailexport/internal/core/domain"
	"github.com/samirrijal/trailexport/internal/core/ports"
	"github.com/samirrijal/trailexport/internal/pkg/geospatial"
)

// TrailService serves the trail catalog and exports catalog entries.
type TrailService struct {
	trails  ports.TrailRepository
	cache   ports.CacheService
	exports *ExportService
}

// NewTrailService creates a new TrailService. cache may be nil.
func NewTrailService(trails ports.TrailRepository, cache ports.CacheService, exports *ExportService) *TrailService {
	return &TrailService{trails: trails, cache: cache, exports: exports}
}

// List returns a page of trails.
func (s *TrailService) List(ctx context.Context, limit, offset int) ([]domain.Trail, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.trails.List(ctx, limit, offset)
}

// Count returns the number of trails in the catalog.
func (s *TrailService) Count(ctx context.Context) (int, error) {
	return s.trails.Count(ctx)
}

// Get resolves ref as a trail UUID or, failing that, as a slug.
func (s *TrailService) Get(ctx context.Context, ref string) (*domain.Trail, error) {
	cacheKey := "trails:ref:" + ref
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var t domain.Trail
			if err := json.Unmarshal(data, &t); err == nil {
				return &t, nil
			}
		}
	}

	var (
		t   *domain.Trail
		err error
	)
	if _, perr := uuid.Parse(ref); perr == nil {
		t, err = s.trails.GetByID(ctx, ref)
	} else {
		t, err = s.trails.GetBySlug(ctx, ref)
	}
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, domain.ErrTrailNotFound
	}

	// 10 min, the catalog changes only on import
	if s.cache != nil {
		if data, err := json.Marshal(t); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, 600)
		}
	}
	return t, nil
}

// Save stores a trail, filling in its length from the geometry when unset.
func (s *TrailService) Save(ctx context.Context, t *domain.Trail) error {
	track, err := RequireTrack(t.Geometry)
	if err != nil {
		return fmt.Errorf("trail %q: %w", t.Name, err)
	}
	if t.LengthKm <= 0 {
		t.LengthKm = geospatial.TrackLengthKm(track)
	}
	if err := s.trails.Upsert(ctx, t); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Delete(ctx, "trails:ref:"+t.ID)
		_ = s.cache.Delete(ctx, "trails:ref:"+t.Slug)
	}
	return nil
}

// Export exports the trail identified by ref. The trail colour and length
// feed the snapshot label card unless opts already set them.
func (s *TrailService) Export(ctx context.Context, ref, format string, opts ExportOptions) (*domain.Trail, *domain.ExportResult, error) {
	t, err := s.Get(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	if opts.TrackColor == "" {
		opts.TrackColor = t.Color
	}
	if opts.LengthKm <= 0 {
		opts.LengthKm = t.LengthKm
	}
	res, err := s.exports.Export(ctx, []byte(t.Geometry), t.Name, format, opts)
	if err != nil {
		return t, nil, err
	}
	return t, res, nil
}

// NavigationLink returns the directions link for the trail identified by ref.
func (s *TrailService) NavigationLink(ctx context.Context, ref string, origin *domain.UserLocation) (string, error) {
	t, err := s.Get(ctx, ref)
	if err != nil {
		return "", err
	}
	return s.exports.NavigationLink(ctx, []byte(t.Geometry), origin)
}
