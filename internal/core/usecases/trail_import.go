package usecases

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/text/unicode/norm"

	"github.com/samirrijal/trailexport/internal/core/domain"
	"github.com/samirrijal/trailexport/internal/pkg/geospatial"
)

// batchUpserter is implemented by repositories that store many trails in
// one round trip.
type batchUpserter interface {
	UpsertBatch(ctx context.Context, trails []domain.Trail) error
}

// ParseTrailCollection turns a GeoJSON FeatureCollection into catalog
// trails. Features without a line geometry are skipped and counted.
// Properties read: name, slug, classification, color.
func ParseTrailCollection(data []byte, classification string) (trails []domain.Trail, skipped int, err error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, 0, fmt.Errorf("decode feature collection: %w", err)
	}

	seen := make(map[string]bool, len(fc.Features))
	for i, f := range fc.Features {
		if ExtractTrack(f).Empty() {
			skipped++
			continue
		}
		geom, err := geojson.NewGeometry(f.Geometry).MarshalJSON()
		if err != nil {
			return nil, 0, fmt.Errorf("feature %d: %w", i, err)
		}

		name := strings.TrimSpace(f.Properties.MustString("name", ""))
		if name == "" {
			name = fmt.Sprintf("Trail %d", i+1)
		}
		slug := Slugify(f.Properties.MustString("slug", ""))
		if slug == "" {
			slug = Slugify(name)
		}
		if seen[slug] {
			slug = fmt.Sprintf("%s-%d", slug, i+1)
		}
		seen[slug] = true

		class := f.Properties.MustString("classification", classification)
		color := f.Properties.MustString("color", "")
		if color == "" {
			color = domain.DefaultLineColor
		}

		trails = append(trails, domain.Trail{
			Slug:           slug,
			Name:           name,
			Classification: class,
			Color:          color,
			Geometry:       geom,
		})
	}
	return trails, skipped, nil
}

// Slugify lowercases s, strips accents and joins words with dashes.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range norm.NFD.String(strings.ToLower(s)) {
		switch {
		case unicode.Is(unicode.Mn, r):
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Import stores trails, computing lengths first. Repositories that support
// it receive the whole set in one batch.
func (s *TrailService) Import(ctx context.Context, trails []domain.Trail) (int, error) {
	for i := range trails {
		t := &trails[i]
		track, err := RequireTrack(t.Geometry)
		if err != nil {
			return 0, fmt.Errorf("trail %q: %w", t.Name, err)
		}
		if t.LengthKm <= 0 {
			t.LengthKm = geospatial.TrackLengthKm(track)
		}
	}

	if b, ok := s.trails.(batchUpserter); ok {
		if err := b.UpsertBatch(ctx, trails); err != nil {
			return 0, err
		}
	} else {
		for i := range trails {
			if err := s.trails.Upsert(ctx, &trails[i]); err != nil {
				return i, err
			}
		}
	}

	if s.cache != nil {
		for _, t := range trails {
			_ = s.cache.Delete(ctx, "trails:ref:"+t.Slug)
		}
	}
	return len(trails), nil
}
