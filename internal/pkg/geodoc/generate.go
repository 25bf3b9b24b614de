// Package geodoc renders trail tracks as KML and GPX documents.
//
// All generators are pure: identical input produces byte-identical output.
package geodoc

import (
	"github.com/samirrijal/trailexport/internal/core/domain"
)

// Generate renders coords in the requested document dialect. PNG is not a
// document dialect and is rejected with domain.ErrUnsupportedFormat.
func Generate(format domain.ExportFormat, coords []domain.Coordinate, name string, opts domain.ExportSettings, variant domain.ExportVariant, origin *domain.UserLocation) ([]byte, error) {
	switch format {
	case domain.FormatKML:
		if variant == domain.VariantTwoStage {
			return TwoStageKML(coords, name, origin)
		}
		return TrackKML(coords, name, opts, variant, origin)
	case domain.FormatGPX:
		if len(coords) == 0 {
			return nil, domain.ErrEmptyGeometry
		}
		if variant == domain.VariantTwoStage {
			return nil, domain.UnsupportedFormatError("gpx two-stage")
		}
		return TrackGPX(coords, name, opts, variant, origin)
	default:
		return nil, domain.UnsupportedFormatError(string(format))
	}
}
