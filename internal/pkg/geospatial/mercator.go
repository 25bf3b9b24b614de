package geospatial

import (
	"math"

	"github.com/samirrijal/trailexport/internal/core/domain"
)

// TileSize is the pixel width of a zoom-0 Web Mercator world.
const TileSize = 512.0

// maxMercatorLat clips latitudes the projection cannot represent.
const maxMercatorLat = 85.0511287798

// Project converts a coordinate to world pixel space at the given zoom.
func Project(c domain.Coordinate, zoom float64) (x, y float64) {
	lat := math.Max(-maxMercatorLat, math.Min(maxMercatorLat, c.Lat))
	sinLat := math.Sin(toRad(lat))
	scale := TileSize * math.Exp2(zoom)
	x = (c.Lon + 180.0) / 360.0 * scale
	y = (0.5 - math.Log((1.0+sinLat)/(1.0-sinLat))/(4.0*math.Pi)) * scale
	return x, y
}

// Unproject is the inverse of Project.
func Unproject(x, y, zoom float64) domain.Coordinate {
	scale := TileSize * math.Exp2(zoom)
	lon := x/scale*360.0 - 180.0
	n := math.Pi - 2.0*math.Pi*y/scale
	lat := 180.0 / math.Pi * math.Atan(math.Sinh(n))
	return domain.Coordinate{Lon: lon, Lat: lat}
}

// FitZoom returns the camera that frames b inside a width x height viewport
// leaving padding pixels on each side. The result is north-up and flat.
func FitZoom(b domain.Bounds, width, height int, padding, maxZoom float64) domain.Camera {
	availW := float64(width) - 2*padding
	availH := float64(height) - 2*padding
	center := b.Center()
	if availW <= 0 || availH <= 0 {
		return domain.Camera{Center: center}
	}

	x0, y0 := Project(domain.Coordinate{Lon: b.MinLon, Lat: b.MaxLat}, 0)
	x1, y1 := Project(domain.Coordinate{Lon: b.MaxLon, Lat: b.MinLat}, 0)
	spanX, spanY := math.Abs(x1-x0), math.Abs(y1-y0)

	zoom := maxZoom
	if spanX > 0 || spanY > 0 {
		zx, zy := math.Inf(1), math.Inf(1)
		if spanX > 0 {
			zx = math.Log2(availW / spanX)
		}
		if spanY > 0 {
			zy = math.Log2(availH / spanY)
		}
		zoom = math.Min(math.Min(zx, zy), maxZoom)
	}
	if zoom < 0 {
		zoom = 0
	}

	cx, cy := (x0+x1)/2, (y0+y1)/2
	return domain.Camera{Center: Unproject(cx, cy, 0), Zoom: zoom}
}
