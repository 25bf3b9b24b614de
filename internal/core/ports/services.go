package ports

import (
	"context"
	"image"
	"time"

	"github.com/samirrijal/trailexport/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishExportCompleted(ctx context.Context, event *domain.ExportEvent) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// FileDelivery makes an artifact available to the user. Each artifact is
// delivered at most once.
type FileDelivery interface {
	Deliver(ctx context.Context, artifact domain.Artifact) error
}

// Prompter asks the user a yes/no question.
type Prompter interface {
	Prompt(ctx context.Context, req domain.PromptRequest) (bool, error)
}

// LinkOpener hands a URL to the user's browser or navigation app.
type LinkOpener interface {
	Open(ctx context.Context, url string) error
}

// PositionRequest carries the hints passed to the platform location service.
type PositionRequest struct {
	Timeout      time.Duration
	MaximumAge   time.Duration
	HighAccuracy bool
}

// PositionSource is the platform location service.
type PositionSource interface {
	CurrentPosition(ctx context.Context, req PositionRequest) (domain.UserLocation, error)
}

// LocationCache is the single slot holding the last acquired location.
// Get returns ok=false when the slot is empty.
type LocationCache interface {
	Get(ctx context.Context) (domain.CachedLocation, bool, error)
	Set(ctx context.Context, entry domain.CachedLocation) error
	Clear(ctx context.Context) error
}

// MapSurface is the live map renderer a snapshot is taken from. Getters and
// setters are atomic; WaitIdle and Capture may block until rendering settles.
type MapSurface interface {
	Camera() (domain.Camera, error)
	SetCamera(cam domain.Camera) error
	FitBounds(b domain.Bounds, padding float64) error
	CanvasSize() (width, height int)

	HasLayer(layerID string) bool
	PaintProperty(layerID, name string) (any, error)
	SetPaintProperty(layerID, name string, value any) error
	LayerVisibility(layerID string) (domain.Visibility, error)
	SetLayerVisibility(layerID string, v domain.Visibility) error

	SourceData(sourceID string) ([]byte, error)
	SetSourceData(sourceID string, data []byte) error

	WaitIdle(ctx context.Context) error
	Capture(ctx context.Context) (image.Image, error)
}

// RasterComposer draws the label card onto a captured frame and encodes it.
type RasterComposer interface {
	ComposePNG(frame image.Image, card domain.LabelCard) ([]byte, error)
}
