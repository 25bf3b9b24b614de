package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/samirrijal/trailexport/internal/core/domain"
	"github.com/samirrijal/trailexport/internal/core/ports"
	"github.com/samirrijal/trailexport/internal/pkg/metrics"
	"github.com/samirrijal/trailexport/internal/pkg/telemetry"
)

// Location defaults.
const (
	DefaultLocationTTL        = 5 * time.Minute
	DefaultLocationTimeout    = 10 * time.Second
	DefaultLocationMaximumAge = 5 * time.Minute
)

// LocationConfig tunes the LocationProvider. Zero fields use the defaults.
type LocationConfig struct {
	TTL          time.Duration
	Timeout      time.Duration
	MaximumAge   time.Duration
	HighAccuracy bool
}

func (c LocationConfig) withDefaults() LocationConfig {
	if c.TTL <= 0 {
		c.TTL = DefaultLocationTTL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultLocationTimeout
	}
	if c.MaximumAge <= 0 {
		c.MaximumAge = DefaultLocationMaximumAge
	}
	return c
}

// LocationProvider acquires the user position through a PositionSource and
// keeps the last valid result in a LocationCache for the configured TTL.
type LocationProvider struct {
	source ports.PositionSource
	cache  ports.LocationCache
	cfg    LocationConfig
	now    func() time.Time
	log    *slog.Logger

	// one platform request at a time; concurrent callers share its result
	group singleflight.Group
}

// NewLocationProvider creates a provider. A nil source makes every fresh
// request fail with domain.ErrLocationUnsupported; a nil cache selects an
// in-memory slot owned by this provider.
func NewLocationProvider(source ports.PositionSource, cache ports.LocationCache, cfg LocationConfig, logger *slog.Logger) *LocationProvider {
	if cache == nil {
		cache = NewMemoryLocationCache()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LocationProvider{
		source: source,
		cache:  cache,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
		log:    logger,
	}
}

// WithClock replaces the time source. Used by tests.
func (p *LocationProvider) WithClock(now func() time.Time) *LocationProvider {
	p.now = now
	return p
}

// Acquire returns the user location. With useCache, a cached value younger
// than the TTL is returned without contacting the source.
func (p *LocationProvider) Acquire(ctx context.Context, useCache bool) (domain.UserLocation, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanLocation)
	defer span.End()

	if useCache {
		entry, ok, err := p.cache.Get(ctx)
		switch {
		case err != nil:
			p.log.Warn("location cache read failed", "error", err)
		case ok && entry.Fresh(p.now(), p.cfg.TTL) && entry.Location.Valid():
			span.SetAttributes(attribute.Bool(telemetry.AttrCacheHit, true))
			metrics.LocationRequests.WithLabelValues("cached").Inc()
			return entry.Location, nil
		}
	}
	span.SetAttributes(attribute.Bool(telemetry.AttrCacheHit, false))

	if p.source == nil {
		metrics.LocationRequests.WithLabelValues(locationErrorKind(domain.ErrLocationUnsupported)).Inc()
		return domain.UserLocation{}, domain.ErrLocationUnsupported
	}

	// The shared request is bounded by cfg.Timeout only, so one caller
	// leaving does not fail the others waiting on it.
	ch := p.group.DoChan("position", func() (any, error) {
		return p.fetch(context.WithoutCancel(ctx))
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		res.Err = classifyLocationError(ctx, ctx.Err())
	}
	if res.Err != nil {
		span.RecordError(res.Err)
		metrics.LocationRequests.WithLabelValues(locationErrorKind(res.Err)).Inc()
		return domain.UserLocation{}, res.Err
	}
	metrics.LocationRequests.WithLabelValues("fresh").Inc()
	return res.Val.(domain.UserLocation), nil
}

func (p *LocationProvider) fetch(ctx context.Context) (domain.UserLocation, error) {
	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	loc, err := p.source.CurrentPosition(reqCtx, ports.PositionRequest{
		Timeout:      p.cfg.Timeout,
		MaximumAge:   p.cfg.MaximumAge,
		HighAccuracy: p.cfg.HighAccuracy,
	})
	if err != nil {
		return domain.UserLocation{}, classifyLocationError(reqCtx, err)
	}
	if !loc.Valid() {
		return domain.UserLocation{}, fmt.Errorf("%w: invalid position (%v, %v)",
			domain.ErrLocationUnavailable, loc.Latitude, loc.Longitude)
	}

	if err := p.cache.Set(ctx, domain.CachedLocation{Location: loc, AcquiredAt: p.now()}); err != nil {
		p.log.Warn("location cache write failed", "error", err)
	}
	return loc, nil
}

// ClearCache discards the cached location.
func (p *LocationProvider) ClearCache(ctx context.Context) error {
	if err := p.cache.Clear(ctx); err != nil {
		return fmt.Errorf("clear location cache: %w", err)
	}
	return nil
}

func classifyLocationError(ctx context.Context, err error) error {
	switch {
	case domain.IsLocationError(err):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", domain.ErrLocationTimeout, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrLocationUnknown, err)
	}
}

func locationErrorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrLocationPermissionDenied):
		return "permission_denied"
	case errors.Is(err, domain.ErrLocationUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrLocationTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrLocationUnsupported):
		return "unsupported"
	default:
		return "unknown"
	}
}

// MemoryLocationCache is a process-local LocationCache.
type MemoryLocationCache struct {
	mu    sync.Mutex
	entry *domain.CachedLocation
}

// NewMemoryLocationCache returns an empty cache.
func NewMemoryLocationCache() *MemoryLocationCache {
	return &MemoryLocationCache{}
}

func (c *MemoryLocationCache) Get(_ context.Context) (domain.CachedLocation, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil {
		return domain.CachedLocation{}, false, nil
	}
	return *c.entry, true, nil
}

func (c *MemoryLocationCache) Set(_ context.Context, entry domain.CachedLocation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = &entry
	return nil
}

func (c *MemoryLocationCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = nil
	return nil
}
