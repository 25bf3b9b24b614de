package usecases_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/samirrijal/trailexport/internal/core/domain"
	"github.com/samirrijal/trailexport/internal/core/ports"
	"github.com/samirrijal/trailexport/internal/core/usecases"
)

// --- Mock PositionSource ---

type mockPositionSource struct {
	calls             atomic.Int32
	currentPositionFn func(ctx context.Context, req ports.PositionRequest) (domain.UserLocation, error)
}

func (m *mockPositionSource) CurrentPosition(ctx context.Context, req ports.PositionRequest) (domain.UserLocation, error) {
	m.calls.Add(1)
	if m.currentPositionFn != nil {
		return m.currentPositionFn(ctx, req)
	}
	return domain.UserLocation{Latitude: 43.26, Longitude: -2.93, Accuracy: 12}, nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newProvider(src ports.PositionSource) (*usecases.LocationProvider, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	p := usecases.NewLocationProvider(src, nil, usecases.LocationConfig{}, nil).WithClock(clock.Now)
	return p, clock
}

// --- Tests ---

func TestLocationProvider_CachesWithinTTL(t *testing.T) {
	src := &mockPositionSource{}
	p, clock := newProvider(src)
	ctx := context.Background()

	first, err := p.Acquire(ctx, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	clock.Advance(4 * time.Minute)
	second, err := p.Acquire(ctx, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second != first {
		t.Errorf("expected cached %v, got %v", first, second)
	}
	if n := src.calls.Load(); n != 1 {
		t.Errorf("expected 1 platform request, got %d", n)
	}

	clock.Advance(2 * time.Minute)
	if _, err := p.Acquire(ctx, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := src.calls.Load(); n != 2 {
		t.Errorf("expected a new request after TTL, got %d requests", n)
	}
}

func TestLocationProvider_BypassCache(t *testing.T) {
	src := &mockPositionSource{}
	p, _ := newProvider(src)
	ctx := context.Background()

	_, _ = p.Acquire(ctx, true)
	_, _ = p.Acquire(ctx, false)
	if n := src.calls.Load(); n != 2 {
		t.Errorf("expected 2 requests, got %d", n)
	}
}

func TestLocationProvider_PassesRequestHints(t *testing.T) {
	src := &mockPositionSource{
		currentPositionFn: func(ctx context.Context, req ports.PositionRequest) (domain.UserLocation, error) {
			if req.Timeout != 10*time.Second {
				t.Errorf("expected 10s timeout, got %v", req.Timeout)
			}
			if req.MaximumAge != 5*time.Minute {
				t.Errorf("expected 5m maximum age, got %v", req.MaximumAge)
			}
			if _, ok := ctx.Deadline(); !ok {
				t.Error("expected request context to carry a deadline")
			}
			return domain.UserLocation{Latitude: 1, Longitude: 1}, nil
		},
	}
	p, _ := newProvider(src)
	if _, err := p.Acquire(context.Background(), true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLocationProvider_InvalidPositionNotCached(t *testing.T) {
	tests := []struct {
		name string
		loc  domain.UserLocation
	}{
		{"latitude out of range", domain.UserLocation{Latitude: 91, Longitude: 0}},
		{"longitude out of range", domain.UserLocation{Latitude: 0, Longitude: -181}},
		{"NaN", domain.UserLocation{Latitude: math.NaN(), Longitude: 0}},
		{"infinite", domain.UserLocation{Latitude: 0, Longitude: math.Inf(1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &mockPositionSource{
				currentPositionFn: func(context.Context, ports.PositionRequest) (domain.UserLocation, error) {
					return tt.loc, nil
				},
			}
			cache := usecases.NewMemoryLocationCache()
			p := usecases.NewLocationProvider(src, cache, usecases.LocationConfig{}, nil)

			_, err := p.Acquire(context.Background(), true)
			if !errors.Is(err, domain.ErrLocationUnavailable) {
				t.Errorf("expected ErrLocationUnavailable, got %v", err)
			}
			if _, ok, _ := cache.Get(context.Background()); ok {
				t.Error("invalid position was cached")
			}
		})
	}
}

func TestLocationProvider_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"permission", domain.ErrLocationPermissionDenied, domain.ErrLocationPermissionDenied},
		{"unavailable", domain.ErrLocationUnavailable, domain.ErrLocationUnavailable},
		{"deadline", context.DeadlineExceeded, domain.ErrLocationTimeout},
		{"other", errors.New("boom"), domain.ErrLocationUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &mockPositionSource{
				currentPositionFn: func(context.Context, ports.PositionRequest) (domain.UserLocation, error) {
					return domain.UserLocation{}, tt.err
				},
			}
			p, _ := newProvider(src)
			_, err := p.Acquire(context.Background(), true)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestLocationProvider_Timeout(t *testing.T) {
	src := &mockPositionSource{
		currentPositionFn: func(ctx context.Context, _ ports.PositionRequest) (domain.UserLocation, error) {
			<-ctx.Done()
			return domain.UserLocation{}, ctx.Err()
		},
	}
	p := usecases.NewLocationProvider(src, nil, usecases.LocationConfig{Timeout: 20 * time.Millisecond}, nil)

	_, err := p.Acquire(context.Background(), false)
	if !errors.Is(err, domain.ErrLocationTimeout) {
		t.Errorf("expected ErrLocationTimeout, got %v", err)
	}
}

func TestLocationProvider_NoSource(t *testing.T) {
	p, _ := newProvider(nil)
	_, err := p.Acquire(context.Background(), true)
	if !errors.Is(err, domain.ErrLocationUnsupported) {
		t.Errorf("expected ErrLocationUnsupported, got %v", err)
	}
}

func TestLocationProvider_ClearCache(t *testing.T) {
	src := &mockPositionSource{}
	p, _ := newProvider(src)
	ctx := context.Background()

	_, _ = p.Acquire(ctx, true)
	if err := p.ClearCache(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, _ = p.Acquire(ctx, true)
	if n := src.calls.Load(); n != 2 {
		t.Errorf("expected cache miss after clear, got %d requests", n)
	}
}

func TestLocationProvider_ConcurrentRefreshSharesRequest(t *testing.T) {
	release := make(chan struct{})
	src := &mockPositionSource{
		currentPositionFn: func(context.Context, ports.PositionRequest) (domain.UserLocation, error) {
			<-release
			return domain.UserLocation{Latitude: 10, Longitude: 20}, nil
		},
	}
	p, _ := newProvider(src)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Acquire(context.Background(), true); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	before := src.calls.Load()
	if before < 1 {
		t.Fatal("expected at least one platform request")
	}
	// every caller now sees the cached value
	_, _ = p.Acquire(context.Background(), true)
	if n := src.calls.Load(); n != before {
		t.Errorf("cache not populated after concurrent refresh, %d requests", n)
	}
}

func TestLocationProvider_CancelledCallerDoesNotFailOthers(t *testing.T) {
	release := make(chan struct{})
	src := &mockPositionSource{
		currentPositionFn: func(ctx context.Context, _ ports.PositionRequest) (domain.UserLocation, error) {
			select {
			case <-release:
				return domain.UserLocation{Latitude: 10, Longitude: 20}, nil
			case <-ctx.Done():
				return domain.UserLocation{}, ctx.Err()
			}
		},
	}
	p, _ := newProvider(src)

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := p.Acquire(first, false)
		firstErr <- err
	}()
	time.Sleep(20 * time.Millisecond)

	second := make(chan error, 1)
	go func() {
		_, err := p.Acquire(context.Background(), false)
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	if err := <-firstErr; err == nil {
		t.Error("expected the cancelled caller to fail")
	}
	close(release)
	if err := <-second; err != nil {
		t.Errorf("expected the waiting caller to get the shared result, got %v", err)
	}
	if n := src.calls.Load(); n != 1 {
		t.Errorf("expected one shared platform request, got %d", n)
	}
}
