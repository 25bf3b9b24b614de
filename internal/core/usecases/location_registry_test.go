package usecases_test

import (
	"context"
	"testing"
	"time"

	"github.com/samirrijal/trailexport/internal/core/ports"
	"github.com/samirrijal/trailexport/internal/core/usecases"
)

func TestLocationRegistry_PerSession(t *testing.T) {
	sources := map[string]*mockPositionSource{}
	reg := usecases.NewLocationRegistry(func(session string) ports.PositionSource {
		src := &mockPositionSource{}
		sources[session] = src
		return src
	}, nil, usecases.LocationConfig{}, nil)

	if reg.For("") != nil {
		t.Error("empty session must not get a provider")
	}

	a := reg.For("a")
	if reg.For("a") != a {
		t.Error("expected the same provider for a session")
	}
	b := reg.For("b")
	if a == b {
		t.Error("sessions must not share a provider")
	}

	ctx := context.Background()
	_, _ = a.Acquire(ctx, true)
	_, _ = a.Acquire(ctx, true)
	_, _ = b.Acquire(ctx, true)
	if sources["a"].calls.Load() != 1 || sources["b"].calls.Load() != 1 {
		t.Errorf("expected independent caches, got a=%d b=%d", sources["a"].calls.Load(), sources["b"].calls.Load())
	}

	reg.Forget("a")
	if reg.For("a") == a {
		t.Error("forgotten session must get a new provider")
	}
}

func TestLocationRegistry_PruneIdleSessions(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	reg := usecases.NewLocationRegistry(nil, nil, usecases.LocationConfig{}, nil).WithClock(clock.Now)

	stale := reg.For("stale")
	clock.Advance(4 * time.Minute)
	active := reg.For("active")
	clock.Advance(2 * time.Minute)

	if n := reg.Prune(5 * time.Minute); n != 1 {
		t.Fatalf("expected one idle session pruned, got %d", n)
	}
	if reg.Len() != 1 {
		t.Errorf("expected one live session, got %d", reg.Len())
	}
	if reg.For("active") != active {
		t.Error("recently used session must survive")
	}
	if reg.For("stale") == stale {
		t.Error("pruned session must get a new provider")
	}
}

func TestLocationRegistry_UseRefreshesIdleTime(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	reg := usecases.NewLocationRegistry(nil, nil, usecases.LocationConfig{}, nil).WithClock(clock.Now)

	p := reg.For("s1")
	clock.Advance(4 * time.Minute)
	reg.For("s1")
	clock.Advance(4 * time.Minute)

	if n := reg.Prune(5 * time.Minute); n != 0 {
		t.Fatalf("expected no prune, got %d", n)
	}
	if reg.For("s1") != p {
		t.Error("expected the same provider")
	}
}
