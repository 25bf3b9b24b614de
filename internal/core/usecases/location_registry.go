package usecases

import (
	"log/slog"
	"sync"
	"time"

	"github.com/samirrijal/trailexport/internal/core/ports"
)

// LocationRegistry hands out one LocationProvider per client session so
// every session keeps its own cache slot. Sessions are client supplied;
// Prune and Forget keep the registry bounded.
type LocationRegistry struct {
	source func(session string) ports.PositionSource
	cache  func(session string) ports.LocationCache
	cfg    LocationConfig
	log    *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	providers map[string]*registered
}

type registered struct {
	p        *LocationProvider
	lastUsed time.Time
}

// NewLocationRegistry creates a registry. source and cache build the
// collaborators of a new session; a nil cache builder selects in-memory slots.
func NewLocationRegistry(source func(string) ports.PositionSource, cache func(string) ports.LocationCache, cfg LocationConfig, logger *slog.Logger) *LocationRegistry {
	return &LocationRegistry{
		source:    source,
		cache:     cache,
		cfg:       cfg,
		log:       logger,
		now:       time.Now,
		providers: make(map[string]*registered),
	}
}

// WithClock replaces the time source. Used by tests.
func (r *LocationRegistry) WithClock(now func() time.Time) *LocationRegistry {
	r.now = now
	return r
}

// For returns the provider of session, creating it on first use. An empty
// session yields nil, meaning "no location".
func (r *LocationRegistry) For(session string) *LocationProvider {
	if r == nil || session == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.providers[session]; ok {
		e.lastUsed = r.now()
		return e.p
	}

	var (
		src   ports.PositionSource
		cache ports.LocationCache
	)
	if r.source != nil {
		src = r.source(session)
	}
	if r.cache != nil {
		cache = r.cache(session)
	}
	logger := r.log
	if logger != nil {
		logger = logger.With("session", session)
	}
	p := NewLocationProvider(src, cache, r.cfg, logger)
	r.providers[session] = &registered{p: p, lastUsed: r.now()}
	return p
}

// Forget drops the provider of session. Its cache slot is left to expire.
func (r *LocationRegistry) Forget(session string) {
	r.mu.Lock()
	delete(r.providers, session)
	r.mu.Unlock()
}

// Prune drops providers not handed out for longer than idle and returns how
// many were removed.
func (r *LocationRegistry) Prune(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-idle)
	n := 0
	for session, e := range r.providers {
		if e.lastUsed.Before(cutoff) {
			delete(r.providers, session)
			n++
		}
	}
	return n
}

// Len returns the number of live sessions.
func (r *LocationRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.providers)
}
