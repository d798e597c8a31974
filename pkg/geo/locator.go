package geo

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultMaxCacheAge is the acceptable age of a previously resolved location.
const DefaultMaxCacheAge = 2 * time.Minute

// Locator resolves the device's current coordinates. Implementations are
// one-shot and best-effort: a nil Coordinates with a nil error means the
// location is unknown, which callers must treat as a non-fatal outcome.
type Locator interface {
	Locate(ctx context.Context) (*Coordinates, error)
}

// NoopLocator never resolves a location.
type NoopLocator struct{}

func NewNoopLocator() *NoopLocator {
	return &NoopLocator{}
}

func (l *NoopLocator) Locate(ctx context.Context) (*Coordinates, error) {
	return nil, nil
}

// StaticLocator always returns a fixed location. Useful for tests and for
// entry points that already carry coordinates.
type StaticLocator struct {
	coords Coordinates
}

func NewStaticLocator(coords Coordinates) *StaticLocator {
	return &StaticLocator{coords: coords}
}

func (l *StaticLocator) Locate(ctx context.Context) (*Coordinates, error) {
	c := l.coords
	return &c, nil
}

// CachedLocator wraps another locator and serves a previously resolved
// location while it is younger than maxAge.
type CachedLocator struct {
	inner   Locator
	maxAge  time.Duration
	mu      sync.Mutex
	cached  *Coordinates
	fetched time.Time
	now     func() time.Time
}

func NewCachedLocator(inner Locator, maxAge time.Duration) *CachedLocator {
	if maxAge <= 0 {
		maxAge = DefaultMaxCacheAge
	}
	return &CachedLocator{
		inner:  inner,
		maxAge: maxAge,
		now:    time.Now,
	}
}

func (l *CachedLocator) Locate(ctx context.Context) (*Coordinates, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cached != nil && l.now().Sub(l.fetched) <= l.maxAge {
		c := *l.cached
		return &c, nil
	}

	coords, err := l.inner.Locate(ctx)
	if err != nil {
		slog.Warn("Failed to resolve device location", "err", err)
		return nil, err
	}
	if coords == nil {
		return nil, nil
	}

	l.cached = coords
	l.fetched = l.now()
	c := *coords
	return &c, nil
}
