// Package geocode resolves street addresses to coordinates through an
// ordered provider chain fronted by a record-store cache.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"log"

	"zoneops/internal/metrics"
	"zoneops/internal/model"
	"zoneops/internal/store"
)

// ErrNoResult marks a soft miss: the provider answered but produced no
// usable coordinate. The chain moves on to the next provider.
var ErrNoResult = errors.New("no geocode result")

// ErrMissingAPIKey is returned by key-based providers when no credential
// is configured. It is fatal for the chain only when reached, i.e. after
// every earlier provider has already missed.
var ErrMissingAPIKey = errors.New("geocoder API key not configured")

// FailedError reports that every provider in the chain missed.
type FailedError struct {
	Address string
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("geocoding failed for address %q: all providers missed", e.Address)
}

// Result is a resolved coordinate and the provider that produced it.
type Result struct {
	Lat      float64
	Lng      float64
	Provider string
}

// Provider resolves a single address or reports a miss.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, address string) (model.GeoPoint, error)
}

// Cache is the subset of the record store the chain reads and writes.
// Satisfied by store.Store.
type Cache interface {
	LookupGeocode(ctx context.Context, address string) (model.GeocodeEntry, error)
	SaveGeocode(ctx context.Context, entry model.GeocodeEntry) error
}

// Resolver is what the recalculation pass consumes.
type Resolver interface {
	Resolve(ctx context.Context, address string) (Result, error)
}

// Chain tries the cache, then each provider in order. Soft misses
// (ErrNoResult) fall through; any other provider error aborts the chain.
// Successful resolutions are written through to the cache.
type Chain struct {
	Cache     Cache
	Providers []Provider
}

func NewChain(cache Cache, providers ...Provider) *Chain {
	return &Chain{Cache: cache, Providers: providers}
}

func (c *Chain) Resolve(ctx context.Context, address string) (Result, error) {
	if entry, err := c.Cache.LookupGeocode(ctx, address); err == nil {
		metrics.GeocodeRequests.WithLabelValues("cache", "hit").Inc()
		return Result{Lat: entry.Lat, Lng: entry.Lng, Provider: entry.Provider}, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return Result{}, fmt.Errorf("geocode cache lookup %q: %w", address, err)
	}

	for _, p := range c.Providers {
		pt, err := p.Geocode(ctx, address)
		if errors.Is(err, ErrNoResult) {
			metrics.GeocodeRequests.WithLabelValues(p.Name(), "miss").Inc()
			continue
		}
		if err != nil {
			metrics.GeocodeRequests.WithLabelValues(p.Name(), "error").Inc()
			return Result{}, fmt.Errorf("provider %s: %w", p.Name(), err)
		}
		metrics.GeocodeRequests.WithLabelValues(p.Name(), "ok").Inc()
		entry := model.GeocodeEntry{Address: address, Lat: pt.Lat, Lng: pt.Lng, Provider: p.Name()}
		if err := c.Cache.SaveGeocode(ctx, entry); err != nil {
			// Cache write failure does not invalidate the resolution.
			log.Printf("geocode: cache write failed for %q: %v", address, err)
		}
		return Result{Lat: pt.Lat, Lng: pt.Lng, Provider: p.Name()}, nil
	}
	return Result{}, &FailedError{Address: address}
}
