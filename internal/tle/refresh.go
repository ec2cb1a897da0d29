package tle

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/star/trajevent/internal/metrics"
)

// Refresher keeps a Store loaded from the on-disk cache and, when a
// Fetcher is set, from the network.
type Refresher struct {
	Store   *Store
	Cache   *Cache
	Fetcher *Fetcher // nil disables network refresh
	// MaxAge is both the staleness threshold and the refresh interval.
	MaxAge time.Duration
	Logger *slog.Logger
}

func (r *Refresher) publish(source string, fetchedAt time.Time, data []byte) (int, error) {
	entries, err := Parse(bytes.NewReader(data), r.Logger)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, fmt.Errorf("%s: no valid TLE entries", source)
	}
	r.Store.Set(NewDataset(source, fetchedAt, entries))
	metrics.SetTLEDataset(len(entries), time.Since(fetchedAt).Seconds())
	return len(entries), nil
}

// LoadCache publishes the newest cached file, if any.
func (r *Refresher) LoadCache() error {
	data, ts, err := r.Cache.LoadLatest()
	if err != nil {
		return err
	}
	n, err := r.publish("cache", ts, data)
	if err != nil {
		return fmt.Errorf("cached TLE data: %w", err)
	}
	r.Logger.Info("loaded TLE data from cache", "count", n, "cached_at", ts.Format(time.RFC3339))
	return nil
}

// Refresh fetches, caches and publishes a new dataset.
func (r *Refresher) Refresh(ctx context.Context) error {
	if r.Fetcher == nil {
		return fmt.Errorf("TLE fetch disabled")
	}
	data, err := r.Fetcher.Fetch(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	n, err := r.publish(r.Fetcher.SourceURL(), now, data)
	if err != nil {
		return err
	}
	if err := r.Cache.Write(data, now); err != nil {
		r.Logger.Warn("failed to cache TLE data", "error", err)
	}
	r.Logger.Info("TLE data refreshed", "count", n, "source", r.Fetcher.SourceURL())
	return nil
}

func (r *Refresher) stale() bool {
	age := r.Store.AgeSeconds()
	return age < 0 || age > r.MaxAge.Seconds()
}

// Run refreshes a missing or stale dataset, then again every MaxAge, and
// keeps the age gauge current until ctx is done.
func (r *Refresher) Run(ctx context.Context) {
	refresh := func() {
		if r.Fetcher == nil || !r.stale() {
			return
		}
		if err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
			r.Logger.Warn("TLE refresh failed", "error", err)
		}
	}
	refresh()

	ageTicker := time.NewTicker(10 * time.Second)
	defer ageTicker.Stop()
	interval := r.MaxAge
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	fetchTicker := time.NewTicker(interval)
	defer fetchTicker.Stop()

	for {
		select {
		case <-ageTicker.C:
			if ds := r.Store.Get(); ds != nil {
				metrics.SetTLEDataset(len(ds.Satellites), r.Store.AgeSeconds())
			}
		case <-fetchTicker.C:
			refresh()
		case <-ctx.Done():
			return
		}
	}
}
