package propagation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/trajevent/internal/tle"
	"github.com/star/trajevent/internal/transform"
)

var (
	// ErrNoDataset is returned while the store is still empty.
	ErrNoDataset = errors.New("no TLE dataset loaded")
	// ErrNotInCatalog is returned for an unknown catalog number.
	ErrNotInCatalog = errors.New("not in catalog")
)

// sgp4Cache holds preinitialized SGP4 propagators for a specific TLE dataset.
// Immutable after construction; safe for concurrent reads.
type sgp4Cache struct {
	props     map[int]*SGP4Propagator
	fetchedAt time.Time
}

// Catalog runs stop searches against the current TLE dataset.
type Catalog struct {
	store    *tle.Store
	pool     *WorkerPool
	config   Config
	observer *transform.Observer
	logger   *slog.Logger
	sgp4     atomic.Pointer[sgp4Cache]
	sgp4Mu   sync.Mutex // serializes cache rebuilds
}

// NewCatalog creates a Catalog. observer may be nil when no ground station
// is configured.
func NewCatalog(store *tle.Store, config Config, observer *transform.Observer, logger *slog.Logger) *Catalog {
	return &Catalog{
		store:    store,
		pool:     NewWorkerPool(config.Workers, logger),
		config:   config,
		observer: observer,
		logger:   logger,
	}
}

// Config returns the search configuration.
func (c *Catalog) Config() Config { return c.config }

// Observer returns the ground station, or nil.
func (c *Catalog) Observer() *transform.Observer { return c.observer }

// cachedProps returns preinitialized SGP4 propagators for the given dataset.
// Rebuilds the cache if the dataset has changed (double-checked locking).
func (c *Catalog) cachedProps(ds *tle.Dataset) map[int]*SGP4Propagator {
	if sc := c.sgp4.Load(); sc != nil && sc.fetchedAt.Equal(ds.FetchedAt) {
		return sc.props
	}

	c.sgp4Mu.Lock()
	defer c.sgp4Mu.Unlock()

	if sc := c.sgp4.Load(); sc != nil && sc.fetchedAt.Equal(ds.FetchedAt) {
		return sc.props
	}

	props := make(map[int]*SGP4Propagator, len(ds.Satellites))
	var skipped int
	for _, entry := range ds.Satellites {
		if _, ok := props[entry.NORADID]; ok {
			continue
		}
		sp, err := NewSGP4Propagator(entry)
		if err != nil {
			c.logger.Warn("sgp4 cache init failed", "norad_id", entry.NORADID, "error", err)
			skipped++
			continue
		}
		props[entry.NORADID] = sp
	}

	c.logger.Info("sgp4 propagator cache rebuilt",
		"cached", len(props),
		"skipped", skipped,
		"dataset_fetched_at", ds.FetchedAt.UTC().Format(time.RFC3339),
	)
	c.sgp4.Store(&sgp4Cache{props: props, fetchedAt: ds.FetchedAt})
	return props
}

// Propagator returns the cached propagator for a catalog number.
func (c *Catalog) Propagator(noradID int) (*SGP4Propagator, error) {
	ds := c.store.Get()
	if ds == nil {
		return nil, ErrNoDataset
	}
	p, ok := c.cachedProps(ds)[noradID]
	if !ok {
		return nil, fmt.Errorf("NORAD %d %w", noradID, ErrNotInCatalog)
	}
	return p, nil
}

// Search runs one stop search for a single satellite.
func (c *Catalog) Search(ctx context.Context, noradID int, start time.Time, stops []StopSpec) (Result, error) {
	return c.SearchFunc(ctx, noradID, start, stops, nil)
}

// SearchFunc is Search with fn called on each crossing as it is found.
func (c *Catalog) SearchFunc(ctx context.Context, noradID int, start time.Time, stops []StopSpec,
	fn func(Crossing)) (Result, error) {
	p, err := c.Propagator(noradID)
	if err != nil {
		return Result{NORADID: noradID}, err
	}
	d := &Driver{
		Prop:       p,
		Step:       c.config.Step,
		Span:       c.config.Span,
		Observer:   c.observer,
		Logger:     c.logger.With("norad_id", noradID),
		OnCrossing: fn,
	}
	crossings, err := d.Search(ctx, start, stops)
	return Result{NORADID: noradID, Name: p.Name(), Crossings: crossings}, err
}

// SearchAll runs the jobs on the worker pool.
func (c *Catalog) SearchAll(ctx context.Context, jobs []Job) ([]Result, error) {
	ds := c.store.Get()
	if ds == nil {
		return nil, ErrNoDataset
	}
	props := c.cachedProps(ds)

	began := time.Now()
	results, ok, failed := c.pool.RunBatch(ctx, jobs, props, c.config.Step, c.config.Span, c.observer)
	c.logger.Debug("stop search batch complete",
		"jobs", len(jobs),
		"success", ok,
		"errors", failed,
		"duration_ms", time.Since(began).Milliseconds(),
	)
	return results, nil
}
