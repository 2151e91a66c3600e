// Package app is the controller shared by the terminal UI, the HTTP API and
// the one-shot commands. It owns the correlation engine and runs scans,
// enrichment, probes and exports against its records.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"netsift/internal/clock"
	"netsift/internal/config"
	"netsift/internal/correlate"
	"netsift/internal/discovery"
	"netsift/internal/enrich"
	"netsift/internal/metrics"
	"netsift/internal/models"
	"netsift/internal/probe"
	"netsift/internal/reporting"
	"netsift/internal/trace"
)

// GeoLookup resolves provider and country for an address.
type GeoLookup interface {
	Lookup(ctx context.Context, ip string) (enrich.Geo, bool)
}

// ReverseResolver returns the PTR name of an address.
type ReverseResolver interface {
	Reverse(ctx context.Context, ip string) (string, error)
}

// Checker probes an endpoint's reachability.
type Checker interface {
	Check(ctx context.Context, rec models.TrafficRecord) probe.Result
}

// Options wires a Controller. Nil collaborators are built from Config.
type Options struct {
	Config   *config.Config
	Source   trace.Source
	Lister   trace.ProcessLister
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
	Clock    clock.Clock
	Sink     models.Sink
	GeoIP    GeoLookup
	Resolver ReverseResolver
	Prober   Checker
	// DNSCache reads the OS resolver cache.
	DNSCache func(ctx context.Context) ([]models.TrafficRecord, error)
}

// Status is a snapshot of the controller state.
type Status struct {
	Session string    `json:"session,omitempty"`
	Running bool      `json:"running"`
	Message string    `json:"message"`
	Records int       `json:"records"`
	Updated time.Time `json:"updated"`
}

// Controller coordinates a capture session and the operations on its records.
type Controller struct {
	cfg      *config.Config
	engine   *correlate.Engine
	log      zerolog.Logger
	metrics  *metrics.Metrics
	clock    clock.Clock
	sink     models.Sink
	geo      GeoLookup
	resolver ReverseResolver
	prober   Checker
	dnsCache func(ctx context.Context) ([]models.TrafficRecord, error)

	mu      sync.RWMutex
	message string
	updated time.Time

	enrichQueue chan models.Key
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// New creates a controller and, when auto enrichment is on, starts its
// GeoIP workers. Call Close to stop them.
func New(opts Options) *Controller {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.NewRealClock()
	}
	sink := opts.Sink
	if sink == nil {
		sink = models.Discard
	}

	c := &Controller{
		cfg:      cfg,
		log:      opts.Logger.With().Str("component", "app").Logger(),
		metrics:  opts.Metrics,
		clock:    clk,
		sink:     sink,
		geo:      opts.GeoIP,
		resolver: opts.Resolver,
		prober:   opts.Prober,
		dnsCache: opts.DNSCache,
		message:  "Idle",
		updated:  clk.Now(),
	}
	if c.geo == nil {
		c.geo = enrich.NewGeoIP(cfg.Enrich.GeoIPURL, cfg.Enrich.GeoIPTimeout, opts.Logger)
	}
	if c.resolver == nil {
		c.resolver = enrich.NewResolver(cfg.Enrich.DNSServer, cfg.Probe.Timeout)
	}
	if c.prober == nil {
		c.prober = probe.New(cfg.Probe.Timeout, cfg.Probe.PingTimeout)
	}
	if c.dnsCache == nil {
		c.dnsCache = func(ctx context.Context) ([]models.TrafficRecord, error) {
			return enrich.ImportDNSCache(ctx, nil)
		}
	}

	c.engine = correlate.New(opts.Source, opts.Lister, correlate.Options{
		RateLimitWindow: cfg.Capture.RateLimitWindow,
		Reclassify:      correlate.ReclassifyPolicy(cfg.Capture.Reclassify),
		ExtraFilters:    cfg.Capture.ExtraProcesses,
		Clock:           clk,
		Logger:          opts.Logger,
		Metrics:         opts.Metrics,
		Sink:            models.SinkFunc(c.notify),
	})

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	if cfg.Enrich.Auto {
		c.enrichQueue = make(chan models.Key, 256)
		for i := 0; i < cfg.Enrich.Workers; i++ {
			c.wg.Add(1)
			go c.enrichWorker(ctx)
		}
	}
	return c
}

// Close stops the capture session and background workers.
func (c *Controller) Close() {
	c.engine.Stop()
	c.cancel()
	c.wg.Wait()
}

func (c *Controller) notify(n models.Notification) {
	switch n.Kind {
	case models.StatusChanged:
		c.mu.Lock()
		c.message, c.updated = n.Status, n.Time
		c.mu.Unlock()
	case models.RecordAdded:
		if c.enrichQueue != nil && n.Record != nil && enrich.Public(n.Record.RemoteAddress) {
			select {
			case c.enrichQueue <- n.Record.Key():
			default:
				c.log.Debug().Str("key", n.Record.Key().String()).Msg("enrich queue full, skipping")
			}
		}
	}
	c.sink.Notify(n)
}

func (c *Controller) status(msg string) {
	c.notify(models.StatusNotification(msg, c.clock.Now()))
}

func (c *Controller) enrichWorker(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case key := <-c.enrichQueue:
			c.enrichOne(ctx, key)
		}
	}
}

// Start begins capturing traffic of processes matching filter.
func (c *Controller) Start(ctx context.Context, filter string) error {
	return c.engine.Start(ctx, filter)
}

// Stop ends the capture session. Records stay available.
func (c *Controller) Stop() {
	c.engine.Stop()
}

// Status reports the session and the latest status message.
func (c *Controller) Status() Status {
	id, running := c.engine.Session()
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Status{
		Session: id,
		Running: running,
		Message: c.message,
		Records: len(c.engine.Records()),
		Updated: c.updated,
	}
}

// Records returns the current records in first-seen order.
func (c *Controller) Records() []models.TrafficRecord {
	return c.engine.Records()
}

// Record returns one record.
func (c *Controller) Record(key models.Key) (models.TrafficRecord, bool) {
	return c.engine.Record(key)
}

// SetSelected marks or unmarks a record for the selected export mode.
func (c *Controller) SetSelected(key models.Key, selected bool) bool {
	return c.engine.SetSelected(key, selected)
}

// SelectAll marks or unmarks every record.
func (c *Controller) SelectAll(selected bool) {
	c.engine.SelectAll(selected)
}

// Scan extracts domains from the files under dir and adds them as records.
func (c *Controller) Scan(ctx context.Context, dir string) (int, error) {
	sink := models.SinkFunc(func(n models.Notification) {
		switch n.Kind {
		case models.RecordAdded:
			if n.Record != nil {
				c.engine.Import([]models.TrafficRecord{*n.Record})
			}
		case models.StatusChanged:
			c.notify(n)
		}
	})
	recs, err := discovery.Scan(ctx, dir, &discovery.ScanConfig{
		Workers:       c.cfg.Scan.Workers,
		MaxFileSize:   c.cfg.Scan.MaxFileSize,
		ProgressEvery: c.cfg.Scan.ProgressEvery,
		Logger:        c.log,
		Metrics:       c.metrics,
		Sink:          sink,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		c.status("Error: " + err.Error())
	}
	return len(recs), err
}

// ImportDNSCache adds the OS resolver cache entries as records.
func (c *Controller) ImportDNSCache(ctx context.Context) (int, error) {
	recs, err := c.dnsCache(ctx)
	if err != nil {
		c.status("DNS cache unavailable: " + err.Error())
		return 0, err
	}
	n := c.engine.Import(recs)
	c.status(fmt.Sprintf("DNS cache: %d records", n))
	return n, nil
}

// ResolveNames looks up PTR names for live records without a domain.
func (c *Controller) ResolveNames(ctx context.Context) int {
	var keys []models.Key
	for _, r := range c.engine.Records() {
		if !r.HasDomain() && !r.IsStatic() {
			keys = append(keys, r.Key())
		}
	}
	c.status("Resolving names...")

	var mu sync.Mutex
	resolved := 0
	forEach(ctx, keys, c.cfg.Enrich.Workers, func(key models.Key) {
		name, err := c.resolver.Reverse(ctx, key.Address)
		if err != nil || name == "" {
			return
		}
		if c.engine.ApplyDomain(key, name) {
			mu.Lock()
			resolved++
			mu.Unlock()
		}
	})
	c.status(fmt.Sprintf("Names updated: %d of %d", resolved, len(keys)))
	return resolved
}

// Enrich runs GeoIP lookups for keys, or for every live record when keys
// is empty.
func (c *Controller) Enrich(ctx context.Context, keys []models.Key) int {
	if len(keys) == 0 {
		for _, r := range c.engine.Records() {
			if enrich.Public(r.RemoteAddress) {
				keys = append(keys, r.Key())
			}
		}
	}
	c.status("Looking up providers...")

	var mu sync.Mutex
	enriched := 0
	forEach(ctx, keys, c.cfg.Enrich.Workers, func(key models.Key) {
		if c.enrichOne(ctx, key) {
			mu.Lock()
			enriched++
			mu.Unlock()
		}
	})
	c.status(fmt.Sprintf("Providers updated: %d", enriched))
	return enriched
}

func (c *Controller) enrichOne(ctx context.Context, key models.Key) bool {
	geo, ok := c.geo.Lookup(ctx, key.Address)
	if !ok {
		return false
	}
	return c.engine.ApplyEnrichment(key, geo.Provider(), geo.Country)
}

// Probe checks reachability of keys, or of the selected records when keys
// is empty.
func (c *Controller) Probe(ctx context.Context, keys []models.Key) int {
	if len(keys) == 0 {
		for _, r := range c.engine.Records() {
			if r.Selected {
				keys = append(keys, r.Key())
			}
		}
	}
	if len(keys) == 0 {
		c.status("Nothing selected to check")
		return 0
	}
	c.status("Checking...")

	forEach(ctx, keys, c.cfg.Enrich.Workers, func(key models.Key) {
		rec, ok := c.engine.Record(key)
		if !ok {
			return
		}
		c.engine.ApplyStatus(key, models.StatusChecking, models.ColorDefault)
		status, color := c.prober.Check(ctx, rec).Status()
		c.engine.ApplyStatus(key, status, color)
	})
	c.status("Done")
	return len(keys)
}

// Export writes the block lists for the records matching mode.
func (c *Controller) Export(mode string) (reporting.ExportResult, error) {
	sel, err := reporting.ParseSelection(mode)
	if err != nil {
		return reporting.ExportResult{}, err
	}
	res, err := reporting.Export(c.cfg.Export.Dir, c.engine.Records(), sel)
	if errors.Is(err, reporting.ErrEmptySelection) {
		c.status(fmt.Sprintf("Nothing to export in '%s'", sel))
		return res, err
	}
	if err != nil {
		c.status("Export failed: " + err.Error())
		return res, err
	}
	c.status(fmt.Sprintf("Saved (%s): %s", sel, res))
	return res, nil
}

// Report writes the HTML session report into the export directory.
func (c *Controller) Report() (string, error) {
	path, err := reporting.GenerateSessionReport(c.cfg.Export.Dir, c.engine.Records(), "html")
	if err != nil {
		return "", err
	}
	c.status("Report saved: " + path)
	return path, nil
}

// forEach runs fn over items with at most workers goroutines. Items not
// started before ctx is cancelled are skipped.
func forEach[T any](ctx context.Context, items []T, workers int, fn func(T)) {
	if workers <= 0 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for _, it := range items {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(it T) {
			defer wg.Done()
			defer func() { <-sem }()
			fn(it)
		}(it)
	}
	wg.Wait()
}
