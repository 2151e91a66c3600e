// Package correlate maps raw trace events to deduplicated, classified
// traffic records for the monitored process.
package correlate

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"netsift/internal/analysis"
	"netsift/internal/clock"
	"netsift/internal/metrics"
	"netsift/internal/models"
	"netsift/internal/trace"
)

var (
	// ErrEmptyFilter is returned by Start when no process name was given.
	ErrEmptyFilter = errors.New("process name filter is empty")
	// ErrCaptureUnavailable marks trace source start failures in logs. Start
	// never returns it; the session degrades to one that yields no events.
	ErrCaptureUnavailable = errors.New("capture unavailable")
)

var ipv4Literal = regexp.MustCompile(`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`)

// ReclassifyPolicy controls when an existing record's label is recomputed.
type ReclassifyPolicy string

const (
	// ReclassifyAlways recomputes the label on every merge.
	ReclassifyAlways ReclassifyPolicy = "always"
	// ReclassifyOnSignal recomputes only when the domain or enrichment changes.
	ReclassifyOnSignal ReclassifyPolicy = "signal"
)

// DefaultRateLimitWindow is the minimum spacing between accepted events
// for the same (address, protocol) pair.
const DefaultRateLimitWindow = 50 * time.Millisecond

// stopWait bounds how long Stop waits for the event loop to drain.
const stopWait = 2 * time.Second

// Options configures an Engine.
type Options struct {
	RateLimitWindow time.Duration
	Reclassify      ReclassifyPolicy
	// ExtraFilters are additional process name filters tracked alongside
	// the one passed to Start.
	ExtraFilters []string
	Clock        clock.Clock
	Logger       zerolog.Logger
	Metrics      *metrics.Metrics
	// Sink receives record and status notifications. Wrap it with
	// models.Dispatched to marshal onto a presentation thread.
	Sink models.Sink
}

// Engine is the event correlation engine. It is safe for concurrent use;
// Handle may be called from several goroutines at once.
type Engine struct {
	source trace.Source
	lister trace.ProcessLister
	opts   Options
	log    zerolog.Logger

	mu     sync.Mutex // serialises Start/Stop
	cancel context.CancelFunc
	done   chan struct{}

	state atomic.Pointer[State]
	table atomic.Pointer[RecordTable]
}

// New creates an engine reading from source. lister seeds the PID set at
// session start and may be nil.
func New(source trace.Source, lister trace.ProcessLister, opts Options) *Engine {
	if opts.RateLimitWindow <= 0 {
		opts.RateLimitWindow = DefaultRateLimitWindow
	}
	if opts.Reclassify == "" {
		opts.Reclassify = ReclassifyAlways
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewRealClock()
	}
	if opts.Sink == nil {
		opts.Sink = models.Discard
	}
	e := &Engine{
		source: source,
		lister: lister,
		opts:   opts,
		log:    opts.Logger.With().Str("component", "correlate").Logger(),
	}
	e.table.Store(newRecordTable())
	return e
}

// Start begins a capture session for processes whose name contains filter.
// A running session is stopped first. Failure to subscribe to the trace
// source is logged and reported as a status; the session then stays
// active without ever receiving events.
func (e *Engine) Start(ctx context.Context, filter string) error {
	filter = trace.NormalizeFilter(filter)
	if filter == "" {
		return ErrEmptyFilter
	}

	e.Stop()

	e.mu.Lock()
	defer e.mu.Unlock()

	filters := append([]string{filter}, e.opts.ExtraFilters...)
	st := newState(filters, e.opts.RateLimitWindow, e.opts.Clock)
	e.seed(ctx, st)

	e.table.Store(newRecordTable())
	e.opts.Metrics.ResetRecords()
	e.state.Store(st)

	log := e.log.With().Str("session", st.ID).Str("filter", filter).Logger()

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done

	events, err := e.subscribe(sctx, filter)
	if err != nil {
		log.Warn().Err(fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)).Msg("session will receive no events")
		e.status(fmt.Sprintf("Capture unavailable: %v", err))
		close(done)
		return nil
	}

	go func() {
		defer close(done)
		for ev := range events {
			e.handle(st, ev)
		}
		log.Debug().Msg("event stream closed")
	}()

	log.Info().Int("pids", st.PIDCount()).Msg("capture started")
	e.status(fmt.Sprintf("Capturing %s (%d PID)", filter, st.PIDCount()))
	return nil
}

func (e *Engine) subscribe(ctx context.Context, filter string) (<-chan trace.Event, error) {
	if e.source == nil {
		return nil, errors.New("no trace source configured")
	}
	return e.source.Subscribe(ctx, filter)
}

func (e *Engine) seed(ctx context.Context, st *State) {
	if e.lister == nil {
		return
	}
	procs, err := e.lister.Processes(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("listing processes failed")
		return
	}
	for _, p := range procs {
		if st.Matches(p.Name) {
			st.TrackPID(p.PID, p.Name)
		}
	}
}

// Stop ends the current session, releasing the trace subscription and the
// correlation state. Records stay readable until the next Start.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.state.Swap(nil)
	if st == nil {
		return
	}
	st.close()
	if e.cancel != nil {
		e.cancel()
	}
	if e.done != nil {
		select {
		case <-e.done:
		case <-time.After(stopWait):
			e.log.Warn().Str("session", st.ID).Msg("trace source did not stop in time")
		}
	}
	e.cancel, e.done = nil, nil

	e.log.Info().Str("session", st.ID).Int("records", e.table.Load().Len()).Msg("capture stopped")
	e.status("Stopped")
}

// Session returns the current session ID and whether a session is running.
func (e *Engine) Session() (string, bool) {
	st := e.state.Load()
	if st == nil {
		return "", false
	}
	return st.ID, true
}

// Handle applies one trace event to the current session. Events arriving
// while no session is running are dropped.
func (e *Engine) Handle(ev trace.Event) {
	st := e.state.Load()
	if st == nil {
		e.opts.Metrics.EventDropped(metrics.DropStopped)
		return
	}
	e.handle(st, ev)
}

func (e *Engine) handle(st *State, ev trace.Event) {
	e.opts.Metrics.EventReceived(trace.KindOf(ev))
	if st.Closed() {
		e.opts.Metrics.EventDropped(metrics.DropStopped)
		return
	}

	switch ev := ev.(type) {
	case trace.ProcessStart:
		if st.Matches(ev.Name) {
			st.TrackPID(ev.PID, ev.Name)
			e.log.Debug().Int32("pid", ev.PID).Str("name", ev.Name).Msg("tracking late process")
		}
	case trace.DNSAnswer:
		e.handleDNS(st, ev)
	case trace.TLSHello:
		if name := normalizeHost(ev.ServerName); name != "" {
			st.LearnSNI(ev.PID, name)
		}
	case trace.Connect:
		e.handleConnect(st, ev)
	}
}

func (e *Engine) handleDNS(st *State, ev trace.DNSAnswer) {
	host := normalizeHost(ev.QueryName)
	literals := ipv4Literal.FindAllString(ev.Results, -1)
	if host == "" || len(literals) == 0 {
		e.opts.Metrics.EventDropped(metrics.DropMalformed)
		return
	}
	for _, lit := range literals {
		addr, err := netip.ParseAddr(lit)
		if err != nil || !addr.Is4() {
			continue
		}
		st.LearnDNS(addr.String(), host)
	}
}

func (e *Engine) handleConnect(st *State, ev trace.Connect) {
	if !st.Tracks(ev.PID) {
		e.opts.Metrics.EventDropped(metrics.DropUntracked)
		return
	}

	address := strings.TrimSpace(ev.Address)
	if strings.Contains(address, ":") {
		e.opts.Metrics.EventDropped(metrics.DropIPv6)
		return
	}
	addr, err := netip.ParseAddr(address)
	if err != nil {
		e.opts.Metrics.EventDropped(metrics.DropMalformed)
		return
	}
	if addr.IsLoopback() {
		e.opts.Metrics.EventDropped(metrics.DropLoopback)
		return
	}

	key := models.Key{Address: addr.String(), Protocol: strings.ToUpper(ev.Protocol)}
	if !st.limiter.Allow(key) {
		e.opts.Metrics.EventDropped(metrics.DropRateLimited)
		return
	}

	domain := st.ResolveDomain(key.Address, ev.PID)
	now := e.opts.Clock.Now()
	table := e.table.Load()

	// Notifications for one key are published under its lock so consumers
	// see them in PacketCount order.
	ent, created := table.getOrCreate(key, func() models.TrafficRecord {
		rec := models.TrafficRecord{
			Timestamp:     now,
			FirstSeen:     now,
			ProcessName:   st.ProcessName(ev.PID),
			RemoteAddress: key.Address,
			RemotePort:    ev.Port,
			Domain:        domain,
			Protocol:      key.Protocol,
			PacketCount:   1,
			Status:        models.StatusUnknown,
			StatusColor:   models.ColorDefault,
		}
		rec.TrafficType = analysis.Classify(rec)
		return rec
	}, func(rec models.TrafficRecord) {
		e.publish(st, models.RecordNotification(models.RecordAdded, rec))
	})
	if created {
		e.opts.Metrics.RecordCreated()
		return
	}

	ent.mu.Lock()
	r := &ent.rec
	r.PacketCount++
	r.Timestamp = now
	if r.RemotePort == 0 && ev.Port > 0 {
		r.RemotePort = ev.Port
	}
	domainChanged := false
	if !r.HasDomain() && domain != models.NoDomain {
		r.Domain = domain
		domainChanged = true
	}
	if domainChanged || e.opts.Reclassify == ReclassifyAlways {
		r.TrafficType = analysis.Classify(*r)
	}
	e.publish(st, models.RecordNotification(models.RecordUpdated, *r))
	ent.mu.Unlock()

	e.opts.Metrics.RecordUpdated()
}

func (e *Engine) publish(st *State, n models.Notification) {
	if st != nil && st.Closed() {
		return
	}
	e.opts.Sink.Notify(n)
}

func (e *Engine) status(msg string) {
	e.opts.Sink.Notify(models.StatusNotification(msg, e.opts.Clock.Now()))
}

// Records returns copies of the current records in first-seen order.
func (e *Engine) Records() []models.TrafficRecord {
	return e.table.Load().Snapshot()
}

// Record returns a copy of one record.
func (e *Engine) Record(key models.Key) (models.TrafficRecord, bool) {
	return e.table.Load().Get(key)
}

// Import adds records produced outside live capture, such as scan findings
// or resolver cache entries. Records whose key already exists are skipped.
// It returns the number of records added.
func (e *Engine) Import(records []models.TrafficRecord) int {
	table := e.table.Load()
	added := 0
	for _, rec := range records {
		rec := rec
		_, created := table.getOrCreate(rec.Key(), func() models.TrafficRecord { return rec }, func(r models.TrafficRecord) {
			e.opts.Sink.Notify(models.RecordNotification(models.RecordAdded, r))
		})
		if created {
			added++
		}
	}
	return added
}

// ApplyDomain sets the domain of a record that has none yet. Domains are
// never replaced once known.
func (e *Engine) ApplyDomain(key models.Key, domain string) bool {
	domain = normalizeHost(domain)
	if domain == "" || domain == models.NoDomain {
		return false
	}
	return e.mutate(key, func(r *models.TrafficRecord) bool {
		if r.HasDomain() {
			return false
		}
		r.Domain = domain
		r.TrafficType = analysis.Classify(*r)
		return true
	})
}

// ApplyEnrichment stores GeoIP results and re-classifies the record.
func (e *Engine) ApplyEnrichment(key models.Key, provider, geo string) bool {
	return e.mutate(key, func(r *models.TrafficRecord) bool {
		if r.ProviderName == provider && r.GeoLocation == geo {
			return false
		}
		r.ProviderName = provider
		r.GeoLocation = geo
		r.TrafficType = analysis.Classify(*r)
		return true
	})
}

// ApplyStatus stores a reachability probe outcome.
func (e *Engine) ApplyStatus(key models.Key, status, color string) bool {
	return e.mutate(key, func(r *models.TrafficRecord) bool {
		if r.Status == status && r.StatusColor == color {
			return false
		}
		r.Status = status
		r.StatusColor = color
		return true
	})
}

// SetSelected marks a record for the "selected" export mode.
func (e *Engine) SetSelected(key models.Key, selected bool) bool {
	return e.mutate(key, func(r *models.TrafficRecord) bool {
		if r.Selected == selected {
			return false
		}
		r.Selected = selected
		return true
	})
}

// SelectAll sets the selection flag on every record.
func (e *Engine) SelectAll(selected bool) {
	for _, k := range e.table.Load().Keys() {
		e.SetSelected(k, selected)
	}
}

func (e *Engine) mutate(key models.Key, fn func(*models.TrafficRecord) bool) bool {
	_, changed, ok := e.table.Load().update(key, fn, func(rec models.TrafficRecord) {
		e.opts.Sink.Notify(models.RecordNotification(models.RecordUpdated, rec))
	})
	return ok && changed
}
