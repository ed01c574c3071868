// Package poller periodically fetches the latest readings of each domain,
// assesses them and hands the results to the cache, to subscribers and to any
// configured sinks.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	cron "github.com/robfig/cron/v3"

	"github.com/envdash/uda/cache"
	"github.com/envdash/uda/measurement"
	"github.com/envdash/uda/quality"
	"github.com/envdash/uda/source"
	"github.com/envdash/uda/threshold"
)

const (
	DefaultSpec = "@every 30s"

	// Buffer of each subscriber channel. Updates to a full channel are dropped.
	subscriberBuffer = 64

	defaultTTL = 10 * time.Minute
)

// Update is the assessment of one device's latest reading.
type Update struct {
	Measurement measurement.Measurement `json:"measurement"`
	Results     []*quality.Result       `json:"results"`
	Overall     *quality.Result         `json:"overall"`
	// Pair is the combined status of the domain's related pair, if it has one.
	Pair *quality.Result `json:"pair,omitempty"`
}

// NewUpdate assesses a measurement.
func NewUpdate(m measurement.Measurement) Update {
	vals := m.Values()
	u := Update{
		Measurement: m,
		Results:     quality.AssessAll(m.Domain, vals),
		Overall:     quality.Overall(m.Domain, vals),
	}
	if p, ok := quality.Pairs[m.Domain]; ok {
		u.Pair = quality.PairStatus(m.Domain, vals[p[0]], vals[p[1]])
	}
	return u
}

// Status is the latest state of every device in a domain.
type Status struct {
	Domain  threshold.Domain `json:"domain"`
	Updated time.Time        `json:"updated"`
	Devices []Update         `json:"devices"`
	// Overall is the least safe device result in the domain.
	Overall *quality.Result `json:"overall"`
}

// Sink receives every update after it has been cached.
type Sink interface {
	Save(ctx context.Context, u Update) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, u Update) error

func (f SinkFunc) Save(ctx context.Context, u Update) error {
	return f(ctx, u)
}

type Poller struct {
	src    source.Source
	logger *slog.Logger
	ttl    time.Duration

	latest *cache.Cache[Update]
	status *cache.Cache[Status]

	// Guards Status read-modify-write between the cron jobs and Ingest.
	statusMu sync.Mutex

	sinks []Sink

	subsMu sync.Mutex
	subs   map[int]chan Update
	nextID int

	cron *cron.Cron
}

type Option func(*Poller)

// WithTTL sets how long cached results stay valid.
func WithTTL(ttl time.Duration) Option {
	return func(p *Poller) {
		p.ttl = ttl
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) {
		p.logger = l
	}
}

func WithSinks(sinks ...Sink) Option {
	return func(p *Poller) {
		p.sinks = append(p.sinks, sinks...)
	}
}

func New(src source.Source, opts ...Option) *Poller {
	p := &Poller{
		src:    src,
		logger: slog.Default(),
		ttl:    defaultTTL,
		latest: cache.New[Update](),
		status: cache.New[Status](),
		subs:   make(map[int]chan Update),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Job polls one domain each time it runs.
type Job struct {
	Poller  *Poller
	Domain  threshold.Domain
	Timeout time.Duration
}

func (j Job) Run() {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Failures are retried on the next tick.
	if err := j.Poller.Poll(ctx, j.Domain); err != nil {
		j.Poller.logger.Error("poll failed", "domain", j.Domain, "err", err)
	}
}

// Start schedules a Job for each domain on spec and starts the scheduler. An
// empty spec means DefaultSpec.
func (p *Poller) Start(spec string, domains ...threshold.Domain) error {
	if spec == "" {
		spec = DefaultSpec
	}
	if len(domains) == 0 {
		domains = threshold.Domains()
	}

	p.cron = cron.New()
	for _, d := range domains {
		if _, err := p.cron.AddJob(spec, Job{Poller: p, Domain: d}); err != nil {
			return fmt.Errorf("poller: bad spec %q: %w", spec, err)
		}
	}

	p.logger.Info("starting poller", "spec", spec, "domains", domains)
	p.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish or ctx to end.
func (p *Poller) Stop(ctx context.Context) {
	if p.cron == nil {
		return
	}

	select {
	case <-p.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Poll fetches the latest readings of a domain and ingests them.
func (p *Poller) Poll(ctx context.Context, d threshold.Domain) error {
	ms, err := p.src.Latest(ctx, d)
	if err != nil {
		return fmt.Errorf("poller: fetching %s: %w", d, err)
	}

	errs := []error{}
	for _, m := range ms {
		if m.Domain == "" {
			m.Domain = d
		}
		if err := p.Ingest(ctx, m); err != nil {
			errs = append(errs, err)
		}
	}

	p.logger.Debug("polled", "domain", d, "devices", len(ms))
	return errors.Join(errs...)
}

// Ingest assesses a single measurement, caches the result, notifies subscribers
// and saves it to every sink. Sink errors are joined and returned after all
// sinks have been tried.
func (p *Poller) Ingest(ctx context.Context, m measurement.Measurement) error {
	if err := m.Validate(); err != nil {
		return err
	}

	u := NewUpdate(m)
	p.latest.Set(measurement.CacheKeyLatest(m.DeviceID), u, p.ttl)
	p.updateStatus(u)
	p.broadcast(u)

	return p.save(ctx, u)
}

func (p *Poller) save(ctx context.Context, u Update) error {
	var wg sync.WaitGroup
	errs := make(chan error, len(p.sinks))

	for _, s := range p.sinks {
		wg.Add(1)
		go func(s Sink) {
			defer wg.Done()
			if err := s.Save(ctx, u); err != nil {
				errs <- err
			}
		}(s)
	}

	wg.Wait()
	close(errs)

	errSlice := []error{}
	for e := range errs {
		errSlice = append(errSlice, e)
	}

	return errors.Join(errSlice...)
}

func (p *Poller) updateStatus(u Update) {
	d := u.Measurement.Domain
	key := measurement.CacheKeyStatus(d)

	p.statusMu.Lock()
	defer p.statusMu.Unlock()

	st, _ := p.status.Get(key)
	st.Domain = d
	st.Updated = u.Measurement.Timestamp

	devices := make([]Update, 0, len(st.Devices)+1)
	for _, dev := range st.Devices {
		if dev.Measurement.DeviceID != u.Measurement.DeviceID {
			devices = append(devices, dev)
		}
	}
	devices = append(devices, u)
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Measurement.DeviceID < devices[j].Measurement.DeviceID
	})
	st.Devices = devices

	st.Overall = nil
	for _, dev := range devices {
		if dev.Overall != nil && (st.Overall == nil || dev.Overall.Percentage < st.Overall.Percentage) {
			st.Overall = dev.Overall
		}
	}

	p.status.Set(key, st, p.ttl)
}

// Latest returns the cached update of a device.
func (p *Poller) Latest(deviceID string) (Update, bool) {
	return p.latest.Get(measurement.CacheKeyLatest(deviceID))
}

// Status returns the cached status of a domain.
func (p *Poller) Status(d threshold.Domain) (Status, bool) {
	return p.status.Get(measurement.CacheKeyStatus(d))
}

// Janitor removes expired cache entries every interval until ctx is done.
func (p *Poller) Janitor(ctx context.Context, interval time.Duration) {
	go p.latest.Janitor(ctx, interval)
	p.status.Janitor(ctx, interval)
}

// Subscribe returns a channel of every update ingested from now on and a
// function that unsubscribes and closes the channel. A subscriber that falls
// behind misses updates.
func (p *Poller) Subscribe() (<-chan Update, func()) {
	p.subsMu.Lock()
	defer p.subsMu.Unlock()

	id := p.nextID
	p.nextID++
	ch := make(chan Update, subscriberBuffer)
	p.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.subsMu.Lock()
			defer p.subsMu.Unlock()

			delete(p.subs, id)
			close(ch)
		})
	}
}

func (p *Poller) broadcast(u Update) {
	p.subsMu.Lock()
	defer p.subsMu.Unlock()

	for id, ch := range p.subs {
		select {
		case ch <- u:
		default:
			p.logger.Warn("subscriber too slow, dropping update", "subscriber", id, "device", u.Measurement.DeviceID)
		}
	}
}
