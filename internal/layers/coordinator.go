package layers

import (
	"context"
	"sync"
	"time"

	"github.com/rs/xid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/joeblew999/plat-flood/internal/mapview"
	"github.com/joeblew999/plat-flood/internal/metrics"
	"github.com/joeblew999/plat-flood/internal/service"
)

// State is the phase of the current load cycle.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateSettling
	StateDone
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateSettling:
		return "settling"
	case StateDone:
		return "done"
	default:
		return "idle"
	}
}

// DefaultConcurrency bounds simultaneous fetches per cycle.
const DefaultConcurrency = 8

// CoordinatorOptions configures a Coordinator.
type CoordinatorOptions struct {
	Fetcher     Fetcher
	Registrar   *Registrar
	Concurrency int
	Logger      *zap.Logger
	// OnEntry is called from the fetch goroutine as each layer settles.
	OnEntry func(Entry)
}

// Coordinator runs load cycles. Cycles never overlap: starting one cancels
// the cycle in flight and waits for it to return.
type Coordinator struct {
	fetcher   Fetcher
	registrar *Registrar
	limit     int
	logger    *zap.Logger
	onEntry   func(Entry)

	cycle sync.Mutex

	mu      sync.Mutex
	state   State
	seq     uint64
	pending map[uint64]context.CancelFunc
}

type cycleKey struct{}

// NewCoordinator creates a coordinator.
func NewCoordinator(opts CoordinatorOptions) *Coordinator {
	c := &Coordinator{
		fetcher:   opts.Fetcher,
		registrar: opts.Registrar,
		limit:     opts.Concurrency,
		logger:    opts.Logger,
		onEntry:   opts.OnEntry,
		pending:   make(map[uint64]context.CancelFunc),
	}
	if c.limit <= 0 {
		c.limit = DefaultConcurrency
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// State returns the phase of the current or last cycle.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Cancel aborts every cycle begun so far, running or still waiting for its
// turn. Their pending fetches settle as failures.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelPending()
}

func (c *Coordinator) cancelPending() {
	for id, cancel := range c.pending {
		cancel()
		delete(c.pending, id)
	}
}

// Begin starts a cycle and cancels every cycle begun before it. Pass the
// returned context to LoadAll and call done when the cycle is over. Callers
// that do more than one LoadAll under a lock of their own call Begin before
// taking that lock.
func (c *Coordinator) Begin(ctx context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)

	c.mu.Lock()
	c.cancelPending()
	c.seq++
	id := c.seq
	c.pending[id] = cancel
	c.mu.Unlock()

	return context.WithValue(ctx, cycleKey{}, id), func() {
		cancel()
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}
}

// LoadAll fetches every spec concurrently, registers each success on m and
// returns once all fetches have settled. It never fails: the result holds
// exactly one entry per spec, in input order. Without a context from Begin
// it begins its own cycle.
func (c *Coordinator) LoadAll(ctx context.Context, m mapview.Handle, specs []service.LayerSpec) AggregateResult {
	if _, ok := ctx.Value(cycleKey{}).(uint64); !ok {
		var done func()
		ctx, done = c.Begin(ctx)
		defer done()
	}

	c.cycle.Lock()
	defer c.cycle.Unlock()

	c.setState(StateLoading)

	result := AggregateResult{
		CycleID: xid.New().String(),
		Started: time.Now(),
		Entries: make([]Entry, len(specs)),
	}
	log := c.logger.With(zap.String("cycle", result.CycleID))
	log.Info("loading layers", zap.Int("count", len(specs)))

	var g errgroup.Group
	g.SetLimit(c.limit)
	for i, spec := range specs {
		g.Go(func() error {
			result.Entries[i] = c.load(ctx, m, spec, log)
			if c.onEntry != nil {
				c.onEntry(result.Entries[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	c.setState(StateSettling)
	result.Finished = time.Now()

	ok := len(result.Succeeded())
	metrics.RegisteredLayers.Set(float64(ok))
	metrics.LoadCycles.WithLabelValues(result.Outcome()).Inc()
	if ok == 0 {
		log.Warn("no layers loaded", zap.Int("failed", len(specs)))
	} else {
		log.Info("layers loaded", zap.Int("ok", ok), zap.Int("failed", len(specs)-ok))
	}

	c.setState(StateDone)
	return result
}

// load fetches and registers one layer. It recovers from panics so one bad
// dataset cannot take down its siblings.
func (c *Coordinator) load(ctx context.Context, m mapview.Handle, spec service.LayerSpec, log *zap.Logger) (entry Entry) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			entry = newEntry(spec.ID, Fail(KindRendering, "%v", p))
		}
		entry.Duration = time.Since(start)
		metrics.FetchDuration.WithLabelValues(spec.ID).Observe(entry.Duration.Seconds())
		if entry.Failure != nil {
			metrics.FetchFailures.WithLabelValues(spec.ID, string(entry.Failure.Kind)).Inc()
			log.Warn("layer failed",
				zap.String("layer", spec.ID),
				zap.String("kind", string(entry.Failure.Kind)),
				zap.String("reason", entry.Failure.Reason))
		} else {
			log.Info("layer loaded", zap.String("layer", spec.ID), zap.Bool("created", entry.Created))
		}
	}()

	outcome := c.fetcher.Fetch(ctx, spec.Source)
	if !outcome.OK() {
		return newEntry(spec.ID, outcome)
	}
	return c.Register(m, spec, outcome.Data)
}

// Register attaches data for spec and describes the result as an Entry.
// Callers use it directly for data that did not come from a fetch.
func (c *Coordinator) Register(m mapview.Handle, spec service.LayerSpec, data []byte) Entry {
	created, err := c.registrar.Register(m, spec, data)
	if err != nil {
		if f, ok := err.(*Failure); ok {
			return newEntry(spec.ID, Outcome{Failure: f})
		}
		return newEntry(spec.ID, Fail(KindRendering, "%v", err))
	}

	entry := newEntry(spec.ID, Success(data))
	entry.Created = created
	if b, err := BoundOf(data); err == nil {
		entry.Bound = &b
	}
	return entry
}
