// Package flow drives background traversal of the bucket store. A pool of
// workers repeatedly steps resident items along the doubling cycle and
// periodically re-keys them from their mutated source counter, which is how
// items reach the anchor buckets and come up for judgment.
package flow

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/spindleworks/novem/errors"
	"github.com/spindleworks/novem/store"
)

// Config contains tuning for the traversal pool
type Config struct {
	Workers        int           `json:"workers"`          // Number of concurrent traversal workers
	StepsPerSecond float64       `json:"steps_per_second"` // Pool-wide step rate; 0 = unlimited
	RekeyInterval  int           `json:"rekey_interval"`   // Steps between counter re-keys per item
	SweepInterval  time.Duration `json:"sweep_interval"`   // How often the dispatcher re-lists the store
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Workers:        4,
		StepsPerSecond: 0,
		RekeyInterval:  6,
		SweepInterval:  250 * time.Millisecond,
	}
}

// tunables holds the hot-swappable part of Config. Worker count is fixed at
// Start; the rest can change under a running pool via SetConfig.
type tunables struct {
	limiter       *rate.Limiter // nil means unlimited
	rekeyInterval int
	sweepInterval time.Duration
}

type task struct {
	id      string
	counter uint64
	rekey   bool
}

// Pool manages a set of workers that traverse items through the store
type Pool struct {
	store   *store.Store
	workers int
	tuning  atomic.Pointer[tunables]

	parentCtx context.Context // Parent context from which worker context is derived
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	tasks chan task

	// steps tracks per-item traversal counts since the last re-key
	steps   map[string]int
	stepsMu sync.Mutex

	stepsTaken    atomic.Uint64
	rekeysIssued  atomic.Uint64
	activeWorkers int
	mu            sync.Mutex

	logger *zap.SugaredLogger
}

// NewPool creates a traversal pool over the given store.
func NewPool(s *store.Store, cfg Config, logger *zap.SugaredLogger) *Pool {
	return NewPoolWithContext(context.Background(), s, cfg, logger)
}

// NewPoolWithContext creates a traversal pool with a custom parent context.
// Cancelling the parent context also stops the workers.
func NewPoolWithContext(ctx context.Context, s *store.Store, cfg Config, logger *zap.SugaredLogger) *Pool {
	workerCtx, cancel := context.WithCancel(ctx)

	p := &Pool{
		store:     s,
		workers:   cfg.Workers,
		parentCtx: ctx,
		ctx:       workerCtx,
		cancel:    cancel,
		tasks:     make(chan task, 64),
		steps:     make(map[string]int),
		logger:    logger.Named("flow"),
	}
	p.tuning.Store(newTunables(cfg))
	return p
}

func newTunables(cfg Config) *tunables {
	t := &tunables{
		rekeyInterval: cfg.RekeyInterval,
		sweepInterval: cfg.SweepInterval,
	}
	if t.rekeyInterval < 1 {
		t.rekeyInterval = 1
	}
	if t.sweepInterval <= 0 {
		t.sweepInterval = 250 * time.Millisecond
	}
	if cfg.StepsPerSecond > 0 {
		t.limiter = rate.NewLimiter(rate.Limit(cfg.StepsPerSecond), 1)
	}
	return t
}

// SetConfig swaps the hot-tunable parts of the configuration. Worker count
// is fixed for the lifetime of a started pool and is ignored here.
func (p *Pool) SetConfig(cfg Config) {
	p.tuning.Store(newTunables(cfg))
}

// Start begins traversal with the configured number of workers
func (p *Pool) Start() {
	p.mu.Lock()
	// Check if context was cancelled (after Stop()) - if so, create new one.
	// This must happen BEFORE spawning workers to avoid races.
	select {
	case <-p.ctx.Done():
		p.ctx, p.cancel = context.WithCancel(p.parentCtx)
		p.tasks = make(chan task, 64)
		p.logger.Debugw("Recreated traversal context after previous shutdown")
	default:
	}
	p.mu.Unlock()

	if warning := p.checkMemoryPressure(); warning != "" {
		p.logger.Warnw("Memory pressure warning", "warning", warning, "workers", p.workers)
	}

	// Capture the channel so a later restart cannot race a slow worker
	tasks := p.tasks

	p.wg.Add(1)
	go p.dispatcher(tasks)

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i, tasks)
	}

	p.logger.Infow("Traversal pool started", "workers", p.workers)
}

// Stop gracefully stops the pool. Uses a timeout so a wedged worker cannot
// block shutdown indefinitely.
func (p *Pool) Stop() {
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timeout := 10 * time.Second
	select {
	case <-done:
		p.logger.Infow("Traversal pool stopped cleanly")
	case <-time.After(timeout):
		p.logger.Warnw("Traversal pool stop timeout", "timeout", timeout)
	}
}

// Workers returns the number of concurrent workers configured for this pool
func (p *Pool) Workers() int {
	return p.workers
}

// StepsTaken returns the total number of traversal steps issued so far
func (p *Pool) StepsTaken() uint64 {
	return p.stepsTaken.Load()
}

// RekeysIssued returns the total number of counter re-keys issued so far
func (p *Pool) RekeysIssued() uint64 {
	return p.rekeysIssued.Load()
}

// dispatcher periodically lists the store and hands each resident item to a
// worker, deciding per item whether the next move is a step or a re-key.
func (p *Pool) dispatcher(tasks chan<- task) {
	defer p.wg.Done()
	defer close(tasks)

	t := p.tuning.Load()
	ticker := time.NewTicker(t.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.sweep(tasks)

			// Pick up a swapped sweep interval between sweeps
			if nt := p.tuning.Load(); nt.sweepInterval != t.sweepInterval {
				ticker.Reset(nt.sweepInterval)
				t = nt
			}
		}
	}
}

// sweep lists the store once and enqueues one move per resident item
func (p *Pool) sweep(tasks chan<- task) {
	exports := p.store.IterAll()
	t := p.tuning.Load()

	live := make(map[string]struct{}, len(exports))
	for _, ex := range exports {
		live[ex.ID] = struct{}{}

		p.stepsMu.Lock()
		p.steps[ex.ID]++
		due := p.steps[ex.ID]%t.rekeyInterval == 0
		p.stepsMu.Unlock()

		tk := task{id: ex.ID, counter: ex.Counter, rekey: due}
		select {
		case tasks <- tk:
		case <-p.ctx.Done():
			return
		}
	}

	// Drop traversal state for items that left the store
	p.stepsMu.Lock()
	for id := range p.steps {
		if _, ok := live[id]; !ok {
			delete(p.steps, id)
		}
	}
	p.stepsMu.Unlock()
}

// worker consumes traversal tasks, respecting the pool-wide rate limit
func (p *Pool) worker(id int, tasks <-chan task) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case tk, ok := <-tasks:
			if !ok {
				return
			}

			if limiter := p.tuning.Load().limiter; limiter != nil {
				if err := limiter.Wait(p.ctx); err != nil {
					return // context cancelled while waiting
				}
			}

			p.mu.Lock()
			p.activeWorkers++
			p.mu.Unlock()

			if err := p.execute(tk); err != nil {
				// Items removed between sweep and execution are expected
				if !errors.IsNotFoundError(err) && !errors.Is(err, errors.ErrStoreClosed) {
					p.logger.Errorw("Traversal move failed",
						"worker_id", id,
						"item_id", tk.id,
						"rekey", tk.rekey,
						"error", err)
				}
			}

			p.mu.Lock()
			p.activeWorkers--
			p.mu.Unlock()
		}
	}
}

// execute performs a single traversal move. Re-keys advance the source
// counter by one, which walks the item's digital root through the full 1-9
// range over successive re-keys so every item eventually visits anchors.
func (p *Pool) execute(tk task) error {
	if tk.rekey {
		p.rekeysIssued.Add(1)
		return p.store.Rekey(tk.id, tk.counter+1)
	}
	p.stepsTaken.Add(1)
	return p.store.Step(tk.id)
}
