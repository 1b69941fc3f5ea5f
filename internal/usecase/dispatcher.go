package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	applogger "TradeGate/pkg/logger"
)

var ErrDispatcherClosed = errors.New("dispatcher closed")

type job struct {
	ctx  context.Context
	fn   func(context.Context) error
	err  error
	done chan struct{}
}

type symbolWorker struct {
	jobs chan *job
}

// Dispatcher runs jobs for one symbol sequentially on a dedicated goroutine.
// Different symbols run concurrently.
type Dispatcher struct {
	queueSize int
	logger    *applogger.Logger

	mu      sync.RWMutex
	workers map[string]*symbolWorker
	closed  bool
	wg      sync.WaitGroup
}

func NewDispatcher(queueSize int, logger *applogger.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}
	if logger == nil {
		logger = applogger.Nop()
	}
	return &Dispatcher{
		queueSize: queueSize,
		logger:    logger,
		workers:   make(map[string]*symbolWorker),
	}
}

// Submit queues fn on symbol's worker and waits until it ran.
// A job whose context is cancelled before it starts is skipped.
func (d *Dispatcher) Submit(ctx context.Context, symbol string, fn func(context.Context) error) error {
	j := &job{ctx: ctx, fn: fn, done: make(chan struct{})}
	if err := d.enqueue(ctx, symbol, j); err != nil {
		return err
	}
	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, symbol string, j *job) error {
	d.mu.RLock()
	w, ok := d.workers[symbol]
	if !ok {
		d.mu.RUnlock()
		d.spawn(symbol)
		d.mu.RLock()
		w, ok = d.workers[symbol]
	}
	defer d.mu.RUnlock()
	if d.closed || !ok {
		return ErrDispatcherClosed
	}
	select {
	case w.jobs <- j:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) spawn(symbol string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if _, ok := d.workers[symbol]; ok {
		return
	}
	w := &symbolWorker{jobs: make(chan *job, d.queueSize)}
	d.workers[symbol] = w
	d.wg.Add(1)
	go d.run(symbol, w)
	d.logger.Debug("symbol worker started", applogger.String("symbol", symbol))
}

func (d *Dispatcher) run(symbol string, w *symbolWorker) {
	defer d.wg.Done()
	for j := range w.jobs {
		d.exec(symbol, j)
	}
}

func (d *Dispatcher) exec(symbol string, j *job) {
	defer close(j.done)
	defer func() {
		if r := recover(); r != nil {
			j.err = fmt.Errorf("symbol %s: job panicked: %v", symbol, r)
			d.logger.Error("symbol job panicked", applogger.String("symbol", symbol), applogger.Any("panic", r))
		}
	}()
	if err := j.ctx.Err(); err != nil {
		j.err = err
		return
	}
	j.err = j.fn(j.ctx)
}

// Symbols returns the number of live workers.
func (d *Dispatcher) Symbols() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.workers)
}

// Close stops accepting jobs, drains queued ones and waits for workers.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		for _, w := range d.workers {
			close(w.jobs)
		}
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
