package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TradeGate/internal/domain/models"
	domrepo "TradeGate/internal/domain/repository"
	applogger "TradeGate/pkg/logger"
)

// Proc is the minimal processor interface the pipeline needs.
type Proc interface {
	ProcessBatch(ctx context.Context, recs []*models.AuditRecord) error
}

// AuditPipeline decouples audit persistence from the decision path.
// Record never blocks: records are buffered and written in batches by a
// background goroutine, with bounded retries when the sink is unavailable.
type AuditPipeline struct {
	proc       Proc
	metrics    domrepo.Metrics
	logger     *applogger.Logger
	bufSize    int
	batchSize  int
	flushEvery time.Duration
	retries    int
	bufCh      chan *models.AuditRecord
	stopCh     chan struct{}
	doneCh     chan struct{}
	started    bool
	stopped    bool
	mu         sync.Mutex
}

type PipelineOption func(*AuditPipeline)

// WithBufferSize sets the number of records held while the sink is slow.
func WithBufferSize(n int) PipelineOption {
	return func(p *AuditPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithBatchSize sets the maximum records per sink write.
func WithBatchSize(n int) PipelineOption {
	return func(p *AuditPipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithFlushInterval sets how long a partial batch may wait.
func WithFlushInterval(d time.Duration) PipelineOption {
	return func(p *AuditPipeline) {
		if d > 0 {
			p.flushEvery = d
		}
	}
}

// WithRetries sets the write attempts per batch before it is dropped.
func WithRetries(n int) PipelineOption {
	return func(p *AuditPipeline) {
		if n > 0 {
			p.retries = n
		}
	}
}

func WithLogger(l *applogger.Logger) PipelineOption {
	return func(p *AuditPipeline) { p.logger = l }
}

// NewAuditPipeline creates a new pipeline.
func NewAuditPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *AuditPipeline {
	p := &AuditPipeline{
		proc:       proc,
		metrics:    metrics,
		logger:     applogger.Nop(),
		bufSize:    4096,
		batchSize:  200,
		flushEvery: time.Second,
		retries:    3,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.AuditRecord, p.bufSize)
	return p
}

// Record validates and enqueues a record. A full buffer drops the record.
func (p *AuditPipeline) Record(rec *models.AuditRecord) {
	if err := validateRecord(rec); err != nil {
		p.metrics.RecordError("audit_validate")
		p.logger.Warn("audit record rejected", applogger.Error(err))
		return
	}
	select {
	case p.bufCh <- rec:
	default:
		p.metrics.RecordError("audit_buffer_full")
		p.logger.Warn("audit buffer full, record dropped",
			applogger.String("kind", string(rec.Kind)),
			applogger.String("id", rec.ID),
		)
	}
}

// Start launches the background writer.
func (p *AuditPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.run(ctx)
}

func (p *AuditPipeline) run(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.flushEvery)
	defer ticker.Stop()

	batch := make([]*models.AuditRecord, 0, p.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		p.write(ctx, batch)
		batch = make([]*models.AuditRecord, 0, p.batchSize)
	}

	for {
		select {
		case <-p.stopCh:
			// drain what is already buffered
			for {
				select {
				case rec := <-p.bufCh:
					batch = append(batch, rec)
					if len(batch) >= p.batchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		case rec := <-p.bufCh:
			batch = append(batch, rec)
			if len(batch) >= p.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

// write retries with exponential backoff, then drops the batch.
func (p *AuditPipeline) write(ctx context.Context, batch []*models.AuditRecord) {
	start := time.Now()
	backoff := 50 * time.Millisecond
	var err error
	for attempt := 1; attempt <= p.retries; attempt++ {
		if err = p.proc.ProcessBatch(ctx, batch); err == nil {
			p.metrics.RecordLatency("audit_flush", time.Since(start).Seconds())
			return
		}
		p.metrics.RecordError("audit_flush")
		if attempt == p.retries {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			attempt = p.retries
		}
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}
	p.metrics.RecordError("audit_batch_drop")
	p.logger.Error("audit batch dropped",
		applogger.Int("records", len(batch)),
		applogger.Error(err),
	)
}

// Stop flushes buffered records and stops the writer. It waits for the
// final write or ctx, whichever comes first.
func (p *AuditPipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	p.mu.Unlock()
	close(p.stopCh)

	select {
	case <-p.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit pipeline stop: %w", ctx.Err())
	}
}

// Pending returns the number of buffered records.
func (p *AuditPipeline) Pending() int {
	return len(p.bufCh)
}

func validateRecord(r *models.AuditRecord) error {
	if r == nil {
		return fmt.Errorf("audit record nil")
	}
	if r.ID == "" {
		return fmt.Errorf("audit record id empty")
	}
	if r.Kind == "" {
		return fmt.Errorf("audit record %s kind empty", r.ID)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("audit record %s timestamp empty", r.ID)
	}
	return nil
}

var _ domrepo.AuditRecorder = (*AuditPipeline)(nil)
