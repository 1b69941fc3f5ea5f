package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"TradeGate/internal/domain/models"
	domrepo "TradeGate/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collectProc struct {
	mu      sync.Mutex
	batches [][]*models.AuditRecord
	fail    int
	calls   int
}

func (c *collectProc) ProcessBatch(_ context.Context, recs []*models.AuditRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.fail > 0 {
		c.fail--
		return errors.New("sink down")
	}
	cp := append([]*models.AuditRecord(nil), recs...)
	c.batches = append(c.batches, cp)
	return nil
}

func (c *collectProc) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, b := range c.batches {
		n += len(b)
	}
	return n
}

func rec(i int) *models.AuditRecord {
	return &models.AuditRecord{ID: fmt.Sprintf("r-%d", i), Kind: models.AuditDecision, Timestamp: time.Now()}
}

func TestPipelineBatchesAndDrainsOnStop(t *testing.T) {
	proc := &collectProc{}
	p := NewAuditPipeline(proc, domrepo.NoopMetrics{}, WithBatchSize(4), WithFlushInterval(time.Hour))
	p.Start(context.Background())

	for i := 0; i < 10; i++ {
		p.Record(rec(i))
	}
	require.NoError(t, p.Stop(context.Background()))

	assert.Equal(t, 10, proc.total())
	for _, b := range proc.batches {
		assert.LessOrEqual(t, len(b), 4)
	}
}

func TestPipelineFlushesOnInterval(t *testing.T) {
	proc := &collectProc{}
	p := NewAuditPipeline(proc, domrepo.NoopMetrics{}, WithBatchSize(100), WithFlushInterval(10*time.Millisecond))
	p.Start(context.Background())
	defer p.Stop(context.Background())

	p.Record(rec(1))
	assert.Eventually(t, func() bool { return proc.total() == 1 }, time.Second, 5*time.Millisecond)
}

func TestPipelineRetriesThenSucceeds(t *testing.T) {
	proc := &collectProc{fail: 2}
	p := NewAuditPipeline(proc, domrepo.NoopMetrics{}, WithBatchSize(1), WithRetries(3))
	p.Start(context.Background())

	p.Record(rec(1))
	require.NoError(t, p.Stop(context.Background()))
	assert.Equal(t, 1, proc.total())
	assert.Equal(t, 3, proc.calls)
}

func TestPipelineDropsAfterRetries(t *testing.T) {
	proc := &collectProc{fail: 10}
	p := NewAuditPipeline(proc, domrepo.NoopMetrics{}, WithBatchSize(1), WithRetries(2))
	p.Start(context.Background())

	p.Record(rec(1))
	require.NoError(t, p.Stop(context.Background()))
	assert.Zero(t, proc.total())
	assert.Equal(t, 2, proc.calls)
}

func TestPipelineRejectsInvalidAndOverflow(t *testing.T) {
	proc := &collectProc{}
	p := NewAuditPipeline(proc, domrepo.NoopMetrics{}, WithBufferSize(2))

	p.Record(nil)
	p.Record(&models.AuditRecord{ID: "x"})
	assert.Equal(t, 0, p.Pending())

	// not started: the buffer fills and further records are dropped
	p.Record(rec(1))
	p.Record(rec(2))
	p.Record(rec(3))
	assert.Equal(t, 2, p.Pending())
}
