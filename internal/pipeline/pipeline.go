package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/reservoir-forecast-service/internal/domain"
	"github.com/couchcryptid/reservoir-forecast-service/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// BatchExtractor reads up to batchSize request messages from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer turns a request message into a result message.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.OutputEvent, error)
}

// BatchLoader writes result messages to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, events []domain.OutputEvent) error
}

// Pipeline runs the extract-forecast-load loop.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	batchSize   int

	ready   atomic.Bool
	backoff time.Duration
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
		backoff:     initialBackoff,
	}
}

// CheckReadiness returns nil once a batch of results has been published.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not published any results yet")
	}
	return nil
}

// Run processes batches until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	for ctx.Err() == nil {
		if !p.step(ctx) {
			break
		}
	}
	p.logger.Info("pipeline stopping", "reason", context.Cause(ctx))
	return nil
}

// step runs one batch cycle and reports whether the loop should continue.
func (p *Pipeline) step(ctx context.Context) bool {
	start := time.Now()

	batch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return p.wait(ctx)
	}
	if len(batch) == 0 {
		return true
	}

	p.metrics.MessagesConsumed.Add(float64(len(batch)))
	p.metrics.BatchSize.Observe(float64(len(batch)))
	p.backoff = initialBackoff

	results, sources := p.transformBatch(ctx, batch)
	if len(results) == 0 {
		return true
	}

	if err := p.loader.LoadBatch(ctx, results); err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("load batch failed", "error", err, "batch_size", len(results))
		return p.wait(ctx)
	}

	p.metrics.MessagesProduced.Add(float64(len(results)))
	for _, raw := range sources {
		p.commit(ctx, raw)
	}

	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)
	p.logger.Debug("batch published", "results", len(results), "skipped", len(batch)-len(results))
	return true
}

// transformBatch converts every message it can. Unparseable messages are
// committed and dropped so they never block the partition.
func (p *Pipeline) transformBatch(ctx context.Context, batch []domain.RawEvent) ([]domain.OutputEvent, []domain.RawEvent) {
	results := make([]domain.OutputEvent, 0, len(batch))
	sources := make([]domain.RawEvent, 0, len(batch))

	for _, raw := range batch {
		out, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.logger.Warn("transform failed, skipping message",
				"error", err,
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.TransformErrors.Inc()
			p.commit(ctx, raw)
			continue
		}
		results = append(results, out)
		sources = append(sources, raw)
	}
	return results, sources
}

// wait sleeps for the current backoff and doubles it up to maxBackoff.
// It returns false when the context ends first.
func (p *Pipeline) wait(ctx context.Context) bool {
	if !retry.SleepWithContext(ctx, p.backoff) {
		return false
	}
	p.backoff = retry.NextBackoff(p.backoff, maxBackoff)
	return true
}

func (p *Pipeline) commit(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}
