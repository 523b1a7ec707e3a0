package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/onionleak/internal/model"
)

// BatchProcessor matches several corpus files concurrently.
//
// Design decision: We use a separate BatchProcessor rather than adding batch
// functionality to Pipeline so the Pipeline stays focused on a single run.
// Crawls are never batched: they share one Tor circuit and must stay
// sequential.
type BatchProcessor struct {
	// pipelineFactory creates a fresh pipeline for one corpus.
	pipelineFactory func(corpusPath string) *Pipeline

	// concurrency is the maximum number of corpora scanned at once.
	concurrency int

	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent runs.
// Default is 4 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor. pipelineFactory is called
// once per corpus so no step state leaks between runs.
func NewBatchProcessor(pipelineFactory func(corpusPath string) *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     4,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.New(slog.DiscardHandler)
	}

	return bp
}

// ProcessBatch runs one match session per corpus and returns them in input
// order. A failed run does not stop the others; its error is in its
// session. The returned error is non-nil only when ctx ended the batch;
// corpora that never started then have a nil session.
//
// Design decision: We use errgroup.SetLimit rather than a worker pool
// because errgroup handles the concurrency limit and waiting for us.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, corpora []string) ([]*model.Session, error) {
	sessions := make([]*model.Session, len(corpora))
	err := bp.ProcessBatchWithCallback(ctx, corpora, func(s *model.Session, i int) {
		sessions[i] = s
	})
	return sessions, err
}

// ProcessBatchWithCallback runs one match session per corpus and calls
// callback as each finishes. The callback is called from worker goroutines
// and must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	corpora []string,
	callback func(session *model.Session, index int),
) error {
	bp.logger.Info("starting batch processing",
		"corpora", len(corpora),
		"concurrency", bp.concurrency,
	)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, corpus := range corpora {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			session := model.NewSession(model.SessionMatch)
			session.Targets = []string{corpus}

			if err := bp.pipelineFactory(corpus).Execute(gctx, session); err != nil {
				bp.logger.Warn("match failed", "corpus", corpus, "error", err)
			} else {
				bp.logger.Info("match completed", "corpus", corpus, "index", i+1, "total", len(corpora))
			}

			callback(session, i)
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Info("batch processing complete",
		"corpora", len(corpora),
		"elapsed", time.Since(start),
	)
	return err
}
