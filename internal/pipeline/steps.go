package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/onionleak/internal/crawler"
	"github.com/nao1215/onionleak/internal/matcher"
	"github.com/nao1215/onionleak/internal/model"
	"github.com/nao1215/onionleak/internal/report"
)

// Verifier confirms that traffic leaves through Tor.
// *tor.CircuitSession implements it.
type Verifier interface {
	Verify(ctx context.Context) error
}

// VerifyStep checks connectivity and fails the session when the check
// fails, so no fetch is attempted.
type VerifyStep struct {
	verifier Verifier
	logger   *slog.Logger
}

// NewVerifyStep creates a connectivity check step.
func NewVerifyStep(verifier Verifier, logger *slog.Logger) *VerifyStep {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &VerifyStep{verifier: verifier, logger: logger}
}

// Name implements Step.
func (s *VerifyStep) Name() string {
	return "verify"
}

// Do implements Step.
func (s *VerifyStep) Do(ctx context.Context, session *model.Session) error {
	if err := s.verifier.Verify(ctx); err != nil {
		session.Connected = false
		return fmt.Errorf("connectivity check failed: %w", err)
	}
	session.Connected = true
	s.logger.Info("connected through Tor")
	return nil
}

// ResultSink receives every finished fetch. *sink.Corpus implements it.
type ResultSink interface {
	AppendResult(result *model.FetchResult) error
}

// CrawlStep fetches every target of the session.
//
// The engine runs on one goroutine and reports progress through an event
// channel; a second goroutine drains it and writes page text to the sink.
// The two share no mutable state.
type CrawlStep struct {
	session  crawler.Session
	sink     ResultSink
	engineOp []crawler.Option
	progress crawler.Observer
	buffer   int
	logger   *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithEngineOptions passes options to the fetch engine.
func WithEngineOptions(opts ...crawler.Option) CrawlStepOption {
	return func(s *CrawlStep) {
		s.engineOp = append(s.engineOp, opts...)
	}
}

// WithProgress sets an observer called from the consumer goroutine for
// every event, e.g. to print progress.
func WithProgress(o crawler.Observer) CrawlStepOption {
	return func(s *CrawlStep) {
		s.progress = o
	}
}

// WithCrawlLogger sets the step logger.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEventBuffer sets the event channel capacity.
func WithEventBuffer(n int) CrawlStepOption {
	return func(s *CrawlStep) {
		if n >= 0 {
			s.buffer = n
		}
	}
}

// NewCrawlStep creates a crawl step fetching through session and writing
// successful pages to sink. A nil sink discards page text.
func NewCrawlStep(session crawler.Session, sink ResultSink, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		session: session,
		sink:    sink,
		buffer:  64,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Step.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do implements Step. Results gathered before a cancellation are kept in
// the session.
func (s *CrawlStep) Do(ctx context.Context, session *model.Session) error {
	if !session.Connected {
		return errors.New("crawl refused: connectivity has not been verified")
	}

	events := make(chan crawler.Event, s.buffer)
	g, gctx := errgroup.WithContext(ctx)

	forward := crawler.ObserverFunc(func(e crawler.Event) {
		select {
		case events <- e:
		case <-gctx.Done():
		}
	})

	opts := append([]crawler.Option{crawler.WithLogger(s.logger)}, s.engineOp...)
	opts = append(opts, crawler.WithObserver(forward))
	engine := crawler.NewEngine(s.session, opts...)

	var results []model.FetchResult
	g.Go(func() error {
		defer close(events)
		var err error
		results, err = engine.FetchAll(gctx, session.Targets)
		return err
	})

	g.Go(func() error {
		for e := range events {
			if s.progress != nil {
				s.progress.Observe(e)
			}
			if e.Kind != crawler.EventFetchFinished || s.sink == nil {
				continue
			}
			if err := s.sink.AppendResult(e.Result); err != nil {
				return fmt.Errorf("failed to store page text: %w", err)
			}
		}
		return nil
	})

	err := g.Wait()
	session.Results = results

	s.logger.Info("crawl finished",
		"targets", len(session.Targets),
		"succeeded", session.CountByStatus(model.StatusSuccess),
		"failed", session.CountByStatus(model.StatusHTTPError)+session.CountByStatus(model.StatusNetworkError),
		"skipped", session.CountByStatus(model.StatusSkipped))

	return err
}

// MatchStep scans a corpus file for the values in a reference file and
// stores the report in the session.
type MatchStep struct {
	engine         *matcher.Engine
	referencesPath string
	corpusPath     string
	onReferences   func(refs ...string)
}

// MatchStepOption configures a MatchStep.
type MatchStepOption func(*MatchStep)

// WithReferenceHook is called with the loaded references before scanning,
// e.g. to register them for log redaction.
func WithReferenceHook(f func(refs ...string)) MatchStepOption {
	return func(s *MatchStep) {
		s.onReferences = f
	}
}

// NewMatchStep creates a match step.
func NewMatchStep(engine *matcher.Engine, referencesPath, corpusPath string, opts ...MatchStepOption) *MatchStep {
	s := &MatchStep{
		engine:         engine,
		referencesPath: referencesPath,
		corpusPath:     corpusPath,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements Step.
func (s *MatchStep) Name() string {
	return "match"
}

// Do implements Step.
func (s *MatchStep) Do(ctx context.Context, session *model.Session) error {
	refs, err := matcher.LoadReferences(s.referencesPath)
	if err != nil {
		return err
	}
	if s.onReferences != nil {
		s.onReferences(refs...)
	}

	rep, err := s.engine.ParseFile(ctx, refs, s.corpusPath)
	if err != nil {
		return err
	}
	session.Targets = []string{s.corpusPath}
	session.Report = rep
	return nil
}

// ReportStep writes the session's match report.
type ReportStep struct {
	writer report.Writer
}

// NewReportStep creates a report step.
func NewReportStep(w report.Writer) *ReportStep {
	return &ReportStep{writer: w}
}

// Name implements Step.
func (s *ReportStep) Name() string {
	return "report"
}

// Do implements Step. A session without a report is an error, so a failed
// match never produces a partial report.
func (s *ReportStep) Do(_ context.Context, session *model.Session) error {
	if session.Report == nil {
		return errors.New("no match report to write")
	}
	if _, err := s.writer.Write(session.Report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// Recorder persists sessions. *database.Store implements it.
type Recorder interface {
	// RecordSession stores the session, its fetches, and its report
	// atomically. corpus is the scanned file of a match session.
	RecordSession(ctx context.Context, session *model.Session, corpus string) error
}

// PersistStep records the session, its fetches, and its report. It is
// meant to be added with AddFinalStep so failed runs are recorded too.
type PersistStep struct {
	recorder Recorder
}

// NewPersistStep creates a persist step.
func NewPersistStep(r Recorder) *PersistStep {
	return &PersistStep{recorder: r}
}

// Name implements Step.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do implements Step.
func (s *PersistStep) Do(ctx context.Context, session *model.Session) error {
	corpus := ""
	if session.Report != nil && len(session.Targets) > 0 {
		corpus = session.Targets[0]
	}
	return s.recorder.RecordSession(ctx, session, corpus)
}
