package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/onionleak/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the session
// filled in by previous steps.
//
// Design decision: We use an interface rather than function types because
// steps carry configuration state and a Name() for logging.
type Step interface {
	// Do executes the pipeline step.
	// Returns an error if the step fails critically; non-critical errors
	// should be recorded in the session and return nil.
	Do(ctx context.Context, session *model.Session) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// finalSteps run after steps, whatever happened to them.
	finalSteps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError determines whether to continue executing steps
	// after one fails. If false, the pipeline stops on first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails.
//
// Design decision: The default is to stop on error because early failures
// indicate fundamental problems (e.g., traffic is not going through Tor).
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// AddFinalStep appends a step that runs after all regular steps, even when
// one of them failed or the context was cancelled. Final steps get a
// context that is not cancelled with the run's context.
func (p *Pipeline) AddFinalStep(step Step) {
	p.finalSteps = append(p.finalSteps, step)
}

// Execute runs all pipeline steps in sequence, then the final steps.
//
// Design decision: We check ctx before each step rather than during,
// because steps handle their own cancellation. A step that returns
// ctx.Err() marks the session cancelled.
//
// Returns the first error encountered if continueOnError is false.
// Errors from final steps are joined to it.
func (p *Pipeline) Execute(ctx context.Context, session *model.Session) error {
	runErr := p.run(ctx, session)
	if runErr != nil {
		session.Error = runErr
		session.ErrorMessage = runErr.Error()
	}
	session.FinishedAt = time.Now()

	finalCtx := context.WithoutCancel(ctx)
	var finalErrs []error
	for _, step := range p.finalSteps {
		if err := step.Do(finalCtx, session); err != nil {
			p.logger.Error("final step failed", "step", step.Name(), "run", session.ID, "error", err)
			finalErrs = append(finalErrs, err)
			continue
		}
		session.PerformedSteps = append(session.PerformedSteps, step.Name())
	}

	return errors.Join(append([]error{runErr}, finalErrs...)...)
}

func (p *Pipeline) run(ctx context.Context, session *model.Session) error {
	var firstErr error
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled", "step", step.Name(), "reason", err)
			session.Cancelled = true
			return err
		}

		p.logger.Info("executing step", "step", step.Name(), "run", session.ID)

		if err := step.Do(ctx, session); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				session.Cancelled = true
			}
			p.logger.Error("step failed", "step", step.Name(), "run", session.ID, "error", err)

			if !p.continueOnError {
				return err
			}
			if firstErr == nil {
				firstErr = err
			}
		} else {
			p.logger.Debug("step completed", "step", step.Name(), "run", session.ID)
		}

		session.PerformedSteps = append(session.PerformedSteps, step.Name())
	}

	return firstErr
}

// StepCount returns the number of regular steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order,
// final steps last.
func (p *Pipeline) StepNames() []string {
	names := make([]string, 0, len(p.steps)+len(p.finalSteps))
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	for _, step := range p.finalSteps {
		names = append(names, step.Name())
	}
	return names
}
