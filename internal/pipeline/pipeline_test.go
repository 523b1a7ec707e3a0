package pipeline

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/nao1215/onionleak/internal/model"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, session *model.Session) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, session *model.Session) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, session)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()
		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
		if p.logger == nil {
			t.Error("expected a default logger")
		}
	})

	t.Run("applies WithContinueOnError option", func(t *testing.T) {
		t.Parallel()

		p := New(WithContinueOnError(true))
		if !p.continueOnError {
			t.Error("expected continueOnError to be true")
		}
	})
}

func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	p := New()
	p.AddStep(&mockStep{name: "first"})
	p.AddSteps(&mockStep{name: "second"}, &mockStep{name: "third"})
	p.AddFinalStep(&mockStep{name: "final"})

	if p.StepCount() != 3 {
		t.Errorf("expected 3 regular steps, got %d", p.StepCount())
	}
	want := []string{"first", "second", "third", "final"}
	if got := p.StepNames(); !slices.Equal(got, want) {
		t.Errorf("StepNames() = %v, expected %v", got, want)
	}
}

func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("executes all steps in order", func(t *testing.T) {
		t.Parallel()

		var order []string
		record := func(name string) func(context.Context, *model.Session) error {
			return func(context.Context, *model.Session) error {
				order = append(order, name)
				return nil
			}
		}

		p := New()
		p.AddStep(&mockStep{name: "step-1", doFunc: record("step-1")})
		p.AddStep(&mockStep{name: "step-2", doFunc: record("step-2")})
		p.AddFinalStep(&mockStep{name: "final", doFunc: record("final")})

		session := model.NewSession(model.SessionCrawl)
		if err := p.Execute(context.Background(), session); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(order, []string{"step-1", "step-2", "final"}) {
			t.Errorf("wrong execution order: %v", order)
		}
		if !slices.Equal(session.PerformedSteps, []string{"step-1", "step-2", "final"}) {
			t.Errorf("PerformedSteps = %v", session.PerformedSteps)
		}
		if session.FinishedAt.IsZero() {
			t.Error("FinishedAt not set")
		}
	})

	t.Run("stops on first error by default", func(t *testing.T) {
		t.Parallel()

		expectedErr := errors.New("step failed")
		skipped := &mockStep{name: "should-not-run"}
		final := &mockStep{name: "final"}

		p := New()
		p.AddStep(&mockStep{
			name:   "failing-step",
			doFunc: func(context.Context, *model.Session) error { return expectedErr },
		})
		p.AddStep(skipped)
		p.AddFinalStep(final)

		session := model.NewSession(model.SessionCrawl)
		err := p.Execute(context.Background(), session)

		if !errors.Is(err, expectedErr) {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if skipped.callCount != 0 {
			t.Error("second step should not have been called")
		}
		if final.callCount != 1 {
			t.Error("final step should run after a failure")
		}
		if session.ErrorMessage != expectedErr.Error() {
			t.Errorf("ErrorMessage = %q, expected %q", session.ErrorMessage, expectedErr.Error())
		}
	})

	t.Run("continues on error when configured", func(t *testing.T) {
		t.Parallel()

		expectedErr := errors.New("step failed")
		second := &mockStep{name: "should-run"}

		p := New(WithContinueOnError(true))
		p.AddStep(&mockStep{
			name:   "failing-step",
			doFunc: func(context.Context, *model.Session) error { return expectedErr },
		})
		p.AddStep(second)

		err := p.Execute(context.Background(), model.NewSession(model.SessionCrawl))
		if !errors.Is(err, expectedErr) {
			t.Errorf("expected first error to be returned, got %v", err)
		}
		if second.callCount != 1 {
			t.Error("second step should have been called")
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		step := &mockStep{name: "should-not-run"}
		var finalCtxErr error
		final := &mockStep{
			name: "final",
			doFunc: func(ctx context.Context, _ *model.Session) error {
				finalCtxErr = ctx.Err()
				return nil
			},
		}

		p := New()
		p.AddStep(step)
		p.AddFinalStep(final)

		session := model.NewSession(model.SessionCrawl)
		err := p.Execute(ctx, session)

		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if step.callCount != 0 {
			t.Error("step should not have been called")
		}
		if !session.Cancelled {
			t.Error("session.Cancelled should be true")
		}
		if final.callCount != 1 || finalCtxErr != nil {
			t.Errorf("final step should run with a live context, calls=%d err=%v", final.callCount, finalCtxErr)
		}
	})

	t.Run("step returning context error marks cancellation", func(t *testing.T) {
		t.Parallel()

		p := New()
		p.AddStep(&mockStep{
			name:   "interrupted",
			doFunc: func(context.Context, *model.Session) error { return context.DeadlineExceeded },
		})

		session := model.NewSession(model.SessionCrawl)
		_ = p.Execute(context.Background(), session) //nolint:errcheck // checked via session
		if !session.Cancelled {
			t.Error("session.Cancelled should be true")
		}
	})

	t.Run("joins final step errors", func(t *testing.T) {
		t.Parallel()

		finalErr := errors.New("disk full")
		p := New()
		p.AddStep(&mockStep{name: "ok"})
		p.AddFinalStep(&mockStep{
			name:   "persist",
			doFunc: func(context.Context, *model.Session) error { return finalErr },
		})

		session := model.NewSession(model.SessionCrawl)
		err := p.Execute(context.Background(), session)
		if !errors.Is(err, finalErr) {
			t.Errorf("expected final error, got %v", err)
		}
		if session.Error != nil {
			t.Errorf("session.Error = %v, expected nil for a successful run", session.Error)
		}
	})
}
