package executor

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/raulpineda/wirecheck/pkg/engine"
	"github.com/raulpineda/wirecheck/pkg/scenario"
)

// DefaultTimeout bounds each path when the runner is not configured.
const DefaultTimeout = 60 * time.Second

// Runner executes a scenario through both paths. The two paths share no
// mutable state and run concurrently, each under its own timeout; a failure
// on one never prevents collecting the other's outcome.
//
// The runner never starts or stops the server behind Endpoint — it is an
// independently owned process, and an unreachable endpoint is simply a
// transport-classified outcome.
type Runner struct {
	Engine     engine.Engine // in-process entry point
	Endpoint   string        // remote base URL, e.g. http://localhost:4111
	Timeout    time.Duration // per-path; DefaultTimeout when zero
	Classifier *Classifier   // nil means DefaultClassifier
	Client     *http.Client  // nil means http.DefaultClient
	Retries    int           // transport-only retry budget for the remote path
	Backoff    time.Duration // pause between transport retries

	// Observe, when set, receives each event as it is consumed, tagged
	// with its path. Paths run concurrently, so it must be safe for
	// concurrent calls.
	Observe func(path string, ev engine.Event)
}

func (r *Runner) observe(path string, ev engine.Event) {
	if r.Observe != nil {
		r.Observe(path, ev)
	}
}

// Run executes both paths concurrently and returns their outcomes, always
// in (in-process, remote) order.
func (r *Runner) Run(ctx context.Context, s *scenario.Scenario) (*Outcome, *Outcome) {
	var (
		wg     sync.WaitGroup
		inProc *Outcome
		remote *Outcome
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		inProc = r.RunInProcess(ctx, s)
	}()
	go func() {
		defer wg.Done()
		remote = r.RunRemote(ctx, s)
	}()
	wg.Wait()
	return inProc, remote
}

// RunInProcess invokes the engine directly and consumes its event stream
// to the terminal event. A timeout or stalled stream yields an unknown-
// classified failure rather than blocking.
func (r *Runner) RunInProcess(ctx context.Context, s *scenario.Scenario) *Outcome {
	start := time.Now()
	out := r.runInProcess(ctx, s)
	out.DurationMs = time.Since(start).Milliseconds()
	return out
}

func (r *Runner) runInProcess(ctx context.Context, s *scenario.Scenario) *Outcome {
	ctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	stream, err := r.Engine.Run(ctx, s)
	if err != nil {
		detail := engine.ErrorDetail{Message: err.Error()}
		return failure(PathInProcess, nil, r.classifier().Classify(detail), detail.Message, "")
	}

	var events []engine.Event
	for {
		ev, ok, err := stream.Next(ctx)
		if err != nil {
			return failure(PathInProcess, events, ClassUnknown,
				fmt.Sprintf("event stream abandoned: %v", err), "timeout")
		}
		if !ok {
			return failure(PathInProcess, events, ClassUnknown,
				"event stream ended without a terminal event", "")
		}
		events = append(events, ev)
		r.observe(PathInProcess, ev)
		if done, out := r.terminalOutcome(PathInProcess, events, ev); done {
			return out
		}
	}
}

// terminalOutcome converts a terminal event into an outcome. Non-terminal
// events return done=false.
func (r *Runner) terminalOutcome(path string, events []engine.Event, ev engine.Event) (bool, *Outcome) {
	switch ev.Kind {
	case engine.KindCompleted:
		return true, success(path, events, ev.Payload)
	case engine.KindFailed:
		detail := decodeErrorDetail(ev.Payload)
		return true, failure(path, events, r.classifier().Classify(detail), detail.Message, detail.Code)
	}
	return false, nil
}

func (r *Runner) timeout() time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return DefaultTimeout
}

func (r *Runner) classifier() *Classifier {
	if r.Classifier != nil {
		return r.Classifier
	}
	return DefaultClassifier()
}
