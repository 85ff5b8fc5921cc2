package executor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/raulpineda/wirecheck/pkg/engine"
	"github.com/raulpineda/wirecheck/pkg/scenario"
)

func mathScenario(t *testing.T) *scenario.Scenario {
	t.Helper()
	s, err := scenario.New("math",
		[]scenario.Turn{{Role: scenario.RoleUser, Content: "What is 2 + 2?"}},
		&scenario.Shape{Fields: map[string]string{"answer": scenario.TypeNumber}},
		nil, nil)
	if err != nil {
		t.Fatalf("construct scenario: %v", err)
	}
	return s
}

func answerEngine() engine.Engine {
	return engine.NewScripted(&engine.Script{
		Events: []engine.ScriptEvent{
			{Kind: engine.KindAgentSelected, Payload: map[string]any{"agent": "math"}},
		},
		Final: map[string]any{"answer": 4},
	})
}

// stalledEngine returns a stream that never produces anything.
type stalledEngine struct{}

func (stalledEngine) Run(ctx context.Context, s *scenario.Scenario) (*engine.Stream, error) {
	return engine.NewStream(0), nil
}

// TestRunInProcessSuccess checks event collection and the final value.
func TestRunInProcessSuccess(t *testing.T) {
	r := &Runner{Engine: answerEngine(), Timeout: 2 * time.Second}
	out := r.RunInProcess(context.Background(), mathScenario(t))
	if !out.Success {
		t.Fatalf("expected success, got failure: %+v", out.Failure)
	}
	if out.Path != PathInProcess {
		t.Errorf("path = %s", out.Path)
	}
	if len(out.Events) != 2 {
		t.Errorf("expected 2 events, got %d", len(out.Events))
	}
	if !strings.Contains(string(out.Value), "answer") {
		t.Errorf("final value missing: %s", out.Value)
	}
}

// TestRunInProcessTimeout checks that a stalled stream yields an
// unknown-classified failure within the configured bound.
func TestRunInProcessTimeout(t *testing.T) {
	r := &Runner{Engine: stalledEngine{}, Timeout: 50 * time.Millisecond}

	start := time.Now()
	out := r.RunInProcess(context.Background(), mathScenario(t))
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeout not enforced, took %v", elapsed)
	}
	if out.Success {
		t.Fatal("expected failure")
	}
	if out.Failure.Class != ClassUnknown {
		t.Errorf("class = %s, want %s", out.Failure.Class, ClassUnknown)
	}
}

// TestRunInProcessSchemaFailure checks classification of validator errors.
func TestRunInProcessSchemaFailure(t *testing.T) {
	eng := engine.NewScripted(&engine.Script{Final: map[string]any{"result": 4}})
	r := &Runner{Engine: eng, Timeout: 2 * time.Second}
	out := r.RunInProcess(context.Background(), mathScenario(t))
	if out.Success {
		t.Fatal("expected failure")
	}
	if out.Failure.Class != ClassSchemaValidation {
		t.Errorf("class = %s, want %s (message: %s)", out.Failure.Class, ClassSchemaValidation, out.Failure.Message)
	}
}

// ndjsonHandler streams the given lines as an NDJSON response.
func ndjsonHandler(lines ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			w.Write([]byte(line + "\n"))
			flusher.Flush()
		}
	}
}

// TestRunRemoteSuccess checks the serialize-transmit-consume round trip.
func TestRunRemoteSuccess(t *testing.T) {
	srv := httptest.NewServer(ndjsonHandler(
		`{"kind":"agent_selected","payload":{"agent":"math"}}`,
		`{"kind":"completed","payload":{"answer":4}}`,
	))
	defer srv.Close()

	r := &Runner{Endpoint: srv.URL, Timeout: 2 * time.Second}
	out := r.RunRemote(context.Background(), mathScenario(t))
	if !out.Success {
		t.Fatalf("expected success, got: %+v", out.Failure)
	}
	if len(out.Events) != 2 {
		t.Errorf("expected 2 events, got %d", len(out.Events))
	}
}

// TestRunRemoteSchemaErrorBody checks that a structured error body with
// schema-validation wording classifies as schema-validation.
func TestRunRemoteSchemaErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"response does not match schema: additionalProperties 'units' not allowed","code":"schema"}}`))
	}))
	defer srv.Close()

	r := &Runner{Endpoint: srv.URL, Timeout: 2 * time.Second}
	out := r.RunRemote(context.Background(), mathScenario(t))
	if out.Success {
		t.Fatal("expected failure")
	}
	if out.Failure.Class != ClassSchemaValidation {
		t.Errorf("class = %s, want %s", out.Failure.Class, ClassSchemaValidation)
	}
	if !strings.Contains(out.Failure.Message, "additionalProperties") {
		t.Errorf("raw error text not preserved: %q", out.Failure.Message)
	}
}

// TestRunRemoteUnreachable checks that connection failures classify as
// transport, never schema-validation.
func TestRunRemoteUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close() // now nothing is listening

	r := &Runner{Endpoint: endpoint, Timeout: 2 * time.Second}
	out := r.RunRemote(context.Background(), mathScenario(t))
	if out.Success {
		t.Fatal("expected failure")
	}
	if out.Failure.Class != ClassTransport {
		t.Errorf("class = %s, want %s", out.Failure.Class, ClassTransport)
	}
}

// TestRunRemoteTimeout checks the per-path deadline on a stalled server.
func TestRunRemoteTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		<-release
	}))
	defer func() {
		close(release)
		srv.Close()
	}()

	r := &Runner{Endpoint: srv.URL, Timeout: 50 * time.Millisecond}
	start := time.Now()
	out := r.RunRemote(context.Background(), mathScenario(t))
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("timeout not enforced, took %v", elapsed)
	}
	if out.Success || out.Failure.Class != ClassTransport {
		t.Fatalf("expected transport failure, got: %+v", out)
	}
}

// flakyTransport fails the first n round trips at the network level, then
// delegates.
type flakyTransport struct {
	failures int
	attempts int
}

func (t *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.attempts++
	if t.attempts <= t.failures {
		return nil, errDialRefused
	}
	return http.DefaultTransport.RoundTrip(req)
}

// errDialRefused stands in for a dial failure.
var errDialRefused = errors.New("dial tcp: connection refused")

// TestRunRemoteRetriesTransport checks bounded retry with backoff for
// transport failures.
func TestRunRemoteRetriesTransport(t *testing.T) {
	srv := httptest.NewServer(ndjsonHandler(`{"kind":"completed","payload":{"answer":4}}`))
	defer srv.Close()

	ft := &flakyTransport{failures: 2}
	r := &Runner{
		Endpoint: srv.URL,
		Timeout:  2 * time.Second,
		Client:   &http.Client{Transport: ft},
		Retries:  2,
		Backoff:  time.Millisecond,
	}
	out := r.RunRemote(context.Background(), mathScenario(t))
	if !out.Success {
		t.Fatalf("expected success after retries, got: %+v", out.Failure)
	}
	if ft.attempts != 3 {
		t.Errorf("attempts = %d, want 3", ft.attempts)
	}
}

// TestRunCollectsBothPathsIndependently checks that a dead remote endpoint
// does not prevent collecting the in-process outcome.
func TestRunCollectsBothPathsIndependently(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	r := &Runner{Engine: answerEngine(), Endpoint: endpoint, Timeout: 2 * time.Second}
	inProc, remote := r.Run(context.Background(), mathScenario(t))
	if !inProc.Success {
		t.Errorf("in-process outcome lost: %+v", inProc.Failure)
	}
	if remote.Success || remote.Failure.Class != ClassTransport {
		t.Errorf("expected remote transport failure, got: %+v", remote)
	}
}

// TestInstrumentTransport checks the explicit observation hook sees the
// outgoing request.
func TestInstrumentTransport(t *testing.T) {
	srv := httptest.NewServer(ndjsonHandler(`{"kind":"completed","payload":{}}`))
	defer srv.Close()

	var seen []string
	r := &Runner{Endpoint: srv.URL, Timeout: 2 * time.Second}
	r.InstrumentTransport(func(req *http.Request, resp *http.Response, err error) {
		seen = append(seen, req.Method+" "+req.URL.Path)
	})

	s, err := scenario.New("hook", []scenario.Turn{{Role: scenario.RoleUser, Content: "hi"}}, nil, nil, nil)
	if err != nil {
		t.Fatalf("construct scenario: %v", err)
	}
	r.RunRemote(context.Background(), s)
	if len(seen) != 1 || seen[0] != "POST "+RunsPath {
		t.Errorf("hook observed %v", seen)
	}
}
