package executor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/raulpineda/wirecheck/pkg/engine"
	"github.com/raulpineda/wirecheck/pkg/scenario"
)

// RunsPath is the remote entry point route.
const RunsPath = "/v1/runs"

// errorBody is the structured error payload a remote entry point returns
// on a non-streaming failure.
type errorBody struct {
	Error engine.ErrorDetail `json:"error"`
}

// RunRemote serializes the scenario to its wire form, posts it to the
// configured endpoint, and consumes the NDJSON event stream. Network
// failures classify as transport — never schema-validation — and retry
// within the configured budget; failures reported by the server body
// go through the classifier like in-process errors.
func (r *Runner) RunRemote(ctx context.Context, s *scenario.Scenario) *Outcome {
	start := time.Now()
	out := r.runRemote(ctx, s)
	out.DurationMs = time.Since(start).Milliseconds()
	return out
}

func (r *Runner) runRemote(ctx context.Context, s *scenario.Scenario) *Outcome {
	ctx, cancel := context.WithTimeout(ctx, r.timeout())
	defer cancel()

	body, err := scenario.MarshalWire(scenario.EncodeWire(s))
	if err != nil {
		return failure(PathRemote, nil, ClassUnknown, err.Error(), "")
	}

	var last *Outcome
	for attempt := 0; attempt <= r.Retries; attempt++ {
		if attempt > 0 && !r.backoff(ctx) {
			break
		}
		out, retryable := r.attempt(ctx, body)
		if !retryable {
			return out
		}
		last = out
	}
	if last == nil {
		last = failure(PathRemote, nil, ClassTransport, "remote path never attempted", "")
	}
	return last
}

// attempt performs one request/stream cycle. retryable is true only for
// transport failures that happened before any event was received.
func (r *Runner) attempt(ctx context.Context, body []byte) (out *Outcome, retryable bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(r.Endpoint, "/")+RunsPath, bytes.NewReader(body))
	if err != nil {
		return failure(PathRemote, nil, ClassUnknown, err.Error(), ""), false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := r.client().Do(req)
	if err != nil {
		return failure(PathRemote, nil, ClassTransport, err.Error(), transportCode(err)), true
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return r.errorOutcome(resp), false
	}

	var events []engine.Event
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev engine.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return failure(PathRemote, events, ClassTransport,
				fmt.Sprintf("malformed event line: %v", err), ""), false
		}
		events = append(events, ev)
		r.observe(PathRemote, ev)
		if done, o := r.terminalOutcome(PathRemote, events, ev); done {
			return o, false
		}
	}
	if err := scanner.Err(); err != nil {
		return failure(PathRemote, events, ClassTransport,
			fmt.Sprintf("event stream broken: %v", err), transportCode(err)), len(events) == 0
	}
	return failure(PathRemote, events, ClassTransport,
		"event stream ended without a terminal event", ""), false
}

// errorOutcome maps a non-200 response with a structured error body into a
// classified failure. A body that is not the expected shape surfaces
// verbatim as unknown.
func (r *Runner) errorOutcome(resp *http.Response) *Outcome {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return failure(PathRemote, nil, ClassTransport,
			fmt.Sprintf("read error body: %v", err), "")
	}
	var eb errorBody
	if err := json.Unmarshal(data, &eb); err != nil || eb.Error.Message == "" {
		return failure(PathRemote, nil, ClassUnknown,
			fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data))), "")
	}
	return failure(PathRemote, nil, r.classifier().Classify(eb.Error), eb.Error.Message, eb.Error.Code)
}

// backoff sleeps between transport retries. Returns false if the path's
// deadline expired first.
func (r *Runner) backoff(ctx context.Context) bool {
	if r.Backoff <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-time.After(r.Backoff):
		return true
	case <-ctx.Done():
		return false
	}
}

func (r *Runner) client() *http.Client {
	if r.Client != nil {
		return r.Client
	}
	return http.DefaultClient
}

func transportCode(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return ""
}

func decodeErrorDetail(payload json.RawMessage) engine.ErrorDetail {
	var detail engine.ErrorDetail
	if err := json.Unmarshal(payload, &detail); err != nil || detail.Message == "" {
		detail.Message = string(payload)
	}
	return detail
}

// InstrumentTransport attaches an observation hook to the runner's HTTP
// transport. The hook sees every outgoing request and its response or
// error; it must not modify either. This replaces process-wide
// interception of the HTTP primitives.
func (r *Runner) InstrumentTransport(observe func(req *http.Request, resp *http.Response, err error)) {
	base := http.DefaultTransport
	client := r.Client
	if client == nil {
		client = &http.Client{}
		r.Client = client
	}
	if client.Transport != nil {
		base = client.Transport
	}
	client.Transport = &observedTransport{base: base, observe: observe}
}

type observedTransport struct {
	base    http.RoundTripper
	observe func(*http.Request, *http.Response, error)
}

func (t *observedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	t.observe(req, resp, err)
	return resp, err
}
