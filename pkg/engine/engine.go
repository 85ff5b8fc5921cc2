// Package engine defines the orchestration engine contract consumed by the
// dual-path executor: a Run entry point producing a finite, ordered stream
// of events terminated by a completed or failed event.
package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/raulpineda/wirecheck/pkg/scenario"
)

// Event kinds emitted during a run. A stream ends with exactly one of the
// two terminal kinds.
const (
	KindAgentSelected = "agent_selected"
	KindToolCalled    = "tool_called"
	KindTextDelta     = "text_delta"
	KindCompleted     = "completed" // terminal: payload is the final structured value
	KindFailed        = "failed"    // terminal: payload is an ErrorDetail
)

// Event is a single typed record in a run's event stream.
type Event struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Terminal reports whether the event ends its stream.
func (e Event) Terminal() bool {
	return e.Kind == KindCompleted || e.Kind == KindFailed
}

// ErrorDetail is the payload of a failed event.
type ErrorDetail struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Engine is the orchestration entry point: it accepts a scenario and
// returns its event stream. Implementations must emit events in order and
// close the stream after the terminal event.
type Engine interface {
	Run(ctx context.Context, s *scenario.Scenario) (*Stream, error)
}

// Stream is a finite, ordered, single-consumer sequence of events.
// Producers emit then close; the consumer reads with Next until it
// observes a terminal event or stream end.
type Stream struct {
	ch chan Event
}

// NewStream creates a stream with the given producer-side buffer.
func NewStream(buffer int) *Stream {
	return &Stream{ch: make(chan Event, buffer)}
}

// Emit appends an event to the stream, blocking while the consumer is
// behind and the buffer is full. Returns false when ctx ends first: the
// consumer abandoned the stream and the producer must stop emitting.
func (s *Stream) Emit(ctx context.Context, ev Event) bool {
	select {
	case s.ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close marks the end of the stream. Must be called exactly once, after
// the terminal event.
func (s *Stream) Close() {
	close(s.ch)
}

// Next returns the next event, or ok=false when the stream is exhausted.
// A context error surfaces as err, letting the consumer abandon a stalled
// stream without blocking indefinitely.
func (s *Stream) Next(ctx context.Context) (Event, bool, error) {
	select {
	case ev, ok := <-s.ch:
		return ev, ok, nil
	case <-ctx.Done():
		return Event{}, false, ctx.Err()
	}
}

// Completed builds the terminal success event carrying the final value.
func Completed(value any) Event {
	data, err := json.Marshal(value)
	if err != nil {
		return Failed(fmt.Sprintf("marshal final value: %v", err), "internal")
	}
	return Event{Kind: KindCompleted, Payload: data}
}

// Failed builds the terminal failure event.
func Failed(message, code string) Event {
	data, _ := json.Marshal(ErrorDetail{Message: message, Code: code})
	return Event{Kind: KindFailed, Payload: data}
}
