// Package executor runs one scenario through both execution paths — a
// direct in-process engine invocation and a serialize-over-HTTP round trip
// — and produces comparable outcomes for the differential reporter.
package executor

import (
	"encoding/json"

	"github.com/raulpineda/wirecheck/pkg/engine"
)

// Path tags identify which execution path produced an outcome.
const (
	PathInProcess = "in-process"
	PathRemote    = "remote"
)

// FailureClass buckets terminal failures for verdict derivation.
type FailureClass string

const (
	// ClassSchemaValidation marks rejections by the structured-output
	// schema layer. Deterministic for a given shape; never retried.
	ClassSchemaValidation FailureClass = "schema-validation"
	// ClassTransport marks network-level failures reaching the remote
	// entry point: connection refused, timeout, broken stream.
	ClassTransport FailureClass = "transport"
	// ClassUnknown marks everything else, surfaced verbatim for triage.
	ClassUnknown FailureClass = "unknown"
)

// Outcome is the result of running one scenario through one path.
// Exactly one of Value and Failure is set.
type Outcome struct {
	Path       string          `json:"path"`
	Events     []engine.Event  `json:"events,omitempty"`
	Success    bool            `json:"success"`
	Value      json.RawMessage `json:"value,omitempty"`
	Failure    *Failure        `json:"failure,omitempty"`
	DurationMs int64           `json:"duration_ms"`
}

// Failure carries the raw error detail and its classification.
type Failure struct {
	Class   FailureClass `json:"class"`
	Message string       `json:"message"`
	Code    string       `json:"code,omitempty"`
}

func success(path string, events []engine.Event, value json.RawMessage) *Outcome {
	return &Outcome{Path: path, Events: events, Success: true, Value: value}
}

func failure(path string, events []engine.Event, class FailureClass, message, code string) *Outcome {
	return &Outcome{
		Path:   path,
		Events: events,
		Failure: &Failure{
			Class:   class,
			Message: message,
			Code:    code,
		},
	}
}
