package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/raulpineda/wirecheck/pkg/scenario"
)

// Script is a recorded engine behavior: the events to replay, then either
// a final structured value or a scripted failure. Scripts make runs
// deterministic, so the only variable left between the two execution paths
// is the serialization boundary itself.
type Script struct {
	Agents []string       `yaml:"agents,omitempty"`
	Events []ScriptEvent  `yaml:"events,omitempty"`
	Final  map[string]any `yaml:"final,omitempty"`
	Fail   *ScriptFailure `yaml:"fail,omitempty"`
	Delay  string         `yaml:"delay,omitempty"` // pause before each event, e.g. "5ms"
}

// delay parses the configured pause. Malformed or empty values mean no pause.
func (sc *Script) delay() time.Duration {
	if sc.Delay == "" {
		return 0
	}
	d, err := time.ParseDuration(sc.Delay)
	if err != nil {
		return 0
	}
	return d
}

// ScriptEvent is one non-terminal event to replay.
type ScriptEvent struct {
	Kind    string         `yaml:"kind"`
	Payload map[string]any `yaml:"payload,omitempty"`
}

// ScriptFailure is a scripted terminal failure.
type ScriptFailure struct {
	Message string `yaml:"message"`
	Code    string `yaml:"code,omitempty"`
}

// LoadScript reads a script YAML file with unknown-field rejection.
func LoadScript(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer f.Close()
	return ParseScript(f)
}

// ParseScript parses a script from a reader with strict decoding.
func ParseScript(r io.Reader) (*Script, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var sc Script
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	return &sc, nil
}

// Scripted replays a Script as an engine run. When the scenario declares an
// output shape, the final value is validated against it before the stream
// completes, so schema failures carry real validator wording. Strict mode
// compiles shapes with additionalProperties: false.
type Scripted struct {
	Script *Script
	Strict bool
}

// NewScripted creates a scripted engine for the given script.
func NewScripted(sc *Script) *Scripted {
	return &Scripted{Script: sc}
}

// Run implements Engine.
func (e *Scripted) Run(ctx context.Context, s *scenario.Scenario) (*Stream, error) {
	if err := e.checkParticipants(s); err != nil {
		return nil, err
	}

	stream := NewStream(1)
	go func() {
		defer stream.Close()
		for _, ev := range e.Script.Events {
			if !e.pause(ctx, stream) {
				return
			}
			payload, err := json.Marshal(ev.Payload)
			if err != nil {
				stream.Emit(ctx, Failed(fmt.Sprintf("marshal event payload: %v", err), "internal"))
				return
			}
			if !stream.Emit(ctx, Event{Kind: ev.Kind, Payload: payload}) {
				return
			}
		}
		if !e.pause(ctx, stream) {
			return
		}
		stream.Emit(ctx, e.terminal(s))
	}()
	return stream, nil
}

// checkParticipants rejects scenarios that reference agents the script
// does not know. An empty script agent list accepts any participant.
func (e *Scripted) checkParticipants(s *scenario.Scenario) error {
	if len(e.Script.Agents) == 0 {
		return nil
	}
	known := make(map[string]bool, len(e.Script.Agents))
	for _, a := range e.Script.Agents {
		known[a] = true
	}
	for _, a := range s.Agents {
		if !known[a] {
			return fmt.Errorf("scenario references unknown agent %q", a)
		}
	}
	return nil
}

func (e *Scripted) pause(ctx context.Context, stream *Stream) bool {
	d := e.Script.delay()
	if d <= 0 {
		return true
	}
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		// Best effort: the consumer is likely gone already.
		stream.Emit(ctx, Failed(ctx.Err().Error(), "canceled"))
		return false
	}
}

// terminal produces the stream's terminal event: the scripted failure if
// one is declared, otherwise the final value after shape validation.
func (e *Scripted) terminal(s *scenario.Scenario) Event {
	if e.Script.Fail != nil {
		return Failed(e.Script.Fail.Message, e.Script.Fail.Code)
	}
	if s.Output != nil {
		sch, err := CompileShape(s.Output, e.Strict)
		if err != nil {
			return Failed(err.Error(), "internal")
		}
		if err := ValidateValue(sch, e.Script.Final); err != nil {
			return Failed(err.Error(), "schema")
		}
	}
	return Completed(e.Script.Final)
}
