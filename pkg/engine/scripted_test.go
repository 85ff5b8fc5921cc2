package engine

import (
	"context"
	"encoding/json"
	"runtime"
	"strings"
	"testing"
	"time"

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

// drain consumes a stream to its terminal event.
func drain(t *testing.T, st *Stream) []Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var events []Event
	for {
		ev, ok, err := st.Next(ctx)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if !ok {
			return events
		}
		events = append(events, ev)
		if ev.Terminal() {
			return events
		}
	}
}

// TestScriptedEmitsEventsThenCompletes checks the ordered replay and the
// final value.
func TestScriptedEmitsEventsThenCompletes(t *testing.T) {
	sc := &Script{
		Events: []ScriptEvent{
			{Kind: KindAgentSelected, Payload: map[string]any{"agent": "math"}},
			{Kind: KindTextDelta, Payload: map[string]any{"text": "4"}},
		},
		Final: map[string]any{"answer": 4},
	}
	st, err := NewScripted(sc).Run(context.Background(), mathScenario(t))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	events := drain(t, st)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %v", len(events), events)
	}
	if events[0].Kind != KindAgentSelected || events[1].Kind != KindTextDelta {
		t.Errorf("events out of order: %v", events)
	}
	last := events[2]
	if last.Kind != KindCompleted {
		t.Fatalf("expected completed terminal, got %s", last.Kind)
	}
	var value map[string]any
	if err := json.Unmarshal(last.Payload, &value); err != nil {
		t.Fatalf("unmarshal final value: %v", err)
	}
	if value["answer"] != float64(4) {
		t.Errorf("unexpected final value: %v", value)
	}
}

// TestScriptedShapeValidationFailure checks that a final value missing a
// required field fails with validator wording the classifier can match.
func TestScriptedShapeValidationFailure(t *testing.T) {
	sc := &Script{Final: map[string]any{"result": 4}}
	st, err := NewScripted(sc).Run(context.Background(), mathScenario(t))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	events := drain(t, st)
	last := events[len(events)-1]
	if last.Kind != KindFailed {
		t.Fatalf("expected failed terminal, got %s", last.Kind)
	}
	var detail ErrorDetail
	if err := json.Unmarshal(last.Payload, &detail); err != nil {
		t.Fatalf("unmarshal error detail: %v", err)
	}
	if !strings.Contains(detail.Message, "missing propert") {
		t.Errorf("expected missing-properties wording, got: %s", detail.Message)
	}
}

// TestScriptedStrictRejectsExtraFields checks strict shape compilation.
func TestScriptedStrictRejectsExtraFields(t *testing.T) {
	sc := &Script{Final: map[string]any{"answer": 4, "explanation": "because"}}

	// Permissive mode tolerates the extra field.
	st, err := NewScripted(sc).Run(context.Background(), mathScenario(t))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	events := drain(t, st)
	if events[len(events)-1].Kind != KindCompleted {
		t.Fatalf("permissive run should complete, got %s", events[len(events)-1].Kind)
	}

	// Strict mode rejects it.
	eng := NewScripted(sc)
	eng.Strict = true
	st, err = eng.Run(context.Background(), mathScenario(t))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	events = drain(t, st)
	last := events[len(events)-1]
	if last.Kind != KindFailed {
		t.Fatalf("strict run should fail, got %s", last.Kind)
	}
	var detail ErrorDetail
	if err := json.Unmarshal(last.Payload, &detail); err != nil {
		t.Fatalf("unmarshal error detail: %v", err)
	}
	if !strings.Contains(detail.Message, "additionalProperties") {
		t.Errorf("expected additionalProperties wording, got: %s", detail.Message)
	}
}

// TestScriptedScriptedFailure checks that a scripted failure surfaces verbatim.
func TestScriptedScriptedFailure(t *testing.T) {
	sc := &Script{Fail: &ScriptFailure{Message: "provider exploded", Code: "provider"}}
	st, err := NewScripted(sc).Run(context.Background(), mathScenario(t))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	events := drain(t, st)
	var detail ErrorDetail
	if err := json.Unmarshal(events[len(events)-1].Payload, &detail); err != nil {
		t.Fatalf("unmarshal error detail: %v", err)
	}
	if detail.Message != "provider exploded" || detail.Code != "provider" {
		t.Errorf("scripted failure not surfaced verbatim: %+v", detail)
	}
}

// TestScriptedRejectsUnknownAgent checks participant checking at Run time.
func TestScriptedRejectsUnknownAgent(t *testing.T) {
	s, err := scenario.New("agents",
		[]scenario.Turn{{Role: scenario.RoleUser, Content: "hi"}},
		nil, []string{"geography"}, nil)
	if err != nil {
		t.Fatalf("construct scenario: %v", err)
	}
	sc := &Script{Agents: []string{"router", "math"}}
	if _, err := NewScripted(sc).Run(context.Background(), s); err == nil {
		t.Fatal("expected error for unknown agent")
	}
}

// TestEmitReturnsFalseWhenAbandoned checks that a producer blocked on a
// full buffer unblocks once the consumer's context ends.
func TestEmitReturnsFalseWhenAbandoned(t *testing.T) {
	st := NewStream(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if st.Emit(ctx, Event{Kind: KindTextDelta}) {
		t.Fatal("expected Emit to report abandonment, got true")
	}
}

// TestScriptedProducerExitsWhenConsumerAbandons checks that abandoning a
// stream mid-run does not strand its producer goroutine.
func TestScriptedProducerExitsWhenConsumerAbandons(t *testing.T) {
	sc := &Script{
		Events: []ScriptEvent{
			{Kind: KindTextDelta, Payload: map[string]any{"text": "2"}},
			{Kind: KindTextDelta, Payload: map[string]any{"text": "+"}},
			{Kind: KindTextDelta, Payload: map[string]any{"text": "2"}},
		},
		Final: map[string]any{"answer": 4},
	}

	before := runtime.NumGoroutine()
	for i := 0; i < 20; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		if _, err := NewScripted(sc).Run(ctx, mathScenario(t)); err != nil {
			t.Fatalf("run: %v", err)
		}
		cancel() // abandon without draining
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= before+2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("producer goroutines did not exit: before=%d after=%d", before, runtime.NumGoroutine())
}

// TestLoadScriptFixture parses the shipped math script end to end.
func TestLoadScriptFixture(t *testing.T) {
	sc, err := LoadScript("../../testdata/scripts/math.yaml")
	if err != nil {
		t.Fatalf("load script: %v", err)
	}
	st, err := NewScripted(sc).Run(context.Background(), mathScenario(t))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	events := drain(t, st)
	if events[len(events)-1].Kind != KindCompleted {
		t.Fatalf("expected completed terminal, got %s", events[len(events)-1].Kind)
	}
}

// TestParseScriptStrictDecode checks unknown-field rejection in script files.
func TestParseScriptStrictDecode(t *testing.T) {
	doc := `
events:
  - kind: text_delta
final:
  answer: 4
surprise: true
`
	if _, err := ParseScript(strings.NewReader(doc)); err == nil {
		t.Fatal("expected error for unknown field")
	}
}
