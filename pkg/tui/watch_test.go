package tui

import (
	"testing"

	"github.com/raulpineda/wirecheck/pkg/engine"
)

// TestFormatEvent checks the pane line rendering for payload variants.
func TestFormatEvent(t *testing.T) {
	cases := []struct {
		name string
		ev   engine.Event
		want string
	}{
		{"no payload", engine.Event{Kind: "completed"}, "completed"},
		{
			"sorted payload keys",
			engine.Event{Kind: "agent_selected", Payload: []byte(`{"agent":"math","turn":1}`)},
			"agent_selected  agent=math turn=1",
		},
		{
			"non-object payload",
			engine.Event{Kind: "text_delta", Payload: []byte(`"4"`)},
			`text_delta "4"`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := formatEvent(tc.ev); got != tc.want {
				t.Errorf("formatEvent = %q, want %q", got, tc.want)
			}
		})
	}
}
