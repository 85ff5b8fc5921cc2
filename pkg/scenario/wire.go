package scenario

import (
	"encoding/json"
	"fmt"
	"sort"
)

// WireRequest is the transport-neutral form of a scenario: the exact JSON
// body sent to a remote entry point. Only plain data survives — strings,
// numbers, booleans, nested objects and arrays. The output shape crosses
// as a plain JSON Schema object map, which is precisely the metadata-loss
// step the harness exists to exercise.
type WireRequest struct {
	Messages []WireMessage  `json:"messages"`
	Output   map[string]any `json:"output,omitempty"`
	Agents   []string       `json:"agents,omitempty"`
	Tools    []string       `json:"tools,omitempty"`
}

// WireMessage is one conversation turn on the wire.
type WireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// EncodeWire converts a scenario to its transport-neutral form.
func EncodeWire(s *Scenario) *WireRequest {
	req := &WireRequest{
		Agents: s.Agents,
		Tools:  s.Tools,
	}
	for _, t := range s.Turns {
		req.Messages = append(req.Messages, WireMessage{Role: t.Role, Content: t.Content})
	}
	if s.Output != nil {
		req.Output = s.Output.SchemaDoc(false)
	}
	return req
}

// DecodeWire rebuilds a scenario from its transport-neutral form.
// The rebuilt value must match the original field for field — round-trip
// fidelity is a tested property of the harness itself.
func DecodeWire(req *WireRequest) (*Scenario, error) {
	var turns []Turn
	for _, m := range req.Messages {
		turns = append(turns, Turn{Role: m.Role, Content: m.Content})
	}

	var shape *Shape
	if req.Output != nil {
		var err error
		shape, err = ShapeFromSchemaDoc(req.Output)
		if err != nil {
			return nil, fmt.Errorf("decode output shape: %w", err)
		}
	}

	return New("wire", turns, shape, req.Agents, req.Tools)
}

// SchemaDoc renders the shape as a plain JSON Schema object document.
// All declared fields are required. When strict is true the document also
// carries additionalProperties: false, which rejects any field the shape
// does not name.
func (sh *Shape) SchemaDoc(strict bool) map[string]any {
	props := make(map[string]any, len(sh.Fields))
	required := make([]string, 0, len(sh.Fields))
	for name, typ := range sh.Fields {
		props[name] = map[string]any{"type": typ}
		required = append(required, name)
	}
	sort.Strings(required)

	doc := map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
	if strict {
		doc["additionalProperties"] = false
	}
	return doc
}

// ShapeFromSchemaDoc reconstructs a Shape from a plain JSON Schema object
// document, as received over the wire.
func ShapeFromSchemaDoc(doc map[string]any) (*Shape, error) {
	props, ok := doc["properties"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("schema document has no properties object")
	}
	fields := make(map[string]string, len(props))
	for name, raw := range props {
		prop, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("property %q is not an object", name)
		}
		typ, ok := prop["type"].(string)
		if !ok {
			return nil, fmt.Errorf("property %q has no type", name)
		}
		fields[name] = typ
	}
	return &Shape{Fields: fields}, nil
}

// MarshalWire serializes the wire form to JSON bytes.
func MarshalWire(req *WireRequest) ([]byte, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal wire request: %w", err)
	}
	return data, nil
}

// UnmarshalWire parses a wire request from JSON bytes.
func UnmarshalWire(data []byte) (*WireRequest, error) {
	var req WireRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("unmarshal wire request: %w", err)
	}
	return &req, nil
}
