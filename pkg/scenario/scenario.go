// Package scenario defines the Go struct types for the scenario YAML schema
// and provides strict YAML parsing.
package scenario

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Role tags for conversation turns.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Primitive types allowed in an output shape.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeBoolean = "boolean"
)

// Scenario is the top-level document describing one logical request:
// the conversation turns, the expected output shape, and the agents/tools
// expected to participate. A scenario carries no transport information —
// the same value is fed to both execution paths.
type Scenario struct {
	APIVersion string   `yaml:"apiVersion" json:"apiVersion" jsonschema:"required,enum=scenario/v0"`
	Meta       Meta     `yaml:"meta"       json:"meta"       jsonschema:"required"`
	Turns      []Turn   `yaml:"turns"      json:"turns"      jsonschema:"required,minItems=1"`
	Output     *Shape   `yaml:"output,omitempty" json:"output,omitempty"`
	Agents     []string `yaml:"agents,omitempty" json:"agents,omitempty"`
	Tools      []string `yaml:"tools,omitempty"  json:"tools,omitempty"`
}

// Meta contains scenario metadata.
type Meta struct {
	Name        string `yaml:"name"                  json:"name" jsonschema:"required"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Turn is a single conversation message.
type Turn struct {
	Role    string `yaml:"role"    json:"role"    jsonschema:"required,enum=user,enum=assistant"`
	Content string `yaml:"content" json:"content" jsonschema:"required"`
}

// Shape describes the structural schema the terminal output must match:
// a flat map of required field names to primitive types.
type Shape struct {
	Fields map[string]string `yaml:"fields" json:"fields" jsonschema:"required"`
}

// InvalidScenarioError reports a malformed scenario. It is fatal to the
// run that produced it and never retried.
type InvalidScenarioError struct {
	Reason string
}

func (e *InvalidScenarioError) Error() string {
	return fmt.Sprintf("invalid scenario: %s", e.Reason)
}

// New constructs an immutable Scenario from its parts, applying the domain
// rules (non-empty turns, known roles, supported primitive types).
func New(name string, turns []Turn, output *Shape, agents, tools []string) (*Scenario, error) {
	s := &Scenario{
		APIVersion: "scenario/v0",
		Meta:       Meta{Name: name},
		Turns:      turns,
		Output:     output,
		Agents:     agents,
		Tools:      tools,
	}
	if errs := ValidateDomain(s); len(errs) > 0 {
		return nil, &InvalidScenarioError{Reason: errs[0].Message}
	}
	return s, nil
}

// LoadFile reads and parses a scenario YAML file with unknown-field
// rejection (yaml.v3 KnownFields). Returns the parsed Scenario or an error.
func LoadFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a scenario from a reader with strict decoding.
func Load(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // reject unknown fields

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	return &s, nil
}
