package engine

import (
	"encoding/json"
	"fmt"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/raulpineda/wirecheck/pkg/scenario"
)

// CompileShape compiles an output shape into a validator. Strict mode adds
// additionalProperties: false, rejecting any field the shape does not name.
func CompileShape(sh *scenario.Shape, strict bool) (*sjsonschema.Schema, error) {
	c := sjsonschema.NewCompiler()
	if err := c.AddResource("shape.json", anyMap(sh.SchemaDoc(strict))); err != nil {
		return nil, fmt.Errorf("add shape resource: %w", err)
	}
	sch, err := c.Compile("shape.json")
	if err != nil {
		return nil, fmt.Errorf("compile shape: %w", err)
	}
	return sch, nil
}

// ValidateValue checks a structured value against a compiled shape.
// The value is normalized through JSON first so YAML-decoded scalars
// (ints, nested map types) compare the way wire data would.
func ValidateValue(sch *sjsonschema.Schema, value any) error {
	doc, err := normalize(value)
	if err != nil {
		return err
	}
	return sch.Validate(doc)
}

// anyMap round-trips a document through JSON so the compiler sees the
// plain-data types it expects.
func anyMap(doc map[string]any) any {
	out, err := normalize(doc)
	if err != nil {
		return doc
	}
	return out
}

func normalize(value any) (any, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("normalize value: %w", err)
	}
	return doc, nil
}
