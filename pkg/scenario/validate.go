package scenario

import (
	"encoding/json"
	"fmt"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidationError represents a single validation error with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`  // JSON-path-like location (e.g., "turns[0].role")
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// ValidateFile performs the full 3-phase validation pipeline on a scenario file.
// Phase 1: Structural (strict YAML decode)
// Phase 2: Semantic (JSON Schema validation)
// Phase 3: Domain (custom Go rules)
func ValidateFile(path string) (*Scenario, []*ValidationError) {
	var allErrors []*ValidationError

	s, err := LoadFile(path)
	if err != nil {
		allErrors = append(allErrors, &ValidationError{
			Phase:    "structural",
			Message:  err.Error(),
			Severity: "error",
		})
		return nil, allErrors
	}

	allErrors = append(allErrors, validateSemantic(s)...)
	allErrors = append(allErrors, ValidateDomain(s)...)

	if len(allErrors) > 0 {
		return s, allErrors
	}
	return s, nil
}

// validateSemantic validates the scenario against the generated JSON Schema.
func validateSemantic(s *Scenario) []*ValidationError {
	data, err := json.Marshal(s)
	if err != nil {
		return []*ValidationError{semanticErr(fmt.Sprintf("marshal for schema validation: %v", err))}
	}

	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return []*ValidationError{semanticErr(fmt.Sprintf("generate schema: %v", err))}
	}

	var schemaDoc interface{}
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return []*ValidationError{semanticErr(fmt.Sprintf("unmarshal schema: %v", err))}
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("scenario-v0.json", schemaDoc); err != nil {
		return []*ValidationError{semanticErr(fmt.Sprintf("add schema resource: %v", err))}
	}
	sch, err := c.Compile("scenario-v0.json")
	if err != nil {
		return []*ValidationError{semanticErr(fmt.Sprintf("compile schema: %v", err))}
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return []*ValidationError{semanticErr(fmt.Sprintf("unmarshal document: %v", err))}
	}

	if err := sch.Validate(doc); err != nil {
		var errs []*ValidationError
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			for _, cause := range flattenValidationErrors(ve) {
				errs = append(errs, &ValidationError{
					Phase:    "semantic",
					Path:     strings.Join(cause.InstanceLocation, "/"),
					Message:  fmt.Sprintf("%v", cause.ErrorKind),
					Severity: "error",
				})
			}
		} else {
			errs = append(errs, semanticErr(err.Error()))
		}
		return errs
	}
	return nil
}

func semanticErr(msg string) *ValidationError {
	return &ValidationError{Phase: "semantic", Message: msg, Severity: "error"}
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// ValidateDomain performs Phase 3 domain-level validation: the rules the
// JSON Schema cannot express on its own.
func ValidateDomain(s *Scenario) []*ValidationError {
	var errs []*ValidationError

	if len(s.Turns) == 0 {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     "turns",
			Message:  "scenario must have at least one turn",
			Severity: "error",
		})
	}

	for i, t := range s.Turns {
		if t.Role != RoleUser && t.Role != RoleAssistant {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     fmt.Sprintf("turns[%d].role", i),
				Message:  fmt.Sprintf("unrecognized role %q (expected user or assistant)", t.Role),
				Severity: "error",
			})
		}
	}

	if s.Output != nil {
		if len(s.Output.Fields) == 0 {
			errs = append(errs, &ValidationError{
				Phase:    "domain",
				Path:     "output.fields",
				Message:  "output shape declared but has no fields",
				Severity: "error",
			})
		}
		for name, typ := range s.Output.Fields {
			switch typ {
			case TypeString, TypeNumber, TypeBoolean:
			default:
				errs = append(errs, &ValidationError{
					Phase:    "domain",
					Path:     fmt.Sprintf("output.fields.%s", name),
					Message:  fmt.Sprintf("unsupported primitive type %q (expected string, number, or boolean)", typ),
					Severity: "error",
				})
			}
		}
	}

	return errs
}
