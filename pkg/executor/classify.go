package executor

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/raulpineda/wirecheck/pkg/engine"
)

// Upstream validator wording is not a stable contract, so the substrings
// that mark a schema-validation failure are configuration with defaults,
// not hard-coded constants.
var defaultSchemaMarkers = []string{
	"additionalProperties",
	"missing properties",
	"required",
}

// Rule is a site-specific classification rule: an expr-lang condition over
// the error detail. Rules run before marker matching, in order.
type Rule struct {
	When  string       `yaml:"when"  json:"when"`
	Class FailureClass `yaml:"class" json:"class"`

	program *vm.Program
}

// Classifier maps an engine error detail to a failure class.
type Classifier struct {
	SchemaMarkers []string
	rules         []*Rule
}

// NewClassifier builds a classifier from marker substrings and compiled
// rules. Nil markers fall back to the defaults.
func NewClassifier(markers []string, rules []Rule) (*Classifier, error) {
	c := &Classifier{SchemaMarkers: markers}
	if c.SchemaMarkers == nil {
		c.SchemaMarkers = defaultSchemaMarkers
	}
	env := ruleEnv(engine.ErrorDetail{})
	for i := range rules {
		r := rules[i]
		program, err := expr.Compile(r.When, expr.Env(env), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile rule %q: %w", r.When, err)
		}
		r.program = program
		c.rules = append(c.rules, &r)
	}
	return c, nil
}

// DefaultClassifier returns a classifier with default markers and no rules.
func DefaultClassifier() *Classifier {
	c, _ := NewClassifier(nil, nil)
	return c
}

// Classify buckets an error detail. Rules are consulted first; then the
// message is scanned for schema-validation markers; anything else is unknown.
func (c *Classifier) Classify(detail engine.ErrorDetail) FailureClass {
	env := ruleEnv(detail)
	for _, r := range c.rules {
		out, err := expr.Run(r.program, env)
		if err != nil {
			continue
		}
		if matched, ok := out.(bool); ok && matched {
			return r.Class
		}
	}
	for _, marker := range c.SchemaMarkers {
		if strings.Contains(detail.Message, marker) {
			return ClassSchemaValidation
		}
	}
	return ClassUnknown
}

func ruleEnv(detail engine.ErrorDetail) map[string]any {
	return map[string]any{
		"message": detail.Message,
		"code":    detail.Code,
	}
}
