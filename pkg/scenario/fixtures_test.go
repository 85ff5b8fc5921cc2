package scenario

import (
	"path/filepath"
	"strings"
	"testing"
)

// TestValidFixtures ensures every fixture under testdata/valid parses and
// passes all three validation phases.
func TestValidFixtures(t *testing.T) {
	files, err := filepath.Glob("../../testdata/valid/*.yaml")
	if err != nil {
		t.Fatalf("glob valid fixtures: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no valid test fixtures found")
	}
	for _, f := range files {
		name := filepath.Base(f)
		t.Run(name, func(t *testing.T) {
			s, errs := ValidateFile(f)
			if len(errs) > 0 {
				t.Fatalf("expected valid, got: %v", errs)
			}
			if s.APIVersion != "scenario/v0" {
				t.Errorf("apiVersion = %q, want %q", s.APIVersion, "scenario/v0")
			}
			if s.Meta.Name == "" {
				t.Error("meta.name is empty")
			}
			if len(s.Turns) == 0 {
				t.Error("expected at least one turn")
			}
		})
	}
}

// TestFixtureUnknownFields verifies strict mode rejects unknown YAML keys.
func TestFixtureUnknownFields(t *testing.T) {
	s, err := LoadFile("../../testdata/invalid/unknown-fields.yaml")
	if err == nil {
		t.Fatalf("expected error for unknown fields, got scenario with name=%q", s.Meta.Name)
	}
}

// TestFixtureBadRole verifies the domain phase catches unknown roles.
func TestFixtureBadRole(t *testing.T) {
	_, errs := ValidateFile("../../testdata/invalid/bad-role.yaml")
	if len(errs) == 0 {
		t.Fatal("expected validation errors for unknown role")
	}
	found := false
	for _, e := range errs {
		if strings.Contains(e.Message, "wizard") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected role name in errors, got: %v", errs)
	}
}
