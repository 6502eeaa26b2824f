// In file: internal/tools/validate.go
package tools

import (
	"encoding/json"
	"fmt"
)

// Validate checks a model-produced JSON argument string against the schema.
// It covers the subset of JSON Schema the registry uses: an object whose
// properties are typed scalars (or nested objects). Arguments that fail here
// never reach a tool executor, so a confused model cannot trigger an
// external call with garbage input.
//
// Properties not declared in the schema are tolerated and simply ignored by
// the executors.
func (s JSONSchema) Validate(arguments string) error {
	if s.Type != "object" {
		return fmt.Errorf("unsupported top-level schema type %q", s.Type)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(arguments), &raw); err != nil {
		return fmt.Errorf("arguments are not a JSON object: %w", err)
	}

	for _, name := range s.Required {
		if _, ok := raw[name]; !ok {
			return fmt.Errorf("missing required argument %q", name)
		}
	}

	for name, value := range raw {
		prop, ok := s.Properties[name]
		if !ok {
			continue
		}
		if err := prop.validateValue(name, value); err != nil {
			return err
		}
	}
	return nil
}

// validateValue checks a single argument against its declared type.
func (s *JSONSchema) validateValue(name string, value json.RawMessage) error {
	switch s.Type {
	case "string":
		var v string
		if err := json.Unmarshal(value, &v); err != nil {
			return fmt.Errorf("argument %q must be a string", name)
		}
	case "number":
		var v float64
		if err := json.Unmarshal(value, &v); err != nil {
			return fmt.Errorf("argument %q must be a number", name)
		}
	case "integer":
		var v int64
		if err := json.Unmarshal(value, &v); err != nil {
			return fmt.Errorf("argument %q must be an integer", name)
		}
	case "boolean":
		var v bool
		if err := json.Unmarshal(value, &v); err != nil {
			return fmt.Errorf("argument %q must be a boolean", name)
		}
	case "object":
		if err := s.Validate(string(value)); err != nil {
			return fmt.Errorf("argument %q: %w", name, err)
		}
	}
	return nil
}
