// In file: internal/tools/validate_test.go
package tools

import (
	"strings"
	"testing"
)

func TestJSONSchemaValidate(t *testing.T) {
	schema := JSONSchema{
		Type: "object",
		Properties: map[string]*JSONSchema{
			"city":     {Type: "string"},
			"days":     {Type: "integer"},
			"detailed": {Type: "boolean"},
			"lat":      {Type: "number"},
		},
		Required: []string{"city"},
	}

	tests := []struct {
		name      string
		arguments string
		wantErr   string
	}{
		{
			name:      "valid arguments",
			arguments: `{"city":"Roma","days":3,"detailed":true,"lat":41.9}`,
		},
		{
			name:      "required only",
			arguments: `{"city":"Roma"}`,
		},
		{
			name:      "undeclared properties tolerated",
			arguments: `{"city":"Roma","units":"metric"}`,
		},
		{
			name:      "missing required",
			arguments: `{"days":3}`,
			wantErr:   `missing required argument "city"`,
		},
		{
			name:      "wrong scalar type",
			arguments: `{"city":42}`,
			wantErr:   `argument "city" must be a string`,
		},
		{
			name:      "number where integer expected",
			arguments: `{"city":"Roma","days":2.5}`,
			wantErr:   `argument "days" must be an integer`,
		},
		{
			name:      "not an object",
			arguments: `["Roma"]`,
			wantErr:   "not a JSON object",
		},
		{
			name:      "broken JSON",
			arguments: `{"city":`,
			wantErr:   "not a JSON object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := schema.Validate(tt.arguments)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestJSONSchemaValidateNonObjectTopLevel(t *testing.T) {
	schema := JSONSchema{Type: "string"}
	if err := schema.Validate(`"Roma"`); err == nil {
		t.Fatal("expected an error for a non-object top-level schema")
	}
}
