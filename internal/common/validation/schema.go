// internal/common/validation/schema.go
package validation

import (
	"fmt"

	"car-advisor/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

// Schema is a compiled JSON schema used to check the shape of repaired model output.
type Schema struct {
	name   string
	schema *gojsonschema.Schema
}

// Compile parses a JSON schema document.
func Compile(name, document string) (*Schema, error) {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(document))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{name: name, schema: s}, nil
}

// MustCompile is Compile for package-level schema literals.
func MustCompile(name, document string) *Schema {
	s, err := Compile(name, document)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Name() string {
	return s.name
}

// Validate checks an already decoded JSON value (maps, slices, float64...).
func (s *Schema) Validate(doc interface{}) error {
	result, err := s.schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return errors.NewSchemaValidationError(s.name, []string{err.Error()})
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, len(result.Errors()))
	for i, desc := range result.Errors() {
		problems[i] = desc.String()
	}
	return errors.NewSchemaValidationError(s.name, problems)
}
