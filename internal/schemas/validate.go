// Package schemas validates compile request bodies against the embedded JSON Schema.
package schemas

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

const rootField = "(root)"

//go:embed form_request.schema.json
var formRequestSchema string

var compileFormRequest = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(formRequestSchema))
})

// FieldError is one schema violation, addressed by dotted JSON path.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every violation found in a document.
type ValidationError struct {
	Errors []FieldError
}

func (ve *ValidationError) Error() string {
	parts := make([]string, len(ve.Errors))
	for i, fe := range ve.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "invalid compile request: " + strings.Join(parts, "; ")
}

// SchemaLoadError means the schema itself could not be compiled.
type SchemaLoadError struct {
	Name  string
	Cause error
}

func (e *SchemaLoadError) Error() string {
	return fmt.Sprintf("failed to load schema %s: %v", e.Name, e.Cause)
}

func (e *SchemaLoadError) Unwrap() error {
	return e.Cause
}

// FormRequestSchema returns the embedded compile request schema.
func FormRequestSchema() string {
	return formRequestSchema
}

// ValidateFormRequest checks a {formData, templateId} body.
func ValidateFormRequest(body []byte) error {
	schema, err := compileFormRequest()
	if err != nil {
		return &SchemaLoadError{Name: "form_request.schema.json", Cause: err}
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return &ValidationError{Errors: []FieldError{{Field: rootField, Message: "body is not valid JSON"}}}
	}
	if result.Valid() {
		return nil
	}

	verr := &ValidationError{Errors: make([]FieldError, 0, len(result.Errors()))}
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "" {
			field = rootField
		}
		verr.Errors = append(verr.Errors, FieldError{Field: field, Message: desc.Description()})
	}
	return verr
}
