package config

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/beancontainer/errors"
)

//go:embed schema.json
var schemaJSON []byte

var schemaLoader = gojsonschema.NewBytesLoader(schemaJSON)

// Schema returns the JSON Schema that configuration documents must satisfy
func Schema() []byte {
	return schemaJSON
}

// ValidateDocument checks a raw configuration document against Schema.
// All violations are reported in one error.
func ValidateDocument(doc map[string]any) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return errors.WrapFatal(err, "Config", "ValidateDocument", "run schema validation")
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
	}
	return errors.WrapInvalid(errors.Newf(errors.ErrInvalidConfig, "%s", strings.Join(msgs, "; ")),
		"Config", "ValidateDocument", "schema validation")
}
