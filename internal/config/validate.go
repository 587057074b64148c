package config

import (
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON string

// ErrInvalid is matched by every error reporting a setting that breaks the schema.
var ErrInvalid = errors.New("invalid tasksync config")

// ValidateSettings checks merged settings, nested by section, against the
// embedded schema. Each violation is reported with its key path.
func ValidateSettings(settings map[string]any) error {
	schemaLoader := gojsonschema.NewStringLoader(schemaJSON)
	documentLoader := gojsonschema.NewGoLoader(settings)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("load tasksync config schema: %w", err)
	}
	if result.Valid() {
		return nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, schemaErr := range result.Errors() {
		errs = append(errs, fmt.Sprintf("%s: %s", schemaErr.Field(), schemaErr.Description()))
	}
	slices.Sort(errs)

	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
}
