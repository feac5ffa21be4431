package report

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidReport is returned by Validate when a document does not match
// the report schema.
var ErrInvalidReport = errors.New("invalid report")

//go:embed schema.json
var schemaJSON []byte

// Schema returns the JSON Schema of a report.
func Schema() []byte {
	return schemaJSON
}

// Validate checks a JSON report document against the report schema.
func Validate(document []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(document),
	)
	if err != nil {
		return fmt.Errorf("validate report: %w", err)
	}

	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		problems = append(problems, verr.String())
	}

	return fmt.Errorf("%w: %s", ErrInvalidReport, strings.Join(problems, "; "))
}
