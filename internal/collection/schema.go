package collection

import (
	_ "embed"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON string

var schemaLoader = gojsonschema.NewStringLoader(schemaJSON)

// Validate checks a JSON collection against a deliberately loose structural
// schema. Findings are returned as messages for the warning list; the readers
// still do their best with a document that fails.
func Validate(data []byte) []string {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return []string{fmt.Sprintf("schema check skipped: %v", err)}
	}
	if result.Valid() {
		return nil
	}
	out := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		out = append(out, fmt.Sprintf("schema: %s", e.String()))
	}
	return out
}
