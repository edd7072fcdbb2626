package validator

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const candidateSchemaURL = "schema://candidate.json"

// candidateSchema constrains the fields the normalizer may never invent.
// Everything else is defaulted, so it is not required here.
var candidateSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"stem": map[string]any{
			"type":      "string",
			"minLength": 1,
		},
		"choices": map[string]any{
			"type":     "array",
			"minItems": 4,
			"maxItems": 4,
			"items": map[string]any{
				"type":      "string",
				"minLength": 1,
			},
		},
		"answerIndex": map[string]any{
			"type":    "integer",
			"minimum": 0,
			"maximum": 3,
		},
	},
	"required": []any{"stem", "choices", "answerIndex"},
}

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

// compiledCandidateSchema compiles the candidate schema once per process.
func compiledCandidateSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		// The jsonschema library expects a parsed JSON value (any).
		defBytes, err := json.Marshal(candidateSchema)
		if err != nil {
			compileErr = fmt.Errorf("marshal schema definition: %w", err)
			return
		}
		var defParsed any
		if err := json.Unmarshal(defBytes, &defParsed); err != nil {
			compileErr = fmt.Errorf("parse schema definition: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		if err := c.AddResource(candidateSchemaURL, defParsed); err != nil {
			compileErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile(candidateSchemaURL)
	})
	return compiled, compileErr
}

// checkSchema validates the required fields of a trimmed candidate.
func checkSchema(stem string, choices []string, answerIndex int) error {
	sch, err := compiledCandidateSchema()
	if err != nil {
		return err
	}
	items := make([]any, len(choices))
	for i, c := range choices {
		items[i] = c
	}
	doc := map[string]any{
		"stem":        stem,
		"choices":     items,
		"answerIndex": answerIndex,
	}
	return sch.Validate(doc)
}
