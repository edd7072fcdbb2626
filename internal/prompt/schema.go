package prompt

import "github.com/abhisek/examforge/internal/llm"

// questionItem is the JSON schema of one generated question.
var questionItem = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"id": map[string]any{
			"type":        "string",
			"description": "Question ID following the pattern given in the request",
		},
		"topic": map[string]any{
			"type":        "string",
			"description": "One topic from the taxonomy",
		},
		"difficulty": map[string]any{
			"type": "string",
			"enum": []any{"easy", "medium", "hard"},
		},
		"questionType": map[string]any{
			"type": "string",
			"enum": []any{"mcq", "comparison", "passage"},
		},
		"stem": map[string]any{
			"type":        "string",
			"description": "The question text, including any passage",
		},
		"choices": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string"},
			"description": "Exactly 4 answer choices without letter labels",
		},
		"answerIndex": map[string]any{
			"type":        "integer",
			"description": "0-based index of the correct choice",
		},
		"explanation": map[string]any{
			"type":        "string",
			"description": "Short worked solution",
		},
	},
	"required":             []any{"id", "topic", "difficulty", "questionType", "stem", "choices", "answerIndex", "explanation"},
	"additionalProperties": false,
}

// ResponseSchema is the structured output schema sent to providers that
// support it. The validator does not depend on providers honouring it.
var ResponseSchema = &llm.Schema{
	Name:        "question-batch",
	Description: "A batch of multiple-choice exam questions",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type":  "array",
				"items": questionItem,
			},
		},
		"required":             []any{"questions"},
		"additionalProperties": false,
	},
}
