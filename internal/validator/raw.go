package validator

import (
	"encoding/json"
	"strconv"
	"strings"
)

// RawCandidate is a question as the provider shaped it. Every field is
// optional; only Validate turns it into a batch.Question.
type RawCandidate struct {
	ID           *string
	Topic        *string
	Difficulty   *string
	QuestionType *string
	Stem         *string
	Choices      []string
	AnswerIndex  *int
	Explanation  *string
	Tags         []string
}

// Field aliases seen in provider output, in preference order.
var (
	idKeys          = []string{"id", "questionId", "question_id"}
	topicKeys       = []string{"topic", "category"}
	difficultyKeys  = []string{"difficulty", "level"}
	questionTypeKey = []string{"questionType", "question_type", "type"}
	stemKeys        = []string{"stem", "question", "questionText", "question_text", "text"}
	choiceKeys      = []string{"choices", "options", "answers"}
	answerKeys      = []string{"answerIndex", "answer_index", "correctIndex", "correct_index", "correctAnswerIndex"}
	explanationKeys = []string{"explanation", "rationale", "solution"}
)

// UnmarshalJSON accepts any JSON object and picks known keys leniently.
func (c *RawCandidate) UnmarshalJSON(data []byte) error {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}

	c.ID = pickString(obj, idKeys)
	c.Topic = pickString(obj, topicKeys)
	c.Difficulty = pickString(obj, difficultyKeys)
	c.QuestionType = pickString(obj, questionTypeKey)
	c.Stem = pickString(obj, stemKeys)
	c.Explanation = pickString(obj, explanationKeys)
	c.Choices = pickStrings(obj, choiceKeys)
	c.Tags = pickStrings(obj, []string{"tags"})
	c.AnswerIndex = pickIndex(obj, answerKeys)
	return nil
}

func pickString(obj map[string]json.RawMessage, keys []string) *string {
	for _, k := range keys {
		raw, ok := obj[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return &s
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			s := n.String()
			return &s
		}
	}
	return nil
}

func pickStrings(obj map[string]json.RawMessage, keys []string) []string {
	for _, k := range keys {
		raw, ok := obj[k]
		if !ok {
			continue
		}
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			continue
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			var s string
			if err := json.Unmarshal(item, &s); err == nil {
				out = append(out, s)
				continue
			}
			// Objects like {"text": "..."} are flattened.
			var labelled struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(item, &labelled); err == nil {
				out = append(out, labelled.Text)
				continue
			}
			out = append(out, strings.TrimSpace(string(item)))
		}
		return out
	}
	return nil
}

// pickIndex reads an integer index given as a number or numeric string.
// Fractional and non-numeric values are treated as missing.
func pickIndex(obj map[string]json.RawMessage, keys []string) *int {
	for _, k := range keys {
		raw, ok := obj[k]
		if !ok {
			continue
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			if f != float64(int(f)) {
				return nil
			}
			i := int(f)
			return &i
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
				return &i
			}
		}
		return nil
	}
	return nil
}
