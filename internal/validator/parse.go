package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrMalformedOutput is returned when no candidate list can be recovered
// from the provider text.
var ErrMalformedOutput = errors.New("malformed provider output")

var (
	fenceRe         = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)```")
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	adjacentObjRe   = regexp.MustCompile(`}\s*{`)
	adjacentStrRe   = regexp.MustCompile(`"(\s*\n\s*)"`)
	adjacentArrRe   = regexp.MustCompile(`]\s*\n(\s*)"`)
)

// parseCandidates recovers the candidate list from raw provider text. Each
// item is returned undecoded so one bad item cannot sink the batch.
func parseCandidates(raw string) ([]json.RawMessage, error) {
	text := extractJSON(stripFences(raw))
	if text == "" {
		return nil, fmt.Errorf("%w: no JSON structure found", ErrMalformedOutput)
	}

	cands, err := decodeCandidates(text)
	if err == nil {
		return cands, nil
	}

	cands, repairErr := decodeCandidates(repair(text))
	if repairErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	return cands, nil
}

// stripFences returns the body of the first code fence, or text unchanged.
func stripFences(text string) string {
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return strings.TrimSpace(text)
}

// extractJSON returns the outermost array or object in text.
func extractJSON(text string) string {
	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end <= start {
		// Truncated output: keep what is there and let repair try.
		return text[start:]
	}
	return text[start : end+1]
}

// repair fixes trailing commas and missing commas between adjacent
// objects, strings and arrays.
func repair(text string) string {
	text = trailingCommaRe.ReplaceAllString(text, "$1")
	text = adjacentObjRe.ReplaceAllString(text, "},{")
	text = adjacentStrRe.ReplaceAllString(text, `",$1"`)
	text = adjacentArrRe.ReplaceAllString(text, "],\n$1\"")
	return text
}

// decodeCandidates accepts a bare array, an object with a "questions"
// array, or a single question object.
func decodeCandidates(text string) ([]json.RawMessage, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "[") {
		var list []json.RawMessage
		if err := json.Unmarshal([]byte(text), &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &wrapper); err != nil {
		return nil, err
	}
	for _, key := range []string{"questions", "items", "data"} {
		if inner, ok := wrapper[key]; ok {
			var list []json.RawMessage
			if err := json.Unmarshal(inner, &list); err != nil {
				return nil, err
			}
			return list, nil
		}
	}

	for _, key := range stemKeys {
		if _, ok := wrapper[key]; ok {
			return []json.RawMessage{json.RawMessage(text)}, nil
		}
	}
	return nil, errors.New("object has no questions")
}
