package agents

import (
	"encoding/json"
	"fmt"
	"strings"
)

const fence = "```"

// ParseError reports model output that did not decode into the expected shape.
// Raw holds the text exactly as the model returned it.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse model output: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StripFences removes one optional leading code fence (with any info string,
// e.g. ```json) and one optional trailing fence, then trims whitespace.
func StripFences(text string) string {
	s := strings.TrimSpace(text)

	if strings.HasPrefix(s, fence) {
		s = s[len(fence):]
		// The info string runs to the end of the opening line
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimLeftFunc(s, func(r rune) bool { return r != '{' && r != '[' })
		}
	}

	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, fence)
	return strings.TrimSpace(s)
}

// ExtractJSON strips fences from model text and decodes the JSON payload
// into dest. Any failure is a *ParseError.
func ExtractJSON(text string, dest interface{}) error {
	payload := StripFences(text)
	if payload == "" {
		return &ParseError{Raw: text, Err: fmt.Errorf("empty payload")}
	}
	if err := json.Unmarshal([]byte(payload), dest); err != nil {
		return &ParseError{Raw: text, Err: err}
	}
	return nil
}

// toMap converts a typed result into the map shape returned by Process
func toMap(v interface{}) map[string]interface{} {
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]interface{}{"error": err.Error()}
	}
	out := make(map[string]interface{})
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]interface{}{"error": err.Error()}
	}
	return out
}
