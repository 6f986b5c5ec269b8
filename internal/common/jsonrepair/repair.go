// Package jsonrepair recovers a JSON value from noisy language-model output.
//
// It is a best-effort heuristic, not a JSON5 parser. The object span is located
// greedily from the first '{' to the last '}' without brace matching, so a
// literal '}' inside a string value that precedes the real closing brace can
// produce a wrong span. Callers pair Parse with schema validation.
package jsonrepair

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"car-advisor/internal/common/errors"
)

var (
	fenceRe         = regexp.MustCompile("```[a-zA-Z]*")
	objectSpanRe    = regexp.MustCompile(`(?s)\{.*\}`)
	singleQuotedRe  = regexp.MustCompile(`([{\[,:]\s*)'([^'"\\]*)'(\s*[,:}\]])`)
	trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)
)

// ParseError carries the message of the first parse failure.
type ParseError struct {
	Message string
	Input   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse model response: %s", e.Message)
}

func (e *ParseError) ErrorCode() errors.ErrorCode {
	return errors.ErrCodeResponseParse
}

// Parse returns the decoded JSON value (map[string]interface{}, []interface{}, ...).
func Parse(text string) (interface{}, error) {
	stripped := stripApostrophes(stripFences(strings.TrimSpace(text)))

	if v, err := decode(stripped); err == nil {
		return v, nil
	}

	candidate := extractObject(stripped)
	cleaned := removeTrailingCommas(normalizeQuotes(candidate))

	v, firstErr := decode(cleaned)
	if firstErr == nil {
		return v, nil
	}

	if retry := extractObject(cleaned); retry != cleaned {
		if v, err := decode(retry); err == nil {
			return v, nil
		}
	}
	return nil, &ParseError{Message: firstErr.Error(), Input: snippet(text)}
}

// ParseObject is Parse restricted to a top-level object.
func ParseObject(text string) (map[string]interface{}, error) {
	v, err := Parse(text)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, &ParseError{Message: fmt.Sprintf("expected a JSON object, got %T", v), Input: snippet(text)}
	}
	return obj, nil
}

// Decode converts a parsed value into a typed struct.
func Decode(value interface{}, out interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("re-encode parsed value: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ParseError{Message: err.Error(), Input: snippet(string(raw))}
	}
	return nil
}

func decode(s string) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

func stripFences(s string) string {
	return strings.TrimSpace(fenceRe.ReplaceAllString(s, ""))
}

// stripApostrophes drops apostrophes or backticks wrapping the whole payload.
func stripApostrophes(s string) string {
	return strings.TrimSpace(strings.Trim(s, "'`"))
}

func extractObject(s string) string {
	if m := objectSpanRe.FindString(s); m != "" {
		return m
	}
	return s
}

// normalizeQuotes rewrites 'token' to "token" where the quotes sit in key/value position.
func normalizeQuotes(s string) string {
	prev := ""
	for prev != s {
		prev = s
		s = singleQuotedRe.ReplaceAllString(s, `$1"$2"$3`)
	}
	return s
}

func removeTrailingCommas(s string) string {
	return trailingCommaRe.ReplaceAllString(s, "$1")
}

func snippet(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
