// Package parser turns the model's free-form reply into a typed
// AnalysisResult. The model is instructed to reply with a single JSON
// object but often wraps it in prose or code fences, so the parser
// locates the greedy brace-delimited span (first "{" to last "}")
// before decoding. There is no repair or partial recovery: a malformed
// reply fails the whole submission and the user resubmits.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/studyboost/booster/internal/model"
)

// ErrNoJSONFound is returned when the reply contains no brace-delimited span.
var ErrNoJSONFound = errors.New("no JSON object found in model reply")

// MalformedJSONError is returned when the located span does not decode.
type MalformedJSONError struct {
	Span string // the extracted span that failed to decode
	Err  error
}

func (e *MalformedJSONError) Error() string {
	return fmt.Sprintf("malformed JSON in model reply: %v", e.Err)
}

func (e *MalformedJSONError) Unwrap() error {
	return e.Err
}

// Extract returns the greedy brace-delimited span of raw: everything
// from the first "{" through the last "}". Returns ErrNoJSONFound when
// either brace is missing or they are out of order.
func Extract(raw string) (string, error) {
	start := strings.Index(raw, "{")
	if start < 0 {
		return "", ErrNoJSONFound
	}
	end := strings.LastIndex(raw, "}")
	if end < start {
		return "", ErrNoJSONFound
	}
	return raw[start : end+1], nil
}

// Parse extracts the JSON span from raw and decodes it. Optional
// fields (english_only_script, quiz location) may be absent; absence
// means the feature was not requested for this subject, not an error.
func Parse(raw string) (*model.AnalysisResult, error) {
	span, err := Extract(raw)
	if err != nil {
		return nil, err
	}

	var result model.AnalysisResult
	if err := json.Unmarshal([]byte(span), &result); err != nil {
		return nil, &MalformedJSONError{Span: span, Err: err}
	}

	return &result, nil
}
