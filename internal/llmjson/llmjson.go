// Package llmjson decodes JSON answers produced by language models.
package llmjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrEmpty is returned when the model produced no content at all.
var ErrEmpty = errors.New("empty model response")

var fenceExpr = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// StripFence returns the body of the first fenced code block, or raw trimmed when there is none.
func StripFence(raw string) string {
	if m := fenceExpr.FindStringSubmatch(raw); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(raw)
}

// Decode strips a code fence and unmarshals the payload into v.
// Any syntax or type mismatch is an error; nothing is coerced.
func Decode(raw string, v any) error {
	payload := StripFence(raw)
	if payload == "" {
		return ErrEmpty
	}
	if err := json.Unmarshal([]byte(payload), v); err != nil {
		return fmt.Errorf("decode model json: %w", err)
	}
	return nil
}
