// Package jsonx recovers JSON payloads from LLM output that may arrive
// wrapped in code fences or surrounded by prose.
package jsonx

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var fenceRegex = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

var errNoPayload = errors.New("no JSON payload found")

// ParseError reports that a payload could not be coerced into JSON. Context
// names the call site and Preview carries a bounded excerpt of the offending
// text; the full payload is never echoed.
type ParseError struct {
	Context string
	Preview string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse JSON (%s): %v (payload: %s)", e.Context, e.Err, e.Preview)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Unmarshal decodes raw into v, trying progressively more forgiving
// extraction strategies: the text as-is, the contents of a fenced code
// block, then the outermost object or array span. The first syntactically
// valid candidate is decoded; context tags the returned *ParseError.
func Unmarshal(raw, context string, v any) error {
	trimmed := strings.TrimSpace(raw)

	for _, candidate := range candidates(trimmed) {
		if candidate == "" || !json.Valid([]byte(candidate)) {
			continue
		}
		if err := json.Unmarshal([]byte(candidate), v); err != nil {
			return &ParseError{Context: context, Preview: preview(trimmed), Err: err}
		}
		return nil
	}
	return &ParseError{Context: context, Preview: preview(trimmed), Err: errNoPayload}
}

// Results decodes the {"results": [...]} envelope that batch prompts ask
// for. Backends in JSON mode cannot emit a bare top-level array, but not
// every backend honors the envelope, so a bare array is accepted too.
func Results[T any](raw, context string) ([]T, error) {
	var envelope struct {
		Results []T `json:"results"`
	}
	if err := Unmarshal(raw, context, &envelope); err == nil && len(envelope.Results) > 0 {
		return envelope.Results, nil
	}
	var bare []T
	if err := Unmarshal(raw, context, &bare); err != nil {
		return nil, err
	}
	if len(bare) == 0 {
		return nil, fmt.Errorf("parse JSON (%s): response held no results", context)
	}
	return bare, nil
}

// candidates returns the slices of raw to attempt, in priority order.
func candidates(raw string) []string {
	out := []string{raw}
	if m := fenceRegex.FindStringSubmatch(raw); m != nil {
		out = append(out, strings.TrimSpace(m[1]))
	}
	out = append(out, outermost(raw, '{', '}'), outermost(raw, '[', ']'))
	return out
}

// outermost cuts raw from the first opening delimiter to the last closing
// one, the usual shape of a JSON value buried in prose.
func outermost(raw string, openDelim, closeDelim byte) string {
	start := strings.IndexByte(raw, openDelim)
	end := strings.LastIndexByte(raw, closeDelim)
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

const (
	previewHead = 160
	previewTail = 80
)

// preview returns a bounded head and tail excerpt so oversized payloads
// never land in logs or error chains whole.
func preview(raw string) string {
	if len(raw) <= previewHead+previewTail {
		return raw
	}
	return raw[:previewHead] + " ... " + raw[len(raw)-previewTail:]
}
