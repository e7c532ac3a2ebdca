package ai

import (
	"encoding/json"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ExtractJSON strips markdown code fences and surrounding prose from a model
// response and returns the JSON payload. The result is not guaranteed to be
// valid JSON; callers decode and validate it.
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if strings.Contains(raw, "```") || strings.Contains(raw, "~~~") {
		if body, ok := fencedBlock([]byte(raw)); ok {
			raw = body
		}
	}

	raw = strings.TrimSpace(strings.Trim(raw, "`"))
	if json.Valid([]byte(raw)) {
		return raw
	}

	if span, ok := outermostJSON(raw); ok {
		return span
	}

	return raw
}

// DecodeJSON extracts and decodes the JSON payload of a model response.
func DecodeJSON(raw string) (any, error) {
	var data any
	if err := json.Unmarshal([]byte(ExtractJSON(raw)), &data); err != nil {
		return nil, err
	}
	return data, nil
}

// fencedBlock returns the body of the first fenced code block.
func fencedBlock(source []byte) (string, bool) {
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var (
		body  strings.Builder
		found bool
	)
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		block, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		lines := block.Lines()
		for i := 0; i < lines.Len(); i++ {
			segment := lines.At(i)
			body.Write(segment.Value(source))
		}
		found = true
		return ast.WalkStop, nil
	})

	return body.String(), found
}

// outermostJSON cuts the span between the first opening bracket and the last
// matching closing bracket, for responses like "Sure! [...] Good luck".
func outermostJSON(raw string) (string, bool) {
	start := strings.IndexAny(raw, "[{")
	if start == -1 {
		return "", false
	}

	closer := "}"
	if raw[start] == '[' {
		closer = "]"
	}

	end := strings.LastIndex(raw, closer)
	if end <= start {
		return "", false
	}

	span := raw[start : end+1]
	if !json.Valid([]byte(span)) {
		return "", false
	}
	return span, true
}
