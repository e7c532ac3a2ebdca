package ai

//go:generate go tool mockgen -source=completion.go -destination=aimock/completer.go -package=aimock

import (
	"context"
	"errors"
)

// Operation names a kind of LLM call. It is used for log fields and metric labels.
type Operation string

const (
	OperationGenerateQuestions Operation = "generate_questions"
	OperationEvaluateAnswer    Operation = "evaluate_answer"
)

// ErrEmptyResponse is returned by providers when the model produced no text.
var ErrEmptyResponse = errors.New("llm returned empty response")

// Request is a single text-completion call.
type Request struct {
	Operation Operation
	// Model overrides the provider default when set.
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	// JSON asks the provider for a JSON response when it supports a response
	// mime type. Callers still parse defensively.
	JSON bool
}

// Completer is a text-completion service. Implementations block until the
// provider answers or ctx is done.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}
