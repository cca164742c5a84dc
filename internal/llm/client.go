// Package llm is the language-model port used by the reasoning stages.
// Deterministic stages never touch it; every caller carries a
// non-LLM fallback for when the provider is unavailable.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable reports that the provider could not serve the request
// (network failure, missing API key, exhausted retries). Callers fall
// back to template behavior.
var ErrUnavailable = errors.New("llm: provider unavailable")

// ParseError reports that a provider reply could not be coerced into
// the JSON shape the caller asked for, even after repair.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("llm: parse response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Request is a single prompt completion.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int
}

// Response carries the raw text reply plus token accounting.
type Response struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
}

// Client is implemented by concrete providers and by the test mock.
type Client interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Model() string
}
