// Package llm is the language-model contract used for question extraction
// and draft generation.
package llm

import (
	"context"
	"errors"
)

var (
	// ErrEmptyResponse is returned when the model produced no text
	ErrEmptyResponse = errors.New("llm: empty response from model")
	// ErrNotConfigured is returned when no model is configured
	ErrNotConfigured = errors.New("llm: no model configured")
)

// Request is one prompt sent to the model
type Request struct {
	Prompt    string
	JSON      bool  // ask for application/json output
	MaxTokens int32 // 0 leaves the model default
}

// Client generates text from a prompt
type Client interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
	Close() error
}

// Func adapts a function to the Client interface
type Func func(ctx context.Context, req Request) (string, error)

// Name implements Client
func (f Func) Name() string { return "func" }

// Generate implements Client
func (f Func) Generate(ctx context.Context, req Request) (string, error) { return f(ctx, req) }

// Close implements Client
func (f Func) Close() error { return nil }
