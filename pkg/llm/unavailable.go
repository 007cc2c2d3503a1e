package llm

import (
	"context"
	"errors"
)

// ErrProviderUnavailable is returned by UnavailableProvider for every
// call. It stands in for the LLM generation and judge backends the
// pipeline treats as external collaborators (§1 Out of scope): wiring
// this provider by default exercises the generator's candidate-drop path
// and the judge's heuristic fallback path (§8 S6) without requiring any
// external API credentials.
var ErrProviderUnavailable = errors.New("llm provider not configured")

// UnavailableProvider always fails. Swap it for a real LLMProvider
// implementation (e.g. an Anthropic or OpenAI client) once an operator
// wires one in.
type UnavailableProvider struct{}

func NewUnavailableProvider() *UnavailableProvider { return &UnavailableProvider{} }

func (UnavailableProvider) Chat(ctx context.Context, history []Message, options ...Option) (string, error) {
	return "", ErrProviderUnavailable
}

func (UnavailableProvider) Generate(ctx context.Context, prompt string, options ...Option) (string, error) {
	return "", ErrProviderUnavailable
}
