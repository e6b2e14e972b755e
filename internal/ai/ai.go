// Package ai defines the contract of the external text-generation endpoint
// and helpers for reading its untrusted output.
package ai

import "context"

// ProviderGemini is the only supported provider.
const ProviderGemini = "gemini"

// Generator sends a prompt to a text-generation model and returns its raw
// textual answer.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
}
