// Package provider defines how the internal pkg/llm representation is encoded
// into provider-specific chat requests and decoded from their responses.
package provider

import (
	"github.com/papercomputeco/ollamatrace/pkg/llm"
)

// Provider defines the interface for LLM API format encoding and parsing.
type Provider interface {
	// Name returns the canonical provider name (e.g., "ollama")
	Name() string

	// BuildRequest converts an internal request into the provider-specific payload.
	BuildRequest(req *llm.ChatRequest) ([]byte, error)

	// ParseResponse converts a provider-specific response into the internal format.
	// Returns an error if the payload cannot be parsed.
	ParseResponse(payload []byte) (*llm.ChatResponse, error)
}
