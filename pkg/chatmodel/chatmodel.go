// Package chatmodel defines the chat-model handle the entry flow invokes.
package chatmodel

import (
	"context"
	"errors"

	"github.com/papercomputeco/ollamatrace/pkg/llm"
)

// ErrMissingModel is returned when a chat model is constructed without a model name.
var ErrMissingModel = errors.New("chat model name is required")

// Options are the generation settings a handle is built with.
type Options struct {
	Model       string
	Temperature float64
}

// ChatModel sends a single prompt as a user message and returns the reply.
type ChatModel interface {
	Invoke(ctx context.Context, prompt string) (*llm.ChatResponse, error)
}

// Factory constructs a ChatModel for the given options.
type Factory func(Options) (ChatModel, error)
