// Package ollama encodes and decodes Ollama's native /api/chat format.
package ollama

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/papercomputeco/ollamatrace/pkg/llm"
	"github.com/papercomputeco/ollamatrace/pkg/llm/provider"
)

// ErrServer is wrapped by ParseResponse when the body carries an "error" field.
var ErrServer = errors.New("ollama error")

// Provider implements provider.Provider for Ollama's API.
type Provider struct{}

var _ provider.Provider = (*Provider)(nil)

func New() *Provider { return &Provider{} }

func (o *Provider) Name() string {
	return "ollama"
}

func (o *Provider) BuildRequest(req *llm.ChatRequest) ([]byte, error) {
	if req == nil {
		return nil, errors.New("cannot build nil request")
	}

	messages := make([]ollamaMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, ollamaMessage{
			Role:    msg.Role,
			Content: msg.GetText(),
		})
	}

	out := ollamaRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   req.Stream,
	}

	if req.Temperature != nil || req.TopP != nil || req.TopK != nil ||
		req.Seed != nil || req.MaxTokens != nil || len(req.Stop) > 0 {
		out.Options = &ollamaOptions{
			Temperature: req.Temperature,
			TopP:        req.TopP,
			TopK:        req.TopK,
			Seed:        req.Seed,
			NumPredict:  req.MaxTokens,
			Stop:        req.Stop,
		}
	}

	if format, ok := req.Extra["format"].(string); ok {
		out.Format = format
	}
	if keepAlive, ok := req.Extra["keep_alive"].(string); ok {
		out.KeepAlive = keepAlive
	}

	return json.Marshal(out)
}

func (o *Provider) ParseResponse(payload []byte) (*llm.ChatResponse, error) {
	var resp ollamaResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, err
	}

	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrServer, resp.Error)
	}

	// Map Ollama metrics to common Usage format
	var usage *llm.Usage
	if resp.PromptEvalCount > 0 || resp.EvalCount > 0 || resp.TotalDuration > 0 {
		usage = &llm.Usage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
			TotalDurationNs:  resp.TotalDuration,
			PromptDurationNs: resp.PromptEvalDuration,
		}
	}

	stopReason := resp.DoneReason
	if stopReason == "" && resp.Done {
		stopReason = "stop"
	}

	result := &llm.ChatResponse{
		Model:       resp.Model,
		Message:     convertMessage(resp.Message),
		Done:        resp.Done,
		StopReason:  stopReason,
		Usage:       usage,
		CreatedAt:   resp.CreatedAt,
		RawResponse: payload,
	}

	if resp.LoadDuration > 0 || resp.EvalDuration > 0 {
		result.Extra = map[string]any{
			"load_duration": resp.LoadDuration,
			"eval_duration": resp.EvalDuration,
		}
	}

	return result, nil
}

// convertMessage maps an Ollama message to content blocks. Empty text is
// dropped when the message only carries tool calls.
func convertMessage(msg ollamaMessage) llm.Message {
	converted := llm.Message{Role: msg.Role}

	if msg.Content != "" || len(msg.ToolCalls) == 0 {
		converted.Content = append(converted.Content, llm.ContentBlock{Type: "text", Text: msg.Content})
	}

	for _, call := range msg.ToolCalls {
		converted.Content = append(converted.Content, llm.ContentBlock{
			Type:      "tool_use",
			ToolUseID: call.ID,
			ToolName:  call.Function.Name,
			ToolInput: call.Function.Arguments,
		})
	}

	return converted
}
