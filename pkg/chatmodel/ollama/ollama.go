// Package ollama implements chatmodel.ChatModel against Ollama's /api/chat endpoint.
package ollama

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/papercomputeco/ollamatrace/pkg/chatmodel"
	"github.com/papercomputeco/ollamatrace/pkg/llm"
	"github.com/papercomputeco/ollamatrace/pkg/llm/provider"
	ollamaprovider "github.com/papercomputeco/ollamatrace/pkg/llm/provider/ollama"
	"github.com/papercomputeco/ollamatrace/pkg/logger"
	"github.com/papercomputeco/ollamatrace/pkg/tracing"
	"github.com/papercomputeco/ollamatrace/pkg/utils"
)

const (
	// DefaultBaseURL is where a local Ollama daemon listens.
	DefaultBaseURL = "http://localhost:11434"

	defaultPort = "11434"

	// maxErrorBody caps how much of a failed response is quoted in errors.
	maxErrorBody = 512
)

// Config configures an Ollama chat model.
type Config struct {
	// BaseURL is the Ollama server address. Accepts the same forms as
	// OLLAMA_HOST: a full URL, host:port, or a bare host.
	BaseURL string

	Options chatmodel.Options

	// HTTPClient overrides the client used for requests. When nil a client
	// without a timeout is built around Transport; only the context passed
	// to Invoke bounds a request.
	HTTPClient *http.Client

	// Transport is the round tripper for the default client.
	Transport http.RoundTripper

	Logger *slog.Logger
}

// Model is a chatmodel.ChatModel backed by an Ollama server.
type Model struct {
	endpoint string
	options  chatmodel.Options
	client   *http.Client
	provider provider.Provider
	logger   *slog.Logger
}

// New creates an Ollama chat model.
func New(cfg Config) (*Model, error) {
	if strings.TrimSpace(cfg.Options.Model) == "" {
		return nil, chatmodel.ErrMissingModel
	}

	base, err := NormalizeBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Transport: cfg.Transport}
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Model{
		endpoint: base + "/api/chat",
		options:  cfg.Options,
		client:   client,
		provider: ollamaprovider.New(),
		logger:   log,
	}, nil
}

// NewFactory returns a chatmodel.Factory that builds models sharing cfg's
// connection settings with the requested options.
func NewFactory(cfg Config) chatmodel.Factory {
	return func(opts chatmodel.Options) (chatmodel.ChatModel, error) {
		c := cfg
		c.Options = opts
		m, err := New(c)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

// Invoke sends prompt as a single user message in one non-streaming request.
func (m *Model) Invoke(ctx context.Context, prompt string) (*llm.ChatResponse, error) {
	stream := false
	temperature := m.options.Temperature

	body, err := m.provider.BuildRequest(&llm.ChatRequest{
		Model:       m.options.Model,
		Messages:    []llm.Message{llm.NewTextMessage("user", prompt)},
		Stream:      &stream,
		Temperature: &temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("building ollama request: %w", err)
	}

	tracing.AddMetadata(ctx, "model", m.options.Model)
	tracing.AddMetadata(ctx, "temperature", m.options.Temperature)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "ollamatrace/"+utils.Version)

	m.logger.Debug("sending chat request",
		"provider", m.provider.Name(),
		"endpoint", m.endpoint,
		"model", m.options.Model,
		"temperature", m.options.Temperature,
	)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ollama: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading ollama response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		// Ollama reports failures as {"error": "..."}; prefer that message.
		if _, perr := m.provider.ParseResponse(payload); errors.Is(perr, ollamaprovider.ErrServer) {
			return nil, fmt.Errorf("ollama returned status %d: %w", resp.StatusCode, perr)
		}
		return nil, fmt.Errorf("ollama returned status %d: %s",
			resp.StatusCode, utils.Truncate(strings.TrimSpace(string(payload)), maxErrorBody))
	}

	parsed, err := m.provider.ParseResponse(payload)
	if err != nil {
		return nil, fmt.Errorf("parsing ollama response: %w", err)
	}

	if parsed.Usage != nil {
		tracing.AddMetadata(ctx, "prompt_tokens", parsed.Usage.PromptTokens)
		tracing.AddMetadata(ctx, "completion_tokens", parsed.Usage.CompletionTokens)
	}

	m.logger.Debug("chat response received",
		"model", parsed.Model,
		"stop_reason", parsed.StopReason,
	)

	return parsed, nil
}

// NormalizeBaseURL resolves an OLLAMA_HOST style address to a base URL
// without a trailing slash. An empty value yields DefaultBaseURL.
func NormalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultBaseURL, nil
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid ollama host %q: %w", raw, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid ollama host %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported ollama scheme %q", u.Scheme)
	}

	if u.Port() == "" && u.Scheme == "http" {
		u.Host = net.JoinHostPort(u.Hostname(), defaultPort)
	}

	return strings.TrimRight(u.Scheme+"://"+u.Host+u.Path, "/"), nil
}

var _ chatmodel.ChatModel = (*Model)(nil)
