// Package genai wraps the OpenAI API for content-understanding calls.
//
// It exposes a narrow client interface so flow components can be tested with
// deterministic stubs, and enforces an explicit per-call timeout so a hanging
// remote never stalls a conversation indefinitely.
package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Default configuration values.
const (
	// DefaultModel is the chat model used when none is configured.
	DefaultModel = openai.ChatModelGPT4oMini
	// DefaultTimeout bounds each remote call.
	DefaultTimeout = 30 * time.Second
)

// Opts holds configuration for the GenAI client.
type Opts struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Option configures Opts.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// chatCompleter defines the minimal surface of the OpenAI chat completion
// service needed by this package.
type chatCompleter interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// ClientInterface defines the operations flow components depend on.
type ClientInterface interface {
	// Generate returns the model's plain-text completion.
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	// GenerateJSON asks the model for a JSON object and unmarshals it into out.
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, out any) error
}

// Client wraps the OpenAI chat completion service.
type Client struct {
	chat    chatCompleter
	model   string
	timeout time.Duration
}

// NewClient initializes a GenAI client. The API key is taken from options or
// the OPENAI_API_KEY environment variable.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cli := openai.NewClient(option.WithAPIKey(apiKey))
	slog.Debug("genai.NewClient: client created", "model", model, "timeout", timeout)
	return &Client{chat: &cli.Chat.Completions, model: model, timeout: timeout}, nil
}

// Generate returns the model's plain-text completion for the given prompts.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.chat.New(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
	})
	if err != nil {
		slog.Error("genai.Generate: completion failed", "error", err)
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		slog.Error("genai.Generate: no choices returned")
		return "", fmt.Errorf("no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateJSON asks the model for a single JSON object and unmarshals it into
// out. Code fences around the object are tolerated and stripped.
func (c *Client) GenerateJSON(ctx context.Context, systemPrompt, userPrompt string, out any) error {
	content, err := c.Generate(ctx, systemPrompt+"\nRespond with a single JSON object and nothing else.", userPrompt)
	if err != nil {
		return err
	}

	cleaned := stripCodeFence(content)
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		slog.Error("genai.GenerateJSON: malformed JSON payload", "error", err, "contentLength", len(content))
		return fmt.Errorf("malformed JSON payload from model: %w", err)
	}
	return nil
}

// stripCodeFence removes a surrounding markdown code fence, if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
