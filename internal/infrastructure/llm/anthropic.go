package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"ArticlesPublisher/internal/config"
)

const defaultMaxTokens = 4096

// ClaudeClient calls the Anthropic Messages API through the official SDK.
type ClaudeClient struct {
	client       anthropic.Client
	apiKey       string
	systemPrompt string
	maxTokens    int64
}

// NewClaudeClient builds the SDK client; Endpoint overrides the API base URL.
func NewClaudeClient(cfg config.LLMConfig) *ClaudeClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.Anthropic.APIKey),
		option.WithHTTPClient(&http.Client{Timeout: timeoutOrDefault(cfg.Timeout)}),
		option.WithMaxRetries(1),
	}
	if cfg.Anthropic.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Anthropic.Endpoint))
	}

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &ClaudeClient{
		client:       anthropic.NewClient(opts...),
		apiKey:       cfg.Anthropic.APIKey,
		systemPrompt: cfg.SystemPrompt,
		maxTokens:    maxTokens,
	}
}

func (c *ClaudeClient) configured() bool {
	return c != nil && c.apiKey != ""
}

func (c *ClaudeClient) complete(ctx context.Context, model, prompt string) (completion, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: c.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt(c.systemPrompt)}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return completion{}, fmt.Errorf("claude messages: %w", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return completion{}, fmt.Errorf("claude response has no text content")
	}

	return completion{
		Text:   text.String(),
		Tokens: int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}, nil
}
