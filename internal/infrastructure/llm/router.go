// Package llm adapts hosted language models to the article rewrite collaborator.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ArticlesPublisher/internal/config"
	"ArticlesPublisher/internal/domain"
	"ArticlesPublisher/internal/ports"
)

// provider is implemented by every model backend.
type provider interface {
	configured() bool
	complete(ctx context.Context, model, prompt string) (completion, error)
}

// Router dispatches rewrite requests to a backend chosen by model family.
type Router struct {
	defaultModel string
	openAI       provider
	claude       provider
	gemini       provider
	logger       *slog.Logger
}

var _ ports.Rewriter = (*Router)(nil)

// NewRouter builds every backend from configuration.
func NewRouter(cfg config.LLMConfig, logger *slog.Logger) *Router {
	return &Router{
		defaultModel: cfg.DefaultModel,
		openAI:       NewChatGPTClient(cfg),
		claude:       NewClaudeClient(cfg),
		gemini:       NewGeminiClient(cfg),
		logger:       logger,
	}
}

// Rewrite sends the rendered prompt and decodes the JSON answer. Every
// failure wraps domain.ErrRewrite.
func (r *Router) Rewrite(ctx context.Context, req ports.RewriteRequest) (domain.RewriteResult, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = r.defaultModel
	}

	backend, family, err := r.backendFor(model)
	if err != nil {
		return domain.RewriteResult{}, err
	}
	if !backend.configured() {
		return domain.RewriteResult{}, fmt.Errorf("%w: no API key for %s models", domain.ErrMissingCredential, family)
	}

	if r.logger != nil {
		r.logger.Debug("rewrite request", "model", model, "family", family, "title", req.Title)
	}

	answer, err := backend.complete(ctx, model, buildPrompt(req))
	if err != nil {
		return domain.RewriteResult{}, fmt.Errorf("%w: %s: %w", domain.ErrRewrite, family, err)
	}
	return parseRewrite(answer)
}

func (r *Router) backendFor(model string) (provider, string, error) {
	lower := strings.ToLower(model)
	switch {
	case lower == "":
		return nil, "", fmt.Errorf("%w: no model configured", domain.ErrRewrite)
	case strings.HasPrefix(lower, "claude"):
		return r.claude, "claude", nil
	case strings.HasPrefix(lower, "gemini"):
		return r.gemini, "gemini", nil
	case strings.HasPrefix(lower, "gpt"), strings.HasPrefix(lower, "o1"), strings.HasPrefix(lower, "o3"),
		strings.HasPrefix(lower, "o4"), strings.HasPrefix(lower, "chatgpt"):
		return r.openAI, "openai", nil
	default:
		return nil, "", fmt.Errorf("%w: unsupported model %q", domain.ErrRewrite, model)
	}
}
