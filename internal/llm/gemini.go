// Package llm holds the Gemini-backed classifier, narrator and chat responder.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"finmate/internal/config"
)

// ContentGenerator is the part of the genai client the adapters call.
// *genai.Models satisfies it; tests substitute a fake.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini implements domain.Classifier, domain.Narrator and domain.ChatResponder.
type Gemini struct {
	models          ContentGenerator
	classifierModel string
	narrativeModel  string
	chatModel       string
	timeout         time.Duration
	logger          *slog.Logger
}

func NewGemini(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return NewGeminiWithGenerator(client.Models, cfg, logger), nil
}

func NewGeminiWithGenerator(models ContentGenerator, cfg *config.Config, logger *slog.Logger) *Gemini {
	return &Gemini{
		models:          models,
		classifierModel: cfg.ClassifierModel,
		narrativeModel:  cfg.NarrativeModel,
		chatModel:       cfg.ChatModel,
		timeout:         cfg.LLMTimeout,
		logger:          logger.With("component", "gemini"),
	}
}

func (g *Gemini) generate(ctx context.Context, model string, contents []*genai.Content, gc *genai.GenerateContentConfig) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := g.models.GenerateContent(ctx, model, contents, gc)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model %s", model)
	}

	g.logger.Debug("Model call completed", "model", model, "duration", time.Since(start))
	return text, nil
}
