package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"finmate/internal/domain"
)

// Classify asks the model for exactly one category label for description.
// Any label outside the closed set is an error; callers fall back to 기타.
func (g *Gemini) Classify(ctx context.Context, description string) (domain.Category, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(buildClassificationPrompt(description), genai.RoleUser),
	}

	raw, err := g.generate(ctx, g.classifierModel, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0.3),
	})
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}

	category, err := parseCategory(raw)
	if err != nil {
		return "", fmt.Errorf("classify: %w", err)
	}
	return category, nil
}

// parseCategory accepts an exact label, optionally quoted or punctuated, and
// otherwise the first label the answer mentions.
func parseCategory(raw string) (domain.Category, error) {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "\"'`.*[] \n\t")
	if c, ok := domain.ParseCategory(s); ok {
		return c, nil
	}

	for _, c := range domain.Categories() {
		if strings.Contains(s, string(c)) {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category label %q", raw)
}
