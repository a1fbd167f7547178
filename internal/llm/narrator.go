package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"finmate/internal/domain"
)

var narrativeSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"section_past_comparison":  {Type: genai.TypeString},
		"section_cluster_info":     {Type: genai.TypeString},
		"section_group_comparison": {Type: genai.TypeString},
	},
	Required: []string{
		"section_past_comparison",
		"section_cluster_info",
		"section_group_comparison",
	},
	PropertyOrdering: []string{
		"section_past_comparison",
		"section_cluster_info",
		"section_group_comparison",
	},
}

// Narrate sends the four-field input and parses the three-section answer.
func (g *Gemini) Narrate(ctx context.Context, input domain.NarrativeInput) (domain.Narrative, error) {
	prompt, err := buildNarrativePrompt(input)
	if err != nil {
		return domain.Narrative{}, fmt.Errorf("narrate: %w", err)
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	raw, err := g.generate(ctx, g.narrativeModel, contents, &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0.5),
		ResponseMIMEType: "application/json",
		ResponseSchema:   narrativeSchema,
	})
	if err != nil {
		return domain.Narrative{}, fmt.Errorf("narrate: %w", err)
	}

	narrative, err := parseNarrative(raw)
	if err != nil {
		return domain.Narrative{}, fmt.Errorf("narrate: %w", err)
	}
	return narrative, nil
}

func parseNarrative(raw string) (domain.Narrative, error) {
	clean := cleanModelJSON(raw)

	var narrative domain.Narrative
	if err := json.Unmarshal([]byte(clean), &narrative); err != nil {
		return domain.Narrative{}, fmt.Errorf("unmarshal narrative: %w", err)
	}

	if strings.TrimSpace(narrative.PastComparison) == "" &&
		strings.TrimSpace(narrative.ClusterInfo) == "" &&
		strings.TrimSpace(narrative.GroupComparison) == "" {
		return domain.Narrative{}, fmt.Errorf("narrative has no sections")
	}
	return narrative, nil
}

func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Keep only the outermost object if the model added prose around it.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}
