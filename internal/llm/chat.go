package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"finmate/internal/domain"
)

// Respond replays the chronological history and answers the new message.
func (g *Gemini) Respond(ctx context.Context, prompt domain.ChatPrompt) (string, error) {
	system, err := buildChatSystemPrompt(prompt)
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}

	contents := make([]*genai.Content, 0, len(prompt.History)+1)
	for _, msg := range prompt.History {
		role := genai.Role(genai.RoleUser)
		if msg.Sender == domain.SenderBot {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(prompt.Message, genai.RoleUser))

	reply, err := g.generate(ctx, g.chatModel, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.7),
	})
	if err != nil {
		return "", fmt.Errorf("chat: %w", err)
	}
	return reply, nil
}
