package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// Classifier maps a free-text transaction description to a Category.
type Classifier interface {
	Classify(ctx context.Context, description string) (Category, error)
}

// Narrator turns a report input into the three narrative sections.
type Narrator interface {
	Narrate(ctx context.Context, input NarrativeInput) (Narrative, error)
}

type ChatPrompt struct {
	Message      string
	CurrentMonth MonthlySummary
	LastMonth    MonthlySummary
	TargetBudget decimal.Decimal
	History      []ChatMessage
}

// ChatResponder produces the assistant reply for one chat turn.
type ChatResponder interface {
	Respond(ctx context.Context, prompt ChatPrompt) (string, error)
}
