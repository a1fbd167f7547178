package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"finmate/internal/domain"
)

var ErrScripted = errors.New("scripted collaborator failure")

// Classifier maps descriptions by keyword. Unknown descriptions fail.
type Classifier struct {
	Keywords map[string]domain.Category
	calls    atomic.Int64
}

func NewClassifier() *Classifier {
	return &Classifier{Keywords: map[string]domain.Category{
		"김밥":  domain.CategoryFood,
		"점심":  domain.CategoryFood,
		"택시":  domain.CategoryTransport,
		"지하철": domain.CategoryTransport,
		"영화":  domain.CategoryLeisure,
	}}
}

func (c *Classifier) Classify(_ context.Context, description string) (domain.Category, error) {
	c.calls.Add(1)
	for keyword, category := range c.Keywords {
		if strings.Contains(description, keyword) {
			return category, nil
		}
	}
	return "", ErrScripted
}

func (c *Classifier) Calls() int64 { return c.calls.Load() }

// Narrator returns a fixed narrative after an optional delay and records
// every input it was shown.
type Narrator struct {
	Delay     time.Duration
	Fail      bool
	Narrative domain.Narrative

	mu     sync.Mutex
	inputs []domain.NarrativeInput
}

func NewNarrator() *Narrator {
	return &Narrator{Narrative: domain.Narrative{
		PastComparison:  "지난달보다 식비가 늘었습니다.",
		ClusterInfo:     "비슷한 소비 규모의 그룹에 속해 있습니다.",
		GroupComparison: "그룹 평균보다 교통비가 적습니다.",
	}}
}

func (n *Narrator) Narrate(ctx context.Context, input domain.NarrativeInput) (domain.Narrative, error) {
	n.mu.Lock()
	n.inputs = append(n.inputs, input)
	n.mu.Unlock()

	if n.Delay > 0 {
		select {
		case <-time.After(n.Delay):
		case <-ctx.Done():
			return domain.Narrative{}, ctx.Err()
		}
	}
	if n.Fail {
		return domain.Narrative{}, ErrScripted
	}
	return n.Narrative, nil
}

func (n *Narrator) Calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.inputs)
}

func (n *Narrator) LastInput() domain.NarrativeInput {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.inputs) == 0 {
		return domain.NarrativeInput{}
	}
	return n.inputs[len(n.inputs)-1]
}

// Responder echoes the message and remembers the last prompt.
type Responder struct {
	Fail bool

	mu   sync.Mutex
	last domain.ChatPrompt
}

func (r *Responder) Respond(_ context.Context, prompt domain.ChatPrompt) (string, error) {
	r.mu.Lock()
	r.last = prompt
	r.mu.Unlock()

	if r.Fail {
		return "", ErrScripted
	}
	return "답변: " + prompt.Message, nil
}

func (r *Responder) LastPrompt() domain.ChatPrompt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}
