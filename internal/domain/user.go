package domain

import (
	"context"
	"time"
)

// User is created implicitly on first ingestion. CohortID is written only by
// the cohort rebuild.
type User struct {
	ID        int64     `json:"user_id"`
	CohortID  *int64    `json:"cohort_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CohortAssignment struct {
	UserID   int64
	CohortID int64
}

type UserRepository interface {
	EnsureUser(ctx context.Context, id int64) error
	GetUser(ctx context.Context, id int64) (*User, error)
	AssignCohorts(ctx context.Context, assignments []CohortAssignment) (int64, error)
}
