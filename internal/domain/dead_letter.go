package domain

import (
	"context"
	"fmt"
	"time"
)

// DeadLetter is an envelope whose delivery exhausted every attempt.
type DeadLetter struct {
	ID          string    `json:"id"`
	JobID       string    `json:"job_id"`
	AIService   string    `json:"ai_service"`
	NextService string    `json:"next_service"`
	Envelope    Envelope  `json:"envelope"`
	Error       string    `json:"error"`
	Attempts    int       `json:"attempts"`
	FailedAt    time.Time `json:"failed_at"`
}

// Validate checks if the dead letter can be stored.
func (d *DeadLetter) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("dead letter ID cannot be empty")
	}
	if d.AIService == "" {
		return fmt.Errorf("dead letter ai_service cannot be empty")
	}
	if d.FailedAt.IsZero() {
		return fmt.Errorf("dead letter failed_at cannot be zero")
	}
	return nil
}

// DeadLetterRepository parks undeliverable envelopes for later replay.
type DeadLetterRepository interface {
	Save(ctx context.Context, letter *DeadLetter) error
	// List returns the parked letters of one ai_service, oldest first.
	List(ctx context.Context, aiService string, limit int) ([]*DeadLetter, error)
}
