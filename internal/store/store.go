package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Evaluation is one judge's scored assessment of one contestant.
type Evaluation struct {
	ID           uuid.UUID `json:"id"`
	ContestantID string    `json:"contestant_id"`
	JudgeID      string    `json:"judge_id"`
	Score        int       `json:"score"`
	Notes        string    `json:"notes"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewEvaluation holds the caller-supplied fields of a record.
type NewEvaluation struct {
	ContestantID string
	JudgeID      string
	Score        int
	Notes        string
}

// Patch lists the fields to change on update. Nil fields are left untouched.
type Patch struct {
	ContestantID *string
	JudgeID      *string
	Score        *int
	Notes        *string
}

// Apply copies the present fields of p onto ev.
func (p Patch) Apply(ev *Evaluation) {
	if p.ContestantID != nil {
		ev.ContestantID = *p.ContestantID
	}
	if p.JudgeID != nil {
		ev.JudgeID = *p.JudgeID
	}
	if p.Score != nil {
		ev.Score = *p.Score
	}
	if p.Notes != nil {
		ev.Notes = *p.Notes
	}
}

// Store defines the persistence contract for evaluations. Absence on Get,
// Update and Delete is reported through the boolean result, not an error.
type Store interface {
	Create(ctx context.Context, in NewEvaluation) (Evaluation, error)
	Get(ctx context.Context, id uuid.UUID) (Evaluation, bool, error)
	GetByContestant(ctx context.Context, contestantID string) ([]Evaluation, error)
	Update(ctx context.Context, id uuid.UUID, patch Patch) (Evaluation, bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	Close() error
}

// now returns the current time at the precision all backends can round-trip.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// nextUpdate returns a timestamp strictly after prev.
func nextUpdate(prev time.Time) time.Time {
	t := now()
	if !t.After(prev) {
		t = prev.Add(time.Microsecond)
	}
	return t
}
