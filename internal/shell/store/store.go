package store

import (
	"context"
	"time"

	"github.com/artpar/polls/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for polls.
type Store interface {
	// Question operations
	CreateQuestion(ctx context.Context, question *domain.Question) error
	GetQuestion(ctx context.Context, id int64) (*domain.Question, error)
	UpdateQuestion(ctx context.Context, question *domain.Question) error
	DeleteQuestion(ctx context.Context, id int64) error
	ListQuestions(ctx context.Context, opts ListOptions) ([]domain.Question, error)
	ListPublishedQuestions(ctx context.Context, now time.Time, opts ListOptions) ([]domain.Question, error)
	CountQuestions(ctx context.Context) (int, error)
	CountPublishedQuestions(ctx context.Context, now time.Time) (int, error)

	// Choice operations
	CreateChoice(ctx context.Context, choice *domain.Choice) error
	GetChoice(ctx context.Context, id int64) (*domain.Choice, error)
	DeleteChoice(ctx context.Context, id int64) error
	ListChoices(ctx context.Context, questionID int64) ([]domain.Choice, error)

	// Vote operations
	RecordVote(ctx context.Context, vote domain.Vote) error
	CountVotes(ctx context.Context, questionID int64) (int, error)

	// Transaction support
	WithTx(ctx context.Context, fn func(Store) error) error

	// Lifecycle
	Close() error
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination options.
type ListOptions struct {
	Limit  int
	Offset int
}

// DefaultListOptions returns default list options.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Limit:  100,
		Offset: 0,
	}
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 100
	}
	if o.Limit > 1000 {
		o.Limit = 1000
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
