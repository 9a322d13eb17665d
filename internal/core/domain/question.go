// Package domain contains the core poll types and validation logic.
// This is part of the Functional Core - all functions are pure with no I/O.
package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// Question validation errors
	ErrQuestionTextRequired = errors.New("question text is required")
	ErrQuestionTextTooLong  = errors.New("question text must be at most 200 characters")
	ErrPubDateRequired      = errors.New("publication date is required")
	ErrPubDateOutOfRange    = errors.New("publication date must fall in years 1 to 9999")

	// Choice validation errors
	ErrChoiceTextRequired = errors.New("choice text is required")
	ErrChoiceTextTooLong  = errors.New("choice text must be at most 200 characters")
	ErrChoiceQuestionID   = errors.New("choice must belong to a question")
	ErrVotesNegative      = errors.New("votes cannot be negative")
)

// MaxTextLength is the longest question or choice text accepted.
const MaxTextLength = 200

// RecentWindow is how far back a publication date still counts as recent.
const RecentWindow = 24 * time.Hour

// =============================================================================
// Question
// =============================================================================

// Question is a poll question with a publication date. Questions whose
// publication date lies in the future are not visible to voters.
type Question struct {
	ID        int64     `json:"id"`
	Text      string    `json:"question_text"`
	PubDate   time.Time `json:"pub_date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewQuestion creates a question published at pubDate.
// Returns an error if validation fails.
func NewQuestion(text string, pubDate time.Time) (*Question, error) {
	text = strings.TrimSpace(text)
	if err := ValidateQuestionText(text); err != nil {
		return nil, err
	}
	if err := ValidatePubDate(pubDate); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Question{
		Text:      text,
		PubDate:   pubDate.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// WasPublishedRecently reports whether the question was published within
// the last day relative to now. Questions dated in the future are not.
func (q *Question) WasPublishedRecently(now time.Time) bool {
	return !q.PubDate.Before(now.Add(-RecentWindow)) && !q.PubDate.After(now)
}

// IsPublished reports whether the publication date has been reached.
func (q *Question) IsPublished(now time.Time) bool {
	return !q.PubDate.After(now)
}

// Rename replaces the question text.
func (q *Question) Rename(text string) error {
	text = strings.TrimSpace(text)
	if err := ValidateQuestionText(text); err != nil {
		return err
	}
	q.Text = text
	q.UpdatedAt = time.Now().UTC()
	return nil
}

// Reschedule moves the publication date.
func (q *Question) Reschedule(pubDate time.Time) error {
	if err := ValidatePubDate(pubDate); err != nil {
		return err
	}
	q.PubDate = pubDate.UTC()
	q.UpdatedAt = time.Now().UTC()
	return nil
}

// =============================================================================
// Validation Functions (Pure)
// =============================================================================

// ValidateQuestionText validates question text.
func ValidateQuestionText(text string) error {
	return validateText(text, ErrQuestionTextRequired, ErrQuestionTextTooLong)
}

// ValidateChoiceText validates choice text.
func ValidateChoiceText(text string) error {
	return validateText(text, ErrChoiceTextRequired, ErrChoiceTextTooLong)
}

// ValidatePubDate rejects a missing date and dates whose UTC year has more
// than four digits, which cannot be stored as fixed-width text.
func ValidatePubDate(pubDate time.Time) error {
	if pubDate.IsZero() {
		return ErrPubDateRequired
	}
	if y := pubDate.UTC().Year(); y < 1 || y > 9999 {
		return ErrPubDateOutOfRange
	}
	return nil
}

func validateText(text string, required, tooLong error) error {
	if strings.TrimSpace(text) == "" {
		return required
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return tooLong
	}
	return nil
}
