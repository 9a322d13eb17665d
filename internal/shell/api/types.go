package api

import "time"

// =============================================================================
// Request Types
// =============================================================================

// CreateQuestionRequest is the request body for creating a question.
// An empty PubDate publishes the question immediately.
type CreateQuestionRequest struct {
	QuestionText string                `json:"question_text"`
	PubDate      string                `json:"pub_date,omitempty"`
	Choices      []CreateChoiceRequest `json:"choices,omitempty"`
}

// UpdateQuestionRequest is the request body for updating a question.
// Nil fields are left unchanged.
type UpdateQuestionRequest struct {
	QuestionText *string `json:"question_text,omitempty"`
	PubDate      *string `json:"pub_date,omitempty"`
}

// CreateChoiceRequest is the request body for adding a choice.
type CreateChoiceRequest struct {
	ChoiceText string `json:"choice_text"`
	Votes      int    `json:"votes,omitempty"`
}

// VoteRequest is the request body for casting a vote.
type VoteRequest struct {
	ChoiceID int64 `json:"choice_id"`
}

// =============================================================================
// Response Types
// =============================================================================

// QuestionResponse is a single question together with its choices.
type QuestionResponse struct {
	ID                   int64            `json:"id"`
	QuestionText         string           `json:"question_text"`
	PubDate              time.Time        `json:"pub_date"`
	WasPublishedRecently bool             `json:"was_published_recently"`
	Choices              []ChoiceResponse `json:"choices"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// QuestionSummary is a question as it appears in list responses.
type QuestionSummary struct {
	ID                   int64     `json:"id"`
	QuestionText         string    `json:"question_text"`
	PubDate              time.Time `json:"pub_date"`
	WasPublishedRecently bool      `json:"was_published_recently"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// ChoiceResponse is the response for choice operations.
type ChoiceResponse struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	ChoiceText string `json:"choice_text"`
	Votes      int    `json:"votes"`
}

// ListQuestionsResponse is the response for listing questions.
type ListQuestionsResponse struct {
	Questions []QuestionSummary `json:"questions"`
	Total     int               `json:"total"` // all matching questions, not just this page
	Limit     int               `json:"limit"`
	Offset    int               `json:"offset"`
}

// ListChoicesResponse is the response for listing a question's choices.
type ListChoicesResponse struct {
	Choices []ChoiceResponse `json:"choices"`
}

// ResultsResponse is the vote tally for a question.
type ResultsResponse struct {
	QuestionID   int64                  `json:"question_id"`
	QuestionText string                 `json:"question_text"`
	TotalVotes   int                    `json:"total_votes"`
	Choices      []ChoiceResultResponse `json:"choices"`
}

// ChoiceResultResponse is one row of a tally.
type ChoiceResultResponse struct {
	ID         int64   `json:"id"`
	ChoiceText string  `json:"choice_text"`
	Votes      int     `json:"votes"`
	Percent    float64 `json:"percent"`
	Leading    bool    `json:"leading"`
}

// VoteResponse is the receipt for a recorded vote.
type VoteResponse struct {
	ID         string         `json:"id"`
	QuestionID int64          `json:"question_id"`
	ChoiceID   int64          `json:"choice_id"`
	CastAt     time.Time      `json:"cast_at"`
	Choice     ChoiceResponse `json:"choice"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the response for health check.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the response for readiness check.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
