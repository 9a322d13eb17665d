// Package api provides the HTTP surface of the polls service: server-rendered
// pages under /polls/ and a JSON API under /api/v1.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/artpar/polls/internal/core/poll"
	"github.com/artpar/polls/internal/shell/api/middleware"
	"github.com/artpar/polls/internal/shell/api/openapi"
	"github.com/artpar/polls/internal/shell/metrics"
	"github.com/artpar/polls/internal/shell/store"
)

// =============================================================================
// API Setup
// =============================================================================

// APIConfig holds configuration for the API setup.
type APIConfig struct {
	Store   store.Store
	Logger  *slog.Logger
	Metrics *metrics.Metrics // nil disables instrumentation and /metrics

	// AdminAuth guards /api/v1/questions. Nil leaves admin routes open.
	AdminAuth *middleware.AdminAuth

	// IndexSize is how many questions the index page lists.
	IndexSize int

	// Version is reported in the OpenAPI document.
	Version string

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// NewHandler creates a handler from cfg. It fails only when the embedded
// page templates cannot be parsed.
func NewHandler(cfg APIConfig) (*Handler, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.IndexSize <= 0 {
		cfg.IndexSize = poll.DefaultIndexSize
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	pages, err := loadPages()
	if err != nil {
		return nil, err
	}

	h := &Handler{
		store:     cfg.Store,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		adminAuth: cfg.AdminAuth,
		pages:     pages,
		indexSize: cfg.IndexSize,
		clock:     cfg.Clock,
		openapi: openapi.NewGenerator(
			openapi.WithTitle("Polls API"),
			openapi.WithVersion(cfg.Version),
			openapi.WithServer("/"),
		),
	}
	h.openapi.Register(apiRoutes()...)
	return h, nil
}

// SetupAPI creates the complete router.
// Returns an http.Handler that can be used as the server's main handler.
func SetupAPI(cfg APIConfig) (http.Handler, error) {
	h, err := NewHandler(cfg)
	if err != nil {
		return nil, err
	}
	return h.Routes(), nil
}

// apiRoutes documents the JSON endpoints for the OpenAPI generator.
func apiRoutes() []openapi.Route {
	return []openapi.Route{
		// Public
		{Method: http.MethodGet, Path: "/api/v1/polls", OperationID: "listPolls", Summary: "List published polls, newest first", Tag: "polls", Response: ListQuestionsResponse{}},
		{Method: http.MethodGet, Path: "/api/v1/polls/{id}", OperationID: "getPoll", Summary: "Get a published poll with its choices", Tag: "polls", Response: QuestionResponse{}},
		{Method: http.MethodGet, Path: "/api/v1/polls/{id}/results", OperationID: "getPollResults", Summary: "Get the vote tally of a published poll", Tag: "polls", Response: ResultsResponse{}},
		{Method: http.MethodPost, Path: "/api/v1/polls/{id}/votes", OperationID: "vote", Summary: "Vote for a choice", Tag: "polls", Request: VoteRequest{}, Response: VoteResponse{}, Status: http.StatusCreated},

		// Admin
		{Method: http.MethodPost, Path: "/api/v1/questions", OperationID: "createQuestion", Summary: "Create a question", Tag: "questions", Request: CreateQuestionRequest{}, Response: QuestionResponse{}, Status: http.StatusCreated, Protected: true},
		{Method: http.MethodGet, Path: "/api/v1/questions", OperationID: "listQuestions", Summary: "List all questions, including scheduled ones", Tag: "questions", Response: ListQuestionsResponse{}, Protected: true},
		{Method: http.MethodGet, Path: "/api/v1/questions/{id}", OperationID: "getQuestion", Summary: "Get a question", Tag: "questions", Response: QuestionResponse{}, Protected: true},
		{Method: http.MethodPut, Path: "/api/v1/questions/{id}", OperationID: "updateQuestion", Summary: "Update a question", Tag: "questions", Request: UpdateQuestionRequest{}, Response: QuestionResponse{}, Protected: true},
		{Method: http.MethodDelete, Path: "/api/v1/questions/{id}", OperationID: "deleteQuestion", Summary: "Delete a question and its choices", Tag: "questions", Status: http.StatusNoContent, Protected: true},
		{Method: http.MethodPost, Path: "/api/v1/questions/{id}/choices", OperationID: "createChoice", Summary: "Add a choice", Tag: "questions", Request: CreateChoiceRequest{}, Response: ChoiceResponse{}, Status: http.StatusCreated, Protected: true},
		{Method: http.MethodGet, Path: "/api/v1/questions/{id}/choices", OperationID: "listChoices", Summary: "List a question's choices", Tag: "questions", Response: ListChoicesResponse{}, Protected: true},
		{Method: http.MethodDelete, Path: "/api/v1/questions/{id}/choices/{choiceID}", OperationID: "deleteChoice", Summary: "Delete a choice", Tag: "questions", Status: http.StatusNoContent, Protected: true},
		{Method: http.MethodGet, Path: "/api/v1/questions/{id}/results", OperationID: "getQuestionResults", Summary: "Get the vote tally of any question", Tag: "questions", Response: ResultsResponse{}, Protected: true},
	}
}
