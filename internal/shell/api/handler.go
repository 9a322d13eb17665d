package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/artpar/polls/internal/core/domain"
	"github.com/artpar/polls/internal/core/poll"
	"github.com/artpar/polls/internal/shell/api/middleware"
	"github.com/artpar/polls/internal/shell/api/openapi"
	"github.com/artpar/polls/internal/shell/metrics"
	"github.com/artpar/polls/internal/shell/store"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for pages and the JSON API.
type Handler struct {
	store     store.Store
	logger    *slog.Logger
	metrics   *metrics.Metrics
	adminAuth *middleware.AdminAuth
	pages     pages
	indexSize int
	clock     func() time.Time
	openapi   *openapi.Generator
}

// pinger is implemented by stores that can check their connection.
type pinger interface {
	Ping(ctx context.Context) error
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(h.logger))
	r.Use(chimw.Recoverer)
	r.Use(h.requestIDHeader)
	r.Use(h.metrics.Middleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/polls/", http.StatusFound)
	})

	// Health endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)
	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler())
	}

	// Pages
	r.Route("/polls", func(r chi.Router) {
		r.Get("/", h.handleIndexPage)
		r.Get("/{id}/", h.handleDetailPage)
		r.Get("/{id}/results/", h.handleResultsPage)
		r.Post("/{id}/vote/", h.handleVoteForm)
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/openapi.json", h.openapi.Handler())

		r.Route("/polls", func(r chi.Router) {
			r.Get("/", h.handleListPolls)
			r.Get("/{id}", h.handleGetPoll)
			r.Get("/{id}/results", h.handlePollResults)
			r.Post("/{id}/votes", h.handleVote)
		})

		r.Route("/questions", func(r chi.Router) {
			r.Use(h.adminAuth.Handler)

			r.Post("/", h.handleCreateQuestion)
			r.Get("/", h.handleListQuestions)
			r.Get("/{id}", h.handleGetQuestion)
			r.Put("/{id}", h.handleUpdateQuestion)
			r.Delete("/{id}", h.handleDeleteQuestion)
			r.Get("/{id}/results", h.handleQuestionResults)

			r.Post("/{id}/choices", h.handleCreateChoice)
			r.Get("/{id}/choices", h.handleListChoices)
			r.Delete("/{id}/choices/{choiceID}", h.handleDeleteChoice)
		})
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := chimw.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if p, ok := h.store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			h.logger.Warn("readiness check failed", "check", "database", "error", err)
			checks["database"] = "failed"
			h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
				Status: "not_ready",
				Checks: checks,
			})
			return
		}
	}
	checks["database"] = "ok"

	h.writeJSON(w, http.StatusOK, ReadyResponse{
		Status: "ready",
		Checks: checks,
	})
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) now() time.Time {
	return h.clock().UTC()
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// urlID parses a positive integer URL parameter.
func urlID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// listOptions reads limit and offset query parameters.
func listOptions(r *http.Request) store.ListOptions {
	opts := store.DefaultListOptions()

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			opts.Limit = l
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil {
			opts.Offset = o
		}
	}
	return opts.Normalize()
}

func (h *Handler) questionToResponse(q *domain.Question, choices []domain.Choice) QuestionResponse {
	return QuestionResponse{
		ID:                   q.ID,
		QuestionText:         q.Text,
		PubDate:              q.PubDate,
		WasPublishedRecently: q.WasPublishedRecently(h.now()),
		Choices:              choicesToResponse(choices),
		CreatedAt:            q.CreatedAt,
		UpdatedAt:            q.UpdatedAt,
	}
}

func (h *Handler) questionToSummary(q *domain.Question) QuestionSummary {
	return QuestionSummary{
		ID:                   q.ID,
		QuestionText:         q.Text,
		PubDate:              q.PubDate,
		WasPublishedRecently: q.WasPublishedRecently(h.now()),
		CreatedAt:            q.CreatedAt,
		UpdatedAt:            q.UpdatedAt,
	}
}

func choiceToResponse(c domain.Choice) ChoiceResponse {
	return ChoiceResponse{
		ID:         c.ID,
		QuestionID: c.QuestionID,
		ChoiceText: c.Text,
		Votes:      c.Votes,
	}
}

func choicesToResponse(choices []domain.Choice) []ChoiceResponse {
	out := make([]ChoiceResponse, 0, len(choices))
	for _, c := range choices {
		out = append(out, choiceToResponse(c))
	}
	return out
}

func resultsToResponse(q *domain.Question, res poll.Results) ResultsResponse {
	resp := ResultsResponse{
		QuestionID:   q.ID,
		QuestionText: q.Text,
		TotalVotes:   res.TotalVotes,
		Choices:      make([]ChoiceResultResponse, 0, len(res.Choices)),
	}
	for _, cr := range res.Choices {
		resp.Choices = append(resp.Choices, ChoiceResultResponse{
			ID:         cr.Choice.ID,
			ChoiceText: cr.Choice.Text,
			Votes:      cr.Choice.Votes,
			Percent:    cr.Percent,
			Leading:    cr.Leading,
		})
	}
	return resp
}
