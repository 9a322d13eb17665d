package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/artpar/polls/internal/core/domain"
	"github.com/artpar/polls/internal/core/poll"
	"github.com/artpar/polls/internal/shell/metrics"
	"github.com/artpar/polls/internal/shell/store"
)

// =============================================================================
// Public Poll Handlers
// =============================================================================

func (h *Handler) handleListPolls(w http.ResponseWriter, r *http.Request) {
	opts := listOptions(r)
	now := h.now()

	questions, err := h.store.ListPublishedQuestions(r.Context(), now, opts)
	if err == nil {
		var total int
		total, err = h.store.CountPublishedQuestions(r.Context(), now)
		if err == nil {
			h.writeJSON(w, http.StatusOK, h.listResponse(questions, total, opts))
			return
		}
	}

	h.logger.Error("failed to list polls", "error", err)
	h.writeError(w, http.StatusInternalServerError, "failed to list polls", "internal_error")
}

func (h *Handler) handleGetPoll(w http.ResponseWriter, r *http.Request) {
	q, ok := h.apiPublishedQuestion(w, r)
	if !ok {
		return
	}

	choices, err := h.store.ListChoices(r.Context(), q.ID)
	if err != nil {
		h.logger.Error("failed to list choices", "question_id", q.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get poll", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, h.questionToResponse(q, choices))
}

func (h *Handler) handlePollResults(w http.ResponseWriter, r *http.Request) {
	q, ok := h.apiPublishedQuestion(w, r)
	if !ok {
		return
	}
	h.writeResults(w, r, q)
}

func (h *Handler) handleVote(w http.ResponseWriter, r *http.Request) {
	q, ok := h.apiPublishedQuestion(w, r)
	if !ok {
		return
	}

	// An empty body selects nothing, like a form posted without a choice.
	var req VoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	vote, choice, err := h.castVote(r.Context(), q, req.ChoiceID)
	if err != nil {
		switch {
		case errors.Is(err, poll.ErrChoiceNotSelected):
			h.writeError(w, http.StatusBadRequest, "choice_id is required", "choice_not_selected")
		case errors.Is(err, poll.ErrChoiceNotFound):
			h.writeError(w, http.StatusNotFound, "choice not found", "choice_not_found")
		case errors.Is(err, errVotingClosed):
			h.writeError(w, http.StatusConflict, err.Error(), "question_closed")
		default:
			h.logger.Error("failed to record vote", "question_id", q.ID, "choice_id", req.ChoiceID, "error", err)
			h.writeError(w, http.StatusInternalServerError, "failed to record vote", "internal_error")
		}
		return
	}

	h.metrics.VoteRecorded(metrics.SourceAPI)
	h.logger.Info("vote recorded", "question_id", q.ID, "choice_id", vote.ChoiceID, "vote_id", vote.ID)

	h.writeJSON(w, http.StatusCreated, VoteResponse{
		ID:         vote.ID,
		QuestionID: vote.QuestionID,
		ChoiceID:   vote.ChoiceID,
		CastAt:     vote.CastAt,
		Choice:     choiceToResponse(choice),
	})
}

// =============================================================================
// Shared JSON Helpers
// =============================================================================

// apiPublishedQuestion resolves {id} to a published question or writes a
// 404 error.
func (h *Handler) apiPublishedQuestion(w http.ResponseWriter, r *http.Request) (*domain.Question, bool) {
	id, ok := urlID(r, "id")
	if !ok {
		h.writeError(w, http.StatusNotFound, "question not found", "question_not_found")
		return nil, false
	}

	q, err := h.publishedQuestion(r.Context(), id)
	if err != nil {
		h.writeQuestionError(w, id, err)
		return nil, false
	}
	return q, true
}

func (h *Handler) writeQuestionError(w http.ResponseWriter, id int64, err error) {
	if store.IsNotFound(err) {
		h.writeError(w, http.StatusNotFound, "question not found", "question_not_found")
		return
	}
	h.logger.Error("failed to get question", "question_id", id, "error", err)
	h.writeError(w, http.StatusInternalServerError, "failed to get question", "internal_error")
}

func (h *Handler) writeResults(w http.ResponseWriter, r *http.Request, q *domain.Question) {
	choices, err := h.store.ListChoices(r.Context(), q.ID)
	if err != nil {
		h.logger.Error("failed to list choices", "question_id", q.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get results", "internal_error")
		return
	}
	h.writeJSON(w, http.StatusOK, resultsToResponse(q, poll.Tally(choices)))
}

func (h *Handler) listResponse(questions []domain.Question, total int, opts store.ListOptions) ListQuestionsResponse {
	resp := ListQuestionsResponse{
		Questions: make([]QuestionSummary, 0, len(questions)),
		Total:     total,
		Limit:     opts.Limit,
		Offset:    opts.Offset,
	}
	for i := range questions {
		resp.Questions = append(resp.Questions, h.questionToSummary(&questions[i]))
	}
	return resp
}
