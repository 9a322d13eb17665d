package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/polls/internal/core/domain"
	"github.com/artpar/polls/internal/core/validation"
	"github.com/artpar/polls/internal/shell/store"
)

// =============================================================================
// Question Handlers
// =============================================================================

func (h *Handler) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req CreateQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	// Validate required fields using core validation
	if field, msg := validation.ValidateCreateQuestionFields(req.QuestionText, req.PubDate); field != "" {
		h.writeError(w, http.StatusBadRequest, msg, "validation_error")
		return
	}
	for _, c := range req.Choices {
		if field, msg := validation.ValidateCreateChoiceFields(c.ChoiceText, c.Votes); field != "" {
			h.writeError(w, http.StatusBadRequest, msg, "validation_error")
			return
		}
	}

	pubDate := h.now()
	if req.PubDate != "" {
		pubDate, _ = time.Parse(time.RFC3339, req.PubDate)
	}

	question, err := domain.NewQuestion(req.QuestionText, pubDate)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
		return
	}

	var choices []domain.Choice
	err = h.store.WithTx(r.Context(), func(tx store.Store) error {
		if err := tx.CreateQuestion(r.Context(), question); err != nil {
			return err
		}
		for _, c := range req.Choices {
			choice, err := domain.NewChoice(question.ID, c.ChoiceText)
			if err != nil {
				return err
			}
			if err := choice.WithVotes(c.Votes); err != nil {
				return err
			}
			if err := tx.CreateChoice(r.Context(), choice); err != nil {
				return err
			}
			choices = append(choices, *choice)
		}
		return nil
	})
	if err != nil {
		h.logger.Error("failed to create question", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to create question", "internal_error")
		return
	}

	h.logger.Info("question created", "question_id", question.ID, "choices", len(choices))

	h.writeJSON(w, http.StatusCreated, h.questionToResponse(question, choices))
}

func (h *Handler) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	opts := listOptions(r)

	questions, err := h.store.ListQuestions(r.Context(), opts)
	if err == nil {
		var total int
		total, err = h.store.CountQuestions(r.Context())
		if err == nil {
			h.writeJSON(w, http.StatusOK, h.listResponse(questions, total, opts))
			return
		}
	}

	h.logger.Error("failed to list questions", "error", err)
	h.writeError(w, http.StatusInternalServerError, "failed to list questions", "internal_error")
}

func (h *Handler) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	q, ok := h.adminQuestion(w, r)
	if !ok {
		return
	}

	choices, err := h.store.ListChoices(r.Context(), q.ID)
	if err != nil {
		h.logger.Error("failed to list choices", "question_id", q.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get question", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, h.questionToResponse(q, choices))
}

func (h *Handler) handleUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	q, ok := h.adminQuestion(w, r)
	if !ok {
		return
	}

	var req UpdateQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	// Apply updates
	if req.QuestionText != nil {
		if err := q.Rename(*req.QuestionText); err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
			return
		}
	}
	if req.PubDate != nil {
		pubDate, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.PubDate))
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "pub_date must be an RFC 3339 timestamp", "validation_error")
			return
		}
		if err := q.Reschedule(pubDate); err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
			return
		}
	}
	q.UpdatedAt = h.now()

	if err := h.store.UpdateQuestion(r.Context(), q); err != nil {
		if store.IsNotFound(err) {
			h.writeError(w, http.StatusNotFound, "question not found", "question_not_found")
			return
		}
		h.logger.Error("failed to update question", "question_id", q.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to update question", "internal_error")
		return
	}

	choices, err := h.store.ListChoices(r.Context(), q.ID)
	if err != nil {
		h.logger.Error("failed to list choices", "question_id", q.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to update question", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, h.questionToResponse(q, choices))
}

func (h *Handler) handleDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := urlID(r, "id")
	if !ok {
		h.writeError(w, http.StatusNotFound, "question not found", "question_not_found")
		return
	}

	if err := h.store.DeleteQuestion(r.Context(), id); err != nil {
		h.writeQuestionError(w, id, err)
		return
	}

	h.logger.Info("question deleted", "question_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleQuestionResults(w http.ResponseWriter, r *http.Request) {
	q, ok := h.adminQuestion(w, r)
	if !ok {
		return
	}
	h.writeResults(w, r, q)
}

// =============================================================================
// Choice Handlers
// =============================================================================

func (h *Handler) handleCreateChoice(w http.ResponseWriter, r *http.Request) {
	q, ok := h.adminQuestion(w, r)
	if !ok {
		return
	}

	var req CreateChoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	if field, msg := validation.ValidateCreateChoiceFields(req.ChoiceText, req.Votes); field != "" {
		h.writeError(w, http.StatusBadRequest, msg, "validation_error")
		return
	}

	choice, err := domain.NewChoice(q.ID, req.ChoiceText)
	if err == nil {
		err = choice.WithVotes(req.Votes)
	}
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
		return
	}

	if err := h.store.CreateChoice(r.Context(), choice); err != nil {
		h.logger.Error("failed to create choice", "question_id", q.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to create choice", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusCreated, choiceToResponse(*choice))
}

func (h *Handler) handleListChoices(w http.ResponseWriter, r *http.Request) {
	q, ok := h.adminQuestion(w, r)
	if !ok {
		return
	}

	choices, err := h.store.ListChoices(r.Context(), q.ID)
	if err != nil {
		h.logger.Error("failed to list choices", "question_id", q.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list choices", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, ListChoicesResponse{Choices: choicesToResponse(choices)})
}

func (h *Handler) handleDeleteChoice(w http.ResponseWriter, r *http.Request) {
	q, ok := h.adminQuestion(w, r)
	if !ok {
		return
	}

	choiceID, ok := urlID(r, "choiceID")
	if !ok {
		h.writeError(w, http.StatusNotFound, "choice not found", "choice_not_found")
		return
	}

	// The choice must belong to the question named in the path.
	choice, err := h.store.GetChoice(r.Context(), choiceID)
	if err == nil && choice.QuestionID != q.ID {
		err = store.NewStoreError("DeleteChoice", "choice", strconv.FormatInt(choiceID, 10), "choice not found for question", store.ErrNotFound)
	}
	if err == nil {
		err = h.store.DeleteChoice(r.Context(), choiceID)
	}
	if err != nil {
		if store.IsNotFound(err) {
			h.writeError(w, http.StatusNotFound, "choice not found", "choice_not_found")
			return
		}
		h.logger.Error("failed to delete choice", "choice_id", choiceID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to delete choice", "internal_error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Admin Helpers
// =============================================================================

// adminQuestion resolves {id} to any question, scheduled ones included.
func (h *Handler) adminQuestion(w http.ResponseWriter, r *http.Request) (*domain.Question, bool) {
	id, ok := urlID(r, "id")
	if !ok {
		h.writeError(w, http.StatusNotFound, "question not found", "question_not_found")
		return nil, false
	}

	q, err := h.store.GetQuestion(r.Context(), id)
	if err != nil {
		h.writeQuestionError(w, id, err)
		return nil, false
	}
	return q, true
}
