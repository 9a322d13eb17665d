package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/artpar/polls/internal/core/domain"
	"github.com/artpar/polls/internal/core/poll"
	"github.com/artpar/polls/internal/shell/metrics"
	"github.com/artpar/polls/internal/shell/store"
)

// msgNoChoice is shown when a vote form is submitted without a valid choice.
const msgNoChoice = "You didn't select a choice."

// =============================================================================
// Page Data
// =============================================================================

type indexPage struct {
	Questions []domain.Question
}

type detailPage struct {
	Question     *domain.Question
	Choices      []domain.Choice
	ErrorMessage string
}

type resultsPage struct {
	Question *domain.Question
	Results  poll.Results
}

// =============================================================================
// Page Handlers
// =============================================================================

func (h *Handler) handleIndexPage(w http.ResponseWriter, r *http.Request) {
	now := h.now()

	questions, err := h.store.ListPublishedQuestions(r.Context(), now, store.ListOptions{Limit: h.indexSize})
	if err != nil {
		h.logger.Error("failed to list questions", "error", err)
		h.renderError(w, http.StatusInternalServerError)
		return
	}

	h.render(w, http.StatusOK, pageIndex, indexPage{
		Questions: poll.LatestPublished(questions, now, h.indexSize),
	})
}

func (h *Handler) handleDetailPage(w http.ResponseWriter, r *http.Request) {
	q, ok := h.pageQuestion(w, r)
	if !ok {
		return
	}
	h.renderDetail(w, r, q, "")
}

func (h *Handler) handleResultsPage(w http.ResponseWriter, r *http.Request) {
	q, ok := h.pageQuestion(w, r)
	if !ok {
		return
	}

	choices, err := h.store.ListChoices(r.Context(), q.ID)
	if err != nil {
		h.logger.Error("failed to list choices", "question_id", q.ID, "error", err)
		h.renderError(w, http.StatusInternalServerError)
		return
	}

	h.render(w, http.StatusOK, pageResults, resultsPage{
		Question: q,
		Results:  poll.Tally(choices),
	})
}

func (h *Handler) handleVoteForm(w http.ResponseWriter, r *http.Request) {
	q, ok := h.pageQuestion(w, r)
	if !ok {
		return
	}

	// A missing or malformed field counts as no selection.
	choiceID, _ := strconv.ParseInt(r.PostFormValue("choice"), 10, 64)

	vote, _, err := h.castVote(r.Context(), q, choiceID)
	if err != nil {
		if isVoteRejection(err) {
			h.renderDetail(w, r, q, msgNoChoice)
			return
		}
		h.logger.Error("failed to record vote", "question_id", q.ID, "choice_id", choiceID, "error", err)
		h.renderError(w, http.StatusInternalServerError)
		return
	}

	h.metrics.VoteRecorded(metrics.SourceForm)
	h.logger.Info("vote recorded", "question_id", q.ID, "choice_id", vote.ChoiceID, "vote_id", vote.ID)

	http.Redirect(w, r, fmt.Sprintf("/polls/%d/results/", q.ID), http.StatusSeeOther)
}

// =============================================================================
// Page Helpers
// =============================================================================

// pageQuestion resolves the {id} parameter to a published question,
// rendering the 404 page when there is none.
func (h *Handler) pageQuestion(w http.ResponseWriter, r *http.Request) (*domain.Question, bool) {
	id, ok := urlID(r, "id")
	if !ok {
		h.renderError(w, http.StatusNotFound)
		return nil, false
	}

	q, err := h.publishedQuestion(r.Context(), id)
	if err != nil {
		if store.IsNotFound(err) {
			h.renderError(w, http.StatusNotFound)
			return nil, false
		}
		h.logger.Error("failed to get question", "question_id", id, "error", err)
		h.renderError(w, http.StatusInternalServerError)
		return nil, false
	}
	return q, true
}

func (h *Handler) renderDetail(w http.ResponseWriter, r *http.Request, q *domain.Question, errMsg string) {
	choices, err := h.store.ListChoices(r.Context(), q.ID)
	if err != nil {
		h.logger.Error("failed to list choices", "question_id", q.ID, "error", err)
		h.renderError(w, http.StatusInternalServerError)
		return
	}

	h.render(w, http.StatusOK, pageDetail, detailPage{
		Question:     q,
		Choices:      choices,
		ErrorMessage: errMsg,
	})
}
