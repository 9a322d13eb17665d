package api

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/artpar/polls/internal/core/domain"
	"github.com/artpar/polls/internal/core/poll"
	"github.com/artpar/polls/internal/core/validation"
	"github.com/artpar/polls/internal/shell/store"
)

// errVotingClosed is returned when a question cannot take votes.
var errVotingClosed = errors.New("voting closed")

// publishedQuestion loads a question visible at the current time.
// Scheduled questions are reported as not found.
func (h *Handler) publishedQuestion(ctx context.Context, id int64) (*domain.Question, error) {
	q, err := h.store.GetQuestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if !validation.CanShowQuestion(*q, h.now()) {
		return nil, store.NewStoreError("GetQuestion", "question", strconv.FormatInt(id, 10), "not published", store.ErrNotFound)
	}
	return q, nil
}

// castVote records one vote for choiceID on q and returns the receipt
// together with the updated choice.
func (h *Handler) castVote(ctx context.Context, q *domain.Question, choiceID int64) (domain.Vote, domain.Choice, error) {
	now := h.now()

	choices, err := h.store.ListChoices(ctx, q.ID)
	if err != nil {
		return domain.Vote{}, domain.Choice{}, err
	}

	if allowed, reason := validation.CanVote(*q, len(choices), now); !allowed {
		return domain.Vote{}, domain.Choice{}, fmt.Errorf("%w: %s", errVotingClosed, reason)
	}

	choice, err := poll.SelectChoice(choices, choiceID)
	if err != nil {
		return domain.Vote{}, domain.Choice{}, err
	}

	vote := domain.NewVote(choice, now)
	if err := h.store.RecordVote(ctx, vote); err != nil {
		if store.IsNotFound(err) {
			// Deleted between listing and voting.
			return domain.Vote{}, domain.Choice{}, poll.ErrChoiceNotFound
		}
		return domain.Vote{}, domain.Choice{}, err
	}
	choice.Vote()

	return vote, choice, nil
}

// isVoteRejection reports whether err is the voter's fault rather than a
// storage failure.
func isVoteRejection(err error) bool {
	return errors.Is(err, poll.ErrChoiceNotSelected) ||
		errors.Is(err, poll.ErrChoiceNotFound) ||
		errors.Is(err, errVotingClosed)
}
