package poll

import (
	"errors"

	"github.com/artpar/polls/internal/core/domain"
)

var (
	// ErrChoiceNotSelected is returned when a vote names no choice.
	ErrChoiceNotSelected = errors.New("no choice selected")

	// ErrChoiceNotFound is returned when a vote names a choice that does
	// not belong to the question.
	ErrChoiceNotFound = errors.New("choice does not belong to question")
)

// =============================================================================
// Results
// =============================================================================

// ChoiceResult is a single choice with its share of the total vote.
type ChoiceResult struct {
	Choice  domain.Choice
	Percent float64
	Leading bool
}

// Results is the tally for one question.
type Results struct {
	Choices    []ChoiceResult
	TotalVotes int
}

// Leaders returns the choices holding the highest vote count. It is empty
// when nobody has voted yet.
func (r Results) Leaders() []domain.Choice {
	var out []domain.Choice
	for _, c := range r.Choices {
		if c.Leading {
			out = append(out, c.Choice)
		}
	}
	return out
}

// Tally counts the votes across choices. Choice order is preserved.
// Percentages are 0 when no votes have been cast.
func Tally(choices []domain.Choice) Results {
	res := Results{Choices: make([]ChoiceResult, 0, len(choices))}

	maxVotes := 0
	for _, c := range choices {
		res.TotalVotes += c.Votes
		if c.Votes > maxVotes {
			maxVotes = c.Votes
		}
	}

	for _, c := range choices {
		cr := ChoiceResult{Choice: c}
		if res.TotalVotes > 0 {
			cr.Percent = float64(c.Votes) * 100 / float64(res.TotalVotes)
			cr.Leading = c.Votes == maxVotes
		}
		res.Choices = append(res.Choices, cr)
	}

	return res
}

// =============================================================================
// Voting
// =============================================================================

// SelectChoice finds the choice with the given ID among a question's
// choices. A zero ID means the voter did not pick anything.
func SelectChoice(choices []domain.Choice, choiceID int64) (domain.Choice, error) {
	if choiceID <= 0 {
		return domain.Choice{}, ErrChoiceNotSelected
	}
	for _, c := range choices {
		if c.ID == choiceID {
			return c, nil
		}
	}
	return domain.Choice{}, ErrChoiceNotFound
}
