package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Choice
// =============================================================================

// Choice is one answer to a question, with its running vote count.
type Choice struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	Text       string `json:"choice_text"`
	Votes      int    `json:"votes"`
}

// NewChoice creates a choice for the given question with zero votes.
func NewChoice(questionID int64, text string) (*Choice, error) {
	if questionID <= 0 {
		return nil, ErrChoiceQuestionID
	}
	text = strings.TrimSpace(text)
	if err := ValidateChoiceText(text); err != nil {
		return nil, err
	}
	return &Choice{QuestionID: questionID, Text: text}, nil
}

// WithVotes sets the starting vote count, used when importing fixtures.
func (c *Choice) WithVotes(votes int) error {
	if votes < 0 {
		return ErrVotesNegative
	}
	c.Votes = votes
	return nil
}

// Vote adds a single vote to the choice.
func (c *Choice) Vote() {
	c.Votes++
}

// =============================================================================
// Vote
// =============================================================================

// Vote is the receipt recorded for every vote cast.
type Vote struct {
	ID         string    `json:"id"`
	QuestionID int64     `json:"question_id"`
	ChoiceID   int64     `json:"choice_id"`
	CastAt     time.Time `json:"cast_at"`
}

// NewVote creates a receipt for a vote on choice c.
func NewVote(c Choice, at time.Time) Vote {
	return Vote{
		ID:         "vote_" + uuid.New().String(),
		QuestionID: c.QuestionID,
		ChoiceID:   c.ID,
		CastAt:     at.UTC(),
	}
}
