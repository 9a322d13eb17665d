// Package fixtures loads sample polls from YAML into a store.
//
// A fixture document lists questions with either an absolute publication
// date or an offset in days from the load time (negative for the past,
// positive for polls that have yet to be published), each with its choices
// and starting vote counts:
//
//	questions:
//	  - text: "What's up?"
//	    days: -1
//	    choices:
//	      - text: Not much
//	        votes: 3
//	      - text: The sky
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/artpar/polls/internal/core/domain"
	"github.com/artpar/polls/internal/shell/store"
	"gopkg.in/yaml.v3"
)

var (
	// ErrEmptyInput is returned when the fixture document is blank.
	ErrEmptyInput = errors.New("fixture document is empty")

	// ErrInvalidYAML is returned when the document cannot be decoded.
	ErrInvalidYAML = errors.New("fixture document is not valid YAML")
)

// Document is a decoded fixture file.
type Document struct {
	Questions []Question `yaml:"questions"`
}

// Question is one poll in a fixture document.
type Question struct {
	Text    string     `yaml:"text"`
	Days    int        `yaml:"days"`
	PubDate *time.Time `yaml:"pub_date,omitempty"`
	Choices []Choice   `yaml:"choices"`
}

// Choice is one answer in a fixture document.
type Choice struct {
	Text  string `yaml:"text"`
	Votes int    `yaml:"votes"`
}

// Summary reports what Apply created.
type Summary struct {
	Questions []domain.Question
	Choices   int
}

// FixtureError points at the entry that failed validation.
type FixtureError struct {
	Question int // zero-based index into Document.Questions
	Choice   int // zero-based index into Question.Choices, -1 for the question itself
	Err      error
}

func (e *FixtureError) Error() string {
	if e.Choice < 0 {
		return fmt.Sprintf("question %d: %v", e.Question+1, e.Err)
	}
	return fmt.Sprintf("question %d choice %d: %v", e.Question+1, e.Choice+1, e.Err)
}

func (e *FixtureError) Unwrap() error {
	return e.Err
}

// Parse decodes a fixture document.
func Parse(data []byte) (*Document, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, ErrEmptyInput
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return &doc, nil
}

// Read decodes a fixture document from r.
func Read(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return Parse(data)
}

// Build converts the document into domain values relative to now without
// touching storage. Choice QuestionIDs are left zero.
func (d *Document) Build(now time.Time) ([]domain.Question, [][]domain.Choice, error) {
	questions := make([]domain.Question, 0, len(d.Questions))
	choices := make([][]domain.Choice, 0, len(d.Questions))

	for i, fq := range d.Questions {
		pubDate := now.AddDate(0, 0, fq.Days)
		if fq.PubDate != nil {
			pubDate = *fq.PubDate
		}

		q, err := domain.NewQuestion(fq.Text, pubDate)
		if err != nil {
			return nil, nil, &FixtureError{Question: i, Choice: -1, Err: err}
		}

		cs := make([]domain.Choice, 0, len(fq.Choices))
		for j, fc := range fq.Choices {
			if err := domain.ValidateChoiceText(fc.Text); err != nil {
				return nil, nil, &FixtureError{Question: i, Choice: j, Err: err}
			}
			c := domain.Choice{Text: strings.TrimSpace(fc.Text)}
			if err := c.WithVotes(fc.Votes); err != nil {
				return nil, nil, &FixtureError{Question: i, Choice: j, Err: err}
			}
			cs = append(cs, c)
		}

		questions = append(questions, *q)
		choices = append(choices, cs)
	}

	return questions, choices, nil
}

// Apply validates the document and writes it to s in a single transaction.
// Nothing is written if any entry is invalid.
func (d *Document) Apply(ctx context.Context, s store.Store, now time.Time) (Summary, error) {
	questions, choices, err := d.Build(now)
	if err != nil {
		return Summary{}, err
	}

	var summary Summary
	err = s.WithTx(ctx, func(tx store.Store) error {
		for i := range questions {
			q := questions[i]
			if err := tx.CreateQuestion(ctx, &q); err != nil {
				return err
			}
			for _, c := range choices[i] {
				c.QuestionID = q.ID
				if err := tx.CreateChoice(ctx, &c); err != nil {
					return err
				}
				summary.Choices++
			}
			summary.Questions = append(summary.Questions, q)
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	return summary, nil
}
