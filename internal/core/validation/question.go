package validation

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/artpar/polls/internal/core/domain"
)

// =============================================================================
// Question Validation Functions
// =============================================================================

// ValidateCreateQuestionFields validates fields for question creation.
// pubDate may be empty, in which case the question is published immediately;
// otherwise it must be an RFC 3339 timestamp.
//
// Example:
//
//	field, msg := ValidateCreateQuestionFields("What's up?", "2024-01-02T15:04:05Z")
//	if field != "" {
//	    // Handle validation error
//	}
func ValidateCreateQuestionFields(text, pubDate string) (field, message string) {
	if field, msg := validateText("question_text", text); field != "" {
		return field, msg
	}
	if pubDate != "" {
		if _, err := time.Parse(time.RFC3339, pubDate); err != nil {
			return "pub_date", "pub_date must be an RFC 3339 timestamp"
		}
	}
	return "", ""
}

// ValidateCreateChoiceFields validates fields for choice creation.
func ValidateCreateChoiceFields(text string, votes int) (field, message string) {
	if field, msg := validateText("choice_text", text); field != "" {
		return field, msg
	}
	if votes < 0 {
		return "votes", "votes cannot be negative"
	}
	return "", ""
}

func validateText(field, text string) (string, string) {
	if strings.TrimSpace(text) == "" {
		return field, field + " is required"
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) > domain.MaxTextLength {
		return field, field + " must be at most 200 characters"
	}
	return "", ""
}

// =============================================================================
// Visibility Rules
// =============================================================================

// CanShowQuestion checks if a question is visible on the public pages.
// Questions scheduled for the future are hidden as if they did not exist.
func CanShowQuestion(q domain.Question, now time.Time) bool {
	return q.IsPublished(now)
}

// CanVote checks if a question accepts votes right now.
// Returns whether voting is allowed and a reason if not.
//
// Example:
//
//	allowed, reason := CanVote(question, len(choices), time.Now())
//	if !allowed {
//	    // Return 409 Conflict with reason
//	}
func CanVote(q domain.Question, choiceCount int, now time.Time) (allowed bool, reason string) {
	if !q.IsPublished(now) {
		return false, "question is not published"
	}
	if choiceCount == 0 {
		return false, "question has no choices"
	}
	return true, ""
}
