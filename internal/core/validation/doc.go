// Package validation provides pure validation functions for API handlers.
//
// All functions are pure (no I/O, no side effects). Field checks return the
// offending field name and a message, or two empty strings when the input
// is acceptable.
//
// # Functions
//
//   - ValidateCreateQuestionFields: Validate fields for question creation
//   - ValidateCreateChoiceFields: Validate fields for choice creation
//   - CanVote: Check if a question accepts votes
//   - CanShowQuestion: Check if a question is visible to voters
//
// # Usage
//
//	if field, msg := validation.ValidateCreateQuestionFields(text, pubDate); field != "" {
//	    // Return 400 Bad Request with msg
//	}
package validation
