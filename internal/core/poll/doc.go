// Package poll provides pure functions for poll listing and result tallying.
//
// All functions are pure (no I/O, no side effects) and operate on the types
// in internal/core/domain.
//
// # Functions
//
//   - Ordering: Pick the newest published questions (LatestPublished)
//   - Results: Count votes and compute shares (Tally)
//   - Voting: Resolve a submitted choice (SelectChoice)
//
// # Usage
//
// The HTTP shell (internal/shell/api) loads rows from the store and hands
// them to these functions before rendering.
//
//	latest := poll.LatestPublished(questions, time.Now(), poll.DefaultIndexSize)
//	results := poll.Tally(choices)
package poll
