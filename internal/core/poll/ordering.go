package poll

import (
	"sort"
	"time"

	"github.com/artpar/polls/internal/core/domain"
)

// DefaultIndexSize is how many questions the index page shows.
const DefaultIndexSize = 5

// =============================================================================
// Question Ordering Functions
// =============================================================================

// LatestPublished returns at most limit questions whose publication date is
// not after now, newest first. Questions sharing a publication date are
// ordered by descending ID so later inserts win ties.
//
// A limit of zero or less falls back to DefaultIndexSize. The input slice is
// not modified.
//
// Example:
//
//	// past (-30d), future (+30d), recent (-5d)
//	LatestPublished(qs, now, 5)
//	// Result: [recent, past]
func LatestPublished(questions []domain.Question, now time.Time, limit int) []domain.Question {
	if limit <= 0 {
		limit = DefaultIndexSize
	}

	published := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		if q.IsPublished(now) {
			published = append(published, q)
		}
	}

	SortNewestFirst(published)

	if len(published) > limit {
		published = published[:limit]
	}
	return published
}

// SortNewestFirst orders questions by publication date descending, then ID
// descending.
func SortNewestFirst(questions []domain.Question) {
	sort.SliceStable(questions, func(i, j int) bool {
		a, b := questions[i], questions[j]
		if !a.PubDate.Equal(b.PubDate) {
			return a.PubDate.After(b.PubDate)
		}
		return a.ID > b.ID
	})
}
