package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

// =============================================================================
// Question Creation Tests
// =============================================================================

func TestNewQuestion_ValidInput(t *testing.T) {
	q, err := NewQuestion("What's new?", testNow)
	require.NoError(t, err)

	assert.Equal(t, "What's new?", q.Text)
	assert.Equal(t, testNow, q.PubDate)
	assert.Zero(t, q.ID)
	assert.NotZero(t, q.CreatedAt)
	assert.Equal(t, q.CreatedAt, q.UpdatedAt)
}

func TestNewQuestion_TrimsText(t *testing.T) {
	q, err := NewQuestion("  Padded?  ", testNow)
	require.NoError(t, err)
	assert.Equal(t, "Padded?", q.Text)
}

func TestNewQuestion_NormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	q, err := NewQuestion("Zoned?", testNow.In(loc))
	require.NoError(t, err)
	assert.Equal(t, time.UTC, q.PubDate.Location())
	assert.True(t, q.PubDate.Equal(testNow))
}

func TestNewQuestion_EmptyText(t *testing.T) {
	_, err := NewQuestion("   ", testNow)
	assert.ErrorIs(t, err, ErrQuestionTextRequired)
}

func TestNewQuestion_ZeroPubDate(t *testing.T) {
	_, err := NewQuestion("When?", time.Time{})
	assert.ErrorIs(t, err, ErrPubDateRequired)
}

func TestNewQuestion_PubDateOutOfRange(t *testing.T) {
	testCases := []struct {
		name    string
		pubDate time.Time
	}{
		{"five digit year", testNow.AddDate(0, 0, 3000000)},
		{"year 10000", time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"before year 1", time.Date(0, 6, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewQuestion("Far away?", tc.pubDate)
			assert.ErrorIs(t, err, ErrPubDateOutOfRange)
		})
	}
}

func TestNewQuestion_PubDateBounds(t *testing.T) {
	_, err := NewQuestion("Last moment?", time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC))
	assert.NoError(t, err)

	_, err = NewQuestion("First day?", time.Date(1, 1, 2, 0, 0, 0, 0, time.UTC))
	assert.NoError(t, err)
}

// =============================================================================
// Published Recently Tests
// =============================================================================

func TestWasPublishedRecently_FutureQuestion(t *testing.T) {
	q := Question{PubDate: testNow.Add(30 * 24 * time.Hour)}
	assert.False(t, q.WasPublishedRecently(testNow))
}

func TestWasPublishedRecently_OldQuestion(t *testing.T) {
	q := Question{PubDate: testNow.Add(-(24*time.Hour + time.Second))}
	assert.False(t, q.WasPublishedRecently(testNow))
}

func TestWasPublishedRecently_RecentQuestion(t *testing.T) {
	q := Question{PubDate: testNow.Add(-(23*time.Hour + 59*time.Minute + 59*time.Second))}
	assert.True(t, q.WasPublishedRecently(testNow))
}

func TestWasPublishedRecently_Boundaries(t *testing.T) {
	testCases := []struct {
		name    string
		pubDate time.Time
		want    bool
	}{
		{"exactly now", testNow, true},
		{"exactly one day ago", testNow.Add(-RecentWindow), true},
		{"one nanosecond in the future", testNow.Add(time.Nanosecond), false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q := Question{PubDate: tc.pubDate}
			assert.Equal(t, tc.want, q.WasPublishedRecently(testNow))
		})
	}
}

func TestIsPublished(t *testing.T) {
	assert.True(t, (&Question{PubDate: testNow.Add(-time.Hour)}).IsPublished(testNow))
	assert.True(t, (&Question{PubDate: testNow}).IsPublished(testNow))
	assert.False(t, (&Question{PubDate: testNow.Add(time.Hour)}).IsPublished(testNow))
}

// =============================================================================
// Mutation Tests
// =============================================================================

func TestRename(t *testing.T) {
	q, err := NewQuestion("Old?", testNow)
	require.NoError(t, err)

	require.NoError(t, q.Rename("New?"))
	assert.Equal(t, "New?", q.Text)

	assert.ErrorIs(t, q.Rename(""), ErrQuestionTextRequired)
	assert.Equal(t, "New?", q.Text)
}

func TestReschedule(t *testing.T) {
	q, err := NewQuestion("Later?", testNow)
	require.NoError(t, err)

	later := testNow.Add(48 * time.Hour)
	require.NoError(t, q.Reschedule(later))
	assert.Equal(t, later, q.PubDate)

	assert.ErrorIs(t, q.Reschedule(time.Time{}), ErrPubDateRequired)
	assert.ErrorIs(t, q.Reschedule(time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)), ErrPubDateOutOfRange)
	assert.Equal(t, later, q.PubDate)
}

// =============================================================================
// Text Validation Tests
// =============================================================================

func TestValidateQuestionText(t *testing.T) {
	assert.NoError(t, ValidateQuestionText("Is this fine?"))
	assert.NoError(t, ValidateQuestionText(strings.Repeat("a", MaxTextLength)))
	assert.ErrorIs(t, ValidateQuestionText(""), ErrQuestionTextRequired)
	assert.ErrorIs(t, ValidateQuestionText(strings.Repeat("a", MaxTextLength+1)), ErrQuestionTextTooLong)
}

func TestValidateQuestionText_CountsRunes(t *testing.T) {
	// 200 multi-byte runes is still within the limit.
	assert.NoError(t, ValidateQuestionText(strings.Repeat("é", MaxTextLength)))
}

func TestValidateChoiceText(t *testing.T) {
	assert.NoError(t, ValidateChoiceText("Nothing."))
	assert.ErrorIs(t, ValidateChoiceText("\t"), ErrChoiceTextRequired)
	assert.ErrorIs(t, ValidateChoiceText(strings.Repeat("b", MaxTextLength+1)), ErrChoiceTextTooLong)
}
