package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/artpar/polls/internal/core/domain"
	"github.com/artpar/polls/internal/shell/api/middleware"
	"github.com/artpar/polls/internal/shell/metrics"
	"github.com/artpar/polls/internal/shell/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	store   *store.SQLiteStore
	metrics *metrics.Metrics
	handler http.Handler
}

type choiceSpec struct {
	text  string
	votes int
}

func newTestEnv(t *testing.T, mutators ...func(*APIConfig)) *testEnv {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	m := metrics.New()
	cfg := APIConfig{
		Store:   s,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics: m,
		Clock:   func() time.Time { return testNow },
	}
	for _, mutate := range mutators {
		mutate(&cfg)
	}

	h, err := SetupAPI(cfg)
	require.NoError(t, err)

	return &testEnv{store: s, metrics: m, handler: h}
}

// createQuestion publishes a question days away from testNow (negative for
// the past).
func (e *testEnv) createQuestion(t *testing.T, text string, days int) *domain.Question {
	t.Helper()
	q, err := domain.NewQuestion(text, testNow.AddDate(0, 0, days))
	require.NoError(t, err)
	require.NoError(t, e.store.CreateQuestion(context.Background(), q))
	return q
}

func (e *testEnv) createChoices(t *testing.T, q *domain.Question, specs ...choiceSpec) []domain.Choice {
	t.Helper()
	out := make([]domain.Choice, 0, len(specs))
	for _, spec := range specs {
		c, err := domain.NewChoice(q.ID, spec.text)
		require.NoError(t, err)
		require.NoError(t, c.WithVotes(spec.votes))
		require.NoError(t, e.store.CreateChoice(context.Background(), c))
		out = append(out, *c)
	}
	return out
}

func (e *testEnv) do(method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.do(http.MethodGet, path, nil, nil)
}

func (e *testEnv) postJSON(path string, v any, headers map[string]string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(v)
	if headers == nil {
		headers = map[string]string{}
	}
	headers["Content-Type"] = "application/json"
	return e.do(http.MethodPost, path, bytes.NewReader(body), headers)
}

func (e *testEnv) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	return e.do(http.MethodPost, path, strings.NewReader(form.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	})
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func pathf(format string, id int64) string {
	return strings.Replace(format, "{id}", itoa(id), 1)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func mustJSON(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

// =============================================================================
// Health Tests
// =============================================================================

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "healthy", decode[HealthResponse](t, rec).Status)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReady(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/ready")
	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ReadyResponse](t, rec)
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, "ok", resp.Checks["database"])
}

func TestReady_StoreClosed(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.Close())

	rec := env.get("/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decode[ReadyResponse](t, rec)
	assert.Equal(t, "not_ready", resp.Status)
	assert.Equal(t, "failed", resp.Checks["database"])
}

func TestRootRedirectsToIndex(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/polls/", rec.Header().Get("Location"))
}

func TestOpenAPI(t *testing.T) {
	env := newTestEnv(t)

	rec := env.get("/api/v1/openapi.json")
	require.Equal(t, http.StatusOK, rec.Code)

	doc := decode[map[string]any](t, rec)
	paths, ok := doc["paths"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, paths, "/api/v1/polls/{id}/votes")
	assert.Contains(t, paths, "/api/v1/questions/{id}/choices/{choiceID}")
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	q := env.createQuestion(t, "Counted?", -1)
	choices := env.createChoices(t, q, choiceSpec{text: "Yes"})

	rec := env.postJSON(pathf("/api/v1/polls/{id}/votes", q.ID), VoteRequest{ChoiceID: choices[0].ID}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `polls_votes_total{source="api"} 1`)
	assert.Contains(t, body, "polls_http_requests_total")
}

func TestMetricsDisabled(t *testing.T) {
	env := newTestEnv(t, func(cfg *APIConfig) { cfg.Metrics = nil })

	assert.Equal(t, http.StatusNotFound, env.get("/metrics").Code)
	assert.Equal(t, http.StatusOK, env.get("/health").Code)
}

// =============================================================================
// Public Poll API Tests
// =============================================================================

func TestListPolls_OnlyPublishedNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	env.createQuestion(t, "Old", -30)
	env.createQuestion(t, "Recent", -1)
	env.createQuestion(t, "Scheduled", 10)

	rec := env.get("/api/v1/polls")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[ListQuestionsResponse](t, rec)
	require.Len(t, resp.Questions, 2)
	assert.Equal(t, "Recent", resp.Questions[0].QuestionText)
	assert.Equal(t, "Old", resp.Questions[1].QuestionText)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, 100, resp.Limit)
}

func TestListPolls_Pagination(t *testing.T) {
	env := newTestEnv(t)
	for i := 1; i <= 3; i++ {
		env.createQuestion(t, "Q"+itoa(int64(i)), -i)
	}

	resp := decode[ListQuestionsResponse](t, env.get("/api/v1/polls?limit=1&offset=1"))
	require.Len(t, resp.Questions, 1)
	assert.Equal(t, "Q2", resp.Questions[0].QuestionText)
	assert.Equal(t, 3, resp.Total)
	assert.Equal(t, 1, resp.Limit)
	assert.Equal(t, 1, resp.Offset)
}

func TestGetPoll(t *testing.T) {
	env := newTestEnv(t)
	q := env.createQuestion(t, "Lunch?", -1)
	env.createChoices(t, q, choiceSpec{text: "Soup"}, choiceSpec{text: "Salad", votes: 2})

	rec := env.get(pathf("/api/v1/polls/{id}", q.ID))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[QuestionResponse](t, rec)
	assert.Equal(t, q.ID, resp.ID)
	assert.Equal(t, "Lunch?", resp.QuestionText)
	assert.True(t, resp.WasPublishedRecently)
	require.Len(t, resp.Choices, 2)
	assert.Equal(t, "Salad", resp.Choices[1].ChoiceText)
	assert.Equal(t, 2, resp.Choices[1].Votes)
}

func TestGetPoll_WithoutChoices(t *testing.T) {
	env := newTestEnv(t)
	q := env.createQuestion(t, "Anyone?", -1)

	rec := env.get(pathf("/api/v1/polls/{id}", q.ID))
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.JSONEq(t, `[]`, string(raw["choices"]))
}

func TestGetPoll_HiddenOrMissing(t *testing.T) {
	env := newTestEnv(t)
	future := env.createQuestion(t, "Not yet", 5)

	for _, path := range []string{
		pathf("/api/v1/polls/{id}", future.ID),
		pathf("/api/v1/polls/{id}/results", future.ID),
		"/api/v1/polls/9999",
		"/api/v1/polls/abc",
	} {
		rec := env.get(path)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "question_not_found", decode[ErrorResponse](t, rec).Code, path)
	}
}

func TestPollResults(t *testing.T) {
	env := newTestEnv(t)
	q := env.createQuestion(t, "What is going on?", -5)
	env.createChoices(t, q, choiceSpec{"Nothing.", 20}, choiceSpec{"Nothing but in green.", 30})

	rec := env.get(pathf("/api/v1/polls/{id}/results", q.ID))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[ResultsResponse](t, rec)
	assert.Equal(t, 50, resp.TotalVotes)
	require.Len(t, resp.Choices, 2)
	assert.InDelta(t, 40.0, resp.Choices[0].Percent, 0.001)
	assert.InDelta(t, 60.0, resp.Choices[1].Percent, 0.001)
	assert.False(t, resp.Choices[0].Leading)
	assert.True(t, resp.Choices[1].Leading)
}

func TestVote_API(t *testing.T) {
	env := newTestEnv(t)
	q := env.createQuestion(t, "Tabs or spaces?", -1)
	choices := env.createChoices(t, q, choiceSpec{text: "Tabs", votes: 4}, choiceSpec{text: "Spaces"})

	rec := env.postJSON(pathf("/api/v1/polls/{id}/votes", q.ID), VoteRequest{ChoiceID: choices[0].ID}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[VoteResponse](t, rec)
	assert.True(t, strings.HasPrefix(resp.ID, "vote_"))
	assert.Equal(t, q.ID, resp.QuestionID)
	assert.Equal(t, choices[0].ID, resp.ChoiceID)
	assert.Equal(t, 5, resp.Choice.Votes)
	assert.True(t, resp.CastAt.Equal(testNow))

	stored, err := env.store.GetChoice(context.Background(), choices[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Votes)

	count, err := env.store.CountVotes(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestVote_APIRejections(t *testing.T) {
	env := newTestEnv(t)
	q := env.createQuestion(t, "Pick one", -1)
	env.createChoices(t, q, choiceSpec{text: "A"})
	other := env.createQuestion(t, "Other", -1)
	otherChoices := env.createChoices(t, other, choiceSpec{text: "B"})
	empty := env.createQuestion(t, "Empty", -1)

	testCases := []struct {
		name   string
		id     int64
		body   any
		status int
		code   string
	}{
		{"no choice", q.ID, VoteRequest{}, http.StatusBadRequest, "choice_not_selected"},
		{"choice of another question", q.ID, VoteRequest{ChoiceID: otherChoices[0].ID}, http.StatusNotFound, "choice_not_found"},
		{"unknown choice", q.ID, VoteRequest{ChoiceID: 9999}, http.StatusNotFound, "choice_not_found"},
		{"question without choices", empty.ID, VoteRequest{ChoiceID: 1}, http.StatusConflict, "question_closed"},
		{"invalid JSON", q.ID, "not an object", http.StatusBadRequest, "validation_error"},
		{"empty body", q.ID, nil, http.StatusBadRequest, "choice_not_selected"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := pathf("/api/v1/polls/{id}/votes", tc.id)
			var rec *httptest.ResponseRecorder
			if tc.body == nil {
				rec = env.do(http.MethodPost, path, http.NoBody, map[string]string{"Content-Type": "application/json"})
			} else {
				rec = env.postJSON(path, tc.body, nil)
			}
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, decode[ErrorResponse](t, rec).Code)
		})
	}

	count, err := env.store.CountVotes(context.Background(), other.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestVote_APIFutureQuestion(t *testing.T) {
	env := newTestEnv(t)
	q := env.createQuestion(t, "Later", 1)
	choices := env.createChoices(t, q, choiceSpec{text: "A"})

	rec := env.postJSON(pathf("/api/v1/polls/{id}/votes", q.ID), VoteRequest{ChoiceID: choices[0].ID}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// Admin API Tests
// =============================================================================

func TestCreateQuestion(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postJSON("/api/v1/questions", CreateQuestionRequest{
		QuestionText: "  What's new?  ",
		Choices: []CreateChoiceRequest{
			{ChoiceText: "Not much"},
			{ChoiceText: "The sky", Votes: 3},
		},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[QuestionResponse](t, rec)
	assert.NotZero(t, resp.ID)
	assert.Equal(t, "What's new?", resp.QuestionText)
	assert.True(t, resp.PubDate.Equal(testNow))
	require.Len(t, resp.Choices, 2)
	assert.Equal(t, 3, resp.Choices[1].Votes)

	choices, err := env.store.ListChoices(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Len(t, choices, 2)
}

func TestCreateQuestion_Scheduled(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postJSON("/api/v1/questions", CreateQuestionRequest{
		QuestionText: "Next week?",
		PubDate:      testNow.AddDate(0, 0, 7).Format(time.RFC3339),
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decode[QuestionResponse](t, rec)
	assert.False(t, resp.WasPublishedRecently)

	// Hidden from the public list, visible to admins.
	assert.Empty(t, decode[ListQuestionsResponse](t, env.get("/api/v1/polls")).Questions)
	admin := decode[ListQuestionsResponse](t, env.get("/api/v1/questions"))
	require.Len(t, admin.Questions, 1)
	assert.Equal(t, 1, admin.Total)
	assert.Equal(t, "Next week?", admin.Questions[0].QuestionText)
}

func TestCreateQuestion_Validation(t *testing.T) {
	env := newTestEnv(t)

	testCases := []struct {
		name string
		req  CreateQuestionRequest
		msg  string
	}{
		{"missing text", CreateQuestionRequest{}, "question_text is required"},
		{"text too long", CreateQuestionRequest{QuestionText: strings.Repeat("x", domain.MaxTextLength+1)}, "question_text must be at most 200 characters"},
		{"bad pub_date", CreateQuestionRequest{QuestionText: "When?", PubDate: "tomorrow"}, "pub_date must be an RFC 3339 timestamp"},
		{"pub_date past year 9999", CreateQuestionRequest{QuestionText: "When?", PubDate: "9999-12-31T23:00:00-05:00"}, domain.ErrPubDateOutOfRange.Error()},
		{"bad choice", CreateQuestionRequest{QuestionText: "Which?", Choices: []CreateChoiceRequest{{ChoiceText: ""}}}, "choice_text is required"},
		{"negative votes", CreateQuestionRequest{QuestionText: "Which?", Choices: []CreateChoiceRequest{{ChoiceText: "A", Votes: -1}}}, "votes cannot be negative"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.postJSON("/api/v1/questions", tc.req, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, "validation_error", resp.Code)
			assert.Equal(t, tc.msg, resp.Error)
		})
	}

	questions, err := env.store.ListQuestions(context.Background(), store.DefaultListOptions())
	require.NoError(t, err)
	assert.Empty(t, questions)
}

func TestGetQuestion_IncludesScheduled(t *testing.T) {
	env := newTestEnv(t)
	q := env.createQuestion(t, "Soon", 3)

	rec := env.get(pathf("/api/v1/questions/{id}", q.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[QuestionResponse](t, rec)
	assert.Equal(t, "Soon", resp.QuestionText)
	assert.False(t, resp.WasPublishedRecently)

	assert.Equal(t, http.StatusNotFound, env.get("/api/v1/questions/424242").Code)
}

func TestUpdateQuestion(t *testing.T) {
	env := newTestEnv(t)
	q := env.createQuestion(t, "Draft", 3)

	text := "Final"
	pub := testNow.Add(-time.Hour).Format(time.RFC3339)
	body := mustJSON(UpdateQuestionRequest{QuestionText: &text, PubDate: &pub})
	rec := env.do(http.MethodPut, pathf("/api/v1/questions/{id}", q.ID), bytes.NewReader(body), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[QuestionResponse](t, rec)
	assert.Equal(t, "Final", resp.QuestionText)
	assert.True(t, resp.WasPublishedRecently)
	assert.NotNil(t, resp.Choices)

	// Now published, so the public API sees it.
	assert.Equal(t, http.StatusOK, env.get(pathf("/api/v1/polls/{id}", q.ID)).Code)
}

func TestUpdateQuestion_Invalid(t *testing.T) {
	env := newTestEnv(t)
	q := env.createQuestion(t, "Draft", 3)

	empty := ""
	rec := env.do(http.MethodPut, pathf("/api/v1/questions/{id}", q.ID), bytes.NewReader(mustJSON(UpdateQuestionRequest{QuestionText: &empty})), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	bad := "next tuesday"
	rec = env.do(http.MethodPut, pathf("/api/v1/questions/{id}", q.ID), bytes.NewReader(mustJSON(UpdateQuestionRequest{PubDate: &bad})), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	stored, err := env.store.GetQuestion(context.Background(), q.ID)
	require.NoError(t, err)
	assert.Equal(t, "Draft", stored.Text)
}

func TestDeleteQuestion(t *testing.T) {
	env := newTestEnv(t)
	q := env.createQuestion(t, "Doomed", -1)
	env.createChoices(t, q, choiceSpec{text: "A"})

	rec := env.do(http.MethodDelete, pathf("/api/v1/questions/{id}", q.ID), nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodDelete, pathf("/api/v1/questions/{id}", q.ID), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "question_not_found", decode[ErrorResponse](t, rec).Code)
}

func TestChoices_CreateListDelete(t *testing.T) {
	env := newTestEnv(t)
	q := env.createQuestion(t, "Colors?", -1)

	rec := env.postJSON(pathf("/api/v1/questions/{id}/choices", q.ID), CreateChoiceRequest{ChoiceText: "Red", Votes: 2}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[ChoiceResponse](t, rec)
	assert.Equal(t, q.ID, created.QuestionID)
	assert.Equal(t, 2, created.Votes)

	rec = env.postJSON(pathf("/api/v1/questions/{id}/choices", q.ID), CreateChoiceRequest{ChoiceText: ""}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	list := decode[ListChoicesResponse](t, env.get(pathf("/api/v1/questions/{id}/choices", q.ID)))
	require.Len(t, list.Choices, 1)
	assert.Equal(t, "Red", list.Choices[0].ChoiceText)

	path := pathf("/api/v1/questions/{id}/choices/", q.ID) + itoa(created.ID)
	assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, path, nil, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, path, nil, nil).Code)
}

func TestDeleteChoice_WrongQuestion(t *testing.T) {
	env := newTestEnv(t)
	q := env.createQuestion(t, "Mine", -1)
	other := env.createQuestion(t, "Theirs", -1)
	choices := env.createChoices(t, other, choiceSpec{text: "Keep me"})

	path := pathf("/api/v1/questions/{id}/choices/", q.ID) + itoa(choices[0].ID)
	rec := env.do(http.MethodDelete, path, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, err := env.store.GetChoice(context.Background(), choices[0].ID)
	assert.NoError(t, err)
}

func TestQuestionResults_IncludesScheduled(t *testing.T) {
	env := newTestEnv(t)
	q := env.createQuestion(t, "Preview", 2)
	env.createChoices(t, q, choiceSpec{text: "A", votes: 1})

	rec := env.get(pathf("/api/v1/questions/{id}/results", q.ID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[ResultsResponse](t, rec).TotalVotes)
}

// =============================================================================
// Admin Auth Tests
// =============================================================================

func TestAdminRoutes_RequireToken(t *testing.T) {
	hash, err := middleware.HashToken("s3cret")
	require.NoError(t, err)
	auth, err := middleware.NewAdminAuth(middleware.AdminAuthConfig{TokenHash: hash})
	require.NoError(t, err)

	env := newTestEnv(t, func(cfg *APIConfig) { cfg.AdminAuth = auth })
	q := env.createQuestion(t, "Guarded", -1)

	rec := env.get("/api/v1/questions")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decode[ErrorResponse](t, rec).Code)

	rec = env.do(http.MethodGet, "/api/v1/questions", nil, map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodGet, "/api/v1/questions", nil, map[string]string{"Authorization": "Bearer s3cret"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Public routes stay open.
	assert.Equal(t, http.StatusOK, env.get(pathf("/api/v1/polls/{id}", q.ID)).Code)
	assert.Equal(t, http.StatusOK, env.get("/polls/").Code)
}
