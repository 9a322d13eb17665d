package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/artpar/polls/internal/core/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout is fixed width and always UTC so that lexical order of the
// stored text equals chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", withForeignKeys(dsn))
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	// SQLite allows a single writer; one connection also keeps ":memory:"
	// databases from splitting across pooled connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

func withForeignKeys(dsn string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&_foreign_keys=on"
	}
	return dsn + "?_foreign_keys=on"
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// SchemaVersion returns the applied migration version and whether the last
// migration left the schema dirty.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (uint, bool, error) {
	var row struct {
		Version uint `db:"version"`
		Dirty   bool `db:"dirty"`
	}
	if err := s.db.GetContext(ctx, &row, `SELECT version, dirty FROM schema_migrations LIMIT 1`); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, NewStoreError("SchemaVersion", "", "", err.Error(), err)
	}
	return row.Version, row.Dirty, nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Rows
// =============================================================================

// questionRow represents a question row in the database.
type questionRow struct {
	ID        int64  `db:"id"`
	Text      string `db:"question_text"`
	PubDate   string `db:"pub_date"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

// choiceRow represents a choice row in the database.
type choiceRow struct {
	ID         int64  `db:"id"`
	QuestionID int64  `db:"question_id"`
	Text       string `db:"choice_text"`
	Votes      int    `db:"votes"`
}

// =============================================================================
// Question Operations
// =============================================================================

func (s *SQLiteStore) CreateQuestion(ctx context.Context, question *domain.Question) error {
	return createQuestion(ctx, s.db, question)
}

func (s *SQLiteStore) GetQuestion(ctx context.Context, id int64) (*domain.Question, error) {
	return getQuestion(ctx, s.db, id)
}

func (s *SQLiteStore) UpdateQuestion(ctx context.Context, question *domain.Question) error {
	return updateQuestion(ctx, s.db, question)
}

func (s *SQLiteStore) DeleteQuestion(ctx context.Context, id int64) error {
	return deleteQuestion(ctx, s.db, id)
}

func (s *SQLiteStore) ListQuestions(ctx context.Context, opts ListOptions) ([]domain.Question, error) {
	return listQuestions(ctx, s.db, opts)
}

func (s *SQLiteStore) ListPublishedQuestions(ctx context.Context, now time.Time, opts ListOptions) ([]domain.Question, error) {
	return listPublishedQuestions(ctx, s.db, now, opts)
}

func (s *SQLiteStore) CountQuestions(ctx context.Context) (int, error) {
	return countQuestions(ctx, s.db)
}

func (s *SQLiteStore) CountPublishedQuestions(ctx context.Context, now time.Time) (int, error) {
	return countPublishedQuestions(ctx, s.db, now)
}

// =============================================================================
// Choice Operations
// =============================================================================

func (s *SQLiteStore) CreateChoice(ctx context.Context, choice *domain.Choice) error {
	return createChoice(ctx, s.db, choice)
}

func (s *SQLiteStore) GetChoice(ctx context.Context, id int64) (*domain.Choice, error) {
	return getChoice(ctx, s.db, id)
}

func (s *SQLiteStore) DeleteChoice(ctx context.Context, id int64) error {
	return deleteChoice(ctx, s.db, id)
}

func (s *SQLiteStore) ListChoices(ctx context.Context, questionID int64) ([]domain.Choice, error) {
	return listChoices(ctx, s.db, questionID)
}

// =============================================================================
// Vote Operations
// =============================================================================

// RecordVote increments the choice and stores the receipt in one transaction.
func (s *SQLiteStore) RecordVote(ctx context.Context, vote domain.Vote) error {
	return s.WithTx(ctx, func(tx Store) error {
		return tx.RecordVote(ctx, vote)
	})
}

func (s *SQLiteStore) CountVotes(ctx context.Context, questionID int64) (int, error) {
	return countVotes(ctx, s.db, questionID)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) CreateQuestion(ctx context.Context, question *domain.Question) error {
	return createQuestion(ctx, s.tx, question)
}

func (s *txSQLiteStore) GetQuestion(ctx context.Context, id int64) (*domain.Question, error) {
	return getQuestion(ctx, s.tx, id)
}

func (s *txSQLiteStore) UpdateQuestion(ctx context.Context, question *domain.Question) error {
	return updateQuestion(ctx, s.tx, question)
}

func (s *txSQLiteStore) DeleteQuestion(ctx context.Context, id int64) error {
	return deleteQuestion(ctx, s.tx, id)
}

func (s *txSQLiteStore) ListQuestions(ctx context.Context, opts ListOptions) ([]domain.Question, error) {
	return listQuestions(ctx, s.tx, opts)
}

func (s *txSQLiteStore) ListPublishedQuestions(ctx context.Context, now time.Time, opts ListOptions) ([]domain.Question, error) {
	return listPublishedQuestions(ctx, s.tx, now, opts)
}

func (s *txSQLiteStore) CountQuestions(ctx context.Context) (int, error) {
	return countQuestions(ctx, s.tx)
}

func (s *txSQLiteStore) CountPublishedQuestions(ctx context.Context, now time.Time) (int, error) {
	return countPublishedQuestions(ctx, s.tx, now)
}

func (s *txSQLiteStore) CreateChoice(ctx context.Context, choice *domain.Choice) error {
	return createChoice(ctx, s.tx, choice)
}

func (s *txSQLiteStore) GetChoice(ctx context.Context, id int64) (*domain.Choice, error) {
	return getChoice(ctx, s.tx, id)
}

func (s *txSQLiteStore) DeleteChoice(ctx context.Context, id int64) error {
	return deleteChoice(ctx, s.tx, id)
}

func (s *txSQLiteStore) ListChoices(ctx context.Context, questionID int64) ([]domain.Choice, error) {
	return listChoices(ctx, s.tx, questionID)
}

func (s *txSQLiteStore) RecordVote(ctx context.Context, vote domain.Vote) error {
	return recordVote(ctx, s.tx, vote)
}

func (s *txSQLiteStore) CountVotes(ctx context.Context, questionID int64) (int, error) {
	return countVotes(ctx, s.tx, questionID)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Shared Implementation Functions
// =============================================================================

func createQuestion(ctx context.Context, exec executor, question *domain.Question) error {
	query := `
		INSERT INTO questions (question_text, pub_date, created_at, updated_at)
		VALUES (:question_text, :pub_date, :created_at, :updated_at)`

	now := time.Now().UTC()
	if question.CreatedAt.IsZero() {
		question.CreatedAt = now
	}
	if question.UpdatedAt.IsZero() {
		question.UpdatedAt = now
	}

	row := map[string]any{
		"question_text": question.Text,
		"pub_date":      formatTime(question.PubDate),
		"created_at":    formatTime(question.CreatedAt),
		"updated_at":    formatTime(question.UpdatedAt),
	}

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("CreateQuestion", "question", "", err.Error(), err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return NewStoreError("CreateQuestion", "question", "", "failed to read inserted id", err)
	}
	question.ID = id

	return nil
}

func getQuestion(ctx context.Context, exec executor, id int64) (*domain.Question, error) {
	query := `SELECT id, question_text, pub_date, created_at, updated_at FROM questions WHERE id = ?`

	var row questionRow
	err := exec.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetQuestion", "question", idString(id), "question not found", ErrNotFound)
		}
		return nil, NewStoreError("GetQuestion", "question", idString(id), err.Error(), err)
	}

	return rowToQuestion(&row)
}

func updateQuestion(ctx context.Context, exec executor, question *domain.Question) error {
	query := `
		UPDATE questions SET
			question_text = :question_text,
			pub_date = :pub_date,
			updated_at = :updated_at
		WHERE id = :id`

	row := map[string]any{
		"id":            question.ID,
		"question_text": question.Text,
		"pub_date":      formatTime(question.PubDate),
		"updated_at":    formatTime(question.UpdatedAt),
	}

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("UpdateQuestion", "question", idString(question.ID), err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("UpdateQuestion", "question", idString(question.ID), "question not found", ErrNotFound)
	}

	return nil
}

func deleteQuestion(ctx context.Context, exec executor, id int64) error {
	query := `DELETE FROM questions WHERE id = ?`

	result, err := exec.ExecContext(ctx, query, id)
	if err != nil {
		return NewStoreError("DeleteQuestion", "question", idString(id), err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("DeleteQuestion", "question", idString(id), "question not found", ErrNotFound)
	}

	return nil
}

func listQuestions(ctx context.Context, exec executor, opts ListOptions) ([]domain.Question, error) {
	opts = opts.Normalize()
	query := `
		SELECT id, question_text, pub_date, created_at, updated_at FROM questions
		ORDER BY pub_date DESC, id DESC
		LIMIT ? OFFSET ?`

	var rows []questionRow
	if err := exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset); err != nil {
		return nil, NewStoreError("ListQuestions", "question", "", err.Error(), err)
	}

	return rowsToQuestions(rows)
}

func listPublishedQuestions(ctx context.Context, exec executor, now time.Time, opts ListOptions) ([]domain.Question, error) {
	opts = opts.Normalize()
	query := `
		SELECT id, question_text, pub_date, created_at, updated_at FROM questions
		WHERE pub_date <= ?
		ORDER BY pub_date DESC, id DESC
		LIMIT ? OFFSET ?`

	var rows []questionRow
	if err := exec.SelectContext(ctx, &rows, query, formatTime(now), opts.Limit, opts.Offset); err != nil {
		return nil, NewStoreError("ListPublishedQuestions", "question", "", err.Error(), err)
	}

	return rowsToQuestions(rows)
}

func countQuestions(ctx context.Context, exec executor) (int, error) {
	var count int
	if err := exec.GetContext(ctx, &count, `SELECT COUNT(*) FROM questions`); err != nil {
		return 0, NewStoreError("CountQuestions", "question", "", err.Error(), err)
	}
	return count, nil
}

func countPublishedQuestions(ctx context.Context, exec executor, now time.Time) (int, error) {
	var count int
	if err := exec.GetContext(ctx, &count, `SELECT COUNT(*) FROM questions WHERE pub_date <= ?`, formatTime(now)); err != nil {
		return 0, NewStoreError("CountPublishedQuestions", "question", "", err.Error(), err)
	}
	return count, nil
}

func createChoice(ctx context.Context, exec executor, choice *domain.Choice) error {
	query := `
		INSERT INTO choices (question_id, choice_text, votes)
		VALUES (:question_id, :choice_text, :votes)`

	row := map[string]any{
		"question_id": choice.QuestionID,
		"choice_text": choice.Text,
		"votes":       choice.Votes,
	}

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return NewStoreError("CreateChoice", "choice", "", "question does not exist", ErrForeignKey)
		}
		return NewStoreError("CreateChoice", "choice", "", err.Error(), err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return NewStoreError("CreateChoice", "choice", "", "failed to read inserted id", err)
	}
	choice.ID = id

	return nil
}

func getChoice(ctx context.Context, exec executor, id int64) (*domain.Choice, error) {
	query := `SELECT id, question_id, choice_text, votes FROM choices WHERE id = ?`

	var row choiceRow
	err := exec.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetChoice", "choice", idString(id), "choice not found", ErrNotFound)
		}
		return nil, NewStoreError("GetChoice", "choice", idString(id), err.Error(), err)
	}

	c := rowToChoice(row)
	return &c, nil
}

func deleteChoice(ctx context.Context, exec executor, id int64) error {
	query := `DELETE FROM choices WHERE id = ?`

	result, err := exec.ExecContext(ctx, query, id)
	if err != nil {
		return NewStoreError("DeleteChoice", "choice", idString(id), err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("DeleteChoice", "choice", idString(id), "choice not found", ErrNotFound)
	}

	return nil
}

func listChoices(ctx context.Context, exec executor, questionID int64) ([]domain.Choice, error) {
	query := `SELECT id, question_id, choice_text, votes FROM choices WHERE question_id = ? ORDER BY id`

	var rows []choiceRow
	if err := exec.SelectContext(ctx, &rows, query, questionID); err != nil {
		return nil, NewStoreError("ListChoices", "choice", "", err.Error(), err)
	}

	choices := make([]domain.Choice, 0, len(rows))
	for _, r := range rows {
		choices = append(choices, rowToChoice(r))
	}
	return choices, nil
}

func recordVote(ctx context.Context, exec executor, vote domain.Vote) error {
	// The question_id guard stops a vote from landing on another poll's choice.
	result, err := exec.ExecContext(ctx,
		`UPDATE choices SET votes = votes + 1 WHERE id = ? AND question_id = ?`,
		vote.ChoiceID, vote.QuestionID)
	if err != nil {
		return NewStoreError("RecordVote", "choice", idString(vote.ChoiceID), err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("RecordVote", "choice", idString(vote.ChoiceID), "choice not found for question", ErrNotFound)
	}

	query := `
		INSERT INTO votes (id, question_id, choice_id, cast_at)
		VALUES (:id, :question_id, :choice_id, :cast_at)`

	row := map[string]any{
		"id":          vote.ID,
		"question_id": vote.QuestionID,
		"choice_id":   vote.ChoiceID,
		"cast_at":     formatTime(vote.CastAt),
	}

	if _, err := exec.NamedExecContext(ctx, query, row); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: votes.id") {
			return NewStoreError("RecordVote", "vote", vote.ID, "vote already recorded", ErrDuplicateID)
		}
		return NewStoreError("RecordVote", "vote", vote.ID, err.Error(), err)
	}

	return nil
}

func countVotes(ctx context.Context, exec executor, questionID int64) (int, error) {
	var count int
	if err := exec.GetContext(ctx, &count, `SELECT COUNT(*) FROM votes WHERE question_id = ?`, questionID); err != nil {
		return 0, NewStoreError("CountVotes", "vote", "", err.Error(), err)
	}
	return count, nil
}

// =============================================================================
// Conversion Helpers
// =============================================================================

func rowToQuestion(row *questionRow) (*domain.Question, error) {
	pubDate, err := parseTime(row.PubDate)
	if err != nil {
		return nil, NewStoreError("rowToQuestion", "question", idString(row.ID), "invalid pub_date", err)
	}
	createdAt, err := parseTime(row.CreatedAt)
	if err != nil {
		return nil, NewStoreError("rowToQuestion", "question", idString(row.ID), "invalid created_at", err)
	}
	updatedAt, err := parseTime(row.UpdatedAt)
	if err != nil {
		return nil, NewStoreError("rowToQuestion", "question", idString(row.ID), "invalid updated_at", err)
	}

	return &domain.Question{
		ID:        row.ID,
		Text:      row.Text,
		PubDate:   pubDate,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

func rowsToQuestions(rows []questionRow) ([]domain.Question, error) {
	questions := make([]domain.Question, 0, len(rows))
	for i := range rows {
		q, err := rowToQuestion(&rows[i])
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	return questions, nil
}

func rowToChoice(row choiceRow) domain.Choice {
	return domain.Choice{
		ID:         row.ID,
		QuestionID: row.QuestionID,
		Text:       row.Text,
		Votes:      row.Votes,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func idString(id int64) string {
	return strconv.FormatInt(id, 10)
}
