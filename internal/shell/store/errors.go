// Package store provides persistence for polls, choices and votes.
package store

import (
	"errors"
	"strings"
)

// Sentinels. Every error returned by a Store wraps one of these in a
// *StoreError, so callers branch with errors.Is.
var (
	// ErrNotFound: no question, choice or vote with the given ID.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateID: a row with this primary key or vote receipt ID exists.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrForeignKey: the referenced question or choice does not exist.
	ErrForeignKey = errors.New("referenced row missing")

	ErrConnectionFailed = errors.New("cannot open polls database")
	ErrMigrationFailed  = errors.New("schema migration failed")
	ErrTxFailed         = errors.New("transaction failed")
)

// StoreError records which store call failed and on what row.
type StoreError struct {
	Op      string // store method, e.g. "RecordVote"
	Entity  string // "question", "choice" or "vote"
	ID      string
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Entity != "" {
		b.WriteString(" " + e.Entity)
	}
	if e.ID != "" {
		b.WriteString(" " + e.ID)
	}
	b.WriteString(": " + e.Message)
	return b.String()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func NewStoreError(op, entity, id, message string, err error) *StoreError {
	return &StoreError{Op: op, Entity: entity, ID: id, Message: message, Err: err}
}

// IsNotFound reports whether err means the entity does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
