package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/hpungsan/wishaday/internal/errors"
)

func TestWithTx_Commits(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()

	err := WithTx(ctx, database, func(tx *sql.Tx) error {
		return InsertWish(ctx, tx, newTestWish("01WISH1", "abcd2345"))
	})
	if err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}

	if _, err := GetWishBySlug(ctx, database, "abcd2345"); err != nil {
		t.Errorf("wish not visible after commit: %v", err)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()
	boom := errors.NewConflict("boom")

	err := WithTx(ctx, database, func(tx *sql.Tx) error {
		if err := InsertWish(ctx, tx, newTestWish("01WISH1", "abcd2345")); err != nil {
			return err
		}
		return boom
	})
	if err != boom {
		t.Fatalf("WithTx() error = %v, want the callback error unchanged", err)
	}

	if _, err := GetWishBySlug(ctx, database, "abcd2345"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("wish visible after rollback: %v", err)
	}
}

func TestWithTx_CommitFailureIsTransient(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer database.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE wishes").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(stderrors.New("disk I/O error"))

	ctx := context.Background()
	err = WithTx(ctx, database, func(tx *sql.Tx) error {
		return IncrementViews(ctx, tx, "01WISH1", 0)
	})

	if !errors.Is(err, errors.ErrTransient) {
		t.Fatalf("WithTx() error = %v, want TRANSIENT", err)
	}
	if !errors.IsRetryable(err) {
		t.Error("commit failure must be retryable")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestWithTx_BeginFailureIsTransient(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer database.Close()

	mock.ExpectBegin().WillReturnError(stderrors.New("database is locked"))

	called := false
	err = WithTx(context.Background(), database, func(tx *sql.Tx) error {
		called = true
		return nil
	})

	if !errors.Is(err, errors.ErrTransient) {
		t.Fatalf("WithTx() error = %v, want TRANSIENT", err)
	}
	if called {
		t.Error("callback must not run when begin fails")
	}
}

func TestWrapErr_Classification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code errors.ErrorCode
	}{
		{"busy", stderrors.New("database is locked (5) (SQLITE_BUSY)"), errors.ErrTransient},
		{"canceled", context.Canceled, errors.ErrTransient},
		{"deadline", context.DeadlineExceeded, errors.ErrTransient},
		{"other", stderrors.New("no such table: wishes"), errors.ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := wrapErr(tt.err); !errors.Is(got, tt.code) {
				t.Errorf("wrapErr(%v) = %v, want %s", tt.err, got, tt.code)
			}
		})
	}
}

func TestIncrementViews_DriverErrorMocked(t *testing.T) {
	database, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer database.Close()

	mock.ExpectExec("UPDATE wishes").WithArgs("01WISH1", 2).WillReturnError(context.DeadlineExceeded)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err = IncrementViews(ctx, database, "01WISH1", 2)
	if !errors.Is(err, errors.ErrTransient) {
		t.Errorf("IncrementViews() error = %v, want TRANSIENT", err)
	}
}
