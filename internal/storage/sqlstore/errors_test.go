package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "pg unique", err: &pgconn.PgError{Code: "23505"}, want: domain.ErrDuplicateIdentity},
		{name: "pg foreign key", err: &pgconn.PgError{Code: "23503"}, want: domain.ErrConstraintViolation},
		{name: "pg check", err: &pgconn.PgError{Code: "23514"}, want: domain.ErrConstraintViolation},
		{name: "pg numeric overflow", err: &pgconn.PgError{Code: "22003"}, want: domain.ErrConstraintViolation},
		{name: "pg invalid text", err: &pgconn.PgError{Code: "22P02"}, want: domain.ErrConstraintViolation},
		{name: "pg connection", err: &pgconn.PgError{Code: "08006"}, want: domain.ErrStorageUnavailable},
		{
			name: "sqlite primary key",
			err:  sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey},
			want: domain.ErrDuplicateIdentity,
		},
		{
			name: "sqlite unique",
			err:  sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique},
			want: domain.ErrDuplicateIdentity,
		},
		{
			name: "sqlite foreign key",
			err:  sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey},
			want: domain.ErrConstraintViolation,
		},
		{
			name: "sqlite check",
			err:  sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintCheck},
			want: domain.ErrConstraintViolation,
		},
		{
			name: "sqlite busy",
			err:  sqlite3.Error{Code: sqlite3.ErrBusy},
			want: domain.ErrStorageUnavailable,
		},
		{name: "wrapped pg unique", err: fmt.Errorf("exec: %w", &pgconn.PgError{Code: "23505"}), want: domain.ErrDuplicateIdentity},
		{name: "conn done", err: sql.ErrConnDone, want: domain.ErrStorageUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err, "driver error must stay in the chain")
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	assert.NoError(t, classify(nil))
}

func TestAborted_KeepsStepAndCause(t *testing.T) {
	err := aborted(StepItemsDelete, "o-1", &pgconn.PgError{Code: "23503"})

	assert.ErrorIs(t, err, domain.ErrTransactionAborted)
	assert.ErrorIs(t, err, domain.ErrConstraintViolation)
	assert.Contains(t, err.Error(), "items_delete")
	assert.Contains(t, err.Error(), "o-1")
}

func TestRollback_ReturnsCauseWhenTxDone(t *testing.T) {
	store := openSQLiteStoreForTest(t)

	tx, err := store.DB().Begin()
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	cause := errors.New("boom")
	assert.Same(t, cause, rollback(tx, cause))
}
