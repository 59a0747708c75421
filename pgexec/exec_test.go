package pgexec

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yenda/formsql/dialect"
	sqld "github.com/yenda/formsql/dialect/sql"
)

func TestRun(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := sqld.OpenDB(dialect.Postgres, db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET CONSTRAINTS ALL DEFERRED")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO account (id, name) VALUES ($1, $2)")).
		WithArgs("a1", "Alice").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE item SET label = $1 WHERE id = $2")).
		WithArgs("pen", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err = Run(context.Background(), drv, Plan{
		Inserts: []Statement{
			{SQL: "INSERT INTO account (id, name) VALUES ($1, $2)", Args: []any{"a1", "Alice"}},
		},
		Writes: []Statement{
			{SQL: "UPDATE item SET label = $1 WHERE id = $2", Args: []any{"pen", int64(7)}},
		},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunEmptyPlan(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := sqld.OpenDB(dialect.Postgres, db)

	// No transaction is opened for an empty plan.
	require.NoError(t, Run(context.Background(), drv, Plan{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunDeleteMissingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := sqld.OpenDB(dialect.Postgres, db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET CONSTRAINTS ALL DEFERRED")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	// Zero rows affected is not an error: deleting an already-absent row
	// commits as a no-op.
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM item WHERE id = $1")).
		WithArgs(int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err = Run(context.Background(), drv, Plan{
		Writes: []Statement{{SQL: "DELETE FROM item WHERE id = $1", Args: []any{int64(404)}}},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunRollsBackOnFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := sqld.OpenDB(dialect.Postgres, db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET CONSTRAINTS ALL DEFERRED")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO account (id, name) VALUES ($1, $2)")).
		WithArgs("a1", "way too long").
		WillReturnError(&pq.Error{Code: "22001", Message: "value too long"})
	mock.ExpectRollback()

	err = Run(context.Background(), drv, Plan{
		Inserts: []Statement{
			{SQL: "INSERT INTO account (id, name) VALUES ($1, $2)", Args: []any{"a1", "way too long"}},
		},
	})
	require.Error(t, err)
	var serr *SaveError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, StringDataTooLong, serr.Cause)
	assert.Equal(t, "22001", serr.SQLState)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunCommitError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := sqld.OpenDB(dialect.Postgres, db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET CONSTRAINTS ALL DEFERRED")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM item WHERE id = $1")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(&pq.Error{Code: "40001", Message: "could not serialize"})

	err = Run(context.Background(), drv, Plan{
		Writes: []Statement{{SQL: "DELETE FROM item WHERE id = $1", Args: []any{int64(7)}}},
	})
	require.Error(t, err)
	assert.Equal(t, SerializationFailure, CauseOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}
