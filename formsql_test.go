package formsql

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yenda/formsql/dialect"
	"github.com/yenda/formsql/dialect/sql"
	"github.com/yenda/formsql/resolve"
	"github.com/yenda/formsql/schema/attr"
	"github.com/yenda/formsql/sqltype"
	"github.com/yenda/formsql/write"
)

func testRegistry(t *testing.T) *attr.Registry {
	t.Helper()
	reg, err := attr.NewRegistry(
		attr.UUID("account/id").Identity("account").Schema("main").Descriptor(),
		attr.String("account/name").Of("account/id").Schema("main").Descriptor(),
		attr.Keyword("account/role").Of("account/id").Schema("main").Descriptor(),
		attr.Ref("account/items", "item/id").Many("item/account").Of("account/id").Schema("main").Descriptor(),
		attr.Long("item/id").Identity("item").Schema("main").Descriptor(),
		attr.String("item/label").Of("item/id").Schema("main").Descriptor(),
		attr.Ref("item/account", "account/id").Column("account_id").Of("item/id").Schema("main").Descriptor(),
	)
	require.NoError(t, err)
	return reg
}

func testEngine(t *testing.T, opts ...Option) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	env := dialect.StaticEnv{"main": sql.OpenDB(dialect.Postgres, db)}
	eng, err := New(testRegistry(t), env, opts...)
	require.NoError(t, err)
	return eng, mock
}

func TestNew(t *testing.T) {
	eng, _ := testEngine(t)
	// Two identities, one to-many and one forward ref.
	assert.Len(t, eng.Resolvers("main"), 4)
	assert.Empty(t, eng.Resolvers("reporting"))
	assert.NotNil(t, eng.Registry())
}

func TestEngineResolve(t *testing.T) {
	eng, mock := testEngine(t)
	var r *resolve.Resolver
	for _, cand := range eng.Resolvers("main") {
		if cand.Input == "account/id" && len(cand.Output) > 1 {
			r = cand
		}
	}
	require.NotNil(t, r)

	u := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, role FROM account WHERE id = ANY($1::uuid[])")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "role"}).
			AddRow(u.String(), "Alice", ":admin"))

	got, err := r.Resolve(context.Background(), eng.env, []resolve.Entity{{"account/id": u}})
	require.NoError(t, err)
	assert.Equal(t, resolve.Entity{
		"account/id":   u,
		"account/name": "Alice",
		"account/role": "admin",
	}, got[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEngineSaveForm(t *testing.T) {
	eng, mock := testEngine(t)
	tid := write.NewTempID()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET CONSTRAINTS ALL DEFERRED")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO account (id, name, role) VALUES ($1, $2, $3)")).
		WithArgs(sqlmock.AnyArg(), "Alice", ":admin").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	res, err := eng.SaveForm(context.Background(), write.Delta{
		write.NewIdent("account/id", tid): {Fields: map[attr.Key]write.Change{
			"account/name": {After: "Alice"},
			"account/role": {After: "admin"},
		}},
	})
	require.NoError(t, err)
	assert.Contains(t, res.Tempids, tid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEngineSaveFormEmpty(t *testing.T) {
	eng, mock := testEngine(t)
	res, err := eng.SaveForm(context.Background(), write.Delta{})
	require.NoError(t, err)
	assert.Empty(t, res.Tempids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithCodecs(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	env := dialect.StaticEnv{"main": sql.OpenDB(dialect.Postgres, db)}

	// Override the keyword codec so roles persist without the sigil.
	eng, err := New(testRegistry(t), env, WithCodecs(sqltype.Codecs{
		attr.TypeKeyword: {},
	}))
	require.NoError(t, err)
	tid := write.NewTempID()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET CONSTRAINTS ALL DEFERRED")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO account (id, role) VALUES ($1, $2)")).
		WithArgs(sqlmock.AnyArg(), "admin").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err = eng.SaveForm(context.Background(), write.Delta{
		write.NewIdent("account/id", tid): {Fields: map[attr.Key]write.Change{
			"account/role": {After: "admin"},
		}},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithDebug(t *testing.T) {
	var logs []any
	eng, mock := testEngine(t, WithDebug(func(v ...any) { logs = append(logs, v...) }))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET CONSTRAINTS ALL DEFERRED")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO account (id, name) VALUES ($1, $2)")).
		WithArgs(sqlmock.AnyArg(), "Alice").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := eng.SaveForm(context.Background(), write.Delta{
		write.NewIdent("account/id", write.NewTempID()): {Fields: map[attr.Key]write.Change{
			"account/name": {After: "Alice"},
		}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, logs)
	require.NoError(t, mock.ExpectationsWereMet())
}
