package write

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yenda/formsql/dialect"
	sqld "github.com/yenda/formsql/dialect/sql"
	"github.com/yenda/formsql/rowconv"
	"github.com/yenda/formsql/schema/attr"
)

func TestPlanTempids(t *testing.T) {
	reg := testRegistry(t)
	accTid, itemTid := TempID("t-acc"), TempID("t-item")

	p, err := PlanTempids(reg, Delta{
		NewIdent("account/id", accTid):     {},
		NewIdent("item/id", itemTid):       {},
		NewIdent("account/id", uuid.New()): {},
	})
	require.NoError(t, err)

	// uuid identities resolve client-side, integer identities from their
	// table's sequence.
	assert.Contains(t, p.UUIDs, accTid)
	assert.NotEqual(t, uuid.Nil, p.UUIDs[accTid])
	assert.Equal(t, SequenceRef{Schema: "main", Name: "item_id_seq"}, p.Sequences[itemTid])
	assert.Len(t, p.UUIDs, 1)
	assert.Len(t, p.Sequences, 1)
}

func TestPlanTempidsDistinct(t *testing.T) {
	reg := testRegistry(t)
	delta := make(Delta)
	for i := 0; i < 50; i++ {
		delta[NewIdent("account/id", NewTempID())] = &EntityDelta{}
	}
	p, err := PlanTempids(reg, delta)
	require.NoError(t, err)
	require.Len(t, p.UUIDs, 50)

	// Every tempid resolves to exactly one id and no two collide.
	seen := make(map[uuid.UUID]struct{}, len(p.UUIDs))
	for _, id := range p.UUIDs {
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}

func TestPlanTempidsConflict(t *testing.T) {
	reg := testRegistry(t)
	tid := TempID("t-1")
	_, err := PlanTempids(reg, Delta{
		NewIdent("account/id", tid): {},
		NewIdent("item/id", tid):    {},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "identifies both")
}

func TestAllocateSequences(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	env := dialect.StaticEnv{"main": sqld.OpenDB(dialect.Postgres, db)}

	seq := SequenceRef{Schema: "main", Name: "item_id_seq"}
	p := &Plan{Sequences: map[TempID]SequenceRef{
		"t-b": seq,
		"t-a": seq,
	}}

	// One query per distinct sequence, ids handed out in tempid order.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT nextval($1::regclass) FROM generate_series(1, $2)")).
		WithArgs("item_id_seq", 2).
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(int64(101)).AddRow(int64(102)))

	resolved := make(map[TempID]any)
	require.NoError(t, AllocateSequences(context.Background(), env, p, resolved))
	assert.Equal(t, map[TempID]any{"t-a": int64(101), "t-b": int64(102)}, resolved)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAllocateSequencesShortRead(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	env := dialect.StaticEnv{"main": sqld.OpenDB(dialect.Postgres, db)}

	p := &Plan{Sequences: map[TempID]SequenceRef{
		"t-a": {Schema: "main", Name: "item_id_seq"},
		"t-b": {Schema: "main", Name: "item_id_seq"},
	}}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT nextval($1::regclass) FROM generate_series(1, $2)")).
		WithArgs("item_id_seq", 2).
		WillReturnRows(sqlmock.NewRows([]string{"nextval"}).AddRow(int64(101)))

	err = AllocateSequences(context.Background(), env, p, make(map[TempID]any))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allocated 1 of 2")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubstitute(t *testing.T) {
	tid := TempID("t-1")
	unresolved := TempID("t-unknown")
	u := uuid.New()
	resolved := map[TempID]any{tid: u}

	in := Delta{
		NewIdent("account/id", tid): {Fields: map[attr.Key]Change{
			"account/name": {After: "Alice"},
		}},
		NewIdent("item/id", int64(7)): {Fields: map[attr.Key]Change{
			"item/account": {After: NewIdent("account/id", tid)},
		}},
		NewIdent("profile/id", uuid.Nil): {Fields: map[attr.Key]Change{
			"profile/account": {After: Ref{Ident: NewIdent("account/id", tid)}},
		}},
		NewIdent("address/id", unresolved): {Fields: map[attr.Key]Change{
			"address/street": {After: "Main st 1"},
		}},
	}
	out := Substitute(in, resolved)

	require.Contains(t, out, NewIdent("account/id", u))
	assert.Equal(t, "Alice", out[NewIdent("account/id", u)].Fields["account/name"].After)

	assert.Equal(t, NewIdent("account/id", u),
		out[NewIdent("item/id", int64(7))].Fields["item/account"].After)

	assert.Equal(t, Ref{Ident: NewIdent("account/id", u)},
		out[NewIdent("profile/id", uuid.Nil)].Fields["profile/account"].After)

	// A tempid with no resolution passes through unchanged.
	require.Contains(t, out, NewIdent("address/id", unresolved))
}

func TestSubstituteCollections(t *testing.T) {
	tid := TempID("t-1")
	resolved := map[TempID]any{tid: int64(101)}
	acc := NewIdent("account/id", uuid.New())

	in := Delta{
		acc: {Fields: map[attr.Key]Change{
			"account/items": {After: []any{
				NewIdent("item/id", tid),
				NewIdent("item/id", int64(7)),
				rowconv.Entity{"item/id": tid, "item/label": "pen"},
			}},
		}},
	}
	out := Substitute(in, resolved)

	after := out[acc].Fields["account/items"].After.([]any)
	assert.Equal(t, NewIdent("item/id", int64(101)), after[0])
	assert.Equal(t, NewIdent("item/id", int64(7)), after[1])
	assert.Equal(t, rowconv.Entity{"item/id": int64(101), "item/label": "pen"}, after[2])
}
