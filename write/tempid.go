package write

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/yenda/formsql/dialect"
	sqld "github.com/yenda/formsql/dialect/sql"
	"github.com/yenda/formsql/pgexec"
	"github.com/yenda/formsql/resolve"
	"github.com/yenda/formsql/rowconv"
	"github.com/yenda/formsql/schema/attr"
	"github.com/yenda/formsql/sqltype"
)

// SequenceRef names the allocation sequence of an integer identity and the
// schema whose driver allocates from it.
type SequenceRef struct {
	Schema string
	Name   string
}

// Plan is the tempid-resolution plan of one delta: uuid-typed identities
// are resolved client-side, sequence-typed identities are resolved against
// the database during execution.
type Plan struct {
	UUIDs     map[TempID]uuid.UUID
	Sequences map[TempID]SequenceRef
}

// PlanTempids scans the identifiers of a delta and classifies every tempid
// by the domain type of its identity attribute. A tempid appearing under
// two different identity attributes cannot resolve to exactly one id and
// is rejected.
func PlanTempids(reg *attr.Registry, delta Delta) (*Plan, error) {
	p := &Plan{
		UUIDs:     make(map[TempID]uuid.UUID),
		Sequences: make(map[TempID]SequenceRef),
	}
	owners := make(map[TempID]attr.Key)
	for ident := range delta {
		tid, ok := ident.ID.(TempID)
		if !ok {
			continue
		}
		if owner, ok := owners[tid]; ok {
			if owner != ident.Attr {
				return nil, fmt.Errorf("write: tempid %q identifies both %q and %q", tid, owner, ident.Attr)
			}
			continue
		}
		owners[tid] = ident.Attr
		id, err := reg.Identity(ident.Attr)
		if err != nil {
			return nil, err
		}
		switch {
		case id.Type == attr.TypeUUID:
			p.UUIDs[tid] = uuid.New()
		case id.Type.Numeric():
			p.Sequences[tid] = SequenceRef{Schema: id.Schema, Name: sqltype.Sequence(id)}
		default:
			return nil, attr.NewInvalidAttributeError(id.Key, fmt.Sprintf("identity type %s cannot back a tempid", id.Type))
		}
	}
	return p, nil
}

const nextvalQuery = "SELECT nextval($1::regclass) FROM generate_series(1, $2)"

// AllocateSequences resolves the plan's sequence-typed tempids into the
// given resolution map, one query per distinct sequence across the whole
// delta.
func AllocateSequences(ctx context.Context, env dialect.Env, p *Plan, resolved map[TempID]any) error {
	tids := make([]TempID, 0, len(p.Sequences))
	for tid := range p.Sequences {
		tids = append(tids, tid)
	}
	groups := resolve.GroupByKey(tids, func(tid TempID) SequenceRef { return p.Sequences[tid] })
	for ref, tids := range groups {
		sort.Slice(tids, func(i, j int) bool { return tids[i] < tids[j] })
		drv, err := env.Driver(ref.Schema)
		if err != nil {
			return err
		}
		ids, err := nextvals(ctx, drv, ref.Name, len(tids))
		if err != nil {
			return err
		}
		for i, tid := range tids {
			resolved[tid] = ids[i]
		}
	}
	return nil
}

func nextvals(ctx context.Context, drv dialect.Driver, sequence string, n int) ([]int64, error) {
	var rows sqld.Rows
	if err := drv.Query(ctx, nextvalQuery, []any{sequence, n}, &rows); err != nil {
		return nil, pgexec.NewSaveError(err)
	}
	defer rows.Close()
	out := make([]int64, 0, n)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, pgexec.NewSaveError(err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, pgexec.NewSaveError(err)
	}
	if len(out) != n {
		return nil, fmt.Errorf("write: sequence %q allocated %d of %d ids", sequence, len(out), n)
	}
	return out, nil
}

// Substitute rewrites every identifier and every reference value in the
// delta, replacing tempids with their resolved ids. Non-tempid values pass
// through unchanged, and a tempid with no resolution is left as-is: a
// tempid appearing only inside a reference to an entity the delta never
// identifies has nothing to resolve against.
func Substitute(delta Delta, resolved map[TempID]any) Delta {
	out := make(Delta, len(delta))
	for ident, ed := range delta {
		fields := make(map[attr.Key]Change, len(ed.Fields))
		for k, ch := range ed.Fields {
			fields[k] = Change{
				Before: substValue(ch.Before, resolved),
				After:  substValue(ch.After, resolved),
			}
		}
		out[substIdent(ident, resolved)] = &EntityDelta{Delete: ed.Delete, Fields: fields}
	}
	return out
}

func substIdent(ident Ident, resolved map[TempID]any) Ident {
	tid, ok := ident.ID.(TempID)
	if !ok {
		return ident
	}
	id, ok := resolved[tid]
	if !ok {
		return ident
	}
	return Ident{Attr: ident.Attr, ID: id}
}

func substValue(v any, resolved map[TempID]any) any {
	switch v := v.(type) {
	case nil:
		return nil
	case TempID:
		if id, ok := resolved[v]; ok {
			return id
		}
		return v
	case Ident:
		return substIdent(v, resolved)
	case Ref:
		return Ref{Ident: substIdent(v.Ident, resolved), Fields: substEntity(v.Fields, resolved)}
	case []Ref:
		out := make([]Ref, len(v))
		for i, r := range v {
			out[i] = substValue(r, resolved).(Ref)
		}
		return out
	case []Ident:
		out := make([]Ident, len(v))
		for i, id := range v {
			out[i] = substIdent(id, resolved)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = substValue(item, resolved)
		}
		return out
	case rowconv.Entity:
		return substEntity(v, resolved)
	default:
		return v
	}
}

func substEntity(e rowconv.Entity, resolved map[TempID]any) rowconv.Entity {
	if e == nil {
		return nil
	}
	out := make(rowconv.Entity, len(e))
	for k, v := range e {
		out[k] = substValue(v, resolved)
	}
	return out
}
