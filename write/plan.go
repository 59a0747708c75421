package write

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yenda/formsql/pgexec"
	"github.com/yenda/formsql/schema/attr"
	"github.com/yenda/formsql/sqltype"
)

// Compile turns a rewritten, substituted delta into the SQL plan of one
// schema. Entities created in this delta (their ident was a tempid before
// substitution, recorded in fresh) compile to an INSERT of every changed
// attribute; existing entities compile to a DELETE when marked, else an
// UPDATE of exactly the changed columns. Statement order is deterministic.
func Compile(reg *attr.Registry, cs sqltype.Codecs, delta Delta, schema string, fresh map[Ident]struct{}) (pgexec.Plan, error) {
	var plan pgexec.Plan
	idents := make([]Ident, 0, len(delta))
	for ident := range delta {
		idents = append(idents, ident)
	}
	sort.Slice(idents, func(i, j int) bool {
		if idents[i].Attr != idents[j].Attr {
			return idents[i].Attr < idents[j].Attr
		}
		return fmt.Sprint(idents[i].ID) < fmt.Sprint(idents[j].ID)
	})
	for _, ident := range idents {
		id, err := reg.Identity(ident.Attr)
		if err != nil {
			return pgexec.Plan{}, err
		}
		if id.Schema != schema {
			continue
		}
		idCol, err := sqltype.Column(id)
		if err != nil {
			return pgexec.Plan{}, err
		}
		ed := delta[ident]
		_, isFresh := fresh[ident]
		switch {
		case isFresh && ed.Delete:
			// Created and deleted within one delta: nothing to persist.
		case isFresh:
			stmt, err := insertStatement(reg, cs, id, idCol, ident, ed)
			if err != nil {
				return pgexec.Plan{}, err
			}
			plan.Inserts = append(plan.Inserts, stmt)
		case ed.Delete:
			plan.Writes = append(plan.Writes, pgexec.Statement{
				SQL:  fmt.Sprintf("DELETE FROM %s WHERE %s = $1", id.Table, idCol),
				Args: []any{ident.ID},
			})
		default:
			stmt, ok, err := updateStatement(reg, cs, id, idCol, ident, ed)
			if err != nil {
				return pgexec.Plan{}, err
			}
			if ok {
				plan.Writes = append(plan.Writes, stmt)
			}
		}
	}
	return plan, nil
}

// column resolves the column and encoded value of one field change, or
// ok=false for attributes that are no column of the entity's own table
// (reverse and to-many references live on the target side and were already
// rewritten there).
func column(reg *attr.Registry, cs sqltype.Codecs, key attr.Key, v any) (col string, arg any, ok bool, err error) {
	a, err := reg.Get(key)
	if err != nil {
		return "", nil, false, err
	}
	if a.IsRef() && (a.Cardinality == attr.CardMany || a.FkAttr != "") {
		return "", nil, false, nil
	}
	col, err = sqltype.Column(a)
	if err != nil {
		return "", nil, false, err
	}
	arg, err = encodeValue(cs, a, v)
	if err != nil {
		return "", nil, false, err
	}
	return col, arg, true, nil
}

// encodeValue maps a domain value to its statement argument. Forward
// reference values collapse to the raw id of their target.
func encodeValue(cs sqltype.Codecs, a *attr.Attribute, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	if a.IsRef() {
		ref, err := NormalizeRef(v, a.Target)
		if err != nil {
			return nil, err
		}
		return ref.Ident.ID, nil
	}
	return sqltype.Encode(sqltype.Resolve(a, cs), v)
}

func insertStatement(reg *attr.Registry, cs sqltype.Codecs, id *attr.Attribute, idCol string, ident Ident, ed *EntityDelta) (pgexec.Statement, error) {
	type colVal struct {
		col string
		val any
	}
	cols := []colVal{{col: idCol, val: ident.ID}}
	keys := sortedKeys(ed.Fields)
	for _, key := range keys {
		if key == id.Key {
			continue
		}
		col, arg, ok, err := column(reg, cs, key, ed.Fields[key].After)
		if err != nil {
			return pgexec.Statement{}, err
		}
		if !ok {
			continue
		}
		cols = append(cols, colVal{col: col, val: arg})
	}
	names := make([]string, len(cols))
	params := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, cv := range cols {
		names[i] = cv.col
		params[i] = fmt.Sprintf("$%d", i+1)
		args[i] = cv.val
	}
	return pgexec.Statement{
		SQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			id.Table, strings.Join(names, ", "), strings.Join(params, ", ")),
		Args: args,
	}, nil
}

func updateStatement(reg *attr.Registry, cs sqltype.Codecs, id *attr.Attribute, idCol string, ident Ident, ed *EntityDelta) (pgexec.Statement, bool, error) {
	var (
		sets []string
		args []any
	)
	keys := sortedKeys(ed.Fields)
	for _, key := range keys {
		if key == id.Key {
			continue
		}
		col, arg, ok, err := column(reg, cs, key, ed.Fields[key].After)
		if err != nil {
			return pgexec.Statement{}, false, err
		}
		if !ok {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)+1))
		args = append(args, arg)
	}
	if len(sets) == 0 {
		return pgexec.Statement{}, false, nil
	}
	args = append(args, ident.ID)
	return pgexec.Statement{
		SQL: fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
			id.Table, strings.Join(sets, ", "), idCol, len(args)),
		Args: args,
	}, true, nil
}

func sortedKeys(fields map[attr.Key]Change) []attr.Key {
	keys := make([]attr.Key, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
