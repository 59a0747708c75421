// Package resolve generates batch resolvers from an attribute registry.
//
// For every identity attribute and every reference attribute of a schema,
// the generator compiles one query template (SQL text, target columns and a
// row decode function) at startup. The compiled configs are immutable and
// shared across concurrent requests; each invocation is one round trip per
// distinct input set.
package resolve

import (
	"context"

	"github.com/yenda/formsql/dialect"
	sqld "github.com/yenda/formsql/dialect/sql"
	"github.com/yenda/formsql/pgexec"
	"github.com/yenda/formsql/rowconv"
	"github.com/yenda/formsql/schema/attr"
)

// Entity is a sparse attribute map, as produced by the row transformer.
type Entity = rowconv.Entity

// Config is the compiled, immutable description of one resolver.
type Config struct {
	// Input is the attribute key the resolver reads from each input entity.
	Input attr.Key
	// Output lists the attribute keys the resolver produces.
	Output []attr.Key
	// SQL is the batched query template; empty for pure aliases.
	SQL string
	// Columns is the ordered source column list of SQL.
	Columns []string
	// Schema names the logical database the query runs against.
	Schema string
}

// runFunc resolves a list of distinct input ids into entities keyed by id.
type runFunc func(ctx context.Context, drv dialect.Driver, ids []any) (map[any]Entity, error)

// Resolver resolves one attribute for a batch of input entities.
type Resolver struct {
	Config
	// Batch is true for every generated resolver.
	Batch bool
	run   runFunc
	// alias relabels a single input value without querying.
	alias func(v any) Entity
	// empty is the per-entity result for ids the query returned no rows
	// for; non-nil only for to-many resolvers, which normalize missing
	// groups to an empty collection.
	empty func() Entity
}

// Resolve runs the resolver for the given input entities. The result slice
// has the same length and order as the inputs; inputs whose id is missing
// from the database yield a nil entry (the surrounding framework decides
// what "not found" means), except for to-many resolvers which yield an
// empty collection.
func (r *Resolver) Resolve(ctx context.Context, env dialect.Env, inputs []Entity) ([]Entity, error) {
	if len(inputs) == 0 {
		return make([]Entity, 0), nil
	}
	if r.alias != nil {
		out := make([]Entity, len(inputs))
		for i, in := range inputs {
			if v, ok := in[r.Input]; ok && v != nil {
				out[i] = r.alias(v)
			}
		}
		return out, nil
	}
	keys := make([]any, len(inputs))
	ids := make([]any, 0, len(inputs))
	for i, in := range inputs {
		if v, ok := in[r.Input]; ok && v != nil {
			keys[i] = inputID(r.Input, v)
			ids = append(ids, keys[i])
		}
	}
	ids = Distinct(ids)
	byID := make(map[any]Entity)
	if len(ids) > 0 {
		drv, err := env.Driver(r.Schema)
		if err != nil {
			return nil, err
		}
		byID, err = r.run(ctx, drv, ids)
		if err != nil {
			return nil, err
		}
	}
	out := OrderByKeys(keys, byID)
	if r.empty != nil {
		for i, e := range out {
			if e == nil {
				out[i] = r.empty()
			}
		}
	}
	return out, nil
}

// inputID unwraps an embedded reference value down to its raw id, looking
// up the identity field by its key. Raw ids pass through unchanged.
func inputID(key attr.Key, v any) any {
	sub, ok := v.(Entity)
	if !ok {
		return v
	}
	return inputID(key, sub[key])
}

// queryRows runs a batched query and materializes every row as a
// column-keyed map for the row transformer.
func queryRows(ctx context.Context, drv dialect.Driver, query string, args []any, cols []string) ([]map[string]any, error) {
	var rows sqld.Rows
	if err := drv.Query(ctx, query, args, &rows); err != nil {
		return nil, pgexec.NewSaveError(err)
	}
	defer rows.Close()
	var out []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, pgexec.NewSaveError(err)
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, pgexec.NewSaveError(err)
	}
	return out, nil
}
