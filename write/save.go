package write

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/yenda/formsql/dialect"
	"github.com/yenda/formsql/pgexec"
	"github.com/yenda/formsql/schema/attr"
	"github.com/yenda/formsql/sqltype"
)

// Result is the outcome of one successful save: the resolution of every
// tempid that identified an entity in the delta.
type Result struct {
	Tempids map[TempID]any
}

// Save runs the full write pipeline over one delta. An empty delta returns
// an empty resolution map without touching any pool. Each target schema
// executes its statements in its own constraint-deferred transaction;
// schemas commit independently of each other, and concurrently. Failures
// surface as classified SaveErrors with no partial success within a
// schema's transaction.
func Save(ctx context.Context, env dialect.Env, reg *attr.Registry, cs sqltype.Codecs, delta Delta) (*Result, error) {
	res := &Result{Tempids: make(map[TempID]any)}
	if len(delta) == 0 {
		return res, nil
	}
	rewritten, err := RewriteRefs(reg, delta)
	if err != nil {
		return nil, err
	}
	plan, err := PlanTempids(reg, rewritten)
	if err != nil {
		return nil, err
	}
	resolved := make(map[TempID]any, len(plan.UUIDs)+len(plan.Sequences))
	for tid, id := range plan.UUIDs {
		resolved[tid] = id
	}
	if err := AllocateSequences(ctx, env, plan, resolved); err != nil {
		return nil, err
	}
	var (
		fresh   = make(map[Ident]struct{})
		schemas = make(map[string]struct{})
	)
	for ident := range rewritten {
		id, err := reg.Identity(ident.Attr)
		if err != nil {
			return nil, err
		}
		schemas[id.Schema] = struct{}{}
		if tid, ok := ident.ID.(TempID); ok {
			if rid, ok := resolved[tid]; ok {
				fresh[Ident{Attr: ident.Attr, ID: rid}] = struct{}{}
			}
		}
	}
	substituted := Substitute(rewritten, resolved)
	g, gctx := errgroup.WithContext(ctx)
	for schema := range schemas {
		schema := schema
		g.Go(func() error {
			p, err := Compile(reg, cs, substituted, schema, fresh)
			if err != nil {
				return err
			}
			if p.Empty() {
				return nil
			}
			drv, err := env.Driver(schema)
			if err != nil {
				return err
			}
			return pgexec.Run(gctx, drv, p)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	res.Tempids = resolved
	return res, nil
}
