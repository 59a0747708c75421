// Package formsql maps a declarative entity/attribute graph onto
// PostgreSQL.
//
// The engine compiles two things from an attribute registry at startup:
// batch resolvers that read attributes back out of the database (one round
// trip per input set, see the resolve package), and a write pipeline that
// turns entity deltas into ordered INSERT/UPDATE/DELETE plans executed in
// one constraint-deferred transaction per schema (see the write and pgexec
// packages).
//
//	reg, err := attr.NewRegistry(
//	    attr.UUID("account/id").Identity("account").Schema("main").Descriptor(),
//	    attr.String("account/name").Of("account/id").Schema("main").Descriptor(),
//	)
//	...
//	eng, err := formsql.New(reg, dialect.StaticEnv{"main": drv})
//	res, err := eng.SaveForm(ctx, delta)
package formsql

import (
	"context"

	"github.com/yenda/formsql/dialect"
	"github.com/yenda/formsql/resolve"
	"github.com/yenda/formsql/schema/attr"
	"github.com/yenda/formsql/sqltype"
	"github.com/yenda/formsql/write"
)

// Engine bundles the compiled resolvers and the write pipeline of one
// attribute registry. It is immutable after New and safe for concurrent
// use; concurrency is bounded by the pools behind the Env, not by the
// engine.
type Engine struct {
	reg       *attr.Registry
	env       dialect.Env
	codecs    sqltype.Codecs
	resolvers map[string][]*resolve.Resolver
}

type config struct {
	codecs sqltype.Codecs
	print  func(...any)
}

// Option configures an Engine.
type Option func(*config)

// WithCodecs merges caller-supplied codec overrides into the built-in set.
// Overrides are applied once, at construction; there is no runtime-mutable
// codec registry.
func WithCodecs(overrides sqltype.Codecs) Option {
	return func(c *config) {
		c.codecs = sqltype.Merge(c.codecs, overrides)
	}
}

// WithDebug logs every driver operation through print.
func WithDebug(print func(...any)) Option {
	return func(c *config) {
		c.print = print
	}
}

// New compiles the resolvers of every schema in the registry and returns
// the engine. Configuration errors (underivable columns, missing tables,
// unsupported relations) surface here, never at request time.
func New(reg *attr.Registry, env dialect.Env, opts ...Option) (*Engine, error) {
	c := config{codecs: sqltype.Defaults()}
	for _, opt := range opts {
		opt(&c)
	}
	if c.print != nil {
		env = debugEnv{env: env, print: c.print}
	}
	e := &Engine{
		reg:       reg,
		env:       env,
		codecs:    c.codecs,
		resolvers: make(map[string][]*resolve.Resolver),
	}
	for _, schema := range reg.Schemas() {
		rs, err := resolve.Generate(reg, e.codecs, schema)
		if err != nil {
			return nil, err
		}
		e.resolvers[schema] = rs
	}
	return e, nil
}

// Registry returns the engine's attribute registry.
func (e *Engine) Registry() *attr.Registry { return e.reg }

// Resolvers returns the compiled resolvers of one schema. The slice and
// the resolvers are shared and immutable.
func (e *Engine) Resolvers(schema string) []*resolve.Resolver {
	return e.resolvers[schema]
}

// SaveForm applies one delta and returns the tempid resolution map. Each
// schema named by the delta commits in its own transaction; there is no
// cross-schema atomicity. Database failures are classified SaveErrors and
// never retried here; retrying a serialization failure is the caller's
// decision.
func (e *Engine) SaveForm(ctx context.Context, delta write.Delta) (*write.Result, error) {
	return write.Save(ctx, e.env, e.reg, e.codecs, delta)
}

// debugEnv wraps every driver handed out by env with the debug logger.
type debugEnv struct {
	env   dialect.Env
	print func(...any)
}

func (d debugEnv) Driver(schema string) (dialect.Driver, error) {
	drv, err := d.env.Driver(schema)
	if err != nil {
		return nil, err
	}
	return dialect.Debug(drv, d.print), nil
}
