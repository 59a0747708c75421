// Package dialect provides the database abstraction consumed by the
// formsql engine.
//
// The engine is PostgreSQL-only; the package nevertheless keeps the usual
// driver/transaction split so pools, debug wrappers and mocks compose.
//
// # Driver Interface
//
// The Driver interface is the handle the engine runs statements on:
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// # Transaction Interface
//
// The Tx interface extends ExecQuerier with transaction control:
//
//	type Tx interface {
//	    ExecQuerier
//	    Commit() error
//	    Rollback() error
//	}
//
// # Environment
//
// Env maps a logical schema name to the driver serving it. Every resolver
// invocation and every save receives an Env; the engine never creates or
// closes the pools behind it:
//
//	env := dialect.StaticEnv{"main": drv}
//
// # Usage
//
//	import (
//	    "github.com/yenda/formsql/dialect"
//	    "github.com/yenda/formsql/dialect/sql"
//	)
//
//	drv, err := sql.Open(dialect.Postgres, "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
// Wrapping a driver for debug logging:
//
//	drv = dialect.Debug(drv, log.Println)
package dialect
