package dialect

import (
	"context"
	"fmt"
)

// Postgres is the only dialect the engine speaks. The constant exists so
// driver registration and tests name the dialect in one place.
const Postgres = "postgres"

// ExecQuerier wraps the Exec and Query operations shared by drivers,
// transactions and anything else that can run a statement.
type ExecQuerier interface {
	// Exec executes a statement that does not return rows. The args
	// argument must be a []any. If v is non-nil it must be a *sql.Result.
	Exec(ctx context.Context, query string, args, v any) error
	// Query executes a statement that returns rows. The args argument
	// must be a []any and v must be a *sql.Rows.
	Query(ctx context.Context, query string, args, v any) error
}

// Driver is the minimal handle the engine requires from a connection pool.
// The pool's creation, sizing and closing are owned by the caller; the
// engine only acquires transactions and runs statements on it.
type Driver interface {
	ExecQuerier
	// Tx starts and returns a new transaction.
	Tx(context.Context) (Tx, error)
	// Close closes the underlying pool.
	Close() error
	// Dialect returns the dialect name.
	Dialect() string
}

// Tx is a transaction handle.
type Tx interface {
	ExecQuerier
	Commit() error
	Rollback() error
}

// Env supplies the driver serving each logical schema. Generated resolvers
// and the write engine receive an Env on every call; they never own or
// lifecycle-manage the pools behind it.
type Env interface {
	Driver(schema string) (Driver, error)
}

// StaticEnv is an Env backed by a fixed schema-to-driver map.
type StaticEnv map[string]Driver

// Driver returns the driver registered for schema.
func (e StaticEnv) Driver(schema string) (Driver, error) {
	drv, ok := e[schema]
	if !ok {
		return nil, fmt.Errorf("dialect: no driver registered for schema %q", schema)
	}
	return drv, nil
}

// DebugDriver is a driver that logs all driver operations.
type DebugDriver struct {
	Driver              // underlying driver.
	print func(...any) // log function.
}

// Debug gets a driver and a logging function, and returns
// a new debugged-driver that prints all outgoing operations.
func Debug(d Driver, print func(...any)) Driver {
	return &DebugDriver{d, print}
}

// Exec logs its params and calls the underlying driver Exec method.
func (d *DebugDriver) Exec(ctx context.Context, query string, args, v any) error {
	d.print(fmt.Sprintf("driver.Exec: query=%v args=%v", query, args))
	return d.Driver.Exec(ctx, query, args, v)
}

// Query logs its params and calls the underlying driver Query method.
func (d *DebugDriver) Query(ctx context.Context, query string, args, v any) error {
	d.print(fmt.Sprintf("driver.Query: query=%v args=%v", query, args))
	return d.Driver.Query(ctx, query, args, v)
}

// Tx adds an log-id for the transaction and calls the underlying driver Tx command.
func (d *DebugDriver) Tx(ctx context.Context) (Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	d.print("driver.Tx: started")
	return &DebugTx{tx, d.print}, nil
}

// DebugTx is a transaction implementation that logs all transaction operations.
type DebugTx struct {
	Tx                  // underlying transaction.
	print func(...any) // log function.
}

// Exec logs its params and calls the underlying transaction Exec method.
func (d *DebugTx) Exec(ctx context.Context, query string, args, v any) error {
	d.print(fmt.Sprintf("Tx.Exec: query=%v args=%v", query, args))
	return d.Tx.Exec(ctx, query, args, v)
}

// Query logs its params and calls the underlying transaction Query method.
func (d *DebugTx) Query(ctx context.Context, query string, args, v any) error {
	d.print(fmt.Sprintf("Tx.Query: query=%v args=%v", query, args))
	return d.Tx.Query(ctx, query, args, v)
}

// Commit logs this step and calls the underlying transaction Commit method.
func (d *DebugTx) Commit() error {
	d.print("Tx.Commit")
	return d.Tx.Commit()
}

// Rollback logs this step and calls the underlying transaction Rollback method.
func (d *DebugTx) Rollback() error {
	d.print("Tx.Rollback")
	return d.Tx.Rollback()
}
