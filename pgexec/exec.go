package pgexec

import (
	"context"
	"errors"

	"github.com/yenda/formsql/dialect"
)

// Statement is one compiled SQL statement with positional parameters.
type Statement struct {
	SQL  string
	Args []any
}

// Plan is an ordered, single-schema statement list: inserts first, then
// updates and deletes. A plan is built fresh per write call and executed
// exactly once.
type Plan struct {
	Inserts []Statement
	Writes  []Statement
}

// Empty reports if the plan holds no statements.
func (p Plan) Empty() bool {
	return len(p.Inserts) == 0 && len(p.Writes) == 0
}

// deferConstraints defers all constraint checking for the duration of the
// transaction. A single delta may insert a referencing row before its
// referent, or temporarily violate a foreign key while an orphan is being
// replaced; the schema declares its constraints DEFERRABLE INITIALLY
// DEFERRED to match.
const deferConstraints = "SET CONSTRAINTS ALL DEFERRED"

// Run executes the plan on one transaction and commits. Any database error
// rolls the transaction back and is returned as a classified SaveError;
// there is no partial success and no automatic retry.
func Run(ctx context.Context, drv dialect.Driver, p Plan) error {
	if p.Empty() {
		return nil
	}
	tx, err := drv.Tx(ctx)
	if err != nil {
		return NewSaveError(err)
	}
	if err := run(ctx, tx, p); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err.err = errors.Join(err.err, rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return NewSaveError(err)
	}
	return nil
}

func run(ctx context.Context, tx dialect.Tx, p Plan) *SaveError {
	if err := tx.Exec(ctx, deferConstraints, []any{}, nil); err != nil {
		return NewSaveError(err)
	}
	for _, s := range p.Inserts {
		if err := tx.Exec(ctx, s.SQL, s.Args, nil); err != nil {
			return NewSaveError(err)
		}
	}
	for _, s := range p.Writes {
		if err := tx.Exec(ctx, s.SQL, s.Args, nil); err != nil {
			return NewSaveError(err)
		}
	}
	return nil
}
