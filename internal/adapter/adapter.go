// Package adapter documents and types the boundary between the generator and
// a concrete database: translating abstract Operations into native SQL and
// reporting per-transaction outcomes truthfully. The core never imports this
// package; it is consumed only by internal/generator.
package adapter

import (
	"context"

	"github.com/isochk/isochk/internal/anomaly"
	"github.com/isochk/isochk/internal/history"
)

// Adapter dials a target database and opens Sessions against it.
type Adapter interface {
	Begin(ctx context.Context, level anomaly.Level) (Session, error)
	Close(ctx context.Context) error
}

// Session is one open transaction against the target.
type Session interface {
	Execute(ctx context.Context, op history.OpKind, args OpArgs) (OpResult, error)
	Commit(ctx context.Context) (history.Outcome, error)
	Rollback(ctx context.Context) error
}

// OpArgs carries the arguments for a single Operation, shaped by op.Kind:
// Read/Write use Obj and (for Write) Value; PredicateRead/PredicateWrite use
// Pred and (for PredicateWrite) Value, and sqladapter ignores Obj for them,
// scanning its configured table.
type OpArgs struct {
	Obj   history.ObjKey
	Value history.Value
	Pred  history.Predicate
}

// OpResult carries whatever the adapter observed executing one Operation,
// shaped the same way history.Operation's read-side fields are: a plain
// read's Value, or a predicate read/write's row set.
type OpResult struct {
	Value    history.Value
	Matched  []history.Row
	Affected []history.Row
}
