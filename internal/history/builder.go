package history

import (
	"fmt"
	"sort"
	"sync"
)

// Builder accumulates transactions and operations as a workload generator
// observes them, then freezes into an immutable History. A Builder is safe
// for concurrent use by multiple goroutines (the generator dispatches one
// goroutine per simulated connection); History itself is not mutable after
// Freeze and needs no further synchronization.
type Builder struct {
	mu      sync.Mutex
	started map[TxID]bool
	txs     map[TxID]*Transaction
	order   []TxID // first-seen order, for stable iteration before sorting
	frozen  bool
}

// NewBuilder creates a Builder pre-seeded with the conventional initial
// transaction T0, already committed.
func NewBuilder() *Builder {
	b := &Builder{
		started: make(map[TxID]bool),
		txs:     make(map[TxID]*Transaction),
	}
	b.txs[T0] = &Transaction{ID: T0, Outcome: Committed}
	b.started[T0] = true
	b.order = append(b.order, T0)
	return b
}

// BeginTx registers a new transaction id. It is an error to begin the same
// id twice.
func (b *Builder) BeginTx(id TxID, start Stamp) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return fmt.Errorf("history: builder already frozen")
	}
	if b.started[id] {
		return fmt.Errorf("history: transaction %d already begun", id)
	}
	b.started[id] = true
	b.txs[id] = &Transaction{ID: id, Start: start}
	b.order = append(b.order, id)
	return nil
}

// AddInitialWrite records T0's "write" of obj's pre-workload value (or
// absence, if v is history.Absent). Safe to call only before any other
// transaction reads obj.
func (b *Builder) AddInitialWrite(obj ObjKey, v Value) (OpRef, error) {
	return b.AddOp(T0, Operation{Kind: OpWrite, Obj: obj, Value: v})
}

// AddOp appends an operation to tx, assigning it the next sequence number.
// The caller supplies Kind/Obj/Value/Pred/Matched/Affected; Tx and Seq are
// set by AddOp.
func (b *Builder) AddOp(tx TxID, op Operation) (OpRef, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return OpRef{}, fmt.Errorf("history: builder already frozen")
	}
	t, ok := b.txs[tx]
	if !ok {
		return OpRef{}, fmt.Errorf("history: transaction %d not begun", tx)
	}
	op.Tx = tx
	op.Seq = len(t.Ops)
	t.Ops = append(t.Ops, op)
	return op.Ref(), nil
}

// SetOutcome records tx's terminal outcome. It is an error to set it twice
// with different values.
func (b *Builder) SetOutcome(tx TxID, outcome Outcome, end Stamp) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return fmt.Errorf("history: builder already frozen")
	}
	t, ok := b.txs[tx]
	if !ok {
		return fmt.Errorf("history: transaction %d not begun", tx)
	}
	if t.Outcome != Unknown && t.Outcome != outcome {
		return fmt.Errorf("history: transaction %d outcome already set to %s", tx, t.Outcome)
	}
	t.Outcome = outcome
	t.End = end
	return nil
}

// Freeze checks that no transaction has duplicate operation sequence numbers
// and returns an immutable snapshot. It does not check that every begun
// transaction had SetOutcome called: a transaction whose outcome was never
// set is indistinguishable from an explicit Unknown and freezes as Unknown.
//
// Freeze itself never rejects an UNKNOWN outcome: per the error-handling
// design, UNKNOWN transactions are a first-class (if second-class, for DSG
// purposes) citizen, not a builder error.
func (b *Builder) Freeze() (*History, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frozen {
		return nil, fmt.Errorf("history: builder already frozen")
	}

	ids := append([]TxID(nil), b.order...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	h := &History{
		byID:     make(map[TxID]int, len(ids)),
		writesOf: make(map[ObjKey][]OpRef),
		readsOf:  make(map[ObjKey][]OpRef),
	}

	for _, id := range ids {
		t := *b.txs[id]
		seen := make(map[int]bool, len(t.Ops))
		for _, op := range t.Ops {
			if seen[op.Seq] {
				return nil, fmt.Errorf("history: transaction %d has duplicate sequence number %d", id, op.Seq)
			}
			seen[op.Seq] = true
		}
		sort.Slice(t.Ops, func(i, j int) bool { return t.Ops[i].Seq < t.Ops[j].Seq })

		h.byID[id] = len(h.txs)
		h.txs = append(h.txs, t)

		for _, op := range t.Ops {
			ref := op.Ref()
			switch op.Kind {
			case OpWrite:
				h.writesOf[op.Obj] = append(h.writesOf[op.Obj], ref)
			case OpPredicateWrite:
				for _, row := range op.Affected {
					h.writesOf[row.Obj] = append(h.writesOf[row.Obj], ref)
				}
			case OpRead:
				h.readsOf[op.Obj] = append(h.readsOf[op.Obj], ref)
			case OpPredicateRead:
				for _, row := range op.Matched {
					h.readsOf[row.Obj] = append(h.readsOf[row.Obj], ref)
				}
			}
		}
	}

	b.frozen = true
	return h, nil
}
