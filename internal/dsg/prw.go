package dsg

import (
	"github.com/isochk/isochk/internal/history"
)

// addPRW emits predicate antidependency edges (spec §4.4): for a predicate
// read P in T and a committed write U that is, in the relevant object's
// version order, the immediate successor of the version P observed, PRW(T,U)
// is recorded whenever U's write would change P's result set (an insert,
// delete, or update of a matched row).
//
// "The version P observed" is approximated here by consistency: a write's
// predecessor version is a candidate match for what P saw if the predicate's
// matched/unmatched verdict for that predecessor value agrees with whether
// P actually reported the object. Histories built by the generator always
// satisfy this by construction, since a predicate read's Matched set is
// exactly the set of rows the snapshot it ran against contains.
func addPRW(b *builder, h *history.History, orders map[history.ObjKey]versionOrder) {
	reads := collectPredicateReads(h)

	for obj, vo := range orders {
		for i, uRef := range vo.writes {
			uOp, ok := h.Operation(uRef)
			if !ok || uOp.Tx == history.T0 {
				continue
			}
			uTx, ok := h.Tx(uOp.Tx)
			if !ok || uTx.Outcome != history.Committed {
				continue
			}
			newValue, ok := uOp.WriteValueFor(obj)
			if !ok {
				continue
			}

			var prevValue history.Value
			if i > 0 {
				prevOp, _ := h.Operation(vo.writes[i-1])
				if v, ok := prevOp.WriteValueFor(obj); ok {
					prevValue = v
				}
			}

			for _, pr := range reads {
				if pr.tx == uOp.Tx {
					continue
				}
				if !predicateConsistentWith(pr.op, obj, prevValue) {
					continue
				}
				before := pr.op.Pred.Matches(prevValue)
				after := pr.op.Pred.Matches(newValue)
				if before == after {
					continue
				}
				b.addEdge(pr.tx, uOp.Tx, PRW, Justification{Kind: PRW, Obj: obj, Ops: []history.OpRef{pr.ref, uRef}})
			}
		}
	}
}

type predicateRead struct {
	tx  history.TxID
	ref history.OpRef
	op  history.Operation
}

func collectPredicateReads(h *history.History) []predicateRead {
	var out []predicateRead
	for _, txID := range h.Committed() {
		tx, _ := h.Tx(txID)
		for _, op := range tx.Ops {
			if op.Kind != history.OpPredicateRead {
				continue
			}
			out = append(out, predicateRead{tx: txID, ref: op.Ref(), op: op})
		}
	}
	return out
}

// predicateConsistentWith reports whether value v for obj is compatible
// with what pr actually observed: if pr's matched set contains obj, v must
// equal the recorded row's value; if it does not, v must not satisfy the
// predicate (so its absence from the matched set is explained).
func predicateConsistentWith(pr history.Operation, obj history.ObjKey, v history.Value) bool {
	for _, row := range pr.Matched {
		if row.Obj == obj {
			return row.Value == v
		}
	}
	return !pr.Pred.Matches(v)
}
