package dsg

import (
	"fmt"
	"sort"

	"github.com/isochk/isochk/internal/history"
	"github.com/isochk/isochk/internal/resolver"
)

// versionOrder is the inferred total order over committed final writes to a
// single object, T0's initial write always occupying position 0.
type versionOrder struct {
	obj    history.ObjKey
	writes []history.OpRef // writes[i] is the writer whose final write holds position i
}

func (vo versionOrder) indexOf(ref history.OpRef) (int, bool) {
	for i, w := range vo.writes {
		if w == ref {
			return i, true
		}
	}
	return 0, false
}

// successor returns the write that immediately follows ref in vo, if any.
func (vo versionOrder) successor(ref history.OpRef) (history.OpRef, bool) {
	i, ok := vo.indexOf(ref)
	if !ok || i+1 >= len(vo.writes) {
		return history.OpRef{}, false
	}
	return vo.writes[i+1], true
}

// VersionConflict reports that no total order over an object's committed
// writes is consistent with the observed reads.
type VersionConflict struct {
	Obj history.ObjKey
}

func (c VersionConflict) Error() string {
	return fmt.Sprintf("dsg: no consistent version order for object %q", c.Obj)
}

// inferVersionOrder computes the per-object version order described in spec
// §4.4: commit-stamp order when every committed writer of the object carries
// a usable stamp, else a deterministic order built from wr-induced
// constraints (a transaction that reads a version and later writes the same
// object must be ordered after what it read), topologically sorted to
// minimize RW edges — writes with a pending non-writing reader are deferred
// as late as the constraints allow — with any remaining freedom broken by
// ascending transaction id, the same tie-break used elsewhere, so it never
// depends on map iteration order.
func inferVersionOrder(h *history.History, obj history.ObjKey, res resolver.Result) (versionOrder, error) {
	finalWriters := committedFinalWriters(h, obj)

	t0, _ := h.Tx(history.T0)
	t0Write, hasT0Write := t0.FinalWrite(obj)

	nodes := make([]history.OpRef, 0, len(finalWriters)+1)
	if hasT0Write {
		nodes = append(nodes, t0Write.Ref())
	}
	for _, w := range finalWriters {
		nodes = append(nodes, w.Ref())
	}
	if len(nodes) <= 1 {
		return versionOrder{obj: obj, writes: nodes}, nil
	}

	if order, ok := stampOrder(h, nodes); ok {
		return versionOrder{obj: obj, writes: order}, nil
	}

	order, err := constraintOrder(h, obj, nodes, res)
	if err != nil {
		return versionOrder{}, err
	}
	return versionOrder{obj: obj, writes: order}, nil
}

func committedFinalWriters(h *history.History, obj history.ObjKey) []history.Operation {
	var out []history.Operation
	seen := make(map[history.TxID]bool)
	for _, ref := range h.WritesOf(obj) {
		tx, ok := h.Tx(ref.Tx)
		if !ok || tx.Outcome != history.Committed || seen[tx.ID] {
			continue
		}
		final, ok := tx.FinalWrite(obj)
		if !ok {
			continue
		}
		seen[tx.ID] = true
		out = append(out, final)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tx < out[j].Tx })
	return out
}

// stampOrder orders nodes by commit stamp, succeeding only when every node's
// transaction (T0 excepted, which is always first) carries a valid End
// stamp.
func stampOrder(h *history.History, nodes []history.OpRef) ([]history.OpRef, bool) {
	type stamped struct {
		ref   history.OpRef
		stamp int64
	}
	var list []stamped
	for _, ref := range nodes {
		if ref.Tx == history.T0 {
			list = append(list, stamped{ref: ref, stamp: minInt64})
			continue
		}
		tx, ok := h.Tx(ref.Tx)
		if !ok || !tx.End.Valid {
			return nil, false
		}
		list = append(list, stamped{ref: ref, stamp: tx.End.At})
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].stamp != list[j].stamp {
			return list[i].stamp < list[j].stamp
		}
		return list[i].ref.Tx < list[j].ref.Tx
	})
	out := make([]history.OpRef, len(list))
	for i, s := range list {
		out[i] = s.ref
	}
	return out, true
}

const minInt64 = -1 << 63

// constraintOrder builds a "must precede" DAG from wr-induced constraints —
// a transaction that read version W of obj and later (in version order, by
// virtue of also being a committed final writer of obj) wrote obj again must
// come after W — and topologically sorts it. Spec §4.4 requires picking,
// among every order consistent with the observed reads, the one that
// minimizes RW edges, ties broken by tx id. A write only grows an RW edge
// when something else in version order succeeds it and some committed
// transaction read it without itself writing obj (a "pending read"); placing
// such a write last avoids that edge entirely. T0's initial write is always
// placed first. After that, at each step of the topological sort, among nodes
// with no remaining predecessor, a node with no
// pending read is preferred over one with a pending read — this defers every
// pending-read node as late as the DAG allows, including all the way to the
// end when nothing else forces it earlier — and only once every candidate
// either does or doesn't have a pending read does ascending transaction id
// break the remaining tie.
func constraintOrder(h *history.History, obj history.ObjKey, nodes []history.OpRef, res resolver.Result) ([]history.OpRef, error) {
	index := make(map[history.OpRef]int, len(nodes))
	for i, n := range nodes {
		index[n] = i
	}

	before := make(map[int]map[int]bool) // before[i][j]: i must precede j
	for i := range nodes {
		before[i] = make(map[int]bool)
	}
	pendingRead := make([]bool, len(nodes)) // pendingRead[i]: some non-writing reader observed nodes[i]

	for _, readerRef := range h.ReadsOf(obj) {
		readerOp, _ := h.Operation(readerRef)
		readerTx, _ := h.Tx(readerOp.Tx)
		if readerTx.Outcome != history.Committed {
			continue
		}
		src, ok := res.Sources[resolver.ReadKey{Read: readerRef, Obj: obj}]
		if !ok || src.Kind == resolver.SourceUnresolved {
			continue
		}
		wi, ok := index[src.Write]
		if !ok {
			continue // read observed an aborted/intermediate write: no version-order node
		}

		writerFinal, hasOwnWrite := readerTx.FinalWrite(obj)
		if !hasOwnWrite {
			pendingRead[wi] = true
			continue // reader never wrote obj itself; no ordering constraint from this read alone
		}
		wj, ok := index[writerFinal.Ref()]
		if !ok {
			continue
		}
		if wi == wj {
			continue // self-write observed; no ordering information
		}
		before[wi][wj] = true
	}

	order := make([]history.OpRef, 0, len(nodes))
	remaining := make(map[int]bool, len(nodes))
	for i := range nodes {
		remaining[i] = true
	}
	indegree := make(map[int]int, len(nodes))
	for i := range nodes {
		for j := range before[i] {
			indegree[j]++
		}
	}

	for len(remaining) > 0 {
		var pick = -1
		candidates := make([]int, 0, len(remaining))
		for i := range remaining {
			if indegree[i] == 0 {
				candidates = append(candidates, i)
			}
		}
		if len(candidates) == 0 {
			return nil, VersionConflict{Obj: obj}
		}
		sort.Slice(candidates, func(a, b int) bool {
			ca, cb := candidates[a], candidates[b]
			if (nodes[ca].Tx == history.T0) != (nodes[cb].Tx == history.T0) {
				return nodes[ca].Tx == history.T0
			}
			if pendingRead[ca] != pendingRead[cb] {
				return !pendingRead[ca]
			}
			return nodes[ca].Tx < nodes[cb].Tx
		})
		pick = candidates[0]
		order = append(order, nodes[pick])
		delete(remaining, pick)
		for j := range before[pick] {
			indegree[j]--
		}
		delete(indegree, pick)
	}
	return order, nil
}
