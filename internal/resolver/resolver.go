// Package resolver implements C2 of the analysis pipeline: for every read in
// a history, it identifies which write (if any) produced the observed value.
package resolver

import (
	"fmt"
	"sort"

	"github.com/isochk/isochk/internal/history"
)

// SourceKind classifies how a read was resolved.
type SourceKind int

const (
	// SourceInitial means the read observed T0's value for the object.
	SourceInitial SourceKind = iota
	// SourceSelfWrite means the read observed a prior write by its own transaction.
	SourceSelfWrite
	// SourceCommittedFinal means the read observed another transaction's
	// final (non-superseded) committed write.
	SourceCommittedFinal
	// SourceCommittedIntermediate means the read observed a write that was
	// later superseded within the same, otherwise-committed transaction —
	// a G1b witness.
	SourceCommittedIntermediate
	// SourceAborted means the read observed a write from a transaction that
	// later aborted — a G1a witness.
	SourceAborted
	// SourceUnresolved means no write could be matched to the observed
	// value, or the only candidate write belongs to an UNKNOWN-outcome
	// transaction.
	SourceUnresolved
)

func (k SourceKind) String() string {
	switch k {
	case SourceInitial:
		return "initial"
	case SourceSelfWrite:
		return "self-write"
	case SourceCommittedFinal:
		return "committed-final"
	case SourceCommittedIntermediate:
		return "committed-intermediate"
	case SourceAborted:
		return "aborted"
	default:
		return "unresolved"
	}
}

// ResolvedSource is the outcome of resolving one read.
type ResolvedSource struct {
	Kind  SourceKind
	Write history.OpRef // zero value when Kind == SourceUnresolved
}

// ReadKey addresses a single object-read: the operation that performed it
// plus the object whose value was observed. For a plain Read, Obj is always
// the operation's own Obj field. For a PredicateRead, which may observe
// several rows in one operation, Obj distinguishes which row's resolution
// this key names — a plain OpRef cannot, since every row shares it.
type ReadKey struct {
	Read history.OpRef
	Obj  history.ObjKey
}

// IntegrityWarning flags a read that degraded to Unresolved because its only
// candidate write belonged to a transaction whose outcome is UNKNOWN —
// surfaced as a warning, not a hard error, per the UNKNOWN-outcome policy.
type IntegrityWarning struct {
	Read  ReadKey
	Write history.OpRef
}

// IntegrityError flags a read with no matching write at all, or any other
// condition that makes the history impossible to interpret soundly.
type IntegrityError struct {
	Read ReadKey
	Msg  string
}

func (e IntegrityError) Error() string {
	return fmt.Sprintf("resolver: %s/%s resolves to no write (%s)", e.Read.Read, e.Read.Obj, e.Msg)
}

// Result is the full resolution of a history's reads.
type Result struct {
	Sources   map[ReadKey]ResolvedSource
	Warnings  []IntegrityWarning
	Integrity []IntegrityError
}

// candidate is a write considered while resolving a single read.
type candidate struct {
	op      history.Operation
	tx      history.Transaction
	isFinal bool // true if this is the writer's last write to the object
}

// Resolve computes ResolvedSource for every read operation in h, applying
// the deterministic tie-breaking policy required so identical histories
// always produce identical resolutions.
func Resolve(h *history.History) Result {
	res := Result{Sources: make(map[ReadKey]ResolvedSource)}

	for _, obj := range h.Objects() {
		writers := collectWriters(h, obj)
		for _, readRef := range h.ReadsOf(obj) {
			op, _ := h.Operation(readRef)
			switch op.Kind {
			case history.OpRead:
				resolveOne(h, &res, readRef, op.Tx, op.Seq, obj, op.Value, writers)
			case history.OpPredicateRead:
				for _, row := range op.Matched {
					if row.Obj != obj {
						continue
					}
					resolveOne(h, &res, readRef, op.Tx, op.Seq, obj, row.Value, writers)
				}
			}
		}
	}
	return res
}

// collectWriters gathers, per writer transaction, whether each of its writes
// to obj is that transaction's final write, sorted by writer TxID ascending
// then by sequence number for deterministic iteration.
func collectWriters(h *history.History, obj history.ObjKey) []candidate {
	var out []candidate
	for _, ref := range h.WritesOf(obj) {
		op, ok := h.Operation(ref)
		if !ok {
			continue
		}
		tx, ok := h.Tx(op.Tx)
		if !ok {
			continue
		}
		final, _ := tx.FinalWrite(obj)
		out = append(out, candidate{op: op, tx: tx, isFinal: final.Seq == op.Seq})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].op.Tx != out[j].op.Tx {
			return out[i].op.Tx < out[j].op.Tx
		}
		return out[i].op.Seq < out[j].op.Seq
	})
	return out
}

func resolveOne(h *history.History, res *Result, readRef history.OpRef, readerTx history.TxID, readerSeq int, obj history.ObjKey, observed history.Value, writers []candidate) {
	reader, _ := h.Tx(readerTx)
	key := ReadKey{Read: readRef, Obj: obj}

	// 1. Another committed transaction's final write with a matching value.
	if src, ok := pickCommittedFinal(writers, readerTx, reader, obj, observed); ok {
		res.Sources[key] = src
		return
	}

	// 2. A prior write by the reader's own transaction (reads-own-writes).
	if src, ok := pickSelfWrite(reader, readerSeq, obj, observed); ok {
		res.Sources[key] = src
		return
	}

	// 3. T0's initial value.
	if t0, ok := h.Tx(history.T0); ok {
		if w, ok := t0.FinalWrite(obj); ok {
			if v, ok := w.WriteValueFor(obj); ok && v == observed {
				res.Sources[key] = ResolvedSource{Kind: SourceInitial, Write: w.Ref()}
				return
			}
		}
	}

	// 4. An aborted transaction's write (G1a witness).
	for _, c := range writers {
		if c.tx.Outcome != history.Aborted {
			continue
		}
		if v, ok := c.op.WriteValueFor(obj); ok && v == observed {
			res.Sources[key] = ResolvedSource{Kind: SourceAborted, Write: c.op.Ref()}
			return
		}
	}

	// 5. A non-final write of an otherwise-committed transaction (G1b
	// witness) — only counts if that transaction later wrote obj again.
	for _, c := range writers {
		if c.tx.Outcome != history.Committed || c.isFinal {
			continue
		}
		if v, ok := c.op.WriteValueFor(obj); ok && v == observed {
			res.Sources[key] = ResolvedSource{Kind: SourceCommittedIntermediate, Write: c.op.Ref()}
			return
		}
	}

	// 6. A write belonging to a transaction whose outcome is still unknown:
	// we cannot say whether this is a legitimate read or a dirty read, so
	// the read degrades to Unresolved with a warning rather than a hard
	// integrity error.
	for _, c := range writers {
		if c.tx.Outcome != history.Unknown {
			continue
		}
		if v, ok := c.op.WriteValueFor(obj); ok && v == observed {
			res.Sources[key] = ResolvedSource{Kind: SourceUnresolved}
			res.Warnings = append(res.Warnings, IntegrityWarning{Read: key, Write: c.op.Ref()})
			return
		}
	}

	// 7. No matching write anywhere: a hard integrity error.
	res.Sources[key] = ResolvedSource{Kind: SourceUnresolved}
	res.Integrity = append(res.Integrity, IntegrityError{Read: key, Msg: "no write produced the observed value"})
}

func pickSelfWrite(reader history.Transaction, readerSeq int, obj history.ObjKey, observed history.Value) (ResolvedSource, bool) {
	var best history.Operation
	found := false
	for _, op := range reader.Ops {
		if op.Seq >= readerSeq || !op.IsWrite() {
			continue
		}
		v, ok := op.WriteValueFor(obj)
		if !ok || v != observed {
			continue
		}
		if !found || op.Seq > best.Seq {
			best, found = op, true
		}
	}
	if !found {
		return ResolvedSource{}, false
	}
	return ResolvedSource{Kind: SourceSelfWrite, Write: best.Ref()}, true
}

// pickCommittedFinal applies the tie-breaking policy of spec §4.2: among
// committed, final writes (by transactions other than the reader and T0,
// whose writes resolve as SourceInitial) carrying
// the observed value, prefer the latest-committing write that precedes the
// reader's own commit when stamps are available for both sides, else the
// write whose transaction has the smallest id.
func pickCommittedFinal(writers []candidate, readerTx history.TxID, reader history.Transaction, obj history.ObjKey, observed history.Value) (ResolvedSource, bool) {
	var matches []candidate
	for _, c := range writers {
		if c.tx.Outcome != history.Committed || !c.isFinal || c.tx.ID == readerTx || c.tx.ID == history.T0 {
			continue
		}
		v, ok := c.op.WriteValueFor(obj)
		if !ok || v != observed {
			continue
		}
		matches = append(matches, c)
	}
	if len(matches) == 0 {
		return ResolvedSource{}, false
	}
	if len(matches) == 1 {
		return ResolvedSource{Kind: SourceCommittedFinal, Write: matches[0].op.Ref()}, true
	}

	haveReaderStamp := reader.End.Valid
	best := matches[0]
	bestHasUsableStamp := haveReaderStamp && best.tx.End.Valid && best.tx.End.At <= reader.End.At
	for _, c := range matches[1:] {
		cHasUsableStamp := haveReaderStamp && c.tx.End.Valid && c.tx.End.At <= reader.End.At
		switch {
		case cHasUsableStamp && !bestHasUsableStamp:
			best, bestHasUsableStamp = c, true
		case cHasUsableStamp && bestHasUsableStamp:
			if c.tx.End.At > best.tx.End.At || (c.tx.End.At == best.tx.End.At && c.tx.ID < best.tx.ID) {
				best = c
			}
		case !cHasUsableStamp && !bestHasUsableStamp:
			if c.tx.ID < best.tx.ID {
				best = c
			}
		}
	}
	return ResolvedSource{Kind: SourceCommittedFinal, Write: best.op.Ref()}, true
}
