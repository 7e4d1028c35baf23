// Package dsg builds C4's Direct Serialization Graph: a directed graph over
// committed transactions whose edges are labelled WW, WR, RW, and/or PRW,
// derived from a history's resolved reads and inferred per-object version
// orders.
package dsg

import (
	"sort"

	"github.com/isochk/isochk/internal/history"
	"github.com/isochk/isochk/internal/resolver"
)

// EdgeKind is one of the four Adya dependency kinds. A single Edge may carry
// more than one kind between the same ordered pair of transactions.
type EdgeKind uint8

const (
	WW EdgeKind = 1 << iota
	WR
	RW
	PRW
)

func (k EdgeKind) String() string {
	switch k {
	case WW:
		return "ww"
	case WR:
		return "wr"
	case RW:
		return "rw"
	case PRW:
		return "prw"
	default:
		return "?"
	}
}

// Labels is a bitmask of EdgeKind values.
type Labels uint8

// Has reports whether the label set contains k.
func (l Labels) Has(k EdgeKind) bool { return l&Labels(k) != 0 }

// Kinds returns the set kinds in canonical (WW, WR, RW, PRW) order.
func (l Labels) Kinds() []EdgeKind {
	var out []EdgeKind
	for _, k := range []EdgeKind{WW, WR, RW, PRW} {
		if l.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

func (l Labels) String() string {
	s := ""
	for _, k := range l.Kinds() {
		if s != "" {
			s += ","
		}
		s += k.String()
	}
	return s
}

// Justification records the concrete operations that justify one label kind
// on an edge, kept for human-readable explanation.
type Justification struct {
	Kind EdgeKind
	Obj  history.ObjKey
	Ops  []history.OpRef
}

// Edge is a single DSG edge between two committed transactions, carrying the
// union of every label kind justified between them.
type Edge struct {
	From, To       history.TxID
	Labels         Labels
	Justifications []Justification
}

// Graph is the frozen Direct Serialization Graph over one history.
type Graph struct {
	nodes []history.TxID
	adj   map[history.TxID]map[history.TxID]*Edge
}

// Nodes returns every committed transaction id that participates in the
// graph (has at least one edge), ascending. Use history.Committed() for the
// full set of committed transactions including isolated ones.
func (g *Graph) Nodes() []history.TxID { return append([]history.TxID(nil), g.nodes...) }

// Edges returns every edge, ordered by (From, To).
func (g *Graph) Edges() []*Edge {
	var out []*Edge
	for _, m := range g.adj {
		for _, e := range m {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// Successors returns the transactions tx has an outgoing edge to, ascending.
func (g *Graph) Successors(tx history.TxID) []history.TxID {
	m := g.adj[tx]
	out := make([]history.TxID, 0, len(m))
	for to := range m {
		out = append(out, to)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Edge returns the edge from -> to, if one exists.
func (g *Graph) Edge(from, to history.TxID) (*Edge, bool) {
	m, ok := g.adj[from]
	if !ok {
		return nil, false
	}
	e, ok := m[to]
	return e, ok
}

type builder struct {
	adj   map[history.TxID]map[history.TxID]*Edge
	nodes map[history.TxID]bool
}

func newBuilder() *builder {
	return &builder{adj: make(map[history.TxID]map[history.TxID]*Edge), nodes: make(map[history.TxID]bool)}
}

func (b *builder) addEdge(from, to history.TxID, kind EdgeKind, j Justification) {
	if from == to {
		return
	}
	b.nodes[from] = true
	b.nodes[to] = true
	m, ok := b.adj[from]
	if !ok {
		m = make(map[history.TxID]*Edge)
		b.adj[from] = m
	}
	e, ok := m[to]
	if !ok {
		e = &Edge{From: from, To: to}
		m[to] = e
	}
	e.Labels |= Labels(kind)
	e.Justifications = append(e.Justifications, j)
}

func (b *builder) freeze() *Graph {
	nodes := make([]history.TxID, 0, len(b.nodes))
	for n := range b.nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	return &Graph{nodes: nodes, adj: b.adj}
}

// Warning is a non-fatal issue found while building the DSG: the affected
// object's writes are excluded from the graph but the rest of the build
// proceeds (spec §7: "affected objects excluded from DSG").
type Warning struct {
	Obj history.ObjKey
	Err error
}

// Build constructs the DSG from h and a prior resolver.Resolve(h) result.
func Build(h *history.History, res resolver.Result) (*Graph, []Warning, error) {
	b := newBuilder()
	var warnings []Warning

	orders := make(map[history.ObjKey]versionOrder)
	for _, obj := range h.Objects() {
		vo, err := inferVersionOrder(h, obj, res)
		if err != nil {
			warnings = append(warnings, Warning{Obj: obj, Err: err})
			continue
		}
		orders[obj] = vo
		addWW(b, vo)
	}

	addWR(b, h, res)
	addRW(b, h, res, orders)
	addPRW(b, h, orders)

	return b.freeze(), warnings, nil
}

func addWW(b *builder, vo versionOrder) {
	for i := 0; i+1 < len(vo.writes); i++ {
		from, to := vo.writes[i].Tx, vo.writes[i+1].Tx
		b.addEdge(from, to, WW, Justification{Kind: WW, Obj: vo.obj, Ops: []history.OpRef{vo.writes[i], vo.writes[i+1]}})
	}
}

func addWR(b *builder, h *history.History, res resolver.Result) {
	for key, src := range res.Sources {
		if src.Kind != resolver.SourceCommittedFinal {
			continue
		}
		reader, ok := h.Tx(key.Read.Tx)
		if !ok || reader.Outcome != history.Committed {
			continue
		}
		writerTx := src.Write.Tx
		wtx, ok := h.Tx(writerTx)
		if !ok || wtx.Outcome != history.Committed {
			continue
		}
		b.addEdge(writerTx, key.Read.Tx, WR, Justification{Kind: WR, Obj: key.Obj, Ops: []history.OpRef{src.Write, key.Read}})
	}
}

func addRW(b *builder, h *history.History, res resolver.Result, orders map[history.ObjKey]versionOrder) {
	for key, src := range res.Sources {
		if src.Kind != resolver.SourceCommittedFinal && src.Kind != resolver.SourceInitial {
			continue
		}
		reader, ok := h.Tx(key.Read.Tx)
		if !ok || reader.Outcome != history.Committed {
			continue
		}
		vo, ok := orders[key.Obj]
		if !ok {
			continue
		}
		succ, ok := vo.successor(src.Write)
		if !ok {
			continue
		}
		succTx, ok := h.Tx(succ.Tx)
		if !ok || succTx.Outcome != history.Committed || succ.Tx == key.Read.Tx {
			continue
		}
		b.addEdge(key.Read.Tx, succ.Tx, RW, Justification{Kind: RW, Obj: key.Obj, Ops: []history.OpRef{key.Read, succ}})
	}
}
