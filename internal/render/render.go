// Package render implements C7: emitting a portable textual graph
// description (Graphviz DOT) for either the full DSG or a single reported
// cycle, and a one-line human-readable summary per anomaly.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/isochk/isochk/internal/anomaly"
	"github.com/isochk/isochk/internal/cycles"
	"github.com/isochk/isochk/internal/dsg"
	"github.com/isochk/isochk/internal/history"
)

// DOT renders the full DSG: one node per transaction, one edge per Edge
// labelled with its kind set. Output is deterministic (nodes and edges in
// ascending id order) so repeated invocations over the same graph are
// byte-equal, per the determinism requirement.
func DOT(g *dsg.Graph) string {
	var b strings.Builder
	b.WriteString("digraph dsg {\n")
	for _, n := range g.Nodes() {
		fmt.Fprintf(&b, "  T%d;\n", n)
	}
	for _, e := range g.Edges() {
		fmt.Fprintf(&b, "  T%d -> T%d [label=%q];\n", e.From, e.To, e.Labels.String())
	}
	b.WriteString("}\n")
	return b.String()
}

// CycleDOT renders a single cycle in isolation: its participating
// transactions and edges only, with the cycle's edges marked via a bold
// pen width so the cyclic path stands out when the DOT file is rendered as
// an image.
func CycleDOT(c cycles.Cycle) string {
	var b strings.Builder
	b.WriteString("digraph cycle {\n")
	for _, tx := range c.Txs {
		fmt.Fprintf(&b, "  T%d [style=filled,fillcolor=lightpink];\n", tx)
	}
	for _, e := range c.Edges() {
		fmt.Fprintf(&b, "  T%d -> T%d [label=%q,penwidth=2];\n", e.From, e.To, e.Labels.String())
	}
	b.WriteString("}\n")
	return b.String()
}

// HighlightedDOT renders the full DSG with every node and edge on cycle c
// highlighted, so a reader can see the anomaly in the context of the
// whole graph rather than in isolation.
func HighlightedDOT(g *dsg.Graph, c cycles.Cycle) string {
	onCycle := make(map[history.TxID]bool, len(c.Txs))
	for _, tx := range c.Txs {
		onCycle[tx] = true
	}
	cycleEdge := make(map[[2]history.TxID]bool, len(c.Txs))
	for _, e := range c.Edges() {
		cycleEdge[[2]history.TxID{e.From, e.To}] = true
	}

	var b strings.Builder
	b.WriteString("digraph dsg {\n")
	for _, n := range g.Nodes() {
		if onCycle[n] {
			fmt.Fprintf(&b, "  T%d [style=filled,fillcolor=lightpink];\n", n)
		} else {
			fmt.Fprintf(&b, "  T%d;\n", n)
		}
	}
	for _, e := range g.Edges() {
		if cycleEdge[[2]history.TxID{e.From, e.To}] {
			fmt.Fprintf(&b, "  T%d -> T%d [label=%q,penwidth=2,color=red];\n", e.From, e.To, e.Labels.String())
		} else {
			fmt.Fprintf(&b, "  T%d -> T%d [label=%q];\n", e.From, e.To, e.Labels.String())
		}
	}
	b.WriteString("}\n")
	return b.String()
}

// Summary renders one human-readable line per anomaly in ev, in the order
// given: the anomaly's name, its participating transactions, and one-line
// evidence (the cycle's edge path, or the implicated read/write for a
// non-cyclic finding).
func Summary(ev []anomaly.Evidence) []string {
	out := make([]string, 0, len(ev))
	for _, e := range ev {
		if e.Cycle != nil {
			out = append(out, fmt.Sprintf("%s: %s", e.Kind, cyclePath(*e.Cycle)))
			continue
		}
		out = append(out, fmt.Sprintf("%s: %s observed write %s", e.Kind, e.Read, e.Write))
	}
	return out
}

func cyclePath(c cycles.Cycle) string {
	var parts []string
	for i, tx := range c.Txs {
		parts = append(parts, fmt.Sprintf("T%d", tx))
		parts = append(parts, fmt.Sprintf("-[%s]->", c.Labels[i].String()))
	}
	parts = append(parts, fmt.Sprintf("T%d", c.Txs[0]))
	return strings.Join(parts, " ")
}

// CountByKind returns a stable-ordered tally of how many anomalies of each
// kind appear in ev, used by the CLI's colored summary.
func CountByKind(ev []anomaly.Evidence) []struct {
	Kind  anomaly.Kind
	Count int
} {
	counts := make(map[anomaly.Kind]int)
	for _, e := range ev {
		counts[e.Kind]++
	}
	kinds := make([]anomaly.Kind, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	out := make([]struct {
		Kind  anomaly.Kind
		Count int
	}, len(kinds))
	for i, k := range kinds {
		out[i].Kind = k
		out[i].Count = counts[k]
	}
	return out
}
