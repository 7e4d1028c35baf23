// Package cycles implements C5: enumeration of simple cycles in a Direct
// Serialization Graph, classified by the edge labels they carry.
package cycles

import (
	"sort"
	"strconv"
	"strings"

	"github.com/isochk/isochk/internal/dsg"
	"github.com/isochk/isochk/internal/history"
)

// Cycle is a simple cycle in canonical form: rotated so it starts at its
// smallest transaction id, direction preserved, with the label set of each
// traversed edge.
type Cycle struct {
	Txs    []history.TxID // Txs[0] is the smallest id in the cycle
	Labels []dsg.Labels   // Labels[i] labels the edge Txs[i] -> Txs[(i+1)%len]
}

// Edges returns the cycle's edges as (from, to, labels) triples.
func (c Cycle) Edges() []dsg.Edge {
	out := make([]dsg.Edge, len(c.Txs))
	for i := range c.Txs {
		from := c.Txs[i]
		to := c.Txs[(i+1)%len(c.Txs)]
		out[i] = dsg.Edge{From: from, To: to, Labels: c.Labels[i]}
	}
	return out
}

func canonicalize(path []history.TxID, labels []dsg.Labels) Cycle {
	minIdx := 0
	for i := 1; i < len(path); i++ {
		if path[i] < path[minIdx] {
			minIdx = i
		}
	}
	n := len(path)
	txs := make([]history.TxID, n)
	lbl := make([]dsg.Labels, n)
	for i := 0; i < n; i++ {
		txs[i] = path[(minIdx+i)%n]
		lbl[i] = labels[(minIdx+i)%n]
	}
	return Cycle{Txs: txs, Labels: lbl}
}

func cycleKey(c Cycle) string {
	var b strings.Builder
	for _, id := range c.Txs {
		b.WriteString(strconv.Itoa(int(id)))
		b.WriteByte(',')
	}
	return b.String()
}

// Enumerate finds every simple cycle in g, deterministically ordered: SCCs
// are discovered by Tarjan's algorithm in reverse-finish order, and within
// each SCC cycles are discovered by a lexicographic DFS restarted from each
// member in ascending id order. A maxAnomalies <= 0 means unbounded; a
// positive value stops enumeration once that many distinct (deduplicated)
// cycles have been produced, per spec's cooperative max_anomalies cap. The actual
// reportable-anomaly cap is enforced by the anomaly package, which consumes
// this list in order.
func Enumerate(g *dsg.Graph, maxAnomalies int) []Cycle {
	sccs := tarjanSCCs(g)

	var all []Cycle
	seen := make(map[string]bool)
	for _, scc := range sccs {
		if len(scc) < 2 {
			continue
		}
		sort.Slice(scc, func(i, j int) bool { return scc[i] < scc[j] })
		members := make(map[history.TxID]bool, len(scc))
		for _, n := range scc {
			members[n] = true
		}
		found := simpleCyclesInSCC(g, scc, members)
		for _, c := range found {
			key := cycleKey(c)
			if seen[key] {
				continue
			}
			seen[key] = true
			all = append(all, c)
			if maxAnomalies > 0 && len(all) >= maxAnomalies {
				return all
			}
		}
	}
	return all
}

// tarjanSCCs returns the graph's strongly connected components, in the
// order Tarjan's algorithm completes them (reverse topological order of the
// condensation), with each component's members sorted ascending.
func tarjanSCCs(g *dsg.Graph) [][]history.TxID {
	nodes := g.Nodes()
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	index := make(map[history.TxID]int)
	lowlink := make(map[history.TxID]int)
	onStack := make(map[history.TxID]bool)
	var stack []history.TxID
	counter := 0
	var sccs [][]history.TxID

	var strongconnect func(v history.TxID)
	strongconnect = func(v history.TxID) {
		index[v] = counter
		lowlink[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.Successors(v) {
			if _, ok := index[w]; !ok {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if index[w] < lowlink[v] {
					lowlink[v] = index[w]
				}
			}
		}

		if lowlink[v] == index[v] {
			var comp []history.TxID
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, comp)
		}
	}

	for _, v := range nodes {
		if _, ok := index[v]; !ok {
			strongconnect(v)
		}
	}
	return sccs
}

// simpleCyclesInSCC enumerates simple cycles within one SCC via Johnson-style
// blocked DFS, restricted to edges whose endpoints are both in members, and
// restarted from each node in ascending order (only cycles whose minimum
// node is the current root are reported, the standard trick for producing
// each simple cycle exactly once per root without needing a second global
// dedup pass — global dedup by canonical form is still applied by Enumerate
// as a defensive measure against equivalent cycles reached via different
// roots, e.g. self-referential coalesced edges).
func simpleCyclesInSCC(g *dsg.Graph, roots []history.TxID, members map[history.TxID]bool) []Cycle {
	var out []Cycle

	for _, root := range roots {
		blocked := make(map[history.TxID]bool)
		blockedBy := make(map[history.TxID]map[history.TxID]bool)
		var path []history.TxID
		var pathLabels []dsg.Labels
		onPath := make(map[history.TxID]bool)

		var unblock func(v history.TxID)
		unblock = func(v history.TxID) {
			blocked[v] = false
			for w := range blockedBy[v] {
				delete(blockedBy[v], w)
				if blocked[w] {
					unblock(w)
				}
			}
		}

		var dfs func(v history.TxID) bool
		dfs = func(v history.TxID) bool {
			found := false
			path = append(path, v)
			onPath[v] = true
			blocked[v] = true

			for _, w := range g.Successors(v) {
				if !members[w] || w < root {
					continue
				}
				e, _ := g.Edge(v, w)
				if w == root {
					cycLabels := append(append([]dsg.Labels(nil), pathLabels...), e.Labels)
					out = append(out, canonicalize(append([]history.TxID(nil), path...), cycLabels))
					found = true
					continue
				}
				if blocked[w] {
					continue
				}
				pathLabels = append(pathLabels, e.Labels)
				if dfs(w) {
					found = true
				}
				pathLabels = pathLabels[:len(pathLabels)-1]
			}

			if found {
				unblock(v)
			} else {
				for _, w := range g.Successors(v) {
					if !members[w] || w < root {
						continue
					}
					if blockedBy[w] == nil {
						blockedBy[w] = make(map[history.TxID]bool)
					}
					blockedBy[w][v] = true
				}
			}

			path = path[:len(path)-1]
			onPath[v] = false
			return found
		}

		dfs(root)
	}

	return out
}
