package anomaly

import (
	"github.com/isochk/isochk/internal/cycles"
	"github.com/isochk/isochk/internal/detector"
	"github.com/isochk/isochk/internal/dsg"
	"github.com/isochk/isochk/internal/history"
)

// Evidence is a reported anomaly's supporting witness: either a cycle
// (Cycle non-nil) or a non-cyclic G1a/G1b finding (Read/Write set).
type Evidence struct {
	Kind  Kind
	Cycle *cycles.Cycle // nil for non-cyclic findings

	// Populated for non-cyclic findings (G1a, G1b).
	Read  history.OpRef
	Write history.OpRef
}

// classify returns the single most specific name for a cycle's label
// multiset, per the ordered table in spec §4.6, or false if the cycle
// matches none of the closed anomaly shapes (this can happen once the
// detector grows predicates this classifier doesn't yet know, per the
// open-extension design note — such cycles are simply never reported).
func classify(c cycles.Cycle) (Kind, bool) {
	var union dsg.Labels
	hasRW, hasPRW, hasWR := false, false, false
	rwOrPRWCount := 0
	for _, l := range c.Labels {
		union |= l
		if l.Has(dsg.RW) {
			hasRW = true
		}
		if l.Has(dsg.PRW) {
			hasPRW = true
		}
		if l.Has(dsg.WR) {
			hasWR = true
		}
		if (l.Has(dsg.RW) || l.Has(dsg.PRW)) && !l.Has(dsg.WW) && !l.Has(dsg.WR) {
			rwOrPRWCount++
		}
	}

	onlyWithin := func(allowed dsg.Labels) bool {
		return union&^allowed == 0
	}

	switch {
	case onlyWithin(dsg.Labels(dsg.WW)):
		return G0, true
	case onlyWithin(dsg.Labels(dsg.WW|dsg.WR)) && hasWR:
		return G1c, true
	case onlyWithin(dsg.Labels(dsg.WW|dsg.WR|dsg.RW|dsg.PRW)) && rwOrPRWCount == 1 && (hasRW || hasPRW):
		return GSingle, true
	case onlyWithin(dsg.Labels(dsg.WW|dsg.WR|dsg.RW)) && hasRW:
		return G2Item, true
	case onlyWithin(dsg.Labels(dsg.WW|dsg.WR|dsg.RW|dsg.PRW)) && hasPRW:
		return G2, true
	default:
		return 0, false
	}
}

// Report is the final, level-filtered set of anomalies.
type Report struct {
	Level     Level
	Anomalies []Evidence
}

// Classify runs C6: it classifies every enumerated cycle, folds in C3's
// non-cyclic findings, and keeps only the anomalies l forbids. Cycles are
// consumed in Enumerate's deterministic order and each is assigned to its
// single most specific name, per spec's default (non-overlapping) report
// mode.
func Classify(l Level, cycleList []cycles.Cycle, findings []detector.Finding, maxAnomalies int) Report {
	forbidden := l.Forbids()
	rep := Report{Level: l}

	for _, f := range findings {
		k := G1a
		if f.Kind == detector.G1b {
			k = G1b
		}
		if !forbidden[k] {
			continue
		}
		rep.Anomalies = append(rep.Anomalies, Evidence{Kind: k, Read: f.Read, Write: f.Write})
		if maxAnomalies > 0 && len(rep.Anomalies) >= maxAnomalies {
			return rep
		}
	}

	for i := range cycleList {
		c := cycleList[i]
		k, ok := classify(c)
		if !ok || !forbidden[k] {
			continue
		}
		rep.Anomalies = append(rep.Anomalies, Evidence{Kind: k, Cycle: &cycleList[i]})
		if maxAnomalies > 0 && len(rep.Anomalies) >= maxAnomalies {
			return rep
		}
	}

	return rep
}
