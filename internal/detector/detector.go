// Package detector implements C3: detection of the two non-cyclic Adya
// anomalies, G1a (aborted read) and G1b (intermediate read), directly from a
// resolver.Result. Neither requires graph construction — both are witnessed
// by a single resolved read, so they are reported independently of
// isolation level and folded into the final report after level filtering.
package detector

import (
	"sort"

	"github.com/isochk/isochk/internal/history"
	"github.com/isochk/isochk/internal/resolver"
)

// Kind distinguishes the two non-cyclic anomalies this package detects.
type Kind int

const (
	G1a Kind = iota
	G1b
)

func (k Kind) String() string {
	if k == G1b {
		return "G1b"
	}
	return "G1a"
}

// Finding is one witnessed non-cyclic anomaly: a read that observed a write
// it should never have seen.
type Finding struct {
	Kind  Kind
	Read  history.OpRef
	Write history.OpRef
}

// Detect scans res for SourceAborted and SourceCommittedIntermediate
// resolutions and reports them as G1a and G1b findings respectively,
// ordered by (reading transaction, sequence) for determinism.
func Detect(res resolver.Result) []Finding {
	var out []Finding
	for key, src := range res.Sources {
		switch src.Kind {
		case resolver.SourceAborted:
			out = append(out, Finding{Kind: G1a, Read: key.Read, Write: src.Write})
		case resolver.SourceCommittedIntermediate:
			out = append(out, Finding{Kind: G1b, Read: key.Read, Write: src.Write})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Read.Tx != out[j].Read.Tx {
			return out[i].Read.Tx < out[j].Read.Tx
		}
		if out[i].Read.Seq != out[j].Read.Seq {
			return out[i].Read.Seq < out[j].Read.Seq
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}
