// Package anomaly implements C6: classification of cycles and non-cyclic
// findings into named Adya anomalies, and the mapping from isolation level
// to the set of anomalies it forbids.
package anomaly

import (
	"fmt"
	"strings"
)

// Level is a requested isolation level.
type Level int

const (
	ReadUncommitted Level = iota
	ReadCommitted
	RepeatableRead
	SnapshotIsolation
	Serializable
)

func (l Level) String() string {
	switch l {
	case ReadUncommitted:
		return "READ UNCOMMITTED"
	case ReadCommitted:
		return "READ COMMITTED"
	case RepeatableRead:
		return "REPEATABLE READ"
	case SnapshotIsolation:
		return "SNAPSHOT ISOLATION"
	case Serializable:
		return "SERIALIZABLE"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel parses a case-insensitive isolation level name, accepting both
// the canonical spaced form and the common SQL keyword spelling (e.g.
// "repeatable_read", "REPEATABLEREAD").
func ParseLevel(s string) (Level, error) {
	norm := strings.ToUpper(strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '_' || r == '-'
	}), ""))
	switch norm {
	case "READUNCOMMITTED":
		return ReadUncommitted, nil
	case "READCOMMITTED":
		return ReadCommitted, nil
	case "REPEATABLEREAD":
		return RepeatableRead, nil
	case "SNAPSHOTISOLATION", "SNAPSHOT":
		return SnapshotIsolation, nil
	case "SERIALIZABLE":
		return Serializable, nil
	default:
		return 0, fmt.Errorf("anomaly: unknown isolation level %q", s)
	}
}

// Kind is the closed set of named Adya anomalies.
type Kind int

const (
	G0 Kind = iota
	G1a
	G1b
	G1c
	GSingle
	G2Item
	G2
)

func (k Kind) String() string {
	switch k {
	case G0:
		return "G0"
	case G1a:
		return "G1a"
	case G1b:
		return "G1b"
	case G1c:
		return "G1c"
	case GSingle:
		return "G-single"
	case G2Item:
		return "G2-item"
	case G2:
		return "G2"
	default:
		return "?"
	}
}

// Forbids returns the set of anomaly kinds l forbids, per spec §4.6.
func (l Level) Forbids() map[Kind]bool {
	base := map[Kind]bool{G0: true}
	switch l {
	case ReadUncommitted:
		return base
	case ReadCommitted:
		base[G1a] = true
		base[G1b] = true
		base[G1c] = true
		return base
	case RepeatableRead:
		base[G1a] = true
		base[G1b] = true
		base[G1c] = true
		base[G2Item] = true
		return base
	case SnapshotIsolation:
		base[G1a] = true
		base[G1b] = true
		base[G1c] = true
		base[GSingle] = true
		return base
	case Serializable:
		base[G1a] = true
		base[G1b] = true
		base[G1c] = true
		base[G2Item] = true
		base[GSingle] = true
		base[G2] = true
		return base
	default:
		return base
	}
}
