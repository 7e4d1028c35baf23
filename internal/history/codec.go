package history

import (
	"bufio"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Encode writes h to w as a sequence of YAML documents: a header document
// describing the transaction count, followed by one document per
// transaction (T0 included). The format is deliberately line-oriented and
// human-readable — a recorded history doubles as the primary debugging
// artifact handed to whoever is chasing down an anomaly.
func Encode(w io.Writer, h *History) error {
	bw := bufio.NewWriter(w)
	enc := yaml.NewEncoder(bw)
	defer enc.Close()

	header := docHeader{Version: 1, Transactions: len(h.txs)}
	if err := enc.Encode(header); err != nil {
		return fmt.Errorf("history: encode header: %w", err)
	}
	for _, t := range h.txs {
		if err := enc.Encode(toDTO(t)); err != nil {
			return fmt.Errorf("history: encode transaction %d: %w", t.ID, err)
		}
	}
	return bw.Flush()
}

// Decode reads a History previously written by Encode and re-freezes it
// through a Builder, so a round-tripped History satisfies the same
// invariants as one built live.
func Decode(r io.Reader) (*History, error) {
	dec := yaml.NewDecoder(r)

	var header docHeader
	if err := dec.Decode(&header); err != nil {
		return nil, fmt.Errorf("history: decode header: %w", err)
	}

	b := NewBuilder()
	for i := 0; i < header.Transactions; i++ {
		var dto txDTO
		if err := dec.Decode(&dto); err != nil {
			return nil, fmt.Errorf("history: decode transaction %d: %w", i, err)
		}
		t := fromDTO(dto)
		if t.ID == T0 {
			// T0 is seeded by NewBuilder; replay only its operations.
			for _, op := range t.Ops {
				if _, err := b.AddOp(T0, stripHandle(op)); err != nil {
					return nil, err
				}
			}
			continue
		}
		if err := b.BeginTx(t.ID, t.Start); err != nil {
			return nil, err
		}
		for _, op := range t.Ops {
			if _, err := b.AddOp(t.ID, stripHandle(op)); err != nil {
				return nil, err
			}
		}
		if err := b.SetOutcome(t.ID, t.Outcome, t.End); err != nil {
			return nil, err
		}
	}
	return b.Freeze()
}

func stripHandle(op Operation) Operation {
	op.Tx = 0
	op.Seq = 0
	return op
}

type docHeader struct {
	Version      int `yaml:"version"`
	Transactions int `yaml:"transactions"`
}

// txDTO/opDTO mirror Transaction/Operation with yaml tags; History's own
// types stay free of serialization concerns.
type txDTO struct {
	ID      int     `yaml:"id"`
	Outcome string  `yaml:"outcome"`
	Start   *int64  `yaml:"start,omitempty"`
	End     *int64  `yaml:"end,omitempty"`
	Ops     []opDTO `yaml:"ops"`
}

type rowDTO struct {
	Obj     string `yaml:"obj"`
	Present bool   `yaml:"present"`
	Value   int64  `yaml:"value,omitempty"`
}

type opDTO struct {
	Seq      int      `yaml:"seq"`
	Kind     string   `yaml:"kind"`
	Obj      string   `yaml:"obj,omitempty"`
	Present  bool     `yaml:"present,omitempty"`
	Value    int64    `yaml:"value,omitempty"`
	PredOp   string   `yaml:"pred_op,omitempty"`
	PredVal  int64    `yaml:"pred_bound,omitempty"`
	Matched  []rowDTO `yaml:"matched,omitempty"`
	Affected []rowDTO `yaml:"affected,omitempty"`
}

func toDTO(t Transaction) txDTO {
	dto := txDTO{ID: int(t.ID), Outcome: t.Outcome.String()}
	if t.Start.Valid {
		v := t.Start.At
		dto.Start = &v
	}
	if t.End.Valid {
		v := t.End.At
		dto.End = &v
	}
	for _, op := range t.Ops {
		dto.Ops = append(dto.Ops, opToDTO(op))
	}
	return dto
}

func opToDTO(op Operation) opDTO {
	d := opDTO{Seq: op.Seq, Kind: op.Kind.String()}
	switch op.Kind {
	case OpRead, OpWrite:
		d.Obj = string(op.Obj)
		d.Present = op.Value.Present
		d.Value = op.Value.Data
	case OpPredicateRead:
		d.PredOp = compareOpString(op.Pred.Op)
		d.PredVal = op.Pred.Bound
		for _, row := range op.Matched {
			d.Matched = append(d.Matched, rowToDTO(row))
		}
	case OpPredicateWrite:
		d.PredOp = compareOpString(op.Pred.Op)
		d.PredVal = op.Pred.Bound
		for _, row := range op.Affected {
			d.Affected = append(d.Affected, rowToDTO(row))
		}
	}
	return d
}

func rowToDTO(r Row) rowDTO {
	return rowDTO{Obj: string(r.Obj), Present: r.Value.Present, Value: r.Value.Data}
}

func fromDTO(dto txDTO) Transaction {
	t := Transaction{ID: TxID(dto.ID), Outcome: outcomeFromString(dto.Outcome)}
	if dto.Start != nil {
		t.Start = Stamp{At: *dto.Start, Valid: true}
	}
	if dto.End != nil {
		t.End = Stamp{At: *dto.End, Valid: true}
	}
	for _, d := range dto.Ops {
		t.Ops = append(t.Ops, opFromDTO(d))
	}
	return t
}

func opFromDTO(d opDTO) Operation {
	op := Operation{Seq: d.Seq, Kind: kindFromString(d.Kind)}
	switch op.Kind {
	case OpRead, OpWrite:
		op.Obj = ObjKey(d.Obj)
		op.Value = Value{Present: d.Present, Data: d.Value}
	case OpPredicateRead:
		op.Pred = Predicate{Op: compareOpFromString(d.PredOp), Bound: d.PredVal}
		for _, r := range d.Matched {
			op.Matched = append(op.Matched, rowFromDTO(r))
		}
	case OpPredicateWrite:
		op.Pred = Predicate{Op: compareOpFromString(d.PredOp), Bound: d.PredVal}
		for _, r := range d.Affected {
			op.Affected = append(op.Affected, rowFromDTO(r))
		}
	}
	return op
}

func rowFromDTO(d rowDTO) Row {
	return Row{Obj: ObjKey(d.Obj), Value: Value{Present: d.Present, Data: d.Value}}
}

func kindFromString(s string) OpKind {
	switch s {
	case "write":
		return OpWrite
	case "predicate-read":
		return OpPredicateRead
	case "predicate-write":
		return OpPredicateWrite
	default:
		return OpRead
	}
}

func compareOpString(op CompareOp) string {
	switch op {
	case OpGT:
		return "gt"
	case OpGE:
		return "ge"
	case OpLT:
		return "lt"
	case OpLE:
		return "le"
	case OpEQ:
		return "eq"
	case OpNE:
		return "ne"
	default:
		return "gt"
	}
}

func compareOpFromString(s string) CompareOp {
	switch s {
	case "ge":
		return OpGE
	case "lt":
		return OpLT
	case "le":
		return OpLE
	case "eq":
		return OpEQ
	case "ne":
		return OpNE
	default:
		return OpGT
	}
}

func outcomeFromString(s string) Outcome {
	switch s {
	case "committed":
		return Committed
	case "aborted":
		return Aborted
	default:
		return Unknown
	}
}
