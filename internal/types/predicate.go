package types

import "fmt"

// Op is a predicate comparison operator.
type Op uint8

const (
	Eq Op = iota
	Neq
	Lt
	Lte
	Gt
	Gte
)

func (o Op) String() string {
	switch o {
	case Eq:
		return "="
	case Neq:
		return "<>"
	case Lt:
		return "<"
	case Lte:
		return "<="
	case Gt:
		return ">"
	case Gte:
		return ">="
	default:
		return fmt.Sprintf("Op(%d)", uint8(o))
	}
}

// Predicate compares one tuple column against a fixed operand.
//
// NULL comparisons are monotone-false: if either the tuple's column value or
// the operand is NULL, Evaluate returns false regardless of Op, mirroring
// three-valued-logic IS NOT TRUE collapse rather than SQL's tri-state UNKNOWN.
type Predicate struct {
	ColumnIndex int
	Operator    Op
	Operand     Value
}

// Evaluate applies the predicate to one tuple.
func (p Predicate) Evaluate(tu Tuple) (bool, error) {
	if p.ColumnIndex < 0 || p.ColumnIndex >= len(tu.Values) {
		return false, fmt.Errorf("types: predicate column index %d out of range [0,%d)", p.ColumnIndex, len(tu.Values))
	}
	lhs := tu.Values[p.ColumnIndex]
	if lhs.IsNull || p.Operand.IsNull {
		return false, nil
	}
	cmp, err := compare(lhs, p.Operand)
	if err != nil {
		return false, err
	}
	switch p.Operator {
	case Eq:
		return cmp == 0, nil
	case Neq:
		return cmp != 0, nil
	case Lt:
		return cmp < 0, nil
	case Lte:
		return cmp <= 0, nil
	case Gt:
		return cmp > 0, nil
	case Gte:
		return cmp >= 0, nil
	default:
		return false, fmt.Errorf("types: unknown operator %v", p.Operator)
	}
}

// compare returns -1/0/1 comparing a against b; both must share a kind.
func compare(a, b Value) (int, error) {
	if a.Type.Kind != b.Type.Kind {
		return 0, fmt.Errorf("types: cannot compare %s against %s", a.Type.Kind, b.Type.Kind)
	}
	switch a.Type.Kind {
	case SmallInt, Int, BigInt:
		switch {
		case a.I < b.I:
			return -1, nil
		case a.I > b.I:
			return 1, nil
		default:
			return 0, nil
		}
	case Float, Double:
		switch {
		case a.F < b.F:
			return -1, nil
		case a.F > b.F:
			return 1, nil
		default:
			return 0, nil
		}
	case Char, VarChar:
		switch {
		case a.S < b.S:
			return -1, nil
		case a.S > b.S:
			return 1, nil
		default:
			return 0, nil
		}
	case Date, Time:
		switch {
		case a.U32 < b.U32:
			return -1, nil
		case a.U32 > b.U32:
			return 1, nil
		default:
			return 0, nil
		}
	case Timestamp:
		switch {
		case a.U64 < b.U64:
			return -1, nil
		case a.U64 > b.U64:
			return 1, nil
		default:
			return 0, nil
		}
	default:
		return 0, fmt.Errorf("types: uncomparable kind %s", a.Type.Kind)
	}
}
