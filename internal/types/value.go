package types

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Value is a single typed datum, possibly NULL. Exactly one of the typed
// fields is meaningful, selected by Type.Kind; IsNull overrides all of them.
type Value struct {
	Type   ColumnType
	IsNull bool

	I   int64   // SmallInt, Int, BigInt
	F   float64 // Float, Double
	S   string  // Char, VarChar
	U32 uint32  // Date, Time
	U64 uint64  // Timestamp
}

// Null builds a NULL value of the given type.
func Null(t ColumnType) Value { return Value{Type: t, IsNull: true} }

// EncodeFixed writes v's fixed-width representation into buf, which must be
// exactly t.BytesFixed() long. VarChar is not fixed-width; callers encode it
// through EncodeVarChar instead.
func (v Value) EncodeFixed(buf []byte) error {
	t := v.Type
	if !t.IsFixedLength() {
		return fmt.Errorf("types: EncodeFixed called on variable-length kind %s", t.Kind)
	}
	if len(buf) != t.BytesFixed() {
		return fmt.Errorf("types: buffer length %d != field width %d", len(buf), t.BytesFixed())
	}
	if v.IsNull {
		t.nullSentinel(buf)
		return nil
	}
	switch t.Kind {
	case SmallInt:
		binary.LittleEndian.PutUint16(buf, uint16(int16(v.I)))
	case Int:
		binary.LittleEndian.PutUint32(buf, uint32(int32(v.I)))
	case BigInt:
		binary.LittleEndian.PutUint64(buf, uint64(v.I))
	case Float:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(v.F)))
	case Double:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v.F))
	case Char:
		// blank-pad with spaces; zero bytes are reserved for the NULL sentinel
		n := copy(buf, v.S)
		for i := n; i < len(buf); i++ {
			buf[i] = ' '
		}
	case Date, Time:
		binary.LittleEndian.PutUint32(buf, v.U32)
	case Timestamp:
		binary.LittleEndian.PutUint64(buf, v.U64)
	default:
		return fmt.Errorf("types: cannot encode kind %s as fixed", t.Kind)
	}
	return nil
}

// DecodeFixed reads a fixed-width field out of buf.
func DecodeFixed(t ColumnType, buf []byte) (Value, error) {
	if !t.IsFixedLength() {
		return Value{}, fmt.Errorf("types: DecodeFixed called on variable-length kind %s", t.Kind)
	}
	if len(buf) != t.BytesFixed() {
		return Value{}, fmt.Errorf("types: buffer length %d != field width %d", len(buf), t.BytesFixed())
	}
	if t.IsNullSentinel(buf) {
		return Null(t), nil
	}
	v := Value{Type: t}
	switch t.Kind {
	case SmallInt:
		v.I = int64(int16(binary.LittleEndian.Uint16(buf)))
	case Int:
		v.I = int64(int32(binary.LittleEndian.Uint32(buf)))
	case BigInt:
		v.I = int64(binary.LittleEndian.Uint64(buf))
	case Float:
		v.F = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf)))
	case Double:
		v.F = math.Float64frombits(binary.LittleEndian.Uint64(buf))
	case Char:
		raw := make([]byte, len(buf))
		copy(raw, buf)
		i := len(raw)
		for i > 0 && raw[i-1] == ' ' {
			i--
		}
		v.S = string(raw[:i])
	case Date, Time:
		v.U32 = binary.LittleEndian.Uint32(buf)
	case Timestamp:
		v.U64 = binary.LittleEndian.Uint64(buf)
	default:
		return Value{}, fmt.Errorf("types: cannot decode kind %s as fixed", t.Kind)
	}
	return v, nil
}

// EncodeVarChar renders a VARCHAR payload as raw bytes for the page's
// variable-length chunk. A NULL VarChar encodes as a nil (zero-length) slice;
// callers distinguish NULL from empty string via the offset/length pair
// written into the record's fixed field area (see internal/page).
func (v Value) EncodeVarChar() ([]byte, error) {
	if v.Type.Kind != VarChar {
		return nil, fmt.Errorf("types: EncodeVarChar called on kind %s", v.Type.Kind)
	}
	if v.IsNull {
		return nil, nil
	}
	if len(v.S) > v.Type.N {
		return nil, fmt.Errorf("types: varchar value of length %d exceeds declared length %d", len(v.S), v.Type.N)
	}
	return []byte(v.S), nil
}

// DecodeVarChar builds a VARCHAR value from raw chunk bytes.
func DecodeVarChar(t ColumnType, raw []byte, isNull bool) (Value, error) {
	if t.Kind != VarChar {
		return Value{}, fmt.Errorf("types: DecodeVarChar called on kind %s", t.Kind)
	}
	if isNull {
		return Null(t), nil
	}
	return Value{Type: t, S: string(raw)}, nil
}

// Tuple is an ordered row of values, one per column of the owning schema.
type Tuple struct {
	Values []Value
}

// Clone returns a deep-enough copy (Value has no shared mutable state beyond
// the Go string/float backing, both already immutable by value).
func (tu Tuple) Clone() Tuple {
	out := make([]Value, len(tu.Values))
	copy(out, tu.Values)
	return Tuple{Values: out}
}
