// Package types implements the data field codec (C1): typed column
// descriptions and the fixed/variable-length encoding rules shared by the
// table page, the table resource manager, and the query heap.
package types

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Kind is the tagged variant of a column's data type.
type Kind uint8

const (
	SmallInt Kind = iota
	Int
	BigInt
	Float
	Double
	Char
	VarChar
	Date
	Time
	Timestamp
)

// MaxCharLen is the largest declarable length for CHAR/VARCHAR columns.
const MaxCharLen = 1024

func (k Kind) String() string {
	switch k {
	case SmallInt:
		return "SMALL_INT"
	case Int:
		return "INT"
	case BigInt:
		return "BIG_INT"
	case Float:
		return "FLOAT"
	case Double:
		return "DOUBLE"
	case Char:
		return "CHAR"
	case VarChar:
		return "VARCHAR"
	case Date:
		return "DATE"
	case Time:
		return "TIME"
	case Timestamp:
		return "TIMESTAMP"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ColumnType is a tagged value describing a column's physical encoding.
// N carries the declared maximum length for Char/VarChar and is ignored
// for every other kind.
type ColumnType struct {
	Kind Kind
	N    int
}

func Fixed(k Kind) ColumnType { return ColumnType{Kind: k} }

// Sized builds a CHAR(n) or VARCHAR(n) column type. n must be in [1, MaxCharLen].
func Sized(k Kind, n int) (ColumnType, error) {
	if k != Char && k != VarChar {
		return ColumnType{}, fmt.Errorf("types: Sized called with non-string kind %s", k)
	}
	if n < 1 || n > MaxCharLen {
		return ColumnType{}, fmt.Errorf("types: length %d out of range [1,%d]", n, MaxCharLen)
	}
	return ColumnType{Kind: k, N: n}, nil
}

// IsFixedLength reports whether values of this type occupy a constant
// number of bytes in the record's fixed field area.
func (t ColumnType) IsFixedLength() bool {
	switch t.Kind {
	case Char, VarChar:
		return t.Kind == Char
	default:
		return true
	}
}

// BytesFixed returns the inline width for fixed-length types. It panics
// for VarChar, which has no fixed width (callers must check IsFixedLength).
func (t ColumnType) BytesFixed() int {
	switch t.Kind {
	case SmallInt:
		return 2
	case Int:
		return 4
	case BigInt:
		return 8
	case Float:
		return 4
	case Double:
		return 8
	case Char:
		return t.N
	case Date:
		return 4
	case Time:
		return 4
	case Timestamp:
		return 8
	default:
		panic(fmt.Sprintf("types: BytesFixed called on variable-length kind %s", t.Kind))
	}
}

// FieldWidth returns the number of bytes this column occupies in the
// fixed-width field area of a record: BytesFixed for fixed-length types,
// or 8 (a 4-byte offset + 4-byte length pair) for VarChar.
func (t ColumnType) FieldWidth() int {
	if t.IsFixedLength() {
		return t.BytesFixed()
	}
	return 8
}

// nullSentinel writes the canonical NULL encoding for a fixed-length type
// into buf, which must be exactly BytesFixed() bytes long.
func (t ColumnType) nullSentinel(buf []byte) {
	switch t.Kind {
	case SmallInt:
		binary.LittleEndian.PutUint16(buf, 1<<15) // bit pattern of math.MinInt16
	case Int:
		binary.LittleEndian.PutUint32(buf, 1<<31) // bit pattern of math.MinInt32
	case BigInt:
		binary.LittleEndian.PutUint64(buf, 1<<63) // bit pattern of math.MinInt64
	case Float:
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(math.NaN())))
	case Double:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(math.NaN()))
	case Char:
		for i := range buf {
			buf[i] = 0 // reserved all-zero pad: a real CHAR is blank-padded with spaces
		}
	case Date, Time:
		binary.LittleEndian.PutUint32(buf, math.MaxUint32)
	case Timestamp:
		binary.LittleEndian.PutUint64(buf, math.MaxUint64)
	default:
		panic(fmt.Sprintf("types: nullSentinel called on variable-length kind %s", t.Kind))
	}
}

// IsNullSentinel reports whether buf (BytesFixed() bytes) encodes this
// type's canonical NULL value.
func (t ColumnType) IsNullSentinel(buf []byte) bool {
	switch t.Kind {
	case SmallInt:
		return int16(binary.LittleEndian.Uint16(buf)) == math.MinInt16
	case Int:
		return int32(binary.LittleEndian.Uint32(buf)) == math.MinInt32
	case BigInt:
		return int64(binary.LittleEndian.Uint64(buf)) == math.MinInt64
	case Float:
		return math.Float32frombits(binary.LittleEndian.Uint32(buf)) != math.Float32frombits(binary.LittleEndian.Uint32(buf)) // NaN
	case Double:
		v := math.Float64frombits(binary.LittleEndian.Uint64(buf))
		return v != v // NaN
	case Char:
		for _, b := range buf {
			if b != 0 {
				return false
			}
		}
		return true
	case Date, Time:
		return binary.LittleEndian.Uint32(buf) == math.MaxUint32
	case Timestamp:
		return binary.LittleEndian.Uint64(buf) == math.MaxUint64
	default:
		panic(fmt.Sprintf("types: IsNullSentinel called on variable-length kind %s", t.Kind))
	}
}
