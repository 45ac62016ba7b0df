package page

import (
	"encoding/binary"

	"github.com/royd1990/corestore/internal/types"
)

const (
	// HeaderSize is the fixed 32-byte page header width.
	HeaderSize = 32

	// Magic identifies a valid table data page.
	Magic uint32 = 0xDEADBEEF

	offMagic        = 0
	offPageNumber   = 4
	offRecordCount  = 8
	offRecordWidth  = 12
	offChunkOffset  = 16
	// bytes 20..32 reserved

	flagsWidth       = 4
	tombstoneBitMask = 1
)

// TablePage manages a single page-sized buffer as a fixed-position record
// store over schema. Records sit at byte offset HeaderSize + i*RecordWidth;
// there is no slot directory. A variable-length chunk grows downward from
// the buffer tail.
type TablePage struct {
	schema     *types.TableSchema
	buf        []byte
	isModified bool
}

// Init writes a fresh header into buf (zero records, chunk offset at the
// buffer end) and binds it to schema. buf.Len() must equal schema.PageSize.
func Init(schema *types.TableSchema, buf []byte, pageNumber uint32) (*TablePage, error) {
	if len(buf) != schema.PageSize {
		return nil, &FormatError{Reason: "buffer length does not match schema page size"}
	}
	p := &TablePage{schema: schema, buf: buf, isModified: true}
	binary.LittleEndian.PutUint32(buf[offMagic:], Magic)
	binary.LittleEndian.PutUint32(buf[offPageNumber:], pageNumber)
	binary.LittleEndian.PutUint32(buf[offRecordCount:], 0)
	binary.LittleEndian.PutUint32(buf[offRecordWidth:], uint32(schema.RecordWidth()))
	binary.LittleEndian.PutUint32(buf[offChunkOffset:], uint32(len(buf)))
	return p, nil
}

// Open rebinds an existing buffer already containing a page.
func Open(schema *types.TableSchema, buf []byte) (*TablePage, error) {
	if len(buf) != schema.PageSize {
		return nil, &FormatError{Reason: "buffer length does not match schema page size"}
	}
	if binary.LittleEndian.Uint32(buf[offMagic:]) != Magic {
		return nil, &FormatError{Reason: "bad page magic"}
	}
	width := binary.LittleEndian.Uint32(buf[offRecordWidth:])
	if int(width) != schema.RecordWidth() {
		return nil, &FormatError{Reason: "record width does not match schema"}
	}
	return &TablePage{schema: schema, buf: buf, isModified: false}, nil
}

func (p *TablePage) PageNumber() uint32 {
	return binary.LittleEndian.Uint32(p.buf[offPageNumber:])
}

func (p *TablePage) RecordCount() int {
	return int(binary.LittleEndian.Uint32(p.buf[offRecordCount:]))
}

func (p *TablePage) RecordWidth() int {
	return int(binary.LittleEndian.Uint32(p.buf[offRecordWidth:]))
}

func (p *TablePage) ChunkOffset() int {
	return int(binary.LittleEndian.Uint32(p.buf[offChunkOffset:]))
}

func (p *TablePage) IsModified() bool { return p.isModified }

// Buffer returns the underlying byte buffer, e.g. for writing back to disk.
func (p *TablePage) Buffer() []byte { return p.buf }

func (p *TablePage) setRecordCount(n int) {
	binary.LittleEndian.PutUint32(p.buf[offRecordCount:], uint32(n))
}

func (p *TablePage) setChunkOffset(n int) {
	binary.LittleEndian.PutUint32(p.buf[offChunkOffset:], uint32(n))
}

func (p *TablePage) recordStart(position int) int {
	return HeaderSize + position*p.RecordWidth()
}

func (p *TablePage) checkPosition(position int) error {
	if position < 0 || position >= p.RecordCount() {
		return &RangeError{Position: position, Count: p.RecordCount()}
	}
	return nil
}

func (p *TablePage) isTombstoned(position int) bool {
	start := p.recordStart(position)
	flags := binary.LittleEndian.Uint32(p.buf[start : start+flagsWidth])
	return flags&tombstoneBitMask != 0
}

// DeleteTuple sets the tombstone bit of the record at position.
func (p *TablePage) DeleteTuple(position int) error {
	if err := p.checkPosition(position); err != nil {
		return err
	}
	start := p.recordStart(position)
	flags := binary.LittleEndian.Uint32(p.buf[start : start+flagsWidth])
	binary.LittleEndian.PutUint32(p.buf[start:start+flagsWidth], flags|tombstoneBitMask)
	p.isModified = true
	return nil
}

// InsertTuple appends t at slot RecordCount. Returns false (page left
// byte-identical) if the record does not fit.
func (p *TablePage) InsertTuple(t types.Tuple) (bool, error) {
	if len(t.Values) != len(p.schema.Columns) {
		return false, &FormatError{Reason: "tuple column count does not match schema"}
	}
	varBytes := 0
	for i, col := range p.schema.Columns {
		if col.Type.IsFixedLength() {
			continue
		}
		v := t.Values[i]
		if v.Type.Kind != col.Type.Kind {
			return false, &FormatError{Reason: "field type disagrees with schema column " + col.Name}
		}
		if !v.IsNull {
			if len(v.S) > col.Type.N {
				return false, &FormatError{Reason: "varchar value exceeds declared length for column " + col.Name}
			}
			varBytes += len(v.S)
		}
	}

	recordWidth := p.RecordWidth()
	recordEnd := p.recordStart(p.RecordCount()) + recordWidth
	chunkOffset := p.ChunkOffset()
	if recordEnd+varBytes > chunkOffset {
		return false, nil
	}

	start := p.recordStart(p.RecordCount())
	binary.LittleEndian.PutUint32(p.buf[start:start+flagsWidth], 0)
	cursor := start + flagsWidth
	newChunkOffset := chunkOffset

	for i, col := range p.schema.Columns {
		v := t.Values[i]
		width := col.Type.FieldWidth()
		field := p.buf[cursor : cursor+width]
		if col.Type.IsFixedLength() {
			if v.Type.Kind != col.Type.Kind {
				return false, &FormatError{Reason: "field type disagrees with schema column " + col.Name}
			}
			if err := v.EncodeFixed(field); err != nil {
				return false, err
			}
		} else {
			if v.IsNull {
				binary.LittleEndian.PutUint32(field[0:4], 0)
				binary.LittleEndian.PutUint32(field[4:8], 0)
			} else {
				raw, err := v.EncodeVarChar()
				if err != nil {
					return false, err
				}
				newChunkOffset -= len(raw)
				copy(p.buf[newChunkOffset:newChunkOffset+len(raw)], raw)
				binary.LittleEndian.PutUint32(field[0:4], uint32(newChunkOffset))
				binary.LittleEndian.PutUint32(field[4:8], uint32(len(raw)))
			}
		}
		cursor += width
	}

	p.setChunkOffset(newChunkOffset)
	p.setRecordCount(p.RecordCount() + 1)
	p.isModified = true
	return true, nil
}

// decodeField reads the raw field bytes for schema column idx out of the
// record starting at recordStart, returning a decoded Value.
func (p *TablePage) decodeField(recordStart int, idx int) (types.Value, error) {
	col := p.schema.Columns[idx]
	offset := recordStart + flagsWidth
	for i := 0; i < idx; i++ {
		offset += p.schema.Columns[i].Type.FieldWidth()
	}
	width := col.Type.FieldWidth()
	field := p.buf[offset : offset+width]
	if col.Type.IsFixedLength() {
		return types.DecodeFixed(col.Type, field)
	}
	off := binary.LittleEndian.Uint32(field[0:4])
	length := binary.LittleEndian.Uint32(field[4:8])
	if off == 0 && length == 0 {
		return types.DecodeVarChar(col.Type, nil, true)
	}
	raw := p.buf[off : off+length]
	return types.DecodeVarChar(col.Type, raw, false)
}

// popcount returns the number of set bits in bitmap.
func popcount(bitmap uint64) int {
	n := 0
	for bitmap != 0 {
		n += int(bitmap & 1)
		bitmap >>= 1
	}
	return n
}

// GetTuple returns the tuple at position projected onto the columns
// selected by columnBitmap (LSB-first by column index), in schema order.
// The second return is false if the record is tombstoned.
func (p *TablePage) GetTuple(position int, columnBitmap uint64, numCols int) (types.Tuple, bool, error) {
	if err := p.checkPosition(position); err != nil {
		return types.Tuple{}, false, err
	}
	if p.isTombstoned(position) {
		return types.Tuple{}, false, nil
	}
	if want := popcount(columnBitmap & schemaColumnMask(len(p.schema.Columns))); want != numCols {
		return types.Tuple{}, false, &FormatError{Reason: "numCols does not match popcount(bitmap & schema columns)"}
	}
	start := p.recordStart(position)
	out := make([]types.Value, 0, numCols)
	for i := range p.schema.Columns {
		if columnBitmap&(1<<uint(i)) == 0 {
			continue
		}
		v, err := p.decodeField(start, i)
		if err != nil {
			return types.Tuple{}, false, err
		}
		out = append(out, v)
	}
	return types.Tuple{Values: out}, true, nil
}

// GetTupleFiltered is GetTuple but applies predicates during the column
// walk; if any predicate targeting a scanned column evaluates false, the
// record is treated as not present.
func (p *TablePage) GetTupleFiltered(predicates []types.Predicate, position int, columnBitmap uint64, numCols int) (types.Tuple, bool, error) {
	if err := p.checkPosition(position); err != nil {
		return types.Tuple{}, false, err
	}
	if p.isTombstoned(position) {
		return types.Tuple{}, false, nil
	}
	if want := popcount(columnBitmap & schemaColumnMask(len(p.schema.Columns))); want != numCols {
		return types.Tuple{}, false, &FormatError{Reason: "numCols does not match popcount(bitmap & schema columns)"}
	}
	start := p.recordStart(position)
	full := make([]types.Value, len(p.schema.Columns))
	for i := range p.schema.Columns {
		v, err := p.decodeField(start, i)
		if err != nil {
			return types.Tuple{}, false, err
		}
		full[i] = v
		for _, pr := range predicates {
			if pr.ColumnIndex != i {
				continue
			}
			ok, err := pr.Evaluate(types.Tuple{Values: full})
			if err != nil {
				return types.Tuple{}, false, err
			}
			if !ok {
				return types.Tuple{}, false, nil
			}
		}
	}
	out := make([]types.Value, 0, numCols)
	for i := range p.schema.Columns {
		if columnBitmap&(1<<uint(i)) != 0 {
			out = append(out, full[i])
		}
	}
	return types.Tuple{Values: out}, true, nil
}

func schemaColumnMask(numCols int) uint64 {
	if numCols >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(numCols)) - 1
}
