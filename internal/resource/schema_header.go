// Package resource implements the table resource manager (C3): table-file
// byte layout, exclusive file locking, and page-granular I/O. Grounded on
// the teacher's pager.go/superblock.go idiom — explicit offset constants,
// encoding/binary LittleEndian marshal/unmarshal, os.File ReadAt/WriteAt —
// generalized from the teacher's fixed superblock struct to a variable-width
// schema header describing an arbitrary column list.
package resource

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/royd1990/corestore/internal/types"
)

// SchemaMagic identifies a valid table-file schema header.
const SchemaMagic uint32 = 0xDEAFD00D

// SchemaVersion is the only schema header version this build writes or reads.
const SchemaVersion uint32 = 0

const (
	attrNullable = 1
	attrUnique   = 2
)

func typeOrdinal(k types.Kind) uint32 { return uint32(k) }

func kindFromOrdinal(o uint32) (types.Kind, error) {
	if o > uint32(types.Timestamp) {
		return 0, fmt.Errorf("resource: unknown type ordinal %d", o)
	}
	return types.Kind(o), nil
}

// MarshalSchemaHeader renders schema as the table-file header: magic,
// version, page size, column count, then per column (type ordinal, array
// length, attribute bits, name length, UTF-16 name), padded to a page-size
// boundary so the first data page starts aligned.
func MarshalSchemaHeader(schema *types.TableSchema) []byte {
	type col struct {
		ordinal uint32
		arrayN  uint32
		attrs   uint32
		name    []uint16
	}
	cols := make([]col, len(schema.Columns))
	body := 16 // magic+version+pagesize+numcols
	for i, c := range schema.Columns {
		name := utf16.Encode([]rune(c.Name))
		arrayN := uint32(0)
		if c.Type.Kind == types.Char || c.Type.Kind == types.VarChar {
			arrayN = uint32(c.Type.N)
		}
		var attrs uint32
		if c.Nullable {
			attrs |= attrNullable
		}
		if c.Unique {
			attrs |= attrUnique
		}
		cols[i] = col{ordinal: typeOrdinal(c.Type.Kind), arrayN: arrayN, attrs: attrs, name: name}
		body += 16 + len(name)*2 // ordinal,arrayLen,attrs,nameLen (4 each) + name bytes
	}

	pageSize := schema.PageSize
	padded := ((body + pageSize - 1) / pageSize) * pageSize
	buf := make([]byte, padded)

	binary.LittleEndian.PutUint32(buf[0:4], SchemaMagic)
	binary.LittleEndian.PutUint32(buf[4:8], SchemaVersion)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(pageSize))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(cols)))

	off := 16
	for _, c := range cols {
		binary.LittleEndian.PutUint32(buf[off:off+4], c.ordinal)
		binary.LittleEndian.PutUint32(buf[off+4:off+8], c.arrayN)
		binary.LittleEndian.PutUint32(buf[off+8:off+12], c.attrs)
		binary.LittleEndian.PutUint32(buf[off+12:off+16], uint32(len(c.name)))
		off += 16
		for _, u := range c.name {
			binary.LittleEndian.PutUint16(buf[off:off+2], u)
			off += 2
		}
	}
	return buf
}

// UnmarshalSchemaHeader parses buf (at least the header region) back into a
// TableSchema plus the number of bytes consumed by the header before padding.
func UnmarshalSchemaHeader(buf []byte) (*types.TableSchema, int, error) {
	if len(buf) < 16 {
		return nil, 0, fmt.Errorf("resource: schema header truncated")
	}
	if magic := binary.LittleEndian.Uint32(buf[0:4]); magic != SchemaMagic {
		return nil, 0, fmt.Errorf("resource: bad schema magic 0x%08x", magic)
	}
	if ver := binary.LittleEndian.Uint32(buf[4:8]); ver != SchemaVersion {
		return nil, 0, fmt.Errorf("resource: unsupported schema version %d", ver)
	}
	pageSize := int(binary.LittleEndian.Uint32(buf[8:12]))
	numCols := int(binary.LittleEndian.Uint32(buf[12:16]))

	off := 16
	cols := make([]types.ColumnSchema, numCols)
	for i := 0; i < numCols; i++ {
		if off+16 > len(buf) {
			return nil, 0, fmt.Errorf("resource: schema header truncated at column %d", i)
		}
		ordinal := binary.LittleEndian.Uint32(buf[off : off+4])
		arrayN := binary.LittleEndian.Uint32(buf[off+4 : off+8])
		attrs := binary.LittleEndian.Uint32(buf[off+8 : off+12])
		nameLen := int(binary.LittleEndian.Uint32(buf[off+12 : off+16]))
		off += 16
		if off+nameLen*2 > len(buf) {
			return nil, 0, fmt.Errorf("resource: schema header truncated at column %d name", i)
		}
		units := make([]uint16, nameLen)
		for j := 0; j < nameLen; j++ {
			units[j] = binary.LittleEndian.Uint16(buf[off : off+2])
			off += 2
		}
		kind, err := kindFromOrdinal(ordinal)
		if err != nil {
			return nil, 0, err
		}
		var ct types.ColumnType
		if kind == types.Char || kind == types.VarChar {
			ct, err = types.Sized(kind, int(arrayN))
			if err != nil {
				return nil, 0, err
			}
		} else {
			ct = types.Fixed(kind)
		}
		cols[i] = types.ColumnSchema{
			Name:     string(utf16.Decode(units)),
			Type:     ct,
			Nullable: attrs&attrNullable != 0,
			Unique:   attrs&attrUnique != 0,
		}
	}

	schema, err := types.NewTableSchema(pageSize, cols)
	if err != nil {
		return nil, 0, err
	}
	return schema, off, nil
}
