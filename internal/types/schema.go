package types

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxColumnNameLen is the longest allowed column (or table) name.
const MaxColumnNameLen = 256

// MaxTableColumns bounds the number of columns a TableSchema may declare.
const MaxTableColumns = 1024

// ColumnSchema describes one column: its name, physical type, and the
// nullable/unique attribute bits persisted in the table-file header.
type ColumnSchema struct {
	Name     string
	Type     ColumnType
	Nullable bool
	Unique   bool
}

// EqualName compares column names case-insensitively in the English locale,
// matching the spec's locale-fixed comparison rule.
func EqualName(a, b string) bool {
	return strings.EqualFold(a, b)
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("types: empty name")
	}
	if utf8.RuneCountInString(name) > MaxColumnNameLen {
		return fmt.Errorf("types: name %q exceeds %d characters", name, MaxColumnNameLen)
	}
	return nil
}

// AllowedPageSizes enumerates the page sizes a resource may be bound to.
var AllowedPageSizes = []int{4096, 8192, 16384, 32768, 65536}

// IsAllowedPageSize reports whether sz is one of the enumerated page sizes.
func IsAllowedPageSize(sz int) bool {
	for _, v := range AllowedPageSizes {
		if v == sz {
			return true
		}
	}
	return false
}

// TableSchema is an ordered sequence of columns bound to one page size.
type TableSchema struct {
	Columns  []ColumnSchema
	PageSize int
}

// NewTableSchema validates and constructs a TableSchema.
func NewTableSchema(pageSize int, cols []ColumnSchema) (*TableSchema, error) {
	if !IsAllowedPageSize(pageSize) {
		return nil, fmt.Errorf("types: page size %d is not one of %v", pageSize, AllowedPageSizes)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("types: table schema needs at least one column")
	}
	if len(cols) > MaxTableColumns {
		return nil, fmt.Errorf("types: %d columns exceeds limit %d", len(cols), MaxTableColumns)
	}
	seen := make(map[string]struct{}, len(cols))
	out := make([]ColumnSchema, len(cols))
	for i, c := range cols {
		if err := validateName(c.Name); err != nil {
			return nil, err
		}
		key := strings.ToLower(c.Name)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("types: duplicate column name %q", c.Name)
		}
		seen[key] = struct{}{}
		out[i] = c
	}
	return &TableSchema{Columns: out, PageSize: pageSize}, nil
}

// ColumnIndex returns the index of the named column, or -1 if absent.
func (s *TableSchema) ColumnIndex(name string) int {
	for i, c := range s.Columns {
		if EqualName(c.Name, name) {
			return i
		}
	}
	return -1
}

// RecordWidth is the fixed-header (4 bytes) plus every column's FieldWidth.
func (s *TableSchema) RecordWidth() int {
	w := 4
	for _, c := range s.Columns {
		w += c.Type.FieldWidth()
	}
	return w
}
