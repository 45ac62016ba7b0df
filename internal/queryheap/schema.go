package queryheap

import (
	"fmt"

	"github.com/royd1990/corestore/internal/types"
)

// BlockPageSize is the fixed spill block page size (implementation
// constant, matching the spec's "8 KiB").
const BlockPageSize = 8192

// syntheticSchema builds a TableSchema for a spill run from a bare column
// type list: the sort operator only declares types, so columns are named
// positionally (c0, c1, ...) and treated as nullable.
func syntheticSchema(columnTypes []types.ColumnType) (*types.TableSchema, error) {
	cols := make([]types.ColumnSchema, len(columnTypes))
	for i, ct := range columnTypes {
		cols[i] = types.ColumnSchema{Name: fmt.Sprintf("c%d", i), Type: ct, Nullable: true}
	}
	return types.NewTableSchema(BlockPageSize, cols)
}
