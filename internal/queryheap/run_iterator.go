package queryheap

import (
	"github.com/royd1990/corestore/internal/page"
	"github.com/royd1990/corestore/internal/resource"
	"github.com/royd1990/corestore/internal/types"
)

// RunIterator lazily walks the pages of one spill run, yielding tuples in
// on-disk order. It is restartable: Rewind resets it to the run's first
// page, and it may be walked repeatedly until Release frees the heap
// assignment backing it.
type RunIterator struct {
	mgr    *resource.Manager
	schema *types.TableSchema
	run    runDescriptor

	blockIndex int
	page       *page.TablePage
	inner      *page.Iterator
}

func newRunIterator(mgr *resource.Manager, schema *types.TableSchema, run runDescriptor) *RunIterator {
	return &RunIterator{mgr: mgr, schema: schema, run: run, blockIndex: -1}
}

// Rewind resets the iterator to the beginning of the run.
func (it *RunIterator) Rewind() {
	it.blockIndex = -1
	it.page = nil
	it.inner = nil
}

func (it *RunIterator) loadBlock(i int) error {
	buf := make([]byte, it.schema.PageSize)
	pn := it.run.firstBlock + uint32(i)
	p, err := it.mgr.ReadPage(buf, pn)
	if err != nil {
		return err
	}
	it.page = p
	numCols := len(it.schema.Columns)
	it.inner = p.Iterator(numCols, fullColumnMask(numCols), nil)
	return nil
}

func fullColumnMask(numCols int) uint64 {
	if numCols >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(numCols)) - 1
}

// Next returns the next tuple in the run, or ok=false once every block has
// been exhausted. It may be called again after exhaustion returns false
// only following a Rewind.
func (it *RunIterator) Next() (types.Tuple, bool, error) {
	for {
		if it.inner == nil {
			it.blockIndex++
			if it.blockIndex >= it.run.numBlocks {
				return types.Tuple{}, false, nil
			}
			if err := it.loadBlock(it.blockIndex); err != nil {
				return types.Tuple{}, false, err
			}
		}
		tu, ok, err := it.inner.Next()
		if err != nil {
			return types.Tuple{}, false, err
		}
		if ok {
			return tu, true, nil
		}
		it.inner = nil
	}
}
