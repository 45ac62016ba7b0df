package page

import "github.com/royd1990/corestore/internal/types"

// Iterator walks non-tombstoned, predicate-passing records in a single
// page. It is single-pass and tied to the lifetime of the page — not
// restartable.
type Iterator struct {
	p            *TablePage
	predicates   []types.Predicate
	columnBitmap uint64
	numCols      int
	next         int
}

// Iterator returns a lazy sequence over non-tombstoned, predicate-passing
// records projected onto columnBitmap.
func (p *TablePage) Iterator(numCols int, columnBitmap uint64, predicates []types.Predicate) *Iterator {
	return &Iterator{p: p, predicates: predicates, columnBitmap: columnBitmap, numCols: numCols}
}

// Next advances the iterator, returning the next matching tuple, or
// ok == false once exhausted.
func (it *Iterator) Next() (types.Tuple, bool, error) {
	for it.next < it.p.RecordCount() {
		pos := it.next
		it.next++
		tu, ok, err := it.p.GetTupleFiltered(it.predicates, pos, it.columnBitmap, it.numCols)
		if err != nil {
			return types.Tuple{}, false, err
		}
		if ok {
			return tu, true, nil
		}
	}
	return types.Tuple{}, false, nil
}

// Rid identifies a record by its owning page and slot index.
type Rid struct {
	PageNumber uint32
	SlotIndex  int
}

// RidIterator walks all non-tombstoned records, yielding each tuple
// alongside its record id.
type RidIterator struct {
	p    *TablePage
	next int
}

// RidIterator returns a full-row iterator paired with each record's rid.
func (p *TablePage) RidIterator() *RidIterator {
	return &RidIterator{p: p}
}

// Next advances the rid iterator.
func (it *RidIterator) Next() (types.Tuple, Rid, bool, error) {
	full := schemaColumnMask(len(it.p.schema.Columns))
	numCols := len(it.p.schema.Columns)
	for it.next < it.p.RecordCount() {
		pos := it.next
		it.next++
		tu, ok, err := it.p.GetTuple(pos, full, numCols)
		if err != nil {
			return types.Tuple{}, Rid{}, false, err
		}
		if ok {
			return tu, Rid{PageNumber: it.p.PageNumber(), SlotIndex: pos}, true, nil
		}
	}
	return types.Tuple{}, Rid{}, false, nil
}
