package page

import (
	"testing"

	"github.com/royd1990/corestore/internal/types"
)

func testSchema(t *testing.T) *types.TableSchema {
	t.Helper()
	vc, err := types.Sized(types.VarChar, 32)
	if err != nil {
		t.Fatal(err)
	}
	s, err := types.NewTableSchema(4096, []types.ColumnSchema{
		{Name: "id", Type: types.Fixed(types.Int)},
		{Name: "name", Type: vc, Nullable: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestInitRejectsWrongBufferLength(t *testing.T) {
	s := testSchema(t)
	buf := make([]byte, 100)
	if _, err := Init(s, buf, 0); err == nil {
		t.Error("expected format error for mismatched buffer length")
	}
}

func TestInsertGetDeleteTombstone(t *testing.T) {
	s := testSchema(t)
	buf := make([]byte, s.PageSize)
	p, err := Init(s, buf, 7)
	if err != nil {
		t.Fatal(err)
	}
	if !p.IsModified() {
		t.Error("Init should mark the page modified")
	}
	if p.PageNumber() != 7 {
		t.Errorf("PageNumber() = %d, want 7", p.PageNumber())
	}

	vcType, err := types.Sized(types.VarChar, 32)
	if err != nil {
		t.Fatal(err)
	}
	tup := types.Tuple{Values: []types.Value{
		{Type: types.Fixed(types.Int), I: 1},
		{Type: vcType, S: "alice"},
	}}
	ok, err := p.InsertTuple(tup)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected insert to succeed")
	}
	if p.RecordCount() != 1 {
		t.Fatalf("RecordCount() = %d, want 1", p.RecordCount())
	}

	full := schemaColumnMask(2)
	got, present, err := p.GetTuple(0, full, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !present {
		t.Fatal("expected tuple present")
	}
	if got.Values[0].I != 1 || got.Values[1].S != "alice" {
		t.Errorf("unexpected tuple: %+v", got)
	}

	if err := p.DeleteTuple(0); err != nil {
		t.Fatal(err)
	}
	_, present, err = p.GetTuple(0, full, 2)
	if err != nil {
		t.Fatal(err)
	}
	if present {
		t.Error("expected tombstoned record to be not present")
	}
}

func TestInsertProjection(t *testing.T) {
	s := testSchema(t)
	buf := make([]byte, s.PageSize)
	p, err := Init(s, buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	vcType, _ := types.Sized(types.VarChar, 32)
	tup := types.Tuple{Values: []types.Value{
		{Type: types.Fixed(types.Int), I: 99},
		{Type: vcType, S: "bob"},
	}}
	if _, err := p.InsertTuple(tup); err != nil {
		t.Fatal(err)
	}

	// project only column 1 (name)
	got, present, err := p.GetTuple(0, 1<<1, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !present {
		t.Fatal("expected present")
	}
	if len(got.Values) != 1 || got.Values[0].S != "bob" {
		t.Errorf("unexpected projected tuple: %+v", got)
	}
}

func TestInsertReturnsFalseWhenFull(t *testing.T) {
	vc, err := types.Sized(types.VarChar, 1024)
	if err != nil {
		t.Fatal(err)
	}
	s, err := types.NewTableSchema(4096, []types.ColumnSchema{
		{Name: "blob", Type: vc},
	})
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, s.PageSize)
	p, err := Init(s, buf, 0)
	if err != nil {
		t.Fatal(err)
	}

	big := make([]byte, 1024)
	for i := range big {
		big[i] = 'x'
	}
	tup := types.Tuple{Values: []types.Value{{Type: vc, S: string(big)}}}

	inserted := 0
	for {
		ok, err := p.InsertTuple(tup)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		inserted++
		if inserted > 10 {
			t.Fatal("page should have filled by now")
		}
	}
	if inserted == 0 {
		t.Fatal("expected at least one successful insert")
	}

	snapshot := append([]byte(nil), buf...)
	ok, err := p.InsertTuple(tup)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected insert to fail once page is full")
	}
	for i := range snapshot {
		if snapshot[i] != buf[i] {
			t.Fatalf("page mutated on a failed insert at byte %d", i)
		}
	}
}

func TestOpenRejectsBadMagic(t *testing.T) {
	s := testSchema(t)
	buf := make([]byte, s.PageSize)
	if _, err := Open(s, buf); err == nil {
		t.Error("expected format error opening a zeroed (bad-magic) buffer")
	}
}

func TestOpenRoundTrip(t *testing.T) {
	s := testSchema(t)
	buf := make([]byte, s.PageSize)
	p, err := Init(s, buf, 3)
	if err != nil {
		t.Fatal(err)
	}
	vcType, _ := types.Sized(types.VarChar, 32)
	tup := types.Tuple{Values: []types.Value{
		{Type: types.Fixed(types.Int), I: 5},
		{Type: vcType, S: "carol"},
	}}
	if _, err := p.InsertTuple(tup); err != nil {
		t.Fatal(err)
	}

	p2, err := Open(s, buf)
	if err != nil {
		t.Fatal(err)
	}
	if p2.IsModified() {
		t.Error("Open should mark the page not-modified")
	}
	if p2.RecordCount() != 1 {
		t.Errorf("RecordCount() after reopen = %d, want 1", p2.RecordCount())
	}
}

func TestGetTupleFilteredNullMonotoneFalse(t *testing.T) {
	s := testSchema(t)
	buf := make([]byte, s.PageSize)
	p, err := Init(s, buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	vcType, _ := types.Sized(types.VarChar, 32)
	tup := types.Tuple{Values: []types.Value{
		{Type: types.Fixed(types.Int), I: 1},
		types.Null(vcType),
	}}
	if _, err := p.InsertTuple(tup); err != nil {
		t.Fatal(err)
	}

	pred := types.Predicate{ColumnIndex: 1, Operator: types.Neq, Operand: types.Value{Type: vcType, S: "x"}}
	_, present, err := p.GetTupleFiltered([]types.Predicate{pred}, 0, schemaColumnMask(2), 2)
	if err != nil {
		t.Fatal(err)
	}
	if present {
		t.Error("predicate on a NULL column should be monotone-false, excluding the record")
	}
}

func TestIteratorSkipsTombstones(t *testing.T) {
	s := testSchema(t)
	buf := make([]byte, s.PageSize)
	p, err := Init(s, buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	vcType, _ := types.Sized(types.VarChar, 32)
	for i := 0; i < 3; i++ {
		tup := types.Tuple{Values: []types.Value{
			{Type: types.Fixed(types.Int), I: int64(i)},
			{Type: vcType, S: "row"},
		}}
		if _, err := p.InsertTuple(tup); err != nil {
			t.Fatal(err)
		}
	}
	if err := p.DeleteTuple(1); err != nil {
		t.Fatal(err)
	}

	it := p.Iterator(2, schemaColumnMask(2), nil)
	var seen []int64
	for {
		tu, ok, err := it.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		seen = append(seen, tu.Values[0].I)
	}
	if len(seen) != 2 || seen[0] != 0 || seen[1] != 2 {
		t.Errorf("unexpected iteration result: %v", seen)
	}
}

func TestRidIterator(t *testing.T) {
	s := testSchema(t)
	buf := make([]byte, s.PageSize)
	p, err := Init(s, buf, 42)
	if err != nil {
		t.Fatal(err)
	}
	vcType, _ := types.Sized(types.VarChar, 32)
	tup := types.Tuple{Values: []types.Value{
		{Type: types.Fixed(types.Int), I: 1},
		{Type: vcType, S: "z"},
	}}
	if _, err := p.InsertTuple(tup); err != nil {
		t.Fatal(err)
	}

	it := p.RidIterator()
	_, rid, ok, err := it.Next()
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected one record")
	}
	if rid.PageNumber != 42 || rid.SlotIndex != 0 {
		t.Errorf("unexpected rid: %+v", rid)
	}
	_, _, ok, err = it.Next()
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("expected iterator exhausted")
	}
}

func TestWrapperExpiryIsOneWay(t *testing.T) {
	s := testSchema(t)
	buf := make([]byte, s.PageSize)
	p, err := Init(s, buf, 0)
	if err != nil {
		t.Fatal(err)
	}
	w := NewWrapper(p)
	if w.IsExpired() {
		t.Fatal("fresh wrapper should not be expired")
	}
	w.MarkExpired()
	if !w.IsExpired() {
		t.Fatal("wrapper should report expired after MarkExpired")
	}
	if err := w.CheckNotExpired(); err == nil {
		t.Error("expected ExpiredError after MarkExpired")
	}
}
