package bufferpool

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/royd1990/corestore/internal/resource"
	"github.com/royd1990/corestore/internal/types"
)

func intTuple(v int64) types.Tuple {
	return types.Tuple{Values: []types.Value{{Type: types.Fixed(types.Int), I: v}}}
}

func testSchema(t *testing.T) *types.TableSchema {
	t.Helper()
	s, err := types.NewTableSchema(4096, []types.ColumnSchema{
		{Name: "id", Type: types.Fixed(types.Int)},
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func newTestManager(t *testing.T) (*resource.Manager, int64) {
	t.Helper()
	dir := t.TempDir()
	mgr, err := resource.Create(filepath.Join(dir, "t.tbl"), testSchema(t))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { mgr.Close() })
	return mgr, 1
}

func TestReserveAndGetPage(t *testing.T) {
	mgr, rid := newTestManager(t)
	pool := New(nil, nil)
	pool.RegisterResource(rid, mgr)

	w, err := pool.ReserveNewPage(rid)
	if err != nil {
		t.Fatal(err)
	}
	pn := w.PageNumber()

	got, err := pool.GetPage(context.Background(), rid, pn)
	if err != nil {
		t.Fatal(err)
	}
	if got.PageNumber() != pn {
		t.Errorf("PageNumber() = %d, want %d", got.PageNumber(), pn)
	}
}

func TestGetPageAndPinThenUnpin(t *testing.T) {
	mgr, rid := newTestManager(t)
	pool := New(nil, nil)
	pool.RegisterResource(rid, mgr)

	w, err := pool.ReserveNewPage(rid)
	if err != nil {
		t.Fatal(err)
	}
	pn := w.PageNumber()

	pinned, err := pool.GetPageAndPin(context.Background(), rid, pn)
	if err != nil {
		t.Fatal(err)
	}
	if pinned.PageNumber() != pn {
		t.Fatal("unexpected page returned")
	}
	pool.UnpinPage(rid, pn)
}

func TestGetPageUnregisteredResource(t *testing.T) {
	pool := New(nil, nil)
	if _, err := pool.GetPage(context.Background(), 999, 0); err == nil {
		t.Error("expected error for unregistered resource")
	}
}

func TestCloseResourceFlushesDirtyPagesAndExpelsCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.tbl")
	mgr, err := resource.Create(path, testSchema(t))
	if err != nil {
		t.Fatal(err)
	}
	rid := int64(1)

	pool := New(nil, nil)
	pool.RegisterResource(rid, mgr)

	w, err := pool.ReserveNewPage(rid)
	if err != nil {
		t.Fatal(err)
	}
	pn := w.PageNumber()
	if ok, err := w.Page.InsertTuple(intTuple(42)); err != nil || !ok {
		t.Fatalf("InsertTuple: ok=%v err=%v", ok, err)
	}
	if !w.IsModified() {
		t.Fatal("expected page marked modified after InsertTuple")
	}

	if err := pool.CloseResource(rid); err != nil {
		t.Fatal(err)
	}

	// GetPage against the now-closed resource must fail; it is no longer
	// registered with the pool.
	if _, err := pool.GetPage(context.Background(), rid, pn); err == nil {
		t.Error("expected error reading a page from a closed resource")
	}

	// The dirty page must have been flushed to disk before the manager
	// closed, not dropped silently.
	reopened, err := resource.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	buf := make([]byte, reopened.Schema().PageSize)
	tp, err := reopened.ReadPage(buf, pn)
	if err != nil {
		t.Fatal(err)
	}
	if tp.RecordCount() != 1 {
		t.Fatalf("RecordCount() = %d, want 1", tp.RecordCount())
	}
	tu, ok, err := tp.GetTuple(0, 1, 1)
	if err != nil || !ok {
		t.Fatalf("GetTuple: ok=%v err=%v", ok, err)
	}
	if tu.Values[0].I != 42 {
		t.Errorf("flushed tuple = %d, want 42", tu.Values[0].I)
	}
}

func TestCloseFlushesDirtyPagesForEveryResource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.tbl")
	mgr, err := resource.Create(path, testSchema(t))
	if err != nil {
		t.Fatal(err)
	}
	rid := int64(1)

	pool := New(nil, nil)
	pool.RegisterResource(rid, mgr)

	w, err := pool.ReserveNewPage(rid)
	if err != nil {
		t.Fatal(err)
	}
	pn := w.PageNumber()
	if ok, err := w.Page.InsertTuple(intTuple(7)); err != nil || !ok {
		t.Fatalf("InsertTuple: ok=%v err=%v", ok, err)
	}

	if err := pool.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := resource.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	buf := make([]byte, reopened.Schema().PageSize)
	tp, err := reopened.ReadPage(buf, pn)
	if err != nil {
		t.Fatal(err)
	}
	if tp.RecordCount() != 1 {
		t.Fatalf("RecordCount() after Close() = %d, want 1", tp.RecordCount())
	}
}

func TestCloseRejectsFurtherAccess(t *testing.T) {
	mgr, rid := newTestManager(t)
	pool := New(nil, nil)
	pool.RegisterResource(rid, mgr)

	if err := pool.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := pool.GetPage(context.Background(), rid, 0); err == nil {
		t.Error("expected ClosedError after Close")
	}
}
