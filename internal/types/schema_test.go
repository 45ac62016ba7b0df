package types

import "testing"

func TestNewTableSchemaValidation(t *testing.T) {
	cols := []ColumnSchema{
		{Name: "id", Type: Fixed(Int)},
		{Name: "name", Type: mustSized(t, Char, 32)},
	}
	s, err := NewTableSchema(4096, cols)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := s.ColumnIndex("ID"); got != 0 {
		t.Errorf("case-insensitive lookup of ID failed, got index %d", got)
	}
	if got := s.ColumnIndex("missing"); got != -1 {
		t.Errorf("expected -1 for missing column, got %d", got)
	}
}

func TestNewTableSchemaRejectsBadPageSize(t *testing.T) {
	cols := []ColumnSchema{{Name: "id", Type: Fixed(Int)}}
	if _, err := NewTableSchema(1000, cols); err == nil {
		t.Error("expected error for non-enumerated page size")
	}
}

func TestNewTableSchemaRejectsDuplicateNames(t *testing.T) {
	cols := []ColumnSchema{
		{Name: "id", Type: Fixed(Int)},
		{Name: "ID", Type: Fixed(Int)},
	}
	if _, err := NewTableSchema(4096, cols); err == nil {
		t.Error("expected error for case-insensitive duplicate column name")
	}
}

func TestNewTableSchemaRejectsTooManyColumns(t *testing.T) {
	cols := make([]ColumnSchema, MaxTableColumns+1)
	for i := range cols {
		cols[i] = ColumnSchema{Name: rep("c", i), Type: Fixed(Int)}
	}
	if _, err := NewTableSchema(4096, cols); err == nil {
		t.Error("expected error exceeding MaxTableColumns")
	}
}

func TestRecordWidth(t *testing.T) {
	cols := []ColumnSchema{
		{Name: "id", Type: Fixed(Int)},            // 4
		{Name: "tag", Type: mustSized(t, VarChar, 64)}, // 8
	}
	s, err := NewTableSchema(4096, cols)
	if err != nil {
		t.Fatal(err)
	}
	want := 4 /* flags */ + 4 /* int */ + 8 /* varchar offset+len */
	if got := s.RecordWidth(); got != want {
		t.Errorf("RecordWidth() = %d, want %d", got, want)
	}
}

func mustSized(t *testing.T, k Kind, n int) ColumnType {
	t.Helper()
	ct, err := Sized(k, n)
	if err != nil {
		t.Fatal(err)
	}
	return ct
}

func rep(prefix string, i int) string {
	b := []byte(prefix)
	for i > 0 {
		b = append(b, byte('a'+i%26))
		i /= 26
	}
	return string(b)
}
