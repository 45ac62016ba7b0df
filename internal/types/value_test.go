package types

import "testing"

func TestEncodeDecodeFixedRoundTrip(t *testing.T) {
	cases := []Value{
		{Type: Fixed(SmallInt), I: -7},
		{Type: Fixed(Int), I: 123456},
		{Type: Fixed(BigInt), I: -99999999999},
		{Type: Fixed(Float), F: 3.5},
		{Type: Fixed(Double), F: -2.718281828},
		{Type: Fixed(Date), U32: 20260731},
		{Type: Fixed(Timestamp), U64: 1785628800},
	}
	for _, v := range cases {
		buf := make([]byte, v.Type.BytesFixed())
		if err := v.EncodeFixed(buf); err != nil {
			t.Fatalf("%s: encode: %v", v.Type.Kind, err)
		}
		got, err := DecodeFixed(v.Type, buf)
		if err != nil {
			t.Fatalf("%s: decode: %v", v.Type.Kind, err)
		}
		if got.IsNull {
			t.Fatalf("%s: decoded as NULL unexpectedly", v.Type.Kind)
		}
		switch v.Type.Kind {
		case SmallInt, Int, BigInt:
			if got.I != v.I {
				t.Errorf("%s: got I=%d, want %d", v.Type.Kind, got.I, v.I)
			}
		case Float, Double:
			if got.F != v.F {
				t.Errorf("%s: got F=%v, want %v", v.Type.Kind, got.F, v.F)
			}
		case Date, Time:
			if got.U32 != v.U32 {
				t.Errorf("%s: got U32=%d, want %d", v.Type.Kind, got.U32, v.U32)
			}
		case Timestamp:
			if got.U64 != v.U64 {
				t.Errorf("%s: got U64=%d, want %d", v.Type.Kind, got.U64, v.U64)
			}
		}
	}
}

func TestCharBlankPaddingRoundTrip(t *testing.T) {
	ct, err := Sized(Char, 8)
	if err != nil {
		t.Fatal(err)
	}
	v := Value{Type: ct, S: "hi"}
	buf := make([]byte, ct.BytesFixed())
	if err := v.EncodeFixed(buf); err != nil {
		t.Fatal(err)
	}
	for i, b := range buf[2:] {
		if b != ' ' {
			t.Fatalf("byte %d = %q, want blank pad", i+2, b)
		}
	}
	got, err := DecodeFixed(ct, buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.S != "hi" {
		t.Errorf("got %q, want %q", got.S, "hi")
	}
}

func TestNullFixedRoundTrip(t *testing.T) {
	ct := Fixed(Int)
	v := Null(ct)
	buf := make([]byte, ct.BytesFixed())
	if err := v.EncodeFixed(buf); err != nil {
		t.Fatal(err)
	}
	got, err := DecodeFixed(ct, buf)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsNull {
		t.Error("decoded value should be NULL")
	}
}

func TestVarCharRejectsOverLength(t *testing.T) {
	ct, err := Sized(VarChar, 4)
	if err != nil {
		t.Fatal(err)
	}
	v := Value{Type: ct, S: "toolong"}
	if _, err := v.EncodeVarChar(); err == nil {
		t.Error("expected error encoding a value longer than the declared length")
	}
}

func TestVarCharNullEncodesEmpty(t *testing.T) {
	ct, err := Sized(VarChar, 4)
	if err != nil {
		t.Fatal(err)
	}
	raw, err := Null(ct).EncodeVarChar()
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != 0 {
		t.Errorf("expected zero-length encoding for NULL varchar, got %d bytes", len(raw))
	}
}
