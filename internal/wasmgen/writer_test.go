package wasmgen

import (
	"bytes"
	"math"
	"testing"
)

func TestWriterLEB128(t *testing.T) {
	tests := []struct {
		name string
		fn   func(w *writer)
		want []byte
	}{
		{"u32 zero", func(w *writer) { w.u32(0) }, []byte{0x00}},
		{"u32 127", func(w *writer) { w.u32(127) }, []byte{0x7f}},
		{"u32 128", func(w *writer) { w.u32(128) }, []byte{0x80, 0x01}},
		{"u32 624485", func(w *writer) { w.u32(624485) }, []byte{0xe5, 0x8e, 0x26}},
		{"s64 zero", func(w *writer) { w.s64(0) }, []byte{0x00}},
		{"s64 -1", func(w *writer) { w.s64(-1) }, []byte{0x7f}},
		{"s64 63", func(w *writer) { w.s64(63) }, []byte{0x3f}},
		{"s64 64", func(w *writer) { w.s64(64) }, []byte{0xc0, 0x00}},
		{"s64 -64", func(w *writer) { w.s64(-64) }, []byte{0x40}},
		{"s64 -123456", func(w *writer) { w.s64(-123456) }, []byte{0xc0, 0xbb, 0x78}},
		{"s64 min int32", func(w *writer) { w.s64(math.MinInt32) }, []byte{0x80, 0x80, 0x80, 0x80, 0x78}},
		{"name", func(w *writer) { w.name("ab") }, []byte{0x02, 'a', 'b'}},
		{"u32le", func(w *writer) { w.u32le(1) }, []byte{0x01, 0x00, 0x00, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w writer
			tt.fn(&w)
			if !bytes.Equal(w.bytes(), tt.want) {
				t.Errorf("got % x, want % x", w.bytes(), tt.want)
			}
		})
	}
}

func TestWriteLocals(t *testing.T) {
	var w writer
	writeLocals(&w, []ValType{I32, I32, I64, I32})
	want := []byte{0x03, 0x02, byte(I32), 0x01, byte(I64), 0x01, byte(I32)}
	if !bytes.Equal(w.bytes(), want) {
		t.Errorf("got % x, want % x", w.bytes(), want)
	}
}

func TestTypeDedup(t *testing.T) {
	m := New()
	a := m.typeIndex(FuncType{Params: []ValType{I32}, Results: []ValType{I32}})
	b := m.typeIndex(FuncType{Params: []ValType{I64}})
	c := m.typeIndex(FuncType{Params: []ValType{I32}, Results: []ValType{I32}})
	if a != c || a == b || len(m.types) != 2 {
		t.Errorf("indices %d %d %d, types %d", a, b, c, len(m.types))
	}
}

func TestEncodeHeader(t *testing.T) {
	got := New().Encode()
	want := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	if !bytes.Equal(got, want) {
		t.Errorf("empty module = % x", got)
	}
}

func TestImportAfterFuncPanics(t *testing.T) {
	m := New()
	m.Func("f", FuncType{}, NewCode(0))
	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	m.Import("env", "g", FuncType{})
}
