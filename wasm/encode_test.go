package wasm_test

import (
	"bytes"
	"testing"

	"github.com/2473o/cargo-liquid/wasm"
)

// encodeParse pushes a module through Encode and ParseModule, failing the
// test on any parse error.
func encodeParse(t *testing.T, m *wasm.Module) *wasm.Module {
	t.Helper()
	data := m.Encode()
	parsed, err := wasm.ParseModule(data)
	if err != nil {
		t.Fatalf("parse encoded module: %v", err)
	}
	if again := parsed.Encode(); !bytes.Equal(again, data) {
		t.Fatal("re-encoded bytes differ")
	}
	return parsed
}

func TestEncodeElementSegmentVariants(t *testing.T) {
	tests := []struct {
		name string
		elem wasm.Element
	}{
		{
			"active funcidx",
			wasm.Element{Flags: 0, Offset: []byte{wasm.OpI32Const, 0x00, wasm.OpEnd}, FuncIdxs: []uint32{0}},
		},
		{
			"passive elemkind",
			wasm.Element{Flags: 1, ElemKind: 0x00, FuncIdxs: []uint32{0, 0}},
		},
		{
			"active explicit table",
			wasm.Element{Flags: 2, TableIdx: 0, Offset: []byte{wasm.OpI32Const, 0x01, wasm.OpEnd}, ElemKind: 0x00, FuncIdxs: []uint32{0}},
		},
		{
			"declarative elemkind",
			wasm.Element{Flags: 3, ElemKind: 0x00, FuncIdxs: []uint32{0}},
		},
		{
			"active exprs",
			wasm.Element{Flags: 4, Offset: []byte{wasm.OpI32Const, 0x00, wasm.OpEnd}, Exprs: [][]byte{{wasm.OpRefFunc, 0x00, wasm.OpEnd}}},
		},
		{
			"passive reftype exprs",
			wasm.Element{Flags: 5, Type: wasm.ValFuncRef, Exprs: [][]byte{{wasm.OpRefNull, 0x70, wasm.OpEnd}}},
		},
		{
			"declarative reftype exprs",
			wasm.Element{Flags: 7, Type: wasm.ValFuncRef, Exprs: [][]byte{{wasm.OpRefFunc, 0x00, wasm.OpEnd}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &wasm.Module{
				Types:    []wasm.FuncType{{}},
				Funcs:    []uint32{0},
				Tables:   []wasm.TableType{{ElemType: wasm.ValFuncRef, Limits: wasm.Limits{Min: 4}}},
				Elements: []wasm.Element{tt.elem},
				Code:     []wasm.FuncBody{{Code: []byte{wasm.OpEnd}}},
			}
			parsed := encodeParse(t, m)

			got := parsed.Elements[0]
			if got.Flags != tt.elem.Flags {
				t.Errorf("flags: got %d, want %d", got.Flags, tt.elem.Flags)
			}
			if got.TableIdx != tt.elem.TableIdx {
				t.Errorf("table index: got %d, want %d", got.TableIdx, tt.elem.TableIdx)
			}
			if !bytes.Equal(got.Offset, tt.elem.Offset) {
				t.Errorf("offset: got %v, want %v", got.Offset, tt.elem.Offset)
			}
			if len(got.FuncIdxs) != len(tt.elem.FuncIdxs) {
				t.Errorf("funcidxs: got %v, want %v", got.FuncIdxs, tt.elem.FuncIdxs)
			}
			if len(got.Exprs) != len(tt.elem.Exprs) {
				t.Errorf("exprs: got %v, want %v", got.Exprs, tt.elem.Exprs)
			}
			for i := range got.Exprs {
				if !bytes.Equal(got.Exprs[i], tt.elem.Exprs[i]) {
					t.Errorf("expr %d: got %v, want %v", i, got.Exprs[i], tt.elem.Exprs[i])
				}
			}
		})
	}
}

func TestEncodeDataSegmentVariants(t *testing.T) {
	m := &wasm.Module{
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}},
		Data: []wasm.DataSegment{
			{Flags: 0, Offset: []byte{wasm.OpI32Const, 0x00, wasm.OpEnd}, Init: []byte{1, 2, 3}},
			{Flags: 1, Init: []byte{4, 5}},
			{Flags: 2, MemIdx: 0, Offset: []byte{wasm.OpI32Const, 0x10, wasm.OpEnd}, Init: []byte{6}},
		},
	}
	parsed := encodeParse(t, m)

	if !parsed.Data[0].IsActive() || parsed.Data[1].IsActive() || !parsed.Data[2].IsActive() {
		t.Errorf("activity flags: got %+v", parsed.Data)
	}
	if !bytes.Equal(parsed.Data[1].Init, []byte{4, 5}) {
		t.Errorf("passive init: got %v", parsed.Data[1].Init)
	}
	if !bytes.Equal(parsed.Data[2].Offset, m.Data[2].Offset) {
		t.Errorf("explicit memidx offset: got %v", parsed.Data[2].Offset)
	}
}

func TestEncodeStartSection(t *testing.T) {
	m := &wasm.Module{
		Types: []wasm.FuncType{{}},
		Funcs: []uint32{0},
		Code:  []wasm.FuncBody{{Code: []byte{wasm.OpEnd}}},
		Start: u32ptr(0),
	}
	parsed := encodeParse(t, m)
	if parsed.Start == nil || *parsed.Start != 0 {
		t.Errorf("start: got %v", parsed.Start)
	}
}

func TestEncodeGlobalInitExprs(t *testing.T) {
	m := &wasm.Module{
		Globals: []wasm.Global{
			{Type: wasm.GlobalType{ValType: wasm.ValI32, Mutable: true}, Init: []byte{wasm.OpI32Const, 0x80, 0x08, wasm.OpEnd}},
			{Type: wasm.GlobalType{ValType: wasm.ValI64}, Init: []byte{wasm.OpI64Const, 0x2A, wasm.OpEnd}},
			{Type: wasm.GlobalType{ValType: wasm.ValFuncRef}, Init: []byte{wasm.OpRefNull, 0x70, wasm.OpEnd}},
		},
	}
	parsed := encodeParse(t, m)
	for i := range m.Globals {
		if !bytes.Equal(parsed.Globals[i].Init, m.Globals[i].Init) {
			t.Errorf("global %d init: got %v, want %v", i, parsed.Globals[i].Init, m.Globals[i].Init)
		}
	}
	if parsed.Globals[0].Type.Mutable != true || parsed.Globals[1].Type.Mutable != false {
		t.Error("global mutability not preserved")
	}
}

func TestEncodeUnboundedLimits(t *testing.T) {
	m := &wasm.Module{
		Memories: []wasm.MemoryType{{Limits: wasm.Limits{Min: 17}}},
	}
	parsed := encodeParse(t, m)
	if parsed.Memories[0].Limits.Min != 17 || parsed.Memories[0].Limits.Max != nil {
		t.Errorf("limits: got %+v", parsed.Memories[0].Limits)
	}
}
