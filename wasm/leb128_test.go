package wasm_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/2473o/cargo-liquid/wasm"
)

func TestLEB128Unsigned(t *testing.T) {
	tests := []struct {
		encoded []byte
		value   uint32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x01}, 1},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0xff, 0x01}, 255},
		{[]byte{0xe5, 0x8e, 0x26}, 624485},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0x0f}, 0xFFFFFFFF},
	}

	for _, tt := range tests {
		got, err := wasm.ReadLEB128u(bytes.NewReader(tt.encoded))
		if err != nil {
			t.Errorf("ReadLEB128u(%v): %v", tt.encoded, err)
			continue
		}
		if got != tt.value {
			t.Errorf("ReadLEB128u(%v): got %d, want %d", tt.encoded, got, tt.value)
		}

		var buf bytes.Buffer
		wasm.WriteLEB128u(&buf, tt.value)
		if !bytes.Equal(buf.Bytes(), tt.encoded) {
			t.Errorf("WriteLEB128u(%d): got %v, want %v", tt.value, buf.Bytes(), tt.encoded)
		}
	}
}

func TestLEB128Signed(t *testing.T) {
	tests := []struct {
		encoded []byte
		value   int32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x01}, 1},
		{[]byte{0x7f}, -1},
		{[]byte{0x3f}, 63},
		{[]byte{0x40}, -64},
		{[]byte{0xc0, 0x00}, 64},
		{[]byte{0xbf, 0x7f}, -65},
		{[]byte{0x80, 0x80, 0x80, 0x80, 0x78}, -2147483648},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0x07}, 2147483647},
	}

	for _, tt := range tests {
		got, err := wasm.ReadLEB128s(bytes.NewReader(tt.encoded))
		if err != nil {
			t.Errorf("ReadLEB128s(%v): %v", tt.encoded, err)
			continue
		}
		if got != tt.value {
			t.Errorf("ReadLEB128s(%v): got %d, want %d", tt.encoded, got, tt.value)
		}

		var buf bytes.Buffer
		wasm.WriteLEB128s(&buf, tt.value)
		if !bytes.Equal(buf.Bytes(), tt.encoded) {
			t.Errorf("WriteLEB128s(%d): got %v, want %v", tt.value, buf.Bytes(), tt.encoded)
		}
	}
}

func TestLEB128Signed64(t *testing.T) {
	values := []int64{0, 1, -1, 63, -64, 624485, -624485, 1<<62 - 1, -(1 << 62), 9223372036854775807, -9223372036854775808}
	for _, v := range values {
		var buf bytes.Buffer
		wasm.WriteLEB128s64(&buf, v)
		got, err := wasm.ReadLEB128s64(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Errorf("round trip %d: %v", v, err)
			continue
		}
		if got != v {
			t.Errorf("round trip: got %d, want %d", got, v)
		}
	}
}

func TestLEB128Unsigned64(t *testing.T) {
	values := []uint64{0, 1, 127, 128, 1 << 32, 1<<64 - 1}
	for _, v := range values {
		var buf bytes.Buffer
		wasm.WriteLEB128u64(&buf, v)
		got, err := wasm.ReadLEB128u64(bytes.NewReader(buf.Bytes()))
		if err != nil {
			t.Errorf("round trip %d: %v", v, err)
			continue
		}
		if got != v {
			t.Errorf("round trip: got %d, want %d", got, v)
		}
	}
}

func TestLEB128Overflow(t *testing.T) {
	// Too many continuation bytes for a 32-bit value
	data := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}
	if _, err := wasm.ReadLEB128u(bytes.NewReader(data)); !errors.Is(err, wasm.ErrOverflow) {
		t.Errorf("ReadLEB128u: expected ErrOverflow, got %v", err)
	}
	if _, err := wasm.ReadLEB128s(bytes.NewReader(data)); !errors.Is(err, wasm.ErrOverflow) {
		t.Errorf("ReadLEB128s: expected ErrOverflow, got %v", err)
	}
}

func TestFloatRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	wasm.WriteFloat32(&buf, 3.14)
	wasm.WriteFloat64(&buf, -2.718281828)

	r := bytes.NewReader(buf.Bytes())
	f32, err := wasm.ReadFloat32(r)
	if err != nil {
		t.Fatal(err)
	}
	if f32 != 3.14 {
		t.Errorf("float32: got %v, want 3.14", f32)
	}
	f64, err := wasm.ReadFloat64(r)
	if err != nil {
		t.Fatal(err)
	}
	if f64 != -2.718281828 {
		t.Errorf("float64: got %v, want -2.718281828", f64)
	}
}
