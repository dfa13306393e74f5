package binary

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestReaderReadByte(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	r := NewReader(bytes.NewReader(data))

	for i, want := range data {
		if r.Position() != i {
			t.Errorf("position before read %d: got %d, want %d", i, r.Position(), i)
		}
		b, err := r.ReadByte()
		if err != nil {
			t.Fatalf("ReadByte %d: %v", i, err)
		}
		if b != want {
			t.Errorf("ReadByte %d: got 0x%02x, want 0x%02x", i, b, want)
		}
	}

	if r.Position() != 3 {
		t.Errorf("final position: got %d, want 3", r.Position())
	}

	_, err := r.ReadByte()
	if !errors.Is(err, io.EOF) {
		t.Errorf("expected EOF, got %v", err)
	}
}

func TestReaderReadBytes(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
	r := NewReader(bytes.NewReader(data))

	got, err := r.ReadBytes(3)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if !bytes.Equal(got, []byte{0x01, 0x02, 0x03}) {
		t.Errorf("ReadBytes: got %v, want [1 2 3]", got)
	}

	if r.Position() != 3 {
		t.Errorf("position: got %d, want 3", r.Position())
	}

	_, err = r.ReadBytes(10)
	if err == nil {
		t.Error("expected error for reading past EOF")
	}
}

func TestReaderReadU32(t *testing.T) {
	tests := []struct {
		encoded []byte
		want    uint32
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
		r := NewReader(bytes.NewReader(tt.encoded))
		got, err := r.ReadU32()
		if err != nil {
			t.Errorf("ReadU32(%v): %v", tt.encoded, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ReadU32(%v): got %d, want %d", tt.encoded, got, tt.want)
		}
	}
}

func TestReaderReadU32Overflow(t *testing.T) {
	// Six continuation bytes exceeds the 35-bit shift limit
	data := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}
	r := NewReader(bytes.NewReader(data))
	_, err := r.ReadU32()
	if !errors.Is(err, ErrOverflow) {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
}

func TestReaderReadName(t *testing.T) {
	tests := []struct {
		name    string
		encoded []byte
		want    string
		wantErr bool
	}{
		{"empty", []byte{0x00}, "", false},
		{"ascii", []byte{0x04, 'c', 'a', 'l', 'l'}, "call", false},
		{"utf8", []byte{0x03, 0xE2, 0x82, 0xAC}, "€", false},
		{"invalid utf8", []byte{0x02, 0xff, 0xfe}, "", true},
		{"truncated", []byte{0x05, 'a'}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(bytes.NewReader(tt.encoded))
			got, err := r.ReadName()
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReadName: %v", err)
			}
			if got != tt.want {
				t.Errorf("ReadName: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReaderReadU32LE(t *testing.T) {
	data := []byte{0x00, 0x61, 0x73, 0x6d}
	r := NewReader(bytes.NewReader(data))
	got, err := r.ReadU32LE()
	if err != nil {
		t.Fatalf("ReadU32LE: %v", err)
	}
	if got != 0x6d736100 {
		t.Errorf("ReadU32LE: got 0x%08x, want 0x6d736100", got)
	}
}

func TestReaderReadRemaining(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04}
	r := NewReader(bytes.NewReader(data))

	if _, err := r.ReadByte(); err != nil {
		t.Fatal(err)
	}

	rest, err := r.ReadRemaining()
	if err != nil {
		t.Fatalf("ReadRemaining: %v", err)
	}
	if !bytes.Equal(rest, []byte{0x02, 0x03, 0x04}) {
		t.Errorf("ReadRemaining: got %v, want [2 3 4]", rest)
	}
	if r.Position() != 4 {
		t.Errorf("position: got %d, want 4", r.Position())
	}
}

func TestWriterRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 127, 128, 255, 624485, 0xFFFFFFFF}
	for _, v := range values {
		w := NewWriter()
		w.WriteU32(v)
		r := NewReader(bytes.NewReader(w.Bytes()))
		got, err := r.ReadU32()
		if err != nil {
			t.Errorf("round trip %d: %v", v, err)
			continue
		}
		if got != v {
			t.Errorf("round trip: got %d, want %d", got, v)
		}
	}
}

func TestWriterName(t *testing.T) {
	w := NewWriter()
	w.WriteName("deploy")
	want := []byte{0x06, 'd', 'e', 'p', 'l', 'o', 'y'}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("WriteName: got %v, want %v", w.Bytes(), want)
	}
}

func TestWriterU32LE(t *testing.T) {
	w := NewWriter()
	w.WriteU32LE(0x6d736100)
	want := []byte{0x00, 0x61, 0x73, 0x6d}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("WriteU32LE: got %v, want %v", w.Bytes(), want)
	}
}

func TestParseError(t *testing.T) {
	base := errors.New("bad flag")
	r := NewReader(bytes.NewReader([]byte{0x01, 0x02}))
	if _, err := r.ReadByte(); err != nil {
		t.Fatal(err)
	}

	err := r.WrapError("element section", base)
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if pe.Position != 1 {
		t.Errorf("Position = %d, want 1", pe.Position)
	}
	if !errors.Is(err, base) {
		t.Error("ParseError should unwrap to base error")
	}
}
