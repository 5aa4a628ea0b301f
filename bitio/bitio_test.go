package bitio

import (
	"bytes"
	"io"
	"testing"
)

func TestReaderGetByte(t *testing.T) {
	input := []byte{0xFA, 0x50, 0xFF, 0x00, 0x96, 0xC3}
	r := NewReader(bytes.NewReader(input))
	for _, want := range input {
		if got := r.ReadBits(8); got != int(want) {
			t.Fatalf("ReadBits(8) = %#02x; want %#02x", got, want)
		}
	}
}

func TestReaderGetBit(t *testing.T) {
	input := []byte{0xFA, 0x50} // 1111 1010  0101 0000
	want := []int{1, 1, 1, 1, 1, 0, 1, 0}
	r := NewReader(bytes.NewReader(input))
	for i, w := range want {
		if got := r.ReadBits(1); got != w {
			t.Errorf("bit %d: got %d, want %d", i, got, w)
		}
	}
}

func TestReaderErrAtExhaustion(t *testing.T) {
	r := NewReader(bytes.NewReader(nil))
	r.ReadBits(1)
	if r.Err() != io.EOF {
		t.Errorf("expected io.EOF, got %v", r.Err())
	}
}

func TestWriterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.PutCode(4, 0xA000); err != nil { // top 4 bits: 1010
		t.Fatal(err)
	}
	if err := w.PutCode(4, 0x5000); err != nil { // top 4 bits: 0101
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if got, want := buf.Bytes(), []byte{0xA5}; !bytes.Equal(got, want) {
		t.Errorf("got %x; want %x", got, want)
	}
}

func TestWriterCloseIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.PutCode(4, 0xF000)
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	firstLen := buf.Len()
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != firstLen {
		t.Error("second Close must not emit another byte")
	}
}
