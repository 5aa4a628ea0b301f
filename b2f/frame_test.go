package b2f

import (
	"bufio"
	"bytes"
	"io/ioutil"
	"strconv"
	"testing"
	"testing/iotest"

	"github.com/kc1gsl/varafbb/lzhuf"
)

func compress(t *testing.T, plain []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := lzhuf.NewB2Writer(&buf)
	if _, err := w.Write(plain); err != nil {
		t.Fatalf("lzhuf write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("lzhuf close: %v", err)
	}
	return buf.Bytes()
}

func TestFrameRoundTrip(t *testing.T) {
	plain := bytes.Repeat([]byte("Hello Winlink, this is a test message. "), 10)
	payload := compress(t, plain)

	f := Frame{Title: "Test message", Offset: 0, Payload: payload}

	var out bytes.Buffer
	if err := WriteFrame(&out, f); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	got, err := ReadFrame(bufio.NewReader(&out))
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.Title != f.Title {
		t.Errorf("Title = %q; want %q", got.Title, f.Title)
	}
	if got.Offset != f.Offset {
		t.Errorf("Offset = %d; want %d", got.Offset, f.Offset)
	}
	if !bytes.Equal(got.Payload, f.Payload) {
		t.Errorf("Payload mismatch: got %d bytes, want %d bytes", len(got.Payload), len(f.Payload))
	}

	r, err := lzhuf.NewB2Reader(bytes.NewReader(got.Payload))
	if err != nil {
		t.Fatalf("NewB2Reader: %v", err)
	}
	decoded, err := ioutil.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("lzhuf Close: %v", err)
	}
	if !bytes.Equal(decoded, plain) {
		t.Errorf("decoded mismatch: got %q want %q", decoded, plain)
	}
}

func TestFrameSpansMultipleBlocks(t *testing.T) {
	plain := make([]byte, 1000)
	x := uint32(1)
	for i := range plain {
		x = x*1103515245 + 12345
		plain[i] = byte(x >> 16)
	}
	payload := compress(t, plain)
	if len(payload) <= MaxBlockLength {
		t.Fatalf("test payload too short to span multiple blocks: %d bytes", len(payload))
	}

	f := Frame{Title: "multi-block", Offset: 0, Payload: payload}

	var out bytes.Buffer
	if err := WriteFrame(&out, f); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	got, err := ReadFrame(bufio.NewReader(&out))
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Errorf("payload mismatch across block boundary")
	}
}

func TestFrameOffsetResume(t *testing.T) {
	payload := compress(t, []byte("resume me"))
	f := Frame{Title: "resume", Offset: 4, Payload: payload[4:]}

	var out bytes.Buffer
	if err := WriteFrame(&out, f); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	got, err := ReadFrame(bufio.NewReader(&out))
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.Offset != 4 {
		t.Errorf("Offset = %d; want 4", got.Offset)
	}
	if !bytes.Equal(got.Payload, payload[4:]) {
		t.Errorf("payload mismatch for resumed frame")
	}
}

// TestParserResumesAcrossPartialReads feeds a frame's bytes in two
// pieces, split partway through a data block (after its STX + length
// header, as a frame arriving split across TCP reads would), and
// checks that the first piece alone reports Incomplete with a Need
// no greater than what's actually missing, and that feeding the rest
// completes the frame (Parse re-examines the buffer from the SOH).
func TestParserResumesAcrossPartialReads(t *testing.T) {
	plain := bytes.Repeat([]byte("split across two reads please"), 20)
	payload := compress(t, plain)
	f := Frame{Title: "split", Offset: 0, Payload: payload}

	var out bytes.Buffer
	if err := WriteFrame(&out, f); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	full := out.Bytes()

	// Split after the first data block's STX + length byte, partway
	// into its payload, so the remaining length is already knowable
	// and Need should be exact.
	split := 2 + len(f.Title) + 1 + len(fmtOffset(f.Offset)) + 1 + 2 + 10
	if split >= len(full) {
		t.Fatalf("test frame too short for split point %d (total %d)", split, len(full))
	}

	var p Parser
	p.Feed(full[:split])

	_, err := p.Parse()
	inc, ok := err.(Incomplete)
	if !ok {
		t.Fatalf("Parse on partial frame: got %v (%T); want Incomplete", err, err)
	}
	remaining := len(full) - split
	if inc.Need <= 0 || inc.Need > remaining {
		t.Errorf("Incomplete.Need = %d; want in (0, %d]", inc.Need, remaining)
	}

	p.Feed(full[split:])
	got, err := p.Parse()
	if err != nil {
		t.Fatalf("Parse after resuming: %v", err)
	}
	if got.Title != f.Title || got.Offset != f.Offset {
		t.Errorf("got Title=%q Offset=%d; want Title=%q Offset=%d", got.Title, got.Offset, f.Title, f.Offset)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Errorf("payload mismatch after resumed parse")
	}
}

// TestParserIncompleteOnEmptyAndShortHeader checks the lower-bound
// Need=1 reported before a complete header has arrived.
func TestParserIncompleteOnEmptyAndShortHeader(t *testing.T) {
	var p Parser
	if _, err := p.Parse(); err != (Incomplete{Need: 1}) {
		t.Fatalf("Parse on empty buffer: got %v; want Incomplete{Need: 1}", err)
	}

	p.Feed([]byte{chrSOH})
	if _, err := p.Parse(); err != (Incomplete{Need: 1}) {
		t.Fatalf("Parse after only SOH: got %v; want Incomplete{Need: 1}", err)
	}
}

// TestReadFrameByteAtATime simulates a connection delivering one byte
// per Read: ReadFrame must still assemble the complete frame, proving
// it resumes across many successive Incomplete reports rather than
// only tolerating a single split.
func TestReadFrameByteAtATime(t *testing.T) {
	payload := compress(t, []byte("trickled in one byte at a time"))
	f := Frame{Title: "trickle", Offset: 0, Payload: payload}

	var out bytes.Buffer
	if err := WriteFrame(&out, f); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	got, err := ReadFrame(bufio.NewReaderSize(iotest.OneByteReader(bytes.NewReader(out.Bytes())), 1))
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.Title != f.Title || !bytes.Equal(got.Payload, payload) {
		t.Errorf("got %+v; want Title=%q Payload matching", got, f.Title)
	}
}

func fmtOffset(n int) string {
	return strconv.Itoa(n)
}

func TestFrameBadChecksum(t *testing.T) {
	payload := compress(t, []byte("corrupt me"))
	f := Frame{Title: "x", Offset: 0, Payload: payload}

	var out bytes.Buffer
	if err := WriteFrame(&out, f); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}

	corrupted := out.Bytes()
	corrupted[len(corrupted)-1] ^= 0xff // flip the trailing checksum byte

	if _, err := ReadFrame(bufio.NewReader(bytes.NewReader(corrupted))); err != ErrChecksum {
		t.Errorf("ReadFrame error = %v; want ErrChecksum", err)
	}
}
