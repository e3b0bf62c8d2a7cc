package lzw

import (
	"bytes"
	"io"
	"testing"
)

// TestLZWSimple reproduces the worked example from PDF 32000-1 §7.4.4.2.
func TestLZWSimple(t *testing.T) {
	input := []byte{45, 45, 45, 45, 45, 65, 45, 45, 45, 66}
	want := []byte{0x80, 0x0B, 0x60, 0x50, 0x22, 0x0C, 0x0C, 0x85, 0x01}

	buf := &bytes.Buffer{}
	w, err := NewWriter(buf, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(input); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	got := buf.Bytes()
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

func TestLZWSimpleDecode(t *testing.T) {
	encoded := []byte{0x80, 0x0B, 0x60, 0x50, 0x22, 0x0C, 0x0C, 0x85, 0x01}
	want := []byte{45, 45, 45, 45, 45, 65, 45, 45, 45, 66}

	r := NewReader(bytes.NewReader(encoded), false)
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

// testCorpus returns a chunk of synthetic but non-trivial data, built by
// repeating this package's own source so the compressor sees both runs and
// varied byte sequences.
func testCorpus(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	for buf.Len() < 100000 {
		buf.WriteString("the quick brown fox jumps over the lazy dog 0123456789 ")
		buf.Write(bytes.Repeat([]byte{'x'}, 37))
	}
	return buf.Bytes()
}

func TestRoundtrip(t *testing.T) {
	data := testCorpus(t)

	for _, writerEarly := range []bool{false, true} {
		for _, readerEarly := range []bool{false, true} {
			buf := &bytes.Buffer{}
			w, err := NewWriter(buf, writerEarly)
			if err != nil {
				t.Fatal(err)
			}
			if _, err := w.Write(data); err != nil {
				t.Fatal(err)
			}
			if err := w.Close(); err != nil {
				t.Fatal(err)
			}

			r := NewReader(bytes.NewReader(buf.Bytes()), readerEarly)
			got, err := io.ReadAll(r)

			matches := writerEarly == readerEarly
			if matches {
				if err != nil {
					t.Fatalf("writerEarly=%v readerEarly=%v: unexpected error: %v", writerEarly, readerEarly, err)
				}
				if !bytes.Equal(got, data) {
					t.Fatalf("writerEarly=%v readerEarly=%v: round trip mismatch", writerEarly, readerEarly)
				}
			} else if err == nil && bytes.Equal(got, data) {
				t.Fatalf("writerEarly=%v readerEarly=%v: mismatched early-change settings should not round trip cleanly", writerEarly, readerEarly)
			}
		}
	}
}

func TestLongRepeatingInput(t *testing.T) {
	// A long periodic input grows the code table well past the 9-bit range,
	// so the writer and reader must widen their codes at the same point.
	buf := &bytes.Buffer{}
	w, err := NewWriter(buf, true)
	if err != nil {
		t.Fatal(err)
	}
	long := bytes.Repeat([]byte("abcdefgh"), 2000)
	if _, err := w.Write(long); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r := NewReader(bytes.NewReader(buf.Bytes()), true)
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, long) {
		t.Error("round trip mismatch for long repeating input")
	}
}
