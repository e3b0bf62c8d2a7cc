package pdf

import (
	"bytes"
	"io"
	"testing"
)

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func roundTripFilter(t *testing.T, name Name, parms *Dict, in string) string {
	t.Helper()

	buf := &bytes.Buffer{}
	w, err := encodeFilterStep(name, parms, nopWriteCloser{buf})
	if err != nil {
		t.Fatalf("encode setup: %v", err)
	}
	if _, err := w.Write([]byte(in)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	r, err := decodeFilterStep(name, parms, bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("decode setup: %v", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(out)
}

func TestFlateRoundTrip(t *testing.T) {
	for _, in := range []string{"", "12345", "the quick brown fox jumps over the lazy dog"} {
		got := roundTripFilter(t, "FlateDecode", nil, in)
		if got != in {
			t.Errorf("FlateDecode: got %q, want %q", got, in)
		}
	}
}

func TestFlateWithPredictorRoundTrip(t *testing.T) {
	parms := DictOf(
		DictEntry{"Predictor", Integer(12)},
		DictEntry{"Colors", Integer(1)},
		DictEntry{"Columns", Integer(5)},
	)
	in := "0123456789abcde"
	got := roundTripFilter(t, "FlateDecode", parms, in)
	if got != in {
		t.Errorf("got %q, want %q", got, in)
	}
}

func TestLZWRoundTrip(t *testing.T) {
	for _, in := range []string{"", "-----A---B", "abcabcabcabcabcabc"} {
		got := roundTripFilter(t, "LZWDecode", nil, in)
		if got != in {
			t.Errorf("LZWDecode: got %q, want %q", got, in)
		}
	}
}

func TestASCII85RoundTrip(t *testing.T) {
	for _, in := range []string{"", "Man is distinguished"} {
		got := roundTripFilter(t, "ASCII85Decode", nil, in)
		if got != in {
			t.Errorf("ASCII85Decode: got %q, want %q", got, in)
		}
	}
}

func TestASCIIHexRoundTrip(t *testing.T) {
	got := roundTripFilter(t, "ASCIIHexDecode", nil, "hello, world")
	if got != "hello, world" {
		t.Errorf("got %q", got)
	}
}

func TestRunLengthRoundTrip(t *testing.T) {
	got := roundTripFilter(t, "RunLengthDecode", nil, "aaaaaaaaaaaaabcdefg")
	if got != "aaaaaaaaaaaaabcdefg" {
		t.Errorf("got %q", got)
	}
}

func TestFilterChainParsing(t *testing.T) {
	dict := DictOf(DictEntry{"Filter", Array{Name("ASCII85Decode"), Name("FlateDecode")}})
	names, parms, err := filterChain(dict)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "ASCII85Decode" || names[1] != "FlateDecode" {
		t.Errorf("unexpected names: %v", names)
	}
	if len(parms) != 2 {
		t.Errorf("expected two parms slots, got %d", len(parms))
	}
}

func TestDecodeStreamChained(t *testing.T) {
	// Build data compressed with Flate, then ASCII85-armor it, mirroring how
	// a writer might chain filters for a text-mode transport.
	flateBuf := &bytes.Buffer{}
	fw, err := encodeFilterStep("FlateDecode", nil, nopWriteCloser{flateBuf})
	if err != nil {
		t.Fatal(err)
	}
	want := "chained filter content"
	if _, err := fw.Write([]byte(want)); err != nil {
		t.Fatal(err)
	}
	if err := fw.Close(); err != nil {
		t.Fatal(err)
	}

	armored := &bytes.Buffer{}
	aw, err := encodeFilterStep("ASCII85Decode", nil, nopWriteCloser{armored})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := aw.Write(flateBuf.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := aw.Close(); err != nil {
		t.Fatal(err)
	}

	dict := DictOf(DictEntry{"Filter", Array{Name("ASCII85Decode"), Name("FlateDecode")}})
	stream := NewStream(dict, bytes.NewReader(armored.Bytes()))

	r, err := decodeStream(stream)
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
