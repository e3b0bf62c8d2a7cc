package runlength

import (
	"bytes"
	"io"
	"testing"
)

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func TestRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		[]byte("A"),
		[]byte("AAAA"),
		bytes.Repeat([]byte{'x'}, 200),
		[]byte("abcabcabcabcabc"),
		append(bytes.Repeat([]byte{1}, 5), bytes.Repeat([]byte{2, 3, 4}, 40)...),
	}
	for _, in := range cases {
		buf := &bytes.Buffer{}
		enc := Encode(nopCloser{buf})
		if _, err := enc.Write(in); err != nil {
			t.Fatal(err)
		}
		if err := enc.Close(); err != nil {
			t.Fatal(err)
		}

		dec := Decode(bytes.NewReader(buf.Bytes()))
		out, err := io.ReadAll(dec)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(in, out) {
			t.Errorf("roundtrip mismatch: in=%v out=%v", in, out)
		}
	}
}

func TestEOD(t *testing.T) {
	buf := &bytes.Buffer{}
	enc := Encode(nopCloser{buf})
	enc.Write([]byte("hi"))
	enc.Close()
	if buf.Bytes()[buf.Len()-1] != 128 {
		t.Errorf("expected trailing EOD byte 128, got %v", buf.Bytes())
	}
}
