package ascii85

import (
	"bytes"
	"io"
	"testing"
)

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func roundTrip(t *testing.T, in []byte) []byte {
	t.Helper()
	f := NewFilter()

	buf := &bytes.Buffer{}
	enc, err := f.Encode(nopCloser{buf})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Write(in); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	dec, err := f.Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	out, err := io.ReadAll(dec)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		[]byte("1"),
		[]byte("12"),
		[]byte("123"),
		[]byte("1234"),
		[]byte("12345678"),
		[]byte("Man is distinguished, not only by his reason..."),
		bytes.Repeat([]byte{0}, 10), // exercises the "z" shorthand
	}
	for _, in := range cases {
		out := roundTrip(t, in)
		if !bytes.Equal(in, out) {
			t.Errorf("roundTrip(%q) = %q", in, out)
		}
	}
}

func TestZShorthand(t *testing.T) {
	f := NewFilter()
	buf := &bytes.Buffer{}
	enc, err := f.Encode(nopCloser{buf})
	if err != nil {
		t.Fatal(err)
	}
	enc.Write(make([]byte, 4))
	enc.Close()
	if !bytes.Contains(buf.Bytes(), []byte("z")) {
		t.Errorf("expected %q to contain the z shorthand", buf.Bytes())
	}
}

func TestInvalidCharacter(t *testing.T) {
	f := NewFilter()
	dec, err := f.Decode(bytes.NewReader([]byte("\x01~>")))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.ReadAll(dec); err == nil {
		t.Error("expected an error for an invalid character")
	}
}
