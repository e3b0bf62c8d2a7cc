package asciihex

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"testing"
)

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func TestEncoder(t *testing.T) {
	cases := []struct {
		in  []byte
		out string
	}{
		{[]byte("ABC"), "414243>"},
		{[]byte(" "), "20>"},
		{[]byte(""), ">"},
		{[]byte{0x00, 0x0F, 0xF0, 0xFF}, "000ff0ff>"},
	}
	for i, c := range cases {
		t.Run(fmt.Sprintf("%d", i+1), func(t *testing.T) {
			buf := &bytes.Buffer{}
			enc := Encode(nopCloser{buf}, 79)
			if _, err := enc.Write(c.in); err != nil {
				t.Fatal(err)
			}
			if err := enc.Close(); err != nil {
				t.Fatal(err)
			}
			if got := buf.String(); got != c.out {
				t.Errorf("got %q, want %q", got, c.out)
			}
		})
	}
}

func TestLineWidths(t *testing.T) {
	for _, w := range []int{2, 39, 40, 79, 80} {
		for l := 2*w - 3; l <= 2*w+3; l++ {
			buf := &bytes.Buffer{}
			enc := Encode(nopCloser{buf}, w)
			if _, err := enc.Write(bytes.Repeat([]byte{0x1E}, l)); err != nil {
				t.Fatal(err)
			}
			if err := enc.Close(); err != nil {
				t.Fatal(err)
			}
			sc := bufio.NewScanner(buf)
			for sc.Scan() {
				if len(sc.Text()) > w {
					t.Fatalf("width=%d len=%d: %q", w, l, sc.Text())
				}
			}
		}
	}
}

func TestRoundTrip(t *testing.T) {
	in := []byte("The quick brown fox jumps over the lazy dog.")
	buf := &bytes.Buffer{}
	enc := Encode(nopCloser{buf}, 40)
	enc.Write(in)
	enc.Close()

	dec := Decode(bytes.NewReader(buf.Bytes()))
	out, err := io.ReadAll(dec)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(in, out) {
		t.Errorf("got %q, want %q", out, in)
	}
}
