package predict

import (
	"bytes"
	"io"
	"testing"
)

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func roundTrip(t *testing.T, p *Params, rows [][]byte) []byte {
	t.Helper()
	var in []byte
	for _, row := range rows {
		in = append(in, row...)
	}

	buf := &bytes.Buffer{}
	w, err := NewWriter(nopCloser{buf}, p)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(in); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(io.NopCloser(bytes.NewReader(buf.Bytes())), p)
	if err != nil {
		t.Fatal(err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestPNGUpRoundTrip(t *testing.T) {
	p := &Params{Colors: 1, BitsPerComponent: 8, Columns: 4, Predictor: 12}
	rows := [][]byte{
		{1, 2, 3, 4},
		{5, 6, 7, 8},
		{0, 0, 0, 0},
	}
	var want []byte
	for _, r := range rows {
		want = append(want, r...)
	}
	got := roundTrip(t, p, rows)
	if !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestPNGPaethRoundTrip(t *testing.T) {
	p := &Params{Colors: 3, BitsPerComponent: 8, Columns: 5, Predictor: 14}
	rows := [][]byte{
		bytes.Repeat([]byte{10, 20, 30}, 5),
		bytes.Repeat([]byte{11, 19, 31}, 5),
	}
	var want []byte
	for _, r := range rows {
		want = append(want, r...)
	}
	got := roundTrip(t, p, rows)
	if !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestTIFF8BitRoundTrip(t *testing.T) {
	p := &Params{Colors: 3, BitsPerComponent: 8, Columns: 4, Predictor: 2}
	row := []byte{10, 20, 30, 12, 22, 32, 14, 24, 34, 16, 26, 36}
	got := roundTrip(t, p, [][]byte{row})
	if !bytes.Equal(got, row) {
		t.Errorf("got %v, want %v", got, row)
	}
}

func TestPNGUpDecodeExactBytes(t *testing.T) {
	p := &Params{Colors: 1, BitsPerComponent: 8, Columns: 4, Predictor: 12}
	encoded := []byte{0x02, 0, 0, 0, 0, 0x02, 1, 1, 1, 1}
	want := []byte{0, 0, 0, 0, 1, 1, 1, 1}

	r, err := NewReader(io.NopCloser(bytes.NewReader(encoded)), p)
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestValidate(t *testing.T) {
	bad := &Params{Colors: 0, BitsPerComponent: 8, Columns: 1, Predictor: 12}
	if err := bad.Validate(); err == nil {
		t.Error("expected an error for Colors=0")
	}

	ok := &Params{Predictor: 1}
	if err := ok.Validate(); err != nil {
		t.Errorf("predictor 1 should always validate: %v", err)
	}
}
