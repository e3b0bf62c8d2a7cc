package pdf

import (
	"bytes"
	"testing"
)

func TestDecodeXRefSectionClassicalTable(t *testing.T) {
	data := "0000000000 65535 f\r\n" +
		"0000000010 00000 n\r\n" +
		"0000000099 00002 n\r\n"
	sc := newScanner(bytes.NewReader([]byte(data)))
	xref := make(map[uint32]*xrefEntry)
	if err := decodeXRefSection(xref, sc, 0, 3); err != nil {
		t.Fatalf("decodeXRefSection: %v", err)
	}

	if !xref[0].IsFree() {
		t.Fatal("entry 0 should be free")
	}
	if xref[1].Kind != xrefNormal || xref[1].Pos != 10 {
		t.Fatalf("entry 1 = %+v, want Pos=10 n", xref[1])
	}
	if xref[2].Kind != xrefNormal || xref[2].Pos != 99 || xref[2].Generation != 2 {
		t.Fatalf("entry 2 = %+v, want Pos=99 Generation=2 n", xref[2])
	}
}

func TestDecodeXRefSectionDoesNotOverwriteNewer(t *testing.T) {
	xref := map[uint32]*xrefEntry{
		1: {Kind: xrefNormal, Pos: 555},
	}
	data := "0000000010 00000 n\r\n"
	sc := newScanner(bytes.NewReader([]byte(data)))
	if err := decodeXRefSection(xref, sc, 1, 2); err != nil {
		t.Fatalf("decodeXRefSection: %v", err)
	}
	if xref[1].Pos != 555 {
		t.Fatalf("an existing (newer) entry should not be overwritten, got Pos=%d", xref[1].Pos)
	}
}

func TestWriteXRefTableRoundTrip(t *testing.T) {
	entries := map[uint32]*xrefEntry{
		1: {Kind: xrefNormal, Pos: 17, Generation: 0},
		2: {Kind: xrefNormal, Pos: 42, Generation: 0},
	}
	trailer := DictOf(DictEntry{"Size", Integer(3)}, DictEntry{"Root", NewReference(1, 0)})

	buf := &bytes.Buffer{}
	if err := writeXRefTable(buf, entries, 3, trailer); err != nil {
		t.Fatalf("writeXRefTable: %v", err)
	}

	xref := make(map[uint32]*xrefEntry)
	sc := newScanner(bytes.NewReader(buf.Bytes()))
	dict, err := readXRefTable(xref, sc)
	if err != nil {
		t.Fatalf("readXRefTable: %v", err)
	}

	if !xref[0].IsFree() {
		t.Fatal("object 0 should always be the free-list head")
	}
	if xref[1].Pos != 17 || xref[2].Pos != 42 {
		t.Fatalf("round-tripped xref = %+v, %+v", xref[1], xref[2])
	}
	size, ok := get[Integer](dict, "Size")
	if !ok || size != 3 {
		t.Fatalf("trailer /Size = %v, want 3", size)
	}
}

func TestBuildXRefStreamDataRoundTrip(t *testing.T) {
	entries := map[uint32]*xrefEntry{
		1: {Kind: xrefNormal, Pos: 1000, Generation: 0},
		2: {Kind: xrefCompressed, InStream: NewReference(5, 0), Pos: 3},
	}
	data, w, err := buildXRefStreamData(entries, 3)
	if err != nil {
		t.Fatalf("buildXRefStreamData: %v", err)
	}

	decoded := make(map[uint32]*xrefEntry)
	ss := []xrefSubSection{{Start: 0, Size: 3}}
	if err := decodeXRefStreamData(decoded, bytes.NewReader(data), w[:], ss); err != nil {
		t.Fatalf("decodeXRefStreamData: %v", err)
	}

	if !decoded[0].IsFree() {
		t.Fatal("object 0 should decode as free")
	}
	if decoded[1].Kind != xrefNormal || decoded[1].Pos != 1000 {
		t.Fatalf("decoded[1] = %+v, want Pos=1000 normal", decoded[1])
	}
	if decoded[2].Kind != xrefCompressed || decoded[2].InStream.Number() != 5 || decoded[2].Pos != 3 {
		t.Fatalf("decoded[2] = %+v, want InStream=5 Pos=3 compressed", decoded[2])
	}
}

func TestXrefNeedsStream(t *testing.T) {
	classical := map[uint32]*xrefEntry{1: {Kind: xrefNormal}}
	if xrefNeedsStream(classical) {
		t.Fatal("a purely classical entry set should not require a stream")
	}
	withCompressed := map[uint32]*xrefEntry{1: {Kind: xrefCompressed}}
	if !xrefNeedsStream(withCompressed) {
		t.Fatal("a compressed entry requires a cross-reference stream")
	}
}
