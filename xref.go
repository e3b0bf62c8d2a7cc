package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/bits"
	"strconv"
)

// xrefKind distinguishes the three ways an object can appear in a
// cross-reference table or stream.
type xrefKind int

const (
	xrefFree xrefKind = iota
	xrefNormal
	xrefCompressed
)

// xrefEntry records where one object's content can be found.
type xrefEntry struct {
	Kind       xrefKind
	Pos        int64  // xrefNormal: byte offset of "N G obj"; xrefCompressed: index within the container stream
	Generation uint16 // xrefNormal, xrefFree
	InStream   Reference
}

func (e *xrefEntry) IsFree() bool { return e == nil || e.Kind == xrefFree }

// xrefSubSection is one (start, size) run of object numbers, as found in a
// classical xref table section header or a stream's /Index array.
type xrefSubSection struct {
	Start, Size int
}

// source is the minimal random-access view of a PDF file's bytes needed to
// locate and decode its cross-reference structures.
type source interface {
	io.ReaderAt
	Size() int64
}

func scannerAt(src source, pos int64, getInt func(Object) (Integer, error)) *scanner {
	sr := io.NewSectionReader(src, pos, src.Size()-pos)
	return newDocScanner(sr, getInt)
}

// readXRef walks the /Prev chain of cross-reference sections starting from
// the trailer at the end of the file, merging entries first-wins (the most
// recent revision of an object takes priority over earlier ones).
func readXRef(src source, getInt func(Object) (Integer, error)) (map[uint32]*xrefEntry, *Dict, error) {
	start, err := findXRef(src)
	if err != nil {
		return nil, nil, err
	}

	xref := make(map[uint32]*xrefEntry)
	trailer := NewDict()
	first := true
	seen := make(map[int64]bool)

	const maxGenerations = 1024
	for i := 0; ; i++ {
		if i >= maxGenerations {
			return nil, nil, &LimitError{Limit: "xref /Prev chain too long"}
		}
		if seen[start] {
			break
		}
		seen[start] = true

		s := scannerAt(src, start, getInt)

		buf, err := s.Peek(4)
		if err != nil {
			return nil, nil, err
		}

		var dict *Dict
		if bytes.Equal(buf, []byte("xref")) {
			dict, err = readXRefTable(xref, s)
			if err != nil {
				return nil, nil, err
			}
			if xRefStm, ok := dict.Get("XRefStm"); ok {
				pos, ok := xRefStm.(Integer)
				if !ok {
					return nil, nil, &ParseError{Pos: start, Err: errors.New("wrong type for /XRefStm")}
				}
				hs := scannerAt(src, int64(pos), getInt)
				if _, err := readXRefStream(xref, hs); err != nil {
					return nil, nil, err
				}
			}
		} else {
			dict, err = readXRefStream(xref, s)
			if err != nil {
				return nil, nil, err
			}
		}

		if first {
			for _, key := range []Name{"Root", "Encrypt", "Info", "ID"} {
				if val, ok := dict.Get(key); ok {
					trailer.Set(key, val)
				}
			}
			first = false
		}

		prev, ok := dict.Get("Prev")
		if !ok {
			break
		}
		prevPos, ok := prev.(Integer)
		if !ok || prevPos <= 0 || int64(prevPos) >= src.Size() {
			return nil, nil, &ParseError{Pos: start, Err: fmt.Errorf("invalid /Prev value %s", Format(prev))}
		}
		start = int64(prevPos)
	}

	return xref, trailer, nil
}

func findXRef(src source) (int64, error) {
	pos, err := lastOccurence(src, "startxref")
	if err != nil {
		return 0, err
	}
	s := scannerAt(src, pos+9, nil)

	if err := s.SkipWhiteSpace(); err != nil {
		return 0, err
	}
	xrefPos, err := s.ReadInteger()
	if err != nil {
		return 0, err
	}
	if xrefPos <= 0 || int64(xrefPos) >= src.Size() {
		return 0, &ParseError{Pos: s.Pos(), Err: errors.New("invalid xref position")}
	}
	return int64(xrefPos), nil
}

func lastOccurence(src source, pat string) (int64, error) {
	const chunkSize = 1024
	buf := make([]byte, chunkSize)
	k := int64(len(pat))
	pos := src.Size()
	for pos >= k {
		start := pos - chunkSize
		if start < 0 {
			start = 0
		}
		n, err := src.ReadAt(buf[:pos-start], start)
		if err != nil && err != io.EOF {
			return 0, err
		}
		idx := bytes.LastIndex(buf[:n], []byte(pat))
		if idx >= 0 {
			return start + int64(idx), nil
		}
		pos = start + k - 1
	}
	return 0, &ParseError{Pos: 0, Err: errors.New("startxref not found")}
}

func readXRefTable(xref map[uint32]*xrefEntry, s *scanner) (*Dict, error) {
	if err := s.SkipString("xref"); err != nil {
		return nil, err
	}
	if err := s.SkipWhiteSpace(); err != nil {
		return nil, err
	}

	for {
		buf, err := s.Peek(1)
		if err != nil {
			return nil, err
		}
		if len(buf) == 0 || buf[0] < '0' || buf[0] > '9' {
			break
		}

		start, err := s.ReadInteger()
		if err != nil {
			return nil, err
		}
		if err := s.SkipWhiteSpace(); err != nil {
			return nil, err
		}
		length, err := s.ReadInteger()
		if err != nil {
			return nil, err
		}
		if err := s.SkipWhiteSpace(); err != nil {
			return nil, err
		}
		if err := decodeXRefSection(xref, s, int(start), int(start+length)); err != nil {
			return nil, err
		}
		if err := s.SkipWhiteSpace(); err != nil {
			return nil, err
		}
	}

	if err := s.SkipWhiteSpace(); err != nil {
		return nil, err
	}
	if err := s.SkipString("trailer"); err != nil {
		return nil, err
	}
	if err := s.SkipWhiteSpace(); err != nil {
		return nil, err
	}
	return s.ReadDict()
}

func decodeXRefSection(xref map[uint32]*xrefEntry, s *scanner, start, end int) error {
	for i := start; i < end; i++ {
		if xref[uint32(i)] != nil {
			if err := s.Discard(20); err != nil {
				return err
			}
			continue
		}

		buf, err := s.Peek(20)
		if err != nil {
			return err
		}
		if len(buf) < 20 {
			return &ParseError{Pos: s.Pos(), Err: io.ErrUnexpectedEOF}
		}

		a, err := strconv.ParseInt(string(buf[:10]), 10, 64)
		if err != nil {
			return err
		}
		b, err := strconv.ParseUint(string(buf[11:16]), 10, 16)
		if err != nil {
			if bytes.HasPrefix(buf, []byte("0000000000 65536 ")) {
				b = 65535
				buf[17] = 'f'
			} else {
				return err
			}
		}

		switch buf[17] {
		case 'f':
			xref[uint32(i)] = &xrefEntry{Kind: xrefFree, Generation: uint16(b)}
		case 'n':
			xref[uint32(i)] = &xrefEntry{Kind: xrefNormal, Pos: a, Generation: uint16(b)}
		default:
			return &ParseError{Pos: s.Pos(), Err: errors.New("malformed xref table entry")}
		}

		if err := s.Discard(20); err != nil {
			return err
		}
	}
	return nil
}

func readXRefStream(xref map[uint32]*xrefEntry, s *scanner) (*Dict, error) {
	obj, err := s.ReadIndirectObject()
	if err != nil {
		return nil, err
	}
	stream, ok := obj.Obj.(*Stream)
	if !ok {
		return nil, &ParseError{Pos: s.Pos(), Err: errors.New("invalid xref stream")}
	}
	dict := stream.Dict

	w, ss, err := checkXRefStreamDict(dict)
	if err != nil {
		return nil, err
	}

	decoded, err := decodeStream(stream)
	if err != nil {
		return nil, err
	}
	if err := decodeXRefStreamData(xref, decoded, w, ss); err != nil {
		return nil, err
	}
	return dict, nil
}

func checkXRefStreamDict(dict *Dict) ([]int, []xrefSubSection, error) {
	size, ok := get[Integer](dict, "Size")
	if !ok {
		return nil, nil, &ParseError{Err: errors.New("xref stream missing /Size")}
	}
	wArr, ok := get[Array](dict, "W")
	if !ok || len(wArr) < 3 {
		return nil, nil, &ParseError{Err: errors.New("xref stream missing /W")}
	}
	var w []int
	for i, wi := range wArr {
		v, ok := wi.(Integer)
		if !ok || (i < 3 && (v < 0 || v > 8)) {
			return nil, nil, &ParseError{Err: errors.New("malformed /W entry")}
		}
		w = append(w, int(v))
	}

	var ss []xrefSubSection
	if idx, ok := get[Array](dict, "Index"); ok {
		if len(idx)%2 != 0 {
			return nil, nil, &ParseError{Err: errors.New("malformed /Index array")}
		}
		for i := 0; i < len(idx); i += 2 {
			start, ok1 := idx[i].(Integer)
			n, ok2 := idx[i+1].(Integer)
			if !ok1 || !ok2 {
				return nil, nil, &ParseError{Err: errors.New("malformed /Index entry")}
			}
			ss = append(ss, xrefSubSection{Start: int(start), Size: int(n)})
		}
	} else {
		ss = append(ss, xrefSubSection{Start: 0, Size: int(size)})
	}
	return w, ss, nil
}

// get looks up key in d and type-asserts it to T, following the common case
// where the value is a direct (not indirect) object, as required while
// still constructing the cross-reference table.
func get[T Object](d *Dict, key Name) (T, bool) {
	var zero T
	v, ok := d.Get(key)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}

func decodeXRefStreamData(xref map[uint32]*xrefEntry, r io.Reader, w []int, ss []xrefSubSection) error {
	wTotal := 0
	for _, wi := range w {
		wTotal += wi
	}
	buf := make([]byte, wTotal)
	w0, w1, w2 := w[0], w[1], w[2]

	for _, sec := range ss {
		for i := sec.Start; i < sec.Start+sec.Size; i++ {
			if _, err := io.ReadFull(r, buf); err != nil {
				return err
			}
			if xref[uint32(i)] != nil {
				continue
			}

			tp := decodeBigEndian(buf[:w0])
			if w0 == 0 {
				tp = 1
			}
			a := decodeBigEndian(buf[w0 : w0+w1])
			b := decodeBigEndian(buf[w0+w1 : w0+w1+w2])

			switch tp {
			case 0:
				xref[uint32(i)] = &xrefEntry{Kind: xrefFree, Generation: uint16(b)}
			case 1:
				xref[uint32(i)] = &xrefEntry{Kind: xrefNormal, Pos: a, Generation: uint16(b)}
			case 2:
				xref[uint32(i)] = &xrefEntry{
					Kind:     xrefCompressed,
					Pos:      b,
					InStream: NewReference(uint32(a), 0),
				}
			}
		}
	}
	return nil
}

func decodeBigEndian(buf []byte) (res int64) {
	for _, x := range buf {
		res = res<<8 | int64(x)
	}
	return res
}

// writeXRefTable writes a classical ASCII xref table and trailer. It is
// only valid when no entry uses object streams; callers should check with
// xrefNeedsStream and fall back to writeXRefStreamSection otherwise.
func writeXRefTable(w io.Writer, entries map[uint32]*xrefEntry, nextRef uint32, trailer *Dict) error {
	if _, err := fmt.Fprintf(w, "xref\n0 %d\n", nextRef); err != nil {
		return err
	}
	for i := uint32(0); i < nextRef; i++ {
		entry := entries[i]
		switch {
		case entry == nil || entry.Kind == xrefFree:
			gen := uint16(65535)
			if entry != nil {
				gen = entry.Generation
			}
			if _, err := fmt.Fprintf(w, "0000000000 %05d f\r\n", gen); err != nil {
				return err
			}
		case entry.Kind == xrefNormal:
			if _, err := fmt.Fprintf(w, "%010d %05d n\r\n", entry.Pos, entry.Generation); err != nil {
				return err
			}
		default:
			return &LimitError{Limit: "classical xref table cannot represent compressed objects"}
		}
	}

	if _, err := w.Write([]byte("trailer\n")); err != nil {
		return err
	}
	return trailer.PDF(w)
}

// xrefNeedsStream reports whether entries contains an object-stream
// reference, which only a cross-reference stream (not a classical table)
// can represent.
func xrefNeedsStream(entries map[uint32]*xrefEntry) bool {
	for _, e := range entries {
		if e != nil && e.Kind == xrefCompressed {
			return true
		}
	}
	return false
}

// buildXRefStreamData encodes entries as the binary row data of a
// cross-reference stream, choosing the narrowest field widths that can
// represent every entry, and returns the encoded /W array alongside it.
func buildXRefStreamData(entries map[uint32]*xrefEntry, nextRef uint32) (data []byte, w [3]int, err error) {
	var maxField2 int64
	var maxField3 uint16
	for i := uint32(0); i < nextRef; i++ {
		entry := entries[i]
		var f2 int64
		var f3 uint16
		switch {
		case entry == nil || entry.Kind == xrefFree:
			f2 = 0
			if entry != nil {
				f3 = entry.Generation
			}
		case entry.Kind == xrefNormal:
			f2 = entry.Pos
			f3 = entry.Generation
		default:
			f2 = int64(entry.InStream.Number())
			f3 = uint16(entry.Pos)
		}
		if f2 > maxField2 {
			maxField2 = f2
		}
		if f3 > maxField3 {
			maxField3 = f3
		}
	}
	w2 := (bits.Len64(uint64(maxField2)) + 7) / 8
	if w2 == 0 {
		w2 = 1
	}
	w3 := (bits.Len16(maxField3) + 7) / 8
	if w3 == 0 {
		w3 = 1
	}

	buf := &bytes.Buffer{}
	for i := uint32(0); i < nextRef; i++ {
		entry := entries[i]
		switch {
		case entry == nil || entry.Kind == xrefFree:
			buf.WriteByte(0)
			writeBigEndian(buf, 0, w2)
			gen := uint16(0)
			if entry != nil {
				gen = entry.Generation
			}
			writeBigEndian(buf, uint64(gen), w3)
		case entry.Kind == xrefNormal:
			buf.WriteByte(1)
			writeBigEndian(buf, uint64(entry.Pos), w2)
			writeBigEndian(buf, uint64(entry.Generation), w3)
		default:
			buf.WriteByte(2)
			writeBigEndian(buf, uint64(entry.InStream.Number()), w2)
			writeBigEndian(buf, uint64(entry.Pos), w3)
		}
	}
	return buf.Bytes(), [3]int{1, w2, w3}, nil
}

func writeBigEndian(buf *bytes.Buffer, x uint64, w int) {
	for i := w - 1; i >= 0; i-- {
		buf.WriteByte(byte(x >> (i * 8)))
	}
}
