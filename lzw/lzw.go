// Package lzw implements the PDF LZWDecode/Encode stream filter: the
// classic LZW algorithm with MSB-first variable-width codes (9-12 bits), a
// clear-table code, an end-of-data code, and an optional "early change" of
// the code width one codeword ahead of the point where a fixed-width
// decoder would switch (PDF 32000-1 §7.4.4.2, /DecodeParms /EarlyChange).
package lzw

import (
	"bufio"
	"errors"
	"io"
)

const (
	clearCode  = 256
	eodCode    = 257
	firstFree  = 258
	maxTableSz = 4096
	minWidth   = 9
	maxWidth   = 12
)

// widthLimit returns the highest code that may still be written with the
// given bit width, under the given early-change convention.
func widthLimit(width int, earlyChange bool) int {
	limit := 1<<width - 1
	if earlyChange {
		limit--
	}
	return limit
}

// Writer LZW-encodes data written to it in the PDF convention.
type Writer struct {
	w           *bitWriter
	earlyChange bool
	table       map[string]int
	next        int
	width       int
	cur         []byte
	closed      bool
	err         error
}

// NewWriter returns a Writer that writes LZW-compressed data to w, using
// the given early-change convention (PDF's default is true).
func NewWriter(w io.Writer, earlyChange bool) (*Writer, error) {
	lw := &Writer{
		w:           newBitWriter(w),
		earlyChange: earlyChange,
		table:       make(map[string]int, maxTableSz),
		next:        firstFree,
		width:       minWidth,
	}
	if err := lw.w.writeCode(clearCode, lw.width); err != nil {
		return nil, err
	}
	return lw, nil
}

func (lw *Writer) Write(p []byte) (int, error) {
	if lw.err != nil {
		return 0, lw.err
	}
	for _, b := range p {
		candidate := append(append([]byte{}, lw.cur...), b)
		if _, ok := lw.table[string(candidate)]; ok || len(lw.cur) == 0 {
			lw.cur = candidate
			continue
		}

		if err := lw.emit(lw.cur); err != nil {
			return 0, err
		}
		lw.addEntry(candidate)
		lw.cur = []byte{b}
	}
	return len(p), nil
}

func (lw *Writer) addEntry(s []byte) {
	if lw.next >= maxTableSz {
		// table is full; a real encoder would emit clearCode and reset.
		// PDF readers tolerate this because the PDF variant, unlike GIF,
		// does not require periodic resets; we simply stop growing the
		// table and keep using the existing entries.
		return
	}
	lw.table[string(s)] = lw.next
	lw.next++
	for lw.width < maxWidth && lw.next-1 > widthLimit(lw.width, lw.earlyChange) {
		lw.width++
	}
}

func (lw *Writer) emit(s []byte) error {
	if len(s) == 0 {
		return nil
	}
	code, ok := lw.table[string(s)]
	if !ok {
		// single-byte sequences are always present as literal codes
		code = int(s[0])
	}
	return lw.w.writeCode(code, lw.width)
}

// Close flushes the final code, the end-of-data marker, and any pending
// bits.
func (lw *Writer) Close() error {
	if lw.closed {
		return nil
	}
	lw.closed = true
	if err := lw.emit(lw.cur); err != nil {
		return err
	}
	if err := lw.w.writeCode(eodCode, lw.width); err != nil {
		return err
	}
	return lw.w.flush()
}

// bitWriter packs codes MSB-first into bytes.
type bitWriter struct {
	w    io.Writer
	buf  uint32
	bits uint
}

func newBitWriter(w io.Writer) *bitWriter { return &bitWriter{w: w} }

func (bw *bitWriter) writeCode(code, width int) error {
	bw.buf = bw.buf<<uint(width) | uint32(code)
	bw.bits += uint(width)
	for bw.bits >= 8 {
		bw.bits -= 8
		if _, err := bw.w.Write([]byte{byte(bw.buf >> bw.bits)}); err != nil {
			return err
		}
	}
	return nil
}

func (bw *bitWriter) flush() error {
	if bw.bits > 0 {
		b := byte(bw.buf << (8 - bw.bits))
		bw.bits = 0
		if _, err := bw.w.Write([]byte{b}); err != nil {
			return err
		}
	}
	return nil
}

// Reader decodes an LZW stream produced with the PDF convention.
type Reader struct {
	r           *bitReader
	earlyChange bool
	table       [][]byte
	next        int
	width       int
	prev        []byte
	pending     []byte
	err         error
}

// NewReader returns a Reader reading LZW-compressed data from r.
func NewReader(r io.Reader, earlyChange bool) *Reader {
	lr := &Reader{
		r:           newBitReader(r),
		earlyChange: earlyChange,
	}
	lr.reset()
	return lr
}

func (lr *Reader) reset() {
	lr.table = make([][]byte, firstFree, maxTableSz)
	for i := 0; i < 256; i++ {
		lr.table[i] = []byte{byte(i)}
	}
	lr.next = firstFree
	lr.width = minWidth
	lr.prev = nil
}

func (lr *Reader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(lr.pending) > 0 {
			c := copy(p[n:], lr.pending)
			lr.pending = lr.pending[c:]
			n += c
			continue
		}
		if lr.err != nil {
			return n, lr.err
		}

		code, err := lr.r.readCode(lr.width)
		if err != nil {
			lr.err = err
			if n > 0 {
				return n, nil
			}
			return 0, err
		}

		switch {
		case code == clearCode:
			lr.reset()
			continue
		case code == eodCode:
			lr.err = io.EOF
			continue
		}

		var entry []byte
		if code < len(lr.table) && lr.table[code] != nil {
			entry = lr.table[code]
		} else if code == lr.next && lr.prev != nil {
			entry = append(append([]byte{}, lr.prev...), lr.prev[0])
		} else {
			lr.err = errors.New("lzw: invalid code in input")
			return n, lr.err
		}

		if lr.prev != nil && lr.next < maxTableSz {
			newEntry := append(append([]byte{}, lr.prev...), entry[0])
			if len(lr.table) <= lr.next {
				lr.table = append(lr.table, newEntry)
			} else {
				lr.table[lr.next] = newEntry
			}
			lr.next++
			for lr.width < maxWidth && lr.next > widthLimit(lr.width, lr.earlyChange) {
				lr.width++
			}
		}

		lr.pending = entry
		lr.prev = entry
	}
	return n, nil
}

// Close releases resources held by the reader. There is nothing to flush.
func (lr *Reader) Close() error { return nil }

// bitReader unpacks MSB-first variable-width codes from a byte stream.
type bitReader struct {
	r    *bufio.Reader
	buf  uint32
	bits uint
}

func newBitReader(r io.Reader) *bitReader {
	return &bitReader{r: bufio.NewReader(r)}
}

func (br *bitReader) readCode(width int) (int, error) {
	for br.bits < uint(width) {
		b, err := br.r.ReadByte()
		if err != nil {
			return 0, err
		}
		br.buf = br.buf<<8 | uint32(b)
		br.bits += 8
	}
	br.bits -= uint(width)
	code := int(br.buf>>br.bits) & (1<<uint(width) - 1)
	return code, nil
}
