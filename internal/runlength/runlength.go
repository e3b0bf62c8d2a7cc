// Package runlength implements the PDF RunLengthDecode/Encode stream
// filter, a PackBits-style run-length scheme: each run is introduced by a
// length byte that is either a literal-run count or a repeat-run count, and
// the byte value 128 marks the end of the data.
package runlength

import (
	"bufio"
	"io"
)

// Decode returns a ReadCloser that decodes run-length-encoded data from r.
func Decode(r io.Reader) io.ReadCloser {
	return &decoder{br: bufio.NewReader(r)}
}

type decoder struct {
	br      *bufio.Reader
	err     error
	literal bool
	count   int
	value   byte
}

func (d *decoder) Read(p []byte) (n int, err error) {
	if d.err != nil {
		return 0, d.err
	}

	for len(p) > 0 {
		if d.count > 0 {
			count := d.count
			if count > len(p) {
				count = len(p)
			}
			if d.literal {
				read, err := io.ReadFull(d.br, p[:count])
				n += read
				d.count -= read
				p = p[read:]
				if err != nil {
					d.err = err
					return n, err
				}
			} else {
				for i := 0; i < count; i++ {
					p[i] = d.value
				}
				n += count
				d.count -= count
				p = p[count:]
			}
			continue
		}

		length, err := d.br.ReadByte()
		if err != nil {
			if err == io.EOF && n > 0 {
				err = nil
			}
			d.err = err
			return n, err
		}

		switch {
		case length == 128:
			d.err = io.EOF
			return n, io.EOF
		case length < 128:
			d.count = int(length) + 1
			d.literal = true
		default:
			d.count = 257 - int(length)
			b, err := d.br.ReadByte()
			if err != nil {
				d.err = err
				return n, err
			}
			d.literal = false
			d.value = b
		}
	}
	return n, nil
}

func (d *decoder) Close() error { return nil }

// Encode returns a WriteCloser that run-length-encodes bytes written to it
// before forwarding them to w. Close must be called to flush the final run
// and write the end-of-data marker.
func Encode(w io.WriteCloser) io.WriteCloser {
	return &encoder{w: w}
}

type encoder struct {
	w           io.WriteCloser
	buf         [129]byte
	used        int
	repeatCount int
	repeatVal   byte
}

func (e *encoder) Write(p []byte) (n int, err error) {
	for n < len(p) {
		b := p[n]
		if e.repeatCount > 0 {
			if b == e.repeatVal && e.repeatCount < 128 {
				e.repeatCount++
				n++
				continue
			}
			if err := e.flushRepeat(); err != nil {
				return n, err
			}
		}

		e.buf[1+e.used] = b
		e.used++
		n++

		if e.used >= 3 {
			idx := 1 + e.used - 3
			if e.buf[idx] == e.buf[idx+1] && e.buf[idx+1] == e.buf[idx+2] {
				literalCount := e.used - 3
				if literalCount > 0 {
					if err := e.flushLiteral(literalCount); err != nil {
						return n, err
					}
				}
				e.repeatCount = 3
				e.repeatVal = e.buf[idx]
				e.used = 0
				continue
			}
		}

		if e.used == 128 {
			if err := e.flushLiteral(128); err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

func (e *encoder) flushLiteral(count int) error {
	e.buf[0] = byte(count - 1)
	_, err := e.w.Write(e.buf[0 : count+1])
	e.used = 0
	return err
}

func (e *encoder) flushRepeat() error {
	e.buf[0] = byte(257 - e.repeatCount)
	e.buf[1] = e.repeatVal
	_, err := e.w.Write(e.buf[0:2])
	e.repeatCount = 0
	return err
}

func (e *encoder) Close() error {
	if e.repeatCount > 0 {
		if err := e.flushRepeat(); err != nil {
			return err
		}
	}
	if e.used > 0 {
		if err := e.flushLiteral(e.used); err != nil {
			return err
		}
	}
	e.buf[0] = 128
	if _, err := e.w.Write(e.buf[0:1]); err != nil {
		return err
	}
	return e.w.Close()
}
