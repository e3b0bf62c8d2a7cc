// Package ascii85 implements the PDF ASCII85Decode/Encode stream filter:
// groups of 4 bytes are mapped to 5 printable ASCII characters (base 85),
// with the "z" shorthand for an all-zero group and a "~>" end-of-data
// marker.
package ascii85

import (
	"errors"
	"io"
)

// Filter implements the ASCII85 PDF stream filter.
type Filter struct{}

// NewFilter returns an ASCII85 filter.
func NewFilter() *Filter { return &Filter{} }

// Encode wraps w so that bytes written to the result are ASCII85-encoded
// before being written to w. The caller must call Close on the returned
// writer to flush the final partial group and the end-of-data marker.
func (f *Filter) Encode(w io.WriteCloser) (io.WriteCloser, error) {
	return &encoder{w: w, buf: make([]byte, 0, 80)}, nil
}

// Decode wraps r so that reads from the result yield the ASCII85-decoded
// bytes of r.
func (f *Filter) Decode(r io.Reader) (io.Reader, error) {
	return &decoder{r: r}, nil
}

type decoder struct {
	r              io.Reader
	immediateError error
	delayedError   error
	buf            [512]byte
	outbuf         [4]byte
	leftover       []byte
	pos, nbuf      int
	v              uint32
	k              int
	isEnd          bool
}

func (d *decoder) Read(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	if d.immediateError != nil {
		return 0, d.immediateError
	}

	if len(d.leftover) > 0 {
		n = copy(p, d.leftover)
		d.leftover = d.leftover[n:]
	}

	for n < len(p) {
		for d.pos == d.nbuf && d.delayedError == nil {
			d.nbuf, d.delayedError = d.r.Read(d.buf[:])
			d.pos = 0
			if d.delayedError == io.EOF {
				d.delayedError = io.ErrUnexpectedEOF
			}
		}
		if d.pos == d.nbuf {
			d.immediateError = d.delayedError
			return n, d.immediateError
		}
		c := d.buf[d.pos]
		d.pos++

		if d.isEnd {
			if c == '>' {
				d.immediateError = io.EOF
			} else {
				d.immediateError = errors.New("ascii85: invalid end marker")
			}
			return n, d.immediateError
		}

		if isSpace[c] {
			continue
		}

		switch {
		case c >= '!' && c < '!'+85:
			d.v = d.v*85 + uint32(c-'!')
			d.k++
		case d.k == 0 && c == 'z':
			d.v = 0
			d.k = 5
		case c == '~':
			switch d.k {
			case 0:
				// pass
			case 1:
				d.immediateError = errors.New("ascii85: unexpected end marker")
				return n, d.immediateError
			default:
				for i := d.k; i < 5; i++ {
					d.v = d.v*85 + 84
				}
				d.outbuf[0] = byte(d.v >> 24)
				d.outbuf[1] = byte(d.v >> 16)
				d.outbuf[2] = byte(d.v >> 8)
				d.outbuf[3] = byte(d.v)
				l := copy(p[n:], d.outbuf[:d.k-1])
				n += l
				if l < d.k-1 {
					d.leftover = d.outbuf[l : d.k-1]
				}
			}
			d.isEnd = true
			continue
		default:
			d.immediateError = errors.New("ascii85: invalid character in stream")
			return n, d.immediateError
		}

		if d.k == 5 {
			d.outbuf[0] = byte(d.v >> 24)
			d.outbuf[1] = byte(d.v >> 16)
			d.outbuf[2] = byte(d.v >> 8)
			d.outbuf[3] = byte(d.v)
			d.k = 0
			d.v = 0

			l := copy(p[n:], d.outbuf[:])
			n += l
			if l < 4 {
				d.leftover = d.outbuf[l:]
			}
		}
	}
	return n, d.immediateError
}

type encoder struct {
	w   io.WriteCloser
	buf []byte
	v   uint32
	k   int
}

func (e *encoder) Write(p []byte) (n int, err error) {
	for n, b := range p {
		e.v = e.v<<8 | uint32(b)
		e.k++
		if e.k == 4 {
			if cap(e.buf) < len(e.buf)+8 {
				if err := e.flush(); err != nil {
					return n, err
				}
			}

			v := e.v
			if v == 0 {
				e.buf = append(e.buf, 'z')
			} else {
				c4 := byte(v%85) + '!'
				v /= 85
				c3 := byte(v%85) + '!'
				v /= 85
				c2 := byte(v%85) + '!'
				v /= 85
				c1 := byte(v%85) + '!'
				v /= 85
				c0 := byte(v%85) + '!'
				e.buf = append(e.buf, c0, c1, c2, c3, c4)
			}
			e.v = 0
			e.k = 0
		}
	}
	return len(p), nil
}

func (e *encoder) Close() error {
	if e.k != 0 {
		v := e.v << ((4 - e.k) * 8)
		var c [5]byte
		for i := 4; i >= 0; i-- {
			c[i] = byte(v%85) + '!'
			v /= 85
		}
		e.buf = append(e.buf, c[:e.k+1]...)
		e.v = 0
		e.k = 0
	}
	e.buf = append(e.buf, '~', '>')
	if err := e.flush(); err != nil {
		return err
	}
	return e.w.Close()
}

func (e *encoder) flush() error {
	e.buf = append(e.buf, '\n')
	if _, err := e.w.Write(e.buf); err != nil {
		return err
	}
	e.buf = e.buf[:0]
	return nil
}

var isSpace = map[byte]bool{
	0: true, 9: true, 10: true, 12: true, 13: true, 32: true,
}
