// Package asciihex implements the PDF ASCIIHexDecode/Encode stream filter:
// each byte is represented as two hexadecimal digits, terminated by ">".
package asciihex

import (
	"bufio"
	"fmt"
	"io"
)

// Decode decodes ASCII-hex-encoded data from r.
func Decode(r io.Reader) io.ReadCloser {
	return &decoder{r: bufio.NewReader(r)}
}

type decoder struct {
	r   *bufio.Reader
	err error
}

func (d *decoder) Read(p []byte) (n int, err error) {
	if d.err != nil {
		return 0, d.err
	}

	readHigh := false
	var low byte
readLoop:
	for n < len(p) {
		c, err := d.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			d.err = err
			break readLoop
		}

		var b byte
		switch c {
		case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
			b = c - '0'
		case 'A', 'B', 'C', 'D', 'E', 'F':
			b = c - 'A' + 10
		case 'a', 'b', 'c', 'd', 'e', 'f':
			b = c - 'a' + 10
		case 0, 9, 10, 12, 13, 32:
			continue readLoop
		case '>':
			if readHigh {
				p[n] = low << 4
				n++
			}
			d.err = io.EOF
			break readLoop
		default:
			d.err = fmt.Errorf("asciihex: invalid character %q", c)
			break readLoop
		}

		if readHigh {
			p[n] = low<<4 | b
			n++
			readHigh = false
		} else {
			low = b
			readHigh = true
		}
	}
	return n, d.err
}

func (d *decoder) Close() error {
	if d.err == nil || d.err == io.EOF {
		return nil
	}
	return d.err
}

// Encode returns a writer that ASCII-hex-encodes bytes written to it before
// forwarding them to w, wrapping output lines so that no line exceeds width
// characters. Close must be called to write the trailing ">" marker and
// close w.
func Encode(w io.WriteCloser, width int) io.WriteCloser {
	if width < 2 {
		width = 2
	}
	return &encoder{w: w, width: width}
}

const hexDigits = "0123456789abcdef"

type encoder struct {
	w     io.WriteCloser
	width int
	col   int
}

func (e *encoder) Write(p []byte) (int, error) {
	for _, b := range p {
		if e.col+2 > e.width {
			if _, err := e.w.Write([]byte{'\n'}); err != nil {
				return 0, err
			}
			e.col = 0
		}
		pair := [2]byte{hexDigits[b>>4], hexDigits[b&0xf]}
		if _, err := e.w.Write(pair[:]); err != nil {
			return 0, err
		}
		e.col += 2
	}
	return len(p), nil
}

func (e *encoder) Close() error {
	if e.col+1 > e.width {
		if _, err := e.w.Write([]byte{'\n'}); err != nil {
			return err
		}
		e.col = 0
	}
	if _, err := e.w.Write([]byte{'>'}); err != nil {
		return err
	}
	return e.w.Close()
}
