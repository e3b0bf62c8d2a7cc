package pdf

import "io"

// Stream represents a PDF stream object: a dictionary describing the
// content, plus the (possibly filtered) content itself.
type Stream struct {
	*Dict
	R io.Reader
}

// NewStream creates a Stream with the given dictionary and content reader.
func NewStream(dict *Dict, r io.Reader) *Stream {
	if dict == nil {
		dict = NewDict()
	}
	return &Stream{Dict: dict, R: r}
}

// PDF implements the [Object] interface. If w is encrypting (see crypt.go),
// the stream body is encrypted as it is copied.
func (x *Stream) PDF(w io.Writer) error {
	if err := x.Dict.PDF(w); err != nil {
		return err
	}
	if _, err := w.Write([]byte("\nstream\n")); err != nil {
		return err
	}

	dst := w
	if enc, ok := w.(streamEncryptingWriter); ok {
		ew, err := enc.encryptStreamWriter(withDummyClose{w})
		if err != nil {
			return err
		}
		dst = ew
	}
	if _, err := io.Copy(dst, x.R); err != nil {
		return err
	}
	if c, ok := dst.(io.Closer); ok && dst != w {
		if err := c.Close(); err != nil {
			return err
		}
	}
	_, err := w.Write([]byte("\nendstream"))
	return err
}

// streamEncryptingWriter is implemented by writers that wrap stream bodies
// with a cipher as they are written (see crypt.go).
type streamEncryptingWriter interface {
	encryptStreamWriter(w io.WriteCloser) (io.WriteCloser, error)
}

type withDummyClose struct{ io.Writer }

func (withDummyClose) Close() error { return nil }
