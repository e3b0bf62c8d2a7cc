package pdf

import (
	"compress/zlib"
	"fmt"
	"io"

	"github.com/objdoc/pdf/ascii85"
	"github.com/objdoc/pdf/internal/asciihex"
	"github.com/objdoc/pdf/internal/predict"
	"github.com/objdoc/pdf/internal/runlength"
	"github.com/objdoc/pdf/lzw"
)

// filterChain normalizes a stream's /Filter entry (a Name or an Array of
// Name) to a slice, and its /DecodeParms entry (a Dict, an Array of
// Dict/Null, or absent) to a parallel slice of *Dict.
func filterChain(dict *Dict) ([]Name, []*Dict, error) {
	filterObj, ok := dict.Get("Filter")
	if !ok {
		return nil, nil, nil
	}

	var names []Name
	switch f := filterObj.(type) {
	case Name:
		names = []Name{f}
	case Array:
		for _, item := range f {
			n, ok := item.(Name)
			if !ok {
				return nil, nil, &TypeError{Want: "Name", Got: item}
			}
			names = append(names, n)
		}
	default:
		return nil, nil, &TypeError{Want: "Name or Array", Got: f}
	}

	parms := make([]*Dict, len(names))
	if parmsObj, ok := dict.Get("DecodeParms"); ok {
		switch p := parmsObj.(type) {
		case *Dict:
			if len(names) > 0 {
				parms[0] = p
			}
		case Array:
			for i, item := range p {
				if i >= len(parms) {
					break
				}
				if d, ok := item.(*Dict); ok {
					parms[i] = d
				}
			}
		case Null:
			// no parameters for any filter
		default:
			return nil, nil, &TypeError{Want: "Dict, Array, or Null", Got: p}
		}
	}

	return names, parms, nil
}

// decodeStream applies the inverse of every filter named in s.Dict's
// /Filter chain, in order, and returns a reader over the fully decoded
// content. Decryption, when required, has already happened by the time a
// Stream's R reaches here (see lazyDecryptReader in parser.go).
func decodeStream(s *Stream) (io.Reader, error) {
	var r io.Reader = s.R

	names, parms, err := filterChain(s.Dict)
	if err != nil {
		return nil, err
	}
	for i, name := range names {
		r, err = decodeFilterStep(name, parms[i], r)
		if err != nil {
			return nil, err
		}
	}
	return r, nil
}

func decodeFilterStep(name Name, parms *Dict, r io.Reader) (io.Reader, error) {
	switch name {
	case "FlateDecode", "Fl":
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, &FilterError{Filter: name, Stage: "decode", Err: err}
		}
		return applyPredictorDecode(name, parms, zr)

	case "LZWDecode", "LZW":
		earlyChange := true
		if parms != nil {
			if v, ok := get[Integer](parms, "EarlyChange"); ok {
				earlyChange = v != 0
			}
		}
		lr := lzw.NewReader(r, earlyChange)
		return applyPredictorDecode(name, parms, lr)

	case "ASCII85Decode", "A85":
		f := ascii85.NewFilter()
		dr, err := f.Decode(r)
		if err != nil {
			return nil, &FilterError{Filter: name, Stage: "decode", Err: err}
		}
		return dr, nil

	case "ASCIIHexDecode", "AHx":
		return asciihex.Decode(r), nil

	case "RunLengthDecode", "RL":
		return runlength.Decode(r), nil

	case "DCTDecode", "DCT", "JPXDecode", "CCITTFaxDecode", "CCF":
		// Image-specific codecs are left compressed: this package handles
		// PDF structure, not image decoding. Callers that need pixel data
		// should decode the returned bytes with an image codec themselves.
		return r, nil

	case "Crypt":
		// In an encrypted document every stream's R is already decrypted
		// with the document's stream cipher (see lazyDecryptReader in
		// parser.go); the /Crypt entry's own parameters are not consulted,
		// so here it is a no-op passthrough.
		return r, nil

	default:
		return nil, &FilterError{Filter: name, Stage: "decode", Err: fmt.Errorf("unsupported filter")}
	}
}

func applyPredictorDecode(name Name, parms *Dict, r io.ReadCloser) (io.Reader, error) {
	p := predictorParams(parms)
	rc, err := predict.NewReader(r, p)
	if err != nil {
		return nil, &FilterError{Filter: name, Stage: "decode", Err: err}
	}
	return rc, nil
}

func predictorParams(parms *Dict) *predict.Params {
	p := &predict.Params{Predictor: 1, Colors: 1, BitsPerComponent: 8, Columns: 1}
	if parms == nil {
		return p
	}
	if v, ok := get[Integer](parms, "Predictor"); ok {
		p.Predictor = int(v)
	}
	if v, ok := get[Integer](parms, "Colors"); ok {
		p.Colors = int(v)
	}
	if v, ok := get[Integer](parms, "BitsPerComponent"); ok {
		p.BitsPerComponent = int(v)
	}
	if v, ok := get[Integer](parms, "Columns"); ok {
		p.Columns = int(v)
	}
	return p
}

// encodeFilterStep wraps w so that data written to the result is encoded by
// the named filter before reaching w. It is the write-side counterpart of
// decodeFilterStep, used when a caller asks for a stream to be (re)compressed
// on save.
func encodeFilterStep(name Name, parms *Dict, w io.WriteCloser) (io.WriteCloser, error) {
	switch name {
	case "FlateDecode", "Fl":
		zw := zlib.NewWriter(w)
		return applyPredictorEncode(name, parms, &zlibWriteCloser{zw, w})

	case "LZWDecode", "LZW":
		earlyChange := true
		if parms != nil {
			if v, ok := get[Integer](parms, "EarlyChange"); ok {
				earlyChange = v != 0
			}
		}
		lw, err := lzw.NewWriter(w, earlyChange)
		if err != nil {
			return nil, &FilterError{Filter: name, Stage: "encode", Err: err}
		}
		return applyPredictorEncode(name, parms, lw)

	case "ASCII85Decode", "A85":
		f := ascii85.NewFilter()
		ew, err := f.Encode(w)
		if err != nil {
			return nil, &FilterError{Filter: name, Stage: "encode", Err: err}
		}
		return ew, nil

	case "ASCIIHexDecode", "AHx":
		return asciihex.Encode(w, 64), nil

	case "RunLengthDecode", "RL":
		return runlength.Encode(w), nil

	default:
		return nil, &FilterError{Filter: name, Stage: "encode", Err: fmt.Errorf("unsupported filter for encoding")}
	}
}

func applyPredictorEncode(name Name, parms *Dict, w io.WriteCloser) (io.WriteCloser, error) {
	p := predictorParams(parms)
	wc, err := predict.NewWriter(w, p)
	if err != nil {
		return nil, &FilterError{Filter: name, Stage: "encode", Err: err}
	}
	return wc, nil
}

// zlibWriteCloser closes the zlib writer (flushing its trailer) before
// closing the underlying writer, so both checksums and downstream
// resources are finalized in the right order.
type zlibWriteCloser struct {
	zw *zlib.Writer
	w  io.WriteCloser
}

func (z *zlibWriteCloser) Write(p []byte) (int, error) { return z.zw.Write(p) }

func (z *zlibWriteCloser) Close() error {
	if err := z.zw.Close(); err != nil {
		return err
	}
	return z.w.Close()
}
