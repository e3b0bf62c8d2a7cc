package pdf

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// SaveOptions configures [Document.Save].
type SaveOptions struct {
	UseObjectStreams    bool // pack compressible objects into object streams
	UseXRefStreams      bool // emit a cross-reference stream instead of a classical table
	MaxObjectsPerStream int  // default 100, clamped to [1, 65535]
	CompressionLevel    int  // default 6, clamped to [0, 9]
}

func (o *SaveOptions) normalized() SaveOptions {
	out := SaveOptions{}
	if o != nil {
		out = *o
	}
	if out.MaxObjectsPerStream <= 0 {
		out.MaxObjectsPerStream = 100
	}
	if out.MaxObjectsPerStream > 65535 {
		out.MaxObjectsPerStream = 65535
	}
	if out.CompressionLevel < 0 {
		out.CompressionLevel = 0
	}
	if out.CompressionLevel > 9 {
		out.CompressionLevel = 9
	}
	return out
}

// canonicalBinaryMark is written as the PDF binary-mark comment on line two
// of every file this package writes, regardless of what (if anything) a
// loaded document originally carried: it only needs four bytes >= 0x80.
var canonicalBinaryMark = []byte{0xE2, 0xE3, 0xCF, 0xD3}

// posWriter wraps an io.Writer and tracks the current byte offset, so the
// writer can record where each indirect object begins for the xref table.
type posWriter struct {
	w   io.Writer
	pos int64
}

func (p *posWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.pos += int64(n)
	return n, err
}

// Save writes doc as a complete (non-incremental) PDF file to w: a flattening
// save always emits a single cross-reference section and omits /Prev, even
// if doc was originally loaded from a file with incremental updates.
func (d *Document) Save(w io.Writer, opts *SaveOptions) error {
	o := opts.normalized()
	pw := &posWriter{w: w}

	version := d.Version
	if (o.UseXRefStreams || (o.UseObjectStreams && d.enc == nil)) && version < V1_5 {
		version = V1_5
	}
	if _, err := fmt.Fprintf(pw, "%%PDF-%s\n", version.String()); err != nil {
		return err
	}
	if _, err := pw.Write([]byte("%")); err != nil {
		return err
	}
	if _, err := pw.Write(canonicalBinaryMark); err != nil {
		return err
	}
	if _, err := pw.Write([]byte("\n")); err != nil {
		return err
	}

	numbers := append([]uint32(nil), d.Objects()...)
	sortUint32s(numbers)

	// Object streams pack several objects' bytes into one container stream
	// that is itself the only thing encrypted; bookkeeping which plaintext
	// object maps to which per-object key inside that shared buffer isn't
	// worth it here, so an encrypted save always writes every object as its
	// own indirect object.
	packStreams := o.UseObjectStreams && d.enc == nil

	var streamNums, directNums []uint32
	if packStreams {
		for _, num := range numbers {
			obj, _ := d.GetObject(num)
			if isCompressible(d, num, obj) {
				streamNums = append(streamNums, num)
			} else {
				directNums = append(directNums, num)
			}
		}
	} else {
		directNums = numbers
	}

	entries := make(map[uint32]*xrefEntry, len(numbers))
	nextNum := d.MaxID() + 1

	for _, num := range directNums {
		obj, _ := d.GetObject(num)
		pos := pw.pos
		var dst io.Writer = pw
		if d.enc != nil {
			dst = &objectCipherWriter{dst: pw, dec: d.enc, ref: NewReference(num, 0)}
		}
		if err := writeIndirectObject(dst, num, obj); err != nil {
			return err
		}
		entries[num] = &xrefEntry{Kind: xrefNormal, Pos: pos}
	}

	if len(streamNums) > 0 {
		var err error
		nextNum, err = writeObjectStreams(d, pw, streamNums, entries, o, nextNum)
		if err != nil {
			return err
		}
	}

	trailer := d.Trailer.Clone()
	trailer.Delete("Prev")
	trailer.Delete("XRefStm")

	// The encryption dictionary is always written in the clear, as its own
	// fresh indirect object: Load frees the original xref slot (parser.go),
	// so /Encrypt is repointed at whatever object number it lands on here.
	if d.enc != nil && d.enc.encDict != nil {
		encNum := nextNum
		nextNum++
		pos := pw.pos
		if err := writeIndirectObject(pw, encNum, d.enc.encDict); err != nil {
			return err
		}
		entries[encNum] = &xrefEntry{Kind: xrefNormal, Pos: pos}
		trailer.Set("Encrypt", NewReference(encNum, 0))
	}

	xrefPos := pw.pos
	needStream := o.UseXRefStreams || xrefNeedsStream(entries)
	if needStream {
		if err := writeXRefStreamSection(pw, entries, nextNum, trailer, o); err != nil {
			return err
		}
	} else {
		trailer.Set("Size", Integer(nextNum))
		if err := writeXRefTable(pw, entries, nextNum, trailer); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(pw, "\nstartxref\n%d\n%%%%EOF", xrefPos); err != nil {
		return err
	}
	return nil
}

func writeIndirectObject(w io.Writer, num uint32, obj Object) error {
	if _, err := fmt.Fprintf(w, "%d 0 obj\n", num); err != nil {
		return err
	}
	if err := writeObjectBody(w, obj); err != nil {
		return err
	}
	_, err := w.Write([]byte("\nendobj\n"))
	return err
}

// writeObjectBody writes obj's PDF representation, first materializing any
// Stream's content into a buffer so its /Length can be recorded exactly, as
// required: streams must never carry an approximate or stale length. When w
// is encrypting the stream's body, /Length is projected ahead of time (see
// encryptedStreamLength), since AES-CBC grows the plaintext by an IV and
// padding that aren't known until the real encrypting pass inside
// stream.PDF. stream.R is left pointing at a fresh reader over the same
// bytes before returning, rather than at EOF, so a caller still holding the
// Stream sees no observable effect from Save beyond the now-exact /Length.
func writeObjectBody(w io.Writer, obj Object) error {
	stream, ok := obj.(*Stream)
	if !ok {
		return obj.PDF(w)
	}

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, stream.R); err != nil {
		return err
	}
	n := buf.Len()
	if cw, ok := w.(*objectCipherWriter); ok {
		n = encryptedStreamLength(cw.dec.stmCipher, n)
	}
	stream.Dict.Set("Length", Integer(n))
	stream.R = bytes.NewReader(buf.Bytes())
	err := stream.PDF(w)
	stream.R = bytes.NewReader(buf.Bytes())
	return err
}

// isCompressible reports whether obj may be packed into an object stream,
// per the exclusions: streams, the document's own /XRef or /ObjStm objects,
// and the encryption dictionary are never eligible. Every object this
// package writes is generation 0, so the generation-based exclusion in the
// object-stream rules never applies here.
func isCompressible(d *Document, num uint32, obj Object) bool {
	if _, isStream := obj.(*Stream); isStream {
		return false
	}
	dict, ok := obj.(*Dict)
	if !ok {
		return true
	}
	switch dict.TypeName() {
	case "XRef", "ObjStm":
		return false
	}
	if encObj, ok := d.Trailer.Get("Encrypt"); ok {
		if ref, ok := encObj.(Reference); ok && ref.Number() == num {
			return false
		}
	}
	return true
}

// writeObjectStreams packs nums into one or more object streams of at most
// o.MaxObjectsPerStream entries each, zlib-compressed at o.CompressionLevel,
// recording a compressed xref entry for every packed object and a normal
// entry for each container itself.
func writeObjectStreams(d *Document, pw *posWriter, nums []uint32, entries map[uint32]*xrefEntry, o SaveOptions, nextNum uint32) (uint32, error) {
	for start := 0; start < len(nums); start += o.MaxObjectsPerStream {
		end := start + o.MaxObjectsPerStream
		if end > len(nums) {
			end = len(nums)
		}
		chunk := nums[start:end]

		var body bytes.Buffer
		var header bytes.Buffer
		offsets := make([]int, len(chunk))
		for i, num := range chunk {
			obj, _ := d.GetObject(num)
			offsets[i] = body.Len()
			if err := obj.PDF(&body); err != nil {
				return 0, err
			}
			body.WriteByte(' ')
		}
		for i, num := range chunk {
			fmt.Fprintf(&header, "%d %d ", num, offsets[i])
		}

		var compressed bytes.Buffer
		zw, err := zlib.NewWriterLevel(&compressed, o.CompressionLevel)
		if err != nil {
			return 0, err
		}
		if _, err := zw.Write(header.Bytes()); err != nil {
			return 0, err
		}
		if _, err := zw.Write(body.Bytes()); err != nil {
			return 0, err
		}
		if err := zw.Close(); err != nil {
			return 0, err
		}

		containerNum := nextNum
		nextNum++
		dict := DictOf(
			DictEntry{"Type", Name("ObjStm")},
			DictEntry{"N", Integer(len(chunk))},
			DictEntry{"First", Integer(header.Len())},
			DictEntry{"Filter", Name("FlateDecode")},
			DictEntry{"Length", Integer(compressed.Len())},
		)
		stream := NewStream(dict, bytes.NewReader(compressed.Bytes()))

		pos := pw.pos
		if err := writeIndirectObject(pw, containerNum, stream); err != nil {
			return 0, err
		}
		entries[containerNum] = &xrefEntry{Kind: xrefNormal, Pos: pos}
		for i, num := range chunk {
			entries[num] = &xrefEntry{Kind: xrefCompressed, InStream: NewReference(containerNum, 0), Pos: int64(i)}
		}
	}
	return nextNum, nil
}

func writeXRefStreamSection(pw *posWriter, entries map[uint32]*xrefEntry, nextRef uint32, trailer *Dict, o SaveOptions) error {
	xrefNum := nextRef
	nextRef++
	trailer.Set("Size", Integer(nextRef))
	entries[xrefNum] = &xrefEntry{Kind: xrefNormal, Pos: pw.pos}

	data, w, err := buildXRefStreamData(entries, nextRef)
	if err != nil {
		return err
	}

	var compressed bytes.Buffer
	zw, err := zlib.NewWriterLevel(&compressed, o.CompressionLevel)
	if err != nil {
		return err
	}
	if _, err := zw.Write(data); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}

	dict := trailer.Clone()
	dict.Set("Type", Name("XRef"))
	dict.Set("W", Array{Integer(w[0]), Integer(w[1]), Integer(w[2])})
	dict.Set("Filter", Name("FlateDecode"))
	dict.Set("Length", Integer(compressed.Len()))

	stream := NewStream(dict, bytes.NewReader(compressed.Bytes()))
	return writeIndirectObject(pw, xrefNum, stream)
}
