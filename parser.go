package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"
)

// ParseOptions configures [Load].
type ParseOptions struct {
	// Password supplies a password to try against an encrypted document,
	// after the empty password. ReadPassword, if set, supplies further
	// candidates. All candidates are gathered before any is tried, so
	// ReadPassword is called (until it returns ok=false, or the candidate
	// limit is reached) whether or not Password authenticates.
	Password     string
	ReadPassword PasswordFunc

	// MaxObjectStreamSize bounds the number of objects accepted from a
	// single object stream's /N entry, guarding against a corrupt or
	// adversarial value. Zero uses the default of 10000.
	MaxObjectStreamSize int
}

const defaultMaxObjStmEntries = 10000

// Load parses the PDF document in src and returns its fully materialized
// in-memory Document: every live object is parsed eagerly (rather than on
// first access), so that Document's map is complete by the time Load
// returns. Stream contents are not copied for an unencrypted document: each
// Stream's R reads its raw (still filtered) bytes from src when it is read.
func Load(src source, opts *ParseOptions) (*Document, error) {
	if opts == nil {
		opts = &ParseOptions{}
	}

	version, err := readHeader(src)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Version: version,
		Trailer: NewDict(),
		objects: make(map[uint32]Object),
	}

	getInt := func(obj Object) (Integer, error) {
		return resolveLengthInt(doc, obj, 0)
	}

	xref, trailer, err := readXRef(src, getInt)
	if err != nil {
		return nil, err
	}
	doc.xref = xref
	doc.Trailer = trailer

	maxNum := uint32(0)
	for num := range xref {
		if num > maxNum {
			maxNum = num
		}
	}
	doc.nextID = maxNum + 1

	if idObj, ok := trailer.Get("ID"); ok {
		if arr, ok := idObj.(Array); ok {
			for _, item := range arr {
				if s, ok := item.(String); ok {
					doc.ID = append(doc.ID, []byte(s))
				}
			}
		}
	}

	if encObj, ok := trailer.Get("Encrypt"); ok {
		encDict, ref, err := resolveEncryptDict(src, xref, getInt, encObj)
		if err != nil {
			return nil, err
		}
		var id0 []byte
		if len(doc.ID) > 0 {
			id0 = doc.ID[0]
		}
		tried := false
		pwFunc := func(try int) (string, bool) {
			if !tried && opts.Password != "" {
				tried = true
				return opts.Password, true
			}
			if opts.ReadPassword != nil {
				return opts.ReadPassword(try)
			}
			return "", false
		}
		dec, err := newDecryptor(encDict, id0, pwFunc)
		if err != nil {
			return nil, err
		}
		dec.encDict = encDict
		doc.enc = dec
		if ref != Reference(0) {
			doc.xref[ref.Number()] = &xrefEntry{Kind: xrefFree}
		}
	}

	if err := loadObjects(doc, src, xref, opts); err != nil {
		return nil, err
	}

	return doc, nil
}

// resolveEncryptDict fetches the /Encrypt dictionary directly from its xref
// entry rather than through the normal object map, since decryption has not
// been set up yet and strings inside the Encrypt dictionary itself are
// never encrypted.
func resolveEncryptDict(src source, xref map[uint32]*xrefEntry, getInt func(Object) (Integer, error), encObj Object) (*Dict, Reference, error) {
	ref, ok := encObj.(Reference)
	if !ok {
		dict, ok := encObj.(*Dict)
		if !ok {
			return nil, Reference(0), &TypeError{Want: "Dict", Got: encObj}
		}
		return dict, Reference(0), nil
	}
	entry := xref[ref.Number()]
	if entry == nil || entry.Kind != xrefNormal {
		return nil, Reference(0), &ReferenceError{Ref: ref, Err: errors.New("encrypt dictionary not found")}
	}
	s := scannerAt(src, entry.Pos, getInt)
	obj, err := s.ReadIndirectObject()
	if err != nil {
		return nil, Reference(0), err
	}
	dict, ok := obj.Obj.(*Dict)
	if !ok {
		return nil, Reference(0), &TypeError{Want: "Dict", Got: obj.Obj}
	}
	return dict, ref, nil
}

func readHeader(src source) (Version, error) {
	buf := make([]byte, 32)
	n, err := src.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return 0, err
	}
	v, verr := readHeaderVersion(buf[:n])
	if verr != nil {
		// Many real-world files carry junk before the header; fall back to
		// scanning a larger prefix for "%PDF-".
		big := make([]byte, 1024)
		n2, err2 := src.ReadAt(big, 0)
		if err2 != nil && err2 != io.EOF {
			return 0, err
		}
		v, verr = readHeaderVersion(big[:n2])
		if verr != nil {
			return 0, &ParseError{Pos: 0, Err: verr}
		}
	}
	return v, nil
}

// loadObjects fans out across every live xref entry, parsing independent
// indirect objects and independent object-stream containers in parallel; no
// mutable state is shared between the parallel tasks other than the final,
// ordered insertion into doc's object map once every task has finished.
func loadObjects(doc *Document, src source, xref map[uint32]*xrefEntry, opts *ParseOptions) error {
	maxEntries := opts.MaxObjectStreamSize
	if maxEntries <= 0 {
		maxEntries = defaultMaxObjStmEntries
	}

	getInt := func(obj Object) (Integer, error) {
		return resolveLengthInt(doc, obj, 0)
	}

	// Direct (non-compressed) objects can be parsed independently of one
	// another; their decoding only needs src, getInt, and the decryptor.
	var directNums []uint32
	containerNums := make(map[uint32]bool)
	for num, entry := range xref {
		switch entry.Kind {
		case xrefNormal:
			directNums = append(directNums, num)
		case xrefCompressed:
			containerNums[entry.InStream.Number()] = true
		}
	}

	type result struct {
		num uint32
		obj Object
		err error
	}

	results := make(chan result, len(directNums))
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(16)
	for _, num := range directNums {
		num := num
		entry := xref[num]
		g.Go(func() error {
			obj, err := parseIndirectAt(src, getInt, entry, num)
			if err != nil {
				results <- result{num: num, err: err}
				return nil
			}
			if doc.enc != nil {
				obj = decryptObjectInPlace(doc.enc, NewReference(num, entry.Generation), obj)
			}
			results <- result{num: num, obj: obj}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	close(results)

	pending := make(map[uint32]Object, len(directNums))
	for r := range results {
		if r.err != nil {
			doc.warn(0, "object %d: %v", r.num, r.err)
			continue
		}
		pending[r.num] = r.obj
	}

	// Insert in a fixed order so the document's object ordering does not
	// depend on goroutine scheduling.
	order := make([]uint32, 0, len(directNums))
	for _, num := range directNums {
		order = append(order, num)
	}
	sortUint32s(order)
	for _, num := range order {
		if obj, ok := pending[num]; ok {
			doc.setObject(num, obj)
		}
	}

	// Object-stream containers must themselves already be in doc.objects
	// (they are direct objects) before their members can be unpacked.
	containerList := make([]uint32, 0, len(containerNums))
	for num := range containerNums {
		containerList = append(containerList, num)
	}
	sortUint32s(containerList)

	for _, num := range containerList {
		obj, ok := doc.GetObject(num)
		if !ok {
			doc.warn(0, "object stream %d: container missing", num)
			continue
		}
		stream, ok := obj.(*Stream)
		if !ok {
			doc.warn(0, "object stream %d: not a stream", num)
			continue
		}
		if err := unpackObjectStream(doc, stream, xref, num, maxEntries); err != nil {
			doc.warn(0, "object stream %d: %v", num, err)
		}
	}

	return nil
}

func sortUint32s(s []uint32) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func parseIndirectAt(src source, getInt func(Object) (Integer, error), entry *xrefEntry, wantNum uint32) (Object, error) {
	s := scannerAt(src, entry.Pos, getInt)
	ind, err := s.ReadIndirectObject()
	if err != nil {
		return nil, err
	}
	if ind.Ref.Number() != wantNum {
		return nil, &ReferenceError{Ref: NewReference(wantNum, entry.Generation), Err: fmt.Errorf("xref corrupted: found object %d at expected offset of object %d", ind.Ref.Number(), wantNum)}
	}
	return ind.Obj, nil
}

// decryptObjectInPlace decrypts every String found in obj (recursively
// through Array and Dict) using ref's per-object key, and arranges for a
// Stream's raw content to be decrypted lazily by decodeStream, since the
// content has not been read yet.
func decryptObjectInPlace(dec *decryptor, ref Reference, obj Object) Object {
	switch v := obj.(type) {
	case String:
		out, err := dec.decryptString(ref, v)
		if err != nil {
			return v
		}
		return out
	case Array:
		out := make(Array, len(v))
		for i, item := range v {
			out[i] = decryptObjectInPlace(dec, ref, item)
		}
		return out
	case *Dict:
		out := NewDict()
		for _, k := range v.Keys() {
			val, _ := v.Get(k)
			out.Set(k, decryptObjectInPlace(dec, ref, val))
		}
		return out
	case *Stream:
		v.Dict = decryptObjectInPlace(dec, ref, v.Dict).(*Dict)
		raw, err := io.ReadAll(v.R)
		if err == nil {
			v.R = &lazyDecryptReader{dec: dec, ref: ref, raw: raw}
		}
		return v
	default:
		return obj
	}
}

// lazyDecryptReader defers stream decryption until the stream's content is
// actually read (normally by decodeStream, which also needs to apply the
// filter chain), so that streams that are never accessed never pay for it.
type lazyDecryptReader struct {
	dec  *decryptor
	ref  Reference
	raw  []byte
	done io.Reader
}

func (l *lazyDecryptReader) Read(p []byte) (int, error) {
	if l.done == nil {
		plain, err := l.dec.decryptBytes(l.ref, l.raw, l.dec.stmCipher)
		if err != nil {
			return 0, err
		}
		l.done = bytes.NewReader(plain)
	}
	return l.done.Read(p)
}

// unpackObjectStream decompresses container and installs each object it
// holds into doc, following PDF 32000-1 §7.5.7: an /N-entry header of
// (object number, relative offset) pairs starting at byte 0, with actual
// object data starting at byte /First.
func unpackObjectStream(doc *Document, container *Stream, xref map[uint32]*xrefEntry, containerNum uint32, maxEntries int) error {
	n, ok := get[Integer](container.Dict, "N")
	if !ok {
		return errors.New("object stream missing /N")
	}
	if int(n) < 0 || int(n) > maxEntries {
		return &LimitError{Limit: "object stream /N exceeds limit"}
	}
	first, ok := get[Integer](container.Dict, "First")
	if !ok {
		return errors.New("object stream missing /First")
	}

	decoded, err := decodeStream(container)
	if err != nil {
		return err
	}
	data, err := io.ReadAll(decoded)
	if err != nil {
		return err
	}

	hdr := newScanner(bytes.NewReader(data))
	type entry struct{ num, offset int }
	entries := make([]entry, 0, n)
	for i := Integer(0); i < n; i++ {
		if err := hdr.SkipWhiteSpace(); err != nil {
			return err
		}
		num, err := hdr.ReadInteger()
		if err != nil {
			return err
		}
		if err := hdr.SkipWhiteSpace(); err != nil {
			return err
		}
		off, err := hdr.ReadInteger()
		if err != nil {
			return err
		}
		entries = append(entries, entry{num: int(num), offset: int(off)})
	}
	if hdr.Pos() > int64(first) {
		return errors.New("object stream header overruns /First")
	}

	for _, e := range entries {
		xe := xref[uint32(e.num)]
		if xe == nil || xe.Kind != xrefCompressed || xe.InStream.Number() != containerNum {
			continue // superseded by a later revision
		}
		pos := int(first) + e.offset
		if pos < 0 || pos > len(data) {
			doc.warn(0, "object %d: offset out of range in object stream %d", e.num, containerNum)
			continue
		}
		os := newScanner(bytes.NewReader(data[pos:]))
		obj, err := os.ReadObject()
		if err != nil {
			doc.warn(0, "object %d: %v", e.num, err)
			continue
		}
		doc.setObject(uint32(e.num), obj)
	}
	return nil
}

// resolveLengthInt resolves obj (possibly an indirect reference) to an
// Integer, following at most one extra level of indirection. It exists so a
// stream's /Length entry can itself be an indirect reference without
// recursing through the full object loader (which may not have finished
// loading yet).
func resolveLengthInt(doc *Document, obj Object, depth int) (Integer, error) {
	switch v := obj.(type) {
	case Integer:
		return v, nil
	case Reference:
		if depth >= 2 {
			return 0, &LimitError{Limit: "indirect /Length too deeply nested"}
		}
		target, ok := doc.objects[v.Number()]
		if !ok {
			return 0, &ReferenceError{Ref: v, Err: errors.New("cannot resolve /Length before target object is loaded")}
		}
		return resolveLengthInt(doc, target, depth+1)
	default:
		return 0, &TypeError{Want: "Integer", Got: obj}
	}
}
