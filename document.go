package pdf

import (
	"fmt"
	"log/slog"
)

// Document is the in-memory model of a PDF file: an object map plus the
// bookkeeping (trailer, cross-reference state, encryption session) needed to
// load, mutate, and save it. The zero value is not usable; use [NewDocument]
// or [Load].
type Document struct {
	// Version is the declared PDF version. Save writes at least 1.5 in the
	// header when it may emit object streams or a cross-reference stream;
	// Version itself is left unchanged.
	Version Version

	// ID holds the two byte strings of the file's /ID entry (original and
	// current), or nil if the document has none yet.
	ID [][]byte

	// Trailer carries /Root, /Info, /Encrypt, and other trailer entries.
	// /Size, /Prev and /XRefStm are managed internally and not meaningful
	// here.
	Trailer *Dict

	// Warnings collects non-fatal problems noticed while loading, per the
	// "unknown tokens log at warning severity" requirement: a corrupt
	// /Length, an unresolvable xref entry, and similar tolerated defects.
	// Logger, if set, additionally receives each warning as it is recorded.
	Warnings []Warning
	Logger   *slog.Logger

	objects map[uint32]Object
	order   []uint32 // object numbers, in the order they were first inserted
	nextID  uint32

	xref    map[uint32]*xrefEntry
	xrefPos int64 // byte offset of the cross-reference section this was loaded from, for /Prev chaining

	enc *decryptor
}

// Warning is one entry in [Document.Warnings].
type Warning struct {
	Pos     int64
	Message string
}

// NewDocument creates an empty Document with no objects and an empty
// trailer, ready to have a Catalog built into it and be saved.
func NewDocument() *Document {
	return &Document{
		Version: V1_7,
		Trailer: NewDict(),
		objects: make(map[uint32]Object),
		nextID:  1,
	}
}

func (d *Document) warn(pos int64, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	d.Warnings = append(d.Warnings, Warning{Pos: pos, Message: msg})
	if d.Logger != nil {
		d.Logger.Warn(msg, slog.Int64("pos", pos))
	}
}

// GetObject returns the object stored for number, and whether it is
// present. Unlike [Document.Resolve], it does not follow References: if the
// stored object is itself a Reference, that Reference is returned.
func (d *Document) GetObject(number uint32) (Object, bool) {
	obj, ok := d.objects[number]
	return obj, ok
}

// AddObject allocates a fresh object number (the current maximum plus one,
// at generation 0), inserts obj, and returns a Reference to it.
func (d *Document) AddObject(obj Object) Reference {
	number := d.nextID
	d.nextID++
	d.setObject(number, obj)
	return NewReference(number, 0)
}

// SetObject stores obj under the given reference's object number,
// overwriting any existing content. It never shrinks the document's
// allocation high-water mark.
func (d *Document) SetObject(ref Reference, obj Object) {
	d.setObject(ref.Number(), obj)
}

func (d *Document) setObject(number uint32, obj Object) {
	if _, ok := d.objects[number]; !ok {
		d.order = append(d.order, number)
	}
	d.objects[number] = obj
	if number >= d.nextID {
		d.nextID = number + 1
	}
}

// DeleteObject removes number from the object map. References elsewhere in
// the document pointing to it become dangling and resolve to Null, per
// Invariant 1; no attempt is made to scrub them (use [Document.PruneObjects]
// to drop everything unreachable instead).
func (d *Document) DeleteObject(number uint32) {
	if _, ok := d.objects[number]; !ok {
		return
	}
	delete(d.objects, number)
	for i, n := range d.order {
		if n == number {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

// Objects returns the document's live object numbers in insertion order.
func (d *Document) Objects() []uint32 {
	return d.order
}

// MaxID returns the highest object number ever assigned.
func (d *Document) MaxID() uint32 {
	if d.nextID == 0 {
		return 0
	}
	return d.nextID - 1
}

const maxDereferenceSteps = 1 << 20

// Dereference follows obj if it is a Reference, repeatedly, until it reaches
// a non-Reference object, returning that object and the Reference it was
// last reached through (the zero Reference if obj was not a Reference to
// begin with). Cycles and dangling references resolve to Null, bounded by
// the number of live objects (or maxDereferenceSteps for documents under
// construction, whichever is smaller).
func (d *Document) Dereference(obj Object) (Reference, Object) {
	ref, ok := obj.(Reference)
	if !ok {
		return 0, obj
	}

	limit := len(d.objects) + 1
	if limit > maxDereferenceSteps || limit <= 0 {
		limit = maxDereferenceSteps
	}

	last := ref
	for i := 0; i < limit; i++ {
		next, ok := d.objects[last.Number()]
		if !ok {
			return last, Null{}
		}
		nextRef, isRef := next.(Reference)
		if !isRef {
			return last, next
		}
		last = nextRef
	}
	return last, Null{}
}

// Resolve follows obj through any chain of References and returns the
// terminal object, discarding which Reference it came through.
func (d *Document) Resolve(obj Object) Object {
	_, v := d.Dereference(obj)
	return v
}

// ResolveDict resolves obj and type-asserts the result to *Dict.
func (d *Document) ResolveDict(obj Object) (*Dict, error) {
	v := d.Resolve(obj)
	dict, ok := v.(*Dict)
	if !ok {
		return nil, &TypeError{Want: "Dict", Got: v}
	}
	return dict, nil
}

// ResolveStream resolves obj and type-asserts the result to *Stream.
func (d *Document) ResolveStream(obj Object) (*Stream, error) {
	v := d.Resolve(obj)
	stream, ok := v.(*Stream)
	if !ok {
		return nil, &TypeError{Want: "Stream", Got: v}
	}
	return stream, nil
}

// ResolveInt resolves obj and type-asserts the result to Integer.
func (d *Document) ResolveInt(obj Object) (Integer, error) {
	v := d.Resolve(obj)
	n, ok := v.(Integer)
	if !ok {
		return 0, &TypeError{Want: "Integer", Got: v}
	}
	return n, nil
}

// ResolveName resolves obj and type-asserts the result to Name.
func (d *Document) ResolveName(obj Object) (Name, error) {
	v := d.Resolve(obj)
	n, ok := v.(Name)
	if !ok {
		return "", &TypeError{Want: "Name", Got: v}
	}
	return n, nil
}

// IsEncrypted reports whether the document carries an authenticated
// encryption session (set on successful [Load] of an encrypted file).
func (d *Document) IsEncrypted() bool {
	return d.enc != nil
}
