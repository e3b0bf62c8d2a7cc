package pdf

import (
	"bytes"
	"errors"
	"io"
)

// MergeDocuments concatenates the object maps of docs into a single new
// document, renumbering each input so their object-number ranges stay
// disjoint (the first input keeps ids starting at 1, the next continues
// after the first's highest id, and so on), and builds a fresh Catalog
// and /Pages tree whose Kids list every page from every input document in
// order.
func MergeDocuments(docs []*Document) (*Document, error) {
	if len(docs) == 0 {
		return nil, errors.New("pdf: no documents to merge")
	}

	out := NewDocument()
	var allPageRefs []Reference

	start := uint32(1)
	for _, src := range docs {
		clone := cloneDocument(src)
		if err := clone.RenumberObjectsWith(start); err != nil {
			return nil, err
		}
		for _, num := range clone.Objects() {
			obj, _ := clone.GetObject(num)
			out.setObject(num, obj)
		}
		for _, ref := range clone.GetPages() {
			allPageRefs = append(allPageRefs, ref)
		}
		start = clone.MaxID() + 1
	}

	pagesDict := NewDict()
	pagesDict.Set("Type", Name("Pages"))
	kids := make(Array, len(allPageRefs))
	for i, ref := range allPageRefs {
		kids[i] = ref
	}
	pagesDict.Set("Kids", kids)
	pagesDict.Set("Count", Integer(len(kids)))
	pagesRef := out.AddObject(pagesDict)

	for _, ref := range allPageRefs {
		if pageDict, err := out.ResolveDict(ref); err == nil {
			pageDict.Set("Parent", pagesRef)
		}
	}

	catalog := NewDict()
	catalog.Set("Type", Name("Catalog"))
	catalog.Set("Pages", pagesRef)
	catalogRef := out.AddObject(catalog)

	out.Trailer.Set("Root", catalogRef)
	out.Version = docs[0].Version
	return out, nil
}

// cloneDocument returns a deep-enough copy of src for merging: the object
// map and trailer are duplicated so renumbering one copy never mutates the
// original document's state.
func cloneDocument(src *Document) *Document {
	out := NewDocument()
	out.Version = src.Version
	for _, num := range src.Objects() {
		obj, _ := src.GetObject(num)
		out.setObject(num, deepCopyObject(obj))
	}
	out.Trailer = deepCopyObject(src.Trailer).(*Dict)
	out.nextID = src.nextID
	return out
}

func deepCopyObject(obj Object) Object {
	switch v := obj.(type) {
	case Array:
		out := make(Array, len(v))
		for i, item := range v {
			out[i] = deepCopyObject(item)
		}
		return out
	case *Dict:
		out := NewDict()
		for _, k := range v.Keys() {
			val, _ := v.Get(k)
			out.Set(k, deepCopyObject(val))
		}
		return out
	case *Stream:
		data, err := io.ReadAll(v.R)
		if err != nil {
			data = nil
		} else {
			v.R = bytes.NewReader(data)
		}
		return &Stream{Dict: deepCopyObject(v.Dict).(*Dict), R: bytes.NewReader(data)}
	default:
		return obj
	}
}

// GetPages walks the document's page tree from the Catalog's /Pages entry
// in declaration order and returns a Reference to every page (leaf /Type
// /Page) node. A /Kids entry that names the same child more than once
// yields that child more than once in the result, matching what a viewer
// walking the tree naively would see; the walk is bounded by the document's
// total object count so a cyclic tree cannot loop forever.
func (d *Document) GetPages() []Reference {
	root, ok := d.Trailer.Get("Root")
	if !ok {
		return nil
	}
	catalog, err := d.ResolveDict(root)
	if err != nil {
		return nil
	}
	pagesObj, ok := catalog.Get("Pages")
	if !ok {
		return nil
	}

	var out []Reference
	budget := len(d.objects) + 1
	d.walkPages(pagesObj, &out, &budget)
	return out
}

func (d *Document) walkPages(obj Object, out *[]Reference, budget *int) {
	if *budget <= 0 {
		return
	}
	*budget--

	ref, node := d.Dereference(obj)
	dict, ok := node.(*Dict)
	if !ok {
		return
	}

	kidsObj, hasKids := dict.Get("Kids")
	if !hasKids {
		if ref != 0 {
			*out = append(*out, ref)
		}
		return
	}
	kids, ok := d.Resolve(kidsObj).(Array)
	if !ok {
		return
	}
	for _, kid := range kids {
		d.walkPages(kid, out, budget)
	}
}

// pageCount returns the number of pages that GetPages reports.
func (d *Document) pageCount() int {
	return len(d.GetPages())
}

// DeleteZeroLengthStreams removes every stream object whose /Length entry is
// 0 and returns how many it removed; a stream with no /Length entry is kept,
// whatever its content. This is a common cleanup step after a lossy
// edit leaves placeholder streams behind.
func (d *Document) DeleteZeroLengthStreams() int {
	removed := 0
	for _, num := range append([]uint32(nil), d.Objects()...) {
		obj, _ := d.GetObject(num)
		stream, ok := obj.(*Stream)
		if !ok {
			continue
		}
		length, ok := get[Integer](stream.Dict, "Length")
		if ok && length == 0 {
			d.DeleteObject(num)
			removed++
		}
	}
	return removed
}

// SetProducer sets the document's /Info /Producer entry, creating an /Info
// dictionary (and adding it to the trailer) if the document did not already
// have one.
func (d *Document) SetProducer(producer string) {
	infoObj, ok := d.Trailer.Get("Info")
	var info *Dict
	if ok {
		info, _ = d.ResolveDict(infoObj)
	}
	if info == nil {
		info = NewDict()
		ref := d.AddObject(info)
		d.Trailer.Set("Info", ref)
	}
	info.Set("Producer", String(producer))
}

// PruneObjects discards every object unreachable from the trailer's /Root,
// /Info, and /Encrypt entries, returning the number of objects removed.
// Reachability follows every Reference nested in a Dict, Array, or Stream
// dictionary.
func (d *Document) PruneObjects() int {
	reachable := make(map[uint32]bool)
	var visit func(obj Object)
	visit = func(obj Object) {
		ref, target := d.Dereference(obj)
		if ref != 0 {
			if reachable[ref.Number()] {
				return
			}
			reachable[ref.Number()] = true
		}
		switch v := target.(type) {
		case Array:
			for _, item := range v {
				visit(item)
			}
		case *Dict:
			for _, k := range v.Keys() {
				val, _ := v.Get(k)
				visit(val)
			}
		case *Stream:
			for _, k := range v.Dict.Keys() {
				val, _ := v.Dict.Get(k)
				visit(val)
			}
		}
	}

	for _, key := range []Name{"Root", "Info", "Encrypt"} {
		if obj, ok := d.Trailer.Get(key); ok {
			visit(obj)
		}
	}

	removed := 0
	for _, num := range append([]uint32(nil), d.Objects()...) {
		if !reachable[num] {
			d.DeleteObject(num)
			removed++
		}
	}
	return removed
}

// allowsCompression reports whether obj currently participates in object
// stream packing; it wraps isCompressible for use by Compress.
func (d *Document) allowsCompression(num uint32, obj Object) bool {
	return isCompressible(d, num, obj)
}

// Compress returns how many objects in the map are eligible for packing into
// an object stream (see isCompressible). It modifies nothing: no filter is
// applied to any stream, and [Document.Save] with UseObjectStreams set packs
// the eligible objects whether or not Compress was called.
func (d *Document) Compress() int {
	count := 0
	for _, num := range d.Objects() {
		obj, _ := d.GetObject(num)
		if d.allowsCompression(num, obj) {
			count++
		}
	}
	return count
}

// Decompress resolves every stream object whose content is compressed by a
// filter and rewrites it with the filter removed, storing the fully decoded
// bytes in its place and deleting /Filter and /DecodeParms.
func (d *Document) Decompress() error {
	for _, num := range append([]uint32(nil), d.Objects()...) {
		obj, _ := d.GetObject(num)
		stream, ok := obj.(*Stream)
		if !ok {
			continue
		}
		if _, ok := stream.Dict.Get("Filter"); !ok {
			continue
		}
		r, err := decodeStream(stream)
		if err != nil {
			return err
		}
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		stream.Dict.Delete("Filter")
		stream.Dict.Delete("DecodeParms")
		stream.Dict.Set("Length", Integer(len(data)))
		stream.R = bytes.NewReader(data)
	}
	return nil
}

// RenumberObjectsWith builds a mapping old→new beginning at start, following
// the document's current object iteration order, rewrites every Reference
// reachable from any object or the trailer through the mapping, and
// replaces the object map accordingly.
func (d *Document) RenumberObjectsWith(start uint32) error {
	if start == 0 {
		return errors.New("pdf: renumbering must start at 1 or higher")
	}

	mapping := make(map[uint32]uint32, len(d.objects))
	next := start
	for _, num := range d.Objects() {
		mapping[num] = next
		next++
	}

	rewrite := func(obj Object) Object { return remapReferences(obj, mapping) }

	newObjects := make(map[uint32]Object, len(d.objects))
	newOrder := make([]uint32, 0, len(d.order))
	for _, num := range d.Objects() {
		obj, _ := d.GetObject(num)
		newNum := mapping[num]
		newObjects[newNum] = rewrite(obj)
		newOrder = append(newOrder, newNum)
	}
	d.objects = newObjects
	d.order = newOrder
	d.nextID = next
	d.Trailer = remapReferences(d.Trailer, mapping).(*Dict)

	if d.xref != nil {
		newXref := make(map[uint32]*xrefEntry, len(d.xref))
		for num, e := range d.xref {
			if newNum, ok := mapping[num]; ok {
				newXref[newNum] = e
			}
		}
		d.xref = newXref
	}
	return nil
}

func remapReferences(obj Object, mapping map[uint32]uint32) Object {
	switch v := obj.(type) {
	case Reference:
		if newNum, ok := mapping[v.Number()]; ok {
			return NewReference(newNum, v.Generation())
		}
		return v
	case Array:
		out := make(Array, len(v))
		for i, item := range v {
			out[i] = remapReferences(item, mapping)
		}
		return out
	case *Dict:
		out := NewDict()
		for _, k := range v.Keys() {
			val, _ := v.Get(k)
			out.Set(k, remapReferences(val, mapping))
		}
		return out
	case *Stream:
		v.Dict = remapReferences(v.Dict, mapping).(*Dict)
		return v
	default:
		return obj
	}
}

// DeletePages removes the pages at the given zero-based page numbers
// (sorted, deduplicated before use), decrementing /Count on every ancestor
// /Pages node along the way so the tree stays internally consistent.
func (d *Document) DeletePages(pageNumbers ...int) error {
	toDelete := make(map[int]bool, len(pageNumbers))
	for _, n := range pageNumbers {
		toDelete[n] = true
	}

	root, ok := d.Trailer.Get("Root")
	if !ok {
		return errors.New("pdf: document has no /Root")
	}
	catalog, err := d.ResolveDict(root)
	if err != nil {
		return err
	}
	pagesObj, ok := catalog.Get("Pages")
	if !ok {
		return errors.New("pdf: catalog has no /Pages")
	}

	index := 0
	_, _, _, err = d.deletePagesRec(pagesObj, toDelete, &index)
	return err
}

// deletePagesRec returns the rewritten Kids-holding node (nil if it became
// empty and should itself be dropped by its parent), the number of leaf
// pages removed from beneath it, and whether the node itself was removed.
// /Count is decremented by that leaf count rather than reset to len(Kids),
// so an interior node's /Count keeps reflecting its full descendant leaf
// total, not just its immediate children.
func (d *Document) deletePagesRec(obj Object, toDelete map[int]bool, index *int) (Object, int, bool, error) {
	ref, node := d.Dereference(obj)
	dict, ok := node.(*Dict)
	if !ok {
		return obj, 0, false, nil
	}

	kidsObj, hasKids := dict.Get("Kids")
	if !hasKids {
		n := *index
		*index++
		if toDelete[n] {
			return nil, 1, true, nil
		}
		return obj, 0, false, nil
	}

	kids, ok := d.Resolve(kidsObj).(Array)
	if !ok {
		return obj, 0, false, nil
	}

	var newKids Array
	removedLeaves := 0
	for _, kid := range kids {
		_, removed, kidGone, err := d.deletePagesRec(kid, toDelete, index)
		if err != nil {
			return obj, 0, false, err
		}
		removedLeaves += removed
		if kidGone {
			continue
		}
		newKids = append(newKids, kid)
	}

	if removedLeaves == 0 {
		return obj, 0, false, nil
	}

	count := len(kids)
	if c, ok := get[Integer](dict, "Count"); ok {
		count = int(c)
	}
	count -= removedLeaves

	dict.Set("Kids", newKids)
	dict.Set("Count", Integer(count))
	if ref != 0 {
		d.SetObject(ref, dict)
	}

	if len(newKids) == 0 {
		return nil, removedLeaves, true, nil
	}
	return obj, removedLeaves, false, nil
}

