package pdf

import "testing"

func TestDereferenceFollowsChain(t *testing.T) {
	d := NewDocument()
	target := DictOf(DictEntry{"Type", Name("Leaf")})
	ref := d.AddObject(target)

	got := d.Resolve(ref)
	if got != target {
		t.Fatalf("Resolve(ref) = %v, want %v", got, target)
	}

	got = d.Resolve(target)
	if got != target {
		t.Fatalf("Resolve(non-reference) should return the object unchanged")
	}
}

func TestDereferenceDanglingResolvesToNull(t *testing.T) {
	d := NewDocument()
	dangling := NewReference(999, 0)

	got := d.Resolve(dangling)
	if _, ok := got.(Null); !ok {
		t.Fatalf("Resolve(dangling) = %#v, want Null", got)
	}
}

func TestDereferenceCycleGuard(t *testing.T) {
	d := NewDocument()
	ref1 := NewReference(1, 0)
	ref2 := NewReference(2, 0)
	d.setObject(1, ref2)
	d.setObject(2, ref1)

	got := d.Resolve(ref1)
	if _, ok := got.(Null); !ok {
		t.Fatalf("Resolve(cycle) = %#v, want Null", got)
	}
}

func TestAddObjectAllocatesFreshNumbers(t *testing.T) {
	d := NewDocument()
	r1 := d.AddObject(Integer(1))
	r2 := d.AddObject(Integer(2))
	if r1.Number() == r2.Number() {
		t.Fatalf("AddObject returned colliding numbers: %v, %v", r1, r2)
	}
	if r1.Generation() != 0 || r2.Generation() != 0 {
		t.Fatalf("AddObject should allocate generation 0")
	}
	if d.MaxID() != r2.Number() {
		t.Fatalf("MaxID() = %d, want %d", d.MaxID(), r2.Number())
	}
}

func TestDeleteObjectRemovesFromOrder(t *testing.T) {
	d := NewDocument()
	r1 := d.AddObject(Integer(1))
	r2 := d.AddObject(Integer(2))
	d.DeleteObject(r1.Number())

	if _, ok := d.GetObject(r1.Number()); ok {
		t.Fatalf("object %d should have been deleted", r1.Number())
	}
	order := d.Objects()
	if len(order) != 1 || order[0] != r2.Number() {
		t.Fatalf("Objects() = %v, want [%d]", order, r2.Number())
	}
}

func TestResolveDictTypeError(t *testing.T) {
	d := NewDocument()
	ref := d.AddObject(Integer(42))
	if _, err := d.ResolveDict(ref); err == nil {
		t.Fatalf("ResolveDict on an Integer should fail")
	}
}
