package pdf

import "testing"

func TestDictPreservesInsertionOrder(t *testing.T) {
	d := NewDict()
	d.Set("B", Integer(2))
	d.Set("A", Integer(1))
	d.Set("C", Integer(3))

	want := []Name{"B", "A", "C"}
	got := d.Keys()
	if len(got) != len(want) {
		t.Fatalf("Keys() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Keys()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDictSetSamePositionOnUpdate(t *testing.T) {
	d := DictOf(DictEntry{"A", Integer(1)}, DictEntry{"B", Integer(2)})
	d.Set("A", Integer(99))

	if len(d.Keys()) != 2 || d.Keys()[0] != "A" {
		t.Fatalf("updating an existing key should not move it: %v", d.Keys())
	}
	v, _ := d.Get("A")
	if v != Integer(99) {
		t.Fatalf("Get(A) = %v, want 99", v)
	}
}

func TestDictSetNilDeletes(t *testing.T) {
	d := DictOf(DictEntry{"A", Integer(1)})
	d.Set("A", nil)
	if _, ok := d.Get("A"); ok {
		t.Fatal("Set(key, nil) should delete the key")
	}
	if d.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", d.Len())
	}
}

func TestDictDelete(t *testing.T) {
	d := DictOf(DictEntry{"A", Integer(1)}, DictEntry{"B", Integer(2)})
	d.Delete("A")
	if _, ok := d.Get("A"); ok {
		t.Fatal("Delete(A) should remove A")
	}
	if len(d.Keys()) != 1 || d.Keys()[0] != "B" {
		t.Fatalf("Keys() after Delete(A) = %v, want [B]", d.Keys())
	}
}

func TestDictClonedIsIndependent(t *testing.T) {
	orig := DictOf(DictEntry{"A", Integer(1)})
	clone := orig.Clone()
	clone.Set("B", Integer(2))

	if _, ok := orig.Get("B"); ok {
		t.Fatal("mutating a clone should not affect the original")
	}
}

func TestDictTypeName(t *testing.T) {
	d := DictOf(DictEntry{"Type", Name("Page")})
	if d.TypeName() != "Page" {
		t.Fatalf("TypeName() = %q, want %q", d.TypeName(), "Page")
	}
	if (*Dict)(nil).TypeName() != "" {
		t.Fatal("TypeName() on a nil Dict should be empty")
	}
}

func TestDictPDFOmitsNilValues(t *testing.T) {
	d := NewDict()
	d.Set("A", Integer(1))
	d.Set("B", nil)
	got := Format(d)
	want := "<<\n/A 1\n>>"
	if got != want {
		t.Fatalf("Format(Dict) = %q, want %q", got, want)
	}
}

func TestGetGenericHelper(t *testing.T) {
	d := DictOf(DictEntry{"Count", Integer(5)}, DictEntry{"Name", Name("X")})

	n, ok := get[Integer](d, "Count")
	if !ok || n != 5 {
		t.Fatalf("get[Integer](Count) = %v, %v, want 5, true", n, ok)
	}
	if _, ok := get[Name](d, "Count"); ok {
		t.Fatal("get[Name] should fail when the stored type is Integer")
	}
	if _, ok := get[Integer](d, "Missing"); ok {
		t.Fatal("get[Integer] should fail for a missing key")
	}
}
