package pdf

import (
	"testing"
	"time"
)

func TestIntegerPDF(t *testing.T) {
	if got := Format(Integer(-42)); got != "-42" {
		t.Fatalf("Format(Integer(-42)) = %q, want %q", got, "-42")
	}
}

func TestRealPDFAlwaysHasADecimalPoint(t *testing.T) {
	if got := Format(Real(3)); got != "3." {
		t.Fatalf("Format(Real(3)) = %q, want %q", got, "3.")
	}
	if got := Format(Real(3.25)); got != "3.25" {
		t.Fatalf("Format(Real(3.25)) = %q, want %q", got, "3.25")
	}
}

func TestStringPDFLiteralForm(t *testing.T) {
	got := Format(String("hello (world)"))
	want := `(hello (world))`
	if got != want {
		t.Fatalf("Format(String) = %q, want %q", got, want)
	}
}

func TestStringPDFHexFormWhenMostlyBinary(t *testing.T) {
	s := String([]byte{0x01, 0x02, 0x03, 0x04})
	got := Format(s)
	want := "<01020304>"
	if got != want {
		t.Fatalf("Format(binary String) = %q, want %q", got, want)
	}
}

func TestParseStringRoundTrip(t *testing.T) {
	got, err := ParseString([]byte(`(hi \(there\))`))
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if string(got) != "hi (there)" {
		t.Fatalf("ParseString = %q, want %q", got, "hi (there)")
	}
}

func TestParseStringRejectsTrailingGarbage(t *testing.T) {
	if _, err := ParseString([]byte(`(ok)trailing`)); err == nil {
		t.Fatal("ParseString should reject trailing bytes after the closing delimiter")
	}
}

func TestNamePDFEscapesFunnyBytes(t *testing.T) {
	got := Format(Name("A#B C"))
	want := "/A#23B#20C"
	if got != want {
		t.Fatalf("Format(Name) = %q, want %q", got, want)
	}
}

func TestParseNameRoundTrip(t *testing.T) {
	got, err := ParseName([]byte("/A#23B"))
	if err != nil {
		t.Fatalf("ParseName: %v", err)
	}
	if got != Name("A#B") {
		t.Fatalf("ParseName = %q, want %q", got, "A#B")
	}
}

func TestReferencePDFAndAccessors(t *testing.T) {
	ref := NewReference(17, 3)
	if ref.Number() != 17 || ref.Generation() != 3 {
		t.Fatalf("NewReference(17, 3) = (%d, %d), want (17, 3)", ref.Number(), ref.Generation())
	}
	if got := Format(ref); got != "17 3 R" {
		t.Fatalf("Format(ref) = %q, want %q", got, "17 3 R")
	}
}

func TestArrayPDF(t *testing.T) {
	got := Format(Array{Integer(1), Name("Foo"), Boolean(true)})
	want := "[1 /Foo true]"
	if got != want {
		t.Fatalf("Format(Array) = %q, want %q", got, want)
	}
}

func TestDateRoundTrip(t *testing.T) {
	tm := time.Date(2026, 8, 6, 12, 30, 0, 0, time.UTC)
	s := Date(tm)
	got, err := s.AsDate()
	if err != nil {
		t.Fatalf("AsDate: %v", err)
	}
	if !got.Equal(tm) {
		t.Fatalf("AsDate round trip = %v, want %v", got, tm)
	}
}

func TestStringAsTextPDFDocEncoding(t *testing.T) {
	s := TextString("Café")
	if isUTF16BOM(s) {
		t.Fatal("an accented Latin string should fit in PDFDocEncoding, not fall back to UTF-16")
	}
	if got := s.AsText(); got != "Café" {
		t.Fatalf("AsText() = %q, want %q", got, "Café")
	}
}
