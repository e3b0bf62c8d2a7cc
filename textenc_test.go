package pdf

import (
	"testing"

	"golang.org/x/text/language"
)

func TestTextStringRoundTripsASCII(t *testing.T) {
	s := TextString("Hello, world")
	if got := s.AsText(); got != "Hello, world" {
		t.Fatalf("AsText() = %q, want %q", got, "Hello, world")
	}
}

func TestTextStringFallsBackToUTF16(t *testing.T) {
	const want = "日本語"
	s := TextString(want)
	if !isUTF16BOM(s) {
		t.Fatalf("TextString(%q) should fall back to UTF-16BE with a BOM", want)
	}
	if got := s.AsText(); got != want {
		t.Fatalf("AsText() = %q, want %q", got, want)
	}
}

func TestDocumentLanguageRoundTrip(t *testing.T) {
	d := NewDocument()
	d.SetLanguage(language.BritishEnglish)

	tag, ok := d.Language()
	if !ok {
		t.Fatal("Language() ok = false after SetLanguage")
	}
	if tag != language.BritishEnglish {
		t.Fatalf("Language() = %v, want %v", tag, language.BritishEnglish)
	}
}

func TestDocumentLanguageAbsent(t *testing.T) {
	d := NewDocument()
	d.Trailer.Set("Root", d.AddObject(DictOf(DictEntry{"Type", Name("Catalog")})))

	if _, ok := d.Language(); ok {
		t.Fatal("Language() ok = true for a Catalog with no /Lang")
	}
}
