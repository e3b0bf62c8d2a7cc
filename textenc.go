package pdf

import (
	"unicode/utf16"

	"golang.org/x/text/language"
)

// isUTF16BOM reports whether s begins with the UTF-16BE byte-order mark used
// by PDF "text strings".
func isUTF16BOM(s String) bool {
	return len(s) >= 2 && s[0] == 0xFE && s[1] == 0xFF
}

func utf16Decode(s String) string {
	u := make([]uint16, 0, len(s)/2)
	for i := 0; i+1 < len(s); i += 2 {
		u = append(u, uint16(s[i])<<8|uint16(s[i+1]))
	}
	return string(utf16.Decode(u))
}

func utf16Encode(s string) String {
	u := utf16.Encode([]rune(s))
	buf := make([]byte, 2+2*len(u))
	buf[0] = 0xFE
	buf[1] = 0xFF
	for i, c := range u {
		buf[2+2*i] = byte(c >> 8)
		buf[2+2*i+1] = byte(c)
	}
	return String(buf)
}

// pdfDocEncodingTable maps bytes 0x00-0xFF to the Unicode code point used by
// the PDFDocEncoding, as defined by PDF 32000-1 Annex D.2. Bytes that are
// unused in PDFDocEncoding keep their codepoint equal to their byte value,
// which makes round-tripping of arbitrary "text strings" lossless even for
// the handful of gaps in the table.
var pdfDocEncodingTable = buildPDFDocEncodingTable()

var pdfDocEncodingReverse = buildPDFDocEncodingReverse()

func buildPDFDocEncodingReverse() map[rune]byte {
	m := make(map[rune]byte, 256)
	for b, r := range pdfDocEncodingTable {
		if _, exists := m[r]; !exists {
			m[r] = byte(b)
		}
	}
	return m
}

func buildPDFDocEncodingTable() [256]rune {
	var t [256]rune
	for i := range t {
		t[i] = rune(i)
	}
	// Annex D.2 deviations from Latin-1 in the 0x18-0x1F range (spacing
	// diacritics used by a handful of European-language glyph names).
	diacritics := map[byte]rune{
		0x18: '˘', // breve
		0x19: 'ˇ', // caron
		0x1A: 'ˆ', // circumflex
		0x1B: '˙', // dotaccent
		0x1C: '˝', // hungarumlaut
		0x1D: '˛', // ogonek
		0x1E: '˚', // ring
		0x1F: '˜', // tilde
	}
	for b, r := range diacritics {
		t[b] = r
	}
	// Annex D.2 deviations from Latin-1 in the 0x80-0x9F range (typographic
	// punctuation, currency, ligatures).
	punctuation := map[byte]rune{
		0x80: '•', // bullet
		0x81: '†', // dagger
		0x82: '‡', // daggerdbl
		0x83: '…', // ellipsis
		0x84: '—', // emdash
		0x85: '–', // endash
		0x86: 'ƒ', // florin
		0x87: '⁄', // fraction
		0x88: '‹', // guilsinglleft
		0x89: '›', // guilsinglright
		0x8A: '−', // minus
		0x8B: '‰', // perthousand
		0x8C: '„', // quotedblbase
		0x8D: '“', // quotedblleft
		0x8E: '”', // quotedblright
		0x8F: '‘', // quoteleft
		0x90: '’', // quoteright
		0x91: '‚', // quotesinglbase
		0x92: '™', // trademark
		0x93: 'ﬁ', // fi
		0x94: 'ﬂ', // fl
		0x95: 'Ł', // Lslash
		0x96: 'Œ', // OE
		0x97: 'Š', // Scaron
		0x98: 'Ÿ', // Ydieresis
		0x99: 'Ž', // Zcaron
		0x9A: 'ı', // dotlessi
		0x9B: 'ł', // lslash
		0x9C: 'œ', // oe
		0x9D: 'š', // scaron
		0x9E: 'ž', // zcaron
		0xA0: '€', // Euro
	}
	for b, r := range punctuation {
		t[b] = r
	}
	t[0xAD] = rune(0xAD) // soft hyphen, defined in Latin-1, unused in PDFDoc but kept harmless
	return t
}

func pdfDocDecode(s String) string {
	r := make([]rune, len(s))
	for i, b := range s {
		r[i] = pdfDocEncodingTable[b]
	}
	return string(r)
}

// pdfDocEncode encodes s using PDFDocEncoding, returning ok=false if s
// contains a rune not representable in the table.
func pdfDocEncode(s string) (String, bool) {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		b, ok := pdfDocEncodingReverse[r]
		if !ok {
			return nil, false
		}
		out = append(out, b)
	}
	return String(out), true
}

// Language returns the document's natural language, read from the
// Catalog's /Lang entry (PDF 32000-1 §14.9.2). It returns the zero
// language.Tag and ok=false if /Lang is absent, empty, or malformed.
func (d *Document) Language() (tag language.Tag, ok bool) {
	rootObj, has := d.Trailer.Get("Root")
	if !has {
		return language.Tag{}, false
	}
	catalog, err := d.ResolveDict(rootObj)
	if err != nil {
		return language.Tag{}, false
	}
	langObj, has := catalog.Get("Lang")
	if !has {
		return language.Tag{}, false
	}
	lang := d.Resolve(langObj)
	s, isString := lang.(String)
	if !isString || len(s) == 0 {
		return language.Tag{}, false
	}
	tag, err = language.Parse(s.AsText())
	if err != nil {
		return language.Tag{}, false
	}
	return tag, true
}

// SetLanguage sets the Catalog's /Lang entry from tag, creating the
// Catalog if the trailer has no /Root yet.
func (d *Document) SetLanguage(tag language.Tag) {
	rootObj, has := d.Trailer.Get("Root")
	var catalog *Dict
	if has {
		catalog, _ = d.ResolveDict(rootObj)
	}
	if catalog == nil {
		catalog = DictOf(DictEntry{"Type", Name("Catalog")})
		ref := d.AddObject(catalog)
		d.Trailer.Set("Root", ref)
	}
	catalog.Set("Lang", TextString(tag.String()))
}
