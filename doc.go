// Package pdf implements the parts of the PDF file format needed to read,
// modify, and write PDF documents: the object model, the classic and
// cross-reference-stream xref mechanisms, the standard stream filters, the
// Standard Security Handler (encryption), and a set of document-level
// operations (merge, renumber, prune, compress) built on top of them.
//
// The package does not render pages, interpret content streams, extract
// text or fonts, or validate PDF/A-style conformance; it works at the level
// of the object graph and the bytes that make it up.
package pdf
