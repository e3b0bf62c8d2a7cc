package pdf

import "fmt"

// ParseError reports a malformed byte sequence at a specific offset in the
// input. It wraps the lower-level error that triggered it, if any.
type ParseError struct {
	Pos int64
	Err error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pdf: parse error at byte %d: %v", e.Pos, e.Err)
	}
	return fmt.Sprintf("pdf: parse error at byte %d", e.Pos)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ReferenceError reports a problem resolving an indirect reference: a cycle,
// an out-of-range object number, or too many levels of indirection.
type ReferenceError struct {
	Ref Reference
	Err error
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("pdf: cannot resolve %v: %v", e.Ref, e.Err)
}

func (e *ReferenceError) Unwrap() error { return e.Err }

// FilterError reports a failure while encoding or decoding a stream filter.
type FilterError struct {
	Filter Name
	Stage  string // "encode" or "decode"
	Err    error
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("pdf: %s %s: %v", e.Filter, e.Stage, e.Err)
}

func (e *FilterError) Unwrap() error { return e.Err }

// EncryptionError reports a failure in the Standard Security Handler: a
// rejected password, an unsupported revision, or a corrupt encryption
// dictionary.
type EncryptionError struct {
	Reason string
	Err    error
}

func (e *EncryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("pdf: encryption: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("pdf: encryption: %s", e.Reason)
}

func (e *EncryptionError) Unwrap() error { return e.Err }

// TypeError reports that an object had a different type than the one a
// caller required.
type TypeError struct {
	Want string
	Got  Object
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("pdf: expected %s, got %T", e.Want, e.Got)
}

// LimitError reports that an internal safety limit (recursion depth, object
// stream size, number of xref generations) was exceeded while processing a
// document. These limits exist to bound work on adversarial or corrupt
// input; they are not part of the PDF format itself.
type LimitError struct {
	Limit string
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("pdf: exceeded internal limit: %s", e.Limit)
}
