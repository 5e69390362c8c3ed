// Package catalogerr defines the error taxonomy shared by the catalog
// pipeline. Every failure that a caller may want to branch on carries a Kind;
// errors.Is matches by kind so callers can write
//
//	if errors.Is(err, catalogerr.ErrPathConflict) { ... }
//
// without caring about the path or locale attached to the concrete error.
package catalogerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	// MalformedCatalog: a persisted locale file violates the tree shape
	// (array value, non-string leaf, wrong top-level locale key).
	MalformedCatalog Kind = "malformed_catalog"
	// PathConflict: a flat key is both a leaf and the prefix of another key.
	PathConflict Kind = "path_conflict"
	// InvalidKey: a flat key has empty segments.
	InvalidKey Kind = "invalid_key"
	// ScanIO: a source file could not be read.
	ScanIO Kind = "scan_io"
	// TranslationService: the translate collaborator failed for one key.
	TranslationService Kind = "translation_service"
	// CollisionUnresolved: suffix disambiguation ran out of attempts.
	CollisionUnresolved Kind = "collision_unresolved"
)

// Sentinels for errors.Is comparisons.
var (
	ErrMalformedCatalog    = &Error{Kind: MalformedCatalog}
	ErrPathConflict        = &Error{Kind: PathConflict}
	ErrInvalidKey          = &Error{Kind: InvalidKey}
	ErrScanIO              = &Error{Kind: ScanIO}
	ErrTranslationService  = &Error{Kind: TranslationService}
	ErrCollisionUnresolved = &Error{Kind: CollisionUnresolved}
)

// Error is a classified pipeline error.
type Error struct {
	Kind    Kind
	Path    string // flat key or file path the error is about
	Locale  string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Locale != "" {
		fmt.Fprintf(&b, " [%s]", e.Locale)
	}
	if e.Path != "" {
		fmt.Fprintf(&b, " %q", e.Path)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New creates an error of the given kind about path.
func New(kind Kind, path, message string) *Error {
	return &Error{Kind: kind, Path: path, Message: message}
}

// Wrap creates an error of the given kind wrapping cause.
func Wrap(kind Kind, path string, cause error) *Error {
	return &Error{Kind: kind, Path: path, Cause: cause}
}

// Malformed reports a catalog shape violation at path.
func Malformed(path, format string, args ...any) *Error {
	return &Error{Kind: MalformedCatalog, Path: path, Message: fmt.Sprintf(format, args...)}
}

// Conflict reports a leaf/prefix clash for path.
func Conflict(path string) *Error {
	return &Error{Kind: PathConflict, Path: path, Message: "key is both a leaf and a prefix"}
}

// WithLocale returns a copy of err tagged with locale when err is an *Error;
// other errors are returned unchanged.
func WithLocale(err error, locale string) error {
	var ce *Error
	if !errors.As(err, &ce) {
		return err
	}
	cp := *ce
	cp.Locale = locale
	return &cp
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}
